package syscall

func init() {
	register(SysIoctl, sysIoctl)
}

// ioctlFn dispatches a device-specific control request to the driver
// framework's instance registry, looked up by name. It is nil until
// kernel/driver's Init wires it in.
var ioctlFn func(driverName string, cmd uint32, arg uintptr) int32

// SetIoctlHook wires the driver framework's ioctl dispatch into the Device
// syscall family. Called once by driver.Init().
func SetIoctlHook(fn func(driverName string, cmd uint32, arg uintptr) int32) {
	ioctlFn = fn
}

func sysIoctl(args Args) int32 {
	if ioctlFn == nil {
		return int32(ENODEV)
	}
	var nameBuf [64]byte
	n, errno := CopyStringFromUser(nameBuf[:], uintptr(args[0]), uintptr(len(nameBuf)))
	if errno != 0 {
		return int32(errno)
	}
	return ioctlFn(string(nameBuf[:n]), args[1], uintptr(args[2]))
}
