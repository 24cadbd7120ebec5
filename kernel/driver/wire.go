package driver

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/syscall"

// Init wires the driver framework's ioctl dispatch into the Device syscall
// family, the same setter-hook pattern kernel/vfs and kernel/blockio use to
// reach kernel/syscall without an import cycle. Called once during boot
// after every driver instance that might be ioctl'd has been created.
func Init() {
	syscall.SetIoctlHook(func(driverName string, cmd uint32, arg uintptr) int32 {
		inst := LookupByName(driverName)
		if inst == nil {
			return int32(syscall.ENODEV)
		}
		ret, err := Ioctl(inst.ID, cmd, arg)
		if err != nil {
			return int32(syscall.EINVAL)
		}
		return ret
	})
}
