package syscall

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"

func init() {
	register(SysOpen, sysOpen)
	register(SysClose, sysClose)
	register(SysRead, sysRead)
	register(SysWrite, sysWrite)
	register(SysSeek, sysSeek)
	register(SysTell, sysTell)
}

// pathMax bounds the length of a path copied in from user space in a single
// syscall argument, matching the VFS path grammar's total-length limit.
const pathMax = 256

// Seek whence values, matching the classic lseek encoding.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// Hooks installed by kernel/vfs during its Init. Until that package is
// wired in, every regular (non fd 0/1/2) open/read/write/seek call fails
// with ENODEV rather than touching a nil vnode.
var (
	vfsOpenFn  func(path string, flags int32) (sched.VNodeRef, Errno)
	vfsReadFn  func(node sched.VNodeRef, buf []byte, offset int64) (int, Errno)
	vfsWriteFn func(node sched.VNodeRef, buf []byte, offset int64) (int, Errno)
	vfsSizeFn  func(node sched.VNodeRef) (int64, Errno)
)

// SetVFSHooks wires the VFS layer's open/read/write/size operations into
// the I/O syscall family. Called once by vfs.Init().
func SetVFSHooks(open func(path string, flags int32) (sched.VNodeRef, Errno),
	read func(node sched.VNodeRef, buf []byte, offset int64) (int, Errno),
	write func(node sched.VNodeRef, buf []byte, offset int64) (int, Errno),
	size func(node sched.VNodeRef) (int64, Errno)) {
	vfsOpenFn, vfsReadFn, vfsWriteFn, vfsSizeFn = open, read, write, size
}

func currentFDTable() *[sched.MaxFDs]*sched.FileDescriptor {
	t := sched.CurrentTask()
	if t == nil {
		return nil
	}
	return &t.FDTable
}

func allocFD(fdt *[sched.MaxFDs]*sched.FileDescriptor, fd *sched.FileDescriptor) (int32, Errno) {
	for i := 3; i < sched.MaxFDs; i++ { // 0,1,2 are reserved for the terminal
		if fdt[i] == nil {
			fdt[i] = fd
			return int32(i), 0
		}
	}
	return 0, EMFILE
}

func lookupFD(fdt *[sched.MaxFDs]*sched.FileDescriptor, fd int32) (*sched.FileDescriptor, Errno) {
	if fd < 3 || int(fd) >= sched.MaxFDs || fdt[fd] == nil {
		return nil, EBADF
	}
	return fdt[fd], 0
}

func sysOpen(args Args) int32 {
	if vfsOpenFn == nil {
		return int32(ENODEV)
	}
	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}

	var nameBuf [pathMax]byte
	n, errno := CopyStringFromUser(nameBuf[:], uintptr(args[0]), pathMax)
	if errno != 0 {
		return int32(errno)
	}

	node, errno := vfsOpenFn(string(nameBuf[:n]), int32(args[1]))
	if errno != 0 {
		return int32(errno)
	}

	fd, errno := allocFD(fdt, &sched.FileDescriptor{Node: node, Flags: int(args[1])})
	if errno != 0 {
		node.Release()
		return int32(errno)
	}
	return fd
}

func sysClose(args Args) int32 {
	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}
	fd, errno := lookupFD(fdt, int32(args[0]))
	if errno != 0 {
		return int32(errno)
	}
	fd.Node.Release()
	fdt[args[0]] = nil
	return 0
}

func sysRead(args Args) int32 {
	fd := int32(args[0])
	bufPtr := uintptr(args[1])
	count := uintptr(args[2])

	switch fd {
	case 0:
		return readStdin(bufPtr, count)
	case 1, 2:
		return int32(EBADF)
	}

	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}
	desc, errno := lookupFD(fdt, fd)
	if errno != 0 {
		return int32(errno)
	}
	if vfsReadFn == nil {
		return int32(ENODEV)
	}

	buf := make([]byte, count)
	n, errno := vfsReadFn(desc.Node, buf, desc.Offset)
	if errno != 0 {
		return int32(errno)
	}
	if _, errno := CopyToUser(bufPtr, buf[:n], uintptr(n)); errno != 0 {
		return int32(errno)
	}
	desc.Offset += int64(n)
	return int32(n)
}

// readStdin fills count bytes from the keyboard source, blocking until each
// byte is available. Non-printable keys are skipped: a raw byte stream has
// no way to carry the negative KEY_* sentinels readkey/getc expose.
func readStdin(bufPtr uintptr, count uintptr) int32 {
	out := make([]byte, 0, count)
	for uintptr(len(out)) < count {
		k := blockForKey()
		if k < 0 {
			continue
		}
		out = append(out, byte(k))
	}
	n, errno := CopyToUser(bufPtr, out, uintptr(len(out)))
	if errno != 0 {
		return int32(errno)
	}
	return int32(n)
}

func sysWrite(args Args) int32 {
	fd := int32(args[0])
	bufPtr := uintptr(args[1])
	count := uintptr(args[2])

	buf := make([]byte, count)
	if _, errno := CopyFromUser(buf, bufPtr, count); errno != 0 {
		return int32(errno)
	}

	switch fd {
	case 0:
		return int32(EBADF)
	case 1, 2:
		if writeSinkFn == nil {
			return int32(count)
		}
		writeSinkFn(buf)
		return int32(count)
	}

	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}
	desc, errno := lookupFD(fdt, fd)
	if errno != 0 {
		return int32(errno)
	}
	if vfsWriteFn == nil {
		return int32(ENODEV)
	}

	n, errno := vfsWriteFn(desc.Node, buf, desc.Offset)
	if errno != 0 {
		return int32(errno)
	}
	desc.Offset += int64(n)
	return int32(n)
}

func sysSeek(args Args) int32 {
	fd := int32(args[0])
	offset := int64(int32(args[1]))
	whence := int32(args[2])

	if fd < 3 {
		return int32(EINVAL)
	}
	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}
	desc, errno := lookupFD(fdt, fd)
	if errno != 0 {
		return int32(errno)
	}

	switch whence {
	case SeekSet:
		desc.Offset = offset
	case SeekCur:
		desc.Offset += offset
	case SeekEnd:
		if vfsSizeFn == nil {
			return int32(ENOSYS)
		}
		size, errno := vfsSizeFn(desc.Node)
		if errno != 0 {
			return int32(errno)
		}
		desc.Offset = size + offset
	default:
		return int32(EINVAL)
	}
	if desc.Offset < 0 {
		desc.Offset = 0
		return int32(EINVAL)
	}
	return int32(desc.Offset)
}

func sysTell(args Args) int32 {
	fd := int32(args[0])
	if fd < 3 {
		return int32(EINVAL)
	}
	fdt := currentFDTable()
	if fdt == nil {
		return int32(EBADF)
	}
	desc, errno := lookupFD(fdt, fd)
	if errno != 0 {
		return int32(errno)
	}
	return int32(desc.Offset)
}
