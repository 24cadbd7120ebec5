package syscall

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"

func init() {
	register(SysGetcwd, sysGetcwd)
	register(SysChdir, sysChdir)
	register(SysMkdir, sysMkdir)
	register(SysUnlink, sysUnlink)
}

// Hooks installed by kernel/vfs during its Init.
var (
	vfsIsDirFn  func(path string) (bool, Errno)
	vfsMkdirFn  func(path string) Errno
	vfsUnlinkFn func(path string) Errno
)

// SetVFSNamespaceHooks wires the VFS layer's directory-existence, mkdir and
// unlink operations into the FS-namespace syscall family. Called once by
// vfs.Init().
func SetVFSNamespaceHooks(isDir func(path string) (bool, Errno), mkdir func(path string) Errno, unlink func(path string) Errno) {
	vfsIsDirFn, vfsMkdirFn, vfsUnlinkFn = isDir, mkdir, unlink
}

func sysGetcwd(args Args) int32 {
	t := sched.CurrentTask()
	if t == nil {
		return int32(EBADF)
	}
	buf := uintptr(args[0])
	max := uintptr(args[1])

	cwd := t.Cwd + "\x00"
	if uintptr(len(cwd)) > max {
		return int32(EINVAL)
	}
	n, errno := CopyToUser(buf, []byte(cwd), uintptr(len(cwd)))
	if errno != 0 {
		return int32(errno)
	}
	return int32(n - 1) // exclude the NUL from the reported length
}

func sysChdir(args Args) int32 {
	t := sched.CurrentTask()
	if t == nil {
		return int32(EBADF)
	}
	var nameBuf [pathMax]byte
	n, errno := CopyStringFromUser(nameBuf[:], uintptr(args[0]), pathMax)
	if errno != 0 {
		return int32(errno)
	}
	path := string(nameBuf[:n])

	if vfsIsDirFn == nil {
		return int32(ENODEV)
	}
	isDir, errno := vfsIsDirFn(path)
	if errno != 0 {
		return int32(errno)
	}
	if !isDir {
		return int32(ENOTDIR)
	}

	t.Cwd = path
	return 0
}

func sysMkdir(args Args) int32 {
	if vfsMkdirFn == nil {
		return int32(ENODEV)
	}
	var nameBuf [pathMax]byte
	n, errno := CopyStringFromUser(nameBuf[:], uintptr(args[0]), pathMax)
	if errno != 0 {
		return int32(errno)
	}
	if errno := vfsMkdirFn(string(nameBuf[:n])); errno != 0 {
		return int32(errno)
	}
	return 0
}

func sysUnlink(args Args) int32 {
	if vfsUnlinkFn == nil {
		return int32(ENODEV)
	}
	var nameBuf [pathMax]byte
	n, errno := CopyStringFromUser(nameBuf[:], uintptr(args[0]), pathMax)
	if errno != 0 {
		return int32(errno)
	}
	if errno := vfsUnlinkFn(string(nameBuf[:n])); errno != 0 {
		return int32(errno)
	}
	return 0
}
