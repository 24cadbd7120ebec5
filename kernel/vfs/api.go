package vfs

import (
	"strings"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/syscall"
)

// Open flags, matching the classic O_* bit assignments.
const (
	ORdOnly = 0x0
	OWrOnly = 0x1
	ORdWr   = 0x2
	OCreate = 0x40
	OTrunc  = 0x200
)

var errIsDirectory = mkErr("target is a directory")

// openVnode wraps a resolved Vnode so Release both decrements the owning
// superblock's open count and calls through to the filesystem module's own
// Release. This is what every Open caller actually receives, satisfying
// the "every open file holds a vnode reference, and closing releases
// exactly one" invariant at the VFS layer rather than relying on each
// filesystem module to track it itself.
type openVnode struct {
	Vnode
	sb *Superblock
}

func (o *openVnode) Release() {
	o.sb.openCount--
	o.Vnode.Release()
}

// Open resolves path to a vnode, creating it under OCreate if it does not
// already exist, and returns an open reference.
func Open(path string, flags int32) (Vnode, *kernel.Error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return nil, errENOENT
	}

	vn, err := ResolvePathToVnode(m.sb, rel, 0)
	if err != nil {
		if err != errENOENT || flags&OCreate == 0 {
			return nil, err
		}
		vn, err = createAlongPath(m.sb, rel)
		if err != nil {
			return nil, err
		}
	} else if flags&OTrunc != 0 {
		if err := vn.Truncate(0); err != nil {
			return nil, err
		}
	}

	m.sb.openCount++
	return &openVnode{Vnode: vn, sb: m.sb}, nil
}

func createAlongPath(sb *Superblock, rel string) (Vnode, *kernel.Error) {
	parentPath, base := parentAndBase(rel)
	if base == "" {
		return nil, errENOENT
	}
	parent, err := ResolvePathToVnode(sb, parentPath, 0)
	if err != nil {
		return nil, err
	}
	return parent.Create(base)
}

func parentAndBase(rel string) (string, string) {
	idx := strings.LastIndexByte(rel, '/')
	if idx < 0 {
		return "", rel
	}
	return rel[:idx], rel[idx+1:]
}

// Mkdir creates a directory at path.
func Mkdir(path string) *kernel.Error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return errENOENT
	}
	parentPath, base := parentAndBase(rel)
	if base == "" {
		return errENOENT
	}
	parent, err := ResolvePathToVnode(m.sb, parentPath, 0)
	if err != nil {
		return err
	}
	_, err = parent.Mkdir(base)
	return err
}

// Unlink removes the directory entry named by path.
func Unlink(path string) *kernel.Error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return errENOENT
	}
	parentPath, base := parentAndBase(rel)
	if base == "" {
		return errENOENT
	}
	parent, err := ResolvePathToVnode(m.sb, parentPath, 0)
	if err != nil {
		return err
	}
	return parent.Unlink(base)
}

// Symlink creates a symlink named by path pointing at target.
func Symlink(path, target string) *kernel.Error {
	norm, err := NormalizePath(path)
	if err != nil {
		return err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return errENOENT
	}
	parentPath, base := parentAndBase(rel)
	if base == "" {
		return errENOENT
	}
	parent, err := ResolvePathToVnode(m.sb, parentPath, 0)
	if err != nil {
		return err
	}
	return parent.Symlink(base, target)
}

// Readlink returns the target of the symlink at path.
func Readlink(path string) (string, *kernel.Error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return "", err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return "", errENOENT
	}
	vn, err := ResolvePathToVnode(m.sb, rel, NoFollow)
	if err != nil {
		return "", err
	}
	return vn.Readlink()
}

// Stat returns path's attributes without opening it.
func Stat(path string) (Attr, *kernel.Error) {
	norm, err := NormalizePath(path)
	if err != nil {
		return Attr{}, err
	}
	m, rel := FindMountForPath(norm)
	if m == nil {
		return Attr{}, errENOENT
	}
	vn, err := ResolvePathToVnode(m.sb, rel, 0)
	if err != nil {
		return Attr{}, err
	}
	return vn.Getattr()
}

// IsDir reports whether path names a directory, used by the chdir syscall.
func IsDir(path string) (bool, *kernel.Error) {
	attr, err := Stat(path)
	if err != nil {
		return false, err
	}
	return attr.Kind == KindDir, nil
}

// errnoTable maps this package's static kernel.Error values to their
// syscall-layer Errno.
var errnoTable = map[*kernel.Error]syscall.Errno{
	errENOENT:           syscall.ENOENT,
	errNotDirectory:     syscall.ENOTDIR,
	errSymlinkLoop:      syscall.ELOOP,
	errBeneathEscape:    syscall.EACCES,
	errMountBusy:        syscall.EBUSY,
	errRootUnmount:      syscall.EBUSY,
	errNotMounted:       syscall.ENOENT,
	errNoBlockDevice:    syscall.ENODEV,
	errNoSourceMount:    syscall.ENOENT,
	errPathTooLong:      syscall.EINVAL,
	errComponentTooLong: syscall.EINVAL,
	errPathHasNUL:       syscall.EINVAL,
	errUnknownFSType:    syscall.ENODEV,
	errIsDirectory:      syscall.EISDIR,
}

func toErrno(err *kernel.Error) syscall.Errno {
	if err == nil {
		return 0
	}
	if e, ok := errnoTable[err]; ok {
		return e
	}
	return syscall.EINVAL
}

// wireSyscallHooks adapts this package's API to the function-var hooks
// kernel/syscall's I/O and FS-namespace families expect, converting
// *kernel.Error to syscall.Errno at the boundary.
func wireSyscallHooks() {
	syscall.SetVFSHooks(
		func(path string, flags int32) (sched.VNodeRef, syscall.Errno) {
			vn, err := Open(path, flags)
			if err != nil {
				return nil, toErrno(err)
			}
			return vn, 0
		},
		func(node sched.VNodeRef, buf []byte, offset int64) (int, syscall.Errno) {
			n, err := node.(Vnode).Read(buf, offset)
			return n, toErrno(err)
		},
		func(node sched.VNodeRef, buf []byte, offset int64) (int, syscall.Errno) {
			n, err := node.(Vnode).Write(buf, offset)
			return n, toErrno(err)
		},
		func(node sched.VNodeRef) (int64, syscall.Errno) {
			attr, err := node.(Vnode).Getattr()
			return attr.Size, toErrno(err)
		},
	)

	syscall.SetVFSNamespaceHooks(
		func(path string) (bool, syscall.Errno) {
			ok, err := IsDir(path)
			return ok, toErrno(err)
		},
		func(path string) syscall.Errno {
			return toErrno(Mkdir(path))
		},
		func(path string) syscall.Errno {
			return toErrno(Unlink(path))
		},
	)
}
