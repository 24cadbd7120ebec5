package vfs

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"

// Kind identifies what sort of object a vnode names.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindDevice
)

// Attr is the subset of file metadata getattr exposes.
type Attr struct {
	Kind Kind
	Size int64
}

// Dirent is a single entry yielded by Readdir.
type Dirent struct {
	Name       string
	Kind       Kind
	Size       int64
	LinkTarget string // only meaningful when Kind == KindSymlink
}

// Vnode is the filesystem-agnostic handle every concrete filesystem module
// implements against. It satisfies kernel/sched.VNodeRef via Release, so a
// Vnode can be stored directly in a task's file-descriptor table without
// kernel/sched depending on this package.
type Vnode interface {
	// Lookup resolves a single path component within a directory vnode.
	Lookup(name string) (Vnode, *kernel.Error)
	Create(name string) (Vnode, *kernel.Error)
	Mkdir(name string) (Vnode, *kernel.Error)

	Read(buf []byte, offset int64) (int, *kernel.Error)
	Write(buf []byte, offset int64) (int, *kernel.Error)
	Readdir() ([]Dirent, *kernel.Error)

	Unlink(name string) *kernel.Error
	Symlink(name, target string) *kernel.Error
	Readlink() (string, *kernel.Error)
	Truncate(size int64) *kernel.Error
	Getattr() (Attr, *kernel.Error)

	// Release drops one reference. The filesystem module that created the
	// vnode decides when the underlying resource is actually freed.
	Release()
}
