// Package vfs implements the virtual filesystem layer: filesystem-type
// registration, the mount table, path resolution, and the vnode op vtable
// that concrete filesystem modules implement against.
package vfs

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
)

// BlockDevice is the narrow surface a filesystem's Mount needs from the
// block-I/O layer. kernel/blockio's partition wrapper satisfies it.
type BlockDevice interface {
	ReadSectors(lba uint64, count uint32, buf []byte) *kernel.Error
	WriteSectors(lba uint64, count uint32, buf []byte) *kernel.Error
	SectorSize() uint32
}

// FSType is the registration triple a filesystem module supplies.
type FSType struct {
	Name string
	// Mount constructs a Superblock over dev.
	Mount func(dev BlockDevice) (*Superblock, *kernel.Error)
	// Unmount releases any in-memory state the superblock holds.
	Unmount func(sb *Superblock) *kernel.Error
}

var registeredTypes = map[string]*FSType{}

// RegisterFSType makes a filesystem module available to Mount by name. Re-registering an existing name replaces it.
func RegisterFSType(t *FSType) {
	registeredTypes[t.Name] = t
}

// LookupFSType returns the registered filesystem type, or nil.
func LookupFSType(name string) *FSType {
	return registeredTypes[name]
}

// Superblock is the per-mount root record binding a filesystem module to
// its backing device. Concrete filesystem modules embed this and attach
// their own state plus a RootVnode.
type Superblock struct {
	FSType    string
	Dev       BlockDevice
	RootVnode Vnode

	// openCount tracks how many vnodes under this superblock currently
	// have an open reference, enforced by Unmount's EBUSY check.
	openCount int
}

var (
	errUnknownFSType = &kernel.Error{Module: "vfs", Message: "unknown filesystem type"}
)

// mkErr is a small helper for the package's many static error values.
func mkErr(msg string) *kernel.Error {
	return &kernel.Error{Module: "vfs", Message: msg}
}

// Init wires the VFS public surface into the syscall gateway's I/O and
// FS-namespace families. Called once during boot, before kernel/syscall's
// own Init.
func Init() {
	wireSyscallHooks()
}
