package blockio

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/vfs"
)

// DiskReadDispatch is the uniform entry point VFS filesystem modules read
// through: it bounds-checks against the partition and forwards to whatever
// transport backs it (PATA PIO, AHCI, ATAPI, USB-MSC), translation to each
// transport's native sector size (ATAPI) handled inside that transport.
func DiskReadDispatch(p *Partition, lba uint64, count uint32, buf []byte) Error {
	return p.DispatchRead(lba, count, buf)
}

// DiskWriteDispatch is DiskReadDispatch's write counterpart.
func DiskWriteDispatch(p *Partition, lba uint64, count uint32, buf []byte) Error {
	return p.DispatchWrite(lba, count, buf)
}

var registeredPartitions = map[string]*Partition{}

// RegisterPartition makes a partition available to the VFS mount syscall
// under name (e.g. "ata0p1").
func RegisterPartition(name string, p *Partition) {
	registeredPartitions[name] = p
}

// partitionDevice adapts a *Partition to vfs.BlockDevice, translating this
// package's internal Error taxonomy to *kernel.Error at the boundary VFS
// expects, per spec.md §7 ("block-I/O errors become EIO-family").
type partitionDevice struct{ p *Partition }

func (d partitionDevice) ReadSectors(lba uint64, count uint32, buf []byte) *kernel.Error {
	return ToKernelError(d.p.DispatchRead(lba, count, buf))
}

func (d partitionDevice) WriteSectors(lba uint64, count uint32, buf []byte) *kernel.Error {
	return ToKernelError(d.p.DispatchWrite(lba, count, buf))
}

func (d partitionDevice) SectorSize() uint32 { return SectorSize }

// Init wires the block-I/O layer's partition registry into the VFS mount
// path. Called once during boot after kernel/vfs's own Init.
func Init() {
	vfs.SetBlockDeviceLookup(func(name string) (vfs.BlockDevice, *kernel.Error) {
		p, ok := registeredPartitions[name]
		if !ok {
			return nil, &kernel.Error{Module: "blockio", Message: "no such partition: " + name}
		}
		return partitionDevice{p: p}, nil
	})
}
