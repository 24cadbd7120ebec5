package blockio

// Partition bounds-checks LBA/count against its own sector count before
// re-offsetting and re-validating against the underlying physical
// transport, per spec.md §4.9/§8's partition bounds invariant.
type Partition struct {
	transport Transport
	offset    uint64 // LBA offset into the physical disk
	size      uint64 // sector count of this partition
}

// NewPartition wraps transport with a partition window [offset, offset+size).
func NewPartition(transport Transport, offset, size uint64) *Partition {
	return &Partition{transport: transport, offset: offset, size: size}
}

func (p *Partition) SectorCount() uint64 { return p.size }
func (p *Partition) Present() bool       { return p.transport.Present() }

// DispatchRead validates lba+count against the partition's own sector
// count, then issues the re-offset request against the physical disk.
func (p *Partition) DispatchRead(lba uint64, count uint32, buf []byte) Error {
	if count == 0 {
		return InvalidParam
	}
	if lba+uint64(count) > p.size {
		return LBAOutOfRange
	}
	return p.transport.ReadSectors(p.offset+lba, count, buf)
}

func (p *Partition) DispatchWrite(lba uint64, count uint32, buf []byte) Error {
	if count == 0 {
		return InvalidParam
	}
	if lba+uint64(count) > p.size {
		return LBAOutOfRange
	}
	return p.transport.WriteSectors(p.offset+lba, count, buf)
}

// ReadSectors/WriteSectors let a Partition itself be used as a Transport
// (e.g. as the source of a nested bind-mounted filesystem), delegating to
// the same bounds-checked dispatch path.
func (p *Partition) ReadSectors(lba uint64, count uint32, buf []byte) Error {
	return p.DispatchRead(lba, count, buf)
}

func (p *Partition) WriteSectors(lba uint64, count uint32, buf []byte) Error {
	return p.DispatchWrite(lba, count, buf)
}
