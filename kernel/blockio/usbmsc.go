package blockio

// USBMSC forwards to a USB mass-storage class driver's bulk-only transport
// commands. The USB host controller and class driver themselves are out of
// scope for this core (spec.md's non-goals list names them individually);
// this type only carries the dispatcher-facing shape so a future USB-MSC
// driver has somewhere to plug in, via the function hooks below rather
// than a direct dependency.
type USBMSC struct {
	sectors uint64
	read    func(lba uint64, count uint32, buf []byte) Error
	write   func(lba uint64, count uint32, buf []byte) Error
}

// NewUSBMSC constructs a USB-MSC transport over a class driver's
// already-negotiated read/write command functions.
func NewUSBMSC(sectorCount uint64, read, write func(lba uint64, count uint32, buf []byte) Error) *USBMSC {
	return &USBMSC{sectors: sectorCount, read: read, write: write}
}

func (u *USBMSC) SectorCount() uint64 { return u.sectors }
func (u *USBMSC) Present() bool       { return u.sectors > 0 && u.read != nil }

func (u *USBMSC) ReadSectors(lba uint64, count uint32, buf []byte) Error {
	if count == 0 || uint32(len(buf)) < count*SectorSize {
		return InvalidParam
	}
	if lba+uint64(count) > u.sectors {
		return LBAOutOfRange
	}
	if u.read == nil {
		return NotInitialized
	}
	return u.read(lba, count, buf)
}

func (u *USBMSC) WriteSectors(lba uint64, count uint32, buf []byte) Error {
	if count == 0 || uint32(len(buf)) < count*SectorSize {
		return InvalidParam
	}
	if lba+uint64(count) > u.sectors {
		return LBAOutOfRange
	}
	if u.write == nil {
		return NotInitialized
	}
	return u.write(lba, count, buf)
}
