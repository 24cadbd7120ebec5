package blockio

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"

// atapiSectorSize is the native sector size of optical media read through
// the PACKET interface. The dispatcher only ever deals in SectorSize (512)
// units, so ATAPI translates between the two at its own boundary.
const atapiSectorSize = 2048

const (
	atapiCmdPacket = 0xA0
	atapiReadCmd   = 0x28 // SCSI READ(10)
)

// ATAPI is a PIO-mode ATAPI transport (CD/DVD drives behind the PACKET
// interface). Per spec.md §9's open-question decision, writes always fail:
// the source this core was distilled from never implemented ATAPI writes.
type ATAPI struct {
	base    uint16
	ctrl    uint16
	slave   bool
	sectors uint64 // in atapiSectorSize units
}

// NewATAPI constructs an ATAPI transport. nativeSectorCount is the number
// of 2048-byte blocks the drive reports, obtained by the caller during
// detection (e.g. via a READ CAPACITY packet command).
func NewATAPI(base, ctrl uint16, slave bool, nativeSectorCount uint64) *ATAPI {
	return &ATAPI{base: base, ctrl: ctrl, slave: slave, sectors: nativeSectorCount}
}

func (a *ATAPI) SectorCount() uint64 {
	// Reported in dispatcher-boundary (512-byte) units.
	return a.sectors * (atapiSectorSize / SectorSize)
}

func (a *ATAPI) Present() bool { return a.sectors > 0 }

func (a *ATAPI) waitWhileBusy() Error {
	for i := 0; i < ataPollLimit; i++ {
		if cpu.PortReadByte(a.base+ataRegStatus)&ataStatusBSY == 0 {
			return None
		}
		cpu.IOWait()
	}
	return Timeout
}

func (a *ATAPI) waitDRQ() Error {
	for i := 0; i < ataPollLimit; i++ {
		status := cpu.PortReadByte(a.base + ataRegStatus)
		if status&ataStatusERR != 0 {
			return ATAPIError
		}
		if status&ataStatusDRQ != 0 {
			return None
		}
		cpu.IOWait()
	}
	return Timeout
}

// readNativeSector reads one atapiSectorSize-byte block at native LBA nlba.
func (a *ATAPI) readNativeSector(nlba uint64, out []byte) Error {
	if err := a.waitWhileBusy(); err != None {
		return err
	}

	driveBit := uint8(0xA0)
	if a.slave {
		driveBit |= 0x10
	}
	cpu.PortWriteByte(a.base+ataRegDriveHead, driveBit)
	cpu.PortWriteByte(a.base+ataRegError, 0) // features: PIO, no overlap/DMA
	cpu.PortWriteByte(a.base+ataRegLBAMid, uint8(atapiSectorSize))
	cpu.PortWriteByte(a.base+ataRegLBAHigh, uint8(atapiSectorSize>>8))
	cpu.PortWriteByte(a.base+ataRegCommand, atapiCmdPacket)

	if err := a.waitDRQ(); err != None {
		return err
	}

	packet := [6]uint16{
		uint16(atapiReadCmd),
		uint16(nlba>>24)&0xFF | uint16(nlba>>16&0xFF)<<8,
		uint16(nlba>>8)&0xFF | uint16(nlba&0xFF)<<8,
		0,
		1, // transfer length: one native block
		0,
	}
	for _, w := range packet {
		cpu.PortWriteWord(a.base+ataRegData, w)
	}

	if err := a.waitDRQ(); err != None {
		return err
	}
	for w := 0; w < atapiSectorSize/2; w++ {
		word := cpu.PortReadWord(a.base + ataRegData)
		out[w*2] = uint8(word)
		out[w*2+1] = uint8(word >> 8)
	}
	return None
}

// ReadSectors reads count 512-byte dispatcher sectors starting at lba,
// translating to whole 2048-byte native reads and slicing out the
// requested range.
func (a *ATAPI) ReadSectors(lba uint64, count uint32, buf []byte) Error {
	if count == 0 || uint32(len(buf)) < count*SectorSize {
		return InvalidParam
	}
	if lba+uint64(count) > a.SectorCount() {
		return LBAOutOfRange
	}

	const ratio = atapiSectorSize / SectorSize // 4
	firstNative := lba / ratio
	lastNative := (lba + uint64(count) - 1) / ratio

	var block [atapiSectorSize]byte
	for n := firstNative; n <= lastNative; n++ {
		ok := false
		for attempt := 0; attempt <= ataMaxRetries; attempt++ {
			if err := a.readNativeSector(n, block[:]); err == None {
				ok = true
				break
			}
		}
		if !ok {
			return ATAPIError
		}

		for sub := uint64(0); sub < ratio; sub++ {
			abs := n*ratio + sub
			if abs < lba || abs >= lba+uint64(count) {
				continue
			}
			dstOff := (abs - lba) * SectorSize
			srcOff := sub * SectorSize
			copy(buf[dstOff:dstOff+SectorSize], block[srcOff:srcOff+SectorSize])
		}
	}
	return None
}

// WriteSectors always fails: ATAPI optical media is read-only at this
// boundary, preserving the behavior of the source this core was distilled
// from rather than guessing at packet-write semantics.
func (a *ATAPI) WriteSectors(lba uint64, count uint32, buf []byte) Error {
	return ATAPIError
}
