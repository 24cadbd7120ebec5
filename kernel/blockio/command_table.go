package blockio

import "unsafe"

// Layout of the single command-list entry and its command table, both
// backed by the identity-mapped region an AHCIPort is constructed with:
//
//	+0x000  command header (32 bytes)
//	+0x400  FIS receive area (reserved by NewAHCIPort's FB register)
//	+0x800  command table: register H2D FIS (20 bytes) + PRDT entry (16
//	        bytes) + the actual sector data
//
// This single-PRDT-entry layout only supports transfers that fit in one
// contiguous physical region, which every caller in this core satisfies
// since ReadSectors/WriteSectors buffers are already contiguous kernel
// heap allocations.
const (
	cmdTableOffset = 0x800
	fisOffset      = 0x800
	prdtOffset     = fisOffset + 20
	dataOffset     = prdtOffset + 16
)

const fisTypeRegH2D = 0x27

// buildCommand programs the command header, H2D FIS and PRDT for a
// transfer, and for writes copies buf into the data area up front (reads
// copy out of it separately, via collectData, only after the command
// completes).
func buildCommand(base uintptr, lba uint64, count uint32, buf []byte, write bool) {
	// Command header: word 0 holds FIS length (in dwords) and the write
	// bit; word 1 is the PRD table entry count.
	header := (*[8]uint32)(unsafe.Pointer(base))
	header[0] = 5 // register FIS is 5 dwords
	if write {
		header[0] |= 1 << 6
	}
	header[1] = 1 // one PRDT entry
	header[2] = uint32(base + cmdTableOffset)

	fis := (*[5]uint32)(unsafe.Pointer(base + fisOffset))
	cmd := uint8(ataCmdReadSectorsExt)
	if write {
		cmd = ataCmdWriteSectorsExt
	}
	fis[0] = uint32(fisTypeRegH2D) | 1<<15 /* command, not control */ | uint32(cmd)<<16
	fis[1] = uint32(lba & 0xFFFFFF) | 1<<30 /* LBA mode */
	fis[2] = uint32(lba>>24) & 0xFFFFFF
	fis[3] = uint32(count)

	prdt := (*[4]uint32)(unsafe.Pointer(base + prdtOffset))
	prdt[0] = uint32(base + dataOffset)
	prdt[2] = uint32(len(buf)-1) | 1<<31 // byte count minus 1, interrupt on completion

	if write {
		data := (*[1 << 20]byte)(unsafe.Pointer(base + dataOffset))[:len(buf):len(buf)]
		copy(data, buf)
	}
}

// collectData copies a completed read's data area into buf. Called only
// after issueCommand observes the command-issue bit clear.
func collectData(base uintptr, buf []byte) {
	data := (*[1 << 20]byte)(unsafe.Pointer(base + dataOffset))[:len(buf):len(buf)]
	copy(buf, data)
}

// buildFlushCommand programs the command header and H2D FIS for a
// non-data ATA FLUSH CACHE command, issued after a successful write to
// persist the drive's write cache. It carries no PRDT entries since no
// data is transferred.
func buildFlushCommand(base uintptr) {
	header := (*[8]uint32)(unsafe.Pointer(base))
	header[0] = 5
	header[1] = 0
	header[2] = uint32(base + cmdTableOffset)

	fis := (*[5]uint32)(unsafe.Pointer(base + fisOffset))
	fis[0] = uint32(fisTypeRegH2D) | 1<<15 | uint32(ataCmdFlushCache)<<16
	fis[1] = 0
	fis[2] = 0
	fis[3] = 0
}
