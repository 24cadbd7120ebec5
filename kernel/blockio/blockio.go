// Package blockio implements the core's uniform block-I/O dispatcher: a
// common Transport surface over PATA (PIO), AHCI, ATAPI and USB mass-storage
// devices, a partition-bounded wrapper over any Transport, and the disk
// read/write dispatch entry points filesystem modules call through.
package blockio

// SectorSize is the fixed sector size at the dispatcher boundary,
// irrespective of the underlying media's native sector size; ATAPI
// transports translate internally between it and their 2048-byte sectors.
const SectorSize = 512

// Transport is the uniform surface every bus-specific driver (PATA, AHCI,
// ATAPI, USB-MSC) implements. Sector addressing is always in SectorSize
// units at this boundary.
type Transport interface {
	// ReadSectors reads count sectors starting at lba into buf, which must
	// be at least count*SectorSize bytes.
	ReadSectors(lba uint64, count uint32, buf []byte) Error
	// WriteSectors writes count sectors starting at lba from buf.
	WriteSectors(lba uint64, count uint32, buf []byte) Error
	// SectorCount returns the total number of SectorSize-sized sectors the
	// underlying media exposes.
	SectorCount() uint64
	// Present reports whether a device actually responded during detection.
	Present() bool
}

var registeredTransports = map[string]Transport{}

// RegisterTransport makes a detected device available to the dispatcher and
// the VFS mount path under name (e.g. "ata0", "ahci0", "usb0").
func RegisterTransport(name string, t Transport) {
	registeredTransports[name] = t
}

// LookupTransport returns a previously registered transport, or nil.
func LookupTransport(name string) Transport {
	return registeredTransports[name]
}
