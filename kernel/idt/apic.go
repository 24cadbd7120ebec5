package idt

import (
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
)

// MADTSource describes the subset of the ACPI Multiple APIC Description
// Table that the idt package needs to bring up the local APIC and the
// IOAPIC in place of the legacy 8259 PIC. Parsing the MADT itself (and ACPI
// tables in general) is out of scope; a caller that has already parsed one
// (e.g. via an AML interpreter) can feed the result in through this
// interface. idt.InitAPIC only reads the two register-window addresses from
// it; SourceOverride is not consulted, and EnableIRQ/DisableIRQ use the IRQ
// line number directly as the GSI.
type MADTSource interface {
	// LocalAPICAddress returns the physical address of the local APIC's
	// memory-mapped register block.
	LocalAPICAddress() uintptr

	// IOAPICAddress returns the physical address of the IOAPIC's
	// memory-mapped register block.
	IOAPICAddress() uintptr

	// SourceOverride returns the GSI (global system interrupt) that the
	// given legacy ISA IRQ line has been rerouted to, and true if an
	// override entry exists for it. When no override exists the IRQ
	// number and the GSI are identical.
	SourceOverride(irqLine uint8) (gsi uint32, ok bool)
}

const (
	apicRegEOI          = 0x0B0
	apicRegSpurious     = 0x0F0
	apicSpuriousEnable  = 1 << 8
	apicSpuriousVector  = 0xFF
	ioapicRegSelect     = 0x00
	ioapicRegWindow     = 0x10
	ioapicRedirTableLow = 0x10
)

var (
	localAPICBase uintptr
	ioAPICBase    uintptr

	mapRegionFn = vmm.MapRegion
)

// InitAPIC maps the local APIC and IOAPIC register windows described by src
// and switches interrupt delivery over from the legacy PIC. It masks every
// IOAPIC redirection entry; EnableIRQ/DisableIRQ unmask individual GSIs
// as their handlers are installed.
func InitAPIC(src MADTSource) *kernel.Error {
	lapicPage, err := mapRegionFn(pmm.FrameFromAddress(src.LocalAPICAddress()), mem.PageSize, vmm.FlagPresent|vmm.FlagRW|vmm.FlagDoNotCache)
	if err != nil {
		return err
	}
	ioapicPage, err := mapRegionFn(pmm.FrameFromAddress(src.IOAPICAddress()), mem.PageSize, vmm.FlagPresent|vmm.FlagRW|vmm.FlagDoNotCache)
	if err != nil {
		return err
	}

	localAPICBase = lapicPage.Address()
	ioAPICBase = ioapicPage.Address()

	// Mask every redirection entry; callers unmask them one by one via
	// EnableIRQ once their handlers are installed.
	numEntries := (readIOAPICReg(1) >> 16 & 0xff) + 1
	for gsi := uint32(0); gsi < numEntries; gsi++ {
		disableGSI(gsi)
	}

	writeAPICReg(localAPICBase, apicRegSpurious, apicSpuriousEnable|apicSpuriousVector)

	usingAPIC = true
	return nil
}

func readAPICReg(base uintptr, reg uint32) uint32 {
	return *(*uint32)(unsafe.Pointer(base + uintptr(reg)))
}

func writeAPICReg(base uintptr, reg uint32, val uint32) {
	*(*uint32)(unsafe.Pointer(base + uintptr(reg))) = val
}

func readIOAPICReg(reg uint32) uint32 {
	writeAPICReg(ioAPICBase, ioapicRegSelect, reg)
	return readAPICReg(ioAPICBase, ioapicRegWindow)
}

func writeIOAPICReg(reg uint32, val uint32) {
	writeAPICReg(ioAPICBase, ioapicRegSelect, reg)
	writeAPICReg(ioAPICBase, ioapicRegWindow, val)
}

func sendAPICEOI() {
	writeAPICReg(localAPICBase, apicRegEOI, 0)
}

func enableGSI(gsi uint32) {
	low := readIOAPICReg(ioapicRedirTableLow + gsi*2)
	writeIOAPICReg(ioapicRedirTableLow+gsi*2, low&^(1<<16))
}

func disableGSI(gsi uint32) {
	low := readIOAPICReg(ioapicRedirTableLow + gsi*2)
	writeIOAPICReg(ioapicRedirTableLow+gsi*2, low|(1<<16))
}
