package idt

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"

// The legacy 8259 PIC pair exposes a command and a data port for each chip.
const (
	picMasterCommandPort = 0x20
	picMasterDataPort    = 0x21
	picSlaveCommandPort  = 0xA0
	picSlaveDataPort     = 0xA1

	picEOI = 0x20

	icw1Init       = 0x10
	icw1ICW4       = 0x01
	icw4Mode8086   = 0x01
	picCascadeLine = 0x04
	picSlaveID     = 0x02
)

// IRQBaseVector is the first interrupt vector assigned to PIC/APIC-routed
// hardware IRQs. Vectors 0-31 are reserved by the CPU for exceptions so
// hardware IRQs are remapped to start right after them.
const IRQBaseVector = 0x20

var (
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
	ioWaitFn        = cpu.IOWait

	// usingAPIC is set once InitAPIC successfully brings up the local
	// APIC and IOAPIC, at which point the legacy PIC is left masked.
	usingAPIC bool
)

// initPIC remaps the master/slave 8259 PIC pair so that IRQ 0-15 map to
// vectors IRQBaseVector to IRQBaseVector+15 instead of colliding with the
// CPU exception vectors, then masks every line. Individual lines are
// unmasked by EnableIRQ once their handler is installed.
func initPIC() {
	maskMaster, maskSlave := portReadByteFn(picMasterDataPort), portReadByteFn(picSlaveDataPort)

	portWriteByteFn(picMasterCommandPort, icw1Init|icw1ICW4)
	ioWaitFn()
	portWriteByteFn(picSlaveCommandPort, icw1Init|icw1ICW4)
	ioWaitFn()

	portWriteByteFn(picMasterDataPort, IRQBaseVector)
	ioWaitFn()
	portWriteByteFn(picSlaveDataPort, IRQBaseVector+8)
	ioWaitFn()

	portWriteByteFn(picMasterDataPort, picCascadeLine)
	ioWaitFn()
	portWriteByteFn(picSlaveDataPort, picSlaveID)
	ioWaitFn()

	portWriteByteFn(picMasterDataPort, icw4Mode8086)
	ioWaitFn()
	portWriteByteFn(picSlaveDataPort, icw4Mode8086)
	ioWaitFn()

	portWriteByteFn(picMasterDataPort, maskMaster)
	portWriteByteFn(picSlaveDataPort, maskSlave)
}

// EnableIRQ unmasks the given legacy IRQ line (0-15) at the PIC.
func EnableIRQ(irqLine uint8) {
	if usingAPIC {
		enableGSI(uint32(irqLine))
		return
	}

	port := picMasterDataPort
	line := irqLine
	if irqLine >= 8 {
		port = picSlaveDataPort
		line -= 8
	}

	mask := portReadByteFn(uint16(port))
	portWriteByteFn(uint16(port), mask&^(1<<line))
}

// DisableIRQ masks the given legacy IRQ line (0-15) at the PIC.
func DisableIRQ(irqLine uint8) {
	if usingAPIC {
		disableGSI(uint32(irqLine))
		return
	}

	port := picMasterDataPort
	line := irqLine
	if irqLine >= 8 {
		port = picSlaveDataPort
		line -= 8
	}

	mask := portReadByteFn(uint16(port))
	portWriteByteFn(uint16(port), mask|(1<<line))
}

// sendEOI acknowledges an interrupt at the PIC (or local APIC) so that
// further interrupts on the same or lower-priority lines can be delivered.
func sendEOI(irqLine uint8) {
	if usingAPIC {
		sendAPICEOI()
		return
	}

	if irqLine >= 8 {
		portWriteByteFn(picSlaveCommandPort, picEOI)
	}
	portWriteByteFn(picMasterCommandPort, picEOI)
}
