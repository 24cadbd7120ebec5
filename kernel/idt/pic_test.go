package idt

import "testing"

func withMockPorts(t *testing.T) (ports map[uint16]uint8, restore func()) {
	origWrite, origRead, origWait := portWriteByteFn, portReadByteFn, ioWaitFn
	ports = map[uint16]uint8{
		picMasterDataPort: 0xff,
		picSlaveDataPort:  0xff,
	}

	portWriteByteFn = func(port uint16, value uint8) { ports[port] = value }
	portReadByteFn = func(port uint16) uint8 { return ports[port] }
	ioWaitFn = func() {}

	return ports, func() {
		portWriteByteFn = origWrite
		portReadByteFn = origRead
		ioWaitFn = origWait
	}
}

func TestInitPICPreservesMasks(t *testing.T) {
	ports, restore := withMockPorts(t)
	defer restore()

	ports[picMasterDataPort] = 0xb4
	ports[picSlaveDataPort] = 0x0f

	initPIC()

	if ports[picMasterDataPort] != 0xb4 {
		t.Errorf("expected master mask to be preserved across remap; got 0x%x", ports[picMasterDataPort])
	}
	if ports[picSlaveDataPort] != 0x0f {
		t.Errorf("expected slave mask to be preserved across remap; got 0x%x", ports[picSlaveDataPort])
	}
}

func TestEnableDisableIRQ(t *testing.T) {
	ports, restore := withMockPorts(t)
	defer restore()
	defer func() { usingAPIC = false }()

	usingAPIC = false
	ports[picMasterDataPort] = 0xff
	ports[picSlaveDataPort] = 0xff

	EnableIRQ(1)
	if ports[picMasterDataPort]&(1<<1) != 0 {
		t.Error("expected IRQ1 to be unmasked on the master PIC")
	}

	EnableIRQ(9)
	if ports[picSlaveDataPort]&(1<<1) != 0 {
		t.Error("expected IRQ9 (slave line 1) to be unmasked on the slave PIC")
	}

	DisableIRQ(1)
	if ports[picMasterDataPort]&(1<<1) == 0 {
		t.Error("expected IRQ1 to be masked again")
	}
}

func TestSendEOI(t *testing.T) {
	ports, restore := withMockPorts(t)
	defer restore()
	defer func() { usingAPIC = false }()

	usingAPIC = false

	sendEOI(10)
	if ports[picMasterCommandPort] != picEOI {
		t.Error("expected master EOI to be sent for a slave-routed IRQ")
	}
	if ports[picSlaveCommandPort] != picEOI {
		t.Error("expected slave EOI to be sent for a slave-routed IRQ")
	}

	delete(ports, picMasterCommandPort)
	sendEOI(1)
	if ports[picMasterCommandPort] != picEOI {
		t.Error("expected master EOI to be sent for a master-routed IRQ")
	}
}
