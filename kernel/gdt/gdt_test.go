package gdt

import "testing"

func TestEncodeDescriptor(t *testing.T) {
	d := encodeDescriptor(0x10000000, 0xfffff, accessPresent|accessDescType|accessExecutable|accessReadWrite, flags4KGranularity|flags32BitMode)

	if got := uint32(d & 0xffff); got != 0xffff {
		t.Errorf("expected low limit bits to be 0xffff; got 0x%x", got)
	}

	if got := uint8((d >> 48) & 0xf); got != 0xf {
		t.Errorf("expected high limit nibble to be 0xf; got 0x%x", got)
	}

	if got := uint32((d >> 16) & 0xffffff) | (uint32((d>>56)&0xff) << 24); got != 0x10000000 {
		t.Errorf("expected base to round-trip to 0x10000000; got 0x%x", got)
	}

	if got := uint8((d >> 40) & 0xff); got != accessPresent|accessDescType|accessExecutable|accessReadWrite {
		t.Errorf("unexpected access byte: 0x%x", got)
	}
}

func TestSetKernelStack(t *testing.T) {
	systemTSS = taskStateSegment{}

	SetKernelStack(0xdeadbeef)

	if systemTSS.esp0 != 0xdeadbeef {
		t.Errorf("expected esp0 to be updated; got 0x%x", systemTSS.esp0)
	}
}
