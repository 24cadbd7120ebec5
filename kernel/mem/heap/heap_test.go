package heap

import (
	"testing"
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
)

func resetState(backing []byte) {
	initialized = false
	listHead = nil
	reserveRegionFn = func(size mem.Size) (uintptr, *kernel.Error) {
		return uintptr(unsafe.Pointer(&backing[0])), nil
	}
	mapFn = func(_ vmm.Page, _ pmm.Frame, _ vmm.PageTableEntryFlag) *kernel.Error { return nil }
	disableInterruptsFn = func() {}
	enableInterruptsFn = func() {}
}

func TestInit(t *testing.T) {
	defer func() {
		reserveRegionFn = vmm.EarlyReserveRegion
		mapFn = vmm.Map
		disableInterruptsFn = cpu.DisableInterrupts
		enableInterruptsFn = cpu.EnableInterrupts
		initialized = false
		listHead = nil
	}()

	backing := make([]byte, mem.PageSize)
	resetState(backing)

	allocCount := 0
	allocFrame := func() (pmm.Frame, *kernel.Error) {
		defer func() { allocCount++ }()
		return pmm.Frame(allocCount), nil
	}

	if err := Init(mem.Size(1), allocFrame); err != nil {
		t.Fatal(err)
	}

	if exp := 1; allocCount != exp {
		t.Errorf("expected %d frame allocations for a sub-page-size heap; got %d", exp, allocCount)
	}

	if err := Init(mem.Size(1), allocFrame); err != errAlreadyInit {
		t.Fatalf("expected errAlreadyInit on second call to Init; got %v", err)
	}
}

func TestInitAllocFails(t *testing.T) {
	defer func() {
		reserveRegionFn = vmm.EarlyReserveRegion
		mapFn = vmm.Map
		disableInterruptsFn = cpu.DisableInterrupts
		enableInterruptsFn = cpu.EnableInterrupts
		initialized = false
		listHead = nil
	}()

	backing := make([]byte, mem.PageSize)
	resetState(backing)

	expErr := &kernel.Error{Module: "test", Message: "out of frames"}
	if err := Init(mem.Size(1), func() (pmm.Frame, *kernel.Error) { return pmm.InvalidFrame, expErr }); err != expErr {
		t.Fatalf("expected error %v; got %v", expErr, err)
	}
}

func TestAllocAndFree(t *testing.T) {
	defer func() {
		reserveRegionFn = vmm.EarlyReserveRegion
		mapFn = vmm.Map
		disableInterruptsFn = cpu.DisableInterrupts
		enableInterruptsFn = cpu.EnableInterrupts
		initialized = false
		listHead = nil
	}()

	backing := make([]byte, 4*mem.PageSize)
	resetState(backing)

	if err := Init(mem.Size(len(backing)), func() (pmm.Frame, *kernel.Error) { return 0, nil }); err != nil {
		t.Fatal(err)
	}

	p1, err := Alloc(64)
	if err != nil {
		t.Fatal(err)
	}

	p2, err := Alloc(128)
	if err != nil {
		t.Fatal(err)
	}

	if p1 == p2 {
		t.Fatal("expected distinct allocations to return distinct pointers")
	}

	stats := GetStats()
	if stats.Used == 0 {
		t.Error("expected non-zero used bytes after allocating")
	}

	if err := Free(p1); err != nil {
		t.Fatal(err)
	}

	if err := Free(p1); err != errInvalidFree {
		t.Fatalf("expected errInvalidFree on double-free; got %v", err)
	}

	if err := Free(p2); err != nil {
		t.Fatal(err)
	}

	stats = GetStats()
	if stats.Used != 0 {
		t.Errorf("expected all memory to be free after releasing all allocations; used = %d", stats.Used)
	}

	// The whole region should have coalesced back into a single segment.
	if listHead.next != nil {
		t.Error("expected adjacent free segments to coalesce into one")
	}
}

func TestAllocOutOfMemory(t *testing.T) {
	defer func() {
		reserveRegionFn = vmm.EarlyReserveRegion
		mapFn = vmm.Map
		disableInterruptsFn = cpu.DisableInterrupts
		enableInterruptsFn = cpu.EnableInterrupts
		initialized = false
		listHead = nil
	}()

	backing := make([]byte, mem.PageSize)
	resetState(backing)

	if err := Init(mem.Size(len(backing)), func() (pmm.Frame, *kernel.Error) { return 0, nil }); err != nil {
		t.Fatal(err)
	}

	if _, err := Alloc(mem.Size(len(backing))); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory for an allocation larger than the heap; got %v", err)
	}
}
