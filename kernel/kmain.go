package kernel

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/blockio"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/driver"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/gdt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/goruntime"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/hal"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/hal/multiboot"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/kfmt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/heap"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm/allocator"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sync"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/syscall"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/vfs"
)

// defaultHeapSize is the size of the kernel heap reserved at boot.
const defaultHeapSize = 16 * mem.Mb

// defaultPITHz is the PIT tick rate used when no MADT/local-APIC timer is
// brought up in its place.
const defaultPITHz = 100

var errKmainReturned = &Error{Module: "kmain", Message: "Kmain returned"}

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function is invoked by the rt0 assembly code
// after setting up the GDT and a minimal g0 struct that allows Go code to
// run on the 4K stack the assembly code allocated.
//
// Unlike the teacher, which received the multiboot info pointer and the
// kernel image bounds as Kmain arguments, this core's rt0 trampoline (see
// boot.go) calls Kmain with no arguments; the three values are instead
// fetched through multibootInfoPtr/kernelImageStart/kernelImageEnd, the
// same body-less-function-implemented-in-assembly convention the rest of
// this core's CPU-proximate primitives already use.
//
// Kmain is not expected to return. If it does, the rt0 code halts the CPU.
//
//go:noinline
func Kmain() {
	multiboot.SetInfoPtr(multibootInfoPtr())

	gdt.Init()
	idt.Init()
	idt.InitPIT(defaultPITHz)

	var err *Error
	if err = allocator.Init(kernelImageStart(), kernelImageEnd()); err != nil {
		kfmt.Panic(err)
	}
	if err = vmm.Init(vmm.UserSpaceSplit); err != nil {
		kfmt.Panic(err)
	}
	if err = goruntime.Init(); err != nil {
		kfmt.Panic(err)
	}

	// allocator.Init wires vmm's frame allocator to a bootstrap-only early
	// allocator; switch both vmm and sched over to the real bitmap
	// allocator now that the Go runtime (and therefore its backing heap)
	// is up.
	vmm.SetFrameAllocator(allocator.FrameAllocator.AllocFrame)
	sched.SetFrameAllocator(allocator.FrameAllocator.AllocFrame)
	sched.SetFrameReleaser(allocator.FrameAllocator.FreeFrame)

	if err = heap.Init(defaultHeapSize, allocator.FrameAllocator.AllocFrame); err != nil {
		kfmt.Panic(err)
	}

	// sync's spinlocks back off by yielding the current task; that's only
	// meaningful once the scheduler exists.
	sync.SetYieldFunc(sched.Yield)

	if err = sched.Init(); err != nil {
		kfmt.Panic(err)
	}

	hal.DetectHardware()

	vfs.Init()
	blockio.Init()
	driver.Init()
	syscall.Init()

	kfmt.Printf("AlvOS core ready\n")

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
