// Package allocator implements the physical frame allocators used by the
// kernel: a rudimentary bootstrap allocator (bootMemAllocator) that hands out
// frames directly from the bootloader's memory map, and a bitmap-backed
// allocator (BitmapAllocator) that takes over once the bootstrap allocator's
// reservations can be replayed into a free bitmap.
package allocator

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/hal/multiboot"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/kfmt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
)

var (
	// earlyAllocator is used to bootstrap frame allocations before the
	// bitmap allocator (FrameAllocator) is ready to take over.
	earlyAllocator bootMemAllocator

	errBootAllocOutOfMemory = &kernel.Error{Module: "boot_mem_alloc", Message: "out of memory"}
)

// bootMemAllocator implements a rudimentary physical memory allocator which is
// used to bootstrap the kernel.
//
// The allocator implementation uses the memory region information provided by
// the bootloader to detect free memory blocks and return the next available
// free frame, skipping over the frames occupied by the kernel image itself.
//
// Due to the way that the allocator works, it is not possible to free
// allocated pages. Once the bitmap allocator is initialized, it replays the
// allocation count against the system memory map to mark the frames handed
// out here as reserved.
type bootMemAllocator struct {
	// kernelStartFrame and kernelEndFrame mark the (inclusive) frame
	// range occupied by the loaded kernel image. The allocator will never
	// hand out a frame in this range.
	kernelStartFrame, kernelEndFrame pmm.Frame

	// allocCount tracks the total number of allocated frames.
	allocCount uint32

	// lastAllocFrame tracks the last allocated frame index.
	lastAllocFrame pmm.Frame
	initialized    bool
}

// init sets up the boot memory allocator internal state using the supplied
// kernel image bounds.
func (alloc *bootMemAllocator) init(kernelStart, kernelEnd uintptr) {
	alloc.kernelStartFrame = pmm.FrameFromAddress(kernelStart)
	alloc.kernelEndFrame = pmm.FrameFromAddress(kernelEnd)
	alloc.allocCount = 0
	alloc.lastAllocFrame = 0
	alloc.initialized = false
}

// printMemoryMap dumps the system memory map reported by the bootloader to
// the early console.
func (alloc *bootMemAllocator) printMemoryMap() {
	kfmt.Printf("[boot_mem_alloc] system memory map:\n")
	var totalFree mem.Size
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		kfmt.Printf("\t[0x%x - 0x%x], size: %d, type: %d\n", uint32(region.PhysAddress), uint32(region.PhysAddress+region.Length), uint32(region.Length), uint32(region.Type))
		if region.Type == multiboot.MemAvailable {
			totalFree += mem.Size(region.Length)
		}
		return true
	})
	kfmt.Printf("[boot_mem_alloc] free memory: %dKb\n", uint32(totalFree/mem.Kb))
}

// AllocFrame scans the system memory regions reported by the bootloader and
// reserves the next available free frame that does not fall within the
// kernel image.
func (alloc *bootMemAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	var (
		foundFrame                       = pmm.InvalidFrame
		regionStartFrame, regionEndFrame pmm.Frame
	)

	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		regionStartFrame = pmm.FrameFromAddress(uintptr((mem.Size(region.PhysAddress) + (mem.PageSize - 1)) &^ (mem.PageSize - 1)))
		regionEndFrame = pmm.Frame((uintptr(mem.Size(region.PhysAddress+region.Length)) &^ (uintptr(mem.PageSize) - 1)) >> mem.PageShift)
		if regionEndFrame > 0 {
			regionEndFrame--
		}

		var candidate pmm.Frame
		switch {
		case alloc.initialized && alloc.lastAllocFrame >= regionStartFrame && alloc.lastAllocFrame < regionEndFrame:
			candidate = alloc.lastAllocFrame + 1
		case alloc.initialized && alloc.lastAllocFrame >= regionEndFrame:
			return true
		default:
			candidate = regionStartFrame
		}

		// Skip over the kernel image.
		if candidate >= alloc.kernelStartFrame && candidate <= alloc.kernelEndFrame {
			candidate = alloc.kernelEndFrame + 1
		}

		if candidate > regionEndFrame {
			return true
		}

		foundFrame = candidate
		return false
	})

	if foundFrame == pmm.InvalidFrame {
		return pmm.InvalidFrame, errBootAllocOutOfMemory
	}

	alloc.allocCount++
	alloc.lastAllocFrame = foundFrame
	alloc.initialized = true

	return foundFrame, nil
}
