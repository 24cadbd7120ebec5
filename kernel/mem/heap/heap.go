// Package heap implements a byte-granular kernel allocator backed by a
// statically reserved virtual region that is mapped to physically
// contiguous frames at Init time. The allocator tracks its free and
// allocated blocks using an intrusive doubly-linked list of segment
// headers embedded at the start of each block, in the same spirit as the
// bitmap allocator's pool bookkeeping in kernel/mem/pmm/allocator.
//
// Block mutations are guarded by a spinlock and performed with interrupts
// masked so that kmalloc/kfree remain safe to call from IRQ handlers.
package heap

import (
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sync"
)

var (
	// reserveRegionFn and mapFn are used by tests and are automatically
	// inlined by the compiler when building the kernel.
	reserveRegionFn = vmm.EarlyReserveRegion
	mapFn           = vmm.Map

	// disableInterruptsFn and enableInterruptsFn are used by tests to
	// avoid executing privileged instructions outside ring 0.
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts

	lock sync.Spinlock

	listHead *segment

	errOutOfMemory = &kernel.Error{Module: "heap", Message: "out of memory"}
	errAlreadyInit = &kernel.Error{Module: "heap", Message: "heap is already initialized"}
	errInvalidFree = &kernel.Error{Module: "heap", Message: "pointer does not belong to the heap"}
	initialized    bool
)

// segmentSize is the size, in bytes, of a segment header. Every block
// handed out by Alloc is prefixed by one of these; the pointer returned to
// the caller points past it.
var segmentSize = mem.Size(unsafe.Sizeof(segment{}))

// segment describes a block of heap memory, free or allocated. Segments
// form a doubly-linked list covering the entire reserved heap region with
// no gaps: freeing coalesces a segment with its immediate neighbours
// whenever they are also free.
type segment struct {
	next, prev *segment
	size       mem.Size
	allocated  bool
}

// dataPtr returns the address of the usable block that follows this
// segment's header.
func (s *segment) dataPtr() uintptr {
	return uintptr(unsafe.Pointer(s)) + uintptr(segmentSize)
}

// segmentFromDataPtr recovers the segment header that precedes a pointer
// previously handed out by Alloc.
func segmentFromDataPtr(ptr uintptr) *segment {
	return (*segment)(unsafe.Pointer(ptr - uintptr(segmentSize)))
}

// Init reserves a virtual memory region of the requested size, maps it to
// physically contiguous frames obtained via allocFrame and sets up the
// region as a single free segment. Init may only be called once.
func Init(size mem.Size, allocFrame vmm.FrameAllocatorFn) *kernel.Error {
	if initialized {
		return errAlreadyInit
	}

	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)

	startAddr, err := reserveRegionFn(size)
	if err != nil {
		return err
	}

	pageCount := size >> mem.PageShift
	for page, addr := vmm.PageFromAddress(startAddr), startAddr; pageCount > 0; pageCount, page, addr = pageCount-1, page+1, addr+uintptr(mem.PageSize) {
		frame, err := allocFrame()
		if err != nil {
			return err
		}

		if err = mapFn(page, frame, vmm.FlagPresent|vmm.FlagRW); err != nil {
			return err
		}
	}

	listHead = (*segment)(unsafe.Pointer(startAddr))
	*listHead = segment{size: size}

	initialized = true
	return nil
}

// Alloc reserves and returns a block of at least size bytes, or
// errOutOfMemory if no free segment large enough exists. Alloc uses a
// best-fit search over the free list to keep fragmentation low.
func Alloc(size mem.Size) (uintptr, *kernel.Error) {
	// Round up to the natural word alignment.
	align := mem.Size(unsafe.Sizeof(uintptr(0)))
	size = (size + (align - 1)) &^ (align - 1)

	disableInterruptsFn()
	lock.Acquire()
	defer func() {
		lock.Release()
		enableInterruptsFn()
	}()

	needed := size + segmentSize

	var best *segment
	for cur := listHead; cur != nil; cur = cur.next {
		if cur.allocated || cur.size < needed {
			continue
		}

		if best == nil || cur.size < best.size {
			best = cur
		}
	}

	if best == nil {
		return 0, errOutOfMemory
	}

	// Split off the remainder into its own free segment if it is large
	// enough to host another allocation.
	if remaining := best.size - needed; remaining > segmentSize {
		newSeg := (*segment)(unsafe.Pointer(uintptr(unsafe.Pointer(best)) + uintptr(needed)))
		*newSeg = segment{
			next: best.next,
			prev: best,
			size: remaining,
		}

		if newSeg.next != nil {
			newSeg.next.prev = newSeg
		}

		best.next = newSeg
		best.size = needed
	}

	best.allocated = true
	return best.dataPtr(), nil
}

// Free releases a block previously returned by Alloc, coalescing it with
// any adjacent free segments.
func Free(ptr uintptr) *kernel.Error {
	if ptr == 0 {
		return nil
	}

	disableInterruptsFn()
	lock.Acquire()
	defer func() {
		lock.Release()
		enableInterruptsFn()
	}()

	seg := segmentFromDataPtr(ptr)
	if !seg.allocated {
		return errInvalidFree
	}

	seg.allocated = false

	if seg.prev != nil && !seg.prev.allocated {
		prev := seg.prev
		prev.next = seg.next
		prev.size += seg.size
		if seg.next != nil {
			seg.next.prev = prev
		}
		seg = prev
	}

	if seg.next != nil && !seg.next.allocated {
		next := seg.next
		seg.size += next.size
		seg.next = next.next
		if next.next != nil {
			next.next.prev = seg
		}
	}

	return nil
}

// Stats describes the current utilization of the kernel heap.
type Stats struct {
	Used mem.Size
	Free mem.Size
}

// GetStats walks the segment list and reports the number of bytes
// currently allocated and free. Segment header overhead is counted as
// used space.
func GetStats() Stats {
	disableInterruptsFn()
	lock.Acquire()
	defer func() {
		lock.Release()
		enableInterruptsFn()
	}()

	var stats Stats
	for cur := listHead; cur != nil; cur = cur.next {
		if cur.allocated {
			stats.Used += cur.size
		} else {
			stats.Free += cur.size
		}
	}

	return stats
}
