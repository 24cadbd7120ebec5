package allocator

import (
	"reflect"
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/hal/multiboot"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/kfmt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
)

var (
	// FrameAllocator is a BitmapAllocator instance that serves as the
	// primary allocator for reserving pages once Init has completed.
	FrameAllocator BitmapAllocator

	// The following functions are used by tests to mock calls to the vmm
	// package and are automatically inlined by the compiler.
	reserveRegionFn = vmm.EarlyReserveRegion
	mapFn           = vmm.Map
)

type markAs bool

const (
	markReserved markAs = false
	markFree     markAs = true
)

type framePool struct {
	// startFrame is the frame number for the first page in this pool.
	// each free bitmap entry i corresponds to frame (startFrame + i).
	startFrame pmm.Frame

	// endFrame tracks the last frame in the pool (inclusive).
	endFrame pmm.Frame

	// freeCount tracks the available pages in this pool. The allocator
	// can use this field to skip fully allocated pools without the need
	// to scan the free bitmap.
	freeCount uint32

	// freeBitmap tracks used/free pages in the pool.
	freeBitmap    []uint64
	freeBitmapHdr reflect.SliceHeader
}

// BitmapAllocator implements a physical frame allocator that tracks frame
// reservations across the available memory pools using bitmaps.
type BitmapAllocator struct {
	// totalPages tracks the total number of pages across all pools.
	totalPages uint32

	// reservedPages tracks the number of reserved pages across all pools.
	reservedPages uint32

	// nextHint is a rotating pool/bit hint used to amortize first-fit
	// scans across successive allocations.
	nextHintPool int

	pools    []framePool
	poolsHdr reflect.SliceHeader
}

// init allocates space for the allocator structures using the early bootmem
// allocator and flags any allocated pages as reserved.
func (alloc *BitmapAllocator) init() *kernel.Error {
	if err := alloc.setupPoolBitmaps(); err != nil {
		return err
	}

	alloc.reserveKernelFrames()
	alloc.reserveEarlyAllocatorFrames()
	alloc.printStats()
	return nil
}

// setupPoolBitmaps uses the early allocator and vmm region reservation helper
// to initialize the list of available pools and their free bitmap slices.
func (alloc *BitmapAllocator) setupPoolBitmaps() *kernel.Error {
	var (
		err                 *kernel.Error
		sizeofPool          = unsafe.Sizeof(framePool{})
		pageSizeMinus1      = uint32(mem.PageSize - 1)
		requiredBitmapBytes mem.Size
	)

	// Detect available memory regions and calculate their pool bitmap
	// requirements.
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		alloc.poolsHdr.Len++
		alloc.poolsHdr.Cap++

		regionStartFrame := pmm.Frame((uint32(region.PhysAddress) + pageSizeMinus1) &^ pageSizeMinus1 >> mem.PageShift)
		regionEndFrame := pmm.Frame((uint32(region.PhysAddress+region.Length)&^pageSizeMinus1)>>mem.PageShift) - 1
		pageCount := uint32(regionEndFrame - regionStartFrame)
		alloc.totalPages += pageCount

		// To represent the free page bitmap we need pageCount bits. Since our
		// slice uses uint64 for storing the bitmap we need to round up the
		// required bits so they are a multiple of 64 bits
		requiredBitmapBytes += mem.Size(((pageCount + 63) &^ 63) >> 3)
		return true
	})

	// Reserve enough pages to hold the allocator state
	requiredBytes := mem.Size((uint32(uintptr(alloc.poolsHdr.Len)*sizeofPool)+uint32(requiredBitmapBytes)+pageSizeMinus1) &^ pageSizeMinus1)
	requiredPages := requiredBytes >> mem.PageShift
	alloc.poolsHdr.Data, err = reserveRegionFn(requiredBytes)
	if err != nil {
		return err
	}

	for page, index := vmm.PageFromAddress(alloc.poolsHdr.Data), mem.Size(0); index < requiredPages; page, index = page+1, index+1 {
		nextFrame, err := earlyAllocFrame()
		if err != nil {
			return err
		}

		if err = mapFn(page, nextFrame, vmm.FlagPresent|vmm.FlagRW); err != nil {
			return err
		}

		kernel.Memset(page.Address(), 0, uintptr(mem.PageSize))
	}

	alloc.pools = *(*[]framePool)(unsafe.Pointer(&alloc.poolsHdr))

	// Run a second pass to initialize the free bitmap slices for all pools
	bitmapStartAddr := alloc.poolsHdr.Data + uintptr(alloc.poolsHdr.Len)*sizeofPool
	poolIndex := 0
	multiboot.VisitMemRegions(func(region *multiboot.MemoryMapEntry) bool {
		if region.Type != multiboot.MemAvailable {
			return true
		}

		regionStartFrame := pmm.Frame((uint32(region.PhysAddress) + pageSizeMinus1) &^ pageSizeMinus1 >> mem.PageShift)
		regionEndFrame := pmm.Frame((uint32(region.PhysAddress+region.Length)&^pageSizeMinus1)>>mem.PageShift) - 1
		bitmapBytes := uintptr(((regionEndFrame - regionStartFrame) + 63) &^ 63 >> 3)

		alloc.pools[poolIndex].startFrame = regionStartFrame
		alloc.pools[poolIndex].endFrame = regionEndFrame
		alloc.pools[poolIndex].freeCount = uint32(regionEndFrame-regionStartFrame) + 1
		alloc.pools[poolIndex].freeBitmapHdr.Len = int(bitmapBytes >> 3)
		alloc.pools[poolIndex].freeBitmapHdr.Cap = alloc.pools[poolIndex].freeBitmapHdr.Len
		alloc.pools[poolIndex].freeBitmapHdr.Data = bitmapStartAddr
		alloc.pools[poolIndex].freeBitmap = *(*[]uint64)(unsafe.Pointer(&alloc.pools[poolIndex].freeBitmapHdr))

		bitmapStartAddr += bitmapBytes
		poolIndex++
		return true
	})

	return nil
}

// markFrame updates the reservation flag for the bitmap entry that corresponds
// to the supplied frame.
func (alloc *BitmapAllocator) markFrame(poolIndex int, frame pmm.Frame, flag markAs) {
	if poolIndex < 0 || frame > alloc.pools[poolIndex].endFrame {
		return
	}

	// The offset in the block is given by: frame % 64. As the bitmap uses a
	// big-endian representation we need to set the bit at index: 63 - offset
	relFrame := frame - alloc.pools[poolIndex].startFrame
	block := relFrame >> 6
	mask := uint64(1) << (63 - (relFrame - block<<6))
	switch flag {
	case markFree:
		alloc.pools[poolIndex].freeBitmap[block] &^= mask
		alloc.pools[poolIndex].freeCount++
		alloc.reservedPages--
	case markReserved:
		alloc.pools[poolIndex].freeBitmap[block] |= mask
		alloc.pools[poolIndex].freeCount--
		alloc.reservedPages++
	}
}

// poolForFrame returns the index of the pool that contains frame or -1 if
// the frame is not contained in any of the available memory pools (e.g it
// points to a reserved memory region).
func (alloc *BitmapAllocator) poolForFrame(frame pmm.Frame) int {
	for poolIndex, pool := range alloc.pools {
		if frame >= pool.startFrame && frame <= pool.endFrame {
			return poolIndex
		}
	}

	return -1
}

// reserveKernelFrames makes as reserved the bitmap entries for the frames
// occupied by the kernel image.
func (alloc *BitmapAllocator) reserveKernelFrames() {
	poolIndex := alloc.poolForFrame(earlyAllocator.kernelStartFrame)
	for frame := earlyAllocator.kernelStartFrame; frame <= earlyAllocator.kernelEndFrame; frame++ {
		alloc.markFrame(poolIndex, frame, markReserved)
	}
}

// reserveEarlyAllocatorFrames makes as reserved the bitmap entries for the frames
// already allocated by the early allocator.
func (alloc *BitmapAllocator) reserveEarlyAllocatorFrames() {
	// We now need to decommission the early allocator by flagging all
	// frames allocated by it as reserved. The allocator itself does not
	// track individual frames but only a counter of allocated frames. To
	// get the list of frames we reset its internal state and "replay"
	// the allocation requests to get the correct frames.
	allocCount := earlyAllocator.allocCount
	earlyAllocator.allocCount, earlyAllocator.lastAllocFrame, earlyAllocator.initialized = 0, 0, false
	for i := uint32(0); i < allocCount; i++ {
		frame, _ := earlyAllocator.AllocFrame()
		alloc.markFrame(
			alloc.poolForFrame(frame),
			frame,
			markReserved,
		)
	}
}

// AllocFrame reserves and returns the first available free frame, using a
// rotating pool hint to amortize repeated scans.
func (alloc *BitmapAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	poolCount := len(alloc.pools)
	for i := 0; i < poolCount; i++ {
		poolIndex := (alloc.nextHintPool + i) % poolCount
		pool := &alloc.pools[poolIndex]
		if pool.freeCount == 0 {
			continue
		}

		for block := range pool.freeBitmap {
			if pool.freeBitmap[block] == ^uint64(0) {
				continue
			}

			for bit := 0; bit < 64; bit++ {
				mask := uint64(1) << (63 - bit)
				if pool.freeBitmap[block]&mask != 0 {
					continue
				}

				relFrame := pmm.Frame(block<<6 + bit)
				frame := pool.startFrame + relFrame
				if frame > pool.endFrame {
					continue
				}

				alloc.nextHintPool = poolIndex
				alloc.markFrame(poolIndex, frame, markReserved)
				return frame, nil
			}
		}
	}

	return pmm.InvalidFrame, errAllocOutOfMemory
}

// FreeFrame releases a previously allocated frame back to its pool. Freeing
// an already-free frame is a no-op; callers are expected to never double-free
// an allocated frame outside of this debug assist.
func (alloc *BitmapAllocator) FreeFrame(frame pmm.Frame) {
	poolIndex := alloc.poolForFrame(frame)
	if poolIndex < 0 {
		return
	}

	if !alloc.frameReserved(poolIndex, frame) {
		return
	}

	alloc.markFrame(poolIndex, frame, markFree)
}

// frameReserved reports whether frame is currently marked reserved in its pool.
func (alloc *BitmapAllocator) frameReserved(poolIndex int, frame pmm.Frame) bool {
	pool := &alloc.pools[poolIndex]
	relFrame := frame - pool.startFrame
	block := relFrame >> 6
	mask := uint64(1) << (63 - (relFrame - block<<6))
	return pool.freeBitmap[block]&mask != 0
}

// TotalPages returns the total number of frames tracked by the allocator.
func (alloc *BitmapAllocator) TotalPages() uint32 { return alloc.totalPages }

// FreePages returns the number of frames that are currently unallocated.
func (alloc *BitmapAllocator) FreePages() uint32 { return alloc.totalPages - alloc.reservedPages }

func (alloc *BitmapAllocator) printStats() {
	kfmt.Printf(
		"[bitmap_alloc] page stats: free: %d/%d (%d reserved)\n",
		alloc.totalPages-alloc.reservedPages,
		alloc.totalPages,
		alloc.reservedPages,
	)
}

// earlyAllocFrame is a helper that delegates a frame allocation request to the
// early allocator instance. This function is passed as an argument to
// vmm.SetFrameAllocator instead of earlyAllocator.AllocFrame. The latter
// confuses the compiler's escape analysis into thinking that
// earlyAllocator.Frame escapes to heap.
func earlyAllocFrame() (pmm.Frame, *kernel.Error) {
	return earlyAllocator.AllocFrame()
}

var errAllocOutOfMemory = &kernel.Error{Module: "bitmap_alloc", Message: "out of memory"}

// Init sets up the kernel physical memory allocation sub-system. kernelStart
// and kernelEnd must span the addresses occupied by the loaded kernel image
// so that its frames are never handed out by AllocFrame.
func Init(kernelStart, kernelEnd uintptr) *kernel.Error {
	earlyAllocator.init(kernelStart, kernelEnd)
	earlyAllocator.printMemoryMap()

	vmm.SetFrameAllocator(earlyAllocFrame)
	return FrameAllocator.init()
}
