// +build 386

package vmm

import "math"

const (
	// pageLevels indicates the number of page table levels supported by
	// 32-bit (non-PAE) paging: a page directory and a page table.
	pageLevels = 2

	// ptePhysPageMask is a mask that allows us to extract the physical
	// memory address pointed to by a page table entry. Bits 12-31 contain
	// the physical frame address.
	ptePhysPageMask = uintptr(0xfffff000)

	// tempMappingAddr is a reserved virtual page address used for
	// temporary physical page mappings (e.g. when mapping inactive PDTs).
	// It lives in directory slot 1022 (table 1023), just below the
	// self-mapped recursive slot 1023 used by pdtVirtualAddr.
	tempMappingAddr = uintptr(0xffbff000)

	// UserSpaceSplit is the highest virtual address available to
	// user-mode mappings. Every address at or above the split belongs to
	// the kernel and can never be the target of a user pointer.
	UserSpaceSplit = uintptr(0xc0000000)
)

var (
	// pdtVirtualAddr exploits a recursive mapping installed in the last
	// page directory entry (index 1023), which points back to the page
	// directory's own physical frame. Accessing this address lets the
	// MMU's own translation machinery hand us a pointer to the active
	// PDT's contents without a separate physical-to-virtual table.
	pdtVirtualAddr = uintptr(math.MaxUint32 &^ ((1 << 12) - 1))

	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. 32-bit paging uses 10 bits per
	// level (1024 entries per table).
	pageLevelBits = [pageLevels]uint8{
		10,
		10,
	}

	// pageLevelShifts defines the shift required to access each page
	// table component of a virtual address.
	pageLevelShifts = [pageLevels]uint8{
		22,
		12,
	}
)

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set when using 4Mb pages instead of 4K pages.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory address
	// for this page when swapping page tables by updating CR3.
	FlagGlobal

	// FlagCopyOnWrite is used to implement copy-on-write functionality. This
	// flag and FlagRW are mutually exclusive.
	FlagCopyOnWrite = 1 << 9
)
