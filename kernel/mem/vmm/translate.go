package vmm

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func Translate(virtAddr uintptr) (uintptr, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	// Calculate the physical address by taking the physical frame address
	// and appending the offset from the virtual address.
	physAddr := pte.Frame().Address() + PageOffset(virtAddr)
	return physAddr, nil
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1)
}

// GetPageFlags returns the flags set on the page table entry that maps
// virtAddr, or ErrInvalidMapping if no such mapping exists.
func GetPageFlags(virtAddr uintptr) (PageTableEntryFlag, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}
	return PageTableEntryFlag(*pte) &^ PageTableEntryFlag(ptePhysPageMask), nil
}

// IsMapped returns true if virtAddr has a present mapping in the active
// page directory.
func IsMapped(virtAddr uintptr) bool {
	_, err := pteForAddress(virtAddr)
	return err == nil
}
