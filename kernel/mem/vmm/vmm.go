package vmm

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/kfmt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler when building the kernel.
	handleExceptionWithCodeFn = idt.HandleExceptionWithCode
	readCR2Fn                 = cpu.ReadCR2
	translateFn               = Translate

	errUnrecoverableFault = &kernel.Error{Module: "vmm", Message: "page/gpf fault"}
)

func pageFaultHandler(errorCode uint32, frame *idt.Frame, regs *idt.Regs) {
	var (
		faultAddress = readCR2Fn()
		faultPage    = PageFromAddress(faultAddress)
		pageEntry    *pageTableEntry
	)

	walk(faultPage.Address(), func(pteLevel uint8, pte *pageTableEntry) bool {
		nextIsPresent := pte.HasFlags(FlagPresent)

		if pteLevel == pageLevels-1 && nextIsPresent {
			pageEntry = pte
		}

		return nextIsPresent
	})

	// CoW is supported for RO pages with the CoW flag set.
	if pageEntry != nil && !pageEntry.HasFlags(FlagRW) && pageEntry.HasFlags(FlagCopyOnWrite) {
		var (
			copyFrame pmm.Frame
			tmpPage   Page
			err       *kernel.Error
		)

		if copyFrame, err = frameAllocator(); err != nil {
			nonRecoverablePageFault(faultAddress, errorCode, frame, regs, err)
		} else if tmpPage, err = mapTemporaryFn(copyFrame); err != nil {
			nonRecoverablePageFault(faultAddress, errorCode, frame, regs, err)
		} else {
			kernel.Memcopy(faultPage.Address(), tmpPage.Address(), uintptr(mem.PageSize))
			_ = unmapFn(tmpPage)

			pageEntry.ClearFlags(FlagCopyOnWrite)
			pageEntry.SetFlags(FlagPresent | FlagRW)
			pageEntry.SetFrame(copyFrame)
			flushTLBEntryFn(faultPage.Address())

			// Fault recovered; retry the instruction that caused it.
			return
		}
	}

	nonRecoverablePageFault(faultAddress, errorCode, frame, regs, errUnrecoverableFault)
}

func nonRecoverablePageFault(faultAddress uintptr, errorCode uint32, frame *idt.Frame, regs *idt.Regs, err *kernel.Error) {
	kfmt.Printf("\nPage fault while accessing address: 0x%x\nReason: ", faultAddress)
	switch {
	case errorCode == 0:
		kfmt.Printf("read from non-present page")
	case errorCode == 1:
		kfmt.Printf("page protection violation (read)")
	case errorCode == 2:
		kfmt.Printf("write to non-present page")
	case errorCode == 3:
		kfmt.Printf("page protection violation (write)")
	case errorCode == 4:
		kfmt.Printf("page-fault in user-mode")
	case errorCode == 8:
		kfmt.Printf("page table has reserved bit set")
	default:
		kfmt.Printf("unknown")
	}

	kfmt.Printf("\n\nRegisters:\n")
	regs.Print()
	frame.Print()

	panic(err)
}

func generalProtectionFaultHandler(_ uint32, frame *idt.Frame, regs *idt.Regs) {
	kfmt.Printf("\nGeneral protection fault while accessing address: 0x%x\n", readCR2Fn())
	kfmt.Printf("Registers:\n")
	regs.Print()
	frame.Print()

	panic(errUnrecoverableFault)
}

// reserveZeroedFrame reserves a physical frame to be used together with
// FlagCopyOnWrite for lazy allocation requests.
func reserveZeroedFrame() *kernel.Error {
	var (
		err      *kernel.Error
		tempPage Page
	)

	if ReservedZeroedFrame, err = frameAllocator(); err != nil {
		return err
	} else if tempPage, err = mapTemporaryFn(ReservedZeroedFrame); err != nil {
		return err
	}
	kernel.Memset(tempPage.Address(), 0, uintptr(mem.PageSize))
	_ = unmapFn(tempPage)

	// From this point on ReservedZeroedFrame cannot be mapped with a RW flag.
	protectReservedZeroedPage = true
	return nil
}

// Init initializes the vmm system, builds a granular PDT for the kernel and
// installs the page-fault and general-protection-fault handlers.
func Init(kernelPageOffset uintptr) *kernel.Error {
	if err := setupPDTForKernel(kernelPageOffset); err != nil {
		return err
	}

	if err := reserveZeroedFrame(); err != nil {
		return err
	}

	handleExceptionWithCodeFn(idt.PageFaultException, pageFaultHandler)
	handleExceptionWithCodeFn(idt.GPFException, generalProtectionFaultHandler)
	return nil
}
