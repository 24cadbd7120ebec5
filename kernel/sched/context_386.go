package sched

import (
	"unsafe"

	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/gdt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
)

const (
	userCodeSelector  = uint32(gdt.UserCodeSegment)
	userDataSelector  = uint32(gdt.UserDataSegment)
	initialUserEFlags = uint32(1 << 9) // IF set; the task starts with interrupts enabled
)

// savedRegisters is the layout a kernel stack is prepared with so that
// switchContext's restore half lands exactly where taskTrampoline or
// userTrampoline expects it, mirroring the callee-saved-register
// convention the teacher's interrupt_386.go uses for the CPU-pushed
// exception frame.
type savedRegisters struct {
	ebx, esi, edi, ebp uint32
	// returnEIP is the address switchContext "returns" to the first time
	// this task is scheduled: taskTrampoline or userTrampoline.
	returnEIP uintptr
}

// trampolineEntryAddrFn and userTrampolineEntryAddrFn resolve to the
// address of taskTrampoline/userTrampoline respectively. They are
// variables, following the package's mockable-function convention, so
// tests can observe the prepared stack without needing a real linker
// symbol address.
var (
	trampolineEntryAddrFn     = func() uintptr { return 0 }
	userTrampolineEntryAddrFn = func() uintptr { return 0 }
)

// setupInitialKernelStack prepares a brand-new kernel-mode task's stack so
// that the first switchContext into it resumes at taskTrampoline, which in
// turn calls entry(arg) and exits the task when it returns. t.pendingEntry
// and t.pendingArg are consumed by taskTrampoline on first run.
func setupInitialKernelStack(t *Task, base uintptr, size mem.Size, entry EntryFn, arg uintptr) uintptr {
	t.pendingEntry = entry
	t.pendingArg = arg

	top := base + uintptr(size)
	sp := top - unsafe.Sizeof(savedRegisters{})
	regs := (*savedRegisters)(unsafe.Pointer(sp))
	*regs = savedRegisters{returnEIP: trampolineEntryAddrFn()}
	return sp
}

// setupInitialUserStack prepares a user-mode task's kernel stack so that
// the first switchContext into it resumes at userTrampoline, which builds
// the CPU-pushed-style frame described by uframe and iret's into ring 3.
// t.pendingUserFrame is consumed by userTrampoline on first run.
func setupInitialUserStack(t *Task, base uintptr, size mem.Size, uframe *idt.Frame) uintptr {
	t.pendingUserFrame = uframe

	top := base + uintptr(size)
	sp := top - unsafe.Sizeof(savedRegisters{})
	regs := (*savedRegisters)(unsafe.Pointer(sp))
	*regs = savedRegisters{returnEIP: userTrampolineEntryAddrFn()}
	return sp
}

// switchContext saves the outgoing task's callee-saved registers and stack
// pointer at *savedSP, then restores the incoming task's registers and
// stack pointer from newSP. Control returns to the caller of switchContext
// for a task resuming from a previous yield, or to taskTrampoline /
// userTrampoline the first time a freshly created task is scheduled.
// Implemented in assembly.
func switchContext(savedSP *uintptr, newSP uintptr)

// taskTrampoline runs the first time a kernel-mode task is scheduled. It
// invokes the task's entry function with its argument and exits the task
// when it returns.
func taskTrampoline() {
	t := taskTable[current]
	entry, arg := t.pendingEntry, t.pendingArg
	t.pendingEntry, t.pendingArg = nil, 0
	if entry != nil {
		entry(arg)
	}
	Exit(0)
}

// userTrampoline runs the first time a user-mode task is scheduled. It
// loads the trap frame recorded by setupInitialUserStack and performs the
// iret into ring 3. Implemented in assembly; the Go declaration below
// documents the frame it expects the task's TCB to carry.
func userTrampoline()
