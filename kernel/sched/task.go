// Package sched implements a priority-banded round-robin task scheduler:
// task control blocks, run/sleep queues, voluntary and timer-driven
// preemption, and the kernel/user task creation paths.
package sched

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
)

// TaskID identifies a task while it is in the task table: it is the task's
// index into that table, and allocID hands the same id out again once the
// task has been reaped.
type TaskID uint32

// noTask is the zero value of TaskID and never assigned to a real task.
const noTask TaskID = 0

// State describes where a task currently sits in its lifecycle.
type State uint8

const (
	// Ready tasks are waiting to be selected by the scheduler.
	Ready State = iota

	// Running is the task currently executing on the CPU. Exactly one
	// task is Running at a time.
	Running

	// Sleeping tasks are waiting for the tick counter to reach their
	// WakeupTick.
	Sleeping

	// Blocked tasks are waiting on a resource (a semaphore, an I/O
	// completion, ...) to be signaled.
	Blocked

	// Zombie tasks have exited but have not yet been reaped.
	Zombie
)

// Flags captures boolean task attributes.
type Flags uint8

const (
	// FlagUserMode marks a task that runs in ring 3.
	FlagUserMode Flags = 1 << iota
)

// MaxFDs is the number of file-descriptor slots carried by each task.
const MaxFDs = 32

// VNodeRef is implemented by vfs.Vnode. It is declared here, rather than
// imported from the vfs package, so the scheduler does not need to depend
// on the filesystem layer merely to carry an opaque per-fd reference.
type VNodeRef interface {
	Release()
}

// FileDescriptor is a single per-task open-file slot.
type FileDescriptor struct {
	Node   VNodeRef
	Flags  int
	Offset int64
}

// Context holds the subset of machine state that a context switch needs to
// save and restore. The general-purpose registers and segment selectors
// live on the task's kernel stack itself; Context only tracks the stack
// pointer that frame lives at.
type Context struct {
	// SavedSP is the kernel stack pointer to resume at. It is only valid
	// while the task is not Running.
	SavedSP uintptr
}

// Task is the kernel's task control block.
type Task struct {
	ID       TaskID
	Name     string
	State    State
	Priority uint8
	Flags    Flags

	context Context

	KernelStackBase uintptr
	KernelStackSize mem.Size

	UserStackBase uintptr
	UserStackSize mem.Size

	// AddrSpacePDT is the physical address of the page directory this
	// task runs under. The core ships a single kernel address space plus
	// per-task user-stack mappings, so every task currently shares the
	// same value; per-process page directories are not precluded.
	AddrSpacePDT uintptr

	FDTable [MaxFDs]*FileDescriptor

	// Cwd is the task's current working directory, used to resolve
	// relative paths passed to the FS-namespace syscalls.
	Cwd string

	WakeupTick uint64
	ExitCode   int

	ParentID TaskID

	// remQuantum counts down the ticks left in the task's current time
	// slice.
	remQuantum uint8

	// pendingEntry/pendingArg carry a freshly created kernel-mode task's
	// entry point until taskTrampoline's first run consumes them.
	pendingEntry EntryFn
	pendingArg   uintptr

	// pendingUserFrame carries a freshly created user-mode task's initial
	// trap frame until userTrampoline's first run consumes it.
	pendingUserFrame *idt.Frame
}

// quantumForPriority is the number of ticks granted to a task each time it
// is scheduled, scaled so that higher-priority bands get longer slices.
func quantumForPriority(priority uint8) uint8 {
	q := uint8(defaultQuantumTicks) + priority
	if q > maxQuantumTicks {
		return maxQuantumTicks
	}
	return q
}
