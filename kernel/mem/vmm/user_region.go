package vmm

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
)

const (
	// userStackSlotSize bounds the VA span reserved for a single task's
	// user stack, including room for an unmapped guard page below the
	// mapped portion so a stack overflow faults instead of silently
	// corrupting the next slot down.
	userStackSlotSize = mem.Size(8 * mem.PageSize)

	// MaxUserStackSlots is the number of disjoint user-stack slots carved
	// out below UserSpaceSplit. It mirrors kernel/sched.MaxTasks so every
	// task id maps to a unique, never-colliding slot.
	MaxUserStackSlots = 256
)

var (
	errUserStackSlotOutOfRange = &kernel.Error{Module: "vmm", Message: "user stack slot index out of range"}
	errUserStackTooLarge       = &kernel.Error{Module: "vmm", Message: "requested user stack exceeds the per-task slot size"}
)

// UserStackTop returns the top (highest, exclusive) virtual address of the
// user-stack slot belonging to arena index slot, sized to hold size bytes.
//
// Slots are assigned by index rather than carved out of a bump or
// free-list allocator: each lives at a fixed offset below UserSpaceSplit,
// so a task's stack region is reclaimed for reuse the instant its task id
// is (task ids are themselves arena indices, only reused once the owning
// task has been reaped), with no separate release bookkeeping to leak.
func UserStackTop(slot int, size mem.Size) (uintptr, *kernel.Error) {
	if slot < 0 || slot >= MaxUserStackSlots {
		return 0, errUserStackSlotOutOfRange
	}
	if size > userStackSlotSize {
		return 0, errUserStackTooLarge
	}

	return UserSpaceSplit - uintptr(slot)*uintptr(userStackSlotSize), nil
}
