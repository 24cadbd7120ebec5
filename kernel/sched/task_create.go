package sched

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/heap"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/pmm"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/vmm"
)

const (
	// DefaultKernelStackSize is used by TaskCreate and as the kernel-side
	// stack for every user-mode task.
	DefaultKernelStackSize = mem.Size(16 * 1024)

	// DefaultUserStackSize is used by TaskCreateUser.
	DefaultUserStackSize = mem.Size(4 * mem.PageSize)
)

// EntryFn is the body of a kernel-mode task.
type EntryFn func(arg uintptr)

// frameAllocator supplies physical frames for user-mode stack and entry
// page mappings. It is nil until SetFrameAllocator is called during boot,
// matching the same wiring pattern used by vmm.SetFrameAllocator.
var frameAllocator vmm.FrameAllocatorFn

// frameReleaser returns a physical frame to the allocator it came from. It
// is nil until SetFrameReleaser is called during boot.
var frameReleaser func(pmm.Frame)

// SetFrameAllocator registers the physical frame allocator used when
// mapping memory for user-mode tasks.
func SetFrameAllocator(fn vmm.FrameAllocatorFn) {
	frameAllocator = fn
}

// SetFrameReleaser registers the function used to return a user-mode
// task's physical frames to the allocator once the task is destroyed.
func SetFrameReleaser(fn func(pmm.Frame)) {
	frameReleaser = fn
}

// allocID reserves the next unused task id and table slot. Caller holds
// lock.
func allocID() (TaskID, *kernel.Error) {
	for i := 0; i < MaxTasks; i++ {
		id := nextTaskID
		nextTaskID++
		if nextTaskID == 0 || int(nextTaskID) >= len(taskTable) {
			nextTaskID = 1
		}
		if int(id) < len(taskTable) && taskTable[id] == nil {
			return id, nil
		}
	}
	return noTask, errNoFreeTaskSlot
}

// newTask allocates a kernel stack and a TCB for a kernel-mode task body.
// It does not acquire lock; callers that mutate shared scheduler state
// around it are expected to hold it already (or, as in Init, to run before
// concurrency is possible).
func newTask(name string, entry EntryFn, arg uintptr, priority uint8) (*Task, *kernel.Error) {
	stackBase, err := heap.Alloc(DefaultKernelStackSize)
	if err != nil {
		return nil, err
	}

	id, err := allocID()
	if err != nil {
		return nil, err
	}

	t := &Task{
		ID:              id,
		Name:            name,
		State:           Ready,
		Priority:        priority,
		KernelStackBase: stackBase,
		KernelStackSize: DefaultKernelStackSize,
		Cwd:             "/",
	}
	t.context.SavedSP = setupInitialKernelStack(t, stackBase, DefaultKernelStackSize, entry, arg)

	taskTable[id] = t
	return t, nil
}

// TaskCreate spawns a new kernel-mode task and places it on the Ready
// queue for its priority band.
func TaskCreate(name string, entry EntryFn, arg uintptr, priority uint8) (TaskID, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	t, err := newTask(name, entry, arg, priority)
	if err != nil {
		return noTask, err
	}
	t.ParentID = current
	enqueueReady(t)
	return t.ID, nil
}

// TaskCreateUser spawns a new user-mode task. entryVirt is the user
// virtual address of the task's first instruction; it must already be
// mapped USER|PRESENT (the caller is typically a loader that mapped the
// task's code pages). TaskCreateUser additionally maps a dedicated
// ring-3 stack and builds the initial trap frame so the first dispatch
// into this task iret's into user mode at entryVirt.
func TaskCreateUser(name string, entryVirt uintptr, arg uintptr, priority uint8) (TaskID, *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	id, err := allocID()
	if err != nil {
		return noTask, err
	}

	userStackTop, err := mapUserStack(id, DefaultUserStackSize)
	if err != nil {
		return noTask, err
	}

	stackBase, err := heap.Alloc(DefaultKernelStackSize)
	if err != nil {
		unmapUserStack(userStackTop-uintptr(DefaultUserStackSize), uintptr(DefaultUserStackSize))
		return noTask, err
	}

	t := &Task{
		ID:              id,
		Name:            name,
		State:           Ready,
		Priority:        priority,
		Flags:           FlagUserMode,
		KernelStackBase: stackBase,
		KernelStackSize: DefaultKernelStackSize,
		UserStackBase:   userStackTop - uintptr(DefaultUserStackSize),
		UserStackSize:   DefaultUserStackSize,
		ParentID:        current,
		Cwd:             "/",
	}

	frame := idt.Frame{
		EIP:    uint32(entryVirt),
		CS:     userCodeSelector,
		EFlags: initialUserEFlags,
		ESP:    uint32(userStackTop),
		SS:     userDataSelector,
	}
	t.pendingArg = arg
	t.context.SavedSP = setupInitialUserStack(t, stackBase, DefaultKernelStackSize, &frame)

	taskTable[id] = t
	enqueueReady(t)
	return id, nil
}

// mapUserStack maps a fresh, zeroed, user-accessible stack in the user-stack
// slot belonging to task arena index id, and returns its top (highest
// address, exclusive) suitable for use as the initial ESP. Unlike
// vmm.EarlyReserveRegion (a one-directional bump allocator meant only for
// early boot), the slot is derived straight from id via vmm.UserStackTop,
// so it is automatically available for reuse once the owning task is
// reaped and its id recycled by allocID.
func mapUserStack(id TaskID, size mem.Size) (uintptr, *kernel.Error) {
	size = (size + (mem.PageSize - 1)) &^ (mem.PageSize - 1)

	top, err := vmm.UserStackTop(int(id), size)
	if err != nil {
		return 0, err
	}
	base := top - uintptr(size)

	pages := size / mem.PageSize
	for i := mem.Size(0); i < pages; i++ {
		f, err := frameAllocator()
		if err != nil {
			unmapUserStack(base, uintptr(i)*uintptr(mem.PageSize))
			return 0, err
		}
		page := vmm.PageFromAddress(base + uintptr(i)*uintptr(mem.PageSize))
		if err := vmm.Map(page, f, vmm.FlagPresent|vmm.FlagRW|vmm.FlagUserAccessible); err != nil {
			unmapUserStack(base, uintptr(i)*uintptr(mem.PageSize))
			return 0, err
		}
		kernel.Memset(page.Address(), 0, uintptr(mem.PageSize))
	}

	return base + uintptr(size), nil
}

// unmapUserStack removes the page-table mappings for the size bytes
// starting at the user-mode virtual address base and returns their backing
// physical frames via frameReleaser, if one is registered. It is used both
// to roll back a partially-mapped stack and, from Exit/Destroy, to reclaim
// a terminated user task's stack.
func unmapUserStack(base uintptr, size uintptr) {
	pages := size / uintptr(mem.PageSize)
	for i := uintptr(0); i < pages; i++ {
		page := vmm.PageFromAddress(base + i*uintptr(mem.PageSize))
		if physAddr, err := vmm.Translate(page.Address()); err == nil && frameReleaser != nil {
			frameReleaser(pmm.FrameFromAddress(physAddr))
		}
		_ = vmm.Unmap(page)
	}
}
