package sched

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/cpu"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/gdt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/mem/heap"
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sync"
)

const (
	// NumPriorities is the number of distinct priority bands. Band 0 is
	// the lowest priority; NumPriorities-1 is the highest.
	NumPriorities = 4

	// MaxTasks bounds the task table; ids are arena indices into it.
	MaxTasks = 256

	defaultQuantumTicks = 2
	maxQuantumTicks     = 8
)

var (
	errNoFreeTaskSlot = &kernel.Error{Module: "sched", Message: "no free task slot"}
	errUnknownTask    = &kernel.Error{Module: "sched", Message: "unknown task id"}
	errDestroyCurrent = &kernel.Error{Module: "sched", Message: "cannot destroy the currently running task"}
)

var (
	lock sync.Spinlock

	taskTable  [MaxTasks]*Task
	nextTaskID TaskID = 1

	runQueues [NumPriorities][]TaskID
	sleepQ    []TaskID

	current TaskID
	idleID  TaskID

	// tick counts timer interrupts since Init. It is the clock the sleep
	// queue and wakeup-tick comparisons run against.
	tick uint64

	// tickPeriodNs is the nanosecond length of one tick, as reported by
	// the last onTick callback. It lets SleepMs convert a millisecond
	// duration into a tick count without idt needing to export its
	// internal PIT configuration.
	tickPeriodNs uint32 = 1000000000 / 100

	// enabled gates involuntary preemption. Ticks still accumulate while
	// disabled; they simply never trigger a reschedule.
	enabled bool

	// switchContextFn performs the actual machine context switch. It is a
	// variable so tests can observe scheduling decisions without needing
	// a real CPU stack swap.
	switchContextFn = switchContext
)

// Init prepares the scheduler and spawns the idle task. It must run after
// the heap and vmm are both initialized, since task creation allocates
// kernel stacks from the heap.
func Init() *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	for i := range taskTable {
		taskTable[i] = nil
	}
	for band := range runQueues {
		runQueues[band] = nil
	}
	sleepQ = nil
	nextTaskID = 1
	tick = 0
	enabled = true

	idleTask, err := newTask("idle", idleEntry, 0, 0)
	if err != nil {
		return err
	}
	idleID = idleTask.ID
	current = idleID
	idleTask.State = Running

	idt.OnTick(onTick)

	return nil
}

// CurrentID returns the id of the task currently selected to run.
func CurrentID() TaskID {
	return current
}

// Ticks returns the number of scheduler ticks observed since Init. It
// backs the gettime syscall.
func Ticks() uint64 {
	return tick
}

// Lookup returns the task with the given id, or nil if it does not exist.
func Lookup(id TaskID) *Task {
	if id == noTask || int(id) >= len(taskTable) {
		return nil
	}
	return taskTable[id]
}

// CurrentTask returns the task control block currently selected to run.
func CurrentTask() *Task {
	return Lookup(current)
}

// SetEnabled flips the scheduler's "preemption enabled" flag. Small critical
// sections disable it around non-reentrant operations; timer ticks are
// still counted while disabled, they just never trigger a reschedule.
func SetEnabled(v bool) {
	enabled = v
}

// onTick is registered with idt.OnTick and runs at interrupt time on every
// PIT (or LAPIC timer) tick.
func onTick(elapsedNs uint32) {
	tick++
	if elapsedNs != 0 {
		tickPeriodNs = elapsedNs
	}

	lock.Acquire()
	wakeExpiredSleepers()
	lock.Release()

	if !enabled {
		return
	}

	t := taskTable[current]
	if t == nil || t.remQuantum == 0 {
		return
	}
	t.remQuantum--
	if t.remQuantum == 0 {
		reschedule(Ready)
	}
}

// wakeExpiredSleepers moves every sleeping task whose wakeup tick has
// elapsed back onto its run queue. Caller holds lock.
func wakeExpiredSleepers() {
	if len(sleepQ) == 0 {
		return
	}
	kept := sleepQ[:0]
	for _, id := range sleepQ {
		t := taskTable[id]
		if t == nil {
			continue
		}
		if tick >= t.WakeupTick {
			t.State = Ready
			enqueueReady(t)
		} else {
			kept = append(kept, id)
		}
	}
	sleepQ = kept
}

// enqueueReady appends t to its priority band's run queue. Caller holds
// lock or runs at a point where the queues cannot be observed concurrently.
func enqueueReady(t *Task) {
	band := t.Priority
	if int(band) >= NumPriorities {
		band = NumPriorities - 1
	}
	runQueues[band] = append(runQueues[band], t.ID)
}

// pickNext selects the next task to run: the head of the highest non-empty
// priority band, FIFO within the band, or the idle task if every band is
// empty. Caller holds lock.
func pickNext() TaskID {
	for band := NumPriorities - 1; band >= 0; band-- {
		q := runQueues[band]
		if len(q) == 0 {
			continue
		}
		id := q[0]
		runQueues[band] = q[1:]
		return id
	}
	return idleID
}

// reschedule transitions the current task to newState, picks the next
// Ready task (or idle), and switches the CPU to it. It must be called with
// interrupts either already disabled (timer tick path) or explicitly
// masked by the caller (voluntary yield path).
func reschedule(newState State) {
	lock.Acquire()

	outgoing := taskTable[current]
	if outgoing == nil {
		lock.Release()
		return
	}
	outgoing.State = newState
	if newState == Ready {
		enqueueReady(outgoing)
	}

	next := pickNext()
	incoming := taskTable[next]
	incoming.State = Running
	incoming.remQuantum = quantumForPriority(incoming.Priority)
	current = next

	lock.Release()

	if next == outgoing.ID {
		return
	}

	gdtSetKernelStack(incoming)
	switchContextFn(&outgoing.context.SavedSP, incoming.context.SavedSP)
}

// Yield voluntarily gives up the remainder of the current task's quantum.
func Yield() {
	cpu.DisableInterrupts()
	reschedule(Ready)
	cpu.EnableInterrupts()
}

// Sleep transitions the current task to Sleeping until the tick counter
// reaches tick+ticks. Sleep(0) is equivalent to Yield, matching the
// syscall-level sleep(0) contract.
func Sleep(ticks uint64) {
	if ticks == 0 {
		Yield()
		return
	}

	cpu.DisableInterrupts()

	lock.Acquire()
	t := taskTable[current]
	t.WakeupTick = tick + ticks
	sleepQ = append(sleepQ, t.ID)
	lock.Release()

	reschedule(Sleeping)
	cpu.EnableInterrupts()
}

// SleepMs is the syscall-facing variant of Sleep: it converts a
// millisecond duration into a tick count using the tick period observed
// from the most recent timer interrupt and calls Sleep.
func SleepMs(ms uint32) {
	if ms == 0 {
		Sleep(0)
		return
	}
	ticksNeeded := (uint64(ms)*1000000 + uint64(tickPeriodNs) - 1) / uint64(tickPeriodNs)
	Sleep(ticksNeeded)
}

// Block transitions the current task to Blocked. It is used by resources
// (semaphores, I/O queues) that need to park a task until Unblock is
// called with its id. The caller is expected to have already enqueued the
// task id on the resource's own wait list before calling Block.
func Block() {
	cpu.DisableInterrupts()
	reschedule(Blocked)
	cpu.EnableInterrupts()
}

// Unblock moves a Blocked task back to Ready.
func Unblock(id TaskID) *kernel.Error {
	lock.Acquire()
	defer lock.Release()

	t := taskTable[id]
	if t == nil {
		return errUnknownTask
	}
	if t.State != Blocked {
		return nil
	}
	t.State = Ready
	enqueueReady(t)
	return nil
}

// releaseResources reclaims everything a task owns other than its TCB: open
// file descriptors, its kernel stack, and, for user-mode tasks, the
// physical frames and page-table mappings backing its user stack. A Zombie
// task owns nothing beyond its TCB until it is reaped. Caller holds lock.
//
// Called from Exit with interrupts disabled and the exiting task still
// running on the very kernel stack freed here: safe only because
// heap.Free is pure bookkeeping (it neither scrubs nor unmaps the
// underlying memory) and nothing between this call and the context switch
// in reschedule allocates, so the freed block cannot be handed to another
// task before the switch completes.
func releaseResources(t *Task) {
	for i := range t.FDTable {
		if t.FDTable[i] != nil {
			t.FDTable[i].Node.Release()
			t.FDTable[i] = nil
		}
	}

	if t.Flags&FlagUserMode != 0 && t.UserStackSize != 0 {
		unmapUserStack(t.UserStackBase, uintptr(t.UserStackSize))
		t.UserStackSize = 0
	}

	if t.KernelStackBase != 0 {
		_ = heap.Free(t.KernelStackBase)
		t.KernelStackBase = 0
	}
}

// Exit terminates the current task, marking it Zombie and reclaiming the
// resources it owns other than the TCB itself. Exiting the idle task is
// never valid and is not guarded against by design, since idle never calls
// Exit.
func Exit(code int) {
	cpu.DisableInterrupts()

	lock.Acquire()
	t := taskTable[current]
	t.ExitCode = code
	releaseResources(t)
	reapOrphansOf(t.ID)
	lock.Release()

	reschedule(Zombie)
	cpu.EnableInterrupts()
}

// Destroy forcibly terminates a task other than the currently running one.
// Destroying the current task is forbidden; use Exit instead.
func Destroy(id TaskID) *kernel.Error {
	if id == current {
		return errDestroyCurrent
	}

	lock.Acquire()
	defer lock.Release()

	t := taskTable[id]
	if t == nil {
		return errUnknownTask
	}
	t.State = Zombie
	releaseResources(t)
	return nil
}

// Reap removes a Zombie task from the task table, returning its exit code.
// It is called by a parent task collecting a child's status; orphans that
// are already Zombie when their parent exits are freed by reapOrphansOf
// instead.
func Reap(id TaskID) (exitCode int, err *kernel.Error) {
	lock.Acquire()
	defer lock.Release()

	t := taskTable[id]
	if t == nil {
		return 0, errUnknownTask
	}
	if t.State != Zombie {
		return 0, errUnknownTask
	}
	exitCode = t.ExitCode
	taskTable[id] = nil
	return exitCode, nil
}

// reapOrphansOf re-parents every task whose ParentID is parent to noTask,
// then immediately reaps any of them that are already Zombie. Caller holds
// lock.
func reapOrphansOf(parent TaskID) {
	for _, t := range taskTable {
		if t == nil || t.ParentID != parent {
			continue
		}
		t.ParentID = noTask
		if t.State == Zombie {
			taskTable[t.ID] = nil
		}
	}
}

// idleEntry is the body of the idle task: halt until the next interrupt,
// forever. It only ever runs when every run queue is empty.
func idleEntry(_ uintptr) {
	for {
		cpu.Halt()
	}
}

// gdtSetKernelStackFn is overridden in tests; in the real kernel it points
// at gdt.SetKernelStack.
var gdtSetKernelStackFn = gdt.SetKernelStack

func gdtSetKernelStack(t *Task) {
	top := t.KernelStackBase + uintptr(t.KernelStackSize)
	gdtSetKernelStackFn(top)
}
