package idt

// SyscallVector is the software interrupt number user-mode code issues to
// enter the kernel. Its IDT gate is installed with a ring-3-callable DPL,
// unlike every exception and IRQ gate which only ring 0 may invoke.
const SyscallVector = 0x80

// SyscallHandler receives the syscall number and its up to five arguments,
// already collected from the caller's registers by the gate entrypoint,
// and returns the value to place back into the accumulator register.
type SyscallHandler func(num uint32, args [5]uint32) int32

var syscallHandler SyscallHandler

// HandleSyscall registers the kernel's syscall dispatcher. Called once by
// kernel/syscall during boot.
func HandleSyscall(h SyscallHandler) {
	syscallHandler = h
}

// dispatchSyscall is invoked by the syscall gate entrypoint installed at
// SyscallVector. If no handler has been registered yet it reports ENOSYS
// itself rather than faulting, mirroring the behavior of an unimplemented
// syscall number.
func dispatchSyscall(num uint32, args [5]uint32) int32 {
	if syscallHandler == nil {
		return -38
	}
	return syscallHandler(num, args)
}
