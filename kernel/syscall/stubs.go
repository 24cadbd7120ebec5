package syscall

// Syscalls the core recognizes but never implements: process creation
// beyond task_create (fork, execve, pipe, dup, mmap) and the optional
// networking family, which has no stack backing it. Each always reports
// ENOSYS rather than leaving the dispatch table slot empty, so a caller
// sees a stable "not implemented" error instead of whatever zero handler
// an empty slot would otherwise fall back to.
func init() {
	for _, num := range []Num{
		SysFork, SysExecve, SysPipe, SysDup, SysMmap, SysStat,
		SysDNSResolve, SysConnect, SysSend, SysRecv,
	} {
		register(num, sysNotImplemented)
	}
}

func sysNotImplemented(_ Args) int32 {
	return int32(ENOSYS)
}
