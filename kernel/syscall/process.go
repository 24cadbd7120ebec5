package syscall

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"

func init() {
	register(SysExit, sysExit)
	register(SysGetpid, sysGetpid)
	register(SysYield, sysYield)
	register(SysSleep, sysSleep)
	register(SysGettime, sysGettime)
	register(SysUname, sysUname)
}

func sysExit(args Args) int32 {
	sched.Exit(int(int32(args[0])))
	// Exit never returns to its caller; the scheduler has already
	// switched away from this task by the time control would come back.
	return 0
}

func sysGetpid(_ Args) int32 {
	return int32(sched.CurrentID())
}

func sysYield(_ Args) int32 {
	sched.Yield()
	return 0
}

func sysSleep(args Args) int32 {
	sched.SleepMs(args[0])
	return 0
}

func sysGettime(_ Args) int32 {
	return int32(sched.Ticks())
}

// unameFieldLen is the fixed width of each NUL-terminated uname field.
const unameFieldLen = 65

// uname fields, left as package constants rather than build-time values
// since the core has no notion of a release/version string of its own.
var (
	unameSysname    = "AlvOS"
	unameNodename   = "localhost"
	unameRelease    = "0.1"
	unameVersion    = "core"
	unameMachine    = "i386"
	unameDomainname = "(none)"
)

func sysUname(args Args) int32 {
	buf := uintptr(args[0])

	fields := []string{unameSysname, unameNodename, unameRelease, unameVersion, unameMachine, unameDomainname}
	var out [unameFieldLen * 6]byte
	for i, f := range fields {
		copy(out[i*unameFieldLen:], f)
	}

	if _, errno := CopyToUser(buf, out[:], uintptr(len(out))); errno != 0 {
		return int32(errno)
	}
	return 0
}
