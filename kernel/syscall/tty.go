package syscall

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/sched"

func init() {
	register(SysReadkey, sysReadkey)
	register(SysKeyAvailable, sysKeyAvailable)
	register(SysGetc, sysGetc)
	register(SysGets, sysGets)
	register(SysKbhit, sysKbhit)
	register(SysKbflush, sysKbflush)
}

// keyQueueSize is the number of pending keystrokes the core buffers between
// the keyboard interrupt handler and whichever task next reads fd 0. Must be
// a power of 2.
const keyQueueSize = 256

// keyQueue is a ring buffer of keystrokes (ASCII code points or the negative
// KEY_* sentinels), fed by PushKey from the keyboard driver's IRQ handler and
// drained by readkey/getc/gets. Modeled on the kfmt package's byte ring
// buffer, widened to int32 elements.
var keyQueue struct {
	buf            [keyQueueSize]int32
	rIndex, wIndex int
	waiter         sched.TaskID
}

// writeSinkFn sends bytes written to fd 1/2 to the active terminal. It is
// set by the terminal driver during boot; until then, writes are discarded.
var writeSinkFn func(b []byte)

// SetWriteSink installs the terminal's output sink for fd 1/2.
func SetWriteSink(fn func(b []byte)) {
	writeSinkFn = fn
}

// PushKey enqueues a keystroke observed by the keyboard driver and wakes any
// task blocked on fd 0.
func PushKey(key int32) {
	next := (keyQueue.wIndex + 1) & (keyQueueSize - 1)
	if next == keyQueue.rIndex {
		// Queue full: drop the oldest pending key to make room.
		keyQueue.rIndex = (keyQueue.rIndex + 1) & (keyQueueSize - 1)
	}
	keyQueue.buf[keyQueue.wIndex] = key
	keyQueue.wIndex = next

	if waiter := keyQueue.waiter; waiter != 0 {
		keyQueue.waiter = 0
		sched.Unblock(waiter)
	}
}

func keyQueueEmpty() bool {
	return keyQueue.rIndex == keyQueue.wIndex
}

func popKey() int32 {
	k := keyQueue.buf[keyQueue.rIndex]
	keyQueue.rIndex = (keyQueue.rIndex + 1) & (keyQueueSize - 1)
	return k
}

// blockForKey suspends the calling task until PushKey delivers a keystroke,
// then returns it. fd 0 reads never return without a key: there is no
// non-blocking short read on the keyboard source.
func blockForKey() int32 {
	for keyQueueEmpty() {
		keyQueue.waiter = sched.CurrentID()
		sched.Block()
	}
	return popKey()
}

func sysReadkey(_ Args) int32 {
	return blockForKey()
}

func sysKeyAvailable(_ Args) int32 {
	if keyQueueEmpty() {
		return 0
	}
	return 1
}

func sysGetc(_ Args) int32 {
	for {
		k := blockForKey()
		if k >= 0 {
			return k
		}
		// Non-printable keys are not representable as a character; getc
		// only returns printable input.
	}
}

// sysGets reads a line (up to the next '\n', exclusive, or until the
// caller's buffer fills) from the keyboard source into args[0], stopping at
// args[1] bytes. Non-printable keys are ignored. Returns the number of
// bytes written, or a negative Errno.
func sysGets(args Args) int32 {
	buf := uintptr(args[0])
	max := uintptr(args[1])

	line := make([]byte, 0, max)
	for uintptr(len(line)) < max {
		k := blockForKey()
		if k < 0 {
			continue
		}
		if k == '\n' {
			break
		}
		line = append(line, byte(k))
	}

	n, errno := CopyToUser(buf, line, uintptr(len(line)))
	if errno != 0 {
		return int32(errno)
	}
	return int32(n)
}

func sysKbhit(_ Args) int32 {
	return sysKeyAvailable(Args{})
}

func sysKbflush(_ Args) int32 {
	keyQueue.rIndex = 0
	keyQueue.wIndex = 0
	keyQueue.waiter = 0
	return 0
}
