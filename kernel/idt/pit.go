package idt

// The PIT (Programmable Interval Timer, Intel 8253/8254) is wired to IRQ0
// and drives the kernel's tick counter used by the scheduler's preemption
// timer and by the gettime/sleep syscalls.
const (
	pitChannel0Port  = 0x40
	pitCommandPort   = 0x43
	pitInputFreq     = 1193182
	pitMode3Square   = 0x36
	pitIRQLine       = 0
	defaultTickHz    = 100
	nsPerTickDefault = 1000000000 / defaultTickHz
)

var (
	ticks      uint64
	tickPeriod = uint32(nsPerTickDefault)
)

// InitPIT programs the PIT to fire IRQ0 at the given frequency (in Hz) and
// installs the tick handler. Once InitPIT returns, the hardware IRQ line
// must still be unmasked by a call to EnableIRQ(0) after the scheduler has
// installed its own tick callback via OnTick.
func InitPIT(hz uint32) {
	if hz == 0 {
		hz = defaultTickHz
	}

	divisor := pitInputFreq / hz
	if divisor == 0 {
		divisor = 1
	} else if divisor > 0xffff {
		divisor = 0xffff
	}

	tickPeriod = 1000000000 / hz

	portWriteByteFn(pitCommandPort, pitMode3Square)
	portWriteByteFn(pitChannel0Port, uint8(divisor&0xff))
	portWriteByteFn(pitChannel0Port, uint8(divisor>>8))

	HandleIRQ(pitIRQLine, pitTickHandler)
}

// tickHandlers are invoked, in registration order, on every PIT tick after
// the built-in tick counter has been advanced.
var tickHandlers []func(elapsedNs uint32)

// OnTick registers a callback to run on every timer tick. It is primarily
// used by kernel/sched to drive preemption.
func OnTick(fn func(elapsedNs uint32)) {
	tickHandlers = append(tickHandlers, fn)
}

// Ticks returns the number of PIT ticks observed since InitPIT was called.
func Ticks() uint64 { return ticks }

// NanosSinceBoot returns an approximation of the elapsed time since InitPIT
// was called, derived from the tick count and the configured tick period.
func NanosSinceBoot() uint64 { return ticks * uint64(tickPeriod) }

func pitTickHandler(_ uint8, _ *Frame, _ *Regs) {
	ticks++
	for _, fn := range tickHandlers {
		fn(tickPeriod)
	}
	sendEOI(pitIRQLine)
}
