package idt

import "github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/kfmt"

// Regs contains a snapshot of the register values when an interrupt occurred.
type Regs struct {
	EAX uint32
	EBX uint32
	ECX uint32
	EDX uint32
	ESI uint32
	EDI uint32
	EBP uint32
}

// Print outputs a dump of the register values to the active console.
func (r *Regs) Print() {
	kfmt.Printf("EAX = %8x EBX = %8x\n", r.EAX, r.EBX)
	kfmt.Printf("ECX = %8x EDX = %8x\n", r.ECX, r.EDX)
	kfmt.Printf("ESI = %8x EDI = %8x\n", r.ESI, r.EDI)
	kfmt.Printf("EBP = %8x\n", r.EBP)
}

// Frame describes an exception frame that is automatically pushed by the CPU
// to the stack when an exception occurs.
type Frame struct {
	EIP    uint32
	CS     uint32
	EFlags uint32
	ESP    uint32
	SS     uint32
}

// Print outputs a dump of the exception frame to the active console.
func (f *Frame) Print() {
	kfmt.Printf("EIP = %8x CS  = %8x\n", f.EIP, f.CS)
	kfmt.Printf("ESP = %8x SS  = %8x\n", f.ESP, f.SS)
	kfmt.Printf("EFL = %8x\n", f.EFlags)
}

// ExceptionNum defines an exception number that can be passed to
// HandleException and HandleExceptionWithCode.
type ExceptionNum uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = ExceptionNum(0)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = ExceptionNum(6)

	// DoubleFault occurs when an exception is unhandled or when an
	// exception occurs while the CPU is trying to call an exception
	// handler.
	DoubleFault = ExceptionNum(8)

	// InvalidTSS occurs when the TSS points to an invalid task segment
	// selector.
	InvalidTSS = ExceptionNum(10)

	// SegmentNotPresent occurs when the CPU attempts to invoke a present
	// gate with an invalid stack segment selector.
	SegmentNotPresent = ExceptionNum(11)

	// StackSegmentFault occurs when attempting to push/pop from an
	// invalid stack address or when the stack base/limit checks fail.
	StackSegmentFault = ExceptionNum(12)

	// GPFException is raised when a general protection fault occurs.
	GPFException = ExceptionNum(13)

	// PageFaultException is raised when a PDT or PDT-entry is not present
	// or when a privilege and/or RW protection check fails.
	PageFaultException = ExceptionNum(14)
)

// ExceptionHandler is a function that handles an exception that does not push
// an error code to the stack. If the handler returns, any modifications to the
// supplied Frame and/or Regs pointers will be propagated back to the location
// where the exception occurred.
type ExceptionHandler func(*Frame, *Regs)

// ExceptionHandlerWithCode is a function that handles an exception that
// pushes an error code to the stack. If the handler returns, any
// modifications to the supplied Frame and/or Regs pointers will be
// propagated back to the location where the exception occurred.
type ExceptionHandlerWithCode func(uint32, *Frame, *Regs)

// IRQHandler is a function invoked when a hardware interrupt line fires. The
// supplied irqLine is the IRQ number (0-15 for PIC-routed lines, or the
// GSI for APIC/IOAPIC-routed lines) that triggered the call.
type IRQHandler func(irqLine uint8, frame *Frame, regs *Regs)

var (
	exceptionHandlers         [32]ExceptionHandler
	exceptionHandlersWithCode [32]ExceptionHandlerWithCode
	irqHandlers               [224]IRQHandler
)

// HandleException registers an exception handler (without an error code) for
// the given interrupt number.
func HandleException(exceptionNum ExceptionNum, handler ExceptionHandler) {
	exceptionHandlers[exceptionNum] = handler
}

// HandleExceptionWithCode registers an exception handler (with an error code)
// for the given interrupt number.
func HandleExceptionWithCode(exceptionNum ExceptionNum, handler ExceptionHandlerWithCode) {
	exceptionHandlersWithCode[exceptionNum] = handler
}

// HandleIRQ registers a handler for the given (post-remap) interrupt vector
// offset from the base vector assigned to hardware IRQs.
func HandleIRQ(irqLine uint8, handler IRQHandler) {
	irqHandlers[irqLine] = handler
}

// Init installs the IDT and remaps the legacy PIC. It does not bring up the
// local APIC/IOAPIC; that is done by a separate call to InitAPIC.
func Init() {
	installIDT()
	initPIC()
}

// installIDT populates the IDT descriptor with the address of the table and
// loads it into the CPU. All gate entries are initially marked as
// non-present and must be explicitly enabled via dispatchInterrupt's
// internal table.
func installIDT()

// dispatchInterrupt is invoked by the interrupt gate entrypoints to route an
// incoming interrupt to the selected handler.
func dispatchInterrupt()

// interruptGateEntries contains the generated entrypoint stubs, one per
// interrupt vector, that save machine state and call dispatchInterrupt.
func interruptGateEntries()
