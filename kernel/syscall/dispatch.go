package syscall

import (
	"github.com/AlvaroG-Dev/AlvOS-32bit-sub002/kernel/idt"
)

// Args is the up-to-five register argument list a syscall is invoked with,
// in the order the calling convention documents (arg0 in the first
// general-purpose register after the syscall number, and so on).
type Args [5]uint32

// handler is the signature every dispatch-table entry implements.
type handler func(args Args) int32

var table [numSyscalls]handler

// register installs the handler for a syscall number. It is called from
// each family's init() function.
func register(num Num, h handler) {
	table[num] = h
}

// Init wires the syscall dispatcher into the IDT's int 0x80 gate.
func Init() {
	idt.HandleSyscall(Dispatch)
}

// Dispatch is the single entry point invoked by the syscall gate for every
// int 0x80 trap. num identifies the syscall; args carries up to five
// arguments already collected from the caller's registers. The returned
// value is placed into the accumulator register before the gate irets back
// to ring 3; negative values are Errno codes.
func Dispatch(num uint32, args [5]uint32) int32 {
	if num >= uint32(numSyscalls) || table[num] == nil {
		return int32(ENOSYS)
	}
	return table[num](Args(args))
}
