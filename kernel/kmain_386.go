// +build 386

package kernel

// multibootInfoPtr returns the physical address of the multiboot info
// payload the bootloader handed to rt0. Implemented in assembly: rt0 stores
// the pointer the loader passed in %eax before calling into main.
func multibootInfoPtr() uintptr

// kernelImageStart returns the physical address of the first byte occupied
// by the loaded kernel image. Implemented in assembly, resolved from the
// linker-provided _kernel_start symbol.
func kernelImageStart() uintptr

// kernelImageEnd returns the physical address one past the last byte
// occupied by the loaded kernel image. Implemented in assembly, resolved
// from the linker-provided _kernel_end symbol.
func kernelImageEnd() uintptr
