package kernel

// Error describes a kernel-internal error. All kernel errors are defined as
// package-level variables that are pointers to this structure. This
// requirement stems from the fact that the Go allocator is not available
// before kernel/mem/pmm and kernel/mem/heap finish bootstrapping, so
// errors.New cannot be used anywhere that might run before that point.
type Error struct {
	// Module is the subsystem that generated the error.
	Module string

	// Message is a short human-readable description of the error.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Module + ": " + e.Message
}
