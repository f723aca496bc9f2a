package kernel

// Error describes a kernel error. Kernel errors are declared as package-level
// pointers to Error values as there is no allocator available at the point
// where most of them are raised, so errors.New cannot be used.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
