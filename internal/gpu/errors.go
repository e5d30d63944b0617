package gpu

import "errors"

var (
	// ErrSourceEmpty means the kernel source could not be loaded.
	ErrSourceEmpty = errors.New("kernel source is empty")
	// ErrCompile covers shader compile, program link and program build failures.
	ErrCompile = errors.New("kernel compilation failed")
	// ErrContext covers context and command queue creation failures.
	ErrContext = errors.New("execution context unavailable")
	// ErrDispatch covers upload, execution and readback failures.
	ErrDispatch = errors.New("kernel dispatch failed")
	// ErrUnavailable is returned by backends compiled out of this binary.
	ErrUnavailable = errors.New("backend not available in this build")
	// ErrDimensions is a violated dispatch precondition.
	ErrDimensions = errors.New("invalid matrix dimensions")
)
