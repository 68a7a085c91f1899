package compute

import (
	"errors"
	"fmt"
)

// Errors reported by devices, resources and the pool. Backend packages wrap
// these with operation context via fmt.Errorf("%w: ...").
var (
	// ErrUnsupportedPlatform is returned when no backend in the platform
	// fallback chain can open a device.
	ErrUnsupportedPlatform = errors.New("compute: no supported backend for this platform")

	// ErrAllocation is returned when the native allocator cannot satisfy a
	// resource creation request. Callers may retry with a smaller request
	// or trim their pools.
	ErrAllocation = errors.New("compute: resource allocation failed")

	// ErrUnsupportedFormat is returned when a backend cannot realize the
	// requested texture format and usage combination.
	ErrUnsupportedFormat = errors.New("compute: unsupported texture format")

	// ErrPipelineCompilation is returned when a kernel module cannot be
	// compiled or loaded.
	ErrPipelineCompilation = errors.New("compute: pipeline compilation failed")

	// ErrKernelNotFound is returned when a pipeline names a kernel that is
	// not in the registry.
	ErrKernelNotFound = errors.New("compute: kernel not registered")

	// ErrInvalidUsage is returned when an operation is not permitted by a
	// resource's usage class, or when arguments violate the call contract.
	ErrInvalidUsage = errors.New("compute: operation not permitted by usage")

	// ErrInvalidRecordingState is returned when a command buffer operation
	// is issued outside the state that permits it.
	ErrInvalidRecordingState = errors.New("compute: invalid command buffer state")

	// ErrInvalidCopy is returned when a copy operation fails validation
	// (nil or identical resources, size or bounds violations).
	ErrInvalidCopy = errors.New("compute: invalid copy")

	// ErrAlreadySubmitted is returned when a command buffer is submitted
	// more than once.
	ErrAlreadySubmitted = errors.New("compute: command buffer already submitted")

	// ErrSizeMismatch is returned when caller-supplied data does not fit
	// the target resource. Rejected before any native call is issued.
	ErrSizeMismatch = errors.New("compute: data size does not match resource")

	// ErrDeviceClosed is returned when operating on a closed device.
	ErrDeviceClosed = errors.New("compute: device has been closed")
)

// NativeError wraps an error reported by the underlying native API.
// Native failures are never swallowed; they are carried here with enough
// context to diagnose without inspecting the backend.
type NativeError struct {
	// Backend is the backend name, e.g. "vulkan".
	Backend string

	// Op is the high-level operation that failed, e.g. "CreateBuffer".
	Op string

	// Err is the originating native error.
	Err error
}

// Error implements the error interface.
func (e *NativeError) Error() string {
	return fmt.Sprintf("compute: %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap returns the originating native error.
func (e *NativeError) Unwrap() error { return e.Err }
