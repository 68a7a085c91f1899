package compute

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is an opaque region of device-addressable memory.
//
// The usage class fixed at creation governs host access: Upload and
// Readback buffers are host-visible and support Map; Default buffers are
// device-local and transfer through staging inside Write and Read.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() int

	// Usage returns the usage class fixed at creation.
	Usage() Usage

	// Write copies len(data) bytes into the buffer starting at offset 0.
	// Fails with ErrSizeMismatch if len(data) exceeds Size. For Default
	// usage the transfer is staged through an Upload buffer and a
	// device-side copy.
	Write(data []byte) error

	// Read fills dst from the buffer starting at offset 0. Fails with
	// ErrSizeMismatch if len(dst) exceeds Size. For Default usage the
	// transfer is staged through a Readback buffer. Callers must
	// synchronize with WaitIdle before reading GPU-written data.
	Read(dst []byte) error

	// Map returns the host-visible contents for zero-copy access. Fails
	// with ErrInvalidUsage on Default usage. The slice is valid until
	// Unmap.
	Map() ([]byte, error)

	// Unmap releases a mapping and flushes host writes to the device.
	// Unmapping an unmapped buffer is a no-op.
	Unmap() error

	// Destroy releases the buffer. Idempotent.
	Destroy()
}

// WriteFloat32s writes src to b as little-endian 32-bit floats.
func WriteFloat32s(b Buffer, src []float32) error {
	data := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return b.Write(data)
}

// ReadFloat32s fills dst with little-endian 32-bit floats read from b.
func ReadFloat32s(b Buffer, dst []float32) error {
	data := make([]byte, len(dst)*4)
	if err := b.Read(data); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return nil
}

// WriteUint32s writes src to b as little-endian 32-bit integers.
func WriteUint32s(b Buffer, src []uint32) error {
	data := make([]byte, len(src)*4)
	for i, v := range src {
		binary.LittleEndian.PutUint32(data[i*4:], v)
	}
	return b.Write(data)
}

// ReadUint32s fills dst with little-endian 32-bit integers read from b.
func ReadUint32s(b Buffer, dst []uint32) error {
	data := make([]byte, len(dst)*4)
	if err := b.Read(data); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return nil
}

// CheckTransferSize validates a host transfer of n bytes against a resource
// of capacity bytes. Backends call this before touching the native API.
func CheckTransferSize(n, capacity int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative length %d", ErrSizeMismatch, n)
	}
	if n > capacity {
		return fmt.Errorf("%w: %d bytes exceed resource size %d", ErrSizeMismatch, n, capacity)
	}
	return nil
}
