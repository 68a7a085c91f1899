package compute

// DeviceInfo describes an opened device.
type DeviceInfo struct {
	// Name is the human-readable adapter name reported by the backend.
	Name string

	// Kind is the native API family of the device.
	Kind DeviceKind

	// MaxBufferSize is the largest buffer the device can allocate, in
	// bytes. Zero means the backend did not report a limit.
	MaxBufferSize uint64
}

// Device is a logical compute device. It creates all other resources and
// executes submitted command buffers on a single in-order queue.
//
// A Device is safe for concurrent use: multiple goroutines may create
// resources and submit command buffers. Command buffers submitted from one
// goroutine execute in submission order; there is no ordering guarantee
// across goroutines unless the caller serializes via WaitIdle.
//
// Every resource created by a device must be destroyed before Close; the
// device releases stragglers itself and logs a warning, so no resource
// outlives its device.
type Device interface {
	// Info returns static information about the device.
	Info() DeviceInfo

	// CreateBuffer allocates a buffer of size bytes with the given usage.
	// Fails with ErrAllocation if the native allocator is out of memory.
	CreateBuffer(size int, usage Usage) (Buffer, error)

	// CreateBufferInit allocates a buffer sized exactly to len(data) and
	// fills it with data.
	CreateBufferInit(data []byte, usage Usage) (Buffer, error)

	// CreateTexture2D allocates a 2D texture. Fails with
	// ErrUnsupportedFormat if the backend cannot realize the format and
	// usage combination.
	CreateTexture2D(width, height int, format TextureFormat, usage Usage) (Texture, error)

	// CreateTexture3D allocates a 3D texture.
	CreateTexture3D(width, height, depth int, format TextureFormat, usage Usage) (Texture, error)

	// CreatePipeline compiles the named registered kernel into a compute
	// pipeline. An empty entryPoint selects "main". Fails with
	// ErrPipelineCompilation naming the missing or malformed kernel.
	CreatePipeline(kernel, entryPoint string) (Pipeline, error)

	// CreateCommandBuffer returns a new, empty, unsubmitted command buffer.
	CreateCommandBuffer() (*CommandBuffer, error)

	// Submit enqueues a recorded command buffer for execution. Submit does
	// not block on GPU completion. A command buffer may be submitted
	// exactly once; resubmission fails with ErrAlreadySubmitted.
	Submit(cb *CommandBuffer) error

	// WaitIdle blocks until all previously submitted work has completed.
	// It is the synchronization point before any host read of GPU-written
	// data.
	WaitIdle() error

	// Close releases the device and any resources still alive. Close is
	// idempotent.
	Close() error
}
