package compute

// Pipeline is a compiled compute kernel bound to one device, together with
// the thread-group shape declared by the kernel's @workgroup_size
// attribute. CommandBuffer.DispatchThreads uses that shape to convert a
// thread count into a thread-group count.
type Pipeline interface {
	// Kernel returns the registered kernel name the pipeline was compiled
	// from.
	Kernel() string

	// EntryPoint returns the shader entry point, "main" by default.
	EntryPoint() string

	// ThreadGroupSize returns the thread-group shape declared by the
	// kernel.
	ThreadGroupSize() (x, y, z int)

	// Destroy releases the pipeline. Idempotent.
	Destroy()
}
