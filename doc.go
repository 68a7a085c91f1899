// Package compute provides a backend-agnostic GPU compute layer.
//
// A Device represents a logical compute device opened through one of the
// registered backends (the gogpu/wgpu HAL for Vulkan-class APIs, or a
// software device for tests). Devices create buffers, textures and compute
// pipelines, and execute work recorded into command buffers.
//
// Resources carry a usage class that determines how data moves between the
// host and the device:
//
//   - UsageDefault: device-local memory. Host transfers are routed through
//     an internal staging buffer; Map is not permitted.
//   - UsageUpload: host-visible memory for frequent CPU to GPU transfer.
//   - UsageReadback: host-visible memory for GPU to CPU transfer.
//
// Compute kernels are WGSL modules registered by name in the kernel
// registry (see RegisterKernel). A pipeline is compiled from a registered
// kernel at CreatePipeline time; its thread-group size is taken from the
// kernel's @workgroup_size attribute.
//
// Work is recorded host-side into a CommandBuffer between BeginCompute and
// EndCompute, then handed to Device.Submit exactly once. Submission is
// asynchronous; WaitIdle blocks until all submitted work has executed.
//
// A Pool recycles buffers and textures by exact signature to avoid
// allocation churn in per-frame or per-batch workloads.
//
// Typical use:
//
//	dev, err := backend.New()
//	if err != nil {
//		// no usable GPU backend on this platform
//	}
//	defer dev.Close()
//
//	buf, _ := dev.CreateBuffer(1024, compute.UsageDefault)
//	pipe, _ := dev.CreatePipeline("scale", "")
//
//	cb, _ := dev.CreateCommandBuffer()
//	cb.BeginCompute()
//	cb.SetPipeline(pipe)
//	cb.SetBuffer(0, buf)
//	cb.DispatchThreads(256, 1, 1)
//	cb.EndCompute()
//	dev.Submit(cb)
//	dev.WaitIdle()
package compute
