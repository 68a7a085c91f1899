package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compute"
)

// buffer wraps a HAL buffer. size is the logical size requested by the
// caller; the HAL allocation is padded to the copy alignment.
type buffer struct {
	dev   *Device
	usage compute.Usage
	size  int

	mu        sync.Mutex
	halBuf    hal.Buffer
	shadow    []byte // host shadow while mapped
	mapped    bool
	destroyed bool
}

// CreateBuffer implements compute.Device.
func (d *Device) CreateBuffer(size int, usage compute.Usage) (compute.Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d must be positive", compute.ErrInvalidUsage, size)
	}

	halBuf, err := d.createHALBuffer("buffer", size, bufferUsageFlags(usage))
	if err != nil {
		return nil, err
	}
	b := &buffer{dev: d, usage: usage, size: size, halBuf: halBuf}
	d.resMu.Lock()
	d.buffers[b] = struct{}{}
	d.resMu.Unlock()
	return b, nil
}

// CreateBufferInit implements compute.Device. The buffer is sized exactly
// to the supplied data.
func (d *Device) CreateBufferInit(data []byte, usage compute.Usage) (compute.Buffer, error) {
	b, err := d.CreateBuffer(len(data), usage)
	if err != nil {
		return nil, err
	}
	if err := b.Write(data); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// createHALBuffer allocates a HAL buffer padded to the copy alignment.
// Native out-of-memory surfaces as ErrAllocation with the HAL error
// attached.
func (d *Device) createHALBuffer(label string, size int, usage gputypes.BufferUsage) (hal.Buffer, error) {
	halBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(alignUp(size, copyAlignment)),
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", compute.ErrAllocation, size,
			d.native("CreateBuffer", err))
	}
	return halBuf, nil
}

func (b *buffer) Size() int            { return b.size }
func (b *buffer) Usage() compute.Usage { return b.usage }

// Write implements compute.Buffer. Host-visible buffers take the direct
// queue write; Default buffers stage through a transient Upload buffer and
// a synchronous device-side copy.
func (b *buffer) Write(data []byte) error {
	if err := compute.CheckTransferSize(len(data), b.size); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("%w: buffer destroyed", compute.ErrInvalidUsage)
	}

	padded := padToCopyAlignment(data)
	if b.usage != compute.UsageDefault {
		b.dev.queue.WriteBuffer(b.halBuf, 0, padded)
		return nil
	}

	staging, err := b.dev.createHALBuffer("upload-staging", len(padded),
		gputypes.BufferUsageMapWrite|gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer b.dev.dev.DestroyBuffer(staging)

	b.dev.queue.WriteBuffer(staging, 0, padded)
	return b.dev.copyBufferSync(staging, b.halBuf, uint64(len(padded)))
}

// Read implements compute.Buffer. Callers synchronize with WaitIdle before
// reading GPU-written data; the staging copy itself waits for completion.
func (b *buffer) Read(dst []byte) error {
	if err := compute.CheckTransferSize(len(dst), b.size); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("%w: buffer destroyed", compute.ErrInvalidUsage)
	}

	tmp := make([]byte, alignUp(len(dst), copyAlignment))
	if err := b.readDeviceLocked(tmp); err != nil {
		return err
	}
	copy(dst, tmp)
	return nil
}

// readDeviceLocked fills tmp with the buffer's device contents. Readback
// buffers are host-mappable and read directly; Upload and Default bounce
// through a transient MapRead staging buffer. Caller holds b.mu and tmp is
// copy-aligned.
func (b *buffer) readDeviceLocked(tmp []byte) error {
	if b.usage == compute.UsageReadback {
		return b.dev.readMapped(b.halBuf, tmp)
	}

	staging, err := b.dev.createHALBuffer("readback-staging", len(tmp),
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer b.dev.dev.DestroyBuffer(staging)
	if err := b.dev.copyBufferSync(b.halBuf, staging, uint64(len(tmp))); err != nil {
		return err
	}
	return b.dev.readMapped(staging, tmp)
}

// Map implements compute.Buffer. Mapped memory is a host shadow filled
// from the device, so a mapping always reflects the current contents
// regardless of who last wrote them. Upload mappings flush on Unmap.
func (b *buffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, fmt.Errorf("%w: buffer destroyed", compute.ErrInvalidUsage)
	}
	if b.usage == compute.UsageDefault {
		return nil, fmt.Errorf("%w: map on Default usage", compute.ErrInvalidUsage)
	}
	if b.mapped {
		return nil, fmt.Errorf("%w: buffer already mapped", compute.ErrInvalidUsage)
	}

	shadow := make([]byte, alignUp(b.size, copyAlignment))
	if err := b.readDeviceLocked(shadow); err != nil {
		return nil, err
	}
	b.shadow = shadow
	b.mapped = true
	return shadow[:b.size], nil
}

// Unmap implements compute.Buffer. Upload mappings flush the shadow to the
// device; unmapping an unmapped buffer is a no-op.
func (b *buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mapped {
		return nil
	}
	b.mapped = false
	shadow := b.shadow
	b.shadow = nil
	if b.destroyed {
		return nil
	}
	if b.usage == compute.UsageUpload {
		b.dev.queue.WriteBuffer(b.halBuf, 0, shadow)
	}
	return nil
}

// Destroy implements compute.Buffer. Idempotent.
func (b *buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mapped = false
	b.shadow = nil
	halBuf := b.halBuf
	b.halBuf = nil
	b.mu.Unlock()

	b.dev.resMu.Lock()
	delete(b.dev.buffers, b)
	b.dev.resMu.Unlock()

	if halBuf != nil {
		b.dev.dev.DestroyBuffer(halBuf)
	}
}

// padToCopyAlignment returns data padded with zeros up to the copy
// alignment, or data itself when already aligned.
func padToCopyAlignment(data []byte) []byte {
	if len(data)%copyAlignment == 0 {
		return data
	}
	padded := make([]byte, alignUp(len(data), copyAlignment))
	copy(padded, data)
	return padded
}
