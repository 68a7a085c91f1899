package wgpu

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compute"
)

// gpuTimeout bounds every submission wait. A device that cannot retire
// work in this window is treated as lost.
const gpuTimeout = 10 * time.Second

// pollInterval is the sleep between submission-completion polls.
const pollInterval = 100 * time.Microsecond

// inflight tracks one submission between Submit and WaitIdle.
type inflight struct {
	index   uint64
	cmd     hal.CommandBuffer
	cb      *compute.CommandBuffer
	cleanup []func()
}

// Device is a compute device over one opened HAL device and its queue.
type Device struct {
	backendName string
	info        compute.DeviceInfo

	// mu guards the queue, encoder state and the inflight list. The HAL
	// device is externally synchronized, matching wgpu-hal's contract.
	mu       sync.Mutex
	closed   bool
	instance hal.Instance
	dev      hal.Device
	queue    hal.Queue
	inflight []inflight

	resMu     sync.Mutex
	buffers   map[*buffer]struct{}
	textures  map[*texture]struct{}
	pipelines map[*pipeline]struct{}
}

// newDevice wraps an opened HAL device. Separated from Open so tests can
// inject a mock HAL device.
func newDevice(backendName string, kind compute.DeviceKind, adapterName string,
	instance hal.Instance, dev hal.Device, queue hal.Queue) *Device {
	return &Device{
		backendName: backendName,
		info: compute.DeviceInfo{
			Name: adapterName,
			Kind: kind,
		},
		instance:  instance,
		dev:       dev,
		queue:     queue,
		buffers:   make(map[*buffer]struct{}),
		textures:  make(map[*texture]struct{}),
		pipelines: make(map[*pipeline]struct{}),
	}
}

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo { return d.info }

// native wraps a HAL error with backend and operation context.
func (d *Device) native(op string, err error) error {
	return &compute.NativeError{Backend: d.backendName, Op: op, Err: err}
}

func (d *Device) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	return nil
}

// CreateCommandBuffer implements compute.Device.
func (d *Device) CreateCommandBuffer() (*compute.CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return compute.NewCommandBuffer(), nil
}

// Submit implements compute.Device. The op list is translated into one HAL
// command buffer: bind state accumulates until each dispatch, which gets
// its own compute pass; copies are encoded directly. The submission index
// is tracked until WaitIdle retires it.
func (d *Device) Submit(cb *compute.CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Reject before consuming cb so a failed submit leaves it recorded.
	if d.closed {
		return compute.ErrDeviceClosed
	}
	ops, err := cb.TakeForSubmit()
	if err != nil {
		return err
	}

	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "compute-cb"})
	if err != nil {
		return d.native("CreateCommandEncoder", err)
	}
	if err := enc.BeginEncoding("compute-cb"); err != nil {
		return d.native("BeginEncoding", err)
	}

	var cleanup []func()
	fail := func(err error) error {
		enc.DiscardEncoding()
		for _, f := range cleanup {
			f()
		}
		return err
	}

	st := newExecState()
	for _, op := range ops {
		switch op.Kind {
		case compute.OpSetPipeline:
			p, ok := op.Pipeline.(*pipeline)
			if !ok {
				return fail(fmt.Errorf("%w: pipeline from another device", compute.ErrInvalidUsage))
			}
			st.pipeline = p

		case compute.OpSetBuffer:
			b, err := d.ownBuffer(op.Buffer)
			if err != nil {
				return fail(err)
			}
			st.bind(op.Slot)
			st.buffers[op.Slot] = b

		case compute.OpSetTexture:
			t, err := d.ownTexture(op.Texture)
			if err != nil {
				return fail(err)
			}
			st.bind(op.Slot)
			st.textures[op.Slot] = t

		case compute.OpSetBytes:
			st.bind(op.Slot)
			st.bytes[op.Slot] = op.Bytes

		case compute.OpDispatch:
			if err := d.encodeDispatch(enc, st, op.Groups, &cleanup); err != nil {
				return fail(err)
			}

		case compute.OpCopyBuffer:
			src, err := d.ownBuffer(op.SrcBuffer)
			if err != nil {
				return fail(err)
			}
			dst, err := d.ownBuffer(op.DstBuffer)
			if err != nil {
				return fail(err)
			}
			enc.CopyBufferToBuffer(src.halBuf, dst.halBuf, []hal.BufferCopy{{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      uint64(alignUp(op.Size, copyAlignment)),
			}})

		case compute.OpCopyTexture:
			src, err := d.ownTexture(op.SrcTexture)
			if err != nil {
				return fail(err)
			}
			dst, err := d.ownTexture(op.DstTexture)
			if err != nil {
				return fail(err)
			}
			if err := d.encodeCopyTexture(enc, src, dst, &cleanup); err != nil {
				return fail(err)
			}

		default:
			return fail(fmt.Errorf("%w: unknown op %s", compute.ErrInvalidUsage, op.Kind))
		}
	}

	cmd, err := enc.EndEncoding()
	if err != nil {
		for _, f := range cleanup {
			f()
		}
		return d.native("EndEncoding", err)
	}

	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.dev.FreeCommandBuffer(cmd)
		for _, f := range cleanup {
			f()
		}
		return d.native("Submit", err)
	}

	d.inflight = append(d.inflight, inflight{index: index, cmd: cmd, cb: cb, cleanup: cleanup})
	compute.Logger().Debug("command buffer submitted",
		"backend", d.backendName, "ops", len(ops), "inflight", len(d.inflight))
	return nil
}

// WaitIdle implements compute.Device. It waits for every inflight
// submission, retires the corresponding command buffers and reclaims
// transient resources created during encoding.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	return d.drainLocked()
}

// drainLocked retires all inflight submissions. Caller holds d.mu.
func (d *Device) drainLocked() error {
	var firstErr error
	for _, in := range d.inflight {
		if err := d.waitSubmissionLocked(in.index); err != nil && firstErr == nil {
			firstErr = err
		}
		d.dev.FreeCommandBuffer(in.cmd)
		for _, f := range in.cleanup {
			f()
		}
		in.cb.Retire()
	}
	d.inflight = d.inflight[:0]
	return firstErr
}

// waitSubmissionLocked polls the queue until the given submission index has
// completed or gpuTimeout expires. Caller holds d.mu.
func (d *Device) waitSubmissionLocked(index uint64) error {
	deadline := time.Now().Add(gpuTimeout)
	for d.queue.PollCompleted() < index {
		if time.Now().After(deadline) {
			return fmt.Errorf("compute: %s: submission %d not complete after %v",
				d.backendName, index, gpuTimeout)
		}
		time.Sleep(pollInterval)
	}
	return nil
}

// Close implements compute.Device. Inflight work is drained first; any
// resources the caller leaked are destroyed so nothing outlives the
// device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	drainErr := d.drainLocked()
	d.closed = true
	d.mu.Unlock()

	d.resMu.Lock()
	leaked := len(d.buffers) + len(d.textures) + len(d.pipelines)
	bufs := make([]*buffer, 0, len(d.buffers))
	for b := range d.buffers {
		bufs = append(bufs, b)
	}
	texs := make([]*texture, 0, len(d.textures))
	for t := range d.textures {
		texs = append(texs, t)
	}
	pipes := make([]*pipeline, 0, len(d.pipelines))
	for p := range d.pipelines {
		pipes = append(pipes, p)
	}
	d.resMu.Unlock()

	for _, b := range bufs {
		b.Destroy()
	}
	for _, t := range texs {
		t.Destroy()
	}
	for _, p := range pipes {
		p.Destroy()
	}
	if leaked > 0 {
		compute.Logger().Warn("device closed with live resources",
			"backend", d.backendName, "count", leaked)
	}

	d.dev.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	compute.Logger().Info("device closed", "backend", d.backendName)
	return drainErr
}

// ownBuffer unwraps a pooled façade if present and asserts the buffer was
// created by this device.
func (d *Device) ownBuffer(b compute.Buffer) (*buffer, error) {
	if pb, ok := b.(*compute.PooledBuffer); ok {
		b = pb.Buffer
	}
	own, ok := b.(*buffer)
	if !ok || own.dev != d {
		return nil, fmt.Errorf("%w: buffer from another device", compute.ErrInvalidUsage)
	}
	return own, nil
}

// ownTexture is the texture counterpart of ownBuffer.
func (d *Device) ownTexture(t compute.Texture) (*texture, error) {
	if pt, ok := t.(*compute.PooledTexture); ok {
		t = pt.Texture
	}
	own, ok := t.(*texture)
	if !ok || own.dev != d {
		return nil, fmt.Errorf("%w: texture from another device", compute.ErrInvalidUsage)
	}
	return own, nil
}

// copyBufferSync encodes a single buffer copy, submits it and blocks until
// the submission completes. Used by the staging transfer paths.
func (d *Device) copyBufferSync(src, dst hal.Buffer, size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}

	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "staging-copy"})
	if err != nil {
		return d.native("CreateCommandEncoder", err)
	}
	if err := enc.BeginEncoding("staging-copy"); err != nil {
		return d.native("BeginEncoding", err)
	}
	enc.CopyBufferToBuffer(src, dst, []hal.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: size}})
	return d.submitSyncLocked(enc)
}

// submitSyncLocked finishes enc, submits and waits. Caller holds d.mu.
func (d *Device) submitSyncLocked(enc hal.CommandEncoder) error {
	cmd, err := enc.EndEncoding()
	if err != nil {
		return d.native("EndEncoding", err)
	}
	defer d.dev.FreeCommandBuffer(cmd)

	index, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		return d.native("Submit", err)
	}
	return d.waitSubmissionLocked(index)
}

// readMapped copies len(dst) bytes out of a host-visible HAL buffer
// through a transient map.
func (d *Device) readMapped(buf hal.Buffer, dst []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	mapping, err := d.dev.MapBuffer(buf, 0, uint64(len(dst)))
	if err != nil {
		return d.native("MapBuffer", err)
	}
	copy(dst, unsafe.Slice((*byte)(mapping.Ptr), len(dst)))
	if err := d.dev.UnmapBuffer(buf); err != nil {
		return d.native("UnmapBuffer", err)
	}
	return nil
}
