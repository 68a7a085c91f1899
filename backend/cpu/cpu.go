// Package cpu provides a software compute device. It implements the full
// device contract in host memory: staging transfers, copies and host-
// implemented kernels behave exactly like their GPU counterparts, which
// makes the device the reference implementation for tests and for
// environments without GPU access.
//
// The cpu backend registers itself under the name "cpu" but is never part
// of the platform fallback chain; open it explicitly via New or
// backend.NewNamed.
package cpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/compute"
	"github.com/gogpu/compute/backend"
)

func init() {
	backend.Register(backend.NameCPU, func() backend.Backend { return cpuBackend{} })
}

// cpuBackend satisfies the backend contract.
type cpuBackend struct{}

func (cpuBackend) Name() string                  { return backend.NameCPU }
func (cpuBackend) Kind() compute.DeviceKind      { return compute.KindCPU }
func (cpuBackend) Open() (compute.Device, error) { return New() }

// submission is one command buffer queued for execution.
type submission struct {
	cb  *compute.CommandBuffer
	ops []compute.Op
}

// Device is the software compute device. Submissions execute on a single
// worker goroutine in submission order, mirroring a one-queue GPU
// timeline; WaitIdle blocks until the queue drains.
type Device struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []submission
	pending int
	closed  bool
	done    chan struct{}

	resMu    sync.Mutex
	buffers  map[*buffer]struct{}
	textures map[*texture]struct{}
}

// New opens a software device.
func New() (compute.Device, error) {
	d := &Device{
		done:     make(chan struct{}),
		buffers:  make(map[*buffer]struct{}),
		textures: make(map[*texture]struct{}),
	}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	compute.Logger().Info("device opened", "backend", backend.NameCPU)
	return d, nil
}

// Info implements compute.Device.
func (d *Device) Info() compute.DeviceInfo {
	return compute.DeviceInfo{
		Name: "software",
		Kind: compute.KindCPU,
	}
}

// run drains the submission queue until Close.
func (d *Device) run() {
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			close(d.done)
			return
		}
		sub := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()

		if err := d.execute(sub.ops); err != nil {
			compute.Logger().Warn("command buffer execution failed", "error", err)
		}
		sub.cb.Retire()

		d.mu.Lock()
		d.pending--
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

// CreateBuffer implements compute.Device.
func (d *Device) CreateBuffer(size int, usage compute.Usage) (compute.Buffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d must be positive", compute.ErrInvalidUsage, size)
	}
	if !validUsage(usage) {
		return nil, fmt.Errorf("%w: usage %s", compute.ErrInvalidUsage, usage)
	}
	b := &buffer{dev: d, data: make([]byte, size), usage: usage}
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
	copy(b.(*buffer).data, data)
	return b, nil
}

// CreateTexture2D implements compute.Device.
func (d *Device) CreateTexture2D(width, height int, format compute.TextureFormat, usage compute.Usage) (compute.Texture, error) {
	return d.createTexture(width, height, 1, format, usage)
}

// CreateTexture3D implements compute.Device.
func (d *Device) CreateTexture3D(width, height, depth int, format compute.TextureFormat, usage compute.Usage) (compute.Texture, error) {
	return d.createTexture(width, height, depth, format, usage)
}

func (d *Device) createTexture(width, height, depth int, format compute.TextureFormat, usage compute.Usage) (compute.Texture, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: texture dimensions %dx%dx%d must be positive",
			compute.ErrInvalidUsage, width, height, depth)
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %s", compute.ErrUnsupportedFormat, format)
	}
	if !validUsage(usage) {
		return nil, fmt.Errorf("%w: usage %s", compute.ErrInvalidUsage, usage)
	}
	t := &texture{
		dev:    d,
		data:   make([]byte, compute.TextureByteSize(width, height, depth, format)),
		w:      width,
		h:      height,
		d:      depth,
		format: format,
		usage:  usage,
	}
	d.resMu.Lock()
	d.textures[t] = struct{}{}
	d.resMu.Unlock()
	return t, nil
}

// CreatePipeline implements compute.Device. The kernel must be registered;
// host-only kernels report a thread-group size of (1,1,1).
func (d *Device) CreatePipeline(kernel, entryPoint string) (compute.Pipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	k, ok := compute.LookupKernel(kernel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", compute.ErrKernelNotFound, kernel)
	}
	if entryPoint == "" {
		entryPoint = "main"
	}
	p := &pipeline{kernel: k, entry: entryPoint, size: [3]int{1, 1, 1}}
	if k.Source != "" {
		x, y, z, err := compute.WorkgroupSize(k.Source)
		if err != nil {
			return nil, fmt.Errorf("kernel %q: %w", kernel, err)
		}
		p.size = [3]int{x, y, z}
	}
	return p, nil
}

// CreateCommandBuffer implements compute.Device.
func (d *Device) CreateCommandBuffer() (*compute.CommandBuffer, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	return compute.NewCommandBuffer(), nil
}

// Submit implements compute.Device. The command buffer is enqueued for the
// worker goroutine; Submit never blocks on execution.
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
	d.queue = append(d.queue, submission{cb: cb, ops: ops})
	d.pending++
	d.cond.Signal()
	return nil
}

// WaitIdle implements compute.Device.
func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.pending > 0 {
		d.cond.Wait()
	}
	if d.closed {
		return compute.ErrDeviceClosed
	}
	return nil
}

// Close implements compute.Device. Pending submissions finish first; any
// resources the caller leaked are destroyed here so nothing outlives the
// device.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done

	d.resMu.Lock()
	leaked := len(d.buffers) + len(d.textures)
	bufs := make([]*buffer, 0, len(d.buffers))
	for b := range d.buffers {
		bufs = append(bufs, b)
	}
	texs := make([]*texture, 0, len(d.textures))
	for t := range d.textures {
		texs = append(texs, t)
	}
	d.resMu.Unlock()

	for _, b := range bufs {
		b.Destroy()
	}
	for _, t := range texs {
		t.Destroy()
	}
	if leaked > 0 {
		compute.Logger().Warn("device closed with live resources", "count", leaked)
	}
	compute.Logger().Info("device closed", "backend", backend.NameCPU)
	return nil
}

func (d *Device) checkOpen() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}
	return nil
}

func validUsage(u compute.Usage) bool {
	switch u {
	case compute.UsageDefault, compute.UsageUpload, compute.UsageReadback:
		return true
	default:
		return false
	}
}
