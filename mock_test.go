package compute

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// fakePipeline implements Pipeline with a fixed thread-group shape.
type fakePipeline struct {
	name string
	size [3]int
}

func (p *fakePipeline) Kernel() string     { return p.name }
func (p *fakePipeline) EntryPoint() string { return "main" }

func (p *fakePipeline) ThreadGroupSize() (x, y, z int) {
	return p.size[0], p.size[1], p.size[2]
}

func (p *fakePipeline) Destroy() {}

// fakeBuffer implements Buffer in host memory.
type fakeBuffer struct {
	usage Usage

	mu        sync.Mutex
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *fakeBuffer) Size() int    { return len(b.data) }
func (b *fakeBuffer) Usage() Usage { return b.usage }

func (b *fakeBuffer) Write(data []byte) error {
	if err := CheckTransferSize(len(data), len(b.data)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(b.data, data)
	return nil
}

func (b *fakeBuffer) Read(dst []byte) error {
	if err := CheckTransferSize(len(dst), len(b.data)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	copy(dst, b.data)
	return nil
}

func (b *fakeBuffer) Map() ([]byte, error) {
	if b.usage == UsageDefault {
		return nil, fmt.Errorf("%w: map on Default usage", ErrInvalidUsage)
	}
	b.mapped = true
	return b.data, nil
}

func (b *fakeBuffer) Unmap() error {
	b.mapped = false
	return nil
}

func (b *fakeBuffer) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.destroyed = true
}

func (b *fakeBuffer) isDestroyed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.destroyed
}

// fakeTexture implements Texture in host memory.
type fakeTexture struct {
	w, h, d   int
	format    TextureFormat
	usage     Usage
	data      []byte
	destroyed bool
}

func newFakeTexture(w, h, d int, format TextureFormat, usage Usage) *fakeTexture {
	return &fakeTexture{
		w: w, h: h, d: d,
		format: format,
		usage:  usage,
		data:   make([]byte, TextureByteSize(w, h, d, format)),
	}
}

func (t *fakeTexture) Width() int            { return t.w }
func (t *fakeTexture) Height() int           { return t.h }
func (t *fakeTexture) Depth() int            { return t.d }
func (t *fakeTexture) Format() TextureFormat { return t.format }
func (t *fakeTexture) Usage() Usage          { return t.usage }
func (t *fakeTexture) ByteSize() int         { return len(t.data) }

func (t *fakeTexture) Write(data []byte) error {
	if len(data) != len(t.data) {
		return fmt.Errorf("%w: %d bytes, texture holds %d", ErrSizeMismatch, len(data), len(t.data))
	}
	copy(t.data, data)
	return nil
}

func (t *fakeTexture) Read(dst []byte) error {
	if len(dst) != len(t.data) {
		return fmt.Errorf("%w: %d bytes, texture holds %d", ErrSizeMismatch, len(dst), len(t.data))
	}
	copy(dst, t.data)
	return nil
}

func (t *fakeTexture) Destroy() { t.destroyed = true }

// fakeDevice implements Device over host memory, counting allocations so
// pool tests can assert reuse.
type fakeDevice struct {
	buffersCreated  atomic.Int32
	texturesCreated atomic.Int32
}

func (d *fakeDevice) Info() DeviceInfo {
	return DeviceInfo{Name: "fake", Kind: KindCPU}
}

func (d *fakeDevice) CreateBuffer(size int, usage Usage) (Buffer, error) {
	d.buffersCreated.Add(1)
	return &fakeBuffer{usage: usage, data: make([]byte, size)}, nil
}

func (d *fakeDevice) CreateBufferInit(data []byte, usage Usage) (Buffer, error) {
	b, err := d.CreateBuffer(len(data), usage)
	if err != nil {
		return nil, err
	}
	if err := b.Write(data); err != nil {
		return nil, err
	}
	return b, nil
}

func (d *fakeDevice) CreateTexture2D(w, h int, format TextureFormat, usage Usage) (Texture, error) {
	d.texturesCreated.Add(1)
	return newFakeTexture(w, h, 1, format, usage), nil
}

func (d *fakeDevice) CreateTexture3D(w, h, depth int, format TextureFormat, usage Usage) (Texture, error) {
	d.texturesCreated.Add(1)
	return newFakeTexture(w, h, depth, format, usage), nil
}

func (d *fakeDevice) CreatePipeline(kernel, entryPoint string) (Pipeline, error) {
	return &fakePipeline{name: kernel, size: [3]int{1, 1, 1}}, nil
}

func (d *fakeDevice) CreateCommandBuffer() (*CommandBuffer, error) {
	return NewCommandBuffer(), nil
}

func (d *fakeDevice) Submit(cb *CommandBuffer) error {
	if _, err := cb.TakeForSubmit(); err != nil {
		return err
	}
	cb.Retire()
	return nil
}

func (d *fakeDevice) WaitIdle() error { return nil }
func (d *fakeDevice) Close() error    { return nil }
