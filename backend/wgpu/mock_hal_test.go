package wgpu

import (
	"bytes"
	"errors"
	"testing"
	"unsafe"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compute"
	"github.com/gogpu/compute/backend"
)

// The mocks embed the HAL interfaces and override only what the transfer
// and submit paths touch; anything else panics loudly via the nil embed.

type mockHALBuffer struct {
	hal.Buffer
	data []byte
}

type mockHALDevice struct {
	hal.Device
	buffersCreated int
}

func (d *mockHALDevice) CreateBuffer(desc *hal.BufferDescriptor) (hal.Buffer, error) {
	d.buffersCreated++
	return &mockHALBuffer{data: make([]byte, desc.Size)}, nil
}

func (d *mockHALDevice) DestroyBuffer(hal.Buffer) {}

func (d *mockHALDevice) CreateCommandEncoder(*hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return &mockHALEncoder{}, nil
}

func (d *mockHALDevice) FreeCommandBuffer(hal.CommandBuffer) {}

func (d *mockHALDevice) MapBuffer(b hal.Buffer, offset, size uint64) (hal.BufferMapping, error) {
	data := b.(*mockHALBuffer).data[offset : offset+size]
	return hal.BufferMapping{Ptr: unsafe.Pointer(&data[0]), IsCoherent: true}, nil
}

func (d *mockHALDevice) UnmapBuffer(hal.Buffer) error { return nil }

type mockHALQueue struct {
	hal.Queue
	submitted uint64
}

func (q *mockHALQueue) WriteBuffer(b hal.Buffer, offset uint64, data []byte) error {
	copy(b.(*mockHALBuffer).data[offset:], data)
	return nil
}

func (q *mockHALQueue) Submit([]hal.CommandBuffer) (uint64, error) {
	q.submitted++
	return q.submitted, nil
}

func (q *mockHALQueue) PollCompleted() uint64 { return q.submitted }

type mockHALEncoder struct {
	hal.CommandEncoder
}

func (e *mockHALEncoder) BeginEncoding(string) error { return nil }

func (e *mockHALEncoder) CopyBufferToBuffer(src, dst hal.Buffer, regions []hal.BufferCopy) {
	s, d := src.(*mockHALBuffer), dst.(*mockHALBuffer)
	for _, r := range regions {
		copy(d.data[r.DstOffset:], s.data[r.SrcOffset:r.SrcOffset+r.Size])
	}
}

func (e *mockHALEncoder) EndEncoding() (hal.CommandBuffer, error) { return nil, nil }

func (e *mockHALEncoder) DiscardEncoding() {}

func newMockedDevice() (*Device, *mockHALDevice, *mockHALQueue) {
	halDev := &mockHALDevice{}
	queue := &mockHALQueue{}
	d := newDevice(backend.NameVulkan, compute.KindVulkan, "mock-adapter", nil, halDev, queue)
	return d, halDev, queue
}

func TestUploadMapSeesWrittenContents(t *testing.T) {
	d, _, _ := newMockedDevice()

	b, err := d.CreateBuffer(4, compute.UsageUpload)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := b.Write([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	m, err := b.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if !bytes.Equal(m, []byte{1, 2, 3, 4}) {
		t.Fatalf("Map() = %v, want the previously written contents", m)
	}

	// A partial update through the mapping must not clobber the rest.
	m[0] = 9
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}

	got := make([]byte, 4)
	if err := b.Read(got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, []byte{9, 2, 3, 4}) {
		t.Errorf("Read() after unmap = %v, want [9 2 3 4]", got)
	}
}

func TestReadbackMapReadsDirectly(t *testing.T) {
	d, halDev, _ := newMockedDevice()

	b, err := d.CreateBufferInit([]byte{5, 6, 7, 8}, compute.UsageReadback)
	if err != nil {
		t.Fatalf("CreateBufferInit() error = %v", err)
	}
	created := halDev.buffersCreated

	m, err := b.Map()
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if !bytes.Equal(m, []byte{5, 6, 7, 8}) {
		t.Errorf("Map() = %v, want [5 6 7 8]", m)
	}
	// Readback is host-mappable; no staging buffer should be allocated.
	if halDev.buffersCreated != created {
		t.Errorf("Map() allocated %d staging buffers, want 0", halDev.buffersCreated-created)
	}
	if err := b.Unmap(); err != nil {
		t.Fatalf("Unmap() error = %v", err)
	}
}

func TestSubmitCopyBufferRoundTrip(t *testing.T) {
	d, _, queue := newMockedDevice()

	src, err := d.CreateBufferInit([]byte{10, 20, 30, 40}, compute.UsageDefault)
	if err != nil {
		t.Fatalf("CreateBufferInit() error = %v", err)
	}
	dst, err := d.CreateBuffer(4, compute.UsageDefault)
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}

	cb := compute.NewCommandBuffer()
	if err := cb.BeginCompute(); err != nil {
		t.Fatal(err)
	}
	if err := cb.CopyBuffer(src, dst, 4); err != nil {
		t.Fatal(err)
	}
	if err := cb.EndCompute(); err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(cb); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := cb.State(); got != compute.StateSubmitted {
		t.Errorf("State() after Submit = %v, want %v", got, compute.StateSubmitted)
	}
	if err := d.WaitIdle(); err != nil {
		t.Fatalf("WaitIdle() error = %v", err)
	}
	if got := cb.State(); got != compute.StateRetired {
		t.Errorf("State() after WaitIdle = %v, want %v", got, compute.StateRetired)
	}
	if queue.submitted == 0 {
		t.Error("no submissions reached the queue")
	}

	got := make([]byte, 4)
	if err := dst.Read(got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !bytes.Equal(got, []byte{10, 20, 30, 40}) {
		t.Errorf("Read() = %v, want [10 20 30 40]", got)
	}
}

func TestSubmitClosedDeviceKeepsCommandBuffer(t *testing.T) {
	d := newUnbackedDevice()
	d.closed = true

	cb := compute.NewCommandBuffer()
	if err := cb.BeginCompute(); err != nil {
		t.Fatal(err)
	}
	if err := cb.EndCompute(); err != nil {
		t.Fatal(err)
	}

	if err := d.Submit(cb); !errors.Is(err, compute.ErrDeviceClosed) {
		t.Fatalf("Submit() on closed device error = %v, want ErrDeviceClosed", err)
	}
	if got := cb.State(); got != compute.StateRecorded {
		t.Errorf("State() after rejected Submit = %v, want %v", got, compute.StateRecorded)
	}
}
