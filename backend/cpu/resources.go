package cpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/compute"
)

// buffer is a host-memory buffer. Usage-class rules are enforced exactly
// as on GPU devices so tests written against this device transfer to real
// backends unchanged.
type buffer struct {
	dev   *Device
	usage compute.Usage

	mu        sync.Mutex
	data      []byte
	mapped    bool
	destroyed bool
}

func (b *buffer) Size() int            { return len(b.data) }
func (b *buffer) Usage() compute.Usage { return b.usage }

// Write implements compute.Buffer. Default usage stages through an
// intermediate copy, mirroring the Upload-buffer path of GPU backends.
func (b *buffer) Write(data []byte) error {
	if err := compute.CheckTransferSize(len(data), len(b.data)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("%w: buffer destroyed", compute.ErrInvalidUsage)
	}
	if b.usage == compute.UsageDefault {
		staging := make([]byte, len(data))
		copy(staging, data)
		copy(b.data, staging)
		return nil
	}
	copy(b.data, data)
	return nil
}

// Read implements compute.Buffer.
func (b *buffer) Read(dst []byte) error {
	if err := compute.CheckTransferSize(len(dst), len(b.data)); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return fmt.Errorf("%w: buffer destroyed", compute.ErrInvalidUsage)
	}
	if b.usage == compute.UsageDefault {
		staging := make([]byte, len(dst))
		copy(staging, b.data)
		copy(dst, staging)
		return nil
	}
	copy(dst, b.data)
	return nil
}

// Map implements compute.Buffer.
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
	b.mapped = true
	return b.data, nil
}

// Unmap implements compute.Buffer.
func (b *buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mapped = false
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
	b.mu.Unlock()

	b.dev.resMu.Lock()
	delete(b.dev.buffers, b)
	b.dev.resMu.Unlock()
}

// texture is a host-memory texture holding tightly packed pixels.
type texture struct {
	dev     *Device
	w, h, d int
	format  compute.TextureFormat
	usage   compute.Usage

	mu        sync.Mutex
	data      []byte
	destroyed bool
}

func (t *texture) Width() int                    { return t.w }
func (t *texture) Height() int                   { return t.h }
func (t *texture) Depth() int                    { return t.d }
func (t *texture) Format() compute.TextureFormat { return t.format }
func (t *texture) Usage() compute.Usage          { return t.usage }
func (t *texture) ByteSize() int                 { return len(t.data) }

// Write implements compute.Texture.
func (t *texture) Write(data []byte) error {
	if len(data) != len(t.data) {
		return fmt.Errorf("%w: %d bytes, texture holds %d", compute.ErrSizeMismatch, len(data), len(t.data))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return fmt.Errorf("%w: texture destroyed", compute.ErrInvalidUsage)
	}
	copy(t.data, data)
	return nil
}

// Read implements compute.Texture.
func (t *texture) Read(dst []byte) error {
	if len(dst) != len(t.data) {
		return fmt.Errorf("%w: %d bytes, texture holds %d", compute.ErrSizeMismatch, len(dst), len(t.data))
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return fmt.Errorf("%w: texture destroyed", compute.ErrInvalidUsage)
	}
	copy(dst, t.data)
	return nil
}

// Destroy implements compute.Texture. Idempotent.
func (t *texture) Destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	t.mu.Unlock()

	t.dev.resMu.Lock()
	delete(t.dev.textures, t)
	t.dev.resMu.Unlock()
}

// pipeline pairs a registered kernel with its thread-group shape.
type pipeline struct {
	kernel compute.Kernel
	entry  string
	size   [3]int
}

func (p *pipeline) Kernel() string     { return p.kernel.Name }
func (p *pipeline) EntryPoint() string { return p.entry }

func (p *pipeline) ThreadGroupSize() (x, y, z int) {
	return p.size[0], p.size[1], p.size[2]
}

func (p *pipeline) Destroy() {}
