package compute

import (
	"fmt"
	"sync"
)

// Statistics is a point-in-time snapshot of pool occupancy.
type Statistics struct {
	TotalBuffers      int
	BuffersInUse      int
	AvailableBuffers  int
	TotalTextures     int
	TexturesInUse     int
	AvailableTextures int
}

// String returns a compact single-line representation.
func (s Statistics) String() string {
	return fmt.Sprintf("buffers %d total %d in-use %d available, textures %d total %d in-use %d available",
		s.TotalBuffers, s.BuffersInUse, s.AvailableBuffers,
		s.TotalTextures, s.TexturesInUse, s.AvailableTextures)
}

// bufferKey identifies a bucket of interchangeable buffers.
type bufferKey struct {
	size  int
	usage Usage
}

// textureKey identifies a bucket of interchangeable textures.
type textureKey struct {
	width  int
	height int
	depth  int
	format TextureFormat
	usage  Usage
}

// Pool recycles device resources by exact signature: (size, usage) for
// buffers, (dims, format, usage) for textures. Get returns a façade handle
// whose Destroy releases the underlying resource back to the pool instead
// of freeing it; only Trim and Close actually destroy resources, and only
// ones that are not in use. Reused resources may contain stale data.
//
// All methods are safe for concurrent use.
type Pool struct {
	mu       sync.Mutex
	device   Device
	closed   bool
	buffers  map[bufferKey][]*PooledBuffer
	textures map[textureKey][]*PooledTexture

	// all* retain every live entry for statistics and trim bookkeeping.
	allBuffers  []*PooledBuffer
	allTextures []*PooledTexture
}

// NewPool creates a resource pool over device.
func NewPool(device Device) *Pool {
	return &Pool{
		device:   device,
		buffers:  make(map[bufferKey][]*PooledBuffer),
		textures: make(map[textureKey][]*PooledTexture),
	}
}

// GetBuffer returns a buffer with the exact (size, usage) signature,
// reusing an idle pooled buffer when one exists and allocating through the
// device otherwise.
func (p *Pool) GetBuffer(size int, usage Usage) (*PooledBuffer, error) {
	key := bufferKey{size: size, usage: usage}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	if bucket := p.buffers[key]; len(bucket) > 0 {
		pb := bucket[len(bucket)-1]
		p.buffers[key] = bucket[:len(bucket)-1]
		pb.inUse = true
		p.mu.Unlock()
		return pb, nil
	}
	p.mu.Unlock()

	// Miss: allocate outside the lock, native allocation can be slow.
	underlying, err := p.device.CreateBuffer(size, usage)
	if err != nil {
		return nil, err
	}
	pb := &PooledBuffer{pool: p, key: key, Buffer: underlying, inUse: true}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		underlying.Destroy()
		return nil, ErrDeviceClosed
	}
	p.allBuffers = append(p.allBuffers, pb)
	return pb, nil
}

// GetTexture2D returns a texture with the exact (width, height, format,
// usage) signature.
func (p *Pool) GetTexture2D(width, height int, format TextureFormat, usage Usage) (*PooledTexture, error) {
	return p.getTexture(width, height, 1, format, usage)
}

// GetTexture3D returns a texture with the exact (width, height, depth,
// format, usage) signature.
func (p *Pool) GetTexture3D(width, height, depth int, format TextureFormat, usage Usage) (*PooledTexture, error) {
	return p.getTexture(width, height, depth, format, usage)
}

func (p *Pool) getTexture(width, height, depth int, format TextureFormat, usage Usage) (*PooledTexture, error) {
	key := textureKey{width: width, height: height, depth: depth, format: format, usage: usage}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrDeviceClosed
	}
	if bucket := p.textures[key]; len(bucket) > 0 {
		pt := bucket[len(bucket)-1]
		p.textures[key] = bucket[:len(bucket)-1]
		pt.inUse = true
		p.mu.Unlock()
		return pt, nil
	}
	p.mu.Unlock()

	var underlying Texture
	var err error
	if depth == 1 {
		underlying, err = p.device.CreateTexture2D(width, height, format, usage)
	} else {
		underlying, err = p.device.CreateTexture3D(width, height, depth, format, usage)
	}
	if err != nil {
		return nil, err
	}
	pt := &PooledTexture{pool: p, key: key, Texture: underlying, inUse: true}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		underlying.Destroy()
		return nil, ErrDeviceClosed
	}
	p.allTextures = append(p.allTextures, pt)
	return pt, nil
}

// releaseBuffer returns pb to its bucket. Double release is a no-op.
func (p *Pool) releaseBuffer(pb *PooledBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !pb.inUse {
		return
	}
	pb.inUse = false
	if p.closed {
		pb.Buffer.Destroy()
		return
	}
	p.buffers[pb.key] = append(p.buffers[pb.key], pb)
}

// releaseTexture returns pt to its bucket. Double release is a no-op.
func (p *Pool) releaseTexture(pt *PooledTexture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !pt.inUse {
		return
	}
	pt.inUse = false
	if p.closed {
		pt.Texture.Destroy()
		return
	}
	p.textures[pt.key] = append(p.textures[pt.key], pt)
}

// Trim destroys every idle pooled resource, reclaiming memory between
// bursts. Resources with live handles are retained; their release later
// returns them to the pool as usual.
func (p *Pool) Trim() {
	p.mu.Lock()
	defer p.mu.Unlock()

	freedBuffers := 0
	for key, bucket := range p.buffers {
		for _, pb := range bucket {
			pb.Buffer.Destroy()
			freedBuffers++
		}
		delete(p.buffers, key)
	}
	freedTextures := 0
	for key, bucket := range p.textures {
		for _, pt := range bucket {
			pt.Texture.Destroy()
			freedTextures++
		}
		delete(p.textures, key)
	}

	p.allBuffers = retainInUseBuffers(p.allBuffers)
	p.allTextures = retainInUseTextures(p.allTextures)

	Logger().Debug("pool trimmed",
		"buffers_freed", freedBuffers,
		"textures_freed", freedTextures)
}

func retainInUseBuffers(all []*PooledBuffer) []*PooledBuffer {
	kept := all[:0]
	for _, pb := range all {
		if pb.inUse {
			kept = append(kept, pb)
		}
	}
	return kept
}

func retainInUseTextures(all []*PooledTexture) []*PooledTexture {
	kept := all[:0]
	for _, pt := range all {
		if pt.inUse {
			kept = append(kept, pt)
		}
	}
	return kept
}

// Statistics reports total, in-use and available counts for buffers and
// textures.
func (p *Pool) Statistics() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	var s Statistics
	s.TotalBuffers = len(p.allBuffers)
	for _, pb := range p.allBuffers {
		if pb.inUse {
			s.BuffersInUse++
		}
	}
	s.AvailableBuffers = s.TotalBuffers - s.BuffersInUse

	s.TotalTextures = len(p.allTextures)
	for _, pt := range p.allTextures {
		if pt.inUse {
			s.TexturesInUse++
		}
	}
	s.AvailableTextures = s.TotalTextures - s.TexturesInUse
	return s
}

// Close destroys every idle resource and marks the pool closed. Handles
// still in use stay valid; their release destroys the underlying resource
// instead of pooling it. Close is idempotent.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	inUse := 0
	for _, pb := range p.allBuffers {
		if pb.inUse {
			inUse++
		}
	}
	for _, pt := range p.allTextures {
		if pt.inUse {
			inUse++
		}
	}
	p.mu.Unlock()

	p.Trim()
	if inUse > 0 {
		Logger().Warn("pool closed with live handles", "in_use", inUse)
	}
}

// PooledBuffer is a façade handle over a pooled buffer. All Buffer
// operations delegate to the wrapped resource; Destroy releases the
// resource back to the pool instead of freeing it.
type PooledBuffer struct {
	Buffer

	pool *Pool
	key  bufferKey

	// inUse is guarded by pool.mu.
	inUse bool
}

// Destroy releases the handle back to the pool. The underlying buffer is
// only freed by Pool.Trim or Pool.Close. Idempotent.
func (pb *PooledBuffer) Destroy() {
	pb.pool.releaseBuffer(pb)
}

// PooledTexture is a façade handle over a pooled texture, symmetric with
// PooledBuffer.
type PooledTexture struct {
	Texture

	pool *Pool
	key  textureKey

	// inUse is guarded by pool.mu.
	inUse bool
}

// Destroy releases the handle back to the pool. Idempotent.
func (pt *PooledTexture) Destroy() {
	pt.pool.releaseTexture(pt)
}
