package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compute"
)

// texture wraps a HAL texture plus the view used for shader binding.
type texture struct {
	dev     *Device
	w, h, d int
	format  compute.TextureFormat
	usage   compute.Usage

	mu        sync.Mutex
	halTex    hal.Texture
	view      hal.TextureView
	destroyed bool
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
	halFormat, ok := textureFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", compute.ErrUnsupportedFormat, format)
	}

	dimension := gputypes.TextureDimension2D
	viewDimension := gputypes.TextureViewDimension2D
	if depth > 1 {
		dimension = gputypes.TextureDimension3D
		viewDimension = gputypes.TextureViewDimension3D
	}

	label := fmt.Sprintf("texture-%dx%dx%d-%s", width, height, depth, format)
	halTex, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: uint32(depth)},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     dimension,
		Format:        halFormat,
		Usage:         textureUsageFlags(usage),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", compute.ErrUnsupportedFormat, format,
			d.native("CreateTexture", err))
	}

	view, err := d.dev.CreateTextureView(halTex, &hal.TextureViewDescriptor{
		Label:         label + "-view",
		Format:        halFormat,
		Dimension:     viewDimension,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.dev.DestroyTexture(halTex)
		return nil, d.native("CreateTextureView", err)
	}

	t := &texture{
		dev:    d,
		w:      width,
		h:      height,
		d:      depth,
		format: format,
		usage:  usage,
		halTex: halTex,
		view:   view,
	}
	d.resMu.Lock()
	d.textures[t] = struct{}{}
	d.resMu.Unlock()
	return t, nil
}

func (t *texture) Width() int                    { return t.w }
func (t *texture) Height() int                   { return t.h }
func (t *texture) Depth() int                    { return t.d }
func (t *texture) Format() compute.TextureFormat { return t.format }
func (t *texture) Usage() compute.Usage          { return t.usage }

func (t *texture) ByteSize() int {
	return compute.TextureByteSize(t.w, t.h, t.d, t.format)
}

// Write implements compute.Texture via a direct queue upload; the HAL
// stages internally, so the path is uniform across usage classes.
func (t *texture) Write(data []byte) error {
	want := t.ByteSize()
	if len(data) != want {
		return fmt.Errorf("%w: %d bytes, texture holds %d", compute.ErrSizeMismatch, len(data), want)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return fmt.Errorf("%w: texture destroyed", compute.ErrInvalidUsage)
	}

	rowBytes := uint32(t.w * t.format.BytesPerPixel())
	t.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.halTex, MipLevel: 0},
		data,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: rowBytes, RowsPerImage: uint32(t.h)},
		&hal.Extent3D{Width: uint32(t.w), Height: uint32(t.h), DepthOrArrayLayers: uint32(t.d)},
	)
	return nil
}

// Read implements compute.Texture: a synchronous copy into a readback
// staging buffer with 256-byte row pitch, then row-padding strip into dst.
func (t *texture) Read(dst []byte) error {
	want := t.ByteSize()
	if len(dst) != want {
		return fmt.Errorf("%w: %d bytes, texture holds %d", compute.ErrSizeMismatch, len(dst), want)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.destroyed {
		return fmt.Errorf("%w: texture destroyed", compute.ErrInvalidUsage)
	}

	rowBytes := t.w * t.format.BytesPerPixel()
	alignedRow := alignUp(rowBytes, rowAlignment)
	rows := t.h * t.d
	stagingSize := alignedRow * rows

	staging, err := t.dev.createHALBuffer("texture-readback", stagingSize,
		gputypes.BufferUsageMapRead|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	defer t.dev.dev.DestroyBuffer(staging)

	if err := t.dev.copyTextureToBufferSync(t, staging, alignedRow); err != nil {
		return err
	}

	padded := make([]byte, stagingSize)
	if err := t.dev.readMapped(staging, padded); err != nil {
		return err
	}
	for r := 0; r < rows; r++ {
		copy(dst[r*rowBytes:(r+1)*rowBytes], padded[r*alignedRow:])
	}
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
	halTex := t.halTex
	view := t.view
	t.halTex = nil
	t.view = nil
	t.mu.Unlock()

	t.dev.resMu.Lock()
	delete(t.dev.textures, t)
	t.dev.resMu.Unlock()

	if view != nil {
		t.dev.dev.DestroyTextureView(view)
	}
	if halTex != nil {
		t.dev.dev.DestroyTexture(halTex)
	}
}

// copyTextureToBufferSync encodes a whole-texture copy into buf with the
// given row pitch, transitioning the texture through CopySrc, and blocks
// until the submission completes.
func (d *Device) copyTextureToBufferSync(t *texture, buf hal.Buffer, alignedRow int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return compute.ErrDeviceClosed
	}

	enc, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "texture-readback"})
	if err != nil {
		return d.native("CreateCommandEncoder", err)
	}
	if err := enc.BeginEncoding("texture-readback"); err != nil {
		return d.native("BeginEncoding", err)
	}

	idle := idleTextureUsage(t.usage)
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.halTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: idle,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})
	enc.CopyTextureToBuffer(t.halTex, buf, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  uint32(alignedRow),
			RowsPerImage: uint32(t.h),
		},
		TextureBase: hal.ImageCopyTexture{Texture: t.halTex, MipLevel: 0},
		Size:        hal.Extent3D{Width: uint32(t.w), Height: uint32(t.h), DepthOrArrayLayers: uint32(t.d)},
	}})
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.halTex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: idle,
		},
	}})

	return d.submitSyncLocked(enc)
}

// idleTextureUsage is the steady state a texture rests in between copies.
func idleTextureUsage(u compute.Usage) gputypes.TextureUsage {
	if u == compute.UsageUpload {
		return gputypes.TextureUsageTextureBinding
	}
	return gputypes.TextureUsageStorageBinding
}
