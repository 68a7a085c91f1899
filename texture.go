package compute

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Texture is a 2D or 3D image resource. Depth is 1 for 2D textures.
//
// Transfer semantics mirror Buffer: Upload and Readback textures are
// host-visible, Default textures stage through an intermediate buffer.
// Write and Read operate on tightly packed pixel data covering the whole
// texture; any backend row-pitch alignment is handled internally.
type Texture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Depth returns the texture depth in pixels (1 for 2D).
	Depth() int

	// Format returns the pixel format fixed at creation.
	Format() TextureFormat

	// Usage returns the usage class fixed at creation.
	Usage() Usage

	// ByteSize returns the tightly packed size of the full texture.
	ByteSize() int

	// Write copies tightly packed pixel data into the texture. Fails with
	// ErrSizeMismatch unless len(data) equals ByteSize.
	Write(data []byte) error

	// Read fills dst with tightly packed pixel data. Fails with
	// ErrSizeMismatch unless len(dst) equals ByteSize.
	Read(dst []byte) error

	// Destroy releases the texture. Idempotent.
	Destroy()
}

// TextureByteSize returns the tightly packed byte size of a texture with
// the given dimensions and format.
func TextureByteSize(width, height, depth int, format TextureFormat) int {
	return width * height * depth * format.BytesPerPixel()
}

// WritePixels converts float32 pixel components to t's format and writes
// them. The slice must hold exactly width*height*depth*channels values.
// Half-float formats are packed with IEEE 754 binary16 conversion; integer
// formats are rejected with ErrUnsupportedFormat.
func WritePixels(t Texture, px []float32) error {
	f := t.Format()
	want := t.Width() * t.Height() * t.Depth() * f.Channels()
	if len(px) != want {
		return fmt.Errorf("%w: %d components, texture holds %d", ErrSizeMismatch, len(px), want)
	}

	data := make([]byte, t.ByteSize())
	switch {
	case f.HalfFloat():
		for i, v := range px {
			binary.LittleEndian.PutUint16(data[i*2:], float16.Fromfloat32(v).Bits())
		}
	case f == FormatRG16Sint:
		return fmt.Errorf("%w: %s holds integer components", ErrUnsupportedFormat, f)
	default:
		for i, v := range px {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
	}
	return t.Write(data)
}

// ReadPixels reads t and converts its pixel components to float32. The
// destination must hold exactly width*height*depth*channels values.
func ReadPixels(t Texture, px []float32) error {
	f := t.Format()
	want := t.Width() * t.Height() * t.Depth() * f.Channels()
	if len(px) != want {
		return fmt.Errorf("%w: %d components, texture holds %d", ErrSizeMismatch, len(px), want)
	}

	data := make([]byte, t.ByteSize())
	if err := t.Read(data); err != nil {
		return err
	}
	switch {
	case f.HalfFloat():
		for i := range px {
			px[i] = float16.Frombits(binary.LittleEndian.Uint16(data[i*2:])).Float32()
		}
	case f == FormatRG16Sint:
		return fmt.Errorf("%w: %s holds integer components", ErrUnsupportedFormat, f)
	default:
		for i := range px {
			px[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	}
	return nil
}

// WritePixelsInt16 writes signed 16-bit pixel components to an RG16Sint
// texture. The slice must hold exactly width*height*depth*2 values.
func WritePixelsInt16(t Texture, px []int16) error {
	f := t.Format()
	if f != FormatRG16Sint {
		return fmt.Errorf("%w: %s does not hold int16 components", ErrUnsupportedFormat, f)
	}
	want := t.Width() * t.Height() * t.Depth() * f.Channels()
	if len(px) != want {
		return fmt.Errorf("%w: %d components, texture holds %d", ErrSizeMismatch, len(px), want)
	}

	data := make([]byte, t.ByteSize())
	for i, v := range px {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return t.Write(data)
}

// ReadPixelsInt16 reads signed 16-bit pixel components from an RG16Sint
// texture.
func ReadPixelsInt16(t Texture, px []int16) error {
	f := t.Format()
	if f != FormatRG16Sint {
		return fmt.Errorf("%w: %s does not hold int16 components", ErrUnsupportedFormat, f)
	}
	want := t.Width() * t.Height() * t.Depth() * f.Channels()
	if len(px) != want {
		return fmt.Errorf("%w: %d components, texture holds %d", ErrSizeMismatch, len(px), want)
	}

	data := make([]byte, t.ByteSize())
	if err := t.Read(data); err != nil {
		return err
	}
	for i := range px {
		px[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return nil
}
