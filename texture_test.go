package compute

import (
	"errors"
	"testing"
)

func TestTextureByteSize(t *testing.T) {
	tests := []struct {
		name    string
		w, h, d int
		format  TextureFormat
		want    int
	}{
		{"r16f 2d", 4, 4, 1, FormatR16Float, 32},
		{"rgba16f 2d", 8, 2, 1, FormatRGBA16Float, 128},
		{"r32f 3d", 2, 2, 2, FormatR32Float, 32},
		{"rgba32f 2d", 4, 4, 1, FormatRGBA32Float, 256},
		{"rg16i 2d", 4, 4, 1, FormatRG16Sint, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TextureByteSize(tt.w, tt.h, tt.d, tt.format); got != tt.want {
				t.Errorf("TextureByteSize() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWritePixelsFloat32(t *testing.T) {
	tex := newFakeTexture(2, 2, 1, FormatRG32Float, UsageUpload)
	src := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	if err := WritePixels(tex, src); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	dst := make([]float32, 8)
	if err := ReadPixels(tex, dst); err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], src[i])
		}
	}
}

func TestWritePixelsHalfFloat(t *testing.T) {
	tex := newFakeTexture(2, 1, 1, FormatRGBA16Float, UsageUpload)
	// Values exactly representable in binary16.
	src := []float32{0.5, 1, -2, 0.25, 1024, -0.125, 0, 3}
	if err := WritePixels(tex, src); err != nil {
		t.Fatalf("WritePixels() error = %v", err)
	}
	dst := make([]float32, 8)
	if err := ReadPixels(tex, dst); err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], src[i])
		}
	}
}

func TestWritePixelsComponentCount(t *testing.T) {
	tex := newFakeTexture(2, 2, 1, FormatR32Float, UsageUpload)
	if err := WritePixels(tex, make([]float32, 3)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("WritePixels() short error = %v, want ErrSizeMismatch", err)
	}
	if err := ReadPixels(tex, make([]float32, 5)); !errors.Is(err, ErrSizeMismatch) {
		t.Errorf("ReadPixels() long error = %v, want ErrSizeMismatch", err)
	}
}

func TestWritePixelsIntegerFormat(t *testing.T) {
	tex := newFakeTexture(2, 2, 1, FormatRG16Sint, UsageUpload)
	if err := WritePixels(tex, make([]float32, 8)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("WritePixels() on RG16Sint error = %v, want ErrUnsupportedFormat", err)
	}
	if err := ReadPixels(tex, make([]float32, 8)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("ReadPixels() on RG16Sint error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestPixelsInt16RoundTrip(t *testing.T) {
	tex := newFakeTexture(2, 2, 1, FormatRG16Sint, UsageUpload)
	src := []int16{-32768, 32767, 0, -1, 100, -100, 7, 8}
	if err := WritePixelsInt16(tex, src); err != nil {
		t.Fatalf("WritePixelsInt16() error = %v", err)
	}
	dst := make([]int16, 8)
	if err := ReadPixelsInt16(tex, dst); err != nil {
		t.Fatalf("ReadPixelsInt16() error = %v", err)
	}
	for i := range src {
		if dst[i] != src[i] {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], src[i])
		}
	}

	float := newFakeTexture(2, 2, 1, FormatR32Float, UsageUpload)
	if err := WritePixelsInt16(float, make([]int16, 4)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("WritePixelsInt16() on float format error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestTextureFormatMetadata(t *testing.T) {
	tests := []struct {
		format   TextureFormat
		channels int
		bpp      int
		half     bool
	}{
		{FormatR16Float, 1, 2, true},
		{FormatRG16Float, 2, 4, true},
		{FormatRGBA16Float, 4, 8, true},
		{FormatR32Float, 1, 4, false},
		{FormatRG32Float, 2, 8, false},
		{FormatRGBA32Float, 4, 16, false},
		{FormatRG16Sint, 2, 4, false},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if !tt.format.Valid() {
				t.Error("Valid() = false")
			}
			if got := tt.format.Channels(); got != tt.channels {
				t.Errorf("Channels() = %d, want %d", got, tt.channels)
			}
			if got := tt.format.BytesPerPixel(); got != tt.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.bpp)
			}
			if got := tt.format.HalfFloat(); got != tt.half {
				t.Errorf("HalfFloat() = %v, want %v", got, tt.half)
			}
		})
	}

	if FormatUnknown.Valid() {
		t.Error("FormatUnknown.Valid() = true")
	}
	if got := TextureFormat(99).String(); got != "Unknown(99)" {
		t.Errorf("TextureFormat(99).String() = %q", got)
	}
}
