package wgpu

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/compute"
)

func TestAlignUp(t *testing.T) {
	tests := []struct {
		n, align, want int
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{255, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
	}
	for _, tt := range tests {
		if got := alignUp(tt.n, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.n, tt.align, got, tt.want)
		}
	}
}

func TestPadToCopyAlignment(t *testing.T) {
	aligned := []byte{1, 2, 3, 4}
	if got := padToCopyAlignment(aligned); &got[0] != &aligned[0] {
		t.Error("padToCopyAlignment() copied an already aligned slice")
	}

	padded := padToCopyAlignment([]byte{1, 2, 3})
	if len(padded) != 4 {
		t.Fatalf("len = %d, want 4", len(padded))
	}
	if padded[0] != 1 || padded[1] != 2 || padded[2] != 3 || padded[3] != 0 {
		t.Errorf("padded = %v", padded)
	}
}

func TestBufferUsageFlags(t *testing.T) {
	up := bufferUsageFlags(compute.UsageUpload)
	if up&gputypes.BufferUsageMapWrite == 0 {
		t.Error("Upload flags missing MapWrite")
	}
	if up&gputypes.BufferUsageMapRead != 0 {
		t.Error("Upload flags include MapRead")
	}

	rb := bufferUsageFlags(compute.UsageReadback)
	if rb&gputypes.BufferUsageMapRead == 0 {
		t.Error("Readback flags missing MapRead")
	}

	def := bufferUsageFlags(compute.UsageDefault)
	if def&gputypes.BufferUsageStorage == 0 {
		t.Error("Default flags missing Storage")
	}
	if def&(gputypes.BufferUsageMapRead|gputypes.BufferUsageMapWrite) != 0 {
		t.Error("Default flags include host mapping")
	}

	// Every class must be copyable both ways for the staging paths.
	for _, u := range []compute.Usage{compute.UsageDefault, compute.UsageUpload, compute.UsageReadback} {
		f := bufferUsageFlags(u)
		if f&gputypes.BufferUsageCopySrc == 0 || f&gputypes.BufferUsageCopyDst == 0 {
			t.Errorf("%s flags missing copy usage", u)
		}
	}
}

func TestTextureUsageFlags(t *testing.T) {
	def := textureUsageFlags(compute.UsageDefault)
	if def&gputypes.TextureUsageStorageBinding == 0 {
		t.Error("Default flags missing StorageBinding")
	}
	for _, u := range []compute.Usage{compute.UsageDefault, compute.UsageUpload, compute.UsageReadback} {
		f := textureUsageFlags(u)
		if f&gputypes.TextureUsageCopySrc == 0 || f&gputypes.TextureUsageCopyDst == 0 {
			t.Errorf("%s flags missing copy usage", u)
		}
	}
}

func TestTextureFormatMapping(t *testing.T) {
	formats := []compute.TextureFormat{
		compute.FormatR16Float,
		compute.FormatRG16Float,
		compute.FormatRGBA16Float,
		compute.FormatR32Float,
		compute.FormatRG32Float,
		compute.FormatRGBA32Float,
		compute.FormatRG16Sint,
	}
	seen := make(map[gputypes.TextureFormat]bool)
	for _, f := range formats {
		hf, ok := textureFormat(f)
		if !ok {
			t.Errorf("textureFormat(%s) not mapped", f)
			continue
		}
		if seen[hf] {
			t.Errorf("textureFormat(%s) collides with another format", f)
		}
		seen[hf] = true
	}
	if _, ok := textureFormat(compute.FormatUnknown); ok {
		t.Error("textureFormat(Unknown) mapped")
	}
}

func TestIdleTextureUsage(t *testing.T) {
	if got := idleTextureUsage(compute.UsageUpload); got != gputypes.TextureUsageTextureBinding {
		t.Errorf("idleTextureUsage(Upload) = %v", got)
	}
	if got := idleTextureUsage(compute.UsageDefault); got != gputypes.TextureUsageStorageBinding {
		t.Errorf("idleTextureUsage(Default) = %v", got)
	}
	if got := idleTextureUsage(compute.UsageReadback); got != gputypes.TextureUsageStorageBinding {
		t.Errorf("idleTextureUsage(Readback) = %v", got)
	}
}
