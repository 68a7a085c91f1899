package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/compute"
)

// copyAlignment is the WebGPU copy granularity; buffer sizes and transfer
// lengths are padded up to it.
const copyAlignment = 4

// rowAlignment is the required bytes-per-row alignment for texture to
// buffer copies.
const rowAlignment = 256

func alignUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// bufferUsageFlags maps a usage class to HAL buffer usage flags. Default
// is device-local storage reachable only through copies; Upload and
// Readback are host-visible staging classes.
func bufferUsageFlags(u compute.Usage) gputypes.BufferUsage {
	switch u {
	case compute.UsageUpload:
		return gputypes.BufferUsageMapWrite | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	case compute.UsageReadback:
		return gputypes.BufferUsageMapRead | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	}
}

// textureUsageFlags maps a usage class to HAL texture usage flags.
func textureUsageFlags(u compute.Usage) gputypes.TextureUsage {
	switch u {
	case compute.UsageUpload:
		return gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	case compute.UsageReadback:
		return gputypes.TextureUsageStorageBinding | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	default:
		return gputypes.TextureUsageStorageBinding | gputypes.TextureUsageTextureBinding |
			gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	}
}

// textureFormat maps a portable format to its HAL equivalent.
func textureFormat(f compute.TextureFormat) (gputypes.TextureFormat, bool) {
	switch f {
	case compute.FormatR16Float:
		return gputypes.TextureFormatR16Float, true
	case compute.FormatRG16Float:
		return gputypes.TextureFormatRG16Float, true
	case compute.FormatRGBA16Float:
		return gputypes.TextureFormatRGBA16Float, true
	case compute.FormatR32Float:
		return gputypes.TextureFormatR32Float, true
	case compute.FormatRG32Float:
		return gputypes.TextureFormatRG32Float, true
	case compute.FormatRGBA32Float:
		return gputypes.TextureFormatRGBA32Float, true
	case compute.FormatRG16Sint:
		return gputypes.TextureFormatRG16Sint, true
	default:
		return 0, false
	}
}
