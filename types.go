package compute

import "fmt"

// DeviceKind identifies the native API family a device is built on.
// The set is closed: new backends implement the Device contract for one of
// these kinds, they do not extend the enumeration ad hoc.
type DeviceKind int

const (
	// KindUnknown is the zero value; no opened device reports it.
	KindUnknown DeviceKind = iota
	// KindD3D12 is a Direct3D 12 class device.
	KindD3D12
	// KindVulkan is a Vulkan class device, including Vulkan running over
	// a translation layer on Metal platforms.
	KindVulkan
	// KindMetal is reserved for a native Metal backend.
	KindMetal
	// KindCPU is the software reference device.
	KindCPU
)

// String returns the string representation of DeviceKind.
func (k DeviceKind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindD3D12:
		return "D3D12"
	case KindVulkan:
		return "Vulkan"
	case KindMetal:
		return "Metal"
	case KindCPU:
		return "CPU"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Usage classifies the residency of a resource and how the host may access
// it. The usage class is fixed at creation and never mutated.
type Usage int

const (
	// UsageDefault is device-local memory, not host-addressable. Host
	// transfers are staged through an intermediate host-visible buffer
	// and a device-side copy.
	UsageDefault Usage = iota
	// UsageUpload is host-visible memory optimized for CPU to GPU
	// transfer. Host writes and reads map directly.
	UsageUpload
	// UsageReadback is host-visible memory optimized for GPU to CPU
	// transfer. Host writes and reads map directly.
	UsageReadback
)

// String returns the string representation of Usage.
func (u Usage) String() string {
	switch u {
	case UsageDefault:
		return "Default"
	case UsageUpload:
		return "Upload"
	case UsageReadback:
		return "Readback"
	default:
		return fmt.Sprintf("Unknown(%d)", int(u))
	}
}

// valid reports whether u is one of the defined usage classes.
func (u Usage) valid() bool {
	return u == UsageDefault || u == UsageUpload || u == UsageReadback
}

// TextureFormat enumerates the portable texture formats. The set is closed:
// half-float and float formats with one, two or four channels, plus a
// two-channel signed integer format for coordinate data.
type TextureFormat int

const (
	// FormatUnknown is the zero value; creating a texture with it fails.
	FormatUnknown TextureFormat = iota
	// FormatR16Float is one 16-bit float channel per pixel.
	FormatR16Float
	// FormatRG16Float is two 16-bit float channels per pixel.
	FormatRG16Float
	// FormatRGBA16Float is four 16-bit float channels per pixel.
	FormatRGBA16Float
	// FormatR32Float is one 32-bit float channel per pixel.
	FormatR32Float
	// FormatRG32Float is two 32-bit float channels per pixel.
	FormatRG32Float
	// FormatRGBA32Float is four 32-bit float channels per pixel.
	FormatRGBA32Float
	// FormatRG16Sint is two 16-bit signed integer channels per pixel.
	FormatRG16Sint
)

// String returns the string representation of TextureFormat.
func (f TextureFormat) String() string {
	switch f {
	case FormatR16Float:
		return "R16Float"
	case FormatRG16Float:
		return "RG16Float"
	case FormatRGBA16Float:
		return "RGBA16Float"
	case FormatR32Float:
		return "R32Float"
	case FormatRG32Float:
		return "RG32Float"
	case FormatRGBA32Float:
		return "RGBA32Float"
	case FormatRG16Sint:
		return "RG16Sint"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// Valid reports whether f is one of the defined formats.
func (f TextureFormat) Valid() bool {
	return f > FormatUnknown && f <= FormatRG16Sint
}

// Channels returns the number of components per pixel.
func (f TextureFormat) Channels() int {
	switch f {
	case FormatR16Float, FormatR32Float:
		return 1
	case FormatRG16Float, FormatRG32Float, FormatRG16Sint:
		return 2
	case FormatRGBA16Float, FormatRGBA32Float:
		return 4
	default:
		return 0
	}
}

// BytesPerPixel returns the tightly packed pixel size in bytes.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatR16Float:
		return 2
	case FormatRG16Float, FormatR32Float, FormatRG16Sint:
		return 4
	case FormatRGBA16Float, FormatRG32Float:
		return 8
	case FormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// HalfFloat reports whether the format stores 16-bit float components.
func (f TextureFormat) HalfFloat() bool {
	switch f {
	case FormatR16Float, FormatRG16Float, FormatRGBA16Float:
		return true
	default:
		return false
	}
}
