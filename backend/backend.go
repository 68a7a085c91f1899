// Package backend provides registration and platform-deterministic
// selection of compute device backends.
//
// Backend packages register themselves from init functions; importing a
// backend package for side effects makes it selectable:
//
//	import _ "github.com/gogpu/compute/backend/wgpu"
//
// New opens a device following the platform fallback chain; NewNamed opens
// a specific backend with no fallback, for capability probing.
package backend

import (
	"errors"

	"github.com/gogpu/compute"
)

// Backend names used in the registry and the fallback chains.
const (
	NameD3D12  = "d3d12"
	NameVulkan = "vulkan"
	NameMetal  = "metal"
	NameCPU    = "cpu"
)

var (
	// ErrNotRegistered is returned when a named backend is not in the
	// registry.
	ErrNotRegistered = errors.New("backend: not registered")

	// ErrNoneAvailable is returned when every backend in the platform
	// chain failed to open a device.
	ErrNoneAvailable = errors.New("backend: no backend available")
)

// Backend opens devices for one native API family.
type Backend interface {
	// Name returns the registry name, e.g. "vulkan".
	Name() string

	// Kind returns the device kind this backend produces.
	Kind() compute.DeviceKind

	// Open probes the native API and returns a ready device. Probing
	// failures are returned, never panicked, so the factory can fall
	// back along the platform chain.
	Open() (compute.Device, error)
}
