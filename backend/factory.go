package backend

import (
	"fmt"
	"runtime"

	"github.com/gogpu/compute"
)

// chain returns the backend fallback chain for an operating system. The
// policy is deterministic and total:
//
//   - windows: d3d12 first, vulkan on any d3d12 failure
//   - linux, android: vulkan only
//   - darwin, ios: vulkan over a translation layer (a native metal
//     backend is a reserved extension point)
//   - anything else: unsupported, no silent degradation
//
// The software device is never part of a chain; it must be requested
// explicitly via NewNamed.
func chain(goos string) []string {
	switch goos {
	case "windows":
		return []string{NameD3D12, NameVulkan}
	case "linux", "android":
		return []string{NameVulkan}
	case "darwin", "ios":
		return []string{NameVulkan}
	default:
		return nil
	}
}

// New opens a device by walking the fallback chain for the current
// platform. A backend failure is logged and discarded so the next entry
// can be tried; this is the one place initialization errors are
// intentionally caught. Returns ErrUnsupportedPlatform when the platform
// has no chain, or the first probe error when every entry failed.
func New() (compute.Device, error) {
	return openForOS(runtime.GOOS)
}

// openForOS is New with an explicit operating system, separated so the
// selection policy is testable on any host.
func openForOS(goos string) (compute.Device, error) {
	names := chain(goos)
	if names == nil {
		return nil, fmt.Errorf("%w: %s", compute.ErrUnsupportedPlatform, goos)
	}

	var firstErr error
	for _, name := range names {
		b := Get(name)
		if b == nil {
			compute.Logger().Debug("backend not registered, trying next", "backend", name)
			continue
		}
		dev, err := b.Open()
		if err != nil {
			compute.Logger().Warn("backend failed to open, trying next",
				"backend", name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		compute.Logger().Info("device opened",
			"backend", name, "device", dev.Info().Name)
		return dev, nil
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, fmt.Errorf("%w: %s", ErrNoneAvailable, goos)
}

// NewNamed opens a device on the named backend only, with no fallback.
// Capability-probing callers use it to enumerate working backends
// deterministically.
func NewNamed(name string) (compute.Device, error) {
	b := Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return b.Open()
}
