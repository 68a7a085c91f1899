// Package wgpu provides compute devices over the gogpu/wgpu hardware
// abstraction layer. Importing this package registers the vulkan backend;
// the linked HAL decides which native APIs are actually reachable at
// runtime.
package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Link the Vulkan HAL so hal.GetBackend can find it.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/compute"
	"github.com/gogpu/compute/backend"
)

func init() {
	backend.Register(backend.NameVulkan, func() backend.Backend {
		return halBackend{name: backend.NameVulkan, kind: compute.KindVulkan, id: gputypes.BackendVulkan}
	})
}

// ErrNoAdapter is returned when the HAL backend is linked but exposes no
// usable adapter.
var ErrNoAdapter = errors.New("wgpu: no compute-capable adapter found")

// halBackend opens devices through one HAL backend.
type halBackend struct {
	name string
	kind compute.DeviceKind
	id   gputypes.Backend
}

func (b halBackend) Name() string             { return b.name }
func (b halBackend) Kind() compute.DeviceKind { return b.kind }

// Open implements backend.Backend.
func (b halBackend) Open() (compute.Device, error) {
	hb, ok := hal.GetBackend(b.id)
	if !ok {
		return nil, fmt.Errorf("%w: %q HAL not linked", backend.ErrNotRegistered, b.name)
	}

	instance, err := hb.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, &compute.NativeError{Backend: b.name, Op: "CreateInstance", Err: err}
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w (%s)", ErrNoAdapter, b.name)
	}
	selected := pickAdapter(adapters)

	open, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, &compute.NativeError{Backend: b.name, Op: "AdapterOpen", Err: err}
	}

	compute.Logger().Info("adapter opened",
		"backend", b.name, "adapter", selected.Info.Name)

	return newDevice(b.name, b.kind, selected.Info.Name, instance, open.Device, open.Queue), nil
}

// pickAdapter prefers discrete over integrated GPUs, falling back to the
// first exposed adapter.
func pickAdapter(adapters []hal.ExposedAdapter) hal.ExposedAdapter {
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			return a
		}
	}
	for _, a := range adapters {
		if a.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			return a
		}
	}
	return adapters[0]
}
