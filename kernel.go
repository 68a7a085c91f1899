package compute

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// HostBindings exposes the resources bound at dispatch time to a kernel's
// host implementation. Slots mirror the SetBuffer/SetBytes slots of the
// recording command buffer.
type HostBindings interface {
	// BufferData returns the backing bytes of the buffer bound at slot,
	// or nil if no buffer is bound there. Mutations are visible to
	// subsequent operations.
	BufferData(slot int) []byte

	// TextureData returns the backing bytes of the texture bound at
	// slot, or nil if no texture is bound there.
	TextureData(slot int) []byte

	// Constants returns the inline constant block set at slot, or nil.
	Constants(slot int) []byte
}

// HostFunc executes a kernel on the CPU for an entire dispatch grid. The
// software device invokes it once per dispatch with the issued thread-group
// counts; the function iterates the grid itself.
type HostFunc func(groupsX, groupsY, groupsZ int, b HostBindings) error

// Kernel is a named compute kernel. Source holds WGSL compiled by GPU
// backends at pipeline creation; Host optionally provides a CPU
// implementation for the software device. At least one must be present.
type Kernel struct {
	Name   string
	Source string
	Host   HostFunc
}

var (
	kernelMu sync.RWMutex
	kernels  = make(map[string]Kernel)
)

// workgroupRe matches the @workgroup_size attribute of a WGSL compute
// entry point. Y and Z default to 1 when omitted.
var workgroupRe = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?(?:,\s*(\d+)\s*)?\)`)

// WorkgroupSize parses the @workgroup_size attribute from WGSL source.
// Omitted axes default to 1.
func WorkgroupSize(source string) (x, y, z int, err error) {
	m := workgroupRe.FindStringSubmatch(source)
	if m == nil {
		return 0, 0, 0, fmt.Errorf("%w: no @workgroup_size attribute", ErrPipelineCompilation)
	}
	x, y, z = 1, 1, 1
	x, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: workgroup size %q", ErrPipelineCompilation, m[1])
	}
	if m[2] != "" {
		y, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		z, _ = strconv.Atoi(m[3])
	}
	if x < 1 || y < 1 || z < 1 {
		return 0, 0, 0, fmt.Errorf("%w: workgroup size (%d,%d,%d) must be positive",
			ErrPipelineCompilation, x, y, z)
	}
	return x, y, z, nil
}

// RegisterKernel adds a kernel to the registry, replacing any kernel with
// the same name. Kernels carrying WGSL source must declare a valid
// @workgroup_size.
func RegisterKernel(k Kernel) error {
	if k.Name == "" {
		return fmt.Errorf("%w: empty kernel name", ErrInvalidUsage)
	}
	if k.Source == "" && k.Host == nil {
		return fmt.Errorf("%w: kernel %q has neither source nor host function", ErrInvalidUsage, k.Name)
	}
	if k.Source != "" {
		if _, _, _, err := WorkgroupSize(k.Source); err != nil {
			return fmt.Errorf("kernel %q: %w", k.Name, err)
		}
	}
	kernelMu.Lock()
	defer kernelMu.Unlock()
	kernels[k.Name] = k
	return nil
}

// UnregisterKernel removes a kernel from the registry. Useful for tests.
func UnregisterKernel(name string) {
	kernelMu.Lock()
	defer kernelMu.Unlock()
	delete(kernels, name)
}

// LookupKernel returns the registered kernel with the given name.
func LookupKernel(name string) (Kernel, bool) {
	kernelMu.RLock()
	defer kernelMu.RUnlock()
	k, ok := kernels[name]
	return k, ok
}

// RegisteredKernels returns the names of all registered kernels.
func RegisteredKernels() []string {
	kernelMu.RLock()
	defer kernelMu.RUnlock()
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	return names
}

// LoadKernels registers every .wgsl file under dir in fsys, using the file
// base name without extension as the kernel name. Works with embed.FS so
// kernel artifacts can ship inside the binary.
func LoadKernels(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("compute: reading kernel dir %q: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".wgsl") {
			continue
		}
		src, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("compute: reading kernel %q: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".wgsl")
		if err := RegisterKernel(Kernel{Name: name, Source: string(src)}); err != nil {
			return err
		}
	}
	return nil
}
