package wgpu

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/compute"
)

// pipeline is a compiled kernel plus lazily built layout variants. The
// bind-group layout depends on what the command buffer binds at dispatch
// time, so the HAL pipeline is created per layout signature and cached.
type pipeline struct {
	dev       *Device
	name      string
	entry     string
	groupSize [3]int

	mu        sync.Mutex
	module    hal.ShaderModule
	variants  map[string]*pipelineVariant
	destroyed bool
}

// pipelineVariant is one compiled HAL pipeline for one binding signature.
type pipelineVariant struct {
	bindLayout hal.BindGroupLayout
	layout     hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

// CreatePipeline implements compute.Device. The kernel's WGSL is compiled
// to SPIR-V with naga; compilation failures surface as
// ErrPipelineCompilation naming the kernel.
func (d *Device) CreatePipeline(kernel, entryPoint string) (compute.Pipeline, error) {
	if err := d.checkOpen(); err != nil {
		return nil, err
	}
	k, ok := compute.LookupKernel(kernel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", compute.ErrKernelNotFound, kernel)
	}
	if k.Source == "" {
		return nil, fmt.Errorf("%w: kernel %q has no WGSL source", compute.ErrPipelineCompilation, kernel)
	}
	if entryPoint == "" {
		entryPoint = "main"
	}

	x, y, z, err := compute.WorkgroupSize(k.Source)
	if err != nil {
		return nil, fmt.Errorf("kernel %q: %w", kernel, err)
	}

	spirvBytes, err := naga.Compile(k.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: kernel %q: %w", compute.ErrPipelineCompilation, kernel, err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, compute.ErrDeviceClosed
	}
	module, err := d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  kernel,
		Source: hal.ShaderSource{SPIRV: words},
	})
	d.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: kernel %q: %w", compute.ErrPipelineCompilation, kernel,
			d.native("CreateShaderModule", err))
	}

	p := &pipeline{
		dev:       d,
		name:      kernel,
		entry:     entryPoint,
		groupSize: [3]int{x, y, z},
		module:    module,
		variants:  make(map[string]*pipelineVariant),
	}
	d.resMu.Lock()
	d.pipelines[p] = struct{}{}
	d.resMu.Unlock()
	return p, nil
}

func (p *pipeline) Kernel() string     { return p.name }
func (p *pipeline) EntryPoint() string { return p.entry }

func (p *pipeline) ThreadGroupSize() (x, y, z int) {
	return p.groupSize[0], p.groupSize[1], p.groupSize[2]
}

// Destroy implements compute.Pipeline. Idempotent.
func (p *pipeline) Destroy() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.destroyed = true
	module := p.module
	variants := p.variants
	p.module = nil
	p.variants = nil
	p.mu.Unlock()

	p.dev.resMu.Lock()
	delete(p.dev.pipelines, p)
	p.dev.resMu.Unlock()

	for _, v := range variants {
		p.dev.dev.DestroyComputePipeline(v.pipeline)
		p.dev.dev.DestroyPipelineLayout(v.layout)
		p.dev.dev.DestroyBindGroupLayout(v.bindLayout)
	}
	if module != nil {
		p.dev.dev.DestroyShaderModule(module)
	}
}

// variantFor returns the cached HAL pipeline for the binding signature,
// compiling it on first use. Caller holds the device mutex, so variant
// creation is serialized with encoding.
func (p *pipeline) variantFor(key string, entries []gputypes.BindGroupLayoutEntry) (*pipelineVariant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, fmt.Errorf("%w: pipeline destroyed", compute.ErrInvalidUsage)
	}
	if v, ok := p.variants[key]; ok {
		return v, nil
	}

	d := p.dev
	bindLayout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   p.name + "-bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, d.native("CreateBindGroupLayout", err)
	}
	layout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.name + "-layout",
		BindGroupLayouts: []hal.BindGroupLayout{bindLayout},
	})
	if err != nil {
		d.dev.DestroyBindGroupLayout(bindLayout)
		return nil, d.native("CreatePipelineLayout", err)
	}
	halPipe, err := d.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  p.name,
		Layout: layout,
		Compute: hal.ComputeState{
			Module:     p.module,
			EntryPoint: p.entry,
		},
	})
	if err != nil {
		d.dev.DestroyPipelineLayout(layout)
		d.dev.DestroyBindGroupLayout(bindLayout)
		return nil, fmt.Errorf("%w: kernel %q: %w", compute.ErrPipelineCompilation, p.name,
			d.native("CreateComputePipeline", err))
	}

	v := &pipelineVariant{bindLayout: bindLayout, layout: layout, pipeline: halPipe}
	p.variants[key] = v
	compute.Logger().Debug("pipeline variant compiled", "kernel", p.name, "signature", key)
	return v, nil
}

// execState accumulates bind state while translating an op list.
type execState struct {
	pipeline *pipeline
	buffers  map[int]*buffer
	textures map[int]*texture
	bytes    map[int][]byte
}

func newExecState() *execState {
	return &execState{
		buffers:  make(map[int]*buffer),
		textures: make(map[int]*texture),
		bytes:    make(map[int][]byte),
	}
}

// bind clears any previous resource at slot; one slot holds one resource.
func (st *execState) bind(slot int) {
	delete(st.buffers, slot)
	delete(st.textures, slot)
	delete(st.bytes, slot)
}

// slots returns all bound slot indices in ascending order.
func (st *execState) slots() []int {
	out := make([]int, 0, len(st.buffers)+len(st.textures)+len(st.bytes))
	for s := range st.buffers {
		out = append(out, s)
	}
	for s := range st.textures {
		out = append(out, s)
	}
	for s := range st.bytes {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}

// signature builds the layout cache key for the current bind state.
func (st *execState) signature() string {
	var sb strings.Builder
	for _, s := range st.slots() {
		switch {
		case st.bytes[s] != nil:
			fmt.Fprintf(&sb, "u%d;", s)
		case st.buffers[s] != nil:
			fmt.Fprintf(&sb, "s%d;", s)
		default:
			t := st.textures[s]
			fmt.Fprintf(&sb, "t%d:%s:%d;", s, t.format, t.d)
		}
	}
	return sb.String()
}

// encodeDispatch compiles the bind state into a bind group, resolves the
// pipeline variant and records one compute pass. Transient uniform buffers
// and the bind group are destroyed after the submission retires. Caller
// holds d.mu.
func (d *Device) encodeDispatch(enc hal.CommandEncoder, st *execState, groups [3]int, cleanup *[]func()) error {
	if st.pipeline == nil {
		return fmt.Errorf("%w: dispatch with no pipeline bound", compute.ErrInvalidUsage)
	}

	slots := st.slots()
	layoutEntries := make([]gputypes.BindGroupLayoutEntry, 0, len(slots))
	bindEntries := make([]gputypes.BindGroupEntry, 0, len(slots))

	for _, slot := range slots {
		layout := gputypes.BindGroupLayoutEntry{
			Binding:    uint32(slot),
			Visibility: gputypes.ShaderStageCompute,
		}
		entry := gputypes.BindGroupEntry{Binding: uint32(slot)}

		switch {
		case st.bytes[slot] != nil:
			data := padToCopyAlignment(st.bytes[slot])
			ub, err := d.createHALBuffer("inline-constants", len(data),
				gputypes.BufferUsageUniform|gputypes.BufferUsageCopyDst)
			if err != nil {
				return err
			}
			d.queue.WriteBuffer(ub, 0, data)
			*cleanup = append(*cleanup, func() { d.dev.DestroyBuffer(ub) })

			layout.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
			entry.Resource = gputypes.BufferBinding{
				Buffer: ub.NativeHandle(),
				Offset: 0,
				Size:   uint64(len(data)),
			}

		case st.buffers[slot] != nil:
			b := st.buffers[slot]
			layout.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
			entry.Resource = gputypes.BufferBinding{
				Buffer: b.halBuf.NativeHandle(),
				Offset: 0,
				Size:   uint64(alignUp(b.size, copyAlignment)),
			}

		default:
			t := st.textures[slot]
			halFormat, _ := textureFormat(t.format)
			viewDimension := gputypes.TextureViewDimension2D
			if t.d > 1 {
				viewDimension = gputypes.TextureViewDimension3D
			}
			layout.StorageTexture = &gputypes.StorageTextureBindingLayout{
				Access:        gputypes.StorageTextureAccessReadWrite,
				Format:        halFormat,
				ViewDimension: viewDimension,
			}
			entry.Resource = gputypes.TextureViewBinding{
				TextureView: t.view.NativeHandle(),
			}
		}

		layoutEntries = append(layoutEntries, layout)
		bindEntries = append(bindEntries, entry)
	}

	variant, err := st.pipeline.variantFor(st.signature(), layoutEntries)
	if err != nil {
		return err
	}

	group, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   st.pipeline.name + "-bind",
		Layout:  variant.bindLayout,
		Entries: bindEntries,
	})
	if err != nil {
		return d.native("CreateBindGroup", err)
	}
	*cleanup = append(*cleanup, func() { d.dev.DestroyBindGroup(group) })

	pass := enc.BeginComputePass(&hal.ComputePassDescriptor{Label: st.pipeline.name})
	pass.SetPipeline(variant.pipeline)
	pass.SetBindGroup(0, group, nil)
	pass.Dispatch(uint32(groups[0]), uint32(groups[1]), uint32(groups[2]))
	pass.End()
	return nil
}

// encodeCopyTexture bounces a whole-texture copy through a transient
// buffer with aligned row pitch; the HAL has no direct texture-to-texture
// copy on the compute path. Caller holds d.mu.
func (d *Device) encodeCopyTexture(enc hal.CommandEncoder, src, dst *texture, cleanup *[]func()) error {
	rowBytes := src.w * src.format.BytesPerPixel()
	alignedRow := alignUp(rowBytes, rowAlignment)
	size := alignedRow * src.h * src.d

	staging, err := d.createHALBuffer("texture-copy",
		size, gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst)
	if err != nil {
		return err
	}
	*cleanup = append(*cleanup, func() { d.dev.DestroyBuffer(staging) })

	layout := hal.ImageDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(alignedRow),
		RowsPerImage: uint32(src.h),
	}
	extent := hal.Extent3D{
		Width:              uint32(src.w),
		Height:             uint32(src.h),
		DepthOrArrayLayers: uint32(src.d),
	}

	srcIdle := idleTextureUsage(src.usage)
	dstIdle := idleTextureUsage(dst.usage)
	enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: src.halTex, Usage: hal.TextureUsageTransition{OldUsage: srcIdle, NewUsage: gputypes.TextureUsageCopySrc}},
		{Texture: dst.halTex, Usage: hal.TextureUsageTransition{OldUsage: dstIdle, NewUsage: gputypes.TextureUsageCopyDst}},
	})
	enc.CopyTextureToBuffer(src.halTex, staging, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: src.halTex, MipLevel: 0},
		Size:         extent,
	}})
	enc.CopyBufferToTexture(staging, dst.halTex, []hal.BufferTextureCopy{{
		BufferLayout: layout,
		TextureBase:  hal.ImageCopyTexture{Texture: dst.halTex, MipLevel: 0},
		Size:         extent,
	}})
	enc.TransitionTextures([]hal.TextureBarrier{
		{Texture: src.halTex, Usage: hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopySrc, NewUsage: srcIdle}},
		{Texture: dst.halTex, Usage: hal.TextureUsageTransition{OldUsage: gputypes.TextureUsageCopyDst, NewUsage: dstIdle}},
	})
	return nil
}
