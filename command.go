package compute

import (
	"fmt"
	"sync"
)

// MaxInlineConstants is the byte limit for SetBytes. Larger constant
// blocks belong in an Upload buffer.
const MaxInlineConstants = 4096

// CommandBufferState represents the lifecycle state of a command buffer.
type CommandBufferState int

const (
	// StateUnrecorded means no recording has started.
	StateUnrecorded CommandBufferState = iota
	// StateRecording means BeginCompute has been called and bind,
	// dispatch and copy operations are accepted.
	StateRecording
	// StateRecorded means EndCompute has been called and the buffer is
	// ready for a single submission.
	StateRecorded
	// StateSubmitted means the buffer has been handed to Device.Submit.
	StateSubmitted
	// StateRetired means execution has completed.
	StateRetired
)

// String returns the string representation of CommandBufferState.
func (s CommandBufferState) String() string {
	switch s {
	case StateUnrecorded:
		return "Unrecorded"
	case StateRecording:
		return "Recording"
	case StateRecorded:
		return "Recorded"
	case StateSubmitted:
		return "Submitted"
	case StateRetired:
		return "Retired"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// OpKind identifies a recorded command buffer operation.
type OpKind int

const (
	// OpSetPipeline binds a compute pipeline.
	OpSetPipeline OpKind = iota
	// OpSetBuffer binds a buffer at a slot.
	OpSetBuffer
	// OpSetTexture binds a texture at a slot.
	OpSetTexture
	// OpSetBytes binds a small inline constant block at a slot.
	OpSetBytes
	// OpDispatch issues thread groups with the bound pipeline.
	OpDispatch
	// OpCopyBuffer copies between two buffers.
	OpCopyBuffer
	// OpCopyTexture copies between two same-shape textures.
	OpCopyTexture
)

// String returns the string representation of OpKind.
func (k OpKind) String() string {
	switch k {
	case OpSetPipeline:
		return "SetPipeline"
	case OpSetBuffer:
		return "SetBuffer"
	case OpSetTexture:
		return "SetTexture"
	case OpSetBytes:
		return "SetBytes"
	case OpDispatch:
		return "Dispatch"
	case OpCopyBuffer:
		return "CopyBuffer"
	case OpCopyTexture:
		return "CopyTexture"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// Op is one recorded operation. Device implementations translate the op
// list into native commands at Submit; only the fields relevant to Kind
// are populated.
type Op struct {
	Kind OpKind

	// OpSetPipeline
	Pipeline Pipeline

	// Bind slot for SetBuffer, SetTexture and SetBytes.
	Slot int

	// OpSetBuffer
	Buffer Buffer

	// OpSetTexture
	Texture Texture

	// OpSetBytes. The slice is a private copy taken at record time.
	Bytes []byte

	// OpDispatch: thread groups per axis.
	Groups [3]int

	// OpCopyBuffer
	SrcBuffer Buffer
	DstBuffer Buffer
	Size      int

	// OpCopyTexture
	SrcTexture Texture
	DstTexture Texture
}

// CommandBuffer records a bounded sequence of bind, dispatch and copy
// operations for one submission.
//
// All contract violations are rejected at record time, before any native
// call is issued. A command buffer is not safe for concurrent recording
// (it mirrors a single logical call stream), but state transitions are
// guarded so that a submitted buffer may be inspected or discarded from
// any goroutine.
type CommandBuffer struct {
	mu       sync.Mutex
	state    CommandBufferState
	ops      []Op
	pipeline Pipeline // currently bound, consulted by DispatchThreads
}

// NewCommandBuffer returns an empty command buffer in the Unrecorded
// state. Device implementations hand these out from CreateCommandBuffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{state: StateUnrecorded}
}

// State returns the current lifecycle state.
func (cb *CommandBuffer) State() CommandBufferState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// BeginCompute opens the recording scope. Valid only in the Unrecorded
// state.
func (cb *CommandBuffer) BeginCompute() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateUnrecorded {
		return fmt.Errorf("%w: BeginCompute in state %s", ErrInvalidRecordingState, cb.state)
	}
	cb.state = StateRecording
	return nil
}

// EndCompute closes the recording scope, transitioning to Recorded.
func (cb *CommandBuffer) EndCompute() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != StateRecording {
		return fmt.Errorf("%w: EndCompute in state %s", ErrInvalidRecordingState, cb.state)
	}
	cb.state = StateRecorded
	return nil
}

// checkRecordingLocked rejects operations issued outside the Recording
// state. Caller holds cb.mu.
func (cb *CommandBuffer) checkRecordingLocked(op string) error {
	if cb.state != StateRecording {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidRecordingState, op, cb.state)
	}
	return nil
}

// SetPipeline binds the compute pipeline used by subsequent dispatches.
func (cb *CommandBuffer) SetPipeline(p Pipeline) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("SetPipeline"); err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("%w: nil pipeline", ErrInvalidUsage)
	}
	cb.pipeline = p
	cb.ops = append(cb.ops, Op{Kind: OpSetPipeline, Pipeline: p})
	return nil
}

// SetBuffer binds a buffer at the given slot for subsequent dispatches.
func (cb *CommandBuffer) SetBuffer(slot int, b Buffer) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("SetBuffer"); err != nil {
		return err
	}
	if b == nil {
		return fmt.Errorf("%w: nil buffer at slot %d", ErrInvalidUsage, slot)
	}
	if slot < 0 {
		return fmt.Errorf("%w: negative slot %d", ErrInvalidUsage, slot)
	}
	cb.ops = append(cb.ops, Op{Kind: OpSetBuffer, Slot: slot, Buffer: b})
	return nil
}

// SetTexture binds a texture at the given slot for subsequent dispatches.
func (cb *CommandBuffer) SetTexture(slot int, t Texture) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("SetTexture"); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: nil texture at slot %d", ErrInvalidUsage, slot)
	}
	if slot < 0 {
		return fmt.Errorf("%w: negative slot %d", ErrInvalidUsage, slot)
	}
	cb.ops = append(cb.ops, Op{Kind: OpSetTexture, Slot: slot, Texture: t})
	return nil
}

// SetBytes binds a small inline constant block at the given slot. The data
// is copied; the caller may reuse the slice. Blocks larger than
// MaxInlineConstants are rejected with ErrSizeMismatch.
func (cb *CommandBuffer) SetBytes(slot int, data []byte) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("SetBytes"); err != nil {
		return err
	}
	if slot < 0 {
		return fmt.Errorf("%w: negative slot %d", ErrInvalidUsage, slot)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty constant block at slot %d", ErrInvalidUsage, slot)
	}
	if len(data) > MaxInlineConstants {
		return fmt.Errorf("%w: %d bytes exceed inline constant limit %d",
			ErrSizeMismatch, len(data), MaxInlineConstants)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	cb.ops = append(cb.ops, Op{Kind: OpSetBytes, Slot: slot, Bytes: cp})
	return nil
}

// Dispatch issues groupsX*groupsY*groupsZ thread groups with the bound
// pipeline.
func (cb *CommandBuffer) Dispatch(groupsX, groupsY, groupsZ int) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("Dispatch"); err != nil {
		return err
	}
	if cb.pipeline == nil {
		return fmt.Errorf("%w: dispatch with no pipeline bound", ErrInvalidUsage)
	}
	if groupsX < 1 || groupsY < 1 || groupsZ < 1 {
		return fmt.Errorf("%w: dispatch groups (%d,%d,%d) must be positive",
			ErrInvalidUsage, groupsX, groupsY, groupsZ)
	}
	cb.ops = append(cb.ops, Op{Kind: OpDispatch, Groups: [3]int{groupsX, groupsY, groupsZ}})
	return nil
}

// DispatchThreads issues enough thread groups to cover the requested
// thread counts, rounding up per axis so that partial groups are still
// issued. Kernels are responsible for bounds-checking excess threads.
func (cb *CommandBuffer) DispatchThreads(threadsX, threadsY, threadsZ int) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("DispatchThreads"); err != nil {
		return err
	}
	if cb.pipeline == nil {
		return fmt.Errorf("%w: dispatch with no pipeline bound", ErrInvalidUsage)
	}
	if threadsX < 1 || threadsY < 1 || threadsZ < 1 {
		return fmt.Errorf("%w: thread counts (%d,%d,%d) must be positive",
			ErrInvalidUsage, threadsX, threadsY, threadsZ)
	}
	sx, sy, sz := cb.pipeline.ThreadGroupSize()
	groups := [3]int{
		(threadsX + sx - 1) / sx,
		(threadsY + sy - 1) / sy,
		(threadsZ + sz - 1) / sz,
	}
	cb.ops = append(cb.ops, Op{Kind: OpDispatch, Groups: groups})
	return nil
}

// CopyBuffer records a copy of size bytes from src to dst, both starting
// at offset 0. The size must fit both buffers; same-resource self-copy is
// rejected.
func (cb *CommandBuffer) CopyBuffer(src, dst Buffer, size int) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("CopyBuffer"); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil buffer", ErrInvalidCopy)
	}
	if src == dst {
		return fmt.Errorf("%w: source and destination are the same buffer", ErrInvalidCopy)
	}
	if size <= 0 {
		return fmt.Errorf("%w: size %d must be positive", ErrInvalidCopy, size)
	}
	if size > src.Size() {
		return fmt.Errorf("%w: size %d exceeds source size %d", ErrInvalidCopy, size, src.Size())
	}
	if size > dst.Size() {
		return fmt.Errorf("%w: size %d exceeds destination size %d", ErrInvalidCopy, size, dst.Size())
	}
	cb.ops = append(cb.ops, Op{Kind: OpCopyBuffer, SrcBuffer: src, DstBuffer: dst, Size: size})
	return nil
}

// CopyTexture records a whole-texture copy from src to dst. The textures
// must share dimensions and format; same-resource self-copy is rejected.
func (cb *CommandBuffer) CopyTexture(src, dst Texture) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err := cb.checkRecordingLocked("CopyTexture"); err != nil {
		return err
	}
	if src == nil || dst == nil {
		return fmt.Errorf("%w: nil texture", ErrInvalidCopy)
	}
	if src == dst {
		return fmt.Errorf("%w: source and destination are the same texture", ErrInvalidCopy)
	}
	if src.Format() != dst.Format() {
		return fmt.Errorf("%w: format mismatch %s vs %s", ErrInvalidCopy, src.Format(), dst.Format())
	}
	if src.Width() != dst.Width() || src.Height() != dst.Height() || src.Depth() != dst.Depth() {
		return fmt.Errorf("%w: dimension mismatch %dx%dx%d vs %dx%dx%d", ErrInvalidCopy,
			src.Width(), src.Height(), src.Depth(), dst.Width(), dst.Height(), dst.Depth())
	}
	cb.ops = append(cb.ops, Op{Kind: OpCopyTexture, SrcTexture: src, DstTexture: dst})
	return nil
}

// TakeForSubmit transitions Recorded to Submitted and returns the recorded
// ops. Device implementations call this at the start of Submit; the
// transition guarantees single submission.
func (cb *CommandBuffer) TakeForSubmit() ([]Op, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateRecorded:
		cb.state = StateSubmitted
		return cb.ops, nil
	case StateSubmitted, StateRetired:
		return nil, ErrAlreadySubmitted
	default:
		return nil, fmt.Errorf("%w: submit in state %s", ErrInvalidRecordingState, cb.state)
	}
}

// Retire transitions Submitted to Retired. Device implementations call it
// once execution has completed; any other state is left unchanged.
func (cb *CommandBuffer) Retire() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateSubmitted {
		cb.state = StateRetired
	}
}
