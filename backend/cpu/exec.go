package cpu

import (
	"fmt"

	"github.com/gogpu/compute"
)

// execState tracks bindings while walking an op list. It implements
// compute.HostBindings so host kernels see the live backing memory.
type execState struct {
	pipeline *pipeline
	buffers  map[int]*buffer
	textures map[int]*texture
	bytes    map[int][]byte
}

func (s *execState) BufferData(slot int) []byte {
	if b, ok := s.buffers[slot]; ok {
		return b.data
	}
	return nil
}

func (s *execState) TextureData(slot int) []byte {
	if t, ok := s.textures[slot]; ok {
		return t.data
	}
	return nil
}

func (s *execState) Constants(slot int) []byte {
	return s.bytes[slot]
}

// bindSlot keeps one resource per slot, whichever kind was set last.
func (s *execState) bindSlot(slot int) {
	delete(s.buffers, slot)
	delete(s.textures, slot)
	delete(s.bytes, slot)
}

// execute runs one submitted op list to completion in order.
func (d *Device) execute(ops []compute.Op) error {
	st := &execState{
		buffers:  make(map[int]*buffer),
		textures: make(map[int]*texture),
		bytes:    make(map[int][]byte),
	}

	for _, op := range ops {
		switch op.Kind {
		case compute.OpSetPipeline:
			p, ok := op.Pipeline.(*pipeline)
			if !ok {
				return fmt.Errorf("%w: pipeline from another device", compute.ErrInvalidUsage)
			}
			st.pipeline = p

		case compute.OpSetBuffer:
			b, err := d.ownBuffer(op.Buffer)
			if err != nil {
				return err
			}
			st.bindSlot(op.Slot)
			st.buffers[op.Slot] = b

		case compute.OpSetTexture:
			t, err := d.ownTexture(op.Texture)
			if err != nil {
				return err
			}
			st.bindSlot(op.Slot)
			st.textures[op.Slot] = t

		case compute.OpSetBytes:
			st.bindSlot(op.Slot)
			st.bytes[op.Slot] = op.Bytes

		case compute.OpDispatch:
			if st.pipeline == nil {
				return fmt.Errorf("%w: dispatch with no pipeline bound", compute.ErrInvalidUsage)
			}
			host := st.pipeline.kernel.Host
			if host == nil {
				compute.Logger().Debug("dispatch skipped, kernel has no host implementation",
					"kernel", st.pipeline.kernel.Name,
					"groups_x", op.Groups[0], "groups_y", op.Groups[1], "groups_z", op.Groups[2])
				continue
			}
			if err := host(op.Groups[0], op.Groups[1], op.Groups[2], st); err != nil {
				return fmt.Errorf("kernel %q: %w", st.pipeline.kernel.Name, err)
			}

		case compute.OpCopyBuffer:
			src, err := d.ownBuffer(op.SrcBuffer)
			if err != nil {
				return err
			}
			dst, err := d.ownBuffer(op.DstBuffer)
			if err != nil {
				return err
			}
			copy(dst.data[:op.Size], src.data[:op.Size])

		case compute.OpCopyTexture:
			src, err := d.ownTexture(op.SrcTexture)
			if err != nil {
				return err
			}
			dst, err := d.ownTexture(op.DstTexture)
			if err != nil {
				return err
			}
			copy(dst.data, src.data)

		default:
			return fmt.Errorf("%w: unknown op %s", compute.ErrInvalidUsage, op.Kind)
		}
	}
	return nil
}

// ownBuffer unwraps a pooled façade if present and asserts the buffer was
// created by this device.
func (d *Device) ownBuffer(b compute.Buffer) (*buffer, error) {
	if pb, ok := b.(*compute.PooledBuffer); ok {
		b = pb.Buffer
	}
	own, ok := b.(*buffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer from another device", compute.ErrInvalidUsage)
	}
	return own, nil
}

// ownTexture is the texture counterpart of ownBuffer.
func (d *Device) ownTexture(t compute.Texture) (*texture, error) {
	if pt, ok := t.(*compute.PooledTexture); ok {
		t = pt.Texture
	}
	own, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("%w: texture from another device", compute.ErrInvalidUsage)
	}
	return own, nil
}
