package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/internal/imath"
)

type Allocation struct {
	Offset uint64
	Size   uint64
}

func (a *Allocation) String() string {
	return fmt.Sprintf("[%d %d]", a.Offset, a.Size)
}

// Arena is a first-fit sub-allocator over a range of Size bytes. Live
// allocations are kept sorted by offset.
type Arena struct {
	Size   uint64
	allocs []*Allocation
}

func (p *Arena) insert(i int, na *Allocation) *Allocation {
	p.allocs = append(p.allocs, nil)
	copy(p.allocs[i+1:], p.allocs[i:])
	p.allocs[i] = na
	return na
}

// Allocate returns size bytes at an offset aligned to align, or nil when
// no gap is large enough.
func (p *Arena) Allocate(size uint64, align uint64) *Allocation {
	if size == 0 || size > p.Size {
		return nil
	}
	var start uint64
	for i, c := range p.allocs {
		l := imath.AlignUp(start, align)
		if l+size <= c.Offset {
			return p.insert(i, &Allocation{Offset: l, Size: size})
		}
		start = c.Offset + c.Size
	}
	l := imath.AlignUp(start, align)
	if l+size > p.Size {
		return nil
	}
	return p.insert(len(p.allocs), &Allocation{Offset: l, Size: size})
}

func (p *Arena) Free(fa *Allocation) {
	for i, a := range p.allocs {
		if a == fa {
			p.allocs = append(p.allocs[:i], p.allocs[i+1:]...)
			return
		}
	}
}

// Reset frees every allocation.
func (p *Arena) Reset() {
	p.allocs = p.allocs[:0]
}

// Used is the number of bytes in live allocations, excluding padding.
func (p *Arena) Used() uint64 {
	var n uint64
	for _, a := range p.allocs {
		n += a.Size
	}
	return n
}

func (p *Arena) String() string {
	return fmt.Sprintf("%v", p.allocs)
}

// UniformArena hands out uniform buffer ranges of a persistently mapped
// buffer, aligned to the device's minimum uniform offset alignment. It is
// reset once per frame after the frame's fence has been waited on.
type UniformArena struct {
	Buffer *Buffer
	Arena
	align uint64
}

func (c *Context) CreateUniformArena(name string, size uint64) (*UniformArena, error) {
	b, err := c.CreateBuffer(name, size, vk.BufferUsageUniformBufferBit, CPUToGPU)
	if err != nil {
		return nil, err
	}
	return &UniformArena{
		Buffer: b,
		Arena:  Arena{Size: size},
		align:  c.Device.PhysicalDevice.Caps.MinUniformAlignment,
	}, nil
}

// Write copies data into a fresh range and returns its descriptor info.
func (u *UniformArena) Write(data []byte) (vk.DescriptorBufferInfo, error) {
	a := u.Allocate(uint64(len(data)), u.align)
	if a == nil {
		return vk.DescriptorBufferInfo{}, fmt.Errorf("uniform arena %s: %d bytes do not fit (%d used)", u.Buffer.Name, len(data), u.Used())
	}
	copy(u.Buffer.Mapped[a.Offset:], data)
	return u.Buffer.DSInfo(a.Offset, a.Size), nil
}

// WriteAt copies data to a fixed offset, for buffers whose layout is
// decided up front. It bypasses the allocator, so it is not mixed with
// Write on the same arena.
func (u *UniformArena) WriteAt(offset uint64, data []byte) (vk.DescriptorBufferInfo, error) {
	end := offset + uint64(len(data))
	if offset%u.alignment() != 0 || end > u.Size || end > uint64(len(u.Buffer.Mapped)) {
		return vk.DescriptorBufferInfo{}, fmt.Errorf("uniform arena %s: %d bytes at offset %d outside %d", u.Buffer.Name, len(data), offset, u.Size)
	}
	copy(u.Buffer.Mapped[offset:end], data)
	return u.Buffer.DSInfo(offset, uint64(len(data))), nil
}

func (u *UniformArena) alignment() uint64 {
	if u.align == 0 {
		return 1
	}
	return u.align
}

func (u *UniformArena) Destroy() {
	u.Buffer.Destroy()
}
