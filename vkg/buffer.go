package vkg

import (
	"fmt"
	"unsafe"

	units "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

// MemoryUsage selects the memory a buffer is bound to.
type MemoryUsage int

const (
	// GPUOnly is device local memory, written through staging copies.
	GPUOnly MemoryUsage = iota
	// CPUToGPU is host visible, coherent and persistently mapped.
	CPUToGPU
	// GPUToCPU is host visible memory for readbacks, persistently mapped.
	GPUToCPU
)

func (m MemoryUsage) properties() vk.MemoryPropertyFlagBits {
	switch m {
	case CPUToGPU, GPUToCPU:
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

// Buffer is a buffer bound to its own allocation. Address is set when the
// buffer was created with BufferUsageDeviceAddress and Mapped when its
// memory is host visible.
type Buffer struct {
	Device   *Device
	Name     string
	VKBuffer vk.Buffer
	Memory   *DeviceMemory
	Size     uint64
	Usage    vk.BufferUsageFlagBits
	Address  uint64
	Mapped   []byte
}

// CreateBuffer creates a buffer of size bytes. Device local buffers get
// TransferDst added to usage so they can be filled by CopyToDevice.
func (c *Context) CreateBuffer(name string, size uint64, usage vk.BufferUsageFlagBits, mem MemoryUsage) (*Buffer, error) {
	return c.Device.CreateBuffer(name, size, usage, mem)
}

func (d *Device) CreateBuffer(name string, size uint64, usage vk.BufferUsageFlagBits, mem MemoryUsage) (*Buffer, error) {
	if size == 0 {
		return nil, fmt.Errorf("buffer %s: zero size", name)
	}
	if mem == GPUOnly {
		usage |= vk.BufferUsageTransferDstBit
	}
	if mem == GPUToCPU {
		usage |= vk.BufferUsageTransferDstBit
	}

	bufferCreateInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var buffer vk.Buffer
	err := vk.Error(vk.CreateBuffer(d.VKDevice, &bufferCreateInfo, nil, &buffer))
	if err != nil {
		return nil, fmt.Errorf("buffer %s: %w", name, err)
	}
	b := &Buffer{Device: d, Name: name, VKBuffer: buffer, Size: size, Usage: usage}

	var mr vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.VKDevice, buffer, &mr)
	mr.Deref()

	address := usage&BufferUsageDeviceAddress != 0
	b.Memory, err = d.Allocate(uint64(mr.Size), mr.MemoryTypeBits, mem.properties(), address)
	if err != nil {
		vk.DestroyBuffer(d.VKDevice, buffer, nil)
		return nil, fmt.Errorf("buffer %s: %w", name, err)
	}
	err = vk.Error(vk.BindBufferMemory(d.VKDevice, buffer, b.Memory.VKDeviceMemory, 0))
	if err != nil {
		b.Destroy()
		return nil, fmt.Errorf("buffer %s: bind: %w", name, err)
	}

	if address {
		b.Address = bufferAddress(d.VKDevice, buffer)
	}
	if mem != GPUOnly {
		ptr, err := b.Memory.Map()
		if err != nil {
			b.Destroy()
			return nil, fmt.Errorf("buffer %s: map: %w", name, err)
		}
		b.Mapped = ToBytes(ptr, int(size))
	}
	d.SetObjectName(ObjectBuffer, unsafe.Pointer(buffer), name)
	logger.Debugf("buffer %s: %s", name, units.BytesSize(float64(size)))
	return b, nil
}

// CreateBufferWithData creates a buffer sized to data and copies data into
// it, through a staging buffer when mem is GPUOnly.
func (c *Context) CreateBufferWithData(name string, data []byte, usage vk.BufferUsageFlagBits, mem MemoryUsage) (*Buffer, error) {
	b, err := c.CreateBuffer(name, uint64(len(data)), usage, mem)
	if err != nil {
		return nil, err
	}
	if err := c.CopyToDevice(b, data, mem == GPUOnly); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

// CopyToDevice writes data at the start of b. Staged copies go through a
// temporary host buffer and a blocking transfer; unstaged copies need a
// mapped buffer.
func (c *Context) CopyToDevice(b *Buffer, data []byte, staged bool) error {
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("buffer %s: %d bytes do not fit in %d", b.Name, len(data), b.Size)
	}
	if !staged {
		if b.Mapped == nil {
			return fmt.Errorf("buffer %s: not mapped", b.Name)
		}
		copy(b.Mapped, data)
		return nil
	}

	staging, err := c.Device.CreateBuffer(b.Name+".staging", uint64(len(data)), vk.BufferUsageTransferSrcBit, CPUToGPU)
	if err != nil {
		return err
	}
	defer staging.Destroy()
	copy(staging.Mapped, data)

	cmd, err := c.RecordCommand(false)
	if err != nil {
		return err
	}
	cmd.CopyBuffer(staging, b, uint64(len(data)))
	return c.Flush(cmd)
}

// CopyToHost reads len(out) bytes from the start of b.
func (c *Context) CopyToHost(b *Buffer, out []byte) error {
	if uint64(len(out)) > b.Size {
		return fmt.Errorf("buffer %s: read of %d bytes past %d", b.Name, len(out), b.Size)
	}
	if b.Mapped != nil {
		copy(out, b.Mapped)
		return nil
	}

	readback, err := c.Device.CreateBuffer(b.Name+".readback", uint64(len(out)), 0, GPUToCPU)
	if err != nil {
		return err
	}
	defer readback.Destroy()

	cmd, err := c.RecordCommand(false)
	if err != nil {
		return err
	}
	cmd.BufferBarrier(b, vk.PipelineStageAllCommandsBit, vk.AccessMemoryWriteBit, vk.PipelineStageTransferBit, vk.AccessTransferReadBit)
	cmd.CopyBuffer(b, readback, uint64(len(out)))
	if err := c.Flush(cmd); err != nil {
		return err
	}
	copy(out, readback.Mapped)
	return nil
}

// Barrier returns a barrier over the whole buffer.
func (b *Buffer) Barrier(srcAccess, dstAccess vk.AccessFlagBits) vk.BufferMemoryBarrier {
	return vk.BufferMemoryBarrier{
		SType:               vk.StructureTypeBufferMemoryBarrier,
		SrcAccessMask:       vk.AccessFlags(srcAccess),
		DstAccessMask:       vk.AccessFlags(dstAccess),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              b.VKBuffer,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
}

// DSInfo describes size bytes of the buffer at offset, the whole buffer
// when size is 0.
func (b *Buffer) DSInfo(offset, size uint64) vk.DescriptorBufferInfo {
	if size == 0 {
		size = b.Size - offset
	}
	var descriptorBufferInfo = vk.DescriptorBufferInfo{}
	descriptorBufferInfo.Buffer = b.VKBuffer
	descriptorBufferInfo.Offset = vk.DeviceSize(offset)
	descriptorBufferInfo.Range = vk.DeviceSize(size)
	return descriptorBufferInfo
}

func (b *Buffer) Destroy() {
	if b.Mapped != nil {
		b.Memory.Unmap()
		b.Mapped = nil
	}
	vk.DestroyBuffer(b.Device.VKDevice, b.VKBuffer, nil)
	if b.Memory != nil {
		b.Memory.Destroy()
	}
}
