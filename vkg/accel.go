package vkg

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"
)

type AccelerationStructureKind int

const (
	BottomLevel AccelerationStructureKind = iota
	TopLevel
)

func (k AccelerationStructureKind) String() string {
	if k == TopLevel {
		return "tlas"
	}
	return "blas"
}

// TriangleGeometry is an indexed triangle list of R32G32B32 positions with
// 32 bit indices, both addressed through device addresses.
type TriangleGeometry struct {
	VertexAddress uint64
	VertexStride  uint32
	MaxVertex     uint32
	IndexAddress  uint64
	TriangleCount uint32
	Opaque        bool
}

// AccelerationStructureInput describes one build. Bottom level builds use
// Triangles, top level builds InstanceAddress and InstanceCount.
type AccelerationStructureInput struct {
	Kind            AccelerationStructureKind
	Flags           uint32
	Update          bool
	Triangles       TriangleGeometry
	InstanceAddress uint64
	InstanceCount   uint32
}

func (in *AccelerationStructureInput) primitives() uint32 {
	if in.Kind == TopLevel {
		return in.InstanceCount
	}
	return in.Triangles.TriangleCount
}

type AccelerationStructure struct {
	Device  *Device
	Name    string
	Kind    AccelerationStructureKind
	Buffer  *Buffer
	Address uint64
	// ScratchSize is the scratch needed by an update build.
	ScratchSize uint64

	handle unsafe.Pointer
}

// CreateAccelerationStructure allocates and builds an acceleration
// structure on the graphics queue, waiting for completion. The scratch
// buffer is returned to the caller, who destroys it; it can be kept for
// later updates when the build allows them.
func (c *Context) CreateAccelerationStructure(name string, in AccelerationStructureInput) (*AccelerationStructure, *Buffer, error) {
	if in.primitives() == 0 {
		return nil, nil, fmt.Errorf("%s %s: no primitives", in.Kind, name)
	}
	in.Update = false
	size, scratchSize := accelerationStructureSizes(c.Device.VKDevice, &in)

	buffer, err := c.CreateBuffer(name, size, BufferUsageASStorage|BufferUsageDeviceAddress, GPUOnly)
	if err != nil {
		return nil, nil, err
	}
	handle, address, err := createAccelerationStructure(c.Device.VKDevice, in.Kind == TopLevel, buffer.VKBuffer, size)
	if err != nil {
		buffer.Destroy()
		return nil, nil, fmt.Errorf("%s %s: %w", in.Kind, name, err)
	}
	as := &AccelerationStructure{
		Device:      c.Device,
		Name:        name,
		Kind:        in.Kind,
		Buffer:      buffer,
		Address:     address,
		ScratchSize: scratchSize,
		handle:      handle,
	}
	c.Device.SetObjectName(ObjectAccelerationStruct, handle, name)

	scratch, err := c.CreateBuffer(name+".scratch", scratchSize, vk.BufferUsageStorageBufferBit|BufferUsageDeviceAddress, GPUOnly)
	if err != nil {
		as.Destroy()
		return nil, nil, err
	}

	cmd, err := c.RecordCommand(false)
	if err != nil {
		scratch.Destroy()
		as.Destroy()
		return nil, nil, err
	}
	as.CmdBuild(cmd, &in, scratch)
	if err := c.Flush(cmd); err != nil {
		scratch.Destroy()
		as.Destroy()
		return nil, nil, fmt.Errorf("%s %s: build: %w", in.Kind, name, err)
	}
	return as, scratch, nil
}

// CmdBuild records a build, or an update in place when in.Update is set,
// followed by a barrier making the result visible to later builds and
// ray queries.
func (a *AccelerationStructure) CmdBuild(cmd *CommandBuffer, in *AccelerationStructureInput, scratch *Buffer) {
	cmdBuildAccelerationStructure(cmd.VKCommandBuffer, in, a.handle, scratch.Address)
	cmd.MemoryBarrier(PipelineStageASBuild, PipelineStageASBuild|vk.PipelineStageComputeShaderBit|vk.PipelineStageFragmentShaderBit,
		AccessASWrite, AccessASRead)
}

func (a *AccelerationStructure) Destroy() {
	if a.handle != nil {
		destroyAccelerationStructure(a.Device.VKDevice, a.handle)
		a.handle = nil
	}
	if a.Buffer != nil {
		a.Buffer.Destroy()
	}
}

// Instance flags of VkGeometryInstanceFlagBitsKHR.
const (
	InstanceCullDisable = 0x1
	InstanceForceOpaque = 0x4
)

// ASInstanceSize is the size of VkAccelerationStructureInstanceKHR.
const ASInstanceSize = 64

// ASInstance is a top level instance record.
type ASInstance struct {
	// Transform is the upper 3x4 of the object to world matrix, row major.
	Transform   [12]float32
	CustomIdx   uint32
	Mask        uint8
	SBTOffset   uint32
	Flags       uint8
	BLASAddress uint64
}

// NewASInstance makes an instance of blas with the column major transform
// m. custom is the value returned by InstanceCustomIndex in shaders and
// must fit in 24 bits.
func NewASInstance(m lin.Mat4x4, custom uint32, mask, flags uint8, blas *AccelerationStructure) ASInstance {
	var i ASInstance
	for r := 0; r < 3; r++ {
		for c := 0; c < 4; c++ {
			i.Transform[r*4+c] = m[c][r]
		}
	}
	i.CustomIdx = custom & 0xffffff
	i.Mask = mask
	i.Flags = flags
	if blas != nil {
		i.BLASAddress = blas.Address
	}
	return i
}

// Put writes the record into b, which must hold ASInstanceSize bytes.
func (i *ASInstance) Put(b []byte) {
	le := binary.LittleEndian
	for k, f := range i.Transform {
		le.PutUint32(b[k*4:], math.Float32bits(f))
	}
	le.PutUint32(b[48:], i.CustomIdx&0xffffff|uint32(i.Mask)<<24)
	le.PutUint32(b[52:], i.SBTOffset&0xffffff|uint32(i.Flags)<<24)
	le.PutUint64(b[56:], i.BLASAddress)
}

// PackInstances lays out instances contiguously.
func PackInstances(instances []ASInstance) []byte {
	b := make([]byte, len(instances)*ASInstanceSize)
	for k := range instances {
		instances[k].Put(b[k*ASInstanceSize:])
	}
	return b
}
