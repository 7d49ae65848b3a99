package vkg

import (
	"fmt"
	"sort"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DescriptorSetLayout describes the layout of a descriptor set
type DescriptorSetLayout struct {
	Device                        *Device
	Name                          string
	VKDescriptorSetLayout         vk.DescriptorSetLayout
	VKDescriptorSetLayoutBindings []vk.DescriptorSetLayoutBinding
}

func (d *DescriptorSetLayout) Destroy() {
	vk.DestroyDescriptorSetLayout(d.Device.VKDevice, d.VKDescriptorSetLayout, nil)
}

// DescriptorLayoutBuilder collects bindings for a DescriptorSetLayout.
type DescriptorLayoutBuilder struct {
	device   *Device
	name     string
	bindings []vk.DescriptorSetLayoutBinding
	flags    []uint32
}

func (c *Context) NewDescriptorLayout() *DescriptorLayoutBuilder {
	return c.Device.NewDescriptorLayout()
}

func (d *Device) NewDescriptorLayout() *DescriptorLayoutBuilder {
	return &DescriptorLayoutBuilder{device: d}
}

// Binding adds count descriptors of type t at binding, visible to stages.
func (b *DescriptorLayoutBuilder) Binding(binding uint32, t vk.DescriptorType, count uint32, stages vk.ShaderStageFlagBits) *DescriptorLayoutBuilder {
	b.bindings = append(b.bindings, vk.DescriptorSetLayoutBinding{
		Binding:         binding,
		DescriptorType:  t,
		DescriptorCount: count,
		StageFlags:      vk.ShaderStageFlags(stages),
	})
	b.flags = append(b.flags, 0)
	return b
}

// Flags sets the binding flags of the most recently added binding.
func (b *DescriptorLayoutBuilder) Flags(flags uint32) *DescriptorLayoutBuilder {
	if len(b.flags) > 0 {
		b.flags[len(b.flags)-1] = flags
	}
	return b
}

func (b *DescriptorLayoutBuilder) Name(name string) *DescriptorLayoutBuilder {
	b.name = name
	return b
}

func (b *DescriptorLayoutBuilder) updateAfterBind() bool {
	for _, f := range b.flags {
		if f&BindingUpdateAfterBind != 0 {
			return true
		}
	}
	return false
}

func (b *DescriptorLayoutBuilder) hasFlags() bool {
	for _, f := range b.flags {
		if f != 0 {
			return true
		}
	}
	return false
}

// Create creates the layout. Layouts with an update-after-bind binding
// are created for the update-after-bind pool.
func (b *DescriptorLayoutBuilder) Create() (*DescriptorSetLayout, error) {
	var descriptorSetLayoutCreateInfo = vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(b.bindings)),
		PBindings:    b.bindings,
	}
	if b.updateAfterBind() {
		descriptorSetLayoutCreateInfo.Flags = vk.DescriptorSetLayoutCreateFlags(LayoutUpdateAfterBind)
	}
	if b.hasFlags() {
		flags := newBindingFlags(b.flags)
		defer freeC(flags)
		descriptorSetLayoutCreateInfo.PNext = flags
	}

	var descriptorSetLayout vk.DescriptorSetLayout
	err := vk.Error(vk.CreateDescriptorSetLayout(b.device.VKDevice, &descriptorSetLayoutCreateInfo, nil, &descriptorSetLayout))
	if err != nil {
		return nil, fmt.Errorf("descriptor layout %s: %w", b.name, err)
	}
	b.device.SetObjectName(ObjectDescriptorSetLayout, unsafe.Pointer(descriptorSetLayout), b.name)

	return &DescriptorSetLayout{
		Device:                        b.device,
		Name:                          b.name,
		VKDescriptorSetLayout:         descriptorSetLayout,
		VKDescriptorSetLayoutBindings: b.bindings,
	}, nil
}

// DescriptorPool is essentially a resource manager for descriptor pools provided by Vulkan.
type DescriptorPool struct {
	Device               *Device
	VKDescriptorPool     vk.DescriptorPool
	VKDescriptorPoolSize []vk.DescriptorPoolSize
}

// AddPoolSize informs the descriptor pool how many of a certain descriptortype it will contain
func (d *DescriptorPool) AddPoolSize(dtype vk.DescriptorType, count int) *DescriptorPool {
	d.VKDescriptorPoolSize = append(d.VKDescriptorPoolSize, vk.DescriptorPoolSize{
		Type:            dtype,
		DescriptorCount: uint32(count),
	})
	return d
}

// CreateDescriptorPool creates a pool from which sets may be freed
// individually and which accepts update-after-bind layouts.
func (d *Device) CreateDescriptorPool(pool *DescriptorPool, maxSets int) (*DescriptorPool, error) {
	var descriptorPoolCreateInfo = vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(maxSets),
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit | DescriptorPoolUpdateAfterBind),
		PoolSizeCount: uint32(len(pool.VKDescriptorPoolSize)),
		PPoolSizes:    pool.VKDescriptorPoolSize,
	}

	var descriptorPool vk.DescriptorPool
	err := vk.Error(vk.CreateDescriptorPool(d.VKDevice, &descriptorPoolCreateInfo, nil, &descriptorPool))
	if err != nil {
		return nil, err
	}

	pool.Device = d
	pool.VKDescriptorPool = descriptorPool
	return pool, nil
}

// Allocate allocates one descriptor set per layout.
func (d *DescriptorPool) Allocate(layouts ...*DescriptorSetLayout) ([]*DescriptorSet, error) {
	descriptorSetAllocateInfo := vk.DescriptorSetAllocateInfo{}
	descriptorSetAllocateInfo.SType = vk.StructureTypeDescriptorSetAllocateInfo
	descriptorSetAllocateInfo.DescriptorPool = d.VKDescriptorPool
	descriptorSetAllocateInfo.DescriptorSetCount = uint32(len(layouts))

	dsl := make([]vk.DescriptorSetLayout, len(layouts))
	for i, ds := range layouts {
		dsl[i] = ds.VKDescriptorSetLayout
	}
	descriptorSetAllocateInfo.PSetLayouts = dsl

	sets := make([]vk.DescriptorSet, len(layouts))
	err := vk.Error(vk.AllocateDescriptorSets(d.Device.VKDevice, &descriptorSetAllocateInfo, &sets[0]))
	if err != nil {
		return nil, err
	}

	ret := make([]*DescriptorSet, len(sets))
	for i := range sets {
		ret[i] = &DescriptorSet{Device: d.Device, DescriptorPool: d, VKDescriptorSet: sets[i]}
		d.Device.SetObjectName(ObjectDescriptorSet, unsafe.Pointer(sets[i]), layouts[i].Name)
	}
	return ret, nil
}

func (d *DescriptorPool) Free(ds *DescriptorSet) error {
	descriptorSet := ds.VKDescriptorSet
	return vk.Error(vk.FreeDescriptorSets(d.Device.VKDevice, d.VKDescriptorPool, 1, &descriptorSet))
}

func (d *DescriptorPool) Destroy() {
	vk.DestroyDescriptorPool(d.Device.VKDevice, d.VKDescriptorPool, nil)
}

// AllocateDescriptorSets allocates one set per layout from the context pool.
func (c *Context) AllocateDescriptorSets(layouts ...*DescriptorSetLayout) ([]*DescriptorSet, error) {
	if len(layouts) == 0 {
		return nil, nil
	}
	sets, err := c.DescriptorPool.Allocate(layouts...)
	if err != nil {
		return nil, fmt.Errorf("allocate %d descriptor sets: %w", len(layouts), err)
	}
	return sets, nil
}

// DescriptorSet is a binding of resources to a descriptor, per a specific DescriptorSetLayout
type DescriptorSet struct {
	Device          *Device
	DescriptorPool  *DescriptorPool
	VKDescriptorSet vk.DescriptorSet
}

type descriptorWrite struct {
	binding uint32
	element uint32
	dtype   vk.DescriptorType
	buffers []vk.DescriptorBufferInfo
	images  []vk.DescriptorImageInfo
	as      unsafe.Pointer
}

// DescriptorWriter accumulates descriptor writes. Writing a binding and
// array element that was already written replaces the earlier write, so a
// writer may be refilled and reapplied every frame with the same result.
type DescriptorWriter struct {
	writes map[[2]uint32]*descriptorWrite
}

func NewDescriptorWriter() *DescriptorWriter {
	return &DescriptorWriter{writes: make(map[[2]uint32]*descriptorWrite)}
}

func (w *DescriptorWriter) put(dw *descriptorWrite) *DescriptorWriter {
	w.writes[[2]uint32{dw.binding, dw.element}] = dw
	return w
}

// Buffer writes a single buffer descriptor at binding.
func (w *DescriptorWriter) Buffer(binding uint32, dtype vk.DescriptorType, info vk.DescriptorBufferInfo) *DescriptorWriter {
	return w.put(&descriptorWrite{binding: binding, dtype: dtype, buffers: []vk.DescriptorBufferInfo{info}})
}

// Image writes a single image descriptor at binding.
func (w *DescriptorWriter) Image(binding uint32, dtype vk.DescriptorType, info vk.DescriptorImageInfo) *DescriptorWriter {
	return w.put(&descriptorWrite{binding: binding, dtype: dtype, images: []vk.DescriptorImageInfo{info}})
}

// Images writes consecutive array elements of binding starting at first.
func (w *DescriptorWriter) Images(binding, first uint32, dtype vk.DescriptorType, infos []vk.DescriptorImageInfo) *DescriptorWriter {
	if len(infos) == 0 {
		return w
	}
	return w.put(&descriptorWrite{binding: binding, element: first, dtype: dtype, images: infos})
}

func (w *DescriptorWriter) AccelerationStructure(binding uint32, as *AccelerationStructure) *DescriptorWriter {
	return w.put(&descriptorWrite{binding: binding, dtype: DescriptorTypeAS, as: as.handle})
}

func (w *DescriptorWriter) Len() int {
	return len(w.writes)
}

func (w *DescriptorWriter) sorted() []*descriptorWrite {
	ret := make([]*descriptorWrite, 0, len(w.writes))
	for _, dw := range w.writes {
		ret = append(ret, dw)
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].binding != ret[j].binding {
			return ret[i].binding < ret[j].binding
		}
		return ret[i].element < ret[j].element
	})
	return ret
}

// Writes returns the pending writes ordered by binding and array element,
// without destination set. Acceleration structure writes carry no pNext
// until Update.
func (w *DescriptorWriter) Writes() []vk.WriteDescriptorSet {
	sorted := w.sorted()
	ret := make([]vk.WriteDescriptorSet, len(sorted))
	for i, dw := range sorted {
		var writeDescriptorSet = vk.WriteDescriptorSet{}
		writeDescriptorSet.SType = vk.StructureTypeWriteDescriptorSet
		writeDescriptorSet.DstBinding = dw.binding
		writeDescriptorSet.DstArrayElement = dw.element
		writeDescriptorSet.DescriptorType = dw.dtype
		switch {
		case dw.buffers != nil:
			writeDescriptorSet.DescriptorCount = uint32(len(dw.buffers))
			writeDescriptorSet.PBufferInfo = dw.buffers
		case dw.images != nil:
			writeDescriptorSet.DescriptorCount = uint32(len(dw.images))
			writeDescriptorSet.PImageInfo = dw.images
		default:
			writeDescriptorSet.DescriptorCount = 1
		}
		ret[i] = writeDescriptorSet
	}
	return ret
}

// Update applies every pending write to set.
func (w *DescriptorWriter) Update(set *DescriptorSet) {
	sorted := w.sorted()
	writes := w.Writes()
	for i := range writes {
		writes[i].DstSet = set.VKDescriptorSet
		if sorted[i].as != nil {
			p := newASWrite(sorted[i].as)
			defer freeC(p)
			writes[i].PNext = p
		}
	}
	if len(writes) == 0 {
		return
	}
	vk.UpdateDescriptorSets(set.Device.VKDevice, uint32(len(writes)), writes, 0, nil)
}
