package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// Capabilities are the device features and limits the renderer branches on.
type Capabilities struct {
	BufferDeviceAddress   bool
	AccelerationStructure bool
	RayQuery              bool
	// Float16 is set when shaders may use 16-bit floats in arithmetic and
	// storage buffers.
	Float16            bool
	DescriptorIndexing bool
	SubgroupSize       uint32

	MinUniformAlignment uint64
	// TimestampPeriod is the number of nanoseconds per timestamp tick.
	TimestampPeriod float32
}

// RayTracing reports whether inline ray queries can be used.
func (c Capabilities) RayTracing() bool {
	return c.BufferDeviceAddress && c.AccelerationStructure && c.RayQuery
}

type VKPresentModes []vk.PresentMode

func (v VKPresentModes) Filter(f vk.PresentMode) VKPresentModes {
	ret := make(VKPresentModes, 0)
	for _, s := range v {
		if f == s {
			ret = append(ret, s)
		}
	}
	return ret
}

type VKSurfaceFormats []vk.SurfaceFormat

func (v VKSurfaceFormats) Filter(f func(f vk.SurfaceFormat) bool) VKSurfaceFormats {
	ret := make(VKSurfaceFormats, 0)
	for _, s := range v {
		s.Deref()
		if f(s) {
			ret = append(ret, s)
		}
	}
	return ret
}

type PhysicalDevice struct {
	DeviceName                 string
	Instance                   *Instance
	VKPhysicalDevice           vk.PhysicalDevice
	VKPhysicalDeviceProperties vk.PhysicalDeviceProperties
	Caps                       Capabilities
}

func (p *PhysicalDevice) queryCapabilities() Capabilities {
	var caps Capabilities
	if !queryCapabilities(p.Instance.VKInstance, p.VKPhysicalDevice, &caps) {
		logger.Warningf("%s: extended features unavailable", p.DeviceName)
	}
	limits := p.VKPhysicalDeviceProperties.Limits
	caps.MinUniformAlignment = uint64(limits.MinUniformBufferOffsetAlignment)
	caps.TimestampPeriod = limits.TimestampPeriod
	return caps
}

// IsDiscrete reports whether this is a discrete GPU.
func (p *PhysicalDevice) IsDiscrete() bool {
	return p.VKPhysicalDeviceProperties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu
}

func (p *PhysicalDevice) GetSurfacePresentModes(surface vk.Surface) (VKPresentModes, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.PresentMode, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfacePresentModes(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *PhysicalDevice) GetSurfaceFormats(surface vk.Surface) (VKSurfaceFormats, error) {
	var count uint32
	err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, nil))
	if err != nil {
		return nil, err
	}

	f := make([]vk.SurfaceFormat, count)
	err = vk.Error(vk.GetPhysicalDeviceSurfaceFormats(p.VKPhysicalDevice, surface, &count, f))
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (p *PhysicalDevice) GetSurfaceCapabilities(surface vk.Surface) (*vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	err := vk.Error(vk.GetPhysicalDeviceSurfaceCapabilities(p.VKPhysicalDevice, surface, &caps))
	if err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return &caps, nil
}

func (p *PhysicalDevice) String() string {
	return p.DeviceName
}

func (p *PhysicalDevice) QueueFamilies() (QueueFamilySlice, error) {
	var queueFamilyCount uint32

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, nil)

	if queueFamilyCount == 0 {
		return nil, nil
	}

	queues := make([]vk.QueueFamilyProperties, queueFamilyCount)

	vk.GetPhysicalDeviceQueueFamilyProperties(p.VKPhysicalDevice, &queueFamilyCount, queues)

	ret := make([]*QueueFamily, queueFamilyCount)
	for i, queue := range queues {
		ret[i] = &QueueFamily{Index: i, PhysicalDevice: p, VKQueueFamilyProperties: queue}
		ret[i].VKQueueFamilyProperties.Deref()
	}
	return ret, nil
}

// CreateLogicalDevice creates a device with one queue from each family,
// the given extensions, every core feature the device supports and the
// Vulkan 1.2 and ray query features of the renderer.
func (p *PhysicalDevice) CreateLogicalDevice(qfs QueueFamilySlice, extensions []string) (*Device, error) {
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(qfs))
	for j, q := range qfs {
		queueCreateInfos[j] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: uint32(q.Index),
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := p.VKPhysicalDeviceFeatures()
	names := safeStrings(append([]string(nil), extensions...))

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   deviceFeatureChain(p.Caps.Float16),
		QueueCreateInfoCount:    uint32(len(qfs)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(names)),
		PpEnabledExtensionNames: names,
	}

	var ldevice vk.Device
	err := vk.Error(vk.CreateDevice(p.VKPhysicalDevice, &deviceCreateInfo, nil, &ldevice))
	if err != nil {
		return nil, err
	}
	if !loadDeviceExtensions(p.Instance.VKInstance, ldevice) {
		vk.DestroyDevice(ldevice, nil)
		return nil, fmt.Errorf("%s: ray tracing entry points missing", p.DeviceName)
	}

	return &Device{PhysicalDevice: p, VKDevice: ldevice}, nil
}

func (p *PhysicalDevice) VKPhysicalDeviceFeatures() vk.PhysicalDeviceFeatures {
	var deviceFeatures vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(p.VKPhysicalDevice, &deviceFeatures)
	deviceFeatures.Deref()
	return deviceFeatures
}

func (p *PhysicalDevice) VKPhysicalDeviceMemoryProperties() vk.PhysicalDeviceMemoryProperties {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(p.VKPhysicalDevice, &memoryProperties)
	memoryProperties.Deref()
	return memoryProperties
}

// MemoryHeaps returns the size and device-local flag of each memory heap.
func (p *PhysicalDevice) MemoryHeaps() []vk.MemoryHeap {
	mp := p.VKPhysicalDeviceMemoryProperties()
	ret := make([]vk.MemoryHeap, mp.MemoryHeapCount)
	for i := range ret {
		h := mp.MemoryHeaps[i]
		h.Deref()
		ret[i] = h
	}
	return ret
}

func (p *PhysicalDevice) FindMemoryType(memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits) (uint32, error) {
	mp := p.VKPhysicalDeviceMemoryProperties()

	var i uint32
	for i = 0; i < mp.MemoryTypeCount; i++ {
		mt := mp.MemoryTypes[i]
		mt.Deref()
		if memoryTypeBits&(1<<i) != 0 &&
			vk.MemoryPropertyFlagBits(mt.PropertyFlags)&properties == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type matches bits %#x properties %#x", memoryTypeBits, properties)
}

func (p *PhysicalDevice) SupportedExtensions() ([]string, error) {
	var count uint32
	err := vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, nil))
	if err != nil {
		return nil, err
	}

	ext := make([]vk.ExtensionProperties, count)
	err = vk.Error(vk.EnumerateDeviceExtensionProperties(p.VKPhysicalDevice, "", &count, ext))
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ext))
	for i := range ext {
		ext[i].Deref()
		names[i] = vk.ToString(ext[i].ExtensionName[:])
	}
	return names, nil
}

// MissingExtensions returns the names in want the device does not support.
func (p *PhysicalDevice) MissingExtensions(want []string) ([]string, error) {
	have, err := p.SupportedExtensions()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	var missing []string
	for _, w := range want {
		if !set[w] {
			missing = append(missing, w)
		}
	}
	return missing, nil
}
