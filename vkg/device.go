package vkg

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	units "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
)

type Device struct {
	PhysicalDevice *PhysicalDevice
	VKDevice       vk.Device

	allocated int64
}

func (d *Device) Destroy() {
	vk.DestroyDevice(d.VKDevice, nil)
}

func (d *Device) String() string {
	return fmt.Sprintf("{ PhysicalDevice: %s }", d.PhysicalDevice)
}

func (d *Device) WaitIdle() error {
	return vk.Error(vk.DeviceWaitIdle(d.VKDevice))
}

func (d *Device) GetQueue(qf *QueueFamily) *Queue {
	var vkq vk.Queue
	vk.GetDeviceQueue(d.VKDevice, uint32(qf.Index), 0, &vkq)
	return &Queue{Device: d, QueueFamily: qf, VKQueue: vkq}
}

// SetObjectName labels handle for validation messages and debuggers. It
// is a no-op without VK_EXT_debug_utils.
func (d *Device) SetObjectName(t ObjectType, handle unsafe.Pointer, name string) {
	setObjectName(d.VKDevice, t, handle, name)
}

// Allocated returns the bytes of device memory currently allocated
// through Allocate.
func (d *Device) Allocated() uint64 {
	return uint64(atomic.LoadInt64(&d.allocated))
}

// Allocate allocates memory of the first type in memoryTypeBits with the
// given properties. Memory backing device-address buffers must be
// allocated with address set.
func (d *Device) Allocate(size uint64, memoryTypeBits uint32, properties vk.MemoryPropertyFlagBits, address bool) (*DeviceMemory, error) {
	var allocateInfo = vk.MemoryAllocateInfo{}
	allocateInfo.SType = vk.StructureTypeMemoryAllocateInfo
	allocateInfo.AllocationSize = vk.DeviceSize(size)
	if address {
		allocateInfo.PNext = addressAllocInfo()
	}

	var err error
	allocateInfo.MemoryTypeIndex, err = d.PhysicalDevice.FindMemoryType(memoryTypeBits, properties)
	if err != nil {
		return nil, err
	}

	var deviceMemory vk.DeviceMemory
	err = vk.Error(vk.AllocateMemory(d.VKDevice, &allocateInfo, nil, &deviceMemory))
	if err != nil {
		return nil, fmt.Errorf("allocate %s: %w", units.BytesSize(float64(size)), err)
	}
	total := atomic.AddInt64(&d.allocated, int64(size))
	logger.Debugf("allocated %s (total %s)", units.BytesSize(float64(size)), units.BytesSize(float64(total)))

	return &DeviceMemory{Device: d, VKDeviceMemory: deviceMemory, Size: size}, nil
}

// DeviceMemory maps to Vulkan DeviceMemory and can either be memory on the host or on the device
type DeviceMemory struct {
	Device         *Device
	VKDeviceMemory vk.DeviceMemory
	Size           uint64
	MapCount       int32
	Ptr            unsafe.Pointer
}

// IsMapped returns true if the device memory is currently mapped
func (m *DeviceMemory) IsMapped() bool {
	return atomic.LoadInt32(&m.MapCount) > 0
}

func (m *DeviceMemory) Destroy() {
	vk.FreeMemory(m.Device.VKDevice, m.VKDeviceMemory, nil)
	atomic.AddInt64(&m.Device.allocated, -int64(m.Size))
}

// Map will map the entirety of this memory
func (m *DeviceMemory) Map() (unsafe.Pointer, error) {
	var res unsafe.Pointer
	err := vk.Error(vk.MapMemory(m.Device.VKDevice, m.VKDeviceMemory, 0, vk.DeviceSize(m.Size), 0, &res))
	if err != nil {
		return nil, err
	}
	atomic.AddInt32(&m.MapCount, 1)
	m.Ptr = res
	return res, nil
}

// Unmap this memory
func (m *DeviceMemory) Unmap() {
	m.Ptr = nil
	vk.UnmapMemory(m.Device.VKDevice, m.VKDeviceMemory)
	atomic.AddInt32(&m.MapCount, -1)
}

// MapCopyUnmap will map this memory, copy data to offset and unmap
func (m *DeviceMemory) MapCopyUnmap(data []byte, offset uint64) error {
	if offset+uint64(len(data)) > m.Size {
		return fmt.Errorf("copy of %d bytes at %d overflows %d", len(data), offset, m.Size)
	}
	pm, err := m.Map()
	if err != nil {
		return err
	}
	copy(ToBytes(pm, int(m.Size))[offset:], data)
	m.Unmap()
	return nil
}

// ToBytes will take an unsafe.Pointer and length in bytes and convert it
// to a byte slice
func ToBytes(ptr unsafe.Pointer, lenInBytes int) []byte {
	const m = 0x7fffffff
	return (*[m]byte)(ptr)[:lenInBytes:lenInBytes]
}

// SliceBytes views the backing array of s as bytes. T must be a plain
// record without pointers.
func SliceBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// ValueBytes views *v as bytes.
func ValueBytes[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), int(unsafe.Sizeof(*v)))
}

var end = "\x00"
var endChar byte = '\x00'

func safeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func safeStrings(list []string) []string {
	for i := range list {
		list[i] = safeString(list[i])
	}
	return list
}
