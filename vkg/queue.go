package vkg

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

type QueueFamilySlice []*QueueFamily

func (ql QueueFamilySlice) Filter(f func(q *QueueFamily) bool) QueueFamilySlice {
	ret := make([]*QueueFamily, 0)
	for _, q := range ql {
		if f(q) {
			ret = append(ret, q)
		}
	}
	return ret
}

func (ql QueueFamilySlice) FilterCompute() QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.IsCompute()
	})
}

// FilterAsyncCompute returns the compute families without graphics.
func (ql QueueFamilySlice) FilterAsyncCompute() QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.IsCompute() && !q.IsGraphics()
	})
}

func (ql QueueFamilySlice) FilterPresent(surface vk.Surface) QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.SupportsPresent(surface)
	})
}

func (ql QueueFamilySlice) FilterGraphicsAndPresent(surface vk.Surface) QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.IsGraphics() && q.SupportsPresent(surface)
	})
}

func (ql QueueFamilySlice) FilterGraphics() QueueFamilySlice {
	return ql.Filter(func(q *QueueFamily) bool {
		return q.IsGraphics()
	})
}

type QueueFamily struct {
	Index                   int
	PhysicalDevice          *PhysicalDevice
	VKQueueFamilyProperties vk.QueueFamilyProperties
}

func (q *QueueFamily) has(bit vk.QueueFlagBits) bool {
	return q.VKQueueFamilyProperties.QueueFlags&vk.QueueFlags(bit) == vk.QueueFlags(bit)
}

func (q *QueueFamily) IsCompute() bool  { return q.has(vk.QueueComputeBit) }
func (q *QueueFamily) IsGraphics() bool { return q.has(vk.QueueGraphicsBit) }
func (q *QueueFamily) IsTransfer() bool { return q.has(vk.QueueTransferBit) }

func (q *QueueFamily) SupportsPresent(surface vk.Surface) bool {
	if surface == vk.NullSurface {
		return false
	}
	var supportsPresent vk.Bool32
	vk.GetPhysicalDeviceSurfaceSupport(q.PhysicalDevice.VKPhysicalDevice, uint32(q.Index), surface, &supportsPresent)
	return supportsPresent == vk.True
}

func (q *QueueFamily) String() string {
	return fmt.Sprintf("{ Index: %d Compute: %v Graphics: %v Transfer: %v }", q.Index, q.IsCompute(), q.IsGraphics(), q.IsTransfer())
}

type Queue struct {
	Device      *Device
	QueueFamily *QueueFamily
	VKQueue     vk.Queue
}

func (q *Queue) WaitIdle() error {
	return vk.Error(vk.QueueWaitIdle(q.VKQueue))
}

// Submission describes one vkQueueSubmit batch.
type Submission struct {
	Buffers    []*CommandBuffer
	Wait       []vk.Semaphore
	WaitStages []vk.PipelineStageFlags
	Signal     []vk.Semaphore
}

// Submit submits s, signalling fence when it is not nil.
func (q *Queue) Submit(fence *Fence, s Submission) error {
	b := make([]vk.CommandBuffer, len(s.Buffers))
	for i := range s.Buffers {
		b[i] = s.Buffers[i].VKCommandBuffer
	}

	var submitInfo = vk.SubmitInfo{}
	submitInfo.SType = vk.StructureTypeSubmitInfo
	submitInfo.CommandBufferCount = uint32(len(b))
	submitInfo.PCommandBuffers = b
	submitInfo.WaitSemaphoreCount = uint32(len(s.Wait))
	submitInfo.PWaitSemaphores = s.Wait
	submitInfo.PWaitDstStageMask = s.WaitStages
	submitInfo.SignalSemaphoreCount = uint32(len(s.Signal))
	submitInfo.PSignalSemaphores = s.Signal

	vkFence := vk.NullFence
	if fence != nil {
		vkFence = fence.VKFence
	}
	return vk.Error(vk.QueueSubmit(q.VKQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence))
}

// SubmitWithFence submits the buffers without semaphores.
func (q *Queue) SubmitWithFence(fence *Fence, buffers ...*CommandBuffer) error {
	return q.Submit(fence, Submission{Buffers: buffers})
}

func (q *Queue) String() string {
	return fmt.Sprintf("{Device: %s QueueFamily: %s}", q.Device.String(), q.QueueFamily.String())
}
