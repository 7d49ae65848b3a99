package vkg

import (
	vk "github.com/vulkan-go/vulkan"
)

type Fence struct {
	Device  *Device
	VKFence vk.Fence
}

func (d *Device) CreateFence(signaled bool) (*Fence, error) {
	var fenceCreateInfo = vk.FenceCreateInfo{}
	fenceCreateInfo.SType = vk.StructureTypeFenceCreateInfo
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	err := vk.Error(vk.CreateFence(d.VKDevice, &fenceCreateInfo, nil, &fence))
	if err != nil {
		return nil, err
	}
	return &Fence{Device: d, VKFence: fence}, nil
}

// Wait blocks until the fence is signalled.
func (f *Fence) Wait() error {
	return vk.Error(vk.WaitForFences(f.Device.VKDevice, 1, []vk.Fence{f.VKFence}, vk.True, vk.MaxUint64))
}

func (f *Fence) Reset() error {
	return vk.Error(vk.ResetFences(f.Device.VKDevice, 1, []vk.Fence{f.VKFence}))
}

// Signaled polls the fence without blocking.
func (f *Fence) Signaled() bool {
	return vk.GetFenceStatus(f.Device.VKDevice, f.VKFence) == vk.Success
}

func (f *Fence) Destroy() {
	vk.DestroyFence(f.Device.VKDevice, f.VKFence, nil)
}

type Semaphore struct {
	Device      *Device
	VKSemaphore vk.Semaphore
}

func (d *Device) CreateSemaphore() (*Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sema vk.Semaphore
	err := vk.Error(vk.CreateSemaphore(d.VKDevice, &semaphoreCreateInfo, nil, &sema))
	if err != nil {
		return nil, err
	}
	return &Semaphore{Device: d, VKSemaphore: sema}, nil
}

func (s *Semaphore) Destroy() {
	vk.DestroySemaphore(s.Device.VKDevice, s.VKSemaphore, nil)
}
