package vkg

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// ErrOutOfDate is returned by AcquireNextImage and Present when the
// swapchain no longer matches the surface and must be recreated.
var ErrOutOfDate = errors.New("swapchain out of date")

type Swapchain struct {
	Device      *Device
	VKSwapchain vk.Swapchain
	Extent      vk.Extent2D
	Format      vk.Format
	Images      []vk.Image
	Views       []*ImageView
}

// CreateSwapchainOptions configures CreateSwapchain. ActualSize is used
// when the surface does not dictate an extent.
type CreateSwapchainOptions struct {
	OldSwapchain              *Swapchain
	ActualSize                vk.Extent2D
	DesiredNumSwapchainImages int
	// Usage is added to color attachment usage.
	Usage vk.ImageUsageFlagBits
}

func (p *Device) DefaultNumSwapchainImages(surface vk.Surface) (int, error) {
	caps, err := p.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return 0, err
	}
	n := int(caps.MinImageCount) + 1
	if caps.MaxImageCount > 0 && n > int(caps.MaxImageCount) {
		n = int(caps.MaxImageCount)
	}
	return n, nil
}

// CreateSwapchain creates a FIFO (or mailbox when available) swapchain
// over surface in B8G8R8A8_UNORM, with a view per image.
func (p *Device) CreateSwapchain(surface vk.Surface, graphicsQueue, presentQueue *Queue, options CreateSwapchainOptions) (*Swapchain, error) {
	modes, err := p.PhysicalDevice.GetSurfacePresentModes(surface)
	if err != nil {
		return nil, err
	}
	presentMode := vk.PresentModeFifo
	m := modes.Filter(vk.PresentModeMailbox)
	if len(m) > 0 {
		presentMode = m[0]
	}

	formats, err := p.PhysicalDevice.GetSurfaceFormats(surface)
	if err != nil {
		return nil, err
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("swapchain: surface has no formats")
	}
	format := formats[0]
	format.Deref()
	unorm := formats.Filter(func(f vk.SurfaceFormat) bool {
		return f.Format == vk.FormatB8g8r8a8Unorm
	})
	if len(unorm) > 0 {
		format = unorm[0]
	}

	caps, err := p.PhysicalDevice.GetSurfaceCapabilities(surface)
	if err != nil {
		return nil, err
	}

	var swapchainSize vk.Extent2D
	if caps.CurrentExtent.Width == vk.MaxUint32 {
		swapchainSize = options.ActualSize
	} else {
		swapchainSize = caps.CurrentExtent
	}
	if swapchainSize.Width == 0 || swapchainSize.Height == 0 {
		return nil, ErrOutOfDate
	}

	desiredSwapChainImages := options.DesiredNumSwapchainImages
	if desiredSwapChainImages == 0 {
		desiredSwapChainImages, err = p.DefaultNumSwapchainImages(surface)
		if err != nil {
			return nil, err
		}
	}

	createInfo := &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    uint32(desiredSwapChainImages),
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      swapchainSize,
		PresentMode:      presentMode,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | options.Usage),
		ImageArrayLayers: 1,
		Clipped:          vk.True,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		OldSwapchain:     vk.NullSwapchain,
	}
	if options.OldSwapchain != nil {
		createInfo.OldSwapchain = options.OldSwapchain.VKSwapchain
	}

	if graphicsQueue.QueueFamily.Index != presentQueue.QueueFamily.Index {
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{uint32(graphicsQueue.QueueFamily.Index), uint32(presentQueue.QueueFamily.Index)}
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var swapchain vk.Swapchain
	err = vk.Error(vk.CreateSwapchain(p.VKDevice, createInfo, nil, &swapchain))
	if err != nil {
		return nil, fmt.Errorf("swapchain: %w", err)
	}

	ret := &Swapchain{
		Device:      p,
		VKSwapchain: swapchain,
		Extent:      swapchainSize,
		Format:      format.Format,
	}
	if err := ret.createViews(); err != nil {
		ret.Destroy()
		return nil, err
	}
	logger.Infof("swapchain %dx%d, %d images", swapchainSize.Width, swapchainSize.Height, len(ret.Images))
	return ret, nil
}

func (s *Swapchain) createViews() error {
	var imageCount uint32
	err := vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, nil))
	if err != nil {
		return err
	}
	s.Images = make([]vk.Image, imageCount)
	err = vk.Error(vk.GetSwapchainImages(s.Device.VKDevice, s.VKSwapchain, &imageCount, s.Images))
	if err != nil {
		return err
	}

	for i, image := range s.Images {
		createInfo := &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    image,
			ViewType: vk.ImageViewType2d,
			Format:   s.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		var view vk.ImageView
		err := vk.Error(vk.CreateImageView(s.Device.VKDevice, createInfo, nil, &view))
		if err != nil {
			return fmt.Errorf("swapchain view %d: %w", i, err)
		}
		s.Device.SetObjectName(ObjectImage, unsafe.Pointer(image), fmt.Sprintf("swapchain.%d", i))
		s.Views = append(s.Views, &ImageView{Device: s.Device, VKImageView: view})
	}
	return nil
}

// AcquireNextImage blocks until an image is available and signals
// signal once it can be rendered to.
func (s *Swapchain) AcquireNextImage(signal *Semaphore) (uint32, error) {
	var index uint32
	res := vk.AcquireNextImage(s.Device.VKDevice, s.VKSwapchain, vk.MaxUint64, signal.VKSemaphore, vk.NullFence, &index)
	switch res {
	case vk.Success:
		return index, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return index, ErrOutOfDate
	}
	return 0, fmt.Errorf("acquire: %w", vk.Error(res))
}

// Present queues image index for presentation after wait is signalled.
func (s *Swapchain) Present(q *Queue, index uint32, wait *Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{s.VKSwapchain},
		PImageIndices:  []uint32{index},
	}
	if wait != nil {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{wait.VKSemaphore}
	}
	switch res := vk.QueuePresent(q.VKQueue, &presentInfo); res {
	case vk.Success:
		return nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return ErrOutOfDate
	default:
		return fmt.Errorf("present: %w", vk.Error(res))
	}
}

func (s *Swapchain) Destroy() {
	for _, v := range s.Views {
		v.Destroy()
	}
	s.Views = nil
	vk.DestroySwapchain(s.Device.VKDevice, s.VKSwapchain, nil)
}
