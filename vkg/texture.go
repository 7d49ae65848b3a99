package vkg

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/internal/imath"
)

// Texture is an image with its own allocation, a default view over every
// mip and layer, and the layout it was last transitioned to.
type Texture struct {
	Device    *Device
	Name      string
	VKImage   vk.Image
	Memory    *DeviceMemory
	Format    vk.Format
	Extent    vk.Extent2D
	MipLevels uint32
	Layers    uint32
	Aspect    vk.ImageAspectFlags
	Layout    vk.ImageLayout
	View      *ImageView

	cube bool
}

type TextureOptions struct {
	Name   string
	Width  uint32
	Height uint32
	// Layers defaults to 1, 6 for cube maps.
	Layers uint32
	Format vk.Format
	Usage  vk.ImageUsageFlagBits
	// Mipmapped allocates floor(log2(max(w, h))) + 1 levels.
	Mipmapped bool
}

// MipCount is the number of levels a texture created from o has.
func (o TextureOptions) MipCount() uint32 {
	if !o.Mipmapped {
		return 1
	}
	return imath.MipLevels(o.Width, o.Height)
}

type ImageView struct {
	Device      *Device
	VKImageView vk.ImageView
}

func (i *ImageView) Destroy() {
	vk.DestroyImageView(i.Device.VKDevice, i.VKImageView, nil)
}

// ViewOptions selects a subresource range of a texture. Zero counts mean
// all remaining levels or layers.
type ViewOptions struct {
	Type      vk.ImageViewType
	BaseMip   uint32
	MipCount  uint32
	BaseLayer uint32
	Layers    uint32
}

func isDepth(f vk.Format) bool {
	switch f {
	case vk.FormatD32Sfloat, vk.FormatD16Unorm, vk.FormatX8D24UnormPack32:
		return true
	}
	return false
}

func (c *Context) CreateTexture2D(opts TextureOptions) (*Texture, error) {
	opts.Layers = 1
	return c.Device.createTexture(opts, vk.ImageViewType2d, false)
}

func (c *Context) CreateTexture2DArray(opts TextureOptions) (*Texture, error) {
	if opts.Layers == 0 {
		opts.Layers = 1
	}
	return c.Device.createTexture(opts, vk.ImageViewType2dArray, false)
}

func (c *Context) CreateTextureCube(opts TextureOptions) (*Texture, error) {
	opts.Layers = 6
	return c.Device.createTexture(opts, vk.ImageViewTypeCube, true)
}

func (d *Device) createTexture(opts TextureOptions, viewType vk.ImageViewType, cube bool) (*Texture, error) {
	if opts.Width == 0 || opts.Height == 0 {
		return nil, fmt.Errorf("texture %s: empty extent %dx%d", opts.Name, opts.Width, opts.Height)
	}
	mips := opts.MipCount()
	if opts.Mipmapped {
		opts.Usage |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	}

	var imageInfo = vk.ImageCreateInfo{}
	imageInfo.SType = vk.StructureTypeImageCreateInfo
	imageInfo.ImageType = vk.ImageType2d
	imageInfo.Extent.Width = opts.Width
	imageInfo.Extent.Height = opts.Height
	imageInfo.Extent.Depth = 1
	imageInfo.MipLevels = mips
	imageInfo.ArrayLayers = opts.Layers
	imageInfo.Format = opts.Format
	imageInfo.Tiling = vk.ImageTilingOptimal
	imageInfo.InitialLayout = vk.ImageLayoutUndefined
	imageInfo.Usage = vk.ImageUsageFlags(opts.Usage)
	imageInfo.Samples = vk.SampleCount1Bit
	imageInfo.SharingMode = vk.SharingModeExclusive
	if cube {
		imageInfo.Flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	var image vk.Image
	err := vk.Error(vk.CreateImage(d.VKDevice, &imageInfo, nil, &image))
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", opts.Name, err)
	}

	t := &Texture{
		Device:    d,
		Name:      opts.Name,
		VKImage:   image,
		Format:    opts.Format,
		Extent:    vk.Extent2D{Width: opts.Width, Height: opts.Height},
		MipLevels: mips,
		Layers:    opts.Layers,
		Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
		Layout:    vk.ImageLayoutUndefined,
		cube:      cube,
	}
	if isDepth(opts.Format) {
		t.Aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}

	var mr vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.VKDevice, image, &mr)
	mr.Deref()

	t.Memory, err = d.Allocate(uint64(mr.Size), mr.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit, false)
	if err != nil {
		vk.DestroyImage(d.VKDevice, image, nil)
		return nil, fmt.Errorf("texture %s: %w", opts.Name, err)
	}
	err = vk.Error(vk.BindImageMemory(d.VKDevice, image, t.Memory.VKDeviceMemory, 0))
	if err != nil {
		t.Destroy()
		return nil, fmt.Errorf("texture %s: bind: %w", opts.Name, err)
	}

	t.View, err = d.CreateTextureView(t, ViewOptions{Type: viewType})
	if err != nil {
		t.Destroy()
		return nil, err
	}
	d.SetObjectName(ObjectImage, unsafe.Pointer(image), opts.Name)
	return t, nil
}

// CreateTextureView creates an additional view of t, for example a single
// mip level for storage writes.
func (c *Context) CreateTextureView(t *Texture, opts ViewOptions) (*ImageView, error) {
	return c.Device.CreateTextureView(t, opts)
}

func (d *Device) CreateTextureView(t *Texture, opts ViewOptions) (*ImageView, error) {
	mips := opts.MipCount
	if mips == 0 {
		mips = t.MipLevels - opts.BaseMip
	}
	layers := opts.Layers
	if layers == 0 {
		layers = t.Layers - opts.BaseLayer
	}
	viewType := opts.Type
	if viewType == vk.ImageViewType2d && layers > 1 {
		viewType = vk.ImageViewType2dArray
	}

	createInfo := &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.VKImage,
		ViewType: viewType,
		Format:   t.Format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.Aspect,
			BaseMipLevel:   opts.BaseMip,
			LevelCount:     mips,
			BaseArrayLayer: opts.BaseLayer,
			LayerCount:     layers,
		},
	}

	var view vk.ImageView
	err := vk.Error(vk.CreateImageView(d.VKDevice, createInfo, nil, &view))
	if err != nil {
		return nil, fmt.Errorf("texture %s: view: %w", t.Name, err)
	}
	d.SetObjectName(ObjectImageView, unsafe.Pointer(view), t.Name)
	return &ImageView{Device: d, VKImageView: view}, nil
}

// Barrier returns a transition of every subresource from the tracked
// layout to layout. The tracked layout is not updated.
func (t *Texture) Barrier(layout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlagBits) vk.ImageMemoryBarrier {
	var barrier = vk.ImageMemoryBarrier{}
	barrier.SType = vk.StructureTypeImageMemoryBarrier
	barrier.OldLayout = t.Layout
	barrier.NewLayout = layout
	barrier.SrcAccessMask = vk.AccessFlags(srcAccess)
	barrier.DstAccessMask = vk.AccessFlags(dstAccess)
	barrier.SrcQueueFamilyIndex = vk.QueueFamilyIgnored
	barrier.DstQueueFamilyIndex = vk.QueueFamilyIgnored
	barrier.Image = t.VKImage
	barrier.SubresourceRange.AspectMask = t.Aspect
	barrier.SubresourceRange.BaseMipLevel = 0
	barrier.SubresourceRange.LevelCount = t.MipLevels
	barrier.SubresourceRange.BaseArrayLayer = 0
	barrier.SubresourceRange.LayerCount = t.Layers
	return barrier
}

// Info describes the default view in layout for descriptor writes.
func (t *Texture) Info(layout vk.ImageLayout, sampler *Sampler) vk.DescriptorImageInfo {
	info := vk.DescriptorImageInfo{
		ImageView:   t.View.VKImageView,
		ImageLayout: layout,
	}
	if sampler != nil {
		info.Sampler = sampler.VKSampler
	}
	return info
}

func (t *Texture) Destroy() {
	if t.View != nil {
		t.View.Destroy()
	}
	vk.DestroyImage(t.Device.VKDevice, t.VKImage, nil)
	if t.Memory != nil {
		t.Memory.Destroy()
	}
}

type Sampler struct {
	Device    *Device
	VKSampler vk.Sampler
}

// CreateSampler creates a sampler with the given filter for both
// minification and magnification and every mip level.
func (d *Device) CreateSampler(name string, filter vk.Filter, mode vk.SamplerAddressMode) (*Sampler, error) {
	mipmap := vk.SamplerMipmapModeLinear
	if filter == vk.FilterNearest {
		mipmap = vk.SamplerMipmapModeNearest
	}
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		AddressModeU:            mode,
		AddressModeV:            mode,
		AddressModeW:            mode,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              mipmap,
		MipLodBias:              0,
		MinLod:                  0,
		MaxLod:                  vk.LodClampNone,
	}
	var sampler vk.Sampler
	err := vk.Error(vk.CreateSampler(d.VKDevice, &samplerInfo, nil, &sampler))
	if err != nil {
		return nil, fmt.Errorf("sampler %s: %w", name, err)
	}
	d.SetObjectName(ObjectSampler, unsafe.Pointer(sampler), name)
	return &Sampler{Device: d, VKSampler: sampler}, nil
}

func (s *Sampler) Destroy() {
	vk.DestroySampler(s.Device.VKDevice, s.VKSampler, nil)
}
