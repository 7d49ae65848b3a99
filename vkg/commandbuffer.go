package vkg

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

type CommandPool struct {
	Device        *Device
	QueueFamily   *QueueFamily
	VKCommandPool vk.CommandPool
}

func (d *Device) CreateCommandPool(q *QueueFamily) (*CommandPool, error) {
	var commandPoolCreateInfo = vk.CommandPoolCreateInfo{}
	commandPoolCreateInfo.SType = vk.StructureTypeCommandPoolCreateInfo
	commandPoolCreateInfo.Flags = vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit | vk.CommandPoolCreateTransientBit)
	commandPoolCreateInfo.QueueFamilyIndex = uint32(q.Index)

	var commandPool vk.CommandPool
	err := vk.Error(vk.CreateCommandPool(d.VKDevice, &commandPoolCreateInfo, nil, &commandPool))
	if err != nil {
		return nil, err
	}
	return &CommandPool{Device: d, QueueFamily: q, VKCommandPool: commandPool}, nil
}

func (c *CommandPool) Destroy() {
	vk.DestroyCommandPool(c.Device.VKDevice, c.VKCommandPool, nil)
}

func (c *CommandPool) AllocateBuffers(count int) ([]*CommandBuffer, error) {
	var commandBufferAllocateInfo = vk.CommandBufferAllocateInfo{}
	commandBufferAllocateInfo.SType = vk.StructureTypeCommandBufferAllocateInfo
	commandBufferAllocateInfo.CommandPool = c.VKCommandPool
	commandBufferAllocateInfo.Level = vk.CommandBufferLevelPrimary
	commandBufferAllocateInfo.CommandBufferCount = uint32(count)

	cmdBuffers := make([]vk.CommandBuffer, count)
	err := vk.Error(vk.AllocateCommandBuffers(c.Device.VKDevice, &commandBufferAllocateInfo, cmdBuffers))
	if err != nil {
		return nil, err
	}

	ret := make([]*CommandBuffer, count)
	for i := range ret {
		ret[i] = &CommandBuffer{Pool: c, VKCommandBuffer: cmdBuffers[i]}
	}
	return ret, nil
}

func (c *CommandPool) AllocateBuffer() (*CommandBuffer, error) {
	ret, err := c.AllocateBuffers(1)
	if err != nil {
		return nil, err
	}
	return ret[0], nil
}

func (c *CommandPool) FreeBuffer(b *CommandBuffer) {
	vk.FreeCommandBuffers(c.Device.VKDevice, c.VKCommandPool, 1, []vk.CommandBuffer{b.VKCommandBuffer})
}

// CommandBuffer describes a sequence of commands that will be executed
// upon being sent to a device queue. Commands not wrapped here can be
// recorded on VK() directly.
type CommandBuffer struct {
	Pool            *CommandPool
	VKCommandBuffer vk.CommandBuffer
}

func (c *CommandBuffer) VK() vk.CommandBuffer {
	return c.VKCommandBuffer
}

func (c *CommandBuffer) Reset() error {
	return vk.Error(vk.ResetCommandBuffer(c.VKCommandBuffer, 0))
}

func (c *CommandBuffer) Begin() error {
	var beginInfo = vk.CommandBufferBeginInfo{}
	beginInfo.SType = vk.StructureTypeCommandBufferBeginInfo
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

// BeginOneTime begins a buffer that is submitted once and then freed.
func (c *CommandBuffer) BeginOneTime() error {
	var beginInfo = vk.CommandBufferBeginInfo{}
	beginInfo.SType = vk.StructureTypeCommandBufferBeginInfo
	beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	return vk.Error(vk.BeginCommandBuffer(c.VKCommandBuffer, &beginInfo))
}

func (c *CommandBuffer) End() error {
	return vk.Error(vk.EndCommandBuffer(c.VKCommandBuffer))
}

// PipelineBarrier records buffer and image barriers between two stage masks.
func (c *CommandBuffer) PipelineBarrier(src, dst vk.PipelineStageFlagBits, buffers []vk.BufferMemoryBarrier, images []vk.ImageMemoryBarrier) {
	if len(buffers) == 0 && len(images) == 0 {
		return
	}
	vk.CmdPipelineBarrier(c.VKCommandBuffer, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		0, nil, uint32(len(buffers)), buffers, uint32(len(images)), images)
}

// MemoryBarrier records a global memory barrier.
func (c *CommandBuffer) MemoryBarrier(src, dst vk.PipelineStageFlagBits, srcAccess, dstAccess vk.AccessFlagBits) {
	barrier := vk.MemoryBarrier{
		SType:         vk.StructureTypeMemoryBarrier,
		SrcAccessMask: vk.AccessFlags(srcAccess),
		DstAccessMask: vk.AccessFlags(dstAccess),
	}
	vk.CmdPipelineBarrier(c.VKCommandBuffer, vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst), 0,
		1, []vk.MemoryBarrier{barrier}, 0, nil, 0, nil)
}

// BufferBarrier makes writes to the whole of b visible to dst.
func (c *CommandBuffer) BufferBarrier(b *Buffer, src vk.PipelineStageFlagBits, srcAccess vk.AccessFlagBits, dst vk.PipelineStageFlagBits, dstAccess vk.AccessFlagBits) {
	c.PipelineBarrier(src, dst, []vk.BufferMemoryBarrier{b.Barrier(srcAccess, dstAccess)}, nil)
}

// TransitionImage moves every subresource of t to layout and records the
// new layout on t.
func (c *CommandBuffer) TransitionImage(t *Texture, layout vk.ImageLayout, src vk.PipelineStageFlagBits, srcAccess vk.AccessFlagBits, dst vk.PipelineStageFlagBits, dstAccess vk.AccessFlagBits) {
	barrier := t.Barrier(layout, srcAccess, dstAccess)
	c.PipelineBarrier(src, dst, nil, []vk.ImageMemoryBarrier{barrier})
	t.Layout = layout
}

// SetupTransition is TransitionImage with ALL_COMMANDS on both sides, for
// load-time paths.
func (c *CommandBuffer) SetupTransition(t *Texture, layout vk.ImageLayout) {
	all := vk.AccessFlagBits(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)
	c.TransitionImage(t, layout, vk.PipelineStageAllCommandsBit, all, vk.PipelineStageAllCommandsBit, all)
}

func (c *CommandBuffer) BindPipeline(p *Pipeline) {
	vk.CmdBindPipeline(c.VKCommandBuffer, p.BindPoint, p.VKPipeline)
}

// BindDescriptorSets binds sets starting at firstSet with the bind point
// of p.
func (c *CommandBuffer) BindDescriptorSets(p *Pipeline, firstSet int, descriptorSets ...*DescriptorSet) {
	sets := make([]vk.DescriptorSet, len(descriptorSets))
	for i := range descriptorSets {
		sets[i] = descriptorSets[i].VKDescriptorSet
	}
	vk.CmdBindDescriptorSets(c.VKCommandBuffer, p.BindPoint,
		p.Layout.VKPipelineLayout, uint32(firstSet), uint32(len(sets)), sets, 0, nil)
}

// PushConstants uploads data at offset 0 for the stages of the layout.
func (c *CommandBuffer) PushConstants(p *Pipeline, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(c.VKCommandBuffer, p.Layout.VKPipelineLayout, vk.ShaderStageFlags(p.Layout.PushStages),
		0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	vk.CmdDispatch(c.VKCommandBuffer, x, y, z)
}

// DispatchIndirect reads VkDispatchIndirectCommand from b at offset.
func (c *CommandBuffer) DispatchIndirect(b *Buffer, offset uint64) {
	vk.CmdDispatchIndirect(c.VKCommandBuffer, b.VKBuffer, vk.DeviceSize(offset))
}

func (c *CommandBuffer) CopyBuffer(src, dst *Buffer, size uint64) {
	vk.CmdCopyBuffer(c.VKCommandBuffer, src.VKBuffer, dst.VKBuffer, 1, []vk.BufferCopy{{
		SrcOffset: 0,
		DstOffset: 0,
		Size:      vk.DeviceSize(size),
	}})
}

func (c *CommandBuffer) FillBuffer(b *Buffer, offset, size uint64, value uint32) {
	vk.CmdFillBuffer(c.VKCommandBuffer, b.VKBuffer, vk.DeviceSize(offset), vk.DeviceSize(size), value)
}

// UpdateBuffer writes up to 64KiB of data inline into b at offset.
func (c *CommandBuffer) UpdateBuffer(b *Buffer, offset uint64, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdUpdateBuffer(c.VKCommandBuffer, b.VKBuffer, vk.DeviceSize(offset), vk.DeviceSize(len(data)), (*uint32)(unsafe.Pointer(&data[0])))
}

// ClearTexture discards t, clears every level and layer to color (depth
// formats to color[0]) and leaves it in layout for the given stage and
// access.
func (c *CommandBuffer) ClearTexture(t *Texture, color [4]float32, layout vk.ImageLayout, dst vk.PipelineStageFlagBits, dstAccess vk.AccessFlagBits) {
	t.Layout = vk.ImageLayoutUndefined
	c.TransitionImage(t, vk.ImageLayoutTransferDstOptimal,
		vk.PipelineStageTopOfPipeBit, 0, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit)

	rng := t.Barrier(layout, 0, 0).SubresourceRange
	if isDepth(t.Format) {
		depth := vk.ClearDepthStencilValue{Depth: color[0]}
		vk.CmdClearDepthStencilImage(c.VKCommandBuffer, t.VKImage, vk.ImageLayoutTransferDstOptimal,
			&depth, 1, []vk.ImageSubresourceRange{rng})
	} else {
		var value vk.ClearValue
		value.SetColor(color[:])
		vk.CmdClearColorImage(c.VKCommandBuffer, t.VKImage, vk.ImageLayoutTransferDstOptimal,
			(*vk.ClearColorValue)(unsafe.Pointer(&value)), 1, []vk.ImageSubresourceRange{rng})
	}

	c.TransitionImage(t, layout, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit, dst, dstAccess)
}

// CopyBufferToImage copies tightly packed texels into every layer of
// mip 0 of t, which must be in TransferDst.
func (c *CommandBuffer) CopyBufferToImage(b *Buffer, t *Texture) {
	vk.CmdCopyBufferToImage(c.VKCommandBuffer, b.VKBuffer, t.VKImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     t.Aspect,
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     t.Layers,
		},
		ImageExtent: vk.Extent3D{Width: t.Extent.Width, Height: t.Extent.Height, Depth: 1},
	}})
}

// CopyImageToBuffer copies mip 0, layer 0 of t, which must be in
// TransferSrc.
func (c *CommandBuffer) CopyImageToBuffer(t *Texture, b *Buffer) {
	vk.CmdCopyImageToBuffer(c.VKCommandBuffer, t.VKImage, vk.ImageLayoutTransferSrcOptimal, b.VKBuffer, 1, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: t.Aspect,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: t.Extent.Width, Height: t.Extent.Height, Depth: 1},
	}})
}

// MipFilter is the blit filter for building a mip chain of format f. 32
// bit targets carry instance and material ids and are point sampled.
func MipFilter(f vk.Format) vk.Filter {
	switch f {
	case vk.FormatR32g32b32a32Sfloat, vk.FormatR32g32Sfloat, vk.FormatR32Sfloat, vk.FormatR32Uint, vk.FormatR32g32b32a32Uint:
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func blitRegion(srcW, srcH, dstW, dstH int32, srcMip, dstMip uint32, aspect vk.ImageAspectFlags) vk.ImageBlit {
	return vk.ImageBlit{
		SrcSubresource: vk.ImageSubresourceLayers{
			AspectMask: aspect,
			MipLevel:   srcMip,
			LayerCount: 1,
		},
		SrcOffsets: [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: srcW, Y: srcH, Z: 1}},
		DstSubresource: vk.ImageSubresourceLayers{
			AspectMask: aspect,
			MipLevel:   dstMip,
			LayerCount: 1,
		},
		DstOffsets: [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: dstW, Y: dstH, Z: 1}},
	}
}

// Blit scales mip 0 of src (TransferSrc) onto image dst (TransferDst)
// with the given extent.
func (c *CommandBuffer) Blit(src *Texture, dst vk.Image, extent vk.Extent2D, filter vk.Filter) {
	region := blitRegion(int32(src.Extent.Width), int32(src.Extent.Height),
		int32(extent.Width), int32(extent.Height), 0, 0, src.Aspect)
	vk.CmdBlitImage(c.VKCommandBuffer, src.VKImage, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, filter)
}

// GenerateMipmaps fills mips 1..n-1 of t by successive blits from mip 0
// and leaves every level in finalLayout. Mip 0 must hold valid data in
// t.Layout. Formats that cannot be averaged are blitted with
// FilterNearest, see MipFilter.
func (c *CommandBuffer) GenerateMipmaps(t *Texture, finalLayout vk.ImageLayout) {
	filter := MipFilter(t.Format)
	level := func(mip uint32, old, layout vk.ImageLayout, srcAccess, dstAccess vk.AccessFlagBits) vk.ImageMemoryBarrier {
		b := t.Barrier(layout, srcAccess, dstAccess)
		b.OldLayout = old
		b.SubresourceRange.BaseMipLevel = mip
		b.SubresourceRange.LevelCount = 1
		return b
	}
	all := vk.AccessFlagBits(vk.AccessMemoryReadBit | vk.AccessMemoryWriteBit)

	// Mip 0 becomes the first source, the rest destinations.
	c.PipelineBarrier(vk.PipelineStageAllCommandsBit, vk.PipelineStageTransferBit, nil, []vk.ImageMemoryBarrier{
		level(0, t.Layout, vk.ImageLayoutTransferSrcOptimal, all, vk.AccessTransferReadBit),
	})
	if t.MipLevels > 1 {
		rest := t.Barrier(vk.ImageLayoutTransferDstOptimal, 0, vk.AccessTransferWriteBit)
		rest.OldLayout = vk.ImageLayoutUndefined
		rest.SubresourceRange.BaseMipLevel = 1
		rest.SubresourceRange.LevelCount = t.MipLevels - 1
		c.PipelineBarrier(vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit, nil, []vk.ImageMemoryBarrier{rest})
	}

	w, h := int32(t.Extent.Width), int32(t.Extent.Height)
	for i := uint32(1); i < t.MipLevels; i++ {
		nw, nh := w, h
		if nw > 1 {
			nw /= 2
		}
		if nh > 1 {
			nh /= 2
		}
		region := blitRegion(w, h, nw, nh, i-1, i, t.Aspect)
		region.SrcSubresource.LayerCount = t.Layers
		region.DstSubresource.LayerCount = t.Layers
		vk.CmdBlitImage(c.VKCommandBuffer, t.VKImage, vk.ImageLayoutTransferSrcOptimal,
			t.VKImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, filter)
		c.PipelineBarrier(vk.PipelineStageTransferBit, vk.PipelineStageTransferBit, nil, []vk.ImageMemoryBarrier{
			level(i, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutTransferSrcOptimal, vk.AccessTransferWriteBit, vk.AccessTransferReadBit),
		})
		w, h = nw, nh
	}

	final := t.Barrier(finalLayout, vk.AccessTransferReadBit, all)
	final.OldLayout = vk.ImageLayoutTransferSrcOptimal
	c.PipelineBarrier(vk.PipelineStageTransferBit, vk.PipelineStageAllCommandsBit, nil, []vk.ImageMemoryBarrier{final})
	t.Layout = finalLayout
}

// BeginRenderPass begins rp on fb with an inline subpass and sets a full
// viewport and scissor.
func (c *CommandBuffer) BeginRenderPass(rp *RenderPass, fb *Framebuffer, clears []vk.ClearValue) {
	vk.CmdBeginRenderPass(c.VKCommandBuffer, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  rp.VKRenderPass,
		Framebuffer: fb.VKFramebuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: fb.Extent,
		},
		ClearValueCount: uint32(len(clears)),
		PClearValues:    clears,
	}, vk.SubpassContentsInline)

	c.SetViewport(fb.Extent)
	c.SetScissor(vk.Rect2D{Extent: fb.Extent})
}

func (c *CommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(c.VKCommandBuffer)
}

func (c *CommandBuffer) SetViewport(extent vk.Extent2D) {
	vk.CmdSetViewport(c.VKCommandBuffer, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (c *CommandBuffer) SetScissor(r vk.Rect2D) {
	vk.CmdSetScissor(c.VKCommandBuffer, 0, 1, []vk.Rect2D{r})
}

func (c *CommandBuffer) BindVertexBuffer(b *Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(c.VKCommandBuffer, 0, 1, []vk.Buffer{b.VKBuffer}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (c *CommandBuffer) BindIndexBuffer(b *Buffer, offset uint64, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(c.VKCommandBuffer, b.VKBuffer, vk.DeviceSize(offset), indexType)
}

func (c *CommandBuffer) DrawIndexed(count, first uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(c.VKCommandBuffer, count, 1, first, vertexOffset, firstInstance)
}

// WriteTimestamp writes the GPU clock into query once stage completes.
func (c *CommandBuffer) WriteTimestamp(q *QueryPool, stage vk.PipelineStageFlagBits, query uint32) {
	vk.CmdWriteTimestamp(c.VKCommandBuffer, stage, q.VKQueryPool, query)
}

func (c *CommandBuffer) ResetQueries(q *QueryPool) {
	vk.CmdResetQueryPool(c.VKCommandBuffer, q.VKQueryPool, 0, q.Count)
}
