package renderer

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/pass"
	"github.com/celer/hybrid/vkg"
)

var layouts = map[fg.Layout]vk.ImageLayout{
	fg.LayoutUndefined:       vk.ImageLayoutUndefined,
	fg.LayoutGeneral:         vk.ImageLayoutGeneral,
	fg.LayoutShaderReadOnly:  vk.ImageLayoutShaderReadOnlyOptimal,
	fg.LayoutColorAttachment: vk.ImageLayoutColorAttachmentOptimal,
	fg.LayoutDepthAttachment: vk.ImageLayoutDepthStencilAttachmentOptimal,
	fg.LayoutTransferSrc:     vk.ImageLayoutTransferSrcOptimal,
	fg.LayoutTransferDst:     vk.ImageLayoutTransferDstOptimal,
	fg.LayoutPresent:         vk.ImageLayoutPresentSrc,
}

func imageLayout(l fg.Layout) vk.ImageLayout {
	return layouts[l]
}

// Bits in the order of the framegraph Stage and Access constants.
var (
	stageBits = [...]vk.PipelineStageFlagBits{
		vk.PipelineStageTopOfPipeBit,
		vk.PipelineStageDrawIndirectBit,
		vk.PipelineStageVertexShaderBit,
		vk.PipelineStageFragmentShaderBit,
		vk.PipelineStageEarlyFragmentTestsBit,
		vk.PipelineStageLateFragmentTestsBit,
		vk.PipelineStageColorAttachmentOutputBit,
		vk.PipelineStageComputeShaderBit,
		vk.PipelineStageTransferBit,
		vk.PipelineStageBottomOfPipeBit,
	}
	accessBits = [...]vk.AccessFlagBits{
		vk.AccessIndirectCommandReadBit,
		vk.AccessShaderReadBit,
		vk.AccessShaderWriteBit,
		vk.AccessColorAttachmentReadBit,
		vk.AccessColorAttachmentWriteBit,
		vk.AccessDepthStencilAttachmentReadBit,
		vk.AccessDepthStencilAttachmentWriteBit,
		vk.AccessTransferReadBit,
		vk.AccessTransferWriteBit,
	}
)

// pipelineStage translates s. An empty mask becomes top of pipe, which
// waits on nothing.
func pipelineStage(s fg.Stage) vk.PipelineStageFlagBits {
	var out vk.PipelineStageFlagBits
	for i, bit := range stageBits {
		if s&(1<<i) != 0 {
			out |= bit
		}
	}
	if out == 0 {
		return vk.PipelineStageTopOfPipeBit
	}
	return out
}

func access(a fg.Access) vk.AccessFlagBits {
	var out vk.AccessFlagBits
	for i, bit := range accessBits {
		if a&(1<<i) != 0 {
			out |= bit
		}
	}
	return out
}

type stagePair struct {
	src, dst vk.PipelineStageFlagBits
}

// batch is one vkCmdPipelineBarrier call.
type batch struct {
	stagePair
	images  []vk.ImageMemoryBarrier
	buffers []vk.BufferMemoryBarrier
}

// translate turns planned barriers into batches sharing stage masks, in
// order of first appearance. Each transitioned texture's tracked layout
// is updated to the new layout.
func translate(res pass.Resources, barriers []fg.Barrier) ([]batch, error) {
	var batches []batch
	index := make(map[stagePair]int)
	for _, b := range barriers {
		r, ok := res[b.Resource]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownResource, b.Resource)
		}
		key := stagePair{pipelineStage(b.SrcStage), pipelineStage(b.DstStage)}
		i, ok := index[key]
		if !ok {
			i = len(batches)
			index[key] = i
			batches = append(batches, batch{stagePair: key})
		}

		switch {
		case b.Kind == fg.Image && r.Texture != nil:
			t := r.Texture
			ib := t.Barrier(imageLayout(b.NewLayout), access(b.SrcAccess), access(b.DstAccess))
			ib.OldLayout = imageLayout(b.OldLayout)
			t.Layout = ib.NewLayout
			batches[i].images = append(batches[i].images, ib)
		case b.Kind == fg.Buffer && r.Buffer != nil:
			batches[i].buffers = append(batches[i].buffers, r.Buffer.Barrier(access(b.SrcAccess), access(b.DstAccess)))
		default:
			return nil, fmt.Errorf("renderer: %q is registered with the wrong kind", b.Resource)
		}
	}
	return batches, nil
}

// recordBarriers records barriers into cmd.
func recordBarriers(cmd *vkg.CommandBuffer, res pass.Resources, barriers []fg.Barrier) error {
	if len(barriers) == 0 {
		return nil
	}
	batches, err := translate(res, barriers)
	if err != nil {
		return err
	}
	for _, b := range batches {
		cmd.PipelineBarrier(b.src, b.dst, b.buffers, b.images)
	}
	return nil
}

// swapchainTexture wraps swapchain image i so that plan barriers can
// transition it. It must never be destroyed.
func swapchainTexture(sc *vkg.Swapchain, i int) *vkg.Texture {
	return &vkg.Texture{
		Device:    sc.Device,
		Name:      fmt.Sprintf("swapchain.%d", i),
		VKImage:   sc.Images[i],
		Format:    sc.Format,
		Extent:    sc.Extent,
		MipLevels: 1,
		Layers:    1,
		Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
		Layout:    vk.ImageLayoutUndefined,
	}
}
