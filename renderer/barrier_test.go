package renderer

import (
	"errors"
	"testing"

	vk "github.com/vulkan-go/vulkan"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/pass"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

func TestPipelineStage(t *testing.T) {
	tests := []struct {
		in   fg.Stage
		want vk.PipelineStageFlagBits
	}{
		{0, vk.PipelineStageTopOfPipeBit},
		{fg.StageCompute, vk.PipelineStageComputeShaderBit},
		{fg.StageTransfer | fg.StageColorOutput, vk.PipelineStageTransferBit | vk.PipelineStageColorAttachmentOutputBit},
		{fg.StageEarlyFragmentTests | fg.StageLateFragmentTests,
			vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit},
		{fg.StageBottom, vk.PipelineStageBottomOfPipeBit},
	}
	for _, tt := range tests {
		if got := pipelineStage(tt.in); got != tt.want {
			t.Errorf("pipelineStage(%v) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestAccess(t *testing.T) {
	if got := access(0); got != 0 {
		t.Errorf("access(none) = %#x", got)
	}
	got := access(fg.AccessShaderRead | fg.AccessShaderWrite)
	if want := vk.AccessShaderReadBit | vk.AccessShaderWriteBit; got != want {
		t.Errorf("access(shader-rw) = %#x, want %#x", got, want)
	}
	if got := access(fg.AccessIndirectRead); got != vk.AccessIndirectCommandReadBit {
		t.Errorf("access(indirect) = %#x", got)
	}
}

func TestImageLayout(t *testing.T) {
	if got := imageLayout(fg.LayoutPresent); got != vk.ImageLayoutPresentSrc {
		t.Errorf("present = %v", got)
	}
	if got := imageLayout(fg.LayoutDepthAttachment); got != vk.ImageLayoutDepthStencilAttachmentOptimal {
		t.Errorf("depth = %v", got)
	}
}

// registry creates a host-only texture or buffer for every resource the
// plan touches.
func registry(plan *fg.Plan) pass.Resources {
	res := make(pass.Resources)
	for _, s := range plan.Steps {
		for _, touch := range s.Touches {
			if _, ok := res[touch.Resource]; ok {
				continue
			}
			if touch.Kind == fg.Buffer {
				res[touch.Resource] = pass.Resource{Buffer: &vkg.Buffer{Name: touch.Resource}}
				continue
			}
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if touch.Resource == schedule.Swapchain {
				layout = vk.ImageLayoutUndefined
			}
			res[touch.Resource] = pass.Resource{Texture: &vkg.Texture{
				Name:      touch.Resource,
				MipLevels: 1,
				Layers:    1,
				Layout:    layout,
			}}
		}
	}
	return res
}

func TestTranslatePlan(t *testing.T) {
	cache := schedule.NewCache()
	for _, p := range []fg.Parity{fg.ParityOf(0), fg.ParityOf(1)} {
		plan, err := cache.Plan(schedule.DefaultToggles(), p)
		if err != nil {
			t.Fatal(err)
		}
		res := registry(plan)
		for _, s := range plan.Steps {
			batches, err := translate(res, s.Barriers)
			if err != nil {
				t.Fatalf("node %s: %v", s.Node, err)
			}
			n := 0
			for _, b := range batches {
				n += len(b.images) + len(b.buffers)
			}
			if n != len(s.Barriers) {
				t.Errorf("node %s: %d barriers translated, want %d", s.Node, n, len(s.Barriers))
			}
		}
		if _, err := translate(res, plan.Epilogue); err != nil {
			t.Fatal(err)
		}
		for name, r := range res {
			if r.Texture == nil {
				continue
			}
			want := vk.ImageLayoutShaderReadOnlyOptimal
			if name == schedule.Swapchain {
				want = vk.ImageLayoutPresentSrc
			}
			if r.Texture.Layout != want {
				t.Errorf("parity %v: %s ends in %v, want %v", p, name, r.Texture.Layout, want)
			}
		}
	}
}

func TestTranslateBatches(t *testing.T) {
	a := &vkg.Texture{Name: "a", MipLevels: 4, Layers: 1, Layout: vk.ImageLayoutShaderReadOnlyOptimal}
	b := &vkg.Texture{Name: "b", MipLevels: 1, Layers: 1, Layout: vk.ImageLayoutShaderReadOnlyOptimal}
	res := pass.Resources{"a": {Texture: a}, "b": {Texture: b}, "c": {Buffer: &vkg.Buffer{}}}
	barriers := []fg.Barrier{
		{Resource: "a", Kind: fg.Image, OldLayout: fg.LayoutShaderReadOnly, NewLayout: fg.LayoutGeneral,
			SrcStage: fg.StageCompute, DstStage: fg.StageCompute, DstAccess: fg.AccessShaderWrite},
		{Resource: "c", Kind: fg.Buffer, SrcStage: fg.StageTransfer, SrcAccess: fg.AccessTransferWrite,
			DstStage: fg.StageCompute, DstAccess: fg.AccessShaderRead},
		{Resource: "b", Kind: fg.Image, OldLayout: fg.LayoutUndefined, NewLayout: fg.LayoutGeneral,
			SrcStage: fg.StageCompute, DstStage: fg.StageCompute, DstAccess: fg.AccessShaderWrite},
	}
	batches, err := translate(res, barriers)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	first := batches[0]
	if len(first.images) != 2 || len(first.buffers) != 0 {
		t.Fatalf("first batch has %d images and %d buffers", len(first.images), len(first.buffers))
	}
	if first.images[0].SubresourceRange.LevelCount != 4 {
		t.Errorf("level count = %d, want every mip", first.images[0].SubresourceRange.LevelCount)
	}
	if first.images[1].OldLayout != vk.ImageLayoutUndefined {
		t.Errorf("discarded image old layout = %v", first.images[1].OldLayout)
	}
	if a.Layout != vk.ImageLayoutGeneral || b.Layout != vk.ImageLayoutGeneral {
		t.Errorf("tracked layouts = %v, %v", a.Layout, b.Layout)
	}
	if batches[1].src != vk.PipelineStageTransferBit || len(batches[1].buffers) != 1 {
		t.Errorf("second batch = %+v", batches[1].stagePair)
	}
}

func TestTranslateUnknown(t *testing.T) {
	_, err := translate(pass.Resources{}, []fg.Barrier{{Resource: "missing"}})
	if !errors.Is(err, ErrUnknownResource) {
		t.Errorf("err = %v, want ErrUnknownResource", err)
	}
}
