// Package pass holds the GPU passes of the hybrid frame. Passes are
// concrete types sharing an informal contract: a constructor creating
// every resource, Init recording one-time clears, Update wiring inputs
// produced by other passes, Draw recording the nodes of the frame plan,
// Register publishing images and buffers to the barrier translator, and
// an optional DrawUI.
package pass

import (
	"fmt"
	"path/filepath"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/gpuscene"
	"github.com/celer/hybrid/internal/imath"
	"github.com/celer/hybrid/log"
	"github.com/celer/hybrid/shader"
	"github.com/celer/hybrid/vkg"
)

var logger = log.New("pass")

// Env is what passes are created with. GBuffer and Assets are filled in by
// the renderer once they exist; every compute pass binds them as sets 1
// and 2.
type Env struct {
	Ctx       *vkg.Context
	Shaders   *shader.Compiler
	ShaderDir string
	Scene     *gpuscene.Scene
	Assets    *SamplingAssets
	GBuffer   *GBuffer
	// Extent is the render resolution, before FSR.
	Extent vk.Extent2D
	// Display is the swapchain resolution FSR upscales to.
	Display vk.Extent2D
}

// Compile compiles entry of file from the shader directory.
func (e *Env) Compile(file string, stage shader.Stage, entry string, defines map[string]string) ([]byte, error) {
	req := shader.Request{
		Path:    filepath.Join(e.ShaderDir, file),
		Stage:   stage,
		Entry:   entry,
		Defines: defines,
		Half:    e.Ctx.PhysicalDevice.Caps.Float16,
	}
	code, err := e.Shaders.Compile(req)
	if err != nil {
		return nil, fmt.Errorf("compile %v: %w", req, err)
	}
	return code, nil
}

// Frame is one recording of the frame plan.
type Frame struct {
	Cmd    *vkg.CommandBuffer
	Parity fg.Parity
	Number uint32
	Plan   *fg.Plan
	// Enter is called before each recorded node, after which the node's
	// barriers must have been issued.
	Enter func(node string)
}

// Node reports whether node is part of the plan and, if so, enters it.
func (f *Frame) Node(name string) bool {
	if f.Plan == nil || !f.Plan.Has(name) {
		return false
	}
	if f.Enter != nil {
		f.Enter(name)
	}
	return true
}

// Resource is an image or a buffer known to the frame plan.
type Resource struct {
	Texture *vkg.Texture
	Buffer  *vkg.Buffer
}

// Resources maps concrete frame graph resource names to device objects.
type Resources map[string]Resource

// Image registers t under name, or one texture per ping-pong slot.
func (r Resources) Image(name string, t ...*vkg.Texture) {
	if len(t) == 1 {
		r[name] = Resource{Texture: t[0]}
		return
	}
	for k, tex := range t {
		r[fg.SlotName(name, k)] = Resource{Texture: tex}
	}
}

// slot is the concrete name of copy k of a ping-pong resource.
func slot(name string, k int) string {
	return fg.SlotName(name, k)
}

func (r Resources) Buffer(name string, b ...*vkg.Buffer) {
	if len(b) == 1 {
		r[name] = Resource{Buffer: b[0]}
		return
	}
	for k, buf := range b {
		r[fg.SlotName(name, k)] = Resource{Buffer: buf}
	}
}

const computeStage = vk.ShaderStageComputeBit

// sizeOf is the push constant size of T.
func sizeOf[T any]() uintptr {
	var v T
	return unsafe.Sizeof(v)
}

// imageUsage is the usage of every intermediate pass image.
const imageUsage = vk.ImageUsageStorageBit | vk.ImageUsageSampledBit |
	vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit

// storageImage creates a w x h single level image read and written by
// compute passes.
func (e *Env) storageImage(name string, w, h uint32, format vk.Format) (*vkg.Texture, error) {
	return e.Ctx.CreateTexture2D(vkg.TextureOptions{
		Name:   name,
		Width:  w,
		Height: h,
		Format: format,
		Usage:  imageUsage,
	})
}

// scaled is the render extent reduced by 2^scale.
func (e *Env) scaled(scale uint32) (uint32, uint32) {
	return imath.ScaledExtent(e.Extent.Width, e.Extent.Height, scale)
}

// gbufferMip is the GBuffer level a pass traced at 2^scale below the w x h
// render extent reads. The chain ends at 1x1.
func gbufferMip(scale, w, h uint32) uint32 {
	if last := imath.MipLevels(w, h) - 1; scale > last {
		return last
	}
	return scale
}

// layout creates a compute descriptor set layout with one descriptor of
// each type at consecutive bindings.
func (e *Env) layout(name string, types ...vk.DescriptorType) (*vkg.DescriptorSetLayout, error) {
	b := e.Ctx.NewDescriptorLayout().Name(name)
	for i, t := range types {
		b.Binding(uint32(i), t, 1, computeStage)
	}
	return b.Create()
}

// sets allocates n sets of layout.
func (e *Env) sets(layout *vkg.DescriptorSetLayout, n int) ([]*vkg.DescriptorSet, error) {
	layouts := make([]*vkg.DescriptorSetLayout, n)
	for i := range layouts {
		layouts[i] = layout
	}
	return e.Ctx.AllocateDescriptorSets(layouts...)
}

func (e *Env) freeSets(sets ...*vkg.DescriptorSet) {
	for _, s := range sets {
		if s != nil {
			e.Ctx.DescriptorPool.Free(s)
		}
	}
}

func (e *Env) sampled(t *vkg.Texture) vk.DescriptorImageInfo {
	return t.Info(vk.ImageLayoutShaderReadOnlyOptimal, e.Ctx.LinearSampler)
}

func storage(t *vkg.Texture) vk.DescriptorImageInfo {
	return t.Info(vk.ImageLayoutGeneral, nil)
}

// kernel is a compute pipeline bound with the scene, GBuffer and sampling
// asset sets followed by one pass set.
type kernel struct {
	env      *Env
	name     string
	layout   *vkg.PipelineLayout
	pipeline *vkg.Pipeline
}

// kernel compiles entry of file into a pipeline with push bytes of push
// constants.
func (e *Env) kernel(name, file, entry string, defines map[string]string, push uint32, set *vkg.DescriptorSetLayout) (*kernel, error) {
	code, err := e.Compile(file, shader.Compute, entry, defines)
	if err != nil {
		return nil, err
	}
	var ranges []vk.PushConstantRange
	if push > 0 {
		ranges = vkg.PushRange(computeStage, push)
	}
	layouts := []*vkg.DescriptorSetLayout{e.Scene.Layout, e.GBuffer.SetLayout, e.Assets.Layout}
	if set != nil {
		layouts = append(layouts, set)
	}
	layout, err := e.Ctx.CreatePipelineLayout(name, ranges, layouts...)
	if err != nil {
		return nil, err
	}
	pipeline, err := e.Ctx.CreateComputePipeline(name, layout, code, entry)
	if err != nil {
		layout.Destroy()
		return nil, err
	}
	return &kernel{env: e, name: name, layout: layout, pipeline: pipeline}, nil
}

// bind binds the pipeline, the shared sets for parity p, set and push.
func (k *kernel) bind(f *Frame, set *vkg.DescriptorSet, push []byte) {
	cmd := f.Cmd
	cmd.BindPipeline(k.pipeline)
	sets := []*vkg.DescriptorSet{k.env.Scene.Set, k.env.GBuffer.Sets[f.Parity.Write()], k.env.Assets.Set}
	if set != nil {
		sets = append(sets, set)
	}
	cmd.BindDescriptorSets(k.pipeline, 0, sets...)
	cmd.PushConstants(k.pipeline, push)
}

// dispatch covers a w x h image with groups of gx x gy threads.
func (k *kernel) dispatch(f *Frame, set *vkg.DescriptorSet, push []byte, w, h, gx, gy uint32) {
	k.bind(f, set, push)
	x, y := imath.Groups(w, h, gx, gy)
	f.Cmd.Dispatch(x, y, 1)
}

func (k *kernel) indirect(f *Frame, set *vkg.DescriptorSet, push []byte, args *vkg.Buffer, offset uint64) {
	k.bind(f, set, push)
	f.Cmd.DispatchIndirect(args, offset)
}

func (k *kernel) Destroy() {
	if k == nil {
		return
	}
	k.pipeline.Destroy()
	k.layout.Destroy()
}

// clearTextures clears every texture and leaves it ready for sampling.
func clearTextures(cmd *vkg.CommandBuffer, value [4]float32, textures ...*vkg.Texture) {
	for _, t := range textures {
		cmd.ClearTexture(t, value, vk.ImageLayoutShaderReadOnlyOptimal,
			vk.PipelineStageComputeShaderBit|vk.PipelineStageFragmentShaderBit, vk.AccessShaderReadBit)
	}
}

func destroyTextures(textures ...*vkg.Texture) {
	for _, t := range textures {
		if t != nil {
			t.Destroy()
		}
	}
}

func destroyBuffers(buffers ...*vkg.Buffer) {
	for _, b := range buffers {
		if b != nil {
			b.Destroy()
		}
	}
}
