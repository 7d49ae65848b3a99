package pass

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/gpuscene"
	"github.com/celer/hybrid/scene"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/shader"
	"github.com/celer/hybrid/vkg"
)

// GBuffer attachment formats.
const (
	AlbedoFormat   = vk.FormatR8g8b8a8Unorm
	NormalFormat   = vk.FormatR16g16b16a16Sfloat
	MaterialFormat = vk.FormatR32g32b32a32Sfloat
	DepthFormat    = vk.FormatD32Sfloat
)

// Bindings of the per parity GBuffer set. Current images are written this
// frame, previous ones last frame.
const (
	BindingGlobals = iota
	BindingAlbedo
	BindingNormal
	BindingMaterial
	BindingDepth
	BindingPrevAlbedo
	BindingPrevNormal
	BindingPrevMaterial
	BindingPrevDepth
)

const gbufferStages = vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit

// GBuffer rasterizes the scene into albedo/metallic, normal/motion and
// roughness/curvature/instance/linear depth attachments, two copies of
// each, and reduces the color attachments to full mip chains.
type GBuffer struct {
	Albedo   [2]*vkg.Texture
	Normal   [2]*vkg.Texture
	Material [2]*vkg.Texture
	Depth    [2]*vkg.Texture
	// Globals holds one scene.GlobalData per parity.
	Globals [2]*vkg.Buffer

	SetLayout *vkg.DescriptorSetLayout
	Sets      [2]*vkg.DescriptorSet

	renderPass   *vkg.RenderPass
	views        [2][3]*vkg.ImageView
	framebuffers [2]*vkg.Framebuffer
	layout       *vkg.PipelineLayout
	pipeline     *vkg.Pipeline

	env *Env
}

// NewGBuffer creates the attachments at the render extent. It also sets
// env.GBuffer since every later pass binds its sets.
func NewGBuffer(env *Env) (_ *GBuffer, err error) {
	g := &GBuffer{env: env}
	defer func() {
		if err != nil {
			g.Destroy()
		}
	}()
	if err = g.createImages(); err != nil {
		return nil, err
	}
	if err = g.createSets(); err != nil {
		return nil, err
	}
	if err = g.createPipeline(); err != nil {
		return nil, err
	}
	env.GBuffer = g
	return g, nil
}

func (g *GBuffer) createImages() error {
	ctx := g.env.Ctx
	w, h := g.env.Extent.Width, g.env.Extent.Height
	color := vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
	var err error
	for k := 0; k < 2; k++ {
		name := func(n string) string { return fg.SlotName(n, k) }
		create := func(n string, format vk.Format, usage vk.ImageUsageFlagBits, mips bool) (*vkg.Texture, error) {
			return ctx.CreateTexture2D(vkg.TextureOptions{
				Name:      name(n),
				Width:     w,
				Height:    h,
				Format:    format,
				Usage:     usage,
				Mipmapped: mips,
			})
		}
		if g.Albedo[k], err = create(schedule.GBufferAlbedo, AlbedoFormat, color, true); err != nil {
			return err
		}
		if g.Normal[k], err = create(schedule.GBufferNormal, NormalFormat, color, true); err != nil {
			return err
		}
		if g.Material[k], err = create(schedule.GBufferMaterial, MaterialFormat, color, true); err != nil {
			return err
		}
		depth := vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferDstBit
		if g.Depth[k], err = create(schedule.GBufferDepth, DepthFormat, depth, false); err != nil {
			return err
		}
		for i, t := range g.color(k) {
			// Attachments only cover mip 0.
			if g.views[k][i], err = ctx.CreateTextureView(t, vkg.ViewOptions{Type: vk.ImageViewType2d, MipCount: 1}); err != nil {
				return err
			}
		}
		g.Globals[k], err = ctx.CreateBuffer(fmt.Sprintf("globals/%d", k), uint64(unsafe.Sizeof(scene.GlobalData{})),
			vk.BufferUsageUniformBufferBit, vkg.CPUToGPU)
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *GBuffer) color(k int) [3]*vkg.Texture {
	return [3]*vkg.Texture{g.Albedo[k], g.Normal[k], g.Material[k]}
}

func (g *GBuffer) createSets() error {
	ctx := g.env.Ctx
	b := ctx.NewDescriptorLayout().Name("gbuffer").
		Binding(BindingGlobals, vk.DescriptorTypeUniformBuffer, 1, gbufferStages)
	for i := BindingAlbedo; i <= BindingPrevDepth; i++ {
		b.Binding(uint32(i), vk.DescriptorTypeCombinedImageSampler, 1, gbufferStages)
	}
	var err error
	if g.SetLayout, err = b.Create(); err != nil {
		return err
	}
	sets, err := g.env.sets(g.SetLayout, 2)
	if err != nil {
		return err
	}
	copy(g.Sets[:], sets)

	for k := 0; k < 2; k++ {
		prev := 1 - k
		w := vkg.NewDescriptorWriter().
			Buffer(BindingGlobals, vk.DescriptorTypeUniformBuffer, g.Globals[k].DSInfo(0, g.Globals[k].Size))
		images := []*vkg.Texture{g.Albedo[k], g.Normal[k], g.Material[k], g.Depth[k],
			g.Albedo[prev], g.Normal[prev], g.Material[prev], g.Depth[prev]}
		for i, t := range images {
			// Depth is read texel by texel.
			sampler := ctx.LinearSampler
			if t.Format == DepthFormat {
				sampler = ctx.NearestSampler
			}
			w.Image(uint32(BindingAlbedo+i), vk.DescriptorTypeCombinedImageSampler, t.Info(vk.ImageLayoutShaderReadOnlyOptimal, sampler))
		}
		w.Update(g.Sets[k])
	}
	return nil
}

func (g *GBuffer) createPipeline() error {
	ctx := g.env.Ctx
	attach := func(format vk.Format) vkg.Attachment {
		return vkg.Attachment{
			Format:  format,
			LoadOp:  vk.AttachmentLoadOpClear,
			Initial: vk.ImageLayoutColorAttachmentOptimal,
			Final:   vk.ImageLayoutColorAttachmentOptimal,
		}
	}
	depth := vkg.Attachment{
		Format:  DepthFormat,
		LoadOp:  vk.AttachmentLoadOpClear,
		Initial: vk.ImageLayoutDepthStencilAttachmentOptimal,
		Final:   vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	var err error
	g.renderPass, err = ctx.CreateRenderPass(vkg.RenderPassOptions{
		Name:   "gbuffer",
		Colors: []vkg.Attachment{attach(AlbedoFormat), attach(NormalFormat), attach(MaterialFormat)},
		Depth:  &depth,
	})
	if err != nil {
		return err
	}
	for k := 0; k < 2; k++ {
		v := g.views[k]
		g.framebuffers[k], err = ctx.CreateFramebuffer(fmt.Sprintf("gbuffer/%d", k), g.renderPass, g.env.Extent,
			v[0], v[1], v[2], g.Depth[k].View)
		if err != nil {
			return err
		}
	}

	vert, err := g.env.Compile("gbuffer.hlsl", shader.Vertex, "VSMain", nil)
	if err != nil {
		return err
	}
	frag, err := g.env.Compile("gbuffer.hlsl", shader.Fragment, "PSMain", nil)
	if err != nil {
		return err
	}
	g.layout, err = ctx.CreatePipelineLayout("gbuffer",
		vkg.PushRange(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit, 4),
		g.env.Scene.Layout, g.SetLayout)
	if err != nil {
		return err
	}
	b := ctx.NewGraphicsPipeline(g.layout).
		Shader(vk.ShaderStageVertexBit, vert, "VSMain").
		Shader(vk.ShaderStageFragmentBit, frag, "PSMain").
		RenderPass(g.renderPass, 0).
		VertexBinding(0, uint32(unsafe.Sizeof(scene.Vertex{}))).
		Attribute(0, 0, vk.FormatR32g32b32a32Sfloat, 0).
		Attribute(1, 0, vk.FormatR32g32b32a32Sfloat, 16).
		SetCullMode(vk.CullModeNone).
		Depth(true, true)
	b.ColorAttachments = 3
	b.DepthCompareOp = vk.CompareOpLessOrEqual
	g.pipeline, err = b.Create("gbuffer")
	return err
}

// WriteGlobals stores the frame uniform for parity p. The fence of p must
// have been waited on.
func (g *GBuffer) WriteGlobals(p fg.Parity, data *scene.GlobalData) {
	copy(g.Globals[p.Write()].Mapped, vkg.ValueBytes(data))
}

// Init clears both copies so that the first frame reads defined history.
func (g *GBuffer) Init(cmd *vkg.CommandBuffer) {
	for k := 0; k < 2; k++ {
		c := g.color(k)
		clearTextures(cmd, [4]float32{}, c[:]...)
		clearTextures(cmd, [4]float32{1}, g.Depth[k])
	}
}

// Draw rasterizes every instance into the copies of parity p, then
// builds their mip chains.
func (g *GBuffer) Draw(f *Frame) {
	k := f.Parity.Write()
	cmd := f.Cmd
	if f.Node(schedule.NodeGBuffer) {
		clears := make([]vk.ClearValue, 4)
		for i := 0; i < 3; i++ {
			clears[i].SetColor([]float32{0, 0, 0, 0})
		}
		clears[3].SetDepthStencil(1, 0)

		gs := g.env.Scene
		cmd.BeginRenderPass(g.renderPass, g.framebuffers[k], clears)
		cmd.BindPipeline(g.pipeline)
		cmd.BindDescriptorSets(g.pipeline, 0, gs.Set, g.Sets[k])
		cmd.BindVertexBuffer(gs.Vertices, 0)
		cmd.BindIndexBuffer(gs.Indices, 0, vk.IndexTypeUint32)
		drawInstances(cmd, g.pipeline, gs)
		cmd.EndRenderPass()
	}
	if f.Node(schedule.NodeGBufferMips) {
		for _, t := range g.color(k) {
			cmd.GenerateMipmaps(t, vk.ImageLayoutTransferSrcOptimal)
		}
	}
}

// drawInstances issues one indexed draw per instance with its index as the
// push constant.
func drawInstances(cmd *vkg.CommandBuffer, p *vkg.Pipeline, gs *gpuscene.Scene) {
	for i, inst := range gs.Host.Instances {
		id := uint32(i)
		cmd.PushConstants(p, vkg.ValueBytes(&id))
		cmd.DrawIndexed(inst.IndexCount, inst.IndexOffset, int32(inst.VertexOffset), 0)
	}
}

func (g *GBuffer) Register(r Resources) {
	r.Image(schedule.GBufferAlbedo, g.Albedo[:]...)
	r.Image(schedule.GBufferNormal, g.Normal[:]...)
	r.Image(schedule.GBufferMaterial, g.Material[:]...)
	r.Image(schedule.GBufferDepth, g.Depth[:]...)
}

func (g *GBuffer) Destroy() {
	if g.pipeline != nil {
		g.pipeline.Destroy()
	}
	if g.layout != nil {
		g.layout.Destroy()
	}
	for k := 0; k < 2; k++ {
		if g.framebuffers[k] != nil {
			g.framebuffers[k].Destroy()
		}
		for _, v := range g.views[k] {
			if v != nil {
				v.Destroy()
			}
		}
	}
	if g.renderPass != nil {
		g.renderPass.Destroy()
	}
	g.env.freeSets(g.Sets[:]...)
	if g.SetLayout != nil {
		g.SetLayout.Destroy()
	}
	destroyBuffers(g.Globals[:]...)
	for k := 0; k < 2; k++ {
		destroyTextures(g.Albedo[k], g.Normal[k], g.Material[k], g.Depth[k])
	}
}
