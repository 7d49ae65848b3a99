package vkg

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

type shaderStage struct {
	spirv []byte
	entry string
	stage vk.ShaderStageFlagBits
}

// GraphicsPipelineBuilder is a utility object to ease construction of
// graphics pipelines. Viewport and scissor are always dynamic.
type GraphicsPipelineBuilder struct {
	ctx    *Context
	layout *PipelineLayout
	stages []shaderStage

	renderPass *RenderPass
	subpass    uint32

	// PrimitiveTopology defaults to VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST
	PrimitiveTopology vk.PrimitiveTopology

	// PolygonMode defaults to VK_POLYGON_MODE_FILL
	PolygonMode vk.PolygonMode

	// CullMode defaults to vk.CullModeBackBit
	CullMode vk.CullModeFlagBits

	// FrontFace defaults to vk.FrontFaceCounterClockwise
	FrontFace vk.FrontFace

	// BlendAttachments holds one state per color attachment. When empty,
	// ColorAttachments opaque attachments are assumed.
	BlendAttachments []vk.PipelineColorBlendAttachmentState
	ColorAttachments int

	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   vk.CompareOp

	VertexInputBindingDescriptions   []vk.VertexInputBindingDescription
	VertexInputAttributeDescriptions []vk.VertexInputAttributeDescription
}

// NewGraphicsPipeline starts a pipeline with layout.
func (c *Context) NewGraphicsPipeline(layout *PipelineLayout) *GraphicsPipelineBuilder {
	return &GraphicsPipelineBuilder{
		ctx:               c,
		layout:            layout,
		PrimitiveTopology: vk.PrimitiveTopologyTriangleList,
		PolygonMode:       vk.PolygonModeFill,
		CullMode:          vk.CullModeBackBit,
		FrontFace:         vk.FrontFaceCounterClockwise,
		ColorAttachments:  1,
		DepthTestEnable:   true,
		DepthWriteEnable:  true,
		DepthCompareOp:    vk.CompareOpLess,
	}
}

func (g *GraphicsPipelineBuilder) Shader(stage vk.ShaderStageFlagBits, spirv []byte, entryPoint string) *GraphicsPipelineBuilder {
	g.stages = append(g.stages, shaderStage{spirv: spirv, entry: entryPoint, stage: stage})
	return g
}

func (g *GraphicsPipelineBuilder) RenderPass(rp *RenderPass, subpass uint32) *GraphicsPipelineBuilder {
	g.renderPass = rp
	g.subpass = subpass
	return g
}

// VertexBinding adds a per-vertex binding of stride bytes.
func (g *GraphicsPipelineBuilder) VertexBinding(binding, stride uint32) *GraphicsPipelineBuilder {
	g.VertexInputBindingDescriptions = append(g.VertexInputBindingDescriptions, vk.VertexInputBindingDescription{
		Binding:   binding,
		Stride:    stride,
		InputRate: vk.VertexInputRateVertex,
	})
	return g
}

func (g *GraphicsPipelineBuilder) Attribute(location, binding uint32, format vk.Format, offset uint32) *GraphicsPipelineBuilder {
	g.VertexInputAttributeDescriptions = append(g.VertexInputAttributeDescriptions, vk.VertexInputAttributeDescription{
		Location: location,
		Binding:  binding,
		Format:   format,
		Offset:   offset,
	})
	return g
}

func (g *GraphicsPipelineBuilder) SetCullMode(mode vk.CullModeFlagBits) *GraphicsPipelineBuilder {
	g.CullMode = mode
	return g
}

func (g *GraphicsPipelineBuilder) Depth(test, write bool) *GraphicsPipelineBuilder {
	g.DepthTestEnable = test
	g.DepthWriteEnable = write
	return g
}

// AddBlendAttachment adds a new blend attachment
func (g *GraphicsPipelineBuilder) AddBlendAttachment(ba vk.PipelineColorBlendAttachmentState) *GraphicsPipelineBuilder {
	g.BlendAttachments = append(g.BlendAttachments, ba)
	return g
}

// AlphaBlend blends straight alpha over the destination.
func AlphaBlend() vk.PipelineColorBlendAttachmentState {
	return vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vk.True,
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorOne,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask:      vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

// Create creates the pipeline. Shader modules are destroyed before it
// returns.
func (g *GraphicsPipelineBuilder) Create(name string) (*Pipeline, error) {
	if g.renderPass == nil {
		return nil, fmt.Errorf("graphics pipeline %s: no render pass", name)
	}
	d := g.ctx.Device

	stages := make([]vk.PipelineShaderStageCreateInfo, 0, len(g.stages))
	for _, s := range g.stages {
		module, err := d.CreateShaderModule(s.spirv)
		if err != nil {
			return nil, fmt.Errorf("graphics pipeline %s: %w", name, err)
		}
		defer module.Destroy()
		stages = append(stages, module.VKPipelineShaderStageCreateInfo(s.stage, s.entry))
	}

	var vertexInputState = vk.PipelineVertexInputStateCreateInfo{}
	vertexInputState.SType = vk.StructureTypePipelineVertexInputStateCreateInfo
	vertexInputState.VertexBindingDescriptionCount = uint32(len(g.VertexInputBindingDescriptions))
	vertexInputState.PVertexBindingDescriptions = g.VertexInputBindingDescriptions
	vertexInputState.VertexAttributeDescriptionCount = uint32(len(g.VertexInputAttributeDescriptions))
	vertexInputState.PVertexAttributeDescriptions = g.VertexInputAttributeDescriptions

	var inputAssemblyState = vk.PipelineInputAssemblyStateCreateInfo{}
	inputAssemblyState.SType = vk.StructureTypePipelineInputAssemblyStateCreateInfo
	inputAssemblyState.Topology = g.PrimitiveTopology
	inputAssemblyState.PrimitiveRestartEnable = vk.False

	var viewportState = vk.PipelineViewportStateCreateInfo{}
	viewportState.SType = vk.StructureTypePipelineViewportStateCreateInfo
	viewportState.ViewportCount = 1
	viewportState.ScissorCount = 1

	var rasterState = vk.PipelineRasterizationStateCreateInfo{}
	rasterState.SType = vk.StructureTypePipelineRasterizationStateCreateInfo
	rasterState.DepthClampEnable = vk.False
	rasterState.RasterizerDiscardEnable = vk.False
	rasterState.PolygonMode = g.PolygonMode
	rasterState.LineWidth = 1.0
	rasterState.CullMode = vk.CullModeFlags(g.CullMode)
	rasterState.FrontFace = g.FrontFace
	rasterState.DepthBiasEnable = vk.False

	var multisampleState = vk.PipelineMultisampleStateCreateInfo{}
	multisampleState.SType = vk.StructureTypePipelineMultisampleStateCreateInfo
	multisampleState.SampleShadingEnable = vk.False
	multisampleState.RasterizationSamples = vk.SampleCount1Bit

	blendAttachments := g.BlendAttachments
	if len(blendAttachments) == 0 {
		for i := 0; i < g.ColorAttachments; i++ {
			blendAttachments = append(blendAttachments, vk.PipelineColorBlendAttachmentState{
				ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
				BlendEnable:    vk.False,
			})
		}
	}
	var colorBlendState = vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamic := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		PDynamicStates:    dynamic,
		DynamicStateCount: uint32(len(dynamic)),
	}

	var depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       boolean(g.DepthTestEnable),
		DepthWriteEnable:      boolean(g.DepthWriteEnable),
		DepthCompareOp:        g.DepthCompareOp,
		DepthBoundsTestEnable: vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
		StencilTestEnable:     vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PDepthStencilState:  &depthStencil,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterState,
		PMultisampleState:   &multisampleState,
		PColorBlendState:    &colorBlendState,
		PDynamicState:       &dynamicState,
		Layout:              g.layout.VKPipelineLayout,
		RenderPass:          g.renderPass.VKRenderPass,
		Subpass:             g.subpass,
	}

	pipelines := make([]vk.Pipeline, 1)
	err := vk.Error(vk.CreateGraphicsPipelines(d.VKDevice, g.ctx.PipelineCache.VKPipelineCache,
		1, []vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines))
	if err != nil {
		return nil, fmt.Errorf("graphics pipeline %s: %w", name, err)
	}
	d.SetObjectName(ObjectPipeline, unsafe.Pointer(pipelines[0]), name)

	return &Pipeline{
		Device:     d,
		Name:       name,
		VKPipeline: pipelines[0],
		Layout:     g.layout,
		BindPoint:  vk.PipelineBindPointGraphics,
	}, nil
}

type RenderPass struct {
	Device       *Device
	VKRenderPass vk.RenderPass
	// Attachments is the number of color attachments, excluding depth.
	Attachments int
}

func (r *RenderPass) Destroy() {
	vk.DestroyRenderPass(r.Device.VKDevice, r.VKRenderPass, nil)
}

// Attachment describes one render pass attachment.
type Attachment struct {
	Format  vk.Format
	LoadOp  vk.AttachmentLoadOp
	Initial vk.ImageLayout
	Final   vk.ImageLayout
}

type RenderPassOptions struct {
	Name   string
	Colors []Attachment
	// Depth is stored so that it can be sampled after the pass.
	Depth *Attachment
}

// CreateRenderPass creates a single subpass render pass with an external
// dependency ordering earlier color and depth writes before it.
func (c *Context) CreateRenderPass(opts RenderPassOptions) (*RenderPass, error) {
	d := c.Device
	attachmentDescriptions := make([]vk.AttachmentDescription, 0, len(opts.Colors)+1)
	colorAttachments := make([]vk.AttachmentReference, 0, len(opts.Colors))
	for i, a := range opts.Colors {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         a.LoadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.Initial,
			FinalLayout:    a.Final,
		})
		colorAttachments = append(colorAttachments, vk.AttachmentReference{
			Attachment: uint32(i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		})
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: uint32(len(colorAttachments)),
		PColorAttachments:    colorAttachments,
	}
	if opts.Depth != nil {
		attachmentDescriptions = append(attachmentDescriptions, vk.AttachmentDescription{
			Format:         opts.Depth.Format,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         opts.Depth.LoadOp,
			StoreOp:        vk.AttachmentStoreOpStore,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  opts.Depth.Initial,
			FinalLayout:    opts.Depth.Final,
		})
		subpass.PDepthStencilAttachment = &vk.AttachmentReference{
			Attachment: uint32(len(opts.Colors)),
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}

	dependency := vk.SubpassDependency{
		SrcSubpass: vk.SubpassExternal,
		DstSubpass: 0,
		SrcStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit |
			vk.PipelineStageComputeShaderBit | vk.PipelineStageTransferBit | vk.PipelineStageLateFragmentTestsBit),
		SrcAccessMask: vk.AccessFlags(vk.AccessShaderWriteBit | vk.AccessTransferWriteBit |
			vk.AccessColorAttachmentWriteBit | vk.AccessDepthStencilAttachmentWriteBit),
		DstStageMask: vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit |
			vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
	}

	renderPassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachmentDescriptions)),
		PAttachments:    attachmentDescriptions,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	var renderPass vk.RenderPass
	err := vk.Error(vk.CreateRenderPass(d.VKDevice, &renderPassCreateInfo, nil, &renderPass))
	if err != nil {
		return nil, fmt.Errorf("render pass %s: %w", opts.Name, err)
	}
	d.SetObjectName(ObjectRenderPass, unsafe.Pointer(renderPass), opts.Name)
	return &RenderPass{Device: d, VKRenderPass: renderPass, Attachments: len(opts.Colors)}, nil
}

type Framebuffer struct {
	Device        *Device
	VKFramebuffer vk.Framebuffer
	Extent        vk.Extent2D
}

func (f *Framebuffer) Destroy() {
	vk.DestroyFramebuffer(f.Device.VKDevice, f.VKFramebuffer, nil)
}

// CreateFramebuffer binds views, in attachment order, to rp.
func (c *Context) CreateFramebuffer(name string, rp *RenderPass, extent vk.Extent2D, views ...*ImageView) (*Framebuffer, error) {
	attachments := make([]vk.ImageView, len(views))
	for i, v := range views {
		attachments[i] = v.VKImageView
	}
	fbCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      rp.VKRenderPass,
		Layers:          1,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
	}
	var framebuffer vk.Framebuffer
	err := vk.Error(vk.CreateFramebuffer(c.Device.VKDevice, &fbCreateInfo, nil, &framebuffer))
	if err != nil {
		return nil, fmt.Errorf("framebuffer %s: %w", name, err)
	}
	c.Device.SetObjectName(ObjectFramebuffer, unsafe.Pointer(framebuffer), name)
	return &Framebuffer{Device: c.Device, VKFramebuffer: framebuffer, Extent: extent}, nil
}
