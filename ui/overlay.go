// Package ui draws the immediate mode settings overlay on top of the
// presented image.
package ui

import (
	"fmt"
	"unsafe"

	"github.com/inkyblackness/imgui-go"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/log"
	"github.com/celer/hybrid/shader"
	"github.com/celer/hybrid/vkg"
)

var logger = log.New("ui")

// Compiler compiles the overlay shaders.
type Compiler interface {
	Compile(file string, stage shader.Stage, entry string, defines map[string]string) ([]byte, error)
}

type pushConstants struct {
	Scale     [2]float32
	Translate [2]float32
}

// Overlay owns the imgui context and renders its draw lists into the
// swapchain image with a load-op-load render pass. Vertex and index
// buffers exist per frame in flight and grow on demand.
type Overlay struct {
	Visible bool

	ctx    *vkg.Context
	window *glfw.Window
	imctx  *imgui.Context
	io     imgui.IO

	renderPass   *vkg.RenderPass
	framebuffers []*vkg.Framebuffer

	setLayout *vkg.DescriptorSetLayout
	set       *vkg.DescriptorSet
	layout    *vkg.PipelineLayout
	pipeline  *vkg.Pipeline
	font      *vkg.Texture

	vertices [2]*vkg.Buffer
	indices  [2]*vkg.Buffer

	time             float64
	mouseJustPressed [3]bool
	wantMouse        bool
	wantKeyboard     bool
}

// NewOverlay creates the overlay for the context's swapchain and installs
// the window callbacks. Uncaptured input is forwarded to next.
func NewOverlay(ctx *vkg.Context, window *glfw.Window, compiler Compiler, next Input) (_ *Overlay, err error) {
	o := &Overlay{Visible: true, ctx: ctx, window: window}
	o.imctx = imgui.CreateContext(nil)
	o.io = imgui.CurrentIO()
	defer func() {
		if err != nil {
			o.Destroy()
		}
	}()
	o.setKeyMapping()

	if err = o.createFont(); err != nil {
		return nil, err
	}
	if err = o.createPipeline(compiler); err != nil {
		return nil, err
	}
	if err = o.Resize(); err != nil {
		return nil, err
	}
	o.install(next)
	return o, nil
}

func (o *Overlay) createFont() error {
	tex := o.io.Fonts().TextureDataRGBA32()
	pixels := unsafe.Slice((*byte)(tex.Pixels), tex.Width*tex.Height*4)
	font, err := o.ctx.UploadTextureData(vkg.TextureOptions{
		Name:   "imgui.font",
		Width:  uint32(tex.Width),
		Height: uint32(tex.Height),
		Format: vk.FormatR8g8b8a8Unorm,
	}, pixels)
	if err != nil {
		return fmt.Errorf("imgui font: %w", err)
	}
	o.font = font
	return nil
}

func (o *Overlay) createPipeline(compiler Compiler) error {
	c := o.ctx
	var err error
	o.renderPass, err = c.CreateRenderPass(vkg.RenderPassOptions{
		Name: "imgui",
		Colors: []vkg.Attachment{{
			Format:  c.Swapchain.Format,
			LoadOp:  vk.AttachmentLoadOpLoad,
			Initial: vk.ImageLayoutColorAttachmentOptimal,
			Final:   vk.ImageLayoutColorAttachmentOptimal,
		}},
	})
	if err != nil {
		return err
	}

	o.setLayout, err = c.NewDescriptorLayout().Name("imgui").
		Binding(0, vk.DescriptorTypeCombinedImageSampler, 1, vk.ShaderStageFragmentBit).
		Create()
	if err != nil {
		return err
	}
	sets, err := c.AllocateDescriptorSets(o.setLayout)
	if err != nil {
		return err
	}
	o.set = sets[0]
	vkg.NewDescriptorWriter().
		Image(0, vk.DescriptorTypeCombinedImageSampler, o.font.Info(vk.ImageLayoutShaderReadOnlyOptimal, c.LinearSampler)).
		Update(o.set)

	push := uint32(unsafe.Sizeof(pushConstants{}))
	o.layout, err = c.CreatePipelineLayout("imgui", vkg.PushRange(vk.ShaderStageVertexBit, push), o.setLayout)
	if err != nil {
		return err
	}

	vs, err := compiler.Compile("imgui.hlsl", shader.Vertex, "VSMain", nil)
	if err != nil {
		return err
	}
	ps, err := compiler.Compile("imgui.hlsl", shader.Fragment, "PSMain", nil)
	if err != nil {
		return err
	}
	vertexSize, posOffset, uvOffset, colOffset := imgui.VertexBufferLayout()
	o.pipeline, err = c.NewGraphicsPipeline(o.layout).
		Shader(vk.ShaderStageVertexBit, vs, "VSMain").
		Shader(vk.ShaderStageFragmentBit, ps, "PSMain").
		RenderPass(o.renderPass, 0).
		VertexBinding(0, uint32(vertexSize)).
		Attribute(0, 0, vk.FormatR32g32Sfloat, uint32(posOffset)).
		Attribute(1, 0, vk.FormatR32g32Sfloat, uint32(uvOffset)).
		Attribute(2, 0, vk.FormatR8g8b8a8Unorm, uint32(colOffset)).
		SetCullMode(vk.CullModeNone).
		Depth(false, false).
		AddBlendAttachment(vkg.AlphaBlend()).
		Create("imgui")
	return err
}

// Resize recreates the framebuffers over the current swapchain views.
func (o *Overlay) Resize() error {
	o.destroyFramebuffers()
	sc := o.ctx.Swapchain
	for i, view := range sc.Views {
		fb, err := o.ctx.CreateFramebuffer(fmt.Sprintf("imgui.%d", i), o.renderPass, sc.Extent, view)
		if err != nil {
			return err
		}
		o.framebuffers = append(o.framebuffers, fb)
	}
	return nil
}

func (o *Overlay) destroyFramebuffers() {
	for _, fb := range o.framebuffers {
		fb.Destroy()
	}
	o.framebuffers = nil
}

// BeginFrame feeds input and starts a new imgui frame. Widgets may be
// submitted until EndFrame.
func (o *Overlay) BeginFrame() {
	o.newInput()
	e := o.ctx.Swapchain.Extent
	o.io.SetDisplaySize(imgui.Vec2{X: float32(e.Width), Y: float32(e.Height)})
	imgui.NewFrame()
}

// EndFrame finalizes the draw lists.
func (o *Overlay) EndFrame() {
	imgui.Render()
}

// ensure grows the buffer in slot to hold size bytes.
func (o *Overlay) ensure(slot **vkg.Buffer, name string, size uint64, usage vk.BufferUsageFlagBits) error {
	if *slot != nil && (*slot).Size >= size {
		return nil
	}
	capacity := size
	if *slot != nil {
		if c := 2 * (*slot).Size; c > capacity {
			capacity = c
		}
		(*slot).Destroy()
		*slot = nil
	}
	b, err := o.ctx.CreateBuffer(name, capacity, usage, vkg.CPUToGPU)
	if err != nil {
		return err
	}
	*slot = b
	return nil
}

// scissor converts an imgui clip rectangle to a scissor inside extent.
func scissor(clip imgui.Vec4, extent vk.Extent2D) (vk.Rect2D, bool) {
	clamp := func(v float32, max uint32) int32 {
		if v < 0 {
			return 0
		}
		if v > float32(max) {
			return int32(max)
		}
		return int32(v)
	}
	x0, y0 := clamp(clip.X, extent.Width), clamp(clip.Y, extent.Height)
	x1, y1 := clamp(clip.Z, extent.Width), clamp(clip.W, extent.Height)
	if x1 <= x0 || y1 <= y0 {
		return vk.Rect2D{}, false
	}
	return vk.Rect2D{
		Offset: vk.Offset2D{X: x0, Y: y0},
		Extent: vk.Extent2D{Width: uint32(x1 - x0), Height: uint32(y1 - y0)},
	}, true
}

// projection maps imgui display coordinates to clip space.
func projection(width, height uint32) pushConstants {
	return pushConstants{
		Scale:     [2]float32{2 / float32(width), 2 / float32(height)},
		Translate: [2]float32{-1, -1},
	}
}

// Render records the draw lists of the last EndFrame into swapchain image
// image. frame selects the vertex buffers and must be the parity whose
// fence was last waited on. The image must be in ColorAttachment layout.
func (o *Overlay) Render(cmd *vkg.CommandBuffer, frame int, image uint32) error {
	if !o.Visible {
		return nil
	}
	lists := imgui.RenderedDrawData().CommandLists()

	vertexSize, _, _, _ := imgui.VertexBufferLayout()
	indexSize := imgui.IndexBufferLayout()
	var vbytes, ibytes int
	for _, list := range lists {
		_, vn := list.VertexBuffer()
		_, in := list.IndexBuffer()
		vbytes += vn
		ibytes += in
	}
	if vbytes == 0 || ibytes == 0 {
		return nil
	}
	k := frame & 1
	if err := o.ensure(&o.vertices[k], fmt.Sprintf("imgui.vertices.%d", k), uint64(vbytes), vk.BufferUsageVertexBufferBit); err != nil {
		return err
	}
	if err := o.ensure(&o.indices[k], fmt.Sprintf("imgui.indices.%d", k), uint64(ibytes), vk.BufferUsageIndexBufferBit); err != nil {
		return err
	}
	var voff, ioff int
	for _, list := range lists {
		vp, vn := list.VertexBuffer()
		ip, in := list.IndexBuffer()
		copy(o.vertices[k].Mapped[voff:], unsafe.Slice((*byte)(vp), vn))
		copy(o.indices[k].Mapped[ioff:], unsafe.Slice((*byte)(ip), in))
		voff += vn
		ioff += in
	}

	indexType := vk.IndexTypeUint16
	if indexSize == 4 {
		indexType = vk.IndexTypeUint32
	}
	fb := o.framebuffers[image]
	cmd.BeginRenderPass(o.renderPass, fb, nil)
	cmd.BindPipeline(o.pipeline)
	cmd.BindDescriptorSets(o.pipeline, 0, o.set)
	push := projection(fb.Extent.Width, fb.Extent.Height)
	cmd.PushConstants(o.pipeline, vkg.ValueBytes(&push))
	cmd.BindVertexBuffer(o.vertices[k], 0)
	cmd.BindIndexBuffer(o.indices[k], 0, indexType)

	var vertexBase, indexBase int
	for _, list := range lists {
		_, vn := list.VertexBuffer()
		_, in := list.IndexBuffer()
		first := indexBase
		for _, c := range list.Commands() {
			if c.HasUserCallback() {
				c.CallUserCallback(list)
			} else if r, ok := scissor(c.ClipRect(), fb.Extent); ok {
				cmd.SetScissor(r)
				cmd.DrawIndexed(uint32(c.ElementCount()), uint32(first), int32(vertexBase), 0)
			}
			first += c.ElementCount()
		}
		vertexBase += vn / vertexSize
		indexBase += in / indexSize
	}
	cmd.EndRenderPass()
	return nil
}

func (o *Overlay) Destroy() {
	if o.window != nil {
		o.window.SetKeyCallback(nil)
		o.window.SetCharCallback(nil)
		o.window.SetMouseButtonCallback(nil)
		o.window.SetScrollCallback(nil)
	}
	for _, b := range append(o.vertices[:], o.indices[:]...) {
		if b != nil {
			b.Destroy()
		}
	}
	o.destroyFramebuffers()
	if o.pipeline != nil {
		o.pipeline.Destroy()
	}
	if o.layout != nil {
		o.layout.Destroy()
	}
	if o.set != nil {
		o.ctx.DescriptorPool.Free(o.set)
	}
	if o.setLayout != nil {
		o.setLayout.Destroy()
	}
	if o.renderPass != nil {
		o.renderPass.Destroy()
	}
	if o.font != nil {
		o.font.Destroy()
	}
	if o.imctx != nil {
		o.imctx.Destroy()
	}
	logger.Debug("overlay destroyed")
}
