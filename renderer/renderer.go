package renderer

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/inkyblackness/imgui-go"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/gpuscene"
	"github.com/celer/hybrid/internal/fsr"
	"github.com/celer/hybrid/pass"
	"github.com/celer/hybrid/scene"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/shader"
	"github.com/celer/hybrid/ui"
	"github.com/celer/hybrid/vkg"
)

// sizedPass is a pass whose images depend on the render extent. These are
// recreated together whenever the swapchain or the FSR quality changes.
type sizedPass interface {
	Init(cmd *vkg.CommandBuffer)
	Register(r pass.Resources)
	Destroy()
}

// inFlight is what one of the two frames in flight owns.
type inFlight struct {
	fence    *vkg.Fence
	acquired *vkg.Semaphore
	rendered *vkg.Semaphore
	cmd      *vkg.CommandBuffer
}

// Renderer records and presents the hybrid frame. All methods must be
// called from the goroutine owning the window.
type Renderer struct {
	Options Options
	Camera  *Camera
	Stats   *FrameStats

	settings pass.Settings
	window   *glfw.Window
	ctx      *vkg.Context
	shaders  *shader.Compiler
	scene    *gpuscene.Scene
	assets   *pass.SamplingAssets
	env      *pass.Env
	overlay  *ui.Overlay

	gbuffer    *pass.GBuffer
	di         *pass.RayTracedDI
	reflection *pass.RayTracedReflection
	shadow     *pass.RayTracedShadow
	ao         *pass.RayTracedAO
	gi         *pass.RayTracedGI
	composite  *pass.Composite
	taa        *pass.TAA
	tonemap    *pass.Tonemap
	fsr        *pass.FSR
	passes     []sizedPass

	plans     *schedule.Cache
	resources pass.Resources
	swapchain []*vkg.Texture
	frames    [2]inFlight
	parity    fg.Parity
	frame     uint32
	rebuild   bool
}

// New loads the scene, creates the device context for window and every
// pass. On failure everything created so far is released.
func New(window *glfw.Window, opts Options) (_ *Renderer, err error) {
	host, err := scene.Load(opts.Scene, opts.LightLoading)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	r := &Renderer{
		Options:  opts,
		Camera:   NewCamera(host.Camera),
		settings: opts.Settings,
		window:   window,
		plans:    schedule.NewCache(),
	}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()

	r.ctx, err = vkg.NewContext(vkg.ContextOptions{
		Name:       "hybrid",
		Validation: opts.Validation,
		Window:     window,
		Width:      opts.Width,
		Height:     opts.Height,
		Device:     opts.Device,
	})
	if err != nil {
		return nil, err
	}
	r.shaders = shader.NewCompiler(opts.Shader)

	if r.scene, err = gpuscene.New(r.ctx, host); err != nil {
		return nil, fmt.Errorf("upload scene: %w", err)
	}
	if r.assets, err = pass.LoadSamplingAssets(r.ctx, opts.AssetDir); err != nil {
		return nil, fmt.Errorf("sampling assets: %w", err)
	}
	r.env = &pass.Env{
		Ctx:       r.ctx,
		Shaders:   r.shaders,
		ShaderDir: opts.ShaderDir,
		Scene:     r.scene,
		Assets:    r.assets,
	}

	r.wrapSwapchain()
	if err = r.createPasses(); err != nil {
		return nil, err
	}
	if r.overlay, err = ui.NewOverlay(r.ctx, window, r.env, r.Camera); err != nil {
		return nil, fmt.Errorf("ui: %w", err)
	}
	r.overlay.Visible = r.settings.UI
	if err = r.createFrames(); err != nil {
		return nil, err
	}
	if r.Stats, err = newFrameStats(r.ctx.Device); err != nil {
		return nil, err
	}
	logger.Noticef("rendering %s at %dx%d for %dx%d", opts.Scene,
		r.env.Extent.Width, r.env.Extent.Height, r.env.Display.Width, r.env.Display.Height)
	return r, nil
}

func (r *Renderer) wrapSwapchain() {
	sc := r.ctx.Swapchain
	r.swapchain = r.swapchain[:0]
	for i := range sc.Images {
		r.swapchain = append(r.swapchain, swapchainTexture(sc, i))
	}
}

// createPasses creates every size dependent pass for the current
// swapchain, registers their resources, wires their inputs and clears
// their images.
func (r *Renderer) createPasses() (err error) {
	env, s := r.env, &r.settings
	env.Display = r.ctx.Swapchain.Extent
	w, h := fsr.RenderExtent(env.Display.Width, env.Display.Height, s.FSR.Quality)
	env.Extent = vk.Extent2D{Width: w, Height: h}

	add := func(p sizedPass) { r.passes = append(r.passes, p) }
	if r.gbuffer, err = pass.NewGBuffer(env); err != nil {
		return fmt.Errorf("gbuffer: %w", err)
	}
	add(r.gbuffer)
	if r.di, err = pass.NewRayTracedDI(env, &s.DI); err != nil {
		return fmt.Errorf("direct illumination: %w", err)
	}
	add(r.di)
	if r.reflection, err = pass.NewRayTracedReflection(env, &s.Reflection); err != nil {
		return fmt.Errorf("reflection: %w", err)
	}
	add(r.reflection)
	if r.shadow, err = pass.NewRayTracedShadow(env, &s.Shadow); err != nil {
		return fmt.Errorf("shadow: %w", err)
	}
	add(r.shadow)
	if r.ao, err = pass.NewRayTracedAO(env, &s.AO); err != nil {
		return fmt.Errorf("ao: %w", err)
	}
	add(r.ao)
	if r.gi, err = pass.NewRayTracedGI(env, &s.GI); err != nil {
		return fmt.Errorf("gi: %w", err)
	}
	add(r.gi)
	if r.composite, err = pass.NewComposite(env, &s.Display); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	add(r.composite)
	if r.taa, err = pass.NewTAA(env, &s.TAA); err != nil {
		return fmt.Errorf("taa: %w", err)
	}
	add(r.taa)
	if r.tonemap, err = pass.NewTonemap(env, &s.Tonemap); err != nil {
		return fmt.Errorf("tonemap: %w", err)
	}
	add(r.tonemap)
	if r.fsr, err = pass.NewFSR(env, &s.FSR); err != nil {
		return fmt.Errorf("fsr: %w", err)
	}
	add(r.fsr)

	r.resources = make(pass.Resources)
	for _, p := range r.passes {
		p.Register(r.resources)
	}
	r.wire()

	cmd, err := r.ctx.RecordCommand(false)
	if err != nil {
		return err
	}
	for _, p := range r.passes {
		p.Init(cmd)
	}
	return r.ctx.Flush(cmd)
}

// wire binds the outputs of each pass to the inputs of the next.
func (r *Renderer) wire() {
	r.composite.Update(pass.CompositeInputs{
		DI:         r.di.Output,
		Reflection: r.reflection.Output,
		Shadow:     r.shadow.Output,
		AO:         r.ao.Output,
		GI:         r.gi.Output,
	})
	r.taa.Update(r.composite.Output)
	r.tonemap.Update(r.taa.History)
	r.fsr.Update(r.tonemap.Output)
}

func (r *Renderer) destroyPasses() {
	for i := len(r.passes) - 1; i >= 0; i-- {
		r.passes[i].Destroy()
	}
	r.passes = nil
	r.env.GBuffer = nil
}

func (r *Renderer) createFrames() error {
	d := r.ctx.Device
	for k := range r.frames {
		f := &r.frames[k]
		var err error
		if f.fence, err = d.CreateFence(true); err != nil {
			return err
		}
		if f.acquired, err = d.CreateSemaphore(); err != nil {
			return err
		}
		if f.rendered, err = d.CreateSemaphore(); err != nil {
			return err
		}
		if f.cmd, err = r.ctx.GraphicsPool.AllocateBuffer(); err != nil {
			return err
		}
	}
	return nil
}

// renewSemaphores replaces the semaphores of both frames. A suboptimal
// acquire leaves its semaphore signalled with nothing waiting on it.
func (r *Renderer) renewSemaphores() error {
	d := r.ctx.Device
	for k := range r.frames {
		f := &r.frames[k]
		f.acquired.Destroy()
		f.rendered.Destroy()
		var err error
		if f.acquired, err = d.CreateSemaphore(); err != nil {
			return err
		}
		if f.rendered, err = d.CreateSemaphore(); err != nil {
			return err
		}
	}
	return nil
}

// Rebuild recreates the swapchain at the window's framebuffer size and
// every size dependent pass. It blocks while the window is minimized.
func (r *Renderer) Rebuild() error {
	w, h := r.window.GetFramebufferSize()
	for (w == 0 || h == 0) && !r.window.ShouldClose() {
		glfw.WaitEvents()
		w, h = r.window.GetFramebufferSize()
	}
	if r.window.ShouldClose() {
		return nil
	}
	if err := r.ctx.RecreateSwapchain(uint32(w), uint32(h)); err != nil {
		return fmt.Errorf("recreate swapchain: %w", err)
	}
	r.wrapSwapchain()
	r.destroyPasses()
	if err := r.createPasses(); err != nil {
		return err
	}
	if err := r.overlay.Resize(); err != nil {
		return err
	}
	if err := r.renewSemaphores(); err != nil {
		return err
	}
	// Histories were cleared.
	r.restart()
	r.rebuild = false
	logger.Infof("rebuilt at %dx%d, rendering at %dx%d", r.env.Display.Width, r.env.Display.Height,
		r.env.Extent.Width, r.env.Extent.Height)
	return nil
}

// Frame records, submits and presents one frame. An out of date
// swapchain is rebuilt, skipping the frame when it is found at acquire.
func (r *Renderer) Frame() error {
	if r.rebuild {
		if err := r.Rebuild(); err != nil {
			return err
		}
	}
	k := r.parity.Write()
	f := &r.frames[k]

	if err := f.fence.Wait(); err != nil {
		return fmt.Errorf("wait frame %d: %w", r.frame, err)
	}
	r.Stats.collect(k)

	image, err := r.ctx.Swapchain.AcquireNextImage(f.acquired)
	if errors.Is(err, ErrOutOfDate) {
		return r.Rebuild()
	}
	if err != nil {
		return err
	}
	if err := f.fence.Reset(); err != nil {
		return err
	}

	if r.overlay.Visible {
		r.overlay.BeginFrame()
		r.drawUI()
		r.overlay.EndFrame()
	}
	r.settings.UI = r.overlay.Visible
	r.Camera.Jitter = r.settings.TAA

	globals := r.Camera.Globals(r.frame, r.env.Extent.Width, r.env.Extent.Height)
	r.gbuffer.WriteGlobals(r.parity, &globals)
	if err := r.fsr.Prepare(k); err != nil {
		return err
	}
	plan, err := r.plans.Plan(r.settings.Toggles(), r.parity)
	if err != nil {
		return err
	}

	if err := r.record(f.cmd, plan, image); err != nil {
		return err
	}

	err = r.ctx.GraphicsQueue.Submit(f.fence, vkg.Submission{
		Buffers:    []*vkg.CommandBuffer{f.cmd},
		Wait:       []vk.Semaphore{f.acquired.VKSemaphore},
		WaitStages: []vk.PipelineStageFlags{vk.PipelineStageFlags(pipelineStage(fg.AcquireWaitStage()))},
		Signal:     []vk.Semaphore{f.rendered.VKSemaphore},
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	err = r.ctx.Swapchain.Present(r.ctx.PresentQueue, image, f.rendered)

	r.advance()
	if errors.Is(err, ErrOutOfDate) {
		return r.Rebuild()
	}
	return err
}

// advance ends frame r.frame. After frame k the read slot is k&1 and the
// next frame writes the other one.
func (r *Renderer) advance() {
	r.parity = r.parity.Next()
	r.frame++
}

// restart makes the next frame number 0, writing slot 0.
func (r *Renderer) restart() {
	r.frame = 0
	r.parity = fg.ParityOf(0)
}

// record records plan into cmd for swapchain image image.
func (r *Renderer) record(cmd *vkg.CommandBuffer, plan *fg.Plan, image uint32) error {
	k := plan.Parity.Write()
	if err := cmd.Reset(); err != nil {
		return err
	}
	if err := cmd.Begin(); err != nil {
		return err
	}
	r.resources[schedule.Swapchain] = pass.Resource{Texture: r.swapchain[image]}
	r.Stats.begin(cmd, k)

	var barrierErr error
	frame := &pass.Frame{
		Cmd:    cmd,
		Parity: plan.Parity,
		Number: r.frame,
		Plan:   plan,
		Enter: func(node string) {
			r.Stats.enter(cmd, k, node)
			if err := recordBarriers(cmd, r.resources, plan.Before(node)); err != nil && barrierErr == nil {
				barrierErr = fmt.Errorf("node %s: %w", node, err)
			}
		},
	}

	r.gbuffer.Draw(frame)
	r.di.Draw(frame)
	r.reflection.Draw(frame)
	r.shadow.Draw(frame)
	r.ao.Draw(frame)
	r.gi.Draw(frame)
	r.composite.Draw(frame)
	r.taa.Draw(frame)
	r.tonemap.Draw(frame)
	r.fsr.Draw(frame)
	if frame.Node(schedule.NodeBlit) {
		r.ctx.BlitToSwapchain(cmd, r.fsr.Output, image)
	}
	if frame.Node(schedule.NodeUI) {
		if err := r.overlay.Render(cmd, k, image); err != nil {
			return err
		}
	}
	r.Stats.end(cmd, k)
	if barrierErr != nil {
		return barrierErr
	}
	if err := recordBarriers(cmd, r.resources, plan.Epilogue); err != nil {
		return err
	}
	return cmd.End()
}

func (r *Renderer) drawUI() {
	imgui.Begin("Hybrid")
	imgui.Text(fmt.Sprintf("frame %d, GPU %s", r.frame, fmtMillis(r.Stats.Total())))
	if imgui.CollapsingHeader("Timings") {
		for _, name := range r.Stats.order {
			imgui.Text(fmt.Sprintf("%-24s %s", name, fmtMillis(r.Stats.Node(name))))
		}
	}
	r.composite.DrawUI()
	r.di.DrawUI()
	r.reflection.DrawUI()
	r.shadow.DrawUI()
	r.ao.DrawUI()
	r.gi.DrawUI()
	r.taa.DrawUI()
	r.tonemap.DrawUI()
	if r.fsr.DrawUI() {
		r.rebuild = true
	}
	imgui.End()
}

// Run renders until the window is closed and logs the GPU timings.
func (r *Renderer) Run() error {
	for !r.window.ShouldClose() {
		glfw.PollEvents()
		if !r.overlay.WantMouse() {
			r.Camera.Cursor(r.window.GetCursorPos())
		}
		if err := r.Frame(); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	r.Stats.Report(&buf)
	logger.Noticef("frame statistics\n%s", buf.String())
	return nil
}

// Destroy waits for the device and releases everything in reverse
// creation order. It is safe on a partially constructed renderer.
func (r *Renderer) Destroy() {
	if r.ctx == nil {
		return
	}
	r.ctx.Device.WaitIdle()
	if r.Stats != nil {
		r.Stats.Destroy()
	}
	for k := range r.frames {
		f := &r.frames[k]
		if f.cmd != nil {
			r.ctx.GraphicsPool.FreeBuffer(f.cmd)
		}
		for _, s := range []*vkg.Semaphore{f.rendered, f.acquired} {
			if s != nil {
				s.Destroy()
			}
		}
		if f.fence != nil {
			f.fence.Destroy()
		}
	}
	if r.overlay != nil {
		r.overlay.Destroy()
	}
	if r.env != nil {
		r.destroyPasses()
	}
	if r.assets != nil {
		r.assets.Destroy()
	}
	if r.scene != nil {
		r.scene.Destroy()
	}
	r.ctx.Destroy()
	r.ctx = nil
}
