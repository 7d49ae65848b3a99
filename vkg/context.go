package vkg

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unsafe"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// ErrNoSuitableDevice is returned when no physical device supports ray
// queries, acceleration structures and buffer device addresses.
var ErrNoSuitableDevice = errors.New("no device with ray query support")

// RequiredDeviceExtensions are enabled on every logical device.
var RequiredDeviceExtensions = []string{
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_query",
	"VK_KHR_deferred_host_operations",
	"VK_KHR_spirv_1_4",
	"VK_KHR_shader_float_controls",
}

type ContextOptions struct {
	Name       string
	Validation bool
	// Window is optional; without it no surface or swapchain is created.
	Window *glfw.Window
	Width  uint32
	Height uint32
	// Device selects a physical device whose name contains it.
	Device string
}

// Context owns the Vulkan objects every pass shares: the device and its
// queues, command pools, the descriptor pool, the pipeline cache, the
// swapchain and default samplers. SetLoader must have been called first.
type Context struct {
	Options        ContextOptions
	Instance       *Instance
	PhysicalDevice *PhysicalDevice
	Device         *Device
	Surface        vk.Surface

	GraphicsQueue *Queue
	ComputeQueue  *Queue
	PresentQueue  *Queue
	GraphicsPool  *CommandPool
	ComputePool   *CommandPool

	DescriptorPool *DescriptorPool
	PipelineCache  *PipelineCache
	Swapchain      *Swapchain

	LinearSampler  *Sampler
	NearestSampler *Sampler
}

// Suitable returns nil when p can run the renderer, otherwise the reason
// it cannot.
func Suitable(p *PhysicalDevice, surface vk.Surface) error {
	if !p.Caps.RayTracing() {
		return fmt.Errorf("missing ray tracing features (address %v, acceleration structure %v, ray query %v)",
			p.Caps.BufferDeviceAddress, p.Caps.AccelerationStructure, p.Caps.RayQuery)
	}
	if !p.Caps.DescriptorIndexing {
		return fmt.Errorf("missing descriptor indexing")
	}
	want := RequiredDeviceExtensions
	if surface != vk.NullSurface {
		want = append([]string{"VK_KHR_swapchain"}, want...)
	}
	missing, err := p.MissingExtensions(want)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing extensions %s", strings.Join(missing, ", "))
	}
	qfs, err := p.QueueFamilies()
	if err != nil {
		return err
	}
	if len(qfs.FilterGraphics()) == 0 || len(qfs.FilterCompute()) == 0 {
		return fmt.Errorf("no graphics or compute queue")
	}
	if surface != vk.NullSurface && len(qfs.FilterPresent(surface)) == 0 {
		return fmt.Errorf("cannot present to surface")
	}
	return nil
}

// SelectPhysicalDevice picks the first suitable device, preferring
// discrete GPUs. A non empty name restricts the choice to devices whose
// name contains it.
func SelectPhysicalDevice(devices []*PhysicalDevice, surface vk.Surface, name string) (*PhysicalDevice, error) {
	candidates := make([]*PhysicalDevice, 0, len(devices))
	for _, p := range devices {
		if name != "" && !strings.Contains(strings.ToLower(p.DeviceName), strings.ToLower(name)) {
			continue
		}
		if err := Suitable(p, surface); err != nil {
			logger.Infof("skipping %s: %v", p.DeviceName, err)
			continue
		}
		candidates = append(candidates, p)
	}
	if len(candidates) == 0 {
		return nil, ErrNoSuitableDevice
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IsDiscrete() && !candidates[j].IsDiscrete()
	})
	return candidates[0], nil
}

// NewContext creates the instance, selects a device and creates
// everything the context owns. On failure everything created so far is
// released.
func NewContext(opts ContextOptions) (ctx *Context, err error) {
	c := &Context{Options: opts, Surface: vk.NullSurface}
	defer func() {
		if err != nil {
			c.Destroy()
		}
	}()

	app := &App{Name: opts.Name, EngineName: "hybrid", Version: Version{Major: 1}}
	if opts.Window != nil {
		for _, ext := range opts.Window.GetRequiredInstanceExtensions() {
			app.EnableExtension(ext)
		}
	}
	if opts.Validation {
		if err := app.EnableDebugging(); err != nil {
			logger.Warningf("validation unavailable: %v", err)
		}
	}

	c.Instance, err = app.CreateInstance()
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	if opts.Validation {
		if err := c.Instance.EnableDebugReport(); err != nil {
			logger.Warningf("debug report: %v", err)
		}
	}

	if opts.Window != nil {
		surface, err := opts.Window.CreateWindowSurface(c.Instance.VKInstance, nil)
		if err != nil {
			return nil, fmt.Errorf("create surface: %w", err)
		}
		c.Surface = vk.SurfaceFromPointer(surface)
	}

	devices, err := c.Instance.PhysicalDevices()
	if err != nil {
		return nil, fmt.Errorf("error getting devices: %w", err)
	}
	c.PhysicalDevice, err = SelectPhysicalDevice(devices, c.Surface, opts.Device)
	if err != nil {
		return nil, err
	}
	logger.Noticef("using %s", c.PhysicalDevice.DeviceName)

	if err = c.createDevice(); err != nil {
		return nil, err
	}

	c.GraphicsPool, err = c.Device.CreateCommandPool(c.GraphicsQueue.QueueFamily)
	if err != nil {
		return nil, err
	}
	c.ComputePool, err = c.Device.CreateCommandPool(c.ComputeQueue.QueueFamily)
	if err != nil {
		return nil, err
	}

	pool := &DescriptorPool{}
	pool.AddPoolSize(vk.DescriptorTypeUniformBuffer, 256).
		AddPoolSize(vk.DescriptorTypeStorageBuffer, 256).
		AddPoolSize(vk.DescriptorTypeCombinedImageSampler, 4096).
		AddPoolSize(vk.DescriptorTypeSampledImage, 4096).
		AddPoolSize(vk.DescriptorTypeSampler, 64).
		AddPoolSize(vk.DescriptorTypeStorageImage, 512).
		AddPoolSize(DescriptorTypeAS, 16)
	c.DescriptorPool, err = c.Device.CreateDescriptorPool(pool, 512)
	if err != nil {
		return nil, fmt.Errorf("descriptor pool: %w", err)
	}

	c.PipelineCache, err = c.Device.CreatePipelineCache()
	if err != nil {
		return nil, fmt.Errorf("pipeline cache: %w", err)
	}

	c.LinearSampler, err = c.Device.CreateSampler("sampler.linear", vk.FilterLinear, vk.SamplerAddressModeClampToEdge)
	if err != nil {
		return nil, err
	}
	c.NearestSampler, err = c.Device.CreateSampler("sampler.nearest", vk.FilterNearest, vk.SamplerAddressModeClampToEdge)
	if err != nil {
		return nil, err
	}

	if c.Surface != vk.NullSurface {
		if err = c.RecreateSwapchain(opts.Width, opts.Height); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Context) createDevice() error {
	qfs, err := c.PhysicalDevice.QueueFamilies()
	if err != nil {
		return fmt.Errorf("unable to load device queue families: %w", err)
	}

	graphics := qfs.FilterGraphics()
	if c.Surface != vk.NullSurface {
		if both := qfs.FilterGraphicsAndPresent(c.Surface); len(both) > 0 {
			graphics = both
		}
	}
	compute := qfs.FilterAsyncCompute()
	if len(compute) == 0 {
		compute = graphics
	}
	present := graphics
	if c.Surface != vk.NullSurface && !graphics[0].SupportsPresent(c.Surface) {
		present = qfs.FilterPresent(c.Surface)
	}

	unique := QueueFamilySlice{graphics[0]}
	for _, q := range []*QueueFamily{compute[0], present[0]} {
		dup := false
		for _, u := range unique {
			dup = dup || u.Index == q.Index
		}
		if !dup {
			unique = append(unique, q)
		}
	}

	extensions := RequiredDeviceExtensions
	if c.Surface != vk.NullSurface {
		extensions = append([]string{"VK_KHR_swapchain"}, extensions...)
	}
	c.Device, err = c.PhysicalDevice.CreateLogicalDevice(unique, extensions)
	if err != nil {
		return fmt.Errorf("unable to create device: %w", err)
	}

	c.GraphicsQueue = c.Device.GetQueue(graphics[0])
	c.ComputeQueue = c.Device.GetQueue(compute[0])
	c.PresentQueue = c.Device.GetQueue(present[0])
	logger.Debugf("queues graphics %d compute %d present %d", graphics[0].Index, compute[0].Index, present[0].Index)
	return nil
}

// RecreateSwapchain waits for the device and replaces the swapchain. The
// extent is used only when the surface does not dictate one.
func (c *Context) RecreateSwapchain(width, height uint32) error {
	if err := c.Device.WaitIdle(); err != nil {
		return err
	}
	old := c.Swapchain
	sc, err := c.Device.CreateSwapchain(c.Surface, c.GraphicsQueue, c.PresentQueue, CreateSwapchainOptions{
		OldSwapchain: old,
		ActualSize:   vk.Extent2D{Width: width, Height: height},
		Usage:        vk.ImageUsageTransferDstBit,
	})
	if err != nil {
		return err
	}
	if old != nil {
		old.Destroy()
	}
	c.Swapchain = sc
	return nil
}

// RecordCommand allocates a one-time command buffer from the graphics or
// compute pool and begins it.
func (c *Context) RecordCommand(compute bool) (*CommandBuffer, error) {
	pool := c.GraphicsPool
	if compute {
		pool = c.ComputePool
	}
	cmd, err := pool.AllocateBuffer()
	if err != nil {
		return nil, fmt.Errorf("allocate command buffer: %w", err)
	}
	if err := cmd.BeginOneTime(); err != nil {
		pool.FreeBuffer(cmd)
		return nil, err
	}
	return cmd, nil
}

// Flush ends cmd, submits it to the queue of its pool with a fresh fence,
// waits and frees both.
func (c *Context) Flush(cmd *CommandBuffer) error {
	defer cmd.Pool.FreeBuffer(cmd)
	if err := cmd.End(); err != nil {
		return err
	}
	fence, err := c.Device.CreateFence(false)
	if err != nil {
		return err
	}
	defer fence.Destroy()

	queue := c.GraphicsQueue
	if cmd.Pool == c.ComputePool {
		queue = c.ComputeQueue
	}
	if err := queue.SubmitWithFence(fence, cmd); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return fence.Wait()
}

// SetObjectName labels handle for validation messages and debuggers.
func (c *Context) SetObjectName(t ObjectType, handle unsafe.Pointer, name string) {
	c.Device.SetObjectName(t, handle, name)
}

// BlitToSwapchain scales mip 0 of tex onto swapchain image imageIndex.
// tex must be in TransferSrc and the image in TransferDst; the frame plan
// records both transitions and the release to PresentSrc.
func (c *Context) BlitToSwapchain(cmd *CommandBuffer, tex *Texture, imageIndex uint32) {
	filter := vk.FilterLinear
	if tex.Extent.Width == c.Swapchain.Extent.Width && tex.Extent.Height == c.Swapchain.Extent.Height {
		filter = vk.FilterNearest
	}
	cmd.Blit(tex, c.Swapchain.Images[imageIndex], c.Swapchain.Extent, filter)
}

// Destroy releases everything in reverse creation order. It is safe on a
// partially constructed context.
func (c *Context) Destroy() {
	if c.Device != nil {
		c.Device.WaitIdle()
	}
	for _, s := range []*Sampler{c.NearestSampler, c.LinearSampler} {
		if s != nil {
			s.Destroy()
		}
	}
	if c.Swapchain != nil {
		c.Swapchain.Destroy()
	}
	if c.PipelineCache != nil {
		c.PipelineCache.Destroy()
	}
	if c.DescriptorPool != nil {
		c.DescriptorPool.Destroy()
	}
	for _, p := range []*CommandPool{c.ComputePool, c.GraphicsPool} {
		if p != nil {
			p.Destroy()
		}
	}
	if c.Device != nil {
		if n := c.Device.Allocated(); n > 0 {
			logger.Warningf("%d bytes of device memory still allocated", n)
		}
		c.Device.Destroy()
	}
	if c.Instance != nil {
		if c.Surface != vk.NullSurface {
			vk.DestroySurface(c.Instance.VKInstance, c.Surface, nil)
		}
		c.Instance.Destroy()
	}
}
