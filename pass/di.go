package pass

import (
	units "github.com/docker/go-units"
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/restir"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// HDRFormat is the format of every radiance image.
const HDRFormat = vk.FormatR16g16b16a16Sfloat

// diPush is shared by the three direct illumination kernels.
type diPush struct {
	Temporal    uint64
	Passthrough uint64
	Spatial     uint64

	Frame           uint32
	Candidates      uint32
	MCap            uint32
	SpatialSamples  uint32
	SpatialRadius   float32
	NormalThreshold float32
	DepthThreshold  float32
	Scale           uint32
	// UseSpatial selects the reservoir the composite step reads.
	UseSpatial uint32
	_          uint32
}

// RayTracedDI is ReSTIR direct illumination: a temporal step streaming
// new candidates into the reprojected reservoir, an optional spatial
// reuse step and a composite step tracing the final shadow ray.
type RayTracedDI struct {
	Options *DIOptions

	// Reservoir buffers. Temporal carries the history between frames.
	Temporal    *vkg.Buffer
	Passthrough *vkg.Buffer
	Spatial     *vkg.Buffer
	Output      *vkg.Texture

	layout    *vkg.DescriptorSetLayout
	set       *vkg.DescriptorSet
	temporal  *kernel
	spatial   *kernel
	composite *kernel

	// scale is fixed at creation; it also selects the GBuffer mip.
	scale uint32
	env   *Env
}

func NewRayTracedDI(env *Env, opts *DIOptions) (_ *RayTracedDI, err error) {
	d := &RayTracedDI{Options: opts, env: env}
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()
	d.scale = gbufferMip(opts.Scale, env.Extent.Width, env.Extent.Height)
	w, h := env.scaled(d.scale)
	size := restir.BufferSize(w, h)
	usage := vk.BufferUsageStorageBufferBit | vkg.BufferUsageDeviceAddress
	if d.Temporal, err = env.Ctx.CreateBuffer(schedule.DITemporal, size, usage, vkg.GPUOnly); err != nil {
		return nil, err
	}
	if d.Passthrough, err = env.Ctx.CreateBuffer(schedule.DIPassthrough, size, usage, vkg.GPUOnly); err != nil {
		return nil, err
	}
	if d.Spatial, err = env.Ctx.CreateBuffer(schedule.DISpatial, size, usage, vkg.GPUOnly); err != nil {
		return nil, err
	}
	if d.Output, err = env.storageImage(schedule.DIOutput, w, h, HDRFormat); err != nil {
		return nil, err
	}

	if d.layout, err = env.layout("di", vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := env.sets(d.layout, 1)
	if err != nil {
		return nil, err
	}
	d.set = sets[0]
	vkg.NewDescriptorWriter().
		Image(0, vk.DescriptorTypeStorageImage, storage(d.Output)).
		Update(d.set)

	push := uint32(sizeOf[diPush]())
	if d.temporal, err = env.kernel("di.temporal", "restir_di.hlsl", "Temporal", nil, push, d.layout); err != nil {
		return nil, err
	}
	if d.spatial, err = env.kernel("di.spatial", "restir_di.hlsl", "Spatial", nil, push, d.layout); err != nil {
		return nil, err
	}
	if d.composite, err = env.kernel("di.composite", "restir_di.hlsl", "Composite", nil, push, d.layout); err != nil {
		return nil, err
	}
	logger.Debugf("di: %dx%d at scale %d, 3 reservoir buffers of %s each", w, h, d.scale, units.BytesSize(float64(size)))
	return d, nil
}

// Init empties the reservoirs and clears the output.
func (d *RayTracedDI) Init(cmd *vkg.CommandBuffer) {
	for _, b := range []*vkg.Buffer{d.Temporal, d.Passthrough, d.Spatial} {
		cmd.FillBuffer(b, 0, b.Size, 0)
		cmd.BufferBarrier(b, vk.PipelineStageTransferBit, vk.AccessTransferWriteBit,
			vk.PipelineStageComputeShaderBit, vk.AccessShaderReadBit|vk.AccessShaderWriteBit)
	}
	clearTextures(cmd, [4]float32{}, d.Output)
}

func (d *RayTracedDI) constants(f *Frame) diPush {
	o := d.Options
	p := diPush{
		Temporal:        d.Temporal.Address,
		Passthrough:     d.Passthrough.Address,
		Spatial:         d.Spatial.Address,
		Frame:           f.Number,
		Candidates:      o.Candidates,
		MCap:            o.MCap,
		SpatialSamples:  o.SpatialSamples,
		SpatialRadius:   o.SpatialRadius,
		NormalThreshold: o.NormalThreshold,
		DepthThreshold:  o.DepthThreshold,
		Scale:           d.scale,
	}
	if f.Plan != nil && f.Plan.Has(schedule.NodeDISpatial) {
		p.UseSpatial = 1
	}
	return p
}

func (d *RayTracedDI) push(f *Frame) []byte {
	p := d.constants(f)
	return vkg.ValueBytes(&p)
}

func (d *RayTracedDI) Draw(f *Frame) {
	if !f.Plan.Has(schedule.NodeDITemporal) {
		return
	}
	push := d.push(f)
	w, h := d.Output.Extent.Width, d.Output.Extent.Height
	if f.Node(schedule.NodeDITemporal) {
		d.temporal.dispatch(f, d.set, push, w, h, 8, 8)
	}
	if f.Node(schedule.NodeDISpatial) {
		d.spatial.dispatch(f, d.set, push, w, h, 8, 8)
	}
	if f.Node(schedule.NodeDIComposite) {
		d.composite.dispatch(f, d.set, push, w, h, 8, 8)
	}
}

func (d *RayTracedDI) Register(r Resources) {
	r.Buffer(schedule.DITemporal, d.Temporal)
	r.Buffer(schedule.DIPassthrough, d.Passthrough)
	r.Buffer(schedule.DISpatial, d.Spatial)
	r.Image(schedule.DIOutput, d.Output)
}

func (d *RayTracedDI) DrawUI() {
	if !imgui.CollapsingHeader("Direct illumination") {
		return
	}
	o := d.Options
	imgui.Checkbox("Enabled##di", &o.Enabled)
	imgui.Checkbox("Spatial reuse##di", &o.Spatial)
	sliderUint("Candidates##di", &o.Candidates, 1, 64)
	sliderUint("History cap##di", &o.MCap, 1, 64)
	sliderUint("Spatial samples##di", &o.SpatialSamples, 1, 16)
	imgui.SliderFloat("Spatial radius##di", &o.SpatialRadius, 1, 64)
	imgui.SliderFloat("Normal threshold##di", &o.NormalThreshold, 0, 1)
	imgui.SliderFloat("Depth threshold##di", &o.DepthThreshold, 0, 1)
}

func (d *RayTracedDI) Destroy() {
	d.composite.Destroy()
	d.spatial.Destroy()
	d.temporal.Destroy()
	d.env.freeSets(d.set)
	if d.layout != nil {
		d.layout.Destroy()
	}
	destroyTextures(d.Output)
	destroyBuffers(d.Spatial, d.Passthrough, d.Temporal)
}
