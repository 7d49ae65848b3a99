package pass

import (
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/internal/imath"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

type rayPush struct {
	Frame  uint32
	Scale  uint32
	Radius float32
	// Alpha is the weight of the new sample in the temporal blend, 1
	// without accumulation.
	Alpha float32
}

// rayKind describes one user of denoisedRayPass.
type rayKind struct {
	name   string
	title  string
	shader string
	// raw is the format of the trace output, history the format of every
	// later image.
	raw     vk.Format
	history vk.Format
	// Shadow visibility is packed 32 pixels per texel, 8x4.
	packed bool
}

var (
	shadowKind = rayKind{name: schedule.Shadow, title: "Shadow", shader: "shadow.hlsl",
		raw: vk.FormatR32Uint, history: vk.FormatR16Sfloat, packed: true}
	aoKind = rayKind{name: schedule.AO, title: "Ambient occlusion", shader: "ao.hlsl",
		raw: vk.FormatR16Sfloat, history: vk.FormatR16Sfloat}
	giKind = rayKind{name: schedule.GI, title: "Global illumination", shader: "gi.hlsl",
		raw: HDRFormat, history: HDRFormat}
)

// ShadowMaskExtent is the size of the packed shadow mask covering a w x h
// image.
func ShadowMaskExtent(w, h uint32) (uint32, uint32) {
	return imath.DivCeil(w, 8), imath.DivCeil(h, 4)
}

// denoisedRayPass traces at reduced resolution, optionally accumulates the
// result over time, filters it with À-Trous and upsamples it to the
// render extent.
type denoisedRayPass struct {
	Options *RayOptions
	kind    rayKind
	scale   uint32

	Raw     *vkg.Texture
	History [2]*vkg.Texture
	Output  *vkg.Texture

	traceLayout    *vkg.DescriptorSetLayout
	traceSet       *vkg.DescriptorSet
	temporalLayout *vkg.DescriptorSetLayout
	temporalSets   [2]*vkg.DescriptorSet
	trace          *kernel
	temporal       *kernel
	denoiser       *denoiser
	upsampler      *upsampler

	env *Env
}

func (e *Env) newRayPass(kind rayKind, opts *RayOptions) (_ *denoisedRayPass, err error) {
	r := &denoisedRayPass{Options: opts, kind: kind, scale: opts.Scale, env: e}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()
	w, h := e.scaled(r.scale)
	rw, rh := w, h
	if kind.packed {
		rw, rh = ShadowMaskExtent(w, h)
	}
	if r.Raw, err = e.storageImage(schedule.RayRaw(kind.name), rw, rh, kind.raw); err != nil {
		return nil, err
	}
	for k := 0; k < 2; k++ {
		if r.History[k], err = e.storageImage(slot(schedule.RayHistory(kind.name), k), w, h, kind.history); err != nil {
			return nil, err
		}
	}
	if r.Output, err = e.storageImage(schedule.RayOutput(kind.name), e.Extent.Width, e.Extent.Height, kind.history); err != nil {
		return nil, err
	}

	if r.traceLayout, err = e.layout(kind.name+".trace", vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := e.sets(r.traceLayout, 1)
	if err != nil {
		return nil, err
	}
	r.traceSet = sets[0]
	vkg.NewDescriptorWriter().Image(0, vk.DescriptorTypeStorageImage, storage(r.Raw)).Update(r.traceSet)

	r.temporalLayout, err = e.layout(kind.name+".temporal",
		vk.DescriptorTypeCombinedImageSampler, // raw
		vk.DescriptorTypeCombinedImageSampler, // previous history
		vk.DescriptorTypeStorageImage)
	if err != nil {
		return nil, err
	}
	if sets, err = e.sets(r.temporalLayout, 2); err != nil {
		return nil, err
	}
	copy(r.temporalSets[:], sets)
	for k := 0; k < 2; k++ {
		vkg.NewDescriptorWriter().
			Image(0, vk.DescriptorTypeCombinedImageSampler, r.Raw.Info(vk.ImageLayoutShaderReadOnlyOptimal, e.Ctx.NearestSampler)).
			Image(1, vk.DescriptorTypeCombinedImageSampler, e.sampled(r.History[1-k])).
			Image(2, vk.DescriptorTypeStorageImage, storage(r.History[k])).
			Update(r.temporalSets[k])
	}

	var defines map[string]string
	if kind.packed {
		defines = map[string]string{"PACKED": "1"}
	}
	push := uint32(sizeOf[rayPush]())
	if r.trace, err = e.kernel(kind.name+".trace", kind.shader, "Trace", nil, push, r.traceLayout); err != nil {
		return nil, err
	}
	if r.temporal, err = e.kernel(kind.name+".temporal", "temporal.hlsl", "Accumulate", defines, push, r.temporalLayout); err != nil {
		return nil, err
	}
	if r.denoiser, err = e.newDenoiser(kind.name, r.scale, r.History, false); err != nil {
		return nil, err
	}
	r.upsampler, err = e.newUpsampler(kind.name, DefaultUpsample, r.scale, r.Output,
		r.History[0], r.History[1], r.denoiser.Images[0], r.denoiser.Images[1])
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *denoisedRayPass) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, r.Raw, r.Output)
	clearTextures(cmd, [4]float32{}, r.History[:]...)
	clearTextures(cmd, [4]float32{}, r.denoiser.Images[:]...)
}

func (r *denoisedRayPass) push(f *Frame) []byte {
	p := rayPush{
		Frame:  f.Number,
		Scale:  r.scale,
		Radius: r.Options.Radius,
		Alpha:  1,
	}
	if r.Options.Temporal {
		p.Alpha = r.Options.Alpha
	}
	return vkg.ValueBytes(&p)
}

func (r *denoisedRayPass) Draw(f *Frame) {
	name := r.kind.name
	if !f.Plan.Has(schedule.NodeRayTrace(name)) {
		return
	}
	k := f.Parity.Write()
	push := r.push(f)
	w, h := r.History[0].Extent.Width, r.History[0].Extent.Height

	if f.Node(schedule.NodeRayTrace(name)) {
		r.trace.dispatch(f, r.traceSet, push, w, h, 8, 4)
	}
	if f.Node(schedule.NodeRayTemporal(name)) {
		r.temporal.dispatch(f, r.temporalSets[k], push, w, h, 8, 8)
	}
	o := r.Options.Denoise
	for i := 0; i < o.Iterations; i++ {
		r.denoiser.iterate(f, schedule.NodeATrous(name, i), o, i)
	}
	r.upsampler.run(f, schedule.NodeRayUpsample(name), r.denoiser.output(k, o.Iterations))
}

func (r *denoisedRayPass) Register(res Resources) {
	name := r.kind.name
	res.Image(schedule.RayRaw(name), r.Raw)
	res.Image(schedule.RayHistory(name), r.History[:]...)
	res.Image(schedule.ATrousImage(name, 0), r.denoiser.Images[0])
	res.Image(schedule.ATrousImage(name, 1), r.denoiser.Images[1])
	res.Image(schedule.RayOutput(name), r.Output)
}

func (r *denoisedRayPass) DrawUI() {
	if !imgui.CollapsingHeader(r.kind.title) {
		return
	}
	id := r.kind.name
	o := r.Options
	imgui.Checkbox("Enabled##"+id, &o.Enabled)
	imgui.Checkbox("Temporal##"+id, &o.Temporal)
	imgui.SliderFloat("Alpha##"+id, &o.Alpha, 0.01, 1)
	if r.kind.name != schedule.GI {
		imgui.SliderFloat("Radius##"+id, &o.Radius, 0, 4)
	}
	denoiseUI(id, &o.Denoise, 0)
}

func (r *denoisedRayPass) Destroy() {
	r.upsampler.Destroy()
	r.denoiser.Destroy()
	r.temporal.Destroy()
	r.trace.Destroy()
	r.env.freeSets(r.temporalSets[:]...)
	r.env.freeSets(r.traceSet)
	for _, l := range []*vkg.DescriptorSetLayout{r.temporalLayout, r.traceLayout} {
		if l != nil {
			l.Destroy()
		}
	}
	destroyTextures(r.Output, r.Raw)
	destroyTextures(r.History[:]...)
}

// RayTracedShadow traces one shadow ray per pixel towards a sampled
// emitter and packs the visibility bits. Temporal accumulation can be
// turned off with RayOptions.Temporal.
type RayTracedShadow struct{ *denoisedRayPass }

func NewRayTracedShadow(env *Env, opts *RayOptions) (*RayTracedShadow, error) {
	r, err := env.newRayPass(shadowKind, opts)
	if err != nil {
		return nil, err
	}
	return &RayTracedShadow{r}, nil
}

// RayTracedAO traces one cosine distributed occlusion ray per pixel
// bounded by RayOptions.Radius.
type RayTracedAO struct{ *denoisedRayPass }

func NewRayTracedAO(env *Env, opts *RayOptions) (*RayTracedAO, error) {
	r, err := env.newRayPass(aoKind, opts)
	if err != nil {
		return nil, err
	}
	return &RayTracedAO{r}, nil
}

// RayTracedGI traces one diffuse bounce per pixel with next event
// estimation at the hit point.
type RayTracedGI struct{ *denoisedRayPass }

func NewRayTracedGI(env *Env, opts *RayOptions) (*RayTracedGI, error) {
	r, err := env.newRayPass(giKind, opts)
	if err != nil {
		return nil, err
	}
	return &RayTracedGI{r}, nil
}
