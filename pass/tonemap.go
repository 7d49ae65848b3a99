package pass

import (
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// LDRFormat is the tonemapped format FSR reads.
const LDRFormat = vk.FormatR8g8b8a8Unorm

type tonemapPush struct {
	Luminance  float32
	Brightness float32
	Contrast   float32
	Saturation float32
	Vignette   float32
	_          [3]float32
}

// Tonemap maps the resolved HDR image to display range and applies the
// color grading controls. Its input is ping-pong, so it holds one set per
// parity.
type Tonemap struct {
	Options *TonemapOptions
	Output  *vkg.Texture

	layout *vkg.DescriptorSetLayout
	sets   [2]*vkg.DescriptorSet
	k      *kernel
	env    *Env
}

func NewTonemap(env *Env, opts *TonemapOptions) (_ *Tonemap, err error) {
	t := &Tonemap{Options: opts, env: env}
	defer func() {
		if err != nil {
			t.Destroy()
		}
	}()
	if t.Output, err = env.storageImage(schedule.Tonemap, env.Extent.Width, env.Extent.Height, LDRFormat); err != nil {
		return nil, err
	}
	if t.layout, err = env.layout("tonemap", vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := env.sets(t.layout, 2)
	if err != nil {
		return nil, err
	}
	copy(t.sets[:], sets)
	if t.k, err = env.kernel("tonemap", "tonemap.hlsl", "Tonemap", nil, uint32(sizeOf[tonemapPush]()), t.layout); err != nil {
		return nil, err
	}
	return t, nil
}

// Update binds the two copies of the HDR input, indexed by write index.
func (t *Tonemap) Update(inputs [2]*vkg.Texture) {
	for k := 0; k < 2; k++ {
		vkg.NewDescriptorWriter().
			Image(0, vk.DescriptorTypeCombinedImageSampler, t.env.sampled(inputs[k])).
			Image(1, vk.DescriptorTypeStorageImage, storage(t.Output)).
			Update(t.sets[k])
	}
}

func (t *Tonemap) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, t.Output)
}

func (t *Tonemap) Draw(f *Frame) {
	if !f.Node(schedule.NodeTonemap) {
		return
	}
	o := t.Options
	p := tonemapPush{
		Luminance:  o.Luminance,
		Brightness: o.Brightness,
		Contrast:   o.Contrast,
		Saturation: o.Saturation,
		Vignette:   o.Vignette,
	}
	t.k.dispatch(f, t.sets[f.Parity.Write()], vkg.ValueBytes(&p), t.Output.Extent.Width, t.Output.Extent.Height, 8, 8)
}

func (t *Tonemap) Register(r Resources) {
	r.Image(schedule.Tonemap, t.Output)
}

func (t *Tonemap) DrawUI() {
	if !imgui.CollapsingHeader("Tonemap") {
		return
	}
	o := t.Options
	imgui.SliderFloat("Luminance", &o.Luminance, 0.01, 10)
	imgui.SliderFloat("Brightness", &o.Brightness, -1, 1)
	imgui.SliderFloat("Contrast", &o.Contrast, 0, 2)
	imgui.SliderFloat("Saturation", &o.Saturation, 0, 2)
	imgui.SliderFloat("Vignette", &o.Vignette, 0, 1)
}

func (t *Tonemap) Destroy() {
	t.k.Destroy()
	t.env.freeSets(t.sets[:]...)
	if t.layout != nil {
		t.layout.Destroy()
	}
	destroyTextures(t.Output)
}
