package pass

import (
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// JitterPhases is the length of the camera jitter sequence.
const JitterPhases = 16

// Halton returns element index (from 1) of the radical inverse sequence
// in base.
func Halton(index, base int) float32 {
	f, r := float32(1), float32(0)
	for i := index; i > 0; i /= base {
		f /= float32(base)
		r += f * float32(i%base)
	}
	return r
}

// Jitter is the sub-pixel camera offset of frame, in pixels within
// [-0.5, 0.5), from the Halton (2, 3) sequence.
func Jitter(frame uint32) [2]float32 {
	i := int(frame%JitterPhases) + 1
	return [2]float32{Halton(i, 2) - 0.5, Halton(i, 3) - 0.5}
}

type taaPush struct {
	Jitter [2]float32
	// Blend is the weight of the current frame, 1 disables accumulation.
	Blend float32
	_     uint32
}

// TAA resolves the composite image against the reprojected history,
// clipping the history color to the current neighborhood.
type TAA struct {
	Enabled *bool
	Blend   float32
	History [2]*vkg.Texture

	layout *vkg.DescriptorSetLayout
	sets   [2]*vkg.DescriptorSet
	k      *kernel
	env    *Env
}

func NewTAA(env *Env, enabled *bool) (_ *TAA, err error) {
	t := &TAA{Enabled: enabled, Blend: 0.1, env: env}
	defer func() {
		if err != nil {
			t.Destroy()
		}
	}()
	for k := 0; k < 2; k++ {
		if t.History[k], err = env.storageImage(slot(schedule.TAA, k), env.Extent.Width, env.Extent.Height, HDRFormat); err != nil {
			return nil, err
		}
	}
	cis := vk.DescriptorTypeCombinedImageSampler
	if t.layout, err = env.layout("taa", cis, cis, vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := env.sets(t.layout, 2)
	if err != nil {
		return nil, err
	}
	copy(t.sets[:], sets)
	if t.k, err = env.kernel("taa", "taa.hlsl", "Resolve", nil, uint32(sizeOf[taaPush]()), t.layout); err != nil {
		return nil, err
	}
	return t, nil
}

// Update binds the composite output as the current frame.
func (t *TAA) Update(composite *vkg.Texture) {
	for k := 0; k < 2; k++ {
		vkg.NewDescriptorWriter().
			Image(0, vk.DescriptorTypeCombinedImageSampler, t.env.sampled(composite)).
			Image(1, vk.DescriptorTypeCombinedImageSampler, t.env.sampled(t.History[1-k])).
			Image(2, vk.DescriptorTypeStorageImage, storage(t.History[k])).
			Update(t.sets[k])
	}
}

func (t *TAA) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, t.History[:]...)
}

// Output is the resolved image of parity write index k.
func (t *TAA) Output(k int) *vkg.Texture {
	return t.History[k]
}

func (t *TAA) Draw(f *Frame) {
	if !f.Node(schedule.NodeTAA) {
		return
	}
	k := f.Parity.Write()
	p := taaPush{Jitter: Jitter(f.Number), Blend: 1}
	if *t.Enabled && f.Number > 0 {
		p.Blend = t.Blend
	}
	out := t.History[k]
	t.k.dispatch(f, t.sets[k], vkg.ValueBytes(&p), out.Extent.Width, out.Extent.Height, 8, 8)
}

func (t *TAA) Register(r Resources) {
	r.Image(schedule.TAA, t.History[:]...)
}

func (t *TAA) DrawUI() {
	imgui.Checkbox("TAA", t.Enabled)
	imgui.SliderFloat("TAA blend", &t.Blend, 0.01, 1)
}

func (t *TAA) Destroy() {
	t.k.Destroy()
	t.env.freeSets(t.sets[:]...)
	if t.layout != nil {
		t.layout.Destroy()
	}
	destroyTextures(t.History[:]...)
}
