package pass

import (
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/internal/fsr"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// FSR upscales the tonemapped image from the render extent to the display
// extent with EASU and sharpens the result with RCAS. The constants of
// both stages live in a uniform arena per parity, rewritten by Prepare
// once the parity's previous frame has completed.
type FSR struct {
	Options *FSROptions
	Scratch *vkg.Texture
	Output  *vkg.Texture

	uniforms   [2]*vkg.UniformArena
	layout     fsr.Layout
	easuLayout *vkg.DescriptorSetLayout
	rcasLayout *vkg.DescriptorSetLayout
	easuSets   [2]*vkg.DescriptorSet
	rcasSets   [2]*vkg.DescriptorSet
	easu       *kernel
	rcas       *kernel
	env        *Env
}

func NewFSR(env *Env, opts *FSROptions) (_ *FSR, err error) {
	s := &FSR{Options: opts, env: env}
	defer func() {
		if err != nil {
			s.Destroy()
		}
	}()
	d := env.Display
	if s.Scratch, err = env.storageImage(schedule.FSRScratch, d.Width, d.Height, LDRFormat); err != nil {
		return nil, err
	}
	if s.Output, err = env.storageImage(schedule.FSROutput, d.Width, d.Height, LDRFormat); err != nil {
		return nil, err
	}
	s.layout = fsr.NewLayout(env.Ctx.PhysicalDevice.Caps.MinUniformAlignment)
	for k := 0; k < 2; k++ {
		if s.uniforms[k], err = env.Ctx.CreateUniformArena(slot("fsr.constants", k), s.layout.Size); err != nil {
			return nil, err
		}
	}

	ub, cis, st := vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeStorageImage
	if s.easuLayout, err = env.layout("fsr.easu", ub, cis, st); err != nil {
		return nil, err
	}
	if s.rcasLayout, err = env.layout("fsr.rcas", ub, cis, st); err != nil {
		return nil, err
	}
	sets, err := env.sets(s.easuLayout, 2)
	if err != nil {
		return nil, err
	}
	copy(s.easuSets[:], sets)
	if sets, err = env.sets(s.rcasLayout, 2); err != nil {
		return nil, err
	}
	copy(s.rcasSets[:], sets)
	for k := 0; k < 2; k++ {
		vkg.NewDescriptorWriter().
			Image(1, cis, env.sampled(s.Scratch)).
			Image(2, st, storage(s.Output)).
			Update(s.rcasSets[k])
	}

	push := uint32(0)
	if s.easu, err = env.kernel("fsr.easu", "fsr.hlsl", "EASU", nil, push, s.easuLayout); err != nil {
		return nil, err
	}
	if s.rcas, err = env.kernel("fsr.rcas", "fsr.hlsl", "RCAS", nil, push, s.rcasLayout); err != nil {
		return nil, err
	}
	return s, nil
}

// Update binds the image EASU reads.
func (s *FSR) Update(input *vkg.Texture) {
	for k := 0; k < 2; k++ {
		vkg.NewDescriptorWriter().
			Image(1, vk.DescriptorTypeCombinedImageSampler, s.env.sampled(input)).
			Image(2, vk.DescriptorTypeStorageImage, storage(s.Scratch)).
			Update(s.easuSets[k])
	}
}

// Prepare writes the constants of write index k at the offsets of the
// layout. The previous frame using k must have completed.
func (s *FSR) Prepare(k int) error {
	e := s.env.Extent
	easu := fsr.EASU(e.Width, e.Height, s.Output.Extent.Width, s.Output.Extent.Height).WithHDR(false)
	rcas := fsr.RCAS(s.Options.Sharpness).WithHDR(false)
	ei, ri, err := writeConstants(s.uniforms[k], s.layout, &easu, &rcas)
	if err != nil {
		return err
	}
	vkg.NewDescriptorWriter().Buffer(0, vk.DescriptorTypeUniformBuffer, ei).Update(s.easuSets[k])
	vkg.NewDescriptorWriter().Buffer(0, vk.DescriptorTypeUniformBuffer, ri).Update(s.rcasSets[k])
	return nil
}

func writeConstants(u *vkg.UniformArena, l fsr.Layout, easu, rcas *fsr.Constants) (ei, ri vk.DescriptorBufferInfo, err error) {
	if ei, err = u.WriteAt(l.EASUOffset, vkg.ValueBytes(easu)); err != nil {
		return
	}
	ri, err = u.WriteAt(l.RCASOffset, vkg.ValueBytes(rcas))
	return
}

func (s *FSR) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, s.Scratch, s.Output)
}

func (s *FSR) Draw(f *Frame) {
	k := f.Parity.Write()
	gx, gy := fsr.Groups(s.Output.Extent.Width, s.Output.Extent.Height)
	if f.Node(schedule.NodeEASU) {
		s.easu.bind(f, s.easuSets[k], nil)
		f.Cmd.Dispatch(gx, gy, 1)
	}
	if f.Node(schedule.NodeRCAS) {
		s.rcas.bind(f, s.rcasSets[k], nil)
		f.Cmd.Dispatch(gx, gy, 1)
	}
}

func (s *FSR) Register(r Resources) {
	r.Image(schedule.FSRScratch, s.Scratch)
	r.Image(schedule.FSROutput, s.Output)
}

var qualities = []fsr.Quality{fsr.Native, fsr.UltraQuality, fsr.QualityMode, fsr.Balanced, fsr.Performance}

// DrawUI reports whether the quality changed, which requires the render
// extent dependent passes to be recreated.
func (s *FSR) DrawUI() bool {
	if !imgui.CollapsingHeader("FSR") {
		return false
	}
	changed := false
	if imgui.BeginCombo("Quality", s.Options.Quality.String()) {
		for _, q := range qualities {
			if imgui.Selectable(q.String()) && q != s.Options.Quality {
				s.Options.Quality = q
				changed = true
			}
		}
		imgui.EndCombo()
	}
	imgui.SliderFloat("Sharpness", &s.Options.Sharpness, 0, 2)
	return changed
}

func (s *FSR) Destroy() {
	s.rcas.Destroy()
	s.easu.Destroy()
	s.env.freeSets(s.easuSets[:]...)
	s.env.freeSets(s.rcasSets[:]...)
	for _, l := range []*vkg.DescriptorSetLayout{s.easuLayout, s.rcasLayout} {
		if l != nil {
			l.Destroy()
		}
	}
	for _, u := range s.uniforms {
		if u != nil {
			u.Destroy()
		}
	}
	destroyTextures(s.Scratch, s.Output)
}
