package pass

import (
	"fmt"

	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// DisplayMode selects what Composite writes.
type DisplayMode uint32

const (
	DisplayComposite DisplayMode = iota
	DisplayAO
	DisplayGI
	DisplayReflection
	DisplayDI
	DisplayShadow
)

var displayNames = [...]string{"Composite", "AO", "GI", "Reflection", "DI", "Shadow"}

func (m DisplayMode) String() string {
	if int(m) < len(displayNames) {
		return displayNames[m]
	}
	return fmt.Sprintf("DisplayMode(%d)", uint32(m))
}

// Bits of the enabled mask. A cleared bit makes the shader ignore the
// corresponding input.
const (
	EnableDI uint32 = 1 << iota
	EnableReflection
	EnableShadow
	EnableAO
	EnableGI
)

// Enabled is the input mask of the passes present in a plan.
func Enabled(has func(node string) bool) uint32 {
	var m uint32
	if has(schedule.NodeDIComposite) {
		m |= EnableDI
	}
	if has(schedule.NodeReflectionUpsample) {
		m |= EnableReflection
	}
	if has(schedule.NodeRayUpsample(schedule.Shadow)) {
		m |= EnableShadow
	}
	if has(schedule.NodeRayUpsample(schedule.AO)) {
		m |= EnableAO
	}
	if has(schedule.NodeRayUpsample(schedule.GI)) {
		m |= EnableGI
	}
	return m
}

type compositePush struct {
	Mode    uint32
	Enabled uint32
	_       [2]uint32
}

// CompositeInputs are the outputs Composite combines.
type CompositeInputs struct {
	DI, Reflection, Shadow, AO, GI *vkg.Texture
}

// Composite combines the lighting terms with the GBuffer material into
// the HDR image, or shows a single term.
type Composite struct {
	Mode   *DisplayMode
	Output *vkg.Texture

	layout *vkg.DescriptorSetLayout
	set    *vkg.DescriptorSet
	k      *kernel
	env    *Env
}

func NewComposite(env *Env, mode *DisplayMode) (_ *Composite, err error) {
	c := &Composite{Mode: mode, env: env}
	defer func() {
		if err != nil {
			c.Destroy()
		}
	}()
	if c.Output, err = env.storageImage(schedule.Composite, env.Extent.Width, env.Extent.Height, HDRFormat); err != nil {
		return nil, err
	}
	cis := vk.DescriptorTypeCombinedImageSampler
	if c.layout, err = env.layout("composite", cis, cis, cis, cis, cis, vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := env.sets(c.layout, 1)
	if err != nil {
		return nil, err
	}
	c.set = sets[0]
	if c.k, err = env.kernel("composite", "composite.hlsl", "Composite", nil, uint32(sizeOf[compositePush]()), c.layout); err != nil {
		return nil, err
	}
	return c, nil
}

// Update binds the outputs of the lighting passes. It must not be called
// while a frame using the set is in flight.
func (c *Composite) Update(in CompositeInputs) {
	e := c.env
	vkg.NewDescriptorWriter().
		Image(0, vk.DescriptorTypeCombinedImageSampler, e.sampled(in.DI)).
		Image(1, vk.DescriptorTypeCombinedImageSampler, e.sampled(in.Reflection)).
		Image(2, vk.DescriptorTypeCombinedImageSampler, e.sampled(in.Shadow)).
		Image(3, vk.DescriptorTypeCombinedImageSampler, e.sampled(in.AO)).
		Image(4, vk.DescriptorTypeCombinedImageSampler, e.sampled(in.GI)).
		Image(5, vk.DescriptorTypeStorageImage, storage(c.Output)).
		Update(c.set)
}

func (c *Composite) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, c.Output)
}

func (c *Composite) Draw(f *Frame) {
	if !f.Node(schedule.NodeComposite) {
		return
	}
	p := compositePush{Mode: uint32(*c.Mode), Enabled: Enabled(f.Plan.Has)}
	c.k.dispatch(f, c.set, vkg.ValueBytes(&p), c.Output.Extent.Width, c.Output.Extent.Height, 8, 8)
}

func (c *Composite) Register(r Resources) {
	r.Image(schedule.Composite, c.Output)
}

func (c *Composite) DrawUI() {
	if !imgui.BeginCombo("Display", c.Mode.String()) {
		return
	}
	for m := range displayNames {
		if imgui.Selectable(displayNames[m]) {
			*c.Mode = DisplayMode(m)
		}
	}
	imgui.EndCombo()
}

func (c *Composite) Destroy() {
	c.k.Destroy()
	c.env.freeSets(c.set)
	if c.layout != nil {
		c.layout.Destroy()
	}
	destroyTextures(c.Output)
}
