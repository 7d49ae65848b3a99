package pass

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// pairs holds descriptor sets of a layout with a sampled input at binding
// 0 and a storage output at binding 1, one per (input, output) pair.
type pairs struct {
	env    *Env
	layout *vkg.DescriptorSetLayout
	sets   map[[2]*vkg.Texture]*vkg.DescriptorSet
}

func (e *Env) newPairs(name string) (*pairs, error) {
	layout, err := e.layout(name, vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeStorageImage)
	if err != nil {
		return nil, err
	}
	return &pairs{env: e, layout: layout, sets: make(map[[2]*vkg.Texture]*vkg.DescriptorSet)}, nil
}

// add allocates and writes the set reading in and writing out.
func (p *pairs) add(in, out *vkg.Texture) error {
	key := [2]*vkg.Texture{in, out}
	if _, ok := p.sets[key]; ok {
		return nil
	}
	sets, err := p.env.sets(p.layout, 1)
	if err != nil {
		return fmt.Errorf("%s -> %s: %w", in.Name, out.Name, err)
	}
	vkg.NewDescriptorWriter().
		Image(0, vk.DescriptorTypeCombinedImageSampler, p.env.sampled(in)).
		Image(1, vk.DescriptorTypeStorageImage, storage(out)).
		Update(sets[0])
	p.sets[key] = sets[0]
	return nil
}

func (p *pairs) set(in, out *vkg.Texture) *vkg.DescriptorSet {
	return p.sets[[2]*vkg.Texture{in, out}]
}

func (p *pairs) Destroy() {
	if p == nil {
		return
	}
	for _, s := range p.sets {
		p.env.freeSets(s)
	}
	p.layout.Destroy()
}

// atrousPush is the push block of the filter and copy kernels.
type atrousPush struct {
	// Tiles is the address of the tile list of the indirect variant.
	Tiles      uint64
	Step       uint32
	Scale      uint32
	PhiColor   float32
	PhiNormal  float32
	SigmaDepth float32
	Iteration  uint32
}

// denoiser is the À-Trous wavelet filter shared by the reflection, shadow,
// AO and GI passes. Iteration 0 reads one of the two history images and
// later iterations alternate between Images[0] and Images[1].
type denoiser struct {
	env     *Env
	name    string
	scale   uint32
	history [2]*vkg.Texture
	Images  [2]*vkg.Texture

	pairs  *pairs
	filter *kernel
	// copy fills the tiles skipped by the indirect filter.
	copy *kernel
}

// newDenoiser creates the filter for history images at 2^-scale of the
// render extent. The indirect variant only filters the listed tiles.
func (e *Env) newDenoiser(name string, scale uint32, history [2]*vkg.Texture, indirect bool) (_ *denoiser, err error) {
	d := &denoiser{env: e, name: name, scale: scale, history: history}
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()
	w, h := e.scaled(scale)
	for j := range d.Images {
		if d.Images[j], err = e.storageImage(schedule.ATrousImage(name, j), w, h, history[0].Format); err != nil {
			return nil, err
		}
	}
	if d.pairs, err = e.newPairs(name + ".atrous"); err != nil {
		return nil, err
	}
	for _, in := range history {
		for _, out := range d.Images {
			if err = d.pairs.add(in, out); err != nil {
				return nil, err
			}
		}
	}
	if err = d.pairs.add(d.Images[0], d.Images[1]); err != nil {
		return nil, err
	}
	if err = d.pairs.add(d.Images[1], d.Images[0]); err != nil {
		return nil, err
	}

	defines := map[string]string{}
	if indirect {
		defines["TILED"] = "1"
	}
	push := uint32(sizeOf[atrousPush]())
	if d.filter, err = e.kernel(name+".atrous", "atrous.hlsl", "ATrous", defines, push, d.pairs.layout); err != nil {
		return nil, err
	}
	if indirect {
		if d.copy, err = e.kernel(name+".copy", "atrous.hlsl", "CopyTiles", defines, push, d.pairs.layout); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// output is the image holding the result of the given number of
// iterations for write index k.
func (d *denoiser) output(k, iterations int) *vkg.Texture {
	if iterations <= 0 {
		return d.history[k]
	}
	return d.Images[(iterations-1)%2]
}

// input is the image iteration i reads.
func (d *denoiser) input(k, i int) *vkg.Texture {
	if i == 0 {
		return d.history[k]
	}
	return d.Images[(i-1)%2]
}

func (d *denoiser) push(o DenoiseOptions, i int, tiles uint64) []byte {
	p := atrousPush{
		Tiles:      tiles,
		Step:       1 << uint(i),
		Scale:      d.scale,
		PhiColor:   o.PhiColor,
		PhiNormal:  o.PhiNormal,
		SigmaDepth: o.SigmaDepth,
		Iteration:  uint32(i),
	}
	return vkg.ValueBytes(&p)
}

// iterate records iteration i if the plan holds node.
func (d *denoiser) iterate(f *Frame, node string, o DenoiseOptions, i int) {
	if !f.Node(node) {
		return
	}
	k := f.Parity.Write()
	in, out := d.input(k, i), d.Images[i%2]
	d.filter.dispatch(f, d.pairs.set(in, out), d.push(o, i, 0), out.Extent.Width, out.Extent.Height, 8, 8)
}

// iterateIndirect records iteration i over the denoise tiles, with the
// dispatch size read from args.
func (d *denoiser) iterateIndirect(f *Frame, node string, o DenoiseOptions, i int, tiles uint64, args *vkg.Buffer) {
	if !f.Node(node) {
		return
	}
	k := f.Parity.Write()
	in, out := d.input(k, i), d.Images[i%2]
	d.filter.indirect(f, d.pairs.set(in, out), d.push(o, i, tiles), args, argsDenoiseOffset)
}

// copyTiles writes the unfiltered history into the final output for every
// copy tile.
func (d *denoiser) copyTiles(f *Frame, node string, o DenoiseOptions, tiles uint64, args *vkg.Buffer) {
	if d.copy == nil || !f.Node(node) {
		return
	}
	k := f.Parity.Write()
	in, out := d.history[k], d.output(k, o.Iterations)
	d.copy.indirect(f, d.pairs.set(in, out), d.push(o, 0, tiles), args, argsCopyOffset)
}

func (d *denoiser) Destroy() {
	if d == nil {
		return
	}
	d.copy.Destroy()
	d.filter.Destroy()
	d.pairs.Destroy()
	destroyTextures(d.Images[:]...)
}
