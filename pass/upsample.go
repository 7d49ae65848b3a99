package pass

import (
	"github.com/celer/hybrid/vkg"
)

// DefaultUpsample is the upsample entry point: a bilinear fetch, which is
// a plain copy when input and output have the same size.
const DefaultUpsample = "Bilinear"

type upsamplePush struct {
	Scale uint32
	_     [3]uint32
}

// upsampler brings a reduced resolution result back to the render extent.
// The entry point of upsample.hlsl selects the filter, so edge-aware
// variants can replace the default without touching the passes.
type upsampler struct {
	scale uint32
	out   *vkg.Texture
	pairs *pairs
	k     *kernel
}

// newUpsampler prepares one set for each possible input of out.
func (e *Env) newUpsampler(name, entry string, scale uint32, out *vkg.Texture, inputs ...*vkg.Texture) (_ *upsampler, err error) {
	if entry == "" {
		entry = DefaultUpsample
	}
	u := &upsampler{scale: scale, out: out}
	defer func() {
		if err != nil {
			u.Destroy()
		}
	}()
	if u.pairs, err = e.newPairs(name + ".upsample"); err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if err = u.pairs.add(in, out); err != nil {
			return nil, err
		}
	}
	u.k, err = e.kernel(name+".upsample", "upsample.hlsl", entry, nil, uint32(sizeOf[upsamplePush]()), u.pairs.layout)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// run records the upsample of in if the plan holds node.
func (u *upsampler) run(f *Frame, node string, in *vkg.Texture) {
	if !f.Node(node) {
		return
	}
	p := upsamplePush{Scale: u.scale}
	u.k.dispatch(f, u.pairs.set(in, u.out), vkg.ValueBytes(&p), u.out.Extent.Width, u.out.Extent.Height, 8, 8)
}

func (u *upsampler) Destroy() {
	if u == nil {
		return
	}
	u.k.Destroy()
	u.pairs.Destroy()
}
