package gpuscene

import (
	"testing"

	"github.com/celer/hybrid/internal/imath"
)

func TestSampledTextureMips(t *testing.T) {
	opts := SampledTexture
	opts.Width, opts.Height = 2048, 1024
	if got, want := opts.MipCount(), imath.MipLevels(2048, 1024); got != want || got != 12 {
		t.Errorf("material texture has %d levels, want %d", got, want)
	}
	b := white.Bounds()
	opts.Width, opts.Height = uint32(b.Dx()), uint32(b.Dy())
	if opts.MipCount() != 1 {
		t.Error("1x1 placeholder has more than one level")
	}
}
