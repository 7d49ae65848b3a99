package vkg

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestMipCount(t *testing.T) {
	cases := []struct {
		opts TextureOptions
		want uint32
	}{
		{TextureOptions{Width: 1024, Height: 512}, 1},
		{TextureOptions{Width: 1024, Height: 512, Mipmapped: true}, 11},
		{TextureOptions{Width: 300, Height: 700, Mipmapped: true}, 10},
		{TextureOptions{Width: 1, Height: 1, Mipmapped: true}, 1},
		{TextureOptions{Width: 64, Height: 64, Layers: 6, Mipmapped: true}, 7},
	}
	for _, c := range cases {
		if got := c.opts.MipCount(); got != c.want {
			t.Errorf("%dx%d mipmapped=%v: %d levels, want %d", c.opts.Width, c.opts.Height, c.opts.Mipmapped, got, c.want)
		}
	}
}

func TestMipFilter(t *testing.T) {
	if MipFilter(vk.FormatR32g32b32a32Sfloat) != vk.FilterNearest {
		t.Error("ids in an RGBA32F target are blended")
	}
	for _, f := range []vk.Format{vk.FormatR8g8b8a8Unorm, vk.FormatR16g16b16a16Sfloat} {
		if MipFilter(f) != vk.FilterLinear {
			t.Errorf("format %d is not filtered", f)
		}
	}
}
