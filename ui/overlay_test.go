package ui

import (
	"testing"

	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"
)

func TestScissor(t *testing.T) {
	extent := vk.Extent2D{Width: 800, Height: 600}
	tests := []struct {
		clip imgui.Vec4
		want vk.Rect2D
		ok   bool
	}{
		{imgui.Vec4{X: 10, Y: 20, Z: 110, W: 220}, vk.Rect2D{Offset: vk.Offset2D{X: 10, Y: 20}, Extent: vk.Extent2D{Width: 100, Height: 200}}, true},
		{imgui.Vec4{X: -5, Y: -5, Z: 900, W: 700}, vk.Rect2D{Extent: extent}, true},
		{imgui.Vec4{X: 50, Y: 50, Z: 50, W: 80}, vk.Rect2D{}, false},
		{imgui.Vec4{X: 900, Y: 10, Z: 1000, W: 20}, vk.Rect2D{}, false},
	}
	for _, tt := range tests {
		got, ok := scissor(tt.clip, extent)
		if ok != tt.ok || got != tt.want {
			t.Errorf("scissor(%v) = %v, %v, want %v, %v", tt.clip, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProjection(t *testing.T) {
	p := projection(800, 400)
	// Display corners land on the clip space corners.
	for _, c := range [][2]float32{{0, 0}, {800, 400}} {
		x := c[0]*p.Scale[0] + p.Translate[0]
		y := c[1]*p.Scale[1] + p.Translate[1]
		wx, wy := float32(-1), float32(-1)
		if c[0] > 0 {
			wx, wy = 1, 1
		}
		if x != wx || y != wy {
			t.Errorf("corner %v maps to (%v, %v), want (%v, %v)", c, x, y, wx, wy)
		}
	}
}
