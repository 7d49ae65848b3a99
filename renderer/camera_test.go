package renderer

import (
	"math"
	"testing"

	"github.com/vulkan-go/glfw/v3.3/glfw"
	lin "github.com/xlab/linmath"

	"github.com/celer/hybrid/scene"
)

func testCamera() *Camera {
	return NewCamera(scene.Camera{
		Position: lin.Vec3{0, 0, 5},
		Target:   lin.Vec3{0, 0, 0},
		Up:       lin.Vec3{0, 1, 0},
		FovY:     lin.DegreesToRadians(60),
		Near:     0.1,
		Far:      100,
	})
}

func distance(c *Camera) float64 {
	var d float64
	for i := 0; i < 3; i++ {
		v := float64(c.Position[i] - c.Target[i])
		d += v * v
	}
	return math.Sqrt(d)
}

func isIdentity(m lin.Mat4x4, eps float32) bool {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			want := float32(0)
			if c == r {
				want = 1
			}
			if d := m[c][r] - want; d > eps || d < -eps {
				return false
			}
		}
	}
	return true
}

func TestGlobalsPrevious(t *testing.T) {
	c := testCamera()
	first := c.Globals(0, 1280, 720)
	if first.PrevViewProjection != first.ViewProjection {
		t.Error("first frame reprojects from a different matrix")
	}
	if first.PrevJitter != first.Jitter {
		t.Error("first frame has a different previous jitter")
	}

	c.Orbit(0.3, 0)
	second := c.Globals(1, 1280, 720)
	if second.PrevView != first.View {
		t.Error("previous view is not the last frame's view")
	}
	if second.View == first.View {
		t.Error("orbit did not change the view")
	}
	if second.PrevJitter != first.Jitter || second.Jitter == first.Jitter {
		t.Errorf("jitter %v after %v", second.Jitter, second.PrevJitter)
	}
	if second.Frame != 1 {
		t.Errorf("frame = %d", second.Frame)
	}
}

func TestGlobalsInverse(t *testing.T) {
	c := testCamera()
	g := c.Globals(3, 800, 600)
	var m lin.Mat4x4
	m.Mult(&g.ViewProjection, &g.ViewProjectionInv)
	if !isIdentity(m, 1e-3) {
		t.Errorf("view projection times inverse = %v", m)
	}
	m.Mult(&g.View, &g.ViewInv)
	if !isIdentity(m, 1e-4) {
		t.Errorf("view times inverse = %v", m)
	}
	if g.CameraPosition != [4]float32{0, 0, 5, 1} {
		t.Errorf("camera position = %v", g.CameraPosition)
	}
}

func TestGlobalsWithoutJitter(t *testing.T) {
	c := testCamera()
	c.Jitter = false
	for f := uint32(0); f < 4; f++ {
		if g := c.Globals(f, 64, 64); g.Jitter != [2]float32{} {
			t.Fatalf("frame %d jitter = %v", f, g.Jitter)
		}
	}
}

func TestCameraInput(t *testing.T) {
	c := testCamera()
	c.Scroll(0, 1)
	if d := distance(c); math.Abs(d-5*float64(zoomStep)) > 1e-4 {
		t.Errorf("distance after scrolling in = %v", d)
	}

	before := c.Position
	c.Cursor(10, 10)
	if c.Position != before {
		t.Error("cursor moved the camera without a pressed button")
	}
	c.MouseButton(glfw.MouseButtonLeft, glfw.Press)
	c.Cursor(10, 10)
	c.Cursor(60, 10)
	if c.Position == before {
		t.Error("drag did not orbit")
	}
	if d := distance(c); math.Abs(d-5*float64(zoomStep)) > 1e-3 {
		t.Errorf("orbit changed the distance to %v", d)
	}
	c.MouseButton(glfw.MouseButtonLeft, glfw.Release)
	after := c.Position
	c.Cursor(200, 200)
	if c.Position != after {
		t.Error("cursor moved the camera after release")
	}
}
