package renderer

import (
	"math"

	"github.com/vulkan-go/glfw/v3.3/glfw"

	"github.com/celer/hybrid/pass"
	"github.com/celer/hybrid/scene"
)

const (
	// Radians per pixel of mouse drag.
	mouseSensitivity float32 = 0.005
	// Radians per arrow key press.
	keyOrbitStep float32 = 0.05
	zoomStep     float32 = 0.9
)

// Camera is an orbit camera driven by window input. It produces the frame
// uniform and keeps the previous frame's matrices for reprojection.
type Camera struct {
	scene.Camera
	// Jitter offsets the projection by the TAA sequence.
	Jitter bool

	prev     scene.GlobalData
	started  bool
	dragging bool
	anchored bool
	lastX    float64
	lastY    float64
}

func NewCamera(c scene.Camera) *Camera {
	return &Camera{Camera: c, Jitter: true}
}

func (c *Camera) Key(key glfw.Key, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	step := keyOrbitStep
	if mods&glfw.ModShift != 0 {
		step *= 2
	}
	switch key {
	case glfw.KeyLeft:
		c.Orbit(-step, 0)
	case glfw.KeyRight:
		c.Orbit(step, 0)
	case glfw.KeyUp:
		c.Orbit(0, step)
	case glfw.KeyDown:
		c.Orbit(0, -step)
	case glfw.KeyW, glfw.KeyPageUp:
		c.Zoom(zoomStep)
	case glfw.KeyS, glfw.KeyPageDown:
		c.Zoom(1 / zoomStep)
	}
}

func (c *Camera) MouseButton(button glfw.MouseButton, action glfw.Action) {
	if button != glfw.MouseButtonLeft {
		return
	}
	c.dragging = action == glfw.Press
	c.anchored = false
}

func (c *Camera) Scroll(x, y float64) {
	c.Zoom(float32(math.Pow(float64(zoomStep), y)))
}

// Cursor orbits by the movement since the last call while the left
// button is held.
func (c *Camera) Cursor(x, y float64) {
	if !c.dragging {
		return
	}
	if c.anchored {
		dx, dy := float32(x-c.lastX), float32(y-c.lastY)
		c.Orbit(-dx*mouseSensitivity, -dy*mouseSensitivity)
	}
	c.lastX, c.lastY = x, y
	c.anchored = true
}

// Globals returns the uniform of frame for a width x height target. The
// previous matrices are those of the last call, or the current ones on
// the first.
func (c *Camera) Globals(frame, width, height uint32) scene.GlobalData {
	var jitter [2]float32
	if c.Jitter {
		jitter = pass.Jitter(frame)
	}
	g := scene.GlobalData{
		View:       c.View(),
		Projection: c.Projection(width, height, jitter),
		Jitter:     jitter,
		Frame:      frame,
	}
	g.ViewProjection.Mult(&g.Projection, &g.View)
	g.ViewInv.Invert(&g.View)
	g.ProjectionInv.Invert(&g.Projection)
	g.ViewProjectionInv.Invert(&g.ViewProjection)
	g.CameraPosition = [4]float32{c.Position[0], c.Position[1], c.Position[2], 1}

	prev := &c.prev
	if !c.started {
		prev = &g
	}
	g.PrevView = prev.View
	g.PrevProjection = prev.Projection
	g.PrevViewProjection = prev.ViewProjection
	g.PrevJitter = prev.Jitter

	c.prev = g
	c.started = true
	return g
}
