package scene

import (
	"math"

	lin "github.com/xlab/linmath"
)

// Camera is a look-at camera with a vertical field of view in radians.
type Camera struct {
	Position lin.Vec3
	Target   lin.Vec3
	Up       lin.Vec3
	FovY     float32
	Near     float32
	Far      float32
}

// FrameBounds places a camera in front of the box so that all of it is
// visible.
func FrameBounds(min, max [3]float32) Camera {
	center := lin.Vec3{(min[0] + max[0]) / 2, (min[1] + max[1]) / 2, (min[2] + max[2]) / 2}
	radius := length(sub(max, min)) / 2
	if radius <= 0 || math.IsInf(float64(radius), 0) || math.IsNaN(float64(radius)) {
		radius = 1
	}
	fov := lin.DegreesToRadians(45)
	dist := radius / float32(math.Sin(float64(fov)/2))
	return Camera{
		Position: lin.Vec3{center[0], center[1], center[2] + dist},
		Target:   center,
		Up:       lin.Vec3{0, 1, 0},
		FovY:     fov,
		Near:     radius * 0.01,
		Far:      dist + radius*2,
	}
}

func (c *Camera) View() lin.Mat4x4 {
	var m lin.Mat4x4
	m.LookAt(&c.Position, &c.Target, &c.Up)
	return m
}

// Projection returns a Vulkan projection (y down) with a sub-pixel jitter
// given in pixels.
func (c *Camera) Projection(width, height uint32, jitter [2]float32) lin.Mat4x4 {
	var m lin.Mat4x4
	m.Perspective(c.FovY, float32(width)/float32(height), c.Near, c.Far)
	m[1][1] *= -1
	m[2][0] += 2 * jitter[0] / float32(width)
	m[2][1] += 2 * jitter[1] / float32(height)
	return m
}

// Orbit rotates the camera around its target.
func (c *Camera) Orbit(yaw, pitch float32) {
	off := sub(c.Position, c.Target)
	r := length(off)
	if r == 0 {
		return
	}
	theta := math.Atan2(float64(off[0]), float64(off[2])) + float64(yaw)
	phi := math.Acos(float64(off[1]/r)) - float64(pitch)
	phi = math.Max(0.01, math.Min(math.Pi-0.01, phi))
	c.Position = lin.Vec3{
		c.Target[0] + r*float32(math.Sin(phi)*math.Sin(theta)),
		c.Target[1] + r*float32(math.Cos(phi)),
		c.Target[2] + r*float32(math.Sin(phi)*math.Cos(theta)),
	}
}

// Zoom moves the camera towards the target by factor.
func (c *Camera) Zoom(factor float32) {
	off := sub(c.Position, c.Target)
	for i := range off {
		c.Position[i] = c.Target[i] + off[i]*factor
	}
}
