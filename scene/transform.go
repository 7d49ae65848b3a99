package scene

import (
	"math"

	lin "github.com/xlab/linmath"
)

// Matrices are column-major: m[col][row].

// Compose builds T * R * S from a glTF translation, rotation quaternion
// (x, y, z, w) and scale.
func Compose(t [3]float32, r [4]float32, s [3]float32) lin.Mat4x4 {
	x, y, z, w := r[0], r[1], r[2], r[3]
	if x == 0 && y == 0 && z == 0 && w == 0 {
		w = 1
	}
	if s == ([3]float32{}) {
		s = [3]float32{1, 1, 1}
	}
	var m lin.Mat4x4
	m[0] = lin.Vec4{(1 - 2*(y*y+z*z)) * s[0], 2 * (x*y + z*w) * s[0], 2 * (x*z - y*w) * s[0], 0}
	m[1] = lin.Vec4{2 * (x*y - z*w) * s[1], (1 - 2*(x*x+z*z)) * s[1], 2 * (y*z + x*w) * s[1], 0}
	m[2] = lin.Vec4{2 * (x*z + y*w) * s[2], 2 * (y*z - x*w) * s[2], (1 - 2*(x*x+y*y)) * s[2], 0}
	m[3] = lin.Vec4{t[0], t[1], t[2], 1}
	return m
}

// FromColumns converts a glTF column-major matrix.
func FromColumns(a [16]float32) lin.Mat4x4 {
	var m lin.Mat4x4
	for c := 0; c < 4; c++ {
		copy(m[c][:], a[c*4:c*4+4])
	}
	return m
}

func identity() lin.Mat4x4 {
	var m lin.Mat4x4
	m.Identity()
	return m
}

func mul(a, b lin.Mat4x4) lin.Mat4x4 {
	var m lin.Mat4x4
	m.Mult(&a, &b)
	return m
}

func inverse(a lin.Mat4x4) lin.Mat4x4 {
	var m lin.Mat4x4
	m.Invert(&a)
	return m
}

func transformPoint(m *lin.Mat4x4, p [3]float32) [3]float32 {
	var out [3]float32
	for r := 0; r < 3; r++ {
		out[r] = m[0][r]*p[0] + m[1][r]*p[1] + m[2][r]*p[2] + m[3][r]
	}
	return out
}

// transformNormal applies the inverse transpose given the inverse.
func transformNormal(inv *lin.Mat4x4, n [3]float32) [3]float32 {
	var out [3]float32
	for r := 0; r < 3; r++ {
		out[r] = inv[r][0]*n[0] + inv[r][1]*n[1] + inv[r][2]*n[2]
	}
	return normalize(out)
}

func sub(a, b [3]float32) [3]float32 {
	return [3]float32{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func length(a [3]float32) float32 {
	return float32(math.Sqrt(float64(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])))
}

func normalize(a [3]float32) [3]float32 {
	l := length(a)
	if l == 0 {
		return a
	}
	return [3]float32{a[0] / l, a[1] / l, a[2] / l}
}

// Luminance uses Rec. 709 weights.
func Luminance(c [3]float32) float32 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}
