// Package fsr packs the uniform constants of the two FidelityFX Super
// Resolution 1.0 stages: EASU (upscale) and RCAS (sharpen).
package fsr

import (
	"fmt"
	"math"
	"strings"
	"unsafe"

	"github.com/x448/float16"

	"github.com/celer/hybrid/internal/imath"
)

// Region is the number of output pixels covered by one workgroup on each
// axis. Each 64-thread group processes a 16x16 tile.
const Region = 16

// Constants is the uniform block consumed by both shader stages.
type Constants struct {
	Const0 [4]uint32
	Const1 [4]uint32
	Const2 [4]uint32
	Const3 [4]uint32
	// Sample.x is 1 when the input is HDR.
	Sample [4]uint32
}

// Size is the byte size of Constants.
const Size = uint64(unsafe.Sizeof(Constants{}))

// Quality is one of the standard FSR scaling presets.
type Quality int

const (
	Native Quality = iota
	UltraQuality
	QualityMode
	Balanced
	Performance
)

// Factor returns the per-axis ratio of output to render resolution.
func (q Quality) Factor() float32 {
	switch q {
	case UltraQuality:
		return 1.3
	case QualityMode:
		return 1.5
	case Balanced:
		return 1.7
	case Performance:
		return 2.0
	}
	return 1
}

var qualityNames = [...]string{"native", "ultra quality", "quality", "balanced", "performance"}

func (q Quality) String() string {
	if q < 0 || int(q) >= len(qualityNames) {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// ParseQuality accepts the String form of a preset or its first word.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for q := Native; q <= Performance; q++ {
		name := q.String()
		if s == name || s == strings.Fields(name)[0] {
			return q, nil
		}
	}
	return Native, fmt.Errorf("fsr: unknown quality %q", s)
}

// RenderExtent returns the internal resolution used for an output of
// width x height at quality q.
func RenderExtent(width, height uint32, q Quality) (uint32, uint32) {
	f := q.Factor()
	w := uint32(float32(width) / f)
	h := uint32(float32(height) / f)
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

func bits(f float32) uint32 {
	return math.Float32bits(f)
}

// EASU fills the upscaling constants for an input image of inW x inH
// rendered fully into an output of outW x outH.
func EASU(inW, inH, outW, outH uint32) Constants {
	return EASUViewport(inW, inH, inW, inH, outW, outH)
}

// EASUViewport is EASU where only a viewport of the input image holds the
// rendered frame.
func EASUViewport(viewW, viewH, inW, inH, outW, outH uint32) Constants {
	vx, vy := float32(viewW), float32(viewH)
	ix, iy := float32(inW), float32(inH)
	ox, oy := float32(outW), float32(outH)

	var c Constants
	c.Const0 = [4]uint32{
		bits(vx / ox),
		bits(vy / oy),
		bits(0.5*vx/ox - 0.5),
		bits(0.5*vy/oy - 0.5),
	}
	c.Const1 = [4]uint32{
		bits(1 / ix),
		bits(1 / iy),
		bits(1 / ix),
		bits(-1 / iy),
	}
	c.Const2 = [4]uint32{
		bits(-1 / ix),
		bits(2 / iy),
		bits(1 / ix),
		bits(2 / iy),
	}
	c.Const3 = [4]uint32{
		bits(0 / ix),
		bits(4 / iy),
		0,
		0,
	}
	return c
}

// RCAS fills the sharpening constants. Sharpness is in stops: 0 is the
// strongest, each unit halves the effect.
func RCAS(sharpness float32) Constants {
	s := float32(math.Exp2(-float64(sharpness)))
	h := uint32(float16.Fromfloat32(s).Bits())

	var c Constants
	c.Const0 = [4]uint32{bits(s), h | h<<16, 0, 0}
	return c
}

// WithHDR marks c as processing an HDR input.
func (c Constants) WithHDR(hdr bool) Constants {
	c.Sample[0] = 0
	if hdr {
		c.Sample[0] = 1
	}
	return c
}

// Layout places the EASU and RCAS blocks in one uniform buffer with both
// offsets aligned to the device's minimum uniform buffer offset alignment.
type Layout struct {
	EASUOffset uint64
	RCASOffset uint64
	Size       uint64
}

func NewLayout(minUniformAlignment uint64) Layout {
	if minUniformAlignment == 0 {
		minUniformAlignment = 1
	}
	stride := imath.AlignUp(Size, minUniformAlignment)
	return Layout{EASUOffset: 0, RCASOffset: stride, Size: stride + Size}
}

// Groups returns the dispatch size covering an output of width x height.
func Groups(width, height uint32) (uint32, uint32) {
	return imath.Groups(width, height, Region, Region)
}
