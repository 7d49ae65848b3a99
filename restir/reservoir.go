// Package restir implements the weighted reservoir sampling rules used by the
// ray-traced direct illumination passes. The shaders run the same arithmetic
// per pixel; this package is the host reference and decodes reservoir buffers
// read back from the device.
package restir

import "math"

// NoLight marks a reservoir that has not selected a sample yet.
const NoLight = ^uint32(0)

// Reservoir matches the per-pixel layout of the reservoir buffers.
type Reservoir struct {
	LightID uint32
	// PHat is the unnormalized target function of the selected sample.
	PHat float32
	SumW float32
	// W is the unbiased contribution weight, SumW / (M * PHat).
	W float32
	M uint32
}

// Empty returns a reservoir with no samples.
func Empty() Reservoir {
	return Reservoir{LightID: NoLight}
}

// Update streams one candidate into the reservoir. u is a uniform random
// number in [0,1). It reports whether the candidate replaced the selection.
func (r *Reservoir) Update(lightID uint32, weight, pHat, u float32) bool {
	r.M++
	if weight <= 0 || isBad(weight) {
		return false
	}
	r.SumW += weight
	if u*r.SumW < weight {
		r.LightID = lightID
		r.PHat = pHat
		return true
	}
	return false
}

// Finalize computes W from the accumulated weights.
func (r *Reservoir) Finalize() {
	if r.M == 0 || r.PHat <= 0 || r.SumW <= 0 {
		r.W = 0
		return
	}
	r.W = r.SumW / (float32(r.M) * r.PHat)
	if isBad(r.W) {
		r.W = 0
	}
}

// Clamp bounds the history length to mCap, scaling SumW so W is unchanged.
func (r *Reservoir) Clamp(mCap uint32) {
	if mCap == 0 || r.M <= mCap {
		return
	}
	r.SumW *= float32(mCap) / float32(r.M)
	r.M = mCap
}

// Contribution is the weight a reservoir carries into a merge when its
// selected sample has target value pHat at the destination pixel.
func (r Reservoir) Contribution(pHat float32) float32 {
	return pHat * r.W * float32(r.M)
}

// CombineWith merges a and b into a new reservoir. pHatA and pHatB are the
// target values of each reservoir's selected sample evaluated at the
// destination pixel. The merged M is capped at mCap when mCap is non-zero.
func CombineWith(a, b Reservoir, pHatA, pHatB, u float32, mCap uint32) Reservoir {
	s := Empty()
	wa := a.Contribution(pHatA)
	wb := b.Contribution(pHatB)
	if wa > 0 && !isBad(wa) {
		s.SumW += wa
		s.LightID, s.PHat = a.LightID, pHatA
	}
	if wb > 0 && !isBad(wb) {
		s.SumW += wb
		if u*s.SumW < wb {
			s.LightID, s.PHat = b.LightID, pHatB
		}
	}
	s.M = a.M + b.M
	if mCap != 0 && s.M > mCap {
		s.M = mCap
	}
	s.Finalize()
	return s
}

// Combine merges two reservoirs that share the destination's target
// function, so each reservoir carries exactly its SumW.
func Combine(a, b Reservoir, u float32, mCap uint32) Reservoir {
	return CombineWith(a, b, a.PHat, b.PHat, u, mCap)
}

// Neighbor describes the geometry a spatial neighbor is compared on.
type Neighbor struct {
	Normal [3]float32
	Depth  float32
}

// Accept reports whether a neighbor's reservoir may be reused at a pixel
// with geometry at. The normals must agree to within normalThreshold (cosine)
// and the linear depths to within depthThreshold relative to at.Depth.
func Accept(at, n Neighbor, normalThreshold, depthThreshold float32) bool {
	d := at.Normal[0]*n.Normal[0] + at.Normal[1]*n.Normal[1] + at.Normal[2]*n.Normal[2]
	if d < normalThreshold {
		return false
	}
	return float32(math.Abs(float64(at.Depth-n.Depth))) <= depthThreshold*at.Depth
}

func isBad(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
