// Package imath holds the integer helpers used for image extents, dispatch
// grids and buffer offsets.
package imath

import "math/bits"

// MipLevels returns floor(log2(max(w,h))) + 1, the length of a full mip chain.
func MipLevels(w, h uint32) uint32 {
	m := w
	if h > m {
		m = h
	}
	if m == 0 {
		return 1
	}
	return uint32(bits.Len32(m))
}

// DivCeil returns ceil(a / b).
func DivCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// Scaled returns the extent of mip level scale: ceil(v / 2^scale).
func Scaled(v, scale uint32) uint32 {
	return DivCeil(v, 1<<scale)
}

// ScaledExtent applies Scaled to both dimensions.
func ScaledExtent(w, h, scale uint32) (uint32, uint32) {
	return Scaled(w, scale), Scaled(h, scale)
}

// Groups returns the workgroup grid covering w x h with groups of gx x gy.
func Groups(w, h, gx, gy uint32) (uint32, uint32) {
	return DivCeil(w, gx), DivCeil(h, gy)
}

// AlignUp rounds v up to a multiple of align. align of zero returns v.
func AlignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	if m := v % align; m != 0 {
		return v - m + align
	}
	return v
}
