package pass

import (
	"math"
	"testing"
)

func TestHalton(t *testing.T) {
	tests := []struct {
		index, base int
		want        float32
	}{
		{1, 2, 0.5},
		{2, 2, 0.25},
		{3, 2, 0.75},
		{4, 2, 0.125},
		{1, 3, 1.0 / 3},
		{2, 3, 2.0 / 3},
		{3, 3, 1.0 / 9},
		{0, 2, 0},
	}
	for _, tt := range tests {
		if got := Halton(tt.index, tt.base); math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("Halton(%d, %d) = %v, want %v", tt.index, tt.base, got, tt.want)
		}
	}
}

func TestJitter(t *testing.T) {
	seen := make(map[[2]float32]bool)
	for f := uint32(0); f < JitterPhases; f++ {
		j := Jitter(f)
		for _, v := range j {
			if v < -0.5 || v >= 0.5 {
				t.Fatalf("Jitter(%d) = %v out of range", f, j)
			}
		}
		if seen[j] {
			t.Errorf("Jitter(%d) = %v repeats within a cycle", f, j)
		}
		seen[j] = true
	}
	if Jitter(3) != Jitter(3+JitterPhases) {
		t.Error("jitter sequence does not wrap")
	}
}
