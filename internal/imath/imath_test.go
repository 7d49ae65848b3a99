package imath

import (
	"math"
	"testing"
)

func TestMipLevels(t *testing.T) {
	cases := []struct {
		w, h, want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{128, 128, 8},
		{129, 64, 8},
		{1920, 1080, 11},
		{1280, 720, 11},
		{4096, 16, 13},
		{0, 0, 1},
	}
	for _, c := range cases {
		if got := MipLevels(c.w, c.h); got != c.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", c.w, c.h, got, c.want)
		}
	}

	for w := uint32(1); w < 5000; w += 37 {
		for _, h := range []uint32{1, 3, 700, 4999} {
			m := w
			if h > m {
				m = h
			}
			want := uint32(math.Floor(math.Log2(float64(m)))) + 1
			if got := MipLevels(w, h); got != want {
				t.Fatalf("MipLevels(%d, %d) = %d, want %d", w, h, got, want)
			}
		}
	}
}

func TestScaled(t *testing.T) {
	if w, h := ScaledExtent(1920, 1080, 1); w != 960 || h != 540 {
		t.Errorf("half res = %dx%d", w, h)
	}
	if w, h := ScaledExtent(1281, 721, 2); w != 321 || h != 181 {
		t.Errorf("quarter res = %dx%d", w, h)
	}
	if Scaled(7, 0) != 7 {
		t.Error("scale 0 must be identity")
	}
}

func TestGroups(t *testing.T) {
	if x, y := Groups(1920, 1080, 8, 8); x != 240 || y != 135 {
		t.Errorf("8x8 groups = %dx%d", x, y)
	}
	if x, y := Groups(1920, 1080, 16, 16); x != 120 || y != 68 {
		t.Errorf("16x16 groups = %dx%d", x, y)
	}
	if x, y := Groups(1921, 1081, 8, 4); x != 241 || y != 271 {
		t.Errorf("8x4 groups = %dx%d", x, y)
	}
}

func TestAlignUp(t *testing.T) {
	if AlignUp(12, 3) != 12 {
		t.Error("aligned value changed")
	}
	if AlignUp(10, 3) != 12 {
		t.Error("expected 12")
	}
	if AlignUp(68, 256) != 256 {
		t.Error("expected 256")
	}
	if AlignUp(5, 0) != 5 {
		t.Error("zero alignment must be identity")
	}
}
