package fsr

import (
	"fmt"
	"math"
	"testing"
)

func f(u uint32) float32 {
	return math.Float32frombits(u)
}

func TestEASUConstants(t *testing.T) {
	c := EASU(1280, 720, 1920, 1080)

	if got := f(c.Const0[0]); math.Abs(float64(got)-1280.0/1920) > 1e-6 {
		t.Errorf("x scale %v", got)
	}
	if got := f(c.Const0[1]); math.Abs(float64(got)-720.0/1080) > 1e-6 {
		t.Errorf("y scale %v", got)
	}
	if got := f(c.Const0[2]); math.Abs(float64(got)-(0.5*1280/1920-0.5)) > 1e-6 {
		t.Errorf("x offset %v", got)
	}
	if f(c.Const1[3]) != -1/float32(720) {
		t.Errorf("const1.w %v", f(c.Const1[3]))
	}
	if f(c.Const3[1]) != 4/float32(720) || c.Const3[2] != 0 {
		t.Errorf("const3 %v", c.Const3)
	}
}

func TestRCASConstants(t *testing.T) {
	tests := []struct {
		sharpness float32
		want      float32
		half      uint32
	}{
		{0, 1, 0x3c00},
		{1, 0.5, 0x3800},
		{2, 0.25, 0x3400},
	}
	for _, tt := range tests {
		c := RCAS(tt.sharpness)
		if f(c.Const0[0]) != tt.want {
			t.Errorf("sharpness %v: %v, want %v", tt.sharpness, f(c.Const0[0]), tt.want)
		}
		if c.Const0[1] != tt.half|tt.half<<16 {
			t.Errorf("sharpness %v: packed %#x", tt.sharpness, c.Const0[1])
		}
	}
}

func TestOutputCoversSwapchain(t *testing.T) {
	for _, q := range []Quality{Native, UltraQuality, QualityMode, Balanced, Performance} {
		w, h := RenderExtent(1920, 1080, q)
		if w > 1920 || h > 1080 || w == 0 || h == 0 {
			t.Errorf("%v: render extent %dx%d", q, w, h)
		}
		gx, gy := Groups(1920, 1080)
		if gx*Region < 1920 || gy*Region < 1080 {
			t.Errorf("%v: groups %dx%d do not cover the output", q, gx, gy)
		}
	}
	if w, h := RenderExtent(1920, 1080, Performance); w != 960 || h != 540 {
		t.Errorf("performance extent %dx%d", w, h)
	}
	if gx, gy := Groups(1920, 1080); gx != 120 || gy != 68 {
		t.Errorf("groups %dx%d", gx, gy)
	}
}

func TestLayout(t *testing.T) {
	if Size != 80 {
		t.Fatalf("constants are %d bytes", Size)
	}
	for _, tt := range []struct{ align, rcas, size uint64 }{
		{256, 256, 336},
		{64, 128, 208},
		{16, 80, 160},
		{0, 80, 160},
	} {
		l := NewLayout(tt.align)
		if l.EASUOffset != 0 || l.RCASOffset != tt.rcas || l.Size != tt.size {
			t.Errorf("align %d: %+v", tt.align, l)
		}
	}
}

func TestHDRFlag(t *testing.T) {
	c := RCAS(0.2).WithHDR(true)
	if c.Sample[0] != 1 {
		t.Error("hdr flag not set")
	}
	if c.WithHDR(false).Sample[0] != 0 {
		t.Error("hdr flag not cleared")
	}
}

func TestParseQuality(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Quality
	}{
		{"native", Native},
		{"ultra", UltraQuality},
		{"Ultra Quality", UltraQuality},
		{"quality", QualityMode},
		{" balanced", Balanced},
		{"performance", Performance},
	} {
		got, err := ParseQuality(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseQuality(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseQuality("ultra performance"); err == nil {
		t.Error("unknown preset accepted")
	}
}

func TestQualityString(t *testing.T) {
	if got := Balanced.String(); got != "balanced" {
		t.Errorf("Balanced = %q", got)
	}
	for _, q := range []Quality{-1, Performance + 1, 42} {
		want := fmt.Sprintf("Quality(%d)", int(q))
		if got := q.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
		if q.Factor() != 1 {
			t.Errorf("%v: factor %v", q, q.Factor())
		}
	}
}
