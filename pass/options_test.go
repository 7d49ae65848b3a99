package pass

import (
	"testing"

	fg "github.com/celer/hybrid/framegraph"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

func TestDefaultSettingsToggles(t *testing.T) {
	s := DefaultSettings()
	if got, want := s.Toggles(), schedule.DefaultToggles(); got != want {
		t.Errorf("Toggles() = %+v, want %+v", got, want)
	}
	s.DI.Enabled = false
	if s.Toggles().DISpatial {
		t.Error("spatial reuse selected without DI")
	}
}

func TestPushConstantSizes(t *testing.T) {
	tests := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"di", sizeOf[diPush](), 64},
		{"reflection", sizeOf[reflectionPush](), 40},
		{"atrous", sizeOf[atrousPush](), 32},
		{"upsample", sizeOf[upsamplePush](), 16},
		{"ray", sizeOf[rayPush](), 16},
		{"composite", sizeOf[compositePush](), 16},
		{"taa", sizeOf[taaPush](), 16},
		{"tonemap", sizeOf[tonemapPush](), 32},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s push constants are %d bytes, want %d", tt.name, tt.got, tt.want)
		}
	}
}

func TestEnabled(t *testing.T) {
	tog := schedule.DefaultToggles()
	tog.Reflection = false
	tog.GI = false
	plan, err := schedule.NewCache().Plan(tog, fg.ParityOf(0))
	if err != nil {
		t.Fatal(err)
	}
	want := EnableDI | EnableShadow | EnableAO
	if got := Enabled(plan.Has); got != want {
		t.Errorf("Enabled = %05b, want %05b", got, want)
	}
	if got := Enabled(func(string) bool { return false }); got != 0 {
		t.Errorf("Enabled of an empty plan = %05b", got)
	}
}

func TestDisplayModeString(t *testing.T) {
	if got := DisplayAO.String(); got != "AO" {
		t.Errorf("DisplayAO = %q", got)
	}
	if got := DisplayMode(42).String(); got != "DisplayMode(42)" {
		t.Errorf("DisplayMode(42) = %q", got)
	}
}

func TestShadowMaskExtent(t *testing.T) {
	tests := []struct{ w, h, mw, mh uint32 }{
		{1920, 1080, 240, 270},
		{641, 361, 81, 91},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		if mw, mh := ShadowMaskExtent(tt.w, tt.h); mw != tt.mw || mh != tt.mh {
			t.Errorf("ShadowMaskExtent(%d, %d) = %d, %d, want %d, %d", tt.w, tt.h, mw, mh, tt.mw, tt.mh)
		}
	}
}

func TestGBufferMip(t *testing.T) {
	tests := []struct{ scale, w, h, want uint32 }{
		{0, 1920, 1080, 0},
		{1, 1920, 1080, 1},
		{3, 1920, 1080, 3},
		{11, 1920, 1080, 10},
		{40, 1920, 1080, 10},
		{2, 1, 1, 0},
	}
	for _, tt := range tests {
		if got := gbufferMip(tt.scale, tt.w, tt.h); got != tt.want {
			t.Errorf("gbufferMip(%d, %d, %d) = %d, want %d", tt.scale, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestDIConstants(t *testing.T) {
	s := DefaultSettings()
	if s.DI.Scale != 0 {
		t.Errorf("direct lighting defaults to scale %d", s.DI.Scale)
	}
	s.DI.Scale = 1
	d := &RayTracedDI{
		Options:     &s.DI,
		Temporal:    &vkg.Buffer{Address: 0x1000},
		Passthrough: &vkg.Buffer{Address: 0x2000},
		Spatial:     &vkg.Buffer{Address: 0x3000},
		scale:       gbufferMip(s.DI.Scale, 1920, 1080),
	}

	plan, err := schedule.NewCache().Plan(s.Toggles(), fg.ParityOf(3))
	if err != nil {
		t.Fatal(err)
	}
	p := d.constants(&Frame{Number: 3, Plan: plan})
	if p.Scale != 1 {
		t.Errorf("Scale = %d, want 1", p.Scale)
	}
	if p.Temporal != 0x1000 || p.Passthrough != 0x2000 || p.Spatial != 0x3000 {
		t.Errorf("reservoir addresses = %#x %#x %#x", p.Temporal, p.Passthrough, p.Spatial)
	}
	if p.Frame != 3 || p.Candidates != s.DI.Candidates || p.MCap != s.DI.MCap {
		t.Errorf("constants = %+v", p)
	}
	if p.UseSpatial != 1 {
		t.Error("spatial reservoir not selected")
	}
	if len(d.push(&Frame{Plan: plan})) != int(sizeOf[diPush]()) {
		t.Error("push bytes do not cover the constants")
	}

	s.DI.Spatial = false
	plan, err = schedule.NewCache().Plan(s.Toggles(), fg.ParityOf(3))
	if err != nil {
		t.Fatal(err)
	}
	if d.constants(&Frame{Plan: plan}).UseSpatial != 0 {
		t.Error("spatial reservoir selected with spatial reuse off")
	}
}
