package renderer

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestAccumulate(t *testing.T) {
	s := &FrameStats{avg: make(map[string]time.Duration)}
	names := []string{"gbuffer", "taa"}
	// 1 tick is 1ns with a period of 1.
	s.accumulate(names, []uint64{100, 1100, 1600}, 1)
	if got := s.Node("gbuffer"); got != 1000 {
		t.Errorf("gbuffer = %v, want 1µs", got)
	}
	if got := s.Total(); got != 1500 {
		t.Errorf("total = %v, want 1.5µs", got)
	}

	s.accumulate(names, []uint64{0, 2000, 2500}, 1)
	if got, want := s.Node("gbuffer"), time.Duration(1100); got != want {
		t.Errorf("gbuffer average = %v, want %v", got, want)
	}
	if got, want := s.Node("taa"), time.Duration(500); got != want {
		t.Errorf("taa average = %v, want %v", got, want)
	}

	s.accumulate([]string{"gbuffer", "ui"}, []uint64{0, 1100, 1200}, 2)
	if len(s.order) != 3 || s.order[2] != "ui" {
		t.Errorf("order = %v", s.order)
	}
	if got := s.Node("ui"); got != 200 {
		t.Errorf("ui = %v, want the period applied", got)
	}
}

func TestReport(t *testing.T) {
	s := &FrameStats{avg: make(map[string]time.Duration)}
	s.accumulate([]string{"composite"}, []uint64{0, 2500000}, 1)
	var buf bytes.Buffer
	s.Report(&buf)
	out := buf.String()
	for _, want := range []string{"composite", "2.500 ms", "1 frames"} {
		if !strings.Contains(out, want) {
			t.Errorf("report is missing %q:\n%s", want, out)
		}
	}
}
