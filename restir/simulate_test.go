package restir

import (
	"testing"
)

func fourLights(_ int, light uint32) float32 {
	return float32(light + 1)
}

func TestHistoryStabilizesAtCap(t *testing.T) {
	for _, spatial := range []bool{false, true} {
		sim := NewSimulator(Config{
			Width: 16, Height: 16,
			Candidates:      4,
			MCap:            20,
			Spatial:         spatial,
			SpatialSamples:  4,
			SpatialRadius:   3,
			NormalThreshold: 0.9,
			DepthThreshold:  0.1,
			Lights:          UniformLights(4),
			Target:          fourLights,
			Seed:            3,
		})

		var last []Reservoir
		for f := 0; f < 100; f++ {
			last = sim.Step()
			st := Stats(last, 20)
			if st.OverCap != 0 || st.MaxM > 20 {
				t.Fatalf("spatial=%v frame %d: M exceeded cap, max %d", spatial, f, st.MaxM)
			}
		}
		for px, r := range last {
			if r.M != 20 {
				t.Fatalf("spatial=%v pixel %d: M = %d after 100 frames, want 20", spatial, px, r.M)
			}
		}
		if sim.Frame() != 100 {
			t.Errorf("frame counter = %d", sim.Frame())
		}
	}
}

func TestHistoryGrowth(t *testing.T) {
	sim := NewSimulator(Config{
		Width: 2, Height: 2,
		Candidates: 4,
		MCap:       20,
		Lights:     UniformLights(4),
		Target:     fourLights,
		Seed:       1,
	})
	want := []uint32{4, 8, 12, 16, 20, 20, 20}
	for f, m := range want {
		rs := sim.Step()
		if rs[0].M != m {
			t.Errorf("frame %d: M = %d, want %d", f, rs[0].M, m)
		}
	}
}

func TestSingleFrameEstimateIsUnbiased(t *testing.T) {
	sim := NewSimulator(Config{
		Width: 64, Height: 64,
		Candidates: 2,
		Lights:     UniformLights(4),
		Target:     fourLights,
		Seed:       11,
	})
	sim.Step()

	var sum float64
	n := 64 * 64
	for px := 0; px < n; px++ {
		sum += float64(sim.Estimate(px))
	}
	mean := sum / float64(n)
	if !near(mean, 10, 0.3) {
		t.Errorf("mean estimate %.3f, want 10", mean)
	}
}

func TestSpatialRejectsDisagreeingNeighbors(t *testing.T) {
	cfg := Config{
		Width: 8, Height: 8,
		Candidates:      1,
		Spatial:         true,
		SpatialSamples:  8,
		SpatialRadius:   2,
		NormalThreshold: 0.9,
		DepthThreshold:  0.01,
		Lights:          UniformLights(4),
		Target:          fourLights,
		Seed:            5,
	}

	// Every pixel sits at a very different depth, so no neighbor is reused.
	cfg.Geometry = func(px int) Neighbor {
		return Neighbor{Normal: [3]float32{0, 0, 1}, Depth: float32(1 + 10*px)}
	}
	for px, r := range NewSimulator(cfg).Step() {
		if r.M != 1 {
			t.Fatalf("pixel %d reused a rejected neighbor: M = %d", px, r.M)
		}
	}

	cfg.Geometry = nil
	reused := 0
	for _, r := range NewSimulator(cfg).Step() {
		if r.M > 1 {
			reused++
		}
	}
	if reused == 0 {
		t.Error("flat geometry never reused a neighbor")
	}
}
