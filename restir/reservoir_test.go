package restir

import (
	"math"
	"math/rand"
	"testing"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func reservoir(light uint32, pHat, sumW float32, m uint32) Reservoir {
	r := Reservoir{LightID: light, PHat: pHat, SumW: sumW, M: m}
	r.Finalize()
	return r
}

func TestFinalize(t *testing.T) {
	r := reservoir(3, 2, 8, 4)
	if r.W != 1 {
		t.Errorf("W = %v, want 1", r.W)
	}

	r = reservoir(3, 0, 8, 4)
	if r.W != 0 {
		t.Errorf("zero target must give zero weight, got %v", r.W)
	}

	var e Reservoir
	e.Finalize()
	if e.W != 0 {
		t.Errorf("empty reservoir W = %v", e.W)
	}
}

func TestUpdateSelectsProportionally(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	weights := []float32{1, 2, 3}
	counts := make([]int, len(weights))
	const n = 60000
	for i := 0; i < n; i++ {
		r := Empty()
		for id, w := range weights {
			r.Update(uint32(id), w, w, rng.Float32())
		}
		if r.M != 3 {
			t.Fatalf("M = %d", r.M)
		}
		counts[r.LightID]++
	}
	for id, w := range weights {
		got := float64(counts[id]) / n
		want := float64(w) / 6
		if !near(got, want, 0.01) {
			t.Errorf("light %d chosen %.4f, want %.4f", id, got, want)
		}
	}
}

func TestUpdateIgnoresInvalidWeights(t *testing.T) {
	r := Empty()
	r.Update(1, float32(math.NaN()), 1, 0)
	r.Update(2, -1, 1, 0)
	r.Update(3, float32(math.Inf(1)), 1, 0)
	if r.LightID != NoLight || r.SumW != 0 || r.M != 3 {
		t.Errorf("unexpected reservoir %+v", r)
	}
}

func TestCombineSumsWeights(t *testing.T) {
	a := reservoir(1, 2, 3, 4)
	b := reservoir(2, 5, 5, 10)

	c := Combine(a, b, 0.5, 20)
	if !near(float64(c.SumW), 8, 1e-5) {
		t.Errorf("SumW = %v, want 8", c.SumW)
	}
	if c.M != 14 {
		t.Errorf("M = %d, want 14", c.M)
	}

	c = Combine(a, b, 0.5, 10)
	if c.M != 10 {
		t.Errorf("capped M = %d, want 10", c.M)
	}
	if !near(float64(c.SumW), 8, 1e-5) {
		t.Errorf("capped SumW = %v, want 8", c.SumW)
	}

	c = Combine(a, b, 0.5, 0)
	if c.M != 14 {
		t.Errorf("uncapped M = %d", c.M)
	}
}

func TestCombineSelectsProportionally(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := reservoir(1, 2, 3, 4)
	b := reservoir(2, 5, 9, 10)

	const n = 50000
	chosenB := 0
	for i := 0; i < n; i++ {
		if Combine(a, b, rng.Float32(), 0).LightID == 2 {
			chosenB++
		}
	}
	got := float64(chosenB) / n
	if !near(got, 0.75, 3/math.Sqrt(n)) {
		t.Errorf("b chosen %.4f, want 0.75", got)
	}
}

func TestCombineWithEmpty(t *testing.T) {
	a := reservoir(4, 1, 2, 3)
	c := Combine(Empty(), a, 0.99, 0)
	if c.LightID != 4 || c.M != 3 {
		t.Errorf("unexpected %+v", c)
	}
	c = Combine(a, Empty(), 0.99, 0)
	if c.LightID != 4 {
		t.Errorf("empty reservoir replaced selection: %+v", c)
	}
}

func TestClampPreservesWeight(t *testing.T) {
	r := reservoir(1, 2, 100, 50)
	w := r.W
	r.Clamp(20)
	if r.M != 20 {
		t.Errorf("M = %d", r.M)
	}
	r.Finalize()
	if !near(float64(r.W), float64(w), 1e-5) {
		t.Errorf("W changed from %v to %v", w, r.W)
	}

	r = reservoir(1, 2, 10, 5)
	r.Clamp(20)
	if r.M != 5 || r.SumW != 10 {
		t.Errorf("reservoir under cap changed: %+v", r)
	}
}

func TestAccept(t *testing.T) {
	at := Neighbor{Normal: [3]float32{0, 0, 1}, Depth: 10}
	if !Accept(at, Neighbor{Normal: [3]float32{0, 0, 1}, Depth: 10.5}, 0.9, 0.1) {
		t.Error("close neighbor rejected")
	}
	if Accept(at, Neighbor{Normal: [3]float32{0, 0, 1}, Depth: 12}, 0.9, 0.1) {
		t.Error("far neighbor accepted")
	}
	if Accept(at, Neighbor{Normal: [3]float32{1, 0, 0}, Depth: 10}, 0.9, 0.1) {
		t.Error("perpendicular neighbor accepted")
	}
}
