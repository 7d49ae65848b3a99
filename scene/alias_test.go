package scene

import (
	"math"
	"math/rand"
	"testing"
)

func TestAliasTableProbabilities(t *testing.T) {
	tests := []struct {
		name    string
		weights []float32
	}{
		{"single", []float32{3}},
		{"uniform", []float32{1, 1, 1, 1}},
		{"skewed", []float32{1, 2, 3, 10, 0.5}},
		{"zeros", []float32{0, 5, 0, 5}},
		{"negative", []float32{-1, 1}},
		{"all zero", []float32{0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := BuildAliasTable(tt.weights)
			if len(table) != len(tt.weights) {
				t.Fatalf("len = %d", len(table))
			}

			var sum float64
			for _, w := range tt.weights {
				if w > 0 {
					sum += float64(w)
				}
			}
			for i, e := range table {
				if e.Prob < 0 || e.Prob > 1 {
					t.Errorf("entry %d: prob %v out of range", i, e.Prob)
				}
				if int(e.Alias) >= len(table) {
					t.Errorf("entry %d: alias %d out of range", i, e.Alias)
				}
				if e.AliasOriProb != table[e.Alias].OriProb {
					t.Errorf("entry %d: alias pdf %v, want %v", i, e.AliasOriProb, table[e.Alias].OriProb)
				}
			}

			for i, p := range table.Probabilities() {
				want := 1 / float64(len(tt.weights))
				if sum > 0 {
					want = math.Max(0, float64(tt.weights[i])) / sum
				}
				if math.Abs(p-want) > 1e-5 {
					t.Errorf("index %d: probability %v, want %v", i, p, want)
				}
				if math.Abs(float64(table[i].OriProb)-want) > 1e-6 {
					t.Errorf("index %d: OriProb %v, want %v", i, table[i].OriProb, want)
				}
			}
		})
	}
}

func TestAliasTableSampling(t *testing.T) {
	weights := []float32{1, 4, 0, 2, 8, 1}
	table := BuildAliasTable(weights)
	rng := rand.New(rand.NewSource(42))

	const n = 200000
	counts := make([]int, len(weights))
	for i := 0; i < n; i++ {
		idx, pdf := table.Sample(rng.Float32(), rng.Float32())
		counts[idx]++
		if pdf != table[idx].OriProb {
			t.Fatalf("pdf %v for index %d, want %v", pdf, idx, table[idx].OriProb)
		}
	}
	if counts[2] != 0 {
		t.Errorf("zero weight sampled %d times", counts[2])
	}
	tol := 3 / math.Sqrt(n)
	for i, w := range weights {
		got := float64(counts[i]) / n
		want := float64(w) / 16
		if math.Abs(got-want) > tol {
			t.Errorf("index %d: frequency %.4f, want %.4f", i, got, want)
		}
	}
}

func TestAliasTableEdges(t *testing.T) {
	if BuildAliasTable(nil) != nil {
		t.Error("empty weights should give a nil table")
	}
	var empty AliasTable
	if i, pdf := empty.Sample(0.5, 0.5); i != 0 || pdf != 0 {
		t.Errorf("empty table sampled %d %v", i, pdf)
	}
	table := BuildAliasTable([]float32{1, 1})
	if i, _ := table.Sample(1, 0); i != 1 {
		t.Errorf("u1 = 1 sampled %d", i)
	}
}
