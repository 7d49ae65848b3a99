package scene

// AliasEntry is one bucket of a Walker alias table, 16 bytes on the device.
// OriProb and AliasOriProb carry the normalized source probabilities so the
// shader can return the pdf of whichever index it picked.
type AliasEntry struct {
	Prob         float32
	Alias        uint32
	OriProb      float32
	AliasOriProb float32
}

// AliasTable samples an index proportionally to its weight in O(1).
type AliasTable []AliasEntry

// BuildAliasTable builds a table over weights using Vose's method.
// Negative weights count as zero. When every weight is zero the table is
// uniform.
func BuildAliasTable(weights []float32) AliasTable {
	n := len(weights)
	if n == 0 {
		return nil
	}

	var sum float64
	for _, w := range weights {
		if w > 0 {
			sum += float64(w)
		}
	}

	t := make(AliasTable, n)
	scaled := make([]float64, n)
	for i, w := range weights {
		p := 1 / float64(n)
		if sum > 0 {
			p = 0
			if w > 0 {
				p = float64(w) / sum
			}
		}
		t[i].OriProb = float32(p)
		scaled[i] = p * float64(n)
	}

	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, s := range scaled {
		if s < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		t[s].Prob = float32(scaled[s])
		t[s].Alias = uint32(l)

		scaled[l] = scaled[l] + scaled[s] - 1
		if scaled[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	// Leftovers are within rounding of one.
	for _, i := range append(small, large...) {
		t[i].Prob = 1
		t[i].Alias = uint32(i)
	}

	for i := range t {
		t[i].AliasOriProb = t[t[i].Alias].OriProb
	}
	return t
}

// Sample picks a bucket with u1 and chooses between it and its alias with
// u2. It returns the index and the probability of having drawn it.
func (t AliasTable) Sample(u1, u2 float32) (uint32, float32) {
	n := len(t)
	if n == 0 {
		return 0, 0
	}
	i := int(u1 * float32(n))
	if i >= n {
		i = n - 1
	}
	e := &t[i]
	if u2 < e.Prob {
		return uint32(i), e.OriProb
	}
	return e.Alias, e.AliasOriProb
}

// Probabilities returns the selection probability of every index implied
// by the buckets.
func (t AliasTable) Probabilities() []float64 {
	n := float64(len(t))
	p := make([]float64, len(t))
	for i, e := range t {
		p[i] += float64(e.Prob) / n
		p[e.Alias] += (1 - float64(e.Prob)) / n
	}
	return p
}
