package schedule

import (
	"strings"
	"testing"

	fg "github.com/celer/hybrid/framegraph"
)

// allToggles enumerates every on/off combination of the seven switches
// with the given iteration counts.
func allToggles(iterations int) []Toggles {
	var out []Toggles
	for m := 0; m < 1<<7; m++ {
		out = append(out, Toggles{
			DI:                   m&1 != 0,
			DISpatial:            m&2 != 0,
			Reflection:           m&4 != 0,
			Shadow:               m&8 != 0,
			AO:                   m&16 != 0,
			GI:                   m&32 != 0,
			UI:                   m&64 != 0,
			ReflectionIterations: iterations,
			ShadowIterations:     iterations,
			AOIterations:         iterations,
			GIIterations:         iterations,
		})
	}
	return out
}

func TestEveryCombinationValidates(t *testing.T) {
	cache := NewCache()
	for _, iterations := range []int{0, 1, 2, 5} {
		for _, tg := range allToggles(iterations) {
			for _, p := range []fg.Parity{0, 1} {
				if _, err := cache.Plan(tg, p); err != nil {
					t.Fatalf("%+v parity %d: %v", tg, p, err)
				}
			}
		}
	}
	if cache.Len() != 4*128*2 {
		t.Errorf("cached %d plans", cache.Len())
	}
}

func TestCacheReturnsSamePlan(t *testing.T) {
	cache := NewCache()
	a, err := cache.Plan(DefaultToggles(), 0)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := cache.Plan(DefaultToggles(), 0)
	c, _ := cache.Plan(DefaultToggles(), 1)
	if a != b {
		t.Error("plan compiled twice")
	}
	if a == c {
		t.Error("parities share a plan")
	}
}

func TestDisabledPassesAreElided(t *testing.T) {
	tg := DefaultToggles()
	tg.Reflection = false
	tg.AO = false
	tg.DISpatial = false
	tg.UI = false
	plan, err := NewCache().Plan(tg, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range []string{NodeReflectionTrace, NodeATrous("reflection", 0), NodeRayTrace(AO), NodeDISpatial, NodeUI} {
		if plan.Has(n) {
			t.Errorf("%s recorded while disabled", n)
		}
	}
	for _, n := range []string{NodeGBuffer, NodeDITemporal, NodeDIComposite, NodeRayTrace(Shadow), NodeComposite, NodeBlit} {
		if !plan.Has(n) {
			t.Errorf("%s missing", n)
		}
	}
	// Outputs of disabled passes are read by composite without a barrier.
	for _, b := range plan.Before(NodeComposite) {
		if b.Resource == ReflectionOutput || b.Resource == RayOutput(AO) {
			t.Errorf("barrier on disabled output %v", b)
		}
	}
}

func TestNodeOrder(t *testing.T) {
	tg := DefaultToggles()
	nodes := Build(tg).Nodes()
	pos := map[string]int{}
	for i, n := range nodes {
		pos[n] = i
	}
	order := []string{
		NodeGBuffer, NodeGBufferMips, NodeDITemporal, NodeDISpatial, NodeDIComposite,
		NodeReflectionTrace, NodeReflectionReproject, NodeATrous("reflection", 0), NodeReflectionCopy,
		NodeRayTrace(Shadow), NodeRayTrace(AO), NodeRayTrace(GI),
		NodeComposite, NodeTAA, NodeTonemap, NodeEASU, NodeRCAS, NodeBlit, NodeUI,
	}
	for i := 1; i < len(order); i++ {
		if pos[order[i-1]] >= pos[order[i]] {
			t.Errorf("%s runs after %s", order[i-1], order[i])
		}
	}

	count := 0
	for _, n := range nodes {
		if strings.HasPrefix(n, "reflection.atrous.") {
			count++
		}
	}
	if count != tg.ReflectionIterations {
		t.Errorf("%d reflection iterations, want %d", count, tg.ReflectionIterations)
	}
}

func TestIndirectDispatchBarriers(t *testing.T) {
	plan, err := NewCache().Plan(DefaultToggles(), 1)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, b := range plan.Before(NodeATrous("reflection", 0)) {
		if b.Resource == ReflectionArgs {
			found = true
			if b.DstStage != fg.StageDrawIndirect || b.SrcStage != fg.StageCompute {
				t.Errorf("indirect args barrier %v", b)
			}
		}
	}
	if !found {
		t.Error("no barrier between tile classification and the indirect dispatch")
	}
	// Later iterations reuse the same arguments without another barrier.
	for _, b := range plan.Before(NodeATrous("reflection", 1)) {
		if b.Resource == ReflectionArgs {
			t.Errorf("redundant barrier %v", b)
		}
	}
}

func TestPingPongHistoryParity(t *testing.T) {
	for k := uint64(0); k < 3; k++ {
		p := fg.ParityOf(k)
		plan, err := NewCache().Plan(DefaultToggles(), p)
		if err != nil {
			t.Fatal(err)
		}
		var written string
		for _, b := range plan.Before(NodeTAA) {
			if strings.HasPrefix(b.Resource, TAA) {
				written = b.Resource
			}
		}
		if want := fg.SlotName(TAA, p.Write()); written != want {
			t.Errorf("frame %d writes %q, want %q", k, written, want)
		}
	}
}

func TestATrousResult(t *testing.T) {
	if _, ok := ATrousResult(AO, 0); ok {
		t.Error("zero iterations produced a result image")
	}
	if r, _ := ATrousResult(AO, 3); r != "ao.atrous.a" {
		t.Errorf("result %s", r)
	}
	if r, _ := ATrousResult(AO, 2); r != "ao.atrous.b" {
		t.Errorf("result %s", r)
	}
}
