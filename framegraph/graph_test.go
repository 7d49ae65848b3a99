package framegraph

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParity(t *testing.T) {
	for k := uint64(0); k < 6; k++ {
		p := ParityOf(k)
		if p.Write() != int(k&1) {
			t.Errorf("frame %d writes %d", k, p.Write())
		}
		if p.Read() != int((k+1)&1) {
			t.Errorf("frame %d reads %d", k, p.Read())
		}
		if p.Next() != ParityOf(k+1) {
			t.Errorf("frame %d next %d", k, p.Next())
		}
	}
}

// taa reads the previous history copy and writes the current one.
func taa() *Graph {
	return New().
		Image("composite").
		PingPongImage("taa").
		Node("composite", Compute, On(R("composite"), StorageWrite)).
		Node("taa", Compute,
			On(R("composite"), Sampled),
			On(Prev("taa"), Sampled),
			On(Cur("taa"), StorageWrite))
}

func TestPingPongSlots(t *testing.T) {
	g := taa()
	for k := uint64(0); k < 4; k++ {
		plan, err := g.Compile(ParityOf(k))
		if err != nil {
			t.Fatal(err)
		}
		step := plan.Steps[1]
		read := step.Touches[1].Resource
		write := step.Touches[2].Resource
		if want := SlotName("taa", int((k+1)&1)); read != want {
			t.Errorf("frame %d reads %s, want %s", k, read, want)
		}
		if want := SlotName("taa", int(k&1)); write != want {
			t.Errorf("frame %d writes %s, want %s", k, write, want)
		}
		if err := Validate(plan); err != nil {
			t.Errorf("frame %d: %v", k, err)
		}
	}
}

func TestBarriers(t *testing.T) {
	plan, err := taa().Compile(0)
	if err != nil {
		t.Fatal(err)
	}

	// composite: shader-read-only to general before the write.
	b := plan.Before("composite")
	if len(b) != 1 || b[0].OldLayout != LayoutShaderReadOnly || b[0].NewLayout != LayoutGeneral {
		t.Fatalf("composite barriers %v", b)
	}

	// taa: composite back to readable, history already resting, output to
	// general.
	b = plan.Before("taa")
	if len(b) != 2 {
		t.Fatalf("taa barriers %v", b)
	}
	if b[0].Resource != "composite" || b[0].SrcAccess != AccessShaderWrite || b[0].NewLayout != LayoutShaderReadOnly {
		t.Errorf("composite read barrier %v", b[0])
	}
	if b[1].Resource != "taa/0" || b[1].NewLayout != LayoutGeneral {
		t.Errorf("history write barrier %v", b[1])
	}

	// Both written images go back to rest; the read history does not.
	got := map[string]bool{}
	for _, e := range plan.Epilogue {
		got[e.Resource] = true
	}
	if !got["composite"] || !got["taa/0"] || got["taa/1"] {
		t.Errorf("epilogue %v", plan.Epilogue)
	}
	if err := Validate(plan); err != nil {
		t.Error(err)
	}
	if plan.Before("missing") != nil || plan.Has("missing") || !plan.Has("taa") {
		t.Error("node lookup")
	}
}

func TestReadAfterReadNeedsNoBarrier(t *testing.T) {
	plan, err := New().
		Image("lut").
		Image("out").
		Node("a", Compute, On(R("lut"), Sampled), On(R("out"), StorageWrite)).
		Node("b", Graphics, On(R("lut"), Sampled)).
		Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range plan.Before("b") {
		if b.Resource == "lut" {
			t.Errorf("unexpected barrier %v", b)
		}
	}
	if err := Validate(plan); err != nil {
		t.Error(err)
	}
}

func TestSwapchainAndMipChain(t *testing.T) {
	plan, err := New().
		Image("albedo").
		Image("final").
		Swapchain("swapchain").
		Node("raster", Graphics, Overwrite(R("albedo"), ColorAttachment)).
		Node("mips", Transfer, On(R("albedo"), MipChain)).
		Node("shade", Compute, On(R("albedo"), Sampled), On(R("final"), StorageWrite)).
		Node("blit", Transfer, On(R("final"), TransferSrc), Overwrite(R("swapchain"), TransferDst)).
		Node("ui", Graphics, On(R("swapchain"), ColorAttachment)).
		Compile(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(plan); err != nil {
		t.Fatal(err)
	}

	raster := plan.Before("raster")
	if len(raster) != 1 || raster[0].OldLayout != LayoutUndefined {
		t.Errorf("discarding write should drop contents: %v", raster)
	}
	shade := plan.Before("shade")
	if len(shade) == 0 || shade[0].OldLayout != LayoutTransferSrc || shade[0].SrcAccess != AccessTransferWrite {
		t.Errorf("mip chain exit %v", shade)
	}
	blit := plan.Before("blit")
	for _, b := range blit {
		if b.Resource == "swapchain" && (b.OldLayout != LayoutUndefined || b.SrcStage != AcquireWaitStage()) {
			t.Errorf("swapchain acquire barrier %v", b)
		}
	}
	var present *Barrier
	for i := range plan.Epilogue {
		if plan.Epilogue[i].Resource == "swapchain" {
			present = &plan.Epilogue[i]
		}
	}
	if present == nil || present.OldLayout != LayoutColorAttachment || present.NewLayout != LayoutPresent {
		t.Errorf("present barrier %v", present)
	}
}

func TestBufferBarriers(t *testing.T) {
	plan, err := New().
		Buffer("tiles").
		Buffer("args").
		Image("color").
		Node("reset", Transfer, On(R("args"), BufferTransferDst)).
		Node("classify", Compute, On(R("tiles"), BufferWrite), On(R("args"), BufferReadWrite)).
		Node("filter", Compute, On(R("tiles"), BufferRead), On(R("args"), Indirect), On(R("color"), StorageReadWrite)).
		Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(plan); err != nil {
		t.Fatal(err)
	}
	// Every buffer access is guarded: the first one against the previous
	// frame, the rest against the preceding writer.
	want := map[string]int{"reset": 1, "classify": 2, "filter": 3}
	for node, n := range want {
		if got := len(plan.Before(node)); got != n {
			t.Errorf("%s: %d barriers, want %d", node, got, n)
		}
	}
	for _, b := range plan.Before("filter") {
		if b.Resource == "args" && (b.DstStage != StageDrawIndirect || b.DstAccess != AccessIndirectRead) {
			t.Errorf("indirect barrier %v", b)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		g    *Graph
	}{
		{"unknown resource", New().Node("a", Compute, On(R("x"), Sampled))},
		{"missing slot", New().PingPongImage("h").Node("a", Compute, On(R("h"), Sampled))},
		{"slot on single", New().Image("h").Node("a", Compute, On(Cur("h"), Sampled))},
		{"duplicate use", New().Image("h").Node("a", Compute, On(R("h"), Sampled), On(R("h"), StorageWrite))},
		{"wrong pipe", New().Image("h").Node("a", Compute, On(R("h"), ColorAttachment))},
		{"wrong kind", New().Buffer("b").Node("a", Compute, On(R("b"), Sampled))},
		{"discarded read", New().Image("h").Node("a", Compute, Overwrite(R("h"), StorageReadWrite))},
		{"duplicate node", New().Image("h").Node("a", Compute, On(R("h"), Sampled)).Node("a", Compute)},
		{"duplicate resource", New().Image("h").Buffer("h")},
	}
	for _, tt := range tests {
		if _, err := tt.g.Compile(0); err == nil {
			t.Errorf("%s: compiled", tt.name)
		}
	}
}

func TestValidateCatchesBrokenPlans(t *testing.T) {
	compile := func() *Plan {
		plan, err := taa().Compile(0)
		if err != nil {
			t.Fatal(err)
		}
		return plan
	}

	plan := compile()
	plan.Steps[1].Barriers = plan.Steps[1].Barriers[1:]
	if err := Validate(plan); !errors.Is(err, ErrHazard) && !errors.Is(err, ErrLayout) {
		t.Errorf("missing read barrier: %v", err)
	}

	plan = compile()
	plan.Steps[1].Barriers[0].SrcAccess = 0
	if err := Validate(plan); !errors.Is(err, ErrHazard) {
		t.Errorf("missing flush: %v", err)
	}

	plan = compile()
	plan.Epilogue = nil
	if err := Validate(plan); !errors.Is(err, ErrNotSteady) {
		t.Errorf("missing epilogue: %v", err)
	}

	plan = compile()
	plan.Steps[0].Barriers[0].NewLayout = LayoutShaderReadOnly
	if err := Validate(plan); !errors.Is(err, ErrLayout) {
		t.Errorf("wrong layout: %v", err)
	}

	plan, err := New().Swapchain("sc").Compile(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := Validate(plan); !errors.Is(err, ErrUninitialized) {
		t.Errorf("presenting an unwritten image: %v", err)
	}
}

func TestWriteTable(t *testing.T) {
	plan, err := taa().Compile(1)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	plan.WriteTable(&buf)
	out := buf.String()
	for _, s := range []string{"taa/1", "composite", "general", "(end)"} {
		if !strings.Contains(out, s) {
			t.Errorf("table misses %q:\n%s", s, out)
		}
	}
	if plan.Barriers() != len(plan.Epilogue)+3 {
		t.Errorf("barrier count %d", plan.Barriers())
	}
}
