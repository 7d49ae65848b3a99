package renderer

import (
	"testing"

	fg "github.com/celer/hybrid/framegraph"
)

func TestFrameParity(t *testing.T) {
	r := &Renderer{}
	for k := 0; k < 6; k++ {
		if got, want := r.parity, fg.ParityOf(uint64(r.frame)); got != want {
			t.Fatalf("frame %d writes slot %d, want %d", k, got.Write(), want.Write())
		}
		r.advance()
		if got := r.parity.Read(); got != k&1 {
			t.Errorf("after frame %d the read slot is %d, want %d", k, got, k&1)
		}
		if r.frame != uint32(k+1) {
			t.Errorf("after frame %d the counter is %d", k, r.frame)
		}
	}

	// An odd number of frames before a rebuild must not shift the slots.
	r.advance()
	r.restart()
	if r.frame != 0 || r.parity.Write() != 0 {
		t.Errorf("restart left frame %d writing slot %d", r.frame, r.parity.Write())
	}
	r.advance()
	if r.parity.Read() != 0 {
		t.Error("first frame after a restart did not write slot 0")
	}
}
