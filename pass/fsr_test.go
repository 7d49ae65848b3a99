package pass

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/celer/hybrid/internal/fsr"
	"github.com/celer/hybrid/vkg"
)

func TestWriteFSRConstants(t *testing.T) {
	l := fsr.NewLayout(256)
	u := &vkg.UniformArena{
		Buffer: &vkg.Buffer{Name: "fsr.constants", Size: l.Size, Mapped: make([]byte, l.Size)},
		Arena:  vkg.Arena{Size: l.Size},
	}
	easu := fsr.EASU(1280, 720, 1920, 1080)
	rcas := fsr.RCAS(0.2)
	ei, ri, err := writeConstants(u, l, &easu, &rcas)
	if err != nil {
		t.Fatal(err)
	}
	if uint64(ei.Offset) != l.EASUOffset || uint64(ri.Offset) != l.RCASOffset {
		t.Errorf("offsets %d, %d; want %d, %d", ei.Offset, ri.Offset, l.EASUOffset, l.RCASOffset)
	}
	if uint64(ei.Range) != fsr.Size || uint64(ri.Range) != fsr.Size {
		t.Errorf("ranges %d, %d", ei.Range, ri.Range)
	}
	m := u.Buffer.Mapped
	if got := binary.LittleEndian.Uint32(m[l.EASUOffset:]); got != easu.Const0[0] {
		t.Errorf("EASU scale %v", math.Float32frombits(got))
	}
	if got := binary.LittleEndian.Uint32(m[l.RCASOffset:]); got != rcas.Const0[0] {
		t.Errorf("RCAS sharpness %v", math.Float32frombits(got))
	}

	short := &vkg.UniformArena{
		Buffer: &vkg.Buffer{Name: "short", Size: fsr.Size, Mapped: make([]byte, fsr.Size)},
		Arena:  vkg.Arena{Size: fsr.Size},
	}
	if _, _, err := writeConstants(short, l, &easu, &rcas); err == nil {
		t.Error("RCAS block written past the end of the buffer")
	}
}
