package restir

import (
	"encoding/binary"
	"errors"
	"math"
)

// Size is the byte size of one reservoir in a device buffer.
const Size = 20

var ErrShortBuffer = errors.New("restir: buffer is not a whole number of reservoirs")

// BufferSize returns the byte size of a reservoir buffer covering w x h pixels.
func BufferSize(w, h uint32) uint64 {
	return uint64(w) * uint64(h) * Size
}

// Decode reads reservoirs from a buffer copied back from the device.
func Decode(b []byte) ([]Reservoir, error) {
	if len(b)%Size != 0 {
		return nil, ErrShortBuffer
	}
	out := make([]Reservoir, len(b)/Size)
	for i := range out {
		p := b[i*Size:]
		out[i] = Reservoir{
			LightID: binary.LittleEndian.Uint32(p[0:]),
			PHat:    math.Float32frombits(binary.LittleEndian.Uint32(p[4:])),
			SumW:    math.Float32frombits(binary.LittleEndian.Uint32(p[8:])),
			W:       math.Float32frombits(binary.LittleEndian.Uint32(p[12:])),
			M:       binary.LittleEndian.Uint32(p[16:]),
		}
	}
	return out, nil
}

// Encode writes reservoirs in device layout, e.g. to seed a buffer.
func Encode(rs []Reservoir) []byte {
	b := make([]byte, len(rs)*Size)
	for i, r := range rs {
		p := b[i*Size:]
		binary.LittleEndian.PutUint32(p[0:], r.LightID)
		binary.LittleEndian.PutUint32(p[4:], math.Float32bits(r.PHat))
		binary.LittleEndian.PutUint32(p[8:], math.Float32bits(r.SumW))
		binary.LittleEndian.PutUint32(p[12:], math.Float32bits(r.W))
		binary.LittleEndian.PutUint32(p[16:], r.M)
	}
	return b
}

// HistoryStats summarizes the sample counts of a decoded reservoir buffer.
type HistoryStats struct {
	Count   int
	Empty   int
	MaxM    uint32
	MeanM   float64
	OverCap int
}

// Stats computes HistoryStats, counting reservoirs whose M exceeds mCap.
func Stats(rs []Reservoir, mCap uint32) HistoryStats {
	s := HistoryStats{Count: len(rs)}
	var total uint64
	for _, r := range rs {
		if r.LightID == NoLight || r.M == 0 {
			s.Empty++
		}
		if r.M > s.MaxM {
			s.MaxM = r.M
		}
		if mCap != 0 && r.M > mCap {
			s.OverCap++
		}
		total += uint64(r.M)
	}
	if len(rs) > 0 {
		s.MeanM = float64(total) / float64(len(rs))
	}
	return s
}
