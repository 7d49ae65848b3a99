package restir

import "math/rand"

// LightSampler draws a light index with its selection probability.
type LightSampler interface {
	Sample(u1, u2 float32) (index uint32, pdf float32)
}

// UniformLights samples N lights with equal probability.
type UniformLights uint32

func (n UniformLights) Sample(u1, _ float32) (uint32, float32) {
	i := uint32(u1 * float32(n))
	if i >= uint32(n) {
		i = uint32(n) - 1
	}
	return i, 1 / float32(n)
}

// Config describes a host run of the three direct illumination steps over
// a static view.
type Config struct {
	Width, Height int

	// Candidates is the number of initial light samples per pixel.
	Candidates int
	MCap       uint32

	Spatial        bool
	SpatialSamples int
	SpatialRadius  int

	NormalThreshold float32
	DepthThreshold  float32

	Lights LightSampler
	// Target returns the unshadowed contribution of light at pixel.
	Target func(pixel int, light uint32) float32
	// Geometry returns the normal and linear depth at pixel. Nil means a
	// flat surface facing the camera at unit depth.
	Geometry func(pixel int) Neighbor

	Seed int64
}

// Simulator replays the temporal, spatial and composite steps on the host
// with the same buffer roles as the device passes.
type Simulator struct {
	cfg Config
	rng *rand.Rand

	temporal    []Reservoir
	passthrough []Reservoir
	spatial     []Reservoir

	frame uint32
}

func NewSimulator(cfg Config) *Simulator {
	n := cfg.Width * cfg.Height
	s := &Simulator{
		cfg:         cfg,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		temporal:    make([]Reservoir, n),
		passthrough: make([]Reservoir, n),
		spatial:     make([]Reservoir, n),
	}
	for i := range s.temporal {
		s.temporal[i] = Empty()
	}
	return s
}

// Frame returns the number of frames simulated so far.
func (s *Simulator) Frame() uint32 {
	return s.frame
}

// Step runs one frame and returns the temporal reservoirs stored for reuse.
func (s *Simulator) Step() []Reservoir {
	for px := range s.passthrough {
		s.passthrough[px] = s.temporalReuse(px)
	}

	out := s.passthrough
	if s.cfg.Spatial {
		for px := range s.spatial {
			s.spatial[px] = s.spatialReuse(px)
		}
		out = s.spatial
	}

	copy(s.temporal, out)
	s.frame++
	return append([]Reservoir(nil), s.temporal...)
}

// Estimate returns the shaded value of the reservoir at pixel with full
// visibility.
func (s *Simulator) Estimate(px int) float32 {
	r := s.temporal[px]
	if r.LightID == NoLight {
		return 0
	}
	return s.cfg.Target(px, r.LightID) * r.W
}

func (s *Simulator) temporalReuse(px int) Reservoir {
	r := Empty()
	for k := 0; k < s.cfg.Candidates; k++ {
		light, pdf := s.cfg.Lights.Sample(s.rng.Float32(), s.rng.Float32())
		if pdf <= 0 {
			r.M++
			continue
		}
		pHat := s.cfg.Target(px, light)
		r.Update(light, pHat/pdf, pHat, s.rng.Float32())
	}
	r.Finalize()

	prev := s.temporal[px]
	if prev.M == 0 || prev.LightID == NoLight {
		return r
	}
	prev.Clamp(s.cfg.MCap)
	return CombineWith(r, prev, r.PHat, s.cfg.Target(px, prev.LightID), s.rng.Float32(), s.cfg.MCap)
}

func (s *Simulator) spatialReuse(px int) Reservoir {
	acc := s.passthrough[px]
	at := s.geometry(px)
	x, y := px%s.cfg.Width, px/s.cfg.Width
	radius := s.cfg.SpatialRadius
	if radius < 1 {
		radius = 1
	}
	for k := 0; k < s.cfg.SpatialSamples; k++ {
		nx := x + s.rng.Intn(2*radius+1) - radius
		ny := y + s.rng.Intn(2*radius+1) - radius
		if nx < 0 || ny < 0 || nx >= s.cfg.Width || ny >= s.cfg.Height || (nx == x && ny == y) {
			continue
		}
		q := ny*s.cfg.Width + nx
		if !Accept(at, s.geometry(q), s.cfg.NormalThreshold, s.cfg.DepthThreshold) {
			continue
		}
		n := s.passthrough[q]
		if n.LightID == NoLight {
			continue
		}
		var pHatAcc float32
		if acc.LightID != NoLight {
			pHatAcc = s.cfg.Target(px, acc.LightID)
		}
		acc = CombineWith(acc, n, pHatAcc, s.cfg.Target(px, n.LightID), s.rng.Float32(), s.cfg.MCap)
	}
	return acc
}

func (s *Simulator) geometry(px int) Neighbor {
	if s.cfg.Geometry != nil {
		return s.cfg.Geometry(px)
	}
	return Neighbor{Normal: [3]float32{0, 0, 1}, Depth: 1}
}
