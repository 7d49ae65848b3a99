package pass

import (
	"github.com/celer/hybrid/internal/fsr"
	"github.com/celer/hybrid/schedule"
)

// DenoiseOptions are the edge-stopping weights of the À-Trous filter.
type DenoiseOptions struct {
	Iterations int
	PhiColor   float32
	PhiNormal  float32
	SigmaDepth float32
}

func DefaultDenoiseOptions(iterations int) DenoiseOptions {
	return DenoiseOptions{
		Iterations: iterations,
		PhiColor:   10,
		PhiNormal:  32,
		SigmaDepth: 1,
	}
}

type DIOptions struct {
	Enabled bool
	Spatial bool
	// Scale resamples at the render extent divided by 2^Scale, reading the
	// GBuffer mip of the same level.
	Scale uint32
	// Candidates is the number of initial light samples per pixel.
	Candidates uint32
	// MCap bounds the temporal history of a reservoir.
	MCap            uint32
	SpatialSamples  uint32
	SpatialRadius   float32
	NormalThreshold float32
	DepthThreshold  float32
}

func DefaultDIOptions() DIOptions {
	return DIOptions{
		Enabled:         true,
		Spatial:         true,
		Candidates:      32,
		MCap:            20,
		SpatialSamples:  5,
		SpatialRadius:   30,
		NormalThreshold: 0.9,
		DepthThreshold:  0.1,
	}
}

type ReflectionOptions struct {
	Enabled bool
	// Scale traces at the render extent divided by 2^Scale.
	Scale   uint32
	Denoise DenoiseOptions
	// Upsample is the entry point of the upsample shader.
	Upsample string
}

func DefaultReflectionOptions() ReflectionOptions {
	return ReflectionOptions{
		Enabled:  true,
		Scale:    1,
		Denoise:  DefaultDenoiseOptions(3),
		Upsample: DefaultUpsample,
	}
}

// RayOptions configures a shadow, AO or GI pass.
type RayOptions struct {
	Enabled bool
	Scale   uint32
	// Temporal accumulates the raw result into a history image with
	// weight Alpha for the new sample.
	Temporal bool
	Alpha    float32
	// Radius is the light radius for shadows, the ray length for AO and
	// unused by GI.
	Radius  float32
	Denoise DenoiseOptions
}

func DefaultShadowOptions() RayOptions {
	return RayOptions{
		Enabled:  true,
		Scale:    1,
		Temporal: true,
		Alpha:    0.1,
		Radius:   0.05,
		Denoise:  DefaultDenoiseOptions(2),
	}
}

func DefaultAOOptions() RayOptions {
	return RayOptions{
		Enabled:  true,
		Scale:    1,
		Temporal: true,
		Alpha:    0.05,
		Radius:   1,
		Denoise:  DefaultDenoiseOptions(2),
	}
}

func DefaultGIOptions() RayOptions {
	return RayOptions{
		Enabled:  true,
		Scale:    2,
		Temporal: true,
		Alpha:    0.05,
		Denoise:  DefaultDenoiseOptions(3),
	}
}

type TonemapOptions struct {
	// Luminance is the average scene luminance exposure is keyed on.
	Luminance  float32
	Brightness float32
	Contrast   float32
	Saturation float32
	Vignette   float32
}

func DefaultTonemapOptions() TonemapOptions {
	return TonemapOptions{
		Luminance:  1,
		Brightness: 0,
		Contrast:   1,
		Saturation: 1,
		Vignette:   0.2,
	}
}

type FSROptions struct {
	Quality   fsr.Quality
	Sharpness float32
}

func DefaultFSROptions() FSROptions {
	return FSROptions{Quality: fsr.QualityMode, Sharpness: 0.2}
}

// Settings gathers the runtime settings of every pass.
type Settings struct {
	DI         DIOptions
	Reflection ReflectionOptions
	Shadow     RayOptions
	AO         RayOptions
	GI         RayOptions
	Display    DisplayMode
	TAA        bool
	Tonemap    TonemapOptions
	FSR        FSROptions
	UI         bool
}

func DefaultSettings() Settings {
	return Settings{
		DI:         DefaultDIOptions(),
		Reflection: DefaultReflectionOptions(),
		Shadow:     DefaultShadowOptions(),
		AO:         DefaultAOOptions(),
		GI:         DefaultGIOptions(),
		Display:    DisplayComposite,
		TAA:        true,
		Tonemap:    DefaultTonemapOptions(),
		FSR:        DefaultFSROptions(),
		UI:         true,
	}
}

// Toggles is the frame graph selection for s.
func (s *Settings) Toggles() schedule.Toggles {
	return schedule.Toggles{
		DI:                   s.DI.Enabled,
		DISpatial:            s.DI.Enabled && s.DI.Spatial,
		Reflection:           s.Reflection.Enabled,
		Shadow:               s.Shadow.Enabled,
		AO:                   s.AO.Enabled,
		GI:                   s.GI.Enabled,
		UI:                   s.UI,
		ReflectionIterations: s.Reflection.Denoise.Iterations,
		ShadowIterations:     s.Shadow.Denoise.Iterations,
		AOIterations:         s.AO.Denoise.Iterations,
		GIIterations:         s.GI.Denoise.Iterations,
	}
}
