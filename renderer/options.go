// Package renderer runs the hybrid frame: it owns the passes, records them
// in the order of the frame plan with the barriers the plan derives, and
// drives the acquire, submit and present cycle of two frames in flight.
package renderer

import (
	"errors"

	"github.com/celer/hybrid/log"
	"github.com/celer/hybrid/pass"
	"github.com/celer/hybrid/scene"
	"github.com/celer/hybrid/shader"
	"github.com/celer/hybrid/vkg"
)

var logger = log.New("renderer")

var (
	// ErrOutOfDate is handled by the renderer itself by rebuilding the
	// swapchain and every size dependent pass.
	ErrOutOfDate = vkg.ErrOutOfDate

	ErrUnknownResource = errors.New("renderer: frame plan names an unregistered resource")
)

type Options struct {
	// Window size, used when the surface does not dictate one.
	Width  uint32
	Height uint32

	// Scene is a glTF file.
	Scene        string
	LightLoading scene.LightLoading

	// AssetDir holds the blue noise and BRDF lookup images.
	AssetDir  string
	ShaderDir string
	Shader    shader.Options

	Validation bool
	// Device selects a physical device whose name contains it.
	Device string

	Settings pass.Settings
}

func DefaultOptions() Options {
	return Options{
		Width:        1920,
		Height:       1080,
		Scene:        "scene/PBR/PBR.gltf",
		LightLoading: scene.AsEmissive,
		AssetDir:     "assets",
		ShaderDir:    "shaders",
		Shader:       shader.DefaultOptions(),
		Settings:     pass.DefaultSettings(),
	}
}
