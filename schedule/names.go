// Package schedule describes the hybrid frame as a frame graph: which
// nodes run for a given set of pass toggles and which images and buffers
// each of them touches.
package schedule

import "fmt"

// Resource names. Ping-pong resources are suffixed /0 and /1 once resolved.
const (
	GBufferAlbedo   = "gbuffer.albedo"
	GBufferNormal   = "gbuffer.normal"
	GBufferMaterial = "gbuffer.material"
	GBufferDepth    = "gbuffer.depth"

	DITemporal    = "di.temporal"
	DIPassthrough = "di.passthrough"
	DISpatial     = "di.spatial"
	DIOutput      = "di.output"

	ReflectionColor        = "reflection.color"
	ReflectionReprojection = "reflection.reprojection"
	ReflectionMoments      = "reflection.moments"
	ReflectionDenoiseTiles = "reflection.denoise_tiles"
	ReflectionCopyTiles    = "reflection.copy_tiles"
	ReflectionArgs         = "reflection.indirect_args"
	ReflectionOutput       = "reflection.output"

	Composite  = "composite.output"
	TAA        = "taa.history"
	Tonemap    = "tonemap.output"
	FSRScratch = "fsr.intermediate"
	FSROutput  = "fsr.output"
	Swapchain  = "swapchain"
)

// Ray passes sharing the trace, temporal, À-Trous and upsample chain.
const (
	Shadow = "shadow"
	AO     = "ao"
	GI     = "gi"
)

// Node names.
const (
	NodeGBuffer     = "gbuffer"
	NodeGBufferMips = "gbuffer.mips"

	NodeDITemporal  = "di.temporal"
	NodeDISpatial   = "di.spatial"
	NodeDIComposite = "di.composite"

	NodeReflectionTrace     = "reflection.trace"
	NodeReflectionTileReset = "reflection.tile_reset"
	NodeReflectionReproject = "reflection.reproject"
	NodeReflectionCopy      = "reflection.copy"
	NodeReflectionUpsample  = "reflection.upsample"

	NodeComposite = "composite"
	NodeTAA       = "taa"
	NodeTonemap   = "tonemap"
	NodeEASU      = "fsr.easu"
	NodeRCAS      = "fsr.rcas"
	NodeBlit      = "present.blit"
	NodeUI        = "ui"
)

// Per ray pass resources and nodes, e.g. RayRaw("ao") is "ao.raw".
func RayRaw(pass string) string     { return pass + ".raw" }
func RayHistory(pass string) string { return pass + ".history" }
func RayOutput(pass string) string  { return pass + ".output" }

func NodeRayTrace(pass string) string    { return pass + ".trace" }
func NodeRayTemporal(pass string) string { return pass + ".temporal" }
func NodeRayUpsample(pass string) string { return pass + ".upsample" }

// ATrousImage is one of the two intermediate images the filter
// iterations alternate between.
func ATrousImage(pass string, k int) string {
	return fmt.Sprintf("%s.atrous.%c", pass, 'a'+k%2)
}

// NodeATrous is iteration i of the À-Trous filter of pass.
func NodeATrous(pass string, i int) string {
	return fmt.Sprintf("%s.atrous.%d", pass, i)
}

// ATrousResult is the image holding the filtered result after iterations
// passes, or the temporal history when there are none.
func ATrousResult(pass string, iterations int) (string, bool) {
	if iterations <= 0 {
		return "", false
	}
	return ATrousImage(pass, iterations-1), true
}
