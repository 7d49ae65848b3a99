// Package scene holds the host side of the scene store: the record layouts
// shared with the shaders, glTF import, emitter extraction and the alias
// tables used to sample emitters and meshes.
package scene

import (
	"errors"

	lin "github.com/xlab/linmath"
)

// NoTexture marks an unset material texture slot.
const NoTexture = ^uint32(0)

// NoEmitter marks an instance without emissive triangles.
const NoEmitter = ^uint32(0)

var (
	ErrNoGeometry  = errors.New("scene: no triangle geometry found")
	ErrBadAccessor = errors.New("scene: primitive is missing a required attribute")
	ErrIndexRange  = errors.New("scene: index outside its mesh's vertices")
)

// Vertex is the 32 byte vertex record read by both the raster and the ray
// query shaders.
type Vertex struct {
	Position [3]float32
	U        float32
	Normal   [3]float32
	V        float32
}

// TangentVertex extends Vertex with a tangent and handedness in W, 48 bytes.
type TangentVertex struct {
	Vertex
	Tangent [4]float32
}

type AlphaMode uint32

const (
	AlphaOpaque AlphaMode = iota
	AlphaMask
	AlphaBlend
)

func (a AlphaMode) String() string {
	switch a {
	case AlphaMask:
		return "mask"
	case AlphaBlend:
		return "blend"
	}
	return "opaque"
}

// Material mirrors the material structured buffer, 80 bytes.
type Material struct {
	AlphaMode          AlphaMode
	AlphaCutoff        float32
	Metallic           float32
	Roughness          float32
	Transmission       float32
	Clearcoat          float32
	ClearcoatRoughness float32
	DoubleSided        uint32

	BaseColor        [4]float32
	Emissive         [3]float32
	EmissiveStrength float32

	BaseColorTexture         uint32
	NormalTexture            uint32
	MetallicRoughnessTexture uint32
	EmissiveTexture          uint32
}

// IsEmissive reports whether triangles using m emit light.
func (m *Material) IsEmissive() bool {
	return m.EmissiveStrength > 0 && (m.Emissive[0] > 0 || m.Emissive[1] > 0 || m.Emissive[2] > 0)
}

// Radiance is the emitted radiance of the material.
func (m *Material) Radiance() [3]float32 {
	s := m.EmissiveStrength
	return [3]float32{m.Emissive[0] * s, m.Emissive[1] * s, m.Emissive[2] * s}
}

// DefaultMaterial is used for primitives without a material.
func DefaultMaterial() Material {
	return Material{
		AlphaMode:                AlphaOpaque,
		AlphaCutoff:              0.5,
		Metallic:                 0,
		Roughness:                1,
		BaseColor:                [4]float32{1, 1, 1, 1},
		EmissiveStrength:         1,
		BaseColorTexture:         NoTexture,
		NormalTexture:            NoTexture,
		MetallicRoughnessTexture: NoTexture,
		EmissiveTexture:          NoTexture,
	}
}

// Instance mirrors the instance structured buffer, 160 bytes. Transforms
// are column-major.
type Instance struct {
	Transform    lin.Mat4x4
	TransformInv lin.Mat4x4

	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32

	MeshID     uint32
	MaterialID uint32
	// EmitterID is the first emitter generated from this instance.
	EmitterID uint32
	Area      float32
}

// Emitter is one emissive triangle, or a point light when Area is zero,
// packed into six vec4 slots.
type Emitter struct {
	P0         [3]float32
	IntensityR float32
	P1         [3]float32
	IntensityG float32
	P2         [3]float32
	IntensityB float32

	N0   [3]float32
	Area float32
	N1   [3]float32
	// Instance that produced the emitter.
	Instance uint32
	N2       [3]float32
	// Primitive is the triangle index within the instance.
	Primitive uint32
}

// Intensity returns the emitted radiance of e.
func (e *Emitter) Intensity() [3]float32 {
	return [3]float32{e.IntensityR, e.IntensityG, e.IntensityB}
}

// Mesh is one glTF primitive: a contiguous range of the global vertex and
// index arrays with a single material. Each mesh gets its own BLAS.
type Mesh struct {
	Name         string
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32
	Material     uint32
}

// SceneData is the scene-global uniform, 128 bytes.
type SceneData struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	MaterialCount uint32
	EmitterCount  uint32
	MeshCount     uint32
	TextureCount  uint32
	LightLoading  uint32

	Min [4]float32
	Max [4]float32

	InstanceAddress     uint64
	EmitterAddress      uint64
	MaterialAddress     uint64
	VertexAddress       uint64
	IndexAddress        uint64
	EmitterAliasAddress uint64
	MeshAliasAddress    uint64
	_                   uint64
}

// GlobalData is the per-frame uniform.
type GlobalData struct {
	View              lin.Mat4x4
	Projection        lin.Mat4x4
	ViewProjection    lin.Mat4x4
	ViewInv           lin.Mat4x4
	ProjectionInv     lin.Mat4x4
	ViewProjectionInv lin.Mat4x4

	PrevView           lin.Mat4x4
	PrevProjection     lin.Mat4x4
	PrevViewProjection lin.Mat4x4

	CameraPosition [4]float32
	Jitter         [2]float32
	PrevJitter     [2]float32

	Frame uint32
	_     [3]uint32
}
