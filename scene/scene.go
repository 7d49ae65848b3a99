package scene

import (
	"fmt"
	"math"
	"strings"

	lin "github.com/xlab/linmath"
)

// LightLoading selects how emissive triangles become emitters.
type LightLoading uint32

const (
	// AsPointLight collapses each emissive triangle into a point light at
	// its centroid carrying radiance times area.
	AsPointLight LightLoading = iota
	// AsEmissive keeps every emissive triangle as an area light.
	AsEmissive
)

func (l LightLoading) String() string {
	if l == AsEmissive {
		return "emissive"
	}
	return "point"
}

// ParseLightLoading accepts "point" or "emissive".
func ParseLightLoading(s string) (LightLoading, error) {
	switch strings.ToLower(s) {
	case "point", "pointlight", "point-light":
		return AsPointLight, nil
	case "emissive", "area":
		return AsEmissive, nil
	}
	return AsPointLight, fmt.Errorf("scene: unknown light loading %q", s)
}

// Scene is the flattened host copy of a loaded scene, ready for upload.
type Scene struct {
	Name string

	Vertices  []Vertex
	Indices   []uint32
	Meshes    []Mesh
	Instances []Instance
	Materials []Material
	// Textures holds image paths; an empty path is replaced by a white
	// texture at upload.
	Textures []string

	Emitters     []Emitter
	EmitterAlias AliasTable
	MeshAlias    AliasTable

	Min, Max [3]float32

	LightLoading LightLoading
	Camera       Camera
}

// Data returns the scene uniform without device addresses.
func (s *Scene) Data() SceneData {
	return SceneData{
		VertexCount:   uint32(len(s.Vertices)),
		IndexCount:    uint32(len(s.Indices)),
		InstanceCount: uint32(len(s.Instances)),
		MaterialCount: uint32(len(s.Materials)),
		EmitterCount:  uint32(len(s.Emitters)),
		MeshCount:     uint32(len(s.Meshes)),
		TextureCount:  uint32(len(s.Textures)),
		LightLoading:  uint32(s.LightLoading),
		Min:           [4]float32{s.Min[0], s.Min[1], s.Min[2], 0},
		Max:           [4]float32{s.Max[0], s.Max[1], s.Max[2], 0},
	}
}

// TriangleCount is the number of triangles over all instances.
func (s *Scene) TriangleCount() int {
	n := 0
	for i := range s.Instances {
		n += int(s.Instances[i].IndexCount / 3)
	}
	return n
}

// EmissiveInstances returns the indices of instances that own emitters.
func (s *Scene) EmissiveInstances() []int {
	var out []int
	for i := range s.Instances {
		if s.Instances[i].EmitterID != NoEmitter {
			out = append(out, i)
		}
	}
	return out
}

// Builder accumulates meshes and instances and derives the world-space
// data in Build.
type Builder struct {
	name      string
	loading   LightLoading
	vertices  []Vertex
	indices   []uint32
	meshes    []Mesh
	materials []Material
	textures  []string
	instances []placement
	camera    *Camera
}

type placement struct {
	mesh      uint32
	transform lin.Mat4x4
}

func NewBuilder(name string, loading LightLoading) *Builder {
	return &Builder{name: name, loading: loading}
}

func (b *Builder) AddMaterial(m Material) uint32 {
	b.materials = append(b.materials, m)
	return uint32(len(b.materials) - 1)
}

func (b *Builder) AddTexture(path string) uint32 {
	b.textures = append(b.textures, path)
	return uint32(len(b.textures) - 1)
}

// AddMesh appends a primitive. Indices are local to vertices.
func (b *Builder) AddMesh(name string, vertices []Vertex, indices []uint32, material uint32) uint32 {
	m := Mesh{
		Name:         name,
		VertexOffset: uint32(len(b.vertices)),
		VertexCount:  uint32(len(vertices)),
		IndexOffset:  uint32(len(b.indices)),
		IndexCount:   uint32(len(indices)),
		Material:     material,
	}
	b.vertices = append(b.vertices, vertices...)
	b.indices = append(b.indices, indices...)
	b.meshes = append(b.meshes, m)
	return uint32(len(b.meshes) - 1)
}

func (b *Builder) AddInstance(mesh uint32, transform lin.Mat4x4) {
	b.instances = append(b.instances, placement{mesh: mesh, transform: transform})
}

// checkIndices reports the first index that does not address one of
// count vertices.
func checkIndices(indices []uint32, count uint32) error {
	for i, idx := range indices {
		if idx >= count {
			return fmt.Errorf("%w: index %d is %d of %d", ErrIndexRange, i, idx, count)
		}
	}
	return nil
}

func (b *Builder) SetCamera(c Camera) {
	b.camera = &c
}

// Build flattens instances, extracts emitters and builds both alias tables.
func (b *Builder) Build() (*Scene, error) {
	if len(b.instances) == 0 || len(b.indices) == 0 {
		return nil, ErrNoGeometry
	}
	if len(b.materials) == 0 {
		b.AddMaterial(DefaultMaterial())
	}

	s := &Scene{
		Name:         b.name,
		Vertices:     b.vertices,
		Indices:      b.indices,
		Meshes:       b.meshes,
		Materials:    b.materials,
		Textures:     b.textures,
		LightLoading: b.loading,
	}
	for _, m := range b.meshes {
		if err := checkIndices(b.indices[m.IndexOffset:m.IndexOffset+m.IndexCount], m.VertexCount); err != nil {
			return nil, fmt.Errorf("mesh %q: %w", m.Name, err)
		}
	}
	for id, pl := range b.instances {
		if int(pl.mesh) >= len(b.meshes) {
			return nil, fmt.Errorf("scene: instance %d references mesh %d of %d", id, pl.mesh, len(b.meshes))
		}
		mesh := b.meshes[pl.mesh]
		if int(mesh.Material) >= len(s.Materials) {
			return nil, fmt.Errorf("scene: mesh %q references material %d of %d", mesh.Name, mesh.Material, len(s.Materials))
		}
		s.Instances = append(s.Instances, Instance{
			Transform:    pl.transform,
			TransformInv: inverse(pl.transform),
			VertexOffset: mesh.VertexOffset,
			VertexCount:  mesh.VertexCount,
			IndexOffset:  mesh.IndexOffset,
			IndexCount:   mesh.IndexCount,
			MeshID:       pl.mesh,
			MaterialID:   mesh.Material,
			EmitterID:    NoEmitter,
		})
	}
	s.RebuildLights()

	if b.camera != nil {
		s.Camera = *b.camera
	} else {
		s.Camera = FrameBounds(s.Min, s.Max)
	}
	return s, nil
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// SetTransform moves instance id. Emitters, alias tables and bounds are
// stale until RebuildLights.
func (s *Scene) SetTransform(id int, m lin.Mat4x4) error {
	if id < 0 || id >= len(s.Instances) {
		return fmt.Errorf("scene: instance %d of %d", id, len(s.Instances))
	}
	s.Instances[id].Transform = m
	s.Instances[id].TransformInv = inverse(m)
	return nil
}

// RebuildLights recomputes world bounds, instance areas, the emitter list
// and both alias tables from the current instance transforms.
func (s *Scene) RebuildLights() {
	for i := range s.Min {
		s.Min[i] = math.MaxFloat32
		s.Max[i] = -math.MaxFloat32
	}
	s.Emitters = s.Emitters[:0]
	var emitterWeights []float32
	meshWeights := make([]float32, 0, len(s.Instances))

	for id := range s.Instances {
		inst := &s.Instances[id]
		inst.Area = 0
		inst.EmitterID = NoEmitter

		for v := inst.VertexOffset; v < inst.VertexOffset+inst.VertexCount; v++ {
			w := transformPoint(&inst.Transform, s.Vertices[v].Position)
			for k := 0; k < 3; k++ {
				s.Min[k] = min32(s.Min[k], w[k])
				s.Max[k] = max32(s.Max[k], w[k])
			}
		}

		mat := &s.Materials[inst.MaterialID]
		emissive := mat.IsEmissive()
		radiance := mat.Radiance()

		for t := uint32(0); t+2 < inst.IndexCount; t += 3 {
			var p, n [3][3]float32
			for k := uint32(0); k < 3; k++ {
				v := s.Vertices[inst.VertexOffset+s.Indices[inst.IndexOffset+t+k]]
				p[k] = transformPoint(&inst.Transform, v.Position)
				n[k] = transformNormal(&inst.TransformInv, v.Normal)
			}
			face := cross(sub(p[1], p[0]), sub(p[2], p[0]))
			area := 0.5 * length(face)
			inst.Area += area
			if !emissive {
				continue
			}
			if inst.EmitterID == NoEmitter {
				inst.EmitterID = uint32(len(s.Emitters))
			}
			e := Emitter{Instance: uint32(id), Primitive: t / 3}
			if s.LightLoading == AsEmissive {
				e.P0, e.P1, e.P2 = p[0], p[1], p[2]
				e.N0, e.N1, e.N2 = n[0], n[1], n[2]
				e.Area = area
				e.IntensityR, e.IntensityG, e.IntensityB = radiance[0], radiance[1], radiance[2]
				emitterWeights = append(emitterWeights, area*Luminance(radiance))
			} else {
				c := [3]float32{
					(p[0][0] + p[1][0] + p[2][0]) / 3,
					(p[0][1] + p[1][1] + p[2][1]) / 3,
					(p[0][2] + p[1][2] + p[2][2]) / 3,
				}
				fn := normalize(face)
				e.P0, e.P1, e.P2 = c, c, c
				e.N0, e.N1, e.N2 = fn, fn, fn
				e.IntensityR, e.IntensityG, e.IntensityB = radiance[0]*area, radiance[1]*area, radiance[2]*area
				emitterWeights = append(emitterWeights, Luminance(e.Intensity()))
			}
			s.Emitters = append(s.Emitters, e)
		}
		meshWeights = append(meshWeights, inst.Area)
	}

	s.EmitterAlias = BuildAliasTable(emitterWeights)
	s.MeshAlias = BuildAliasTable(meshWeights)
}
