package scene

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	lin "github.com/xlab/linmath"

	"github.com/celer/hybrid/log"
)

var logger = log.New("scene")

// Load reads a glTF 2.0 file (.gltf or .glb) and flattens its default
// scene. Every primitive becomes one mesh; every node referencing a mesh
// produces one instance per primitive.
func Load(path string, loading LightLoading) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: open %s: %w", path, err)
	}

	l := &loader{
		doc:     doc,
		dir:     filepath.Dir(path),
		b:       NewBuilder(filepath.Base(path), loading),
		prims:   make(map[int][]uint32),
		texture: make(map[int]uint32),
	}
	for i := range doc.Materials {
		l.b.AddMaterial(l.material(doc.Materials[i]))
	}
	defaultMaterial := uint32(len(doc.Materials))
	l.b.AddMaterial(DefaultMaterial())

	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				logger.Warningf("mesh %q primitive %d: mode %v skipped", m.Name, pi, prim.Mode)
				continue
			}
			material := defaultMaterial
			if prim.Material != nil {
				material = uint32(*prim.Material)
			}
			vertices, indices, err := l.primitive(prim)
			if err != nil {
				return nil, fmt.Errorf("scene: mesh %q primitive %d: %w", m.Name, pi, err)
			}
			id := l.b.AddMesh(fmt.Sprintf("%s/%d", m.Name, pi), vertices, indices, material)
			l.prims[mi] = append(l.prims[mi], id)
		}
	}

	var roots []int
	if len(doc.Scenes) > 0 {
		sc := 0
		if doc.Scene != nil {
			sc = int(*doc.Scene)
		}
		for _, n := range doc.Scenes[sc].Nodes {
			roots = append(roots, int(n))
		}
	} else {
		for i := range doc.Nodes {
			roots = append(roots, i)
		}
	}
	for _, n := range roots {
		l.visit(n, identity(), 0)
	}

	s, err := l.b.Build()
	if err != nil {
		return nil, err
	}
	logger.Infof("loaded %s: %d meshes, %d instances, %d triangles, %d emitters (%v)",
		s.Name, len(s.Meshes), len(s.Instances), s.TriangleCount(), len(s.Emitters), loading)
	return s, nil
}

type loader struct {
	doc     *gltf.Document
	dir     string
	b       *Builder
	prims   map[int][]uint32
	texture map[int]uint32
	camera  bool
}

const maxDepth = 64

func (l *loader) visit(idx int, parent lin.Mat4x4, depth int) {
	if depth > maxDepth {
		logger.Warningf("node %d: hierarchy deeper than %d, skipped", idx, maxDepth)
		return
	}
	n := l.doc.Nodes[idx]

	local := Compose(n.Translation, n.Rotation, n.Scale)
	if n.Matrix != ([16]float32{}) && n.Matrix != gltf.DefaultMatrix {
		local = FromColumns(n.Matrix)
	}
	world := mul(parent, local)

	if n.Mesh != nil {
		for _, id := range l.prims[int(*n.Mesh)] {
			l.b.AddInstance(id, world)
		}
	}
	if n.Camera != nil && !l.camera {
		l.camera = l.nodeCamera(int(*n.Camera), &world)
	}
	for _, c := range n.Children {
		l.visit(int(c), world, depth+1)
	}
}

func (l *loader) nodeCamera(idx int, world *lin.Mat4x4) bool {
	cam := l.doc.Cameras[idx]
	if cam.Perspective == nil {
		return false
	}
	p := cam.Perspective
	c := Camera{
		Position: lin.Vec3{world[3][0], world[3][1], world[3][2]},
		Up:       lin.Vec3{world[1][0], world[1][1], world[1][2]},
		FovY:     float32(p.Yfov),
		Near:     float32(p.Znear),
		Far:      1000,
	}
	if p.Zfar != nil {
		c.Far = float32(*p.Zfar)
	}
	// glTF cameras look down -Z.
	c.Target = lin.Vec3{c.Position[0] - world[2][0], c.Position[1] - world[2][1], c.Position[2] - world[2][2]}
	l.b.SetCamera(c)
	return true
}

func (l *loader) primitive(prim *gltf.Primitive) ([]Vertex, []uint32, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, nil, ErrBadAccessor
	}
	positions, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, nil, err
	}

	var normals [][3]float32
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if normals, err = modeler.ReadNormal(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, nil, err
		}
	}
	var uvs [][2]float32
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if uvs, err = modeler.ReadTextureCoord(l.doc, l.doc.Accessors[idx], nil); err != nil {
			return nil, nil, err
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = modeler.ReadIndices(l.doc, l.doc.Accessors[*prim.Indices], nil); err != nil {
			return nil, nil, err
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	if err := checkIndices(indices, uint32(len(positions))); err != nil {
		return nil, nil, err
	}

	vertices := make([]Vertex, len(positions))
	for i, p := range positions {
		vertices[i].Position = p
		if i < len(normals) {
			vertices[i].Normal = normals[i]
		}
		if i < len(uvs) {
			vertices[i].U, vertices[i].V = uvs[i][0], uvs[i][1]
		}
	}
	if len(normals) == 0 {
		faceNormals(vertices, indices)
	}
	return vertices, indices, nil
}

// faceNormals accumulates area-weighted face normals into each vertex.
func faceNormals(vertices []Vertex, indices []uint32) {
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		n := cross(sub(vertices[b].Position, vertices[a].Position), sub(vertices[c].Position, vertices[a].Position))
		for _, v := range [3]uint32{a, b, c} {
			for k := 0; k < 3; k++ {
				vertices[v].Normal[k] += n[k]
			}
		}
	}
	for i := range vertices {
		vertices[i].Normal = normalize(vertices[i].Normal)
	}
}

func (l *loader) material(m *gltf.Material) Material {
	out := DefaultMaterial()
	out.Metallic = 1
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			for i, v := range pbr.BaseColorFactor {
				out.BaseColor[i] = float32(v)
			}
		}
		if pbr.MetallicFactor != nil {
			out.Metallic = float32(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			out.Roughness = float32(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			out.BaseColorTexture = l.textureIndex(int(pbr.BaseColorTexture.Index))
		}
		if pbr.MetallicRoughnessTexture != nil {
			out.MetallicRoughnessTexture = l.textureIndex(int(pbr.MetallicRoughnessTexture.Index))
		}
	}
	if m.NormalTexture != nil && m.NormalTexture.Index != nil {
		out.NormalTexture = l.textureIndex(int(*m.NormalTexture.Index))
	}
	if m.EmissiveTexture != nil {
		out.EmissiveTexture = l.textureIndex(int(m.EmissiveTexture.Index))
	}
	for i, v := range m.EmissiveFactor {
		out.Emissive[i] = float32(v)
	}

	switch m.AlphaMode {
	case gltf.AlphaMask:
		out.AlphaMode = AlphaMask
	case gltf.AlphaBlend:
		out.AlphaMode = AlphaBlend
	}
	if m.AlphaCutoff != nil {
		out.AlphaCutoff = float32(*m.AlphaCutoff)
	}
	if m.DoubleSided {
		out.DoubleSided = 1
	}

	var ext struct {
		EmissiveStrength         *float64 `json:"emissiveStrength"`
		TransmissionFactor       float64  `json:"transmissionFactor"`
		ClearcoatFactor          float64  `json:"clearcoatFactor"`
		ClearcoatRoughnessFactor float64  `json:"clearcoatRoughnessFactor"`
	}
	for _, name := range []string{"KHR_materials_emissive_strength", "KHR_materials_transmission", "KHR_materials_clearcoat"} {
		if err := extension(m.Extensions, name, &ext); err != nil {
			logger.Warningf("material %q: %s: %v", m.Name, name, err)
		}
	}
	if ext.EmissiveStrength != nil {
		out.EmissiveStrength = float32(*ext.EmissiveStrength)
	}
	out.Transmission = float32(ext.TransmissionFactor)
	out.Clearcoat = float32(ext.ClearcoatFactor)
	out.ClearcoatRoughness = float32(ext.ClearcoatRoughnessFactor)
	return out
}

// extension decodes a raw material extension into v. Unregistered
// extensions are kept by the decoder as raw JSON.
func extension(exts gltf.Extensions, name string, v interface{}) error {
	raw, ok := exts[name]
	if !ok {
		return nil
	}
	var b []byte
	switch r := raw.(type) {
	case json.RawMessage:
		b = r
	case []byte:
		b = r
	default:
		var err error
		if b, err = json.Marshal(r); err != nil {
			return err
		}
	}
	return json.Unmarshal(b, v)
}

// textureIndex maps a glTF texture to a scene texture slot, resolving the
// image to a path next to the glTF file.
func (l *loader) textureIndex(tex int) uint32 {
	if id, ok := l.texture[tex]; ok {
		return id
	}
	path := ""
	if tex < len(l.doc.Textures) && l.doc.Textures[tex].Source != nil {
		img := l.doc.Images[int(*l.doc.Textures[tex].Source)]
		if img.URI != "" && !img.IsEmbeddedResource() {
			path = filepath.Join(l.dir, img.URI)
		} else {
			logger.Warningf("texture %d: embedded images are not supported, using white", tex)
		}
	}
	id := l.b.AddTexture(path)
	l.texture[tex] = id
	return id
}
