package scene

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	lin "github.com/xlab/linmath"
)

func TestRecordLayouts(t *testing.T) {
	sizes := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"Vertex", unsafe.Sizeof(Vertex{}), 32},
		{"TangentVertex", unsafe.Sizeof(TangentVertex{}), 48},
		{"Material", unsafe.Sizeof(Material{}), 80},
		{"Instance", unsafe.Sizeof(Instance{}), 160},
		{"Emitter", unsafe.Sizeof(Emitter{}), 96},
		{"SceneData", unsafe.Sizeof(SceneData{}), 128},
		{"AliasEntry", unsafe.Sizeof(AliasEntry{}), 16},
	}
	for _, s := range sizes {
		if s.got != s.want {
			t.Errorf("%s is %d bytes, want %d", s.name, s.got, s.want)
		}
	}

	var m Material
	if off := unsafe.Offsetof(m.BaseColor); off != 32 {
		t.Errorf("Material.BaseColor at %d, want 32", off)
	}
	var e Emitter
	if off := unsafe.Offsetof(e.N0); off != 48 {
		t.Errorf("Emitter.N0 at %d, want 48", off)
	}
	var sd SceneData
	if off := unsafe.Offsetof(sd.InstanceAddress); off != 64 {
		t.Errorf("SceneData.InstanceAddress at %d, want 64", off)
	}
	if unsafe.Sizeof(GlobalData{})%16 != 0 {
		t.Errorf("GlobalData size %d is not a multiple of 16", unsafe.Sizeof(GlobalData{}))
	}
}

func quad() ([]Vertex, []uint32) {
	n := [3]float32{0, 0, 1}
	return []Vertex{
		{Position: [3]float32{0, 0, 0}, Normal: n},
		{Position: [3]float32{1, 0, 0}, Normal: n, U: 1},
		{Position: [3]float32{1, 1, 0}, Normal: n, U: 1, V: 1},
		{Position: [3]float32{0, 1, 0}, Normal: n, V: 1},
	}, []uint32{0, 1, 2, 0, 2, 3}
}

func scaled(s float32, t [3]float32) lin.Mat4x4 {
	return Compose(t, [4]float32{0, 0, 0, 1}, [3]float32{s, s, s})
}

func testScene(t *testing.T, loading LightLoading) *Scene {
	t.Helper()
	b := NewBuilder("test", loading)
	plain := b.AddMaterial(DefaultMaterial())
	light := DefaultMaterial()
	light.Emissive = [3]float32{1, 0.5, 0.25}
	light.EmissiveStrength = 2
	lm := b.AddMaterial(light)

	v, i := quad()
	floor := b.AddMesh("floor", v, i, plain)
	lamp := b.AddMesh("lamp", v, i, lm)

	b.AddInstance(floor, scaled(4, [3]float32{-2, -2, 0}))
	b.AddInstance(lamp, scaled(2, [3]float32{0, 0, 3}))

	s, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuildEmissive(t *testing.T) {
	s := testScene(t, AsEmissive)

	if len(s.Instances) != 2 || len(s.Meshes) != 2 {
		t.Fatalf("got %d instances, %d meshes", len(s.Instances), len(s.Meshes))
	}
	if s.Instances[0].EmitterID != NoEmitter {
		t.Errorf("floor has emitter %d", s.Instances[0].EmitterID)
	}
	if s.Instances[1].EmitterID != 0 {
		t.Errorf("lamp emitter id %d, want 0", s.Instances[1].EmitterID)
	}
	if got := s.EmissiveInstances(); len(got) != 1 || got[0] != 1 {
		t.Errorf("emissive instances %v", got)
	}
	if len(s.Emitters) != 2 {
		t.Fatalf("got %d emitters, want 2", len(s.Emitters))
	}
	for k, e := range s.Emitters {
		if math.Abs(float64(e.Area)-2) > 1e-5 {
			t.Errorf("emitter %d area %v, want 2", k, e.Area)
		}
		if e.Intensity() != [3]float32{2, 1, 0.5} {
			t.Errorf("emitter %d intensity %v", k, e.Intensity())
		}
		if e.Instance != 1 || e.Primitive != uint32(k) {
			t.Errorf("emitter %d owner %d/%d", k, e.Instance, e.Primitive)
		}
		if e.P0[2] != 3 || e.N0 != [3]float32{0, 0, 1} {
			t.Errorf("emitter %d not in world space: %v %v", k, e.P0, e.N0)
		}
	}

	if s.Instances[0].Area != 16 || s.Instances[1].Area != 4 {
		t.Errorf("areas %v %v", s.Instances[0].Area, s.Instances[1].Area)
	}
	p := s.MeshAlias.Probabilities()
	if math.Abs(p[0]-0.8) > 1e-5 || math.Abs(p[1]-0.2) > 1e-5 {
		t.Errorf("mesh probabilities %v", p)
	}
	p = s.EmitterAlias.Probabilities()
	if math.Abs(p[0]-0.5) > 1e-5 {
		t.Errorf("emitter probabilities %v", p)
	}

	if s.Min != [3]float32{-2, -2, 0} || s.Max != [3]float32{2, 2, 3} {
		t.Errorf("bounds %v %v", s.Min, s.Max)
	}
	d := s.Data()
	if d.EmitterCount != 2 || d.InstanceCount != 2 || d.IndexCount != 12 || d.LightLoading != uint32(AsEmissive) {
		t.Errorf("scene data %+v", d)
	}
}

func TestBuildPointLights(t *testing.T) {
	s := testScene(t, AsPointLight)
	if len(s.Emitters) != 2 {
		t.Fatalf("got %d emitters", len(s.Emitters))
	}
	e := s.Emitters[0]
	if e.P0 != e.P1 || e.P1 != e.P2 {
		t.Errorf("point light is not degenerate: %v %v %v", e.P0, e.P1, e.P2)
	}
	if e.Area != 0 {
		t.Errorf("point light area %v", e.Area)
	}
	want := [3]float32{4, 2, 1}
	if e.Intensity() != want {
		t.Errorf("intensity %v, want %v", e.Intensity(), want)
	}
	// Centroid of the first lamp triangle (0,0) (2,0) (2,2) at z=3.
	c := [3]float32{4.0 / 3, 2.0 / 3, 3}
	for k := range c {
		if math.Abs(float64(e.P0[k]-c[k])) > 1e-5 {
			t.Fatalf("centroid %v, want %v", e.P0, c)
		}
	}
}

func TestSetTransformRebuildsLights(t *testing.T) {
	s := testScene(t, AsEmissive)
	if err := s.SetTransform(5, scaled(1, [3]float32{})); err == nil {
		t.Error("out of range instance accepted")
	}
	if err := s.SetTransform(1, scaled(1, [3]float32{0, 0, 5})); err != nil {
		t.Fatal(err)
	}
	if s.Emitters[0].P0[2] != 3 {
		t.Errorf("emitters changed before rebuild")
	}
	s.RebuildLights()

	if len(s.Emitters) != 2 || s.Instances[1].EmitterID != 0 {
		t.Fatalf("got %d emitters, lamp emitter %d", len(s.Emitters), s.Instances[1].EmitterID)
	}
	for k, e := range s.Emitters {
		if e.P0[2] != 5 || math.Abs(float64(e.Area)-0.5) > 1e-5 {
			t.Errorf("emitter %d at z=%v area %v", k, e.P0[2], e.Area)
		}
	}
	if s.Instances[1].Area != 1 {
		t.Errorf("lamp area %v", s.Instances[1].Area)
	}
	p := s.MeshAlias.Probabilities()
	if math.Abs(p[0]-16.0/17) > 1e-5 {
		t.Errorf("mesh probabilities %v", p)
	}
	if s.Max[2] != 5 {
		t.Errorf("bounds not refreshed: %v", s.Max)
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := NewBuilder("empty", AsEmissive).Build(); !errors.Is(err, ErrNoGeometry) {
		t.Errorf("empty build: %v", err)
	}
	b := NewBuilder("bad", AsEmissive)
	v, i := quad()
	m := b.AddMesh("quad", v, i, 7)
	b.AddInstance(m, identity())
	if _, err := b.Build(); err == nil {
		t.Error("missing material accepted")
	}
}

func TestCompose(t *testing.T) {
	m := Compose([3]float32{1, 2, 3}, [4]float32{}, [3]float32{})
	if m[3] != (lin.Vec4{1, 2, 3, 1}) || m[0] != (lin.Vec4{1, 0, 0, 0}) {
		t.Errorf("zero rotation and scale should default: %v", m)
	}

	// 90 degrees around z maps x to y.
	h := float32(math.Sqrt2 / 2)
	m = Compose([3]float32{}, [4]float32{0, 0, h, h}, [3]float32{1, 1, 1})
	p := transformPoint(&m, [3]float32{1, 0, 0})
	if math.Abs(float64(p[0])) > 1e-6 || math.Abs(float64(p[1]-1)) > 1e-6 {
		t.Errorf("rotated point %v", p)
	}

	inv := inverse(scaled(2, [3]float32{0, 0, 0}))
	n := transformNormal(&inv, [3]float32{0, 3, 0})
	if n != [3]float32{0, 1, 0} {
		t.Errorf("normal %v", n)
	}
}

func TestParseLightLoading(t *testing.T) {
	for in, want := range map[string]LightLoading{"point": AsPointLight, "Emissive": AsEmissive, "area": AsEmissive} {
		got, err := ParseLightLoading(in)
		if err != nil || got != want {
			t.Errorf("%q: %v %v", in, got, err)
		}
	}
	if _, err := ParseLightLoading("spot"); err == nil {
		t.Error("unknown mode accepted")
	}
}

// writeTriangle writes a glTF with a single emissive triangle embedded as a
// data URI, placed by the JSON node fields in node.
func writeTriangle(t *testing.T, node string, indices [3]uint16) string {
	t.Helper()
	buf := make([]byte, 44)
	pos := []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	for k, f := range pos {
		binary.LittleEndian.PutUint32(buf[k*4:], math.Float32bits(f))
	}
	for k, idx := range indices {
		binary.LittleEndian.PutUint16(buf[36+k*2:], idx)
	}

	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"mesh": 0, %s}],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0}, "indices": 1, "material": 0}]}],
  "materials": [{"name": "light", "emissiveFactor": [1, 1, 1],
    "extensions": {"KHR_materials_emissive_strength": {"emissiveStrength": 4}}}],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 6}
  ],
  "buffers": [{"byteLength": 44, "uri": "data:application/octet-stream;base64,%s"}]
}`, node, base64.StdEncoding.EncodeToString(buf))

	path := filepath.Join(t.TempDir(), "triangle.gltf")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	s, err := Load(writeTriangle(t, `"translation": [0, 0, 5]`, [3]uint16{0, 1, 2}), AsEmissive)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Meshes) != 1 || len(s.Instances) != 1 {
		t.Fatalf("got %d meshes, %d instances", len(s.Meshes), len(s.Instances))
	}
	if s.Materials[0].EmissiveStrength != 4 || !s.Materials[0].IsEmissive() {
		t.Errorf("material %+v", s.Materials[0])
	}
	if len(s.Emitters) != 1 {
		t.Fatalf("got %d emitters", len(s.Emitters))
	}
	e := s.Emitters[0]
	if math.Abs(float64(e.Area)-0.5) > 1e-6 || e.IntensityR != 4 {
		t.Errorf("emitter %+v", e)
	}
	if e.P0 != [3]float32{0, 0, 5} {
		t.Errorf("emitter not translated: %v", e.P0)
	}
	if s.Vertices[0].Normal != [3]float32{0, 0, 1} {
		t.Errorf("generated normal %v", s.Vertices[0].Normal)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.gltf"), AsPointLight); err == nil {
		t.Error("missing file loaded")
	}
}

func TestLoadNodeMatrix(t *testing.T) {
	// Uniform scale 2, then a translation of (1, 2, 3), column-major.
	node := `"matrix": [2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 1, 2, 3, 1]`
	s, err := Load(writeTriangle(t, node, [3]uint16{0, 1, 2}), AsEmissive)
	if err != nil {
		t.Fatal(err)
	}
	e := s.Emitters[0]
	if e.P0 != [3]float32{1, 2, 3} || e.P1 != [3]float32{3, 2, 3} || e.P2 != [3]float32{1, 4, 3} {
		t.Errorf("emitter corners %v %v %v", e.P0, e.P1, e.P2)
	}
	if math.Abs(float64(e.Area)-2) > 1e-6 {
		t.Errorf("area %v, want 2", e.Area)
	}
}

func TestFromColumns(t *testing.T) {
	m := FromColumns([16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 4, 5, 6, 1})
	if m[3] != (lin.Vec4{4, 5, 6, 1}) || m[0] != (lin.Vec4{1, 0, 0, 0}) {
		t.Errorf("matrix %v", m)
	}
}

func TestLoadIndexRange(t *testing.T) {
	_, err := Load(writeTriangle(t, `"translation": [0, 0, 0]`, [3]uint16{0, 1, 7}), AsEmissive)
	if !errors.Is(err, ErrIndexRange) {
		t.Errorf("out of range index: %v", err)
	}
}

func TestBuildIndexRange(t *testing.T) {
	b := NewBuilder("bad", AsEmissive)
	v, _ := quad()
	m := b.AddMesh("tri", v[:3], []uint32{0, 1, 7}, b.AddMaterial(DefaultMaterial()))
	b.AddInstance(m, identity())
	if _, err := b.Build(); !errors.Is(err, ErrIndexRange) {
		t.Errorf("out of range index: %v", err)
	}

	// Indices are local to their mesh: the second mesh may not reach into
	// the vertices of the first.
	b = NewBuilder("bad", AsEmissive)
	mat := b.AddMaterial(DefaultMaterial())
	v, i := quad()
	b.AddMesh("quad", v, i, mat)
	m = b.AddMesh("tri", v[:3], []uint32{0, 1, 3}, mat)
	b.AddInstance(m, identity())
	if _, err := b.Build(); !errors.Is(err, ErrIndexRange) {
		t.Errorf("index past its own mesh: %v", err)
	}
}

func TestEmissiveWithoutTriangles(t *testing.T) {
	b := NewBuilder("degenerate", AsEmissive)
	light := DefaultMaterial()
	light.Emissive = [3]float32{1, 1, 1}
	v, i := quad()
	floor := b.AddMesh("floor", v, i, b.AddMaterial(DefaultMaterial()))
	line := b.AddMesh("line", v[:2], []uint32{0, 1}, b.AddMaterial(light))
	b.AddInstance(floor, identity())
	b.AddInstance(line, identity())

	s, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Emitters) != 0 {
		t.Errorf("got %d emitters", len(s.Emitters))
	}
	if id := s.Instances[1].EmitterID; id != NoEmitter {
		t.Errorf("instance without triangles has emitter %d", id)
	}
}
