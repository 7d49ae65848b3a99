// Package gpuscene uploads a scene.Scene to the device: geometry and
// record buffers with device addresses, one BLAS per mesh, a TLAS over
// every instance, material textures and the scene descriptor set.
package gpuscene

import (
	"fmt"
	"image"
	"image/color"

	units "github.com/docker/go-units"
	vk "github.com/vulkan-go/vulkan"
	lin "github.com/xlab/linmath"

	"github.com/celer/hybrid/log"
	"github.com/celer/hybrid/scene"
	"github.com/celer/hybrid/vkg"
)

var logger = log.New("gpuscene")

// Bindings of the scene descriptor set.
const (
	BindingSceneData = 0
	BindingTLAS      = 1
	BindingTextures  = 2
	BindingSamplers  = 3
)

// MaxTextures bounds the variable sized texture array.
const MaxTextures = 1024

// Stages every scene binding is visible to.
const Stages = vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit

const recordUsage = vk.BufferUsageStorageBufferBit | vkg.BufferUsageDeviceAddress

// Scene is the device copy of a scene.Scene. Shaders reach the record
// buffers through the device addresses stored in the SceneData uniform.
type Scene struct {
	Host *scene.Scene

	Vertices     *vkg.Buffer
	Indices      *vkg.Buffer
	Instances    *vkg.Buffer
	Materials    *vkg.Buffer
	Emitters     *vkg.Buffer
	EmitterAlias *vkg.Buffer
	MeshAlias    *vkg.Buffer
	Data         *vkg.Buffer

	BLAS        []*vkg.AccelerationStructure
	TLAS        *vkg.AccelerationStructure
	asInstances *vkg.Buffer
	tlasInput   vkg.AccelerationStructureInput
	tlasScratch *vkg.Buffer

	// Textures is indexed by the material texture slots. Views holds the
	// default 2D view of each.
	Textures []*vkg.Texture
	Views    []*vkg.ImageView

	Layout *vkg.DescriptorSetLayout
	Set    *vkg.DescriptorSet

	ctx *vkg.Context
}

// New uploads s. Everything created before a failure is released.
func New(ctx *vkg.Context, s *scene.Scene) (_ *Scene, err error) {
	gs := &Scene{Host: s, ctx: ctx}
	defer func() {
		if err != nil {
			gs.Destroy()
			gs = nil
		}
	}()

	if err = gs.uploadBuffers(); err != nil {
		return nil, err
	}
	if err = gs.buildBLAS(); err != nil {
		return nil, err
	}
	if err = gs.buildTLAS(); err != nil {
		return nil, err
	}
	if err = gs.loadTextures(); err != nil {
		return nil, err
	}
	if err = gs.writeData(); err != nil {
		return nil, err
	}
	if err = gs.createDescriptorSet(); err != nil {
		return nil, err
	}

	var total uint64
	for _, b := range []*vkg.Buffer{gs.Vertices, gs.Indices, gs.Instances, gs.Materials, gs.Emitters, gs.EmitterAlias, gs.MeshAlias} {
		total += b.Size
	}
	for _, as := range gs.BLAS {
		total += as.Buffer.Size
	}
	logger.Noticef("scene %s: %d instances, %d meshes, %d triangles, %d emitters, %d textures, %s of buffers",
		s.Name, len(s.Instances), len(s.Meshes), s.TriangleCount(), len(s.Emitters), len(s.Textures),
		units.BytesSize(float64(total)))
	return gs, nil
}

// records returns b, or one zeroed record of size bytes when b is empty so
// that every buffer exists and has an address.
func records(b []byte, size int) []byte {
	if len(b) == 0 {
		return make([]byte, size)
	}
	return b
}

func (gs *Scene) uploadBuffers() error {
	s := gs.Host
	var err error
	upload := func(name string, data []byte, usage vk.BufferUsageFlagBits) (*vkg.Buffer, error) {
		b, err := gs.ctx.UploadBuffer(s.Name+"."+name, data, usage)
		if err != nil {
			return nil, fmt.Errorf("scene %s: %w", s.Name, err)
		}
		return b, nil
	}

	geometry := recordUsage | vkg.BufferUsageASBuildInput | vk.BufferUsageVertexBufferBit
	if gs.Vertices, err = upload("vertices", vkg.SliceBytes(s.Vertices), geometry); err != nil {
		return err
	}
	geometry = recordUsage | vkg.BufferUsageASBuildInput | vk.BufferUsageIndexBufferBit
	if gs.Indices, err = upload("indices", vkg.SliceBytes(s.Indices), geometry); err != nil {
		return err
	}
	if gs.Instances, err = upload("instances", vkg.SliceBytes(s.Instances), recordUsage); err != nil {
		return err
	}
	if gs.Materials, err = upload("materials", vkg.SliceBytes(s.Materials), recordUsage); err != nil {
		return err
	}
	if gs.Emitters, err = upload("emitters", records(vkg.SliceBytes(s.Emitters), 96), recordUsage); err != nil {
		return err
	}
	if gs.EmitterAlias, err = upload("emitters.alias", records(vkg.SliceBytes(s.EmitterAlias), 16), recordUsage); err != nil {
		return err
	}
	if gs.MeshAlias, err = upload("meshes.alias", records(vkg.SliceBytes(s.MeshAlias), 16), recordUsage); err != nil {
		return err
	}
	return nil
}

func (gs *Scene) buildBLAS() error {
	s := gs.Host
	const vertexSize = 32
	for i, m := range s.Meshes {
		in := vkg.AccelerationStructureInput{
			Kind:  vkg.BottomLevel,
			Flags: vkg.BuildPreferFastTrace,
			Triangles: vkg.TriangleGeometry{
				VertexAddress: gs.Vertices.Address + uint64(m.VertexOffset)*vertexSize,
				VertexStride:  vertexSize,
				MaxVertex:     m.VertexCount - 1,
				IndexAddress:  gs.Indices.Address + uint64(m.IndexOffset)*4,
				TriangleCount: m.IndexCount / 3,
				Opaque:        s.Materials[m.Material].AlphaMode == scene.AlphaOpaque,
			},
		}
		blas, scratch, err := gs.ctx.CreateAccelerationStructure(fmt.Sprintf("%s.blas.%d", s.Name, i), in)
		if err != nil {
			return fmt.Errorf("mesh %q: %w", m.Name, err)
		}
		scratch.Destroy()
		gs.BLAS = append(gs.BLAS, blas)
	}
	return nil
}

// instanceRecords builds one TLAS instance per scene instance. The custom
// index is the scene instance id.
func (gs *Scene) instanceRecords() []vkg.ASInstance {
	s := gs.Host
	out := make([]vkg.ASInstance, len(s.Instances))
	for i, inst := range s.Instances {
		var flags uint8
		if s.Materials[inst.MaterialID].DoubleSided != 0 {
			flags |= vkg.InstanceCullDisable
		}
		out[i] = vkg.NewASInstance(inst.Transform, uint32(i), 0xff, flags, gs.BLAS[inst.MeshID])
	}
	return out
}

func (gs *Scene) buildTLAS() error {
	s := gs.Host
	var err error
	gs.asInstances, err = gs.ctx.CreateBuffer(s.Name+".tlas.instances", uint64(len(s.Instances))*vkg.ASInstanceSize,
		vkg.BufferUsageASBuildInput|vkg.BufferUsageDeviceAddress, vkg.CPUToGPU)
	if err != nil {
		return err
	}
	copy(gs.asInstances.Mapped, vkg.PackInstances(gs.instanceRecords()))

	gs.tlasInput = vkg.AccelerationStructureInput{
		Kind:            vkg.TopLevel,
		Flags:           vkg.BuildPreferFastTrace | vkg.BuildAllowUpdate,
		InstanceAddress: gs.asInstances.Address,
		InstanceCount:   uint32(len(s.Instances)),
	}
	gs.TLAS, gs.tlasScratch, err = gs.ctx.CreateAccelerationStructure(s.Name+".tlas", gs.tlasInput)
	return err
}

var white = func() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.White)
	return img
}()

// SampledTexture creates material textures with a full mip chain.
var SampledTexture = vkg.TextureOptions{Mipmapped: true}

func (gs *Scene) loadTextures() error {
	paths := gs.Host.Textures
	if len(paths) > MaxTextures {
		return fmt.Errorf("scene %s: %d textures, at most %d", gs.Host.Name, len(paths), MaxTextures)
	}
	for i, path := range paths {
		var tex *vkg.Texture
		var err error
		if path == "" {
			tex, err = gs.ctx.UploadTexture(fmt.Sprintf("%s.texture.%d", gs.Host.Name, i), white, SampledTexture)
		} else {
			tex, err = gs.ctx.LoadTexture(path, SampledTexture)
		}
		if err != nil {
			return fmt.Errorf("scene %s: texture %d: %w", gs.Host.Name, i, err)
		}
		gs.Textures = append(gs.Textures, tex)
		gs.Views = append(gs.Views, tex.View)
	}
	if len(gs.Textures) == 0 {
		// The array binding needs at least one valid descriptor.
		tex, err := gs.ctx.UploadTexture(gs.Host.Name+".texture.default", white, vkg.TextureOptions{})
		if err != nil {
			return err
		}
		gs.Textures = append(gs.Textures, tex)
		gs.Views = append(gs.Views, tex.View)
	}
	return nil
}

// SceneData returns the scene uniform with every device address filled in.
func (gs *Scene) SceneData() scene.SceneData {
	d := gs.Host.Data()
	d.InstanceAddress = gs.Instances.Address
	d.EmitterAddress = gs.Emitters.Address
	d.MaterialAddress = gs.Materials.Address
	d.VertexAddress = gs.Vertices.Address
	d.IndexAddress = gs.Indices.Address
	d.EmitterAliasAddress = gs.EmitterAlias.Address
	d.MeshAliasAddress = gs.MeshAlias.Address
	return d
}

func (gs *Scene) writeData() error {
	d := gs.SceneData()
	if gs.Data == nil {
		var err error
		gs.Data, err = gs.ctx.CreateBuffer(gs.Host.Name+".data", uint64(len(vkg.ValueBytes(&d))), vk.BufferUsageUniformBufferBit, vkg.CPUToGPU)
		if err != nil {
			return err
		}
	}
	return gs.ctx.CopyToDevice(gs.Data, vkg.ValueBytes(&d), false)
}

// NewLayout creates the scene descriptor set layout. The texture array is
// partially bound and sized by the allocation.
func NewLayout(ctx *vkg.Context) (*vkg.DescriptorSetLayout, error) {
	return ctx.NewDescriptorLayout().
		Name("scene").
		Binding(BindingSceneData, vk.DescriptorTypeUniformBuffer, 1, Stages).
		Binding(BindingTLAS, vkg.DescriptorTypeAS, 1, Stages).
		Binding(BindingTextures, vk.DescriptorTypeSampledImage, MaxTextures, Stages).
		Flags(vkg.BindingPartiallyBound | vkg.BindingUpdateAfterBind).
		Binding(BindingSamplers, vk.DescriptorTypeSampler, 2, Stages).
		Create()
}

func (gs *Scene) createDescriptorSet() error {
	var err error
	if gs.Layout, err = NewLayout(gs.ctx); err != nil {
		return err
	}
	sets, err := gs.ctx.AllocateDescriptorSets(gs.Layout)
	if err != nil {
		return fmt.Errorf("scene %s: %w", gs.Host.Name, err)
	}
	gs.Set = sets[0]
	gs.writeDescriptors().Update(gs.Set)
	return nil
}

func (gs *Scene) writeDescriptors() *vkg.DescriptorWriter {
	images := make([]vk.DescriptorImageInfo, len(gs.Textures))
	for i, t := range gs.Textures {
		images[i] = t.Info(vk.ImageLayoutShaderReadOnlyOptimal, nil)
	}
	samplers := []vk.DescriptorImageInfo{
		{Sampler: gs.ctx.LinearSampler.VKSampler},
		{Sampler: gs.ctx.NearestSampler.VKSampler},
	}
	return vkg.NewDescriptorWriter().
		Buffer(BindingSceneData, vk.DescriptorTypeUniformBuffer, gs.Data.DSInfo(0, 0)).
		AccelerationStructure(BindingTLAS, gs.TLAS).
		Images(BindingTextures, 0, vk.DescriptorTypeSampledImage, images).
		Images(BindingSamplers, 0, vk.DescriptorTypeSampler, samplers)
}

// UpdateTransforms moves instance id to m and refits the TLAS. It blocks
// until the device is idle. Call UpdateAreaLight afterwards when the
// instance emits light.
func (gs *Scene) UpdateTransforms(id int, m lin.Mat4x4) error {
	if err := gs.Host.SetTransform(id, m); err != nil {
		return err
	}
	if err := gs.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	rec := gs.instanceRecords()[id]
	rec.Put(gs.asInstances.Mapped[id*vkg.ASInstanceSize:])

	cmd, err := gs.ctx.RecordCommand(false)
	if err != nil {
		return err
	}
	in := gs.tlasInput
	in.Update = true
	gs.TLAS.CmdBuild(cmd, &in, gs.tlasScratch)
	if err := gs.ctx.Flush(cmd); err != nil {
		return fmt.Errorf("scene %s: tlas update: %w", gs.Host.Name, err)
	}
	return gs.ctx.CopyToDevice(gs.Instances, vkg.SliceBytes(gs.Host.Instances), true)
}

// UpdateAreaLight recomputes emitters and alias tables from the current
// instance transforms and uploads them with the refreshed bounds.
func (gs *Scene) UpdateAreaLight() error {
	s := gs.Host
	s.RebuildLights()
	if err := gs.ctx.Device.WaitIdle(); err != nil {
		return err
	}
	uploads := []struct {
		buf  *vkg.Buffer
		data []byte
	}{
		{gs.Instances, vkg.SliceBytes(s.Instances)},
		{gs.Emitters, vkg.SliceBytes(s.Emitters)},
		{gs.EmitterAlias, vkg.SliceBytes(s.EmitterAlias)},
		{gs.MeshAlias, vkg.SliceBytes(s.MeshAlias)},
	}
	for _, u := range uploads {
		if len(u.data) == 0 {
			continue
		}
		if err := gs.ctx.CopyToDevice(u.buf, u.data, true); err != nil {
			return fmt.Errorf("scene %s: %w", s.Name, err)
		}
	}
	return gs.writeData()
}

// Destroy releases everything in reverse creation order. It is safe on a
// partially constructed scene.
func (gs *Scene) Destroy() {
	if gs.Set != nil {
		gs.ctx.DescriptorPool.Free(gs.Set)
	}
	if gs.Layout != nil {
		gs.Layout.Destroy()
	}
	if gs.Data != nil {
		gs.Data.Destroy()
	}
	for _, t := range gs.Textures {
		t.Destroy()
	}
	if gs.tlasScratch != nil {
		gs.tlasScratch.Destroy()
	}
	if gs.TLAS != nil {
		gs.TLAS.Destroy()
	}
	if gs.asInstances != nil {
		gs.asInstances.Destroy()
	}
	for i := len(gs.BLAS) - 1; i >= 0; i-- {
		gs.BLAS[i].Destroy()
	}
	for _, b := range []*vkg.Buffer{gs.MeshAlias, gs.EmitterAlias, gs.Emitters, gs.Materials, gs.Instances, gs.Indices, gs.Vertices} {
		if b != nil {
			b.Destroy()
		}
	}
}
