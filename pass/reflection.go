package pass

import (
	"github.com/inkyblackness/imgui-go"
	vk "github.com/vulkan-go/vulkan"

	"github.com/celer/hybrid/internal/imath"
	"github.com/celer/hybrid/schedule"
	"github.com/celer/hybrid/vkg"
)

// Indirect dispatch arguments, three uint32 each, in the args buffer.
const (
	argsDenoiseOffset = 0
	argsCopyOffset    = 12
)

// tileSize is the side of a classification tile in pixels.
const tileSize = 8

// resetArgs is written to the args buffer before reprojection appends
// tiles: zero groups on X, one on Y and Z, for both lists.
var resetArgs = vkg.SliceBytes([]uint32{0, 1, 1, 0, 1, 1})

type reflectionPush struct {
	DenoiseTiles uint64
	CopyTiles    uint64
	Args         uint64
	Frame        uint32
	Scale        uint32
	_            [2]uint32
}

// RayTracedReflection traces one glossy reflection ray per pixel at
// reduced resolution, reprojects and accumulates it with moments-based
// variance, then filters only the tiles that need it.
type RayTracedReflection struct {
	Options *ReflectionOptions

	Color *vkg.Texture
	// Reprojection holds color and variance in alpha.
	Reprojection [2]*vkg.Texture
	Moments      [2]*vkg.Texture
	DenoiseTiles *vkg.Buffer
	CopyTiles    *vkg.Buffer
	Args         *vkg.Buffer
	Output       *vkg.Texture

	traceLayout     *vkg.DescriptorSetLayout
	traceSet        *vkg.DescriptorSet
	reprojectLayout *vkg.DescriptorSetLayout
	reprojectSets   [2]*vkg.DescriptorSet
	trace           *kernel
	reproject       *kernel
	denoiser        *denoiser
	upsampler       *upsampler

	// scale is fixed at construction, the rest of Options is read per
	// frame.
	scale uint32
	env   *Env
}

func NewRayTracedReflection(env *Env, opts *ReflectionOptions) (_ *RayTracedReflection, err error) {
	r := &RayTracedReflection{Options: opts, scale: opts.Scale, env: env}
	defer func() {
		if err != nil {
			r.Destroy()
		}
	}()
	ctx := env.Ctx
	w, h := env.scaled(r.scale)
	if r.Color, err = env.storageImage(schedule.ReflectionColor, w, h, HDRFormat); err != nil {
		return nil, err
	}
	for k := 0; k < 2; k++ {
		if r.Reprojection[k], err = env.storageImage(slot(schedule.ReflectionReprojection, k), w, h, HDRFormat); err != nil {
			return nil, err
		}
		if r.Moments[k], err = env.storageImage(slot(schedule.ReflectionMoments, k), w, h, HDRFormat); err != nil {
			return nil, err
		}
	}
	tiles := uint64(imath.DivCeil(w, tileSize)) * uint64(imath.DivCeil(h, tileSize)) * 4
	usage := vk.BufferUsageStorageBufferBit | vkg.BufferUsageDeviceAddress
	if r.DenoiseTiles, err = ctx.CreateBuffer(schedule.ReflectionDenoiseTiles, tiles, usage, vkg.GPUOnly); err != nil {
		return nil, err
	}
	if r.CopyTiles, err = ctx.CreateBuffer(schedule.ReflectionCopyTiles, tiles, usage, vkg.GPUOnly); err != nil {
		return nil, err
	}
	r.Args, err = ctx.CreateBuffer(schedule.ReflectionArgs, uint64(len(resetArgs)),
		usage|vk.BufferUsageIndirectBufferBit|vk.BufferUsageTransferDstBit, vkg.GPUOnly)
	if err != nil {
		return nil, err
	}
	if r.Output, err = env.storageImage(schedule.ReflectionOutput, env.Extent.Width, env.Extent.Height, HDRFormat); err != nil {
		return nil, err
	}

	if r.traceLayout, err = env.layout("reflection.trace", vk.DescriptorTypeStorageImage); err != nil {
		return nil, err
	}
	sets, err := env.sets(r.traceLayout, 1)
	if err != nil {
		return nil, err
	}
	r.traceSet = sets[0]
	vkg.NewDescriptorWriter().Image(0, vk.DescriptorTypeStorageImage, storage(r.Color)).Update(r.traceSet)

	r.reprojectLayout, err = env.layout("reflection.reproject",
		vk.DescriptorTypeCombinedImageSampler, // color
		vk.DescriptorTypeCombinedImageSampler, // previous reprojection
		vk.DescriptorTypeCombinedImageSampler, // previous moments
		vk.DescriptorTypeStorageImage,
		vk.DescriptorTypeStorageImage)
	if err != nil {
		return nil, err
	}
	if sets, err = env.sets(r.reprojectLayout, 2); err != nil {
		return nil, err
	}
	copy(r.reprojectSets[:], sets)
	for k := 0; k < 2; k++ {
		prev := 1 - k
		vkg.NewDescriptorWriter().
			Image(0, vk.DescriptorTypeCombinedImageSampler, env.sampled(r.Color)).
			Image(1, vk.DescriptorTypeCombinedImageSampler, env.sampled(r.Reprojection[prev])).
			Image(2, vk.DescriptorTypeCombinedImageSampler, env.sampled(r.Moments[prev])).
			Image(3, vk.DescriptorTypeStorageImage, storage(r.Reprojection[k])).
			Image(4, vk.DescriptorTypeStorageImage, storage(r.Moments[k])).
			Update(r.reprojectSets[k])
	}

	push := uint32(sizeOf[reflectionPush]())
	if r.trace, err = env.kernel("reflection.trace", "reflection.hlsl", "Trace", nil, push, r.traceLayout); err != nil {
		return nil, err
	}
	if r.reproject, err = env.kernel("reflection.reproject", "reflection.hlsl", "Reproject", nil, push, r.reprojectLayout); err != nil {
		return nil, err
	}
	if r.denoiser, err = env.newDenoiser("reflection", r.scale, r.Reprojection, true); err != nil {
		return nil, err
	}
	r.upsampler, err = env.newUpsampler("reflection", opts.Upsample, r.scale, r.Output,
		r.denoiser.Images[0], r.denoiser.Images[1])
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Init clears the history and output images and empties the tile lists.
func (r *RayTracedReflection) Init(cmd *vkg.CommandBuffer) {
	clearTextures(cmd, [4]float32{}, r.Color, r.Output)
	clearTextures(cmd, [4]float32{}, r.Reprojection[:]...)
	clearTextures(cmd, [4]float32{}, r.Moments[:]...)
	clearTextures(cmd, [4]float32{}, r.denoiser.Images[:]...)
	for _, b := range []*vkg.Buffer{r.DenoiseTiles, r.CopyTiles} {
		cmd.FillBuffer(b, 0, b.Size, 0)
	}
	cmd.UpdateBuffer(r.Args, 0, resetArgs)
	cmd.MemoryBarrier(vk.PipelineStageTransferBit, vk.PipelineStageComputeShaderBit|vk.PipelineStageDrawIndirectBit,
		vk.AccessTransferWriteBit, vk.AccessShaderReadBit|vk.AccessShaderWriteBit|vk.AccessIndirectCommandReadBit)
}

// iterations is at least one: the copy step writes into the output of the
// last filter iteration.
func (r *RayTracedReflection) iterations() int {
	if n := r.Options.Denoise.Iterations; n > 1 {
		return n
	}
	return 1
}

func (r *RayTracedReflection) Draw(f *Frame) {
	if !f.Plan.Has(schedule.NodeReflectionTrace) {
		return
	}
	k := f.Parity.Write()
	p := reflectionPush{
		DenoiseTiles: r.DenoiseTiles.Address,
		CopyTiles:    r.CopyTiles.Address,
		Args:         r.Args.Address,
		Frame:        f.Number,
		Scale:        r.scale,
	}
	push := vkg.ValueBytes(&p)
	w, h := r.Color.Extent.Width, r.Color.Extent.Height

	if f.Node(schedule.NodeReflectionTrace) {
		r.trace.dispatch(f, r.traceSet, push, w, h, 8, 8)
	}
	if f.Node(schedule.NodeReflectionTileReset) {
		f.Cmd.UpdateBuffer(r.Args, 0, resetArgs)
	}
	if f.Node(schedule.NodeReflectionReproject) {
		r.reproject.dispatch(f, r.reprojectSets[k], push, w, h, tileSize, tileSize)
	}

	o := r.Options.Denoise
	o.Iterations = r.iterations()
	for i := 0; i < o.Iterations; i++ {
		r.denoiser.iterateIndirect(f, schedule.NodeATrous("reflection", i), o, i, r.DenoiseTiles.Address, r.Args)
	}
	r.denoiser.copyTiles(f, schedule.NodeReflectionCopy, o, r.CopyTiles.Address, r.Args)
	r.upsampler.run(f, schedule.NodeReflectionUpsample, r.denoiser.output(k, o.Iterations))
}

func (r *RayTracedReflection) Register(res Resources) {
	res.Image(schedule.ReflectionColor, r.Color)
	res.Image(schedule.ReflectionReprojection, r.Reprojection[:]...)
	res.Image(schedule.ReflectionMoments, r.Moments[:]...)
	res.Image(schedule.ATrousImage("reflection", 0), r.denoiser.Images[0])
	res.Image(schedule.ATrousImage("reflection", 1), r.denoiser.Images[1])
	res.Buffer(schedule.ReflectionDenoiseTiles, r.DenoiseTiles)
	res.Buffer(schedule.ReflectionCopyTiles, r.CopyTiles)
	res.Buffer(schedule.ReflectionArgs, r.Args)
	res.Image(schedule.ReflectionOutput, r.Output)
}

func (r *RayTracedReflection) DrawUI() {
	if !imgui.CollapsingHeader("Reflection") {
		return
	}
	imgui.Checkbox("Enabled##reflection", &r.Options.Enabled)
	denoiseUI("reflection", &r.Options.Denoise, 1)
}

func (r *RayTracedReflection) Destroy() {
	r.upsampler.Destroy()
	r.denoiser.Destroy()
	r.reproject.Destroy()
	r.trace.Destroy()
	r.env.freeSets(r.reprojectSets[:]...)
	r.env.freeSets(r.traceSet)
	for _, l := range []*vkg.DescriptorSetLayout{r.reprojectLayout, r.traceLayout} {
		if l != nil {
			l.Destroy()
		}
	}
	destroyBuffers(r.Args, r.CopyTiles, r.DenoiseTiles)
	destroyTextures(r.Output, r.Color)
	destroyTextures(r.Reprojection[:]...)
	destroyTextures(r.Moments[:]...)
}
