package schedule

import (
	"fmt"
	"sync"

	fg "github.com/celer/hybrid/framegraph"
)

// Toggles selects the passes recorded in a frame. It is comparable and
// keys the plan cache.
type Toggles struct {
	DI         bool
	DISpatial  bool
	Reflection bool
	Shadow     bool
	AO         bool
	GI         bool
	UI         bool

	ReflectionIterations int
	ShadowIterations     int
	AOIterations         int
	GIIterations         int
}

func DefaultToggles() Toggles {
	return Toggles{
		DI:                   true,
		DISpatial:            true,
		Reflection:           true,
		Shadow:               true,
		AO:                   true,
		GI:                   true,
		UI:                   true,
		ReflectionIterations: 3,
		ShadowIterations:     2,
		AOIterations:         2,
		GIIterations:         3,
	}
}

// Iterations returns the À-Trous iteration count of a ray pass.
func (t Toggles) Iterations(pass string) int {
	switch pass {
	case Shadow:
		return t.ShadowIterations
	case AO:
		return t.AOIterations
	case GI:
		return t.GIIterations
	}
	return t.ReflectionIterations
}

func (t Toggles) enabled(pass string) bool {
	switch pass {
	case Shadow:
		return t.Shadow
	case AO:
		return t.AO
	case GI:
		return t.GI
	}
	return false
}

var gbuffer = []string{GBufferAlbedo, GBufferNormal, GBufferMaterial}

func sampled(slot func(string) fg.Ref, names ...string) []fg.Use {
	uses := make([]fg.Use, len(names))
	for i, n := range names {
		uses[i] = fg.On(slot(n), fg.Sampled)
	}
	return uses
}

func with(uses []fg.Use, more ...fg.Use) []fg.Use {
	return append(append([]fg.Use(nil), uses...), more...)
}

// Build returns the graph of one hybrid frame.
func Build(t Toggles) *fg.Graph {
	g := fg.New()

	for _, n := range gbuffer {
		g.PingPongImage(n)
	}
	g.PingPongImage(GBufferDepth)
	g.Buffer(DITemporal).Buffer(DIPassthrough).Buffer(DISpatial).Image(DIOutput)
	g.Image(ReflectionColor).
		PingPongImage(ReflectionReprojection).
		PingPongImage(ReflectionMoments).
		Image(ATrousImage("reflection", 0)).
		Image(ATrousImage("reflection", 1)).
		Buffer(ReflectionDenoiseTiles).
		Buffer(ReflectionCopyTiles).
		Buffer(ReflectionArgs).
		Image(ReflectionOutput)
	for _, p := range []string{Shadow, AO, GI} {
		g.Image(RayRaw(p)).
			PingPongImage(RayHistory(p)).
			Image(ATrousImage(p, 0)).
			Image(ATrousImage(p, 1)).
			Image(RayOutput(p))
	}
	g.Image(Composite).PingPongImage(TAA).Image(Tonemap).Image(FSRScratch).Image(FSROutput)
	g.Swapchain(Swapchain)

	cur := sampled(fg.Cur, gbuffer...)
	prev := sampled(fg.Prev, GBufferNormal, GBufferMaterial)

	g.Node(NodeGBuffer, fg.Graphics,
		fg.Overwrite(fg.Cur(GBufferAlbedo), fg.ColorAttachment),
		fg.Overwrite(fg.Cur(GBufferNormal), fg.ColorAttachment),
		fg.Overwrite(fg.Cur(GBufferMaterial), fg.ColorAttachment),
		fg.Overwrite(fg.Cur(GBufferDepth), fg.DepthAttachment))
	g.Node(NodeGBufferMips, fg.Transfer,
		fg.On(fg.Cur(GBufferAlbedo), fg.MipChain),
		fg.On(fg.Cur(GBufferNormal), fg.MipChain),
		fg.On(fg.Cur(GBufferMaterial), fg.MipChain))

	if t.DI {
		g.Node(NodeDITemporal, fg.Compute, with(with(cur, prev...),
			fg.On(fg.R(DITemporal), fg.BufferRead),
			fg.On(fg.R(DIPassthrough), fg.BufferWrite))...)
		final := DIPassthrough
		if t.DISpatial {
			g.Node(NodeDISpatial, fg.Compute, with(cur,
				fg.On(fg.R(DIPassthrough), fg.BufferRead),
				fg.On(fg.R(DISpatial), fg.BufferWrite))...)
			final = DISpatial
		}
		g.Node(NodeDIComposite, fg.Compute, with(cur,
			fg.On(fg.R(final), fg.BufferRead),
			fg.On(fg.R(DITemporal), fg.BufferWrite),
			fg.Overwrite(fg.R(DIOutput), fg.StorageWrite))...)
	}

	if t.Reflection {
		reflection(g, t.ReflectionIterations, cur, prev)
	}
	for _, p := range []string{Shadow, AO, GI} {
		if t.enabled(p) {
			rayPass(g, p, t.Iterations(p), cur, prev)
		}
	}

	g.Node(NodeComposite, fg.Compute, with(cur,
		fg.On(fg.R(DIOutput), fg.Sampled),
		fg.On(fg.R(ReflectionOutput), fg.Sampled),
		fg.On(fg.R(RayOutput(Shadow)), fg.Sampled),
		fg.On(fg.R(RayOutput(AO)), fg.Sampled),
		fg.On(fg.R(RayOutput(GI)), fg.Sampled),
		fg.Overwrite(fg.R(Composite), fg.StorageWrite))...)
	g.Node(NodeTAA, fg.Compute,
		fg.On(fg.R(Composite), fg.Sampled),
		fg.On(fg.Prev(TAA), fg.Sampled),
		fg.On(fg.Cur(GBufferNormal), fg.Sampled),
		fg.Overwrite(fg.Cur(TAA), fg.StorageWrite))
	g.Node(NodeTonemap, fg.Compute,
		fg.On(fg.Cur(TAA), fg.Sampled),
		fg.Overwrite(fg.R(Tonemap), fg.StorageWrite))
	g.Node(NodeEASU, fg.Compute,
		fg.On(fg.R(Tonemap), fg.Sampled),
		fg.Overwrite(fg.R(FSRScratch), fg.StorageWrite))
	g.Node(NodeRCAS, fg.Compute,
		fg.On(fg.R(FSRScratch), fg.Sampled),
		fg.Overwrite(fg.R(FSROutput), fg.StorageWrite))
	g.Node(NodeBlit, fg.Transfer,
		fg.On(fg.R(FSROutput), fg.TransferSrc),
		fg.Overwrite(fg.R(Swapchain), fg.TransferDst))
	if t.UI {
		g.Node(NodeUI, fg.Graphics, fg.On(fg.R(Swapchain), fg.ColorAttachment))
	}
	return g
}

// reflection adds trace, reprojection with tile classification, the
// indirect À-Trous iterations over denoise tiles, the copy of the
// remaining tiles and the upsample.
func reflection(g *fg.Graph, iterations int, cur, prev []fg.Use) {
	const p = "reflection"
	if iterations < 1 {
		iterations = 1
	}
	g.Node(NodeReflectionTrace, fg.Compute, with(cur,
		fg.Overwrite(fg.R(ReflectionColor), fg.StorageWrite))...)
	g.Node(NodeReflectionTileReset, fg.Transfer,
		fg.On(fg.R(ReflectionArgs), fg.BufferTransferDst))
	g.Node(NodeReflectionReproject, fg.Compute, with(with(cur, prev...),
		fg.On(fg.R(ReflectionColor), fg.Sampled),
		fg.On(fg.Prev(ReflectionReprojection), fg.Sampled),
		fg.On(fg.Prev(ReflectionMoments), fg.Sampled),
		fg.Overwrite(fg.Cur(ReflectionReprojection), fg.StorageWrite),
		fg.Overwrite(fg.Cur(ReflectionMoments), fg.StorageWrite),
		fg.On(fg.R(ReflectionDenoiseTiles), fg.BufferWrite),
		fg.On(fg.R(ReflectionCopyTiles), fg.BufferWrite),
		fg.On(fg.R(ReflectionArgs), fg.BufferReadWrite))...)

	input := fg.Cur(ReflectionReprojection)
	for i := 0; i < iterations; i++ {
		out := fg.R(ATrousImage(p, i))
		g.Node(NodeATrous(p, i), fg.Compute, with(cur,
			fg.On(input, fg.Sampled),
			fg.On(out, fg.StorageWrite),
			fg.On(fg.R(ReflectionDenoiseTiles), fg.BufferRead),
			fg.On(fg.R(ReflectionArgs), fg.Indirect))...)
		input = out
	}
	g.Node(NodeReflectionCopy, fg.Compute,
		fg.On(fg.Cur(ReflectionReprojection), fg.Sampled),
		fg.On(input, fg.StorageWrite),
		fg.On(fg.R(ReflectionCopyTiles), fg.BufferRead),
		fg.On(fg.R(ReflectionArgs), fg.Indirect))
	g.Node(NodeReflectionUpsample, fg.Compute, with(cur,
		fg.On(input, fg.Sampled),
		fg.Overwrite(fg.R(ReflectionOutput), fg.StorageWrite))...)
}

// rayPass adds the reduced-resolution trace, temporal accumulation,
// À-Trous iterations and upsample of a shadow, AO or GI pass.
func rayPass(g *fg.Graph, p string, iterations int, cur, prev []fg.Use) {
	g.Node(NodeRayTrace(p), fg.Compute, with(cur,
		fg.Overwrite(fg.R(RayRaw(p)), fg.StorageWrite))...)
	g.Node(NodeRayTemporal(p), fg.Compute, with(with(cur, prev...),
		fg.On(fg.R(RayRaw(p)), fg.Sampled),
		fg.On(fg.Prev(RayHistory(p)), fg.Sampled),
		fg.Overwrite(fg.Cur(RayHistory(p)), fg.StorageWrite))...)

	input := fg.Cur(RayHistory(p))
	for i := 0; i < iterations; i++ {
		out := fg.R(ATrousImage(p, i))
		g.Node(NodeATrous(p, i), fg.Compute, with(cur,
			fg.On(input, fg.Sampled),
			fg.Overwrite(out, fg.StorageWrite))...)
		input = out
	}
	g.Node(NodeRayUpsample(p), fg.Compute, with(cur,
		fg.On(input, fg.Sampled),
		fg.Overwrite(fg.R(RayOutput(p)), fg.StorageWrite))...)
}

type key struct {
	toggles Toggles
	parity  fg.Parity
}

// Cache compiles and validates each (toggles, parity) plan once.
type Cache struct {
	mu    sync.Mutex
	plans map[key]*fg.Plan
}

func NewCache() *Cache {
	return &Cache{plans: make(map[key]*fg.Plan)}
}

// Plan returns the validated plan for t and p.
func (c *Cache) Plan(t Toggles, p fg.Parity) (*fg.Plan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{t, p}
	if plan, ok := c.plans[k]; ok {
		return plan, nil
	}
	plan, err := Build(t).Compile(p)
	if err != nil {
		return nil, fmt.Errorf("schedule: compile: %w", err)
	}
	if err := fg.Validate(plan); err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	c.plans[k] = plan
	return plan, nil
}

// Len returns the number of cached plans.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}
