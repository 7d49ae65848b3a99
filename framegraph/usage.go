// Package framegraph derives the pipeline barriers of a frame from the
// resources each node reads and writes. A Graph is a fixed, ordered list
// of nodes; Compile turns it into a Plan for one ping-pong parity and
// Validate replays a Plan to check layouts, hazards and steady state.
//
// The package does not depend on Vulkan. Layouts, stages and access masks
// are mirrored here and translated by the renderer.
package framegraph

import "fmt"

type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutShaderReadOnly
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

var layoutNames = [...]string{"undefined", "general", "shader-read-only", "color-attachment",
	"depth-attachment", "transfer-src", "transfer-dst", "present"}

func (l Layout) String() string {
	if int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

type Stage uint32

const (
	StageTop Stage = 1 << iota
	StageDrawIndirect
	StageVertex
	StageFragment
	StageEarlyFragmentTests
	StageLateFragmentTests
	StageColorOutput
	StageCompute
	StageTransfer
	StageBottom
)

var stageNames = [...]string{"top", "indirect", "vertex", "fragment", "early-z", "late-z",
	"color", "compute", "transfer", "bottom"}

func (s Stage) String() string {
	return maskString(uint32(s), stageNames[:])
}

type Access uint32

const (
	AccessIndirectRead Access = 1 << iota
	AccessShaderRead
	AccessShaderWrite
	AccessColorRead
	AccessColorWrite
	AccessDepthRead
	AccessDepthWrite
	AccessTransferRead
	AccessTransferWrite
)

const writeAccess = AccessShaderWrite | AccessColorWrite | AccessDepthWrite | AccessTransferWrite

var accessNames = [...]string{"indirect-r", "shader-r", "shader-w", "color-r", "color-w",
	"depth-r", "depth-w", "transfer-r", "transfer-w"}

func (a Access) String() string {
	return maskString(uint32(a), accessNames[:])
}

func maskString(m uint32, names []string) string {
	if m == 0 {
		return "none"
	}
	s := ""
	for i, n := range names {
		if m&(1<<i) != 0 {
			if s != "" {
				s += "|"
			}
			s += n
		}
	}
	return s
}

// Pipe is the kind of work a node records.
type Pipe int

const (
	Compute Pipe = iota
	Graphics
	Transfer
)

func (p Pipe) String() string {
	return [...]string{"compute", "graphics", "transfer"}[p]
}

type Kind int

const (
	Image Kind = iota
	Buffer
)

// Usage is how a node touches a resource.
type Usage int

const (
	Sampled Usage = iota
	StorageRead
	StorageWrite
	StorageReadWrite
	ColorAttachment
	DepthAttachment
	TransferSrc
	TransferDst
	// MipChain reads level 0 and writes the remaining levels by blits. It
	// enters in TransferDst and leaves every level in TransferSrc.
	MipChain
	Indirect
	BufferRead
	BufferWrite
	BufferReadWrite
	BufferTransferDst
)

var usageNames = [...]string{"sampled", "storage-r", "storage-w", "storage-rw", "color",
	"depth", "transfer-src", "transfer-dst", "mip-chain", "indirect", "buffer-r", "buffer-w",
	"buffer-rw", "buffer-transfer-dst"}

func (u Usage) String() string {
	if int(u) < len(usageNames) {
		return usageNames[u]
	}
	return fmt.Sprintf("usage(%d)", int(u))
}

// state is a layout with the stages and accesses that touch it.
type state struct {
	layout Layout
	stage  Stage
	access Access
}

// usageInfo describes the effect of a Usage for a given pipe.
type usageInfo struct {
	kind  Kind
	state state
	exit  Layout
	read  bool
	write bool
}

func shaderStage(p Pipe) (Stage, bool) {
	switch p {
	case Compute:
		return StageCompute, true
	case Graphics:
		return StageFragment, true
	}
	return 0, false
}

func (u Usage) info(p Pipe) (usageInfo, error) {
	bad := func() (usageInfo, error) {
		return usageInfo{}, fmt.Errorf("framegraph: usage %v is not valid in a %v node", u, p)
	}
	img := func(l Layout, s Stage, a Access, r, w bool) (usageInfo, error) {
		return usageInfo{kind: Image, state: state{l, s, a}, exit: l, read: r, write: w}, nil
	}
	buf := func(s Stage, a Access, r, w bool) (usageInfo, error) {
		return usageInfo{kind: Buffer, state: state{LayoutUndefined, s, a}, read: r, write: w}, nil
	}

	switch u {
	case Sampled, StorageRead, StorageWrite, StorageReadWrite, BufferRead, BufferWrite, BufferReadWrite:
		s, ok := shaderStage(p)
		if !ok {
			return bad()
		}
		switch u {
		case Sampled:
			return img(LayoutShaderReadOnly, s, AccessShaderRead, true, false)
		case StorageRead:
			return img(LayoutGeneral, s, AccessShaderRead, true, false)
		case StorageWrite:
			return img(LayoutGeneral, s, AccessShaderWrite, false, true)
		case StorageReadWrite:
			return img(LayoutGeneral, s, AccessShaderRead|AccessShaderWrite, true, true)
		case BufferRead:
			return buf(s, AccessShaderRead, true, false)
		case BufferWrite:
			return buf(s, AccessShaderWrite, false, true)
		default:
			return buf(s, AccessShaderRead|AccessShaderWrite, true, true)
		}
	case ColorAttachment:
		if p != Graphics {
			return bad()
		}
		return img(LayoutColorAttachment, StageColorOutput, AccessColorRead|AccessColorWrite, false, true)
	case DepthAttachment:
		if p != Graphics {
			return bad()
		}
		return img(LayoutDepthAttachment, StageEarlyFragmentTests|StageLateFragmentTests,
			AccessDepthRead|AccessDepthWrite, false, true)
	case TransferSrc:
		if p != Transfer {
			return bad()
		}
		return img(LayoutTransferSrc, StageTransfer, AccessTransferRead, true, false)
	case TransferDst:
		if p != Transfer {
			return bad()
		}
		return img(LayoutTransferDst, StageTransfer, AccessTransferWrite, false, true)
	case MipChain:
		if p != Transfer {
			return bad()
		}
		i, _ := img(LayoutTransferDst, StageTransfer, AccessTransferRead|AccessTransferWrite, true, true)
		i.exit = LayoutTransferSrc
		return i, nil
	case Indirect:
		if p == Transfer {
			return bad()
		}
		return buf(StageDrawIndirect, AccessIndirectRead, true, false)
	case BufferTransferDst:
		if p != Transfer {
			return bad()
		}
		return buf(StageTransfer, AccessTransferWrite, false, true)
	}
	return bad()
}

// Resting states. Images return to shader-read-only at the end of every
// frame. Buffers are assumed to carry unsynchronized writes from the
// previous frame, so their first access in a frame is always guarded.
var (
	imageRest = state{
		layout: LayoutShaderReadOnly,
		stage:  StageCompute | StageFragment,
		access: AccessShaderRead,
	}
	bufferRest = state{
		stage:  StageDrawIndirect | StageFragment | StageCompute | StageTransfer,
		access: AccessShaderWrite | AccessTransferWrite,
	}
	// Stage the acquire semaphore is waited on.
	acquireStage = StageTransfer | StageColorOutput
	presentState = state{layout: LayoutPresent, stage: StageBottom}
)

// AcquireWaitStage is the stage mask the frame submission must wait on
// for the swapchain acquire semaphore.
func AcquireWaitStage() Stage {
	return acquireStage
}
