package framegraph

import (
	"errors"
	"fmt"
)

var (
	ErrHazard        = errors.New("framegraph: unsynchronized access")
	ErrLayout        = errors.New("framegraph: layout mismatch")
	ErrUninitialized = errors.New("framegraph: read of undefined contents")
	ErrNotSteady     = errors.New("framegraph: resource does not return to its resting state")
)

// Slot selects a ping-pong copy relative to the frame parity.
type Slot int

const (
	Single Slot = iota
	// Current is the copy written this frame, index p.
	Current
	// Previous is the copy written last frame, index !p.
	Previous
)

// Ref names a resource, or one copy of a ping-pong resource.
type Ref struct {
	Name string
	Slot Slot
}

func R(name string) Ref    { return Ref{Name: name} }
func Cur(name string) Ref  { return Ref{Name: name, Slot: Current} }
func Prev(name string) Ref { return Ref{Name: name, Slot: Previous} }

// Use is one access of a node. Discard lets the first barrier drop the
// previous contents.
type Use struct {
	Ref     Ref
	Usage   Usage
	Discard bool
}

func On(ref Ref, u Usage) Use {
	return Use{Ref: ref, Usage: u}
}

func Overwrite(ref Ref, u Usage) Use {
	return Use{Ref: ref, Usage: u, Discard: true}
}

// Node is a unit of recorded work, typically one dispatch or render pass.
type Node struct {
	Name string
	Pipe Pipe
	Uses []Use
}

type resource struct {
	name     string
	kind     Kind
	pingPong bool
	acquired bool
}

// Graph is the ordered description of one frame.
type Graph struct {
	resources map[string]*resource
	order     []string
	nodes     []Node
	names     map[string]bool
	err       error
}

func New() *Graph {
	return &Graph{
		resources: make(map[string]*resource),
		names:     make(map[string]bool),
	}
}

func (g *Graph) fail(format string, args ...interface{}) {
	if g.err == nil {
		g.err = fmt.Errorf("framegraph: "+format, args...)
	}
}

func (g *Graph) add(r *resource) *Graph {
	if _, ok := g.resources[r.name]; ok {
		g.fail("resource %q declared twice", r.name)
		return g
	}
	g.resources[r.name] = r
	g.order = append(g.order, r.name)
	return g
}

// Image declares an image resting in shader-read-only between frames.
func (g *Graph) Image(name string) *Graph {
	return g.add(&resource{name: name, kind: Image})
}

// PingPongImage declares a pair of images, name/0 and name/1.
func (g *Graph) PingPongImage(name string) *Graph {
	return g.add(&resource{name: name, kind: Image, pingPong: true})
}

func (g *Graph) Buffer(name string) *Graph {
	return g.add(&resource{name: name, kind: Buffer})
}

func (g *Graph) PingPongBuffer(name string) *Graph {
	return g.add(&resource{name: name, kind: Buffer, pingPong: true})
}

// Swapchain declares the acquired presentation image. It starts every
// frame undefined and ends it in the present layout.
func (g *Graph) Swapchain(name string) *Graph {
	return g.add(&resource{name: name, kind: Image, acquired: true})
}

// Node appends a node. Nodes run in the order they are added.
func (g *Graph) Node(name string, p Pipe, uses ...Use) *Graph {
	if g.names[name] {
		g.fail("node %q added twice", name)
		return g
	}
	g.names[name] = true
	g.nodes = append(g.nodes, Node{Name: name, Pipe: p, Uses: uses})
	return g
}

// Nodes returns the node names in execution order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Name
	}
	return out
}

// SlotName returns the name of ping-pong copy k.
func SlotName(name string, k int) string {
	return fmt.Sprintf("%s/%d", name, k)
}

// Resources returns every concrete resource name, ping-pong copies
// expanded.
func (g *Graph) Resources() []string {
	var out []string
	for _, n := range g.order {
		if g.resources[n].pingPong {
			out = append(out, SlotName(n, 0), SlotName(n, 1))
		} else {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) resolve(ref Ref, p Parity) (string, *resource, error) {
	r, ok := g.resources[ref.Name]
	if !ok {
		return "", nil, fmt.Errorf("framegraph: unknown resource %q", ref.Name)
	}
	switch {
	case r.pingPong && ref.Slot == Single:
		return "", nil, fmt.Errorf("framegraph: ping-pong resource %q used without a slot", ref.Name)
	case !r.pingPong && ref.Slot != Single:
		return "", nil, fmt.Errorf("framegraph: resource %q is not ping-pong", ref.Name)
	case ref.Slot == Current:
		return SlotName(ref.Name, p.Write()), r, nil
	case ref.Slot == Previous:
		return SlotName(ref.Name, p.Read()), r, nil
	}
	return ref.Name, r, nil
}

// Barrier transitions one resource. Images carry layouts; buffer barriers
// leave both layouts undefined.
type Barrier struct {
	Resource  string
	Kind      Kind
	OldLayout Layout
	NewLayout Layout
	SrcStage  Stage
	SrcAccess Access
	DstStage  Stage
	DstAccess Access
}

func (b Barrier) String() string {
	if b.Kind == Buffer {
		return fmt.Sprintf("%s: %v/%v -> %v/%v", b.Resource, b.SrcStage, b.SrcAccess, b.DstStage, b.DstAccess)
	}
	return fmt.Sprintf("%s: %v -> %v, %v/%v -> %v/%v", b.Resource, b.OldLayout, b.NewLayout,
		b.SrcStage, b.SrcAccess, b.DstStage, b.DstAccess)
}

// Touch is a resolved use of a concrete resource.
type Touch struct {
	Resource string
	Kind     Kind
	Usage    Usage
	Discard  bool
}

// Step is a node with the barriers recorded before it.
type Step struct {
	Node     string
	Pipe     Pipe
	Touches  []Touch
	Barriers []Barrier
}

// Plan is a compiled graph for one parity.
type Plan struct {
	Parity   Parity
	Steps    []Step
	Epilogue []Barrier

	resources map[string]*resource
	concrete  []string
	index     map[string]int
}

// Before returns the barriers to record before node. Unknown nodes have
// none.
func (p *Plan) Before(node string) []Barrier {
	if i, ok := p.index[node]; ok {
		return p.Steps[i].Barriers
	}
	return nil
}

// Has reports whether node is part of the plan.
func (p *Plan) Has(node string) bool {
	_, ok := p.index[node]
	return ok
}

// Barriers counts every barrier in the plan.
func (p *Plan) Barriers() int {
	n := len(p.Epilogue)
	for _, s := range p.Steps {
		n += len(s.Barriers)
	}
	return n
}

// tracked is the compile-time view of one concrete resource.
type tracked struct {
	kind     Kind
	acquired bool
	cur      state
	// Scope made visible by the last barrier.
	vis     state
	written bool
}

func covers(vis state, s Stage, a Access) bool {
	return vis.stage&s == s && vis.access&a == a
}

func initial(r *resource) tracked {
	switch {
	case r.kind == Buffer:
		return tracked{kind: Buffer, cur: bufferRest, written: true}
	case r.acquired:
		return tracked{kind: Image, acquired: true, cur: state{layout: LayoutUndefined, stage: acquireStage}}
	}
	return tracked{kind: Image, cur: imageRest, vis: imageRest}
}

// Compile resolves ping-pong slots for parity p and plans the barriers.
func (g *Graph) Compile(p Parity) (*Plan, error) {
	if g.err != nil {
		return nil, g.err
	}
	plan := &Plan{
		Parity:    p,
		resources: make(map[string]*resource),
		index:     make(map[string]int),
	}

	states := make(map[string]*tracked)
	for _, n := range g.order {
		r := g.resources[n]
		names := []string{n}
		if r.pingPong {
			names = []string{SlotName(n, 0), SlotName(n, 1)}
		}
		for _, c := range names {
			t := initial(r)
			states[c] = &t
			plan.resources[c] = r
			plan.concrete = append(plan.concrete, c)
		}
	}

	for _, node := range g.nodes {
		step := Step{Node: node.Name, Pipe: node.Pipe}
		seen := make(map[string]bool)
		for _, use := range node.Uses {
			name, r, err := g.resolve(use.Ref, p)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", node.Name, err)
			}
			if seen[name] {
				return nil, fmt.Errorf("framegraph: node %q uses %q twice", node.Name, name)
			}
			seen[name] = true

			info, err := use.Usage.info(node.Pipe)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", node.Name, err)
			}
			if info.kind != r.kind {
				return nil, fmt.Errorf("framegraph: node %q: usage %v does not apply to %q", node.Name, use.Usage, name)
			}
			if use.Discard && info.read {
				return nil, fmt.Errorf("framegraph: node %q discards %q but reads it", node.Name, name)
			}

			t := states[name]
			want := info.state
			need := t.written || info.write ||
				!covers(t.vis, want.stage, want.access) ||
				(t.kind == Image && t.cur.layout != want.layout)
			if need {
				b := Barrier{
					Resource:  name,
					Kind:      t.kind,
					OldLayout: t.cur.layout,
					NewLayout: want.layout,
					SrcStage:  t.cur.stage,
					SrcAccess: t.cur.access & writeAccess,
					DstStage:  want.stage,
					DstAccess: want.access,
				}
				if use.Discard {
					b.OldLayout = LayoutUndefined
				}
				if t.kind == Buffer {
					b.OldLayout, b.NewLayout = LayoutUndefined, LayoutUndefined
				}
				step.Barriers = append(step.Barriers, b)
				t.cur = want
				t.vis = want
				t.written = false
			} else {
				t.cur.stage |= want.stage
				t.cur.access |= want.access
			}
			if info.write {
				t.written = true
			}
			t.cur.layout = info.exit
			step.Touches = append(step.Touches, Touch{Resource: name, Kind: r.kind, Usage: use.Usage, Discard: use.Discard})
		}
		plan.index[node.Name] = len(plan.Steps)
		plan.Steps = append(plan.Steps, step)
	}

	for _, name := range plan.concrete {
		t := states[name]
		if t.kind == Buffer {
			continue
		}
		rest := imageRest
		if t.acquired {
			rest = presentState
		}
		if t.cur.layout == rest.layout && !t.written && covers(t.vis, rest.stage, rest.access) {
			continue
		}
		plan.Epilogue = append(plan.Epilogue, Barrier{
			Resource:  name,
			Kind:      Image,
			OldLayout: t.cur.layout,
			NewLayout: rest.layout,
			SrcStage:  t.cur.stage,
			SrcAccess: t.cur.access & writeAccess,
			DstStage:  rest.stage,
			DstAccess: rest.access,
		})
	}
	return plan, nil
}
