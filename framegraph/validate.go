package framegraph

import "fmt"

// sim is the validator's view of one resource. It is kept separately from
// the compiler's bookkeeping so a plan can be checked on its own terms.
type sim struct {
	kind    Kind
	layout  Layout
	defined bool
	// Unsynchronized writes and reads since the last barrier.
	writeStage  Stage
	writeAccess Access
	readStage   Stage
	// Destination scope of the last barrier.
	vis state
}

func (s *sim) barrier(b Barrier) error {
	if s.kind == Image {
		if b.OldLayout != LayoutUndefined && b.OldLayout != s.layout {
			return fmt.Errorf("%w: barrier on %s expects %v, resource is %v", ErrLayout, b.Resource, b.OldLayout, s.layout)
		}
		if b.OldLayout == LayoutUndefined {
			s.defined = false
		}
		s.layout = b.NewLayout
	}
	if b.SrcStage&(s.writeStage|s.readStage) != s.writeStage|s.readStage {
		return fmt.Errorf("%w: barrier on %s waits on %v, prior work ran in %v", ErrHazard, b.Resource, b.SrcStage, s.writeStage|s.readStage)
	}
	if b.SrcAccess&s.writeAccess != s.writeAccess {
		return fmt.Errorf("%w: barrier on %s flushes %v, prior writes were %v", ErrHazard, b.Resource, b.SrcAccess, s.writeAccess)
	}
	s.writeStage, s.writeAccess, s.readStage = 0, 0, 0
	s.vis = state{stage: b.DstStage, access: b.DstAccess}
	return nil
}

func (s *sim) use(node string, a Touch, info usageInfo) error {
	if s.kind == Image && s.layout != info.state.layout {
		return fmt.Errorf("%w: %s uses %s as %v in %v", ErrLayout, node, a.Resource, info.state.layout, s.layout)
	}
	if info.read && !s.defined {
		return fmt.Errorf("%w: %s reads %s", ErrUninitialized, node, a.Resource)
	}
	if s.writeStage != 0 {
		return fmt.Errorf("%w: %s accesses %s after an unsynchronized write", ErrHazard, node, a.Resource)
	}
	if info.write && s.readStage != 0 {
		return fmt.Errorf("%w: %s writes %s after an unsynchronized read", ErrHazard, node, a.Resource)
	}
	if !covers(s.vis, info.state.stage, info.state.access) {
		return fmt.Errorf("%w: %s accesses %s outside the visible scope %v/%v", ErrHazard, node, a.Resource, s.vis.stage, s.vis.access)
	}
	if info.write {
		s.writeStage |= info.state.stage
		s.writeAccess |= info.state.access & writeAccess
		s.defined = true
	}
	if info.read {
		s.readStage |= info.state.stage
	}
	if s.kind == Image {
		s.layout = info.exit
	}
	return nil
}

// Validate replays plan and reports the first layout mismatch, hazard,
// read of undefined contents or resource left outside its resting state.
func Validate(plan *Plan) error {
	sims := make(map[string]*sim, len(plan.concrete))
	for _, name := range plan.concrete {
		r := plan.resources[name]
		s := &sim{kind: r.kind}
		switch {
		case r.kind == Buffer:
			s.defined = true
			s.writeStage, s.writeAccess = bufferRest.stage, bufferRest.access
		case r.acquired:
			s.layout = LayoutUndefined
			s.readStage = acquireStage
		default:
			s.layout = imageRest.layout
			s.defined = true
			s.readStage = imageRest.stage
			s.vis = imageRest
		}
		sims[name] = s
	}

	apply := func(b Barrier) error {
		s, ok := sims[b.Resource]
		if !ok {
			return fmt.Errorf("framegraph: barrier on unknown resource %q", b.Resource)
		}
		return s.barrier(b)
	}

	for _, step := range plan.Steps {
		for _, b := range step.Barriers {
			if err := apply(b); err != nil {
				return fmt.Errorf("before %s: %w", step.Node, err)
			}
		}
		for _, a := range step.Touches {
			info, err := a.Usage.info(step.Pipe)
			if err != nil {
				return err
			}
			s, ok := sims[a.Resource]
			if !ok {
				return fmt.Errorf("framegraph: %s uses unknown resource %q", step.Node, a.Resource)
			}
			if err := s.use(step.Node, a, info); err != nil {
				return err
			}
		}
	}
	for _, b := range plan.Epilogue {
		if err := apply(b); err != nil {
			return fmt.Errorf("epilogue: %w", err)
		}
	}

	for _, name := range plan.concrete {
		s := sims[name]
		r := plan.resources[name]
		switch {
		case r.kind == Buffer:
			if s.writeStage&^bufferRest.stage != 0 || s.readStage&^bufferRest.stage != 0 {
				return fmt.Errorf("%w: %s", ErrNotSteady, name)
			}
		case r.acquired:
			if s.layout != LayoutPresent || s.writeStage != 0 {
				return fmt.Errorf("%w: %s ends in %v", ErrNotSteady, name, s.layout)
			}
			if !s.defined {
				return fmt.Errorf("%w: %s presented without being written", ErrUninitialized, name)
			}
		default:
			if s.layout != imageRest.layout || s.writeStage != 0 || !covers(s.vis, imageRest.stage, imageRest.access) {
				return fmt.Errorf("%w: %s ends in %v", ErrNotSteady, name, s.layout)
			}
			if s.readStage&^imageRest.stage != 0 {
				return fmt.Errorf("%w: %s has pending reads in %v", ErrNotSteady, name, s.readStage)
			}
		}
	}
	return nil
}
