package passmgr

import (
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

// PassManager drives an ordered list of intra-module Passes. For each
// pass it first satisfies RequiredAnalyses() (running and caching any
// that are missing), then runs the transform, then invalidates the
// context by the pass's name if it reported a change (spec.md §4.5).
//
// Passes themselves never log; the manager logs scheduling, cache
// hits/misses, and invalidation decisions on their behalf through a
// commonlog.Logger scoped to "bloom.passmanager", so pass authors stay
// free of logging concerns.
type PassManager struct {
	passes []Pass
	logger commonlog.Logger
}

// ManagerOption configures a PassManager at construction time.
type ManagerOption func(*PassManager)

// WithLogger overrides the default "bloom.passmanager"-scoped logger.
func WithLogger(logger commonlog.Logger) ManagerOption {
	return func(pm *PassManager) { pm.logger = logger }
}

// WithPasses appends passes to the manager's pass list, in order.
func WithPasses(passes ...Pass) ManagerOption {
	return func(pm *PassManager) { pm.passes = append(pm.passes, passes...) }
}

// NewPassManager constructs a PassManager with no passes unless
// WithPasses is supplied.
func NewPassManager(opts ...ManagerOption) *PassManager {
	pm := &PassManager{logger: commonlog.GetLogger("bloom.passmanager")}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// AddPass appends a pass to the end of the manager's pass list.
func (pm *PassManager) AddPass(p Pass) { pm.passes = append(pm.passes, p) }

// Passes returns the manager's current pass list, in run order.
func (pm *PassManager) Passes() []Pass { return pm.passes }

// satisfy runs and caches every analysis p requires that isn't
// already cached under its name.
func (pm *PassManager) satisfy(ctx *PassContext, p Pass) error {
	for _, a := range p.RequiredAnalyses() {
		if _, ok := ctx.Keyed(a.Name()); ok {
			pm.logger.Debugf("pass %q: analysis %q cache hit", p.Name(), a.Name())
			continue
		}
		pm.logger.Infof("pass %q: analysis %q missing, scheduling it", p.Name(), a.Name())
		result, err := a.Run(ctx)
		if err != nil {
			return errors.Wrapf(err, "analysis %q required by pass %q", a.Name(), p.Name())
		}
		ctx.SetKeyed(a.Name(), result)
		ctx.Incr("analyses_run", 1)
	}
	return nil
}

// RunOnce runs every pass once, in order, returning true if any pass
// reported a change. A pass that changes the module invalidates ctx
// under its own name immediately, so later passes in the same pass
// never observe stale cached analyses.
func (pm *PassManager) RunOnce(ctx *PassContext) bool {
	changed := false
	for _, p := range pm.passes {
		if err := pm.satisfy(ctx, p); err != nil {
			pm.logger.Errorf("pass %q: %s", p.Name(), err)
			continue
		}
		pm.logger.Debugf("running pass %q", p.Name())
		if p.Run(ctx) {
			changed = true
			ctx.Incr("passes_changed", 1)
			ctx.InvalidateBy(p.Name())
			pm.logger.Infof("pass %q made changes; invalidated dependent analyses", p.Name())
		} else {
			pm.logger.Debugf("pass %q: no changes", p.Name())
		}
	}
	return changed
}

// RunToFixedPoint runs RunOnce repeatedly until an iteration makes no
// change, or maxIterations is reached — the bounded worklist guard
// spec.md §9 calls for around every iterative fixed-point loop. It
// returns the number of iterations actually run.
func (pm *PassManager) RunToFixedPoint(ctx *PassContext, maxIterations int) int {
	iterations := 0
	for iterations < maxIterations {
		iterations++
		if !pm.RunOnce(ctx) {
			pm.logger.Debugf("fixed point reached after %d iteration(s)", iterations)
			return iterations
		}
	}
	pm.logger.Warningf("stopped after hitting the %d-iteration budget without reaching a fixed point", maxIterations)
	return iterations
}
