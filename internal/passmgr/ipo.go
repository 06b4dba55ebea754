package passmgr

import "github.com/tliron/commonlog"

// IPOPass is a single interprocedural transform, such as IPSCCP or IPO
// dead-function elimination (spec.md §4.12, §4.15). It operates across every module in an
// IPOPassContext rather than a single module's PassContext.
type IPOPass interface {
	Name() string
	Run(ctx *IPOPassContext) bool
}

// IPOPassContext is the interprocedural analogue of PassContext: one
// PassContext per module (for intra-module analyses an IPO pass still
// needs, e.g. a module's call graph) plus a
// module-list-wide stats map and logger.
type IPOPassContext struct {
	modules  []any // typically []*ir.Module
	contexts map[any]*PassContext
	stats    map[string]int64
	logger   commonlog.Logger
}

// NewIPOPassContext builds one PassContext per module in modules.
func NewIPOPassContext(modules []any, logger commonlog.Logger) *IPOPassContext {
	if logger == nil {
		logger = commonlog.GetLogger("bloom.ipo")
	}
	contexts := make(map[any]*PassContext, len(modules))
	for _, m := range modules {
		contexts[m] = NewPassContext(m, logger)
	}
	return &IPOPassContext{
		modules:  modules,
		contexts: contexts,
		stats:    make(map[string]int64),
		logger:   logger,
	}
}

// Modules returns the module list this context was built with.
func (c *IPOPassContext) Modules() []any { return c.modules }

// For returns the per-module PassContext for m, so an IPO pass can
// delegate to intra-module analyses (e.g. the callee's LAA) while
// reasoning across module boundaries.
func (c *IPOPassContext) For(m any) *PassContext { return c.contexts[m] }

// Incr adds delta to the named module-list-wide counter.
func (c *IPOPassContext) Incr(counter string, delta int64) { c.stats[counter] += delta }

// Snapshot returns a copy of the IPO-level stats map.
func (c *IPOPassContext) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// Logger returns the "bloom.ipo"-scoped logger.
func (c *IPOPassContext) Logger() commonlog.Logger { return c.logger }

// IPOPassManager drives interprocedural passes to a fixed point, then
// runs a final reachability/DCE sweep — spec.md §4.5's "the IPO
// variant operates on a vector of modules and the same mechanism,
// plus a final reachability/DCE sweep is available."
type IPOPassManager struct {
	passes      []IPOPass
	finalPasses []IPOPass
	logger      commonlog.Logger
}

// NewIPOPassManager constructs an empty IPOPassManager.
func NewIPOPassManager(logger commonlog.Logger) *IPOPassManager {
	if logger == nil {
		logger = commonlog.GetLogger("bloom.ipo")
	}
	return &IPOPassManager{logger: logger}
}

// AddPass appends an interprocedural pass run on every fixed-point
// iteration.
func (pm *IPOPassManager) AddPass(p IPOPass) { pm.passes = append(pm.passes, p) }

// AddFinalPass registers a pass run exactly once, after the
// fixed-point loop converges — the slot IPODeadFunctionElimination is
// meant to occupy.
func (pm *IPOPassManager) AddFinalPass(p IPOPass) { pm.finalPasses = append(pm.finalPasses, p) }

// RunOnce runs every non-final pass once, in order.
func (pm *IPOPassManager) RunOnce(ctx *IPOPassContext) bool {
	changed := false
	for _, p := range pm.passes {
		pm.logger.Debugf("running IPO pass %q", p.Name())
		if p.Run(ctx) {
			changed = true
			ctx.Incr("ipo_passes_changed", 1)
			pm.logger.Infof("IPO pass %q made changes", p.Name())
		}
	}
	return changed
}

// RunToFixedPoint runs the registered passes to a fixed point (bounded
// by maxIterations), then runs every final pass exactly once.
func (pm *IPOPassManager) RunToFixedPoint(ctx *IPOPassContext, maxIterations int) int {
	iterations := 0
	for iterations < maxIterations {
		iterations++
		if !pm.RunOnce(ctx) {
			break
		}
	}
	if iterations >= maxIterations {
		pm.logger.Warningf("IPO loop stopped after hitting the %d-iteration budget", maxIterations)
	}
	for _, p := range pm.finalPasses {
		pm.logger.Infof("running final IPO sweep %q", p.Name())
		p.Run(ctx)
	}
	return iterations
}
