package transform

import (
	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// isDCERoot reports whether n must be kept regardless of whether
// anything uses its result — an effectful terminator or memory op, a
// function/entry/exit node, or anything explicitly flagged (spec.md
// §4.12).
func isDCERoot(n *ir.Node) bool {
	switch n.Kind() {
	case ir.KindRet, ir.KindStore, ir.KindPtrStore, ir.KindAtomicStore,
		ir.KindFree, ir.KindBranch, ir.KindJump, ir.KindInvoke, ir.KindCall,
		ir.KindFunction, ir.KindExit, ir.KindEntry, ir.KindAtomicCas:
		return true
	}
	if n.Properties().Has(ir.PropNoOptimize) ||
		n.Properties().Has(ir.PropExport) ||
		n.Properties().Has(ir.PropDriver) ||
		n.Properties().Has(ir.PropExtern) ||
		n.Properties().Has(ir.PropStatic) {
		return true
	}
	return false
}

// DCE removes nodes unreachable by reverse traversal (along input
// edges) from the root set (spec.md §4.12). It runs per region, and a
// node with a user in another region counts as a root there, so a
// region's DCE never drops a value that a node elsewhere still reads.
type DCE struct{}

func (DCE) Name() string                        { return "dce" }
func (DCE) RequiredAnalyses() []passmgr.Analysis { return nil }

func (DCE) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	changed := false
	for _, r := range m.AllRegions() {
		if dceRegion(r) {
			changed = true
		}
	}
	return changed
}

func dceRegion(r *ir.Region) bool {
	live := make(map[*ir.Node]bool)
	var worklist []*ir.Node
	for _, n := range r.Nodes() {
		root := isDCERoot(n)
		for _, u := range n.Users() {
			if u.Region() != r {
				root = true
			}
		}
		if root {
			live[n] = true
			worklist = append(worklist, n)
		}
	}
	for len(worklist) > 0 {
		n := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, in := range n.Inputs() {
			if in == nil || in.Region() != r || live[in] {
				continue
			}
			live[in] = true
			worklist = append(worklist, in)
		}
	}

	changed := false
	for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
		if live[n] || n.IsLocked() {
			continue
		}
		n.Detach()
		r.Remove(n)
		changed = true
	}
	return changed
}

// IPODeadFunctionElimination removes functions unreachable, along call
// graph edges, from the set of DRIVER/EXPORT entry points (spec.md
// §4.12, SPEC_FULL.md §C.2). It is registered as an IPOPassManager
// final pass: it runs once, after the intra- and inter-procedural
// fixed point has already converged, since deleting a function changes
// the call graph's shape outright rather than something worth
// iterating on.
type IPODeadFunctionElimination struct{}

func (IPODeadFunctionElimination) Name() string { return "ipo-dce" }

func (IPODeadFunctionElimination) Run(ctx *passmgr.IPOPassContext) bool {
	changed := false
	for _, mod := range ctx.Modules() {
		m := mod.(*ir.Module)
		pctx := ctx.For(mod)
		cg := RequireCallGraph(pctx)
		reachable := reachableFunctions(m, cg)
		for _, fn := range append([]*ir.Node(nil), m.Functions()...) {
			if reachable[fn] {
				continue
			}
			// fn's body region is independently rooted (Module.walkRegions
			// walks it via fn.Body(), not via the region tree), so detaching
			// fn from the module's function list is enough to drop it.
			fn.Detach()
			m.Root().Remove(fn)
			m.RemoveFunction(fn)
			changed = true
		}
	}
	return changed
}

func reachableFunctions(m *ir.Module, cg *analysis.CallGraph) map[*ir.Node]bool {
	reachable := make(map[*ir.Node]bool)
	var worklist []*ir.Node
	for _, fn := range m.Functions() {
		if fn.Properties().Has(ir.PropDriver) || fn.Properties().Has(ir.PropExport) {
			reachable[fn] = true
			worklist = append(worklist, fn)
		}
	}
	for len(worklist) > 0 {
		fn := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		hasIndirectCall := false
		for _, site := range cg.Callees(fn) {
			if site.Indirect {
				hasIndirectCall = true
				continue
			}
			if site.Callee == nil || reachable[site.Callee] {
				continue
			}
			reachable[site.Callee] = true
			worklist = append(worklist, site.Callee)
		}
		if !hasIndirectCall {
			continue
		}
		// An indirect call site conservatively reaches every
		// address-taken function, matching the call graph's own
		// construction-time conservatism (spec.md §4.4).
		for _, candidate := range m.Functions() {
			if cg.IsAddressTaken(candidate) && !reachable[candidate] {
				reachable[candidate] = true
				worklist = append(worklist, candidate)
			}
		}
	}
	return reachable
}
