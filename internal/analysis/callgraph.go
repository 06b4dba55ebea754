package analysis

import "bloom/internal/ir"

// CallSite is one caller→callee edge: the CALL/INVOKE node itself plus
// whether it was resolved as a direct or indirect call (spec.md §4.4).
type CallSite struct {
	Call     *ir.Node
	Caller   *ir.Node
	Callee   *ir.Node // nil for an indirect call site
	Indirect bool
}

// CallGraph is the per-module caller→callee summary spec.md §4.4
// describes: FUNCTION nodes as vertices, call sites as edges, plus the
// entry/leaf/cycle/traversal queries IPO passes need.
type CallGraph struct {
	module *ir.Module

	callers map[*ir.Node][]CallSite // callee -> sites that call it
	callees map[*ir.Node][]CallSite // caller -> sites it makes

	addressTaken map[*ir.Node]bool
}

// Build constructs the call graph for every function in m.
func Build(m *ir.Module) *CallGraph {
	cg := &CallGraph{
		module:       m,
		callers:      make(map[*ir.Node][]CallSite),
		callees:      make(map[*ir.Node][]CallSite),
		addressTaken: make(map[*ir.Node]bool),
	}
	cg.findAddressTakenFunctions()
	cg.findCallSites()
	return cg
}

// findAddressTakenFunctions marks every FUNCTION node that appears as
// the operand of an ADDR_OF or is stored to memory — spec.md §4.4's
// "globally addressable" set that conservative indirect calls are
// assumed able to reach.
func (cg *CallGraph) findAddressTakenFunctions() {
	for _, r := range cg.module.AllRegions() {
		for _, n := range r.Nodes() {
			switch n.Kind() {
			case ir.KindAddrOf:
				if fn := n.Input(0); fn != nil && fn.Kind() == ir.KindFunction {
					cg.addressTaken[fn] = true
				}
			case ir.KindStore, ir.KindPtrStore, ir.KindAtomicStore:
				if v := n.Input(0); v != nil && v.Kind() == ir.KindFunction {
					cg.addressTaken[v] = true
				}
			}
		}
	}
}

func (cg *CallGraph) findCallSites() {
	for _, fn := range cg.module.Functions() {
		body, ok := fn.Body()
		if !ok {
			continue
		}
		cg.walkRegionForCalls(fn, body)
	}
}

func (cg *CallGraph) walkRegionForCalls(caller *ir.Node, r *ir.Region) {
	for _, n := range r.Nodes() {
		if n.Kind() != ir.KindCall && n.Kind() != ir.KindInvoke {
			continue
		}
		target := n.Input(0)
		site := CallSite{Call: n, Caller: caller}
		if target != nil && target.Kind() == ir.KindFunction {
			site.Callee = target
			site.Indirect = false
			cg.callees[caller] = append(cg.callees[caller], site)
			cg.callers[target] = append(cg.callers[target], site)
		} else {
			site.Indirect = true
			cg.callees[caller] = append(cg.callees[caller], site)
			for callee := range cg.addressTaken {
				cg.callers[callee] = append(cg.callers[callee], site)
			}
		}
	}
	for _, c := range r.Children() {
		cg.walkRegionForCalls(caller, c)
	}
}

// Callers returns every call site that may call fn (direct sites plus
// every indirect site, conservatively, when fn is address-taken).
func (cg *CallGraph) Callers(fn *ir.Node) []CallSite { return cg.callers[fn] }

// Callees returns every call site fn itself makes.
func (cg *CallGraph) Callees(fn *ir.Node) []CallSite { return cg.callees[fn] }

// IsEntryPoint reports whether fn has no known callers.
func (cg *CallGraph) IsEntryPoint(fn *ir.Node) bool { return len(cg.callers[fn]) == 0 }

// IsLeaf reports whether fn makes no calls.
func (cg *CallGraph) IsLeaf(fn *ir.Node) bool { return len(cg.callees[fn]) == 0 }

// IsAddressTaken reports whether fn's value is ever captured via
// ADDR_OF or stored to memory, making it a candidate target for any
// indirect call site.
func (cg *CallGraph) IsAddressTaken(fn *ir.Node) bool { return cg.addressTaken[fn] }

// directCallees returns the distinct set of functions fn calls
// directly (ignoring indirect sites, which a cycle search can't follow
// precisely anyway).
func (cg *CallGraph) directCallees(fn *ir.Node) []*ir.Node {
	var out []*ir.Node
	seen := make(map[*ir.Node]bool)
	for _, site := range cg.callees[fn] {
		if site.Callee != nil && !seen[site.Callee] {
			seen[site.Callee] = true
			out = append(out, site.Callee)
		}
	}
	return out
}

// HasCycle reports whether fn participates in a direct-call cycle,
// found via DFS with an on-stack set (spec.md §4.4).
func (cg *CallGraph) HasCycle(fn *ir.Node) bool {
	visited := make(map[*ir.Node]bool)
	onStack := make(map[*ir.Node]bool)
	var dfs func(n *ir.Node) bool
	dfs = func(n *ir.Node) bool {
		visited[n] = true
		onStack[n] = true
		for _, callee := range cg.directCallees(n) {
			if onStack[callee] {
				return true
			}
			if !visited[callee] && dfs(callee) {
				return true
			}
		}
		onStack[n] = false
		return false
	}
	return dfs(fn)
}

// PostOrder returns every function reachable from the module's
// function list in post-order (callees before callers along direct
// edges), suitable for bottom-up IPO. Functions are visited in
// declaration order as DFS roots so the traversal is deterministic.
func (cg *CallGraph) PostOrder() []*ir.Node {
	visited := make(map[*ir.Node]bool)
	var order []*ir.Node
	var dfs func(n *ir.Node)
	dfs = func(n *ir.Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, callee := range cg.directCallees(n) {
			dfs(callee)
		}
		order = append(order, n)
	}
	for _, fn := range cg.module.Functions() {
		dfs(fn)
	}
	return order
}

// ReversePostOrder returns the reverse of PostOrder, suitable for
// top-down IPO (e.g. IPSCCP propagating from entry points inward).
func (cg *CallGraph) ReversePostOrder() []*ir.Node {
	post := cg.PostOrder()
	out := make([]*ir.Node, len(post))
	for i, fn := range post {
		out[len(post)-1-i] = fn
	}
	return out
}
