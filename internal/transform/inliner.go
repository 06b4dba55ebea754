package transform

import (
	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// Inliner substitutes a direct CALL with a clone of the callee's body,
// splicing arguments in for parameters (spec.md §4.14). INVOKE call
// sites are never inlined — exception-edge bookkeeping is left to the
// callee as-is.
//
// ScoreThreshold and MaxInlineSize are the two knobs spec.md leaves as
// named but unvalued ("max_inline_size"); this implementation picks 3
// and 30 respectively as defaults — a judgment call recorded, not a
// spec-given constant.
type Inliner struct {
	ScoreThreshold       int
	MaxInlineSize        int
	EnableSpecialization bool
}

func (Inliner) Name() string { return "inline" }

func (Inliner) RequiredAnalyses() []passmgr.Analysis {
	return []passmgr.Analysis{CallGraphAnalysis{}}
}

func (s Inliner) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	cg := RequireCallGraph(ctx)

	threshold := s.ScoreThreshold
	if threshold == 0 {
		threshold = 3
	}
	maxSize := s.MaxInlineSize
	if maxSize == 0 {
		maxSize = 30
	}

	changed := false
	for _, caller := range append([]*ir.Node(nil), m.Functions()...) {
		for _, site := range append([]analysis.CallSite(nil), cg.Callees(caller)...) {
			if site.Indirect || site.Callee == nil || site.Callee == caller {
				continue
			}
			call := site.Call
			if call.Kind() != ir.KindCall || call.Region() == nil {
				continue
			}

			callee := site.Callee
			if s.EnableSpecialization && hasConstantArg(call) {
				if clone, newCall := specializeCallSiteForInlining(m, call); clone != nil {
					callee, call = clone, newCall
				}
			}

			if inlineScore(call, callee) < threshold {
				continue
			}
			body, ok := callee.Body()
			if !ok || len(body.Children()) > 0 {
				// spec.md §9(b): functions with internal child regions are
				// silently refused, never deep-cloned.
				continue
			}
			if bodySize(body) > maxSize {
				continue
			}
			if inlineCallSite(m, call, callee) {
				changed = true
			}
		}
	}
	return changed
}

func hasConstantArg(call *ir.Node) bool {
	for _, a := range callArgs(call) {
		if a != nil && a.Kind() == ir.KindLit {
			return true
		}
	}
	return false
}

// specializeCallSiteForInlining runs a one-off specialization of call's
// callee against call's own literal arguments, rewrites call to target
// the clone, and returns (clone, rewrittenCall). It returns (nil, nil)
// if nothing about the call site is specializable.
func specializeCallSiteForInlining(m *ir.Module, call *ir.Node) (*ir.Node, *ir.Node) {
	callee := call.Input(0)
	body, ok := callee.Body()
	if !ok {
		return nil, nil
	}
	args := callArgs(call)
	var indices []int
	var values []*ir.Node
	for i, a := range args {
		if a != nil && a.Kind() == ir.KindLit {
			indices = append(indices, i)
			values = append(values, a)
		}
	}
	if len(indices) == 0 {
		return nil, nil
	}
	clone := buildSpecializedClone(m, callee, body, indices, values, specializedCloneName(specCacheKey(callee, indices, values)))
	if clone == nil {
		return nil, nil
	}
	newCall := rewriteSpecializedCallSite(m, call, clone, indices)
	return clone, newCall
}

func bodySize(body *ir.Region) int {
	n := len(body.Nodes()) - 1 // exclude ENTRY
	if n < 0 {
		n = 0
	}
	return n
}

// inlineScore implements spec.md §4.14's scoring: +2 base, +5 if any
// argument is literal, +3 small (<=5 nodes), -2 large (>10). The
// cross-module bonus spec.md names has no representation in this
// module model (a CallGraph is built per-module, and a CALL's callee
// is always a FUNCTION node local to the same module it was built
// from), so it is never awarded here.
func inlineScore(call, callee *ir.Node) int {
	score := 2
	if hasConstantArg(call) {
		score += 5
	}
	if body, ok := callee.Body(); ok {
		size := bodySize(body)
		if size <= 5 {
			score += 3
		} else if size > 10 {
			score -= 2
		}
	}
	return score
}

// inlineCallSite clones callee's flat body into the caller's region at
// call's position and rewires everything, per spec.md §4.14's
// five-step procedure.
func inlineCallSite(m *ir.Module, call, callee *ir.Node) bool {
	body, ok := callee.Body()
	if !ok || len(body.Children()) > 0 {
		return false
	}
	ret := body.Terminator()
	if ret == nil || ret.Kind() != ir.KindRet {
		return false
	}

	ctx := m.Context()
	callerRegion := call.Region()
	if callerRegion == nil {
		return false
	}

	mapping := make(map[*ir.Node]*ir.Node)
	args := callArgs(call)
	params := orderedParams(body)
	if len(params) != len(args) {
		return false
	}
	for i, p := range params {
		mapping[p] = args[i]
	}

	// Clone every non-entry, non-param, non-ret node. Literals are
	// re-looked-up rather than cloned so the inlined body shares the
	// module's content-addressed constants.
	var toTransplant []*ir.Node
	for _, n := range body.Nodes()[1:] {
		if n == ret || n.Kind() == ir.KindParam {
			continue
		}
		if n.Kind() == ir.KindLit {
			if data, ok := n.Data(); ok {
				b := ir.NewBuilder(ctx)
				b.SetModule(m)
				b.SetInsertionPoint(callerRegion)
				lit := buildLiteral(b, data)
				if lit != nil {
					callerRegion.Remove(lit) // re-insert at the right spot below
					mapping[n] = lit
					toTransplant = append(toTransplant, lit)
					continue
				}
			}
		}
		clone := ctx.NewNode(n.Kind())
		clone.SetType(n.Type())
		clone.SetProperties(n.Properties())
		if data, ok := n.Data(); ok {
			clone.SetData(data)
		}
		if name, ok := n.Name(ctx); ok {
			clone.SetName(ctx, name)
		}
		mapping[n] = clone
		toTransplant = append(toTransplant, clone)
	}

	for _, n := range body.Nodes()[1:] {
		if n == ret || n.Kind() == ir.KindParam {
			continue
		}
		clone := mapping[n]
		for _, in := range n.Inputs() {
			if in == nil {
				clone.AppendInput(nil)
				continue
			}
			if mapped, ok := mapping[in]; ok {
				clone.AppendInput(mapped)
			} else {
				clone.AppendInput(in)
			}
		}
	}

	var retValue *ir.Node
	if len(ret.Inputs()) > 0 {
		if v := ret.Input(0); v != nil {
			if mapped, ok := mapping[v]; ok {
				retValue = mapped
			} else {
				retValue = v
			}
		}
	}

	for _, n := range toTransplant {
		callerRegion.InsertBefore(call, n)
	}

	if retValue != nil {
		call.ReplaceAllUsesWith(retValue)
	} else {
		call.ReplaceAllUsesWith(nil)
	}
	call.Detach()
	callerRegion.Remove(call)
	return true
}
