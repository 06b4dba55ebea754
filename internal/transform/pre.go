package transform

import (
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// PRE hoists a group of structurally-equivalent expressions — the same
// operation applied to the same operand nodes, computed independently
// in two or more regions — to their lowest common dominating region
// (spec.md §4.9). It shares CSE's eligibility set minus every memory
// operation and terminator: no loads, stores, allocations, calls, or
// control-flow nodes are ever hoisted, since hoisting would change
// when (or whether) their effect happens.
//
// Vector ops are left to SLP and are not hoisted here: cloning a
// VECTOR_BUILD/EXTRACT/SPLAT node requires reconstructing its full
// element list, and nothing in this module's corpus needed a redundant
// vector constant across regions to justify the extra machinery.
type PRE struct{}

func (PRE) Name() string                        { return "pre" }
func (PRE) RequiredAnalyses() []passmgr.Analysis { return nil }

func preEligible(n *ir.Node) bool {
	switch n.Kind() {
	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindDiv, ir.KindMod,
		ir.KindBand, ir.KindBor, ir.KindBxor, ir.KindBshl, ir.KindBshr,
		ir.KindEq, ir.KindNeq, ir.KindLt, ir.KindLte, ir.KindGt, ir.KindGte,
		ir.KindBnot, ir.KindAddrOf, ir.KindPtrAdd, ir.KindReinterpretCast:
		return true
	default:
		return false
	}
}

func (PRE) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	changed := false
	for i := 0; i < maxFixedPointIterations; i++ {
		groups := collectPREGroups(m)
		didHoist := false
		for _, group := range groups {
			if hoistGroup(m, group) {
				didHoist = true
			}
		}
		if !didHoist {
			break
		}
		changed = true
	}
	return changed
}

func collectPREGroups(m *ir.Module) map[string][]*ir.Node {
	groups := make(map[string][]*ir.Node)
	for _, r := range m.AllRegions() {
		for _, n := range r.Nodes() {
			if n.IsLocked() || !preEligible(n) {
				continue
			}
			key := valueKey(n)
			groups[key] = append(groups[key], n)
		}
	}
	for key, nodes := range groups {
		if len(nodes) < 2 {
			delete(groups, key)
		}
	}
	return groups
}

// lowestCommonDominator returns the nearest region that dominates every
// occurrence's region, walking up from the first occurrence's region.
func lowestCommonDominator(occurrences []*ir.Node) *ir.Region {
	candidate := occurrences[0].Region()
	for candidate != nil {
		allDominated := true
		for _, occ := range occurrences {
			if !candidate.Dominates(occ.Region()) {
				allDominated = false
				break
			}
		}
		if allDominated {
			return candidate
		}
		candidate = candidate.Parent()
	}
	return nil
}

// inputsAvailableAt reports whether every input of n is defined in a
// region that dominates target (so the value already exists by the
// time control reaches target).
func inputsAvailableAt(n *ir.Node, target *ir.Region) bool {
	for _, in := range n.Inputs() {
		defRegion := in.Region()
		if defRegion == nil {
			return false
		}
		if defRegion == target {
			continue
		}
		if !defRegion.Dominates(target) {
			return false
		}
	}
	return true
}

func hoistGroup(m *ir.Module, occurrences []*ir.Node) bool {
	target := lowestCommonDominator(occurrences)
	if target == nil {
		return false
	}
	representative := occurrences[0]
	if !inputsAvailableAt(representative, target) {
		return false
	}

	// If one occurrence already lives exactly at the target region,
	// reuse it instead of cloning.
	var hoisted *ir.Node
	for _, occ := range occurrences {
		if occ.Region() == target {
			hoisted = occ
			break
		}
	}
	if hoisted == nil {
		b := ir.NewBuilder(m.Context())
		b.SetModule(m)
		b.SetInsertionPoint(target)
		hoisted = clonePREExpr(b, representative)
		if hoisted == nil {
			return false
		}
		target.InsertBeforeTerminator(popLast(target, hoisted))
	}

	changed := false
	for _, occ := range occurrences {
		if occ == hoisted {
			continue
		}
		occ.ReplaceAllUsesWith(hoisted)
		occ.Detach()
		occ.Region().Remove(occ)
		changed = true
	}
	return changed
}

// popLast removes the node the Builder just placed in r so
// InsertBeforeTerminator can place it immediately before the
// terminator.
func popLast(r *ir.Region, n *ir.Node) *ir.Node {
	if n.Region() == r {
		r.Remove(n)
	}
	return n
}

func clonePREExpr(b *ir.Builder, n *ir.Node) *ir.Node {
	in := n.Inputs()
	switch n.Kind() {
	case ir.KindAdd:
		return b.Add(in[0], in[1])
	case ir.KindSub:
		return b.Sub(in[0], in[1])
	case ir.KindMul:
		return b.Mul(in[0], in[1])
	case ir.KindDiv:
		return b.Div(in[0], in[1])
	case ir.KindMod:
		return b.Mod(in[0], in[1])
	case ir.KindBand:
		return b.Band(in[0], in[1])
	case ir.KindBor:
		return b.Bor(in[0], in[1])
	case ir.KindBxor:
		return b.Bxor(in[0], in[1])
	case ir.KindBshl:
		return b.Bshl(in[0], in[1])
	case ir.KindBshr:
		return b.Bshr(in[0], in[1])
	case ir.KindEq:
		return b.Eq(in[0], in[1])
	case ir.KindNeq:
		return b.Neq(in[0], in[1])
	case ir.KindLt:
		return b.Lt(in[0], in[1])
	case ir.KindLte:
		return b.Lte(in[0], in[1])
	case ir.KindGt:
		return b.Gt(in[0], in[1])
	case ir.KindGte:
		return b.Gte(in[0], in[1])
	case ir.KindBnot:
		return b.Bnot(in[0])
	case ir.KindAddrOf:
		return b.AddrOf(in[0])
	case ir.KindPtrAdd:
		return b.PtrAdd(in[0], in[1])
	case ir.KindReinterpretCast:
		return b.ReinterpretCast(in[0], n.Type())
	default:
		return nil
	}
}
