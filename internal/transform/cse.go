package transform

import (
	"fmt"
	"strings"

	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// commutativeKinds is the set of binary operators whose operand order
// doesn't affect the result, so CSE can match a+b against b+a.
var commutativeKinds = map[ir.Kind]bool{
	ir.KindAdd:  true,
	ir.KindMul:  true,
	ir.KindBand: true,
	ir.KindBor:  true,
	ir.KindBxor: true,
	ir.KindEq:   true,
	ir.KindNeq:  true,
}

// CSE performs per-region value numbering (spec.md §4.8): pure
// value-producing nodes with identical (kind, operands, type) collapse
// onto their first occurrence, and redundant loads collapse when local
// alias analysis can prove no intervening store could have changed the
// loaded location.
type CSE struct{}

func (CSE) Name() string { return "cse" }

func (CSE) RequiredAnalyses() []passmgr.Analysis {
	return []passmgr.Analysis{LAAAnalysis{}}
}

func (CSE) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	laa := RequireLAA(ctx)
	changed := false
	for _, r := range m.AllRegions() {
		if cseRegion(r, laa) {
			changed = true
		}
	}
	return changed
}

func cseEligible(n *ir.Node) bool {
	switch n.Kind() {
	case ir.KindLit, ir.KindEntry, ir.KindExit, ir.KindParam, ir.KindFunction,
		ir.KindStore, ir.KindPtrStore, ir.KindAtomicStore, ir.KindAtomicLoad, ir.KindAtomicCas,
		ir.KindStackAlloc, ir.KindHeapAlloc, ir.KindFree,
		ir.KindCall, ir.KindInvoke, ir.KindRet, ir.KindBranch, ir.KindJump:
		return false
	default:
		return true
	}
}

func valueKey(n *ir.Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%d|", n.Kind(), n.Type())
	ids := make([]ir.NodeID, len(n.Inputs()))
	for i, in := range n.Inputs() {
		ids[i] = in.ID()
	}
	if commutativeKinds[n.Kind()] && len(ids) == 2 && ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	for _, id := range ids {
		fmt.Fprintf(&sb, "%d,", id)
	}
	return sb.String()
}

func isLoadKind(k ir.Kind) bool { return k == ir.KindLoad || k == ir.KindPtrLoad }

func cseRegion(r *ir.Region, laa *analysis.LocalAliasAnalysis) bool {
	changed := false
	seen := make(map[string]*ir.Node)
	liveLoads := make(map[*ir.Node]*ir.Node) // address node -> the live load result for it

	for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
		if n.Region() == nil {
			continue // already removed by an earlier rewrite this pass
		}

		switch {
		case n.Kind() == ir.KindStore || n.Kind() == ir.KindPtrStore || n.Kind() == ir.KindFree:
			invalidateAliasingLoads(liveLoads, laa, storeAddress(n))
			continue
		case n.Kind() == ir.KindCall || n.Kind() == ir.KindInvoke:
			// an opaque call may write through any escaped pointer.
			for addr := range liveLoads {
				if laa.HasEscaped(addr) {
					delete(liveLoads, addr)
				}
			}
			continue
		case isLoadKind(n.Kind()):
			addr := n.Input(0)
			if existing, ok := liveLoads[addr]; ok && existing.Type() == n.Type() {
				n.ReplaceAllUsesWith(existing)
				n.Detach()
				r.Remove(n)
				changed = true
				continue
			}
			liveLoads[addr] = n
			continue
		}

		if !cseEligible(n) || n.IsLocked() {
			continue
		}
		key := valueKey(n)
		if existing, ok := seen[key]; ok {
			n.ReplaceAllUsesWith(existing)
			n.Detach()
			r.Remove(n)
			changed = true
			continue
		}
		seen[key] = n
	}
	return changed
}

func storeAddress(n *ir.Node) *ir.Node {
	if n.Kind() == ir.KindFree {
		return n.Input(0)
	}
	return n.Input(1) // Store/PtrStore: (value, addr)
}

// invalidateAliasingLoads drops any live load whose address may alias
// storeAddr, per LAA's precise base+offset+size decision table.
func invalidateAliasingLoads(liveLoads map[*ir.Node]*ir.Node, laa *analysis.LocalAliasAnalysis, storeAddr *ir.Node) {
	if storeAddr == nil {
		for addr := range liveLoads {
			delete(liveLoads, addr)
		}
		return
	}
	for addr := range liveLoads {
		if addr == storeAddr || laa.Alias(addr, storeAddr) != analysis.AliasNo {
			delete(liveLoads, addr)
		}
	}
}
