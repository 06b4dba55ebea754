package transform

import (
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// reassociableKinds is the set of associative, commutative binary
// operators Reassociate regroups. SUB is excluded: it is neither
// associative nor commutative in the form this IR represents it.
var reassociableKinds = map[ir.Kind]bool{
	ir.KindAdd:  true,
	ir.KindMul:  true,
	ir.KindBand: true,
	ir.KindBor:  true,
	ir.KindBxor: true,
}

// Reassociate regroups a chain of the same associative/commutative
// operator so every constant operand ends up combined into its own
// subtree, separate from the variable operands (spec.md §4, following
// the original's ReassociatePass). This exposes the constant subtree
// to ConstantFolding and gives CSE/PRE a canonical shape for the
// variable portion even when the source interleaved constants and
// variables arbitrarily.
type Reassociate struct{}

func (Reassociate) Name() string                        { return "reassociate" }
func (Reassociate) RequiredAnalyses() []passmgr.Analysis { return nil }

func (Reassociate) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	changed := false
	for i := 0; i < maxFixedPointIterations; i++ {
		didRewrite := false
		for _, r := range m.AllRegions() {
			if reassociateRegionOnce(m, r, ctx) {
				didRewrite = true
			}
		}
		if !didRewrite {
			break
		}
		changed = true
	}
	return changed
}

func reassociateRegionOnce(m *ir.Module, r *ir.Region, ctx *passmgr.PassContext) bool {
	changed := false
	for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
		if n.Region() == nil {
			continue
		}
		if !isReassociateRoot(n) {
			continue
		}
		if reassociateChainRoot(m, r, n, ctx) {
			changed = true
		}
	}
	return changed
}

// isReassociateRoot reports whether n heads its own chain: it is a
// reassociable, unlocked node that is not itself the sole use of a
// same-kind, unlocked user — if it were, it is absorbed into that
// user's chain instead of being processed on its own.
func isReassociateRoot(n *ir.Node) bool {
	if n.IsLocked() || !reassociableKinds[n.Kind()] {
		return false
	}
	users := n.Users()
	if len(users) == 1 && users[0].Kind() == n.Kind() && !users[0].IsLocked() {
		return false
	}
	return true
}

// reassocChain flattens the tree of same-kind, unlocked, single-use
// nodes rooted at root within root's own region, returning every node
// in the chain (root included) and the leaves bounding it. A node
// reached from a different region, used more than once, of a
// different kind, or locked is treated as an opaque leaf so its
// shared value is never duplicated or destroyed.
func reassocChain(root *ir.Node) (internal []*ir.Node, leaves []*ir.Node) {
	kind := root.Kind()
	region := root.Region()
	internal = append(internal, root)
	for _, in := range root.Inputs() {
		internal, leaves = collectChain(in, kind, region, internal, leaves)
	}
	return internal, leaves
}

func collectChain(n *ir.Node, kind ir.Kind, region *ir.Region, internal, leaves []*ir.Node) ([]*ir.Node, []*ir.Node) {
	if n.Kind() != kind || n.IsLocked() || n.Region() != region || len(n.Users()) != 1 {
		return internal, append(leaves, n)
	}
	internal = append(internal, n)
	for _, in := range n.Inputs() {
		internal, leaves = collectChain(in, kind, region, internal, leaves)
	}
	return internal, leaves
}

// isConstantLeaf classifies leaf as belonging in the constant
// subtree: a literal, or a binary-arithmetic node every one of whose
// inputs is, recursively, constant. This is deliberately broader and
// read-only compared to reassocChain's descend gate — a shared
// pure-literal subexpression (e.g. a folded 2*3 node reused by two
// different chains) is a constant leaf even though its own internal
// structure is never flattened into or rebuilt.
func isConstantLeaf(n *ir.Node) bool {
	if n.Kind() == ir.KindLit {
		return true
	}
	if !n.Kind().IsBinaryArith() {
		return false
	}
	for _, in := range n.Inputs() {
		if !isConstantLeaf(in) {
			return false
		}
	}
	return true
}

func reassociateChainRoot(m *ir.Module, r *ir.Region, root *ir.Node, ctx *passmgr.PassContext) bool {
	internal, leaves := reassocChain(root)
	if len(internal) <= 1 {
		return false
	}
	var varLeaves, constLeaves []*ir.Node
	for _, l := range leaves {
		if isConstantLeaf(l) {
			constLeaves = append(constLeaves, l)
		} else {
			varLeaves = append(varLeaves, l)
		}
	}
	if len(constLeaves) < 2 || len(varLeaves) < 1 {
		return false
	}
	if alreadyGrouped(root, varLeaves, constLeaves) {
		return false
	}

	kind := root.Kind()
	b := ir.NewBuilder(m.Context())
	b.SetModule(m)
	b.SetInsertionPoint(r)

	varTree := foldLeaves(b, kind, varLeaves)
	constTree := foldLeaves(b, kind, constLeaves)
	newRoot := applyReassocOp(b, kind, varTree, constTree)
	if newRoot == nil {
		return false
	}

	replaceWithNode(r, root, newRoot)
	for _, n := range internal {
		if n == root {
			continue
		}
		n.Detach()
		if reg := n.Region(); reg != nil {
			reg.Remove(n)
		}
	}
	ctx.Incr("reassociate.count", 1)
	return true
}

// alreadyGrouped reports whether root's two direct inputs already
// partition exactly into the target variable and constant leaf
// multisets, in either order — the pass's idempotence check. Without
// it, Reassociate would never reach a true fixed point: Builder never
// structurally dedupes binary ops, so rebuilding an already-grouped
// chain would keep allocating fresh, structurally-equivalent nodes
// forever.
func alreadyGrouped(root *ir.Node, varLeaves, constLeaves []*ir.Node) bool {
	in := root.Inputs()
	if len(in) != 2 {
		return false
	}
	kind := root.Kind()
	region := root.Region()
	aLeaves := chainSideLeaves(in[0], kind, region)
	bLeaves := chainSideLeaves(in[1], kind, region)
	return (sameLeafSet(aLeaves, constLeaves) && sameLeafSet(bLeaves, varLeaves)) ||
		(sameLeafSet(aLeaves, varLeaves) && sameLeafSet(bLeaves, constLeaves))
}

// chainSideLeaves decomposes one side of a root into its own leaf set
// using the same descend gate as collectChain, without mutating
// anything.
func chainSideLeaves(n *ir.Node, kind ir.Kind, region *ir.Region) []*ir.Node {
	if n.Kind() != kind || n.IsLocked() || n.Region() != region || len(n.Users()) != 1 {
		return []*ir.Node{n}
	}
	var leaves []*ir.Node
	for _, in := range n.Inputs() {
		leaves = append(leaves, chainSideLeaves(in, kind, region)...)
	}
	return leaves
}

func sameLeafSet(a, b []*ir.Node) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[*ir.Node]int, len(a))
	for _, n := range a {
		counts[n]++
	}
	for _, n := range b {
		counts[n]--
	}
	for _, c := range counts {
		if c != 0 {
			return false
		}
	}
	return true
}

// foldLeaves combines leaves pairwise in a simple left fold — not a
// balanced tree — under kind, reusing leaves[0] directly (creating no
// new node) when there is only one.
func foldLeaves(b *ir.Builder, kind ir.Kind, leaves []*ir.Node) *ir.Node {
	if len(leaves) == 0 {
		return nil
	}
	acc := leaves[0]
	for _, n := range leaves[1:] {
		acc = applyReassocOp(b, kind, acc, n)
	}
	return acc
}

func applyReassocOp(b *ir.Builder, kind ir.Kind, lhs, rhs *ir.Node) *ir.Node {
	switch kind {
	case ir.KindAdd:
		return b.Add(lhs, rhs)
	case ir.KindMul:
		return b.Mul(lhs, rhs)
	case ir.KindBand:
		return b.Band(lhs, rhs)
	case ir.KindBor:
		return b.Bor(lhs, rhs)
	case ir.KindBxor:
		return b.Bxor(lhs, rhs)
	default:
		return nil
	}
}
