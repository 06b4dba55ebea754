package ir

// RegionID is a stable, Context-scoped region identifier.
type RegionID uint64

// DebugInfo is an optional source-position annotation a front-end may
// attach to a node via Region.SetDebugInfo. Bloom's core never
// populates or consumes it beyond storage and the textual printer's
// optional "/* file:line:col */" comments (spec.md §6).
type DebugInfo struct {
	File   string
	Line   int
	Column int
}

// Region is a named lexical/control scope holding an ordered node
// sequence and child regions (spec.md §3). The first node of every
// region is an ENTRY sentinel. Regions form the primary dominator tree
// via parent/child links; BRANCH/JUMP/INVOKE may additionally target
// entry nodes in sibling subtrees, producing unstructured edges that
// Dominates accounts for (spec.md §4.2, §9(a)).
type Region struct {
	id     RegionID
	name   string
	parent *Region
	module *Module

	children []*Region
	nodes    []*Node

	debugInfo map[*Node]DebugInfo
}

// ID returns the region's stable identifier.
func (r *Region) ID() RegionID { return r.id }

// Name returns the region's (not necessarily unique) lexical name.
func (r *Region) Name() string { return r.name }

// SetName renames the region. Printer sanitizes this for block-label
// output; Bloom's core places no uniqueness requirement on it.
func (r *Region) SetName(name string) { r.name = name }

// Parent returns the region's parent in the region tree, or nil for a
// module's root or read-only-data region.
func (r *Region) Parent() *Region { return r.parent }

// Children returns the region's child regions in creation order.
func (r *Region) Children() []*Region { return r.children }

// Module returns the region's owning module.
func (r *Region) Module() *Module { return r.module }

// Entry returns the region's ENTRY sentinel, always nodes[0].
func (r *Region) Entry() *Node { return r.nodes[0] }

// Nodes returns the region's ordered node sequence, ENTRY sentinel
// included. Callers must not mutate the returned slice directly; use
// Append/InsertBefore/Remove/ReplaceNode.
func (r *Region) Nodes() []*Node { return r.nodes }

// IsTerminated reports whether the region's last non-sentinel node is
// a RET (spec.md §3: "A region is terminated iff its last non-sentinel
// node is RET").
func (r *Region) IsTerminated() bool {
	if len(r.nodes) < 2 {
		return false
	}
	return r.nodes[len(r.nodes)-1].Kind() == KindRet
}

// Terminator returns the region's last node if it is a control
// terminator (RET/BRANCH/JUMP/INVOKE), else nil. This is a broader,
// CFG-flavored query than IsTerminated, used by passes (PRE, inlining)
// that need "the node to insert before" regardless of which
// terminator kind ends the region.
func (r *Region) Terminator() *Node {
	if len(r.nodes) < 2 {
		return nil
	}
	last := r.nodes[len(r.nodes)-1]
	if last.Kind().IsTerminator() {
		return last
	}
	return nil
}

// NewChild creates and appends a new child region with its own ENTRY
// sentinel.
func (r *Region) NewChild(name string) *Region {
	return r.module.ctx.newRegion(r.module, r, name)
}

// Append inserts n at the end of the region's node list and sets its
// owning region. n must not already belong to a region.
func (r *Region) Append(n *Node) {
	if n.region != nil {
		badPrecondition("Region.Append", "node %d already belongs to region %d", n.id, n.region.id)
	}
	n.region = r
	r.nodes = append(r.nodes, n)
}

// InsertBefore inserts n immediately before mark in the region's node
// list. mark must currently belong to r.
func (r *Region) InsertBefore(mark, n *Node) {
	if n.region != nil {
		badPrecondition("Region.InsertBefore", "node %d already belongs to region %d", n.id, n.region.id)
	}
	idx := r.indexOf(mark)
	if idx < 0 {
		badPrecondition("Region.InsertBefore", "mark node %d is not in region %d", mark.id, r.id)
	}
	n.region = r
	r.nodes = append(r.nodes, nil)
	copy(r.nodes[idx+1:], r.nodes[idx:])
	r.nodes[idx] = n
}

// InsertBeforeTerminator inserts n just before the region's terminator
// (spec.md §4.9's PRE hoist target), or at the end if the region has
// no terminator yet.
func (r *Region) InsertBeforeTerminator(n *Node) {
	if t := r.Terminator(); t != nil {
		r.InsertBefore(t, n)
		return
	}
	r.Append(n)
}

// Remove removes n from the region's node list (a purely positional
// operation) and clears its region back-reference. It does not touch
// n's inputs or users; callers that want a full "delete" should
// ReplaceAllUsesWith + Detach + Remove, in that order.
func (r *Region) Remove(n *Node) {
	idx := r.indexOf(n)
	if idx < 0 {
		badPrecondition("Region.Remove", "node %d is not in region %d", n.id, r.id)
	}
	r.nodes = append(r.nodes[:idx], r.nodes[idx+1:]...)
	n.region = nil
	delete(r.debugInfo, n)
}

// ReplaceNode swaps old for newN at old's position in the node list. If
// updateConnections is true, every user of old is rewired to use newN
// instead (old.ReplaceAllUsesWith + Detach); if false, only the
// positional swap happens and the caller is responsible for any use
// rewiring (spec.md §4.2).
func (r *Region) ReplaceNode(old, newN *Node, updateConnections bool) {
	idx := r.indexOf(old)
	if idx < 0 {
		badPrecondition("Region.ReplaceNode", "node %d is not in region %d", old.id, r.id)
	}
	if newN.region != nil && newN.region != r {
		badPrecondition("Region.ReplaceNode", "replacement node %d already belongs to another region", newN.id)
	}
	if updateConnections {
		old.ReplaceAllUsesWith(newN)
		old.Detach()
	}
	r.nodes[idx] = newN
	newN.region = r
	old.region = nil
}

func (r *Region) indexOf(n *Node) int {
	for i, x := range r.nodes {
		if x == n {
			return i
		}
	}
	return -1
}

// SetDebugInfo attaches a source-position annotation to n, which must
// belong to this region.
func (r *Region) SetDebugInfo(n *Node, info DebugInfo) {
	if r.debugInfo == nil {
		r.debugInfo = make(map[*Node]DebugInfo)
	}
	r.debugInfo[n] = info
}

// DebugInfo returns the source-position annotation for n, if any.
func (r *Region) DebugInfo(n *Node) (DebugInfo, bool) {
	info, ok := r.debugInfo[n]
	return info, ok
}

// isSelfOrDescendant reports whether other is r or nested (directly or
// transitively) inside r in the region tree.
func isSelfOrDescendant(r, other *Region) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == r {
			return true
		}
	}
	return false
}

// Dominates answers true iff r tree-dominates other (other is r or one
// of its descendants) AND no node anywhere in the module contains a
// JUMP/BRANCH/INVOKE whose target entry lies in other while its own
// source region is not itself inside r — i.e. no unstructured edge lets
// control reach other without first passing through r (spec.md §4.2,
// and the Open Question in spec.md §9(a): this is deliberately the
// conservative tree-plus-bypass-check formulation, not full CFG
// dominance, and a prior transform that introduces new back-edges may
// make it return false where exact dominance would say true — that is
// accepted, not "fixed").
func (r *Region) Dominates(other *Region) bool {
	if !isSelfOrDescendant(r, other) {
		return false
	}
	if r.module == nil {
		return true
	}
	targetEntry := other.Entry()
	bypassed := false
	r.module.walkRegions(func(src *Region) bool {
		if bypassed {
			return false
		}
		for _, n := range src.nodes {
			for _, target := range branchTargets(n) {
				if target == targetEntry && !isSelfOrDescendant(r, src) {
					bypassed = true
					return false
				}
			}
		}
		return true
	})
	return !bypassed
}

// branchTargets returns the entry nodes a BRANCH/JUMP/INVOKE node can
// transfer control to, per spec.md §3's operand conventions.
func branchTargets(n *Node) []*Node {
	switch n.Kind() {
	case KindBranch:
		return []*Node{n.Input(1), n.Input(2)}
	case KindJump:
		return []*Node{n.Input(0)}
	case KindInvoke:
		ins := n.Inputs()
		if len(ins) < 2 {
			return nil
		}
		return []*Node{ins[len(ins)-2], ins[len(ins)-1]}
	default:
		return nil
	}
}
