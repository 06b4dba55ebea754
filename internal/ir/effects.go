package ir

// This file classifies each Kind's side effects (Pure, memory
// read/write, or opaque-call) — the basis CSE, PRE, constant folding,
// and DCE use to decide whether a node is safe to reorder, hoist,
// deduplicate, or delete.

// EffectKind distinguishes the broad categories of side effect a node
// can have.
type EffectKind uint8

const (
	// EffectPure marks a node with no observable side effect beyond
	// its result: safe to reorder, deduplicate (CSE), hoist (PRE), or
	// delete when unused (DCE).
	EffectPure EffectKind = iota
	// EffectMemoryRead marks a node that reads through a pointer.
	// Reorderable with other reads and with unrelated writes, but not
	// across an aliasing write (spec.md §4.3).
	EffectMemoryRead
	// EffectMemoryWrite marks a node that writes through a pointer.
	// Never reordered past another memory op that may alias it.
	EffectMemoryWrite
	// EffectCall marks a node whose effects are opaque without
	// interprocedural analysis: by default assumed to read and write
	// all memory (spec.md §4.4's conservative call-graph treatment).
	EffectCall
)

// Effects returns every effect kind k carries. Most kinds carry
// exactly one; INVOKE, like CALL, is opaque.
func (k Kind) Effects() []EffectKind {
	switch {
	case k == KindCall || k == KindInvoke:
		return []EffectKind{EffectCall}
	case k == KindLoad || k == KindPtrLoad || k == KindAtomicLoad:
		return []EffectKind{EffectMemoryRead}
	case k == KindStore || k == KindPtrStore || k == KindAtomicStore || k == KindFree:
		return []EffectKind{EffectMemoryWrite}
	case k == KindAtomicCas:
		return []EffectKind{EffectMemoryRead, EffectMemoryWrite}
	case k == KindHeapAlloc:
		// Allocation both calls an allocator function and produces a
		// fresh, provably non-aliasing pointer; LAA treats its result
		// as a new base object (spec.md §4.3) but conservative passes
		// should still treat the call itself as opaque.
		return []EffectKind{EffectCall}
	default:
		return []EffectKind{EffectPure}
	}
}

// IsPure reports whether n has no side effect at all: every one of
// its effect kinds is EffectPure. PROP_NO_OPTIMIZE is orthogonal to
// purity — a locked pure node is still pure, just untouchable.
func (n *Node) IsPure() bool {
	for _, e := range n.kind.Effects() {
		if e != EffectPure {
			return false
		}
	}
	return true
}

// HasEffect reports whether n carries effect kind e.
func (n *Node) HasEffect(e EffectKind) bool {
	for _, x := range n.kind.Effects() {
		if x == e {
			return true
		}
	}
	return false
}

// MayAlias reports whether effects of a and b need to preserve their
// relative order: true whenever either carries a write (or an opaque
// call) and the other carries any memory effect. Passes that want
// precise base+offset disambiguation should consult LocalAliasAnalysis
// instead of this conservative same-kind-class check.
func MayAlias(a, b Kind) bool {
	writes := func(effs []EffectKind) bool {
		for _, e := range effs {
			if e == EffectMemoryWrite || e == EffectCall {
				return true
			}
		}
		return false
	}
	touchesMemory := func(effs []EffectKind) bool {
		for _, e := range effs {
			if e != EffectPure {
				return true
			}
		}
		return false
	}
	ae, be := a.Effects(), b.Effects()
	if writes(ae) && touchesMemory(be) {
		return true
	}
	if writes(be) && touchesMemory(ae) {
		return true
	}
	return false
}
