// Package analysis implements Bloom's module-level analyses: local
// alias analysis and the call graph (spec.md §4.3, §4.4). Both are
// single-pass-then-fixed-point summaries built directly over the
// ir package's Node/Region graph; neither mutates the IR.
package analysis

import (
	"bloom/internal/ir"
)

// AliasResult is the four-way answer Alias returns, following
// spec.md §4.3's base+offset+size comparison.
type AliasResult int

const (
	AliasNo AliasResult = iota
	AliasMay
	AliasMust
	AliasPartial
)

func (r AliasResult) String() string {
	switch r {
	case AliasNo:
		return "NO"
	case AliasMay:
		return "MAY"
	case AliasMust:
		return "MUST"
	case AliasPartial:
		return "PARTIAL"
	default:
		return "?"
	}
}

// baseKind classifies where a pointer value's underlying storage came
// from.
type baseKind int

const (
	baseUnknown baseKind = iota
	baseAllocation
	baseAddrOf
	baseParam
)

const offsetUnknown = -1
const sizeUnknown = -1

// pointerSource is the per-pointer summary LAA computes: its ultimate
// base (an allocation, an address-of target, or a parameter), a
// constant offset from that base when known, and a size when the
// allocation literal is a constant.
type pointerSource struct {
	kind   baseKind
	base   *ir.Node
	offset int64
	size   int64
}

// LocalAliasAnalysis is the per-module summary spec.md §4.3 describes:
// pointer provenance, escape status, and the bidirectional
// store/load dependency relation.
type LocalAliasAnalysis struct {
	module *ir.Module

	sources map[*ir.Node]*pointerSource
	escaped map[*ir.Node]bool

	loads  []*ir.Node
	stores []*ir.Node

	affectingStores map[*ir.Node][]*ir.Node
	affectedLoads   map[*ir.Node][]*ir.Node
}

// Analyze runs LAA's single classification pass followed by
// fixed-point escape propagation over every region in m (spec.md
// §4.3's algorithm).
func Analyze(m *ir.Module) *LocalAliasAnalysis {
	laa := &LocalAliasAnalysis{
		module:          m,
		sources:         make(map[*ir.Node]*pointerSource),
		escaped:         make(map[*ir.Node]bool),
		affectingStores: make(map[*ir.Node][]*ir.Node),
		affectedLoads:   make(map[*ir.Node][]*ir.Node),
	}
	laa.classify()
	laa.propagateEscapes()
	laa.recordStoreLoadRelations()
	return laa
}

func (l *LocalAliasAnalysis) classify() {
	for _, r := range l.module.AllRegions() {
		for _, n := range r.Nodes() {
			l.classifyNode(n)
		}
	}
}

func (l *LocalAliasAnalysis) classifyNode(n *ir.Node) {
	switch n.Kind() {
	case ir.KindStackAlloc, ir.KindHeapAlloc:
		size := int64(sizeUnknown)
		if sizeArg := n.Input(0); sizeArg != nil && sizeArg.Kind() == ir.KindLit {
			if data, ok := sizeArg.Data(); ok {
				size = literalAsInt(data)
			}
		}
		l.sources[n] = &pointerSource{kind: baseAllocation, base: n, offset: 0, size: size}

	case ir.KindAddrOf:
		base := n.Input(0)
		l.sources[n] = &pointerSource{kind: baseAddrOf, base: base, offset: 0, size: sizeUnknown}

	case ir.KindParam:
		if isPointerTyped(l.module, n) {
			l.sources[n] = &pointerSource{kind: baseParam, base: n, offset: 0, size: sizeUnknown}
			l.escaped[n] = true
		}

	case ir.KindPtrAdd:
		base := n.Input(0)
		offsetArg := n.Input(1)
		parent := l.sourceOf(base)
		offset := int64(offsetUnknown)
		if offsetArg != nil && offsetArg.Kind() == ir.KindLit && parent.offset != offsetUnknown {
			if data, ok := offsetArg.Data(); ok {
				offset = parent.offset + literalAsInt(data)
			}
		}
		l.sources[n] = &pointerSource{kind: parent.kind, base: parent.base, offset: offset, size: parent.size}

	case ir.KindReinterpretCast:
		if src := l.sources[n.Input(0)]; src != nil {
			l.sources[n] = src
		}

	case ir.KindLoad, ir.KindPtrLoad, ir.KindAtomicLoad:
		l.loads = append(l.loads, n)

	case ir.KindStore, ir.KindPtrStore, ir.KindAtomicStore:
		l.stores = append(l.stores, n)
		if v := n.Input(0); v != nil && isPointerTyped(l.module, v) {
			l.markEscapedTransitively(v)
		}

	case ir.KindCall, ir.KindInvoke:
		for _, arg := range callArgs(n) {
			if arg != nil && isPointerTyped(l.module, arg) {
				l.markEscapedTransitively(arg)
			}
		}

	case ir.KindRet:
		if v := n.Input(0); v != nil && isPointerTyped(l.module, v) {
			l.markEscapedTransitively(v)
		}
	}
}

// callArgs returns a CALL/INVOKE node's argument operands, excluding
// the callee (inputs[0]) and, for INVOKE, the trailing normal/exception
// entry targets (spec.md §3's operand conventions).
func callArgs(n *ir.Node) []*ir.Node {
	ins := n.Inputs()
	if len(ins) == 0 {
		return nil
	}
	if n.Kind() == ir.KindInvoke {
		if len(ins) < 3 {
			return nil
		}
		return ins[1 : len(ins)-2]
	}
	return ins[1:]
}

// addrOperand returns a store-family node's address operand (spec.md
// §3: value then address for STORE/PTR_STORE/ATOMIC_STORE).
func addrOperand(n *ir.Node) *ir.Node {
	switch n.Kind() {
	case ir.KindStore, ir.KindPtrStore:
		return n.Input(1)
	case ir.KindAtomicStore:
		return n.Input(1)
	default:
		return nil
	}
}

func literalAsInt(data ir.TypedData) int64 {
	switch {
	case data.Kind.IsFloat():
		return int64(data.AsFloat())
	case data.Kind.IsSigned():
		return data.AsInt()
	default:
		return int64(data.AsUint())
	}
}

func isPointerTyped(m *ir.Module, n *ir.Node) bool {
	return m.Context().Types().Kind(n.Type()) == ir.DPointer
}

// sourceOf returns n's pointerSource, defaulting to an unknown base
// for any pointer-typed producer LAA's classification pass didn't
// recognize (spec.md §4.3: "defaulted forwarding for unclassified
// pointer-typed producers").
func (l *LocalAliasAnalysis) sourceOf(n *ir.Node) *pointerSource {
	if n == nil {
		return &pointerSource{kind: baseUnknown, offset: offsetUnknown, size: sizeUnknown}
	}
	if src, ok := l.sources[n]; ok {
		return src
	}
	return &pointerSource{kind: baseUnknown, base: n, offset: offsetUnknown, size: sizeUnknown}
}

func (l *LocalAliasAnalysis) markEscapedTransitively(n *ir.Node) {
	if n == nil || l.escaped[n] {
		return
	}
	l.escaped[n] = true
	if src := l.sources[n]; src != nil && src.base != nil && src.base != n {
		l.markEscapedTransitively(src.base)
	}
}

// propagateEscapes re-marks every pointer derived from an already
// escaped base as escaped, iterating to a fixed point (spec.md §4.3).
func (l *LocalAliasAnalysis) propagateEscapes() {
	for {
		changed := false
		for n, src := range l.sources {
			if l.escaped[n] {
				continue
			}
			if src.base != nil && l.escaped[src.base] {
				l.escaped[n] = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (l *LocalAliasAnalysis) recordStoreLoadRelations() {
	for _, store := range l.stores {
		storeAddr := addrOperand(store)
		if storeAddr == nil {
			continue
		}
		for _, load := range l.loads {
			loadAddr := load.Input(0)
			if loadAddr == nil {
				continue
			}
			if l.Alias(storeAddr, loadAddr) != AliasNo {
				l.affectingStores[load] = append(l.affectingStores[load], store)
				l.affectedLoads[store] = append(l.affectedLoads[store], load)
			}
		}
	}
}

// Alias answers the four-way alias question for pointer values a and
// b, per spec.md §4.3's decision table.
func (l *LocalAliasAnalysis) Alias(a, b *ir.Node) AliasResult {
	sa, sb := l.sourceOf(a), l.sourceOf(b)

	if sa.base == sb.base && sa.offset != offsetUnknown && sa.offset == sb.offset &&
		sa.size != sizeUnknown && sa.size == sb.size {
		return AliasMust
	}
	if l.escaped[a] || l.escaped[b] {
		return AliasMay
	}
	if sa.kind == baseUnknown || sb.kind == baseUnknown {
		return AliasMay
	}
	if sa.base != sb.base {
		return AliasNo
	}
	if sa.offset == offsetUnknown || sb.offset == offsetUnknown {
		return AliasMay
	}
	aLo, aHi := sa.offset, sa.offset+maxPositive(sa.size)
	bLo, bHi := sb.offset, sb.offset+maxPositive(sb.size)
	switch {
	case aHi <= bLo || bHi <= aLo:
		return AliasNo
	case sa.offset == sb.offset && sa.size == sb.size:
		return AliasMust
	default:
		return AliasPartial
	}
}

func maxPositive(size int64) int64 {
	if size <= 0 {
		return 1
	}
	return size
}

// HasEscaped reports whether p was passed to a call, stored to unknown
// memory, returned, or is itself a pointer parameter.
func (l *LocalAliasAnalysis) HasEscaped(p *ir.Node) bool { return l.escaped[p] }

// GetPointerSource follows pointer-copy edges to p's ultimate
// allocation, parameter, or address-of target.
func (l *LocalAliasAnalysis) GetPointerSource(p *ir.Node) *ir.Node {
	return l.sourceOf(p).base
}

// IsAllocationSite reports whether p is itself a STACK_ALLOC or
// HEAP_ALLOC node.
func (l *LocalAliasAnalysis) IsAllocationSite(p *ir.Node) bool {
	src, ok := l.sources[p]
	return ok && src.kind == baseAllocation && src.base == p
}

// GetAffectingStores returns every store whose address may-aliases
// load's address.
func (l *LocalAliasAnalysis) GetAffectingStores(load *ir.Node) []*ir.Node {
	return l.affectingStores[load]
}

// GetAffectedLoads returns every load whose address may-aliases
// store's address.
func (l *LocalAliasAnalysis) GetAffectedLoads(store *ir.Node) []*ir.Node {
	return l.affectedLoads[store]
}
