package transform

import (
	"math"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// maxFixedPointIterations bounds every per-region or per-module
// fixed-point loop in this package (spec.md §9: "every fixed-point loop
// carries a bounded max-iterations guard").
const maxFixedPointIterations = 1000

// ConstantFolding replaces nodes whose operands are all literals with a
// single literal result (spec.md §4.6). It has no analysis dependency:
// folding only ever looks at a node's own inputs.
type ConstantFolding struct{}

func (ConstantFolding) Name() string                        { return "constfold" }
func (ConstantFolding) RequiredAnalyses() []passmgr.Analysis { return nil }

func (ConstantFolding) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	changed := false
	for _, r := range m.AllRegions() {
		for i := 0; i < maxFixedPointIterations; i++ {
			if !foldRegionOnce(r) {
				break
			}
			changed = true
		}
	}
	return changed
}

func foldRegionOnce(r *ir.Region) bool {
	changed := false
	b := ir.NewBuilder(r.Module().Context())
	b.SetModule(r.Module())
	b.SetInsertionPoint(r)

	for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
		if n.IsLocked() {
			continue
		}
		if tryFold(b, r, n) {
			changed = true
		}
	}
	return changed
}

func tryFold(b *ir.Builder, r *ir.Region, n *ir.Node) bool {
	switch {
	case n.Kind() == ir.KindBranch:
		return foldBranch(r, n)
	case n.Kind() == ir.KindBnot:
		return foldBnot(b, r, n)
	case n.Kind().IsBinaryArith():
		return foldBinaryArith(b, r, n)
	case n.Kind().IsComparison():
		return foldComparison(b, r, n)
	default:
		return false
	}
}

// literalData returns n's TypedData iff n is a LIT node.
func literalData(n *ir.Node) (ir.TypedData, bool) {
	if n == nil || n.Kind() != ir.KindLit {
		return ir.TypedData{}, false
	}
	return n.Data()
}

// foldBranch rewrites a BRANCH whose condition is a literal bool into
// an unconditional JUMP to the taken target. RET is never folded; it
// has no condition operand in the first place.
func foldBranch(r *ir.Region, n *ir.Node) bool {
	data, ok := literalData(n.Input(0))
	if !ok || data.Kind != ir.DBool {
		return false
	}
	target := n.Input(2)
	if data.AsBool() {
		target = n.Input(1)
	}
	jump := r.Module().Context().NewNode(ir.KindJump)
	jump.SetType(ir.TypeVoid)
	jump.AppendInput(target)
	r.ReplaceNode(n, jump, true)
	return true
}

func foldBnot(b *ir.Builder, r *ir.Region, n *ir.Node) bool {
	data, ok := literalData(n.Input(0))
	if !ok {
		return false
	}
	lit := buildLiteral(b, evalBnot(data))
	if lit == nil {
		return false
	}
	replaceWithLiteral(r, n, lit)
	return true
}

func foldBinaryArith(b *ir.Builder, r *ir.Region, n *ir.Node) bool {
	lhs, ok := literalData(n.Input(0))
	if !ok {
		return false
	}
	rhs, ok := literalData(n.Input(1))
	if !ok {
		return false
	}
	evalType := r.Module().Context().Types().Kind(n.Type())
	result, ok := evalArith(n.Kind(), evalType, lhs, rhs)
	if !ok {
		return false // e.g. division or modulo by zero: leave the node in place
	}
	lit := buildLiteral(b, result)
	if lit == nil {
		return false
	}
	replaceWithLiteral(r, n, lit)
	return true
}

func foldComparison(b *ir.Builder, r *ir.Region, n *ir.Node) bool {
	lhs, ok := literalData(n.Input(0))
	if !ok {
		return false
	}
	rhs, ok := literalData(n.Input(1))
	if !ok {
		return false
	}
	evalType := combineKind(lhs.Kind, rhs.Kind)
	result := evalCompare(n.Kind(), evalType, lhs, rhs)
	lit := buildLiteral(b, result)
	if lit == nil {
		return false
	}
	replaceWithLiteral(r, n, lit)
	return true
}

// replaceWithLiteral rewires every user of old onto lit, then detaches
// and removes old from its region. This is the shared rewrite shape for
// constant folding and instruction combining: build-or-reuse a literal,
// rewire users, detach the dead node.
func replaceWithLiteral(r *ir.Region, old, lit *ir.Node) {
	if old == lit {
		return
	}
	old.ReplaceAllUsesWith(lit)
	old.Detach()
	r.Remove(old)
}

// buildLiteral interns data as a content-addressed literal in b's
// current insertion point, dispatching to the Builder constructor for
// data's kind.
func buildLiteral(b *ir.Builder, data ir.TypedData) *ir.Node {
	switch {
	case data.Kind == ir.DBool:
		return b.LitBool(data.AsBool())
	case data.Kind.IsFloat():
		return b.LitFloat(data.Kind, data.AsFloat())
	case data.Kind == ir.DString:
		return b.LitString(data.AsString())
	case data.Kind.IsSigned():
		return b.LitInt(data.Kind, data.AsInt())
	case data.Kind.IsInteger():
		return b.LitUint(data.Kind, data.AsUint())
	default:
		return nil
	}
}

// --- literal evaluation -----------------------------------------------
//
// These helpers reimplement a narrow slice of ir's unexported
// bitWidth/promoteTypes logic directly over DataKind and TypedData
// rather than TypeID: constant folding and instruction combining reason
// about literal payloads, not the type registry, and ir does not export
// that arithmetic. See DESIGN.md for why this duplication is a
// deliberate, grounded choice rather than an oversight.

func bitWidthOf(k ir.DataKind) int {
	switch k {
	case ir.DI8, ir.DU8:
		return 8
	case ir.DI16, ir.DU16:
		return 16
	case ir.DI32, ir.DU32, ir.DBool:
		return 32
	case ir.DI64, ir.DU64:
		return 64
	case ir.DF32:
		return 32
	case ir.DF64:
		return 64
	default:
		return 64
	}
}

func widenSmall(k ir.DataKind) ir.DataKind {
	switch k {
	case ir.DBool, ir.DI8, ir.DU8, ir.DI16, ir.DU16:
		return ir.DI32
	default:
		return k
	}
}

// combineKind mirrors Builder.promoteTypes's rank but operates on raw
// DataKinds of two literal operands, for contexts (comparisons) where
// the node's own result type (always bool) can't tell us the operand
// evaluation type.
func combineKind(a, b ir.DataKind) ir.DataKind {
	a, b = widenSmall(a), widenSmall(b)
	if a == b {
		return a
	}
	if a.IsFloat() || b.IsFloat() {
		if a == ir.DF64 || b == ir.DF64 {
			return ir.DF64
		}
		return ir.DF32
	}
	wa, wb := bitWidthOf(a), bitWidthOf(b)
	if wa != wb {
		if wa > wb {
			return a
		}
		return b
	}
	if !a.IsSigned() {
		return a
	}
	return b
}

func wrapSigned(v int64, k ir.DataKind) int64 {
	width := bitWidthOf(k)
	if width >= 64 {
		return v
	}
	mask := int64(1)<<uint(width) - 1
	v &= mask
	signBit := int64(1) << uint(width-1)
	if v&signBit != 0 {
		v -= int64(1) << uint(width)
	}
	return v
}

func wrapUnsigned(v uint64, k ir.DataKind) uint64 {
	width := bitWidthOf(k)
	if width >= 64 {
		return v
	}
	return v & (uint64(1)<<uint(width) - 1)
}

func literalAsSigned(d ir.TypedData) int64 {
	switch {
	case d.Kind == ir.DBool:
		if d.AsBool() {
			return 1
		}
		return 0
	case d.Kind.IsFloat():
		return int64(d.AsFloat())
	case d.Kind.IsSigned():
		return d.AsInt()
	default:
		return int64(d.AsUint())
	}
}

func literalAsUnsigned(d ir.TypedData) uint64 {
	switch {
	case d.Kind == ir.DBool:
		if d.AsBool() {
			return 1
		}
		return 0
	case d.Kind.IsFloat():
		return uint64(d.AsFloat())
	case d.Kind.IsSigned():
		return uint64(d.AsInt())
	default:
		return d.AsUint()
	}
}

func literalAsFloat(d ir.TypedData) float64 {
	switch {
	case d.Kind == ir.DBool:
		if d.AsBool() {
			return 1
		}
		return 0
	case d.Kind.IsFloat():
		return d.AsFloat()
	case d.Kind.IsSigned():
		return float64(d.AsInt())
	default:
		return float64(d.AsUint())
	}
}

// evalArith computes kind's result over a and b in evalType, returning
// ok=false for division or modulo by zero (the node is left in place,
// not treated as an error — spec.md §4.6).
func evalArith(kind ir.Kind, evalType ir.DataKind, a, b ir.TypedData) (ir.TypedData, bool) {
	switch {
	case evalType.IsFloat():
		x, y := literalAsFloat(a), literalAsFloat(b)
		var r float64
		switch kind {
		case ir.KindAdd:
			r = x + y
		case ir.KindSub:
			r = x - y
		case ir.KindMul:
			r = x * y
		case ir.KindDiv:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = x / y
		case ir.KindMod:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = math.Mod(x, y)
		default:
			return ir.TypedData{}, false
		}
		return ir.Float(evalType, r), true

	case evalType.IsSigned():
		x, y := literalAsSigned(a), literalAsSigned(b)
		var r int64
		switch kind {
		case ir.KindAdd:
			r = x + y
		case ir.KindSub:
			r = x - y
		case ir.KindMul:
			r = x * y
		case ir.KindDiv:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = x / y
		case ir.KindMod:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = x % y
		case ir.KindBand:
			r = x & y
		case ir.KindBor:
			r = x | y
		case ir.KindBxor:
			r = x ^ y
		case ir.KindBshl:
			r = x << uint(y)
		case ir.KindBshr:
			r = x >> uint(y)
		default:
			return ir.TypedData{}, false
		}
		return ir.Int(evalType, wrapSigned(r, evalType)), true

	default:
		x, y := literalAsUnsigned(a), literalAsUnsigned(b)
		var r uint64
		switch kind {
		case ir.KindAdd:
			r = x + y
		case ir.KindSub:
			r = x - y
		case ir.KindMul:
			r = x * y
		case ir.KindDiv:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = x / y
		case ir.KindMod:
			if y == 0 {
				return ir.TypedData{}, false
			}
			r = x % y
		case ir.KindBand:
			r = x & y
		case ir.KindBor:
			r = x | y
		case ir.KindBxor:
			r = x ^ y
		case ir.KindBshl:
			r = x << y
		case ir.KindBshr:
			r = x >> y
		default:
			return ir.TypedData{}, false
		}
		return ir.Uint(evalType, wrapUnsigned(r, evalType)), true
	}
}

func evalCompare(kind ir.Kind, evalType ir.DataKind, a, b ir.TypedData) ir.TypedData {
	var less, equal bool
	switch {
	case evalType.IsFloat():
		x, y := literalAsFloat(a), literalAsFloat(b)
		less, equal = x < y, x == y
	case evalType == ir.DBool:
		x, y := a.AsBool(), b.AsBool()
		less, equal = !x && y, x == y
	case evalType.IsSigned():
		x, y := literalAsSigned(a), literalAsSigned(b)
		less, equal = x < y, x == y
	default:
		x, y := literalAsUnsigned(a), literalAsUnsigned(b)
		less, equal = x < y, x == y
	}
	var r bool
	switch kind {
	case ir.KindEq:
		r = equal
	case ir.KindNeq:
		r = !equal
	case ir.KindLt:
		r = less
	case ir.KindLte:
		r = less || equal
	case ir.KindGt:
		r = !less && !equal
	case ir.KindGte:
		r = !less
	}
	return ir.Bool(r)
}

func evalBnot(d ir.TypedData) ir.TypedData {
	switch {
	case d.Kind == ir.DBool:
		return ir.Bool(!d.AsBool())
	case d.Kind.IsFloat():
		return d
	case d.Kind.IsSigned():
		return ir.Int(d.Kind, wrapSigned(^d.AsInt(), d.Kind))
	default:
		return ir.Uint(d.Kind, wrapUnsigned(^d.AsUint(), d.Kind))
	}
}
