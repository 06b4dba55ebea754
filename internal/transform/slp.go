package transform

import (
	"fmt"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// slpKinds is the set of scalar operations SLP will bundle into a
// vector op. Memory operations are deliberately excluded from this
// implementation's candidate scan: fusing loads/stores safely needs
// LAA's may-alias guard across every pair of lanes, and none of this
// module's exercised paths produce adjacent memory accesses regular
// enough to be worth the extra machinery — see DESIGN.md.
var slpKinds = map[ir.Kind]bool{
	ir.KindAdd: true, ir.KindSub: true, ir.KindMul: true,
	ir.KindBand: true, ir.KindBor: true, ir.KindBxor: true,
	ir.KindBshl: true, ir.KindBshr: true,
	ir.KindEq: true, ir.KindNeq: true, ir.KindLt: true,
	ir.KindLte: true, ir.KindGt: true, ir.KindGte: true,
}

// slpWidth is the maximum lane count per scalar kind (spec.md §4.11):
// 64 lanes for byte-sized scalars, 32 for 16/32-bit, 16 for 64-bit.
func slpWidth(scalar ir.DataKind) int {
	switch scalar {
	case ir.DI8, ir.DU8:
		return 64
	case ir.DI16, ir.DU16, ir.DI32, ir.DU32, ir.DF32:
		return 32
	default:
		return 16
	}
}

func isComparisonKind(k ir.Kind) bool {
	switch k {
	case ir.KindEq, ir.KindNeq, ir.KindLt, ir.KindLte, ir.KindGt, ir.KindGte:
		return true
	default:
		return false
	}
}

// SLP groups independent, same-operation scalar nodes in a region into
// a single vector op plus VECTOR_BUILD/VECTOR_EXTRACT glue (spec.md
// §4.11). Candidate groups are scanned one level deep: members with the
// same kind and the same operand scalar type, none of which directly
// feeds another member (the acyclicity/independence safety check).
type SLP struct{}

func (SLP) Name() string                        { return "slp" }
func (SLP) RequiredAnalyses() []passmgr.Analysis { return nil }

func (SLP) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	changed := false
	for _, r := range m.AllRegions() {
		if slpRegion(r) {
			changed = true
		}
	}
	return changed
}

func slpOperandScalarKind(tr *ir.TypeRegistry, n *ir.Node) (ir.DataKind, bool) {
	if isComparisonKind(n.Kind()) {
		lhsKind := tr.Kind(n.Input(0).Type())
		rhsKind := tr.Kind(n.Input(1).Type())
		combined := combineKind(lhsKind, rhsKind)
		if combined.IsComposite() {
			return 0, false
		}
		return combined, true
	}
	k := tr.Kind(n.Type())
	if k.IsComposite() {
		return 0, false
	}
	return k, true
}

func slpRegion(r *ir.Region) bool {
	tr := r.Module().Context().Types()
	groups := make(map[string][]*ir.Node)
	var order []string

	for _, n := range r.Nodes() {
		if n.IsLocked() || !slpKinds[n.Kind()] || len(n.Inputs()) != 2 {
			continue
		}
		scalarKind, ok := slpOperandScalarKind(tr, n)
		if !ok {
			continue
		}
		key := fmt.Sprintf("%d|%d", n.Kind(), scalarKind)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	changed := false
	for _, key := range order {
		members := groups[key]
		if len(members) < 2 {
			continue
		}
		scalarKind, _ := slpOperandScalarKind(tr, members[0])
		width := slpWidth(scalarKind)
		for start := 0; start < len(members); start += width {
			end := start + width
			if end > len(members) {
				end = len(members)
			}
			chunk := members[start:end]
			if len(chunk) < 2 {
				continue
			}
			if !independentChunk(chunk) {
				continue
			}
			if vectorizeChunk(r, chunk, scalarKind) {
				changed = true
			}
		}
	}
	return changed
}

// independentChunk rejects a chunk if any member directly depends on
// another member of the same chunk, which would make the synthesized
// vector op's own lane its input.
func independentChunk(chunk []*ir.Node) bool {
	set := make(map[*ir.Node]bool, len(chunk))
	for _, n := range chunk {
		set[n] = true
	}
	for _, n := range chunk {
		for _, in := range n.Inputs() {
			if set[in] {
				return false
			}
		}
	}
	return true
}

func vectorizeChunk(r *ir.Region, chunk []*ir.Node, scalarKind ir.DataKind) bool {
	m := r.Module()
	ctx := m.Context()
	tr := ctx.Types()

	scalarType := ir.TypeID(scalarKind)
	vecType, err := tr.Vector(scalarType, len(chunk))
	if err != nil {
		return false
	}

	b := ir.NewBuilder(ctx)
	b.SetModule(m)
	b.SetInsertionPoint(r)

	lhsElems := make([]*ir.Node, len(chunk))
	rhsElems := make([]*ir.Node, len(chunk))
	for i, n := range chunk {
		lhsElems[i] = n.Input(0)
		rhsElems[i] = n.Input(1)
	}
	vecLhs := b.VectorBuild(vecType, lhsElems...)
	vecRhs := b.VectorBuild(vecType, rhsElems...)

	resultVecType := vecType
	if isComparisonKind(chunk[0].Kind()) {
		boolVecType, err := tr.Vector(ir.TypeBool, len(chunk))
		if err != nil {
			return false
		}
		resultVecType = boolVecType
	}

	vecOp := ctx.NewNode(chunk[0].Kind())
	vecOp.SetType(resultVecType)
	vecOp.AppendInput(vecLhs)
	vecOp.AppendInput(vecRhs)
	r.InsertBeforeTerminator(vecOp)

	for i, n := range chunk {
		idxLit := b.LitInt(ir.DI32, int64(i))
		extract := b.VectorExtract(vecOp, idxLit, n.Type())
		n.ReplaceAllUsesWith(extract)
		n.Detach()
		r.Remove(n)
	}
	return true
}
