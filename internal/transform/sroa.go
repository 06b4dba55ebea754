package transform

import (
	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// maxNaturalAlign is the alignment cap spec.md §4.10 imposes on field
// layout computation: a field's natural alignment never exceeds 8
// bytes, matching the pointer/i64/f64 width this module targets.
const maxNaturalAlign = 8

// SROA (scalar replacement of aggregates) splits a non-escaping
// STACK_ALLOC of a struct type into one STACK_ALLOC per field, when
// every access to the original allocation resolves cleanly to a single
// field offset (spec.md §4.10). It requires LAA to establish that the
// allocation never escapes; an escaped allocation's address could be
// read back through an opaque alias, which per-field splitting cannot
// preserve.
type SROA struct{}

func (SROA) Name() string { return "sroa" }

func (SROA) RequiredAnalyses() []passmgr.Analysis {
	return []passmgr.Analysis{LAAAnalysis{}}
}

func (SROA) Run(ctx *passmgr.PassContext) bool {
	m := ctx.Module().(*ir.Module)
	laa := RequireLAA(ctx)
	changed := false
	for _, r := range m.AllRegions() {
		for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
			if n.Region() == nil || n.Kind() != ir.KindStackAlloc {
				continue
			}
			if sroaAlloc(m, r, n, laa) {
				changed = true
			}
		}
	}
	return changed
}

type fieldLayout struct {
	offset int
	typ    ir.TypeID
}

// typeSizeAlign computes a type's size and alignment, capping
// alignment at maxNaturalAlign (spec.md §4.10).
func typeSizeAlign(tr *ir.TypeRegistry, id ir.TypeID) (size, align int) {
	if st, ok := tr.LookupStruct(id); ok {
		a := st.Align
		if a > maxNaturalAlign {
			a = maxNaturalAlign
		}
		return st.Size, a
	}
	if at, ok := tr.LookupArray(id); ok {
		elemSize, elemAlign := typeSizeAlign(tr, at.Elem)
		if elemAlign > maxNaturalAlign {
			elemAlign = maxNaturalAlign
		}
		return elemSize * at.Count, elemAlign
	}
	if _, ok := tr.LookupPointer(id); ok {
		return 8, 8
	}
	switch tr.Kind(id) {
	case ir.DBool, ir.DI8, ir.DU8:
		return 1, 1
	case ir.DI16, ir.DU16:
		return 2, 2
	case ir.DI32, ir.DU32, ir.DF32:
		return 4, 4
	case ir.DI64, ir.DU64, ir.DF64:
		return 8, 8
	default:
		return 8, 8
	}
}

func alignUp(offset, align int) int {
	if align <= 1 {
		return offset
	}
	rem := offset % align
	if rem == 0 {
		return offset
	}
	return offset + (align - rem)
}

// structFieldLayouts computes each field's byte offset by natural
// alignment, the same rule Builder.StackAlloc's caller is expected to
// have used when it sized the original allocation.
func structFieldLayouts(tr *ir.TypeRegistry, st ir.StructType) []fieldLayout {
	out := make([]fieldLayout, len(st.Fields))
	offset := 0
	for i, f := range st.Fields {
		_, align := typeSizeAlign(tr, f.Type)
		offset = alignUp(offset, align)
		size, _ := typeSizeAlign(tr, f.Type)
		out[i] = fieldLayout{offset: offset, typ: f.Type}
		offset += size
	}
	return out
}

// fieldAccess resolves a use of the allocation's address (either the
// allocation node itself, for field 0, or a PTR_ADD off it with a
// literal offset) to a field index, or ok=false if the access does not
// cleanly match a single field's offset.
func fieldAccess(layouts []fieldLayout, addrNode, alloc *ir.Node) (int, bool) {
	var offset int64
	if addrNode == alloc {
		offset = 0
	} else if addrNode.Kind() == ir.KindPtrAdd && addrNode.Input(0) == alloc {
		data, ok := literalData(addrNode.Input(1))
		if !ok {
			return 0, false
		}
		offset = literalAsSigned(data)
	} else {
		return 0, false
	}
	for i, fl := range layouts {
		if int64(fl.offset) == offset {
			return i, true
		}
	}
	return 0, false
}

func sroaAlloc(m *ir.Module, r *ir.Region, alloc *ir.Node, laa *analysis.LocalAliasAnalysis) bool {
	if laa.HasEscaped(alloc) {
		return false
	}
	ptrType, ok := m.Context().Types().LookupPointer(alloc.Type())
	if !ok {
		return false
	}
	st, ok := m.Context().Types().LookupStruct(ptrType.Pointee)
	if !ok {
		return false
	}
	layouts := structFieldLayouts(m.Context().Types(), st)

	// Every direct user must resolve to a known field, and the only
	// users of a PTR_ADD off alloc must themselves be loads/stores.
	type access struct {
		user      *ir.Node
		fieldIdx  int
		addrNode  *ir.Node // alloc itself, or the PTR_ADD to detach
	}
	var accesses []access
	for _, u := range alloc.Users() {
		switch u.Kind() {
		case ir.KindPtrLoad, ir.KindPtrStore:
			idx, ok := fieldAccess(layouts, alloc, alloc)
			if !ok {
				return false
			}
			accesses = append(accesses, access{user: u, fieldIdx: idx, addrNode: alloc})
		case ir.KindPtrAdd:
			idx, ok := fieldAccess(layouts, u, alloc)
			if !ok {
				return false
			}
			for _, uu := range u.Users() {
				if uu.Kind() != ir.KindPtrLoad && uu.Kind() != ir.KindPtrStore {
					return false
				}
				accesses = append(accesses, access{user: uu, fieldIdx: idx, addrNode: u})
			}
		default:
			return false // some other opaque use: refuse to split
		}
	}
	if len(accesses) == 0 {
		return false
	}

	b := ir.NewBuilder(m.Context())
	b.SetModule(m)
	b.SetInsertionPoint(r)
	fieldAllocs := make([]*ir.Node, len(layouts))
	getFieldAlloc := func(i int) *ir.Node {
		if fieldAllocs[i] == nil {
			size, _ := typeSizeAlign(m.Context().Types(), layouts[i].typ)
			sizeLit := b.LitInt(ir.DI64, int64(size))
			fieldAllocs[i] = b.StackAlloc(layouts[i].typ, sizeLit, nil)
		}
		return fieldAllocs[i]
	}

	ptrAddsToRemove := make(map[*ir.Node]bool)
	for _, a := range accesses {
		fa := getFieldAlloc(a.fieldIdx)
		addrIdx := 0
		if a.user.Kind() == ir.KindPtrStore {
			addrIdx = 1 // PtrStore's operands are (value, addr)
		}
		a.user.SetInput(addrIdx, fa)
		if a.addrNode != alloc {
			ptrAddsToRemove[a.addrNode] = true
		}
	}
	for ptrAdd := range ptrAddsToRemove {
		if len(ptrAdd.Users()) == 0 {
			ptrAdd.Detach()
			ptrAdd.Region().Remove(ptrAdd)
		}
	}
	if len(alloc.Users()) == 0 {
		alloc.Detach()
		r.Remove(alloc)
	}
	return true
}
