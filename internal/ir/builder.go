package ir

// Builder provides fluent IR construction: literals, arithmetic, memory
// ops, control flow, and structured if/while/invoke scaffolding
// (spec.md §4.1). It wraps a Context plus a current-module and
// current-insertion-region cursor; every factory method adds the node
// it creates to the cursor region (at its end, or just before its
// terminator when it already has one) and, where the node is a value
// used as the next statement's input, returns it for chaining.
type Builder struct {
	ctx    *Context
	module *Module
	cursor *Region
}

// NewBuilder creates a Builder over ctx with no module or insertion
// point set; callers must SetModule before building.
func NewBuilder(ctx *Context) *Builder {
	return &Builder{ctx: ctx}
}

// Context returns the Builder's owning Context.
func (b *Builder) Context() *Context { return b.ctx }

// Module returns the Builder's current module.
func (b *Builder) Module() *Module { return b.module }

// SetModule sets the current module and resets the insertion point to
// its root region.
func (b *Builder) SetModule(m *Module) {
	b.module = m
	b.cursor = m.root
}

// InsertionPoint returns the region new nodes are currently added to.
func (b *Builder) InsertionPoint() *Region { return b.cursor }

// SetInsertionPoint moves the cursor to r, which must belong to the
// current module.
func (b *Builder) SetInsertionPoint(r *Region) {
	if r.module != b.module {
		badPrecondition("Builder.SetInsertionPoint", "region %d does not belong to the current module", r.id)
	}
	b.cursor = r
}

func (b *Builder) requireCursor(op string) {
	if b.cursor == nil {
		badPrecondition(op, "no insertion point set; call SetModule/SetInsertionPoint first")
	}
}

func (b *Builder) newNode(kind Kind) *Node {
	b.requireCursor("Builder.newNode")
	return b.ctx.allocNode(kind)
}

func (b *Builder) emit(n *Node) *Node {
	b.cursor.InsertBeforeTerminator(n)
	return n
}

// --- literal construction, content-addressed within the cursor region ---

func findLiteral(r *Region, data TypedData, typ TypeID) *Node {
	for _, n := range r.nodes {
		if n.Kind() != KindLit || n.typ != typ {
			continue
		}
		if existing, ok := n.Data(); ok && existing.Equal(data) {
			return n
		}
	}
	return nil
}

func (b *Builder) lit(data TypedData, typ TypeID) *Node {
	b.requireCursor("Builder.lit")
	if existing := findLiteral(b.cursor, data, typ); existing != nil {
		return existing
	}
	n := b.ctx.allocNode(KindLit)
	n.SetType(typ)
	n.SetData(data)
	return b.emit(n)
}

// LitBool creates (or reuses) a BOOL literal in the cursor region.
func (b *Builder) LitBool(v bool) *Node { return b.lit(Bool(v), TypeBool) }

// LitInt creates (or reuses) a signed-integer literal of the given kind
// (DI8/DI16/DI32/DI64) in the cursor region.
func (b *Builder) LitInt(kind DataKind, v int64) *Node { return b.lit(Int(kind, v), TypeID(kind)) }

// LitUint creates (or reuses) an unsigned-integer literal.
func (b *Builder) LitUint(kind DataKind, v uint64) *Node { return b.lit(Uint(kind, v), TypeID(kind)) }

// LitFloat creates (or reuses) a floating-point literal.
func (b *Builder) LitFloat(kind DataKind, v float64) *Node { return b.lit(Float(kind, v), TypeID(kind)) }

// LitString creates (or reuses) a STRING literal in the cursor region.
// For string constants meant to be shared module-wide, prefer
// Module.InternStringLiteral, which pools them in the read-only-data
// region instead of per-region.
func (b *Builder) LitString(v string) *Node { return b.lit(String(v), TypeString) }

// --- type promotion ---

func bitWidth(k DataKind) int {
	switch k {
	case DI8, DU8:
		return 8
	case DI16, DU16:
		return 16
	case DI32, DU32, DBool:
		return 32
	case DI64, DU64:
		return 64
	case DF32:
		return 32
	case DF64:
		return 64
	default:
		return 0
	}
}

func widenSmallIntegral(k DataKind) DataKind {
	switch k {
	case DBool, DI8, DU8, DI16, DU16:
		return DI32
	default:
		return k
	}
}

// promoteTypes implements spec.md §4.1's arithmetic promotion: identical
// types pass through; bool/i8/i16/u8/u16 promote to i32; mixed
// signed/unsigned of the same rank prefer the unsigned; floating types
// beat integral; f64 beats f32.
func promoteTypes(tr *TypeRegistry, a, b TypeID) TypeID {
	if a == b {
		return a
	}
	ka, kb := tr.Kind(a), tr.Kind(b)
	if ka.isComposite() || kb.isComposite() {
		// Pointer arithmetic and similar composite-result operations
		// pick the non-composite operand's type only when meaningful;
		// Builder's PtrAdd etc. never call promoteTypes, so reaching
		// here with a composite is a caller error.
		badPrecondition("ir.promoteTypes", "cannot promote composite types %s/%s", ka, kb)
	}
	ka, kb = widenSmallIntegral(ka), widenSmallIntegral(kb)
	if ka == kb {
		return TypeID(ka)
	}
	if ka.isFloat() || kb.isFloat() {
		switch {
		case ka == DF64 || kb == DF64:
			return TypeID(DF64)
		case ka.isFloat() && !kb.isFloat():
			return TypeID(ka)
		case kb.isFloat() && !ka.isFloat():
			return TypeID(kb)
		default:
			return TypeID(DF32)
		}
	}
	wa, wb := bitWidth(ka), bitWidth(kb)
	if wa != wb {
		if wa > wb {
			return TypeID(ka)
		}
		return TypeID(kb)
	}
	// Same width, mixed signedness: unsigned wins.
	if !ka.isSigned() {
		return TypeID(ka)
	}
	return TypeID(kb)
}

// --- binary / unary / comparison ---

func (b *Builder) binArith(kind Kind, lhs, rhs *Node) *Node {
	n := b.newNode(kind)
	n.SetType(promoteTypes(b.ctx.types, lhs.Type(), rhs.Type()))
	n.AppendInput(lhs)
	n.AppendInput(rhs)
	return b.emit(n)
}

func (b *Builder) Add(lhs, rhs *Node) *Node  { return b.binArith(KindAdd, lhs, rhs) }
func (b *Builder) Sub(lhs, rhs *Node) *Node  { return b.binArith(KindSub, lhs, rhs) }
func (b *Builder) Mul(lhs, rhs *Node) *Node  { return b.binArith(KindMul, lhs, rhs) }
func (b *Builder) Div(lhs, rhs *Node) *Node  { return b.binArith(KindDiv, lhs, rhs) }
func (b *Builder) Mod(lhs, rhs *Node) *Node  { return b.binArith(KindMod, lhs, rhs) }
func (b *Builder) Band(lhs, rhs *Node) *Node { return b.binArith(KindBand, lhs, rhs) }
func (b *Builder) Bor(lhs, rhs *Node) *Node  { return b.binArith(KindBor, lhs, rhs) }
func (b *Builder) Bxor(lhs, rhs *Node) *Node { return b.binArith(KindBxor, lhs, rhs) }
func (b *Builder) Bshl(lhs, rhs *Node) *Node { return b.binArith(KindBshl, lhs, rhs) }
func (b *Builder) Bshr(lhs, rhs *Node) *Node { return b.binArith(KindBshr, lhs, rhs) }

// Bnot creates a bitwise-not of x, preserving x's type.
func (b *Builder) Bnot(x *Node) *Node {
	n := b.newNode(KindBnot)
	n.SetType(x.Type())
	n.AppendInput(x)
	return b.emit(n)
}

func (b *Builder) cmp(kind Kind, lhs, rhs *Node) *Node {
	n := b.newNode(kind)
	n.SetType(TypeBool)
	n.AppendInput(lhs)
	n.AppendInput(rhs)
	return b.emit(n)
}

func (b *Builder) Eq(lhs, rhs *Node) *Node  { return b.cmp(KindEq, lhs, rhs) }
func (b *Builder) Neq(lhs, rhs *Node) *Node { return b.cmp(KindNeq, lhs, rhs) }
func (b *Builder) Lt(lhs, rhs *Node) *Node  { return b.cmp(KindLt, lhs, rhs) }
func (b *Builder) Lte(lhs, rhs *Node) *Node { return b.cmp(KindLte, lhs, rhs) }
func (b *Builder) Gt(lhs, rhs *Node) *Node  { return b.cmp(KindGt, lhs, rhs) }
func (b *Builder) Gte(lhs, rhs *Node) *Node { return b.cmp(KindGte, lhs, rhs) }

// --- memory ---

// Load reads resultType from addr (non-pointer-typed "direct" load used
// for variable slots the front-end models without explicit pointers).
func (b *Builder) Load(addr *Node, resultType TypeID) *Node {
	n := b.newNode(KindLoad)
	n.SetType(resultType)
	n.AppendInput(addr)
	return b.emit(n)
}

// Store writes value to addr.
func (b *Builder) Store(value, addr *Node) *Node {
	n := b.newNode(KindStore)
	n.SetType(TypeVoid)
	n.AppendInput(value)
	n.AppendInput(addr)
	return b.emit(n)
}

// PtrLoad reads resultType through a pointer-typed addr.
func (b *Builder) PtrLoad(addr *Node, resultType TypeID) *Node {
	n := b.newNode(KindPtrLoad)
	n.SetType(resultType)
	n.AppendInput(addr)
	return b.emit(n)
}

// PtrStore writes value through a pointer-typed addr.
func (b *Builder) PtrStore(value, addr *Node) *Node {
	n := b.newNode(KindPtrStore)
	n.SetType(TypeVoid)
	n.AppendInput(value)
	n.AppendInput(addr)
	return b.emit(n)
}

// PtrAdd computes base+offset, preserving base's pointer type.
func (b *Builder) PtrAdd(base, offset *Node) *Node {
	n := b.newNode(KindPtrAdd)
	n.SetType(base.Type())
	n.AppendInput(base)
	n.AppendInput(offset)
	return b.emit(n)
}

// AddrOf takes the address of variable, producing a pointer to its
// type.
func (b *Builder) AddrOf(variable *Node) *Node {
	ptrType, err := b.ctx.types.Pointer(variable.Type(), 0)
	if err != nil {
		panic(err)
	}
	n := b.newNode(KindAddrOf)
	n.SetType(ptrType)
	n.AppendInput(variable)
	return b.emit(n)
}

// StackAlloc reserves stack storage for a value of pointee, sized by
// size (and optionally aligned by align), producing a pointer to
// pointee.
func (b *Builder) StackAlloc(pointee TypeID, size *Node, align *Node) *Node {
	ptrType, err := b.ctx.types.Pointer(pointee, 0)
	if err != nil {
		panic(err)
	}
	n := b.newNode(KindStackAlloc)
	n.SetType(ptrType)
	n.AppendInput(size)
	if align != nil {
		n.AppendInput(align)
	}
	return b.emit(n)
}

// HeapAlloc allocates pointee-typed heap storage via allocatorFn,
// sized by size (and optionally aligned by align).
func (b *Builder) HeapAlloc(pointee TypeID, allocatorFn, size, align *Node) *Node {
	ptrType, err := b.ctx.types.Pointer(pointee, 0)
	if err != nil {
		panic(err)
	}
	n := b.newNode(KindHeapAlloc)
	n.SetType(ptrType)
	n.AppendInput(allocatorFn)
	n.AppendInput(size)
	if align != nil {
		n.AppendInput(align)
	}
	return b.emit(n)
}

// Free releases a heap allocation.
func (b *Builder) Free(ptr *Node) *Node {
	n := b.newNode(KindFree)
	n.SetType(TypeVoid)
	n.AppendInput(ptr)
	return b.emit(n)
}

// ReinterpretCast reinterprets value as targetType without changing its
// bit pattern (used for pointer-copy edges LAA follows, among other
// things).
func (b *Builder) ReinterpretCast(value *Node, targetType TypeID) *Node {
	n := b.newNode(KindReinterpretCast)
	n.SetType(targetType)
	n.AppendInput(value)
	return b.emit(n)
}

// --- atomics ---

// AtomicLoad reads resultType from addr with the given memory
// ordering value.
func (b *Builder) AtomicLoad(addr, ordering *Node, resultType TypeID) *Node {
	n := b.newNode(KindAtomicLoad)
	n.SetType(resultType)
	n.AppendInput(addr)
	n.AppendInput(ordering)
	return b.emit(n)
}

// AtomicStore writes value to addr with the given memory ordering.
func (b *Builder) AtomicStore(value, addr, ordering *Node) *Node {
	n := b.newNode(KindAtomicStore)
	n.SetType(TypeVoid)
	n.AppendInput(value)
	n.AppendInput(addr)
	n.AppendInput(ordering)
	return b.emit(n)
}

// AtomicCas performs a compare-and-swap at addr, replacing expected
// with newVal under the given ordering, producing a BOOL success flag.
func (b *Builder) AtomicCas(addr, expected, newVal, ordering *Node) *Node {
	n := b.newNode(KindAtomicCas)
	n.SetType(TypeBool)
	n.AppendInput(addr)
	n.AppendInput(expected)
	n.AppendInput(newVal)
	n.AppendInput(ordering)
	return b.emit(n)
}

// --- functions, params, calls ---

// CreateFunction interns paramTypes/retType as a function signature,
// creates a FUNCTION node in the module's root region, allocates an
// independent body region with one PARAM node per parameter, and moves
// the cursor to the body region. The returned params slice is in
// declaration order.
func (b *Builder) CreateFunction(name string, paramTypes []TypeID, retType TypeID, vararg bool, props Properties) (fn *Node, body *Region, params []*Node) {
	if b.module == nil {
		badPrecondition("Builder.CreateFunction", "no module set")
	}
	sig, err := b.ctx.types.Function(retType, paramTypes, vararg)
	if err != nil {
		panic(err)
	}
	fn = b.ctx.allocNode(KindFunction)
	fn.SetType(sig)
	fn.SetData(FunctionSignature(sig))
	fn.SetName(b.ctx, name)
	fn.AddProperties(props)
	b.module.root.Append(fn)
	b.module.AddFunction(fn)

	body = b.ctx.newRegion(b.module, nil, name+".entry")
	fn.SetBody(body)

	params = make([]*Node, len(paramTypes))
	for i, pt := range paramTypes {
		p := b.ctx.allocNode(KindParam)
		p.SetType(pt)
		p.paramIndex = i
		body.Append(p)
		params[i] = p
	}

	b.cursor = body
	return fn, body, params
}

func functionSignature(ctx *Context, fn *Node) (FunctionType, bool) {
	data, ok := fn.Data()
	if !ok || data.Kind != DFunction {
		return FunctionType{}, false
	}
	return ctx.types.LookupFunction(data.FunctionSig())
}

func (b *Builder) callResultType(fn *Node) TypeID {
	if sig, ok := functionSignature(b.ctx, fn); ok {
		return sig.Return
	}
	return TypeVoid
}

// Call emits a direct or indirect CALL to fn with args.
func (b *Builder) Call(fn *Node, args ...*Node) *Node {
	n := b.newNode(KindCall)
	n.SetType(b.callResultType(fn))
	n.AppendInput(fn)
	for _, a := range args {
		n.AppendInput(a)
	}
	return b.emit(n)
}

// Ret emits a value-less RET.
func (b *Builder) Ret() *Node {
	n := b.newNode(KindRet)
	n.SetType(TypeVoid)
	return b.emit(n)
}

// RetValue emits a RET returning value.
func (b *Builder) RetValue(value *Node) *Node {
	n := b.newNode(KindRet)
	n.SetType(value.Type())
	n.AppendInput(value)
	return b.emit(n)
}

// --- vectors ---

// VectorBuild assembles elems into a vector of the given vector type.
func (b *Builder) VectorBuild(vecType TypeID, elems ...*Node) *Node {
	n := b.newNode(KindVectorBuild)
	n.SetType(vecType)
	for _, e := range elems {
		n.AppendInput(e)
	}
	return b.emit(n)
}

// VectorExtract extracts the scalar at indexLit (a literal index) from
// vec.
func (b *Builder) VectorExtract(vec, indexLit *Node, resultType TypeID) *Node {
	n := b.newNode(KindVectorExtract)
	n.SetType(resultType)
	n.AppendInput(vec)
	n.AppendInput(indexLit)
	return b.emit(n)
}

// VectorSplat broadcasts value into every lane of a count-wide vector.
func (b *Builder) VectorSplat(value *Node, count int) *Node {
	vt, err := b.ctx.types.Vector(value.Type(), count)
	if err != nil {
		panic(err)
	}
	n := b.newNode(KindVectorSplat)
	n.SetType(vt)
	n.AppendInput(value)
	return b.emit(n)
}

// --- structured control-flow scaffolding ---

// CreateIf synthesizes a then/else region pair as children of the
// cursor region and wires a BRANCH on cond between them (spec.md
// §4.1). The cursor is left unchanged; callers typically
// SetInsertionPoint(thenRegion) to build the taken path, then
// SetInsertionPoint(elseRegion) for the other, and finally JUMP both
// into a continuation region of their own construction.
func (b *Builder) CreateIf(cond *Node) (thenRegion, elseRegion *Region) {
	b.requireCursor("Builder.CreateIf")
	thenRegion = b.cursor.NewChild("if.then")
	elseRegion = b.cursor.NewChild("if.else")
	br := b.newNode(KindBranch)
	br.SetType(TypeVoid)
	br.AppendInput(cond)
	br.AppendInput(thenRegion.Entry())
	br.AppendInput(elseRegion.Entry())
	b.emit(br)
	return thenRegion, elseRegion
}

// Jump emits an unconditional JUMP from the cursor to target's entry.
func (b *Builder) Jump(target *Region) *Node {
	n := b.newNode(KindJump)
	n.SetType(TypeVoid)
	n.AppendInput(target.Entry())
	return b.emit(n)
}

// CreateWhileLoop synthesizes a header/body/exit region triple as
// children of the cursor region, jumps into the header, moves the
// cursor there to let condBuilder compute the loop condition, then
// wires the header's BRANCH to body/exit and leaves the cursor
// positioned at body for the caller to build the loop's statements.
// The caller must finish the loop with CloseLoopBody once the body is
// built, which emits the back-edge JUMP to header and leaves the
// cursor at exit.
func (b *Builder) CreateWhileLoop(condBuilder func() *Node) (header, body, exit *Region) {
	b.requireCursor("Builder.CreateWhileLoop")
	header = b.cursor.NewChild("loop.header")
	exit = b.cursor.NewChild("loop.exit")
	b.Jump(header)

	b.cursor = header
	cond := condBuilder()

	body = header.NewChild("loop.body")
	br := b.newNode(KindBranch)
	br.SetType(TypeVoid)
	br.AppendInput(cond)
	br.AppendInput(body.Entry())
	br.AppendInput(exit.Entry())
	b.emit(br)

	b.cursor = body
	return header, body, exit
}

// CloseLoopBody emits the loop back-edge (a JUMP from the current
// cursor to header's entry — an intentionally unstructured edge, since
// body is a child of header rather than the reverse) and moves the
// cursor to exit.
func (b *Builder) CloseLoopBody(header, exit *Region) {
	b.Jump(header)
	b.cursor = exit
}

// CreateInvokeBlocks synthesizes a normal/exception region pair as
// children of the cursor region and wires an INVOKE on fn/args between
// them (spec.md §3's INVOKE operand convention: args then
// normal-entry then exception-entry).
func (b *Builder) CreateInvokeBlocks(fn *Node, args []*Node) (call *Node, normalRegion, exceptionRegion *Region) {
	b.requireCursor("Builder.CreateInvokeBlocks")
	normalRegion = b.cursor.NewChild("invoke.normal")
	exceptionRegion = b.cursor.NewChild("invoke.exception")

	n := b.newNode(KindInvoke)
	n.SetType(b.callResultType(fn))
	n.AppendInput(fn)
	for _, a := range args {
		n.AppendInput(a)
	}
	n.AppendInput(normalRegion.Entry())
	n.AppendInput(exceptionRegion.Entry())
	call = b.emit(n)
	return call, normalRegion, exceptionRegion
}
