package ir

import (
	"testing"
)

func TestBuilderLiteralContentAddressing(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	a := b.LitInt(DI32, 42)
	c := b.LitInt(DI32, 42)
	if a != c {
		t.Fatalf("two literals with identical content should be the same node")
	}
	d := b.LitInt(DI32, 43)
	if d == a {
		t.Fatalf("literals with different content reused the same node")
	}
}

func TestBuilderLiteralAddressingIsPerRegion(t *testing.T) {
	b, m := NewBuilderForModule("m")
	outer := b.LitInt(DI32, 1)

	fn, body, _ := b.CreateFunction("f", nil, TypeVoid, false, PropNone)
	_ = fn
	b.SetInsertionPoint(body)
	inner := b.LitInt(DI32, 1)

	if inner == outer {
		t.Fatalf("literal interning leaked across regions")
	}
	b.SetInsertionPoint(m.Root())
}

func TestNodeUsersInputsBijection(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	x := b.LitInt(DI32, 1)
	y := b.LitInt(DI32, 2)
	sum := b.Add(x, y)

	if len(x.Users()) != 1 || x.Users()[0] != sum {
		t.Fatalf("x should have exactly one user: sum")
	}
	if len(sum.Inputs()) != 2 || sum.Inputs()[0] != x || sum.Inputs()[1] != y {
		t.Fatalf("sum's inputs should be [x, y]")
	}
}

func TestNodeSelfReferentialBijection(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	x := b.LitInt(DI32, 7)
	double := b.Add(x, x)

	if len(double.Inputs()) != 2 || double.Inputs()[0] != x || double.Inputs()[1] != x {
		t.Fatalf("x+x should have two input slots both pointing at x")
	}
	if len(x.Users()) != 2 {
		t.Fatalf("x should appear twice in its own user list for x+x, got %d", len(x.Users()))
	}
}

func TestReplaceAllUsesWith(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	x := b.LitInt(DI32, 1)
	y := b.LitInt(DI32, 2)
	sum := b.Add(x, y)
	repl := b.LitInt(DI32, 99)

	x.ReplaceAllUsesWith(repl)

	if len(x.Users()) != 0 {
		t.Fatalf("x should have no users after ReplaceAllUsesWith")
	}
	if sum.Input(0) != repl {
		t.Fatalf("sum's first operand should now be repl")
	}
	found := false
	for _, u := range repl.Users() {
		if u == sum {
			found = true
		}
	}
	if !found {
		t.Fatalf("repl should now be a user-linked operand of sum")
	}
}

func TestPromoteTypesWidensSmallIntegral(t *testing.T) {
	tr := newTypeRegistry()
	got := promoteTypes(tr, TypeBool, TypeBool)
	if got != TypeID(DI32) {
		t.Fatalf("bool+bool should promote to i32, got %s", tr.TypeString(got))
	}
}

func TestPromoteTypesFloatBeatsIntegral(t *testing.T) {
	tr := newTypeRegistry()
	got := promoteTypes(tr, TypeI32, TypeID(DF32))
	if got != TypeID(DF32) {
		t.Fatalf("i32+f32 should promote to f32, got %s", tr.TypeString(got))
	}
}

func TestPromoteTypesF64BeatsF32(t *testing.T) {
	tr := newTypeRegistry()
	got := promoteTypes(tr, TypeID(DF32), TypeID(DF64))
	if got != TypeID(DF64) {
		t.Fatalf("f32+f64 should promote to f64, got %s", tr.TypeString(got))
	}
}

func TestPromoteTypesSameWidthMixedSignPrefersUnsigned(t *testing.T) {
	tr := newTypeRegistry()
	got := promoteTypes(tr, TypeID(DI32), TypeID(DU32))
	if got != TypeID(DU32) {
		t.Fatalf("i32+u32 should promote to u32, got %s", tr.TypeString(got))
	}
}

func TestBuilderComparisonResultIsBool(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	x := b.LitInt(DI32, 1)
	y := b.LitInt(DI32, 2)
	lt := b.Lt(x, y)
	if lt.Type() != TypeBool {
		t.Fatalf("comparison result type should be BOOL, got %s", b.ctx.types.TypeString(lt.Type()))
	}
}

func TestBuilderMemoryOps(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	v := b.LitInt(DI32, 5)
	addr := b.AddrOf(v)

	ptrType, ok := b.ctx.types.LookupPointer(addr.Type())
	if !ok || ptrType.Pointee != TypeI32 {
		t.Fatalf("AddrOf should produce a pointer-to-i32 type")
	}

	store := b.Store(v, addr)
	if store.Type() != TypeVoid {
		t.Fatalf("STORE should have void result type")
	}

	load := b.Load(addr, TypeI32)
	if load.Type() != TypeI32 {
		t.Fatalf("LOAD result type should be i32")
	}
}

func TestBuilderAtomicCasResultIsBool(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	v := b.LitInt(DI32, 5)
	addr := b.AddrOf(v)
	ordering := b.LitInt(DI32, 0)
	expected := b.LitInt(DI32, 5)
	newVal := b.LitInt(DI32, 6)

	cas := b.AtomicCas(addr, expected, newVal, ordering)
	if cas.Type() != TypeBool {
		t.Fatalf("ATOMIC_CAS result type should be BOOL")
	}
}

func TestBuilderCreateFunctionParams(t *testing.T) {
	b, m := NewBuilderForModule("m")
	fn, body, params := b.CreateFunction("add", []TypeID{TypeI32, TypeI32}, TypeI32, false, PropNone)

	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}
	if params[0].ParamIndex() != 0 || params[1].ParamIndex() != 1 {
		t.Fatalf("params should carry their declaration-order index")
	}
	gotBody, ok := fn.Body()
	if !ok || gotBody != body {
		t.Fatalf("fn.Body() should return the region CreateFunction returned")
	}
	if len(m.Functions()) != 1 || m.Functions()[0] != fn {
		t.Fatalf("CreateFunction should register fn with the module")
	}
}

func TestBuilderRetValueReturnsType(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	b.CreateFunction("f", nil, TypeI32, false, PropNone)
	v := b.LitInt(DI32, 1)
	ret := b.RetValue(v)
	if ret.Type() != TypeI32 {
		t.Fatalf("RetValue's node type should track the returned value's type")
	}
	if !ret.Kind().IsTerminator() {
		t.Fatalf("RET should be classified as a terminator")
	}
}

func TestBuilderCreateIfWiresBranch(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	b.CreateFunction("f", nil, TypeVoid, false, PropNone)
	cond := b.LitBool(true)

	thenR, elseR := b.CreateIf(cond)
	if thenR.Parent() == nil || elseR.Parent() == nil {
		t.Fatalf("then/else regions should be children of the cursor region")
	}

	br := b.cursor.Terminator()
	if br == nil || br.Kind() != KindBranch {
		t.Fatalf("CreateIf should leave a BRANCH as the cursor region's terminator")
	}
	if br.Input(1) != thenR.Entry() || br.Input(2) != elseR.Entry() {
		t.Fatalf("BRANCH operands should be [cond, then.Entry(), else.Entry()]")
	}
}

func TestBuilderCreateWhileLoopWiring(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	b.CreateFunction("f", nil, TypeVoid, false, PropNone)

	i := 0
	header, body, exit := b.CreateWhileLoop(func() *Node {
		i++
		return b.LitBool(i < 3)
	})

	if header.Parent() == nil || body.Parent() != header {
		t.Fatalf("loop header/body parenting is wrong")
	}
	if b.cursor != body {
		t.Fatalf("cursor should be at loop body after CreateWhileLoop")
	}

	b.CloseLoopBody(header, exit)
	if b.cursor != exit {
		t.Fatalf("cursor should be at loop exit after CloseLoopBody")
	}

	back := body.Terminator()
	if back == nil || back.Kind() != KindJump || back.Input(0) != header.Entry() {
		t.Fatalf("loop body should end with a JUMP back to header")
	}
}

func TestBuilderCreateInvokeBlocks(t *testing.T) {
	b, m := NewBuilderForModule("m")
	callee, _, _ := b.CreateFunction("callee", nil, TypeI32, false, PropNone)
	b.RetValue(b.LitInt(DI32, 1))
	b.SetInsertionPoint(m.Root())

	caller, body, _ := b.CreateFunction("caller", nil, TypeI32, false, PropNone)
	_ = caller
	b.SetInsertionPoint(body)

	call, normal, exc := b.CreateInvokeBlocks(callee, nil)
	if call.Kind() != KindInvoke {
		t.Fatalf("CreateInvokeBlocks should emit an INVOKE")
	}
	if call.Type() != TypeI32 {
		t.Fatalf("INVOKE result type should track the callee's return type")
	}
	ins := call.Inputs()
	if ins[len(ins)-2] != normal.Entry() || ins[len(ins)-1] != exc.Entry() {
		t.Fatalf("INVOKE's last two operands should be the normal/exception entries")
	}
}

func TestRegionDominatesTreeCase(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	b.CreateFunction("f", nil, TypeVoid, false, PropNone)
	cond := b.LitBool(true)
	thenR, elseR := b.CreateIf(cond)

	if !b.cursor.Dominates(thenR) {
		t.Fatalf("entry region should dominate its then-child")
	}
	if thenR.Dominates(elseR) {
		t.Fatalf("sibling regions should not dominate each other")
	}
}

func TestRegionDominatesDetectsUnstructuredBypass(t *testing.T) {
	b, _ := NewBuilderForModule("m")
	b.CreateFunction("f", nil, TypeVoid, false, PropNone)
	cond := b.LitBool(true)
	thenR, elseR := b.CreateIf(cond)

	b.SetInsertionPoint(thenR)
	inner := thenR.NewChild("then.inner")
	b.Jump(inner)

	if !thenR.Dominates(inner) {
		t.Fatalf("thenR should dominate its own child before any bypass edge exists")
	}

	// Jump directly from elseR (a sibling outside thenR's subtree) into
	// inner, bypassing thenR.
	b.SetInsertionPoint(elseR)
	b.Jump(inner)

	if thenR.Dominates(inner) {
		t.Fatalf("an unstructured jump from elseR into inner should break thenR's dominance")
	}
}
