package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

func TestReassociateGroupsConstantsInSimpleChain(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x := params[0]
	five := b.LitInt(ir.DI32, 5)
	three := b.LitInt(ir.DI32, 3)
	inner := b.Add(x, five)
	root := b.Add(inner, three)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	require.True(t, changed)

	// root itself was discarded; find the new top-level Add feeding Ret.
	newRoot := body.Terminator().Input(0)
	require.Equal(t, ir.KindAdd, newRoot.Kind())
	assert.Equal(t, x, newRoot.Input(0), "the variable operand should be left alone")
	constSide := newRoot.Input(1)
	assert.Equal(t, ir.KindAdd, constSide.Kind())
	assert.True(t, isConstantLeaf(constSide))
	assert.ElementsMatch(t, []*ir.Node{five, three}, constSide.Inputs())
	assert.EqualValues(t, 1, ctx.Snapshot()["reassociate.count"])
}

func TestReassociateFlattensNestedAdditionAsOneChain(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32, ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x, y := params[0], params[1]
	one := b.LitInt(ir.DI32, 1)
	two := b.LitInt(ir.DI32, 2)
	left := b.Add(x, one)
	right := b.Add(y, two)
	root := b.Add(left, right)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	require.True(t, changed)

	newRoot := body.Terminator().Input(0)
	var varSide, constSide *ir.Node
	if isConstantLeaf(newRoot.Input(1)) {
		varSide, constSide = newRoot.Input(0), newRoot.Input(1)
	} else {
		varSide, constSide = newRoot.Input(1), newRoot.Input(0)
	}
	assert.ElementsMatch(t, []*ir.Node{x, y}, varSide.Inputs())
	assert.ElementsMatch(t, []*ir.Node{one, two}, constSide.Inputs())
	// The whole two-level chain is one rewrite: the stat counts chains,
	// not individual combine nodes created.
	assert.EqualValues(t, 1, ctx.Snapshot()["reassociate.count"])
}

func TestReassociateTreatsPureConstantSubexprAsALeaf(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32, ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x, y := params[0], params[1]
	two := b.LitInt(ir.DI32, 2)
	three := b.LitInt(ir.DI32, 3)
	shared := b.Mul(two, three) // a pure-constant node, not itself a literal
	four := b.LitInt(ir.DI32, 4)
	inner := b.Add(x, shared)
	root := b.Add(inner, four)
	b.RetValue(root)
	other := b.Add(y, shared) // a second, independent use of the same shared node
	b.RetValue(other)

	require.True(t, isConstantLeaf(shared))

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	require.True(t, changed)

	newRoot := body.Terminator().Input(0)
	assert.Equal(t, x, newRoot.Input(0))
	constSide := newRoot.Input(1)
	assert.ElementsMatch(t, []*ir.Node{shared, four}, constSide.Inputs())

	// shared survives untouched and is still used by the unrelated add.
	assert.Equal(t, shared, other.Input(1))
	assert.Equal(t, two, shared.Input(0))
	assert.Equal(t, three, shared.Input(1))
}

func TestReassociateBitwiseOr(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x := params[0]
	a := b.LitInt(ir.DI32, 0x1)
	c := b.LitInt(ir.DI32, 0x2)
	inner := b.Bor(x, a)
	root := b.Bor(inner, c)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	require.True(t, changed)

	newRoot := body.Terminator().Input(0)
	require.Equal(t, ir.KindBor, newRoot.Kind())
	assert.Equal(t, x, newRoot.Input(0))
	assert.ElementsMatch(t, []*ir.Node{a, c}, newRoot.Input(1).Inputs())
}

func TestReassociateRespectsNoOptimizeOnInternalNode(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x := params[0]
	five := b.LitInt(ir.DI32, 5)
	three := b.LitInt(ir.DI32, 3)
	locked := b.Add(x, five)
	locked.SetProperties(locked.Properties() | ir.PropNoOptimize)
	root := b.Add(locked, three)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)

	// Only one constant leaf is visible once the locked subtree is
	// opaque (its own contents are never inspected), so there is
	// nothing worth regrouping.
	assert.False(t, changed)
	assert.Equal(t, locked, root.Input(0))
	assert.Equal(t, three, root.Input(1))
}

func TestReassociateLockedRootIsLeftAlone(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x := params[0]
	five := b.LitInt(ir.DI32, 5)
	three := b.LitInt(ir.DI32, 3)
	inner := b.Add(x, five)
	root := b.Add(inner, three)
	root.SetProperties(root.Properties() | ir.PropNoOptimize)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	assert.False(t, changed)
	assert.Equal(t, int64(0), ctx.Snapshot()["reassociate.count"])
}

func TestReassociateIsIdempotentOnAnAlreadyGroupedChain(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	x := params[0]
	five := b.LitInt(ir.DI32, 5)
	three := b.LitInt(ir.DI32, 3)
	constSide := b.Add(five, three)
	root := b.Add(x, constSide)
	b.RetValue(root)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Reassociate{}.Run(ctx)
	assert.False(t, changed, "a chain already partitioned into (var, const) should not be rebuilt")
	assert.Equal(t, root, body.Terminator().Input(0))
}
