package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

func TestInlinerSplicesSmallCalleeAtConstantArgCallSite(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	addOne, addBody, addParams := b.CreateFunction("add_one", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(addBody)
	one := b.LitInt(ir.DI32, 1)
	sum := b.Add(addParams[0], one)
	b.RetValue(sum)

	b.SetInsertionPoint(m.Root())
	_, callerBody, _ := b.CreateFunction("caller", nil, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(callerBody)
	five := b.LitInt(ir.DI32, 5)
	call := b.Call(addOne, five)
	ret := b.RetValue(call)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Inliner{ScoreThreshold: 3, MaxInlineSize: 30}.Run(ctx)
	require.True(t, changed)

	assert.Nil(t, call.Region(), "the inlined call site should have been removed")

	result := ret.Input(0)
	require.NotNil(t, result)
	assert.Equal(t, ir.KindAdd, result.Kind(), "the return value should now flow from the spliced callee body")
}

func TestInlinerSkipsSelfRecursiveCallSite(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	fn, body, params := b.CreateFunction("rec", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	call := b.Call(fn, params[0])
	b.RetValue(call)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Inliner{ScoreThreshold: 1, MaxInlineSize: 30}.Run(ctx)
	assert.False(t, changed, "a self-recursive call site must never be inlined")
	assert.NotNil(t, call.Region())
}

func TestInlinerSkipsCalleeWithChildRegions(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	callee, calleeBody, calleeParams := b.CreateFunction("branchy", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(calleeBody)
	cond := b.Lt(calleeParams[0], b.LitInt(ir.DI32, 0))
	thenR, elseR := b.CreateIf(cond)
	b.SetInsertionPoint(thenR)
	b.RetValue(b.LitInt(ir.DI32, 0))
	b.SetInsertionPoint(elseR)
	b.RetValue(b.LitInt(ir.DI32, 1))

	b.SetInsertionPoint(m.Root())
	_, callerBody, _ := b.CreateFunction("caller", nil, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(callerBody)
	arg := b.LitInt(ir.DI32, 5)
	call := b.Call(callee, arg)
	b.RetValue(call)

	ctx := passmgr.NewPassContext(m, nil)
	changed := Inliner{ScoreThreshold: 1, MaxInlineSize: 30}.Run(ctx)
	assert.False(t, changed, "a callee with internal child regions must be refused, never deep-cloned")
	assert.NotNil(t, call.Region())
}
