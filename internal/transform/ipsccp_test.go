package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

func TestIPSCCPRewritesConstantConditionBranchToJump(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, _ := b.CreateFunction("f", nil, ir.TypeVoid, false, ir.PropNone)
	b.SetInsertionPoint(body)
	one := b.LitInt(ir.DI32, 1)
	two := b.LitInt(ir.DI32, 1)
	cond := b.Eq(one, two)
	thenR, elseR := b.CreateIf(cond)
	b.SetInsertionPoint(thenR)
	b.Ret()
	b.SetInsertionPoint(elseR)
	b.Ret()

	ctx := passmgr.NewIPOPassContext([]any{m}, nil)
	changed := IPSCCP{}.Run(ctx)
	require.True(t, changed)
	assert.Equal(t, ir.KindJump, body.Terminator().Kind(), "a literal-true comparison condition should rewrite BRANCH to JUMP")
}

func TestIPSCCPFoldsCallWithConstantReturnAcrossAllPaths(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	constFn, constBody, _ := b.CreateFunction("answer", nil, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(constBody)
	b.RetValue(b.LitInt(ir.DI32, 42))

	b.SetInsertionPoint(m.Root())
	_, callerBody, _ := b.CreateFunction("caller", nil, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(callerBody)
	call := b.Call(constFn)
	ret := b.RetValue(call)

	ctx := passmgr.NewIPOPassContext([]any{m}, nil)
	changed := IPSCCP{}.Run(ctx)
	require.True(t, changed)

	data, ok := literalData(ret.Input(0))
	require.True(t, ok, "the call's constant return value should have been folded into a literal")
	assert.Equal(t, int64(42), data.AsInt())
}
