package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

func runPass(t *testing.T, m *ir.Module, p passmgr.Pass) bool {
	t.Helper()
	ctx := passmgr.NewPassContext(m, nil)
	return p.Run(ctx)
}

func TestConstantFoldingAddsLiterals(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropNone)
	x := b.LitInt(ir.DI32, 2)
	y := b.LitInt(ir.DI32, 3)
	sum := b.Add(x, y)
	ret := b.RetValue(sum)

	changed := runPass(t, m, ConstantFolding{})
	require.True(t, changed)

	data, ok := literalData(ret.Input(0))
	require.True(t, ok, "RET's operand should have folded to a literal")
	assert.Equal(t, int64(5), data.AsInt())
}

func TestConstantFoldingBranchWithLiteralConditionBecomesJump(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, _ := b.CreateFunction("f", nil, ir.TypeVoid, false, ir.PropNone)
	cond := b.LitBool(true)
	thenR, elseR := b.CreateIf(cond)
	b.SetInsertionPoint(thenR)
	b.Ret()
	b.SetInsertionPoint(elseR)
	b.Ret()

	br := body.Terminator()
	require.Equal(t, ir.KindBranch, br.Kind())

	changed := runPass(t, m, ConstantFolding{})
	assert.True(t, changed)
	assert.Equal(t, ir.KindJump, body.Terminator().Kind(), "literal-true BRANCH should fold to JUMP")
}

func TestConstantFoldingLeavesDivisionByZeroUnfolded(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropNone)
	x := b.LitInt(ir.DI32, 10)
	zero := b.LitInt(ir.DI32, 0)
	div := b.Div(x, zero)
	ret := b.RetValue(div)

	runPass(t, m, ConstantFolding{})

	assert.Equal(t, ir.KindDiv, ret.Input(0).Kind(), "division by zero must not fold")
}
