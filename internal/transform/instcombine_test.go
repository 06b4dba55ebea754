package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
)

func TestInstCombineMulByOneIsIdentity(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropNone)
	x := b.LitInt(ir.DI32, 7)
	one := b.LitInt(ir.DI32, 1)
	mul := b.Mul(x, one)
	ret := b.RetValue(mul)

	changed := runPass(t, m, InstCombine{})
	require.True(t, changed)
	assert.Equal(t, x, ret.Input(0), "x*1 should simplify to x")
}

func TestInstCombineAddZeroIsIdentity(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropNone)
	x := b.LitInt(ir.DI32, 7)
	zero := b.LitInt(ir.DI32, 0)
	add := b.Add(x, zero)
	ret := b.RetValue(add)

	changed := runPass(t, m, InstCombine{})
	require.True(t, changed)
	assert.Equal(t, x, ret.Input(0), "x+0 should simplify to x")
}

func TestInstCombineMulByPowerOfTwoBecomesShift(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	eight := b.LitInt(ir.DI32, 8)
	mul := b.Mul(params[0], eight)
	ret := b.RetValue(mul)

	changed := runPass(t, m, InstCombine{})
	require.True(t, changed)
	result := ret.Input(0)
	require.Equal(t, ir.KindBshl, result.Kind(), "x*8 should strength-reduce to a shift")
	shiftAmount, ok := literalData(result.Input(1))
	require.True(t, ok)
	assert.Equal(t, int64(3), shiftAmount.AsInt())
}

func TestInstCombineDoubleNegationCollapses(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeBool}, ir.TypeBool, false, ir.PropNone)
	b.SetInsertionPoint(body)
	once := b.Bnot(params[0])
	twice := b.Bnot(once)
	ret := b.RetValue(twice)

	changed := runPass(t, m, InstCombine{})
	require.True(t, changed)
	assert.Equal(t, params[0], ret.Input(0), "bnot(bnot(x)) should collapse to x")
}
