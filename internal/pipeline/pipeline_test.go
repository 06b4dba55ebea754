package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
)

func TestRunModuleFoldsConstantsToFixedPoint(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, _ := b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropDriver)
	b.SetInsertionPoint(body)
	x := b.LitInt(ir.DI32, 2)
	y := b.LitInt(ir.DI32, 3)
	sum := b.Add(x, y)
	z := b.LitInt(ir.DI32, 4)
	total := b.Add(sum, z)
	ret := b.RetValue(total)

	RunModule(m, DefaultOptions())

	data, ok := ret.Input(0).Data()
	require.True(t, ok, "the whole constant expression should have folded to a single literal")
	assert.Equal(t, int64(9), data.AsInt())
}

func TestRunProgramRemovesUnreachableFunction(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	unreachable, _, _ := b.CreateFunction("dead", nil, ir.TypeI32, false, ir.PropNone)
	b.RetValue(b.LitInt(ir.DI32, 1))
	b.SetInsertionPoint(m.Root())

	_, driverBody, _ := b.CreateFunction("main", nil, ir.TypeI32, false, ir.PropDriver)
	b.SetInsertionPoint(driverBody)
	b.RetValue(b.LitInt(ir.DI32, 0))

	RunProgram([]*ir.Module{m}, DefaultOptions())

	assert.Nil(t, unreachable.Region(), "a function unreachable from any driver/export entry point should be swept by the final IPO pass")
}

func TestRunProgramInlinesAndFoldsCallWithLiteralArgument(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	addOne, addBody, addParams := b.CreateFunction("add_one", []ir.TypeID{ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(addBody)
	one := b.LitInt(ir.DI32, 1)
	sum := b.Add(addParams[0], one)
	b.RetValue(sum)

	b.SetInsertionPoint(m.Root())
	_, driverBody, _ := b.CreateFunction("main", nil, ir.TypeI32, false, ir.PropDriver)
	b.SetInsertionPoint(driverBody)
	five := b.LitInt(ir.DI32, 5)
	r1 := b.Call(addOne, five)
	r2 := b.Call(addOne, five)
	total := b.Add(r1, r2)
	ret := b.RetValue(total)

	RunProgram([]*ir.Module{m}, DefaultOptions())

	data, ok := ret.Input(0).Data()
	require.True(t, ok, "add_one(5)+add_one(5) should fold all the way down to a single literal 12")
	assert.Equal(t, int64(12), data.AsInt())
}
