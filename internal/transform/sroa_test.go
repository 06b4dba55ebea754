package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
)

func TestSROASplitsNonEscapingStructAlloc(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	structType, err := m.Context().Types().Struct(8, 4, []ir.StructField{
		{Name: "a", Type: ir.TypeI32},
		{Name: "b", Type: ir.TypeI32},
	})
	require.NoError(t, err)

	_, body, _ := b.CreateFunction("f", nil, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)

	size := b.LitInt(ir.DI64, 8)
	alloc := b.StackAlloc(structType, size, nil)

	fieldAVal := b.LitInt(ir.DI32, 1)
	b.PtrStore(fieldAVal, alloc)
	loadA := b.PtrLoad(alloc, ir.TypeI32)

	offset := b.LitInt(ir.DI64, 4)
	fieldBAddr := b.PtrAdd(alloc, offset)
	fieldBVal := b.LitInt(ir.DI32, 2)
	b.PtrStore(fieldBVal, fieldBAddr)
	loadB := b.PtrLoad(fieldBAddr, ir.TypeI32)

	sum := b.Add(loadA, loadB)
	b.RetValue(sum)

	changed := runPass(t, m, SROA{})
	require.True(t, changed)

	assert.Nil(t, alloc.Region(), "the original aggregate allocation should have been removed")

	var allocCount int
	for _, n := range body.Nodes() {
		if n.Kind() == ir.KindStackAlloc {
			allocCount++
		}
	}
	assert.Equal(t, 2, allocCount, "SROA should have split the struct into one StackAlloc per field")
}

func TestSROALeavesEscapingAllocUntouched(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	structType, err := m.Context().Types().Struct(8, 4, []ir.StructField{
		{Name: "a", Type: ir.TypeI32},
		{Name: "b", Type: ir.TypeI32},
	})
	require.NoError(t, err)

	callee, _, _ := b.CreateFunction("sink", []ir.TypeID{ir.TypeI32}, ir.TypeVoid, false, ir.PropNone)
	b.Ret()
	b.SetInsertionPoint(m.Root())

	_, body, _ := b.CreateFunction("f", nil, ir.TypeVoid, false, ir.PropNone)
	b.SetInsertionPoint(body)
	size := b.LitInt(ir.DI64, 8)
	alloc := b.StackAlloc(structType, size, nil)

	asInt, cerr := m.Context().Types().Pointer(structType, 0)
	require.NoError(t, cerr)
	casted := b.ReinterpretCast(alloc, asInt)
	b.Call(callee, casted)
	b.Ret()

	changed := runPass(t, m, SROA{})
	assert.False(t, changed, "an allocation passed to a call has escaped and must not be split")
	assert.NotNil(t, alloc.Region())
}
