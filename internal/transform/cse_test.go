package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
)

func TestCSEDeduplicatesIdenticalExpressions(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32, ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	sum1 := b.Add(params[0], params[1])
	sum2 := b.Add(params[0], params[1])
	total := b.Add(sum1, sum2)
	ret := b.RetValue(total)
	_ = ret

	changed := runPass(t, m, CSE{})
	require.True(t, changed)
	assert.Equal(t, sum1, total.Input(0))
	assert.Equal(t, sum1, total.Input(1), "the second identical Add should have collapsed onto the first")
}

func TestCSEDoesNotMergeAcrossRegions(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32, ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	cond := b.Lt(params[0], params[1])
	thenR, elseR := b.CreateIf(cond)

	b.SetInsertionPoint(thenR)
	thenSum := b.Add(params[0], params[1])
	b.RetValue(thenSum)

	b.SetInsertionPoint(elseR)
	elseSum := b.Add(params[0], params[1])
	b.RetValue(elseSum)

	runPass(t, m, CSE{})

	assert.NotEqual(t, thenSum.ID(), elseSum.ID(), "CSE is per-region and should not merge across if.then/if.else")
}
