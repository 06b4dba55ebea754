package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloom/internal/ir"
)

func TestPREHoistsExpressionCommonToBothBranches(t *testing.T) {
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

	changed := runPass(t, m, PRE{})
	require.True(t, changed)

	var hoisted *ir.Node
	for _, n := range body.Nodes() {
		if n.Kind() == ir.KindAdd {
			hoisted = n
		}
	}
	require.NotNil(t, hoisted, "the shared Add should have been hoisted into the common parent region")
	assert.Nil(t, thenSum.Region(), "the then-branch's original Add should have been removed")
	assert.Nil(t, elseSum.Region(), "the else-branch's original Add should have been removed")
}

func TestPRELeavesSingleOccurrenceAlone(t *testing.T) {
	b, m := ir.NewBuilderForModule("m")
	_, body, params := b.CreateFunction("f", []ir.TypeID{ir.TypeI32, ir.TypeI32}, ir.TypeI32, false, ir.PropNone)
	b.SetInsertionPoint(body)
	sum := b.Add(params[0], params[1])
	b.RetValue(sum)

	changed := runPass(t, m, PRE{})
	assert.False(t, changed, "a single occurrence has nothing to hoist")
}
