package passmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult struct {
	invalidatedBy map[string]bool
}

func (r fakeResult) InvalidatedBy(transform string) bool { return r.invalidatedBy[transform] }

func TestTypedRoundTrip(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	SetTypedResult[fakeResult](ctx, fakeResult{invalidatedBy: map[string]bool{"cse": true}})

	got, ok := GetTyped[fakeResult](ctx)
	require.True(t, ok)
	assert.True(t, got.invalidatedBy["cse"])
}

func TestInvalidateByDropsMatchingResults(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	SetTypedResult[fakeResult](ctx, fakeResult{invalidatedBy: map[string]bool{"cse": true}})
	ctx.SetKeyed("laa", fakeResult{invalidatedBy: map[string]bool{"cse": true}})

	ctx.InvalidateBy("cse")

	_, ok := GetTyped[fakeResult](ctx)
	assert.False(t, ok, "typed result invalidated by cse should be dropped")
	_, ok = ctx.Keyed("laa")
	assert.False(t, ok, "keyed result invalidated by cse should be dropped")
}

func TestInvalidateByLeavesUnaffectedResults(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	ctx.SetKeyed("callgraph", fakeResult{invalidatedBy: map[string]bool{"inline": true}})

	ctx.InvalidateBy("cse")

	_, ok := ctx.Keyed("callgraph")
	assert.True(t, ok, "result not invalidated by cse should survive")
}

func TestMarkPreservedExemptsOneInvalidation(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	SetTypedResult[fakeResult](ctx, fakeResult{invalidatedBy: map[string]bool{"cse": true}})

	MarkTypedPreserved[fakeResult](ctx)
	ctx.InvalidateBy("cse")
	_, ok := GetTyped[fakeResult](ctx)
	assert.True(t, ok, "a preserved result should survive the invalidation it was preserved for")

	// Preservation is one-shot: a second invalidation for the same
	// transform, without a fresh MarkPreserved, drops it.
	SetTypedResult[fakeResult](ctx, fakeResult{invalidatedBy: map[string]bool{"cse": true}})
	ctx.InvalidateBy("cse")
	_, ok = GetTyped[fakeResult](ctx)
	assert.False(t, ok, "preservation should not carry over to the next invalidation")
}

func TestStatsIncrAndSnapshot(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	ctx.Incr("nodes_folded", 3)
	ctx.Incr("nodes_folded", 2)

	snap := ctx.Snapshot()
	assert.Equal(t, int64(5), snap["nodes_folded"])

	snap["nodes_folded"] = 100
	assert.Equal(t, int64(5), ctx.Snapshot()["nodes_folded"], "Snapshot should return a copy")
}

func TestModuleRoundTrip(t *testing.T) {
	ctx := NewPassContext("module-a", nil)
	assert.Equal(t, "module-a", ctx.Module())
}
