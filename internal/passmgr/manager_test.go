package passmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAnalysis struct {
	name string
	runs *int
}

func (a countingAnalysis) Name() string { return a.name }
func (a countingAnalysis) Run(ctx *PassContext) (AnalysisResult, error) {
	*a.runs++
	return fakeResult{}, nil
}

// fixedRunsPass fires for exactly n RunOnce calls, then reports no
// further changes — enough to exercise both the changed and
// fixed-point-reached branches of RunToFixedPoint.
type fixedRunsPass struct {
	passName  string
	required  []Analysis
	remaining int
}

func (p *fixedRunsPass) Name() string                 { return p.passName }
func (p *fixedRunsPass) RequiredAnalyses() []Analysis { return p.required }
func (p *fixedRunsPass) Run(ctx *PassContext) bool {
	if p.remaining <= 0 {
		return false
	}
	p.remaining--
	return true
}

func TestRunOnceSchedulesMissingAnalysisOnce(t *testing.T) {
	runs := 0
	pm := NewPassManager(WithPasses(&fixedRunsPass{
		passName: "cse",
		required:  []Analysis{countingAnalysis{name: "laa", runs: &runs}},
		remaining: 1,
	}))
	ctx := NewPassContext("m", nil)

	pm.RunOnce(ctx)
	assert.Equal(t, 1, runs, "analysis should run once to satisfy the requirement")

	_, cached := ctx.Keyed("laa")
	assert.True(t, cached, "analysis result should be cached under its name")
}

func TestRunOnceDoesNotRerunCachedAnalysis(t *testing.T) {
	runs := 0
	analysis := countingAnalysis{name: "laa", runs: &runs}
	pm := NewPassManager(WithPasses(
		&fixedRunsPass{passName: "cse", required: []Analysis{analysis}, remaining: 1},
		&fixedRunsPass{passName: "pre", required: []Analysis{analysis}, remaining: 1},
	))
	ctx := NewPassContext("m", nil)

	pm.RunOnce(ctx)
	assert.Equal(t, 1, runs, "both passes share one cached analysis result")
}

func TestRunOnceInvalidatesAfterChange(t *testing.T) {
	runs := 0
	analysis := countingAnalysis{name: "laa", runs: &runs}
	cse := &fixedRunsPass{passName: "laa", required: nil, remaining: 1}
	pre := &fixedRunsPass{passName: "pre", required: []Analysis{analysis}, remaining: 1}
	pm := NewPassManager(WithPasses(cse, pre))
	ctx := NewPassContext("m", nil)
	ctx.SetKeyed("laa", fakeResult{invalidatedBy: map[string]bool{"laa": true}})

	pm.RunOnce(ctx)

	// cse (named "laa" here to share an invalidation key) changed the
	// module, so the cached "laa" result should have been dropped and
	// then recomputed fresh to satisfy pre's requirement.
	require.Equal(t, 1, runs)
}

func TestRunToFixedPointStopsWhenNoChange(t *testing.T) {
	p := &fixedRunsPass{passName: "constfold", remaining: 3}
	pm := NewPassManager(WithPasses(p))
	ctx := NewPassContext("m", nil)

	iterations := pm.RunToFixedPoint(ctx, 100)
	assert.Equal(t, 4, iterations, "3 changing iterations plus the one that observes no change")
}

func TestRunToFixedPointRespectsIterationBudget(t *testing.T) {
	p := &fixedRunsPass{passName: "constfold", remaining: 1000}
	pm := NewPassManager(WithPasses(p))
	ctx := NewPassContext("m", nil)

	iterations := pm.RunToFixedPoint(ctx, 5)
	assert.Equal(t, 5, iterations)
}
