package passmgr

// Analysis computes an AnalysisResult on demand. A Pass declares the
// analyses it needs via RequiredAnalyses; the PassManager runs and
// caches them before running the pass itself (spec.md §4.5, §4.8's
// "requesting the CSE pass auto-schedules LAA if missing").
type Analysis interface {
	// Name identifies this analysis in the context's string-keyed
	// cache (e.g. "laa", "callgraph").
	Name() string
	// Run computes the result fresh. ctx is the context the result
	// will be cached in; the analysis may read other cached results
	// from it but must not mutate them.
	Run(ctx *PassContext) (AnalysisResult, error)
}

// Pass is a single intra-module transform. Run reports whether it
// changed anything; the PassManager uses that to decide whether to
// invalidate the context and whether another fixed-point iteration is
// warranted.
type Pass interface {
	Name() string
	RequiredAnalyses() []Analysis
	Run(ctx *PassContext) bool
}
