// Package transform implements Bloom's intra-module and interprocedural
// optimization passes — constant folding, instruction combining, CSE,
// PRE, SROA, SLP vectorization, DCE, function specialization, inlining,
// and IPSCCP (spec.md §4.6-§4.15) — wired through the package passmgr
// fabric so each pass's analysis dependencies are scheduled and cached
// automatically.
package transform

import (
	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

const laaName = "laa"
const callGraphName = "callgraph"
const specCacheName = "specialize-cache"

// laaResult adapts analysis.LocalAliasAnalysis to passmgr.AnalysisResult.
// Per spec.md §9(c), an LAA result is invalidated by every transform
// unconditionally: any rewrite can change a pointer's provenance or
// escape status, and a transform-by-transform refinement would risk a
// stale alias relation surviving a rewrite that should have voided it.
type laaResult struct {
	*analysis.LocalAliasAnalysis
}

func (laaResult) InvalidatedBy(string) bool { return true }

// LAAAnalysis computes and caches local alias analysis under the name
// "laa" — CSE and SROA list it as required, so running either
// auto-schedules it if missing.
type LAAAnalysis struct{}

func (LAAAnalysis) Name() string { return laaName }

func (LAAAnalysis) Run(ctx *passmgr.PassContext) (passmgr.AnalysisResult, error) {
	m := ctx.Module().(*ir.Module)
	return laaResult{analysis.Analyze(m)}, nil
}

// RequireLAA fetches the cached LAA result from ctx, computing and
// caching it first if missing. Passes call this directly instead of
// going through RequiredAnalyses when they only need LAA conditionally.
func RequireLAA(ctx *passmgr.PassContext) *analysis.LocalAliasAnalysis {
	if cached, ok := ctx.Keyed(laaName); ok {
		return cached.(laaResult).LocalAliasAnalysis
	}
	result, _ := LAAAnalysis{}.Run(ctx)
	ctx.SetKeyed(laaName, result)
	return result.(laaResult).LocalAliasAnalysis
}

// callGraphResult adapts analysis.CallGraph to passmgr.AnalysisResult.
// Unlike LAA, the call graph only changes shape when an interprocedural
// transform adds, removes, or redirects a call site.
type callGraphResult struct {
	*analysis.CallGraph
}

func (callGraphResult) InvalidatedBy(transform string) bool {
	switch transform {
	case "specialize", "inline", "ipo-dce":
		return true
	default:
		return false
	}
}

// CallGraphAnalysis computes and caches the call graph under the name
// "callgraph".
type CallGraphAnalysis struct{}

func (CallGraphAnalysis) Name() string { return callGraphName }

func (CallGraphAnalysis) Run(ctx *passmgr.PassContext) (passmgr.AnalysisResult, error) {
	m := ctx.Module().(*ir.Module)
	return callGraphResult{analysis.Build(m)}, nil
}

// RequireCallGraph fetches the cached call graph, building it first if
// missing.
func RequireCallGraph(ctx *passmgr.PassContext) *analysis.CallGraph {
	if cached, ok := ctx.Keyed(callGraphName); ok {
		return cached.(callGraphResult).CallGraph
	}
	result, _ := CallGraphAnalysis{}.Run(ctx)
	ctx.SetKeyed(callGraphName, result)
	return result.(callGraphResult).CallGraph
}

// specializationCache adapts FunctionSpecializer's clone cache to
// passmgr.AnalysisResult. Unlike LAA and the call graph it is never
// invalidated: the cache key already folds in the original function's
// identity and the exact constant bits being specialized on, so a
// stale entry is never reused for the wrong pattern, and it should
// persist for the PassContext's whole lifetime the way the original
// FunctionSpecializer's specialization_cache member does across a
// pass's repeated invocations under RunToFixedPoint.
type specializationCache struct {
	clones map[string]*ir.Node
}

func (specializationCache) InvalidatedBy(string) bool { return false }

// requireSpecCache fetches the cached clone map from ctx, creating it
// first if missing.
func requireSpecCache(ctx *passmgr.PassContext) specializationCache {
	if cached, ok := ctx.Keyed(specCacheName); ok {
		return cached.(specializationCache)
	}
	c := specializationCache{clones: make(map[string]*ir.Node)}
	ctx.SetKeyed(specCacheName, c)
	return c
}
