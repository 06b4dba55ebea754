// Package passmgr implements the pass-context/pass-manager fabric that
// schedules analyses and transforms over a module (spec.md §4.5): a
// PassContext caches analysis results and knows how to invalidate them
// when a transform runs, and a PassManager drives an ordered pass list
// to a fixed point, auto-scheduling each pass's required analyses.
package passmgr

import (
	"reflect"

	"github.com/tliron/commonlog"
)

// AnalysisResult is a cached analysis outcome. Every result reports
// whether a given transform invalidates it and which modules it
// depends on, so the context can drop stale results without the
// analysis author wiring up bespoke invalidation logic by hand.
type AnalysisResult interface {
	// InvalidatedBy reports whether running the named transform
	// invalidates this result.
	InvalidatedBy(transform string) bool
}

// PassContext stores analysis results for a single module in two
// indexes: a typed index (keyed by the Go type of the result) and a
// string-keyed index (for parameterized or ad-hoc lookups, and for the
// Analysis-by-name scheduling PassManager.Run uses; the transform
// package caches LocalAliasAnalysis and CallGraph here by name). A stats map
// accumulates integer counters passes and analyses update as they run.
type PassContext struct {
	module any // typically *ir.Module; see NewPassContext

	typed          map[reflect.Type]AnalysisResult
	keyed          map[string]AnalysisResult
	preservedTyped map[reflect.Type]bool
	preservedKeyed map[string]bool

	stats  map[string]int64
	logger commonlog.Logger
}

// NewPassContext creates an empty PassContext for module. module is
// typically an *ir.Module; PassContext does not depend on package ir
// directly so that analyses (which do depend on ir) can be defined
// without a cycle — callers retrieve it back via Module().
func NewPassContext(module any, logger commonlog.Logger) *PassContext {
	if logger == nil {
		logger = commonlog.GetLogger("bloom.passmanager")
	}
	return &PassContext{
		module:         module,
		typed:          make(map[reflect.Type]AnalysisResult),
		keyed:          make(map[string]AnalysisResult),
		preservedTyped: make(map[reflect.Type]bool),
		preservedKeyed: make(map[string]bool),
		stats:          make(map[string]int64),
		logger:         logger,
	}
}

// Module returns the value NewPassContext was built with, typically an
// *ir.Module. Callers type-assert it back to the concrete type.
func (c *PassContext) Module() any { return c.module }

// Typed looks up a cached result by its Go type.
func (c *PassContext) Typed(key reflect.Type) (AnalysisResult, bool) {
	r, ok := c.typed[key]
	return r, ok
}

// SetTyped caches result under its Go type.
func (c *PassContext) SetTyped(key reflect.Type, result AnalysisResult) {
	c.typed[key] = result
}

// Keyed looks up a cached result by an arbitrary string key (an
// analysis name, or a parameterized key such as "dom:<region>").
func (c *PassContext) Keyed(key string) (AnalysisResult, bool) {
	r, ok := c.keyed[key]
	return r, ok
}

// SetKeyed caches result under key.
func (c *PassContext) SetKeyed(key string, result AnalysisResult) {
	c.keyed[key] = result
}

// MarkPreserved exempts the typed result at key from the next
// InvalidateBy call — a transform that proves it maintains a
// particular analysis's invariants calls this just before returning,
// instead of paying to recompute that analysis from scratch.
func (c *PassContext) MarkPreserved(key reflect.Type) { c.preservedTyped[key] = true }

// MarkPreservedKeyed is MarkPreserved for the string-keyed index.
func (c *PassContext) MarkPreservedKeyed(key string) { c.preservedKeyed[key] = true }

// InvalidateBy drops every cached result — typed and keyed — that
// reports itself invalidated by transform, except any explicitly
// exempted since the last call via MarkPreserved/MarkPreservedKeyed.
// The preserved sets are cleared afterward: preservation is a one-shot
// grant for the invalidation that follows it, not a standing exemption.
func (c *PassContext) InvalidateBy(transform string) {
	for key, result := range c.typed {
		if c.preservedTyped[key] {
			continue
		}
		if result.InvalidatedBy(transform) {
			delete(c.typed, key)
		}
	}
	for key, result := range c.keyed {
		if c.preservedKeyed[key] {
			continue
		}
		if result.InvalidatedBy(transform) {
			delete(c.keyed, key)
		}
	}
	c.preservedTyped = make(map[reflect.Type]bool)
	c.preservedKeyed = make(map[string]bool)
}

// Incr adds delta to the named counter.
func (c *PassContext) Incr(counter string, delta int64) { c.stats[counter] += delta }

// Snapshot returns a copy of the current stats map, safe for a caller
// to inspect or print without racing a subsequent pass run.
func (c *PassContext) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(c.stats))
	for k, v := range c.stats {
		out[k] = v
	}
	return out
}

// Logger returns the commonlog.Logger this context's owning manager
// logs scheduling decisions through.
func (c *PassContext) Logger() commonlog.Logger { return c.logger }

// typedKey returns the reflect.Type identifying T's typed cache slot.
func typedKey[T AnalysisResult]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// GetTyped fetches a typed analysis result of type T, if one is
// cached and hasn't been invalidated.
func GetTyped[T AnalysisResult](c *PassContext) (T, bool) {
	var zero T
	r, ok := c.Typed(typedKey[T]())
	if !ok {
		return zero, false
	}
	v, ok := r.(T)
	return v, ok
}

// SetTypedResult caches result under its own type T.
func SetTypedResult[T AnalysisResult](c *PassContext, result T) {
	c.SetTyped(typedKey[T](), result)
}

// MarkTypedPreserved exempts T's cached result from the next
// InvalidateBy call.
func MarkTypedPreserved[T AnalysisResult](c *PassContext) {
	c.MarkPreserved(typedKey[T]())
}
