package ir

// This file provides the package's top-level entry points: building a
// fresh Context/Module pair and rendering a module back to text.

// NewBuilderForModule creates a Context, a single Module named name
// inside it, and a Builder positioned at the module's root region —
// the common case for callers that don't need to share a Context
// across multiple modules.
func NewBuilderForModule(name string) (*Builder, *Module) {
	ctx := NewContext()
	m := ctx.NewModule(name)
	b := NewBuilder(ctx)
	b.SetModule(m)
	return b, m
}

// Dump renders m using the default (uncolored) Printer configuration
// (spec.md §6).
func Dump(m *Module) string {
	return NewPrinter(m.ctx).Print(m)
}
