package ir

// ModuleID is a stable, Context-scoped module identifier.
type ModuleID uint64

// Module is a translation unit: a root region, a function list, a
// read-only-data region, and string-literal interning (spec.md §3).
// All nodes in a Module originate from its owning Context.
type Module struct {
	id   ModuleID
	name string
	ctx  *Context

	root      *Region
	rodata    *Region
	functions []*Node

	stringLiterals map[string]*Node
}

// ID returns the module's stable identifier.
func (m *Module) ID() ModuleID { return m.id }

// Name returns the module's name.
func (m *Module) Name() string { return m.name }

// Context returns the owning Context.
func (m *Module) Context() *Context { return m.ctx }

// Root returns the module's root region.
func (m *Module) Root() *Region { return m.root }

// ReadOnlyData returns the module's dedicated read-only-data region,
// where string literals are content-addressed (spec.md §3).
func (m *Module) ReadOnlyData() *Region { return m.rodata }

// Functions returns the module's FUNCTION nodes in declaration order.
func (m *Module) Functions() []*Node { return m.functions }

// AddFunction registers fn (a FUNCTION node) with the module.
func (m *Module) AddFunction(fn *Node) {
	if fn.Kind() != KindFunction {
		badPrecondition("Module.AddFunction", "node %d is not a FUNCTION node", fn.id)
	}
	m.functions = append(m.functions, fn)
}

// RemoveFunction drops fn from the module's function list. It does not
// touch fn's node graph (the caller is responsible for detaching it
// from the root region and any remaining users, e.g. via IPO dead
// function elimination).
func (m *Module) RemoveFunction(fn *Node) {
	for i, f := range m.functions {
		if f == fn {
			m.functions = append(m.functions[:i], m.functions[i+1:]...)
			return
		}
	}
}

// FunctionByName returns the module's FUNCTION node named name, if
// any.
func (m *Module) FunctionByName(name string) (*Node, bool) {
	for _, fn := range m.functions {
		if n, ok := fn.Name(m.ctx); ok && n == name {
			return fn, true
		}
	}
	return nil, false
}

// InternStringLiteral returns the (possibly newly created) LIT node in
// the read-only-data region carrying value s, content-addressed by
// string value.
func (m *Module) InternStringLiteral(s string) *Node {
	if existing, ok := m.stringLiterals[s]; ok {
		return existing
	}
	n := m.ctx.allocNode(KindLit)
	n.SetType(TypeString)
	n.SetData(String(s))
	m.rodata.Append(n)
	m.stringLiterals[s] = n
	return n
}

// AllRegions returns every region in the module (root, read-only-data,
// and every descendant, including each function's regions) in a
// pre-order walk.
func (m *Module) AllRegions() []*Region {
	var out []*Region
	m.walkRegions(func(r *Region) bool {
		out = append(out, r)
		return true
	})
	return out
}

// walkRegions performs a pre-order walk over every region reachable
// from the module's root and read-only-data regions, plus every
// function's own region tree (a FUNCTION node's regions are not
// children of root in the region tree; they are rooted independently,
// one per function, via Builder). visit returning false stops the
// walk early.
func (m *Module) walkRegions(visit func(*Region) bool) {
	stop := false
	var walk func(r *Region)
	walk = func(r *Region) {
		if stop || r == nil {
			return
		}
		if !visit(r) {
			stop = true
			return
		}
		for _, c := range r.children {
			walk(c)
			if stop {
				return
			}
		}
	}
	walk(m.root)
	if !stop {
		walk(m.rodata)
	}
	for _, fn := range m.functions {
		if stop {
			return
		}
		if body, ok := fn.Body(); ok {
			walk(body)
		}
	}
}
