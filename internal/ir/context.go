// Package ir implements Bloom's sea-of-nodes intermediate representation:
// the node/region graph, the type registry, the data payload, and the
// construction/inspection contracts every optimization pass depends on.
package ir

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
)

// ErrTypeSpaceExhausted is returned when a composite type ID space
// overflows its dense-index budget. It is a programmer error: the
// caller is interning far more distinct composite shapes than the
// 12-bit per-kind index space allows.
var ErrTypeSpaceExhausted = errors.New("TYPE_SPACE_EXHAUSTED")

// BadPreconditionError marks a violated precondition: constructing a
// node outside any region, reading a TypedData accessor of the wrong
// kind, and similar programmer errors. These are not recoverable; call
// sites that hit one have a bug, not a legitimate runtime condition.
type BadPreconditionError struct {
	Op  string
	Msg string
}

func (e *BadPreconditionError) Error() string {
	return fmt.Sprintf("BAD_PRECONDITION in %s: %s", e.Op, e.Msg)
}

func badPrecondition(op, format string, args ...interface{}) {
	panic(&BadPreconditionError{Op: op, Msg: fmt.Sprintf(format, args...)})
}

// StringID is an interned-string handle. The zero value denotes "no
// string" and is never returned by Context.Intern.
type StringID uint32

// Context owns all nodes, modules, and the type registry for one
// compilation session. Every other component in this module holds only
// non-owning references into a Context; nodes and modules are never
// freed individually, only detached, so pointer identity survives an
// entire pass pipeline. A Context must only be mutated from a single
// logical flow of control; the embedded mutex exists purely as a misuse detector, not as a
// concurrency model.
type Context struct {
	mu deadlock.Mutex

	nodes   []*Node
	modules []*Module
	types   *TypeRegistry

	strings   []string
	stringIDs map[string]StringID

	nextNodeID   uint64
	nextRegionID uint64
	nextModuleID uint64
}

// NewContext creates an empty Context with a fresh type registry and
// string table.
func NewContext() *Context {
	return &Context{
		types:     newTypeRegistry(),
		stringIDs: make(map[string]StringID),
	}
}

// Types returns the Context's type registry facade.
func (c *Context) Types() *TypeRegistry { return c.types }

// Intern returns the stable StringID for s, allocating a new entry the
// first time s is seen. Interning the empty string is legal and yields
// a distinct, reusable ID.
func (c *Context) Intern(s string) StringID {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.stringIDs[s]; ok {
		return id
	}
	c.strings = append(c.strings, s)
	id := StringID(len(c.strings))
	c.stringIDs[s] = id
	return id
}

// String resolves a previously interned StringID. It returns ("",
// false) for the zero ID or an ID not produced by this Context.
func (c *Context) String(id StringID) (string, bool) {
	if id == 0 || int(id) > len(c.strings) {
		return "", false
	}
	return c.strings[id-1], true
}

// MustString resolves id or panics; for call sites that already know
// the ID is valid (e.g. reading a Node's own Name()).
func (c *Context) MustString(id StringID) string {
	s, ok := c.String(id)
	if !ok {
		badPrecondition("Context.MustString", "unknown StringID %d", id)
	}
	return s
}

// NewModule allocates a fresh Module owned by this Context, complete
// with a root Region and a read-only-data Region for string-literal
// interning.
func (c *Context) NewModule(name string) *Module {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextModuleID
	c.nextModuleID++

	m := &Module{
		id:             ModuleID(id),
		name:           name,
		ctx:            c,
		stringLiterals: make(map[string]*Node),
	}
	m.root = c.newRegionLocked(m, nil, "root")
	m.rodata = c.newRegionLocked(m, nil, "__rodata")
	c.modules = append(c.modules, m)
	return m
}

// Modules returns every module allocated by this Context, in creation
// order.
func (c *Context) Modules() []*Module {
	out := make([]*Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// NewNode allocates a fresh node of kind kind, not yet attached to any
// region. Transform passes that rewire existing regions — rather than
// appending through a single Builder cursor — use this directly.
func (c *Context) NewNode(kind Kind) *Node { return c.allocNode(kind) }

// NewRootRegion allocates a region with no parent, owned by module m —
// the same independent-root shape Builder.CreateFunction gives a
// function body. Function specialization and inlining use this to
// build a cloned function's body region tree.
func (c *Context) NewRootRegion(m *Module, name string) *Region {
	return c.newRegion(m, nil, name)
}

// allocNode assigns a fresh stable ID and appends the node to the
// Context's arena. It does not attach the node to any region; callers
// (Builder, clone routines) are responsible for that via Region.Append
// or Region.InsertBefore.
func (c *Context) allocNode(kind Kind) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextNodeID
	c.nextNodeID++
	n := &Node{
		id:   NodeID(id),
		kind: kind,
	}
	c.nodes = append(c.nodes, n)
	return n
}

// newRegion creates a Region owned by module m with the given parent
// (nil for a module's root region) and name, with its ENTRY sentinel
// already inserted.
func (c *Context) newRegion(m *Module, parent *Region, name string) *Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newRegionLocked(m, parent, name)
}

func (c *Context) newRegionLocked(m *Module, parent *Region, name string) *Region {
	id := c.nextRegionID
	c.nextRegionID++

	r := &Region{
		id:     RegionID(id),
		name:   name,
		parent: parent,
		module: m,
	}
	if parent != nil {
		parent.children = append(parent.children, r)
	}

	entry := &Node{id: NodeID(c.nextNodeID), kind: KindEntry, region: r}
	c.nextNodeID++
	c.nodes = append(c.nodes, entry)
	r.nodes = append(r.nodes, entry)

	return r
}
