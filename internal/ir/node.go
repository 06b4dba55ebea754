package ir

// Kind is the closed enumeration of IR operation kinds (spec.md §3).
type Kind uint8

const (
	KindLit Kind = iota
	KindEntry
	KindExit
	KindParam
	KindFunction

	// Binary arithmetic/bitwise set.
	KindAdd
	KindSub
	KindMul
	KindDiv
	KindMod
	KindBand
	KindBor
	KindBxor
	KindBshl
	KindBshr

	// Unary.
	KindBnot

	// Comparisons.
	KindEq
	KindNeq
	KindLt
	KindLte
	KindGt
	KindGte

	// Memory.
	KindLoad
	KindStore
	KindPtrLoad
	KindPtrStore
	KindPtrAdd
	KindAddrOf
	KindStackAlloc
	KindHeapAlloc
	KindFree

	// Atomics.
	KindAtomicLoad
	KindAtomicStore
	KindAtomicCas

	// Calls.
	KindCall
	KindInvoke
	KindRet

	// Control.
	KindBranch
	KindJump

	// Casts.
	KindReinterpretCast

	// Vector.
	KindVectorBuild
	KindVectorExtract
	KindVectorSplat
)

var kindNames = [...]string{
	KindLit: "LIT", KindEntry: "ENTRY", KindExit: "EXIT", KindParam: "PARAM", KindFunction: "FUNCTION",
	KindAdd: "ADD", KindSub: "SUB", KindMul: "MUL", KindDiv: "DIV", KindMod: "MOD",
	KindBand: "BAND", KindBor: "BOR", KindBxor: "BXOR", KindBshl: "BSHL", KindBshr: "BSHR",
	KindBnot: "BNOT",
	KindEq:   "EQ", KindNeq: "NEQ", KindLt: "LT", KindLte: "LTE", KindGt: "GT", KindGte: "GTE",
	KindLoad: "LOAD", KindStore: "STORE", KindPtrLoad: "PTR_LOAD", KindPtrStore: "PTR_STORE",
	KindPtrAdd: "PTR_ADD", KindAddrOf: "ADDR_OF", KindStackAlloc: "STACK_ALLOC",
	KindHeapAlloc: "HEAP_ALLOC", KindFree: "FREE",
	KindAtomicLoad: "ATOMIC_LOAD", KindAtomicStore: "ATOMIC_STORE", KindAtomicCas: "ATOMIC_CAS",
	KindCall: "CALL", KindInvoke: "INVOKE", KindRet: "RET",
	KindBranch: "BRANCH", KindJump: "JUMP",
	KindReinterpretCast: "REINTERPRET_CAST",
	KindVectorBuild:      "VECTOR_BUILD", KindVectorExtract: "VECTOR_EXTRACT", KindVectorSplat: "VECTOR_SPLAT",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "?"
}

// IsBinaryArith reports whether k is one of the ten binary
// arithmetic/bitwise operations.
func (k Kind) IsBinaryArith() bool {
	return k >= KindAdd && k <= KindBshr
}

// IsComparison reports whether k is one of the six comparison kinds.
func (k Kind) IsComparison() bool {
	return k >= KindEq && k <= KindGte
}

// IsCommutative reports whether operand order is irrelevant for k
// (spec.md §4.8's CSE commutative set).
func (k Kind) IsCommutative() bool {
	switch k {
	case KindAdd, KindMul, KindBand, KindBor, KindBxor, KindEq, KindNeq:
		return true
	default:
		return false
	}
}

// IsTerminator reports whether k ends a region's (non-sentinel)
// instruction sequence: RET, BRANCH, JUMP, or INVOKE.
func (k Kind) IsTerminator() bool {
	switch k {
	case KindRet, KindBranch, KindJump, KindInvoke:
		return true
	default:
		return false
	}
}

// IsMemoryOp reports whether k belongs to the memory family: the
// load/store family, allocation, free, and the address-producing
// PTR_ADD and ADDR_OF. Atomics are memory ops too.
func (k Kind) IsMemoryOp() bool {
	switch k {
	case KindLoad, KindStore, KindPtrLoad, KindPtrStore, KindPtrAdd, KindAddrOf,
		KindStackAlloc, KindHeapAlloc, KindFree,
		KindAtomicLoad, KindAtomicStore, KindAtomicCas:
		return true
	default:
		return false
	}
}

// Properties is a bitset of per-node flags (spec.md §3).
type Properties uint8

const (
	PropNone       Properties = 0
	PropNoOptimize Properties = 1 << iota
	PropDriver
	PropExport
	PropExtern
	PropStatic
)

// Has reports whether all bits of mask are set in p.
func (p Properties) Has(mask Properties) bool { return p&mask == mask }

// NodeID is a stable, Context-scoped node identifier. Identity survives
// detachment ("deletion") until the owning Context is torn down.
type NodeID uint64

// Node is a single IR operation: a kind tag, a result type, an ordered
// input list, a user back-edge list, a properties bitset, an optional
// interned name, and an optional TypedData payload (spec.md §3).
//
// Node deliberately exposes no public struct fields. Every mutation
// that would break the user/input bijection invariant (spec.md §3,
// §8.3) goes through a handful of connection primitives below, or
// through Region.ReplaceNode / Builder, which are the only other
// callers allowed to mutate inputs/users directly.
type Node struct {
	id     NodeID
	kind   Kind
	typ    TypeID
	inputs []*Node
	users  []*Node
	props  Properties

	hasName bool
	name    StringID

	hasData bool
	data    TypedData

	region *Region

	// paramIndex holds a PARAM node's declaration-order position, used
	// by FunctionSpecializer and the inliner to process parameters
	// sorted by position (spec.md §4.13, §4.14).
	paramIndex int

	// funcBody is set only on KindFunction nodes: the root region of
	// the function's body. A FUNCTION node is itself a value (callable
	// via CALL/INVOKE's inputs[0]) living in some enclosing region
	// (typically a module's root region), distinct from the region
	// tree that holds its body.
	funcBody *Region
}

// Body returns a FUNCTION node's body region, if attached.
func (n *Node) Body() (*Region, bool) {
	if n.kind != KindFunction || n.funcBody == nil {
		return nil, false
	}
	return n.funcBody, true
}

// SetBody attaches body as a FUNCTION node's body region.
func (n *Node) SetBody(body *Region) {
	if n.kind != KindFunction {
		badPrecondition("Node.SetBody", "node %d is not a FUNCTION node", n.id)
	}
	n.funcBody = body
}

// ID returns the node's stable identifier.
func (n *Node) ID() NodeID { return n.id }

// ParamIndex returns a PARAM node's declaration-order position. It is
// meaningless for any other kind.
func (n *Node) ParamIndex() int { return n.paramIndex }

// SetParamIndex sets a PARAM node's declaration-order position.
// Builder.CreateFunction sets this directly when constructing a
// function's parameter list; transforms that clone a function body
// (specialization, inlining) use this exported setter to preserve it
// on the clone.
func (n *Node) SetParamIndex(i int) { n.paramIndex = i }

// Region returns the node's owning region, or nil if the node has been
// detached from every region (a "deleted" node whose storage the
// Context still retains).
func (n *Node) Region() *Region { return n.region }

// Kind returns the node's operation kind.
func (n *Node) Kind() Kind { return n.kind }

// Type returns the node's result type.
func (n *Node) Type() TypeID { return n.typ }

// SetType sets the node's result type. Builder calls this once at
// construction time; transforms may call it when rewriting a node in
// place (e.g. instcombine narrowing a comparison's operand type never
// changes the BOOL result, but strength reduction may change an
// arithmetic op's result type when reusing a node shell).
func (n *Node) SetType(t TypeID) { n.typ = t }

// Inputs returns the node's ordered operand list. Callers must not
// mutate the returned slice; use SetInput/AppendInput/RemoveInput.
func (n *Node) Inputs() []*Node { return n.inputs }

// Input returns the i'th operand, or nil if i is out of range.
func (n *Node) Input(i int) *Node {
	if i < 0 || i >= len(n.inputs) {
		return nil
	}
	return n.inputs[i]
}

// Users returns the node's use back-edges. Multiple entries for the
// same user reflect multiple operand slots referencing n (spec.md §3
// invariant: "a ∈ b.users iff b ∈ a.inputs (multiset equality)").
func (n *Node) Users() []*Node { return n.users }

// Properties returns the node's properties bitset.
func (n *Node) Properties() Properties { return n.props }

// SetProperties overwrites the node's properties bitset.
func (n *Node) SetProperties(p Properties) { n.props = p }

// AddProperties ORs mask into the node's properties bitset.
func (n *Node) AddProperties(mask Properties) { n.props |= mask }

// IsLocked reports whether NO_OPTIMIZE forbids any transform from
// touching this node (spec.md §3).
func (n *Node) IsLocked() bool { return n.props.Has(PropNoOptimize) }

// Name returns the node's interned name, if any.
func (n *Node) Name(ctx *Context) (string, bool) {
	if !n.hasName {
		return "", false
	}
	return ctx.MustString(n.name), true
}

// SetName interns and attaches a name to the node.
func (n *Node) SetName(ctx *Context, name string) {
	n.name = ctx.Intern(name)
	n.hasName = true
}

// Data returns the node's TypedData payload, if any (set for LIT and
// FUNCTION nodes).
func (n *Node) Data() (TypedData, bool) {
	if !n.hasData {
		return TypedData{}, false
	}
	return n.data, true
}

// SetData attaches a TypedData payload to the node.
func (n *Node) SetData(d TypedData) {
	n.data = d
	n.hasData = true
}

// AppendInput appends v as a new operand and records n in v's user
// list, maintaining the bijection invariant. v may be nil only for
// operand slots the spec documents as optional-empty (e.g. a RET with
// no value); a nil entry contributes no user back-edge.
func (n *Node) AppendInput(v *Node) {
	n.inputs = append(n.inputs, v)
	if v != nil {
		v.users = append(v.users, n)
	}
}

// SetInput rewrites operand slot i from its previous value to v,
// removing exactly one occurrence of n from the old operand's user
// list and adding one to v's. It panics if i is out of range.
func (n *Node) SetInput(i int, v *Node) {
	if i < 0 || i >= len(n.inputs) {
		badPrecondition("Node.SetInput", "operand index %d out of range (len=%d)", i, len(n.inputs))
	}
	old := n.inputs[i]
	if old == v {
		return
	}
	if old != nil {
		old.removeOneUser(n)
	}
	n.inputs[i] = v
	if v != nil {
		v.users = append(v.users, n)
	}
}

// removeOneUser removes exactly one occurrence of user from n.users
// (a node may appear multiple times if it uses n in more than one
// operand slot).
func (n *Node) removeOneUser(user *Node) {
	for i, u := range n.users {
		if u == user {
			n.users = append(n.users[:i], n.users[i+1:]...)
			return
		}
	}
}

// ReplaceAllUsesWith rewires every user of n to use repl instead,
// preserving each user's operand-slot position and multiplicity. n
// itself is left with an empty user list and unchanged inputs; the
// caller is responsible for detaching n from the region once this
// returns (spec.md §4.6-§4.11 "rewire all users ... detach the old
// node").
func (n *Node) ReplaceAllUsesWith(repl *Node) {
	if n == repl {
		return
	}
	users := n.users
	n.users = nil
	for _, u := range users {
		for i, in := range u.inputs {
			if in == n {
				u.inputs[i] = repl
				if repl != nil {
					repl.users = append(repl.users, u)
				}
			}
		}
	}
}

// Detach removes n from every input's user list and clears n's own
// input list, fully disconnecting it from the def-use graph. It does
// not remove n from its Region's node list (see Region.Remove) and
// does not touch n's own user list — callers must have already
// redirected n's users (typically via ReplaceAllUsesWith) before
// detaching, or they will leave dangling references.
func (n *Node) Detach() {
	for _, in := range n.inputs {
		if in != nil {
			in.removeOneUser(n)
		}
	}
	n.inputs = nil
}
