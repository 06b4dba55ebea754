package transform

import (
	"bloom/internal/analysis"
	"bloom/internal/ir"
	"bloom/internal/passmgr"
)

// sccpLattice is a node's interprocedural constant-propagation state
// (spec.md §4.15): TOP (not yet known), CONSTANT (a single known
// value), or BOTTOM (provably not constant).
type sccpLattice int

const (
	sccpTop sccpLattice = iota
	sccpConstant
	sccpBottom
)

type sccpValue struct {
	state sccpLattice
	data  ir.TypedData
}

// meet implements TOP⊓x=x, BOTTOM⊓x=BOTTOM, CONST(a)⊓CONST(b)=CONST(a)
// if a=b else BOTTOM.
func meet(a, b sccpValue) sccpValue {
	if a.state == sccpTop {
		return b
	}
	if b.state == sccpTop {
		return a
	}
	if a.state == sccpBottom || b.state == sccpBottom {
		return sccpValue{state: sccpBottom}
	}
	if a.data.Kind == b.data.Kind && a.data.String() == b.data.String() {
		return a
	}
	return sccpValue{state: sccpBottom}
}

// IPSCCP is the interprocedural sparse conditional constant propagation
// pass (spec.md §4.15): it runs a fixed-point worklist over the
// def-use graph of every module, threading constant arguments into
// callee parameters and constant return values back into call sites
// via the call graph, then rewrites every node whose final lattice
// value is CONSTANT into a literal (and a constant-condition BRANCH
// into a JUMP).
type IPSCCP struct{}

func (IPSCCP) Name() string { return "ipsccp" }

func (IPSCCP) Run(ctx *passmgr.IPOPassContext) bool {
	changed := false
	for _, mod := range ctx.Modules() {
		m := mod.(*ir.Module)
		cg := RequireCallGraph(ctx.For(mod))
		if ipsccpModule(m, cg) {
			changed = true
		}
	}
	return changed
}

type sccpState struct {
	values       map[*ir.Node]sccpValue
	worklist     []*ir.Node
	processedCAs map[*ir.Node]bool // call sites already propagated through in this round
}

func (s *sccpState) get(n *ir.Node) sccpValue {
	if v, ok := s.values[n]; ok {
		return v
	}
	return sccpValue{state: sccpTop}
}

func (s *sccpState) setAndEnqueue(n *ir.Node, v sccpValue) {
	cur := s.get(n)
	if cur.state == v.state && (cur.state != sccpConstant || (cur.data.Kind == v.data.Kind && cur.data.String() == v.data.String())) {
		return
	}
	s.values[n] = v
	s.worklist = append(s.worklist, n.Users()...)
}

func ipsccpModule(m *ir.Module, cg *analysis.CallGraph) bool {
	s := &sccpState{
		values:       make(map[*ir.Node]sccpValue),
		processedCAs: make(map[*ir.Node]bool),
	}

	var calls []*ir.Node
	for _, r := range m.AllRegions() {
		for _, n := range r.Nodes() {
			if n.Kind() == ir.KindCall || n.Kind() == ir.KindInvoke {
				calls = append(calls, n)
			}
			if n.Kind() == ir.KindLit {
				data, _ := n.Data()
				s.values[n] = sccpValue{state: sccpConstant, data: data}
				s.worklist = append(s.worklist, n.Users()...)
			}
		}
	}

	// A callee's RET can settle after its call sites were visited, and a
	// call whose inputs never change is never queued, so every call site
	// is revisited once the worklist drains, until a round changes nothing.
	for round := 0; round < maxFixedPointIterations; round++ {
		for len(s.worklist) > 0 {
			n := s.worklist[len(s.worklist)-1]
			s.worklist = s.worklist[:len(s.worklist)-1]
			ipsccpProcess(s, m, cg, n)
		}
		s.processedCAs = make(map[*ir.Node]bool)
		for _, c := range calls {
			ipsccpCall(s, m, cg, c)
		}
		if len(s.worklist) == 0 {
			break
		}
	}

	return ipsccpRewrite(m, s)
}

func ipsccpProcess(s *sccpState, m *ir.Module, cg *analysis.CallGraph, n *ir.Node) {
	switch {
	case n.Kind() == ir.KindBnot:
		v := s.get(n.Input(0))
		switch v.state {
		case sccpConstant:
			s.setAndEnqueue(n, sccpValue{state: sccpConstant, data: evalBnot(v.data)})
		case sccpBottom:
			s.setAndEnqueue(n, sccpValue{state: sccpBottom})
		}
	case n.Kind().IsBinaryArith():
		ipsccpBinary(s, m, n, false)
	case n.Kind().IsComparison():
		ipsccpBinary(s, m, n, true)
	case n.Kind() == ir.KindBranch:
		// A constant condition doesn't make BRANCH itself constant
		// (it has no result value); the rewrite pass turns it into a
		// JUMP directly, so nothing to propagate through the lattice.
	case n.Kind() == ir.KindCall || n.Kind() == ir.KindInvoke:
		ipsccpCall(s, m, cg, n)
	}
}

func ipsccpBinary(s *sccpState, m *ir.Module, n *ir.Node, isCompare bool) {
	a, b := s.get(n.Input(0)), s.get(n.Input(1))
	if a.state == sccpBottom || b.state == sccpBottom {
		s.setAndEnqueue(n, sccpValue{state: sccpBottom})
		return
	}
	if a.state != sccpConstant || b.state != sccpConstant {
		return
	}
	if isCompare {
		evalType := combineKind(a.data.Kind, b.data.Kind)
		result := evalCompare(n.Kind(), evalType, a.data, b.data)
		s.setAndEnqueue(n, sccpValue{state: sccpConstant, data: result})
		return
	}
	evalType := m.Context().Types().Kind(n.Type())
	result, ok := evalArith(n.Kind(), evalType, a.data, b.data)
	if !ok {
		// division/modulo by zero: provably not a usable constant.
		s.setAndEnqueue(n, sccpValue{state: sccpBottom})
		return
	}
	s.setAndEnqueue(n, sccpValue{state: sccpConstant, data: result})
}

// ipsccpCall looks up call's candidate callee(s) via the call graph —
// the single direct target for a resolved call, or (conservatively)
// every address-taken function for an indirect one — and propagates
// each constant argument into the matching PARAM node, then meets
// each candidate's RET values back into the call site's own lattice
// slot. processedCAs guards against re-entering the same call site's
// callee bodies on every single argument change within one round.
func ipsccpCall(s *sccpState, m *ir.Module, cg *analysis.CallGraph, call *ir.Node) {
	if s.processedCAs[call] {
		return
	}
	s.processedCAs[call] = true

	var candidates []*ir.Node
	if callee := call.Input(0); callee != nil && callee.Kind() == ir.KindFunction {
		candidates = []*ir.Node{callee}
	} else {
		for _, fn := range m.Functions() {
			if cg.IsAddressTaken(fn) {
				candidates = append(candidates, fn)
			}
		}
	}

	args := callArgs(call)
	for _, callee := range candidates {
		body, ok := callee.Body()
		if !ok {
			continue
		}
		for _, p := range orderedParams(body) {
			if p.ParamIndex() >= len(args) {
				continue
			}
			arg := args[p.ParamIndex()]
			v := s.get(arg)
			if v.state == sccpTop {
				continue
			}
			s.setAndEnqueue(p, meet(s.get(p), v))
		}

		for _, r := range allFunctionRegions(body) {
			if ret := r.Terminator(); ret != nil && ret.Kind() == ir.KindRet && len(ret.Inputs()) > 0 {
				v := s.get(ret.Input(0))
				if v.state != sccpTop {
					s.setAndEnqueue(call, meet(s.get(call), v))
				}
			}
		}
	}
}

func allFunctionRegions(body *ir.Region) []*ir.Region {
	out := []*ir.Region{body}
	for _, c := range body.Children() {
		out = append(out, allFunctionRegions(c)...)
	}
	return out
}

// ipsccpRewrite replaces every node whose final lattice value is
// CONSTANT with a literal (except LIT/ENTRY/EXIT/FUNCTION/PARAM/RET/
// JUMP/INVOKE, which the lattice never meaningfully rewrites), and
// turns a constant-condition BRANCH into a JUMP.
func ipsccpRewrite(m *ir.Module, s *sccpState) bool {
	changed := false
	for _, r := range m.AllRegions() {
		b := ir.NewBuilder(m.Context())
		b.SetModule(m)
		b.SetInsertionPoint(r)
		for _, n := range append([]*ir.Node(nil), r.Nodes()...) {
			if n.Region() == nil {
				continue
			}
			if n.Kind() == ir.KindBranch {
				cond := s.get(n.Input(0))
				if cond.state == sccpConstant && cond.data.Kind == ir.DBool {
					target := n.Input(2)
					if cond.data.AsBool() {
						target = n.Input(1)
					}
					jump := m.Context().NewNode(ir.KindJump)
					jump.SetType(ir.TypeVoid)
					jump.AppendInput(target)
					r.ReplaceNode(n, jump, true)
					changed = true
				}
				continue
			}
			if !ipsccpRewritable(n) {
				continue
			}
			v := s.get(n)
			if v.state != sccpConstant {
				continue
			}
			lit := buildLiteral(b, v.data)
			if lit == nil {
				continue
			}
			replaceWithLiteral(r, n, lit)
			changed = true
		}
	}
	return changed
}

// ipsccpRewritable matches spec.md §4.15 step 5's exclusion list
// verbatim: literal/entry/exit/function/param/ret/jump/invoke are
// never rewritten into a literal, regardless of lattice state. A CALL
// whose result lattice resolved to CONSTANT across every reachable RET
// is deliberately left rewritable — replacing it folds away a pure
// call the same way any other constant-valued node gets folded.
func ipsccpRewritable(n *ir.Node) bool {
	switch n.Kind() {
	case ir.KindLit, ir.KindEntry, ir.KindExit, ir.KindFunction, ir.KindParam,
		ir.KindRet, ir.KindJump, ir.KindInvoke:
		return false
	}
	return true
}
