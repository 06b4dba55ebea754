package ir

import (
	"fmt"

	"bloom/internal/diagnostics"
)

// Verify walks m and checks the testable invariants of spec.md §8:
// user/input bijection, region containment, per-region literal
// uniqueness, the ENTRY-sentinel-is-first convention, and dominance of
// every BRANCH/JUMP/INVOKE target. It never panics on a violation —
// unlike the BAD_PRECONDITION family, a verifier failure is a
// caller-requested check of possibly-untrusted IR (e.g. after a new
// pass is wired in), so every finding is reported as a
// diagnostics.Diagnostic instead.
func Verify(m *Module) *diagnostics.Group {
	g := diagnostics.NewGroup()
	v := &verifier{module: m, group: g}
	v.checkRegions(m.Root())
	v.checkRegions(m.ReadOnlyData())
	for _, fn := range m.Functions() {
		if body, ok := fn.Body(); ok {
			v.checkRegions(body)
		}
	}
	v.checkBijection()
	v.checkDominance()
	return g
}

type verifier struct {
	module *Module
	group  *diagnostics.Group
}

func (v *verifier) checkRegions(r *Region) {
	v.checkEntrySentinel(r)
	v.checkContainment(r)
	v.checkLiteralUniqueness(r)
	for _, c := range r.Children() {
		v.checkRegions(c)
	}
}

func (v *verifier) checkEntrySentinel(r *Region) {
	if len(r.nodes) == 0 || r.nodes[0].Kind() != KindEntry {
		v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeMissingEntrySentinel,
			fmt.Sprintf("region %q (id %d) does not begin with an ENTRY sentinel", r.Name(), r.ID())))
	}
}

func (v *verifier) checkContainment(r *Region) {
	for _, n := range r.nodes {
		if n.Region() != r {
			v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeRegionContainmentViolation,
				fmt.Sprintf("node %d appears in region %d's list but its own Region() pointer disagrees", n.ID(), r.ID())))
		}
	}
}

func (v *verifier) checkLiteralUniqueness(r *Region) {
	type key struct {
		typ TypeID
		val string
	}
	seen := make(map[key]*Node)
	for _, n := range r.nodes {
		if n.Kind() != KindLit {
			continue
		}
		data, ok := n.Data()
		if !ok {
			continue
		}
		k := key{typ: n.Type(), val: data.String()}
		if other, dup := seen[k]; dup {
			v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeDuplicateLiteral,
				fmt.Sprintf("region %q contains two distinct LIT nodes (%d, %d) with equal value and type", r.Name(), other.ID(), n.ID())))
			continue
		}
		seen[k] = n
	}
}

func (v *verifier) checkBijection() {
	for _, n := range v.module.ctx.nodes {
		for _, in := range n.inputs {
			if in == nil {
				continue
			}
			if !containsNode(in.users, n) {
				v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeBijectionViolation,
					fmt.Sprintf("node %d has node %d as an input, but %d is not in %d's users", n.ID(), in.ID(), n.ID(), in.ID())))
			}
		}
		for _, u := range n.users {
			if !containsNode(u.inputs, n) {
				v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeBijectionViolation,
					fmt.Sprintf("node %d has node %d as a user, but %d is not in %d's inputs", n.ID(), u.ID(), n.ID(), u.ID())))
			}
		}
	}
}

func containsNode(list []*Node, target *Node) bool {
	for _, n := range list {
		if n == target {
			return true
		}
	}
	return false
}

func (v *verifier) checkDominance() {
	v.module.walkRegions(func(src *Region) bool {
		for _, n := range src.nodes {
			for _, target := range branchTargets(n) {
				if target == nil {
					continue
				}
				targetRegion := target.Region()
				if targetRegion == nil {
					continue
				}
				if isSelfOrDescendant(targetRegion, src) {
					// A back-edge (e.g. a loop body jumping to its own
					// header): target is an ancestor of the source, so
					// forward dominance does not apply.
					continue
				}
				if p := src.Parent(); p != nil && targetRegion.Parent() == p && p.Dominates(targetRegion) {
					// A sibling under a parent that dominates it (e.g. a
					// loop header branching to the loop exit).
					continue
				}
				if !src.Dominates(targetRegion) {
					v.group.Add(diagnostics.New(diagnostics.SeverityError, diagnostics.CodeDominanceViolation,
						fmt.Sprintf("node %d in region %q branches to region %q, which region %q does not dominate",
							n.ID(), src.Name(), targetRegion.Name(), src.Name())))
				}
			}
		}
		return true
	})
}
