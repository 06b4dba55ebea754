// Package diagnostics formats the verifier's and the pass manager's
// reported problems for human consumption, and wraps causal Go errors
// for the few conditions (TYPE_SPACE_EXHAUSTED, malformed builder
// preconditions) that propagate as errors rather than panics or
// Diagnostics (spec.md §7).
package diagnostics

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
)

// Position is an optional source-like location a Diagnostic can
// reference. Bloom's core has no source text of its own; these values
// come from a front-end's Region.DebugInfo when one is attached.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is a single reportable problem: a severity, a stable
// code, a message, an optional location, and free-form notes. Each
// Diagnostic is stamped with a correlation ID at construction so
// multiple Diagnostics about one failure (e.g. several invariant
// violations the verifier finds in one run) can be grouped by callers
// without threading a request-scoped context object through every
// check.
type Diagnostic struct {
	Severity      Severity
	Code          string
	Message       string
	Position      Position
	Notes         []string
	CorrelationID string
}

// New constructs a Diagnostic, assigning it a fresh correlation ID.
func New(sev Severity, code, message string) Diagnostic {
	return Diagnostic{
		Severity:      sev,
		Code:          code,
		Message:       message,
		CorrelationID: ksuid.New().String(),
	}
}

// WithPosition returns a copy of d annotated with pos.
func (d Diagnostic) WithPosition(pos Position) Diagnostic {
	d.Position = pos
	return d
}

// WithNote returns a copy of d with note appended.
func (d Diagnostic) WithNote(note string) Diagnostic {
	d.Notes = append(append([]string{}, d.Notes...), note)
	return d
}

// WrapTypeError annotates a TypeRegistry (or other causal) error with
// op context, preserving the original error in the causal chain so
// errors.Cause/errors.Is still finds it.
func WrapTypeError(err error, op string) error {
	return errors.Wrapf(err, "%s", op)
}

// Group shares one correlation ID across every Diagnostic produced in
// a single verifier run or pass invocation, so a caller printing a
// batch of Diagnostics can cross-reference them.
type Group struct {
	id   string
	diag []Diagnostic
}

// NewGroup starts a fresh correlation group.
func NewGroup() *Group {
	return &Group{id: ksuid.New().String()}
}

// Add appends d to the group, overwriting its correlation ID with the
// group's shared one.
func (g *Group) Add(d Diagnostic) {
	d.CorrelationID = g.id
	g.diag = append(g.diag, d)
}

// Diagnostics returns the group's accumulated Diagnostics.
func (g *Group) Diagnostics() []Diagnostic { return g.diag }

// Empty reports whether the group has no Diagnostics (a clean run).
func (g *Group) Empty() bool { return len(g.diag) == 0 }
