package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats Diagnostics the way the verifier and pass manager
// present them to a caller: a colorized "severity[code]: message"
// header, an optional "--> file:line:col" location line, and indented
// notes — the same Rust-style layout a front-end's error reporter
// uses, minus the source-line excerpt (Bloom's core never holds
// source text, only the DebugInfo a front-end chooses to attach).
type Reporter struct {
	// Color enables fatih/color styling. Off by default so tests and
	// non-terminal log sinks get stable, unstyled text.
	Color bool
}

// NewReporter creates a Reporter with coloring disabled.
func NewReporter() *Reporter {
	return &Reporter{}
}

func (r *Reporter) severityColor(sev Severity) func(a ...interface{}) string {
	if !r.Color {
		return fmt.Sprint
	}
	switch sev {
	case SeverityError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case SeverityWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgBlue, color.Bold).SprintFunc()
	}
}

func (r *Reporter) dim(s string) string {
	if !r.Color {
		return s
	}
	return color.New(color.Faint).Sprint(s)
}

// Format renders a single Diagnostic.
func (r *Reporter) Format(d Diagnostic) string {
	var out strings.Builder

	sevColor := r.severityColor(d.Severity)
	if d.Code != "" {
		fmt.Fprintf(&out, "%s[%s]: %s\n", sevColor(string(d.Severity)), d.Code, d.Message)
	} else {
		fmt.Fprintf(&out, "%s: %s\n", sevColor(string(d.Severity)), d.Message)
	}

	if loc := d.Position.String(); loc != "" {
		fmt.Fprintf(&out, "  %s %s\n", r.dim("-->"), loc)
	}

	for _, note := range d.Notes {
		fmt.Fprintf(&out, "  %s %s\n", r.dim("note:"), note)
	}

	fmt.Fprintf(&out, "  %s\n", r.dim(fmt.Sprintf("[%s]", d.CorrelationID)))

	return out.String()
}

// FormatAll renders every Diagnostic in g, in order, separated by
// blank lines.
func (r *Reporter) FormatAll(g *Group) string {
	var parts []string
	for _, d := range g.Diagnostics() {
		parts = append(parts, r.Format(d))
	}
	return strings.Join(parts, "\n")
}
