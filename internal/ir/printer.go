package ir

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"
)

// Printer renders a Module as the textual debug IR described in
// spec.md §6: a module header, a read-only-data section, a global
// section for non-function root nodes, and one function block per
// FUNCTION node. This surface is for human inspection only; nothing in
// the package parses it back.
type Printer struct {
	ctx    *Context
	indent int
	out    strings.Builder

	// Color, when true, applies fatih/color styling to kind keywords
	// and block labels (grounded on the diagnostics reporter's use of
	// color for compiler output). Off by default so golden-file tests
	// stay byte-stable in non-terminal environments.
	Color bool

	// ShowDebugInfo appends "/* file:line:col */" comments when a
	// region carries DebugInfo for the printed node.
	ShowDebugInfo bool

	names map[*Node]string
	next  int
}

// NewPrinter creates a Printer bound to ctx for string-table lookups.
func NewPrinter(ctx *Context) *Printer {
	return &Printer{ctx: ctx, names: make(map[*Node]string)}
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.out.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) keyword(s string) string {
	if !p.Color {
		return s
	}
	return color.New(color.FgCyan, color.Bold).Sprint(s)
}

var labelSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func sanitizeLabel(name string) string {
	s := labelSanitizer.ReplaceAllString(name, "_")
	if s == "" {
		return "_"
	}
	return s
}

// valueName returns the value name to print for n: "%<user-name>" when
// n has an interned name, else "%<ssa-id>" lazily assigned in
// print-order (spec.md §6).
func (p *Printer) valueName(n *Node) string {
	if name, ok := n.Name(p.ctx); ok {
		return "%" + name
	}
	if cached, ok := p.names[n]; ok {
		return cached
	}
	name := fmt.Sprintf("%%v%d", p.next)
	p.next++
	p.names[n] = name
	return name
}

func (p *Printer) funcName(fn *Node) string {
	if name, ok := fn.Name(p.ctx); ok {
		return "$" + name
	}
	return fmt.Sprintf("$fn%d", fn.ID())
}

func (p *Printer) typeString(t TypeID) string {
	return p.ctx.types.TypeString(t)
}

// Print renders m and returns the textual IR.
func (p *Printer) Print(m *Module) string {
	p.out.Reset()
	p.names = make(map[*Node]string)
	p.next = 0

	p.writeLine("#! module: %s", m.Name())
	p.writeLine("")

	p.printRodata(m)
	p.printGlobals(m)

	for _, fn := range m.Functions() {
		p.printFunction(fn)
		p.writeLine("")
	}

	return p.out.String()
}

func (p *Printer) printRodata(m *Module) {
	rodata := m.ReadOnlyData()
	lits := rodata.Nodes()
	if len(lits) <= 1 {
		return
	}
	p.writeLine(".%s", p.keyword("__rodata"))
	p.indent++
	for _, n := range lits {
		if n.Kind() != KindLit {
			continue
		}
		data, _ := n.Data()
		p.writeLine("%s : %s = %s;", p.valueName(n), p.typeString(n.Type()), data.String())
	}
	p.indent--
	p.writeLine("")
}

func (p *Printer) printGlobals(m *Module) {
	root := m.Root()
	var globals []*Node
	for _, n := range root.Nodes() {
		if n.Kind() == KindEntry || n.Kind() == KindFunction {
			continue
		}
		globals = append(globals, n)
	}
	if len(globals) == 0 {
		return
	}
	p.writeLine(".%s", p.keyword("__global"))
	p.indent++
	for _, n := range globals {
		p.printInstruction(n)
	}
	p.indent--
	p.writeLine("")
}

func (p *Printer) printFunction(fn *Node) {
	sig, _ := functionSignature(p.ctx, fn)
	body, hasBody := fn.Body()

	var params []string
	if hasBody {
		var paramNodes []*Node
		for _, n := range body.Nodes() {
			if n.Kind() == KindParam {
				paramNodes = append(paramNodes, n)
			}
		}
		for _, pn := range paramNodes {
			params = append(params, fmt.Sprintf("%s %s", p.typeString(pn.Type()), p.valueName(pn)))
		}
	} else {
		for _, t := range sig.Params {
			params = append(params, p.typeString(t))
		}
	}

	header := fmt.Sprintf("%s %s(%s)", p.keyword("fn"), p.funcName(fn), strings.Join(params, ", "))
	if sig.Return != TypeVoid {
		header += fmt.Sprintf(" -> %s", p.typeString(sig.Return))
	}
	if fn.Properties() != PropNone {
		header += " " + propertiesString(fn.Properties())
	}

	if !hasBody {
		p.writeLine("%s;", header)
		return
	}

	p.writeLine("%s {", header)
	p.indent++
	p.printRegion(body)
	p.indent--
	p.writeLine("}")
}

func propertiesString(props Properties) string {
	var flags []string
	for mask, name := range map[Properties]string{
		PropNoOptimize: "no_optimize",
		PropDriver:     "driver",
		PropExport:     "export",
		PropExtern:     "extern",
		PropStatic:     "static",
	} {
		if props.Has(mask) {
			flags = append(flags, name)
		}
	}
	return "[" + strings.Join(flags, ", ") + "]"
}

func (p *Printer) printRegion(r *Region) {
	label := sanitizeLabel(r.Name())
	p.writeIndent()
	p.out.WriteString(p.keyword(label))
	p.out.WriteString(":\n")
	p.indent++
	for _, n := range r.Nodes() {
		if n.Kind() == KindEntry || n.Kind() == KindParam {
			continue
		}
		p.printInstruction(n)
	}
	p.indent--

	for _, child := range r.Children() {
		p.printRegion(child)
	}
}

func (p *Printer) printInstruction(n *Node) {
	p.writeIndent()

	if n.Kind() == KindLit {
		data, _ := n.Data()
		fmt.Fprintf(&p.out, "%s : %s = %s %s;\n", p.valueName(n), p.typeString(n.Type()), p.keyword("lit"), data.String())
		return
	}

	var operands []string
	for _, in := range n.Inputs() {
		if in == nil {
			operands = append(operands, "_")
			continue
		}
		switch in.Kind() {
		case KindEntry:
			operands = append(operands, sanitizeLabel(in.Region().Name()))
		case KindFunction:
			operands = append(operands, p.funcName(in))
		default:
			operands = append(operands, p.valueName(in))
		}
	}

	prefix := ""
	if n.Type() != TypeVoid {
		prefix = fmt.Sprintf("%s : %s = ", p.valueName(n), p.typeString(n.Type()))
	}

	line := fmt.Sprintf("%s%s %s;", prefix, p.keyword(n.Kind().String()), strings.Join(operands, ", "))

	if p.ShowDebugInfo && n.region != nil {
		if info, ok := n.region.DebugInfo(n); ok {
			line += fmt.Sprintf(" /* %s:%d:%d */", info.File, info.Line, info.Column)
		}
	}

	p.out.WriteString(line)
	p.out.WriteString("\n")
}

// Print renders m using a fresh Printer with default (uncolored)
// settings, matching the package-level Dump helper.
func Print(ctx *Context, m *Module) string {
	return NewPrinter(ctx).Print(m)
}
