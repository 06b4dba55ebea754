package ir

import (
	"strings"
	"testing"
)

func TestContextInternRoundTrip(t *testing.T) {
	ctx := NewContext()
	id := ctx.Intern("hello")
	if id2 := ctx.Intern("hello"); id2 != id {
		t.Fatalf("interning the same string twice gave different IDs: %d != %d", id, id2)
	}
	s, ok := ctx.String(id)
	if !ok || s != "hello" {
		t.Fatalf("String(%d) = (%q, %v), want (\"hello\", true)", id, s, ok)
	}
	if _, ok := ctx.String(StringID(999999)); ok {
		t.Fatalf("String resolved an unknown ID")
	}
}

func TestNewModuleHasRootAndRodata(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("prog")
	if m.Root() == nil {
		t.Fatalf("expected a root region")
	}
	if m.ReadOnlyData() == nil {
		t.Fatalf("expected a read-only-data region")
	}
	if m.Root() == m.ReadOnlyData() {
		t.Fatalf("root and rodata must be distinct regions")
	}
}

func TestInternStringLiteralContentAddressed(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("prog")

	a := m.InternStringLiteral("hi")
	b := m.InternStringLiteral("hi")
	if a != b {
		t.Fatalf("InternStringLiteral should return the same node for equal content")
	}
	c := m.InternStringLiteral("bye")
	if c == a {
		t.Fatalf("InternStringLiteral returned the same node for different content")
	}

	found := false
	for _, n := range m.ReadOnlyData().Nodes() {
		if n == a {
			found = true
		}
	}
	if !found {
		t.Fatalf("interned string literal was not appended to the read-only-data region")
	}
}

func TestFunctionByName(t *testing.T) {
	b, m := NewBuilderForModule("prog")
	fn, _, _ := b.CreateFunction("add", []TypeID{TypeI32, TypeI32}, TypeI32, false, PropNone)

	found, ok := m.FunctionByName("add")
	if !ok || found != fn {
		t.Fatalf("FunctionByName(\"add\") = (%v, %v), want (%v, true)", found, ok, fn)
	}
	if _, ok := m.FunctionByName("missing"); ok {
		t.Fatalf("FunctionByName found a function that was never declared")
	}
}

func TestDumpProducesModuleHeader(t *testing.T) {
	_, m := NewBuilderForModule("widgets")
	out := Dump(m)
	if !strings.Contains(out, "#! module: widgets") {
		t.Fatalf("Dump output missing module header:\n%s", out)
	}
}

func TestAllRegionsIncludesFunctionBodies(t *testing.T) {
	b, m := NewBuilderForModule("prog")
	_, body, _ := b.CreateFunction("f", nil, TypeVoid, false, PropNone)
	b.Ret()

	found := false
	for _, r := range m.AllRegions() {
		if r == body {
			found = true
		}
	}
	if !found {
		t.Fatalf("AllRegions did not include a function's body region")
	}
}
