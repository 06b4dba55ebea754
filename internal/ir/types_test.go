package ir

import "testing"

func TestTypeRegistryPointerInterning(t *testing.T) {
	tr := newTypeRegistry()

	p1, err := tr.Pointer(TypeI32, 0)
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	p2, err := tr.Pointer(TypeI32, 0)
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	if p1 != p2 {
		t.Fatalf("structurally identical pointer types got distinct IDs: %d != %d", p1, p2)
	}

	p3, err := tr.Pointer(TypeI64, 0)
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	if p3 == p1 {
		t.Fatalf("pointer to a different pointee reused the same ID")
	}
}

func TestTypeRegistryStructInterning(t *testing.T) {
	tr := newTypeRegistry()

	fields := []StructField{{Name: "x", Type: TypeI32}, {Name: "y", Type: TypeI32}}
	s1, err := tr.Struct(8, 4, fields)
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	s2, err := tr.Struct(8, 4, []StructField{{Name: "x", Type: TypeI32}, {Name: "y", Type: TypeI32}})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if s1 != s2 {
		t.Fatalf("structurally identical struct types got distinct IDs: %d != %d", s1, s2)
	}

	s3, err := tr.Struct(8, 4, []StructField{{Name: "x", Type: TypeI32}, {Name: "z", Type: TypeI32}})
	if err != nil {
		t.Fatalf("Struct: %v", err)
	}
	if s3 == s1 {
		t.Fatalf("struct with a different field name reused the same ID")
	}
}

func TestTypeRegistryFunctionInterning(t *testing.T) {
	tr := newTypeRegistry()

	f1, err := tr.Function(TypeBool, []TypeID{TypeI32, TypeI32}, false)
	if err != nil {
		t.Fatalf("Function: %v", err)
	}
	f2, err := tr.Function(TypeBool, []TypeID{TypeI32, TypeI32}, false)
	if err != nil {
		t.Fatalf("Function: %v", err)
	}
	if f1 != f2 {
		t.Fatalf("structurally identical function types got distinct IDs: %d != %d", f1, f2)
	}

	sig, ok := tr.LookupFunction(f1)
	if !ok {
		t.Fatalf("LookupFunction failed for interned ID")
	}
	if sig.Return != TypeBool || len(sig.Params) != 2 {
		t.Fatalf("unexpected signature: %+v", sig)
	}
}

func TestTypeRegistryKindRoundTrip(t *testing.T) {
	tr := newTypeRegistry()

	if tr.Kind(TypeI32) != DI32 {
		t.Fatalf("Kind(TypeI32) = %v, want DI32", tr.Kind(TypeI32))
	}

	ptr, err := tr.Pointer(TypeI32, 0)
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	if tr.Kind(ptr) != DPointer {
		t.Fatalf("Kind(ptr) = %v, want DPointer", tr.Kind(ptr))
	}
}

func TestTypedDataEqual(t *testing.T) {
	a := Int(DI32, 42)
	b := Int(DI32, 42)
	c := Int(DI32, 43)

	if !a.Equal(b) {
		t.Fatalf("equal ints compared unequal")
	}
	if a.Equal(c) {
		t.Fatalf("unequal ints compared equal")
	}

	av := Aggregate(DStruct, 0, []TypedData{Int(DI32, 1), Int(DI32, 2)})
	bv := Aggregate(DStruct, 0, []TypedData{Int(DI32, 1), Int(DI32, 2)})
	cv := Aggregate(DStruct, 0, []TypedData{Int(DI32, 1), Int(DI32, 3)})
	if !av.Equal(bv) {
		t.Fatalf("equal aggregates compared unequal")
	}
	if av.Equal(cv) {
		t.Fatalf("unequal aggregates compared equal")
	}
}

func TestTypedDataAccessorPanicsOnKindMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic reading AsBool on an int payload")
		}
	}()
	Int(DI32, 1).AsBool()
}

func TestTypeSpaceExhaustion(t *testing.T) {
	tr := newTypeRegistry()
	var last error
	for i := 0; i < maxDenseIndex+2; i++ {
		_, err := tr.Pointer(TypeID(i%2), i)
		if err != nil {
			last = err
			break
		}
	}
	if last == nil {
		t.Fatalf("expected exhaustion once the dense-index budget is exceeded")
	}
}
