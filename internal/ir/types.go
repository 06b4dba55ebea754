package ir

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// DataKind enumerates every primitive and composite kind a TypedData or
// a Node's result type can carry.
type DataKind uint8

const (
	DVoid DataKind = iota
	DBool
	DI8
	DI16
	DI32
	DI64
	DU8
	DU16
	DU32
	DU64
	DF32
	DF64
	DString

	// Composite kinds. Their TypedData/TypeID never carries the payload
	// directly; it carries a TypeID resolved through the TypeRegistry.
	DPointer
	DArray
	DStruct
	DFunction
	DVector
)

func (k DataKind) String() string {
	switch k {
	case DVoid:
		return "void"
	case DBool:
		return "bool"
	case DI8:
		return "i8"
	case DI16:
		return "i16"
	case DI32:
		return "i32"
	case DI64:
		return "i64"
	case DU8:
		return "u8"
	case DU16:
		return "u16"
	case DU32:
		return "u32"
	case DU64:
		return "u64"
	case DF32:
		return "f32"
	case DF64:
		return "f64"
	case DString:
		return "string"
	case DPointer:
		return "pointer"
	case DArray:
		return "array"
	case DStruct:
		return "struct"
	case DFunction:
		return "function"
	case DVector:
		return "vector"
	default:
		return "?"
	}
}

func (k DataKind) isComposite() bool { return k >= DPointer }

func (k DataKind) isInteger() bool {
	return k >= DI8 && k <= DU64
}

func (k DataKind) isSigned() bool {
	return k == DI8 || k == DI16 || k == DI32 || k == DI64
}

func (k DataKind) isFloat() bool { return k == DF32 || k == DF64 }

// IsComposite reports whether k is a composite kind (pointer, array,
// struct, function, or vector) rather than a primitive scalar.
func (k DataKind) IsComposite() bool { return k.isComposite() }

// IsInteger reports whether k is one of the eight signed/unsigned
// integer kinds.
func (k DataKind) IsInteger() bool { return k.isInteger() }

// IsSigned reports whether k is one of the four signed integer kinds.
func (k DataKind) IsSigned() bool { return k.isSigned() }

// IsFloat reports whether k is F32 or F64.
func (k DataKind) IsFloat() bool { return k.isFloat() }

// TypeID identifies a result type: either a primitive DataKind (values
// 0..DVector-1, taken directly from the DataKind space) or a composite
// reference produced by TypeRegistry. Composite IDs live above
// compositeBase; bits [15:12] of the low 16 bits (the "high nibble" of
// spec.md's 16-bit composite ID) select which per-kind table the dense
// index below it indexes into, matching spec.md §3's "16-bit ID whose
// high nibble encodes the kind flag."
type TypeID uint32

const compositeBase TypeID = 0x10000

const (
	kindFlagPointer  = 1
	kindFlagArray    = 2
	kindFlagStruct   = 3
	kindFlagFunction = 4
	kindFlagVector   = 5
)

const maxDenseIndex = 0xFFF // 12-bit dense index per composite kind

func compositeID(flag, dense int) TypeID {
	return compositeBase | TypeID(flag<<12) | TypeID(dense)
}

func (t TypeID) isComposite() bool { return t >= compositeBase }

func (t TypeID) compositeFlag() int { return int((t &^ compositeBase) >> 12) }

func (t TypeID) denseIndex() int { return int(t & maxDenseIndex) }

// Primitive TypeIDs, usable directly wherever a TypeID is expected.
const (
	TypeVoid   = TypeID(DVoid)
	TypeBool   = TypeID(DBool)
	TypeI8     = TypeID(DI8)
	TypeI16    = TypeID(DI16)
	TypeI32    = TypeID(DI32)
	TypeI64    = TypeID(DI64)
	TypeU8     = TypeID(DU8)
	TypeU16    = TypeID(DU16)
	TypeU32    = TypeID(DU32)
	TypeU64    = TypeID(DU64)
	TypeF32    = TypeID(DF32)
	TypeF64    = TypeID(DF64)
	TypeString = TypeID(DString)
)

// PointerType, ArrayType, StructField, StructType, FunctionType and
// VectorType are the composite shapes TypeRegistry interns. Structural
// equality of two composites of the same kind implies identical
// TypeIDs (spec.md §3 "equality of composites is structural").

type PointerType struct {
	Pointee   TypeID
	AddrSpace int
}

type ArrayType struct {
	Elem  TypeID
	Count int
}

type StructField struct {
	Name string
	Type TypeID
}

type StructType struct {
	Size   int
	Align  int
	Fields []StructField
}

type FunctionType struct {
	Return TypeID
	Params []TypeID
	Vararg bool
}

type VectorType struct {
	Elem  TypeID
	Count int
}

func (p PointerType) key() string { return fmt.Sprintf("p:%d:%d", p.Pointee, p.AddrSpace) }
func (a ArrayType) key() string   { return fmt.Sprintf("a:%d:%d", a.Elem, a.Count) }
func (s StructType) key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "s:%d:%d", s.Size, s.Align)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, ":%s=%d", f.Name, f.Type)
	}
	return b.String()
}
func (f FunctionType) key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "f:%d:%v:", f.Return, f.Vararg)
	for _, p := range f.Params {
		fmt.Fprintf(&b, "%d,", p)
	}
	return b.String()
}
func (v VectorType) key() string { return fmt.Sprintf("v:%d:%d", v.Elem, v.Count) }

// TypeRegistry interns composite types to dense, stable TypeIDs. Two
// structurally equal composites always resolve to the same TypeID, and
// lookups are O(1) amortized via the per-kind key index.
type TypeRegistry struct {
	pointers []PointerType
	arrays   []ArrayType
	structs  []StructType
	funcs    []FunctionType
	vectors  []VectorType

	pointerIdx map[string]TypeID
	arrayIdx   map[string]TypeID
	structIdx  map[string]TypeID
	funcIdx    map[string]TypeID
	vectorIdx  map[string]TypeID
}

func newTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		pointerIdx: make(map[string]TypeID),
		arrayIdx:   make(map[string]TypeID),
		structIdx:  make(map[string]TypeID),
		funcIdx:    make(map[string]TypeID),
		vectorIdx:  make(map[string]TypeID),
	}
}

// Pointer interns a pointer-to-pointee composite type.
func (tr *TypeRegistry) Pointer(pointee TypeID, addrSpace int) (TypeID, error) {
	pt := PointerType{Pointee: pointee, AddrSpace: addrSpace}
	k := pt.key()
	if id, ok := tr.pointerIdx[k]; ok {
		return id, nil
	}
	if len(tr.pointers) >= maxDenseIndex+1 {
		return 0, errors.Wrap(ErrTypeSpaceExhausted, "pointer types")
	}
	id := compositeID(kindFlagPointer, len(tr.pointers))
	tr.pointers = append(tr.pointers, pt)
	tr.pointerIdx[k] = id
	return id, nil
}

// Array interns an array-of-elem composite type.
func (tr *TypeRegistry) Array(elem TypeID, count int) (TypeID, error) {
	at := ArrayType{Elem: elem, Count: count}
	k := at.key()
	if id, ok := tr.arrayIdx[k]; ok {
		return id, nil
	}
	if len(tr.arrays) >= maxDenseIndex+1 {
		return 0, errors.Wrap(ErrTypeSpaceExhausted, "array types")
	}
	id := compositeID(kindFlagArray, len(tr.arrays))
	tr.arrays = append(tr.arrays, at)
	tr.arrayIdx[k] = id
	return id, nil
}

// Struct interns a struct composite type. Size/align are caller-supplied
// (the IR does not model target layout rules beyond what Builder's
// natural-alignment helper computes for SROA).
func (tr *TypeRegistry) Struct(size, align int, fields []StructField) (TypeID, error) {
	st := StructType{Size: size, Align: align, Fields: append([]StructField(nil), fields...)}
	k := st.key()
	if id, ok := tr.structIdx[k]; ok {
		return id, nil
	}
	if len(tr.structs) >= maxDenseIndex+1 {
		return 0, errors.Wrap(ErrTypeSpaceExhausted, "struct types")
	}
	id := compositeID(kindFlagStruct, len(tr.structs))
	tr.structs = append(tr.structs, st)
	tr.structIdx[k] = id
	return id, nil
}

// Function interns a function-signature composite type.
func (tr *TypeRegistry) Function(ret TypeID, params []TypeID, vararg bool) (TypeID, error) {
	ft := FunctionType{Return: ret, Params: append([]TypeID(nil), params...), Vararg: vararg}
	k := ft.key()
	if id, ok := tr.funcIdx[k]; ok {
		return id, nil
	}
	if len(tr.funcs) >= maxDenseIndex+1 {
		return 0, errors.Wrap(ErrTypeSpaceExhausted, "function types")
	}
	id := compositeID(kindFlagFunction, len(tr.funcs))
	tr.funcs = append(tr.funcs, ft)
	tr.funcIdx[k] = id
	return id, nil
}

// Vector interns a vector-of-elem composite type.
func (tr *TypeRegistry) Vector(elem TypeID, count int) (TypeID, error) {
	vt := VectorType{Elem: elem, Count: count}
	k := vt.key()
	if id, ok := tr.vectorIdx[k]; ok {
		return id, nil
	}
	if len(tr.vectors) >= maxDenseIndex+1 {
		return 0, errors.Wrap(ErrTypeSpaceExhausted, "vector types")
	}
	id := compositeID(kindFlagVector, len(tr.vectors))
	tr.vectors = append(tr.vectors, vt)
	tr.vectorIdx[k] = id
	return id, nil
}

// Kind reports the DataKind for any TypeID, primitive or composite.
func (tr *TypeRegistry) Kind(id TypeID) DataKind {
	if !id.isComposite() {
		return DataKind(id)
	}
	switch id.compositeFlag() {
	case kindFlagPointer:
		return DPointer
	case kindFlagArray:
		return DArray
	case kindFlagStruct:
		return DStruct
	case kindFlagFunction:
		return DFunction
	case kindFlagVector:
		return DVector
	default:
		return DVoid
	}
}

// LookupPointer, LookupArray, LookupStruct, LookupFunction, and
// LookupVector resolve a composite TypeID back to its descriptor. ok is
// false if id does not name a composite of that kind.
func (tr *TypeRegistry) LookupPointer(id TypeID) (PointerType, bool) {
	if !id.isComposite() || id.compositeFlag() != kindFlagPointer {
		return PointerType{}, false
	}
	i := id.denseIndex()
	if i >= len(tr.pointers) {
		return PointerType{}, false
	}
	return tr.pointers[i], true
}

func (tr *TypeRegistry) LookupArray(id TypeID) (ArrayType, bool) {
	if !id.isComposite() || id.compositeFlag() != kindFlagArray {
		return ArrayType{}, false
	}
	i := id.denseIndex()
	if i >= len(tr.arrays) {
		return ArrayType{}, false
	}
	return tr.arrays[i], true
}

func (tr *TypeRegistry) LookupStruct(id TypeID) (StructType, bool) {
	if !id.isComposite() || id.compositeFlag() != kindFlagStruct {
		return StructType{}, false
	}
	i := id.denseIndex()
	if i >= len(tr.structs) {
		return StructType{}, false
	}
	return tr.structs[i], true
}

func (tr *TypeRegistry) LookupFunction(id TypeID) (FunctionType, bool) {
	if !id.isComposite() || id.compositeFlag() != kindFlagFunction {
		return FunctionType{}, false
	}
	i := id.denseIndex()
	if i >= len(tr.funcs) {
		return FunctionType{}, false
	}
	return tr.funcs[i], true
}

func (tr *TypeRegistry) LookupVector(id TypeID) (VectorType, bool) {
	if !id.isComposite() || id.compositeFlag() != kindFlagVector {
		return VectorType{}, false
	}
	i := id.denseIndex()
	if i >= len(tr.vectors) {
		return VectorType{}, false
	}
	return tr.vectors[i], true
}

// TypeString renders a TypeID for printing/debugging.
func (tr *TypeRegistry) TypeString(id TypeID) string {
	if !id.isComposite() {
		return DataKind(id).String()
	}
	switch id.compositeFlag() {
	case kindFlagPointer:
		pt, _ := tr.LookupPointer(id)
		return fmt.Sprintf("ptr<%s>", tr.TypeString(pt.Pointee))
	case kindFlagArray:
		at, _ := tr.LookupArray(id)
		return fmt.Sprintf("[%d x %s]", at.Count, tr.TypeString(at.Elem))
	case kindFlagStruct:
		st, _ := tr.LookupStruct(id)
		var b strings.Builder
		b.WriteString("struct {")
		for i, f := range st.Fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", f.Name, tr.TypeString(f.Type))
		}
		b.WriteString("}")
		return b.String()
	case kindFlagFunction:
		ft, _ := tr.LookupFunction(id)
		var b strings.Builder
		b.WriteString("fn(")
		for i, p := range ft.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(tr.TypeString(p))
		}
		b.WriteString(") -> ")
		b.WriteString(tr.TypeString(ft.Return))
		return b.String()
	case kindFlagVector:
		vt, _ := tr.LookupVector(id)
		return fmt.Sprintf("<%d x %s>", vt.Count, tr.TypeString(vt.Elem))
	default:
		return "?"
	}
}

// TypedData is a discriminated union carrying any primitive or
// composite literal payload. It backs LIT nodes and, for FUNCTION
// nodes, a cached signature.
type TypedData struct {
	Kind DataKind

	b bool
	i int64 // signed integers, sign-extended
	u uint64
	f float64
	s string

	typ   TypeID      // composite payload's TypeID (e.g. function signature)
	elems []TypedData // aggregate literal elements (array/struct)
}

// Bool constructs a BOOL TypedData.
func Bool(v bool) TypedData { return TypedData{Kind: DBool, b: v} }

// Int constructs a signed-integer TypedData of the given bit width
// (8/16/32/64).
func Int(kind DataKind, v int64) TypedData {
	if !kind.isSigned() {
		badPrecondition("ir.Int", "kind %s is not a signed integer kind", kind)
	}
	return TypedData{Kind: kind, i: v}
}

// Uint constructs an unsigned-integer TypedData.
func Uint(kind DataKind, v uint64) TypedData {
	if kind != DU8 && kind != DU16 && kind != DU32 && kind != DU64 {
		badPrecondition("ir.Uint", "kind %s is not an unsigned integer kind", kind)
	}
	return TypedData{Kind: kind, u: v}
}

// Float constructs a floating-point TypedData (F32 or F64).
func Float(kind DataKind, v float64) TypedData {
	if !kind.isFloat() {
		badPrecondition("ir.Float", "kind %s is not a float kind", kind)
	}
	return TypedData{Kind: kind, f: v}
}

// String constructs a STRING TypedData.
func String(v string) TypedData { return TypedData{Kind: DString, s: v} }

// FunctionSignature constructs the cached-signature payload stored on a
// FUNCTION node.
func FunctionSignature(sig TypeID) TypedData { return TypedData{Kind: DFunction, typ: sig} }

// Aggregate constructs an ARRAY or STRUCT literal payload from element
// values.
func Aggregate(kind DataKind, typ TypeID, elems []TypedData) TypedData {
	if kind != DArray && kind != DStruct {
		badPrecondition("ir.Aggregate", "kind %s is not an aggregate kind", kind)
	}
	return TypedData{Kind: kind, typ: typ, elems: append([]TypedData(nil), elems...)}
}

// AsBool returns the boolean payload or panics if Kind != DBool.
func (t TypedData) AsBool() bool {
	if t.Kind != DBool {
		badPrecondition("TypedData.AsBool", "kind is %s, not bool", t.Kind)
	}
	return t.b
}

// AsInt returns the sign-extended signed-integer payload or panics if
// the kind is not a signed integer kind.
func (t TypedData) AsInt() int64 {
	if !t.Kind.isSigned() {
		badPrecondition("TypedData.AsInt", "kind is %s, not a signed integer", t.Kind)
	}
	return t.i
}

// AsUint returns the unsigned-integer payload or panics if the kind is
// not an unsigned integer kind.
func (t TypedData) AsUint() uint64 {
	if t.Kind != DU8 && t.Kind != DU16 && t.Kind != DU32 && t.Kind != DU64 {
		badPrecondition("TypedData.AsUint", "kind is %s, not an unsigned integer", t.Kind)
	}
	return t.u
}

// AsFloat returns the floating-point payload or panics if the kind is
// not a float kind.
func (t TypedData) AsFloat() float64 {
	if !t.Kind.isFloat() {
		badPrecondition("TypedData.AsFloat", "kind is %s, not a float", t.Kind)
	}
	return t.f
}

// AsString returns the string payload or panics if Kind != DString.
func (t TypedData) AsString() string {
	if t.Kind != DString {
		badPrecondition("TypedData.AsString", "kind is %s, not string", t.Kind)
	}
	return t.s
}

// FunctionSig returns the cached function-signature TypeID or panics if
// Kind != DFunction.
func (t TypedData) FunctionSig() TypeID {
	if t.Kind != DFunction {
		badPrecondition("TypedData.FunctionSig", "kind is %s, not function", t.Kind)
	}
	return t.typ
}

// Elements returns the aggregate's element payloads, or nil if this
// TypedData is not an aggregate.
func (t TypedData) Elements() []TypedData { return t.elems }

// AggregateType returns the aggregate's TypeID, or panics if this
// TypedData is not an aggregate.
func (t TypedData) AggregateType() TypeID {
	if t.Kind != DArray && t.Kind != DStruct {
		badPrecondition("TypedData.AggregateType", "kind is %s, not an aggregate", t.Kind)
	}
	return t.typ
}

// Equal reports whether two TypedData values are bit-for-bit identical
// constants of the same kind. It is the basis for content-addressed
// literal interning (spec.md §3: "construction routines search the
// target region for an existing matching literal before creating a new
// one").
func (t TypedData) Equal(o TypedData) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case DVoid:
		return true
	case DBool:
		return t.b == o.b
	case DI8, DI16, DI32, DI64:
		return t.i == o.i
	case DU8, DU16, DU32, DU64:
		return t.u == o.u
	case DF32, DF64:
		return t.f == o.f
	case DString:
		return t.s == o.s
	case DFunction:
		return t.typ == o.typ
	case DArray, DStruct:
		if t.typ != o.typ || len(t.elems) != len(o.elems) {
			return false
		}
		for i := range t.elems {
			if !t.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the literal value for debugging/printing.
func (t TypedData) String() string {
	switch t.Kind {
	case DVoid:
		return "void"
	case DBool:
		return fmt.Sprintf("%v", t.b)
	case DI8, DI16, DI32, DI64:
		return fmt.Sprintf("%d", t.i)
	case DU8, DU16, DU32, DU64:
		return fmt.Sprintf("%d", t.u)
	case DF32, DF64:
		return fmt.Sprintf("%g", t.f)
	case DString:
		return fmt.Sprintf("%q", t.s)
	case DFunction:
		return fmt.Sprintf("sig#%d", t.typ)
	case DArray, DStruct:
		parts := make([]string, len(t.elems))
		for i, e := range t.elems {
			parts[i] = e.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return "?"
	}
}
