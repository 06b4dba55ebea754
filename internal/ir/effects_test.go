package ir

import "testing"

func allPure(effs []EffectKind) bool {
	for _, e := range effs {
		if e != EffectPure {
			return false
		}
	}
	return true
}

func TestEffectsPureKinds(t *testing.T) {
	pure := []Kind{KindAdd, KindMul, KindEq, KindBnot, KindAddrOf, KindReinterpretCast, KindVectorBuild}
	for _, k := range pure {
		if !allPure(k.Effects()) {
			t.Errorf("%s: expected purely pure effects, got %v", k, k.Effects())
		}
	}
}

func TestEffectsMemoryClassification(t *testing.T) {
	cases := map[Kind]EffectKind{
		KindLoad:        EffectMemoryRead,
		KindPtrLoad:     EffectMemoryRead,
		KindAtomicLoad:  EffectMemoryRead,
		KindStore:       EffectMemoryWrite,
		KindPtrStore:    EffectMemoryWrite,
		KindAtomicStore: EffectMemoryWrite,
		KindFree:        EffectMemoryWrite,
	}
	for k, want := range cases {
		got := k.Effects()
		if len(got) != 1 || got[0] != want {
			t.Errorf("%s: effects = %v, want [%v]", k, got, want)
		}
	}
}

func TestEffectsCallIsOpaque(t *testing.T) {
	for _, k := range []Kind{KindCall, KindInvoke, KindHeapAlloc} {
		got := k.Effects()
		found := false
		for _, e := range got {
			if e == EffectCall {
				found = true
			}
		}
		if !found {
			t.Errorf("%s: expected EffectCall among %v", k, got)
		}
	}
}

func TestNodeIsPure(t *testing.T) {
	ctx := NewContext()
	m := ctx.NewModule("m")
	b := NewBuilder(ctx)
	b.SetModule(m)

	x := b.LitInt(DI32, 1)
	y := b.LitInt(DI32, 2)
	sum := b.Add(x, y)
	if !sum.IsPure() {
		t.Errorf("ADD should be pure")
	}

	ptrType, err := ctx.Types().Pointer(TypeI32, 0)
	if err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	load := b.Load(b.AddrOf(x), TypeI32)
	_ = ptrType
	if load.IsPure() {
		t.Errorf("LOAD should not be pure")
	}
}

func TestMayAlias(t *testing.T) {
	if !MayAlias(KindStore, KindLoad) {
		t.Errorf("STORE/LOAD should be ordered (may alias)")
	}
	if MayAlias(KindAdd, KindMul) {
		t.Errorf("two pure ops should never be forced to alias")
	}
	if !MayAlias(KindCall, KindLoad) {
		t.Errorf("an opaque call should be treated as aliasing any memory op")
	}
}
