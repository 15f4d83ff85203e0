package wasm

import "testing"

func TestValTypeString(t *testing.T) {
	cases := map[ValType]string{
		Void:    "void",
		I32:     "i32",
		I64:     "i64",
		F32:     "f32",
		F64:     "f64",
		V128:    "v128",
		FuncRef: "funcref",
		AnyRef:  "anyref",
		NullRef: "nullref",
	}
	for v, want := range cases {
		if got := v.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", v, got, want)
		}
	}
}

func TestValTypeIsReference(t *testing.T) {
	for _, v := range []ValType{FuncRef, AnyRef, NullRef} {
		if !v.IsReference() {
			t.Errorf("%s: want IsReference() true", v)
		}
	}
	for _, v := range []ValType{I32, I64, F32, F64, V128} {
		if v.IsReference() {
			t.Errorf("%s: want IsReference() false", v)
		}
	}
}

func TestFuncTypeEqual(t *testing.T) {
	a := FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}
	b := FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}
	c := FuncType{Params: []ValType{I32, I64}, Results: []ValType{I32}}

	if !a.Equal(b) {
		t.Error("identical signatures should be equal")
	}
	if a.Equal(c) {
		t.Error("differing param types should not be equal")
	}
}

func TestFuncTypeTagMatchesOnlyEqualSignatures(t *testing.T) {
	a := FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}
	b := FuncType{Params: []ValType{I32, I32}, Results: []ValType{I32}}
	c := FuncType{Params: []ValType{I64}, Results: []ValType{F64}}

	if a.Tag() != b.Tag() {
		t.Error("equal signatures must share a tag")
	}
	if a.Tag() == c.Tag() {
		t.Error("different signatures should not collide in this test")
	}
}

func TestModuleFuncTypeAtOrdersImportsBeforeLocals(t *testing.T) {
	m := &Module{
		Imports: []Import{
			{Module: "env", Name: "log", Type: ExternType{Kind: ExternFunc, Func: FuncType{Params: []ValType{I32}}}},
		},
		Funcs: []Func{
			{Type: FuncType{Results: []ValType{I32}}},
		},
	}

	ft, ok := m.FuncTypeAt(0)
	if !ok || len(ft.Params) != 1 {
		t.Fatalf("index 0 should resolve to the imported function, got %+v ok=%v", ft, ok)
	}

	ft, ok = m.FuncTypeAt(1)
	if !ok || len(ft.Results) != 1 {
		t.Fatalf("index 1 should resolve to the local function, got %+v ok=%v", ft, ok)
	}

	if _, ok := m.FuncTypeAt(2); ok {
		t.Fatal("out-of-range index should not resolve")
	}
}
