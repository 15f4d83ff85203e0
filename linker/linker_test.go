package linker

import (
	"testing"

	"github.com/gowavm/wavm/compiler"
	"github.com/gowavm/wavm/emit"
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

func addFuncType() wasm.FuncType {
	return wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}}
}

func compileAddModule(t *testing.T) *compiler.Artifact {
	t.Helper()
	ft := addFuncType()
	ir := &wasm.Module{
		Types: []wasm.FuncType{ft},
		Funcs: []wasm.Func{{
			Type: ft,
			Body: &wasm.Binary{Op: wasm.OpAdd, Left: &wasm.LocalGet{Index: 0}, Right: &wasm.LocalGet{Index: 1}},
		}},
		Exports: []wasm.Export{{Name: "add", Type: wasm.ExternType{Kind: wasm.ExternFunc, Func: ft}, Index: 0}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return art
}

func TestInstantiateBuildsExportsAndRunsFunction(t *testing.T) {
	c := object.NewCompartment()
	q := quota.NewUnlimited()
	art := compileAddModule(t)

	inst, err := Instantiate(c, art, NewMapResolver(), "add-module", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	mi := object.ModuleInstanceData(inst)
	h, ok := mi.Exports["add"]
	if !ok {
		t.Fatal("expected export \"add\"")
	}
	fnObj := c.Get(h)
	if !c.IsA(h, object.KindFunction) {
		t.Fatalf("export \"add\" is not a Function, got kind %v", fnObj.Kind)
	}
	fn := object.FunctionData(fnObj)
	compiled := fn.Entry.(emit.CompiledFunc)
	results := compiled(&emit.Frame{Locals: []uint64{2, 3}})
	if len(results) != 1 || results[0] != 5 {
		t.Fatalf("add(2,3) = %v, want [5]", results)
	}
}

func TestInstantiateMissingImportFails(t *testing.T) {
	ft := addFuncType()
	ir := &wasm.Module{
		Imports: []wasm.Import{{Module: "env", Name: "add", Type: wasm.ExternType{Kind: wasm.ExternFunc, Func: ft}}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	c := object.NewCompartment()
	q := quota.NewUnlimited()
	if _, err := Instantiate(c, art, NewMapResolver(), "m", q); err == nil {
		t.Fatal("expected a missing-import error")
	}
}

func TestInstantiateImportTypeMismatchFails(t *testing.T) {
	ft := addFuncType()
	ir := &wasm.Module{
		Imports: []wasm.Import{{Module: "env", Name: "mem", Type: wasm.ExternType{Kind: wasm.ExternFunc, Func: ft}}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	c := object.NewCompartment()
	q := quota.NewUnlimited()
	wrongKindObj, err := c.NewMemory(wasm.MemoryType{Limits: wasm.Limits{Min: 1}}, q)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	resolver := NewMapResolver()
	resolver.Define("env", "mem", wrongKindObj)

	if _, err := Instantiate(c, art, resolver, "m", q); err == nil {
		t.Fatal("expected an import-type-mismatch error")
	}
}

// a data segment whose offset+length exceeds its memory's declared (and
// instantiated) size fails instantiation with a trap.
func TestInstantiateDataSegmentOutOfBoundsTraps(t *testing.T) {
	ir := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}, // 1 page = 65536 bytes
		DataSegments: []wasm.DataSegment{{
			MemoryIndex: 0,
			Offset:      &wasm.Const{ValueI64: 70000},
			Bytes:       []byte{1, 2, 3},
		}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	c := object.NewCompartment()
	q := quota.NewUnlimited()
	_, err = Instantiate(c, art, NewMapResolver(), "m", q)
	if err == nil {
		t.Fatal("expected an out-of-bounds data segment trap")
	}
	trapErr, ok := err.(*trap.Error)
	if !ok {
		t.Fatalf("expected *trap.Error, got %T: %v", err, err)
	}
	kind, ok := trap.KindOf(c, trapErr.Exception)
	if !ok || kind != trap.OutOfBoundsDataSegmentAccess {
		t.Fatalf("trap kind = %v, want OutOfBoundsDataSegmentAccess", kind)
	}
}

// a 4-element function table populated by an element segment, with a
// wraparound-capable signature recorded from the first placed function.
func TestInstantiateElemSegmentPopulatesTableAndRecordsSignature(t *testing.T) {
	ft := wasm.FuncType{Results: []wasm.ValType{wasm.I32}}
	ir := &wasm.Module{
		Types:  []wasm.FuncType{ft},
		Funcs:  []wasm.Func{{Type: ft, Body: &wasm.Const{ValueI64: 42}}},
		Tables: []wasm.TableType{{Element: wasm.FuncRef, Limits: wasm.Limits{Min: 4}}},
		ElemSegments: []wasm.ElemSegment{{
			TableIndex:  0,
			Offset:      &wasm.Const{ValueI64: 1},
			FuncIndices: []uint32{0},
		}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	c := object.NewCompartment()
	q := quota.NewUnlimited()
	inst, err := Instantiate(c, art, NewMapResolver(), "m", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	mi := object.ModuleInstanceData(inst)
	tbl := object.TableData(c.Get(mi.Tables[0]))
	h, ok := tbl.Get(1)
	if !ok || h == 0 {
		t.Fatal("expected table slot 1 to hold the elem segment's function")
	}
	tag, hasSig := tbl.ExpectedSignature()
	if !hasSig || tag != ft.Tag() {
		t.Fatal("expected the table to record the placed function's signature")
	}
}

func TestInstantiateInvalidTableSizeFails(t *testing.T) {
	ir := &wasm.Module{
		Tables: []wasm.TableType{{Element: wasm.FuncRef, Limits: wasm.Limits{Min: 3}}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	c := object.NewCompartment()
	q := quota.NewUnlimited()
	if _, err := Instantiate(c, art, NewMapResolver(), "m", q); err == nil {
		t.Fatal("expected an invalid-table-size error for a non-power-of-two length")
	}
}
