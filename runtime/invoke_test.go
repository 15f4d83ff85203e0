package runtime

import (
	"testing"

	"github.com/gowavm/wavm/compiler"
	"github.com/gowavm/wavm/linker"
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

func instantiateAddModule(t *testing.T) (*object.Compartment, *object.Object) {
	t.Helper()
	c := object.NewCompartment()
	q := quota.NewUnlimited()
	art := compileAddModule(t)
	instObj, err := linker.Instantiate(c, art, linker.NewMapResolver(), "add-module", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	return c, instObj
}

func exportedFunc(c *object.Compartment, instObj *object.Object, name string) *object.Object {
	mi := object.ModuleInstanceData(instObj)
	return c.Get(mi.Exports[name])
}

// compile, instantiate, create a Context, and call an exported function
// through both the unchecked and checked invocation paths.
func TestInvokeUncheckedRunsExportedFunction(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "add")

	results, err := InvokeUnchecked(ctxObj, fnObj, []uint64{2, 3})
	if err != nil {
		t.Fatalf("InvokeUnchecked: %v", err)
	}
	if len(results) != 1 || results[0] != 5 {
		t.Fatalf("add(2,3) = %v, want [5]", results)
	}
}

func TestInvokeCheckedRunsExportedFunction(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "add")

	results, err := InvokeChecked(ctxObj, fnObj, []TaggedValue{
		{Type: wasm.I32, Value: 2},
		{Type: wasm.I32, Value: 3},
	})
	if err != nil {
		t.Fatalf("InvokeChecked: %v", err)
	}
	if len(results) != 1 || results[0].Type != wasm.I32 || results[0].Value != 5 {
		t.Fatalf("add(2,3) = %v, want [{I32 5}]", results)
	}
}

func TestInvokeCheckedRejectsArityMismatch(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "add")

	_, err := InvokeChecked(ctxObj, fnObj, []TaggedValue{{Type: wasm.I32, Value: 2}})
	assertTrapKind(t, c, err, trap.InvalidArgument)
}

func TestInvokeCheckedRejectsTypeMismatch(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "add")

	_, err := InvokeChecked(ctxObj, fnObj, []TaggedValue{
		{Type: wasm.F64, Value: 2},
		{Type: wasm.I32, Value: 3},
	})
	assertTrapKind(t, c, err, trap.InvalidArgument)
}

func assertTrapKind(t *testing.T, c *object.Compartment, err error, want trap.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected a trap, got nil error")
	}
	trapErr, ok := err.(*trap.Error)
	if !ok {
		t.Fatalf("expected *trap.Error, got %T: %v", err, err)
	}
	kind, ok := trap.KindOf(c, trapErr.Exception)
	if !ok || kind != want {
		t.Fatalf("trap kind = %v, want %v", kind, want)
	}
}

// a load past a memory's committed size traps rather than corrupting
// memory or crashing, exercising memoryView's explicit bounds check
// end-to-end through the real invocation boundary.
func TestInvokeUncheckedMemoryOutOfBoundsTraps(t *testing.T) {
	art := buildOOBLoadModule(t)
	c := object.NewCompartment()
	q := quota.NewUnlimited()
	instObj, err := linker.Instantiate(c, art, linker.NewMapResolver(), "mem-module", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "load")

	_, err = InvokeUnchecked(ctxObj, fnObj, []uint64{70000})
	assertTrapKind(t, c, err, trap.OutOfBoundsMemoryAccess)
}

func buildOOBLoadModule(t *testing.T) *compiler.Artifact {
	t.Helper()
	ft := wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	ir := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Types:    []wasm.FuncType{ft},
		Funcs: []wasm.Func{{
			Type: ft,
			Body: &wasm.Load{
				MemoryIndex: 0,
				Address:     &wasm.LocalGet{Index: 0},
				MemType:     wasm.I32,
				Ext:         wasm.ZeroExtend,
			},
		}},
		Exports: []wasm.Export{{Name: "load", Type: wasm.ExternType{Kind: wasm.ExternFunc, Func: ft}, Index: 0}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return art
}

// integer division by zero traps with IntegerDivideByZeroOrOverflow.
func TestInvokeUncheckedDivideByZeroTraps(t *testing.T) {
	ft := wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	ir := &wasm.Module{
		Types: []wasm.FuncType{ft},
		Funcs: []wasm.Func{{
			Type: ft,
			Body: &wasm.Binary{Op: wasm.OpDivS, Left: &wasm.LocalGet{Index: 0}, Right: &wasm.LocalGet{Index: 1}},
		}},
		Exports: []wasm.Export{{Name: "div", Type: wasm.ExternType{Kind: wasm.ExternFunc, Func: ft}, Index: 0}},
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c := object.NewCompartment()
	q := quota.NewUnlimited()
	instObj, err := linker.Instantiate(c, art, linker.NewMapResolver(), "div-module", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	ctxObj := CreateContext(c)
	fnObj := exportedFunc(c, instObj, "div")

	_, err = InvokeUnchecked(ctxObj, fnObj, []uint64{10, 0})
	assertTrapKind(t, c, err, trap.IntegerDivideByZeroOrOverflow)
}

// mutable globals are private per Context: two Contexts of the same
// Compartment touching the same Global must see independent values once
// either writes.
func TestContextsHaveIndependentGlobalViews(t *testing.T) {
	c := object.NewCompartment()
	globObj := c.NewGlobal(wasm.GlobalType{Val: wasm.I32, Mutable: true})
	object.GlobalData(globObj).NumValue = 42
	object.GlobalData(globObj).Assigned = true
	h := globObj.Handle()

	ctxAObj := CreateContext(c)
	ctxBObj := CreateContext(c)
	ctxA := object.ContextData(ctxAObj)
	ctxB := object.ContextData(ctxBObj)

	numA, _ := ctxA.GlobalValue(h)
	numB, _ := ctxB.GlobalValue(h)
	if numA != 42 || numB != 42 {
		t.Fatalf("both contexts should inherit the shared default, got A=%d B=%d", numA, numB)
	}

	ctxA.SetGlobalValue(h, 100, 0)

	numA, _ = ctxA.GlobalValue(h)
	numB, _ = ctxB.GlobalValue(h)
	if numA != 100 {
		t.Fatalf("ctxA.GlobalValue = %d, want 100", numA)
	}
	if numB != 42 {
		t.Fatalf("ctxB.GlobalValue = %d, want unaffected 42, got %d", numB, numB)
	}

	// the shared default itself must never be mutated by a Context write.
	if object.GlobalData(globObj).NumValue != 42 {
		t.Fatal("SetGlobalValue must not touch the shared Global payload")
	}
}

func TestCloneContextCopiesGlobalView(t *testing.T) {
	c := object.NewCompartment()
	globObj := c.NewGlobal(wasm.GlobalType{Val: wasm.I32, Mutable: true})
	object.GlobalData(globObj).NumValue = 7
	h := globObj.Handle()

	srcObj := CreateContext(c)
	src := object.ContextData(srcObj)
	src.SetGlobalValue(h, 99, 0)

	dupObj, err := CloneContext(srcObj)
	if err != nil {
		t.Fatalf("CloneContext: %v", err)
	}
	dup := object.ContextData(dupObj)

	dupVal, _ := dup.GlobalValue(h)
	if dupVal != 99 {
		t.Fatalf("cloned context's global view = %d, want 99", dupVal)
	}

	dup.SetGlobalValue(h, 5, 0)
	srcVal, _ := src.GlobalValue(h)
	if srcVal != 99 {
		t.Fatal("writing to the clone must not affect the original Context")
	}
}

func TestRunStartFunctionInvokesDeclaredStart(t *testing.T) {
	startIdx := uint32(0)
	voidType := wasm.FuncType{}
	ir := &wasm.Module{
		Globals: []wasm.Global{{Type: wasm.GlobalType{Val: wasm.I32, Mutable: true}, Init: &wasm.Const{ValueI64: 0}}},
		Types:   []wasm.FuncType{voidType},
		Funcs: []wasm.Func{{
			Type: voidType,
			Body: &wasm.GlobalSet{Index: 0, Value: &wasm.Const{ValueI64: 1}},
		}},
		Start: &startIdx,
	}
	art, err := compiler.Compile(ir)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	c := object.NewCompartment()
	q := quota.NewUnlimited()
	instObj, err := linker.Instantiate(c, art, linker.NewMapResolver(), "start-module", q)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	ctxObj := CreateContext(c)

	if err := RunStartFunction(ctxObj, instObj); err != nil {
		t.Fatalf("RunStartFunction: %v", err)
	}

	mi := object.ModuleInstanceData(instObj)
	ctx := object.ContextData(ctxObj)
	num, _ := ctx.GlobalValue(mi.Globals[0])
	if num != 1 {
		t.Fatalf("global value after start = %d, want 1", num)
	}
}

func TestRunStartFunctionNoopWithoutStart(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	ctxObj := CreateContext(c)
	if err := RunStartFunction(ctxObj, instObj); err != nil {
		t.Fatalf("RunStartFunction: %v", err)
	}
}

func TestGetFunctionType(t *testing.T) {
	c, instObj := instantiateAddModule(t)
	fnObj := exportedFunc(c, instObj, "add")

	ft, err := GetFunctionType(fnObj)
	if err != nil {
		t.Fatalf("GetFunctionType: %v", err)
	}
	if !ft.Equal(addFuncType()) {
		t.Fatalf("GetFunctionType = %+v, want %+v", ft, addFuncType())
	}
}
