// Package linker turns a compiled Artifact into a materialized
// ModuleInstance. See doc.go for the full instantiation contract.
package linker

import (
	"math"

	"go.uber.org/zap"

	"github.com/gowavm/wavm/compiler"
	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/memmgr"
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

// Instantiate materializes art into c, resolving imports through resolver,
// and returns the resulting ModuleInstance Object. q is the
// ResourceQuota newly created Tables/Memories are reserved against; the
// caller is responsible for its lifetime (AddRef/Release) the same way it
// is for any other quota holder.
func Instantiate(c *object.Compartment, art *compiler.Artifact, resolver Resolver, debugName string, q *quota.ResourceQuota) (result *object.Object, err error) {
	ir := art.IR
	if ir == nil {
		return nil, errors.MalformedIR("artifact carries no IR")
	}

	mi := &object.ModuleInstance{DebugName: debugName}
	instObj := c.NewModuleInstance(mi)

	// created tracks every Object this call allocates, so a failure
	// partway through can release them immediately instead of leaving
	// unrooted garbage for the next collection pass.
	created := []*object.Object{instObj}
	defer func() {
		if err != nil {
			for i := len(created) - 1; i >= 0; i-- {
				c.FreeIfUnrooted(created[i])
			}
		}
	}()

	if err = resolveImports(c, mi, ir, resolver); err != nil {
		return nil, err
	}
	created = append(created, instantiateLocalFuncs(c, mi, ir, art, instObj.Handle())...)
	tblObjs, err := instantiateTables(c, mi, ir, q)
	created = append(created, tblObjs...)
	if err != nil {
		return nil, err
	}
	memObjs, err := instantiateMemories(c, mi, ir, q)
	created = append(created, memObjs...)
	if err != nil {
		return nil, err
	}
	globObjs, err := instantiateGlobals(c, mi, ir)
	created = append(created, globObjs...)
	if err != nil {
		return nil, err
	}
	created = append(created, instantiateExceptionTypes(c, mi, ir)...)

	dataWrites, err := validateDataSegments(c, mi, ir)
	if err != nil {
		return nil, err
	}
	elemWrites, err := validateElemSegments(c, mi, ir)
	if err != nil {
		return nil, err
	}
	applyDataSegments(dataWrites)
	applyElemSegments(c, elemWrites)

	if err = buildExports(mi, ir); err != nil {
		return nil, err
	}
	if ir.Start != nil && int(*ir.Start) < len(mi.Functions) {
		mi.Start = mi.Functions[*ir.Start]
	}

	Logger().Debug("module instantiated",
		zap.String("name", debugName),
		zap.Int("functions", len(mi.Functions)),
		zap.Int("exports", len(mi.Exports)))
	return instObj, nil
}

func resolveImports(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module, resolver Resolver) error {
	for _, imp := range ir.Imports {
		obj, ok := resolver.Resolve(imp.Module, imp.Name, imp.Type)
		if !ok {
			return errors.MissingImport(imp.Module, imp.Name)
		}
		actual, hasType := c.GetExternType(obj.Handle())
		if !hasType || !externTypesCompatible(actual, imp.Type) {
			return errors.ImportTypeMismatch(imp.Module, imp.Name, "declared type does not match the resolved object")
		}
		switch imp.Type.Kind {
		case wasm.ExternFunc:
			mi.Functions = append(mi.Functions, obj.Handle())
		case wasm.ExternTable:
			mi.Tables = append(mi.Tables, obj.Handle())
		case wasm.ExternMemory:
			mi.Memories = append(mi.Memories, obj.Handle())
		case wasm.ExternGlobal:
			mi.Globals = append(mi.Globals, obj.Handle())
		case wasm.ExternException:
			mi.ExceptionTypes = append(mi.ExceptionTypes, obj.Handle())
		}
	}
	return nil
}

func instantiateLocalFuncs(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module, art *compiler.Artifact, owner object.Handle) []*object.Object {
	created := make([]*object.Object, 0, len(ir.Funcs))
	for i, fn := range ir.Funcs {
		fnObj := c.NewFunction(fn.Type, owner, art.Functions[i])
		object.FunctionData(fnObj).NumLocals = len(fn.Type.Params) + len(fn.Locals)
		mi.Functions = append(mi.Functions, fnObj.Handle())
		created = append(created, fnObj)
	}
	return created
}

func instantiateTables(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module, q *quota.ResourceQuota) ([]*object.Object, error) {
	created := make([]*object.Object, 0, len(ir.Tables))
	for _, tt := range ir.Tables {
		if tt.Element == wasm.FuncRef && tt.Limits.Min > 0 && !isPowerOfTwo(tt.Limits.Min) {
			return created, errors.InvalidTableSize(tt.Limits.Min)
		}
		tblObj, err := c.NewTable(tt, q)
		if err != nil {
			return created, err
		}
		mi.Tables = append(mi.Tables, tblObj.Handle())
		created = append(created, tblObj)
	}
	return created, nil
}

func instantiateMemories(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module, q *quota.ResourceQuota) ([]*object.Object, error) {
	created := make([]*object.Object, 0, len(ir.Memories))
	for _, mt := range ir.Memories {
		memObj, err := c.NewMemory(mt, q)
		if err != nil {
			return created, err
		}
		mi.Memories = append(mi.Memories, memObj.Handle())
		created = append(created, memObj)
	}
	return created, nil
}

func instantiateGlobals(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module) ([]*object.Object, error) {
	created := make([]*object.Object, 0, len(ir.Globals))
	for _, g := range ir.Globals {
		num, ref, err := evalConstExpr(c, mi, g.Init)
		if err != nil {
			return created, err
		}
		globObj := c.NewGlobal(g.Type)
		gd := object.GlobalData(globObj)
		if g.Type.Val.IsReference() {
			gd.RefValue = ref
		} else {
			gd.NumValue = num
		}
		gd.Assigned = true
		mi.Globals = append(mi.Globals, globObj.Handle())
		created = append(created, globObj)
	}
	return created, nil
}

func instantiateExceptionTypes(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module) []*object.Object {
	created := make([]*object.Object, 0, len(ir.ExceptionTypes))
	for _, et := range ir.ExceptionTypes {
		etObj := c.NewExceptionType(et)
		mi.ExceptionTypes = append(mi.ExceptionTypes, etObj.Handle())
		created = append(created, etObj)
	}
	return created
}

type dataWrite struct {
	mem    *memmgr.Memory
	offset uint64
	bytes  []byte
}

// validateDataSegments bounds-checks every segment against its target
// Memory's currently committed size without writing anything, so a single
// OOB segment never leaves earlier segments' writes observable.
func validateDataSegments(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module) ([]dataWrite, error) {
	writes := make([]dataWrite, 0, len(ir.DataSegments))
	for _, seg := range ir.DataSegments {
		if int(seg.MemoryIndex) >= len(mi.Memories) {
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidState).
				Detail("data segment references out-of-range memory %d", seg.MemoryIndex).Build()
		}
		memObj := c.Get(mi.Memories[seg.MemoryIndex])
		mem := object.MemoryData(memObj).Mem
		offset, _, err := evalConstExpr(c, mi, seg.Offset)
		if err != nil {
			return nil, err
		}
		if _, err := mem.ValidatedRange(offset, uint64(len(seg.Bytes))); err != nil {
			return nil, trap.Raise(c, trap.OutOfBoundsDataSegmentAccess,
				[]uint64{uint64(memObj.Handle()), offset, uint64(len(seg.Bytes))}, nil)
		}
		writes = append(writes, dataWrite{mem: mem, offset: offset, bytes: seg.Bytes})
	}
	return writes, nil
}

func applyDataSegments(writes []dataWrite) {
	for _, w := range writes {
		dst, _ := w.mem.ValidatedRange(w.offset, uint64(len(w.bytes)))
		copy(dst, w.bytes)
	}
}

type elemWrite struct {
	table  *object.Table
	offset uint64
	funcs  []object.Handle
}

func validateElemSegments(c *object.Compartment, mi *object.ModuleInstance, ir *wasm.Module) ([]elemWrite, error) {
	writes := make([]elemWrite, 0, len(ir.ElemSegments))
	for _, seg := range ir.ElemSegments {
		if int(seg.TableIndex) >= len(mi.Tables) {
			return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidState).
				Detail("elem segment references out-of-range table %d", seg.TableIndex).Build()
		}
		tblObj := c.Get(mi.Tables[seg.TableIndex])
		tbl := object.TableData(tblObj)
		offset, _, err := evalConstExpr(c, mi, seg.Offset)
		if err != nil {
			return nil, err
		}
		if offset+uint64(len(seg.FuncIndices)) > uint64(tbl.Len()) {
			return nil, trap.Raise(c, trap.OutOfBoundsElemSegmentAccess,
				[]uint64{uint64(tblObj.Handle()), offset, uint64(len(seg.FuncIndices))}, nil)
		}
		handles := make([]object.Handle, len(seg.FuncIndices))
		for i, fi := range seg.FuncIndices {
			if fi == wasm.NullFuncIndex {
				continue
			}
			if int(fi) >= len(mi.Functions) {
				return nil, errors.New(errors.PhaseInstantiate, errors.KindInvalidState).
					Detail("elem segment references out-of-range function %d", fi).Build()
			}
			handles[i] = mi.Functions[fi]
		}
		writes = append(writes, elemWrite{table: tbl, offset: offset, funcs: handles})
	}
	return writes, nil
}

// applyElemSegments writes resolved function handles into their tables,
// recording the first function signature seen as the table's expected
// indirect-call signature.
func applyElemSegments(c *object.Compartment, writes []elemWrite) {
	for _, w := range writes {
		for i, h := range w.funcs {
			w.table.Set(uint32(w.offset)+uint32(i), h)
			if h == 0 {
				continue
			}
			if _, hasSig := w.table.ExpectedSignature(); !hasSig {
				if fn := object.FunctionData(c.Get(h)); fn != nil {
					w.table.SetExpectedSignature(fn.Type)
				}
			}
		}
	}
}

func buildExports(mi *object.ModuleInstance, ir *wasm.Module) error {
	mi.Exports = make(map[string]object.Handle, len(ir.Exports))
	for _, exp := range ir.Exports {
		var space []object.Handle
		switch exp.Type.Kind {
		case wasm.ExternFunc:
			space = mi.Functions
		case wasm.ExternTable:
			space = mi.Tables
		case wasm.ExternMemory:
			space = mi.Memories
		case wasm.ExternGlobal:
			space = mi.Globals
		case wasm.ExternException:
			space = mi.ExceptionTypes
		}
		if int(exp.Index) >= len(space) {
			return errors.New(errors.PhaseInstantiate, errors.KindInvalidState).
				Detail("export %q references out-of-range %s index %d", exp.Name, exp.Type.Kind, exp.Index).Build()
		}
		mi.Exports[exp.Name] = space[exp.Index]
	}
	return nil
}

// evalConstExpr evaluates a constant initializer (Global.Init,
// DataSegment.Offset, ElemSegment.Offset): a literal, or a reference to an
// already-materialized global in the same module's index space (the only
// forward-reference instantiation-time expressions need — no other Expr
// kind is a valid constant initializer).
func evalConstExpr(c *object.Compartment, mi *object.ModuleInstance, e wasm.Expr) (num uint64, ref object.Handle, err error) {
	switch v := e.(type) {
	case *wasm.Const:
		switch v.ResultType() {
		case wasm.F32:
			return uint64(math.Float32bits(float32(v.ValueF64))), 0, nil
		case wasm.F64:
			return math.Float64bits(v.ValueF64), 0, nil
		case wasm.I32:
			return uint64(uint32(v.ValueI64)), 0, nil
		default:
			return uint64(v.ValueI64), 0, nil
		}
	case *wasm.GlobalGet:
		if int(v.Index) >= len(mi.Globals) {
			return 0, 0, errors.New(errors.PhaseInstantiate, errors.KindInvalidState).
				Detail("constant initializer references out-of-range global %d", v.Index).Build()
		}
		g := object.GlobalData(c.Get(mi.Globals[v.Index]))
		return g.NumValue, g.RefValue, nil
	default:
		return 0, 0, errors.MalformedIR("unsupported constant initializer expression")
	}
}

func isPowerOfTwo(n uint64) bool { return n&(n-1) == 0 }

func externTypesCompatible(actual, expected wasm.ExternType) bool {
	if actual.Kind != expected.Kind {
		return false
	}
	switch expected.Kind {
	case wasm.ExternFunc:
		return actual.Func.Equal(expected.Func)
	case wasm.ExternTable:
		return actual.Table.Element == expected.Table.Element && limitsCompatible(actual.Table.Limits, expected.Table.Limits)
	case wasm.ExternMemory:
		return limitsCompatible(actual.Memory.Limits, expected.Memory.Limits)
	case wasm.ExternGlobal:
		return actual.Global == expected.Global
	case wasm.ExternException:
		return exceptionParamsEqual(actual.Exception, expected.Exception)
	default:
		return false
	}
}

// limitsCompatible implements standard Wasm import subtyping: the
// resolved object's limits must be at least as generous as declared
// (actual.Min >= expected.Min) and at least as constrained when a max is
// declared (expected.Max == nil, or actual.Max is set and no looser).
func limitsCompatible(actual, expected wasm.Limits) bool {
	if actual.Min < expected.Min {
		return false
	}
	if expected.Max == nil {
		return true
	}
	return actual.Max != nil && *actual.Max <= *expected.Max
}

func exceptionParamsEqual(a, b wasm.ExceptionType) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}
	for i := range a.Params {
		if a.Params[i] != b.Params[i] {
			return false
		}
	}
	return true
}
