package runtime

import (
	"github.com/gowavm/wavm/emit"
	"github.com/gowavm/wavm/memmgr"
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

// exceptionSignal is the panic value every trap/user-exception path in
// this package uses to unwind to an invocation boundary. It is never
// meant to escape InvokeUnchecked/CatchRuntimeExceptions; a panic
// recovered elsewhere with any other value is a genuine Go bug and is
// re-panicked, never swallowed.
type exceptionSignal struct {
	exception *object.Object
}

// boundInstance implements emit.Instance against real object/memmgr
// state: it is the "module instance, as seen mid-call" that package emit
// was written against a narrow interface for, so emit never needs to
// import object directly (see emit.Instance's doc comment).
type boundInstance struct {
	compartment *object.Compartment
	mi          *object.ModuleInstance
	miHandle    object.Handle
	ctx         *object.Context
}

func moduleInstanceFor(c *object.Compartment, h object.Handle) *object.ModuleInstance {
	if h == 0 {
		return nil
	}
	return object.ModuleInstanceData(c.Get(h))
}

// forOwner rebinds b to the ModuleInstance that owns a callee, for a call
// that crosses from one module instance into another through a resolved
// import — the Context and Compartment stay the same, only the index
// spaces a further nested MemoryAt/TableAt/GlobalAt resolve against
// change.
func (b *boundInstance) forOwner(owner object.Handle) *boundInstance {
	if owner == 0 || owner == b.miHandle {
		return b
	}
	return &boundInstance{compartment: b.compartment, mi: moduleInstanceFor(b.compartment, owner), miHandle: owner, ctx: b.ctx}
}

func (b *boundInstance) MemoryAt(idx uint32) emit.Memory {
	h := b.mi.Memories[idx]
	return memoryView{handle: h, mem: object.MemoryData(b.compartment.Get(h)).Mem, inst: b}
}

func (b *boundInstance) TableAt(idx uint32) emit.Table {
	h := b.mi.Tables[idx]
	return tableView{tbl: object.TableData(b.compartment.Get(h))}
}

func (b *boundInstance) GlobalAt(idx uint32) emit.Global {
	h := b.mi.Globals[idx]
	g := object.GlobalData(b.compartment.Get(h))
	return globalView{ctx: b.ctx, handle: h, isRef: g.Type.Val.IsReference()}
}

func (b *boundInstance) CallFunction(idx uint32, args []uint64) []uint64 {
	h := b.mi.Functions[idx]
	fn := object.FunctionData(b.compartment.Get(h))
	entry := fn.Entry.(emit.CompiledFunc)
	locals := make([]uint64, fn.NumLocals)
	copy(locals, args)
	return entry(&emit.Frame{Locals: locals, Instance: b.forOwner(fn.Instance)})
}

func (b *boundInstance) CallIndirect(tableIdx, elemIdx uint32, expected wasm.FuncType, args []uint64) []uint64 {
	tblObj := b.compartment.Get(b.mi.Tables[tableIdx])
	tbl := object.TableData(tblObj)
	h, ok := tbl.Get(elemIdx)
	if !ok {
		b.Trap(trap.OutOfBoundsTableAccess, []uint64{uint64(tblObj.Handle()), uint64(elemIdx)})
	}
	if h == 0 {
		b.Trap(trap.UninitializedTableElement, []uint64{uint64(tblObj.Handle()), uint64(elemIdx)})
	}
	fn := object.FunctionData(b.compartment.Get(h))
	if !fn.Type.Equal(expected) {
		b.Trap(trap.IndirectCallSignatureMismatch, nil)
	}
	entry := fn.Entry.(emit.CompiledFunc)
	locals := make([]uint64, fn.NumLocals)
	copy(locals, args)
	return entry(&emit.Frame{Locals: locals, Instance: b.forOwner(fn.Instance)})
}

func (b *boundInstance) Trap(kind trap.Kind, args []uint64) {
	exc := trap.New(b.compartment, kind, args, captureStack(2))
	panic(&exceptionSignal{exception: exc})
}

func (b *boundInstance) ThrowUser(typeIdx uint32, args []uint64) {
	h := b.mi.ExceptionTypes[typeIdx]
	exc := b.compartment.NewException(h, args, captureStack(2))
	panic(&exceptionSignal{exception: exc})
}

// memoryView implements emit.Memory over a real memmgr.Memory. It checks
// bounds explicitly against the committed-page count rather than
// indexing Base() directly — see doc.go's "No real signal handling"
// section for why this replaces a platform fault handler.
type memoryView struct {
	handle object.Handle
	mem    *memmgr.Memory
	inst   *boundInstance
}

func (v memoryView) Load(addr uint64, width int) uint64 {
	data, err := v.mem.ValidatedRange(addr, uint64(width))
	if err != nil {
		v.inst.Trap(trap.OutOfBoundsMemoryAccess, []uint64{uint64(v.handle), addr})
		return 0
	}
	var raw uint64
	for i := 0; i < width; i++ {
		raw |= uint64(data[i]) << (8 * i)
	}
	return raw
}

func (v memoryView) Store(addr uint64, width int, value uint64) {
	data, err := v.mem.ValidatedRange(addr, uint64(width))
	if err != nil {
		v.inst.Trap(trap.OutOfBoundsMemoryAccess, []uint64{uint64(v.handle), addr})
		return
	}
	for i := 0; i < width; i++ {
		data[i] = byte(value >> (8 * i))
	}
}

func (v memoryView) Size() uint64 { return v.mem.NumPages() }

func (v memoryView) Grow(delta uint64) int64 {
	prev, err := v.mem.Grow(delta)
	if err != nil {
		return -1
	}
	return int64(prev)
}

type tableView struct {
	tbl *object.Table
}

func (v tableView) Len() uint32 { return v.tbl.Len() }

func (v tableView) FuncAt(index uint32) (handle uint32, sigTag uint64, ok bool) {
	h, exists := v.tbl.Get(index)
	if !exists {
		return 0, 0, false
	}
	tag, _ := v.tbl.ExpectedSignature()
	return uint32(h), tag, true
}

// globalView implements emit.Global against a Context's private value
// store.
type globalView struct {
	ctx    *object.Context
	handle object.Handle
	isRef  bool
}

func (v globalView) Get() uint64 {
	num, ref := v.ctx.GlobalValue(v.handle)
	if v.isRef {
		return uint64(ref)
	}
	return num
}

func (v globalView) Set(val uint64) {
	if v.isRef {
		v.ctx.SetGlobalValue(v.handle, 0, object.Handle(val))
		return
	}
	v.ctx.SetGlobalValue(v.handle, val, 0)
}
