package emit

import (
	"testing"

	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

// fakeInstance is the minimal Instance used across this package's tests;
// it backs one flat byte slice as "memory 0" and a slice of function
// entries as "table 0", enough to exercise addressing, calls, and traps
// without the real object/runtime machinery.
type fakeInstance struct {
	mem     []byte
	table   []fakeTableSlot
	globals []uint64
	funcs   map[uint32]CompiledFunc
	trapped *trapSignal
}

type fakeTableSlot struct {
	funcIdx uint32
	sigTag  uint64
	present bool
}

type trapSignal struct {
	kind trap.Kind
	args []uint64
}

func (t *trapSignal) Error() string { return t.kind.String() }

func newFakeInstance(memPages int) *fakeInstance {
	return &fakeInstance{
		mem:   make([]byte, memPages*65536),
		funcs: map[uint32]CompiledFunc{},
	}
}

func (fi *fakeInstance) MemoryAt(uint32) Memory { return fakeMemory{fi} }
func (fi *fakeInstance) TableAt(uint32) Table   { return fakeTable{fi} }
func (fi *fakeInstance) GlobalAt(idx uint32) Global {
	for len(fi.globals) <= int(idx) {
		fi.globals = append(fi.globals, 0)
	}
	return &fakeGlobal{fi, idx}
}

func (fi *fakeInstance) CallFunction(idx uint32, args []uint64) []uint64 {
	fn, ok := fi.funcs[idx]
	if !ok {
		panic("fakeInstance: no such function")
	}
	return fn(&Frame{Locals: append([]uint64(nil), args...), Instance: fi})
}

func (fi *fakeInstance) CallIndirect(tableIdx, elemIdx uint32, expected wasm.FuncType, args []uint64) []uint64 {
	if int(elemIdx) >= len(fi.table) || !fi.table[elemIdx].present {
		fi.Trap(trap.UninitializedTableElement, nil)
	}
	slot := fi.table[elemIdx]
	if slot.sigTag != expected.Tag() {
		fi.Trap(trap.IndirectCallSignatureMismatch, nil)
	}
	return fi.CallFunction(slot.funcIdx, args)
}

func (fi *fakeInstance) Trap(kind trap.Kind, args []uint64) {
	panic(&trapSignal{kind: kind, args: args})
}

func (fi *fakeInstance) ThrowUser(typeIdx uint32, args []uint64) {
	panic(&trapSignal{kind: trap.Kind(-1), args: args})
}

type fakeMemory struct{ fi *fakeInstance }

func (m fakeMemory) Load(addr uint64, width int) uint64 {
	if addr+uint64(width) > uint64(len(m.fi.mem)) {
		m.fi.Trap(trap.OutOfBoundsMemoryAccess, []uint64{addr})
	}
	var v uint64
	for i := 0; i < width; i++ {
		v |= uint64(m.fi.mem[addr+uint64(i)]) << (8 * i)
	}
	return v
}

func (m fakeMemory) Store(addr uint64, width int, value uint64) {
	if addr+uint64(width) > uint64(len(m.fi.mem)) {
		m.fi.Trap(trap.OutOfBoundsMemoryAccess, []uint64{addr})
	}
	for i := 0; i < width; i++ {
		m.fi.mem[addr+uint64(i)] = byte(value >> (8 * i))
	}
}

func (m fakeMemory) Size() uint64            { return uint64(len(m.fi.mem) / 65536) }
func (m fakeMemory) Grow(delta uint64) int64 { return -1 }

type fakeTable struct{ fi *fakeInstance }

func (t fakeTable) Len() uint32 { return uint32(len(t.fi.table)) }
func (t fakeTable) FuncAt(index uint32) (uint32, uint64, bool) {
	if int(index) >= len(t.fi.table) || !t.fi.table[index].present {
		return 0, 0, false
	}
	s := t.fi.table[index]
	return s.funcIdx, s.sigTag, true
}

type fakeGlobal struct {
	fi  *fakeInstance
	idx uint32
}

func (g *fakeGlobal) Get() uint64  { return g.fi.globals[g.idx] }
func (g *fakeGlobal) Set(v uint64) { g.fi.globals[g.idx] = v }

func runCompiled(t *testing.T, fi *fakeInstance, fn CompiledFunc, args ...uint64) []uint64 {
	t.Helper()
	return fn(&Frame{Locals: append([]uint64(nil), args...), Instance: fi})
}

// add(i32, i32) -> i32: local.get 0; local.get 1; i32.add — scenario S1.
func TestEmitAddI32(t *testing.T) {
	body := &wasm.Binary{
		Op:   wasm.OpAdd,
		Left: &wasm.LocalGet{Index: 0},
		Right: &wasm.LocalGet{Index: 1},
	}
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	fn := Emit(sig, body)

	fi := newFakeInstance(1)
	results := runCompiled(t, fi, fn, 2, 3)
	if len(results) != 1 || results[0] != 5 {
		t.Fatalf("add(2,3) = %v, want [5]", results)
	}
}

// peek(i32) -> i32: i32.load offset=0 align=1 — scenario S2.
func TestEmitLoadOutOfBoundsTraps(t *testing.T) {
	body := &wasm.Load{
		Address:   &wasm.LocalGet{Index: 0},
		MemType:   wasm.I32,
		AddrWidth: wasm.Addr32,
	}
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	fn := Emit(sig, body)
	fi := newFakeInstance(1)

	results := runCompiled(t, fi, fn, 0)
	if len(results) != 1 || results[0] != 0 {
		t.Fatalf("peek(0) = %v, want [0] (zero-initialized)", results)
	}

	caught := catchTrap(t, func() { runCompiled(t, fi, fn, 65536) })
	if caught.kind != trap.OutOfBoundsMemoryAccess {
		t.Fatalf("peek(65536) trapped %v, want OutOfBoundsMemoryAccess", caught.kind)
	}
}

// indirect call through a 4-element table with wraparound index 5 -> 1
// (5 & 3 == 1) — scenario S3.
func TestEmitCallIndirectWraparound(t *testing.T) {
	fi := newFakeInstance(1)
	ft := wasm.FuncType{Results: []wasm.ValType{wasm.I32}}
	fi.funcs[0] = Emit(ft, &wasm.Const{ValueI64: 42})
	fi.table = []fakeTableSlot{
		{present: false},
		{funcIdx: 0, sigTag: ft.Tag(), present: true},
		{present: false},
		{present: false},
	}

	body := &wasm.CallIndirect{
		TableIndex:   0,
		Index:        &wasm.Const{ValueI64: 5},
		ExpectedType: ft,
	}
	sig := wasm.FuncType{Results: []wasm.ValType{wasm.I32}}
	fn := Emit(sig, body)

	results := runCompiled(t, fi, fn)
	if len(results) != 1 || results[0] != 42 {
		t.Fatalf("call_indirect(5) = %v, want [42] (5 & 3 == 1)", results)
	}
}

// integer divide-by-zero and INT32_MIN / -1 both trap
// IntegerDivideByZeroOrOverflow — scenario S4.
func TestEmitIntegerDivTraps(t *testing.T) {
	div := &wasm.Binary{Op: wasm.OpDivS, Left: &wasm.Const{ValueI64: 1}, Right: &wasm.LocalGet{Index: 0}}
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}}
	fn := Emit(sig, div)
	fi := newFakeInstance(1)

	caught := catchTrap(t, func() { runCompiled(t, fi, fn, 0) })
	if caught.kind != trap.IntegerDivideByZeroOrOverflow {
		t.Fatalf("div by zero trapped %v, want IntegerDivideByZeroOrOverflow", caught.kind)
	}

	overflow := &wasm.Binary{Op: wasm.OpDivS, Left: &wasm.Const{ValueI64: int64(int32(-2147483648))}, Right: &wasm.LocalGet{Index: 0}}
	fn2 := Emit(sig, overflow)
	negOne := int32(-1)
	caught2 := catchTrap(t, func() { runCompiled(t, fi, fn2, uint64(uint32(negOne))) })
	if caught2.kind != trap.IntegerDivideByZeroOrOverflow {
		t.Fatalf("MIN/-1 trapped %v, want IntegerDivideByZeroOrOverflow", caught2.kind)
	}
}

func TestEmitBranchAndLoop(t *testing.T) {
	// Sum 0..3 via a Loop that breaks when the counter reaches 4.
	const counter, sum = 0, 1
	loopBody := &wasm.Sequence{Exprs: []wasm.Expr{
		&wasm.Branch{
			Target:    1, // Break
			Condition: &wasm.Compare{Op: wasm.CmpGeS, Left: &wasm.LocalGet{Index: counter}, Right: &wasm.Const{ValueI64: 4}},
		},
		&wasm.LocalSet{Index: sum, Value: &wasm.Binary{Op: wasm.OpAdd, Left: &wasm.LocalGet{Index: sum}, Right: &wasm.LocalGet{Index: counter}}},
		&wasm.LocalSet{Index: counter, Value: &wasm.Binary{Op: wasm.OpAdd, Left: &wasm.LocalGet{Index: counter}, Right: &wasm.Const{ValueI64: 1}}},
		&wasm.Branch{Target: 0}, // Continue
	}}
	loop := &wasm.Loop{Continue: 0, Break: 1, Body: loopBody}
	body := &wasm.Sequence{Exprs: []wasm.Expr{loop, &wasm.Return{Value: &wasm.LocalGet{Index: sum}}}}

	sig := wasm.FuncType{Results: []wasm.ValType{wasm.I32}}
	fn := Emit(sig, body)
	fi := newFakeInstance(1)

	results := fn(&Frame{Locals: make([]uint64, 2), Instance: fi})
	if len(results) != 1 || results[0] != 6 {
		t.Fatalf("loop sum = %v, want [6] (0+1+2+3)", results)
	}
}

func catchTrap(t *testing.T, fn func()) *trapSignal {
	t.Helper()
	var caught *trapSignal
	func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			ts, ok := r.(*trapSignal)
			if !ok {
				panic(r)
			}
			caught = ts
		}()
		fn()
	}()
	if caught == nil {
		t.Fatal("expected a trap, got none")
	}
	return caught
}
