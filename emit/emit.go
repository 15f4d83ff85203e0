package emit

import (
	"math"

	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

// CompiledFunc is the "native code" a function body lowers to: a Go closure over the function's IR, built once by Compile and
// invoked directly on every call without re-inspecting the Expr tree.
// Results are returned as raw 64-bit patterns; the caller interprets them
// against the function's FuncType.Results.
type CompiledFunc func(f *Frame) []uint64

// Instance is the minimal view of a module instance an emitted closure
// needs at call time: resolving an index to the live Object backing it.
// package runtime's execution-time instance type implements this; emit
// never imports object directly to keep the two packages' compile order
// independent (emit only needs handles, not the object arena's shape).
type Instance interface {
	MemoryAt(idx uint32) Memory
	TableAt(idx uint32) Table
	GlobalAt(idx uint32) Global
	CallFunction(idx uint32, args []uint64) []uint64
	CallIndirect(tableIdx uint32, elemIdx uint32, expected wasm.FuncType, args []uint64) []uint64
	// Trap raises the given intrinsic exception Kind and never returns: it
	// panics with a value package runtime's invocation boundary recovers.
	Trap(kind trap.Kind, args []uint64)
	// ThrowUser raises a user-declared exception tag (wasm.ExceptionType
	// at typeIdx in the current module instance) and never returns.
	ThrowUser(typeIdx uint32, args []uint64)
}

// Memory, Table and Global are the narrow capabilities emitted code needs
// against a linear memory, table, and global cell, kept as interfaces so
// emit has no import-time dependency on memmgr/object.
type Memory interface {
	// Load/Store perform a masked, bounds-checked access at addr (already
	// zero-extended and masked by the caller) for width
	// bytes, calling back into Instance.Trap(OutOfBoundsMemoryAccess, ...)
	// on failure rather than returning an error, so Load/Store's Go
	// signature matches an unchecked hardware access.
	Load(addr uint64, width int) uint64
	Store(addr uint64, width int, value uint64)
	Size() uint64            // pages
	Grow(delta uint64) int64 // previous size, or -1 on failure
}

type Table interface {
	Len() uint32
	FuncAt(index uint32) (handle uint32, sigTag uint64, ok bool)
}

type Global interface {
	Get() uint64
	Set(v uint64)
}

// Frame is the per-call activation record threaded explicitly through
// every emitted closure.
type Frame struct {
	Locals   []uint64 // params followed by declared locals, indexed as one array
	Instance Instance
}

// ctlKind is the non-local control signal an emitted closure can return
// in place of falling through: a structured stand-in for the branch
// target descriptor stack, since Go has no computed goto to jump to an
// arbitrary label directly.
type ctlKind int

const (
	ctlNormal ctlKind = iota
	ctlBranch
	ctlReturn
)

type ctl struct {
	kind   ctlKind
	target wasm.TargetID
}

// opFunc is the shape of one emitted node: given a Frame, it either falls
// through normally (returning a zero ctl and the node's own result bits)
// or unwinds to an enclosing Label/Loop/function boundary.
type opFunc func(f *Frame) (ctl, uint64)

// Emit lowers a single expression tree into one native closure. Called once per function body
// at compile time; the returned CompiledFunc never walks expr again.
func Emit(sig wasm.FuncType, body wasm.Expr) CompiledFunc {
	op := emit(body)
	return func(f *Frame) []uint64 {
		c, v := op(f)
		switch c.kind {
		case ctlReturn, ctlNormal:
			if len(sig.Results) == 0 {
				return nil
			}
			return []uint64{v}
		default:
			// A branch escaping the outermost body is malformed IR (no
			// enclosing target); IR validation is out of scope here,
			// so this is a programming error, not a trap.
			panic("emit: branch escaped function body without an enclosing target")
		}
	}
}

// emit is the single recursive dispatch this package makes: exactly one
// switch over the Expr's dynamic type, producing a closure that never
// re-inspects the tree.
func emit(e wasm.Expr) opFunc {
	switch n := e.(type) {
	case *wasm.Label:
		return emitLabel(n)
	case *wasm.Loop:
		return emitLoop(n)
	case *wasm.Switch:
		return emitSwitch(n)
	case *wasm.IfElse:
		return emitIfElse(n)
	case *wasm.Sequence:
		return emitSequence(n)
	case *wasm.Branch:
		return emitBranch(n)
	case *wasm.Return:
		return emitReturn(n)
	case *wasm.Nop:
		return func(f *Frame) (ctl, uint64) { return ctl{}, 0 }
	case *wasm.DiscardResult:
		return emitDiscardResult(n)
	case *wasm.Unreachable:
		return emitUnreachable()
	case *wasm.Const:
		return emitConst(n)
	case *wasm.LocalGet:
		return emitLocalGet(n)
	case *wasm.LocalSet:
		return emitLocalSet(n)
	case *wasm.GlobalGet:
		return emitGlobalGet(n)
	case *wasm.GlobalSet:
		return emitGlobalSet(n)
	case *wasm.Load:
		return emitLoad(n)
	case *wasm.Store:
		return emitStore(n)
	case *wasm.Unary:
		return emitUnary(n)
	case *wasm.Binary:
		return emitBinary(n)
	case *wasm.Compare:
		return emitCompare(n)
	case *wasm.Call:
		return emitCall(n)
	case *wasm.CallIndirect:
		return emitCallIndirect(n)
	case *wasm.MemorySize:
		return emitMemorySize(n)
	case *wasm.MemoryGrow:
		return emitMemoryGrow(n)
	case *wasm.Throw:
		return emitThrow(n)
	default:
		panic("emit: unhandled expression node")
	}
}

func emitLabel(n *wasm.Label) opFunc {
	body := emit(n.Body)
	return func(f *Frame) (ctl, uint64) {
		c, v := body(f)
		if c.kind == ctlBranch && c.target == n.End {
			// A branch to this Label's own end is a forward exit from the
			// block: it carries the block's result value and resumes
			// normal flow here.
			return ctl{}, v
		}
		return c, v
	}
}

func emitLoop(n *wasm.Loop) opFunc {
	body := emit(n.Body)
	return func(f *Frame) (ctl, uint64) {
		for {
			c, v := body(f)
			switch {
			case c.kind == ctlBranch && c.target == n.Continue:
				continue
			case c.kind == ctlBranch && c.target == n.Break:
				return ctl{}, v
			default:
				return c, v
			}
		}
	}
}

func emitSwitch(n *wasm.Switch) opFunc {
	key := emit(n.Key)
	arms := make([]opFunc, len(n.Arms))
	for i, a := range n.Arms {
		arms[i] = emit(a.Body)
	}
	keys := make([]int32, len(n.Arms))
	for i, a := range n.Arms {
		keys[i] = a.Key
	}
	return func(f *Frame) (ctl, uint64) {
		kc, kv := key(f)
		if kc.kind != ctlNormal {
			return kc, kv
		}
		idx := n.DefaultIndex
		for i, k := range keys {
			if int32(kv) == k {
				idx = i
				break
			}
		}
		var c ctl
		var v uint64
		for i := idx; i < len(arms); i++ {
			c, v = arms[i](f)
			if c.kind != ctlNormal {
				break
			}
		}
		if c.kind == ctlBranch && c.target == n.End {
			return ctl{}, v
		}
		return c, v
	}
}

func emitIfElse(n *wasm.IfElse) opFunc {
	cond := emit(n.Cond)
	then := emit(n.Then)
	var els opFunc
	if n.Else != nil {
		els = emit(n.Else)
	}
	return func(f *Frame) (ctl, uint64) {
		cc, cv := cond(f)
		if cc.kind != ctlNormal {
			return cc, cv
		}
		if cv != 0 {
			return then(f)
		}
		if els == nil {
			return ctl{}, 0
		}
		return els(f)
	}
}

func emitSequence(n *wasm.Sequence) opFunc {
	ops := make([]opFunc, len(n.Exprs))
	for i, e := range n.Exprs {
		ops[i] = emit(e)
	}
	return func(f *Frame) (ctl, uint64) {
		var v uint64
		var c ctl
		for _, op := range ops {
			c, v = op(f)
			if c.kind != ctlNormal {
				return c, v
			}
		}
		return c, v
	}
}

func emitBranch(n *wasm.Branch) opFunc {
	var value opFunc
	if n.Value != nil {
		value = emit(n.Value)
	}
	var cond opFunc
	if n.Condition != nil {
		cond = emit(n.Condition)
	}
	target := n.Target
	return func(f *Frame) (ctl, uint64) {
		if cond != nil {
			cc, cv := cond(f)
			if cc.kind != ctlNormal {
				return cc, cv
			}
			if cv == 0 {
				return ctl{}, 0
			}
		}
		var v uint64
		if value != nil {
			vc, vv := value(f)
			if vc.kind != ctlNormal {
				return vc, vv
			}
			v = vv
		}
		return ctl{kind: ctlBranch, target: target}, v
	}
}

func emitReturn(n *wasm.Return) opFunc {
	var value opFunc
	if n.Value != nil {
		value = emit(n.Value)
	}
	return func(f *Frame) (ctl, uint64) {
		if value == nil {
			return ctl{kind: ctlReturn}, 0
		}
		c, v := value(f)
		if c.kind != ctlNormal {
			return c, v
		}
		return ctl{kind: ctlReturn}, v
	}
}

func emitDiscardResult(n *wasm.DiscardResult) opFunc {
	inner := emit(n.Inner)
	return func(f *Frame) (ctl, uint64) {
		c, v := inner(f)
		if c.kind != ctlNormal {
			return c, v
		}
		return ctl{}, 0
	}
}

func emitUnreachable() opFunc {
	return func(f *Frame) (ctl, uint64) {
		f.Instance.Trap(trap.ReachedUnreachable, nil)
		panic("unreachable: Trap did not panic")
	}
}

func emitConst(n *wasm.Const) opFunc {
	var bits uint64
	switch n.ResultType() {
	case wasm.F32:
		bits = uint64(math.Float32bits(float32(n.ValueF64)))
	case wasm.F64:
		bits = math.Float64bits(n.ValueF64)
	default:
		bits = uint64(n.ValueI64)
	}
	return func(f *Frame) (ctl, uint64) { return ctl{}, bits }
}

func emitLocalGet(n *wasm.LocalGet) opFunc {
	idx := n.Index
	return func(f *Frame) (ctl, uint64) { return ctl{}, f.Locals[idx] }
}

func emitLocalSet(n *wasm.LocalSet) opFunc {
	idx := n.Index
	value := emit(n.Value)
	tee := n.Tee
	return func(f *Frame) (ctl, uint64) {
		c, v := value(f)
		if c.kind != ctlNormal {
			return c, v
		}
		f.Locals[idx] = v
		if tee {
			return ctl{}, v
		}
		return ctl{}, 0
	}
}

func emitGlobalGet(n *wasm.GlobalGet) opFunc {
	idx := n.Index
	return func(f *Frame) (ctl, uint64) { return ctl{}, f.Instance.GlobalAt(idx).Get() }
}

func emitGlobalSet(n *wasm.GlobalSet) opFunc {
	idx := n.Index
	value := emit(n.Value)
	return func(f *Frame) (ctl, uint64) {
		c, v := value(f)
		if c.kind != ctlNormal {
			return c, v
		}
		f.Instance.GlobalAt(idx).Set(v)
		return ctl{}, 0
	}
}
