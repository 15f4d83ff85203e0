package emit

import (
	"github.com/gowavm/wavm/wasm"
)

func emitCall(n *wasm.Call) opFunc {
	args := make([]opFunc, len(n.Args))
	for i, a := range n.Args {
		args[i] = emit(a)
	}
	idx := n.FuncIndex
	hasResult := n.ResultType() != wasm.Void
	return func(f *Frame) (ctl, uint64) {
		vals, c, v := evalArgs(f, args)
		if c.kind != ctlNormal {
			return c, v
		}
		results := f.Instance.CallFunction(idx, vals)
		if !hasResult || len(results) == 0 {
			return ctl{}, 0
		}
		return ctl{}, results[0]
	}
}

// emitCallIndirect lowers an indirect call: evaluate the
// index, AND with (table length - 1) — table length is a compile-time-
// unknown-but-runtime-enforced power of two — load the callee, check its
// signature tag against ExpectedType, then call. A null slot traps
// UninitializedTableElement; a tag mismatch traps
// IndirectCallSignatureMismatch.
func emitCallIndirect(n *wasm.CallIndirect) opFunc {
	args := make([]opFunc, len(n.Args))
	for i, a := range n.Args {
		args[i] = emit(a)
	}
	index := emit(n.Index)
	tableIdx := n.TableIndex
	expected := n.ExpectedType
	hasResult := n.ResultType() != wasm.Void || len(expected.Results) > 0
	return func(f *Frame) (ctl, uint64) {
		ic, iv := index(f)
		if ic.kind != ctlNormal {
			return ic, iv
		}
		vals, c, v := evalArgs(f, args)
		if c.kind != ctlNormal {
			return c, v
		}

		table := f.Instance.TableAt(tableIdx)
		length := table.Len()
		if length == 0 || length&(length-1) != 0 {
			// A non-power-of-two table is a Setup-time invariant
			// violation, not something compiled code should see; the
			// instantiator is responsible for rejecting it before this
			// closure ever runs.
			panic("emit: call_indirect against a non-power-of-two table")
		}
		elemIdx := uint32(iv) & (length - 1)

		results := f.Instance.CallIndirect(tableIdx, elemIdx, expected, vals)
		if !hasResult || len(results) == 0 {
			return ctl{}, 0
		}
		return ctl{}, results[0]
	}
}

func evalArgs(f *Frame, args []opFunc) ([]uint64, ctl, uint64) {
	vals := make([]uint64, len(args))
	for i, a := range args {
		c, v := a(f)
		if c.kind != ctlNormal {
			return nil, c, v
		}
		vals[i] = v
	}
	return vals, ctl{}, 0
}

func emitThrow(n *wasm.Throw) opFunc {
	args := make([]opFunc, len(n.Args))
	for i, a := range n.Args {
		args[i] = emit(a)
	}
	typeIdx := n.ExceptionTypeIndex
	return func(f *Frame) (ctl, uint64) {
		vals, c, v := evalArgs(f, args)
		if c.kind != ctlNormal {
			return c, v
		}
		f.Instance.ThrowUser(typeIdx, vals)
		panic("unreachable: ThrowUser did not panic")
	}
}
