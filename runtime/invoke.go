package runtime

import (
	"github.com/gowavm/wavm/emit"
	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/trap"
	"github.com/gowavm/wavm/wasm"
)

// CreateContext creates a new Context in c, with no globals touched yet.
func CreateContext(c *object.Compartment) *object.Object {
	return c.NewContext()
}

// CloneContext duplicates ctxObj: the returned Context starts with an
// independent copy of its private global view, in the same Compartment.
func CloneContext(ctxObj *object.Object) (*object.Object, error) {
	ctx := object.ContextData(ctxObj)
	if ctx == nil {
		return nil, errors.InvalidArgument("cloneContext requires a Context")
	}
	return ctxObj.Compartment().CloneContext(ctx), nil
}

// GetFunctionType returns fnObj's declared signature.
func GetFunctionType(fnObj *object.Object) (wasm.FuncType, error) {
	fn := object.FunctionData(fnObj)
	if fn == nil {
		return wasm.FuncType{}, errors.InvalidArgument("getFunctionType requires a Function")
	}
	return fn.Type, nil
}

// InvokeUnchecked calls fnObj through ctxObj. args is a tightly packed
// sequence of raw values matching the function's
// parameter types exactly, with no arity or type validation — a mismatch
// is undefined behavior the caller is responsible for avoiding, mirroring
// an unchecked native call. Every invocation is bracketed by
// Compartment.EnterCall/ExitCall so collectCompartmentGarbage can detect
// a concurrent GC attempt.
func InvokeUnchecked(ctxObj, fnObj *object.Object, args []uint64) (result []uint64, err error) {
	ctx := object.ContextData(ctxObj)
	fn := object.FunctionData(fnObj)
	if ctx == nil || fn == nil {
		return nil, errors.InvalidArgument("invokeUnchecked requires a Context and a Function")
	}
	entry, ok := fn.Entry.(emit.CompiledFunc)
	if !ok {
		return nil, errors.InvalidArgument("function has no compiled entry point")
	}

	compartment := ctxObj.Compartment()
	compartment.EnterCall()
	defer compartment.ExitCall()

	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(*exceptionSignal)
			if !ok {
				panic(r)
			}
			err = &trap.Error{Compartment: compartment, Exception: sig.exception}
		}
	}()

	locals := make([]uint64, fn.NumLocals)
	copy(locals, args)
	inst := &boundInstance{
		compartment: compartment,
		mi:          moduleInstanceFor(compartment, fn.Instance),
		miHandle:    fn.Instance,
		ctx:         ctx,
	}
	result = entry(&emit.Frame{Locals: locals, Instance: inst})
	return result, nil
}

// TaggedValue pairs a value type with its raw encoded value. invokeChecked
// needs to see types up front to validate arity and parameter types
// before dispatch — unlike invokeUnchecked's blind value buffer, which
// trusts the caller entirely.
type TaggedValue struct {
	Type  wasm.ValType
	Value uint64
}

// InvokeChecked calls fnObj through ctxObj, validating arg arity and
// types against the function's declared signature before dispatching,
// raising InvalidArgument on a mismatch rather than InvokeUnchecked's
// undefined behavior.
func InvokeChecked(ctxObj, fnObj *object.Object, args []TaggedValue) ([]TaggedValue, error) {
	fn := object.FunctionData(fnObj)
	if fn == nil {
		return nil, errors.InvalidArgument("invokeChecked requires a Function")
	}
	compartment := ctxObj.Compartment()

	if len(args) != len(fn.Type.Params) {
		return nil, trap.Raise(compartment, trap.InvalidArgument, nil, captureStack(0))
	}
	raw := make([]uint64, len(args))
	for i, a := range args {
		if a.Type != fn.Type.Params[i] {
			return nil, trap.Raise(compartment, trap.InvalidArgument, nil, captureStack(0))
		}
		raw[i] = a.Value
	}

	results, err := InvokeUnchecked(ctxObj, fnObj, raw)
	if err != nil {
		return nil, err
	}
	tagged := make([]TaggedValue, len(results))
	for i, r := range results {
		t := wasm.Void
		if i < len(fn.Type.Results) {
			t = fn.Type.Results[i]
		}
		tagged[i] = TaggedValue{Type: t, Value: r}
	}
	return tagged, nil
}
