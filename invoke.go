package wavm

import (
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/runtime"
	"github.com/gowavm/wavm/wasm"
)

// TaggedValue pairs a value type with its raw encoded value, the carrier
// InvokeFunctionChecked validates arguments and tags results with.
type TaggedValue = runtime.TaggedValue

// CreateContext creates a Context in c.
func CreateContext(c *object.Compartment) *object.Object {
	return runtime.CreateContext(c)
}

// CloneContext duplicates ctxObj's private mutable-global view into a
// new Context in the same Compartment.
func CloneContext(ctxObj *object.Object) (*object.Object, error) {
	return runtime.CloneContext(ctxObj)
}

// GetFunctionType returns fnObj's declared signature.
func GetFunctionType(fnObj *object.Object) (wasm.FuncType, error) {
	return runtime.GetFunctionType(fnObj)
}

// InvokeFunctionUnchecked calls fnObj through ctxObj with a tightly
// packed, unvalidated argument buffer. A mismatched arity
// or type is undefined behavior the caller must avoid.
func InvokeFunctionUnchecked(ctxObj, fnObj *object.Object, args []uint64) ([]uint64, error) {
	return runtime.InvokeUnchecked(ctxObj, fnObj, args)
}

// InvokeFunctionChecked calls fnObj through ctxObj, validating args'
// arity and per-argument type against fnObj's declared signature before
// dispatching, and tagging every result with its declared type.
func InvokeFunctionChecked(ctxObj, fnObj *object.Object, args []TaggedValue) ([]TaggedValue, error) {
	return runtime.InvokeChecked(ctxObj, fnObj, args)
}

// RunStartFunction invokes instObj's declared start function, if it has
// one, through ctxObj.
func RunStartFunction(ctxObj, instObj *object.Object) error {
	return runtime.RunStartFunction(ctxObj, instObj)
}
