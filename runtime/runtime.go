package runtime

import (
	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/object"
)

// RunStartFunction invokes instObj's declared start function, if it has
// one, through ctxObj. It is a
// no-op, returning no error, for a module instance with no start function.
func RunStartFunction(ctxObj, instObj *object.Object) error {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil {
		return errors.InvalidArgument("runStartFunction requires a ModuleInstance")
	}
	if mi.Start == 0 {
		return nil
	}
	startFn := instObj.Compartment().Get(mi.Start)
	_, err := InvokeUnchecked(ctxObj, startFn, nil)
	return err
}
