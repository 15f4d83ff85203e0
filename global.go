package wavm

import (
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/wasm"
)

// CreateGlobal creates a standalone Global Object of the declared type,
// with no value assigned yet. A module's own globals are
// normally created by InstantiateModule; this is for a host that wants
// to build a Global to hand in as an import.
func CreateGlobal(c *object.Compartment, t wasm.GlobalType) *object.Object {
	return c.NewGlobal(t)
}

// InitializeGlobal sets globObj's instantiation-time default value —
// the value every Context that has not yet written to this Global
// through SetGlobalValue will see. num holds a numeric
// global's raw bit pattern; ref holds a reference global's Handle;
// which one is meaningful is determined by globObj's declared ValType.
func InitializeGlobal(globObj *object.Object, num uint64, ref object.Handle) {
	g := object.GlobalData(globObj)
	if g.Type.Val.IsReference() {
		g.RefValue = ref
	} else {
		g.NumValue = num
	}
	g.Assigned = true
}

// GetGlobalValue returns ctxObj's private view of globObj's value
//.
func GetGlobalValue(ctxObj, globObj *object.Object) (num uint64, ref object.Handle) {
	return object.ContextData(ctxObj).GlobalValue(globObj.Handle())
}

// SetGlobalValue overwrites ctxObj's private view of globObj's value,
// without affecting any other Context's view or globObj's shared default.
func SetGlobalValue(ctxObj, globObj *object.Object, num uint64, ref object.Handle) {
	object.ContextData(ctxObj).SetGlobalValue(globObj.Handle(), num, ref)
}
