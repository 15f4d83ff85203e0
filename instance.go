package wavm

import (
	"github.com/gowavm/wavm/compiler"
	"github.com/gowavm/wavm/linker"
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/quota"
)

// InstantiateModule materializes art into c, resolving its imports
// through imports, and returns the resulting ModuleInstance Object.
// q is the ResourceQuota newly created Tables and Memories are reserved
// against.
func InstantiateModule(c *object.Compartment, art *compiler.Artifact, imports linker.Resolver, debugName string, q *quota.ResourceQuota) (*object.Object, error) {
	return linker.Instantiate(c, art, imports, debugName, q)
}

// GetInstanceExport returns the Object instObj exports under name.
func GetInstanceExport(instObj *object.Object, name string) (*object.Object, bool) {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil {
		return nil, false
	}
	h, ok := mi.Exports[name]
	if !ok {
		return nil, false
	}
	return instObj.Compartment().Get(h), true
}

// GetInstanceExports returns every name instObj exports.
func GetInstanceExports(instObj *object.Object) []string {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil {
		return nil
	}
	names := make([]string, 0, len(mi.Exports))
	for name := range mi.Exports {
		names = append(names, name)
	}
	return names
}

// GetStartFunction returns instObj's declared start function, if any.
func GetStartFunction(instObj *object.Object) (*object.Object, bool) {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil || mi.Start == 0 {
		return nil, false
	}
	return instObj.Compartment().Get(mi.Start), true
}

// GetDefaultMemory returns instObj's memory at index 0, the common
// convention for a module with exactly one linear memory.
func GetDefaultMemory(instObj *object.Object) (*object.Object, bool) {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil || len(mi.Memories) == 0 {
		return nil, false
	}
	return instObj.Compartment().Get(mi.Memories[0]), true
}

// GetDefaultTable returns instObj's table at index 0.
func GetDefaultTable(instObj *object.Object) (*object.Object, bool) {
	mi := object.ModuleInstanceData(instObj)
	if mi == nil || len(mi.Tables) == 0 {
		return nil, false
	}
	return instObj.Compartment().Get(mi.Tables[0]), true
}
