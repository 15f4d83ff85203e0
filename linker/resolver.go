package linker

import (
	"sync"

	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/wasm"
)

// Resolver is the import-resolution contract: given an import's declared
// (module, name, expectedType), produce the Object that
// satisfies it, or report it as not found. Instantiate calls Resolve
// exactly once per import, in declaration order, and never caches across
// calls — a host may answer differently for two imports with the same
// name if it wants to (e.g. per-instance globals).
type Resolver interface {
	Resolve(moduleName, exportName string, expected wasm.ExternType) (*object.Object, bool)
}

// MapResolver is a Resolver backed by a plain registry of named instances,
// each exposing named exports: a two-level name lookup against Objects
// already living in the target Compartment.
type MapResolver struct {
	mu        sync.RWMutex
	instances map[string]map[string]*object.Object
}

// NewMapResolver creates an empty MapResolver.
func NewMapResolver() *MapResolver {
	return &MapResolver{instances: make(map[string]map[string]*object.Object)}
}

// Define registers obj as the export named exportName of the instance
// named moduleName. obj must belong to the Compartment Instantiate will
// be called against — MapResolver does not itself enforce that, since it
// has no Compartment of its own to check against.
func (r *MapResolver) Define(moduleName, exportName string, obj *object.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, ok := r.instances[moduleName]
	if !ok {
		bucket = make(map[string]*object.Object)
		r.instances[moduleName] = bucket
	}
	bucket[exportName] = obj
}

// DefineInstance registers every export of an already-instantiated module
// under moduleName, letting one ModuleInstance's exports satisfy another
// module's imports (the common case: module A imports from module B).
func (r *MapResolver) DefineInstance(moduleName string, inst *object.Object) {
	mi := object.ModuleInstanceData(inst)
	if mi == nil {
		return
	}
	c := inst.Compartment()
	for name, h := range mi.Exports {
		r.Define(moduleName, name, c.Get(h))
	}
}

// Resolve implements Resolver.
func (r *MapResolver) Resolve(moduleName, exportName string, expected wasm.ExternType) (*object.Object, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket, ok := r.instances[moduleName]
	if !ok {
		return nil, false
	}
	obj, ok := bucket[exportName]
	return obj, ok
}
