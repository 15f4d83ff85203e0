package wavm

import (
	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/wasm"
)

// CreateCompartment creates a new, empty Compartment.
func CreateCompartment() *object.Compartment {
	return object.NewCompartment()
}

// CloneCompartment duplicates c's entire object graph into a new,
// independent Compartment.
func CloneCompartment(c *object.Compartment) (*object.Compartment, error) {
	return c.Clone()
}

// CollectCompartmentGarbage runs one mark-and-sweep pass over c. It fails
// with a ConcurrentGC error if a call is currently in flight against c
//.
func CollectCompartmentGarbage(c *object.Compartment) error {
	return object.CollectCompartmentGarbage(c)
}

// TryCollectCompartment releases the caller's root on ownedRoot, runs one
// collection pass, and reports whether c now has no live Objects and no
// live Contexts — in which case c itself can be considered collected.
func TryCollectCompartment(c *object.Compartment, ownedRoot *object.Object) (bool, error) {
	return object.TryCollectCompartment(c, ownedRoot)
}

// AddRoot marks o as reachable independent of any other Object's
// references to it.
func AddRoot(o *object.Object) {
	object.AddRoot(o)
}

// RemoveRoot releases a root added by AddRoot.
func RemoveRoot(o *object.Object) {
	object.RemoveRoot(o)
}

// SetUserData attaches an opaque host value and finalizer to o.
func SetUserData(o *object.Object, data any, fin object.Finalizer) {
	o.SetUserData(data, fin)
}

// GetUserData returns the value most recently attached by SetUserData,
// or nil.
func GetUserData(o *object.Object) any {
	return o.UserData()
}

// IsA reports whether the Object at h, within c, is of the given kind.
func IsA(c *object.Compartment, h object.Handle, kind object.Kind) bool {
	return c.IsA(h, kind)
}

// GetExternType returns the ExternType describing the Object at h, for
// any importable/exportable kind.
func GetExternType(c *object.Compartment, h object.Handle) (wasm.ExternType, bool) {
	return c.GetExternType(h)
}

// CreateForeign creates an opaque Foreign Object a host can attach its
// own data to via SetUserData.
func CreateForeign(c *object.Compartment) *object.Object {
	return c.NewForeign()
}
