package object

import (
	"sync"
	"sync/atomic"

	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/wasm"
)

// Compartment is an isolation boundary: it owns an arena of Objects and
// nothing outside it can reach in except through an explicit remap of a
// clone. The arena
// uses the same index+1 handle / free-list shape as this codebase's other
// handle tables, generalized to carry a GC mark bit per entry.
type Compartment struct {
	mu       sync.RWMutex
	entries  []*Object
	freeList []Handle

	// contexts tracks every live Context whose Compartment is this one;
	// each is a GC root source independent of any Object's own root counter.
	contexts map[Handle]struct{}

	// inCall counts invocations currently executing against any Context
	// of this Compartment. collectCompartmentGarbage refuses to run while
	// this is non-zero.
	inCall atomic.Int32

	closed bool

	// cloneOf / remapFromParent are set only on a Compartment produced by
	// Clone, supporting RemapToClonedCompartment.
	cloneOf         *Compartment
	remapFromParent map[Handle]Handle

	// aux lets packages layered on top of object (such as trap)
	// attach Compartment-scoped caches without a package-level map keyed
	// by *Compartment, which would keep every Compartment ever touched
	// alive for the life of the process. Storing the cache here instead
	// means it is reclaimed by the Go garbage collector the moment the
	// Compartment itself becomes unreachable.
	aux sync.Map
}

// Aux returns the Compartment-scoped side-table used by packages built on
// top of object to cache their own per-Compartment state (e.g. package
// trap's intrinsic ExceptionType registry).
func (c *Compartment) Aux() *sync.Map { return &c.aux }

// NewCompartment creates an empty Compartment.
func NewCompartment() *Compartment {
	return &Compartment{
		entries:  make([]*Object, 0, 64),
		contexts: make(map[Handle]struct{}),
	}
}

// alloc inserts a fresh Object of the given kind and payload, wiring the
// header fields and returning the resulting handle.
func (c *Compartment) alloc(kind Kind, payload Referrer) *Object {
	c.mu.Lock()
	defer c.mu.Unlock()

	o := &Object{Kind: kind, compartment: c, payload: payload}

	if n := len(c.freeList); n > 0 {
		h := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		o.handle = h
		c.entries[h-1] = o
		return o
	}

	c.entries = append(c.entries, o)
	o.handle = Handle(len(c.entries))
	return o
}

// Get returns the live Object at h, or nil if h is invalid, freed, or
// belongs to a different Compartment.
func (c *Compartment) Get(h Handle) *Object {
	if h == 0 {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := int(h) - 1
	if idx < 0 || idx >= len(c.entries) {
		return nil
	}
	return c.entries[idx]
}

// free removes o from the arena and runs its finalizer. Callers must hold
// no other reference to o past this point.
func (c *Compartment) free(o *Object) {
	idx := int(o.handle) - 1
	c.entries[idx] = nil
	c.freeList = append(c.freeList, o.handle)
	o.runFinalizer()
}

// FreeIfUnrooted releases o's arena slot and runs its finalizer
// immediately, but only if nothing has rooted it. It exists for callers
// that allocate Objects speculatively across several fallible steps
// (e.g. instantiation) and want to reclaim them the moment a later step
// fails, rather than leaving them for the next collection pass; it is a
// no-op if o was already rooted or freed.
func (c *Compartment) FreeIfUnrooted(o *Object) {
	if o == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := int(o.handle) - 1
	if idx < 0 || idx >= len(c.entries) || c.entries[idx] != o {
		return
	}
	if o.root.Load() > 0 {
		return
	}
	c.free(o)
}

// AddRoot increments o's root counter. Overflow is a
// programming error.
func AddRoot(o *Object) {
	if o.root.Add(1) <= 0 {
		panic("object: root counter overflow")
	}
}

// RemoveRoot decrements o's root counter. Removing a root that was never
// added (underflow) is a programming error — it aborts rather than
// returning a value-level error, since it indicates a caller contract
// violation, not a recoverable runtime condition.
func RemoveRoot(o *Object) {
	if o.root.Add(-1) < 0 {
		panic("object: root counter underflow")
	}
}

// registerContext / unregisterContext track a Compartment's live Contexts
// for GC root discovery. registerContext is called by NewContext and
// CloneContext; unregisterContext by freeContext.
func (c *Compartment) registerContext(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contexts[h] = struct{}{}
}

func (c *Compartment) unregisterContext(h Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.contexts, h)
}

// EnterCall/ExitCall bracket an invocation through any Context of this
// Compartment. GC checks this counter and refuses to run
// concurrently with a live call.
func (c *Compartment) EnterCall() { c.inCall.Add(1) }
func (c *Compartment) ExitCall()  { c.inCall.Add(-1) }

// IsA reports whether the object at h has the given Kind.
func (c *Compartment) IsA(h Handle, kind Kind) bool {
	o := c.Get(h)
	return o != nil && o.Kind == kind
}

// GetExternType returns the ExternType of the object at h. Objects with
// no external type (Exception, ModuleInstance, Context, Foreign) report
// false.
func (c *Compartment) GetExternType(h Handle) (wasm.ExternType, bool) {
	o := c.Get(h)
	if o == nil {
		return wasm.ExternType{}, false
	}
	return externTypeOf(o)
}

// Clone produces a new Compartment containing structurally identical
// duplicates of every live Object in c, with fresh handles, plus an index
// letting RemapToClonedCompartment translate an old handle into the new
// one in O(1). Every Object's payload is deep-copied: a cloned Memory
// gets its own mmap'd reservation, not a shared pointer into c's, so
// mutating one Compartment's data never affects the other's.
func (c *Compartment) Clone() (*Compartment, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := NewCompartment()
	clone.entries = make([]*Object, len(c.entries))
	remap := make(map[Handle]Handle, len(c.entries))

	for i, o := range c.entries {
		if o == nil || o.Kind == KindContext {
			// Contexts represent in-flight execution state, not data owned
			// by the Compartment, so Clone does not duplicate them;
			// the slot is left free in the clone.
			if o != nil {
				clone.freeList = append(clone.freeList, Handle(i+1))
			}
			continue
		}
		dup := &Object{Kind: o.Kind, compartment: clone, handle: Handle(i + 1)}
		dup.root.Store(o.root.Load())
		dup.userData = o.userData
		dup.finalizer = o.finalizer
		payload, err := clonePayload(o.payload, remap)
		if err != nil {
			return nil, err
		}
		dup.payload = payload
		clone.entries[i] = dup
		remap[o.handle] = dup.handle
	}

	clone.cloneOf = c
	clone.remapFromParent = remap
	return clone, nil
}

// RemapToClonedCompartment returns the Object in clone at the position
// structurally identical to o's position in its own Compartment. It fails with NotFound if clone is not a clone-descendant of o's
// Compartment.
func RemapToClonedCompartment(o *Object, clone *Compartment) (*Object, error) {
	if clone.cloneOf != o.compartment {
		return nil, errors.NotFound("compartment is not a clone of the object's compartment")
	}
	h, ok := clone.remapFromParent[o.handle]
	if !ok {
		return nil, errors.NotFound("object has no counterpart in the cloned compartment")
	}
	return clone.Get(h), nil
}
