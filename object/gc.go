package object

import (
	"go.uber.org/zap"

	"github.com/gowavm/wavm/errors"
)

// collectCompartmentGarbage runs one mark-and-sweep pass over c. Roots are (i) every Object whose root counter is > 0 and (ii)
// every Context currently registered against c — a Context is always
// considered live while it exists, independent of its root counter.
// Unreached Objects are freed and their finalizers run. Refuses to run
// while a call is in flight against c, returning
// errors.KindConcurrentGC.
func collectCompartmentGarbage(c *Compartment) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inCall.Load() != 0 {
		return errors.New(errors.PhaseObjectModel, errors.KindConcurrentGC).
			Detail("garbage collection attempted while a call is in progress").Build()
	}

	for _, o := range c.entries {
		if o != nil {
			o.marked = false
		}
	}

	var stack []*Object
	mark := func(h Handle) {
		if h == 0 {
			return
		}
		idx := int(h) - 1
		if idx < 0 || idx >= len(c.entries) {
			return
		}
		o := c.entries[idx]
		if o == nil || o.marked {
			return
		}
		o.marked = true
		stack = append(stack, o)
	}

	for _, o := range c.entries {
		if o == nil {
			continue
		}
		if o.root.Load() > 0 {
			mark(o.handle)
		}
	}
	for h := range c.contexts {
		mark(h)
	}

	for len(stack) > 0 {
		o := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o.payload == nil {
			continue
		}
		for _, ref := range o.payload.Refs() {
			mark(ref)
		}
	}

	freed := 0
	for i, o := range c.entries {
		if o == nil || o.marked {
			continue
		}
		c.entries[i] = nil
		c.freeList = append(c.freeList, o.handle)
		if o.Kind == KindContext {
			delete(c.contexts, o.handle)
		}
		o.runFinalizer()
		freed++
	}

	Logger().Debug("compartment garbage collected", zap.Int("freed", freed), zap.Int("live", len(c.entries)-len(c.freeList)))
	return nil
}

// CollectCompartmentGarbage is the exported entry point for running a
// collection pass against c.
func CollectCompartmentGarbage(c *Compartment) error {
	return collectCompartmentGarbage(c)
}

// tryCollectCompartment releases the caller's root on ownedRoot, runs one
// collection pass, and reports whether the collection left no live
// Objects and no live Contexts in c — in which case the Compartment
// itself can be considered collected.
func tryCollectCompartment(c *Compartment, ownedRoot *Object) (bool, error) {
	RemoveRoot(ownedRoot)

	if err := collectCompartmentGarbage(c); err != nil {
		return false, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, o := range c.entries {
		if o != nil {
			return false, nil
		}
	}
	if len(c.contexts) > 0 {
		return false, nil
	}
	c.closed = true
	return true, nil
}

// TryCollectCompartment is the exported entry point for releasing a root
// and attempting to collect the Compartment it was the last hold on.
func TryCollectCompartment(c *Compartment, ownedRoot *Object) (bool, error) {
	return tryCollectCompartment(c, ownedRoot)
}
