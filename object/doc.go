// Package object implements the runtime object model and its per-
// compartment garbage collector.
//
// Every runtime entity — Function, Table, Memory, Global, ExceptionType,
// Exception, ModuleInstance, Context, Foreign — is represented as an
// Object: an opaque, kind-tagged value owned by exactly one Compartment
// and referenced from the outside only through a Handle, never a Go
// pointer. That indirection is what lets the object graph be cyclic
// (an Instance holds its Functions, a Function holds its owning
// Instance) without leaking: edges are Handles resolved through the
// owning Compartment, not strong references the Go garbage collector
// would itself have to trace.
//
// # Roots and collection
//
// An Object survives a collection if it is reachable from one of two
// root sources:
//
//	(i)  an explicit root added with AddRoot/RemoveRoot
//	(ii) a live Context of the Compartment
//
// CollectCompartmentGarbage walks outward from those roots along each
// Object's Refs() edges and frees everything left unmarked, running its
// finalizer exactly once. Collection refuses to run while any Context of
// the Compartment is mid-call (see Compartment.EnterCall/ExitCall); the
// caller is expected to quiesce the Compartment first.
//
// # Compartments
//
// A Compartment is an isolation boundary as well as an arena: Objects in
// one Compartment cannot reference Objects in another. Compartment.Clone
// produces a structurally identical copy with fresh Objects but stable
// Handles, and RemapToClonedCompartment translates a Handle from the
// original Compartment into its counterpart in a specific clone.
package object
