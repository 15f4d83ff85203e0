// Package linker resolves a module's imports against a host-supplied
// Resolver and materializes its declared tables,
// memories, globals, exception types, and functions inside a Compartment,
// producing a ModuleInstance Object.
//
// # Atomicity
//
// Every data and element segment's bounds are validated against its
// target Memory/Table before any segment is written. A bounds violation
// raises the matching intrinsic exception (OutOfBoundsDataSegmentAccess /
// OutOfBoundsElemSegmentAccess, wrapped in a *trap.Error) and leaves the
// instance with none of its segments applied — instantiation either
// commits completely or not at all, never partially.
//
// # What this package does not do
//
// linker does not invoke a declared start function — ModuleInstance.Start
// names it, and invoking it (via package runtime) is the caller's
// responsibility, so host glue can be installed first. linker also does
// not validate IR well-formedness; that is out of scope for the whole
// module.
package linker
