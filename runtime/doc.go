// Package runtime implements the Context-mediated invocation boundary —
// createContext/cloneContext, invokeUnchecked/invokeChecked, the
// exception-catching primitives, and the concrete binding of a
// ModuleInstance Object to package emit's Instance/Memory/Table/Global
// interfaces that makes a compiled CompiledFunc actually runnable.
//
// # Per-Context globals
//
// Mutable globals are private per Context: two Contexts of the same
// Compartment touching the same Global see independent values. This
// engine stores a Global's instantiation-time default on the shared
// object.Global payload (set once by package linker) and every Context's
// own live value in that Context's private map, seeded lazily from the
// default on first touch — see object.Context.GlobalValue/SetGlobalValue.
//
// # No real signal handling
//
// A native engine usually frames OutOfBoundsMemoryAccess and friends as
// conditions a platform signal handler translates into exceptions. Go
// cannot install a handler for an arbitrary hardware fault on an
// arbitrary goroutine without cgo, and runtime/debug.SetPanicOnFault only
// covers a narrow set of Go-runtime-detected faults, not a general
// trampoline — so this engine never deliberately touches unmapped or
// protected memory in the first place. Every access that would otherwise
// rely on a signal is instead an explicit bounds check (against memmgr's
// committed-page count, or a Table's length) that raises the same
// exception Kind directly. See UnwindSignalsAsExceptions for how this
// keeps the two-primitive shape available without pretending to catch a
// signal that never occurs.
package runtime
