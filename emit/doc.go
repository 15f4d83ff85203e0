// Package emit lowers a validated expression tree (package wasm's IR)
// into a directly callable Go closure, once per function body, with no
// further interpretation at call time.
//
// # Control flow
//
// Expr has no goto-like construct in Go to target, so branches are
// modeled as an explicit, structured control signal (ctl) each emitted
// node can return instead of falling through normally: ctlBranch carries
// a TargetID up through enclosing Sequence/IfElse/Switch nodes until it
// reaches the Label or Loop that owns that target, which converts it back
// into normal flow (a typed join point). ctlReturn unwinds all the way
// to the function boundary.
//
// # Memory addressing
//
// Every Load/Store lowers its address with maskAddress: zero-extend (if
// the Wasm module is 32-bit), add the static offset, then AND with the
// sandbox mask. Never sign-extend here — see maskAddress's comment for
// why that specific substitution would be a sandbox escape rather than a
// merely-wrong result.
//
// # What this package does not do
//
// emit never touches the object arena, the memory reservation, or the
// table/global storage directly — those are reached only through the
// Instance/Memory/Table/Global interfaces, implemented by package runtime
// at call time. This keeps a compiled closure reusable across every
// instantiation of the module it was compiled from.
package emit
