// Package wavm is a standalone WebAssembly execution engine core: a
// structured-IR-to-native-closure compiler, a compartment-scoped object
// model with its own garbage collector, a sandboxed linear-memory
// manager, an instantiator, and a Context-mediated invocation boundary
// with a full trap/exception taxonomy.
//
// # Architecture
//
//	wavm/            External interface: opaque handles + free functions
//	├── wasm/        Validated IR: value/structural types, expression tree
//	├── object/      Compartment-scoped object model & mark-sweep GC
//	├── memmgr/      Reserved-address-space linear memory manager
//	├── emit/        Structured IR -> compiled closure lowering
//	├── compiler/    Artifact (compiled module) & precompiled-object carrier
//	├── linker/      Import resolution & instantiation
//	├── trap/        Intrinsic exception taxonomy
//	├── errors/      Structured Setup-error type
//	└── quota/       Shared resource quota accounting
//
// This package exposes a C-ABI-friendly surface of opaque-handle types
// and free functions as thin wrappers over the underlying packages'
// idiomatic Go APIs — it adds no behavior of its own beyond the
// exception-ownership bookkeeping described in exception.go.
//
// # What this engine does not do
//
// It never parses a Wasm binary or text module — callers supply an
// already-validated wasm.Module. It performs no host system emulation
// (no filesystem, no WASI, no networking) and provides no CLI. It never
// interprets IR or recompiles/retiers a function after its first
// compilation, and it never migrates compiled code between hosts.
//
// # Quick start
//
//	c := wavm.CreateCompartment()
//	art, err := wavm.CompileModule(ir)
//	q := quota.NewUnlimited()
//	instObj, err := wavm.InstantiateModule(c, art, linker.NewMapResolver(), "my-module", q)
//	ctxObj := wavm.CreateContext(c)
//	fnObj, _ := wavm.GetInstanceExport(instObj, "add")
//	results, err := wavm.InvokeFunctionUnchecked(ctxObj, fnObj, []uint64{2, 3})
package wavm
