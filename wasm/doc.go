// Package wasm defines the validated intermediate representation the
// engine core operates on: value and structural types (types.go) and the
// structured-control-flow expression tree the emitter lowers (ir.go).
//
// A wasm.Module is assumed already well-typed. Producing one from a Wasm
// binary or text module is the job of a parser layered on top of this
// repository; that parser, and the binary/text formats it understands,
// are out of scope here.
//
// # Module structure
//
//	module.Types          []FuncType      // signature table
//	module.Imports        []Import        // resolved at instantiation time
//	module.Funcs          []Func          // locally-defined function bodies
//	module.Tables         []TableType
//	module.Memories       []MemoryType
//	module.Globals        []Global
//	module.ExceptionTypes []ExceptionType
//	module.Exports        []Export
//	module.Start          *uint32
//	module.DataSegments   []DataSegment
//	module.ElemSegments   []ElemSegment
//
// # Expression tree
//
// Every node implements Expr and reports a static ResultType(); Void marks
// expressions that produce no value. The tree is a plain tagged variant —
// Label, Loop, Switch, IfElse, Sequence, Branch, Return, Nop,
// DiscardResult, Unreachable, and the leaf operations (Const, LocalGet/Set,
// GlobalGet/Set, Load, Store, Unary, Binary, Compare, Call, CallIndirect,
// MemorySize/Grow, Throw). There is no virtual-dispatch hierarchy; package
// emit's single recursive function switches on concrete type.
package wasm
