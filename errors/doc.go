// Package errors provides the structured Setup-error type returned
// synchronously by core operations: import resolution, instantiation,
// module compilation, and quota/memory setup. It does not
// represent runtime Traps — those are typed Exception values in package
// trap, since a caller needs to inspect their argument tuple and call
// stack, not just format a message.
//
// Errors are categorized by Phase (where in the pipeline) and Kind (what
// went wrong). Build one with the Builder:
//
//	err := errors.New(errors.PhaseInstantiate, errors.KindImportTypeMismatch).
//		Path("env", "memory").
//		Detail("expected memory, got table").
//		Build()
//
// or with a convenience constructor for the common cases:
//
//	err := errors.ImportTypeMismatch("env", "memory", "expected memory, got table")
//
// All errors implement error and support errors.Is/As via Unwrap.
package errors
