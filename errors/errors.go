package errors

import (
	"fmt"
	"strings"
)

// Phase names where in the core's pipeline a Setup error originated.
type Phase string

const (
	PhaseCompile      Phase = "compile"      // module compiler / emitter
	PhaseLoad         Phase = "load"         // loadPrecompiled
	PhaseInstantiate  Phase = "instantiate"  // instantiator / linker
	PhaseResolve      Phase = "resolve"      // import resolution
	PhaseObjectModel  Phase = "object_model" // compartment / GC / root API misuse
	PhaseMemory       Phase = "memory"       // memory reservation / grow
	PhaseTable        Phase = "table"        // table creation / grow
	PhaseInvoke       Phase = "invoke"       // invocation argument validation
)

// Kind categorizes a Setup error. Trap conditions are not
// represented here — see package trap for the runtime exception taxonomy.
type Kind string

const (
	KindImportTypeMismatch Kind = "import_type_mismatch"
	KindMissingImport      Kind = "missing_import"
	KindInvalidTableSize   Kind = "invalid_table_size"
	KindPrecompiledMismatch Kind = "precompiled_mismatch"
	KindInvalidQuota       Kind = "invalid_quota"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindOutOfMemory        Kind = "out_of_memory"
	KindNotFound           Kind = "not_found"
	KindInvalidState       Kind = "invalid_state"
	KindConcurrentGC       Kind = "concurrent_gc"
	KindMalformedIR        Kind = "malformed_ir"
	KindInvalidArgument    Kind = "invalid_argument"
	KindOutOfBoundsMemory  Kind = "out_of_bounds_memory"
)

// Error is the structured Setup/programming-error type returned
// synchronously by core operations. It is never used to
// represent a Trap, which is an object.Exception Object instead
// (returned wrapped in a *trap.Error).
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Detail string
	Path   []string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction, mirroring the pattern
// used across the rest of this codebase's error sites.
type Builder struct {
	err Error
}

func New(phase Phase, kind Kind) *Builder {
	return &Builder{err: Error{Phase: phase, Kind: kind}}
}

func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

func (b *Builder) Detail(format string, args ...any) *Builder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for the common named Setup-error cases.

func ImportTypeMismatch(module, name, detail string) *Error {
	return New(PhaseInstantiate, KindImportTypeMismatch).Path(module, name).Detail("%s", detail).Build()
}

func MissingImport(module, name string) *Error {
	return New(PhaseResolve, KindMissingImport).Path(module, name).Build()
}

func InvalidTableSize(size uint64) *Error {
	return New(PhaseInstantiate, KindInvalidTableSize).
		Detail("table element count %d is not a power of two", size).Build()
}

func PrecompiledMismatch(reason string) *Error {
	return New(PhaseLoad, KindPrecompiledMismatch).Detail("%s", reason).Build()
}

func QuotaExceeded(resource string) *Error {
	return New(PhaseMemory, KindQuotaExceeded).Detail("%s quota exceeded", resource).Build()
}

func OutOfMemory(detail string) *Error {
	return New(PhaseMemory, KindOutOfMemory).Detail("%s", detail).Build()
}

func NotFound(what string) *Error {
	return New(PhaseObjectModel, KindNotFound).Detail("%s", what).Build()
}

func MalformedIR(detail string) *Error {
	return New(PhaseCompile, KindMalformedIR).Detail("%s", detail).Build()
}

func InvalidArgument(detail string) *Error {
	return New(PhaseInvoke, KindInvalidArgument).Detail("%s", detail).Build()
}
