// Package trap implements the intrinsic runtime exception taxonomy: the
// fixed set of conditions compiled code, memory access lowering, and the
// instantiator can raise as a trap. A trap is
// represented as an object.Exception whose ExceptionType is one of the
// sixteen intrinsic types this package constructs once per Compartment,
// on first use, and caches.
//
// trap depends on object (for Exception/ExceptionType storage) and wasm
// (for parameter value types); it does not depend on emit or runtime, so
// those packages depend on it instead of the other way around.
package trap

import (
	"sync"

	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/wasm"
)

// Kind names one row of the intrinsic exception taxonomy table.
type Kind int

const (
	OutOfBoundsMemoryAccess Kind = iota
	OutOfBoundsTableAccess
	OutOfBoundsDataSegmentAccess
	OutOfBoundsElemSegmentAccess
	StackOverflow
	IntegerDivideByZeroOrOverflow
	InvalidFloatOperation
	InvokeSignatureMismatch
	ReachedUnreachable
	IndirectCallSignatureMismatch
	UninitializedTableElement
	CalledAbort
	CalledUnimplementedIntrinsic
	OutOfMemory
	MisalignedAtomicMemoryAccess
	InvalidArgument

	numKinds
)

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var kindNames = [numKinds]string{
	OutOfBoundsMemoryAccess:       "OutOfBoundsMemoryAccess",
	OutOfBoundsTableAccess:        "OutOfBoundsTableAccess",
	OutOfBoundsDataSegmentAccess:  "OutOfBoundsDataSegmentAccess",
	OutOfBoundsElemSegmentAccess:  "OutOfBoundsElemSegmentAccess",
	StackOverflow:                 "StackOverflow",
	IntegerDivideByZeroOrOverflow: "IntegerDivideByZeroOrOverflow",
	InvalidFloatOperation:         "InvalidFloatOperation",
	InvokeSignatureMismatch:       "InvokeSignatureMismatch",
	ReachedUnreachable:            "ReachedUnreachable",
	IndirectCallSignatureMismatch: "IndirectCallSignatureMismatch",
	UninitializedTableElement:     "UninitializedTableElement",
	CalledAbort:                   "CalledAbort",
	CalledUnimplementedIntrinsic:  "CalledUnimplementedIntrinsic",
	OutOfMemory:                   "OutOfMemory",
	MisalignedAtomicMemoryAccess:  "MisalignedAtomicMemoryAccess",
	InvalidArgument:               "InvalidArgument",
}

// paramTypes gives each intrinsic Kind's parameter tuple, as value types of the Exception's Args. A
// "Memory-ref"/"Table-ref" parameter is carried as an i64 holding the
// referenced Object's Handle, since ExceptionType.Params only names value
// kinds, not object kinds — the referenced Handle is reinterpreted by the
// host via getExternType on request.
var paramTypes = [numKinds][]wasm.ValType{
	OutOfBoundsMemoryAccess:      {wasm.I64, wasm.I64}, // memory handle, offset
	OutOfBoundsTableAccess:       {wasm.I64, wasm.I64}, // table handle, index
	OutOfBoundsDataSegmentAccess: {wasm.I64, wasm.I64, wasm.I64},
	OutOfBoundsElemSegmentAccess: {wasm.I64, wasm.I64, wasm.I64},
	StackOverflow:                nil,
	IntegerDivideByZeroOrOverflow: nil,
	InvalidFloatOperation:         nil,
	InvokeSignatureMismatch:       nil,
	ReachedUnreachable:            nil,
	IndirectCallSignatureMismatch: nil,
	UninitializedTableElement:     {wasm.I64, wasm.I64}, // table handle, index
	CalledAbort:                   nil,
	CalledUnimplementedIntrinsic:  nil,
	OutOfMemory:                   nil,
	MisalignedAtomicMemoryAccess:  {wasm.I64}, // address
	InvalidArgument:               nil,
}

// registry caches the per-Compartment ExceptionType Objects for the
// sixteen intrinsic kinds, so every trap of the same Kind in a
// Compartment shares one ExceptionType.
type registry struct {
	mu    sync.Mutex
	types [numKinds]*object.Object
}

type auxKey struct{}

func registryFor(c *object.Compartment) *registry {
	if v, ok := c.Aux().Load(auxKey{}); ok {
		return v.(*registry)
	}
	actual, _ := c.Aux().LoadOrStore(auxKey{}, &registry{})
	return actual.(*registry)
}

// typeFor returns the ExceptionType Object for kind within c, creating it
// on first use.
func typeFor(c *object.Compartment, kind Kind) *object.Object {
	r := registryFor(c)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.types[kind] == nil {
		et := c.NewExceptionType(wasm.ExceptionType{Params: paramTypes[kind], Name: kind.String()})
		object.AddRoot(et)
		r.types[kind] = et
	}
	return r.types[kind]
}

// New raises a trap of the given Kind in Compartment c, with args matching
// paramTypes[kind] and the given captured call stack (opaque instruction
// pointers). It does not root the resulting Exception; the caller is
// expected to either root it immediately or propagate it up the Go call
// stack as a panic value before it could be collected.
func New(c *object.Compartment, kind Kind, args []uint64, callStack []uintptr) *object.Object {
	et := typeFor(c, kind)
	return c.NewException(et.Handle(), args, callStack)
}

// Error wraps an Exception Object raised outside of normal call unwinding
// — by the instantiator's data/element segment bounds checks, by
// invokeChecked's arity/type validation, or by InvokeUnchecked when it
// recovers a trap raised during a call — so that every package surfacing
// a trap as a plain Go error shares one wrapper instead of each redefining
// it. It is never used to represent a Setup error (see package errors);
// the caller owns the wrapped Exception's lifetime, since Error does not
// root it.
type Error struct {
	Compartment *object.Compartment
	Exception   *object.Object
}

func (e *Error) Error() string {
	kind, _ := KindOf(e.Compartment, e.Exception)
	return "trap: " + kind.String()
}

// Raise constructs an Error wrapping a freshly raised Exception of the
// given Kind.
func Raise(c *object.Compartment, kind Kind, args []uint64, callStack []uintptr) *Error {
	return &Error{Compartment: c, Exception: New(c, kind, args, callStack)}
}

// KindOf reports the intrinsic Kind of an Exception Object, and whether
// it is in fact an intrinsic (as opposed to a user-declared exception
// tag).
func KindOf(c *object.Compartment, excObj *object.Object) (Kind, bool) {
	exc := object.ExceptionData(excObj)
	if exc == nil {
		return 0, false
	}
	r := registryFor(c)
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, o := range r.types {
		if o != nil && o.Handle() == exc.ExceptionType {
			return Kind(k), true
		}
	}
	return 0, false
}
