package wavm

import (
	"fmt"
	goruntime "runtime"
	"strings"

	"github.com/gowavm/wavm/object"
	"github.com/gowavm/wavm/runtime"
	"github.com/gowavm/wavm/trap"
)

// CreateException creates a standalone Exception Object of the given
// ExceptionType, capturing the calling goroutine's stack.
// A host builds one to pass to ThrowException; compiled code's own Throw
// expression and intrinsic traps build theirs directly.
func CreateException(c *object.Compartment, excType *object.Object, args []uint64) *object.Object {
	pcs := make([]uintptr, 64)
	n := goruntime.Callers(2, pcs)
	return c.NewException(excType.Handle(), args, pcs[:n])
}

// DestroyException releases the root CatchRuntimeExceptions placed on
// excObj when it handed the exception to its catchThunk. Forgetting to
// call this is a leak, not a crash: excObj simply outlives
// every other reference to it until the next collection finds it rooted.
func DestroyException(excObj *object.Object) {
	object.RemoveRoot(excObj)
}

// GetExceptionType returns the ExceptionType Object excObj was raised
// against.
func GetExceptionType(excObj *object.Object) (*object.Object, bool) {
	exc := object.ExceptionData(excObj)
	if exc == nil {
		return nil, false
	}
	return excObj.Compartment().Get(exc.ExceptionType), true
}

// GetExceptionArgument returns excObj's argument at index, matching its
// ExceptionType's parameter tuple ordering.
func GetExceptionArgument(excObj *object.Object, index int) (uint64, bool) {
	exc := object.ExceptionData(excObj)
	if exc == nil || index < 0 || index >= len(exc.Args) {
		return 0, false
	}
	return exc.Args[index], true
}

// GetExceptionCallStack returns the opaque program counters captured
// when excObj was raised, most recent frame first.
func GetExceptionCallStack(excObj *object.Object) []uintptr {
	exc := object.ExceptionData(excObj)
	if exc == nil {
		return nil
	}
	return exc.CallStack
}

// DescribeException renders excObj's type name (or intrinsic trap Kind)
// and argument tuple as a short human-readable string, for logging and
// diagnostics.
func DescribeException(excObj *object.Object) string {
	c := excObj.Compartment()
	exc := object.ExceptionData(excObj)
	if exc == nil {
		return "<not an exception>"
	}
	name := "exception"
	if kind, ok := trap.KindOf(c, excObj); ok {
		name = kind.String()
	} else if et := object.ExceptionTypeData(c.Get(exc.ExceptionType)); et != nil && et.Type.Name != "" {
		name = et.Type.Name
	}
	args := make([]string, len(exc.Args))
	for i, a := range exc.Args {
		args[i] = fmt.Sprintf("0x%x", a)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// DescribeCallStack renders a captured call stack as one line per frame,
// resolving each program counter to a function name, file and line via
// runtime.CallersFrames.
func DescribeCallStack(stack []uintptr) string {
	if len(stack) == 0 {
		return ""
	}
	frames := goruntime.CallersFrames(stack)
	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return b.String()
}

// ThrowException raises excObj as a runtime exception from host code
// running inside a CatchRuntimeExceptions thunk. It never returns.
func ThrowException(excObj *object.Object) {
	runtime.ThrowException(excObj)
}

// CatchRuntimeExceptions runs thunk to completion. If thunk (or anything
// it called, including a nested invocation) raised a trap or exception,
// catchThunk receives the Exception Object instead of the panic
// propagating past this call. The Exception is rooted for the duration
// of catchThunk and beyond — the caller owns it from here and must call
// DestroyException when done.
func CatchRuntimeExceptions(thunk func(), catchThunk func(excObj *object.Object)) {
	runtime.CatchRuntimeExceptions(thunk, func(excObj *object.Object) {
		object.AddRoot(excObj)
		catchThunk(excObj)
	})
}

// UnwindSignalsAsExceptions runs thunk and catches nothing. This engine
// raises no platform faults (memory accesses are bounds-checked
// explicitly), so every trap thunk raises already propagates as an
// exception that an upstream CatchRuntimeExceptions can see.
func UnwindSignalsAsExceptions(thunk func()) {
	runtime.UnwindSignalsAsExceptions(thunk)
}
