package runtime

import (
	goruntime "runtime"

	"go.uber.org/zap"

	"github.com/gowavm/wavm/object"
)

// captureStack captures the calling goroutine's program counters, skip
// frames of the caller's own choosing plus this function itself, as the
// opaque call-stack sequence attached to every Exception.
func captureStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	n := goruntime.Callers(skip+2, pcs)
	return pcs[:n]
}

// CatchRuntimeExceptions runs thunk to completion; if thunk (or anything it called, including
// further nested invocations) raised a trap or user exception, catchThunk
// receives the Exception Object instead of the panic propagating past
// this call, and owns the Exception's lifetime from that point — this
// package does not root it automatically. Any other panic is a
// programming error and is re-raised rather than swallowed.
func CatchRuntimeExceptions(thunk func(), catchThunk func(exc *object.Object)) {
	defer func() {
		if r := recover(); r != nil {
			sig, ok := r.(*exceptionSignal)
			if !ok {
				panic(r)
			}
			Logger().Debug("runtime exception caught", zap.Uint32("exception", uint32(sig.exception.Handle())))
			catchThunk(sig.exception)
		}
	}()
	thunk()
}

// ThrowException raises exc as a runtime exception from host code running
// inside a CatchRuntimeExceptions thunk — the host-initiated counterpart
// to compiled code's internal Throw expression. It never
// returns.
func ThrowException(exc *object.Object) {
	panic(&exceptionSignal{exception: exc})
}

// UnwindSignalsAsExceptions is the narrower signal primitive: converting
// a platform fault into an exception without catching it, so that an
// upstream CatchRuntimeExceptions still sees it. This engine has no
// platform fault path to convert (see doc.go) — every condition that
// would otherwise come from a signal already reaches here as an
// exceptionSignal panic — so this function is the identity: it exists
// only so call sites that want the two-primitive shape can have it,
// without this package pretending to intercept a signal that never
// occurs.
func UnwindSignalsAsExceptions(thunk func()) {
	thunk()
}
