package object

import (
	"sync/atomic"

	"github.com/gowavm/wavm/wasm"
)

// Kind tags an Object's runtime type. It is fixed for the object's life
// and drives isA/getExternType.
type Kind byte

const (
	KindFunction Kind = iota
	KindTable
	KindMemory
	KindGlobal
	KindExceptionType
	KindException
	KindModuleInstance
	KindContext
	KindForeign
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindTable:
		return "table"
	case KindMemory:
		return "memory"
	case KindGlobal:
		return "global"
	case KindExceptionType:
		return "exception_type"
	case KindException:
		return "exception"
	case KindModuleInstance:
		return "module_instance"
	case KindContext:
		return "context"
	case KindForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Finalizer is invoked exactly once when an Object is freed, even if the
// free happens during compartment teardown.
type Finalizer func(userData any)

// Handle is a compartment-local, arena-index reference to an Object. It
// is never valid outside the Compartment that issued it; Handle 0 is
// reserved and always invalid, matching the sentinel convention used
// elsewhere in this codebase's handle tables.
type Handle uint32

// Referrer is implemented by the kind-specific payload embedded in an
// Object; Refs reports the other Objects (by Handle, in this Object's own
// Compartment) it holds an edge to, for the GC mark phase.
type Referrer interface {
	Refs() []Handle
}

// Object is the header every runtime entity embeds. Kind-specific data
// (Function, Table, Memory, ...) lives alongside it in the Compartment's
// arena entry; Object itself only carries what the object model needs to
// reason about lifetime.
type Object struct {
	Kind Kind

	compartment *Compartment
	handle      Handle
	root        atomic.Int32
	marked      bool

	userData  any
	finalizer Finalizer

	payload Referrer
}

// Handle returns the Object's handle within its owning Compartment.
func (o *Object) Handle() Handle { return o.handle }

// Compartment returns the Compartment that owns this Object.
func (o *Object) Compartment() *Compartment { return o.compartment }

// RootCount returns the current root counter. Exposed for diagnostics and
// tests; the GC itself only cares whether it is > 0.
func (o *Object) RootCount() int32 { return o.root.Load() }

// SetUserData attaches an opaque host pointer and finalizer.
// A previously attached finalizer is not invoked by this call — only by
// the object's eventual free.
func (o *Object) SetUserData(data any, fin Finalizer) {
	o.userData = data
	o.finalizer = fin
}

// UserData returns the most recently attached user-data value.
func (o *Object) UserData() any { return o.userData }

// runFinalizer invokes the finalizer exactly once, tolerating a nil
// finalizer.
func (o *Object) runFinalizer() {
	if o.finalizer != nil {
		fin := o.finalizer
		data := o.userData
		o.finalizer = nil
		fin(data)
	}
}

// externTypeOf reports the ExternType of an Object, or false if the kind
// has no external type (Exception, ModuleInstance, Context, Foreign).
func externTypeOf(o *Object) (wasm.ExternType, bool) {
	switch v := o.payload.(type) {
	case *Function:
		return wasm.ExternType{Kind: wasm.ExternFunc, Func: v.Type}, true
	case *Table:
		return wasm.ExternType{Kind: wasm.ExternTable, Table: v.Type}, true
	case *Memory:
		return wasm.ExternType{Kind: wasm.ExternMemory, Memory: v.Type}, true
	case *Global:
		return wasm.ExternType{Kind: wasm.ExternGlobal, Global: v.Type}, true
	case *ExceptionType:
		return wasm.ExternType{Kind: wasm.ExternException, Exception: v.Type}, true
	default:
		return wasm.ExternType{}, false
	}
}
