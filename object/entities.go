package object

import (
	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/memmgr"
	"github.com/gowavm/wavm/quota"
	"github.com/gowavm/wavm/wasm"
)

// Function is a compiled function: its signature, the module instance
// that owns it, and its entry point in emitted code. Entry is an opaque
// value owned by package emit/compiler; object never calls it directly.
type Function struct {
	Type      wasm.FuncType
	Instance  Handle // owning ModuleInstance, or 0 for a host function
	Entry     any    // emit.CompiledFunc, opaque here to avoid an import cycle
	NumLocals int    // params + declared locals; sizes Entry's Frame.Locals at call time
}

func (f *Function) Refs() []Handle {
	if f.Instance == 0 {
		return nil
	}
	return []Handle{f.Instance}
}

// NewFunction creates a Function Object owned by c.
func (c *Compartment) NewFunction(ft wasm.FuncType, instance Handle, entry any) *Object {
	return c.alloc(KindFunction, &Function{Type: ft, Instance: instance, Entry: entry})
}

// FunctionData returns the Function payload of o, or nil if o is not a
// Function.
func FunctionData(o *Object) *Function {
	f, _ := o.payload.(*Function)
	return f
}

// Table is a power-of-two-sized array of typed references. Elements are stored
// as Handles into the same Compartment; a zero Handle is a null slot. The
// declared function signature recorded at instantiation time (for
// indirect-call checks) lives alongside the element storage.
type Table struct {
	Type     wasm.TableType
	quota    *quota.ResourceQuota
	elements []Handle
	sigTag   uint64 // FuncType.Tag() of the expected callee signature, if Type.Element == FuncRef
	hasSig   bool
}

func (t *Table) Refs() []Handle {
	out := make([]Handle, 0, len(t.elements))
	for _, h := range t.elements {
		if h != 0 {
			out = append(out, h)
		}
	}
	return out
}

// NewTable creates a Table Object of the declared type, owned by c.
func (c *Compartment) NewTable(t wasm.TableType, q *quota.ResourceQuota) (*Object, error) {
	if err := q.ReserveTableElements(t.Limits.Min); err != nil {
		return nil, err
	}
	tbl := &Table{Type: t, quota: q, elements: make([]Handle, t.Limits.Min)}
	return c.alloc(KindTable, tbl), nil
}

// TableData returns the Table payload of o, or nil if o is not a Table.
func TableData(o *Object) *Table {
	t, _ := o.payload.(*Table)
	return t
}

// SetExpectedSignature records the function type indirect calls through
// this table are expected to match.
func (t *Table) SetExpectedSignature(ft wasm.FuncType) {
	t.sigTag = ft.Tag()
	t.hasSig = true
}

func (t *Table) ExpectedSignature() (uint64, bool) { return t.sigTag, t.hasSig }

func (t *Table) Len() uint32 { return uint32(len(t.elements)) }

func (t *Table) Get(i uint32) (Handle, bool) {
	if int(i) >= len(t.elements) {
		return 0, false
	}
	return t.elements[i], true
}

func (t *Table) Set(i uint32, h Handle) bool {
	if int(i) >= len(t.elements) {
		return false
	}
	t.elements[i] = h
	return true
}

// Grow appends n null elements, respecting the declared max and quota,
// returning the previous length.
func (t *Table) Grow(n uint32) (previous uint32, err error) {
	prev := uint32(len(t.elements))
	next := uint64(prev) + uint64(n)
	if t.Type.Limits.Max != nil && next > *t.Type.Limits.Max {
		return 0, tableLimitErr()
	}
	if err := t.quota.ReserveTableElements(uint64(n)); err != nil {
		return 0, err
	}
	t.elements = append(t.elements, make([]Handle, n)...)
	return prev, nil
}

// Memory wraps the reserved address range from package memmgr with the
// object-model header.
type Memory struct {
	Type wasm.MemoryType
	Mem  *memmgr.Memory
}

func (m *Memory) Refs() []Handle { return nil }

// NewMemory creates a Memory Object, reserving its sandbox address range.
func (c *Compartment) NewMemory(t wasm.MemoryType, q *quota.ResourceQuota) (*Object, error) {
	mem, err := memmgr.Create(t, q)
	if err != nil {
		return nil, err
	}
	return c.alloc(KindMemory, &Memory{Type: t, Mem: mem}), nil
}

func MemoryData(o *Object) *Memory {
	m, _ := o.payload.(*Memory)
	return m
}

// Global holds one instance-scoped mutable or immutable value. Reference-
// typed globals store a Handle in RefValue; numeric globals store their
// bit pattern in NumValue. Assigned tracks the "assigned exactly once
// before first read" invariant for immutable globals.
type Global struct {
	Type     wasm.GlobalType
	NumValue uint64
	RefValue Handle
	Assigned bool
}

func (g *Global) Refs() []Handle {
	if g.Type.Val.IsReference() && g.RefValue != 0 {
		return []Handle{g.RefValue}
	}
	return nil
}

func (c *Compartment) NewGlobal(t wasm.GlobalType) *Object {
	return c.alloc(KindGlobal, &Global{Type: t})
}

func GlobalData(o *Object) *Global {
	g, _ := o.payload.(*Global)
	return g
}

// ExceptionType names an exception tag's parameter tuple,
// covering both user-declared Wasm exception tags and the intrinsic trap
// taxonomy (package trap constructs one Object per intrinsic kind, once
// per Compartment, on demand).
type ExceptionType struct {
	Type wasm.ExceptionType
}

func (e *ExceptionType) Refs() []Handle { return nil }

func (c *Compartment) NewExceptionType(t wasm.ExceptionType) *Object {
	return c.alloc(KindExceptionType, &ExceptionType{Type: t})
}

func ExceptionTypeData(o *Object) *ExceptionType {
	e, _ := o.payload.(*ExceptionType)
	return e
}

// Exception is a raised (or about-to-be-thrown) exception instance:
// argument values matching its ExceptionType's parameter tuple, plus a
// captured call stack. Values are untagged, mirroring
// ExceptionType's Params ordering.
type Exception struct {
	ExceptionType Handle
	Args          []uint64
	CallStack     []uintptr
}

func (e *Exception) Refs() []Handle { return []Handle{e.ExceptionType} }

func (c *Compartment) NewException(excType Handle, args []uint64, stack []uintptr) *Object {
	return c.alloc(KindException, &Exception{ExceptionType: excType, Args: args, CallStack: stack})
}

func ExceptionData(o *Object) *Exception {
	e, _ := o.payload.(*Exception)
	return e
}

// ModuleInstance is a materialized module: its resolved
// bindings and everything it declared, plus its export map. Exports only
// ever name Objects in the instance's own Compartment; the instantiator enforces that by construction, since every
// Handle here comes from the same c.alloc call site.
type ModuleInstance struct {
	Functions      []Handle
	Tables         []Handle
	Memories       []Handle
	Globals        []Handle
	ExceptionTypes []Handle
	Exports        map[string]Handle
	Start          Handle // 0 if no start function
	DebugName      string
}

func (mi *ModuleInstance) Refs() []Handle {
	out := make([]Handle, 0, len(mi.Functions)+len(mi.Tables)+len(mi.Memories)+len(mi.Globals)+len(mi.ExceptionTypes))
	out = append(out, mi.Functions...)
	out = append(out, mi.Tables...)
	out = append(out, mi.Memories...)
	out = append(out, mi.Globals...)
	out = append(out, mi.ExceptionTypes...)
	return out
}

func (c *Compartment) NewModuleInstance(mi *ModuleInstance) *Object {
	return c.alloc(KindModuleInstance, mi)
}

func ModuleInstanceData(o *Object) *ModuleInstance {
	mi, _ := o.payload.(*ModuleInstance)
	return mi
}

// Context is a single-threaded execution handle: it snapshots
// the mutable-global state of every instance it has touched, plus one
// scratch slot for a pending unchecked-invocation result.
type Context struct {
	compartment *Compartment
	globals     map[Handle][]uint64 // per-instance mutable-global snapshot, keyed by owning Global's handle group
	scratch     [16]byte
}

func (ctx *Context) Refs() []Handle { return nil }

// NewContext creates a Context Object rooted in c and registers it as a
// GC root source independent of its own root counter.
func (c *Compartment) NewContext() *Object {
	o := c.alloc(KindContext, &Context{compartment: c, globals: make(map[Handle][]uint64)})
	c.registerContext(o.handle)
	return o
}

// CloneContext duplicates a Context's mutable-global snapshot into a new
// Context in the same Compartment.
func (c *Compartment) CloneContext(src *Context) *Object {
	dup := &Context{compartment: c, globals: make(map[Handle][]uint64, len(src.globals))}
	for k, v := range src.globals {
		cp := make([]uint64, len(v))
		copy(cp, v)
		dup.globals[k] = cp
	}
	o := c.alloc(KindContext, dup)
	c.registerContext(o.handle)
	return o
}

func ContextData(o *Object) *Context {
	ctx, _ := o.payload.(*Context)
	return ctx
}

// GlobalValue returns ctx's private view of the Global at h. Each Context,
// on its own first touch of a given Global, inherits the Global's current
// shared payload value; every write after that (via SetGlobalValue) is visible
// only through this Context, never through the Global payload itself or
// any other Context.
func (ctx *Context) GlobalValue(h Handle) (num uint64, ref Handle) {
	if v, ok := ctx.globals[h]; ok {
		return v[0], Handle(v[1])
	}
	g := GlobalData(ctx.compartment.Get(h))
	if g == nil {
		return 0, 0
	}
	ctx.globals[h] = []uint64{g.NumValue, uint64(g.RefValue)}
	return g.NumValue, g.RefValue
}

// SetGlobalValue overwrites ctx's private view of the Global at h.
func (ctx *Context) SetGlobalValue(h Handle, num uint64, ref Handle) {
	ctx.globals[h] = []uint64{num, uint64(ref)}
}

// freeContext unregisters ctx from its Compartment's root-source set.
// The collector's sweep does not call it: it removes swept Contexts from
// that set itself.
func freeContext(ctx *Context, h Handle) {
	ctx.compartment.unregisterContext(h)
}

// Foreign wraps an opaque host pointer with no core-visible structure
//.
type Foreign struct{}

func (Foreign) Refs() []Handle { return nil }

func (c *Compartment) NewForeign() *Object {
	return c.alloc(KindForeign, Foreign{})
}

func tableLimitErr() error {
	return errors.New(errors.PhaseTable, errors.KindOutOfMemory).Detail("table grow exceeds declared max").Build()
}

// clonePayload deep-duplicates a payload for Compartment.Clone. Because
// Clone preserves arena indices 1:1, remap is the identity map by the time
// cloning finishes, but it is threaded through anyway so the translation
// stays correct if that invariant ever changes (e.g. a future compacting
// clone).
func clonePayload(p Referrer, remap map[Handle]Handle) (Referrer, error) {
	switch v := p.(type) {
	case *Function:
		return &Function{Type: v.Type, Instance: translate(remap, v.Instance), Entry: v.Entry, NumLocals: v.NumLocals}, nil
	case *Table:
		elems := make([]Handle, len(v.elements))
		for i, h := range v.elements {
			elems[i] = translate(remap, h)
		}
		return &Table{Type: v.Type, quota: v.quota, elements: elems, sigTag: v.sigTag, hasSig: v.hasSig}, nil
	case *Memory:
		mem, err := v.Mem.Clone()
		if err != nil {
			return nil, err
		}
		return &Memory{Type: v.Type, Mem: mem}, nil
	case *Global:
		return &Global{Type: v.Type, NumValue: v.NumValue, RefValue: translate(remap, v.RefValue), Assigned: v.Assigned}, nil
	case *ExceptionType:
		return &ExceptionType{Type: v.Type}, nil
	case *Exception:
		args := make([]uint64, len(v.Args))
		copy(args, v.Args)
		stack := make([]uintptr, len(v.CallStack))
		copy(stack, v.CallStack)
		return &Exception{ExceptionType: translate(remap, v.ExceptionType), Args: args, CallStack: stack}, nil
	case *ModuleInstance:
		exports := make(map[string]Handle, len(v.Exports))
		for name, h := range v.Exports {
			exports[name] = translate(remap, h)
		}
		return &ModuleInstance{
			Functions:      translateAll(remap, v.Functions),
			Tables:         translateAll(remap, v.Tables),
			Memories:       translateAll(remap, v.Memories),
			Globals:        translateAll(remap, v.Globals),
			ExceptionTypes: translateAll(remap, v.ExceptionTypes),
			Exports:        exports,
			Start:          translate(remap, v.Start),
			DebugName:      v.DebugName,
		}, nil
	case *Context:
		// A cloned Compartment starts with no live Contexts of its own;
		// Context Objects are not duplicated by Clone.
		return nil, nil
	case Foreign:
		return Foreign{}, nil
	default:
		return p, nil
	}
}

// translate maps an old Handle through remap, leaving 0 (null) unchanged.
// A missing entry can only happen for a Handle into a different
// Compartment, which never occurs here by construction.
func translate(remap map[Handle]Handle, h Handle) Handle {
	if h == 0 {
		return 0
	}
	if nh, ok := remap[h]; ok {
		return nh
	}
	return h
}

func translateAll(remap map[Handle]Handle, hs []Handle) []Handle {
	out := make([]Handle, len(hs))
	for i, h := range hs {
		out[i] = translate(remap, h)
	}
	return out
}
