package emit

import (
	"github.com/gowavm/wavm/wasm"
)

// sandboxMask matches memmgr.SandboxMask; duplicated as a constant here
// (rather than importing memmgr) so emit has no dependency on the
// package that implements the reservation — only on the Memory interface
// above, which is how this engine decouples "what address is legal"
// (memmgr's job) from "how a load/store computes one" (emit's job). The
// two constants must agree: both describe the same 8 GiB reservation.
const sandboxBytes = 8 << 30
const sandboxMask = uint64(sandboxBytes - 1)

// maskAddress lowers a 32- or 64-bit Wasm address plus a static byte
// offset into the host byte offset used to index a Memory's reserved
// range: zero-extend, add the offset, then AND with sandboxMask. This
// must never sign-extend: a negative-looking i32 address zero-extends to a large
// positive value that the mask then folds back inside the reservation,
// whereas a sign-extended address could compute a host offset outside
// memmgr's allocated range entirely — the actual sandbox escape the mask
// exists to prevent.
func maskAddress(addr uint64, width wasm.AddressWidth, offset uint64) uint64 {
	var base uint64
	switch width {
	case wasm.Addr32:
		base = uint64(uint32(addr)) // zero-extend, never int32(addr)
	default:
		base = addr
	}
	return (base + offset) & sandboxMask
}

func emitLoad(n *wasm.Load) opFunc {
	address := emit(n.Address)
	memIdx := n.MemoryIndex
	offset := n.Offset
	width := n.AddrWidth
	memType := n.MemType
	ext := n.Ext
	byteWidth := byteWidthOf(memType)
	resultIs64 := n.ResultType() == wasm.I64 || n.ResultType() == wasm.F64
	return func(f *Frame) (ctl, uint64) {
		ac, av := address(f)
		if ac.kind != ctlNormal {
			return ac, av
		}
		hostAddr := maskAddress(av, width, offset)
		mem := f.Instance.MemoryAt(memIdx)
		raw := mem.Load(hostAddr, byteWidth)
		return ctl{}, extendLoaded(raw, byteWidth, ext, resultIs64)
	}
}

func byteWidthOf(t wasm.ValType) int {
	switch t {
	case wasm.I32, wasm.F32:
		return 4
	case wasm.I64, wasm.F64:
		return 8
	default:
		return int(t.Size())
	}
}

// extendLoaded widens a narrow memory load's raw bytes (already
// zero-filled above byteWidth by Memory.Load) to the result register
// width, per n.Ext: zero-extend or sign-extend the *value*, which is
// unrelated to and independent from maskAddress's zero-extension of the
// *address* — a sign-extended i8-load value is ordinary Wasm semantics,
// not a sandbox concern, because it never participates in another
// address computation downstream without the emitter re-lowering it.
func extendLoaded(raw uint64, byteWidth int, ext wasm.Extension, resultIs64 bool) uint64 {
	if ext != wasm.SignExtend || byteWidth >= 8 {
		return raw
	}
	shift := 64 - byteWidth*8
	signed := int64(raw<<shift) >> shift
	if !resultIs64 {
		return uint64(uint32(signed))
	}
	return uint64(signed)
}

func emitStore(n *wasm.Store) opFunc {
	address := emit(n.Address)
	value := emit(n.Value)
	memIdx := n.MemoryIndex
	offset := n.Offset
	width := n.AddrWidth
	byteWidth := byteWidthOf(n.MemType)
	return func(f *Frame) (ctl, uint64) {
		ac, av := address(f)
		if ac.kind != ctlNormal {
			return ac, av
		}
		vc, vv := value(f)
		if vc.kind != ctlNormal {
			return vc, vv
		}
		hostAddr := maskAddress(av, width, offset)
		mem := f.Instance.MemoryAt(memIdx)
		mem.Store(hostAddr, byteWidth, vv)
		return ctl{}, 0
	}
}

func emitMemorySize(n *wasm.MemorySize) opFunc {
	idx := n.MemoryIndex
	return func(f *Frame) (ctl, uint64) {
		return ctl{}, f.Instance.MemoryAt(idx).Size()
	}
}

func emitMemoryGrow(n *wasm.MemoryGrow) opFunc {
	idx := n.MemoryIndex
	delta := emit(n.Delta)
	return func(f *Frame) (ctl, uint64) {
		dc, dv := delta(f)
		if dc.kind != ctlNormal {
			return dc, dv
		}
		prev := f.Instance.MemoryAt(idx).Grow(dv)
		return ctl{}, uint64(uint32(prev))
	}
}
