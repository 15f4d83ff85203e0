// Package compiler turns a validated IR module into a compiled Artifact
// (Compile), extracts a serializable object-code blob from one
// (GetObjectCode), and reloads that blob without redoing the structural
// work Compile did (LoadPrecompiled).
//
// Closures cannot be serialized in Go, so "reload" here means re-running
// package emit over the function bodies of the ir passed to
// LoadPrecompiled, once the blob's fingerprint matches that ir; the
// expression trees carried in the blob are decoded but not emitted
// — the fingerprint check is what makes this observationally a reload
// rather than a recompile: the same validated IR always produces the
// same closures, so skipping re-validation is safe, and that is the only
// step LoadPrecompiled actually skips.
package compiler

import (
	"bytes"
	"encoding/gob"
	"hash/fnv"

	"go.uber.org/zap"

	"github.com/gowavm/wavm/emit"
	"github.com/gowavm/wavm/errors"
	"github.com/gowavm/wavm/wasm"
)

// magic and version identify the precompiled-object container format:
// 4-byte magic, version, fingerprint hash, relocation table, native code
// blob. Go has no relocatable native code, so the
// "relocation table" is the per-function expression-tree list and the
// "native code blob" is nothing more than what re-running emit over the
// module's function bodies produces — see doc comment above.
const magic = "WVGO"
const version = 1

// Artifact is a compiled module: its IR (retained so LoadPrecompiled can
// be observationally a reload) and one CompiledFunc per function body, in
// declaration order.
type Artifact struct {
	IR        *wasm.Module
	Functions []emit.CompiledFunc
}

// Compile lowers every function body in ir to a CompiledFunc. It does not validate ir — validation is out of scope
// — and does not touch any Compartment or instance state;
// the resulting Artifact is instantiation-independent and can back any
// number of Instantiate calls.
func Compile(ir *wasm.Module) (*Artifact, error) {
	if ir == nil {
		return nil, errors.MalformedIR("nil module")
	}
	fns := make([]emit.CompiledFunc, len(ir.Funcs))
	for i, fn := range ir.Funcs {
		fns[i] = emit.Emit(fn.Type, fn.Body)
	}
	Logger().Debug("module compiled", zap.Int("functions", len(fns)))
	return &Artifact{IR: ir, Functions: fns}, nil
}

// container is the gob-encoded payload GetObjectCode produces and
// LoadPrecompiled consumes: everything needed to reconstruct an Artifact
// except the closures themselves.
type container struct {
	Magic       string
	Version     int
	Fingerprint uint64
	IR          *wasm.Module
}

// fingerprint hashes the structural shape of a module — types, imports,
// exports, function signatures — so a precompiled artifact's fingerprint
// rejects a mismatched IR before LoadPrecompiled trusts it.
func fingerprint(ir *wasm.Module) uint64 {
	h := fnv.New64a()
	write := func(s string) { h.Write([]byte(s)) }
	writeFuncType := func(ft wasm.FuncType) {
		for _, p := range ft.Params {
			write(p.String())
		}
		write("->")
		for _, r := range ft.Results {
			write(r.String())
		}
	}
	for _, t := range ir.Types {
		writeFuncType(t)
	}
	for _, imp := range ir.Imports {
		write(imp.Module)
		write(imp.Name)
	}
	for _, exp := range ir.Exports {
		write(exp.Name)
	}
	for _, fn := range ir.Funcs {
		writeFuncType(fn.Type)
	}
	return h.Sum64()
}

// GetObjectCode serializes a compiled Artifact's non-closure metadata
// plus a structural fingerprint into the precompiled-object container
// format described above.
func GetObjectCode(a *Artifact) ([]byte, error) {
	c := container{Magic: magic, Version: version, Fingerprint: fingerprint(a.IR), IR: a.IR}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&c); err != nil {
		return nil, errors.New(errors.PhaseCompile, errors.KindMalformedIR).
			Cause(err).Detail("encode object code").Build()
	}
	return buf.Bytes(), nil
}

// LoadPrecompiled reconstructs an Artifact from a GetObjectCode blob,
// checking the blob's fingerprint against ir before trusting it. Function bodies are
// re-emitted from ir, not re-validated; the IR carried in the blob is used
// only for the container check.
func LoadPrecompiled(ir *wasm.Module, blob []byte) (*Artifact, error) {
	var c container
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&c); err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindMalformedIR).
			Cause(err).Detail("decode object code").Build()
	}
	if c.Magic != magic || c.Version != version {
		return nil, errors.PrecompiledMismatch("unrecognized object-code container")
	}
	if c.Fingerprint != fingerprint(ir) {
		return nil, errors.PrecompiledMismatch("fingerprint does not match the provided module")
	}
	Logger().Debug("precompiled module loaded", zap.Uint64("fingerprint", c.Fingerprint))
	return Compile(ir)
}
