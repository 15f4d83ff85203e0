package wavm

import (
	"github.com/gowavm/wavm/compiler"
	"github.com/gowavm/wavm/wasm"
)

// CompileModule lowers ir's function bodies into compiled closures,
// returning an Artifact ready for InstantiateModule.
func CompileModule(ir *wasm.Module) (*compiler.Artifact, error) {
	return compiler.Compile(ir)
}

// GetObjectCode serializes art's compiled code into a precompiled
// object container that LoadPrecompiledModule can rehydrate later.
func GetObjectCode(art *compiler.Artifact) ([]byte, error) {
	return compiler.GetObjectCode(art)
}

// LoadPrecompiledModule rehydrates a precompiled object container
// previously produced by GetObjectCode, checking it against ir's
// structural fingerprint before re-running the emitter over ir's function
// bodies.
func LoadPrecompiledModule(ir *wasm.Module, blob []byte) (*compiler.Artifact, error) {
	return compiler.LoadPrecompiled(ir, blob)
}

// GetModuleIR returns the validated IR art was compiled from.
func GetModuleIR(art *compiler.Artifact) *wasm.Module {
	return art.IR
}
