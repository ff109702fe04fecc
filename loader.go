package wasmforge

import wasm "github.com/wasmforge/wasmforge/internal/wasm"

// Loader decodes a .wasm binary into the form internal/wasm.ValidateFunction
// and internal/engine/executor already consume. Binary parsing itself is
// out of scope for this module; Loader exists so a decoder built on top of
// it can be exercised against this module's own fixtures and tests as a
// drop-in, and so an embedder knows the exact shape a decoder must produce.
type Loader interface {
	// DecodeModule parses wasmBinary into one ModuleInstance, with every
	// FunctionInstance's Body already validated via
	// internal/wasm.ValidateFunction.
	DecodeModule(wasmBinary []byte) (*wasm.ModuleInstance, error)
}

// HostModule supplies host functions for linking into a guest module's
// import namespace, the counterpart to Loader on the host side.
// Instantiation/linking itself is out of scope for this module; HostModule
// is the shape a linker built on top of FunctionInstance would implement.
type HostModule interface {
	// Functions returns this host module's exports, keyed by import name.
	Functions() map[string]*wasm.FunctionInstance
}
