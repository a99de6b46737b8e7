// Package engine hosts the opus codec engine and exposes its function table.
//
// The engine is libopus compiled to a core WASM module (typically with
// Emscripten) and instantiated with wazero. All codec state lives in the
// module's linear memory and is addressed by uint32 offsets; the package
// performs no interpretation of that state beyond marshalling bytes in and
// out and translating numeric status codes into descriptive errors.
//
// The Table interface captures the engine's function contract. Higher layers
// depend on Table rather than the wazero-backed Engine so they can be tested
// against an in-process fake.
//
// # Reentrancy
//
// The engine executes synchronously and shares one scratch arena across all
// codec handles. No call may overlap another; serialization is the caller's
// responsibility and the package takes no locks of its own.
package engine
