// Package errors provides structured error types for the opus bridge.
//
// Errors carry a Phase (where processing failed: load, config, encode,
// decode, control, stream) and a Kind (what went wrong: invalid_input,
// out_of_bounds, type_mismatch, engine, allocation, not_found, unsupported).
// Engine errors additionally carry the engine's negative status code and its
// descriptive text.
//
// Use errors.Is with a Phase/Kind prototype to match error classes:
//
//	if errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseEncode, Kind: bridgeerrors.KindOutOfBounds}) {
//	    // input exceeded the scratch arena capacity
//	}
package errors
