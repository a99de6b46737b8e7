// Package opusbridge provides a streaming Opus codec built on a
// WebAssembly-hosted libopus engine.
//
// The engine is libopus compiled to a core WASM module (Emscripten-style
// exports) and hosted in-process with wazero. This library contributes no
// signal processing of its own: it resolves the engine's exported function
// table, marshals PCM and packet buffers through the engine's linear memory,
// and manages the lifetime of the engine's opaque codec state blocks.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	opusbridge/          Root package with core Memory and Allocator interfaces
//	├── engine/          Low-level wazero integration and the engine function table
//	├── arena/           Fixed scratch regions in engine memory for PCM and packets
//	├── opus/            Encoder and Decoder handles with safe/unsafe state ownership
//	├── stream/          Chunk-oriented encode/decode stages and RTP packetization
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Load an engine and encode a frame:
//
//	eng, err := engine.New(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	enc, err := opus.NewEncoder(ctx, eng, opus.Config{SampleRate: 48000, Channels: 2})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	packet, err := enc.Encode(ctx, pcm) // pcm is []int16, one 2.5-60ms frame
//
// # State Ownership
//
// By default handles run in safe mode: the engine-side state block is
// snapshotted into Go memory after initialization and round-tripped through a
// scratch allocation on every call, so no foreign state outlives a call. With
// Config.Unsafe the state stays resident in engine memory for the life of the
// handle; the caller owns it and must call Destroy exactly once or the block
// leaks.
//
// # Thread Safety
//
// Engine, handles, and the scratch arena are NOT safe for concurrent use. The
// engine executes synchronously and the arena regions are shared by every
// handle of an engine, so callers must serialize codec operations: one
// encode/decode completes fully before the next begins.
package opusbridge
