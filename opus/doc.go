// Package opus provides stateful encoder and decoder handles over an engine
// function table.
//
// A handle owns one opaque engine state block. In safe mode (the default)
// the block is snapshotted into Go memory after initialization and loaded
// into a temporary engine allocation around every call, so engine memory
// holds no codec state between calls. In unsafe mode the block stays
// resident in engine memory; the caller owns its lifetime and must call
// Destroy exactly once. Using an unsafe handle after Destroy is undefined.
//
// Packets must be decoded in encode order. Packet loss is handled by the
// concealment paths: Conceal* synthesizes a frame of an explicit length, and
// Decode* with an empty packet conceals a frame matching the last decoded
// packet's duration. Losses longer than the 120ms scratch capacity must be
// split into successive concealment calls.
package opus
