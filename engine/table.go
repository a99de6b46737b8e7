package engine

import (
	"context"

	opusbridge "github.com/wippyai/opus-bridge"
	"github.com/wippyai/opus-bridge/arena"
	"github.com/wippyai/opus-bridge/errors"
)

// Application hints passed to encoder initialization. The values are part of
// the engine ABI.
const (
	ApplicationVoIP               = 2048
	ApplicationAudio              = 2049
	ApplicationRestrictedLowDelay = 2051
)

// CtlLastPacketDuration is the decoder ctl request for the sample count of
// the last decoded or concealed packet. Opaque engine constant; the argument
// is a pointer to an i32 in engine memory.
const CtlLastPacketDuration = 4039

// Table is the engine's function contract. Every method that enters the
// engine takes a context and returns the engine's raw status or count;
// negative values are engine error codes, translated with StatusError.
//
// Pointers are offsets into the memory returned by Memory. Frame sizes are
// samples per channel, matching the engine ABI.
type Table interface {
	// EncoderSize and DecoderSize report the state block size in bytes for a
	// channel count.
	EncoderSize(ctx context.Context, channels int) (int, error)
	DecoderSize(ctx context.Context, channels int) (int, error)

	EncoderInit(ctx context.Context, state uint32, sampleRate, channels, application int) (int, error)
	DecoderInit(ctx context.Context, state uint32, sampleRate, channels int) (int, error)

	// Encode and EncodeFloat return the packet length in bytes.
	Encode(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error)
	EncodeFloat(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error)

	// Decode and DecodeFloat return the decoded frame size in samples per
	// channel. A zero packet pointer requests loss concealment for frameSize
	// samples.
	Decode(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error)
	DecodeFloat(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error)

	DecoderCtl(ctx context.Context, state uint32, request int, arg uint32) (int, error)

	// PacketSampleCount parses a packet header without touching codec state.
	PacketSampleCount(ctx context.Context, packet uint32, packetLen, sampleRate int) (int, error)

	// ErrorString returns the engine's description of a status code.
	ErrorString(code int) string

	Memory() opusbridge.Memory
	Allocator() opusbridge.Allocator
	Arena() *arena.Arena
}

// StatusError translates a negative engine status into a structured error
// carrying the code and the engine's descriptive text.
func StatusError(phase errors.Phase, t Table, code int) error {
	return errors.Engine(phase, code, t.ErrorString(code))
}
