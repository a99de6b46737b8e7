package opus

import (
	"context"

	"github.com/wippyai/opus-bridge/arena"
	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/errors"
)

// Encoder turns PCM frames into opus packets.
type Encoder struct {
	table engine.Table
	cfg   Config
	st    *state
}

// NewEncoder validates cfg and initializes an encoder state block.
func NewEncoder(ctx context.Context, t engine.Table, cfg Config) (*Encoder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(true); err != nil {
		return nil, err
	}

	size, err := t.EncoderSize(ctx, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, engine.StatusError(errors.PhaseConfig, t, size)
	}

	st, err := newState(ctx, t, size, cfg.Unsafe, func(ptr uint32) error {
		status, err := t.EncoderInit(ctx, ptr, cfg.SampleRate, cfg.Channels, int(cfg.Application))
		if err != nil {
			return err
		}
		if status != engine.StatusOK {
			return engine.StatusError(errors.PhaseConfig, t, status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Encoder{table: t, cfg: cfg, st: st}, nil
}

// Config returns the encoder's effective configuration.
func (e *Encoder) Config() Config { return e.cfg }

// Encode compresses one frame of interleaved 16-bit samples. The frame must
// be a whole number of samples per channel and one of the legal durations
// (2.5-60ms).
func (e *Encoder) Encode(ctx context.Context, pcm []int16) ([]byte, error) {
	return e.encode(ctx, int16Bytes(pcm), len(pcm), 2, e.table.Encode)
}

// EncodeFloat is Encode for 32-bit float samples.
func (e *Encoder) EncodeFloat(ctx context.Context, pcm []float32) ([]byte, error) {
	return e.encode(ctx, float32Bytes(pcm), len(pcm), 4, e.table.EncodeFloat)
}

type encodeFn func(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error)

func (e *Encoder) encode(ctx context.Context, raw []byte, samples, width int, call encodeFn) ([]byte, error) {
	pcmPtr, pcmCap := e.table.Arena().Acquire(arena.PCM)
	pktPtr, pktCap := e.table.Arena().Acquire(arena.Packet)

	if samples == 0 || samples%e.cfg.Channels != 0 {
		return nil, errors.InvalidInput(errors.PhaseEncode, "frame length must be a non-zero multiple of the channel count")
	}
	if len(raw) > int(pcmCap) {
		return nil, errors.SizeExceeded(errors.PhaseEncode, "pcm frame", len(raw), int(pcmCap))
	}
	frameSize := samples / e.cfg.Channels
	if !validFrameSize(e.cfg.SampleRate, frameSize) {
		return nil, errors.InvalidValue(errors.PhaseEncode, "frame_size", frameSize,
			"frame must be 2.5, 5, 10, 20, 40 or 60ms")
	}

	var packet []byte
	err := e.st.with(errors.PhaseEncode, func(statePtr uint32) error {
		if err := e.table.Memory().Write(pcmPtr, raw); err != nil {
			return errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "write pcm scratch")
		}
		n, err := call(ctx, statePtr, pcmPtr, frameSize, pktPtr, int(pktCap))
		if err != nil {
			return err
		}
		if n < 0 {
			return engine.StatusError(errors.PhaseEncode, e.table, n)
		}
		view, err := e.table.Memory().Read(pktPtr, uint32(n))
		if err != nil {
			return errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "read packet scratch")
		}
		packet = append([]byte(nil), view...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return packet, nil
}

// Destroy releases the resident state block of an unsafe-mode encoder.
// Safe-mode encoders hold no engine memory; Destroy is a no-op. Any use of
// an unsafe-mode encoder after Destroy is undefined.
func (e *Encoder) Destroy() {
	e.st.destroy()
}
