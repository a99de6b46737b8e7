package opus

import (
	"context"

	"github.com/wippyai/opus-bridge/arena"
	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/errors"
)

// Decoder turns opus packets back into PCM frames.
type Decoder struct {
	table engine.Table
	cfg   Config
	st    *state
}

// NewDecoder validates cfg and initializes a decoder state block. The
// Application field is ignored for decoders.
func NewDecoder(ctx context.Context, t engine.Table, cfg Config) (*Decoder, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(false); err != nil {
		return nil, err
	}

	size, err := t.DecoderSize(ctx, cfg.Channels)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, engine.StatusError(errors.PhaseConfig, t, size)
	}

	st, err := newState(ctx, t, size, cfg.Unsafe, func(ptr uint32) error {
		status, err := t.DecoderInit(ctx, ptr, cfg.SampleRate, cfg.Channels)
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

	return &Decoder{table: t, cfg: cfg, st: st}, nil
}

// Config returns the decoder's effective configuration.
func (d *Decoder) Config() Config { return d.cfg }

// DecodeInt16 decodes one packet into interleaved 16-bit samples. A nil or
// empty packet requests loss concealment sized by the last decoded packet's
// duration.
func (d *Decoder) DecodeInt16(ctx context.Context, packet []byte) ([]int16, error) {
	raw, total, err := d.run(ctx, packet, 0, 2)
	if err != nil {
		return nil, err
	}
	out := make([]int16, total)
	copy(int16Bytes(out), raw)
	return out, nil
}

// DecodeFloat32 is DecodeInt16 for 32-bit float output.
func (d *Decoder) DecodeFloat32(ctx context.Context, packet []byte) ([]float32, error) {
	raw, total, err := d.run(ctx, packet, 0, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, total)
	copy(float32Bytes(out), raw)
	return out, nil
}

// ConcealInt16 synthesizes samples per channel of concealment for a lost
// packet. samples <= 0 estimates the length from the last decoded packet's
// duration. Losses beyond the 120ms scratch capacity must be split across
// calls.
func (d *Decoder) ConcealInt16(ctx context.Context, samples int) ([]int16, error) {
	raw, total, err := d.run(ctx, nil, samples, 2)
	if err != nil {
		return nil, err
	}
	out := make([]int16, total)
	copy(int16Bytes(out), raw)
	return out, nil
}

// ConcealFloat32 is ConcealInt16 for 32-bit float output.
func (d *Decoder) ConcealFloat32(ctx context.Context, samples int) ([]float32, error) {
	raw, total, err := d.run(ctx, nil, samples, 4)
	if err != nil {
		return nil, err
	}
	out := make([]float32, total)
	copy(float32Bytes(out), raw)
	return out, nil
}

// run performs one engine decode. Exactly one of packet / lossSamples is
// used: a non-empty packet decodes normally, otherwise lossSamples (estimated
// via the duration ctl when <= 0) drives concealment with a zero packet
// pointer. It returns a copy of the raw little-endian sample bytes and the
// total sample count across channels.
func (d *Decoder) run(ctx context.Context, packet []byte, lossSamples, width int) ([]byte, int, error) {
	pcmPtr, pcmCap := d.table.Arena().Acquire(arena.PCM)
	pktPtr, pktCap := d.table.Arena().Acquire(arena.Packet)

	var inPtr uint32
	var inLen, frameSize int

	if len(packet) > 0 {
		if len(packet) > int(pktCap) {
			return nil, 0, errors.SizeExceeded(errors.PhaseDecode, "packet", len(packet), int(pktCap))
		}
		if err := d.table.Memory().Write(pktPtr, packet); err != nil {
			return nil, 0, errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "write packet scratch")
		}
		inPtr, inLen = pktPtr, len(packet)
		frameSize = int(pcmCap) / d.cfg.Channels / width
	} else {
		if lossSamples <= 0 {
			est, err := d.LastPacketDuration(ctx)
			if err != nil {
				return nil, 0, err
			}
			lossSamples = est
		}
		if lossSamples*d.cfg.Channels*width > int(pcmCap) {
			return nil, 0, errors.SizeExceeded(errors.PhaseDecode, "concealment frame",
				lossSamples*d.cfg.Channels*width, int(pcmCap))
		}
		frameSize = lossSamples
	}

	call := d.table.Decode
	if width == 4 {
		call = d.table.DecodeFloat
	}

	var raw []byte
	var total int
	err := d.st.with(errors.PhaseDecode, func(statePtr uint32) error {
		frames, err := call(ctx, statePtr, inPtr, inLen, pcmPtr, frameSize, 0)
		if err != nil {
			return err
		}
		if frames < 0 {
			return engine.StatusError(errors.PhaseDecode, d.table, frames)
		}
		total = frames * d.cfg.Channels
		view, err := d.table.Memory().Read(pcmPtr, uint32(total*width))
		if err != nil {
			return errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "read pcm scratch")
		}
		raw = append([]byte(nil), view...)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return raw, total, nil
}

// LastPacketDuration queries the sample count (per channel) of the last
// decoded or concealed packet.
func (d *Decoder) LastPacketDuration(ctx context.Context) (int, error) {
	argPtr, err := d.table.Allocator().Alloc(4)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseControl, errors.KindAllocation, err, "allocate ctl argument")
	}
	defer d.table.Allocator().Free(argPtr)

	var duration int
	err = d.st.with(errors.PhaseControl, func(statePtr uint32) error {
		status, err := d.table.DecoderCtl(ctx, statePtr, engine.CtlLastPacketDuration, argPtr)
		if err != nil {
			return err
		}
		if status != engine.StatusOK {
			return engine.StatusError(errors.PhaseControl, d.table, status)
		}
		v, err := d.table.Memory().ReadU32(argPtr)
		if err != nil {
			return errors.Wrap(errors.PhaseControl, errors.KindOutOfBounds, err, "read ctl argument")
		}
		duration = int(int32(v))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return duration, nil
}

// Destroy releases the resident state block of an unsafe-mode decoder.
// Safe-mode decoders hold no engine memory; Destroy is a no-op. Any use of
// an unsafe-mode decoder after Destroy is undefined.
func (d *Decoder) Destroy() {
	d.st.destroy()
}

// PacketSampleCount parses a packet's header for its sample count at a
// sample rate. It needs no decoder and touches no codec state.
func PacketSampleCount(ctx context.Context, t engine.Table, packet []byte, sampleRate int) (int, error) {
	if !validRate(sampleRate) {
		return 0, errors.InvalidValue(errors.PhaseControl, "sample_rate", sampleRate,
			"must be 8000, 12000, 16000, 24000 or 48000")
	}
	if len(packet) == 0 {
		return 0, errors.InvalidInput(errors.PhaseControl, "empty packet")
	}

	pktPtr, pktCap := t.Arena().Acquire(arena.Packet)
	if len(packet) > int(pktCap) {
		return 0, errors.SizeExceeded(errors.PhaseControl, "packet", len(packet), int(pktCap))
	}
	if err := t.Memory().Write(pktPtr, packet); err != nil {
		return 0, errors.Wrap(errors.PhaseControl, errors.KindOutOfBounds, err, "write packet scratch")
	}

	n, err := t.PacketSampleCount(ctx, pktPtr, len(packet), sampleRate)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, engine.StatusError(errors.PhaseControl, t, n)
	}
	return n, nil
}
