package stream

import (
	"context"

	"github.com/wippyai/opus-bridge/errors"
	"github.com/wippyai/opus-bridge/opus"
)

// Stage transforms one chunk into one chunk. Implementations are not
// safe for concurrent Process calls; Run serializes for you.
type Stage interface {
	Process(ctx context.Context, chunk []byte) ([]byte, error)
}

// Result carries one stage output, or the failure that replaced it.
// A failed chunk does not terminate the stream.
type Result struct {
	Data []byte
	Err  error
}

// EncodeStage turns raw PCM byte chunks into packets using a shared
// encoder handle.
type EncodeStage struct {
	enc  *opus.Encoder
	mode Mode
}

func NewEncodeStage(enc *opus.Encoder, mode Mode) (*EncodeStage, error) {
	if !mode.valid() {
		return nil, errors.InvalidValue(errors.PhaseStream, "mode", int(mode), "unknown sample mode")
	}
	return &EncodeStage{enc: enc, mode: mode}, nil
}

func (s *EncodeStage) Process(ctx context.Context, chunk []byte) ([]byte, error) {
	if len(chunk)%s.mode.width() != 0 {
		return nil, errors.TypeMismatch(errors.PhaseStream,
			"chunk length is not a whole number of "+s.mode.String()+" samples")
	}
	if s.mode == ModeFloat32 {
		return s.enc.EncodeFloat(ctx, float32View(chunk))
	}
	return s.enc.Encode(ctx, int16View(chunk))
}

// DecodeStage turns packet chunks into raw PCM byte chunks. An empty
// chunk is treated as a lost packet and concealed using the decoder's
// last-duration estimate.
type DecodeStage struct {
	dec  *opus.Decoder
	mode Mode
}

func NewDecodeStage(dec *opus.Decoder, mode Mode) (*DecodeStage, error) {
	if !mode.valid() {
		return nil, errors.InvalidValue(errors.PhaseStream, "mode", int(mode), "unknown sample mode")
	}
	return &DecodeStage{dec: dec, mode: mode}, nil
}

func (s *DecodeStage) Process(ctx context.Context, chunk []byte) ([]byte, error) {
	if s.mode == ModeFloat32 {
		pcm, err := s.dec.DecodeFloat32(ctx, chunk)
		if err != nil {
			return nil, err
		}
		return float32Bytes(pcm), nil
	}
	pcm, err := s.dec.DecodeInt16(ctx, chunk)
	if err != nil {
		return nil, err
	}
	return int16Bytes(pcm), nil
}

// Run feeds in through the stage and delivers one Result per chunk on
// out, preserving arrival order with a single chunk in flight. It
// returns nil when in closes and ctx.Err() when the context ends first.
// Run does not close out.
func Run(ctx context.Context, stage Stage, in <-chan []byte, out chan<- Result) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				return nil
			}
			data, err := stage.Process(ctx, chunk)
			select {
			case out <- Result{Data: data, Err: err}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
