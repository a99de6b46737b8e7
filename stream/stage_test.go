package stream

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/wippyai/opus-bridge/engine/enginetest"
	bridgeerrors "github.com/wippyai/opus-bridge/errors"
	"github.com/wippyai/opus-bridge/opus"
)

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("int16"); err != nil || m != ModeInt16 {
		t.Errorf("ParseMode(int16) = %v, %v", m, err)
	}
	if m, err := ParseMode("float32"); err != nil || m != ModeFloat32 {
		t.Errorf("ParseMode(float32) = %v, %v", m, err)
	}
	for _, s := range []string{"", "int8", "Int16", "float64", "pcm"} {
		_, err := ParseMode(s)
		if !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseStream, Kind: bridgeerrors.KindInvalidInput}) {
			t.Errorf("ParseMode(%q) = %v, want validation error", s, err)
		}
	}
}

func newEncoder(t *testing.T) (*enginetest.Table, *opus.Encoder) {
	t.Helper()
	tbl := enginetest.New()
	enc, err := opus.NewEncoder(context.Background(), tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	return tbl, enc
}

func newDecoder(t *testing.T) (*enginetest.Table, *opus.Decoder) {
	t.Helper()
	tbl := enginetest.New()
	dec, err := opus.NewDecoder(context.Background(), tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	return tbl, dec
}

func TestNewStage_InvalidMode(t *testing.T) {
	_, enc := newEncoder(t)
	if _, err := NewEncodeStage(enc, Mode(9)); err == nil {
		t.Error("NewEncodeStage accepted an invalid mode")
	}
	_, dec := newDecoder(t)
	if _, err := NewDecodeStage(dec, Mode(-1)); err == nil {
		t.Error("NewDecodeStage accepted an invalid mode")
	}
}

func TestEncodeStage_MatchesDirectEncode(t *testing.T) {
	ctx := context.Background()

	pcm := make([]int16, 960)
	for i := range pcm {
		pcm[i] = int16(i * 3)
	}

	_, direct := newEncoder(t)
	want, err := direct.Encode(ctx, pcm)
	if err != nil {
		t.Fatalf("direct Encode failed: %v", err)
	}

	_, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeInt16)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}
	got, err := stage.Process(ctx, int16Bytes(pcm))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("stage output differs from direct encode")
	}
}

func TestEncodeStage_Float32(t *testing.T) {
	ctx := context.Background()
	_, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeFloat32)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}

	pcm := make([]float32, 480)
	packet, err := stage.Process(ctx, float32Bytes(pcm))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(packet) == 0 {
		t.Fatal("empty packet")
	}
}

func TestEncodeStage_RaggedChunk(t *testing.T) {
	ctx := context.Background()
	tbl, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeInt16)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}

	_, err = stage.Process(ctx, make([]byte, 961))
	if !stderrors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseStream, Kind: bridgeerrors.KindTypeMismatch}) {
		t.Errorf("got %v, want type mismatch", err)
	}
	if tbl.EncodeCalls != 0 {
		t.Error("ragged chunk reached the engine")
	}
}

func TestDecodeStage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()
	enc, err := opus.NewEncoder(ctx, tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	dec, err := opus.NewDecoder(ctx, tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	stage, err := NewDecodeStage(dec, ModeInt16)
	if err != nil {
		t.Fatalf("NewDecodeStage failed: %v", err)
	}

	packet, err := enc.Encode(ctx, make([]int16, 960))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := stage.Process(ctx, packet)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(out) != 960*2 {
		t.Errorf("decoded chunk is %d bytes, want %d", len(out), 960*2)
	}
}

func TestDecodeStage_EmptyChunkConceals(t *testing.T) {
	ctx := context.Background()
	tbl := enginetest.New()
	enc, err := opus.NewEncoder(ctx, tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewEncoder failed: %v", err)
	}
	dec, err := opus.NewDecoder(ctx, tbl, opus.Config{})
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	stage, err := NewDecodeStage(dec, ModeInt16)
	if err != nil {
		t.Fatalf("NewDecodeStage failed: %v", err)
	}

	packet, err := enc.Encode(ctx, make([]int16, 960))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := stage.Process(ctx, packet); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	concealed, err := stage.Process(ctx, nil)
	if err != nil {
		t.Fatalf("concealment Process failed: %v", err)
	}
	if len(concealed) != 960*2 {
		t.Fatalf("concealed chunk is %d bytes, want %d", len(concealed), 960*2)
	}
	for _, b := range concealed {
		if b != 0 {
			t.Fatal("concealed chunk is not silent")
		}
	}
}

func TestRun_OrderedResults(t *testing.T) {
	ctx := context.Background()
	tbl, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeInt16)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}

	sizes := []int{120, 240, 480, 960, 1920}
	in := make(chan []byte, len(sizes))
	for _, n := range sizes {
		in <- int16Bytes(make([]int16, n))
	}
	close(in)

	out := make(chan Result, len(sizes))
	if err := Run(ctx, stage, in, out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(out)

	i := 0
	for res := range out {
		if res.Err != nil {
			t.Fatalf("chunk %d failed: %v", i, res.Err)
		}
		n, err := opus.PacketSampleCount(ctx, tbl, res.Data, 48000)
		if err != nil {
			t.Fatalf("PacketSampleCount failed: %v", err)
		}
		if n != sizes[i] {
			t.Errorf("result %d carries %d samples, want %d", i, n, sizes[i])
		}
		i++
	}
	if i != len(sizes) {
		t.Errorf("got %d results, want %d", i, len(sizes))
	}
}

func TestRun_PerChunkErrorContinues(t *testing.T) {
	ctx := context.Background()
	_, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeInt16)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}

	in := make(chan []byte, 3)
	in <- int16Bytes(make([]int16, 960))
	in <- make([]byte, 961) // ragged
	in <- int16Bytes(make([]int16, 960))
	close(in)

	out := make(chan Result, 3)
	if err := Run(ctx, stage, in, out); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	close(out)

	var results []Result
	for res := range out {
		results = append(results, res)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("valid chunks failed")
	}
	if results[1].Err == nil {
		t.Error("ragged chunk did not surface its error")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	_, enc := newEncoder(t)
	stage, err := NewEncodeStage(enc, ModeInt16)
	if err != nil {
		t.Fatalf("NewEncodeStage failed: %v", err)
	}

	in := make(chan []byte)
	out := make(chan Result)
	done := make(chan error, 1)
	go func() { done <- Run(ctx, stage, in, out) }()

	cancel()
	if err := <-done; !stderrors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
}
