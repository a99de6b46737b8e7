package main

import (
	"bufio"
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/opus-bridge/engine"
	"github.com/wippyai/opus-bridge/opus"
	"github.com/wippyai/opus-bridge/stream"
)

// Packet files are a flat sequence of frames, each a u16 little-endian
// length followed by the packet bytes. A zero length marks a lost frame
// and decodes through the concealment path.

func main() {
	var (
		wasmFile    = flag.String("wasm", "", "Path to libopus wasm module")
		mode        = flag.String("mode", "encode", "encode (raw PCM in, packets out) or decode")
		inFile      = flag.String("in", "", "Input file (default stdin)")
		outFile     = flag.String("out", "", "Output file (default stdout)")
		rate        = flag.Int("rate", 48000, "Sample rate in Hz")
		channels    = flag.Int("channels", 1, "Channel count")
		appName     = flag.String("app", "audio", "Encoder application: voip, audio, lowdelay")
		sampleMode  = flag.String("samples", "int16", "PCM sample type: int16 or float32")
		frameMs     = flag.Float64("frame-ms", 20, "Encoder frame duration in milliseconds")
		unsafeState = flag.Bool("unsafe", false, "Keep codec state resident in engine memory")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: opusrun -wasm <libopus.wasm> -mode encode|decode [-in pcm] [-out packets]")
		fmt.Fprintln(os.Stderr, "       opusrun -wasm <libopus.wasm> -i  (interactive mode)")
		os.Exit(1)
	}

	if *interactive {
		if err := runInteractive(*wasmFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg := opus.Config{
		SampleRate: *rate,
		Channels:   *channels,
		Unsafe:     *unsafeState,
	}
	err := run(*wasmFile, *mode, *inFile, *outFile, *appName, *sampleMode, *frameMs, cfg, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, mode, inFile, outFile, appName, sampleMode string, frameMs float64, cfg opus.Config, verbose bool) error {
	ctx := context.Background()

	log := zap.NewNop()
	if verbose {
		var err error
		if log, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer log.Sync()
	}

	app, err := parseApplication(appName)
	if err != nil {
		return err
	}
	cfg.Application = app

	pcmMode, err := stream.ParseMode(sampleMode)
	if err != nil {
		return err
	}

	wasm, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	eng, err := engine.New(ctx, wasm, engine.WithLogger(log))
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	in := io.Reader(os.Stdin)
	if inFile != "" {
		f, err := os.Open(inFile)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	out := io.Writer(os.Stdout)
	if outFile == "" && term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("refusing to write binary output to a terminal, use -out or redirect")
	}
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()

	switch mode {
	case "encode":
		return encodeStream(ctx, eng, cfg, pcmMode, frameMs, bufio.NewReader(in), w, log)
	case "decode":
		return decodeStream(ctx, eng, cfg, pcmMode, bufio.NewReader(in), w, log)
	}
	return fmt.Errorf("unknown mode %q, want encode or decode", mode)
}

func parseApplication(name string) (opus.Application, error) {
	switch name {
	case "voip":
		return opus.ApplicationVoIP, nil
	case "audio":
		return opus.ApplicationAudio, nil
	case "lowdelay":
		return opus.ApplicationRestrictedLowDelay, nil
	}
	return 0, fmt.Errorf("unknown application %q, want voip, audio or lowdelay", name)
}

func sampleWidth(m stream.Mode) int {
	if m == stream.ModeFloat32 {
		return 4
	}
	return 2
}

func encodeStream(ctx context.Context, eng *engine.Engine, cfg opus.Config, mode stream.Mode, frameMs float64, in io.Reader, out *bufio.Writer, log *zap.Logger) error {
	enc, err := opus.NewEncoder(ctx, eng, cfg)
	if err != nil {
		return err
	}
	defer enc.Destroy()

	stage, err := stream.NewEncodeStage(enc, mode)
	if err != nil {
		return err
	}

	cfg = enc.Config()
	frameSamples := int(float64(cfg.SampleRate) * frameMs / 1000)
	frameBytes := frameSamples * cfg.Channels * sampleWidth(mode)
	if frameBytes <= 0 {
		return fmt.Errorf("frame duration %.1fms yields no samples at %dHz", frameMs, cfg.SampleRate)
	}

	chunks := make(chan []byte)
	results := make(chan stream.Result)
	readErr := make(chan error, 1)
	go func() {
		defer close(chunks)
		for {
			buf := make([]byte, frameBytes)
			if _, err := io.ReadFull(in, buf); err != nil {
				if err != io.EOF && err != io.ErrUnexpectedEOF {
					readErr <- err
				}
				// A trailing partial frame is dropped.
				close(readErr)
				return
			}
			chunks <- buf
		}
	}()
	go func() {
		defer close(results)
		if err := stream.Run(ctx, stage, chunks, results); err != nil {
			log.Warn("encode stream aborted", zap.Error(err))
		}
	}()

	frames, bytes := 0, 0
	for res := range results {
		if res.Err != nil {
			return res.Err
		}
		if err := writeFrame(out, res.Data); err != nil {
			return err
		}
		frames++
		bytes += len(res.Data)
	}
	if err, ok := <-readErr; ok && err != nil {
		return err
	}
	log.Info("encoded",
		zap.Int("frames", frames),
		zap.Int("packet_bytes", bytes),
		zap.Int("pcm_bytes", frames*frameBytes))
	return nil
}

func decodeStream(ctx context.Context, eng *engine.Engine, cfg opus.Config, mode stream.Mode, in io.Reader, out *bufio.Writer, log *zap.Logger) error {
	dec, err := opus.NewDecoder(ctx, eng, cfg)
	if err != nil {
		return err
	}
	defer dec.Destroy()

	stage, err := stream.NewDecodeStage(dec, mode)
	if err != nil {
		return err
	}

	frames, concealed, bytes := 0, 0, 0
	for {
		packet, err := readFrame(in)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		pcm, err := stage.Process(ctx, packet)
		if err != nil {
			return err
		}
		if _, err := out.Write(pcm); err != nil {
			return err
		}
		frames++
		bytes += len(pcm)
		if len(packet) == 0 {
			concealed++
		}
	}
	log.Info("decoded",
		zap.Int("frames", frames),
		zap.Int("concealed", concealed),
		zap.Int("pcm_bytes", bytes))
	return nil
}

func writeFrame(w *bufio.Writer, packet []byte) error {
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(packet)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(packet)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	n := binary.LittleEndian.Uint16(hdr[:])
	if n == 0 {
		return nil, nil
	}
	packet := make([]byte, n)
	if _, err := io.ReadFull(r, packet); err != nil {
		return nil, err
	}
	return packet, nil
}
