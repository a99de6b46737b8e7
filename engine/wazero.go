package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/emscripten"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	opusbridge "github.com/wippyai/opus-bridge"
	"github.com/wippyai/opus-bridge/arena"
	"github.com/wippyai/opus-bridge/errors"
)

// Engine implements Table on top of a wazero-hosted libopus module.
//
// Engine is not safe for concurrent use; see the package documentation.
type Engine struct {
	runtime wazero.Runtime
	module  api.Module
	memory  *wazeroMemory
	alloc   *cAllocator
	scratch *arena.Arena
	log     *zap.Logger

	fns struct {
		encoderSize api.Function
		encoderInit api.Function
		encode      api.Function
		encodeFloat api.Function
		decoderSize api.Function
		decoderInit api.Function
		decode      api.Function
		decodeFloat api.Function
		decoderCtl  api.Function
		nbSamples   api.Function
		strerror    api.Function // optional, StatusText fallback
	}
}

// Option configures engine construction.
type Option func(*options)

type options struct {
	logger           *zap.Logger
	memoryLimitPages uint32
}

// WithLogger sets the engine's logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMemoryLimitPages caps the module's linear memory in 64KB pages.
// 0 means the wazero default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.memoryLimitPages = pages }
}

// New compiles and instantiates an engine module and resolves its function
// table. The scratch arena is allocated here; any failure tears the runtime
// down and nothing leaks to the caller.
func New(ctx context.Context, wasmBytes []byte, opts ...Option) (*Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}

	runtimeCfg := wazero.NewRuntimeConfig()
	if o.memoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(o.memoryLimitPages)
	}
	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeCfg)

	eng, err := newWithRuntime(ctx, runtime, wasmBytes, o.logger)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, err
	}
	return eng, nil
}

func newWithRuntime(ctx context.Context, runtime wazero.Runtime, wasmBytes []byte, log *zap.Logger) (*Engine, error) {
	compiled, err := runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile engine module", err)
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		return nil, errors.Load("instantiate WASI", err)
	}
	// Emscripten builds import invoke_* trampolines under "env".
	if _, err := emscripten.InstantiateForModule(ctx, runtime, compiled); err != nil {
		return nil, errors.Load("instantiate emscripten host module", err)
	}

	module, err := runtime.InstantiateModule(ctx, compiled,
		wazero.NewModuleConfig().WithName("opus").WithStartFunctions())
	if err != nil {
		return nil, errors.Load("instantiate engine module", err)
	}

	// Reactor-style builds expose their constructor as _initialize.
	if init := module.ExportedFunction("_initialize"); init != nil {
		if _, err := init.Call(ctx); err != nil {
			return nil, errors.Load("run engine _initialize", err)
		}
	}

	mem := module.Memory()
	if mem == nil {
		return nil, errors.Load("engine module exports no memory", nil)
	}

	eng := &Engine{
		runtime: runtime,
		module:  module,
		memory:  &wazeroMemory{mem: mem},
		log:     log,
	}

	required := []struct {
		name string
		dst  *api.Function
	}{
		{"opus_encoder_get_size", &eng.fns.encoderSize},
		{"opus_encoder_init", &eng.fns.encoderInit},
		{"opus_encode", &eng.fns.encode},
		{"opus_encode_float", &eng.fns.encodeFloat},
		{"opus_decoder_get_size", &eng.fns.decoderSize},
		{"opus_decoder_init", &eng.fns.decoderInit},
		{"opus_decode", &eng.fns.decode},
		{"opus_decode_float", &eng.fns.decodeFloat},
		{"opus_decoder_ctl", &eng.fns.decoderCtl},
		{"opus_packet_get_nb_samples", &eng.fns.nbSamples},
	}
	for _, r := range required {
		fn := exportedFunction(module, r.name)
		if fn == nil {
			return nil, errors.NotFound(errors.PhaseLoad, "export", r.name)
		}
		*r.dst = fn
	}
	eng.fns.strerror = exportedFunction(module, "opus_strerror")

	malloc := exportedFunction(module, "malloc")
	free := exportedFunction(module, "free")
	if malloc == nil || free == nil {
		return nil, errors.NotFound(errors.PhaseLoad, "export", "malloc/free")
	}
	eng.alloc = &cAllocator{malloc: malloc, free: free, log: log}

	eng.scratch, err = arena.New(eng.alloc)
	if err != nil {
		return nil, err
	}

	log.Debug("engine ready",
		zap.Uint32("memory_bytes", mem.Size()),
		zap.Bool("strerror", eng.fns.strerror != nil))

	return eng, nil
}

// exportedFunction resolves an export, trying the plain name first and the
// legacy Emscripten underscore prefix second.
func exportedFunction(m api.Module, name string) api.Function {
	if fn := m.ExportedFunction(name); fn != nil {
		return fn
	}
	return m.ExportedFunction("_" + name)
}

// Close tears down the wazero runtime and with it all engine memory.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

func (e *Engine) Memory() opusbridge.Memory       { return e.memory }
func (e *Engine) Allocator() opusbridge.Allocator { return e.alloc }
func (e *Engine) Arena() *arena.Arena             { return e.scratch }

// call invokes an engine function returning a single i32.
func (e *Engine) call(ctx context.Context, fn api.Function, args ...uint64) (int, error) {
	results, err := fn.Call(ctx, args...)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseLoad, errors.KindEngine, err, "engine trap")
	}
	if len(results) != 1 {
		return 0, errors.InvalidInput(errors.PhaseLoad, "engine returned no result")
	}
	return int(int32(uint32(results[0]))), nil
}

func (e *Engine) EncoderSize(ctx context.Context, channels int) (int, error) {
	return e.call(ctx, e.fns.encoderSize, api.EncodeI32(int32(channels)))
}

func (e *Engine) DecoderSize(ctx context.Context, channels int) (int, error) {
	return e.call(ctx, e.fns.decoderSize, api.EncodeI32(int32(channels)))
}

func (e *Engine) EncoderInit(ctx context.Context, state uint32, sampleRate, channels, application int) (int, error) {
	return e.call(ctx, e.fns.encoderInit,
		api.EncodeU32(state),
		api.EncodeI32(int32(sampleRate)),
		api.EncodeI32(int32(channels)),
		api.EncodeI32(int32(application)))
}

func (e *Engine) DecoderInit(ctx context.Context, state uint32, sampleRate, channels int) (int, error) {
	return e.call(ctx, e.fns.decoderInit,
		api.EncodeU32(state),
		api.EncodeI32(int32(sampleRate)),
		api.EncodeI32(int32(channels)))
}

func (e *Engine) Encode(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error) {
	return e.call(ctx, e.fns.encode,
		api.EncodeU32(state),
		api.EncodeU32(pcm),
		api.EncodeI32(int32(frameSize)),
		api.EncodeU32(packet),
		api.EncodeI32(int32(maxBytes)))
}

func (e *Engine) EncodeFloat(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error) {
	return e.call(ctx, e.fns.encodeFloat,
		api.EncodeU32(state),
		api.EncodeU32(pcm),
		api.EncodeI32(int32(frameSize)),
		api.EncodeU32(packet),
		api.EncodeI32(int32(maxBytes)))
}

func (e *Engine) Decode(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error) {
	return e.call(ctx, e.fns.decode,
		api.EncodeU32(state),
		api.EncodeU32(packet),
		api.EncodeI32(int32(packetLen)),
		api.EncodeU32(pcm),
		api.EncodeI32(int32(frameSize)),
		api.EncodeI32(int32(fec)))
}

func (e *Engine) DecodeFloat(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error) {
	return e.call(ctx, e.fns.decodeFloat,
		api.EncodeU32(state),
		api.EncodeU32(packet),
		api.EncodeI32(int32(packetLen)),
		api.EncodeU32(pcm),
		api.EncodeI32(int32(frameSize)),
		api.EncodeI32(int32(fec)))
}

func (e *Engine) DecoderCtl(ctx context.Context, state uint32, request int, arg uint32) (int, error) {
	return e.call(ctx, e.fns.decoderCtl,
		api.EncodeU32(state),
		api.EncodeI32(int32(request)),
		api.EncodeU32(arg))
}

func (e *Engine) PacketSampleCount(ctx context.Context, packet uint32, packetLen, sampleRate int) (int, error) {
	return e.call(ctx, e.fns.nbSamples,
		api.EncodeU32(packet),
		api.EncodeI32(int32(packetLen)),
		api.EncodeI32(int32(sampleRate)))
}

// ErrorString reads the engine's description of a status code, falling back
// to the built-in table when the export is missing or unreadable.
func (e *Engine) ErrorString(code int) string {
	if e.fns.strerror == nil {
		return StatusText(code)
	}
	results, err := e.fns.strerror.Call(context.Background(), api.EncodeI32(int32(code)))
	if err != nil || len(results) != 1 {
		return StatusText(code)
	}
	s, err := readCString(e.memory, uint32(results[0]))
	if err != nil || s == "" {
		return StatusText(code)
	}
	return s
}

const maxErrorStringLen = 256

func readCString(mem opusbridge.Memory, ptr uint32) (string, error) {
	if ptr == 0 {
		return "", fmt.Errorf("nil string pointer")
	}
	buf := make([]byte, 0, 32)
	for i := uint32(0); i < maxErrorStringLen; i++ {
		b, err := mem.Read(ptr+i, 1)
		if err != nil {
			return "", err
		}
		if b[0] == 0 {
			break
		}
		buf = append(buf, b[0])
	}
	return string(buf), nil
}

// wazeroMemory adapts wazero memory to opusbridge.Memory
type wazeroMemory struct {
	mem api.Memory
}

func (m *wazeroMemory) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return data, nil
}

func (m *wazeroMemory) Write(offset uint32, data []byte) error {
	ok := m.mem.Write(offset, data)
	if !ok {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	return nil
}

func (m *wazeroMemory) ReadU32(offset uint32) (uint32, error) {
	val, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, fmt.Errorf("read out of bounds")
	}
	return val, nil
}

func (m *wazeroMemory) WriteU32(offset uint32, value uint32) error {
	ok := m.mem.WriteUint32Le(offset, value)
	if !ok {
		return fmt.Errorf("write out of bounds")
	}
	return nil
}

func (m *wazeroMemory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

// cAllocator adapts the module's malloc/free exports to opusbridge.Allocator.
type cAllocator struct {
	malloc api.Function
	free   api.Function
	log    *zap.Logger
}

func (a *cAllocator) Alloc(size uint32) (uint32, error) {
	results, err := a.malloc.Call(context.Background(), api.EncodeU32(size))
	if err != nil {
		return 0, err
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, errors.AllocationFailed(errors.PhaseLoad, size)
	}
	return ptr, nil
}

func (a *cAllocator) Free(ptr uint32) {
	if ptr == 0 {
		return
	}
	if _, err := a.free.Call(context.Background(), api.EncodeU32(ptr)); err != nil {
		a.log.Warn("free failed", zap.Uint32("ptr", ptr), zap.Error(err))
	}
}
