// Package enginetest provides an in-process fake of the engine function
// table for testing code built on engine.Table without a WASM engine.
//
// The fake keeps codec state in a Go byte slice acting as linear memory.
// Packets carry a 6-byte header (magic, frame size, channels, call counter,
// checksum) so decode recovers the encoded frame size, and every engine call
// bumps a counter inside the state block, which makes safe-mode snapshot
// round-tripping observable from the outside: the counter byte of successive
// packets advances only if state written by call N is loaded for call N+1.
//
// Concealment output is silent; decoded frames carry a deterministic ramp.
package enginetest

import (
	"context"
	"encoding/binary"
	"fmt"

	opusbridge "github.com/wippyai/opus-bridge"
	"github.com/wippyai/opus-bridge/arena"
	"github.com/wippyai/opus-bridge/engine"
)

// State layout: magic u32 | channels u32 | rate u32 | counter u32 | lastDur u32.
const (
	memSize     = 1 << 20
	stateMagic  = 0x4F505354 // "OPST"
	offChannels = 4
	offRate     = 8
	offCounter  = 12
	offLastDur  = 16
	stateSize   = 32

	// PacketMagic is the first byte of every fake packet.
	PacketMagic = 0x4F
	// CounterIndex is the packet byte holding the encoder's call counter.
	CounterIndex = 4
	headerLen    = 6
)

type memory struct {
	data []byte
}

func (m *memory) Read(offset, length uint32) ([]byte, error) {
	if int(offset)+int(length) > len(m.data) {
		return nil, fmt.Errorf("read out of bounds: offset=%d, length=%d", offset, length)
	}
	return m.data[offset : offset+length], nil
}

func (m *memory) Write(offset uint32, data []byte) error {
	if int(offset)+len(data) > len(m.data) {
		return fmt.Errorf("write out of bounds: offset=%d, length=%d", offset, len(data))
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *memory) WriteU32(offset uint32, value uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], value)
	return m.Write(offset, b[:])
}

type allocator struct {
	next       uint32
	live       map[uint32]uint32
	frees      int
	doubleFree bool
	failNext   bool
}

func (a *allocator) Alloc(size uint32) (uint32, error) {
	if a.failNext {
		a.failNext = false
		return 0, fmt.Errorf("fake allocator exhausted")
	}
	ptr := (a.next + 7) &^ 7
	a.next = ptr + size
	a.live[ptr] = size
	return ptr, nil
}

func (a *allocator) Free(ptr uint32) {
	if _, ok := a.live[ptr]; !ok {
		a.doubleFree = true
		return
	}
	delete(a.live, ptr)
	a.frees++
}

// Table is a fake engine.Table.
type Table struct {
	EncodeCalls int
	DecodeCalls int
	CtlCalls    int
	ParseCalls  int

	mem     *memory
	alloc   *allocator
	scratch *arena.Arena
}

var _ engine.Table = (*Table)(nil)

// New builds a fake table with its scratch arena allocated.
func New() *Table {
	mem := &memory{data: make([]byte, memSize)}
	alloc := &allocator{next: 64, live: make(map[uint32]uint32)}
	scratch, err := arena.New(alloc)
	if err != nil {
		panic(err) // the fake allocator cannot fail here
	}
	return &Table{mem: mem, alloc: alloc, scratch: scratch}
}

func (f *Table) Memory() opusbridge.Memory       { return f.mem }
func (f *Table) Allocator() opusbridge.Allocator { return f.alloc }
func (f *Table) Arena() *arena.Arena             { return f.scratch }
func (f *Table) ErrorString(code int) string     { return engine.StatusText(code) }

// LiveBlocks reports allocations not yet freed. The arena's two regions are
// always live, so a leak-free steady state is 2 plus one per undestroyed
// unsafe handle.
func (f *Table) LiveBlocks() int { return len(f.alloc.live) }

// Frees reports how many blocks have been released.
func (f *Table) Frees() int { return f.alloc.frees }

// DoubleFreed reports whether a free ever hit an address not live.
func (f *Table) DoubleFreed() bool { return f.alloc.doubleFree }

// FailNextAlloc makes the next allocation fail.
func (f *Table) FailNextAlloc() { f.alloc.failNext = true }

func (f *Table) EncoderSize(ctx context.Context, channels int) (int, error) {
	return stateSize + 16*channels, nil
}

func (f *Table) DecoderSize(ctx context.Context, channels int) (int, error) {
	return stateSize + 16*channels, nil
}

func (f *Table) initState(state uint32, rate, channels int) (int, error) {
	if channels != 1 && channels != 2 {
		return engine.StatusBadArg, nil
	}
	_ = f.mem.WriteU32(state, stateMagic)
	_ = f.mem.WriteU32(state+offChannels, uint32(channels))
	_ = f.mem.WriteU32(state+offRate, uint32(rate))
	_ = f.mem.WriteU32(state+offCounter, 0)
	_ = f.mem.WriteU32(state+offLastDur, 0)
	return engine.StatusOK, nil
}

func (f *Table) EncoderInit(ctx context.Context, state uint32, sampleRate, channels, application int) (int, error) {
	switch application {
	case engine.ApplicationVoIP, engine.ApplicationAudio, engine.ApplicationRestrictedLowDelay:
	default:
		return engine.StatusBadArg, nil
	}
	return f.initState(state, sampleRate, channels)
}

func (f *Table) DecoderInit(ctx context.Context, state uint32, sampleRate, channels int) (int, error) {
	return f.initState(state, sampleRate, channels)
}

func (f *Table) checkState(state uint32) error {
	magic, err := f.mem.ReadU32(state)
	if err != nil {
		return err
	}
	if magic != stateMagic {
		return fmt.Errorf("engine saw uninitialized state at %d", state)
	}
	return nil
}

func (f *Table) encode(state, pcm uint32, frameSize int, packet uint32, maxBytes, width int) (int, error) {
	f.EncodeCalls++
	if err := f.checkState(state); err != nil {
		return 0, err
	}
	channels, _ := f.mem.ReadU32(state + offChannels)
	counter, _ := f.mem.ReadU32(state + offCounter)
	_ = f.mem.WriteU32(state+offCounter, counter+1)

	plen := headerLen + frameSize/8
	if plen > maxBytes {
		return engine.StatusBufferTooSmall, nil
	}

	raw, err := f.mem.Read(pcm, uint32(frameSize*int(channels)*width))
	if err != nil {
		return 0, err
	}
	var sum byte
	for _, b := range raw {
		sum ^= b
	}

	hdr := make([]byte, plen)
	hdr[0] = PacketMagic
	binary.LittleEndian.PutUint16(hdr[1:3], uint16(frameSize))
	hdr[3] = byte(channels)
	hdr[CounterIndex] = byte(counter)
	hdr[5] = sum
	if err := f.mem.Write(packet, hdr); err != nil {
		return 0, err
	}
	return plen, nil
}

func (f *Table) Encode(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error) {
	return f.encode(state, pcm, frameSize, packet, maxBytes, 2)
}

func (f *Table) EncodeFloat(ctx context.Context, state, pcm uint32, frameSize int, packet uint32, maxBytes int) (int, error) {
	return f.encode(state, pcm, frameSize, packet, maxBytes, 4)
}

func (f *Table) decode(state, packet uint32, packetLen int, pcm uint32, frameSize, width int) (int, error) {
	f.DecodeCalls++
	if err := f.checkState(state); err != nil {
		return 0, err
	}
	channels, _ := f.mem.ReadU32(state + offChannels)
	counter, _ := f.mem.ReadU32(state + offCounter)
	_ = f.mem.WriteU32(state+offCounter, counter+1)

	frames := frameSize
	if packet != 0 {
		hdr, err := f.mem.Read(packet, uint32(packetLen))
		if err != nil {
			return 0, err
		}
		if packetLen < headerLen || hdr[0] != PacketMagic {
			return engine.StatusInvalidPacket, nil
		}
		frames = int(binary.LittleEndian.Uint16(hdr[1:3]))
		if frames > frameSize {
			return engine.StatusBufferTooSmall, nil
		}
	}

	out := make([]byte, frames*int(channels)*width)
	if packet != 0 {
		for i := 0; i < frames*int(channels); i++ {
			if width == 2 {
				binary.LittleEndian.PutUint16(out[i*2:], uint16(i%251))
			} else {
				binary.LittleEndian.PutUint32(out[i*4:], uint32(i%251))
			}
		}
	}
	if err := f.mem.Write(pcm, out); err != nil {
		return 0, err
	}
	_ = f.mem.WriteU32(state+offLastDur, uint32(frames))
	return frames, nil
}

func (f *Table) Decode(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error) {
	return f.decode(state, packet, packetLen, pcm, frameSize, 2)
}

func (f *Table) DecodeFloat(ctx context.Context, state, packet uint32, packetLen int, pcm uint32, frameSize, fec int) (int, error) {
	return f.decode(state, packet, packetLen, pcm, frameSize, 4)
}

func (f *Table) DecoderCtl(ctx context.Context, state uint32, request int, arg uint32) (int, error) {
	f.CtlCalls++
	if err := f.checkState(state); err != nil {
		return 0, err
	}
	if request != engine.CtlLastPacketDuration {
		return engine.StatusUnimplemented, nil
	}
	lastDur, _ := f.mem.ReadU32(state + offLastDur)
	if err := f.mem.WriteU32(arg, lastDur); err != nil {
		return 0, err
	}
	return engine.StatusOK, nil
}

func (f *Table) PacketSampleCount(ctx context.Context, packet uint32, packetLen, sampleRate int) (int, error) {
	f.ParseCalls++
	hdr, err := f.mem.Read(packet, uint32(packetLen))
	if err != nil {
		return 0, err
	}
	if packetLen < headerLen || hdr[0] != PacketMagic {
		return engine.StatusInvalidPacket, nil
	}
	return int(binary.LittleEndian.Uint16(hdr[1:3])), nil
}
