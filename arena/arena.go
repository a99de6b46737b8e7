// Package arena manages the fixed scratch regions in engine memory that
// every encode and decode call marshals through.
//
// Two regions exist per engine: one for PCM samples and one for compressed
// packets. Both are allocated once when the engine comes up and are never
// freed or moved for the life of the process. The regions are shared by all
// handles of an engine and are unsynchronized; callers must serialize codec
// operations.
package arena

import (
	opusbridge "github.com/wippyai/opus-bridge"
	"github.com/wippyai/opus-bridge/errors"
)

// Kind selects one of the two scratch regions.
type Kind int

const (
	// PCM is the sample region written before encode and read after decode.
	PCM Kind = iota
	// Packet is the compressed data region read after encode and written
	// before decode.
	Packet
)

const (
	// PCMCapacity is the PCM region size in bytes: 32-bit samples, stereo,
	// 120ms at 48 samples/ms. Every legal frame fits.
	PCMCapacity = 4 * 2 * 120 * 48

	// PacketCapacity is the packet region size in bytes: 120ms at 512 bits/ms,
	// beyond the highest bitrate the engine produces.
	PacketCapacity = 120 * 512 / 8
)

// Arena holds the two fixed scratch regions of one engine.
type Arena struct {
	alloc     opusbridge.Allocator
	pcmPtr    uint32
	packetPtr uint32
}

// New allocates both regions through alloc. Failure leaves nothing allocated;
// the engine cannot operate without the arena.
func New(alloc opusbridge.Allocator) (*Arena, error) {
	pcm, err := alloc.Alloc(PCMCapacity)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindAllocation, err, "allocate pcm scratch region")
	}
	packet, err := alloc.Alloc(PacketCapacity)
	if err != nil {
		alloc.Free(pcm)
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindAllocation, err, "allocate packet scratch region")
	}
	return &Arena{alloc: alloc, pcmPtr: pcm, packetPtr: packet}, nil
}

// Acquire returns the fixed address and capacity of a region. The region is
// not reserved in any way; the caller owns it for the span of one engine call.
func (a *Arena) Acquire(kind Kind) (ptr uint32, capacity uint32) {
	if kind == Packet {
		return a.packetPtr, PacketCapacity
	}
	return a.pcmPtr, PCMCapacity
}
