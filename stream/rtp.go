package stream

import (
	"github.com/pion/rtp"

	"github.com/wippyai/opus-bridge/errors"
)

// Packetizer wraps encoded frames in RTP headers. The media timestamp
// advances by each frame's per-channel sample count, so a 20ms frame at
// 48kHz moves it by 960 regardless of wall-clock pacing.
type Packetizer struct {
	ssrc        uint32
	payloadType uint8
	sequencer   rtp.Sequencer
	timestamp   uint32
}

func NewPacketizer(ssrc uint32, payloadType uint8) *Packetizer {
	return &Packetizer{
		ssrc:        ssrc,
		payloadType: payloadType,
		sequencer:   rtp.NewRandomSequencer(),
	}
}

// Packetize builds the RTP packet for one encoded frame. samples is the
// frame's duration in samples per channel at the stream clock rate.
func (p *Packetizer) Packetize(payload []byte, samples int) (*rtp.Packet, error) {
	if len(payload) == 0 {
		return nil, errors.InvalidInput(errors.PhaseStream, "empty frame payload")
	}
	if samples <= 0 {
		return nil, errors.InvalidValue(errors.PhaseStream, "samples", samples, "frame duration must be positive")
	}
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         true,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequencer.NextSequenceNumber(),
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
		},
		Payload: payload,
	}
	p.timestamp += uint32(samples)
	return pkt, nil
}

// Depacketizer recovers frame payloads from RTP packets and tracks the
// sequence position so receivers can conceal what went missing.
type Depacketizer struct {
	started bool
	nextSeq uint16
}

func NewDepacketizer() *Depacketizer {
	return &Depacketizer{}
}

// Depacketize parses one RTP packet and returns its payload along with
// the number of packets lost immediately before it. Callers conceal
// that many frames before decoding the payload. Late and duplicate
// packets report zero lost and do not move the sequence position.
func (d *Depacketizer) Depacketize(buf []byte) ([]byte, int, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return nil, 0, errors.Wrap(errors.PhaseStream, errors.KindInvalidInput, err, "malformed rtp packet")
	}

	lost := 0
	if !d.started {
		d.started = true
		d.nextSeq = pkt.SequenceNumber + 1
	} else if gap := pkt.SequenceNumber - d.nextSeq; gap < 1<<15 {
		lost = int(gap)
		d.nextSeq = pkt.SequenceNumber + 1
	}

	payload := make([]byte, len(pkt.Payload))
	copy(payload, pkt.Payload)
	return payload, lost, nil
}

// Reset forgets the sequence position, as after a receiver rejoin.
func (d *Depacketizer) Reset() {
	d.started = false
	d.nextSeq = 0
}
