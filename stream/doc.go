// Package stream adapts the one-shot codec handles into push-based
// transform stages: one input chunk in, one output chunk out, in arrival
// order, with a single chunk in flight at a time.
//
// An EncodeStage reinterprets raw byte chunks as typed PCM and emits
// packets; a DecodeStage consumes packets and emits raw PCM bytes,
// treating an empty chunk as a packet-loss concealment request. Run
// drives a stage from an input channel, delivering per-chunk failures
// through Result.Err rather than aborting the stream.
//
// Packetizer and Depacketizer bridge stage output to RTP transport
// using pion/rtp, advancing the media timestamp by each frame's sample
// count and reporting sequence gaps so the receiver can conceal lost
// frames before decoding.
package stream
