package audio

import "time"

// OpusFrame is one self-contained 20ms/48kHz mono Opus packet, as produced
// by Forward and consumed by the audio fan-out engine's subscribers.
type OpusFrame struct {
	Payload  []byte
	Sequence uint64
	Arrival  time.Time
}
