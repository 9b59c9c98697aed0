// Package audio holds the two transcoders that sit on either side of the
// Opus codec: Forward turns the doorbell's 8kHz mu-law stream into Opus
// frames for WebRTC, Reverse turns a browser's Opus uplink back into
// mu-law for the doorbell's backchannel.
package audio

import (
	"time"

	"github.com/birdbox/gateway/pkg/opus"
	"github.com/birdbox/gateway/pkg/pcm"
	"github.com/birdbox/gateway/pkg/resample"
	"github.com/rs/zerolog/log"
)

const (
	ulawFrameBytes  = 160 // 20ms @ 8kHz
	pcmFrameSamples = 960 // 20ms @ 48kHz
)

// Forward is the mu-law -> PCM16 -> float -> resample(8k->48k) -> Opus
// pipeline. It is not safe for concurrent use; each fan-out engine's
// upstream task owns exactly one instance.
type Forward struct {
	enc    *opus.Encoder
	resamp *resample.Sinc

	ulawBuf []byte
	pcmBuf  []float32
	seq     uint64
}

func NewForward() (*Forward, error) {
	enc, err := opus.NewEncoder()
	if err != nil {
		return nil, err
	}
	return &Forward{
		enc:    enc,
		resamp: resample.NewSinc(8000, opus.SampleRate),
	}, nil
}

// Process consumes an arbitrarily sized chunk of 8kHz mu-law bytes,
// buffering any partial trailing 160-byte group for the next call, and
// returns every complete 20ms Opus frame the new data made available.
func (f *Forward) Process(chunk []byte) []OpusFrame {
	f.ulawBuf = append(f.ulawBuf, chunk...)

	for len(f.ulawBuf) >= ulawFrameBytes {
		block := f.ulawBuf[:ulawFrameBytes]
		f.ulawBuf = f.ulawBuf[ulawFrameBytes:]
		f.resampleBlock(block)
	}

	return f.drain()
}

// Flush forces out a final frame if a whole 960-sample output block is
// already buffered; any shorter tail is discarded, matching the upstream's
// own habit of never closing its stream on a clean frame boundary.
func (f *Forward) Flush() []OpusFrame {
	frames := f.drain()
	f.ulawBuf = nil
	f.pcmBuf = nil
	return frames
}

func (f *Forward) resampleBlock(block []byte) {
	floats := make([]float32, len(block))
	for i, b := range block {
		floats[i] = float32(pcm.PCMUtoPCM(b)) / 32768.0
	}
	f.pcmBuf = append(f.pcmBuf, f.resamp.Push(floats)...)
}

func (f *Forward) drain() []OpusFrame {
	var frames []OpusFrame
	for len(f.pcmBuf) >= pcmFrameSamples {
		block := f.pcmBuf[:pcmFrameSamples]
		f.pcmBuf = f.pcmBuf[pcmFrameSamples:]

		payload, err := f.enc.Encode(block)
		if err != nil {
			log.Warn().Err(err).Msg("audio: opus encode failed, dropping frame")
			continue
		}

		frame := OpusFrame{
			Payload:  append([]byte(nil), payload...),
			Sequence: f.seq,
			Arrival:  time.Now(),
		}
		frames = append(frames, frame)
		f.seq++
	}
	return frames
}
