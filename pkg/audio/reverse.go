package audio

import (
	"github.com/birdbox/gateway/pkg/opus"
	"github.com/birdbox/gateway/pkg/pcm"
	"github.com/birdbox/gateway/pkg/resample"
	"github.com/rs/zerolog/log"
)

const (
	pcmuFrameBytes = 160 // 20ms @ 8kHz
	silenceByte    = 0xFF
)

// Reverse is the Opus -> float -> resample(48k->8k) -> PCM16 -> mu-law
// pipeline feeding the doorbell's backchannel upload. It lives only for
// the duration of one push-to-talk hold.
type Reverse struct {
	dec    *opus.Decoder
	resamp *resample.Sinc
	pcmBuf []float32
}

func NewReverse() (*Reverse, error) {
	dec, err := opus.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Reverse{
		dec:    dec,
		resamp: resample.NewSinc(opus.SampleRate, 8000),
	}, nil
}

// Process decodes one Opus packet and returns zero or more 160-byte
// mu-law frames. A decode failure yields exactly one frame of comfort
// silence so the upload's 20ms cadence is never interrupted.
func (r *Reverse) Process(packet []byte) [][]byte {
	samples, err := r.dec.Decode(packet)
	if err != nil {
		log.Warn().Err(err).Msg("audio: opus decode failed, inserting silence")
		return [][]byte{silenceFrame()}
	}

	r.pcmBuf = append(r.pcmBuf, r.resamp.Push(samples)...)

	var frames [][]byte
	for len(r.pcmBuf) >= pcmuFrameBytes {
		block := r.pcmBuf[:pcmuFrameBytes]
		r.pcmBuf = r.pcmBuf[pcmuFrameBytes:]

		frame := make([]byte, pcmuFrameBytes)
		for i, s := range block {
			frame[i] = pcm.PCMtoPCMU(clampSample(s))
		}
		frames = append(frames, frame)
	}
	return frames
}

func clampSample(s float32) int16 {
	f := s * 32767
	if f > 32767 {
		return 32767
	}
	if f < -32768 {
		return -32768
	}
	return int16(f)
}

func silenceFrame() []byte {
	frame := make([]byte, pcmuFrameBytes)
	for i := range frame {
		frame[i] = silenceByte
	}
	return frame
}
