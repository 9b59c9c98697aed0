// Package opus wraps github.com/hraban/opus's cgo bindings to libopus with
// the fixed parameters this gateway always uses: 48kHz mono, 20ms frames,
// VoIP tuning. No other codec in the pack carries an Opus dependency, so
// this wrapper is the sole place that library is touched.
package opus

import "github.com/hraban/opus"

const (
	SampleRate = 48000
	Channels   = 1
	// FrameSamples is exactly 20ms at SampleRate, the cadence the forward
	// and reverse audio transcoders both frame around.
	FrameSamples = 960
	// maxPacketBytes bounds a single encoded frame; libopus never
	// produces anything close to this for voice at this bitrate.
	maxPacketBytes = 1500
)

type Encoder struct {
	enc *opus.Encoder
	buf []byte
}

func NewEncoder() (*Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	return &Encoder{enc: enc, buf: make([]byte, maxPacketBytes)}, nil
}

// Encode compresses exactly FrameSamples float samples in [-1.0, 1.0] into
// one Opus packet. The returned slice aliases the encoder's internal
// buffer and is only valid until the next call to Encode.
func (e *Encoder) Encode(pcm []float32) ([]byte, error) {
	n, err := e.enc.EncodeFloat32(pcm, e.buf)
	if err != nil {
		return nil, err
	}
	return e.buf[:n], nil
}

type Decoder struct {
	dec *opus.Decoder
	buf []float32
}

func NewDecoder() (*Decoder, error) {
	dec, err := opus.NewDecoder(SampleRate, Channels)
	if err != nil {
		return nil, err
	}
	return &Decoder{dec: dec, buf: make([]float32, FrameSamples)}, nil
}

// Decode expands one Opus packet into FrameSamples float samples. The
// returned slice aliases the decoder's internal buffer and is only valid
// until the next call to Decode.
func (d *Decoder) Decode(packet []byte) ([]float32, error) {
	n, err := d.dec.DecodeFloat32(packet, d.buf)
	if err != nil {
		return nil, err
	}
	return d.buf[:n], nil
}
