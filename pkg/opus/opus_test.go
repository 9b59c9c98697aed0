package opus

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWave(freq float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(SampleRate)))
	}
	return out
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)
	dec, err := NewDecoder()
	require.NoError(t, err)

	pcm := sineWave(440, FrameSamples)

	packet, err := enc.Encode(pcm)
	require.NoError(t, err)
	require.NotEmpty(t, packet)

	out, err := dec.Decode(packet)
	require.NoError(t, err)
	require.Len(t, out, FrameSamples)
}

func TestEncodeProducesIndependentPackets(t *testing.T) {
	enc, err := NewEncoder()
	require.NoError(t, err)

	silence := make([]float32, FrameSamples)
	tone := sineWave(1000, FrameSamples)

	first, err := enc.Encode(silence)
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)

	second, err := enc.Encode(tone)
	require.NoError(t, err)

	require.NotEqual(t, firstCopy, second)
}
