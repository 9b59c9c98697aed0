package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSincUpsampleRatio(t *testing.T) {
	s := NewSinc(8000, 48000)

	in := make([]float32, 160) // 20ms @ 8kHz
	out := s.Push(in)

	// the first call holds back a half-filter-length of input as
	// lookahead, so only 160-FilterLength/2 input samples are interpolated
	// yet, each yielding 6 output samples
	require.InDelta(t, 6*(160-FilterLength/2), len(out), 1)
}

func TestSincPreservesTone(t *testing.T) {
	s := NewSinc(8000, 48000)

	const freq = 400.0
	var in []float32
	for i := 0; i < 8000; i++ { // 1s, well past the filter's settling time
		in = append(in, float32(math.Sin(2*math.Pi*freq*float64(i)/8000)))
	}

	out := s.Push(in)
	require.NotEmpty(t, out)

	var peak float32
	for _, v := range out[len(out)-480:] {
		if v > peak {
			peak = v
		}
	}
	require.Greater(t, peak, float32(0.5))
}

func TestSincDownsampleRatio(t *testing.T) {
	s := NewSinc(48000, 8000)

	in := make([]float32, 960) // 20ms @ 48kHz
	out := s.Push(in)

	require.InDelta(t, 160, len(out), float64(FilterLength))
}
