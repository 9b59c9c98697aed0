package audio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReverseInsertsSilenceOnDecodeFailure(t *testing.T) {
	r, err := NewReverse()
	require.NoError(t, err)

	frames := r.Process([]byte{0x00, 0x01, 0x02}) // not a valid Opus packet
	require.Len(t, frames, 1)
	require.Len(t, frames[0], pcmuFrameBytes)
	for _, b := range frames[0] {
		require.Equal(t, byte(silenceByte), b)
	}
}

func TestReverseRoundTripsThroughForward(t *testing.T) {
	fwd, err := NewForward()
	require.NoError(t, err)
	rev, err := NewReverse()
	require.NoError(t, err)

	silence := make([]byte, ulawFrameBytes)
	for i := range silence {
		silence[i] = silenceByte
	}
	var opusFrames []OpusFrame
	for i := 0; i < 10; i++ {
		opusFrames = append(opusFrames, fwd.Process(silence)...)
	}
	require.NotEmpty(t, opusFrames)

	for _, frame := range opusFrames {
		pcmuFrames := rev.Process(frame.Payload)
		for _, f := range pcmuFrames {
			require.Len(t, f, pcmuFrameBytes)
		}
	}
}

func TestClampSample(t *testing.T) {
	require.Equal(t, int16(32767), clampSample(2.0))
	require.Equal(t, int16(-32768), clampSample(-2.0))
	require.Equal(t, int16(0), clampSample(0))
}
