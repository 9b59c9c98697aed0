package pcm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPCMUtoPCMRoundTrip(t *testing.T) {
	for x := -32768; x <= 32767; x++ {
		pcm := int16(x)
		require.Equal(t, PCMtoPCMU(pcm), PCMtoPCMU(PCMUtoPCM(PCMtoPCMU(pcm))))
	}
}

func TestPCMtoPCMUReferenceVectors(t *testing.T) {
	require.Equal(t, byte(0xFF), PCMtoPCMU(0))
	require.Equal(t, byte(0x00), PCMtoPCMU(-32124))
	require.Equal(t, byte(0x00), PCMtoPCMU(-32767))
}

func TestPCMUtoPCMDecodesEncodedSilence(t *testing.T) {
	require.Equal(t, int16(0), PCMUtoPCM(0xFF))
}
