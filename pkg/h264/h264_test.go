package h264

import (
	"encoding/binary"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestGetProfileLevelID(t *testing.T) {
	// OpenIPC https://github.com/OpenIPC
	s := "profile-level-id=0033e7; packetization-mode=1; "
	profile := GetProfileLevelID(s)
	require.Equal(t, "640029", profile)

	// Eufy T8400 https://github.com/birdbox/gateway/issues/155
	s = "packetization-mode=1;profile-level-id=276400"
	profile = GetProfileLevelID(s)
	require.Equal(t, "640029", profile)
}

func TestDepacketizerSingleNALU(t *testing.T) {
	nalu := []byte{0x65, 0xAA, 0xBB, 0xCC} // IDR slice, single NALU packet
	d := NewDepacketizer()

	au := d.Push(&rtp.Packet{Header: rtp.Header{Marker: true}, Payload: nalu})
	require.NotNil(t, au)
	require.Equal(t, uint32(len(nalu)), binary.BigEndian.Uint32(au))
	require.Equal(t, nalu, au[4:])
	require.True(t, IsKeyframe(au))
}

func TestDepacketizerFUA(t *testing.T) {
	// FU-A: indicator (type 28) + header (start bit, original type 5) + fragment 1,
	// then a continuation fragment with the end bit set.
	first := []byte{0x1C, 0x85, 0x01, 0x02}
	last := []byte{0x1C, 0x45, 0x03, 0x04}

	d := NewDepacketizer()
	require.Nil(t, d.Push(&rtp.Packet{Header: rtp.Header{Marker: false}, Payload: first}))

	au := d.Push(&rtp.Packet{Header: rtp.Header{Marker: true}, Payload: last})
	require.NotNil(t, au)
	require.True(t, IsKeyframe(au))
}
