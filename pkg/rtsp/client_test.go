package rtsp

import (
	"bufio"
	"context"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/birdbox/gateway/pkg/h264"
	"github.com/birdbox/gateway/pkg/video"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

func TestResolveControlAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("rtsp://cam.local:554/stream")
	got := resolveControl(base, "rtsp://cam.local:554/stream/track1")
	require.Equal(t, "rtsp://cam.local:554/stream/track1", got)
}

func TestResolveControlWildcard(t *testing.T) {
	base, _ := url.Parse("rtsp://cam.local:554/stream")
	require.Equal(t, base.String(), resolveControl(base, "*"))
	require.Equal(t, base.String(), resolveControl(base, ""))
}

func TestResolveControlRelativePath(t *testing.T) {
	base, _ := url.Parse("rtsp://cam.local:554/stream")
	require.Equal(t, "rtsp://cam.local:554/stream/track1", resolveControl(base, "track1"))
}

func TestResolveControlAbsolutePath(t *testing.T) {
	base, _ := url.Parse("rtsp://cam.local:554/stream")
	require.Equal(t, "rtsp://cam.local:554/track1", resolveControl(base, "/track1"))
}

func TestPullTCPEmitsAccessUnitOnMarker(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()

	c := &Client{
		conn:       clientConn,
		rd:         bufio.NewReaderSize(clientConn, 4096),
		transport:  TransportTCP,
		rtpChannel: 0,
	}

	pkt := &rtp.Packet{
		Header:  rtp.Header{Marker: true, SequenceNumber: 1, Timestamp: 1000, PayloadType: 96},
		Payload: []byte{0x65, 0xAA, 0xBB, 0xCC}, // IDR slice, single NALU
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)

	go func() {
		frame := make([]byte, 4+len(raw))
		frame[0] = '$'
		frame[1] = 0 // RTP channel
		frame[2] = byte(len(raw) >> 8)
		frame[3] = byte(len(raw))
		copy(frame[4:], raw)
		_, _ = serverConn.Write(frame)
	}()

	emitted := make(chan video.AccessUnit, 1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		_ = c.pullTCP(h264.NewDepacketizer(), func(au video.AccessUnit) {
			emitted <- au
			cancel()
		}, new(uint64))
	}()

	select {
	case au := <-emitted:
		require.True(t, h264.IsKeyframe(au.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for access unit")
	}

	<-ctx.Done()
}
