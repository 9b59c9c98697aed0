package doorbird

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestInfoParsesDeviceInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bha-api/info.cgi", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "alice", user)
		require.Equal(t, "secret", pass)

		_, _ = w.Write([]byte(`{"BHA":{"VERSION":[{"FIRMWARE":"000125","RELAYS":["1","2"]}]}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "alice", "secret", zerolog.Nop())
	info, err := c.Info(context.Background())
	require.NoError(t, err)
	require.Equal(t, "000125", info.Firmware)
	require.Equal(t, []string{"1", "2"}, info.Relays)
}

func TestInfoRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "alice", "secret", zerolog.Nop())
	_, err := c.Info(context.Background())
	require.Error(t, err)
}

func TestAudioReceiveStreamsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bha-api/audio-receive.cgi", r.URL.Path)
		_, _ = w.Write([]byte{0xFF, 0xFF, 0xFF})
	}))
	defer srv.Close()

	c := New(srv.URL, "alice", "secret", zerolog.Nop())
	body, err := c.AudioReceive(context.Background())
	require.NoError(t, err)
	defer body.Close()

	b, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, b)
}

func TestOpenDoorSendsRelayParameter(t *testing.T) {
	var gotRelay string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bha-api/open-door.cgi", r.URL.Path)
		gotRelay = r.URL.Query().Get("r")
	}))
	defer srv.Close()

	c := New(srv.URL, "alice", "secret", zerolog.Nop())
	require.NoError(t, c.OpenDoor(context.Background(), "1"))
	require.Equal(t, "1", gotRelay)
}

func TestMonitorEventsParsesRingAndMotionLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "doorbell,motionsensor", r.URL.Query().Get("ring"))
		_, _ = w.Write([]byte("doorbell:H\nmotionsensor:H\nmotionsensor:L\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, "alice", "secret", zerolog.Nop())

	var kinds []EventKind
	err := c.MonitorEvents(context.Background(), func(ev Event) {
		kinds = append(kinds, ev.Kind)
	})
	require.NoError(t, err)
	require.Equal(t, []EventKind{EventDoorbell, EventMotionOn, EventMotionOff}, kinds)
}

func TestParseEventLineIgnoresUnknownLines(t *testing.T) {
	_, ok := parseEventLine("keepalive")
	require.False(t, ok)
}
