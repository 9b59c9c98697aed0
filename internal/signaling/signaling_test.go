package signaling

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestMustMarshalOmitsUnsetFields(t *testing.T) {
	b := MustMarshal(Message{Type: TypeOffer, SDP: "v=0"})
	s := string(b)
	require.True(t, strings.Contains(s, `"type":"offer"`))
	require.True(t, strings.Contains(s, `"sdp":"v=0"`))
	require.False(t, strings.Contains(s, "candidate"))
	require.False(t, strings.Contains(s, "ptt"))
}

func newCarrierPair(t *testing.T) (client *Carrier, server *Carrier, cleanup func()) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverCh := make(chan *websocket.Conn, 1)

	httpSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverCh <- conn
	}))

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var serverConn *websocket.Conn
	select {
	case serverConn = <-serverCh:
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
	}

	return NewCarrier(clientConn), NewCarrier(serverConn), func() {
		_ = clientConn.Close()
		_ = serverConn.Close()
		httpSrv.Close()
	}
}

func TestCarrierRoundTrip(t *testing.T) {
	client, server, cleanup := newCarrierPair(t)
	defer cleanup()

	require.NoError(t, client.Send(Message{Type: TypeOffer, SDP: "v=0"}))

	msg, err := server.Receive()
	require.NoError(t, err)
	require.Equal(t, TypeOffer, msg.Type)
	require.Equal(t, "v=0", msg.SDP)
}

func TestCarrierReceiveRejectsMissingType(t *testing.T) {
	client, server, cleanup := newCarrierPair(t)
	defer cleanup()

	require.NoError(t, client.conn.WriteJSON(struct {
		SDP string `json:"sdp"`
	}{SDP: "v=0"}))

	_, err := server.Receive()
	require.Error(t, err)
}
