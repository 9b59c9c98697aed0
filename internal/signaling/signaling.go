// Package signaling defines the message schema exchanged between a
// WebRTC session and its external WebSocket carrier, and the carrier
// implementation itself (gorilla/websocket, the same library go2rtc uses
// for its own browser-facing API).
package signaling

import (
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

// Type tags every message on the wire so the session's dispatch loop can
// route without a type switch over concrete struct types.
type Type string

const (
	// Inbound (browser -> session)
	TypeOffer      Type = "offer"
	TypeICE        Type = "ice"
	TypePTTRequest Type = "ptt_request"
	TypePTTRelease Type = "ptt_release"

	// Outbound (session -> browser)
	TypeAnswer   Type = "answer"
	TypePTTState Type = "ptt_state"
)

// PTTState is the wire form of pkg/ptt.State as seen by one particular
// session: Free, HeldByMe, or HeldByOther, never the raw holder id.
type PTTState string

const (
	PTTFree        PTTState = "free"
	PTTHeldByMe    PTTState = "held_by_me"
	PTTHeldByOther PTTState = "held_by_other"
)

// Message is the envelope for every signaling frame in both directions.
// Only the fields relevant to Type are populated.
type Message struct {
	Type      Type     `json:"type"`
	SDP       string   `json:"sdp,omitempty"`
	Candidate string   `json:"candidate,omitempty"`
	PTT       PTTState `json:"ptt,omitempty"`
}

// Carrier is one WebSocket connection bound to a single session, used by
// the WebRTC session to exchange Messages without depending on
// gorilla/websocket directly.
type Carrier struct {
	conn *websocket.Conn
}

func NewCarrier(conn *websocket.Conn) *Carrier {
	return &Carrier{conn: conn}
}

func (c *Carrier) Send(msg Message) error {
	return c.conn.WriteJSON(msg)
}

func (c *Carrier) Receive() (Message, error) {
	var msg Message
	if err := c.conn.ReadJSON(&msg); err != nil {
		return Message{}, err
	}
	if msg.Type == "" {
		return Message{}, errors.New("signaling: message missing type")
	}
	return msg, nil
}

func (c *Carrier) Close() error {
	return c.conn.Close()
}

// MustMarshal is used only by tests that need a raw wire frame.
func MustMarshal(msg Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return b
}
