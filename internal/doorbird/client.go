// Package doorbird is the HTTP-side counterpart to pkg/doorbird's
// backchannel upload: device info, the live audio-receive stream, the
// open-door relay endpoint, and the ring/motion event monitor. None of
// these are part of the gateway's hard subsystem (they're the "external
// collaborators" the design brief calls out) but a complete gateway needs
// all of them to actually talk to a doorbell.
//
// Grounded on the DoorBird LAN-2-LAN API (Revision 0.36) as consumed by
// the reference implementation's doorbird client crate.
package doorbird

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/birdbox/gateway/pkg/tcp"
	"github.com/rs/zerolog"
)

// DeviceInfo is the /bha-api/info.cgi payload.
type DeviceInfo struct {
	Firmware       string   `json:"FIRMWARE"`
	BuildNumber    string   `json:"BUILD_NUMBER"`
	PrimaryMacAddr string   `json:"PRIMARY_MAC_ADDR"`
	Relays         []string `json:"RELAYS"`
	DeviceType     string   `json:"DEVICE-TYPE"`
}

type infoResponse struct {
	BHA struct {
		Version []DeviceInfo `json:"VERSION"`
	} `json:"BHA"`
}

// EventKind distinguishes the two event types the monitor endpoint emits.
type EventKind string

const (
	EventDoorbell  EventKind = "doorbell"
	EventMotionOn  EventKind = "motion"
	EventMotionOff EventKind = "motion_cleared"
)

// Event is one line of the monitor.cgi multipart event stream.
type Event struct {
	Kind EventKind
	Time time.Time
}

// Client is a thin HTTP wrapper around one doorbell's LAN API.
type Client struct {
	baseURL string
	user    string
	pass    string
	log     zerolog.Logger
}

func New(baseURL, user, pass string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		pass:    pass,
		log:     log,
	}
}

// newRequest attaches both a Basic Authorization header and the credentials
// on the URL's userinfo: most firmware accepts Basic outright, but tcp.Do
// falls back to Digest off the userinfo when a device challenges with a 401.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values) (*http.Request, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.user, c.pass)
	req.URL.User = url.UserPassword(c.user, c.pass)
	return req, nil
}

// Info fetches firmware, relays and device type from /bha-api/info.cgi.
func (c *Client) Info(ctx context.Context) (DeviceInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/bha-api/info.cgi", nil)
	if err != nil {
		return DeviceInfo{}, err
	}

	res, err := tcp.Do(req)
	if err != nil {
		return DeviceInfo{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return DeviceInfo{}, fmt.Errorf("doorbird: info.cgi: %s", res.Status)
	}

	var payload infoResponse
	if err = json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return DeviceInfo{}, err
	}
	if len(payload.BHA.Version) == 0 {
		return DeviceInfo{}, fmt.Errorf("doorbird: info.cgi: empty response")
	}
	return payload.BHA.Version[0], nil
}

// AudioReceive opens the live audio-receive.cgi stream: raw G.711 mu-law
// bytes at 8kHz, mono, until the connection is closed by either side. The
// caller must close the returned body.
func (c *Client) AudioReceive(ctx context.Context) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/bha-api/audio-receive.cgi", nil)
	if err != nil {
		return nil, err
	}

	res, err := tcp.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		_ = res.Body.Close()
		return nil, fmt.Errorf("doorbird: audio-receive.cgi: %s", res.Status)
	}
	return res.Body, nil
}

// OpenDoor triggers a relay via /bha-api/open-door.cgi. relay is the
// device's own relay identifier ("1", "2", or a paired controller relay
// like "gggaaa@1"); an empty relay opens the default one.
func (c *Client) OpenDoor(ctx context.Context, relay string) error {
	query := url.Values{}
	if relay != "" {
		query.Set("r", relay)
	}

	req, err := c.newRequest(ctx, http.MethodGet, "/bha-api/open-door.cgi", query)
	if err != nil {
		return err
	}

	res, err := tcp.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("doorbird: open-door.cgi: %s", res.Status)
	}
	return nil
}

// MonitorEvents connects to /bha-api/monitor.cgi?ring=doorbell,motionsensor
// and calls emit for every ring/motion line until ctx is cancelled or the
// connection drops.
func (c *Client) MonitorEvents(ctx context.Context, emit func(Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/bha-api/monitor.cgi",
		url.Values{"ring": {"doorbell,motionsensor"}})
	if err != nil {
		return err
	}

	res, err := tcp.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("doorbird: monitor.cgi: %s", res.Status)
	}

	scanner := bufio.NewScanner(res.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		kind, ok := parseEventLine(line)
		if !ok {
			continue
		}
		emit(Event{Kind: kind, Time: time.Now()})
	}
	return scanner.Err()
}

func parseEventLine(line string) (EventKind, bool) {
	switch {
	case strings.HasPrefix(line, "doorbell:H"):
		return EventDoorbell, true
	case strings.HasPrefix(line, "motionsensor:H"):
		return EventMotionOn, true
	case strings.HasPrefix(line, "motionsensor:L"):
		return EventMotionOff, true
	default:
		return "", false
	}
}
