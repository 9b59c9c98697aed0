// Package rtsp talks just enough RTSP to pull one H.264 video track out of
// the doorbell: DESCRIBE/SETUP/PLAY, then a read loop yielding access
// units. There is no PAUSE, no multi-track SETUP, no server push support —
// the doorbell's camera endpoint never needs any of that, and the generic
// multi-producer RTSP client in the retrieved pack solves a much bigger
// problem than this one.
package rtsp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/birdbox/gateway/pkg/core"
	"github.com/birdbox/gateway/pkg/h264"
	"github.com/birdbox/gateway/pkg/tcp"
	"github.com/birdbox/gateway/pkg/video"
	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"
)

// Transport picks how RTP packets travel from the doorbell to this
// process; UDP is the default, matching typical RTSP server behavior and
// avoiding head-of-line blocking against the RTSP control channel.
type Transport string

const (
	TransportUDP Transport = "udp"
	TransportTCP Transport = "tcp"
)

const readDeadline = 30 * time.Second

// udpReadBuf is sized like a typical Ethernet MTU, well above any single
// RTP packet the doorbell sends.
const udpReadBuf = 1500

// Client is a single H.264-track RTSP session.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader
	uri  *url.URL
	auth *tcp.Auth
	cseq int

	session  string
	trackURL string
	codec    *core.Codec
	profile  string

	transport  Transport
	rtpChannel byte

	ports     *UDPPortPair
	serverRTP *net.UDPAddr
}

// Connect opens the control connection and completes the
// DESCRIBE/SETUP/PLAY handshake against rawURL's video track.
func Connect(rawURL string, transport Transport) (*Client, error) {
	uri, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	conn, err := Dial(rawURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:      conn,
		rd:        bufio.NewReaderSize(conn, 8*1024),
		uri:       uri,
		auth:      tcp.NewAuth(uri.User),
		transport: transport,
	}

	if err = c.describe(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err = c.setup(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err = c.play(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return c, nil
}

func (c *Client) request(method, uri string, header map[string]string, body []byte) (*tcp.Response, error) {
	c.cseq++

	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	u.User = nil

	req := &tcp.Request{
		Method: method,
		URL:    u,
		Proto:  "RTSP/1.0",
		Header: textproto.MIMEHeader{
			"CSeq":       []string{strconv.Itoa(c.cseq)},
			"User-Agent": []string{"birdbox-gateway"},
		},
		Body: body,
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	if c.session != "" {
		req.Header.Set("Session", c.session)
	}
	c.auth.Write(req)

	_ = c.conn.SetDeadline(time.Now().Add(core.ConnDeadline))
	if err = req.Write(c.conn); err != nil {
		return nil, err
	}

	res, err := tcp.ReadResponse(c.rd)
	if err != nil {
		return nil, err
	}

	if res.StatusCode == 401 && c.auth.Read(res) {
		return c.request(method, uri, header, body)
	}
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("rtsp: %s %s: %s", method, uri, res.Status)
	}
	return res, nil
}

func (c *Client) describe() error {
	res, err := c.request("DESCRIBE", c.uri.String(), map[string]string{"Accept": "application/sdp"}, nil)
	if err != nil {
		return err
	}

	var sd sdp.SessionDescription
	if err = sd.Unmarshal(res.Body); err != nil {
		return err
	}

	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != core.KindVideo {
			continue
		}
		media := core.UnmarshalMedia(md)
		for _, codec := range media.Codecs {
			if codec.Name == core.CodecH264 {
				c.codec = codec
				c.trackURL = resolveControl(c.uri, media.ID)
				if profile := core.DecodeH264Profile(codec.FmtpLine); profile != "" {
					c.profile = profile
				}
				return nil
			}
		}
	}

	return errors.New("rtsp: no H264 video track in SDP")
}

func resolveControl(base *url.URL, control string) string {
	if control == "" || control == "*" {
		return base.String()
	}
	if strings.Contains(control, "://") {
		return control
	}
	u := *base
	if strings.HasPrefix(control, "/") {
		u.Path = control
	} else {
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		u.Path += control
	}
	return u.String()
}

func (c *Client) setup() error {
	var transportHeader string

	switch c.transport {
	case TransportTCP:
		transportHeader = fmt.Sprintf("RTP/AVP/TCP;unicast;interleaved=%d-%d", c.rtpChannel, c.rtpChannel+1)
	default:
		ports, err := GetUDPPorts(nil, 10)
		if err != nil {
			return err
		}
		c.ports = ports
		transportHeader = fmt.Sprintf("RTP/AVP;unicast;client_port=%d-%d", ports.RTPPort, ports.RTCPPort)
	}

	res, err := c.request("SETUP", c.trackURL, map[string]string{"Transport": transportHeader}, nil)
	if err != nil {
		return err
	}

	session := res.Header.Get("Session")
	if i := strings.IndexByte(session, ';'); i > 0 {
		session = session[:i]
	}
	c.session = session

	if c.transport == TransportUDP {
		srvTransport := res.Header.Get("Transport") + ";"
		serverPort := core.Between(srvTransport, "server_port=", ";")
		if ports := strings.SplitN(serverPort, "-", 2); len(ports) == 2 {
			rtpPort, _ := strconv.Atoi(ports[0])
			c.serverRTP = &net.UDPAddr{IP: net.ParseIP(c.uri.Hostname()), Port: rtpPort}
		}
	}

	return nil
}

func (c *Client) play() error {
	_, err := c.request("PLAY", c.uri.String(), map[string]string{"Range": "npt=0.000-"}, nil)
	return err
}

// Pull reads RTP packets until ctx is cancelled or the connection drops,
// depacketizing H.264 NALUs and handing each completed access unit to
// emit on the RTP marker bit. Satisfies fanout.Puller[video.AccessUnit].
func (c *Client) Pull(ctx context.Context, emit func(video.AccessUnit)) error {
	defer c.Close()

	unblock := make(chan struct{})
	defer close(unblock)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.SetDeadline(time.Now())
			if c.ports != nil {
				_ = c.ports.RTPListener.SetDeadline(time.Now())
			}
		case <-unblock:
		}
	}()

	depay := h264.NewDepacketizer()
	var seq uint64

	if c.transport == TransportTCP {
		return c.pullTCP(depay, emit, &seq)
	}
	return c.pullUDP(depay, emit, &seq)
}

func (c *Client) pullTCP(depay *h264.Depacketizer, emit func(video.AccessUnit), seq *uint64) error {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		b, err := c.rd.ReadByte()
		if err != nil {
			return err
		}
		if b != '$' {
			continue // RTSP keep-alive / interleaved RTCP noise
		}

		header := make([]byte, 3)
		if _, err = io.ReadFull(c.rd, header); err != nil {
			return err
		}
		channel := header[0]
		length := int(header[1])<<8 | int(header[2])

		payload := make([]byte, length)
		if _, err = io.ReadFull(c.rd, payload); err != nil {
			return err
		}

		if channel != c.rtpChannel {
			continue
		}

		var pkt rtp.Packet
		if err = pkt.Unmarshal(payload); err != nil {
			continue
		}

		if au := depay.Push(&pkt); au != nil {
			emit(video.AccessUnit{Payload: au, Sequence: *seq, Arrival: time.Now()})
			*seq++
		}
	}
}

func (c *Client) pullUDP(depay *h264.Depacketizer, emit func(video.AccessUnit), seq *uint64) error {
	buf := make([]byte, udpReadBuf)
	for {
		_ = c.ports.RTPListener.SetReadDeadline(time.Now().Add(readDeadline))

		n, _, err := c.ports.RTPListener.ReadFromUDP(buf)
		if err != nil {
			return err
		}

		var pkt rtp.Packet
		if err = pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}

		if au := depay.Push(&pkt); au != nil {
			emit(video.AccessUnit{Payload: au, Sequence: *seq, Arrival: time.Now()})
			*seq++
		}
	}
}

// Profile reports the negotiated H.264 profile/level, or "" if the SDP's
// fmtp line carried no sprop-parameter-sets to decode it from.
func (c *Client) Profile() string {
	return c.profile
}

func (c *Client) Close() error {
	if c.ports != nil {
		c.ports.Close()
	}
	return c.conn.Close()
}
