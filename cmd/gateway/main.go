// Command gateway is the process entrypoint: it wires the doorbell HTTP
// and RTSP clients into the two fan-out engines, brings up the shared
// WebRTC API on one UDP port, and serves the WebSocket signaling endpoint
// plus the open-gates relay endpoint.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/birdbox/gateway/internal/app"
	"github.com/birdbox/gateway/internal/doorbird"
	"github.com/birdbox/gateway/internal/pipeline"
	"github.com/birdbox/gateway/internal/signaling"
	"github.com/birdbox/gateway/pkg/audio"
	pkgdoorbird "github.com/birdbox/gateway/pkg/doorbird"
	"github.com/birdbox/gateway/pkg/fanout"
	"github.com/birdbox/gateway/pkg/ptt"
	"github.com/birdbox/gateway/pkg/rtsp"
	"github.com/birdbox/gateway/pkg/video"
	"github.com/birdbox/gateway/pkg/webrtc"
	"github.com/birdbox/gateway/pkg/xnet"
	"github.com/gorilla/websocket"
	pionwebrtc "github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	audioGrace = 3 * time.Second
	videoGrace = 5 * time.Second
)

type doorbirdConfig struct {
	BaseURL string `yaml:"base_url"`
	User    string `yaml:"user"`
	Pass    string `yaml:"pass"`
}

type rtspConfig struct {
	URL       string `yaml:"url"`
	Transport string `yaml:"transport"`
}

type webrtcConfig struct {
	BindAddress   string   `yaml:"bind_address"`
	UDPPort       int      `yaml:"udp_port"`
	AdvertisedIPs []string `yaml:"advertised_ips"`
}

type config struct {
	Doorbird doorbirdConfig `yaml:"doorbird"`
	RTSP     rtspConfig     `yaml:"rtsp"`
	WebRTC   webrtcConfig   `yaml:"webrtc"`

	Audio struct {
		BufferFrames int `yaml:"buffer_frames"`
	} `yaml:"audio"`

	Video struct {
		BufferFrames int `yaml:"buffer_frames"`
	} `yaml:"video"`

	Listen string `yaml:"listen"`
}

func main() {
	app.Init()

	cfg := config{RTSP: rtspConfig{Transport: "udp"}, Listen: ":8080"}
	cfg.WebRTC.BindAddress = "0.0.0.0"
	cfg.WebRTC.UDPPort = 50000
	cfg.Audio.BufferFrames = 20
	cfg.Video.BufferFrames = 4
	app.LoadConfig(&cfg)

	doorbirdClient := doorbird.New(cfg.Doorbird.BaseURL, cfg.Doorbird.User, cfg.Doorbird.Pass, app.GetLogger("doorbird"))

	audioEngine := fanout.New[audio.OpusFrame](
		pipeline.AudioPuller(doorbirdClient), cfg.Audio.BufferFrames, audioGrace, app.GetLogger("audio"),
	)
	videoEngine := fanout.New[video.AccessUnit](
		pipeline.VideoPuller(cfg.RTSP.URL, rtsp.Transport(cfg.RTSP.Transport)), cfg.Video.BufferFrames, videoGrace, app.GetLogger("video"),
	)

	arbiter := ptt.New()

	go monitorDoorbellEvents(doorbirdClient)

	api := buildWebRTCAPI(cfg)

	srv := &server{
		api:         api,
		audioEngine: audioEngine,
		videoEngine: videoEngine,
		arbiter:     arbiter,
		dialUplink: func() (webrtc.Uplink, error) {
			return pkgdoorbird.Dial(uplinkURL(cfg.Doorbird))
		},
		doorbird: doorbirdClient,
		log:      app.GetLogger("session"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWebSocket)
	mux.HandleFunc("/api/open-gates", srv.handleOpenGates)

	log.Info().Str("address", cfg.Listen).Msg("signaling: listening")

	log.Fatal().Err(http.ListenAndServe(cfg.Listen, mux)).Send()
}

// buildWebRTCAPI brings up the shared UDP socket per the WebRTC
// infrastructure's ICE policy: bind directly to a single auto-detected
// address when no advertised IPs are configured, otherwise bind the
// configured address and NAT-1:1 every host candidate to each advertised
// IP. A bind failure on a specific configured IP falls back to 0.0.0.0,
// logged prominently, with NAT-1:1 still advertising the original address.
func buildWebRTCAPI(cfg config) *pionwebrtc.API {
	bindAddress := cfg.WebRTC.BindAddress
	advertisedIPs := cfg.WebRTC.AdvertisedIPs

	if len(advertisedIPs) == 0 {
		if ip, err := xnet.AutoDetectIP(); err == nil {
			bindAddress = ip.String()
			advertisedIPs = []string{ip.String()}
		} else {
			log.Warn().Err(err).Msg("webrtc: auto IP detection failed, binding 0.0.0.0")
		}
	}

	filters := &webrtc.Filters{NAT1To1IPs: advertisedIPs}
	udpAddress := fmt.Sprintf("%s:%d", bindAddress, cfg.WebRTC.UDPPort)

	api, err := webrtc.NewServerAPI("udp", udpAddress, filters)
	if err != nil {
		log.Warn().Err(err).Str("address", udpAddress).Msg("webrtc: bind failed, falling back to 0.0.0.0")
		udpAddress = fmt.Sprintf("0.0.0.0:%d", cfg.WebRTC.UDPPort)
		api, err = webrtc.NewServerAPI("udp", udpAddress, filters)
		if err != nil {
			log.Fatal().Err(err).Msg("webrtc: api init failed")
		}
	}

	return api
}

func uplinkURL(d doorbirdConfig) string {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return d.BaseURL
	}
	u.User = url.UserPassword(d.User, d.Pass)
	return u.String()
}

func monitorDoorbellEvents(client *doorbird.Client) {
	logger := app.GetLogger("doorbird")
	for {
		err := client.MonitorEvents(context.Background(), func(ev doorbird.Event) {
			logger.Info().Str("kind", string(ev.Kind)).Msg("doorbird: event")
		})
		if err != nil {
			logger.Warn().Err(err).Msg("doorbird: event monitor disconnected, retrying")
		}
		time.Sleep(5 * time.Second)
	}
}

var upgrader = websocket.Upgrader{
	// No authentication happens at this layer; the gateway is designed to
	// run on a trusted network or behind an external authenticator.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type server struct {
	api         *pionwebrtc.API
	audioEngine *fanout.Engine[audio.OpusFrame]
	videoEngine *fanout.Engine[video.AccessUnit]
	arbiter     *ptt.Arbiter
	dialUplink  func() (webrtc.Uplink, error)
	doorbird    *doorbird.Client
	log         zerolog.Logger
}

func newSessionID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("signaling: upgrade failed")
		return
	}

	id := newSessionID()
	carrier := signaling.NewCarrier(conn)

	sess, err := webrtc.NewSession(s.api, id, s.audioEngine, s.videoEngine, s.arbiter, s.dialUplink, s.log, func() {
		_ = carrier.Close()
	})
	if err != nil {
		s.log.Error().Err(err).Msg("session: create failed")
		_ = carrier.Close()
		return
	}
	defer sess.Close()

	feed := s.arbiter.Watch()
	defer s.arbiter.Unwatch(feed)
	go forwardPTTState(carrier, id, feed)

	s.log.Info().Str("session", id).Msg("session: connected")

	for {
		msg, err := carrier.Receive()
		if err != nil {
			s.log.Info().Str("session", id).Msg("session: disconnected")
			return
		}

		switch msg.Type {
		case signaling.TypeOffer:
			answer, err := sess.HandleOffer(msg.SDP)
			if err != nil {
				s.log.Warn().Err(err).Str("session", id).Msg("session: offer handling failed")
				continue
			}
			_ = carrier.Send(signaling.Message{Type: signaling.TypeAnswer, SDP: answer})

		case signaling.TypeICE:
			if err := sess.AddICECandidate(msg.Candidate); err != nil {
				s.log.Warn().Err(err).Str("session", id).Msg("session: ice candidate rejected")
			}

		case signaling.TypePTTRequest:
			if _, ok := sess.RequestPTT(); ok {
				_ = carrier.Send(signaling.Message{Type: signaling.TypePTTState, PTT: signaling.PTTHeldByMe})
			} else {
				_ = carrier.Send(signaling.Message{Type: signaling.TypePTTState, PTT: signaling.PTTHeldByOther})
			}

		case signaling.TypePTTRelease:
			sess.ReleasePTT()
		}
	}
}

func forwardPTTState(carrier *signaling.Carrier, id string, feed chan ptt.State) {
	for state := range feed {
		wire := signaling.PTTFree
		if state.Held {
			if state.Holder == id {
				wire = signaling.PTTHeldByMe
			} else {
				wire = signaling.PTTHeldByOther
			}
		}
		if err := carrier.Send(signaling.Message{Type: signaling.TypePTTState, PTT: wire}); err != nil {
			return
		}
	}
}

func (s *server) handleOpenGates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	relay := r.URL.Query().Get("relay")
	if err := s.doorbird.OpenDoor(r.Context(), relay); err != nil {
		s.log.Warn().Err(err).Msg("doorbird: open-gates failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
