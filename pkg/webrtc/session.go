package webrtc

import (
	"sync"
	"time"

	"github.com/birdbox/gateway/pkg/audio"
	"github.com/birdbox/gateway/pkg/fanout"
	"github.com/birdbox/gateway/pkg/ptt"
	"github.com/birdbox/gateway/pkg/video"
	"github.com/pion/rtp"
	pionwebrtc "github.com/pion/webrtc/v3"
	"github.com/rs/zerolog"
)

// videoSampleDuration approximates the doorbell's ~12fps, deferring true
// pacing to the browser's jitter buffer rather than chasing arrival
// timestamps that may themselves be unreliable.
const videoSampleDuration = 83 * time.Millisecond

// pttGraceTimeout bounds how long a Disconnected peer connection is kept
// alive before being treated as Failed.
const pttGraceTimeout = 15 * time.Second

// Uplink is the doorbell-facing sink a Session's reverse audio transcoder
// writes mu-law frames into; pkg/doorbird.Client satisfies it.
type Uplink interface {
	Write(frame []byte)
	Close() error
}

// Session is one browser's peer connection: one outbound audio track fed
// from an audio fan-out subscription, one outbound video track fed from a
// video fan-out subscription, and an optional inbound audio track used
// for push-to-talk.
type Session struct {
	ID string

	pc         *pionwebrtc.PeerConnection
	audioTrack *pionwebrtc.TrackLocalStaticSample
	videoTrack *pionwebrtc.TrackLocalStaticSample
	audioSub   *fanout.Subscription[audio.OpusFrame]
	videoSub   *fanout.Subscription[video.AccessUnit]
	arbiter    *ptt.Arbiter
	dialUplink func() (Uplink, error)

	mu      sync.Mutex
	uplink  Uplink
	holding bool
	closed  bool
	onClose func()

	log zerolog.Logger
}

// NewSession creates a peer connection bound to api, subscribes
// immediately to both fan-outs, and wires handlers for PTT. onClose is
// invoked exactly once, when the session tears itself down.
func NewSession(
	api *pionwebrtc.API,
	id string,
	audioEngine *fanout.Engine[audio.OpusFrame],
	videoEngine *fanout.Engine[video.AccessUnit],
	arbiter *ptt.Arbiter,
	dialUplink func() (Uplink, error),
	log zerolog.Logger,
	onClose func(),
) (*Session, error) {
	pc, err := api.NewPeerConnection(pionwebrtc.Configuration{})
	if err != nil {
		return nil, err
	}

	audioTrack, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "birdbox",
	)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	videoTrack, err := pionwebrtc.NewTrackLocalStaticSample(
		pionwebrtc.RTPCodecCapability{MimeType: pionwebrtc.MimeTypeH264, ClockRate: 90000},
		"video", "birdbox",
	)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}

	if _, err = pc.AddTrack(audioTrack); err != nil {
		_ = pc.Close()
		return nil, err
	}
	if _, err = pc.AddTrack(videoTrack); err != nil {
		_ = pc.Close()
		return nil, err
	}

	s := &Session{
		ID:         id,
		pc:         pc,
		audioTrack: audioTrack,
		videoTrack: videoTrack,
		audioSub:   audioEngine.Subscribe(),
		videoSub:   videoEngine.Subscribe(),
		arbiter:    arbiter,
		dialUplink: dialUplink,
		onClose:    onClose,
		log:        log,
	}

	pc.OnTrack(s.onTrack)
	pc.OnConnectionStateChange(s.onConnectionStateChange)

	go s.feedAudio()
	go s.feedVideo()

	return s, nil
}

func (s *Session) feedAudio() {
	for frame := range s.audioSub.C() {
		sample := pionwebrtc.Sample{Data: frame.Payload, Duration: 20 * time.Millisecond}
		if err := s.audioTrack.WriteSample(sample); err != nil {
			s.log.Warn().Err(err).Msg("webrtc: audio track write failed")
		}
	}
}

func (s *Session) feedVideo() {
	for au := range s.videoSub.C() {
		sample := pionwebrtc.Sample{Data: au.Payload, Duration: videoSampleDuration}
		if err := s.videoTrack.WriteSample(sample); err != nil {
			s.log.Warn().Err(err).Msg("webrtc: video track write failed")
		}
	}
}

// onTrack handles the optional inbound PTT audio receiver: the browser
// only ever sends a track while it holds the uplink, so every inbound RTP
// packet here is routed straight to the reverse transcoder and the
// doorbell upload.
func (s *Session) onTrack(track *pionwebrtc.TrackRemote, _ *pionwebrtc.RTPReceiver) {
	s.mu.Lock()
	uplink := s.uplink
	s.mu.Unlock()
	if uplink == nil {
		return
	}

	reverse, err := audio.NewReverse()
	if err != nil {
		s.log.Error().Err(err).Msg("webrtc: ptt reverse transcoder init failed")
		return
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		s.handleUplinkPacket(reverse, uplink, pkt)
	}
}

func (s *Session) handleUplinkPacket(reverse *audio.Reverse, uplink Uplink, pkt *rtp.Packet) {
	for _, frame := range reverse.Process(pkt.Payload) {
		uplink.Write(frame)
	}
}

func (s *Session) onConnectionStateChange(state pionwebrtc.PeerConnectionState) {
	switch state {
	case pionwebrtc.PeerConnectionStateFailed, pionwebrtc.PeerConnectionStateClosed:
		s.Close()
	case pionwebrtc.PeerConnectionStateDisconnected:
		time.AfterFunc(pttGraceTimeout, func() {
			if s.pc.ConnectionState() == pionwebrtc.PeerConnectionStateDisconnected {
				s.Close()
			}
		})
	}
}

// HandleOffer sets the browser's offer and returns this session's answer,
// once ICE gathering is complete so the answer carries the local candidates.
func (s *Session) HandleOffer(sdp string) (string, error) {
	offer := pionwebrtc.SessionDescription{Type: pionwebrtc.SDPTypeOffer, SDP: sdp}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return "", err
	}

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	gathered := pionwebrtc.GatheringCompletePromise(s.pc)
	if err = s.pc.SetLocalDescription(answer); err != nil {
		return "", err
	}
	<-gathered

	return s.pc.LocalDescription().SDP, nil
}

// AddICECandidate forwards one trickled remote candidate.
func (s *Session) AddICECandidate(candidate string) error {
	return s.pc.AddICECandidate(pionwebrtc.ICECandidateInit{Candidate: candidate})
}

// RequestPTT attempts to acquire the uplink for this session, dialing the
// doorbell's backchannel only on success.
func (s *Session) RequestPTT() (ptt.State, bool) {
	state, ok := s.arbiter.Acquire(s.ID)
	if !ok {
		return state, false
	}

	uplink, err := s.dialUplink()
	if err != nil {
		s.log.Error().Err(err).Msg("webrtc: ptt uplink dial failed")
		s.arbiter.Release(s.ID)
		return ptt.Free, false
	}

	s.mu.Lock()
	s.uplink = uplink
	s.holding = true
	s.mu.Unlock()

	return state, true
}

// ReleasePTT gives up the uplink if this session holds it.
func (s *Session) ReleasePTT() {
	s.arbiter.Release(s.ID)

	s.mu.Lock()
	uplink := s.uplink
	s.uplink = nil
	s.holding = false
	s.mu.Unlock()

	if uplink != nil {
		_ = uplink.Close()
	}
}

// Close tears the session down: releases both fan-out subscriptions,
// releases PTT if held, and closes the peer connection. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.ReleasePTT()
	s.audioSub.Close()
	s.videoSub.Close()

	if s.onClose != nil {
		s.onClose()
	}

	return s.pc.Close()
}
