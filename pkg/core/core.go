// Package core holds the small vocabulary of wire-format types (codecs, media
// descriptions, RTP handler signatures) shared by the RTSP and H.264
// packages. It is intentionally narrow: this gateway talks to exactly one
// upstream device over one RTSP session, so it has no use for a generic
// many-producer/many-consumer routing graph.
package core

import (
	"strings"
	"time"

	"github.com/pion/rtp"
)

// ConnDialTimeout bounds every outbound TCP/RTSP dial to the doorbell.
const ConnDialTimeout = 5 * time.Second

// ConnDeadline bounds a single read or write on an already-open connection
// to the doorbell, so a stalled socket surfaces as an error instead of
// hanging a goroutine forever.
const ConnDeadline = 10 * time.Second

const (
	DirectionRecvonly = "recvonly"
	DirectionSendonly = "sendonly"
	DirectionSendRecv = "sendrecv"
)

const (
	KindVideo = "video"
	KindAudio = "audio"
)

const (
	CodecH264 = "H264"
	CodecOpus = "OPUS"
	CodecPCMU = "PCMU"
	CodecPCMA = "PCMA"
	CodecPCM  = "L16"  // linear PCM, big-endian
	CodecPCML = "PCML" // linear PCM, little-endian
	CodecRAW  = "RAW"

	CodecAll = "ALL"
	CodecAny = "ANY"
)

// PayloadTypeRAW marks a Codec carrying pre-depacketized access units (AVCC
// NALUs, raw Opus frames) rather than RTP payloads.
const PayloadTypeRAW byte = 255

// Packet is an RTP packet carrying either a real RTP payload or, for
// PayloadTypeRAW codecs, an already-depacketized frame (an AVCC access
// unit, an Opus frame) stashed in Payload with the rest of the header
// reused for sequencing only.
type Packet = rtp.Packet

// HandlerFunc processes one packet, just like http.HandlerFunc processes
// one request. No package in this module uses it at present; pkg/h264's
// Depacketizer takes packets through its own Push method.
type HandlerFunc func(packet *Packet)

func Assert(ok bool) {
	if !ok {
		panic("core: assertion failed")
	}
}

func Between(s, sub1, sub2 string) string {
	i := strings.Index(s, sub1)
	if i < 0 {
		return ""
	}
	s = s[i+len(sub1):]
	i = strings.Index(s, sub2)
	if i < 0 {
		return ""
	}
	return s[:i]
}

func Contains(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

func Atoi(s string) (i int) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		i = i*10 + int(c-'0')
	}
	return
}

// errString is a minimal constant-error helper, grounded on the same pattern
// go2rtc uses for sentinel errors across pkg/core and pkg/rtsp.
type errString string

func (e errString) Error() string { return string(e) }
