package core

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"

	"github.com/pion/sdp/v3"
)

// Codec describes one RTP payload format, or (with PayloadType ==
// PayloadTypeRAW) one already-depacketized frame format.
type Codec struct {
	Name        string
	ClockRate   uint32
	Channels    uint16
	FmtpLine    string
	PayloadType uint8
}

func (c *Codec) String() string {
	s := fmt.Sprintf("%d %s", c.PayloadType, c.Name)
	if c.ClockRate != 0 {
		s = fmt.Sprintf("%s/%d", s, c.ClockRate)
	}
	if c.Channels > 0 {
		s = fmt.Sprintf("%s/%d", s, c.Channels)
	}
	return s
}

func (c *Codec) IsRTP() bool {
	return c.PayloadType != PayloadTypeRAW
}

func (c *Codec) Clone() *Codec {
	clone := *c
	return &clone
}

func (c *Codec) Match(remote *Codec) bool {
	switch remote.Name {
	case CodecAll, CodecAny:
		return true
	}
	return c.Name == remote.Name &&
		(c.ClockRate == remote.ClockRate || remote.ClockRate == 0) &&
		(c.Channels == remote.Channels || remote.Channels == 0)
}

// UnmarshalCodec builds a Codec from one payload type entry of an SDP media
// description, falling back to the RFC 3551 static payload type table.
func UnmarshalCodec(md *sdp.MediaDescription, payloadType string) *Codec {
	c := &Codec{PayloadType: byte(Atoi(payloadType))}

	for _, attr := range md.Attributes {
		switch {
		case c.Name == "" && attr.Key == "rtpmap" && strings.HasPrefix(attr.Value, payloadType):
			i := strings.IndexByte(attr.Value, ' ')
			ss := strings.Split(attr.Value[i+1:], "/")

			c.Name = strings.ToUpper(ss[0])
			c.ClockRate = uint32(Atoi(strings.TrimRightFunc(ss[1], unicode.IsSpace)))

			if len(ss) == 3 && ss[2] == "2" {
				c.Channels = 2
			}
		case c.FmtpLine == "" && attr.Key == "fmtp" && strings.HasPrefix(attr.Value, payloadType):
			if i := strings.IndexByte(attr.Value, ' '); i > 0 {
				c.FmtpLine = attr.Value[i+1:]
			}
		}
	}

	if c.Name == "" {
		switch payloadType {
		case "0":
			c.Name, c.ClockRate = CodecPCMU, 8000
		case "8":
			c.Name, c.ClockRate = CodecPCMA, 8000
		default:
			c.Name = payloadType
		}
	}

	return c
}

// DecodeH264Profile pulls a human profile/level string out of an H.264
// fmtp line's sprop-parameter-sets, e.g. "High 4.0".
func DecodeH264Profile(fmtp string) string {
	ps := Between(fmtp, "sprop-parameter-sets=", ",")
	if ps == "" {
		ps = Between(fmtp, "sprop-parameter-sets=", ";")
	}
	if ps == "" {
		return ""
	}
	sps, err := base64.StdEncoding.DecodeString(ps)
	if err != nil || len(sps) < 4 {
		return ""
	}
	var profile string
	switch sps[1] {
	case 0x42:
		profile = "Baseline"
	case 0x4D:
		profile = "Main"
	case 0x58:
		profile = "Extended"
	case 0x64:
		profile = "High"
	default:
		profile = fmt.Sprintf("0x%02X", sps[1])
	}
	return fmt.Sprintf("%s %d.%d", profile, sps[3]/10, sps[3]%10)
}
