package core

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
)

// Media is one SDP media section: a direction-qualified bundle of candidate
// codecs for a single audio or video track.
type Media struct {
	Kind      string
	Direction string
	Codecs    []*Codec
	ID        string
}

func (m *Media) String() string {
	s := fmt.Sprintf("%s, %s", m.Kind, m.Direction)
	for _, codec := range m.Codecs {
		s += ", " + codec.String()
	}
	return s
}

func (m *Media) MatchCodec(remote *Codec) *Codec {
	for _, codec := range m.Codecs {
		if codec.Match(remote) {
			return codec
		}
	}
	return nil
}

func UnmarshalMedia(md *sdp.MediaDescription) *Media {
	m := &Media{Kind: md.MediaName.Media}

	for _, attr := range md.Attributes {
		switch attr.Key {
		case DirectionSendonly, DirectionRecvonly, DirectionSendRecv:
			m.Direction = attr.Key
		case "control", "mid":
			m.ID = attr.Value
		}
	}

	for _, format := range md.MediaName.Formats {
		m.Codecs = append(m.Codecs, UnmarshalCodec(md, format))
	}

	return m
}

// GetKind classifies a codec name as audio or video, used when a Media's
// own Kind field is unavailable (e.g. building one from scratch).
func GetKind(name string) string {
	switch strings.ToUpper(name) {
	case CodecH264, CodecRAW:
		return KindVideo
	case CodecPCMU, CodecPCMA, CodecOpus, CodecPCM:
		return KindAudio
	}
	return ""
}
