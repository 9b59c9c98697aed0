package h264

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// Depacketizer reassembles one RTP H.264 stream (Single NALU, STAP-A and
// FU-A fragments) into AVCC access units: a 4-byte big-endian length
// followed by the NALU, one or more per unit, terminated by the packet
// whose RTP marker bit is set.
//
// Grounded on go2rtc's pre-core RTPDepay, which drove the same
// codecs.H264Packet unmarshaler in AVC mode.
type Depacketizer struct {
	pkt codecs.H264Packet
	au  []byte
}

func NewDepacketizer() *Depacketizer {
	return &Depacketizer{pkt: codecs.H264Packet{IsAVC: true}}
}

// Push feeds one RTP packet. It returns a complete access unit (already
// AVCC-framed, owned by the caller) when packet.Marker closes one out.
func (d *Depacketizer) Push(packet *rtp.Packet) []byte {
	nalu, err := d.pkt.Unmarshal(packet.Payload)
	if err != nil {
		d.au = nil
		return nil
	}

	if len(nalu) > 0 {
		d.au = append(d.au, nalu...)
	}

	if !packet.Marker {
		return nil
	}

	au := d.au
	d.au = nil
	return au
}
