// Package video holds the wire-level type the H.264 extractor produces.
package video

import "time"

// AccessUnit is one opaque H.264 encoded access unit as demuxed from RTSP,
// with arrival metadata only — no PTS/DTS interpretation, since downstream
// pacing is fixed rather than timestamp-driven (see pkg/webrtc).
type AccessUnit struct {
	Payload  []byte
	Sequence uint64
	Arrival  time.Time
}
