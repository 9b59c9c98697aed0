// Package pipeline wires the doorbell-facing clients (internal/doorbird,
// pkg/rtsp) to the transcoders (pkg/audio) into the fanout.Puller shape
// each fan-out engine expects.
package pipeline

import (
	"context"
	"io"

	"github.com/birdbox/gateway/internal/doorbird"
	"github.com/birdbox/gateway/pkg/audio"
	"github.com/birdbox/gateway/pkg/rtsp"
	"github.com/birdbox/gateway/pkg/video"
	"github.com/rs/zerolog/log"
)

// AudioPuller opens the doorbell's audio-receive.cgi stream and drives it
// through the forward transcoder, emitting OpusFrames.
func AudioPuller(client *doorbird.Client) func(ctx context.Context, emit func(audio.OpusFrame)) error {
	return func(ctx context.Context, emit func(audio.OpusFrame)) error {
		body, err := client.AudioReceive(ctx)
		if err != nil {
			return err
		}
		defer body.Close()

		forward, err := audio.NewForward()
		if err != nil {
			return err
		}

		go func() {
			<-ctx.Done()
			_ = body.Close()
		}()

		buf := make([]byte, 4096)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				for _, frame := range forward.Process(buf[:n]) {
					emit(frame)
				}
			}
			if err != nil {
				if err == io.EOF {
					for _, frame := range forward.Flush() {
						emit(frame)
					}
					return nil
				}
				return err
			}
		}
	}
}

// VideoPuller opens an RTSP session against rawURL and depacketizes H.264
// access units from it.
func VideoPuller(rawURL string, transport rtsp.Transport) func(ctx context.Context, emit func(video.AccessUnit)) error {
	return func(ctx context.Context, emit func(video.AccessUnit)) error {
		client, err := rtsp.Connect(rawURL, transport)
		if err != nil {
			return err
		}
		if profile := client.Profile(); profile != "" {
			log.Info().Str("profile", profile).Msg("rtsp: video track negotiated")
		}
		return client.Pull(ctx, emit)
	}
}
