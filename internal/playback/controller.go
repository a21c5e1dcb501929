// Package playback drives one utterance into a live voice connection,
// retrying against a flaky synthesis-and-play pipeline with a bounded
// attempt count.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/foxseedlab/yomiagen/internal/discord"
)

const (
	// maxPlayAttempts bounds the Ended-without-Playing retry loop.
	maxPlayAttempts = 4
	// trackVolume keeps speech intelligible over ambient channel audio
	// without drowning it out.
	trackVolume = 0.15
)

// ErrPlaybackExhausted is returned after maxPlayAttempts consecutive
// attempts ended before playback was observed.
var ErrPlaybackExhausted = errors.New("playback attempts exhausted")

// SourceSupplier re-resolves the audio source for each attempt. It
// re-runs synthesis on the way, so a retry can also mask an upstream
// synthesis flake; with a warm artifact cache this is a cheap reopen.
type SourceSupplier func(ctx context.Context) (audio.PCMSource, error)

type Controller struct {
	volume float64
}

func NewController() *Controller {
	return &Controller{volume: trackVolume}
}

// PlayWithRetry starts the utterance and retries while the track
// reports it ended before it was ever observed playing. A track that
// finishes before its state can be queried (cold-start race) counts as
// an ordinary Ended transition, not a failure.
func (c *Controller) PlayWithRetry(ctx context.Context, conn discord.VoiceConnection, supply SourceSupplier) error {
	for attempt := 1; attempt <= maxPlayAttempts; attempt++ {
		source, err := supply(ctx)
		if err != nil {
			return fmt.Errorf("resolve audio source: %w", err)
		}

		track := conn.Play(source)
		track.SetVolume(c.volume)

		state := discord.TrackEnded
		if err := track.Start(); err != nil {
			if !errors.Is(err, discord.ErrTrackFinished) {
				return fmt.Errorf("start track: %w", err)
			}
		} else {
			state = track.State()
		}

		switch state {
		case discord.TrackPlaying:
			return nil
		case discord.TrackEnded:
			slog.Debug("track ended before playing; retrying", "attempt", attempt, "max_attempts", maxPlayAttempts)
		case discord.TrackFailed:
			return fmt.Errorf("track failed on attempt %d", attempt)
		default:
			slog.Warn("track in unexpected state after start", "state", state.String(), "attempt", attempt)
		}
	}
	return ErrPlaybackExhausted
}
