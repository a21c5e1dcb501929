package discord

import (
	"context"
	"errors"

	"github.com/foxseedlab/yomiagen/internal/audio"
)

// ErrTrackFinished is returned by Track.Start when the underlying
// driver finished the clip before playback could be observed.
var ErrTrackFinished = errors.New("track already finished")

// MessageEvent is one inbound chat message. Only ordinary (non-system)
// messages from non-bot authors are delivered.
type MessageEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
	AuthorID  string
	Content   string

	Reply func(content string) error
	React func(emoji string) error
}

// Client is one authenticated gateway connection. Handlers must be
// registered before Connect; the Ready event can fire during the
// connection handshake.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	RegisterReadyHandler(handler func())
	RegisterMessageHandler(handler func(MessageEvent))
	SetPresence(activity string) error
	JoinVoiceChannel(guildID, channelID string) (VoiceConnection, error)
}

// ClientFactory builds one client per community entry; each community
// authenticates with its own token.
type ClientFactory func(token string) Client

type VoiceConnection interface {
	// Stop unconditionally halts whatever track is currently playing,
	// so a new utterance always preempts an in-flight one.
	Stop()
	Play(source audio.PCMSource) Track
	Disconnect() error
}

type TrackState int

const (
	TrackStarting TrackState = iota
	TrackPlaying
	TrackEnded
	TrackFailed
)

func (s TrackState) String() string {
	switch s {
	case TrackStarting:
		return "starting"
	case TrackPlaying:
		return "playing"
	case TrackEnded:
		return "ended"
	case TrackFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Track is one playback attempt of an artifact into a live voice
// connection.
type Track interface {
	// SetVolume sets the software mixing level applied per-sample; it
	// does not touch the master channel volume.
	SetVolume(v float64)
	// Start begins transmission and returns once the track has either
	// confirmed its first frame or already finished. ErrTrackFinished
	// means the underlying driver completed before playback could be
	// observed.
	Start() error
	State() TrackState
	Stop()
}

// JoinError distinguishes permanent voice-join failures (permissions,
// configuration) from transient driver failures that are candidates
// for process-level recovery.
type JoinError struct {
	Err       error
	Permanent bool
}

func (e *JoinError) Error() string {
	if e.Permanent {
		return "voice join failed permanently: " + e.Err.Error()
	}
	return "voice join failed (driver): " + e.Err.Error()
}

func (e *JoinError) Unwrap() error {
	return e.Err
}
