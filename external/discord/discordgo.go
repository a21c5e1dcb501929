package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/yomiagen/internal/audio"
	discordpkg "github.com/foxseedlab/yomiagen/internal/discord"
)

type Client struct {
	token      string
	session    *discordgo.Session
	newEncoder audio.EncoderFactory

	readyHandlers   []func()
	messageHandlers []func(discordpkg.MessageEvent)

	mu     sync.Mutex
	voices map[string]*voiceConnectionImpl
}

func NewClient(token string, newEncoder audio.EncoderFactory) discordpkg.Client {
	return &Client{
		token:      token,
		newEncoder: newEncoder,
		voices:     make(map[string]*voiceConnectionImpl),
	}
}

// Connect opens the gateway. Handlers registered beforehand are
// attached first, so the Ready event fired during the handshake is
// never missed.
func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(
		discordgo.IntentsGuilds |
			discordgo.IntentsGuildMessages |
			discordgo.IntentsGuildMessageReactions |
			discordgo.IntentsGuildVoiceStates |
			discordgo.IntentsMessageContent)
	for _, h := range c.readyHandlers {
		c.attachReadyHandler(h)
	}
	for _, h := range c.messageHandlers {
		c.attachMessageHandler(h)
	}
	return s.Open()
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) RegisterReadyHandler(handler func()) {
	c.readyHandlers = append(c.readyHandlers, handler)
}

func (c *Client) RegisterMessageHandler(handler func(discordpkg.MessageEvent)) {
	c.messageHandlers = append(c.messageHandlers, handler)
}

func (c *Client) attachReadyHandler(handler func()) {
	c.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		if r == nil {
			return
		}
		handler()
	})
}

func (c *Client) attachMessageHandler(handler func(discordpkg.MessageEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if !shouldDeliver(m) {
			return
		}
		handler(discordpkg.MessageEvent{
			GuildID:   m.GuildID,
			ChannelID: m.ChannelID,
			MessageID: m.ID,
			AuthorID:  m.Author.ID,
			Content:   m.Content,
			Reply: func(content string) error {
				_, err := s.ChannelMessageSendReply(m.ChannelID, content, m.Reference())
				return err
			},
			React: func(emoji string) error {
				return s.MessageReactionAdd(m.ChannelID, m.ID, emoji)
			},
		})
	})
}

// shouldDeliver keeps only ordinary user messages: no bots, no system
// messages (joins, pins, boosts). Replies are ordinary user messages.
func shouldDeliver(m *discordgo.MessageCreate) bool {
	if m == nil || m.Message == nil || m.Author == nil {
		return false
	}
	if m.Author.Bot {
		return false
	}
	switch m.Type {
	case discordgo.MessageTypeDefault, discordgo.MessageTypeReply:
		return true
	default:
		return false
	}
}

func (c *Client) SetPresence(activity string) error {
	return c.session.UpdateGameStatus(0, activity)
}

func (c *Client) JoinVoiceChannel(guildID, channelID string) (discordpkg.VoiceConnection, error) {
	// ChannelVoiceJoin reuses (or moves) an existing gateway voice
	// session for the guild, so calling it per-utterance is cheap.
	vc, err := c.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, &discordpkg.JoinError{Err: err, Permanent: isPermanentJoinError(err)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.voices[guildID]; ok && existing.vc == vc {
		return existing, nil
	}
	conn := &voiceConnectionImpl{vc: vc, newEncoder: c.newEncoder}
	c.voices[guildID] = conn
	return conn, nil
}

// isPermanentJoinError separates permission/config failures (no point
// retrying) from driver flakes such as the gateway timing out the
// voice state handshake.
func isPermanentJoinError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	switch restErr.Response.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound:
		return true
	default:
		return false
	}
}

type voiceConnectionImpl struct {
	vc         *discordgo.VoiceConnection
	newEncoder audio.EncoderFactory

	mu      sync.Mutex
	current *track
}

// Stop halts the in-flight track, if any, and waits for its sender to
// exit so a following Play never interleaves frames with it.
func (v *voiceConnectionImpl) Stop() {
	v.mu.Lock()
	cur := v.current
	v.current = nil
	v.mu.Unlock()
	if cur != nil {
		cur.Stop()
	}
}

func (v *voiceConnectionImpl) Play(source audio.PCMSource) discordpkg.Track {
	v.Stop()

	t := newTrack(v.vc, source, v.newEncoder)
	v.mu.Lock()
	v.current = t
	v.mu.Unlock()
	return t
}

func (v *voiceConnectionImpl) Disconnect() error {
	v.Stop()
	return v.vc.Disconnect()
}

type track struct {
	vc         *discordgo.VoiceConnection
	source     audio.PCMSource
	newEncoder audio.EncoderFactory

	volumeBits atomic.Uint64
	state      atomic.Int32
	launched   atomic.Bool

	started   chan struct{} // closed after the first frame goes out
	stop      chan struct{}
	done      chan struct{} // closed when the sender goroutine exits
	startOnce sync.Once
	stopOnce  sync.Once

	pumpErrMu sync.Mutex
	pumpErr   error
}

func newTrack(vc *discordgo.VoiceConnection, source audio.PCMSource, newEncoder audio.EncoderFactory) *track {
	t := &track{
		vc:         vc,
		source:     source,
		newEncoder: newEncoder,
		started:    make(chan struct{}),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	t.state.Store(int32(discordpkg.TrackStarting))
	t.SetVolume(1.0)
	return t
}

func (t *track) SetVolume(v float64) {
	t.volumeBits.Store(math.Float64bits(v))
}

func (t *track) volume() float64 {
	return math.Float64frombits(t.volumeBits.Load())
}

func (t *track) State() discordpkg.TrackState {
	return discordpkg.TrackState(t.state.Load())
}

// Start launches the frame sender and blocks until the track either
// confirms its first frame or finishes without one. The latter is the
// cold-start race: a very short clip (or a pre-stopped track) can run
// to completion before playback is observable.
func (t *track) Start() error {
	t.startOnce.Do(func() {
		t.launched.Store(true)
		go t.pump()
	})
	select {
	case <-t.started:
		return nil
	case <-t.done:
		if t.State() == discordpkg.TrackFailed {
			return t.takePumpErr()
		}
		return discordpkg.ErrTrackFinished
	}
}

func (t *track) Stop() {
	t.stopOnce.Do(func() {
		close(t.stop)
	})
	if t.launched.Load() {
		<-t.done
	}
}

func (t *track) pump() {
	defer close(t.done)
	defer func() {
		_ = t.source.Close()
	}()

	select {
	case <-t.stop:
		t.state.Store(int32(discordpkg.TrackEnded))
		return
	default:
	}

	encoder, err := t.newEncoder()
	if err != nil {
		t.fail(fmt.Errorf("create opus encoder: %w", err))
		return
	}
	if err := t.vc.Speaking(true); err != nil {
		t.fail(fmt.Errorf("set speaking: %w", err))
		return
	}
	defer func() {
		if err := t.vc.Speaking(false); err != nil {
			slog.Debug("failed to clear speaking flag", "error", err)
		}
	}()

	pcm := make([]int16, audio.SamplesPerFrame)
	for {
		select {
		case <-t.stop:
			t.state.Store(int32(discordpkg.TrackEnded))
			return
		default:
		}

		n, err := t.source.ReadFrame(pcm)
		if err == io.EOF {
			t.state.Store(int32(discordpkg.TrackEnded))
			return
		}
		if err != nil {
			t.fail(fmt.Errorf("read pcm frame: %w", err))
			return
		}

		t.attenuate(pcm[:n])
		packet, err := encoder.Encode(pcm[:n])
		if err != nil {
			t.fail(fmt.Errorf("encode frame: %w", err))
			return
		}
		if len(packet) > 0 {
			select {
			case t.vc.OpusSend <- packet:
			case <-t.stop:
				t.state.Store(int32(discordpkg.TrackEnded))
				return
			}
		}
		t.markPlaying()
	}
}

func (t *track) attenuate(pcm []int16) {
	vol := t.volume()
	if vol == 1.0 {
		return
	}
	for i := range pcm {
		pcm[i] = int16(float64(pcm[i]) * vol)
	}
}

func (t *track) markPlaying() {
	if t.State() == discordpkg.TrackStarting {
		t.state.Store(int32(discordpkg.TrackPlaying))
		close(t.started)
	}
}

func (t *track) fail(err error) {
	t.pumpErrMu.Lock()
	t.pumpErr = err
	t.pumpErrMu.Unlock()
	t.state.Store(int32(discordpkg.TrackFailed))
}

func (t *track) takePumpErr() error {
	t.pumpErrMu.Lock()
	defer t.pumpErrMu.Unlock()
	if t.pumpErr == nil {
		return errors.New("track failed")
	}
	return t.pumpErr
}
