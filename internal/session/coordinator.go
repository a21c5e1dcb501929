// Package session coordinates one community: it owns the gateway
// connection, the opt-in membership set, and the synthesize-then-play
// pipeline, and serializes all of it through a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/foxseedlab/yomiagen/internal/config"
	"github.com/foxseedlab/yomiagen/internal/discord"
	"github.com/foxseedlab/yomiagen/internal/filter"
	"github.com/foxseedlab/yomiagen/internal/membership"
	"github.com/foxseedlab/yomiagen/internal/playback"
	"github.com/foxseedlab/yomiagen/internal/repository"
	"github.com/foxseedlab/yomiagen/internal/store"
	"github.com/foxseedlab/yomiagen/internal/synth"
)

// membershipTTL is how long an opt-in stays live without the user
// speaking. Every eligible message from the user pushes it forward.
const membershipTTL = 4 * time.Hour

// eventBuffer absorbs chat bursts while an utterance is playing;
// handling stays strictly sequential.
const eventBuffer = 64

var enableTargetPattern = regexp.MustCompile(`^` + regexp.QuoteMeta(enableCommand) + `(?:\s+<@!?([0-9]+)>)?\s*$`)

// Deps are the collaborators for one community's coordinator.
type Deps struct {
	Guild      config.GuildConfig
	Client     discord.Client
	Members    *membership.Cache
	SynthCache *synth.Cache
	Decoder    audio.Decoder
	Controller *playback.Controller
	Store      store.SnapshotStore
	Repository repository.Repository
}

// Factory builds the coordinator for one community entry.
type Factory func(guild config.GuildConfig) *Coordinator

type Coordinator struct {
	guild      config.GuildConfig
	client     discord.Client
	members    *membership.Cache
	synthCache *synth.Cache
	decoder    audio.Decoder
	controller *playback.Controller
	store      store.SnapshotStore
	repo       repository.Repository
}

func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		guild:      deps.Guild,
		client:     deps.Client,
		members:    deps.Members,
		synthCache: deps.SynthCache,
		decoder:    deps.Decoder,
		controller: deps.Controller,
		store:      deps.Store,
		repo:       deps.Repository,
	}
}

// Run connects to the gateway and processes events until ctx is
// cancelled or an unrecoverable driver failure occurs. A non-nil,
// non-context error means the caller should restart the session.
func (c *Coordinator) Run(ctx context.Context) error {
	ready := make(chan struct{}, 1)
	events := make(chan discord.MessageEvent, eventBuffer)

	c.client.RegisterReadyHandler(func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	})
	c.client.RegisterMessageHandler(func(ev discord.MessageEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	if err := c.client.Connect(ctx); err != nil {
		return fmt.Errorf("connect gateway: %w", err)
	}
	defer func() {
		if err := c.client.Close(); err != nil {
			slog.Warn("failed to close gateway connection", "guild_id", c.guild.GuildID, "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			if err := c.bootstrap(ctx); err != nil {
				return err
			}
		case ev := <-events:
			if err := c.handleMessage(ctx, ev); err != nil {
				return err
			}
		}
	}
}

// bootstrap restores the opt-in set from the snapshot. Restored users
// get a full TTL; the snapshot does not record expiries. Runs again on
// gateway resume, which only pushes live expiries forward.
func (c *Coordinator) bootstrap(ctx context.Context) error {
	if err := c.client.SetPresence(helpCommand); err != nil {
		slog.Warn("failed to set presence", "guild_id", c.guild.GuildID, "error", err)
	}

	users, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load membership snapshot: %w", err)
	}
	for _, userID := range users {
		c.members.Refresh(userID, membershipTTL)
	}

	spoken, err := c.repo.CountUtterancesByGuild(ctx, c.guild.GuildID)
	if err != nil {
		slog.Warn("failed to count utterance history", "guild_id", c.guild.GuildID, "error", err)
	}

	slog.Info("session ready",
		"guild_id", c.guild.GuildID,
		"restored_users", len(users),
		"utterances_spoken", spoken)
	return nil
}

func (c *Coordinator) handleMessage(ctx context.Context, ev discord.MessageEvent) error {
	// One token can technically see several guilds; this session only
	// serves its configured one.
	if ev.GuildID != c.guild.GuildID {
		return nil
	}

	switch {
	case ev.Content == helpCommand:
		c.handleHelp(ev)
		return nil
	case ev.Content == disableCommand:
		c.handleDisable(ctx, ev)
		return nil
	case enableTargetPattern.MatchString(ev.Content):
		c.handleEnable(ctx, ev)
		return nil
	}
	return c.handleSpeech(ctx, ev)
}

func (c *Coordinator) handleHelp(ev discord.MessageEvent) {
	if err := ev.Reply(helpMessage); err != nil {
		slog.Warn("failed to send help message", "guild_id", c.guild.GuildID, "error", err)
	}
}

func (c *Coordinator) handleEnable(ctx context.Context, ev discord.MessageEvent) {
	target := ev.AuthorID
	if m := enableTargetPattern.FindStringSubmatch(ev.Content); m[1] != "" {
		target = m[1]
	}
	c.members.Refresh(target, membershipTTL)
	c.persistAndReact(ctx, ev)
	slog.Info("speech enabled", "guild_id", c.guild.GuildID, "user_id", target, "by", ev.AuthorID)
}

func (c *Coordinator) handleDisable(ctx context.Context, ev discord.MessageEvent) {
	c.members.Revoke(ev.AuthorID)
	c.persistAndReact(ctx, ev)
	slog.Info("speech disabled", "guild_id", c.guild.GuildID, "user_id", ev.AuthorID)
}

// persistAndReact saves the membership snapshot and acknowledges the
// command. The in-memory change sticks even when persistence fails; the
// user just sees the failure reaction.
func (c *Coordinator) persistAndReact(ctx context.Context, ev discord.MessageEvent) {
	if err := c.store.Save(ctx, c.members.Snapshot()); err != nil {
		slog.Error("failed to persist membership snapshot", "guild_id", c.guild.GuildID, "error", err)
		c.react(ev, reactionFailure)
		return
	}
	c.react(ev, reactionSuccess)
}

// handleSpeech runs an ordinary message through the speech pipeline.
// Speaking refreshes the author's membership entry even when they are
// not currently opted in, but audio plays (and the snapshot persists)
// only when the entry was live before the refresh.
func (c *Coordinator) handleSpeech(ctx context.Context, ev discord.MessageEvent) error {
	// Any ordinary message pushes the author's TTL forward, filtered or
	// not; only the playback decision depends on the pre-refresh state.
	wasActive := c.members.IsActive(ev.AuthorID)
	c.members.Refresh(ev.AuthorID, membershipTTL)
	if !wasActive {
		return nil
	}

	if !filter.Eligible(ev.Content) {
		return nil
	}

	conn, err := c.client.JoinVoiceChannel(c.guild.GuildID, c.guild.ChannelID)
	if err != nil {
		c.react(ev, reactionFailure)
		var joinErr *discord.JoinError
		if errors.As(err, &joinErr) && !joinErr.Permanent {
			// Driver failure: the voice stack is wedged, restart the
			// whole session.
			return fmt.Errorf("join voice channel: %w", err)
		}
		slog.Error("voice join failed permanently; dropping utterance",
			"guild_id", c.guild.GuildID, "channel_id", c.guild.ChannelID, "error", err)
		return nil
	}

	// A new utterance always preempts whatever is still playing.
	conn.Stop()

	var artifact synth.Artifact
	supply := func(ctx context.Context) (audio.PCMSource, error) {
		a, err := c.synthCache.GetOrSynthesize(ctx, ev.Content)
		if err != nil {
			return nil, err
		}
		artifact = a
		return c.decoder.Open(ctx, a.Path)
	}

	if err := c.controller.PlayWithRetry(ctx, conn, supply); err != nil {
		c.react(ev, reactionFailure)
		slog.Error("playback failed", "guild_id", c.guild.GuildID, "user_id", ev.AuthorID, "error", err)
		c.removeArtifact(artifact.Path)
		return nil
	}

	c.recordUtterance(ctx, ev, artifact)
	if err := c.store.Save(ctx, c.members.Snapshot()); err != nil {
		slog.Error("failed to persist membership snapshot", "guild_id", c.guild.GuildID, "error", err)
	}
	c.removeArtifact(artifact.Path)
	return nil
}

// recordUtterance appends to the optional history log; failures never
// block the speech path.
func (c *Coordinator) recordUtterance(ctx context.Context, ev discord.MessageEvent, artifact synth.Artifact) {
	err := c.repo.InsertUtterance(ctx, repository.InsertUtteranceInput{
		GuildID:     ev.GuildID,
		UserID:      ev.AuthorID,
		Fingerprint: artifact.Fingerprint,
		Content:     ev.Content,
		SpokenAt:    time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record utterance", "guild_id", c.guild.GuildID, "error", err)
	}
}

// removeArtifact drops the synthesized audio once the send is over; the
// cache is a per-send dedup buffer, not a durable store.
func (c *Coordinator) removeArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove synthesis artifact", "path", path, "error", err)
	}
}

func (c *Coordinator) react(ev discord.MessageEvent, emoji string) {
	if err := ev.React(emoji); err != nil {
		slog.Warn("failed to add reaction", "guild_id", c.guild.GuildID, "emoji", emoji, "error", err)
	}
}
