package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/foxseedlab/yomiagen/internal/config"
	"github.com/foxseedlab/yomiagen/internal/discord"
	"github.com/foxseedlab/yomiagen/internal/membership"
	"github.com/foxseedlab/yomiagen/internal/playback"
	"github.com/foxseedlab/yomiagen/internal/repository"
	"github.com/foxseedlab/yomiagen/internal/synth"
)

type mockClient struct {
	presence  string
	joinCalls int
	joinConn  discord.VoiceConnection
	joinErr   error
}

func (m *mockClient) Connect(_ context.Context) error                     { return nil }
func (m *mockClient) Close() error                                        { return nil }
func (m *mockClient) RegisterReadyHandler(_ func())                       {}
func (m *mockClient) RegisterMessageHandler(_ func(discord.MessageEvent)) {}

func (m *mockClient) SetPresence(activity string) error {
	m.presence = activity
	return nil
}

func (m *mockClient) JoinVoiceChannel(_, _ string) (discord.VoiceConnection, error) {
	m.joinCalls++
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	return m.joinConn, nil
}

type mockTrack struct {
	volume float64
	state  discord.TrackState
}

func (m *mockTrack) SetVolume(v float64)       { m.volume = v }
func (m *mockTrack) Start() error              { return nil }
func (m *mockTrack) State() discord.TrackState { return m.state }
func (m *mockTrack) Stop()                     {}

type mockConn struct {
	stops  int
	plays  int
	track  *mockTrack
	played []audio.PCMSource
}

func (m *mockConn) Stop() { m.stops++ }

func (m *mockConn) Play(source audio.PCMSource) discord.Track {
	m.plays++
	m.played = append(m.played, source)
	return m.track
}

func (m *mockConn) Disconnect() error { return nil }

type mockStore struct {
	users   []string
	saves   int
	loadErr error
	saveErr error
}

func (m *mockStore) Load(_ context.Context) ([]string, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.users, nil
}

func (m *mockStore) Save(_ context.Context, userIDs []string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.users = userIDs
	return nil
}

type mockRepository struct {
	inserts []repository.InsertUtteranceInput
	count   int64
}

func (m *mockRepository) InsertUtterance(_ context.Context, input repository.InsertUtteranceInput) error {
	m.inserts = append(m.inserts, input)
	return nil
}

func (m *mockRepository) CountUtterancesByGuild(_ context.Context, _ string) (int64, error) {
	return m.count, nil
}

type writeFileSynthesizer struct {
	calls int
	fail  bool
}

func (s *writeFileSynthesizer) Synthesize(_ context.Context, text, destPath string) error {
	s.calls++
	if s.fail {
		return errors.New("engine crashed")
	}
	return os.WriteFile(destPath, []byte(text), 0o644)
}

func (s *writeFileSynthesizer) FileExtension() string { return ".aiff" }

type stubSource struct{}

func (stubSource) ReadFrame(_ []int16) (int, error) { return 0, nil }
func (stubSource) Close() error                     { return nil }

type recordingDecoder struct {
	opened []string
}

func (d *recordingDecoder) Open(_ context.Context, path string) (audio.PCMSource, error) {
	d.opened = append(d.opened, path)
	return stubSource{}, nil
}

type fixture struct {
	coordinator *Coordinator
	client      *mockClient
	conn        *mockConn
	track       *mockTrack
	store       *mockStore
	repo        *mockRepository
	decoder     *recordingDecoder
	synthesizer *writeFileSynthesizer
	clock       *fakeClock
	cacheDir    string
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}
	track := &mockTrack{state: discord.TrackPlaying}
	conn := &mockConn{track: track}
	client := &mockClient{joinConn: conn}
	st := &mockStore{}
	repo := &mockRepository{}
	decoder := &recordingDecoder{}
	synthesizer := &writeFileSynthesizer{}
	cacheDir := t.TempDir()

	coordinator := NewCoordinator(Deps{
		Guild: config.GuildConfig{
			Token:     "token",
			GuildID:   "guild-1",
			ChannelID: "voice-1",
			CacheDir:  cacheDir,
		},
		Client:     client,
		Members:    membership.NewCacheWithClock(clock.Now),
		SynthCache: synth.NewCache(cacheDir, synthesizer),
		Decoder:    decoder,
		Controller: playback.NewController(),
		Store:      st,
		Repository: repo,
	})

	return &fixture{
		coordinator: coordinator,
		client:      client,
		conn:        conn,
		track:       track,
		store:       st,
		repo:        repo,
		decoder:     decoder,
		synthesizer: synthesizer,
		clock:       clock,
		cacheDir:    cacheDir,
	}
}

func (f *fixture) message(authorID, content string) (discord.MessageEvent, *[]string) {
	var reactions []string
	ev := discord.MessageEvent{
		GuildID:   "guild-1",
		ChannelID: "text-1",
		MessageID: "m1",
		AuthorID:  authorID,
		Content:   content,
		Reply:     func(_ string) error { return nil },
		React: func(emoji string) error {
			reactions = append(reactions, emoji)
			return nil
		},
	}
	return ev, &reactions
}

func TestEnableCommandPersistsAndAcknowledges(t *testing.T) {
	f := newFixture(t)
	ev, reactions := f.message("user-a", "> sayEnable")

	if err := f.coordinator.handleMessage(context.Background(), ev); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if !reflect.DeepEqual(*reactions, []string{"✅"}) {
		t.Errorf("reactions = %v, want [✅]", *reactions)
	}
	if !reflect.DeepEqual(f.store.users, []string{"user-a"}) {
		t.Errorf("persisted users = %v, want [user-a]", f.store.users)
	}
}

func TestEnableCommandWithTargetMention(t *testing.T) {
	f := newFixture(t)
	ev, reactions := f.message("user-a", "> sayEnable <@123456>")

	if err := f.coordinator.handleMessage(context.Background(), ev); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if !reflect.DeepEqual(*reactions, []string{"✅"}) {
		t.Errorf("reactions = %v, want [✅]", *reactions)
	}
	if !reflect.DeepEqual(f.store.users, []string{"123456"}) {
		t.Errorf("persisted users = %v, want [123456]", f.store.users)
	}
}

func TestDisableCommandRevokesAndPersists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	disable, reactions := f.message("user-a", "> sayDisable")
	if err := f.coordinator.handleMessage(ctx, disable); err != nil {
		t.Fatalf("disable: %v", err)
	}

	if !reflect.DeepEqual(*reactions, []string{"✅"}) {
		t.Errorf("reactions = %v, want [✅]", *reactions)
	}
	if len(f.store.users) != 0 {
		t.Errorf("persisted users = %v, want empty", f.store.users)
	}
	if f.conn.plays != 0 {
		t.Errorf("plays = %d, want 0", f.conn.plays)
	}
}

func TestSpeechFromActiveUserPlaysAndCleansUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	speech, reactions := f.message("user-a", "こんにちは")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("speech: %v", err)
	}

	if f.client.joinCalls != 1 {
		t.Errorf("joinCalls = %d, want 1", f.client.joinCalls)
	}
	if f.conn.stops != 1 {
		t.Errorf("stops = %d, want 1", f.conn.stops)
	}
	if f.conn.plays != 1 {
		t.Errorf("plays = %d, want 1", f.conn.plays)
	}
	if f.track.volume != 0.15 {
		t.Errorf("track volume = %v, want 0.15", f.track.volume)
	}
	if len(*reactions) != 0 {
		t.Errorf("reactions = %v, want none", *reactions)
	}
	if f.synthesizer.calls != 1 {
		t.Errorf("synthesizer calls = %d, want 1", f.synthesizer.calls)
	}
	if len(f.repo.inserts) != 1 {
		t.Fatalf("utterance inserts = %d, want 1", len(f.repo.inserts))
	}
	if got := f.repo.inserts[0].Content; got != "こんにちは" {
		t.Errorf("recorded content = %q", got)
	}

	// The artifact is a per-send dedup buffer and must be gone afterwards.
	entries, err := os.ReadDir(f.cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".aiff" {
			t.Errorf("artifact %s was not removed", e.Name())
		}
	}
}

func TestSpeechFromInactiveUserIsSilent(t *testing.T) {
	f := newFixture(t)
	ev, reactions := f.message("user-b", "こんにちは")

	if err := f.coordinator.handleMessage(context.Background(), ev); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}

	if f.client.joinCalls != 0 {
		t.Errorf("joinCalls = %d, want 0", f.client.joinCalls)
	}
	if f.store.saves != 0 {
		t.Errorf("snapshot saves = %d, want 0", f.store.saves)
	}
	if len(*reactions) != 0 {
		t.Errorf("reactions = %v, want none", *reactions)
	}
}

func TestSpeechRefreshesMembershipEvenWhenInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.message("user-b", "ひとこと目")
	if err := f.coordinator.handleMessage(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}
	if f.conn.plays != 0 {
		t.Fatalf("first message played; want silent")
	}

	second, _ := f.message("user-b", "ふたこと目")
	if err := f.coordinator.handleMessage(ctx, second); err != nil {
		t.Fatalf("second: %v", err)
	}
	if f.conn.plays != 1 {
		t.Errorf("plays = %d, want 1 after the entry was created by the first message", f.conn.plays)
	}
}

func TestMembershipExpiresAfterTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	f.clock.advance(4*time.Hour + time.Second)

	speech, _ := f.message("user-a", "まだ聞こえますか")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("speech: %v", err)
	}
	if f.conn.plays != 0 {
		t.Errorf("plays = %d, want 0 after expiry", f.conn.plays)
	}
}

func TestFilteredMessageRefreshesButDoesNotPlay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	f.clock.advance(3 * time.Hour)

	link, _ := f.message("user-a", "見て https://example.com/a")
	if err := f.coordinator.handleMessage(ctx, link); err != nil {
		t.Fatalf("link: %v", err)
	}
	if f.conn.plays != 0 {
		t.Fatalf("filtered message played")
	}

	// 3h + 2h crosses the original deadline; the filtered message must
	// have pushed it forward.
	f.clock.advance(2 * time.Hour)

	speech, _ := f.message("user-a", "まだ有効のはず")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("speech: %v", err)
	}
	if f.conn.plays != 1 {
		t.Errorf("plays = %d, want 1", f.conn.plays)
	}
}

func TestSynthesisFailureReactsWithFailure(t *testing.T) {
	f := newFixture(t)
	f.synthesizer.fail = true
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	speech, reactions := f.message("user-a", "うまくいかない")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("speech: %v", err)
	}

	if !reflect.DeepEqual(*reactions, []string{"❌"}) {
		t.Errorf("reactions = %v, want [❌]", *reactions)
	}
	if len(f.repo.inserts) != 0 {
		t.Errorf("utterance inserts = %d, want 0", len(f.repo.inserts))
	}
}

func TestTransientJoinFailureRestartsSession(t *testing.T) {
	f := newFixture(t)
	f.client.joinErr = &discord.JoinError{Err: errors.New("handshake timeout"), Permanent: false}
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	speech, reactions := f.message("user-a", "つながらない")
	err := f.coordinator.handleMessage(ctx, speech)
	if err == nil {
		t.Fatal("handleMessage() = nil, want restart error for transient join failure")
	}
	if !reflect.DeepEqual(*reactions, []string{"❌"}) {
		t.Errorf("reactions = %v, want [❌]", *reactions)
	}
}

func TestPermanentJoinFailureDropsUtterance(t *testing.T) {
	f := newFixture(t)
	f.client.joinErr = &discord.JoinError{Err: errors.New("missing permissions"), Permanent: true}
	ctx := context.Background()

	enable, _ := f.message("user-a", "> sayEnable")
	if err := f.coordinator.handleMessage(ctx, enable); err != nil {
		t.Fatalf("enable: %v", err)
	}

	speech, reactions := f.message("user-a", "入れない")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("handleMessage() error = %v, want nil for permanent join failure", err)
	}
	if !reflect.DeepEqual(*reactions, []string{"❌"}) {
		t.Errorf("reactions = %v, want [❌]", *reactions)
	}
}

func TestMessageFromOtherGuildIsIgnored(t *testing.T) {
	f := newFixture(t)
	ev, reactions := f.message("user-a", "> sayEnable")
	ev.GuildID = "guild-2"

	if err := f.coordinator.handleMessage(context.Background(), ev); err != nil {
		t.Fatalf("handleMessage() error = %v", err)
	}
	if len(*reactions) != 0 {
		t.Errorf("reactions = %v, want none", *reactions)
	}
	if f.store.saves != 0 {
		t.Errorf("snapshot saves = %d, want 0", f.store.saves)
	}
}

func TestBootstrapRestoresSnapshotWithFullTTL(t *testing.T) {
	f := newFixture(t)
	f.store.users = []string{"user-a", "user-c"}
	ctx := context.Background()

	if err := f.coordinator.bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap() error = %v", err)
	}

	if f.client.presence != "> help" {
		t.Errorf("presence = %q, want %q", f.client.presence, "> help")
	}

	speech, _ := f.message("user-a", "ただいま")
	if err := f.coordinator.handleMessage(ctx, speech); err != nil {
		t.Fatalf("speech: %v", err)
	}
	if f.conn.plays != 1 {
		t.Errorf("plays = %d, want 1 for restored user", f.conn.plays)
	}
}

func TestBootstrapFailsOnMalformedSnapshot(t *testing.T) {
	f := newFixture(t)
	f.store.loadErr = errors.New("unexpected end of JSON input")

	if err := f.coordinator.bootstrap(context.Background()); err == nil {
		t.Fatal("bootstrap() = nil, want error for unreadable snapshot")
	}
}
