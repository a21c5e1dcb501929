package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/yomiagen/external/audio"
	configloader "github.com/foxseedlab/yomiagen/external/config"
	discordimpl "github.com/foxseedlab/yomiagen/external/discord"
	repositoryimpl "github.com/foxseedlab/yomiagen/external/repository"
	storeimpl "github.com/foxseedlab/yomiagen/external/store"
	synthimpl "github.com/foxseedlab/yomiagen/external/synth"
	"github.com/foxseedlab/yomiagen/internal/config"
	"github.com/foxseedlab/yomiagen/internal/session"
	"github.com/samber/do/v2"
)

const (
	restartBackoffInitial = 1 * time.Second
	restartBackoffMax     = 60 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "guilds", len(cfg.Guilds))

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching sessions")
	runSessions(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	discordimpl.RegisterDI(injector)
	synthimpl.RegisterDI(injector)
	storeimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func runSessions(cfg *config.Config, injector do.Injector) {
	newSession, err := do.Invoke[session.Factory](injector)
	if err != nil {
		slog.Error("failed to resolve session factory", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, guild := range cfg.Guilds {
		if err := os.MkdirAll(guild.CacheDir, 0o755); err != nil {
			slog.Error("failed to create cache directory", "cache_dir", guild.CacheDir, "error", err)
			os.Exit(1)
		}

		wg.Add(1)
		go func(guild config.GuildConfig) {
			defer wg.Done()
			superviseSession(ctx, newSession, guild)
		}(guild)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	wg.Wait()
}

// superviseSession restarts a community session whenever it exits with
// an error, backing off between attempts. A clean run resets the
// backoff.
func superviseSession(ctx context.Context, newSession session.Factory, guild config.GuildConfig) {
	backoff := restartBackoffInitial
	for {
		started := time.Now()
		err := newSession(guild).Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if time.Since(started) > restartBackoffMax {
			backoff = restartBackoffInitial
		}

		slog.Error("session exited; restarting", "guild_id", guild.GuildID, "backoff", backoff.String(), "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, restartBackoffMax)
	}
}
