package config

import (
	"fmt"
	"strings"
)

const (
	SynthEngineCommand    = "command"
	SynthEngineCloudTTS   = "cloudtts"
	SynthEngineGTranslate = "gtranslate"
)

// GuildConfig is one independent deployment unit: one server, one voice
// channel, one cache directory.
type GuildConfig struct {
	Token     string `json:"token"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	CacheDir  string `json:"cache_dir"`
}

type Config struct {
	Env             string
	GuildConfigPath string
	DatabaseURL     string

	SynthEngine                string
	SynthCommand               string
	SynthLanguage              string
	GoogleCloudCredentialsJSON string
	GoogleCloudVoiceName       string

	Guilds []GuildConfig
}

func (c *Config) Validate() error {
	switch c.SynthEngine {
	case SynthEngineCommand:
		if strings.TrimSpace(c.SynthCommand) == "" {
			return fmt.Errorf("SYNTH_COMMAND is required when SYNTH_ENGINE=command")
		}
	case SynthEngineCloudTTS:
		if c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_CREDENTIALS_JSON is required when SYNTH_ENGINE=cloudtts")
		}
	case SynthEngineGTranslate:
	default:
		return fmt.Errorf("SYNTH_ENGINE must be one of command, cloudtts, gtranslate; got %q", c.SynthEngine)
	}
	if len(c.Guilds) == 0 {
		return fmt.Errorf("at least one guild entry is required in %s", c.GuildConfigPath)
	}
	for i, g := range c.Guilds {
		if err := g.validate(); err != nil {
			return fmt.Errorf("guild entry %d: %w", i, err)
		}
	}
	return nil
}

func (g *GuildConfig) validate() error {
	for _, req := range []struct {
		name  string
		value string
	}{
		{name: "token", value: g.Token},
		{name: "guild_id", value: g.GuildID},
		{name: "channel_id", value: g.ChannelID},
		{name: "cache_dir", value: g.CacheDir},
	} {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
