package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Env:          "production",
		SynthEngine:  SynthEngineCommand,
		SynthCommand: "say {text} -o {output}",
		Guilds: []GuildConfig{
			{
				Token:     "token",
				GuildID:   "1",
				ChannelID: "2",
				CacheDir:  "./cache/1",
			},
		},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateEngineRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "command engine without command",
			mutate:  func(c *Config) { c.SynthCommand = " " },
			wantErr: "SYNTH_COMMAND",
		},
		{
			name: "cloudtts engine without credentials",
			mutate: func(c *Config) {
				c.SynthEngine = SynthEngineCloudTTS
				c.GoogleCloudCredentialsJSON = ""
			},
			wantErr: "GOOGLE_CLOUD_CREDENTIALS_JSON",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.SynthEngine = "espeak" },
			wantErr: "SYNTH_ENGINE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidateGTranslateNeedsNoCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.SynthEngine = SynthEngineGTranslate
	cfg.SynthCommand = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRequiresGuildEntries(t *testing.T) {
	cfg := validConfig()
	cfg.Guilds = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for empty guild list")
	}
}

func TestValidateGuildEntryFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GuildConfig)
	}{
		{"missing token", func(g *GuildConfig) { g.Token = "" }},
		{"missing guild id", func(g *GuildConfig) { g.GuildID = "" }},
		{"missing channel id", func(g *GuildConfig) { g.ChannelID = "" }},
		{"missing cache dir", func(g *GuildConfig) { g.CacheDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Guilds[0])
			if err := cfg.Validate(); err == nil {
				t.Fatal("Validate() = nil, want error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := validConfig()
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true for production")
	}
	cfg.Env = "development"
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false for development")
	}
}
