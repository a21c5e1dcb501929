package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/yomiagen/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env             string `env:"ENV" envDefault:"production"`
	GuildConfigPath string `env:"GUILD_CONFIG_PATH" envDefault:"./guilds.json"`
	DatabaseURL     string `env:"DATABASE_URL"`

	SynthEngine                string `env:"SYNTH_ENGINE" envDefault:"command"`
	SynthCommand               string `env:"SYNTH_COMMAND" envDefault:"say {text} -o {output}"`
	SynthLanguage              string `env:"SYNTH_LANGUAGE" envDefault:"ja-JP"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudVoiceName       string `env:"GOOGLE_CLOUD_VOICE_NAME" envDefault:"ja-JP-Neural2-B"`
}

func Load() (*internalconfig.Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	guilds, err := loadGuildEntries(raw.GuildConfigPath)
	if err != nil {
		return nil, err
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		GuildConfigPath:            raw.GuildConfigPath,
		DatabaseURL:                raw.DatabaseURL,
		SynthEngine:                raw.SynthEngine,
		SynthCommand:               raw.SynthCommand,
		SynthLanguage:              raw.SynthLanguage,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudVoiceName:       raw.GoogleCloudVoiceName,
		Guilds:                     guilds,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadGuildEntries(path string) ([]internalconfig.GuildConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild config %s: %w", path, err)
	}
	var guilds []internalconfig.GuildConfig
	if err := json.Unmarshal(b, &guilds); err != nil {
		return nil, fmt.Errorf("guild config %s is not a valid JSON array: %w", path, err)
	}
	return guilds, nil
}
