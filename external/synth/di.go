package synth

import (
	"fmt"

	"github.com/foxseedlab/yomiagen/internal/config"
	"github.com/foxseedlab/yomiagen/internal/synth"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (synth.Synthesizer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		switch cfg.SynthEngine {
		case config.SynthEngineCommand:
			return NewCommandSynthesizer(cfg.SynthCommand)
		case config.SynthEngineCloudTTS:
			return NewCloudTTSSynthesizer(CloudTTSConfig{
				CredentialsJSON: cfg.GoogleCloudCredentialsJSON,
				LanguageCode:    cfg.SynthLanguage,
				VoiceName:       cfg.GoogleCloudVoiceName,
			}), nil
		case config.SynthEngineGTranslate:
			return NewGTranslateSynthesizer(cfg.SynthLanguage), nil
		default:
			return nil, fmt.Errorf("unknown synthesis engine %q", cfg.SynthEngine)
		}
	})
}
