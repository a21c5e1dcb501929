package session

import (
	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/foxseedlab/yomiagen/internal/config"
	"github.com/foxseedlab/yomiagen/internal/discord"
	"github.com/foxseedlab/yomiagen/internal/membership"
	"github.com/foxseedlab/yomiagen/internal/playback"
	"github.com/foxseedlab/yomiagen/internal/repository"
	"github.com/foxseedlab/yomiagen/internal/store"
	"github.com/foxseedlab/yomiagen/internal/synth"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (Factory, error) {
		newClient := do.MustInvoke[discord.ClientFactory](i)
		newStore := do.MustInvoke[store.Factory](i)
		synthesizer := do.MustInvoke[synth.Synthesizer](i)
		decoder := do.MustInvoke[audio.Decoder](i)
		repo := do.MustInvoke[repository.Repository](i)

		return func(guild config.GuildConfig) *Coordinator {
			return NewCoordinator(Deps{
				Guild:      guild,
				Client:     newClient(guild.Token),
				Members:    membership.NewCache(),
				SynthCache: synth.NewCache(guild.CacheDir, synthesizer),
				Decoder:    decoder,
				Controller: playback.NewController(),
				Store:      newStore(guild.CacheDir),
				Repository: repo,
			})
		}, nil
	})
}
