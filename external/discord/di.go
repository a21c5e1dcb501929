package discord

import (
	"github.com/foxseedlab/yomiagen/internal/audio"
	discordpkg "github.com/foxseedlab/yomiagen/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (discordpkg.ClientFactory, error) {
		newEncoder := do.MustInvoke[audio.EncoderFactory](i)
		return func(token string) discordpkg.Client {
			return NewClient(token, newEncoder)
		}, nil
	})
}
