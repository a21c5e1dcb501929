package audio

import (
	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.Decoder, error) {
		return NewFFmpegDecoder(), nil
	})
	do.ProvideValue(injector, audio.EncoderFactory(func() (audio.Encoder, error) {
		return NewOpusEncoder()
	}))
}
