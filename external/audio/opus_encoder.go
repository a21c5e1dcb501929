//go:build opus

package audio

import (
	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/hraban/opus"
)

const maxOpusPacketBytes = 4000

type opusEncoder struct {
	enc *opus.Encoder
	buf []byte
}

func NewOpusEncoder() (audio.Encoder, error) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	return &opusEncoder{
		enc: enc,
		buf: make([]byte, maxOpusPacketBytes),
	}, nil
}

func (e *opusEncoder) Encode(pcm []int16) ([]byte, error) {
	n, err := e.enc.Encode(pcm, e.buf)
	if err != nil {
		return nil, err
	}
	packet := make([]byte, n)
	copy(packet, e.buf[:n])
	return packet, nil
}
