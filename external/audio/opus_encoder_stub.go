//go:build !opus

package audio

import "github.com/foxseedlab/yomiagen/internal/audio"

// Without the opus build tag (and libopus headers) encoding is a
// silent no-op: tracks run through their lifecycle but transmit
// nothing.
type noopEncoder struct{}

func NewOpusEncoder() (audio.Encoder, error) {
	return &noopEncoder{}, nil
}

func (e *noopEncoder) Encode(_ []int16) ([]byte, error) {
	return nil, nil
}
