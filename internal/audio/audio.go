package audio

import "context"

const (
	SampleRate  = 48000
	Channels    = 2
	FrameSizeMs = 20
	// SamplesPerFrame is the number of interleaved int16 samples in one
	// 20ms stereo frame.
	SamplesPerFrame = SampleRate * FrameSizeMs * Channels / 1000
)

// PCMSource yields 48kHz stereo s16le PCM in whole 20ms frames.
type PCMSource interface {
	// ReadFrame fills buf (SamplesPerFrame samples) with the next
	// frame, returning the number of samples written; io.EOF after the
	// final frame.
	ReadFrame(buf []int16) (int, error)
	Close() error
}

// Decoder opens a synthesized audio artifact as a PCM source.
type Decoder interface {
	Open(ctx context.Context, path string) (PCMSource, error)
}

// Encoder turns one PCM frame into an opus packet.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

type EncoderFactory func() (Encoder, error)
