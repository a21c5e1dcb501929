package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/foxseedlab/yomiagen/internal/audio"
)

// FFmpegDecoder shells out to ffmpeg to turn any synthesized artifact
// (aiff/wav/mp3) into 48kHz stereo s16le PCM. The whole clip is decoded
// into memory up front; announcement utterances are a few seconds long.
type FFmpegDecoder struct {
	binary string
}

func NewFFmpegDecoder() audio.Decoder {
	return &FFmpegDecoder{binary: "ffmpeg"}
}

func (d *FFmpegDecoder) Open(ctx context.Context, path string) (audio.PCMSource, error) {
	cmd := exec.CommandContext(ctx, d.binary,
		"-i", path,
		"-f", "s16le",
		"-ac", strconv.Itoa(audio.Channels),
		"-ar", strconv.Itoa(audio.SampleRate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w (%s)", path, err, lastLine(stderr.String()))
	}
	return newBufferSource(stdout.Bytes()), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}

// bufferSource serves an in-memory PCM clip as whole 20ms frames,
// zero-padding the tail so the final frame is still full length.
type bufferSource struct {
	samples []int16
	offset  int
}

func newBufferSource(raw []byte) *bufferSource {
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return &bufferSource{samples: samples}
}

func (s *bufferSource) ReadFrame(buf []int16) (int, error) {
	if s.offset >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.offset:])
	s.offset += n
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return len(buf), nil
}

func (s *bufferSource) Close() error {
	s.samples = nil
	return nil
}
