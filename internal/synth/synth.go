package synth

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ErrSynthesisFailed wraps any synthesizer invocation failure,
// including the hard timeout.
var ErrSynthesisFailed = errors.New("synthesis failed")

const synthesizeTimeout = 6 * time.Second

// Synthesizer is the external text-to-speech engine: it takes arbitrary
// UTF-8 text and produces an audio file at destPath, or fails.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, destPath string) error
	// FileExtension is the suffix of the files this engine produces,
	// including the leading dot.
	FileExtension() string
}

// Artifact is synthesized audio for one utterance, stored at a path
// addressed by the utterance fingerprint.
type Artifact struct {
	Fingerprint uint64
	Path        string
}

// Fingerprint derives the content address of an utterance. A fast
// 64-bit hash is enough here: a collision only replays another
// utterance's cached audio.
func Fingerprint(text string) uint64 {
	return xxhash.Sum64String(text)
}

// Cache deduplicates synthesis per utterance content. It is a dedup
// buffer scoped to a single send, not a durable store; the session
// coordinator deletes artifacts after playback.
type Cache struct {
	dir   string
	synth Synthesizer
}

func NewCache(dir string, synth Synthesizer) *Cache {
	return &Cache{dir: dir, synth: synth}
}

// GetOrSynthesize returns the artifact for text, invoking the external
// synthesizer only when no artifact exists at the content-addressed
// path. A failed synthesis never leaves a file at the target path.
func (c *Cache) GetOrSynthesize(ctx context.Context, text string) (Artifact, error) {
	fp := Fingerprint(text)
	artifact := Artifact{
		Fingerprint: fp,
		Path:        filepath.Join(c.dir, fmt.Sprintf("%016x%s", fp, c.synth.FileExtension())),
	}

	if _, err := os.Stat(artifact.Path); err == nil {
		return artifact, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, fmt.Errorf("%w: stat artifact: %w", ErrSynthesisFailed, err)
	}

	// Synthesize into a sidecar path and rename into place so a timeout
	// or crash cannot poison the cache with a partial file. The sidecar
	// name carries a random suffix: two sessions sharing a cache dir may
	// synthesize identical text at once, and each must keep its own
	// partial file until its rename.
	partPath := fmt.Sprintf("%s.%08x.part", artifact.Path, rand.Uint32())
	synthCtx, cancel := context.WithTimeout(ctx, synthesizeTimeout)
	defer cancel()

	if err := c.synth.Synthesize(synthCtx, text, partPath); err != nil {
		removeIfExists(partPath)
		return Artifact{}, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	if _, err := os.Stat(partPath); err != nil {
		return Artifact{}, fmt.Errorf("%w: synthesizer produced no output: %w", ErrSynthesisFailed, err)
	}
	if err := os.Rename(partPath, artifact.Path); err != nil {
		removeIfExists(partPath)
		return Artifact{}, fmt.Errorf("%w: move artifact into place: %w", ErrSynthesisFailed, err)
	}
	return artifact, nil
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to remove partial synthesis output", "path", path, "error", err)
	}
}
