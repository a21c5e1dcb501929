package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/yomiagen/internal/synth"
	htgotts "github.com/hegedustibor/htgo-tts"
)

// GTranslateSynthesizer uses the Google Translate speech endpoint via
// htgo-tts. No credentials required; quality and rate limits are what
// they are, which makes it the zero-setup fallback engine.
type GTranslateSynthesizer struct {
	language string
	create   func(folder, language, text string) (string, error)
}

func NewGTranslateSynthesizer(language string) synth.Synthesizer {
	// htgo-tts expects a bare language tag like "ja", not a BCP-47
	// locale like "ja-JP".
	if i := strings.IndexByte(language, '-'); i > 0 {
		language = language[:i]
	}
	return &GTranslateSynthesizer{
		language: strings.ToLower(language),
		create:   createSpeechFile,
	}
}

func createSpeechFile(folder, language, text string) (string, error) {
	speech := htgotts.Speech{Folder: folder, Language: language}
	return speech.CreateSpeechFile(text, "utterance")
}

func (s *GTranslateSynthesizer) Synthesize(ctx context.Context, text, destPath string) error {
	// htgo-tts picks its own output location under Folder, so generate
	// into a scratch dir and move the result to the requested path.
	scratch, err := os.MkdirTemp(filepath.Dir(destPath), "gtts-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}

	type result struct {
		path string
		err  error
	}
	results := make(chan result)

	// htgo-tts fetches the endpoint with a plain http.Get and has no
	// cancellation path, so the call runs in a worker that is abandoned
	// when the deadline fires. An abandoned worker only ever touches the
	// scratch dir and removes it itself.
	go func() {
		generated, err := s.create(scratch, s.language, text)
		select {
		case results <- result{path: generated, err: err}:
		default:
			_ = os.RemoveAll(scratch)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-results:
		defer func() {
			_ = os.RemoveAll(scratch)
		}()
		if r.err != nil {
			return fmt.Errorf("gtranslate synthesis: %w", r.err)
		}
		if err := os.Rename(r.path, destPath); err != nil {
			return fmt.Errorf("move synthesized file: %w", err)
		}
		return nil
	}
}

func (s *GTranslateSynthesizer) FileExtension() string {
	return ".mp3"
}
