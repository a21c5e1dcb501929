package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/foxseedlab/yomiagen/internal/synth"
)

const (
	textPlaceholder   = "{text}"
	outputPlaceholder = "{output}"
)

// CommandSynthesizer shells out to a platform speech command, e.g.
// `say {text} -o {output}` on macOS or an espeak-ng wrapper elsewhere.
type CommandSynthesizer struct {
	argv []string
	ext  string
}

func NewCommandSynthesizer(commandTemplate string) (synth.Synthesizer, error) {
	argv := strings.Fields(commandTemplate)
	if len(argv) == 0 {
		return nil, fmt.Errorf("synthesis command template is empty")
	}
	if !containsPlaceholder(argv, outputPlaceholder) {
		return nil, fmt.Errorf("synthesis command template must contain %s", outputPlaceholder)
	}
	if !containsPlaceholder(argv, textPlaceholder) {
		return nil, fmt.Errorf("synthesis command template must contain %s", textPlaceholder)
	}
	return &CommandSynthesizer{argv: argv, ext: ".aiff"}, nil
}

func (s *CommandSynthesizer) Synthesize(ctx context.Context, text, destPath string) error {
	argv := make([]string, len(s.argv))
	for i, arg := range s.argv {
		arg = strings.ReplaceAll(arg, textPlaceholder, text)
		arg = strings.ReplaceAll(arg, outputPlaceholder, destPath)
		argv[i] = arg
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("synthesis command timed out: %w", ctx.Err())
		}
		return fmt.Errorf("synthesis command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	slog.Debug("synthesis command finished", "command", argv[0], "dest", destPath)
	return nil
}

func (s *CommandSynthesizer) FileExtension() string {
	return s.ext
}

func containsPlaceholder(argv []string, placeholder string) bool {
	for _, arg := range argv {
		if strings.Contains(arg, placeholder) {
			return true
		}
	}
	return false
}
