package synth

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/auth/credentials"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/foxseedlab/yomiagen/internal/audio"
	"github.com/foxseedlab/yomiagen/internal/synth"
	"google.golang.org/api/option"
)

type CloudTTSConfig struct {
	CredentialsJSON string
	LanguageCode    string
	VoiceName       string
}

// CloudTTSSynthesizer uses Google Cloud Text-to-Speech, producing
// LINEAR16 WAV at the voice pipeline's native sample rate.
type CloudTTSSynthesizer struct {
	credentialsJSON string
	languageCode    string
	voiceName       string
}

func NewCloudTTSSynthesizer(cfg CloudTTSConfig) synth.Synthesizer {
	return &CloudTTSSynthesizer{
		credentialsJSON: cfg.CredentialsJSON,
		languageCode:    cfg.LanguageCode,
		voiceName:       cfg.VoiceName,
	}
}

func (s *CloudTTSSynthesizer) Synthesize(ctx context.Context, text, destPath string) error {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(s.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return fmt.Errorf("detect credentials: %w", err)
	}

	client, err := texttospeech.NewClient(ctx, option.WithAuthCredentials(creds))
	if err != nil {
		return fmt.Errorf("create tts client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode,
			Name:         s.voiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: int32(audio.SampleRate),
		},
	})
	if err != nil {
		return fmt.Errorf("synthesize speech: %w", err)
	}
	if err := os.WriteFile(destPath, resp.GetAudioContent(), 0o644); err != nil {
		return fmt.Errorf("write audio content: %w", err)
	}
	slog.Debug("cloud tts synthesis finished", "voice", s.voiceName, "bytes", len(resp.GetAudioContent()), "dest", destPath)
	return nil
}

func (s *CloudTTSSynthesizer) FileExtension() string {
	return ".wav"
}
