package converter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

type SpeechRecognizer interface {
	Recognize(ctx context.Context, filePath string) (string, error)
}

type transcriber struct {
	recognizer       SpeechRecognizer
	silenceThreshold float64
}

// NewTranscriber creates a transcriber. Waveforms whose RMS level is below
// silenceThreshold are rejected without calling the recognizer.
func NewTranscriber(recognizer SpeechRecognizer, silenceThreshold float64) *transcriber {
	return &transcriber{
		recognizer:       recognizer,
		silenceThreshold: silenceThreshold,
	}
}

func (t *transcriber) Transcribe(ctx context.Context, waveform *Waveform) (string, error) {
	if waveform == nil {
		return "", fmt.Errorf("%w: no waveform", domain.ErrInvalidInput)
	}

	if waveform.RMS < t.silenceThreshold {
		slog.DebugContext(ctx, "Skipping silent audio", "rms", waveform.RMS, "threshold", t.silenceThreshold)
		return "", fmt.Errorf("%w: audio is silent", domain.ErrUnintelligibleAudio)
	}

	text, err := t.recognizer.Recognize(ctx, waveform.Path)
	if err != nil {
		return "", fmt.Errorf("%w: transcribing audio file: %w", domain.ErrServiceUnavailable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", domain.ErrUnintelligibleAudio)
	}

	return text, nil
}
