package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hajimehoshi/go-mp3"

	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
)

// MaxInputLength is the longest text the speech backend accepts.
const MaxInputLength = 4096

const formatMP3 = "mp3"

type SpeechGenerator interface {
	Speak(ctx context.Context, text string) (io.ReadCloser, error)
}

type synthesizer struct {
	generator SpeechGenerator
	tempDir   string
}

// NewSynthesizer creates a synthesizer that spools audio under tempDir, or
// the system temp dir when tempDir is empty.
func NewSynthesizer(generator SpeechGenerator, tempDir string) *synthesizer {
	return &synthesizer{
		generator: generator,
		tempDir:   tempDir,
	}
}

// Synthesize sanitizes text and converts it to speech. It makes exactly one
// backend call, and none when nothing speakable is left.
func (s *synthesizer) Synthesize(ctx context.Context, text string) (*domain.Speech, error) {
	text = Truncate(Sanitize(text), MaxInputLength)
	if text == "" {
		return nil, fmt.Errorf("%w: nothing to synthesize", domain.ErrInvalidInput)
	}

	dir, err := os.MkdirTemp(s.tempDir, "speech-")
	if err != nil {
		return nil, fmt.Errorf("%w: creating temp dir: %v", domain.ErrSynthesis, err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.WarnContext(ctx, "failed to remove speech temp dir", "dir", dir, logger.Err(err))
		}
	}()

	stream, err := s.generator.Speak(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	defer stream.Close()

	path := filepath.Join(dir, uuid.NewString()+"."+formatMP3)
	if err := spool(stream, path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading speech file: %v", domain.ErrSynthesis, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio stream", domain.ErrSynthesis)
	}

	duration, err := mp3Duration(data)
	if err != nil {
		slog.DebugContext(ctx, "could not measure speech duration", logger.Err(err))
	}

	return &domain.Speech{
		Data:     data,
		Format:   formatMP3,
		Duration: duration,
	}, nil
}

func spool(r io.Reader, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating speech file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("reading speech stream: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing speech file: %w", err)
	}
	return nil
}

func mp3Duration(data []byte) (time.Duration, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("decoding mp3: %w", err)
	}

	// 16-bit stereo PCM
	n, err := io.Copy(io.Discard, dec)
	if err != nil {
		return 0, fmt.Errorf("reading mp3 frames: %w", err)
	}

	frames := n / 4
	return time.Duration(frames) * time.Second / time.Duration(dec.SampleRate()), nil
}

// Truncate shortens text to at most limit bytes, cutting after the last
// sentence end that fits or, failing that, the last word.
func Truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}

	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	cut := text[:limit]

	if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return strings.TrimSpace(cut)
}
