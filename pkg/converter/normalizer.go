// Package converter turns uploaded audio into a canonical waveform and
// transcribes it.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
)

// TargetSampleRate is the sample rate of every normalized waveform.
const TargetSampleRate = 16000

// Waveform is canonical mono 16-bit PCM audio stored as a WAV file. It is
// only valid inside the callback passed to Normalize.
type Waveform struct {
	Path       string
	SampleRate int
	Channels   int
	Samples    int
	Duration   time.Duration
	// RMS level in [0, 1].
	RMS float64
}

type normalizer struct {
	tempDir    string
	ffmpegPath string
}

// NewNormalizer creates a normalizer that keeps its scratch files under
// tempDir, or the system temp dir when tempDir is empty.
func NewNormalizer(tempDir string) *normalizer {
	return &normalizer{
		tempDir:    tempDir,
		ffmpegPath: "ffmpeg",
	}
}

// Normalize decodes raw audio, converts it to 16 kHz mono and hands the result
// to use. Every file created on the way is removed before Normalize returns.
func (n *normalizer) Normalize(ctx context.Context, raw []byte, hint string, use func(*Waveform) error) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty audio", domain.ErrDecode)
	}

	dir, err := os.MkdirTemp(n.tempDir, "audio-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.WarnContext(ctx, "failed to remove audio temp dir", "dir", dir, logger.Err(err))
		}
	}()

	decoded, err := n.decode(ctx, dir, raw, hint)
	if err != nil {
		return err
	}
	if decoded.channels < 1 || decoded.sampleRate < 1 {
		return fmt.Errorf("%w: invalid stream parameters", domain.ErrDecode)
	}

	samples := resampleLinear(decoded.mono(), decoded.sampleRate, TargetSampleRate)
	if len(samples) == 0 {
		return fmt.Errorf("%w: no audio samples", domain.ErrDecode)
	}

	path := filepath.Join(dir, uuid.NewString()+".wav")
	if err := writeWAV(path, samples, TargetSampleRate); err != nil {
		return fmt.Errorf("writing normalized audio: %w", err)
	}

	waveform := &Waveform{
		Path:       path,
		SampleRate: TargetSampleRate,
		Channels:   1,
		Samples:    len(samples),
		Duration:   time.Duration(len(samples)) * time.Second / TargetSampleRate,
		RMS:        rms(samples),
	}

	slog.DebugContext(ctx, "Audio normalized",
		"duration", waveform.Duration,
		"rms", waveform.RMS,
		"sourceRate", decoded.sampleRate,
		"sourceChannels", decoded.channels,
	)

	return use(waveform)
}

func (n *normalizer) decode(ctx context.Context, dir string, raw []byte, hint string) (pcm, error) {
	format := detectFormat(raw, hint)

	switch {
	case format == formatWAV:
		return decodeWAV(raw)
	case format == formatMP3:
		return decodeMP3(raw)
	case format != formatUnknown:
		return n.transcode(ctx, dir, raw, format)
	}

	return pcm{}, fmt.Errorf("%w: unrecognized audio format (hint %q)", domain.ErrDecode, hint)
}
