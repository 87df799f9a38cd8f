package converter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

// transcode converts a container Go cannot decode natively into canonical
// mono WAV with ffmpeg and decodes the result.
func (n *normalizer) transcode(ctx context.Context, dir string, raw []byte, format audioFormat) (pcm, error) {
	if _, err := exec.LookPath(n.ffmpegPath); err != nil {
		return pcm{}, fmt.Errorf("%w: looking for `ffmpeg` to decode %s: %v", domain.ErrDecode, format, err)
	}

	name := uuid.NewString()
	inputPath := filepath.Join(dir, name+"."+string(format))
	outputPath := filepath.Join(dir, name+".wav")

	if err := os.WriteFile(inputPath, raw, 0o600); err != nil {
		return pcm{}, fmt.Errorf("writing audio input: %w", err)
	}

	slog.DebugContext(ctx, "Converting audio with ffmpeg...", "format", format, "inputPath", inputPath)

	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outputPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return pcm{}, fmt.Errorf("%w: running `ffmpeg`: %v: %s", domain.ErrDecode, err, strings.TrimSpace(string(output)))
	}

	converted, err := os.ReadFile(outputPath)
	if err != nil {
		return pcm{}, fmt.Errorf("%w: reading ffmpeg output: %v", domain.ErrDecode, err)
	}

	slog.DebugContext(ctx, "Conversion successful", "outputPath", outputPath)

	return decodeWAV(converted)
}
