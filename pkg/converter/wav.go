package converter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// pcm holds interleaved samples scaled to the signed 16-bit range.
type pcm struct {
	samples    []int
	channels   int
	sampleRate int
}

func decodeWAV(raw []byte) (pcm, error) {
	d := wav.NewDecoder(bytes.NewReader(raw))
	if !d.IsValidFile() {
		return pcm{}, fmt.Errorf("%w: not a valid wav file", domain.ErrDecode)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return pcm{}, fmt.Errorf("%w: unsupported wav encoding %d", domain.ErrDecode, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return pcm{}, fmt.Errorf("%w: reading wav samples: %v", domain.ErrDecode, err)
	}

	samples := buf.Data
	switch d.BitDepth {
	case 8:
		for i, v := range samples {
			samples[i] = (v - 128) << 8
		}
	case 16:
	case 24:
		for i, v := range samples {
			samples[i] = v >> 8
		}
	case 32:
		for i, v := range samples {
			samples[i] = v >> 16
		}
	default:
		return pcm{}, fmt.Errorf("%w: unsupported bit depth %d", domain.ErrDecode, d.BitDepth)
	}

	return pcm{
		samples:    samples,
		channels:   int(d.NumChans),
		sampleRate: int(d.SampleRate),
	}, nil
}

func decodeMP3(raw []byte) (pcm, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(raw))
	if err != nil {
		return pcm{}, fmt.Errorf("%w: reading mp3 header: %v", domain.ErrDecode, err)
	}

	data, err := io.ReadAll(dec)
	if err != nil {
		return pcm{}, fmt.Errorf("%w: reading mp3 frames: %v", domain.ErrDecode, err)
	}

	// go-mp3 always yields 16-bit little endian stereo
	samples := make([]int, len(data)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}

	return pcm{
		samples:    samples,
		channels:   2,
		sampleRate: dec.SampleRate(),
	}, nil
}

func (p pcm) mono() []int {
	if p.channels <= 1 {
		return p.samples
	}

	out := make([]int, len(p.samples)/p.channels)
	for i := range out {
		sum := 0
		for c := 0; c < p.channels; c++ {
			sum += p.samples[i*p.channels+c]
		}
		out[i] = sum / p.channels
	}
	return out
}

func resampleLinear(in []int, inRate, outRate int) []int {
	if inRate == outRate || len(in) == 0 {
		return in
	}

	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen <= 1 {
		return nil
	}

	out := make([]int, outLen)
	for i := range out {
		srcPos := float64(i) / ratio
		i0 := int(math.Floor(srcPos))
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1.0-f) + float64(in[i1])*f
		out[i] = clamp16(int(math.Round(v)))
	}
	return out
}

func clamp16(v int) int {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}

// rms is the root mean square level of 16-bit samples, in [0, 1].
func rms(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}

	var acc float64
	for _, s := range samples {
		v := float64(s) / 32768
		acc += v * v
	}
	return math.Sqrt(acc / float64(len(samples)))
}

func writeWAV(path string, samples []int, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating wav file: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("writing wav samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalizing wav file: %w", err)
	}
	return f.Close()
}
