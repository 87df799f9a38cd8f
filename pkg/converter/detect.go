package converter

import (
	"path/filepath"
	"strings"
)

type audioFormat string

const (
	formatUnknown audioFormat = ""
	formatWAV     audioFormat = "wav"
	formatMP3     audioFormat = "mp3"
	formatOgg     audioFormat = "ogg"
	formatFLAC    audioFormat = "flac"
	formatWebM    audioFormat = "webm"
	formatMP4     audioFormat = "m4a"
)

// detectFormat sniffs the container from its magic bytes and falls back to
// the caller's hint (a file name, an extension or a MIME type).
func detectFormat(raw []byte, hint string) audioFormat {
	switch {
	case len(raw) >= 12 && string(raw[0:4]) == "RIFF" && string(raw[8:12]) == "WAVE":
		return formatWAV
	case len(raw) >= 4 && string(raw[0:4]) == "OggS":
		return formatOgg
	case len(raw) >= 4 && string(raw[0:4]) == "fLaC":
		return formatFLAC
	case len(raw) >= 4 && raw[0] == 0x1A && raw[1] == 0x45 && raw[2] == 0xDF && raw[3] == 0xA3:
		return formatWebM
	case len(raw) >= 8 && string(raw[4:8]) == "ftyp":
		return formatMP4
	case len(raw) >= 3 && string(raw[:3]) == "ID3":
		return formatMP3
	case len(raw) >= 2 && raw[0] == 0xFF && raw[1]&0xE0 == 0xE0:
		return formatMP3
	}

	return formatFromHint(hint)
}

func formatFromHint(hint string) audioFormat {
	h := strings.ToLower(strings.TrimSpace(hint))
	if i := strings.IndexByte(h, ';'); i >= 0 {
		h = strings.TrimSpace(h[:i])
	}
	if ext := filepath.Ext(h); ext != "" {
		h = ext
	}
	h = strings.TrimPrefix(h, ".")
	h = strings.TrimPrefix(h, "audio/")
	h = strings.TrimPrefix(h, "video/")

	switch h {
	case "wav", "wave", "x-wav", "vnd.wave":
		return formatWAV
	case "mp3", "mpeg", "mpga":
		return formatMP3
	case "ogg", "oga", "opus":
		return formatOgg
	case "flac", "x-flac":
		return formatFLAC
	case "webm":
		return formatWebM
	case "m4a", "mp4", "x-m4a", "aac":
		return formatMP4
	}
	return formatUnknown
}
