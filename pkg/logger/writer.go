package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewRotatingFile returns a size-rotated log file. The directory is created
// if needed.
func NewRotatingFile(path string) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}, nil
}

// Setup installs the colored handler as the default logger. When file is not
// empty, records are also written, without colors, to a rotating file. The
// returned closer releases the file.
func Setup(level slog.Level, file string) (io.Closer, error) {
	console := NewHandler(os.Stderr, withLevel(DefaultOptions, level))
	if file == "" {
		slog.SetDefault(slog.New(console))
		return nopCloser{}, nil
	}

	rotating, err := NewRotatingFile(file)
	if err != nil {
		return nil, err
	}

	plain := withLevel(DefaultOptions, level)
	plain.NoColor = true

	slog.SetDefault(slog.New(fanout{console, NewHandler(rotating, plain)}))
	return rotating, nil
}

func withLevel(opts *Options, level slog.Level) *Options {
	o := *opts
	o.Level = level
	return &o
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
