package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerWritesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	opts := *DefaultOptions
	opts.NoColor = true
	log := slog.New(NewHandler(&buf, &opts))

	ctx := ContextWithRequestID(context.Background(), 1234)
	ctx = ContextWithSessionID(ctx, "0f8fad5b-d9cb-469f-a165-70867728950e")

	log.ErrorContext(ctx, "turn failed", Err(errors.New("boom")), "chatID", 42)

	line := buf.String()
	for _, want := range []string{"1234 ", "0f8fad5b ", "ERROR", "turn failed", "err=boom", "chatID=42"} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "\x1b[") {
		t.Errorf("expected colors to be stripped, got %q", line)
	}
}

func TestHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	opts := *DefaultOptions
	opts.Level = slog.LevelWarn
	log := slog.New(NewHandler(&buf, &opts))

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestErrNil(t *testing.T) {
	if attr := Err(nil); !attr.Equal(slog.Attr{}) {
		t.Errorf("expected an empty attr for nil error, got %v", attr)
	}
}
