package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Token: "test-token", BaseURL: srv.URL + "/v1/"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func completion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"model": "test-model",
		"choices": []map[string]any{
			{"index": 0, "message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(body)
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Error("expected an error for an empty token")
	}
}

func TestInferImageRequest(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type     string `json:"type"`
				Text     string `json:"text"`
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"content"`
		} `json:"messages"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(w, completion("  Primary Diagnosis: Mild dermatitis  "))
	})

	img := domain.NewImageRef([]byte{0xFF, 0xD8, 0xFF}, "image/jpeg")
	answer, err := c.Infer(context.Background(), domain.ModelRequest{
		Kind:   domain.TurnKindInitial,
		Model:  "vision-model",
		Prompt: "Analyze this.",
		Image:  &img,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if answer != "Primary Diagnosis: Mild dermatitis" {
		t.Errorf("unexpected answer %q", answer)
	}
	if got.Model != "vision-model" {
		t.Errorf("unexpected model %q", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Fatalf("expected a single user message, got %+v", got.Messages)
	}
	parts := got.Messages[0].Content
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %d", len(parts))
	}
	if parts[0].Type != "text" || parts[0].Text != "Analyze this." {
		t.Errorf("unexpected text part %+v", parts[0])
	}
	if parts[1].Type != "image_url" || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
		t.Errorf("unexpected image part %+v", parts[1])
	}
}

func TestInferTextRequest(t *testing.T) {
	var got struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		io.WriteString(w, completion("Eczema is a skin condition."))
	})

	_, err := c.Infer(context.Background(), domain.ModelRequest{Model: "text-model", Prompt: "What is eczema?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "What is eczema?" {
		t.Errorf("expected plain string content, got %+v", got.Messages)
	}
}

func TestInferErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		limited bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, false},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, true},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"empty answer", http.StatusOK, completion("   "), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := c.Infer(context.Background(), domain.ModelRequest{Model: "m", Prompt: "p"})
			if !errors.Is(err, domain.ErrInference) {
				t.Errorf("expected ErrInference, got %v", err)
			}
			if IsRateLimited(err) != tt.limited {
				t.Errorf("IsRateLimited() = %v, want %v", !tt.limited, tt.limited)
			}
		})
	}
}

func TestRecognize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("unexpected model %q", model)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"Is this contagious?"}`)
	})

	path := filepath.Join(t.TempDir(), "question.wav")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}

	text, err := c.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Is this contagious?" {
		t.Errorf("unexpected transcript %q", text)
	}
}

func TestSpeak(t *testing.T) {
	var got struct {
		Model          string `json:"model"`
		Input          string `json:"input"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		io.WriteString(w, "mp3-bytes")
	})

	stream, err := c.Speak(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("unexpected audio %q", data)
	}
	if got.Input != "Hello there." || got.Model != "tts-1" || got.Voice != "alloy" || got.ResponseFormat != "mp3" {
		t.Errorf("unexpected speech request %+v", got)
	}
}
