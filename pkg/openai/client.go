// Package openai talks to an OpenAI-compatible API for chat inference,
// speech recognition and speech synthesis.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/dskvich/ai-doctor/pkg/domain"
)

type Config struct {
	Token              string
	BaseURL            string
	TranscriptionModel string
	SpeechModel        string
	Voice              string
	MaxTokens          int
}

type client struct {
	api *openai.Client
	cfg Config
}

func NewClient(cfg Config) (*client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	apiCfg := openai.DefaultConfig(cfg.Token)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(openai.TTSModel1)
	}
	if cfg.Voice == "" {
		cfg.Voice = string(openai.VoiceAlloy)
	}

	return &client{
		api: openai.NewClientWithConfig(apiCfg),
		cfg: cfg,
	}, nil
}

// Infer sends one stateless request and returns the assistant's answer.
func (c *client) Infer(ctx context.Context, req domain.ModelRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.chatRequest(req))
	if err != nil {
		if IsRateLimited(err) {
			slog.WarnContext(ctx, "Inference rate limited", "model", req.Model)
		}
		return "", fmt.Errorf("%w: creating chat completion: %w", domain.ErrInference, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrInference)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrInference)
	}

	slog.DebugContext(ctx, "Completion received",
		"model", resp.Model,
		"promptTokens", resp.Usage.PromptTokens,
		"completionTokens", resp.Usage.CompletionTokens,
	)

	return answer, nil
}

func (c *client) Recognize(ctx context.Context, filePath string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: filePath,
	})
	if err != nil {
		return "", fmt.Errorf("creating transcription: %w", err)
	}

	return resp.Text, nil
}

// Speak returns the synthesized MP3 stream. The caller closes it.
func (c *client) Speak(ctx context.Context, text string) (io.ReadCloser, error) {
	resp, err := c.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(c.cfg.SpeechModel),
		Input:          text,
		Voice:          openai.SpeechVoice(c.cfg.Voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("creating speech: %w", err)
	}

	return resp, nil
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429
	}
	return false
}
