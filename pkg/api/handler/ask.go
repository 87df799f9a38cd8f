package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dskvich/ai-doctor/pkg/api/response"
	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/logger"
	"github.com/dskvich/ai-doctor/pkg/session"
)

type TextAsker interface {
	AskText(ctx context.Context, state *session.State, text string) (*domain.TurnResult, error)
}

type AskResponse struct {
	Answer string `json:"answer"`
	Kind   string `json:"kind"`
	Audio  bool   `json:"audio"`
}

type ask struct {
	asker  TextAsker
	writer response.JSONResponseWriter
}

func NewAsk(asker TextAsker) *ask {
	return &ask{
		asker:  asker,
		writer: response.JSONResponseWriter{},
	}
}

// Ask answers a single question without an image. Every request runs in a
// fresh session.
func (a *ask) Ask(w http.ResponseWriter, r *http.Request) {
	prompt := r.URL.Query().Get("prompt")
	if prompt == "" {
		a.writer.WriteErrorResponse(w, http.StatusBadRequest, "Prompt parameter is missing or empty.")
		return
	}

	result, err := a.asker.AskText(r.Context(), session.New(), prompt)
	if err != nil {
		slog.ErrorContext(r.Context(), "answering api question", logger.Err(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrInference):
			status = http.StatusBadGateway
		}
		a.writer.WriteErrorResponse(w, status, err.Error())
		return
	}

	a.writer.WriteSuccessResponse(w, AskResponse{
		Answer: result.Text,
		Kind:   string(result.Kind),
		Audio:  result.Audio != nil,
	})
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writer := response.JSONResponseWriter{}
	writer.WriteSuccessResponse(w, map[string]string{"status": "ok"})
}
