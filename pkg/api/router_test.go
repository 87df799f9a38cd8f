package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dskvich/ai-doctor/pkg/api/handler"
	"github.com/dskvich/ai-doctor/pkg/domain"
	"github.com/dskvich/ai-doctor/pkg/metrics"
	"github.com/dskvich/ai-doctor/pkg/session"
)

type fakeAsker struct {
	states []*session.State
	err    error
}

func (f *fakeAsker) AskText(_ context.Context, state *session.State, text string) (*domain.TurnResult, error) {
	f.states = append(f.states, state)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TurnResult{Kind: state.QuestionKind(), Text: "answer to " + text}, nil
}

func newTestRouter(asker handler.TextAsker) (http.Handler, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	return NewRouter(asker, m, reg), m
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{}
	router, m := newTestRouter(asker)

	for range 2 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ask?prompt=is+eczema+contagious", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		var resp handler.AskResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if resp.Answer != "answer to is eczema contagious" || resp.Kind != string(domain.TurnKindTextOnly) {
			t.Errorf("unexpected response %+v", resp)
		}
	}

	if asker.states[0] == asker.states[1] {
		t.Error("expected a fresh session per request")
	}
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues(http.MethodGet, "/api/ask", "200")); got != 2 {
		t.Errorf("expected 2 recorded requests, got %v", got)
	}
}

func TestAskErrors(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		err    error
		status int
	}{
		{"missing prompt", "/api/ask", nil, http.StatusBadRequest},
		{"invalid input", "/api/ask?prompt=x", domain.ErrInvalidInput, http.StatusBadRequest},
		{"inference failure", "/api/ask?prompt=x", fmt.Errorf("%w: 503", domain.ErrInference), http.StatusBadGateway},
		{"unexpected failure", "/api/ask?prompt=x", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newTestRouter(&fakeAsker{err: tt.err})

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), `"error"`) {
				t.Errorf("expected an error body, got %s", rec.Body)
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router, m := newTestRouter(&fakeAsker{})
	m.RecordTurn("initial", "ok")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ai_doctor_turns_total") {
		t.Errorf("expected turn metrics to be exposed, got %s", rec.Body)
	}
}
