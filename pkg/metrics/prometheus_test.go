package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordTurn(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTurn("initial", "ok")
	m.RecordTurn("initial", "ok")
	m.RecordTurn("follow_up", "inference_error")

	if got := testutil.ToFloat64(m.Turns.WithLabelValues("initial", "ok")); got != 2 {
		t.Errorf("expected 2 successful initial turns, got %v", got)
	}
	if got := testutil.ToFloat64(m.Turns.WithLabelValues("follow_up", "inference_error")); got != 1 {
		t.Errorf("expected 1 failed follow-up, got %v", got)
	}
}

func TestRecordSynthesis(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSynthesis("ok", 3*time.Second)
	m.RecordSynthesis("error", 0)

	if got := testutil.ToFloat64(m.Syntheses.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 failed synthesis, got %v", got)
	}
	if got := testutil.CollectAndCount(m.SpeechSeconds); got != 1 {
		t.Errorf("expected the speech histogram to be collected, got %d", got)
	}
}

func TestSetActiveSessions(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetActiveSessions(4)

	if got := testutil.ToFloat64(m.ActiveSessions); got != 4 {
		t.Errorf("expected 4 active sessions, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics

	m.RecordTurn("initial", "ok")
	m.ObserveStage("inference", time.Now())
	m.RecordTranscription("ok")
	m.RecordSynthesis("ok", time.Second)
	m.SetActiveSessions(1)
	m.RecordHTTPRequest("GET", "/api/ask", "200", time.Millisecond)
}

func TestRegistersWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RecordHTTPRequest("GET", "/api/ask", "200", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gathering metrics: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "ai_doctor_http_requests_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected the http request counter to be registered")
	}
}
