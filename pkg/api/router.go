package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dskvich/ai-doctor/pkg/api/handler"
)

type RequestRecorder interface {
	RecordHTTPRequest(method, endpoint, status string, duration time.Duration)
}

// NewRouter serves the question API, the health check and the metrics
// gathered by g.
func NewRouter(asker handler.TextAsker, recorder RequestRecorder, g prometheus.Gatherer) http.Handler {
	ask := handler.NewAsk(asker)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/ask", withMetrics(recorder, "/api/ask", ask.Ask))
	mux.HandleFunc("GET /healthz", withMetrics(recorder, "/healthz", handler.Health))
	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return mux
}

func withMetrics(recorder RequestRecorder, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(ww, r)

		recorder.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(ww.statusCode), time.Since(started))
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
