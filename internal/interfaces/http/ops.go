// Package http exposes the daemon's operational endpoints: liveness,
// Prometheus metrics and the scheduler's last batch report.
package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/logger"
	"finsync/internal/shared/middleware"
)

// StatusProvider is the slice of the scheduler the ops endpoints read.
type StatusProvider interface {
	Status() scheduler.Status
}

// OpsHandler serves the ops endpoints.
type OpsHandler struct {
	status StatusProvider
}

func NewOpsHandler(status StatusProvider) *OpsHandler {
	return &OpsHandler{status: status}
}

// HandleHealth returns a simple health check response.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// HandleSchedulerStatus returns whether the scheduler runs and its last report.
// Without a scheduler (SCHEDULER_ENABLED=false) it answers 503.
func (h *OpsHandler) HandleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		http.Error(w, "Scheduler disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.status.Status()); err != nil {
		log := logger.FromContext(r.Context())
		log.Error().Err(err).Msg("failed to encode scheduler status")
	}
}

// NewRouter wires the ops routes behind the logging, metrics and tracing middleware.
func NewRouter(h *OpsHandler, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logging(log))
	r.Use(middleware.RouteMetrics)

	r.Get("/health", HandleHealth)
	r.Get("/scheduler/status", h.HandleSchedulerStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return middleware.Telemetry("ops")(r)
}
