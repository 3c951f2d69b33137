package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/interfaces/scheduler"
	"finsync/internal/shared/logger"
)

type MockStatusProvider struct {
	StatusFunc func() scheduler.Status
}

func (m *MockStatusProvider) Status() scheduler.Status {
	return m.StatusFunc()
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(NewOpsHandler(nil), logger.Nop())

	rec := serve(t, router, http.MethodGet, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRouter_SchedulerStatus(t *testing.T) {
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &MockStatusProvider{
		StatusFunc: func() scheduler.Status {
			return scheduler.Status{
				Running:  true,
				Interval: "6h0m0s",
				LastReport: &scheduler.BatchReport{
					RunID:      "run-1",
					StartedAt:  finished.Add(-time.Minute),
					FinishedAt: finished,
					Total:      3,
					Skipped:    1,
					Succeeded:  1,
					Failed:     1,
				},
			}
		},
	}
	router := NewRouter(NewOpsHandler(provider), logger.Nop())

	rec := serve(t, router, http.MethodGet, "/scheduler/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got scheduler.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Running)
	assert.Equal(t, "6h0m0s", got.Interval)
	require.NotNil(t, got.LastReport)
	assert.Equal(t, "run-1", got.LastReport.RunID)
	assert.Equal(t, 1, got.LastReport.Failed)
}

func TestRouter_SchedulerStatus_Disabled(t *testing.T) {
	router := NewRouter(NewOpsHandler(nil), logger.Nop())

	rec := serve(t, router, http.MethodGet, "/scheduler/status")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(NewOpsHandler(nil), logger.Nop())

	rec := serve(t, router, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MethodAndPath(t *testing.T) {
	router := NewRouter(NewOpsHandler(nil), logger.Nop())

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound},
		{"post health", http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, tt.method, tt.path)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
