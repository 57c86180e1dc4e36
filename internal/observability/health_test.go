package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthCheckHandler()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "healthy" || status.Service != serviceName {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestReadinessHandler(t *testing.T) {
	healthy := func(ctx context.Context) (bool, error) { return true, nil }
	unhealthy := func(ctx context.Context) (bool, error) { return false, nil }

	tests := []struct {
		name   string
		checks map[string]HealthCheckFunc
		code   int
		status string
	}{
		{"no checks", nil, http.StatusOK, "ready"},
		{"all healthy", map[string]HealthCheckFunc{"tutor_api": healthy}, http.StatusOK, "ready"},
		{"one failing", map[string]HealthCheckFunc{"tutor_api": healthy, "deepgram": unhealthy}, http.StatusServiceUnavailable, "not_ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ReadinessHandler(tt.checks)(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var status HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if status.Status != tt.status {
				t.Errorf("status = %q, want %q", status.Status, tt.status)
			}
			if len(status.Dependencies) != len(tt.checks) {
				t.Errorf("got %d dependencies", len(status.Dependencies))
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("WARNING").String() != "warn" || ParseLevel("bogus").String() != "info" {
		t.Error("unexpected level mapping")
	}
}
