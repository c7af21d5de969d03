package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/habits", "/api/habits"},
		{"/api/habits/3f2c64b1-68a1-4c2e-9a1f-55f0cf1dd001", "/api/habits/{id}"},
		{"/api/habits/3f2c64b1-68a1-4c2e-9a1f-55f0cf1dd001/toggle", "/api/habits/{id}/toggle"},
		{"/api/favorites/D41D8CD9-8F00-4B20-8cf4-89f0e7a2b001", "/api/favorites/{id}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestMiddleware_RecordsNormalizedRequest(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/habits/3f2c64b1-68a1-4c2e-9a1f-55f0cf1dd001", nil)
	rec := httptest.NewRecorder()

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/habits/{id}", "404"))
	handler.ServeHTTP(rec, req)
	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/habits/{id}", "404"))

	if after != before+1 {
		t.Errorf("expected one recorded request, counter went %v -> %v", before, after)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected wrapped status to pass through, got %d", rec.Code)
	}
}

func TestMiddleware_SkipsProbeEndpoints(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/metrics"} {
		before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", path, "200"))

		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", path, "200"))
		if after != before {
			t.Errorf("expected no series for %s, counter went %v -> %v", path, before, after)
		}
	}
}
