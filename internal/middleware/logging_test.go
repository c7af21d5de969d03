package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestRequestLoggingMiddleware_LogsBasicInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/habits", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	output := buf.String()

	if !strings.Contains(output, "method=GET") {
		t.Errorf("expected log to contain method, got: %s", output)
	}
	if !strings.Contains(output, "path=/api/habits") {
		t.Errorf("expected log to contain path, got: %s", output)
	}
	if !strings.Contains(output, "status=200") {
		t.Errorf("expected log to contain status, got: %s", output)
	}
	if !strings.Contains(output, "duration_ms=") {
		t.Errorf("expected log to contain duration, got: %s", output)
	}
}

func TestRequestLoggingMiddleware_ClientIPFromForwardedFor(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/quotes/usage", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !strings.Contains(buf.String(), "ip=203.0.113.7") {
		t.Errorf("expected log to contain forwarded client IP, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_ServerErrorLogsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/quotes/generate", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	output := buf.String()

	if !strings.Contains(output, "level=WARN") {
		t.Errorf("expected WARN level for 5xx response, got: %s", output)
	}
	if !strings.Contains(output, "status=500") {
		t.Errorf("expected log to contain status 500, got: %s", output)
	}
}

func TestRequestLoggingMiddleware_RedactsSensitiveParams(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/verify-email?token=supersecret123&next=dashboard", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	output := buf.String()

	if strings.Contains(output, "supersecret123") {
		t.Errorf("expected token value to be redacted, got: %s", output)
	}
	if !strings.Contains(output, "token=[REDACTED]") {
		t.Errorf("expected redaction marker, got: %s", output)
	}
	if !strings.Contains(output, "next=dashboard") {
		t.Errorf("expected non-sensitive param preserved, got: %s", output)
	}
}

func TestRequestLoggingMiddleware_SkipsHealthAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}

	if buf.Len() != 0 {
		t.Errorf("expected no log output for skipped paths, got: %s", buf.String())
	}
}

func TestRequestLoggingMiddleware_PassesThroughResponse(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	m := NewRequestLoggingMiddleware(logger)
	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"abc"}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/habits", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Body.String() != `{"id":"abc"}` {
		t.Errorf("expected body to pass through, got: %s", rec.Body.String())
	}
}

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		rawQuery string
		want     string
	}{
		{
			name:     "no query",
			path:     "/api/habits",
			rawQuery: "",
			want:     "/api/habits",
		},
		{
			name:     "token redacted",
			path:     "/verify-email",
			rawQuery: "token=abc123",
			want:     "/verify-email?token=[REDACTED]",
		},
		{
			name:     "mixed params",
			path:     "/api/quotes",
			rawQuery: "page=2&api_key=xyz",
			want:     "/api/quotes?page=2&api_key=[REDACTED]",
		},
		{
			name:     "case insensitive key",
			path:     "/callback",
			rawQuery: "Code=oauth456",
			want:     "/callback?Code=[REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizePath(tt.path, tt.rawQuery)
			if got != tt.want {
				t.Errorf("sanitizePath(%q, %q) = %q, want %q", tt.path, tt.rawQuery, got, tt.want)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:54321",
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for chain",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			want:       "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			got := getClientIP(req)
			if got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
