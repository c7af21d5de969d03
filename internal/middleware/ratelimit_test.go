package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(3, time.Minute, newTestLogger(&buf))

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	if rl.Allow("1.2.3.4") {
		t.Error("request over the limit should be denied")
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(1, time.Minute, newTestLogger(&buf))

	if !rl.Allow("1.2.3.4") {
		t.Fatal("first key should be allowed")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("first key should now be denied")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("second key should be unaffected")
	}
}

func TestRateLimiter_ResetClearsLimit(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(1, time.Minute, newTestLogger(&buf))

	rl.Allow("1.2.3.4")
	if rl.Allow("1.2.3.4") {
		t.Fatal("key should be at the limit")
	}

	rl.Reset("1.2.3.4")

	if !rl.Allow("1.2.3.4") {
		t.Error("key should be allowed after reset")
	}
}

func TestRateLimiter_RecordFailureCountsAgainstLimit(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(2, time.Minute, newTestLogger(&buf))

	rl.RecordFailure("1.2.3.4")
	rl.RecordFailure("1.2.3.4")

	if rl.Allow("1.2.3.4") {
		t.Error("recorded failures should count against the limit")
	}
}

func TestRateLimiter_TimeUntilReset(t *testing.T) {
	var buf bytes.Buffer
	rl := NewRateLimiter(1, time.Minute, newTestLogger(&buf))

	if got := rl.TimeUntilReset("unknown"); got != 0 {
		t.Errorf("unknown key should have zero reset time, got %v", got)
	}

	rl.Allow("1.2.3.4")

	got := rl.TimeUntilReset("1.2.3.4")
	if got <= 0 || got > time.Minute {
		t.Errorf("expected reset time within the window, got %v", got)
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	rl := NewRateLimiter(1, time.Minute, logger)
	m := NewRateLimitMiddleware(rl, logger)

	handler := m.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestAuthRateLimiter_FailedLoginsLockOut(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuthRateLimiter(newTestLogger(&buf))

	handler := a.LimitLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.RemoteAddr = "192.0.2.2:1234"

	// 5 allowed attempts, each recorded as a failure too, so the
	// account is locked well before the 6th request.
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}
	a.RecordFailedLogin("192.0.2.2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected lockout after repeated failures, got %d", rec.Code)
	}

	a.ResetLogin("192.0.2.2")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusTooManyRequests {
		t.Error("expected reset to clear the lockout")
	}
}
