package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimitExhaustsBurst(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(1, 2)(handler)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.7")
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send(); got != http.StatusOK {
		t.Fatalf("first request: expected %d, got %d", http.StatusOK, got)
	}
	if got := send(); got != http.StatusOK {
		t.Fatalf("second request: expected %d, got %d", http.StatusOK, got)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Fatalf("burst exceeded: expected %d, got %d", http.StatusTooManyRequests, got)
	}
}

func TestRateLimitIsPerIP(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := RateLimit(1, 1)(handler)

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", nil)
		req.Header.Set("X-Real-Ip", ip)
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("203.0.113.7"); got != http.StatusOK {
		t.Fatalf("first client: expected %d, got %d", http.StatusOK, got)
	}
	if got := send("203.0.113.7"); got != http.StatusTooManyRequests {
		t.Fatalf("first client second hit: expected %d, got %d", http.StatusTooManyRequests, got)
	}
	if got := send("198.51.100.4"); got != http.StatusOK {
		t.Fatalf("second client must have its own bucket, got %d", got)
	}
}
