package middleware

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
)

func adminReq(h http.Handler, token string) int {
	req := httptest.NewRequest(http.MethodPost, "/admin/cache/flush", nil)
	if token != "" {
		req.Header.Set("X-Admin-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAdminGuard(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Chain(final, AdminGuard([]string{"tok-A-0123456789", "tok-B-0123456789"}, logger))

	if code := adminReq(h, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d, want 401", code)
	}
	if code := adminReq(h, "wrong-token-000000"); code != http.StatusForbidden {
		t.Fatalf("invalid token: got %d, want 403", code)
	}
	// Any of the rotating tokens is accepted.
	if code := adminReq(h, "tok-A-0123456789"); code != http.StatusOK {
		t.Fatalf("first token: got %d", code)
	}
	if code := adminReq(h, "tok-B-0123456789"); code != http.StatusOK {
		t.Fatalf("second token: got %d", code)
	}
}

func TestAdminGuardDisabledWithoutTokens(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Chain(final, AdminGuard(nil, logger))

	// No token configured: the surface is off even with a guess supplied.
	if code := adminReq(h, "anything-goes-here"); code != http.StatusForbidden {
		t.Fatalf("disabled guard: got %d, want 403", code)
	}
	if code := adminReq(h, ""); code != http.StatusForbidden {
		t.Fatalf("disabled guard without header: got %d, want 403", code)
	}
}
