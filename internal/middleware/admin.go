package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"log"
	"math/big"
	"net/http"
	"time"

	"github.com/thelabcorner/tracky/internal/metrics"
)

// AdminGuard enforces that every request carries a valid admin token in
// header X-Admin-Token. Supports multiple rotating tokens; with none
// configured the guarded surface is disabled entirely. Comparison is
// constant-time per candidate.
//
// Responses:
//
//	401 when header missing (token configured)
//	403 when header present but invalid, or when no token is configured
func AdminGuard(tokens []string, logger *log.Logger) Middleware {
	var tokenBytes [][]byte
	for _, t := range tokens {
		if t == "" { // skip empties defensively
			continue
		}
		tokenBytes = append(tokenBytes, []byte(t))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(tokenBytes) == 0 {
				writeAuthError(w, http.StatusForbidden, "disabled", "admin surface disabled: no token configured")
				return
			}
			supplied := r.Header.Get("X-Admin-Token")
			if supplied == "" {
				metrics.AdminAuthFailuresTotal.Inc()
				sleepAuth()
				writeAuthError(w, http.StatusUnauthorized, "missing_token", "missing admin token")
				return
			}
			sb := []byte(supplied)
			ok := false
			for _, tb := range tokenBytes {
				if subtle.ConstantTimeCompare(sb, tb) == 1 {
					ok = true
					break
				}
			}
			if !ok {
				metrics.AdminAuthFailuresTotal.Inc()
				sleepAuth()
				writeAuthError(w, http.StatusForbidden, "invalid_token", "invalid admin token")
				return
			}
			metrics.AdminAuthSuccessTotal.Inc()
			next.ServeHTTP(w, r)
		})
	}
}

// Introduces a small randomized delay (50-150ms) to slow brute-force
// attempts without significantly impacting legitimate traffic.
func sleepAuth() {
	low := 50
	high := 150
	if n, err := rand.Int(rand.Reader, big.NewInt(int64(high-low+1))); err == nil {
		time.Sleep(time.Duration(int(n.Int64())+low) * time.Millisecond)
		return
	}
	time.Sleep(100 * time.Millisecond)
}

// Writes a unified error JSON shape consistent with handlers.
func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	payload := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	_ = json.NewEncoder(w).Encode(payload)
}
