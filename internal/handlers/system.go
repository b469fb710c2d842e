package handlers

import (
	"net/http"
	"runtime"
	"time"
)

var startTime = time.Now()

// Version is stamped by the build; defaults for local runs.
var Version = "dev"

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondMethodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
	})
}

func (a *API) Live(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "live"})
}

// Ready reports whether the service can serve aggregation traffic.
// Stateless by design, so readiness is just "fetcher wired up".
func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.Fetch == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Status returns operational details for humans and dashboards.
func (a *API) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	cacheEntries := 0
	if a.Cache != nil {
		cacheEntries = a.Cache.Len()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"version":       Version,
		"uptime":        time.Since(startTime).Round(time.Second).String(),
		"goroutines":    runtime.NumGoroutine(),
		"cache_entries": cacheEntries,
	})
}

// CacheFlush empties the response cache. Admin-guarded; POST only.
func (a *API) CacheFlush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondMethodNotAllowed(w, http.MethodPost)
		return
	}
	if a.Cache == nil {
		respondError(w, http.StatusServiceUnavailable, "cache not initialized")
		return
	}
	n := a.Cache.Flush()
	a.Logger.Printf("admin: cache flushed entries=%d rid=%s", n, r.Header.Get("X-Request-ID"))
	respondJSON(w, http.StatusOK, map[string]any{"flushed": n})
}
