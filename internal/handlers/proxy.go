package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// Proxy fetches a single remote tracker list and relays the body as-is.
// GET takes ?url=, POST takes {"url": "..."}.
func (a *API) Proxy(w http.ResponseWriter, r *http.Request) {
	var rawURL string
	switch r.Method {
	case http.MethodGet:
		rawURL = r.URL.Query().Get("url")
	case http.MethodPost:
		var body struct {
			URL string `json:"url"`
		}
		if err := decodeJSON(w, r, &body, 4<<10); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		rawURL = body.URL
	default:
		respondMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	if rawURL == "" {
		respondError(w, http.StatusBadRequest, "missing url parameter")
		return
	}
	if !originAllowed(r) {
		a.Logger.Printf("proxy: origin rejected url=%s origin=%q referer=%q", rawURL, r.Header.Get("Origin"), r.Header.Get("Referer"))
		http.Error(w, errUnauthorizedOrigin.Error(), statusForError(errUnauthorizedOrigin))
		return
	}
	if err := a.Fetch.Validate(rawURL); err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	out := a.Fetch.Fetch(context.Background(), rawURL)
	if out.Err != nil {
		http.Error(w, out.Err.Error(), statusForError(out.Err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, out.Body)
}

type proxyResult struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProxyBatch fetches several lists in one round trip and reports the
// per-URL result as a JSON map keyed by the requested URL. GET takes
// ?urls= holding a JSON array, POST takes {"urls": [...]}.
func (a *API) ProxyBatch(w http.ResponseWriter, r *http.Request) {
	var raws []string
	switch r.Method {
	case http.MethodGet:
		arg := r.URL.Query().Get("urls")
		if arg == "" {
			respondError(w, http.StatusBadRequest, "missing urls parameter")
			return
		}
		if err := json.Unmarshal([]byte(arg), &raws); err != nil {
			respondError(w, http.StatusBadRequest, "urls must be a JSON array of strings")
			return
		}
	case http.MethodPost:
		var body struct {
			URLs []string `json:"urls"`
		}
		if err := decodeJSON(w, r, &body, 32<<10); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		raws = body.URLs
	default:
		respondMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	if len(raws) == 0 {
		respondError(w, http.StatusBadRequest, "no urls supplied")
		return
	}
	// Every requested URL gets a result entry, so an oversized batch is
	// rejected outright rather than quietly trimmed.
	if len(raws) > a.maxSources() {
		respondError(w, http.StatusBadRequest, "Too many sources")
		return
	}

	outcomes := a.Fetch.FetchAll(context.Background(), raws)
	results := make(map[string]proxyResult, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			results[o.URL] = proxyResult{Success: false, Status: o.Status, Error: o.Err.Error()}
			continue
		}
		results[o.URL] = proxyResult{Success: true, Content: o.Body, Status: o.Status}
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	respondJSON(w, http.StatusOK, results)
}

// originAllowed checks that a browser-originated request comes from a
// page served by this host. Requests without Origin or Referer (curl,
// server-to-server) pass; the check only blocks obvious third-party
// embedding of the proxy surface.
func originAllowed(r *http.Request) bool {
	src := r.Header.Get("Origin")
	if src == "" {
		src = r.Header.Get("Referer")
	}
	if src == "" {
		return true
	}
	if r.Host != "" && strings.Contains(src, r.Host) {
		return true
	}
	for _, local := range []string{"localhost", "127.0.0.1", "[::1]"} {
		if strings.Contains(src, local) {
			return true
		}
	}
	return false
}
