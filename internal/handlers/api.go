package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/thelabcorner/tracky/internal/config"
	"github.com/thelabcorner/tracky/internal/fetcher"
	"github.com/thelabcorner/tracky/internal/payload"
	"github.com/thelabcorner/tracky/internal/storage"
	"github.com/thelabcorner/tracky/internal/target"
)

type API struct {
	Logger *log.Logger
	Fetch  *fetcher.Fetcher
	Cache  *storage.Cache
	// optional config for limits
	cfg *config.Config
}

// Attaches configuration for limits and options.
func (a *API) SetConfig(cfg *config.Config) {
	a.cfg = cfg
}

func (a *API) maxSources() int {
	if a.cfg != nil && a.cfg.MaxSources > 0 {
		return a.cfg.MaxSources
	}
	return 20
}

// The Origin/Referer heuristic is spoofable and is defense-in-depth
// only, never authentication.
var errUnauthorizedOrigin = errors.New("origin not allowed")

// statusForError maps the pipeline error taxonomy onto HTTP statuses.
func statusForError(err error) int {
	var ue *fetcher.UpstreamError
	switch {
	case errors.Is(err, payload.ErrInvalidPayload),
		errors.Is(err, target.ErrInvalidFormat):
		return http.StatusBadRequest
	case errors.Is(err, target.ErrInvalidProtocol),
		errors.Is(err, target.ErrPrivateNetwork),
		errors.Is(err, errUnauthorizedOrigin):
		return http.StatusForbidden
	case errors.Is(err, fetcher.ErrContentInvalid):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ue):
		return http.StatusBadGateway
	case errors.Is(err, fetcher.ErrTimeout):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "no-store")

	w.WriteHeader(status)
	if v == nil || status == http.StatusNoContent {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

type apiError struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Meta    map[string]any `json:"meta,omitempty"`
	} `json:"error"`
}

func writeAPIError(w http.ResponseWriter, status int, code, msg string, meta map[string]any) {
	if code == "" {
		code = http.StatusText(status)
	}
	var body apiError
	body.Error.Code = code
	body.Error.Message = msg
	if len(meta) > 0 {
		body.Error.Meta = meta
	}
	respondJSON(w, status, body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	writeAPIError(w, status, "", msg, nil)
}

func respondMethodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		ct := r.Header.Get("Content-Type")
		if !strings.HasPrefix(ct, "application/json") {
			return errors.New("Content-Type must be application/json")
		}
	}

	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()

	limited := http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	if dec.More() {
		return errors.New("only a single JSON object is allowed")
	}
	return nil
}
