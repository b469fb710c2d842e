package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/thelabcorner/tracky/internal/metrics"
	"github.com/thelabcorner/tracky/internal/payload"
	"github.com/thelabcorner/tracky/internal/tracker"
)

// Trackers is the aggregation endpoint: decode the requested
// configuration, fan out the source fetches, merge and dedupe. Bad
// sources are dropped silently; only structural failures reject the
// whole request.
func (a *API) Trackers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondMethodNotAllowed(w, http.MethodGet)
		return
	}
	if a.Fetch == nil {
		respondTrackerError(w, http.StatusServiceUnavailable, "fetcher not initialized")
		return
	}
	q := r.URL.Query()
	var cfg payload.Config
	switch {
	case q.Get("data") != "":
		var err error
		cfg, err = payload.Decode(q.Get("data"))
		if err != nil {
			metrics.PayloadDecodeFailuresTotal.Inc()
			respondTrackerError(w, http.StatusBadRequest, err.Error())
			return
		}
	case q.Get("urls") != "":
		// literal comma-separated source list, no codec involved
		for _, u := range strings.Split(q.Get("urls"), ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.Sources = append(cfg.Sources, u)
			}
		}
	default:
		respondTrackerError(w, http.StatusBadRequest, "missing data or urls parameter")
		return
	}
	if len(cfg.Sources) > a.maxSources() {
		respondTrackerError(w, http.StatusBadRequest, "Too many sources")
		return
	}

	// Deliberately not tied to the inbound request context: each fetch
	// carries its own deadline and there is no caller cancellation.
	outcomes := a.Fetch.FetchAll(context.Background(), cfg.Sources)
	bodies := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			a.Logger.Printf("trackers: source dropped url=%s reason=%v", o.URL, o.Err)
			continue
		}
		bodies = append(bodies, o.Body)
	}
	set := tracker.Aggregate(cfg.Manual, bodies)

	sep := "\n"
	if cfg.DoubleNewline {
		sep = "\n\n"
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="trackers.txt"`)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, set.Join(sep))
	metrics.TrackersAggregatedTotal.Add(float64(set.Len()))
}

func respondTrackerError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	fmt.Fprintf(w, "# Error: %s\n", msg)
}
