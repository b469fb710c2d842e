// Package fetcher performs timeout- and size-bounded retrieval of
// remote tracker lists with per-source isolation: one slow or broken
// source can never block or fail its siblings.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/thelabcorner/tracky/internal/metrics"
	"github.com/thelabcorner/tracky/internal/storage"
	"github.com/thelabcorner/tracky/internal/target"
)

// probeWindow is how much of the (possibly truncated) body the content
// sanity check inspects.
const probeWindow = 1000

var (
	ErrTimeout        = errors.New("upstream fetch timed out")
	ErrContentInvalid = errors.New("response does not look like a tracker list")
	ErrFetchFailed    = errors.New("upstream fetch failed")
)

// UpstreamError reports a non-success status from a source.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Outcome is the per-target fetch result. Exactly one of Body or Err is
// meaningful; a target is never retried within a request.
type Outcome struct {
	URL    string
	Body   string
	Status int
	Err    error
}

type Fetcher struct {
	Client    *http.Client
	Timeout   time.Duration
	MaxBytes  int64
	UserAgent string
	Cache     *storage.Cache
	Logger    *log.Logger

	// Validate gates every target before any network activity. Defaults
	// to the strict public-host policy; replaceable for trusted-network
	// deployments.
	Validate func(raw string) error
}

func New(logger *log.Logger, timeout time.Duration, maxBytes int64, cache *storage.Cache) *Fetcher {
	return &Fetcher{
		Client:    &http.Client{},
		Timeout:   timeout,
		MaxBytes:  maxBytes,
		UserAgent: "tracky/aggregator",
		Cache:     cache,
		Logger:    logger,
		Validate: func(raw string) error {
			_, err := target.Validate(raw)
			return err
		},
	}
}

// FetchAll validates every requested target and fans the fetchable ones
// out concurrently, joining at a barrier once each has completed or hit
// its own deadline. Outcomes are indexed by input position so source
// order survives the fan-out.
func (f *Fetcher) FetchAll(ctx context.Context, raws []string) []Outcome {
	outcomes := make([]Outcome, len(raws))
	var wg sync.WaitGroup
	for i, raw := range raws {
		if err := f.Validate(raw); err != nil {
			outcomes[i] = Outcome{URL: raw, Err: err}
			metrics.SourceFetchesTotal.WithLabelValues("rejected").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, raw string) {
			defer wg.Done()
			outcomes[i] = f.Fetch(ctx, raw)
		}(i, raw)
	}
	wg.Wait()
	return outcomes
}

// Fetch retrieves one target within the configured deadline and byte
// cap, consulting the response cache first.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Outcome {
	out := Outcome{URL: rawURL}
	if f.Cache != nil {
		if body, ok := f.Cache.Get(rawURL); ok {
			metrics.FetchCacheHitsTotal.Inc()
			out.Body = body
			out.Status = http.StatusOK
			return out
		}
		metrics.FetchCacheMissesTotal.Inc()
	}
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		out.Err = ErrFetchFailed
		metrics.SourceFetchesTotal.WithLabelValues("failed").Inc()
		return out
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			out.Err = ErrTimeout
			metrics.SourceFetchesTotal.WithLabelValues("timeout").Inc()
			return out
		}
		f.Logger.Printf("fetch: transport error url=%s err=%v", rawURL, err)
		out.Err = ErrFetchFailed
		metrics.SourceFetchesTotal.WithLabelValues("failed").Inc()
		return out
	}
	defer resp.Body.Close()

	out.Status = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		out.Err = &UpstreamError{Status: resp.StatusCode}
		metrics.SourceFetchesTotal.WithLabelValues("upstream_error").Inc()
		return out
	}

	// Excess beyond MaxBytes is silently discarded; an oversized
	// Content-Length just means the limit reader stops early.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes))
	if err != nil {
		if ctx.Err() != nil {
			out.Err = ErrTimeout
			metrics.SourceFetchesTotal.WithLabelValues("timeout").Inc()
			return out
		}
		f.Logger.Printf("fetch: read error url=%s err=%v", rawURL, err)
		out.Err = ErrFetchFailed
		metrics.SourceFetchesTotal.WithLabelValues("failed").Inc()
		return out
	}

	body := string(data)
	if !looksLikeTrackerList(body) {
		out.Err = ErrContentInvalid
		metrics.SourceFetchesTotal.WithLabelValues("content_invalid").Inc()
		return out
	}
	out.Body = body
	if f.Cache != nil {
		f.Cache.Set(rawURL, body)
	}
	metrics.SourceFetchesTotal.WithLabelValues("ok").Inc()
	return out
}

// looksLikeTrackerList case-folds a bounded prefix of the body and
// requires at least one tracker scheme substring. Empty or
// whitespace-only bodies pass without the check.
func looksLikeTrackerList(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	probe := body
	if len(probe) > probeWindow {
		probe = probe[:probeWindow]
	}
	probe = strings.ToLower(probe)
	for _, scheme := range []string{"udp://", "http://", "https://", "wss://"} {
		if strings.Contains(probe, scheme) {
			return true
		}
	}
	return false
}
