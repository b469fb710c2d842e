package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	reg = prometheus.NewRegistry()

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path", "status_code"},
	)
	RateLimitRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "rate_limiter_rejected_total", Help: "Requests rejected by rate limiter"},
	)
	SourceFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "source_fetches_total", Help: "Outbound source fetches by result"},
		[]string{"result"},
	)
	FetchCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fetch_cache_hits_total", Help: "Source fetches served from the response cache"},
	)
	FetchCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fetch_cache_misses_total", Help: "Source fetches that went to the network"},
	)
	PayloadDecodeFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "payload_decode_failures_total", Help: "Rejected encoded configuration payloads"},
	)
	TrackersAggregatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trackers_aggregated_total", Help: "Unique tracker entries served by the aggregation endpoint"},
	)
	CacheEntriesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fetch_cache_entries", Help: "Current number of cached source responses"},
	)
	AdminAuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "admin_auth_failures_total", Help: "Total failed admin authentication attempts"},
	)
	AdminAuthSuccessTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "admin_auth_success_total", Help: "Total successful admin authentication attempts"},
	)
)

var registered atomic.Bool

func Register() {
	if registered.Swap(true) {
		return
	}
	reg.MustRegister(HTTPRequestsTotal, HTTPRequestDuration, RateLimitRejectedTotal, SourceFetchesTotal, FetchCacheHitsTotal, FetchCacheMissesTotal, PayloadDecodeFailuresTotal, TrackersAggregatedTotal, CacheEntriesGauge, AdminAuthFailuresTotal, AdminAuthSuccessTotal)
}

// Returns the /metrics HTTP handler
func Handler() http.Handler { Register(); return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}) }

// Records metrics for a request.
func ObserveRequest(method, path, status string, dur time.Duration, statusCode int) {
	Register()
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, fmt.Sprintf("%d", statusCode)).Observe(dur.Seconds())
}
