package router

import (
	"log"
	"net/http"

	"github.com/thelabcorner/tracky/internal/config"
	"github.com/thelabcorner/tracky/internal/fetcher"
	"github.com/thelabcorner/tracky/internal/handlers"
	"github.com/thelabcorner/tracky/internal/metrics"
	"github.com/thelabcorner/tracky/internal/middleware"
	"github.com/thelabcorner/tracky/internal/storage"
)

func New(logger *log.Logger, cfg config.Config, f *fetcher.Fetcher, cache *storage.Cache, version string) http.Handler {
	api := &handlers.API{Logger: logger, Fetch: f, Cache: cache}
	api.SetConfig(&cfg)
	handlers.Version = version

	mux := http.NewServeMux()
	mux.HandleFunc("/", api.Index)
	mux.HandleFunc("/healthz", api.Health)
	mux.HandleFunc("/livez", api.Live)
	mux.HandleFunc("/readyz", api.Ready)
	mux.HandleFunc("/status", api.Status)

	// Aggregation + proxy surface
	mux.HandleFunc("/trackers", api.Trackers)
	mux.HandleFunc("/proxy", api.Proxy)
	mux.HandleFunc("/proxy/batch", api.ProxyBatch)

	mux.Handle("/metrics", metrics.Handler())

	// Admin surface
	adminGuard := middleware.AdminGuard(cfg.AdminTokens, logger)
	mux.Handle("/admin/cache/flush", middleware.Chain(http.HandlerFunc(api.CacheFlush), adminGuard))

	return middleware.Chain(mux,
		middleware.SecurityHeaders(),
		middleware.VersionHeader(version),
		middleware.RequestIDMiddleware(),
		middleware.Recover(logger),
		middleware.RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimiterTTL, logger, cfg.RateLimitBypassDomains),
		middleware.Logging(logger),
	)
}
