package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"log/slog"

	"github.com/thelabcorner/tracky/internal/config"
	"github.com/thelabcorner/tracky/internal/fetcher"
	"github.com/thelabcorner/tracky/internal/middleware"
	"github.com/thelabcorner/tracky/internal/router"
	"github.com/thelabcorner/tracky/internal/storage"
	slogadapter "github.com/thelabcorner/tracky/internal/util/logadapter"
)

var version string

func loadDotEnv(logger *log.Logger, path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		logger.Printf("dotenv: read error: %v", err)
		return
	}
	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		eq := bytes.IndexByte(raw, '=')
		if eq <= 0 {
			continue
		}
		key := string(raw[:eq])
		val := string(raw[eq+1:])
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
}

func main() {
	// version is injected via -ldflags "-X main.version=..."
	if version == "" {
		version = "dev"
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: false, ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey {
			return slog.Attr{Key: a.Key, Value: slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))}
		}
		return a
	}})
	rootLogger := slog.New(handler)
	logger := slogadapter.New(rootLogger)

	loadDotEnv(logger, ".env")

	cfg := config.Load(logger)
	// Emit effective config (redacted tokens)
	{
		redacted := make([]string, 0, len(cfg.AdminTokens))
		for _, t := range cfg.AdminTokens {
			if len(t) <= 8 {
				redacted = append(redacted, "****")
				continue
			}
			redacted = append(redacted, t[:4]+"…"+t[len(t)-4:])
		}
		rootLogger.Info("effective_config",
			slog.Float64("rate_limit_rps", cfg.RateLimitRPS),
			slog.Int("rate_limit_burst", cfg.RateLimitBurst),
			slog.String("rate_limit_ttl", cfg.RateLimiterTTL.String()),
			slog.String("fetch_timeout", cfg.FetchTimeout.String()),
			slog.Int64("max_body_bytes", cfg.MaxBodyBytes),
			slog.Int("max_sources", cfg.MaxSources),
			slog.String("cache_ttl", cfg.CacheTTL.String()),
			slog.Bool("trust_proxy_headers", cfg.TrustProxyHeaders),
			slog.Any("admin_tokens", redacted),
			slog.Any("rate_limit_bypass_domains", cfg.RateLimitBypassDomains),
		)
	}

	middleware.SetTrustProxyHeaders(cfg.TrustProxyHeaders)

	if len(cfg.AdminTokens) == 0 {
		rootLogger.Warn("no valid admin tokens configured - admin endpoints disabled")
	}

	cache := storage.NewCache(cfg.CacheTTL)
	f := fetcher.New(logger, cfg.FetchTimeout, cfg.MaxBodyBytes, cache)
	mux := router.New(logger, cfg, f, cache, version)

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	if p := os.Getenv("PORT"); p != "" {
		srv.Addr = ":" + p
	}

	go func() {
		addr := srv.Addr
		url := "http://127.0.0.1" + addr
		if strings.HasPrefix(addr, "0.0.0.0:") {
			url = "http://127.0.0.1" + addr[len("0.0.0.0"):]
		} else if !strings.HasPrefix(addr, ":") {
			url = "http://" + addr
		}
		rootLogger.Info("server starting", slog.String("addr", addr), slog.String("url", url), slog.String("version", version))
		log.Printf("Open: %s\n", url)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rootLogger.Error("listen error", slog.String("error", err.Error()))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	rootLogger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		rootLogger.Error("server shutdown error", slog.String("error", err.Error()))
	} else {
		rootLogger.Info("server stopped gracefully")
	}
	cache.Close()
}
