// Package main is the entry point for the Lumen feed API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/lumen-social/lumen/internal/api"
	"github.com/lumen-social/lumen/internal/auth"
	"github.com/lumen-social/lumen/internal/config"
	"github.com/lumen-social/lumen/internal/feed"
	"github.com/lumen-social/lumen/internal/health"
	"github.com/lumen-social/lumen/internal/middleware"
	"github.com/lumen-social/lumen/internal/post"
	"github.com/lumen-social/lumen/internal/quality"
	"github.com/lumen-social/lumen/internal/stream"
	"github.com/lumen-social/lumen/internal/tracing"
	"github.com/lumen-social/lumen/internal/user"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	if *help {
		fmt.Println("Lumen Feed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	env := config.DefaultEnv
	if cfg != nil {
		env = cfg.Env
	}
	logger := middleware.NewLogger(env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}

	summary := cfg.LogSummary()
	attrs := make([]any, 0, len(summary)*2)
	for k, v := range summary {
		attrs = append(attrs, k, v)
	}
	logger.Info("configuration loaded", attrs...)

	// Tracing
	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "lumen-feed-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		logger.Error("failed to register feed metrics", "error", err)
		os.Exit(1)
	}

	// Post store
	var (
		repo      post.Repository
		dbChecker health.Checker
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		repo = post.NewPostgresRepository(db)
		dbChecker = health.NewDBChecker(db)
		logger.Info("using postgres post store")
	} else {
		repo = post.NewInMemoryRepository()
		logger.Warn("DATABASE_URL not set, using in-memory post store")
	}

	// Redis backs distributed rate limiting; without it each instance
	// counts independently.
	var (
		rateLimitStore middleware.RateLimitStore
		redisChecker   health.Checker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient, httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("using redis rate limit store")
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
		rateLimitStore = store
		logger.Warn("REDIS_URL not set, rate limiting is per-instance")
	}

	// Quality analyzer
	var (
		qualityScorer  quality.Scorer
		qualityChecker health.Checker
	)
	if cfg.QualityServiceURL != "" {
		timeout := time.Duration(cfg.QualityTimeoutMillis) * time.Millisecond
		qualityScorer = quality.NewHTTPScorer(cfg.QualityServiceURL, timeout)
		qualityChecker = health.NewQualityChecker(cfg.QualityServiceURL)
	} else {
		logger.Warn("QUALITY_SERVICE_URL not set, unrated posts score the neutral default")
	}

	// Ranking weights
	weights, err := feed.LoadCalibration(cfg.FeedCalibrationPath)
	if err != nil {
		logger.Warn("feed calibration unavailable, using default weights", "error", err)
	}

	// User directory
	var directory user.Directory
	if cfg.DirectoryServiceURL != "" {
		timeout := time.Duration(cfg.DirectoryTimeoutMillis) * time.Millisecond
		directory = user.NewHTTPDirectory(cfg.DirectoryServiceURL, timeout)
	} else {
		directory = user.NewInMemoryDirectory()
		logger.Warn("DIRECTORY_SERVICE_URL not set, author lookups fail closed and feeds degrade to the viewer's own posts")
	}
	feedService := feed.NewService(repo, directory, qualityScorer, feed.NewWeightedScorer(weights), feedMetrics)

	jwtService := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	broadcaster := stream.NewBroadcaster()

	feedHandlers := api.NewFeedHandlers(feedService)
	postHandlers := api.NewPostHandlers(repo, directory, broadcaster)
	wsHandlers := api.NewWSHandlers(broadcaster, cfg.CORSAllowedOrigins)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      dbChecker,
		RedisChecker:   redisChecker,
		QualityChecker: qualityChecker,
	})

	keyFunc := middleware.ViewerKeyFunc()
	feedLimit := middleware.RateLimiter(rateLimitStore, perMinute(cfg.RateLimitFeed, middleware.DefaultFeedLimit()), keyFunc, httpMetrics)
	writeLimit := middleware.RateLimiter(rateLimitStore, perMinute(cfg.RateLimitWrite, middleware.DefaultWriteLimit()), keyFunc, httpMetrics)

	mux := http.NewServeMux()
	mux.Handle("/feed", feedLimit(http.HandlerFunc(feedHandlers.GetFeed)))
	mux.Handle("/posts", writeLimit(http.HandlerFunc(postHandlers.CreatePost)))
	mux.Handle("/posts/", postsRouter(postHandlers, writeLimit))
	mux.HandleFunc("/ws/feed", wsHandlers.FeedEvents)
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/health/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", rootHandler)

	// Outermost first: request ID, logging, metrics, CORS, viewer
	// identity, then the global rate limit.
	globalLimit := middleware.RateLimiter(rateLimitStore, perMinute(cfg.RateLimitGlobal, middleware.DefaultGlobalLimit()), keyFunc, httpMetrics)
	var handler http.Handler = globalLimit(mux)
	handler = auth.OptionalViewer(jwtService)(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// perMinute builds a one-minute window limit from a configured rate,
// falling back when the rate is unusable.
func perMinute(requests int, fallback middleware.RateLimitConfig) middleware.RateLimitConfig {
	cfg := middleware.RateLimitConfig{
		RequestsPerWindow: requests,
		WindowDuration:    time.Minute,
	}
	if err := cfg.Validate(); err != nil {
		return fallback
	}
	return cfg
}

// postsRouter dispatches /posts/{id} and /posts/{id}/{action}. Reads
// skip the write rate limit.
func postsRouter(h *api.PostHandlers, writeLimit func(http.Handler) http.Handler) http.Handler {
	engage := writeLimit(http.HandlerFunc(h.Engage))
	moderate := writeLimit(http.HandlerFunc(h.SetModeration))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/posts/")
		parts := strings.Split(rest, "/")

		switch {
		case len(parts) == 1 && r.Method == http.MethodGet:
			h.GetPost(w, r)
		case len(parts) == 2 && r.Method == http.MethodPost && parts[1] == "moderation":
			moderate.ServeHTTP(w, r)
		case len(parts) == 2 && r.Method == http.MethodPost:
			engage.ServeHTTP(w, r)
		default:
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		}
	})
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	// Only handle exact root path, everything else returns 404.
	if r.URL.Path != "/" {
		ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
		api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"service":"lumen-feed-api","version":"0.1.0"}`)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
