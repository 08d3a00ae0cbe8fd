// Package main provides the entry point for the suggestion service.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mlrf/mlrf-suggest/internal/cache"
	"github.com/mlrf/mlrf-suggest/internal/config"
	"github.com/mlrf/mlrf-suggest/internal/handlers"
	mlrfmiddleware "github.com/mlrf/mlrf-suggest/internal/middleware"
	"github.com/mlrf/mlrf-suggest/internal/registry"
	"github.com/mlrf/mlrf-suggest/internal/rules"
	"github.com/mlrf/mlrf-suggest/internal/serving"
	"github.com/mlrf/mlrf-suggest/internal/store"
	"github.com/mlrf/mlrf-suggest/internal/trainer"
	"github.com/mlrf/mlrf-suggest/internal/tracing"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	cfgSnapshot, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfgStore := config.NewStore(cfgSnapshot)

	st, err := store.Open(cfgSnapshot.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfgSnapshot.DBPath).Msg("failed to open store")
	}
	defer st.Close()

	reg, err := registry.New(cfgSnapshot.RegistryRoot)
	if err != nil {
		log.Fatal().Err(err).Str("root", cfgSnapshot.RegistryRoot).Msg("failed to open registry")
	}
	handle := registry.NewHandle(reg)

	engine := rules.NewSubstringEngine(rules.DefaultRules())
	pipeline := serving.New(st, handle, engine, cfgStore)
	tr := trainer.New(st, reg)

	// Suggestion-result cache, degrading gracefully when Redis is unavailable.
	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cache.DefaultConfig())
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without suggestion cache")
		redisCache = nil
	} else {
		log.Info().Msg("redis cache connected")
		defer redisCache.Close()
	}

	tracingCfg := tracing.DefaultConfig()
	tracerProvider, err := tracing.NewTracerProvider(tracingCfg)
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize tracing, running without distributed tracing")
	} else if tracerProvider.IsEnabled() {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("failed to shutdown tracer provider")
			}
		}()
	}

	h := handlers.NewHandlers(st, reg, handle, pipeline, tr, engine, cfgStore, redisCache)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(mlrfmiddleware.TracingMiddlewareWithFilter(tracerProvider, []string{"/health", "/metrics/prometheus", "/metrics/json"}))

	corsConfig := mlrfmiddleware.NewCORSConfig()
	log.Info().Strs("origins", corsConfig.AllowedOrigins).Msg("CORS configuration loaded")
	r.Use(mlrfmiddleware.CORS(corsConfig))

	rateLimitCfg := mlrfmiddleware.DefaultRateLimiterConfig()
	rateLimiter := mlrfmiddleware.NewRateLimiter(rateLimitCfg)
	log.Info().
		Float64("rps", rateLimitCfg.RequestsPerSecond).
		Int("burst", rateLimitCfg.BurstSize).
		Msg("rate limiter initialized")
	r.Use(rateLimiter.Middleware)

	r.Use(mlrfmiddleware.APIKeyAuth)
	r.Use(mlrfmiddleware.PrometheusMetrics)

	r.Get("/health", h.Health)
	r.Get("/metrics/json", h.MetricsJSON)
	r.Handle("/metrics/prometheus", promhttp.Handler())

	r.Post("/ml/predict", h.Predict)
	r.Post("/ml/predict/batch", h.PredictBatch)
	r.Get("/ml/model/status", h.ModelStatus)
	r.Post("/ml/train", h.Train)

	r.Post("/admin/reload-registry", h.ReloadRegistry)
	r.Post("/admin/reload-config", h.ReloadConfig)
	r.Post("/admin/registry/gc", h.RegistryGC)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
