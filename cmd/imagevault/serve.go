package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"imagevault/internal/auth"
	"imagevault/internal/catalog"
	"imagevault/internal/config"
	"imagevault/internal/handlers"
	"imagevault/internal/metrics"
	"imagevault/internal/middleware"
	"imagevault/pkg/cache"
	"imagevault/pkg/logger"
	"imagevault/pkg/utils"
)

const shutdownTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	utils.LoadEnv()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	logger.SetLevel(logger.ParseLevel(level))

	if cfg.App.StartMessage && os.Getenv("STARTUP_LOG_ACTIVE") != "false" {
		printSignature(cfg, Version)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	urlCache := cache.New(cache.Options{
		Enabled:     cfg.Cache.Enabled,
		MaxCapacity: cfg.Cache.MaxCapacity,
		TTL:         parseDuration(cfg.Cache.TTL, cache.DefaultTTL),
	})
	defer urlCache.Close()

	svc := catalog.New(ctx, b.objects, b.meta, urlCache, m, catalog.Options{
		MaxFiles:          cfg.Upload.MaxFiles,
		MaxFileSize:       cfg.MaxFileSizeBytes(),
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		PresignTTL:        cfg.PresignTTL(),
	})
	logger.LogInfo("Listing strategy: %s", svc.Strategy())

	creds := auth.NewCredentialCache(b.secrets, cfg.Security.SecretName, cfg.Security.APIToken)
	h := handlers.New(svc, auth.NewAuthenticator(creds), handlers.Options{
		Info: handlers.ServiceInfo{
			Name:        cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
		},
		MaxFiles:    cfg.Upload.MaxFiles,
		MaxFileSize: cfg.MaxFileSizeBytes(),
	})

	mux := http.NewServeMux()
	h.Register(mux, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	limiter := middleware.NewRateLimiter(middleware.RateLimitOptions{
		Enabled:  cfg.Security.RateLimit.Enabled,
		Requests: cfg.Security.RateLimit.Requests,
		Window:   parseDuration(cfg.Security.RateLimit.Window, time.Second),
		Burst:    cfg.Security.RateLimit.Burst,
	})
	go limiter.Run(ctx)

	finalHandler := limiter.Middleware(middleware.Cors(cfg.Security.CorsOrigins)(middleware.Logger(m)(mux)))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      finalHandler,
		ReadTimeout:  parseDuration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDuration(cfg.Server.WriteTimeout, 60*time.Second),
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.LogServerStart(cfg.Server.Port, cfg.App.Environment)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.LogInfo("%s shutting down", cfg.App.Name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.LogSuccess("Server stopped")
	return nil
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
