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

	"searchahouse/internal/changefeed"
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/http/router"
	"searchahouse/internal/metrics"
	"searchahouse/internal/search"
	"searchahouse/internal/searchindex/elastic"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"
	"searchahouse/platform/validator"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting search engine", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	store, err := elastic.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize search index", "error", err)
		panic("failed to initialize search index: " + err.Error())
	}

	if err := withRetry(ctx, log, "search index bootstrap", 5, 2*time.Second, func() error {
		return store.EnsureIndices(ctx, entityTypeNames())
	}); err != nil {
		log.Error("failed to bootstrap search indices", "error", err)
		panic("failed to bootstrap search indices: " + err.Error())
	}
	log.Info("search indices ready", "prefix", cfg.GetSearchIndexPrefix())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	collector := metrics.New()
	app := &apphttp.App{
		Config:    cfg,
		Logger:    log,
		Health:    map[string]apphttp.HealthChecker{"elasticsearch": store},
		Metrics:   collector.Handler(),
		RateLimit: cfg.GetRateLimitRPS(),
		RateBurst: cfg.GetRateLimitBurst(),
		Modules:   []apphttp.Module{search.NewModule(store, validator.New())},
	}

	if err := serve(ctx, log, cfg.HTTPAddr, router.New(app)); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("search engine stopped")
}

func entityTypeNames() []string {
	names := make([]string, 0, len(changefeed.EntityTypes))
	for _, t := range changefeed.EntityTypes {
		names = append(names, string(t))
	}
	return names
}

func serve(ctx context.Context, log *logger.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
