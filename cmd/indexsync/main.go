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
	"searchahouse/internal/events"
	"searchahouse/internal/geocode"
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/http/router"
	"searchahouse/internal/indexsync"
	"searchahouse/internal/indexsync/service"
	"searchahouse/internal/metrics"
	"searchahouse/internal/notification"
	"searchahouse/internal/scheduler"
	"searchahouse/internal/searchindex/elastic"
	"searchahouse/migrations"
	"searchahouse/platform/config"
	"searchahouse/platform/db"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
	"searchahouse/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout       = 10 * time.Second
	tombstoneCleanupEvery = time.Hour
	deadLetterReplayEvery = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := errors.Join(cfg.RequireDatabase(), cfg.RequireRedis()); err != nil {
		panic(err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting index synchronizer", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

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

	rdb, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	publisher, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = publisher.Close() }()

	collector := metrics.New()
	eventBus := events.NewInMemoryBus(log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.NewFromConfig(cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	var geocoder service.Geocoder
	if cfg.IsGeocoderEnabled() {
		geocoder = geocode.NewService(cfg, log, geocode.WithCache(rdb, cfg.GetQueuePrefix()))
		log.Info("geocoder enabled", "url", cfg.GetGeocoderURL())
	}

	indexsyncModule := indexsync.NewModule(pool, validator.New(), log)

	processor := service.NewProcessor(store, indexsyncModule.Repository(), log, service.ProcessorOptions{
		Projector: service.NewProjector(phone.NewNormalizer(cfg.GetPhoneDefaultRegion()), geocoder),
		Bus:       eventBus,
		Metrics:   collector,
	})

	worker, err := scheduler.NewWorker(cfg, processor, log)
	if err != nil {
		log.Error("failed to initialize index sync worker", "error", err)
		panic("failed to initialize index sync worker: " + err.Error())
	}

	replayer := scheduler.NewDeadLetterReplayer(indexsyncModule.Repository(), publisher, collector, log, deadLetterReplayEvery)
	cleanup := scheduler.NewTombstoneCleanup(store, collector, log, tombstoneCleanupEvery, cfg.GetTombstoneRetention())

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	pingRedis := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: map[string]apphttp.HealthChecker{
			"postgres":      apphttp.HealthCheckFunc(pool.Ping),
			"elasticsearch": store,
			"redis":         apphttp.HealthCheckFunc(pingRedis),
		},
		Metrics: collector.Handler(),
		Modules: []apphttp.Module{indexsyncModule},
	}
	engine := router.New(app)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error {
		replayer.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error { return serve(gctx, log, cfg.HTTPAddr, engine) })

	if err := g.Wait(); err != nil {
		log.Error("index synchronizer error", "error", err)
		panic("index synchronizer error: " + err.Error())
	}
	log.Info("index synchronizer stopped")
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

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
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
