package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"searchahouse/internal/events"
	apphttp "searchahouse/internal/http"
	"searchahouse/internal/http/router"
	"searchahouse/internal/metrics"
	"searchahouse/internal/notification"
	"searchahouse/internal/routing"
	"searchahouse/internal/routing/service"
	"searchahouse/internal/scheduler"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"
	"searchahouse/platform/phone"
	"searchahouse/platform/validator"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if err := cfg.RequireAgentDirectory(); err != nil {
		panic(err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lead router", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	collector := metrics.New()
	eventBus := events.NewInMemoryBus(log)
	health := map[string]apphttp.HealthChecker{}

	memo, closeMemo := initAssignmentMemo(ctx, cfg, log)
	if closeMemo != nil {
		defer closeMemo()
	}
	if memo != nil {
		health["redis"] = memo
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.NewFromConfig(cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	var assignmentMemo service.AssignmentMemo
	if memo != nil {
		assignmentMemo = memo
	}

	routingModule, err := routing.NewModule(cfg, routing.Deps{
		Memo:    assignmentMemo,
		Bus:     eventBus,
		Metrics: collector,
		Phones:  phone.NewNormalizer(cfg.GetPhoneDefaultRegion()),
		Val:     validator.New(),
	}, log)
	if err != nil {
		log.Error("failed to initialize routing module", "error", err)
		panic("failed to initialize routing module: " + err.Error())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:    cfg,
		Logger:    log,
		Health:    health,
		Metrics:   collector.Handler(),
		RateLimit: cfg.GetRateLimitRPS(),
		RateBurst: cfg.GetRateLimitBurst(),
		Modules:   []apphttp.Module{routingModule},
	}

	if err := serve(ctx, log, cfg.HTTPAddr, router.New(app)); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
	log.Info("lead router stopped")
}

// redisMemo pairs the Redis assignment memo with a readiness check.
type redisMemo struct {
	*service.RedisMemo
	client *redis.Client
}

func (m redisMemo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func initAssignmentMemo(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redisMemo, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead assignment memo disabled")
		return nil, nil
	}

	client, err := scheduler.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("redis not reachable at startup", "error", err)
	}

	memo := &redisMemo{
		RedisMemo: service.NewRedisMemo(client, cfg.GetQueuePrefix(), cfg.GetAssignmentMemoTTL()),
		client:    client,
	}
	return memo, func() { _ = client.Close() }
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
