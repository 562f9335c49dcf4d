package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/indexsync/service"
	"searchahouse/platform/config"
	"searchahouse/platform/logger"

	"github.com/hibiken/asynq"
)

// ChangeProcessor applies one delivery of a change event.
type ChangeProcessor interface {
	Process(ctx context.Context, d service.Delivery) error
}

// Worker consumes the change queues.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor ChangeProcessor
	log       *logger.Logger
}

func NewWorker(cfg config.SyncConfig, processor ChangeProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	queues := make(map[string]int, len(changefeed.EntityTypes))
	for _, t := range changefeed.EntityTypes {
		queues[QueueName(cfg.GetQueuePrefix(), t)] = 1
	}

	backoff := Backoff{Base: cfg.GetSyncRetryBaseDelay(), Max: cfg.GetSyncRetryMaxDelay()}
	w := &Worker{
		mux:       asynq.NewServeMux(),
		processor: processor,
		log:       log,
	}

	w.server = asynq.NewServer(opt, asynq.Config{
		Concurrency:     concurrency,
		Queues:          queues,
		ShutdownTimeout: cfg.GetSyncShutdownTimeout(),
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return backoff.Delay(n)
		},
		ErrorHandler: asynq.ErrorHandlerFunc(w.logFailure),
		Logger:       newAsynqLogger(log),
	})

	for _, t := range changefeed.EntityTypes {
		w.mux.HandleFunc(ChangeTaskType(t), w.handleChange)
	}

	return w, nil
}

// Run processes tasks until ctx is cancelled, then stops fetching and waits
// for in-flight handlers up to the shutdown timeout.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil || w.server == nil {
		return nil
	}

	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start queue worker: %w", err)
	}
	w.log.Info("index sync worker started")

	<-ctx.Done()
	w.server.Stop()
	w.server.Shutdown()
	w.log.Info("index sync worker stopped")
	return nil
}

func (w *Worker) handleChange(ctx context.Context, task *asynq.Task) error {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)

	ctx = context.WithValue(ctx, logger.TaskIDKey, taskID)

	d := service.Delivery{
		EntityType: EntityTypeOf(task.Type()),
		Payload:    task.Payload(),
		Attempt:    retried + 1,
		TaskID:     taskID,
	}
	if ok {
		d.MaxAttempts = maxRetry + 1
	}
	return w.processor.Process(ctx, d)
}

func (w *Worker) logFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	if errors.Is(err, context.Canceled) {
		w.log.Info("change task interrupted", "type", task.Type(), "retried", retried)
		return
	}
	w.log.WithContext(ctx).QueueError(task.Type(), retried, maxRetry, err)
}
