package scheduler

import (
	"context"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/indexsync/repository"
	"searchahouse/platform/logger"

	"github.com/google/uuid"
)

const (
	defaultReplayInterval = 2 * time.Second
	replayBatchSize       = 50
	stuckReplayAfter      = 10 * time.Minute
)

// ReplayStore is the dead-letter persistence used by the replayer.
type ReplayStore interface {
	ClaimReplays(ctx context.Context, limit int) ([]repository.Record, error)
	MarkReplayed(ctx context.Context, id uuid.UUID) error
	MarkReplayFailed(ctx context.Context, id uuid.UUID, replayError string) error
	ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Publisher enqueues encoded change events.
type Publisher interface {
	PublishRaw(ctx context.Context, entityType changefeed.EntityType, payload []byte, taskID string) error
}

// ReplayRecorder counts replay outcomes.
type ReplayRecorder interface {
	IncReplay(result string)
}

// DeadLetterReplayer re-enqueues dead letters an operator asked to replay.
// The original payload goes back through the versioned write path, so a
// replay of an outdated event is harmless.
type DeadLetterReplayer struct {
	repo      ReplayStore
	publisher Publisher
	metrics   ReplayRecorder
	log       *logger.Logger
	interval  time.Duration
}

func NewDeadLetterReplayer(repo ReplayStore, publisher Publisher, metrics ReplayRecorder, log *logger.Logger, interval time.Duration) *DeadLetterReplayer {
	if interval <= 0 {
		interval = defaultReplayInterval
	}
	return &DeadLetterReplayer{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		log:       log,
		interval:  interval,
	}
}

func (d *DeadLetterReplayer) Run(ctx context.Context) {
	if d == nil || d.repo == nil || d.publisher == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	lastRelease := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if time.Since(lastRelease) >= stuckReplayAfter {
			lastRelease = time.Now()
			if n, err := d.repo.ReleaseStuck(ctx, stuckReplayAfter); err != nil {
				d.log.Warn("dead letter release failed", "error", err)
			} else if n > 0 {
				d.log.Info("released stuck dead letter replays", "count", n)
			}
		}

		d.ReplayOnce(ctx)
	}
}

// ReplayOnce claims and re-enqueues one batch. It returns how many records
// were replayed.
func (d *DeadLetterReplayer) ReplayOnce(ctx context.Context) int {
	records, err := d.repo.ClaimReplays(ctx, replayBatchSize)
	if err != nil {
		d.log.Warn("dead letter claim failed", "error", err)
		return 0
	}

	replayed := 0
	for _, rec := range records {
		if err := d.replay(ctx, rec); err != nil {
			d.log.Warn("dead letter replay failed", "deadLetterId", rec.ID.String(), "error", err)
			if merr := d.repo.MarkReplayFailed(ctx, rec.ID, err.Error()); merr != nil {
				d.log.Warn("dead letter replay status update failed", "deadLetterId", rec.ID.String(), "error", merr)
			}
			d.count("failed")
			continue
		}
		if err := d.repo.MarkReplayed(ctx, rec.ID); err != nil {
			d.log.Warn("dead letter mark replayed failed", "deadLetterId", rec.ID.String(), "error", err)
		}
		d.log.Info("dead letter replayed", "deadLetterId", rec.ID.String(), "entityType", rec.EntityType, "entityId", rec.EntityID)
		d.count("replayed")
		replayed++
	}
	return replayed
}

func (d *DeadLetterReplayer) replay(ctx context.Context, rec repository.Record) error {
	entityType, ok := changefeed.ParseEntityType(rec.EntityType)
	if !ok {
		return &unknownEntityTypeError{entityType: rec.EntityType}
	}
	// unique per replay request
	taskID := "replay:" + rec.ID.String() + ":" + rec.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return d.publisher.PublishRaw(ctx, entityType, rec.Payload, taskID)
}

func (d *DeadLetterReplayer) count(result string) {
	if d.metrics != nil {
		d.metrics.IncReplay(result)
	}
}

type unknownEntityTypeError struct {
	entityType string
}

func (e *unknownEntityTypeError) Error() string {
	return "unknown entity type " + e.entityType
}
