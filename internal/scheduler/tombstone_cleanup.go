package scheduler

import (
	"context"
	"time"

	"searchahouse/internal/changefeed"
	"searchahouse/internal/searchindex"
	"searchahouse/platform/logger"
)

const (
	defaultTombstoneCleanupInterval = time.Hour
	defaultTombstoneRetention       = 7 * 24 * time.Hour
)

// PurgeRecorder counts purged tombstones.
type PurgeRecorder interface {
	AddPurged(n int)
}

// TombstoneCleanup periodically removes old delete markers from the index.
// Retention must exceed the longest time a stale event can spend queued,
// otherwise a late update could resurrect a deleted document.
type TombstoneCleanup struct {
	purger    searchindex.TombstonePurger
	metrics   PurgeRecorder
	log       *logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

func NewTombstoneCleanup(purger searchindex.TombstonePurger, metrics PurgeRecorder, log *logger.Logger, interval, retention time.Duration) *TombstoneCleanup {
	if interval <= 0 {
		interval = defaultTombstoneCleanupInterval
	}
	if retention <= 0 {
		retention = defaultTombstoneRetention
	}

	return &TombstoneCleanup{
		purger:    purger,
		metrics:   metrics,
		log:       log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

func (c *TombstoneCleanup) Run(ctx context.Context) {
	if c == nil || c.purger == nil {
		return
	}

	c.cleanup(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

func (c *TombstoneCleanup) cleanup(ctx context.Context) {
	before := c.now().Add(-c.retention)

	total := 0
	for _, entityType := range changefeed.EntityTypes {
		deleted, err := c.purger.PurgeTombstones(ctx, string(entityType), before)
		if err != nil {
			c.log.Warn("tombstone cleanup failed", "entityType", entityType, "error", err)
			continue
		}
		total += deleted
	}

	if c.metrics != nil && total > 0 {
		c.metrics.AddPurged(total)
	}
	if total > 0 {
		c.log.Info("tombstone cleanup purged delete markers", "deleted", total)
	}
}
