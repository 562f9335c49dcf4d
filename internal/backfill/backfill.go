// Package backfill replays index snapshots through the change queue. Every
// line is published with the same task id a live change would get, so a
// rebuild converges through the versioned write path instead of overwriting
// the index directly.
package backfill

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"searchahouse/internal/adapters/storage"
	"searchahouse/internal/changefeed"
	"searchahouse/platform/logger"
)

const (
	objectSuffix = ".ndjson"
	maxLineBytes = 4 << 20
)

// Publisher enqueues encoded change events.
type Publisher interface {
	PublishRaw(ctx context.Context, entityType changefeed.EntityType, payload []byte, taskID string) error
}

// Result counts what a run did.
type Result struct {
	Objects   int
	Published int
	Skipped   int
}

// Runner reads `<entityType>/*.ndjson` objects and publishes one task per line.
type Runner struct {
	source    storage.SnapshotSource
	publisher Publisher
	log       *logger.Logger
}

// New creates a backfill runner.
func New(source storage.SnapshotSource, publisher Publisher, log *logger.Logger) *Runner {
	return &Runner{source: source, publisher: publisher, log: log}
}

// Run backfills every listed entity type. It stops at the first listing,
// read or publish failure; lines that cannot be identified are skipped.
func (r *Runner) Run(ctx context.Context, types []changefeed.EntityType) (Result, error) {
	var total Result
	for _, entityType := range types {
		res, err := r.backfillType(ctx, entityType)
		total.Objects += res.Objects
		total.Published += res.Published
		total.Skipped += res.Skipped
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (r *Runner) backfillType(ctx context.Context, entityType changefeed.EntityType) (Result, error) {
	var res Result

	objects, err := r.source.ListObjects(ctx, string(entityType)+"/")
	if err != nil {
		return res, err
	}

	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, objectSuffix) {
			continue
		}
		published, skipped, err := r.backfillObject(ctx, entityType, obj.Key)
		res.Objects++
		res.Published += published
		res.Skipped += skipped
		if err != nil {
			return res, err
		}
		r.log.Info("snapshot object published",
			"entityType", entityType,
			"key", obj.Key,
			"published", published,
			"skipped", skipped,
		)
	}
	return res, nil
}

func (r *Runner) backfillObject(ctx context.Context, entityType changefeed.EntityType, key string) (int, int, error) {
	body, err := r.source.Open(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	published, skipped, line := 0, 0, 0
	for scanner.Scan() {
		line++
		payload := bytes.TrimSpace(scanner.Bytes())
		if len(payload) == 0 {
			continue
		}

		ref, err := refFor(entityType, payload)
		if err != nil {
			r.log.Warn("skipping snapshot line", "key", key, "line", line, "error", err)
			skipped++
			continue
		}

		// the scanner reuses its buffer between lines
		event := append([]byte(nil), payload...)
		if err := r.publisher.PublishRaw(ctx, entityType, event, ref.Key()); err != nil {
			return published, skipped, fmt.Errorf("publish %s line %d: %w", key, line, err)
		}
		published++
	}
	if err := scanner.Err(); err != nil {
		return published, skipped, fmt.Errorf("read %s: %w", key, err)
	}
	return published, skipped, nil
}

func refFor(entityType changefeed.EntityType, payload []byte) (changefeed.Ref, error) {
	header, err := changefeed.PeekHeader(payload)
	if err != nil {
		return changefeed.Ref{}, err
	}
	op, ok := changefeed.ParseOperation(header.Operation)
	if !ok {
		return changefeed.Ref{}, fmt.Errorf("unknown operation %q", header.Operation)
	}
	if header.ID == "" {
		return changefeed.Ref{}, fmt.Errorf("missing entity id")
	}
	if header.Version == nil {
		return changefeed.Ref{}, fmt.Errorf("missing version")
	}
	return changefeed.Ref{Type: entityType, ID: header.ID, Operation: op, Version: *header.Version}, nil
}
