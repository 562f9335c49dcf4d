// Package repository persists dead-lettered change events in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"searchahouse/internal/indexsync/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Status string

const (
	StatusPending         Status = "pending"
	StatusReplayRequested Status = "replay_requested"
	StatusReplaying       Status = "replaying"
	StatusReplayed        Status = "replayed"
	StatusReplayFailed    Status = "replay_failed"
	errRepoNotConfigured         = "dead-letter repository not configured"
)

var (
	// ErrNotFound is returned when no dead letter has the requested id.
	ErrNotFound = errors.New("dead letter not found")
	// ErrNotReplayable is returned when a replay is requested for a record
	// that is already queued or replayed.
	ErrNotReplayable = errors.New("dead letter is not replayable")
)

type Record struct {
	ID          uuid.UUID
	EntityType  string
	EntityID    string
	Operation   string
	Version     *int64
	Reason      string
	Error       string
	Attempts    int
	Payload     []byte
	Status      Status
	ReplayError *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ReplayedAt  *time.Time
}

type ListParams struct {
	Status     Status
	EntityType string
	Limit      int
	Offset     int
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `id, entity_type, entity_id, operation, version, reason, error_message, attempts,
	payload, status, replay_error, created_at, updated_at, replayed_at`

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	var status string
	err := row.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Operation, &rec.Version, &rec.Reason,
		&rec.Error, &rec.Attempts, &rec.Payload, &status, &rec.ReplayError, &rec.CreatedAt, &rec.UpdatedAt, &rec.ReplayedAt)
	if err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	return rec, nil
}

// Record stores a dead letter. It satisfies service.DeadLetterSink.
func (r *Repository) Record(ctx context.Context, dl service.DeadLetter) (string, error) {
	if r == nil || r.pool == nil {
		return "", errors.New(errRepoNotConfigured)
	}
	if dl.EntityType == "" {
		return "", fmt.Errorf("entityType is required")
	}
	if dl.Reason == "" {
		return "", fmt.Errorf("reason is required")
	}
	payload := dl.Payload
	if payload == nil {
		payload = []byte{}
	}

	id := uuid.New()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_dead_letters (id, entity_type, entity_id, operation, version, reason, error_message, attempts, payload, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')`,
		id, dl.EntityType, dl.EntityID, dl.Operation, dl.Version, dl.Reason, dl.Error, dl.Attempts, payload,
	)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errors.New(errRepoNotConfigured)
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM sync_dead_letters WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns dead letters newest first together with the total count.
func (r *Repository) List(ctx context.Context, p ListParams) ([]Record, int, error) {
	if r == nil || r.pool == nil {
		return nil, 0, errors.New(errRepoNotConfigured)
	}
	if p.Limit < 1 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	var status, entityType *string
	if p.Status != "" {
		s := string(p.Status)
		status = &s
	}
	if p.EntityType != "" {
		entityType = &p.EntityType
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM sync_dead_letters
		 WHERE ($1::text IS NULL OR status = $1) AND ($2::text IS NULL OR entity_type = $2)`,
		status, entityType,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM sync_dead_letters
		 WHERE ($1::text IS NULL OR status = $1) AND ($2::text IS NULL OR entity_type = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		status, entityType, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, 0, rows.Err()
	}
	return results, total, nil
}

// RequestReplay flags a pending or failed record for the replayer.
func (r *Repository) RequestReplay(ctx context.Context, id uuid.UUID) (Record, error) {
	if r == nil || r.pool == nil {
		return Record{}, errors.New(errRepoNotConfigured)
	}

	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`UPDATE sync_dead_letters
		 SET status = 'replay_requested', replay_error = NULL, updated_at = now()
		 WHERE id = $1 AND status IN ('pending', 'replay_failed')
		 RETURNING `+selectColumns, id))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Record{}, err
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return Record{}, err
	}
	return Record{}, ErrNotReplayable
}

// ClaimReplays moves up to limit replay-requested records to replaying.
// Concurrent replayers never claim the same record.
func (r *Repository) ClaimReplays(ctx context.Context, limit int) ([]Record, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM sync_dead_letters
		WHERE status = 'replay_requested'
		ORDER BY updated_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE sync_dead_letters d
	SET status = 'replaying', updated_at = now()
	FROM cte
	WHERE d.id = cte.id
	RETURNING d.id, d.entity_type, d.entity_id, d.operation, d.version, d.reason, d.error_message, d.attempts,
		d.payload, d.status, d.replay_error, d.created_at, d.updated_at, d.replayed_at`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Repository) MarkReplayed(ctx context.Context, id uuid.UUID) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_dead_letters
		 SET status = 'replayed', replay_error = NULL, replayed_at = now(), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	return err
}

func (r *Repository) MarkReplayFailed(ctx context.Context, id uuid.UUID, replayError string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE sync_dead_letters
		 SET status = 'replay_failed', replay_error = $2, updated_at = now()
		 WHERE id = $1`,
		id, replayError,
	)
	return err
}

// ReleaseStuck returns records left in replaying by a crashed replayer to
// replay_requested.
func (r *Repository) ReleaseStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE sync_dead_letters
		 SET status = 'replay_requested', updated_at = now()
		 WHERE status = 'replaying' AND updated_at < now() - make_interval(secs => $1)`,
		olderThan.Seconds(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
