// Package searchindex defines the read-model documents kept by the index
// synchronizer and the conditional-write contract every store implements.
package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Outcome is the result of a conditional write.
type Outcome string

const (
	// Applied means the write replaced the stored version.
	Applied Outcome = "applied"
	// Stale means the stored version already supersedes the write.
	Stale Outcome = "stale"
)

// Document is one versioned entry in the index. A deleted document is kept as
// a tombstone so that stale writes arriving later are still rejected.
type Document struct {
	Type      string
	ID        string
	Version   int64
	Deleted   bool
	Body      json.RawMessage
	IndexedAt time.Time
}

// Store applies versioned writes.
//
// Put replaces the document only when doc.Version is strictly greater than the
// stored version. Delete writes a tombstone when version is greater than or
// equal to the stored version, or when nothing is stored. Both are atomic per
// document.
type Store interface {
	Put(ctx context.Context, doc Document) (Outcome, error)
	Delete(ctx context.Context, entityType, id string, version int64) (Outcome, error)
	Get(ctx context.Context, entityType, id string) (Document, bool, error)
}

// TombstonePurger removes tombstones older than a cutoff.
type TombstonePurger interface {
	PurgeTombstones(ctx context.Context, entityType string, before time.Time) (int, error)
}

// WriteError is a failed index write.
type WriteError struct {
	Op        string
	Status    int
	Permanent bool
	Err       error
}

func (e *WriteError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("index %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("index %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// IsPermanent reports whether retrying the write cannot succeed.
func IsPermanent(err error) bool {
	var we *WriteError
	return errors.As(err, &we) && we.Permanent
}
