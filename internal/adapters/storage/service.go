// Package storage provides read access to index snapshots kept in S3-compatible object storage.
package storage

import (
	"context"
	"io"
	"time"
)

// Object describes a stored snapshot object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// SnapshotSource lists and opens snapshot objects in a single bucket.
type SnapshotSource interface {
	// ListObjects returns every object below prefix, ordered by key.
	ListObjects(ctx context.Context, prefix string) ([]Object, error)

	// Open streams an object. The caller is responsible for closing the returned io.ReadCloser.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
