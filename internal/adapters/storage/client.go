package storage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"searchahouse/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOService implements SnapshotSource using MinIO.
type MinIOService struct {
	client *minio.Client
	bucket string
}

// NewMinIOService creates a snapshot source for the configured bucket.
func NewMinIOService(cfg config.MinIOConfig) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client, bucket: cfg.GetSnapshotBucket()}, nil
}

// Bucket returns the snapshot bucket name.
func (s *MinIOService) Bucket() string {
	return s.bucket
}

// CheckBucket fails when the snapshot bucket does not exist.
func (s *MinIOService) CheckBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// ListObjects returns every object below prefix, ordered by key.
func (s *MinIOService) ListObjects(ctx context.Context, prefix string) ([]Object, error) {
	objects := make([]Object, 0)
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("failed to list objects under %s: %w", prefix, info.Err)
		}
		objects = append(objects, Object{Key: info.Key, Size: info.Size, LastModified: info.LastModified})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Open streams an object from the snapshot bucket.
func (s *MinIOService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return obj, nil
}

var _ SnapshotSource = (*MinIOService)(nil)
