package storage

import (
	"context"
	"fmt"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/gcsblob" // GCS driver
)

// NewGCSStore creates a new Google Cloud Storage store.
func NewGCSStore(bucketName string) (Store, error) {
	ctx := context.Background()

	bucket, err := blob.OpenBucket(ctx, fmt.Sprintf("gs://%s", bucketName))
	if err != nil {
		return nil, fmt.Errorf("open GCS bucket %s: %w", bucketName, err)
	}

	return &blobStore{
		bucket:     bucket,
		bucketName: bucketName,
		scheme:     "gs",
	}, nil
}
