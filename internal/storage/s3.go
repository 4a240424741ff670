package storage

import (
	"context"
	"fmt"
	"net/url"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob" // S3 driver
)

// NewS3Store creates a new S3-compatible store.
// Works with AWS S3, Backblaze B2, Cloudflare R2, and MinIO.
func NewS3Store(bucketName, endpoint, region string, pathStyle bool) (Store, error) {
	ctx := context.Background()

	bucket, err := blob.OpenBucket(ctx, s3BucketURL(bucketName, endpoint, region, pathStyle))
	if err != nil {
		return nil, fmt.Errorf("open S3 bucket %s: %w", bucketName, err)
	}

	return &blobStore{
		bucket:     bucket,
		bucketName: bucketName,
		scheme:     "s3",
	}, nil
}

// s3BucketURL builds the gocloud.dev bucket URL. Path-style addressing
// is always forced for custom endpoints, which rarely support
// virtual-host addressing, and can be requested explicitly for bucket
// names that break it.
func s3BucketURL(bucketName, endpoint, region string, pathStyle bool) string {
	params := url.Values{}
	if region != "" {
		params.Set("region", region)
	}
	if endpoint != "" {
		params.Set("endpoint", endpoint)
	}
	if endpoint != "" || pathStyle {
		params.Set("s3ForcePathStyle", "true")
	}

	bucketURL := fmt.Sprintf("s3://%s", bucketName)
	if len(params) > 0 {
		bucketURL += "?" + params.Encode()
	}
	return bucketURL
}
