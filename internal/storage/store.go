// Package storage abstracts dataset export destinations: a local
// directory for working copies, or an S3/GCS bucket for shared mirrors.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// DatasetRef locates one dataset export under the store prefix.
type DatasetRef struct {
	ProjectID       string
	DatasetID       string
	AnnotationSetID string
}

// AnnotationsPath returns the key of the dataset's annotation table.
func (r DatasetRef) AnnotationsPath(prefix string) string {
	set := r.AnnotationSetID
	if set == "" {
		set = "default"
	}
	return fmt.Sprintf("%s%s/%s/annotations/%s.parquet", prefix, r.ProjectID, r.DatasetID, set)
}

// FilePath returns the key of one sensor file within the export.
func (r DatasetRef) FilePath(prefix, fileName string) string {
	return fmt.Sprintf("%s%s/%s/files/%s", prefix, r.ProjectID, r.DatasetID, fileName)
}

// DirPath returns the export's root key.
func (r DatasetRef) DirPath(prefix string) string {
	return fmt.Sprintf("%s%s/%s", prefix, r.ProjectID, r.DatasetID)
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ETag    string // MD5 for S3/GCS, empty for local
	ModTime time.Time
}

// Store abstracts writing and reading dataset exports.
type Store interface {
	// Write stores a small payload under key, atomically where the
	// backend allows it.
	Write(ctx context.Context, key string, data []byte) error

	// Upload streams a payload under key.
	Upload(ctx context.Context, key string, r io.Reader) error

	// Reader opens a stored object for reading.
	Reader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists checks whether an object is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Head returns metadata about a stored object.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// URI returns the canonical URI for the given key.
	// For local: file:///path, GCS: gs://bucket/path, S3: s3://bucket/path
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the storage backend.
type Config struct {
	Backend string // "local" | "gcs" | "s3"

	// Local filesystem
	LocalDir string

	// GCS
	GCSBucket string

	// S3 (also works for B2, R2, MinIO)
	S3Bucket    string
	S3Endpoint  string // custom endpoint for B2/MinIO/R2
	S3Region    string
	S3PathStyle bool // force path-style addressing even without a custom endpoint
}

// NewStore creates a storage backend based on configuration.
func NewStore(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("LocalDir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("GCSBucket required for gcs backend")
		}
		return NewGCSStore(cfg.GCSBucket)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3Bucket required for s3 backend")
		}
		return NewS3Store(cfg.S3Bucket, cfg.S3Endpoint, cfg.S3Region, cfg.S3PathStyle)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}
