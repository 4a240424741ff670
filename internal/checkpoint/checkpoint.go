// Package checkpoint persists dataset sync progress so interrupted
// pulls resume instead of re-downloading every file.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrNoCheckpoint is returned when no checkpoint exists.
	ErrNoCheckpoint = errors.New("no checkpoint found")
)

// Checkpoint records which files of a dataset pull have completed.
type Checkpoint struct {
	DatasetID       string    `json:"dataset_id"`
	AnnotationSetID string    `json:"annotation_set_id,omitempty"`
	CompletedFiles  []string  `json:"completed_files"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Completed reports whether a file name is already marked done.
func (cp *Checkpoint) Completed(name string) bool {
	for _, f := range cp.CompletedFiles {
		if f == name {
			return true
		}
	}
	return false
}

// MarkCompleted records a finished file, keeping the list free of
// duplicates.
func (cp *Checkpoint) MarkCompleted(name string) {
	if cp.Completed(name) {
		return
	}
	cp.CompletedFiles = append(cp.CompletedFiles, name)
	cp.UpdatedAt = time.Now().UTC()
}

// Manager handles checkpoint persistence and retrieval.
type Manager interface {
	// Load reads the checkpoint for a dataset.
	Load(ctx context.Context, datasetID string) (*Checkpoint, error)

	// Save persists the checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error

	// Clear removes the checkpoint for a dataset after a completed
	// pull.
	Clear(ctx context.Context, datasetID string) error
}

// Config configures the checkpoint manager.
type Config struct {
	Enabled bool
	Dir     string // Directory for checkpoint files
}

// NewManager creates a checkpoint manager based on configuration.
func NewManager(cfg Config) (Manager, error) {
	if !cfg.Enabled {
		return &noopManager{}, nil
	}

	// Ensure checkpoint directory exists
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", cfg.Dir, err)
	}

	return &fileManager{dir: cfg.Dir}, nil
}

// fileManager persists checkpoints to local files.
type fileManager struct {
	dir string
}

func (m *fileManager) checkpointPath(datasetID string) string {
	return filepath.Join(m.dir, fmt.Sprintf("checkpoint_%s.json", datasetID))
}

// Load reads the checkpoint for a dataset from file.
func (m *fileManager) Load(ctx context.Context, datasetID string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath(datasetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCheckpoint
		}
		return nil, fmt.Errorf("read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint file: %w", err)
	}

	return &cp, nil
}

// Save persists the checkpoint to file.
func (m *fileManager) Save(ctx context.Context, cp *Checkpoint) error {
	path := m.checkpointPath(cp.DatasetID)

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	// Write atomically
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write checkpoint temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename checkpoint file: %w", err)
	}

	return nil
}

// Clear removes a dataset's checkpoint file.
func (m *fileManager) Clear(ctx context.Context, datasetID string) error {
	if err := os.Remove(m.checkpointPath(datasetID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove checkpoint file: %w", err)
	}
	return nil
}

// noopManager is a no-op checkpoint manager for when checkpointing is
// disabled.
type noopManager struct{}

func (m *noopManager) Load(ctx context.Context, datasetID string) (*Checkpoint, error) {
	return nil, ErrNoCheckpoint
}

func (m *noopManager) Save(ctx context.Context, cp *Checkpoint) error {
	return nil
}

func (m *noopManager) Clear(ctx context.Context, datasetID string) error {
	return nil
}
