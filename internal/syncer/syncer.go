// Package syncer orchestrates dataset pulls and pushes: sample listing,
// annotation table encoding, and per-file transfers with checkpointed
// resume.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sensorgrid/datasync/internal/api"
	"github.com/sensorgrid/datasync/internal/checkpoint"
	"github.com/sensorgrid/datasync/internal/dataset"
	"github.com/sensorgrid/datasync/internal/logging"
	"github.com/sensorgrid/datasync/internal/metrics"
	"github.com/sensorgrid/datasync/internal/storage"
	"github.com/sensorgrid/datasync/internal/transfer"
)

// imageExtensions are the sensor file extensions recognized when
// scanning a local dataset directory.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// Syncer moves whole datasets between the platform and a store.
type Syncer struct {
	client      *api.Client
	engine      *transfer.Engine
	store       storage.Store
	storePrefix string
	ckpt        checkpoint.Manager
	codec       dataset.Codec
	sensor      string
	compression string
	log         *slog.Logger
}

// New creates a syncer. sensor labels pushed image files, defaulting to
// "camera".
func New(client *api.Client, engine *transfer.Engine, store storage.Store, storePrefix string, ckpt checkpoint.Manager, codec dataset.Codec, sensor string) *Syncer {
	if sensor == "" {
		sensor = "camera"
	}
	return &Syncer{
		client:      client,
		engine:      engine,
		store:       store,
		storePrefix: storePrefix,
		ckpt:        ckpt,
		codec:       codec,
		sensor:      sensor,
		compression: dataset.CompressionSnappy,
		log:         logging.Component("syncer"),
	}
}

// Pull downloads a dataset: the annotation table goes to the store as a
// Parquet file and every sample file is transferred through the
// multipart engine. Files recorded in the checkpoint and still present
// in the store are skipped, so an interrupted pull resumes.
func (s *Syncer) Pull(ctx context.Context, ref storage.DatasetRef, progress chan transfer.Progress) error {
	log := s.log.With("dataset_id", ref.DatasetID)
	log.Info("starting pull")

	samples, err := s.client.ListSamples(ctx, ref.DatasetID, ref.AnnotationSetID)
	if err != nil {
		return err
	}
	log.Info("listed samples", "count", len(samples))

	rows, err := s.codec.ToRows(samples)
	if err != nil {
		return fmt.Errorf("encode annotations: %w", err)
	}

	var buf bytes.Buffer
	if err := dataset.WriteTable(&buf, rows, s.compression); err != nil {
		return err
	}
	annKey := ref.AnnotationsPath(s.storePrefix)
	if err := s.store.Write(ctx, annKey, buf.Bytes()); err != nil {
		return fmt.Errorf("store annotation table: %w", err)
	}
	log.Info("wrote annotation table", "key", annKey, "rows", len(rows))

	cp, err := s.ckpt.Load(ctx, ref.DatasetID)
	if err != nil {
		if !errors.Is(err, checkpoint.ErrNoCheckpoint) {
			return err
		}
		cp = &checkpoint.Checkpoint{
			DatasetID:       ref.DatasetID,
			AnnotationSetID: ref.AnnotationSetID,
		}
	}

	staging, err := os.MkdirTemp("", "datasync-pull-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, sample := range samples {
		for _, file := range sample.Files {
			key := ref.FilePath(s.storePrefix, file.Name)

			if cp.Completed(file.Name) {
				if exists, _ := s.store.Exists(ctx, key); exists {
					log.Debug("skipping file (checkpointed)", "file", file.Name)
					continue
				}
			}

			localPath := filepath.Join(staging, filepath.Base(file.Name))
			session := s.engine.NewDownload(file.Name, localPath, progress)
			if err := session.Run(ctx); err != nil {
				return err
			}

			f, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("open staged file %s: %w", localPath, err)
			}
			err = s.store.Upload(ctx, key, f)
			f.Close()
			os.Remove(localPath)
			if err != nil {
				return fmt.Errorf("store %s: %w", key, err)
			}

			cp.MarkCompleted(file.Name)
			if err := s.ckpt.Save(ctx, cp); err != nil {
				log.Warn("failed to save checkpoint", "error", err)
			}
		}

		if m := metrics.Get(); m != nil {
			m.AddSamplesSynced("download", 1)
		}
	}

	if err := s.ckpt.Clear(ctx, ref.DatasetID); err != nil {
		log.Warn("failed to clear checkpoint", "error", err)
	}

	log.Info("pull complete", "samples", len(samples))
	return nil
}

// Push scans a local dataset directory, registers its samples on the
// platform with client-generated UUIDs, and uploads every sensor file
// through the multipart engine. An annotations.parquet file next to the
// images contributes the annotations.
func (s *Syncer) Push(ctx context.Context, datasetID, dir string, progress chan transfer.Progress) error {
	log := s.log.With("dataset_id", datasetID, "dir", dir)
	log.Info("starting push")

	paths, err := scanImages(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found in %s", dir)
	}

	annotations, err := s.loadLocalAnnotations(dir)
	if err != nil {
		return err
	}

	samples := make([]dataset.Sample, 0, len(paths))
	for _, p := range paths {
		fileName := filepath.Base(p)
		name, frame := dataset.SplitName(fileName, s.codec.DetectSequences)

		sample := dataset.Sample{
			UUID:  uuid.New().String(),
			Name:  fileName,
			Frame: frame,
			Files: []dataset.File{{Type: s.sensor, Name: fileName}},
		}
		if frame != nil {
			seq := name
			sample.SequenceName = &seq
		}
		if anns, ok := annotations[annotationKey(name, frame)]; ok {
			sample.Annotations = anns
		}
		samples = append(samples, sample)
	}

	if err := s.client.PopulateSamples(ctx, datasetID, samples); err != nil {
		return err
	}
	log.Info("registered samples", "count", len(samples))

	for i, p := range paths {
		key := fmt.Sprintf("%s/%s/%s", datasetID, samples[i].UUID, filepath.Base(p))
		session := s.engine.NewUpload(p, key, progress)
		if err := session.Run(ctx); err != nil {
			return err
		}
		if m := metrics.Get(); m != nil {
			m.AddSamplesSynced("upload", 1)
		}
	}

	log.Info("push complete", "samples", len(samples))
	return nil
}

// loadLocalAnnotations reads dir/annotations.parquet when present and
// indexes its annotations by sample identity.
func (s *Syncer) loadLocalAnnotations(dir string) (map[string][]dataset.Annotation, error) {
	path := filepath.Join(dir, "annotations.parquet")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	rows, err := dataset.ReadTable(f, info.Size())
	if err != nil {
		return nil, err
	}
	decoded, err := s.codec.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("decode annotations: %w", err)
	}

	out := make(map[string][]dataset.Annotation, len(decoded))
	for _, sample := range decoded {
		name := dataset.CleanStem(sample.Name)
		if sample.SequenceName != nil {
			name = *sample.SequenceName
		}
		out[annotationKey(name, sample.Frame)] = sample.Annotations
	}
	return out, nil
}

func annotationKey(name string, frame *int64) string {
	if frame == nil {
		return name
	}
	return fmt.Sprintf("%s#%d", name, *frame)
}

// scanImages returns the image files directly under dir and one level
// of sequence subdirectories, sorted by walk order.
func scanImages(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if imageExtensions[ext] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return paths, nil
}
