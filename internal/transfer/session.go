// Package transfer implements the multipart transfer engine: part
// planning, a bounded worker pool, and upload/download sessions over
// presigned object-storage URLs.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sensorgrid/datasync/internal/logging"
	"github.com/sensorgrid/datasync/internal/metrics"
	"github.com/sensorgrid/datasync/internal/retry"
)

// Control is the platform surface a session needs: multipart lifecycle
// and presigned URL issuance. Implemented by the api client.
type Control interface {
	CreateMultipartUpload(ctx context.Context, key string, parts int) (*MultipartUpload, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	CreateDownloadURL(ctx context.Context, key string) (*DownloadTarget, error)
}

// MultipartUpload is the control-plane handle for an in-progress upload:
// one presigned PUT URL per planned part.
type MultipartUpload struct {
	UploadID string
	PartURLs []string
}

// CompletedPart pairs a 1-based part number with the opaque token the
// storage backend returned for it.
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	Token      string `json:"etag"`
}

// DownloadTarget is a presigned GET URL with the object size when the
// control plane knows it; Size < 0 means unknown.
type DownloadTarget struct {
	URL  string
	Size int64
}

// State is a session's position in its lifecycle.
type State int32

const (
	StatePlanning State = iota
	StateTransferring
	StateFinalizing
	StateDone
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePlanning:
		return "planning"
	case StateTransferring:
		return "transferring"
	case StateFinalizing:
		return "finalizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is one of the three end states.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateAborted
}

// Engine builds and runs transfer sessions against a shared pool.
type Engine struct {
	control  Control
	pool     *Pool
	client   *partClient
	partSize int64
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithPartSize overrides the default 100 MiB part size.
func WithPartSize(size int64) EngineOption {
	return func(e *Engine) { e.partSize = size }
}

// WithHTTPClient overrides the HTTP client used for part traffic.
func WithHTTPClient(c *http.Client) EngineOption {
	return func(e *Engine) { e.client.http = c }
}

// NewEngine creates a transfer engine. The policy governs per-part
// retries; part URLs classify as object storage, so 401/403 on an
// expired presign fail without useless retries.
func NewEngine(control Control, pool *Pool, policy *retry.Policy, opts ...EngineOption) *Engine {
	e := &Engine{
		control: control,
		pool:    pool,
		client: &partClient{
			http:   &http.Client{Timeout: 30 * time.Second},
			policy: policy,
		},
		partSize: DefaultPartSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session is one upload or download of one file. It passes through
// planning → transferring → finalizing and ends in exactly one of
// done, failed, or aborted.
type Session struct {
	engine    *Engine
	direction string // "upload" | "download"
	key       string
	path      string
	state     atomic.Int32
	emitter   *Emitter
}

// NewUpload prepares an upload session for a local file. A nil progress
// channel disables progress emission.
func (e *Engine) NewUpload(localPath, key string, progress chan Progress) *Session {
	return &Session{
		engine:    e,
		direction: "upload",
		key:       key,
		path:      localPath,
		emitter:   NewEmitter(progress),
	}
}

// NewDownload prepares a download session to a local file.
func (e *Engine) NewDownload(key, localPath string, progress chan Progress) *Session {
	return &Session{
		engine:    e,
		direction: "download",
		key:       key,
		path:      localPath,
		emitter:   NewEmitter(progress),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// finish records the terminal state for a run result. Cancellation
// resolves to aborted, any other error to failed.
func (s *Session) finish(err error) error {
	m := metrics.Get()
	switch {
	case err == nil:
		s.setState(StateDone)
		if m != nil {
			m.IncTransfersCompleted(s.direction)
		}
	case errors.Is(err, context.Canceled):
		s.setState(StateAborted)
		if m != nil {
			m.IncTransfersFailed(s.direction)
		}
	default:
		s.setState(StateFailed)
		if m != nil {
			m.IncTransfersFailed(s.direction)
		}
	}
	return err
}

// Run executes the session to its terminal state.
func (s *Session) Run(ctx context.Context) error {
	if m := metrics.Get(); m != nil {
		m.IncTransfersStarted(s.direction)
	}
	switch s.direction {
	case "upload":
		return s.finish(s.runUpload(ctx))
	default:
		return s.finish(s.runDownload(ctx))
	}
}

func (s *Session) runUpload(ctx context.Context) error {
	e := s.engine
	s.setState(StatePlanning)

	f, err := os.Open(s.path)
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: err}
	}
	size := info.Size()

	parts, err := PlanParts(size, e.partSize)
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: err}
	}

	transferID := logging.GenerateTransferID()
	log := logging.TransferLogger(transferID, s.direction, s.path, len(parts), size)
	log.Info("starting upload", "key", s.key)

	mp, err := e.control.CreateMultipartUpload(ctx, s.key, len(parts))
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: fmt.Errorf("create multipart upload: %w", err)}
	}
	if len(mp.PartURLs) != len(parts) {
		abortUpload(ctx, e.control, s.key, mp.UploadID, log)
		return &TransferError{File: s.path, Part: -1,
			Err: fmt.Errorf("planned %d parts but got %d part URLs", len(parts), len(mp.PartURLs))}
	}

	s.setState(StateTransferring)

	// Tokens are written by part index so the completion list is in
	// part order no matter which worker finishes first.
	tokens := make([]CompletedPart, len(parts))
	var moved atomic.Int64

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, part := range parts {
		wg.Add(1)
		go func(part Part) {
			defer wg.Done()
			err := e.pool.Do(cctx, func(ctx context.Context) error {
				start := time.Now()
				etag, err := e.client.putPart(ctx, mp.PartURLs[part.Index], f, part.Offset, part.Length)
				if err != nil {
					return err
				}
				tokens[part.Index] = CompletedPart{PartNumber: part.Index + 1, Token: etag}
				s.recordPart(part, size, &moved, start)
				return nil
			})
			if err != nil {
				fail(&TransferError{File: s.path, Part: part.Index, Err: err})
			}
		}(part)
	}
	wg.Wait()

	if firstErr != nil {
		log.Error("upload failed", "error", firstErr)
		abortUpload(ctx, e.control, s.key, mp.UploadID, log)
		if m := metrics.Get(); m != nil {
			m.IncTransfersAborted(s.direction)
		}
		return firstErr
	}

	s.setState(StateFinalizing)
	if err := e.control.CompleteMultipartUpload(ctx, s.key, mp.UploadID, tokens); err != nil {
		log.Error("complete failed", "error", err)
		abortUpload(ctx, e.control, s.key, mp.UploadID, log)
		if m := metrics.Get(); m != nil {
			m.IncTransfersAborted(s.direction)
		}
		return &TransferError{File: s.path, Part: -1, Err: fmt.Errorf("complete multipart upload: %w", err)}
	}

	s.emitter.Emit(Progress{Current: size, Total: size})
	log.Info("upload complete")
	return nil
}

func (s *Session) runDownload(ctx context.Context) error {
	e := s.engine
	s.setState(StatePlanning)

	target, err := e.control.CreateDownloadURL(ctx, s.key)
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: fmt.Errorf("create download url: %w", err)}
	}
	size := target.Size
	if size < 0 {
		size, err = e.client.headSize(ctx, target.URL)
		if err != nil {
			return &TransferError{File: s.path, Part: -1, Err: fmt.Errorf("resolve object size: %w", err)}
		}
	}

	parts, err := PlanParts(size, e.partSize)
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: err}
	}

	transferID := logging.GenerateTransferID()
	log := logging.TransferLogger(transferID, s.direction, s.path, len(parts), size)
	log.Info("starting download", "key", s.key)

	// Download into a temp file preallocated at full size; positional
	// writes let parts land in any order. Rename on success.
	tmpPath := s.path + ".part"
	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &TransferError{File: s.path, Part: -1, Err: err}
	}
	defer f.Close()
	if err := f.Truncate(size); err != nil {
		os.Remove(tmpPath)
		return &TransferError{File: s.path, Part: -1, Err: err}
	}

	s.setState(StateTransferring)

	var moved atomic.Int64

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, part := range parts {
		if part.Length == 0 {
			s.emitter.Emit(Progress{Current: moved.Load(), Total: size})
			continue
		}
		wg.Add(1)
		go func(part Part) {
			defer wg.Done()
			err := e.pool.Do(cctx, func(ctx context.Context) error {
				start := time.Now()
				if err := e.client.getPart(ctx, target.URL, f, part.Offset, part.Length); err != nil {
					return err
				}
				s.recordPart(part, size, &moved, start)
				return nil
			})
			if err != nil {
				fail(&TransferError{File: s.path, Part: part.Index, Err: err})
			}
		}(part)
	}
	wg.Wait()

	if firstErr != nil {
		log.Error("download failed", "error", firstErr)
		os.Remove(tmpPath)
		return firstErr
	}

	s.setState(StateFinalizing)
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return &TransferError{File: s.path, Part: -1, Err: err}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return &TransferError{File: s.path, Part: -1, Err: err}
	}

	s.emitter.Emit(Progress{Current: size, Total: size})
	log.Info("download complete")
	return nil
}

// recordPart updates progress and metrics after one part lands.
func (s *Session) recordPart(part Part, total int64, moved *atomic.Int64, start time.Time) {
	current := moved.Add(part.Length)
	s.emitter.Emit(Progress{Current: current, Total: total})
	if m := metrics.Get(); m != nil {
		m.IncPartsCompleted(s.direction)
		m.ObservePartDuration(s.direction, time.Since(start).Seconds())
		m.ObservePartBytes(s.direction, float64(part.Length))
		m.AddBytesTransferred(s.direction, float64(part.Length))
	}
}

// abortUpload tells the control plane to discard a created multipart
// upload. It runs on a fresh timeout so an already-canceled session
// context cannot leak server-side upload state.
func abortUpload(ctx context.Context, control Control, key, uploadID string, log *slog.Logger) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := control.AbortMultipartUpload(actx, key, uploadID); err != nil {
		log.Warn("abort multipart upload failed", "error", err)
	}
}
