// Package retry provides scope-aware retry classification and an
// exponential backoff executor for platform and object-storage requests.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sensorgrid/datasync/internal/metrics"
)

// StatusError reports a non-success HTTP status from either the platform
// API or an object-storage endpoint. The policy classifies it by status
// code; everything else is treated as a transport error.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("http status %s", e.Status)
}

// Func performs one attempt of an operation.
type Func func(ctx context.Context) error

// Policy executes operations with classified retry semantics and
// exponential backoff.
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       bool
	apiHost      string
	logger       *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets the total attempt count, first try included.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) { p.maxAttempts = n }
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) { p.initialDelay = d }
}

// WithMaxDelay caps the computed backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.maxDelay = d }
}

// WithJitter toggles randomized delay scaling in [0.5, 1.5).
func WithJitter(enabled bool) Option {
	return func(p *Policy) { p.jitter = enabled }
}

// WithAPIHost overrides the platform host used for URL classification.
func WithAPIHost(host string) Option {
	return func(p *Policy) { p.apiHost = host }
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) { p.logger = logger }
}

// NewPolicy creates a retry policy with defaults: 3 attempts, 100ms
// initial delay doubling per attempt, 10s cap, jitter on.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:  3,
		initialDelay: 100 * time.Millisecond,
		maxDelay:     10 * time.Second,
		multiplier:   2.0,
		jitter:       true,
		apiHost:      DefaultAPIHost,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p
}

// Do runs fn under the retry semantics classified from rawURL. Sleeps
// between attempts are context-aware; a canceled context stops the loop
// immediately. The last error is returned wrapped with the attempt count.
func (p *Policy) Do(ctx context.Context, rawURL string, fn Func) error {
	scope := ClassifyHost(rawURL, p.apiHost)

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt - 1)
			if m := metrics.Get(); m != nil {
				m.IncRetryAttempts(scope.String())
			}
			p.logger.Warn("retrying request",
				"scope", scope.String(),
				"attempt", attempt+1,
				"max_attempts", p.maxAttempts,
				"delay", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !Retryable(scope, lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("after %d attempts: %w", p.maxAttempts, lastErr)
}

// delay computes the backoff for the given zero-based retry index.
func (p *Policy) delay(retry int) time.Duration {
	d := float64(p.initialDelay)
	for i := 0; i < retry; i++ {
		d *= p.multiplier
	}
	if max := float64(p.maxDelay); d > max {
		d = max
	}
	if p.jitter {
		d *= 0.5 + rand.Float64()
	}
	return time.Duration(d)
}

// Retryable reports whether an error is worth another attempt under the
// given scope. Transport errors retry in both scopes. Status codes
// follow the platform contract: the API never retries 401/403, both
// scopes retry 408/429/5xx, and storage additionally retries 409 and
// 423 for lock and conflict races on multipart objects.
func Retryable(scope Scope, err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		return true
	}
	return RetryableStatus(scope, statusErr.StatusCode)
}

// RetryableStatus reports whether an HTTP status is retryable in scope.
func RetryableStatus(scope Scope, status int) bool {
	if status >= 500 && status <= 599 {
		return true
	}
	switch scope {
	case ScopeRemoteAPI:
		switch status {
		case 408, 429:
			return true
		}
	case ScopeObjectStorage:
		switch status {
		case 408, 409, 423, 429:
			return true
		}
	}
	return false
}
