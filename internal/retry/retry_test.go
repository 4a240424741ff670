package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassifyHost(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Scope
	}{
		{"api root", "https://sensorgrid.io/api", ScopeRemoteAPI},
		{"api subpath", "https://sensorgrid.io/api/v1/rpc", ScopeRemoteAPI},
		{"api subdomain", "https://staging.sensorgrid.io/api", ScopeRemoteAPI},
		{"http scheme", "http://sensorgrid.io/api", ScopeRemoteAPI},
		{"presign path on apex", "https://sensorgrid.io/uploads/abc?sig=x", ScopeObjectStorage},
		{"api prefix but different path", "https://sensorgrid.io/apiary", ScopeObjectStorage},
		{"other host", "https://bucket.s3.amazonaws.com/key", ScopeObjectStorage},
		{"suffix but not subdomain", "https://evilsensorgrid.io/api", ScopeObjectStorage},
		{"non-http scheme", "ftp://sensorgrid.io/api", ScopeObjectStorage},
		{"garbage", "://not-a-url", ScopeObjectStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyHost(tt.url, "sensorgrid.io")
			if got != tt.want {
				t.Errorf("ClassifyHost(%q) = %v, want %v", tt.url, got, tt.want)
			}
			// Classification is deterministic: same URL, same scope.
			if again := ClassifyHost(tt.url, "sensorgrid.io"); again != got {
				t.Errorf("ClassifyHost(%q) not deterministic: %v then %v", tt.url, got, again)
			}
		})
	}
}

func TestRetryableStatus(t *testing.T) {
	tests := []struct {
		scope  Scope
		status int
		want   bool
	}{
		{ScopeRemoteAPI, 401, false},
		{ScopeRemoteAPI, 403, false},
		{ScopeRemoteAPI, 408, true},
		{ScopeRemoteAPI, 429, true},
		{ScopeRemoteAPI, 500, true},
		{ScopeRemoteAPI, 503, true},
		{ScopeRemoteAPI, 404, false},
		{ScopeRemoteAPI, 409, false},
		{ScopeObjectStorage, 401, false},
		{ScopeObjectStorage, 403, false},
		{ScopeObjectStorage, 408, true},
		{ScopeObjectStorage, 409, true},
		{ScopeObjectStorage, 423, true},
		{ScopeObjectStorage, 429, true},
		{ScopeObjectStorage, 502, true},
		{ScopeObjectStorage, 404, false},
	}

	for _, tt := range tests {
		got := RetryableStatus(tt.scope, tt.status)
		if got != tt.want {
			t.Errorf("RetryableStatus(%v, %d) = %v, want %v", tt.scope, tt.status, got, tt.want)
		}
	}
}

func TestDoNeverRetriesAuthFailures(t *testing.T) {
	policy := NewPolicy(
		WithMaxAttempts(5),
		WithInitialDelay(time.Millisecond),
	)

	for _, status := range []int{401, 403} {
		attempts := 0
		err := policy.Do(context.Background(), "https://sensorgrid.io/api", func(ctx context.Context) error {
			attempts++
			return &StatusError{StatusCode: status, Status: "auth failure"}
		})
		if err == nil {
			t.Fatalf("status %d: expected error", status)
		}
		if attempts != 1 {
			t.Errorf("status %d: got %d attempts, want exactly 1", status, attempts)
		}
	}
}

func TestDoRetriesServerErrorsUpToMax(t *testing.T) {
	policy := NewPolicy(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
	)

	attempts := 0
	err := policy.Do(context.Background(), "https://sensorgrid.io/api", func(ctx context.Context) error {
		attempts++
		return &StatusError{StatusCode: 503, Status: "503 Service Unavailable"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Errorf("final error should unwrap to *StatusError, got %v", err)
	}
}

func TestDoSucceedsAfterTransientFailure(t *testing.T) {
	policy := NewPolicy(
		WithMaxAttempts(3),
		WithInitialDelay(time.Millisecond),
	)

	attempts := 0
	err := policy.Do(context.Background(), "https://bucket.example.com/part1", func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return &StatusError{StatusCode: 429, Status: "429 Too Many Requests"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Errorf("got %d attempts, want 2", attempts)
	}
}

func TestDoStorageRetries409(t *testing.T) {
	policy := NewPolicy(
		WithMaxAttempts(2),
		WithInitialDelay(time.Millisecond),
	)

	attempts := 0
	policy.Do(context.Background(), "https://bucket.example.com/part1", func(ctx context.Context) error {
		attempts++
		return &StatusError{StatusCode: 409, Status: "409 Conflict"}
	})
	if attempts != 2 {
		t.Errorf("storage 409: got %d attempts, want 2", attempts)
	}

	// The same status against the API is terminal.
	attempts = 0
	policy.Do(context.Background(), "https://sensorgrid.io/api", func(ctx context.Context) error {
		attempts++
		return &StatusError{StatusCode: 409, Status: "409 Conflict"}
	})
	if attempts != 1 {
		t.Errorf("api 409: got %d attempts, want 1", attempts)
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	policy := NewPolicy(
		WithMaxAttempts(10),
		WithInitialDelay(50*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := policy.Do(ctx, "https://bucket.example.com/part1", func(ctx context.Context) error {
		attempts++
		return &StatusError{StatusCode: 500, Status: "500"}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts > 2 {
		t.Errorf("got %d attempts after cancel, want at most 2", attempts)
	}
}

func TestDelayGrowsAndCaps(t *testing.T) {
	policy := NewPolicy(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(false),
	)

	if d := policy.delay(0); d != 100*time.Millisecond {
		t.Errorf("delay(0) = %v, want 100ms", d)
	}
	if d := policy.delay(1); d != 200*time.Millisecond {
		t.Errorf("delay(1) = %v, want 200ms", d)
	}
	if d := policy.delay(2); d != 400*time.Millisecond {
		t.Errorf("delay(2) = %v, want 400ms", d)
	}
	if d := policy.delay(10); d != time.Second {
		t.Errorf("delay(10) = %v, want capped 1s", d)
	}
}

func TestDelayJitterBounds(t *testing.T) {
	policy := NewPolicy(
		WithInitialDelay(100*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(true),
	)

	for i := 0; i < 100; i++ {
		d := policy.delay(0)
		if d < 50*time.Millisecond || d >= 150*time.Millisecond {
			t.Fatalf("jittered delay %v outside [50ms, 150ms)", d)
		}
	}
}
