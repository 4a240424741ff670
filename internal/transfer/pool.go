package transfer

import (
	"context"
	"sync/atomic"

	"github.com/sensorgrid/datasync/internal/metrics"
)

// Pool bounds the number of part transfers in flight across all
// sessions sharing it. Acquisition is a channel semaphore so waiting
// respects context cancellation.
type Pool struct {
	sem      chan struct{}
	inFlight atomic.Int64
}

// NewPool creates a pool with the given worker capacity.
func NewPool(capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sem: make(chan struct{}, capacity),
	}
}

// Capacity returns the maximum number of concurrent slots.
func (p *Pool) Capacity() int {
	return cap(p.sem)
}

// InFlight returns the number of currently held slots.
func (p *Pool) InFlight() int64 {
	return p.inFlight.Load()
}

// Acquire blocks until a slot is free or the context is done.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.sem <- struct{}{}:
		n := p.inFlight.Add(1)
		if m := metrics.Get(); m != nil {
			m.SetInFlightParts(float64(n))
		}
		return nil
	}
}

// Release frees a previously acquired slot.
func (p *Pool) Release() {
	<-p.sem
	n := p.inFlight.Add(-1)
	if m := metrics.Get(); m != nil {
		m.SetInFlightParts(float64(n))
	}
}

// Do runs fn while holding a pool slot.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}
