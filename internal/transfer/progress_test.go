package transfer

import (
	"testing"
	"time"
)

func TestEmitterNeverBlocks(t *testing.T) {
	ch := make(chan Progress, 2)
	e := NewEmitter(ch)

	// No consumer at all; emitting far past the buffer must return.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			e.Emit(Progress{Current: int64(i), Total: 1000})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitter blocked with a full buffer and no consumer")
	}
}

func TestEmitterDropsOldest(t *testing.T) {
	ch := make(chan Progress, 2)
	e := NewEmitter(ch)

	e.Emit(Progress{Current: 1, Total: 10})
	e.Emit(Progress{Current: 2, Total: 10})
	e.Emit(Progress{Current: 3, Total: 10}) // evicts 1

	got := <-ch
	if got.Current != 2 {
		t.Errorf("first pending update = %d, want 2 (oldest dropped)", got.Current)
	}
	got = <-ch
	if got.Current != 3 {
		t.Errorf("second pending update = %d, want 3 (newest kept)", got.Current)
	}
}

func TestEmitterNilChannel(t *testing.T) {
	e := NewEmitter(nil)
	// Must be a no-op, not a panic or a block.
	e.Emit(Progress{Current: 1, Total: 1})

	var nilEmitter *Emitter
	nilEmitter.Emit(Progress{Current: 1, Total: 1})
}
