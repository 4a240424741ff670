package transfer

// Progress reports how far a transfer has advanced.
type Progress struct {
	Current int64
	Total   int64
}

// Emitter delivers Progress updates to a channel without ever blocking
// the transfer path. When the channel buffer is full the oldest pending
// update is discarded in favor of the newest, so a slow consumer sees a
// sparser but always current view. A nil channel disables emission.
type Emitter struct {
	ch chan Progress
}

// NewEmitter wraps a progress channel. The channel must be buffered so
// drop-oldest eviction has a queue to evict from; the emitter needs
// receive access to evict, which is why the channel is bidirectional.
func NewEmitter(ch chan Progress) *Emitter {
	return &Emitter{ch: ch}
}

// Emit delivers an update, dropping the oldest pending one if needed.
func (e *Emitter) Emit(p Progress) {
	if e == nil || e.ch == nil {
		return
	}
	for {
		select {
		case e.ch <- p:
			return
		default:
		}
		// Buffer full: evict the oldest pending update and try again.
		// The receive can race with the consumer draining; losing that
		// race just means a slot opened up for the send.
		select {
		case <-e.ch:
		default:
			// Unbuffered channel with no waiting receiver; drop this
			// update rather than block.
			return
		}
	}
}
