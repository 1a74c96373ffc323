package telemetry

import (
	"sync"

	"github.com/automagik/telemetry-go/pkg/event"
)

// batcher is the bounded, order-preserving buffer for one signal kind.
// One batcher is instantiated per kind rather than hand-duplicating queue
// logic per signal.
type batcher struct {
	mu    sync.Mutex
	kind  event.Kind
	limit int
	buf   []event.Event
}

func newBatcher(kind event.Kind, limit int) *batcher {
	return &batcher{
		kind:  kind,
		limit: limit,
		buf:   make([]event.Event, 0, limit),
	}
}

// add enqueues one event in FIFO order and reports whether the push made
// the buffer reach the batch size, i.e. whether the caller must trigger a
// flush. Enqueue always succeeds.
func (b *batcher) add(ev event.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, ev)
	return len(b.buf) >= b.limit
}

// swap atomically captures the current buffer contents and resets the live
// queue to empty, before any network I/O begins. Events enqueued while the
// snapshot is in flight accumulate in the fresh queue, so overlapping
// flushes each operate only on the buffer they captured.
func (b *batcher) swap() []event.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	captured := b.buf
	b.buf = make([]event.Event, 0, b.limit)
	return captured
}

func (b *batcher) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}
