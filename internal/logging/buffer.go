package logging

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type bufferedRecord struct {
	h slog.Handler
	r slog.Record
}

// ring is a fixed-capacity drop-oldest FIFO of records.
type ring struct {
	mu      sync.Mutex
	buf     []bufferedRecord
	head    int // next write position
	count   int
	dropped atomic.Uint64
}

func (q *ring) push(rec bufferedRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf[q.head] = rec
	q.head = (q.head + 1) % len(q.buf)
	if q.count == len(q.buf) {
		q.dropped.Add(1)
		return
	}
	q.count++
}

func (q *ring) drain() []bufferedRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	out := make([]bufferedRecord, q.count)
	start := (q.head - q.count + len(q.buf)) % len(q.buf)
	for i := range out {
		j := (start + i) % len(q.buf)
		out[i] = q.buf[j]
		q.buf[j] = bufferedRecord{}
	}
	q.count = 0
	return out
}

// Buffered is a slog.Handler that queues records instead of writing them.
// Records are written to the wrapped handler by Drain. It lets the edge
// goroutine log without waiting on stdout or the journal.
//
// When the queue is full the oldest record is dropped.
type Buffered struct {
	inner slog.Handler
	q     *ring
}

// NewBuffered wraps inner with a queue of the given capacity.
func NewBuffered(inner slog.Handler, capacity int) *Buffered {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffered{
		inner: inner,
		q:     &ring{buf: make([]bufferedRecord, capacity)},
	}
}

func (b *Buffered) Enabled(ctx context.Context, level slog.Level) bool {
	return b.inner.Enabled(ctx, level)
}

func (b *Buffered) Handle(_ context.Context, r slog.Record) error {
	b.q.push(bufferedRecord{h: b.inner, r: r.Clone()})
	return nil
}

func (b *Buffered) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Buffered{inner: b.inner.WithAttrs(attrs), q: b.q}
}

func (b *Buffered) WithGroup(name string) slog.Handler {
	return &Buffered{inner: b.inner.WithGroup(name), q: b.q}
}

// Drain writes every queued record, oldest first, and returns how many
// were written.
func (b *Buffered) Drain(ctx context.Context) int {
	recs := b.q.drain()
	for _, rec := range recs {
		_ = rec.h.Handle(ctx, rec.r)
	}
	return len(recs)
}

// Dropped returns how many records were lost to overflow.
func (b *Buffered) Dropped() uint64 {
	return b.q.dropped.Load()
}
