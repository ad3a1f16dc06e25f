package pipeline

import (
	"sync"
	"time"
)

// Batcher accumulates items of type T and flushes them as a batch once
// either maxItems items have accumulated or window has elapsed since the
// oldest pending item, whichever comes first. It generalizes a per-path
// debouncer from coalesce-by-key to accumulate-by-count-or-time, since the
// embed and index worker pools batch unrelated jobs rather than merging
// repeated events for the same key.
type Batcher[T any] struct {
	maxItems int
	window   time.Duration
	output   *unboundedQueue[[]T]

	mu      sync.Mutex
	pending []T
	timer   *time.Timer
	stopped bool
}

// NewBatcher creates a Batcher with the given count and time thresholds.
// Batches are emitted on the channel returned by Output. The handoff to
// Output is unbounded: a consumer that falls behind a batch's processing
// time only adds latency, it never loses a batch.
func NewBatcher[T any](maxItems int, window time.Duration) *Batcher[T] {
	return &Batcher[T]{
		maxItems: maxItems,
		window:   window,
		output:   newUnboundedQueue[[]T](),
	}
}

// Add appends item to the pending batch, flushing immediately if maxItems
// is reached and otherwise (re)starting the window timer.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	b.pending = append(b.pending, item)
	if len(b.pending) >= b.maxItems {
		b.flushLocked()
		return
	}
	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
}

func (b *Batcher[T]) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// flushLocked must be called with b.mu held.
func (b *Batcher[T]) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return
	}

	batch := b.pending
	b.pending = nil
	b.output.Push(batch)
}

// Output returns the channel of flushed batches.
func (b *Batcher[T]) Output() <-chan []T {
	return b.output.Out()
}

// Stop flushes any pending items and closes the output channel. Safe to
// call once; a second call is a no-op.
func (b *Batcher[T]) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.flushLocked()
	b.mu.Unlock()
	b.output.Close()
}
