package sink

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-lynx/lynx-mongolog/internal/metrics"
)

// ErrClosed is reported for entries added after Close.
var ErrClosed = errors.New("mongolog: batcher closed")

// BatchWriter is the write side of a Batcher. *Sink implements it.
type BatchWriter interface {
	WriteBatch(ctx context.Context, entries []Entry) ([]Result, error)
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithFlushTimeout bounds each background flush.
func WithFlushTimeout(d time.Duration) BatcherOption {
	return func(b *Batcher) { b.flushTimeout = d }
}

// WithErrorHandler receives errors returned by background flushes.
func WithErrorHandler(fn func(error)) BatcherOption {
	return func(b *Batcher) { b.onError = fn }
}

// WithBatcherRecorder sets the metrics recorder.
func WithBatcherRecorder(r metrics.Recorder) BatcherOption {
	return func(b *Batcher) { b.rec = metrics.OrNop(r) }
}

// Batcher buffers entries and hands them to a BatchWriter when the buffer is
// full, when the flush interval elapses, and on Close.
type Batcher struct {
	w             BatchWriter
	buf           []Entry
	mu            sync.Mutex
	size          int           // entries per batch
	flushInterval time.Duration // maximum time an entry waits
	flushTimeout  time.Duration
	onError       func(error)
	rec           metrics.Recorder
	stopCh        chan struct{}
	wg            sync.WaitGroup
	closed        atomic.Bool

	// Metrics
	totalEntries atomic.Int64
	totalBatches atomic.Int64
	errorCount   atomic.Int64
}

// NewBatcher starts a Batcher. A non-positive size is treated as 1 and a
// non-positive interval disables periodic flushing.
func NewBatcher(w BatchWriter, size int, flushInterval time.Duration, opts ...BatcherOption) *Batcher {
	if size <= 0 {
		size = 1
	}
	b := &Batcher{
		w:             w,
		buf:           make([]Entry, 0, size),
		size:          size,
		flushInterval: flushInterval,
		rec:           metrics.Nop{},
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.wg.Add(1)
	go b.flushLoop()

	return b
}

// Add buffers e. When the buffer reaches its size the batch is written on
// the caller's goroutine and the propagated error, if any, is returned.
func (b *Batcher) Add(ctx context.Context, e Entry) error {
	var toFlush []Entry
	b.mu.Lock()
	if b.closed.Load() {
		b.mu.Unlock()
		if e.Done != nil {
			e.Done(ErrClosed)
		}
		return ErrClosed
	}
	b.buf = append(b.buf, e)
	if len(b.buf) >= b.size {
		toFlush = b.take()
	}
	pending := len(b.buf)
	b.mu.Unlock()

	b.totalEntries.Add(1)
	b.rec.BatcherPending(pending)

	if len(toFlush) > 0 {
		return b.write(ctx, toFlush)
	}
	return nil
}

// take swaps out the buffer. Must be called with mu held.
func (b *Batcher) take() []Entry {
	out := b.buf
	b.buf = make([]Entry, 0, b.size)
	return out
}

func (b *Batcher) write(ctx context.Context, entries []Entry) error {
	_, err := b.w.WriteBatch(ctx, entries)
	b.totalBatches.Add(1)
	if err != nil {
		b.errorCount.Add(1)
	}
	return err
}

// Flush writes whatever is buffered.
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	toFlush := b.take()
	b.mu.Unlock()
	b.rec.BatcherPending(0)

	if len(toFlush) == 0 {
		return nil
	}
	return b.write(ctx, toFlush)
}

// Pending returns the number of buffered entries.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

func (b *Batcher) backgroundFlush() {
	ctx := context.Background()
	if b.flushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.flushTimeout)
		defer cancel()
	}
	if err := b.Flush(ctx); err != nil && b.onError != nil {
		b.onError(err)
	}
}

// flushLoop periodically flushes the buffer
func (b *Batcher) flushLoop() {
	defer b.wg.Done()

	if b.flushInterval <= 0 {
		return
	}

	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.backgroundFlush()
		}
	}
}

// Close stops the flush loop and writes the remaining entries. Entries added
// afterwards are rejected with ErrClosed.
func (b *Batcher) Close(ctx context.Context) error {
	b.mu.Lock()
	already := b.closed.Swap(true)
	b.mu.Unlock()
	if already {
		return nil
	}

	close(b.stopCh)
	b.wg.Wait()

	return b.Flush(ctx)
}

// GetMetrics returns batcher counters.
func (b *Batcher) GetMetrics() (entries, batches, errors int64) {
	return b.totalEntries.Load(),
		b.totalBatches.Load(),
		b.errorCount.Load()
}
