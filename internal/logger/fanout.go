package logger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MultiHandler sends each record to every enabled handler.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a MultiHandler, skipping nil handlers.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	kept := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			kept = append(kept, h)
		}
	}
	return &MultiHandler{handlers: kept}
}

// Enabled reports whether any handler accepts the level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle dispatches a clone of r to every enabled handler and joins failures.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to every handler.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

// WithGroup applies the group to every handler.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	return m.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) derive(fn func(slog.Handler) slog.Handler) *MultiHandler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = fn(h)
	}
	return &MultiHandler{handlers: next}
}

const (
	defaultAsyncBufferSize   = 1024
	defaultAsyncFlushTimeout = 5 * time.Second
)

// AsyncOptions configures the async log queue.
type AsyncOptions struct {
	BufferSize   int
	FlushTimeout time.Duration
}

type queuedRecord struct {
	ctx     context.Context
	record  slog.Record
	handler slog.Handler
}

// asyncQueue is shared by an AsyncHandler and all handlers derived from it.
type asyncQueue struct {
	records      chan queuedRecord
	flushTimeout time.Duration
	closed       atomic.Bool
	dropped      atomic.Uint64
	done         sync.WaitGroup
}

func newAsyncQueue(opts AsyncOptions) *asyncQueue {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultAsyncBufferSize
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = defaultAsyncFlushTimeout
	}

	q := &asyncQueue{
		records:      make(chan queuedRecord, size),
		flushTimeout: flush,
	}
	q.done.Go(func() {
		for rec := range q.records {
			_ = rec.handler.Handle(rec.ctx, rec.record)
		}
	})
	return q
}

// push never blocks; records are dropped when the queue is full.
func (q *asyncQueue) push(rec queuedRecord) {
	if q.closed.Load() {
		return
	}
	select {
	case q.records <- rec:
	default:
		q.dropped.Add(1)
	}
}

func (q *asyncQueue) close(ctx context.Context) error {
	if q.closed.Swap(true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.flushTimeout)
		defer cancel()
	}
	close(q.records)

	drained := make(chan struct{})
	go func() {
		q.done.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AsyncHandler hands records to a background goroutine which forwards them
// to the wrapped handler.
type AsyncHandler struct {
	queue   *asyncQueue
	handler slog.Handler
}

// NewAsyncHandler creates an AsyncHandler with its own queue.
func NewAsyncHandler(handler slog.Handler, opts AsyncOptions) *AsyncHandler {
	return &AsyncHandler{queue: newAsyncQueue(opts), handler: handler}
}

// Enabled delegates to the wrapped handler.
func (a *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return a.handler.Enabled(ctx, level)
}

// Handle queues the record.
func (a *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !a.handler.Enabled(ctx, r.Level) {
		return nil
	}
	a.queue.push(queuedRecord{ctx: ctx, record: r.Clone(), handler: a.handler})
	return nil
}

// WithAttrs returns a handler sharing the same queue.
func (a *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{queue: a.queue, handler: a.handler.WithAttrs(attrs)}
}

// WithGroup returns a handler sharing the same queue.
func (a *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{queue: a.queue, handler: a.handler.WithGroup(name)}
}

// Dropped returns how many records were discarded because the queue was full.
func (a *AsyncHandler) Dropped() uint64 {
	return a.queue.dropped.Load()
}

// Shutdown drains queued records, bounded by ctx or the flush timeout.
func (a *AsyncHandler) Shutdown(ctx context.Context) error {
	if a == nil || a.queue == nil {
		return nil
	}
	return a.queue.close(ctx)
}
