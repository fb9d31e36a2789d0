package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bankverify/bankverify/internal/debounce"
)

const (
	defaultBuffer        = 256
	defaultBatchSize     = 50
	defaultFlushInterval = 500 * time.Millisecond
	flushTimeout         = 5 * time.Second
)

// Options tunes an AsyncRecorder.
type Options struct {
	Buffer        int
	BatchSize     int
	FlushInterval time.Duration
}

// AsyncRecorder buffers events and writes them in batches from a background goroutine.
// Record never blocks. Events arriving while the buffer is full are dropped.
type AsyncRecorder struct {
	repo      Repository
	logger    *slog.Logger
	events    chan Event
	flushCh   chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	batchSize int
	debouncer *debounce.Debouncer
	// mu orders sends in Record against Close so the final drain sees every accepted event.
	mu        sync.RWMutex
	closed    bool
	now       func() time.Time
}

// NewAsyncRecorder starts the background writer.
func NewAsyncRecorder(repo Repository, logger *slog.Logger, opts Options) *AsyncRecorder {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultBuffer
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = defaultFlushInterval
	}
	r := &AsyncRecorder{
		repo:      repo,
		logger:    logger,
		events:    make(chan Event, opts.Buffer),
		flushCh:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		batchSize: opts.BatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	r.debouncer = debounce.New(opts.FlushInterval, func() {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	})
	go r.run()
	return r
}

// Record enqueues the event, filling in id and timestamp when absent.
func (r *AsyncRecorder) Record(_ context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = r.now()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.logger.Warn("audit event after close", slog.String("action", event.Action))
		return
	}
	select {
	case r.events <- event:
	default:
		r.logger.Warn("audit buffer full, dropping event",
			slog.String("action", event.Action),
			slog.String("target_id", event.TargetID),
		)
	}
}

func (r *AsyncRecorder) run() {
	defer close(r.stopped)
	pending := make([]Event, 0, r.batchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := r.repo.SaveBatch(ctx, pending); err != nil {
			r.logger.Error("audit flush failed", slog.Int("events", len(pending)), slog.Any("error", err))
		}
		pending = pending[:0]
	}

	for {
		select {
		case e := <-r.events:
			pending = append(pending, e)
			if len(pending) >= r.batchSize {
				flush()
				continue
			}
			r.debouncer.Trigger()
		case <-r.flushCh:
			flush()
		case <-r.done:
			r.debouncer.Stop()
			for {
				select {
				case e := <-r.events:
					pending = append(pending, e)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and waits for the remaining ones to be written.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.done)
	}
	r.mu.Unlock()
	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
