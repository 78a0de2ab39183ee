package chatlog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onnwee/chatline/chat"
	"github.com/onnwee/chatline/telemetry"
)

const (
	defaultBuffer   = 512
	defaultBatch    = 100
	defaultInterval = 2 * time.Second
	writeTimeout    = 10 * time.Second
)

// Recorder is a chat.Observer that batches timeline changes into a Store. It
// never blocks the timeline: when the buffer is full the change is dropped and
// counted.
type Recorder struct {
	store    Store
	queue    chan Record
	batch    int
	interval time.Duration
	logger   *slog.Logger

	dropped atomic.Int64
	done    chan struct{}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithBuffer sets the queue capacity.
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.queue = make(chan Record, n)
		}
	}
}

// WithBatch sets the flush size and the maximum time a record waits.
func WithBatch(size int, interval time.Duration) RecorderOption {
	return func(r *Recorder) {
		if size > 0 {
			r.batch = size
		}
		if interval > 0 {
			r.interval = interval
		}
	}
}

func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder returns a recorder writing to store. Call Run to start it.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:    store,
		queue:    make(chan Record, defaultBuffer),
		batch:    defaultBatch,
		interval: defaultInterval,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(slog.String("component", "chatlog"))
	return r
}

// MessageAdded implements chat.Observer.
func (r *Recorder) MessageAdded(ch *chat.Channel, m chat.Message) {
	r.enqueue(FromMessage(ch, m))
}

// MessagesDeleted implements chat.Observer.
func (r *Recorder) MessagesDeleted(ch *chat.Channel, ids []string) {
	now := time.Now().UTC()
	for _, id := range ids {
		r.enqueue(Record{Op: OpDelete, ID: id, ChannelID: ch.ID, Deleted: true, Timestamp: now})
	}
}

func (r *Recorder) enqueue(rec Record) {
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		if telemetry.ChatlogDropped != nil {
			telemetry.ChatlogDropped.Inc()
		}
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run flushes queued records until ctx is done, then drains what is left and
// closes the store.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	pending := make([]Record, 0, r.batch)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		defer cancel()
		if err := r.store.Write(wctx, pending); err != nil {
			r.logger.Error("archive write failed", slog.Int("records", len(pending)), slog.Any("err", err))
		}
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case rec := <-r.queue:
					pending = append(pending, rec)
					if len(pending) >= r.batch {
						flush()
					}
				default:
					flush()
					if err := r.store.Close(); err != nil {
						r.logger.Warn("archive close failed", slog.Any("err", err))
					}
					return
				}
			}
		case rec := <-r.queue:
			pending = append(pending, rec)
			if len(pending) >= r.batch {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Wait blocks until Run has returned.
func (r *Recorder) Wait() { <-r.done }
