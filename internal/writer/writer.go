// Package writer provides a background batch writer in front of the event
// store. The emitting process enqueues events without blocking; a single
// goroutine drains the queue and appends batches in one transaction each.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/growlog/growlog/internal/metrics"
	"github.com/growlog/growlog/internal/store"
	"github.com/growlog/growlog/pkg/types"
)

// Config holds configuration for the batch writer.
type Config struct {
	// QueueSize is the capacity of the in-memory queue (default: 5000).
	// On overflow the oldest queued event is dropped to admit the newest.
	QueueSize int

	// BatchSize is the number of queued events that triggers a flush (default: 50).
	BatchSize int

	// FlushInterval is the maximum time between flushes (default: 250ms).
	FlushInterval time.Duration

	// FallbackPath is the NDJSON file recording batches that failed to flush.
	// Defaults to <db path>.fallback.ndjson.
	FallbackPath string

	// Metrics receives writer instrumentation. May be nil.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default writer configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:     5000,
		BatchSize:     50,
		FlushInterval: 250 * time.Millisecond,
	}
}

// BatchWriter batches event appends to the store. Losing an event on queue
// overflow or flush failure is preferred over blocking or crashing the
// emitting process; failures are recorded in the fallback dump and metrics.
type BatchWriter struct {
	store   *store.Store
	config  Config
	queue   chan *types.Event
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a new batch writer in front of s.
func New(s *store.Store, config Config) *BatchWriter {
	if config.QueueSize <= 0 {
		config.QueueSize = 5000
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 250 * time.Millisecond
	}
	if config.FallbackPath == "" {
		config.FallbackPath = s.DBPath() + ".fallback.ndjson"
	}

	return &BatchWriter{
		store:   s,
		config:  config,
		queue:   make(chan *types.Event, config.QueueSize),
		metrics: config.Metrics,
	}
}

// Start begins the flush loop. It runs until the context is cancelled or
// Stop is called; Stop drains and flushes whatever is still queued.
func (w *BatchWriter) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("writer: already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Stop gracefully stops the writer, flushing all queued events first.
func (w *BatchWriter) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.cancel()
	<-w.done
	w.running = false
	return nil
}

// Log enqueues one event without blocking. Empty timestamps are filled from
// the current clocks, so callers only ever have to supply event_type. When
// the queue is full the oldest queued event is dropped to admit this one.
func (w *BatchWriter) Log(e *types.Event) {
	if e == nil {
		return
	}
	if e.TSUTC == "" {
		e.TSUTC = types.NowUTC()
	}
	if e.TSLocal == "" {
		e.TSLocal = types.NowLocal()
	}

	select {
	case w.queue <- e:
	default:
		// Queue full: drop the oldest queued event, then try once more.
		// Best effort only: the flush loop may drain the slot we free (or
		// fill none), so the receive and the retry can each still miss.
		select {
		case <-w.queue:
			w.metrics.IncDropped()
		default:
		}
		select {
		case w.queue <- e:
		default:
			w.metrics.IncDropped()
		}
	}
	w.metrics.SetQueueDepth(len(w.queue))
}

// run is the flush loop.
func (w *BatchWriter) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]*types.Event, 0, w.config.BatchSize)

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: drain the queue and flush everything left.
			for {
				select {
				case e := <-w.queue:
					pending = append(pending, e)
					continue
				default:
				}
				break
			}
			w.flush(pending)
			return

		case e := <-w.queue:
			pending = append(pending, e)
			if len(pending) >= w.config.BatchSize {
				pending = w.flush(pending)
			}

		case <-ticker.C:
			pending = w.flush(pending)
		}
	}
}

// flush appends the pending batch in one transaction. On failure the batch is
// recorded in the fallback dump and discarded; the flush loop keeps running.
// Returns the reusable empty batch slice.
func (w *BatchWriter) flush(pending []*types.Event) []*types.Event {
	if len(pending) == 0 {
		return pending
	}

	start := time.Now()
	// Detached context: a cancelled caller must not abort a batch that is
	// already being handed to the store.
	err := w.store.AppendBatch(context.Background(), pending)
	w.metrics.ObserveFlush(len(pending), time.Since(start))
	w.metrics.SetQueueDepth(len(w.queue))

	if err != nil {
		log.Printf("[WARN] writer: failed to flush %d event(s): %v", len(pending), err)
		w.fallbackDump(pending, err)
	}

	return pending[:0]
}

// fallbackDump appends one NDJSON line describing the failed batch, so an
// operator can recover or at least account for the loss.
func (w *BatchWriter) fallbackDump(batch []*types.Event, cause error) {
	w.metrics.IncFallbackDump()

	f, err := os.OpenFile(w.config.FallbackPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("[WARN] writer: failed to open fallback dump %s: %v", w.config.FallbackPath, err)
		return
	}
	defer f.Close()

	line := map[string]interface{}{
		"ts_utc": types.NowUTC(),
		"error":  cause.Error(),
		"rows":   len(batch),
		"events": batch,
	}
	data, err := json.Marshal(line)
	if err != nil {
		log.Printf("[WARN] writer: failed to marshal fallback record: %v", err)
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("[WARN] writer: failed to write fallback record: %v", err)
	}
}
