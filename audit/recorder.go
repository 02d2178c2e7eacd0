// Package audit buffers and flushes the records the worker loop emits for
// observability: one record per schedule, value write, and Defer. Grounded
// on the buffering/drop-rule engine of quarry's ingestion policy layer, but
// simplified for a single record stream: every audit Record is droppable,
// so there is no "non-droppable event" escalation path — a full buffer just
// drops its oldest entry and counts it.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cohelm/brrr/lode"
)

// ErrInvalidConfig is returned when Config has no buffer bound set.
var ErrInvalidConfig = errors.New("audit: invalid config: MaxBufferRecords must be set")

// Config configures a Recorder's buffering and flush behavior.
type Config struct {
	// MaxBufferRecords is the maximum number of records to hold before the
	// oldest is dropped to make room for a new one. Must be positive.
	MaxBufferRecords int

	// FlushInterval is how often Start's background goroutine flushes the
	// buffer. Zero disables automatic flushing — the caller must call
	// Flush explicitly (e.g. at shutdown).
	FlushInterval time.Duration

	// Dataset is the Lode dataset records are written to.
	Dataset string
}

// DefaultConfig returns sensible defaults for a Recorder.
func DefaultConfig(dataset string) Config {
	return Config{
		MaxBufferRecords: 1000,
		FlushInterval:    5 * time.Second,
		Dataset:          dataset,
	}
}

// Logger is the narrow logging surface Recorder needs. A nil Logger
// disables logging.
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Stats is a point-in-time snapshot of a Recorder's counters.
type Stats struct {
	Recorded   int64
	Dropped    int64
	Flushed    int64
	FlushCount int64
	Errors     int64
	BufferSize int64
}

// Recorder buffers audit records in memory and flushes them to a Lode
// client in batches. Dropping or duplicating a record changes nothing
// about task-runtime correctness — buffering exists purely to batch
// writes and tolerate a slow or momentarily unavailable sink.
type Recorder struct {
	client lode.Client
	config Config
	logger Logger

	mu     sync.Mutex
	buffer []*lode.Record
	stats  Stats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRecorder creates a Recorder writing through client. Returns
// ErrInvalidConfig if config.MaxBufferRecords is not positive.
func NewRecorder(client lode.Client, config Config) (*Recorder, error) {
	if config.MaxBufferRecords <= 0 {
		return nil, ErrInvalidConfig
	}
	return &Recorder{
		client: client,
		config: config,
		buffer: make([]*lode.Record, 0, config.MaxBufferRecords),
	}, nil
}

// WithLogger sets the Recorder's logger and returns the Recorder for
// chaining.
func (r *Recorder) WithLogger(logger Logger) *Recorder {
	r.logger = logger
	return r
}

// RecordSchedule buffers a schedule record: a child call was registered
// as a pending return on parentMemoKey. A nil Recorder is a no-op, so
// audit is always safe to leave disabled.
func (r *Recorder) RecordSchedule(taskName, memoKey, parentMemoKey string, ts time.Time) {
	if r == nil {
		return
	}
	r.record(&lode.Record{
		RecordKind:    lode.RecordKindSchedule,
		TaskName:      taskName,
		MemoKey:       memoKey,
		Ts:            ts.UTC().Format(time.RFC3339Nano),
		ParentMemoKey: parentMemoKey,
		Day:           lode.DeriveDay(ts),
	})
}

// RecordValue buffers a value record: memoKey's result was written.
func (r *Recorder) RecordValue(taskName, memoKey string, ts time.Time) {
	if r == nil {
		return
	}
	r.record(&lode.Record{
		RecordKind: lode.RecordKindValue,
		TaskName:   taskName,
		MemoKey:    memoKey,
		Ts:         ts.UTC().Format(time.RFC3339Nano),
		Day:        lode.DeriveDay(ts),
	})
}

// RecordDefer buffers a defer record: memoKey suspended waiting on
// missingCount children.
func (r *Recorder) RecordDefer(taskName, memoKey string, missingCount int, ts time.Time) {
	if r == nil {
		return
	}
	r.record(&lode.Record{
		RecordKind:   lode.RecordKindDefer,
		TaskName:     taskName,
		MemoKey:      memoKey,
		Ts:           ts.UTC().Format(time.RFC3339Nano),
		MissingCount: missingCount,
		Day:          lode.DeriveDay(ts),
	})
}

// record appends rec to the buffer, dropping the oldest entry first if the
// buffer is already at capacity.
func (r *Recorder) record(rec *lode.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Recorded++

	if len(r.buffer) >= r.config.MaxBufferRecords {
		dropped := r.buffer[0]
		r.buffer = r.buffer[1:]
		r.stats.Dropped++
		r.warn("dropping oldest audit record: buffer full", "record_kind", dropped.RecordKind, "task_name", dropped.TaskName)
	}
	r.buffer = append(r.buffer, rec)
	r.stats.BufferSize = int64(len(r.buffer))
}

// Flush writes all buffered records to the Lode client and clears the
// buffer. Records are only dropped from the buffer on a successful write;
// a failed flush leaves the buffer intact for the next attempt.
func (r *Recorder) Flush(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	batch := r.buffer
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := r.client.WriteRecords(ctx, r.config.Dataset, batch); err != nil {
		r.mu.Lock()
		r.stats.Errors++
		r.mu.Unlock()
		r.errorw("audit flush failed", "count", len(batch), "error", err)
		return fmt.Errorf("audit: flush: %w", err)
	}

	r.mu.Lock()
	// Only clear the records actually flushed — a concurrent record() call
	// may have appended more while the write was in flight.
	r.buffer = r.buffer[len(batch):]
	r.stats.Flushed += int64(len(batch))
	r.stats.FlushCount++
	r.stats.BufferSize = int64(len(r.buffer))
	r.mu.Unlock()

	return nil
}

// Start launches a background goroutine that calls Flush every
// FlushInterval until ctx is canceled or Close is called. A zero
// FlushInterval makes Start a no-op — the caller must flush explicitly.
func (r *Recorder) Start(ctx context.Context) {
	if r == nil || r.config.FlushInterval <= 0 {
		return
	}
	r.stopCh = make(chan struct{})
	r.wg.Add(1)
	go r.run(ctx)
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if err := r.Flush(ctx); err != nil {
				r.errorw("periodic audit flush failed", "error", err)
			}
		}
	}
}

// Close stops the background flusher (if started), performs a final
// Flush, and closes the underlying Lode client.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if r.stopCh != nil {
		close(r.stopCh)
		r.wg.Wait()
	}
	flushErr := r.Flush(ctx)
	closeErr := r.client.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// Stats returns a snapshot of r's counters.
func (r *Recorder) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Recorder) warn(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Warnw(msg, keysAndValues...)
	}
}

func (r *Recorder) errorw(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Errorw(msg, keysAndValues...)
	}
}
