package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cohelm/brrr/adapter"
	"github.com/cohelm/brrr/audit"
	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/memory"
	"github.com/cohelm/brrr/metrics"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/registry"
)

// ErrSpawnLimit guards against runaway fan-out: a single Worker tracks
// how many children it has registered as pending returns, and refuses to
// register more past MaxSpawns. This is a best-effort, in-process
// counter — not a distributed budget enforced across a cluster of
// workers — surfaced to the caller of Run the same way a task handler
// exception or a fatal backend fault is.
var ErrSpawnLimit = errors.New("runtime: spawn limit exceeded")

// Logger is the narrow logging surface Worker needs; zap's
// *zap.SugaredLogger satisfies it without runtime importing zap
// directly. A nil Logger disables logging.
type Logger interface {
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
}

// Stats is a point-in-time snapshot of a Worker's counters, shown by the
// cli/tui monitor view when it is given a Worker.
type Stats struct {
	MessagesProcessed int64
	ValuesWritten     int64
	Defers            int64
	FanOuts           int64
}

// Worker drives the wrrrk loop: pull a message, reconstruct the call,
// invoke its handler, and either store the value and fan out to waiting
// parents, or register this call as a pending return on each missing
// child. Grounded on spec.md §4.7; the counters/structure are grounded on
// quarry/runtime/fanout.go's Operator (atomic counters, bounded retry of
// the dispatch loop).
type Worker struct {
	Memory   *memory.Memory
	Codec    codec.Codec
	Registry *registry.Registry
	Queue    queue.Queue
	Logger   Logger

	// Metrics receives per-task and per-backend counters in addition to
	// the Worker's own atomic Stats. Nil disables it.
	Metrics *metrics.Collector

	// Audit records one entry per schedule, value write, and Defer for
	// the audit trail. Nil disables it.
	Audit *audit.Recorder

	// Notifier publishes a TaskCompletedEvent alongside the normal
	// parent re-enqueue whenever this Worker writes a new value. Nil
	// disables it; a publish failure is logged, not propagated, since a
	// downstream notification is best-effort and must not block the
	// fan-out step that other pending calls depend on.
	Notifier adapter.Notifier

	// PollInterval is how long Run sleeps after an empty queue poll
	// before trying again.
	PollInterval time.Duration
	// MaxSpawns bounds total children registered by this Worker across
	// its lifetime. Zero means unlimited.
	MaxSpawns int

	spawnCount        atomic.Int64
	messagesProcessed atomic.Int64
	valuesWritten     atomic.Int64
	defers            atomic.Int64
	fanOuts           atomic.Int64
}

// Stats returns a snapshot of w's counters.
func (w *Worker) Stats() Stats {
	return Stats{
		MessagesProcessed: w.messagesProcessed.Load(),
		ValuesWritten:     w.valuesWritten.Load(),
		Defers:            w.defers.Load(),
		FanOuts:           w.fanOuts.Load(),
	}
}

// Run drives the worker loop until the queue closes or ctx is canceled,
// at which point it returns nil. Any other error — a task handler
// exception, a fatal backend fault, or ErrSpawnLimit — propagates
// immediately; the caller decides whether to restart.
func (w *Worker) Run(ctx context.Context) error {
	if w.PollInterval <= 0 {
		w.PollInterval = 50 * time.Millisecond
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		drained, err := w.runOnce(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
				return nil
			}
			return err
		}
		if drained {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.PollInterval):
			}
		}
	}
}

// runOnce drives a single iteration of the loop. drained reports whether
// the queue was empty (the caller should back off before the next poll).
func (w *Worker) runOnce(ctx context.Context) (drained bool, err error) {
	msg, err := w.Queue.GetMessage(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrEmpty) {
			return true, nil
		}
		return false, err
	}

	memoKey := string(msg.Body)
	w.messagesProcessed.Add(1)
	w.Metrics.IncMessageReceived()

	taskName, argsBytes, err := w.Memory.GetCallBytes(ctx, memoKey)
	if err != nil {
		w.Metrics.IncMessagePoison()
		w.warn("dropping message for unreadable call record", "memo_key", memoKey, "error", err)
		return false, w.Queue.DeleteMessage(ctx, msg.Receipt)
	}

	handler, ok := w.Registry.Handler(taskName, w.Codec)
	if !ok {
		w.warn("dropping message for unregistered task", "memo_key", memoKey, "task_name", taskName)
		return false, w.Queue.DeleteMessage(ctx, msg.Receipt)
	}

	c := call.Call{TaskName: taskName, Args: argsBytes, MemoKey: memoKey}

	hasValue, err := w.Memory.HasValue(ctx, c)
	if err != nil {
		return false, err
	}
	if hasValue {
		return false, w.fanOutAndAck(ctx, memoKey, msg.Receipt)
	}

	value, missing, err := invoke(ctx, w.Memory, w.Codec, handler, memoKey, taskName, argsBytes)
	if err != nil {
		w.Metrics.IncCallFailed(taskName)
		return false, err
	}

	if len(missing) > 0 {
		w.defers.Add(1)
		w.Metrics.IncCallDeferred(taskName)
		w.Audit.RecordDefer(taskName, memoKey, len(missing), time.Now())
		if w.MaxSpawns > 0 {
			if w.spawnCount.Add(int64(len(missing))) > int64(w.MaxSpawns) {
				w.Metrics.IncSpawnLimitHit()
				return false, fmt.Errorf("%w: %s requested %d children", ErrSpawnLimit, memoKey, len(missing))
			}
		}
		for _, child := range missing {
			child := child
			scheduleChild := func(ctx context.Context) error {
				if err := w.Memory.SetCall(ctx, child); err != nil {
					return err
				}
				return w.Queue.Put(ctx, []byte(child.MemoKey))
			}
			if err := w.Memory.AddPendingReturn(ctx, child.MemoKey, memoKey, scheduleChild); err != nil {
				return false, err
			}
			w.Audit.RecordSchedule(child.TaskName, child.MemoKey, memoKey, time.Now())
		}
		return false, w.Queue.DeleteMessage(ctx, msg.Receipt)
	}

	if err := w.Memory.SetValue(ctx, memoKey, value); err != nil && !errors.Is(err, memory.ErrAlreadyExists) {
		return false, err
	}
	w.valuesWritten.Add(1)
	w.Metrics.IncCallResolved(taskName)
	w.Audit.RecordValue(taskName, memoKey, time.Now())
	w.notify(ctx, taskName, memoKey, value)

	return false, w.fanOutAndAck(ctx, memoKey, msg.Receipt)
}

// notify publishes a completion event through Notifier, if configured. A
// failed publish is logged and otherwise ignored: the value is already
// durably written, so a downstream notification outage must not stall
// the worker loop.
func (w *Worker) notify(ctx context.Context, taskName, memoKey string, value []byte) {
	if w.Notifier == nil {
		return
	}

	event := &adapter.TaskCompletedEvent{
		TaskName:  taskName,
		MemoKey:   memoKey,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	var decoded any
	if err := w.Codec.DecodeReturn(value, &decoded); err == nil {
		event.Result = decoded
	}
	if err := w.Notifier.Publish(ctx, event); err != nil {
		w.warn("notifier publish failed", "memo_key", memoKey, "task_name", taskName, "error", err)
	}
}

func (w *Worker) fanOutAndAck(ctx context.Context, memoKey, receipt string) error {
	parents, err := w.Memory.WithPendingReturnsRemove(ctx, memoKey)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		if err := w.Queue.Put(ctx, []byte(parent)); err != nil {
			return err
		}
		w.Metrics.IncParentReenqueued()
	}
	if len(parents) > 0 {
		w.fanOuts.Add(1)
	}
	return w.Queue.DeleteMessage(ctx, receipt)
}

func (w *Worker) warn(msg string, keysAndValues ...any) {
	if w.Logger != nil {
		w.Logger.Warnw(msg, keysAndValues...)
	}
}
