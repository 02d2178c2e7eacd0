// Package memory is the store facade: typed call/value/pending_returns
// accessors layered over a raw store.Store and a codec.Codec. It owns the
// internal record shapes (package wire) and the CAS retry discipline the
// rest of the runtime depends on. Grounded on original_source's
// src/brrr/store.py Memory class.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/store"
	"github.com/cohelm/brrr/wire"
)

// maxCASAttempts bounds the retry loops in AddPendingReturn and
// WithPendingReturnsRemove. Exceeding it indicates the backend's
// CompareAndSet/CompareAndDelete implementation is not behaving as a real
// compare-and-swap (e.g. always failing, or racing in a way that never
// converges) — it is a tripwire, not a rate limiter.
const maxCASAttempts = 100

// ErrAlreadyExists is returned by SetValue when a value has already been
// stored for the given memo_key. Because values are write-once, this is
// not an error condition for callers to treat as a fault: it means
// another worker already completed the same call.
var ErrAlreadyExists = errors.New("memory: value already exists")

// ErrFatalBackend is returned when a CAS retry loop exceeds
// maxCASAttempts. It indicates the underlying store.Store is not
// providing real compare-and-swap semantics.
var ErrFatalBackend = errors.New("memory: exceeded CAS retry bound, backend is misbehaving")

// Memory is a store.Store + codec.Codec facade exposing the typed
// operations the runtime needs.
type Memory struct {
	store store.Store
	codec codec.Codec
}

// New builds a Memory over the given backend and codec.
func New(s store.Store, c codec.Codec) *Memory {
	return &Memory{store: s, codec: c}
}

func callKey(memoKey string) store.Key           { return store.Key{Namespace: "call", ID: memoKey} }
func valueKey(memoKey string) store.Key          { return store.Key{Namespace: "value", ID: memoKey} }
func pendingReturnsKey(memoKey string) store.Key { return store.Key{Namespace: "pending_returns", ID: memoKey} }

// MakeCall builds a Call for (taskName, args) via the configured codec.
func (m *Memory) MakeCall(taskName string, args any) (call.Call, error) {
	return m.codec.CreateCall(taskName, args)
}

// HasCall reports whether a call payload record exists for c.
func (m *Memory) HasCall(ctx context.Context, c call.Call) (bool, error) {
	return m.store.Has(ctx, callKey(c.MemoKey))
}

// SetCall writes c's call payload record. Idempotent.
func (m *Memory) SetCall(ctx context.Context, c call.Call) error {
	argsBytes, err := m.codec.EncodeCall(c)
	if err != nil {
		return fmt.Errorf("memory: encode call %s: %w", c.MemoKey, err)
	}
	rec := wire.EncodeCallRecord(wire.CallRecord{TaskName: c.TaskName, TaskArgsBytes: argsBytes})
	return m.store.Set(ctx, callKey(c.MemoKey), rec)
}

// GetCallBytes loads the (task_name, args_bytes) pair stored for memoKey.
func (m *Memory) GetCallBytes(ctx context.Context, memoKey string) (taskName string, argsBytes []byte, err error) {
	raw, err := m.store.Get(ctx, callKey(memoKey))
	if err != nil {
		return "", nil, fmt.Errorf("memory: get call %s: %w", memoKey, err)
	}
	rec, err := wire.DecodeCallRecord(raw)
	if err != nil {
		return "", nil, fmt.Errorf("memory: decode call %s: %w", memoKey, err)
	}
	return rec.TaskName, rec.TaskArgsBytes, nil
}

// HasValue reports whether a value is already stored for c.
func (m *Memory) HasValue(ctx context.Context, c call.Call) (bool, error) {
	return m.store.Has(ctx, valueKey(c.MemoKey))
}

// GetValue returns the raw encoded value stored for c.
func (m *Memory) GetValue(ctx context.Context, c call.Call) ([]byte, error) {
	v, err := m.store.Get(ctx, valueKey(c.MemoKey))
	if err != nil {
		return nil, fmt.Errorf("memory: get value %s: %w", c.MemoKey, err)
	}
	return v, nil
}

// SetValue writes the (already-encoded) value for memoKey, write-once.
// If a value is already present, returns ErrAlreadyExists — the caller
// (the worker loop) is expected to treat that as success-by-another-
// worker, not a fault.
func (m *Memory) SetValue(ctx context.Context, memoKey string, value []byte) error {
	err := m.store.SetNewValue(ctx, valueKey(memoKey), value)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrCompareMismatch) {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, memoKey)
	}
	return fmt.Errorf("memory: set value %s: %w", memoKey, err)
}

// nowSeconds stamps scheduled_at. Declared as a package var so tests can
// observe/override it rather than depending on wall-clock time.
var nowSeconds = func() int64 { return time.Now().Unix() }

func encodeReturns(returns map[string]struct{}) []string {
	out := make([]string, 0, len(returns))
	for k := range returns {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) getPendingReturns(ctx context.Context, memoKey string) (raw []byte, rec wire.PendingReturnsRecord, found bool, err error) {
	raw, err = m.store.Get(ctx, pendingReturnsKey(memoKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, wire.PendingReturnsRecord{}, false, nil
		}
		return nil, wire.PendingReturnsRecord{}, false, err
	}
	rec, err = wire.DecodePendingReturns(raw)
	if err != nil {
		return nil, wire.PendingReturnsRecord{}, false, err
	}
	return raw, rec, true, nil
}

// ScheduleFunc enqueues a missing child for execution: writing its call
// payload (if not already present) and putting its memo_key on the queue.
// It is invoked at most once per add_pending_return call, exactly when
// scheduled_at transitions from null to set.
type ScheduleFunc func(ctx context.Context) error

// AddPendingReturn registers parentMemoKey as waiting on childMemoKey's
// value, per the scheduling protocol in the design notes: if this is the
// first parent to register (scheduled_at is null), schedule is invoked
// to enqueue the child exactly once, deduplicating concurrent parents of
// the same child into a single queued message.
func (m *Memory) AddPendingReturn(ctx context.Context, childMemoKey, parentMemoKey string, schedule ScheduleFunc) error {
	for attempt := 0; ; attempt++ {
		if attempt > maxCASAttempts {
			return fmt.Errorf("%w: add_pending_return %s", ErrFatalBackend, childMemoKey)
		}

		existingRaw, existing, found, err := m.getPendingReturns(ctx, childMemoKey)
		if err != nil {
			return fmt.Errorf("memory: read pending_returns %s: %w", childMemoKey, err)
		}

		if !found {
			rec := wire.PendingReturnsRecord{ScheduledAt: -1, Returns: []string{parentMemoKey}}
			err := m.store.SetNewValue(ctx, pendingReturnsKey(childMemoKey), wire.EncodePendingReturns(rec))
			if err != nil {
				if errors.Is(err, store.ErrCompareMismatch) {
					continue // someone else raced us to create the record; retry
				}
				return fmt.Errorf("memory: create pending_returns %s: %w", childMemoKey, err)
			}
			if err := schedule(ctx); err != nil {
				return fmt.Errorf("memory: schedule %s: %w", childMemoKey, err)
			}
			rec.ScheduledAt = nowSeconds()
			err = m.store.CompareAndSet(ctx, pendingReturnsKey(childMemoKey), wire.EncodePendingReturns(rec), wire.EncodePendingReturns(wire.PendingReturnsRecord{ScheduledAt: -1, Returns: []string{parentMemoKey}}))
			if err != nil {
				if errors.Is(err, store.ErrCompareMismatch) {
					continue
				}
				return fmt.Errorf("memory: stamp scheduled_at %s: %w", childMemoKey, err)
			}
			return nil
		}

		returns := make(map[string]struct{}, len(existing.Returns)+1)
		for _, r := range existing.Returns {
			returns[r] = struct{}{}
		}
		_, alreadyPresent := returns[parentMemoKey]
		returns[parentMemoKey] = struct{}{}

		changed := !alreadyPresent
		newRec := wire.PendingReturnsRecord{ScheduledAt: existing.ScheduledAt, Returns: encodeReturns(returns)}

		if existing.ScheduledAt < 0 {
			if err := schedule(ctx); err != nil {
				return fmt.Errorf("memory: schedule %s: %w", childMemoKey, err)
			}
			newRec.ScheduledAt = nowSeconds()
			changed = true
		}

		if !changed {
			return nil
		}

		err = m.store.CompareAndSet(ctx, pendingReturnsKey(childMemoKey), wire.EncodePendingReturns(newRec), existingRaw)
		if err != nil {
			if errors.Is(err, store.ErrCompareMismatch) {
				continue
			}
			return fmt.Errorf("memory: update pending_returns %s: %w", childMemoKey, err)
		}
		return nil
	}
}

// WithPendingReturnsRemove atomically reads and clears the pending_returns
// record for memoKey, returning the parent set observed at the moment of
// removal. If no record exists, returns an empty set with no error — this
// is the expected shape for a value that had no waiting parents.
func (m *Memory) WithPendingReturnsRemove(ctx context.Context, memoKey string) ([]string, error) {
	for attempt := 0; ; attempt++ {
		if attempt > maxCASAttempts {
			return nil, fmt.Errorf("%w: with_pending_returns_remove %s", ErrFatalBackend, memoKey)
		}

		raw, rec, found, err := m.getPendingReturns(ctx, memoKey)
		if err != nil {
			return nil, fmt.Errorf("memory: read pending_returns %s: %w", memoKey, err)
		}
		if !found {
			return nil, nil
		}

		err = m.store.CompareAndDelete(ctx, pendingReturnsKey(memoKey), raw)
		if err != nil {
			if errors.Is(err, store.ErrCompareMismatch) {
				continue
			}
			return nil, fmt.Errorf("memory: delete pending_returns %s: %w", memoKey, err)
		}
		return rec.Returns, nil
	}
}
