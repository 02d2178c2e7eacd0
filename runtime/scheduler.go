// Package runtime implements the task-invocation driver: CallProxy
// (Call/Map), Gather, the scheduling protocol, and the worker loop
// (wrrrk). Grounded on spec.md §4.4-4.7 and original_source's
// tests/test_brrr.py scenario suite.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/memory"
	"github.com/cohelm/brrr/queue"
)

// ErrNotFound is returned by Read when no value has been computed yet for
// the given call.
var ErrNotFound = errors.New("runtime: value not found")

// Schedule enqueues a root call: it builds the Call via the codec,
// writes its call payload record (idempotent — scheduling the same
// logical call twice converges on the same store state), and puts its
// memo_key on the queue.
func Schedule(ctx context.Context, mem *memory.Memory, q queue.Queue, taskName string, args any) (call.Call, error) {
	c, err := mem.MakeCall(taskName, args)
	if err != nil {
		return call.Call{}, fmt.Errorf("runtime: schedule %s: %w", taskName, err)
	}
	if err := mem.SetCall(ctx, c); err != nil {
		return call.Call{}, fmt.Errorf("runtime: schedule %s: %w", taskName, err)
	}
	if err := q.Put(ctx, []byte(c.MemoKey)); err != nil {
		return call.Call{}, fmt.Errorf("runtime: schedule %s: %w", taskName, err)
	}
	return c, nil
}

// Read decodes the memoized result for (taskName, args) into out, a
// pointer to the caller's expected result type. Returns ErrNotFound if
// the call has not completed yet.
func Read(ctx context.Context, mem *memory.Memory, cod codec.Codec, taskName string, args any, out any) error {
	c, err := mem.MakeCall(taskName, args)
	if err != nil {
		return fmt.Errorf("runtime: read %s: %w", taskName, err)
	}
	has, err := mem.HasValue(ctx, c)
	if err != nil {
		return err
	}
	if !has {
		return fmt.Errorf("%w: %s", ErrNotFound, c.MemoKey)
	}
	raw, err := mem.GetValue(ctx, c)
	if err != nil {
		return err
	}
	return cod.DecodeReturn(raw, out)
}
