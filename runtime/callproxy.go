package runtime

import (
	"context"
	"fmt"

	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/registry"
)

// Call resolves task(args) from within a running handler: the memoized
// call form described in the design notes as "T(args...)". If the
// child's value is already stored, it is decoded and returned directly.
// Otherwise the child is recorded as missing and Call suspends the
// current handler invocation via a Defer — the handler function does not
// return normally; invoke recovers the Defer one level up.
func Call[A any, R any](ctx context.Context, task *registry.Task[A, R], args A) (R, error) {
	var zero R
	inv := currentInvocation(ctx)

	c, err := inv.mem.MakeCall(task.Name(), args)
	if err != nil {
		return zero, fmt.Errorf("runtime: make call %s: %w", task.Name(), err)
	}

	has, err := inv.mem.HasValue(ctx, c)
	if err != nil {
		return zero, err
	}
	if !has {
		panic(deferSignal{missing: []call.Call{c}})
	}

	raw, err := inv.mem.GetValue(ctx, c)
	if err != nil {
		return zero, err
	}
	var result R
	if err := inv.cod.DecodeReturn(raw, &result); err != nil {
		return zero, fmt.Errorf("runtime: decode value %s: %w", c.MemoKey, err)
	}
	return result, nil
}

// Map is the batched parallel form described as "T.map([args0, args1,
// ...])": every missing child across the whole batch is accumulated
// before suspending, so a handler with N independent children of the
// same task reports all N in a single Defer rather than one per
// invocation.
func Map[A any, R any](ctx context.Context, task *registry.Task[A, R], argsList []A) ([]R, error) {
	inv := currentInvocation(ctx)

	results := make([]R, len(argsList))
	calls := make([]call.Call, len(argsList))
	var missing []call.Call

	for i, args := range argsList {
		c, err := inv.mem.MakeCall(task.Name(), args)
		if err != nil {
			return nil, fmt.Errorf("runtime: make call %s: %w", task.Name(), err)
		}
		calls[i] = c

		has, err := inv.mem.HasValue(ctx, c)
		if err != nil {
			return nil, err
		}
		if !has {
			missing = append(missing, c)
		}
	}

	if len(missing) > 0 {
		panic(deferSignal{missing: missing})
	}

	for i, c := range calls {
		raw, err := inv.mem.GetValue(ctx, c)
		if err != nil {
			return nil, err
		}
		var result R
		if err := inv.cod.DecodeReturn(raw, &result); err != nil {
			return nil, fmt.Errorf("runtime: decode value %s: %w", c.MemoKey, err)
		}
		results[i] = result
	}
	return results, nil
}
