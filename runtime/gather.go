package runtime

import (
	"context"

	"github.com/cohelm/brrr/call"
)

// Thunk is a piece of handler logic driven by Gather. It is free to call
// Call/Map/Gather itself — any of which may suspend it with a Defer —
// which is why Gather must run each thunk independently rather than as a
// single linear sequence.
type Thunk func(ctx context.Context) (any, error)

// Gather runs thunks cooperatively, driving each one forward to its own
// first suspension point (a Defer) or completion, rather than stopping
// the whole batch at the first missing dependency the way a plain
// sequential await-chain would. If any thunk suspends, Gather merges
// every suspended thunk's missing calls into a single Defer for the
// enclosing handler. If all thunks complete, it returns their results in
// thunk order; callers type-assert each entry to the type they expect.
//
// This is the direct analogue of gathering multiple asyncio coroutines,
// except Go has no coroutine suspension to resume — each thunk restarts
// from the top on redelivery, same as any other memoized call, so the
// "cooperative" part is purely about which Defers get batched together
// before this handler invocation ends.
func Gather(ctx context.Context, thunks ...Thunk) ([]any, error) {
	results := make([]any, len(thunks))
	var missing []call.Call

	for i, thunk := range thunks {
		suspended, err := runThunk(ctx, thunk, &results[i])
		if err != nil {
			return nil, err
		}
		missing = append(missing, suspended...)
	}

	if len(missing) > 0 {
		panic(deferSignal{missing: dedupeCalls(missing)})
	}
	return results, nil
}

// runThunk executes a single thunk, catching only its own Defer so a
// suspension in one branch does not unwind the others.
func runThunk(ctx context.Context, thunk Thunk, out *any) (missing []call.Call, err error) {
	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(deferSignal); ok {
				missing = d.missing
				return
			}
			panic(r)
		}
	}()

	result, thunkErr := thunk(ctx)
	if thunkErr != nil {
		return nil, thunkErr
	}
	*out = result
	return nil, nil
}
