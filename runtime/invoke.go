package runtime

import (
	"context"

	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/memory"
)

// invoke runs handler for (memoKey, taskName, payload), recovering a
// Defer raised by Call/Map/Gather anywhere in the call stack and
// translating it into (nil, missing, nil) — a plain return value rather
// than a propagated panic. Any other panic is re-raised: it is a genuine
// programming error, not a control-flow signal this package owns.
func invoke(ctx context.Context, mem *memory.Memory, cod codec.Codec, handler codec.Handler, memoKey, taskName string, payload []byte) (value []byte, missing []call.Call, err error) {
	ctx = withInvocation(ctx, &invocation{mem: mem, cod: cod})

	defer func() {
		if r := recover(); r != nil {
			if d, ok := r.(deferSignal); ok {
				value = nil
				missing = dedupeCalls(d.missing)
				err = nil
				return
			}
			panic(r)
		}
	}()

	value, err = cod.InvokeTask(ctx, memoKey, taskName, handler, payload)
	return value, nil, err
}
