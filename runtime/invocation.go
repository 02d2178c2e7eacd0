package runtime

import (
	"context"

	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/memory"
)

// invocation carries the per-call-invocation state CallProxy/Gather need:
// the memory facade to resolve children against, and the codec to decode
// their stored values into caller-declared types. It is threaded through
// context.Context rather than passed explicitly, matching how the task
// body signature (ctx, args) → (result, error) has no room for it.
type invocation struct {
	mem *memory.Memory
	cod codec.Codec
}

type invocationKey struct{}

func withInvocation(ctx context.Context, inv *invocation) context.Context {
	return context.WithValue(ctx, invocationKey{}, inv)
}

// currentInvocation panics if called outside a running task invocation —
// Call/Map/Gather are only meaningful from within a handler body that
// package runtime itself is driving.
func currentInvocation(ctx context.Context) *invocation {
	inv, ok := ctx.Value(invocationKey{}).(*invocation)
	if !ok || inv == nil {
		panic("runtime: Call/Map/Gather used outside a task invocation")
	}
	return inv
}
