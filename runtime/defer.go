package runtime

import (
	"sort"

	"github.com/cohelm/brrr/call"
)

// deferSignal is the Go rendering of original_source's Defer exception: a
// structured control-flow signal carrying the calls a handler is still
// waiting on. It is never treated as a fault — it unwinds the handler via
// panic/recover confined entirely to this package and is translated back
// into a plain return value (missing []call.Call, err == nil) by invoke.
// It must never cross an exported API boundary as a panic.
type deferSignal struct {
	missing []call.Call
}

// dedupeCalls collapses a missing-call list down to one entry per
// distinct MemoKey, sorted for determinism. Multiple thunks inside a
// Gather (or repeated Map entries) can easily name the same child.
func dedupeCalls(calls []call.Call) []call.Call {
	seen := make(map[string]call.Call, len(calls))
	for _, c := range calls {
		seen[c.MemoKey] = c
	}
	out := make([]call.Call, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemoKey < out[j].MemoKey })
	return out
}
