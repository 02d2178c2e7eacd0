// Package codec defines the pluggable argument/return serializer and
// memo_key fingerprinter. It is the only component permitted to inspect
// argument structure — every other package treats call payloads and
// return values as opaque bytes.
package codec

import (
	"context"

	"github.com/cohelm/brrr/call"
)

// Handler is a task body already bound by package registry to a decoder
// for its declared argument type. It receives the raw argument payload
// and returns a raw return payload; the codec decides how that payload
// gets produced and consumed (DecodeArgsInto/EncodeValue below), while
// InvokeTask is the seam a codec gets to drive the call through — a
// reference blob codec just forwards payload straight to handler, but a
// cross-process or cross-language codec could do substantially more here.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Codec is the narrow four-operation contract: create_call, encode_call,
// invoke_task, decode_return. Serializations must be deterministic —
// equal logical arguments must always fingerprint to an equal MemoKey,
// regardless of incidental representation differences (e.g. map key
// order).
type Codec interface {
	// CreateCall builds a Call for (taskName, args), computing a
	// deterministic MemoKey from the pair.
	CreateCall(taskName string, args any) (call.Call, error)
	// EncodeCall serializes the arguments portion of c for storage; the
	// counterpart decode happens inside InvokeTask.
	EncodeCall(c call.Call) ([]byte, error)
	// DecodeArgsInto decodes a call's argument payload into out, a
	// pointer to the task's declared argument type. Used by package
	// registry to reconstruct typed arguments before invoking a task
	// body.
	DecodeArgsInto(payload []byte, out any) error
	// EncodeValue encodes a task's return value (or any other stored
	// value) for the wire.
	EncodeValue(v any) ([]byte, error)
	// InvokeTask decodes payload, invokes handler with the reconstructed
	// arguments in the given context, and encodes the handler's return
	// value for storage.
	InvokeTask(ctx context.Context, memoKey, taskName string, handler Handler, payload []byte) ([]byte, error)
	// DecodeReturn decodes a stored return payload into out, a pointer
	// to the caller's expected result type. Used by the runtime when a
	// parent reads a child's stored value.
	DecodeReturn(payload []byte, out any) error
}
