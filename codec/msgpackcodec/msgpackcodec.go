// Package msgpackcodec implements codec.Codec as a generic,
// single-language blob codec over msgpack. It is the reference
// implementation analogous to original_source's naive_codec.py
// PickleCodec — suited for demos and single-binary deployments, not
// cross-language interop. Unlike PickleCodec (whose own docstring warns
// it risks non-deterministic serialization of map-shaped arguments), this
// codec sorts map keys before hashing, so memo_key is stable regardless
// of incidental map iteration order. Struct fields are encoded in their
// declaration order, so reordering a struct's fields changes memo_key.
package msgpackcodec

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
)

// Codec is a stateless codec.Codec implementation.
type Codec struct{}

// New returns a Codec.
func New() *Codec {
	return &Codec{}
}

func marshalSorted(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("msgpackcodec: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// CreateCall encodes args deterministically and fingerprints
// (taskName, argsBytes) with SHA-256, mirroring naive_codec.py's
// _hash_call, but over a canonical byte encoding rather than Python repr.
func (c *Codec) CreateCall(taskName string, args any) (call.Call, error) {
	argsBytes, err := marshalSorted(args)
	if err != nil {
		return call.Call{}, err
	}
	h := sha256.New()
	h.Write([]byte(taskName))
	h.Write([]byte{0})
	h.Write(argsBytes)
	return call.Call{
		TaskName: taskName,
		Args:     argsBytes,
		MemoKey:  hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// EncodeCall returns the call's already-encoded argument bytes.
func (c *Codec) EncodeCall(cl call.Call) ([]byte, error) {
	return cl.Args, nil
}

// DecodeArgsInto unmarshals payload into out.
func (c *Codec) DecodeArgsInto(payload []byte, out any) error {
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("msgpackcodec: decode args: %w", err)
	}
	return nil
}

// EncodeValue marshals v deterministically.
func (c *Codec) EncodeValue(v any) ([]byte, error) {
	return marshalSorted(v)
}

// InvokeTask forwards payload straight to handler: this blob codec has
// no invocation strategy of its own beyond "decode, call, encode", and
// that decode/encode already happens inside handler (bound by package
// registry to the task's declared argument type).
func (c *Codec) InvokeTask(ctx context.Context, memoKey, taskName string, handler codec.Handler, payload []byte) ([]byte, error) {
	return handler(ctx, payload)
}

// DecodeReturn unmarshals a stored return payload into out.
func (c *Codec) DecodeReturn(payload []byte, out any) error {
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("msgpackcodec: decode return: %w", err)
	}
	return nil
}

var _ codec.Codec = (*Codec)(nil)
