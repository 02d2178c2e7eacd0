// Package registry is the generic task-registration surface, the Go
// counterpart to original_source's @b.register_task decorator
// (brrr_demo.py's @task). Go's type system lets task handlers keep their
// real argument/result types end to end, rather than the dynamic typing
// Python's decorator relies on.
package registry

import (
	"context"
	"fmt"

	"github.com/cohelm/brrr/codec"
)

// Func is a task body: a plain function from typed arguments to a typed
// result. It must not retain ctx beyond the call.
type Func[A any, R any] func(ctx context.Context, args A) (R, error)

// entry is the type-erased form of a registered task stored in Registry.
type entry struct {
	taskName string
	toHandler func(c codec.Codec) codec.Handler
}

// Registry holds every task registered in a process, keyed by name. The
// worker loop and scheduler look tasks up here by name to obtain a
// codec.Handler bound to the task's declared types.
type Registry struct {
	entries map[string]entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Task is the handle returned by Register: a typed proxy callable from
// within other task handlers (T(ctx, args) below, via runtime.CallProxy)
// and usable for scheduling from outside the runtime.
type Task[A any, R any] struct {
	name string
	fn   Func[A, R]
}

// Name returns the task's registered name.
func (t *Task[A, R]) Name() string { return t.name }

// Invoke runs the task body directly, with no memoization — used by the
// worker when it is actually executing this task's code, as opposed to a
// CallProxy resolving a dependency.
func (t *Task[A, R]) Invoke(ctx context.Context, args A) (R, error) {
	return t.fn(ctx, args)
}

// Register adds a task under name to r, returning a typed Task handle.
// Registering the same name twice panics — it is a programming error, not
// a runtime condition to recover from.
func Register[A any, R any](r *Registry, name string, fn Func[A, R]) *Task[A, R] {
	if _, exists := r.entries[name]; exists {
		panic(fmt.Sprintf("registry: task %q already registered", name))
	}
	task := &Task[A, R]{name: name, fn: fn}
	r.entries[name] = entry{
		taskName: name,
		toHandler: func(c codec.Codec) codec.Handler {
			return func(ctx context.Context, payload []byte) ([]byte, error) {
				var args A
				if err := c.DecodeArgsInto(payload, &args); err != nil {
					return nil, fmt.Errorf("registry: decode args for %q: %w", name, err)
				}
				result, err := fn(ctx, args)
				if err != nil {
					return nil, err
				}
				return c.EncodeValue(result)
			}
		},
	}
	return task
}

// Handler looks up the codec.Handler for a registered task name, bound to
// c. Returns false if no task is registered under that name (the worker
// loop treats this as a poison message).
func (r *Registry) Handler(taskName string, c codec.Codec) (codec.Handler, bool) {
	e, ok := r.entries[taskName]
	if !ok {
		return nil, false
	}
	return e.toHandler(c), true
}

// Has reports whether taskName is registered.
func (r *Registry) Has(taskName string) bool {
	_, ok := r.entries[taskName]
	return ok
}

// Names returns every registered task name, in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	return names
}
