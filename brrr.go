// Package brrr is the top-level API for a durable, memoized task
// orchestration runtime: register task handlers, schedule root calls,
// read back their memoized results, and drive a worker loop over a
// pluggable store and queue. It is a facade over codec, memory, queue,
// registry, runtime, metrics, and audit — most programs only need the
// package-level proxies below (Setup, Schedule, Read, Wrrrk, Gather,
// Task), mirroring original_source's src/brrr/__init__.py module-level
// singleton and its setup/schedule/read/wrrrk/gather/task proxies.
package brrr

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cohelm/brrr/adapter"
	"github.com/cohelm/brrr/audit"
	"github.com/cohelm/brrr/call"
	"github.com/cohelm/brrr/codec"
	"github.com/cohelm/brrr/codec/msgpackcodec"
	"github.com/cohelm/brrr/memory"
	"github.com/cohelm/brrr/metrics"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/registry"
	"github.com/cohelm/brrr/runtime"
	"github.com/cohelm/brrr/store"
)

// ErrNotSetup is returned by Schedule, Read, Worker, and Wrrrk when called
// on an instance before Setup.
var ErrNotSetup = errors.New("brrr: Setup has not been called")

// Defer is an alias of runtime.Thunk, the unit of handler logic that
// Gather drives. It is not the suspension signal: that signal is
// unexported in package runtime and never escapes Wrrrk/Worker.Run as a
// panic.
type Defer = runtime.Thunk

// TaskHandle is the handle returned by Task: a typed proxy callable from
// within a running handler (via Call/Map, which may suspend the caller
// with a Defer) and identifiable by name for scheduling from outside the
// runtime. It is the Go counterpart of original_source's @task-decorated
// function object.
type TaskHandle[A any, R any] struct {
	task *registry.Task[A, R]
}

// Name returns the task's registered name.
func (t *TaskHandle[A, R]) Name() string { return t.task.Name() }

// Call resolves t(args) from within a running handler. If the value is
// already memoized it is decoded and returned directly; otherwise the
// calling handler invocation suspends via Defer and redelivers once the
// child completes.
func (t *TaskHandle[A, R]) Call(ctx context.Context, args A) (R, error) {
	return runtime.Call(ctx, t.task, args)
}

// Map resolves t(args) for every element of argsList, batching every
// missing child across the whole list into a single Defer rather than
// suspending once per element.
func (t *TaskHandle[A, R]) Map(ctx context.Context, argsList []A) ([]R, error) {
	return runtime.Map(ctx, t.task, argsList)
}

// Gather runs thunks cooperatively within a single handler invocation,
// merging every suspended thunk's missing calls into one Defer. Re-export
// of runtime.Gather.
func Gather(ctx context.Context, thunks ...runtime.Thunk) ([]any, error) {
	return runtime.Gather(ctx, thunks...)
}

// Option configures a Brrr instance at Setup time.
type Option func(*Brrr)

// WithCodec overrides the default msgpack blob codec.
func WithCodec(c codec.Codec) Option {
	return func(b *Brrr) { b.codec = c }
}

// WithLogger attaches a logger to the worker loop started by Wrrrk/Worker.
func WithLogger(l runtime.Logger) Option {
	return func(b *Brrr) { b.logger = l }
}

// WithMetrics attaches a metrics.Collector to the worker loop started by
// Wrrrk/Worker.
func WithMetrics(m *metrics.Collector) Option {
	return func(b *Brrr) { b.metrics = m }
}

// WithAudit attaches an audit.Recorder to the worker loop started by
// Wrrrk/Worker.
func WithAudit(a *audit.Recorder) Option {
	return func(b *Brrr) { b.audit = a }
}

// WithNotifier attaches an adapter.Notifier that publishes a
// TaskCompletedEvent each time the worker loop started by Wrrrk/Worker
// writes a new memoized value, alongside the normal parent re-enqueue.
func WithNotifier(n adapter.Notifier) Option {
	return func(b *Brrr) { b.notifier = n }
}

// WithPollInterval overrides the worker loop's empty-queue backoff.
func WithPollInterval(d time.Duration) Option {
	return func(b *Brrr) { b.pollInterval = d }
}

// WithMaxSpawns bounds the number of children a single worker process
// registers across its lifetime. Zero (the default) is unlimited.
func WithMaxSpawns(n int) Option {
	return func(b *Brrr) { b.maxSpawns = n }
}

// Brrr bundles the codec, task registry, and (once Setup is called) the
// store/queue pairing a process schedules, reads, and runs workers
// against. The package-level proxies (Setup, Schedule, Read, Wrrrk, Task,
// Tasks) operate on a private default instance; Brrr itself is exported
// for tests and programs that want more than one independently
// configured runtime in a single process — mirroring how
// original_source's brrr/__init__.py is a thin proxy layer over a
// constructible Brrr class.
type Brrr struct {
	registry *registry.Registry

	mu    sync.RWMutex
	codec codec.Codec
	mem   *memory.Memory
	queue queue.Queue

	logger       runtime.Logger
	metrics      *metrics.Collector
	audit        *audit.Recorder
	notifier     adapter.Notifier
	pollInterval time.Duration
	maxSpawns    int
}

// New returns a Brrr instance with no store/queue wired yet — register
// tasks against it freely, but Schedule, Read, Worker, and Wrrrk all
// return ErrNotSetup until Setup is called.
func New() *Brrr {
	return &Brrr{registry: registry.New(), codec: msgpackcodec.New()}
}

// Setup wires q and s as the queue and store this instance schedules,
// reads, and runs workers against, applying any Options first so e.g.
// WithCodec takes effect before the memory facade is built. Mirrors
// original_source's Brrr.setup.
func (b *Brrr) Setup(q queue.Queue, s store.Store, opts ...Option) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, opt := range opts {
		opt(b)
	}
	b.queue = q
	b.mem = memory.New(s, b.codec)
}

// RegisterTask registers fn under name against b's registry, returning a
// typed handle callable from within other handlers via Call/Map.
// Registering the same name twice panics.
func RegisterTask[A any, R any](b *Brrr, name string, fn registry.Func[A, R]) *TaskHandle[A, R] {
	return &TaskHandle[A, R]{task: registry.Register(b.registry, name, fn)}
}

// Tasks returns the name of every task registered against b, in no
// particular order.
func (b *Brrr) Tasks() []string {
	return b.registry.Names()
}

// HasTask reports whether name is registered against b.
func (b *Brrr) HasTask(name string) bool {
	return b.registry.Has(name)
}

// Schedule enqueues a root call for (taskName, args) against b's store
// and queue.
func (b *Brrr) Schedule(ctx context.Context, taskName string, args any) (call.Call, error) {
	mem, q := b.snapshot()
	if mem == nil || q == nil {
		return call.Call{}, ErrNotSetup
	}
	return runtime.Schedule(ctx, mem, q, taskName, args)
}

// Read decodes the memoized result for (taskName, args) into out.
// Returns runtime.ErrNotFound if the call has not completed yet, or
// ErrNotSetup if called before Setup.
func (b *Brrr) Read(ctx context.Context, taskName string, args any, out any) error {
	b.mu.RLock()
	mem, cod := b.mem, b.codec
	b.mu.RUnlock()
	if mem == nil {
		return ErrNotSetup
	}
	return runtime.Read(ctx, mem, cod, taskName, args, out)
}

// Worker builds (without running) the runtime.Worker that Wrrrk drives,
// so a caller that needs access to its Stats while it runs can call Run
// on it directly instead of going through Wrrrk.
func (b *Brrr) Worker() (*runtime.Worker, error) {
	mem, q := b.snapshot()
	if mem == nil || q == nil {
		return nil, ErrNotSetup
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &runtime.Worker{
		Memory:       mem,
		Codec:        b.codec,
		Registry:     b.registry,
		Queue:        q,
		Logger:       b.logger,
		Metrics:      b.metrics,
		Audit:        b.audit,
		Notifier:     b.notifier,
		PollInterval: b.pollInterval,
		MaxSpawns:    b.maxSpawns,
	}, nil
}

// Wrrrk builds a Worker over b's store, queue, registry, and configured
// observability, and drives it until ctx is canceled or the queue closes.
func (b *Brrr) Wrrrk(ctx context.Context) error {
	w, err := b.Worker()
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func (b *Brrr) snapshot() (*memory.Memory, queue.Queue) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mem, b.queue
}

// def is the default instance the package-level proxies below operate
// on, for programs that only need one runtime per process — the common
// case, and the one original_source's module-level singleton assumes.
var def = New()

// Setup wires q and s as the default instance's queue and store. See
// (*Brrr).Setup.
func Setup(q queue.Queue, s store.Store, opts ...Option) {
	def.Setup(q, s, opts...)
}

// Task registers fn under name against the default instance. See
// RegisterTask.
func Task[A any, R any](name string, fn registry.Func[A, R]) *TaskHandle[A, R] {
	return RegisterTask(def, name, fn)
}

// Tasks returns the name of every task registered against the default
// instance.
func Tasks() []string {
	return def.Tasks()
}

// Schedule enqueues a root call against the default instance. See
// (*Brrr).Schedule.
func Schedule(ctx context.Context, taskName string, args any) (call.Call, error) {
	return def.Schedule(ctx, taskName, args)
}

// Read decodes the memoized result for (taskName, args) against the
// default instance into out. See (*Brrr).Read.
func Read(ctx context.Context, taskName string, args any, out any) error {
	return def.Read(ctx, taskName, args, out)
}

// Wrrrk drives a worker loop over the default instance. See
// (*Brrr).Wrrrk.
func Wrrrk(ctx context.Context) error {
	return def.Wrrrk(ctx)
}
