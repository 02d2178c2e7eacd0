package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/cohelm/brrr/adapter"
	"github.com/cohelm/brrr/codec/msgpackcodec"
	"github.com/cohelm/brrr/memory"
	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/queue/memqueue"
	"github.com/cohelm/brrr/registry"
	"github.com/cohelm/brrr/store/memstore"
)

// drain runs w.runOnce until the queue reports empty or closed, the
// synchronous stand-in for the async wrrrk()/queue.join() pairing
// original_source's test suite drives its scenarios with. A returned
// error other than queue.ErrClosed is surfaced to the caller (as it
// would be from Worker.Run).
func drain(w *Worker) error {
	ctx := context.Background()
	for {
		drained, err := w.runOnce(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if drained {
			return nil
		}
	}
}

type harness struct {
	mem *memory.Memory
	cod *msgpackcodec.Codec
	reg *registry.Registry
	q   *memqueue.Queue
	w   *Worker
}

func newHarness() *harness {
	cod := msgpackcodec.New()
	mem := memory.New(memstore.New(), cod)
	reg := registry.New()
	q := memqueue.New()
	return &harness{
		mem: mem,
		cod: cod,
		reg: reg,
		q:   q,
		w:   &Worker{Memory: mem, Codec: cod, Registry: reg, Queue: q},
	}
}

func (h *harness) schedule(t *testing.T, taskName string, args any) {
	t.Helper()
	if _, err := Schedule(context.Background(), h.mem, h.q, taskName, args); err != nil {
		t.Fatalf("Schedule(%s): %v", taskName, err)
	}
}

func TestMemoization_FibonacciConvergesWithBoundedCalls(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	calls := map[int]int{}

	var fib *registry.Task[int, int]
	fib = registry.Register(h.reg, "fib", func(ctx context.Context, n int) (int, error) {
		mu.Lock()
		calls[n]++
		mu.Unlock()
		if n < 2 {
			return n, nil
		}
		a, err := Call(ctx, fib, n-1)
		if err != nil {
			return 0, err
		}
		b, err := Call(ctx, fib, n-2)
		if err != nil {
			return 0, err
		}
		if n == 6 {
			h.q.Close()
		}
		return a + b, nil
	})

	h.schedule(t, "fib", 6)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	var result int
	if err := Read(context.Background(), h.mem, h.cod, "fib", 6, &result); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if result != 8 {
		t.Fatalf("fib(6) = %d, want 8", result)
	}

	// Every distinct n in [0, 6] is invoked at least once; memoization
	// keeps each n's call count small despite exponential recursion.
	for n := 0; n <= 6; n++ {
		if calls[n] == 0 {
			t.Fatalf("fib(%d) was never invoked", n)
		}
		if calls[n] > 3 {
			t.Fatalf("fib(%d) invoked %d times, memoization should bound this low", n, calls[n])
		}
	}
}

func TestStopWhenEmpty_MatchesPreAndPostCallCounters(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	pre := map[int]int{}
	post := map[int]int{}

	var foo *registry.Task[int, int]
	foo = registry.Register(h.reg, "foo", func(ctx context.Context, a int) (int, error) {
		mu.Lock()
		pre[a]++
		mu.Unlock()
		if a == 0 {
			return 0, nil
		}
		res, err := Call(ctx, foo, a-1)
		if err != nil {
			return 0, err
		}
		mu.Lock()
		post[a]++
		mu.Unlock()
		if a == 3 {
			h.q.Close()
		}
		return res, nil
	})

	h.schedule(t, "foo", 3)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	wantPre := map[int]int{0: 1, 1: 2, 2: 2, 3: 2}
	wantPost := map[int]int{1: 1, 2: 1, 3: 1}
	for k, v := range wantPre {
		if pre[k] != v {
			t.Fatalf("pre[%d] = %d, want %d (full: %v)", k, pre[k], v, pre)
		}
	}
	for k, v := range wantPost {
		if post[k] != v {
			t.Fatalf("post[%d] = %d, want %d (full: %v)", k, post[k], v, post)
		}
	}
}

func TestDebounceChild_FiftyConcurrentIdenticalChildrenCollapseToOne(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	calls := map[int]int{}

	var foo *registry.Task[int, int]
	foo = registry.Register(h.reg, "foo", func(ctx context.Context, a int) (int, error) {
		mu.Lock()
		calls[a]++
		mu.Unlock()
		if a == 0 {
			return a, nil
		}
		args := make([]int, 50)
		for i := range args {
			args[i] = a - 1
		}
		results, err := Map(ctx, foo, args)
		if err != nil {
			return 0, err
		}
		sum := 0
		for _, r := range results {
			sum += r
		}
		if a == 3 {
			h.q.Close()
		}
		return sum, nil
	})

	h.schedule(t, "foo", 3)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	want := map[int]int{0: 1, 1: 2, 2: 2, 3: 2}
	for k, v := range want {
		if calls[k] != v {
			t.Fatalf("calls[%d] = %d, want %d (full: %v) — 50 identical children should debounce to one enqueue", k, calls[k], v, calls)
		}
	}
}

// TestNoDebounceParent formalizes the documented anti-feature: distinct
// children of the same parent are NOT debounced against each other, so a
// parent with many distinct children is re-invoked once per child
// completion rather than once overall.
func TestNoDebounceParent_DistinctChildrenReinvokeParentEachTime(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	calls := map[string]int{}

	one := registry.Register(h.reg, "one", func(ctx context.Context, _ int) (int, error) {
		mu.Lock()
		calls["one"]++
		mu.Unlock()
		return 1, nil
	})

	const n = 50
	registry.Register(h.reg, "foo", func(ctx context.Context, a int) (int, error) {
		mu.Lock()
		calls["foo"]++
		fooCount := calls["foo"]
		mu.Unlock()

		args := make([]int, a)
		for i := range args {
			args[i] = i
		}
		results, err := Map(ctx, one, args)
		if err != nil {
			return 0, err
		}
		sum := 0
		for _, r := range results {
			sum += r
		}
		if fooCount == 1+a {
			h.q.Close()
		}
		return sum, nil
	})

	h.schedule(t, "foo", n)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls["one"] != n {
		t.Fatalf("calls[one] = %d, want %d", calls["one"], n)
	}
	if calls["foo"] != n+1 {
		t.Fatalf("calls[foo] = %d, want %d (parent re-invocation is deliberately NOT debounced)", calls["foo"], n+1)
	}
}

var errBoom = errors.New("boom")

func TestWrrrkRecoverable_ErrorPropagatesThenQueueIsReusable(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	calls := map[string]int{}

	var foo *registry.Task[int, int]
	foo = registry.Register(h.reg, "foo", func(ctx context.Context, a int) (int, error) {
		mu.Lock()
		calls[fmt.Sprintf("foo(%d)", a)]++
		mu.Unlock()
		if a == 0 {
			return 0, errBoom
		}
		return Call(ctx, foo, a-1)
	})

	h.schedule(t, "foo", 2)
	err := drain(h.w)
	if !errors.Is(err, errBoom) {
		t.Fatalf("drain = %v, want errBoom", err)
	}

	// A fresh queue (as a stand-in for "the same queue, un-stuck") lets
	// the same Memory/Registry serve an unrelated task normally.
	h.q = memqueue.New()
	h.w.Queue = h.q

	var bar *registry.Task[int, int]
	bar = registry.Register(h.reg, "bar", func(ctx context.Context, a int) (int, error) {
		mu.Lock()
		calls[fmt.Sprintf("bar(%d)", a)]++
		mu.Unlock()
		if a == 0 {
			return 0, nil
		}
		ret, err := Call(ctx, bar, a-1)
		if err != nil {
			return 0, err
		}
		if a == 2 {
			h.q.Close()
		}
		return ret, nil
	})

	h.schedule(t, "bar", 2)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain(bar): %v", err)
	}

	want := map[string]int{
		"foo(0)": 1, "foo(1)": 1, "foo(2)": 1,
		"bar(0)": 1, "bar(1)": 2, "bar(2)": 2,
	}
	mu.Lock()
	defer mu.Unlock()
	for k, v := range want {
		if calls[k] != v {
			t.Fatalf("calls[%s] = %d, want %d (full: %v)", k, calls[k], v, calls)
		}
	}
}

func TestGather_MergesDefersFromMultipleThunksInOneRound(t *testing.T) {
	h := newHarness()
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	foo := registry.Register(h.reg, "foo", func(ctx context.Context, a int) (int, error) {
		record(fmt.Sprintf("foo(%d)", a))
		return a * 2, nil
	})
	bar := registry.Register(h.reg, "bar", func(ctx context.Context, a int) (int, error) {
		record(fmt.Sprintf("bar(%d)", a))
		return a - 1, nil
	})

	registry.Register(h.reg, "top", func(ctx context.Context, xs []int) ([]int, error) {
		record(fmt.Sprintf("top(%v)", xs))
		thunks := make([]Thunk, len(xs))
		for i, x := range xs {
			x := x
			thunks[i] = func(ctx context.Context) (any, error) {
				fx, err := Call(ctx, foo, x)
				if err != nil {
					return nil, err
				}
				return Call(ctx, bar, fx)
			}
		}
		results, err := Gather(ctx, thunks...)
		if err != nil {
			return nil, err
		}
		out := make([]int, len(results))
		for i, r := range results {
			out[i] = r.(int)
		}
		h.q.Close()
		return out, nil
	})

	h.schedule(t, "top", []int{3, 4})
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	indexOf := func(s string) int {
		for i, c := range order {
			if c == s {
				return i
			}
		}
		t.Fatalf("%q not found in call order %v", s, order)
		return -1
	}

	// Both foo calls must happen before either bar call: Gather batches
	// both branches' Defers into a single round instead of resolving
	// foo(3)'s branch all the way before even attempting foo(4)'s.
	foo3, foo4 := indexOf("foo(3)"), indexOf("foo(4)")
	bar6, bar8 := indexOf("bar(6)"), indexOf("bar(8)")
	if !(foo3 < bar6 && foo3 < bar8 && foo4 < bar6 && foo4 < bar8) {
		t.Fatalf("expected both foo calls before both bar calls, got order %v", order)
	}
}

// stubNotifier records every published event; safe for the single-worker
// concurrency Notifier implementations are required to support.
type stubNotifier struct {
	mu     sync.Mutex
	events []*adapter.TaskCompletedEvent
	closed bool
}

func (s *stubNotifier) Publish(ctx context.Context, event *adapter.TaskCompletedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubNotifier) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestNotify_PublishesEventOnValueWrite(t *testing.T) {
	h := newHarness()
	n := &stubNotifier{}
	h.w.Notifier = n

	registry.Register(h.reg, "double", func(ctx context.Context, x int) (int, error) {
		return x * 2, nil
	})

	h.schedule(t, "double", 21)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) != 1 {
		t.Fatalf("got %d published events, want 1", len(n.events))
	}
	event := n.events[0]
	if event.TaskName != "double" {
		t.Fatalf("event.TaskName = %q, want %q", event.TaskName, "double")
	}
	if event.MemoKey == "" {
		t.Fatalf("event.MemoKey is empty")
	}
	result, ok := event.Result.(int64)
	if !ok {
		t.Fatalf("event.Result = %#v (%T), want int64 42", event.Result, event.Result)
	}
	if result != 42 {
		t.Fatalf("event.Result = %d, want 42", result)
	}
	if event.Timestamp == "" {
		t.Fatalf("event.Timestamp is empty")
	}
}

func TestNotify_NilNotifierIsNoop(t *testing.T) {
	h := newHarness()
	registry.Register(h.reg, "double", func(ctx context.Context, x int) (int, error) {
		return x * 2, nil
	})
	h.schedule(t, "double", 5)
	if err := drain(h.w); err != nil {
		t.Fatalf("drain: %v", err)
	}
	var result int
	if err := Read(context.Background(), h.mem, h.cod, "double", 5, &result); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if result != 10 {
		t.Fatalf("double(5) = %d, want 10", result)
	}
}
