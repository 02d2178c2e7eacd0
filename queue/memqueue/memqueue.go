// Package memqueue implements a closable in-memory FIFO queue.Queue, for
// tests and single-process demos. Grounded on original_source's
// backends/in_memory.py InMemoryQueue, which "does not do receipts" —
// DeleteMessage here is likewise a no-op, since a message is already
// removed from the FIFO the moment GetMessage returns it.
package memqueue

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/cohelm/brrr/queue"
)

// Queue is a sync.Cond-guarded slice-backed FIFO.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  [][]byte
	closed bool
	seq    int
}

// New creates an empty, open Queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Put(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return queue.ErrClosed
	}
	q.items = append(q.items, append([]byte(nil), body...))
	q.cond.Broadcast()
	return nil
}

// GetMessage waits up to one second for a message on an empty, open queue
// and returns queue.ErrEmpty if none arrives in that window. It returns
// earlier with ErrClosed once the queue is closed and drained, or with
// ctx's error once ctx is done. Calling GetMessage on an already-closed,
// already-drained queue is a safe no-op returning ErrClosed — it can be
// called repeatedly.
func (q *Queue) GetMessage(ctx context.Context) (queue.Message, error) {
	const emptyWait = time.Second
	waitCtx, cancel := context.WithTimeout(ctx, emptyWait)
	defer cancel()

	// A watcher goroutine translates the end of the wait (ctx cancellation
	// or emptyWait elapsing) into a Broadcast, since sync.Cond.Wait cannot
	// itself observe a context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-waitCtx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return queue.Message{}, err
		}
		if waitCtx.Err() != nil {
			return queue.Message{}, queue.ErrEmpty
		}
		q.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return queue.Message{}, err
	}
	if len(q.items) == 0 {
		return queue.Message{}, queue.ErrClosed
	}

	body := q.items[0]
	q.items = q.items[1:]
	q.seq++
	return queue.Message{Body: body, Receipt: strconv.Itoa(q.seq)}, nil
}

// DeleteMessage is a no-op: this backend does not do receipts, the
// message already left the FIFO when GetMessage returned it.
func (q *Queue) DeleteMessage(_ context.Context, _ string) error {
	return nil
}

func (q *Queue) GetInfo(_ context.Context) (queue.Info, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return queue.Info{NumMessages: len(q.items)}, nil
}

// SetMessageTimeout is a no-op: this backend has no visibility timeout,
// since a message already left the FIFO the moment GetMessage returned
// it, the same reason DeleteMessage is a no-op above.
func (q *Queue) SetMessageTimeout(_ context.Context, _ string, _ int) error {
	return nil
}

// Close marks the queue closed and wakes any blocked GetMessage callers.
// Safe to call more than once.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
	return nil
}

var _ queue.Queue = (*Queue)(nil)
