// Package queuetest holds a backend-agnostic exercise of the queue.Queue
// contract. Grounded on original_source/tests/test_queue.py's
// QueueContract ABC (test_queue_raises_empty, test_queue_enqueues).
package queuetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cohelm/brrr/queue"
)

// Exercise runs the shared Queue contract against a freshly constructed,
// empty backend.
func Exercise(t *testing.T, newQueue func() queue.Queue) {
	t.Helper()

	t.Run("get_message_on_empty_queue_is_empty", func(t *testing.T) {
		q := newQueue()
		defer q.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, err := q.GetMessage(ctx)
		if !errors.Is(err, queue.ErrEmpty) {
			t.Fatalf("GetMessage(empty) = %v, want ErrEmpty", err)
		}
	})

	t.Run("put_then_get_enqueues_and_drains_depth", func(t *testing.T) {
		q := newQueue()
		defer q.Close()
		ctx := context.Background()

		info, err := q.GetInfo(ctx)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.NumMessages != 0 {
			t.Fatalf("GetInfo(empty).NumMessages = %d, want 0", info.NumMessages)
		}

		if err := q.Put(ctx, []byte("hello")); err != nil {
			t.Fatalf("Put: %v", err)
		}

		info, err = q.GetInfo(ctx)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.NumMessages != 1 {
			t.Fatalf("GetInfo(after put).NumMessages = %d, want 1", info.NumMessages)
		}

		msg, err := q.GetMessage(ctx)
		if err != nil {
			t.Fatalf("GetMessage: %v", err)
		}
		if string(msg.Body) != "hello" {
			t.Fatalf("GetMessage.Body = %q, want %q", msg.Body, "hello")
		}

		if err := q.DeleteMessage(ctx, msg.Receipt); err != nil {
			t.Fatalf("DeleteMessage: %v", err)
		}

		info, err = q.GetInfo(ctx)
		if err != nil {
			t.Fatalf("GetInfo: %v", err)
		}
		if info.NumMessages != 0 {
			t.Fatalf("GetInfo(after get).NumMessages = %d, want 0", info.NumMessages)
		}
	})

	t.Run("fifo_order_is_preserved", func(t *testing.T) {
		q := newQueue()
		defer q.Close()
		ctx := context.Background()

		for _, body := range []string{"a", "b", "c"} {
			if err := q.Put(ctx, []byte(body)); err != nil {
				t.Fatalf("Put(%q): %v", body, err)
			}
		}
		for _, want := range []string{"a", "b", "c"} {
			msg, err := q.GetMessage(ctx)
			if err != nil {
				t.Fatalf("GetMessage: %v", err)
			}
			if string(msg.Body) != want {
				t.Fatalf("GetMessage.Body = %q, want %q", msg.Body, want)
			}
		}
	})

	t.Run("set_message_timeout_is_a_documented_noop", func(t *testing.T) {
		q := newQueue()
		defer q.Close()
		ctx := context.Background()

		if err := q.Put(ctx, []byte("hello")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		msg, err := q.GetMessage(ctx)
		if err != nil {
			t.Fatalf("GetMessage: %v", err)
		}
		if err := q.SetMessageTimeout(ctx, msg.Receipt, 30); err != nil {
			t.Fatalf("SetMessageTimeout: %v, want nil", err)
		}
	})
}
