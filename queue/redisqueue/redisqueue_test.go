package redisqueue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/cohelm/brrr/queue"
	"github.com/cohelm/brrr/queue/queuetest"
)

func TestRedisqueue_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	queuetest.Exercise(t, func() queue.Queue {
		client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		// Short poll timeout keeps the empty-queue sub-test fast; BLPOP
		// against miniredis still honors the timeout semantics.
		return NewWithClient(client, "brrr:test", 200*time.Millisecond)
	})
}

func TestRedisqueue_ResetClearsPendingMessages(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	q := NewWithClient(client, "brrr:test", 200*time.Millisecond)

	ctx := context.Background()
	if err := q.Put(ctx, []byte("memo-key-1")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if err := q.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	info, err := q.GetInfo(ctx)
	if err != nil {
		t.Fatalf("GetInfo failed: %v", err)
	}
	if info.NumMessages != 0 {
		t.Errorf("NumMessages after Reset = %d, want 0", info.NumMessages)
	}
}
