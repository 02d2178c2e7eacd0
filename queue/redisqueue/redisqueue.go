// Package redisqueue implements queue.Queue on a single Redis list, the
// stream-broker backend for deployments that already run Redis. Grounded
// on original_source/brrr_demo.py's RedisStream usage and the retry/config
// idiom of quarry/adapter/redis/redis.go, adapted from pub/sub PUBLISH to
// list RPUSH/BLPOP.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/cohelm/brrr/queue"
)

// DefaultPollTimeout bounds how long a single BLPOP blocks before this
// package surfaces queue.ErrEmpty, so GetMessage honors ctx cancellation
// even across the underlying blocking call.
const DefaultPollTimeout = 2 * time.Second

// Config configures the Redis-list-backed queue.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Key is the Redis list key used as the FIFO (required).
	Key string
	// PollTimeout bounds each BLPOP call (default DefaultPollTimeout).
	PollTimeout time.Duration
}

// Queue is a queue.Queue backed by a single Redis list.
type Queue struct {
	client      *goredis.Client
	key         string
	pollTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// New creates a Queue from cfg, connecting with go-redis's default client.
func New(cfg Config) (*Queue, error) {
	if cfg.URL == "" {
		return nil, errors.New("redisqueue: URL is required")
	}
	if cfg.Key == "" {
		return nil, errors.New("redisqueue: key is required")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redisqueue: invalid URL: %w", err)
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}

	return NewWithClient(goredis.NewClient(opts), cfg.Key, pollTimeout), nil
}

// NewWithClient builds a Queue around an already-constructed client, for
// tests running against a miniredis instance.
func NewWithClient(client *goredis.Client, key string, pollTimeout time.Duration) *Queue {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Queue{client: client, key: key, pollTimeout: pollTimeout}
}

func (q *Queue) Put(ctx context.Context, body []byte) error {
	if q.isClosed() {
		return queue.ErrClosed
	}
	if err := q.client.RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("redisqueue: rpush: %w", err)
	}
	return nil
}

// GetMessage issues a BLPOP bounded by pollTimeout. A Redis timeout
// (returned by go-redis as goredis.Nil) becomes queue.ErrEmpty rather than
// an error, so callers can loop on it the same way they would loop on an
// empty in-memory queue. The receipt is the message body itself: this
// backend, like the in-memory one, does not carry a delivery receipt
// distinct from the payload.
func (q *Queue) GetMessage(ctx context.Context) (queue.Message, error) {
	if q.isClosed() {
		return queue.Message{}, queue.ErrClosed
	}

	res, err := q.client.BLPop(ctx, q.pollTimeout, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			if q.isClosed() {
				return queue.Message{}, queue.ErrClosed
			}
			return queue.Message{}, queue.ErrEmpty
		}
		return queue.Message{}, fmt.Errorf("redisqueue: blpop: %w", err)
	}
	// res is [key, value].
	if len(res) != 2 {
		return queue.Message{}, fmt.Errorf("redisqueue: unexpected blpop result %v", res)
	}
	body := []byte(res[1])
	return queue.Message{Body: body, Receipt: res[1]}, nil
}

// DeleteMessage is a no-op: BLPOP already removed the message from the
// list atomically with delivery, so there is nothing left to acknowledge.
func (q *Queue) DeleteMessage(_ context.Context, _ string) error {
	return nil
}

func (q *Queue) GetInfo(ctx context.Context) (queue.Info, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return queue.Info{}, fmt.Errorf("redisqueue: llen: %w", err)
	}
	// NumInflight stays 0: BLPOP removes a message from the list
	// atomically with delivery, so there is no delivered-but-unacked
	// state for this backend to report.
	return queue.Info{NumMessages: int(n)}, nil
}

// SetMessageTimeout is a documented no-op: a single Redis list has no
// visibility-timeout mechanism, and BLPOP's atomic remove-on-delivery
// means there is no hidden, redeliverable state to extend.
func (q *Queue) SetMessageTimeout(_ context.Context, _ string, _ int) error {
	return nil
}

// Close marks the queue closed and releases the underlying client.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return q.client.Close()
}

// Reset deletes the queue's backing list key, discarding any pending
// messages. Used by the reset CLI command to clear a Redis-backed
// deployment between runs; the runtime itself never calls Reset.
func (q *Queue) Reset(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("redisqueue: reset: del: %w", err)
	}
	return nil
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

var _ queue.Queue = (*Queue)(nil)
