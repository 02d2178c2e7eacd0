// Package adapter defines the completion-notifier boundary: publishing a
// task's outcome to a downstream system once its value has been written.
//
// brrr itself owns no notion of "subscribers" — a notifier is wired in by
// the worker's caller and invoked from the fan-out step, alongside (not
// instead of) the normal parent re-enqueue.
package adapter

import "context"

// TaskCompletedEvent is the payload published when a task's value is
// written. MemoKey is the call's content-addressed fingerprint; Result is
// the codec-decoded JSON-ish representation used only for notification
// purposes (the store's encoded bytes remain the source of truth).
type TaskCompletedEvent struct {
	TaskName  string `json:"task_name"`
	MemoKey   string `json:"memo_key"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"` // RFC 3339
}

// Notifier publishes task completion events to a downstream system.
// Implementations must be safe for concurrent use by a single worker.
type Notifier interface {
	// Publish sends a task completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TaskCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}
