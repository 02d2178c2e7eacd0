package lode

import "time"

// DeriveDay computes the partition day from a timestamp.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// RecordKind discriminates the three audit record shapes brrr emits.
const (
	RecordKindSchedule = "schedule"
	RecordKindValue    = "value"
	RecordKindDefer    = "defer"
)

// Record is the storage format for one audit trail entry. Unlike the
// store's value/call/pending_returns records, an audit Record is pure
// observability: dropping or duplicating one changes nothing about
// runtime correctness.
type Record struct {
	// Record discriminator: schedule, value, or defer.
	RecordKind string `json:"record_kind"`

	TaskName string `json:"task_name"`
	MemoKey  string `json:"memo_key"`
	Ts       string `json:"ts"`

	// ParentMemoKey is set on schedule records: the call that caused this
	// one to be registered as a pending return.
	ParentMemoKey string `json:"parent_memo_key,omitempty"`

	// MissingCount is set on defer records: how many children were
	// missing when the call suspended.
	MissingCount int `json:"missing_count,omitempty"`

	// Partition keys (used by Lode's HiveLayout)
	Day string `json:"day"`
}

// toRecordMap converts a Record to a map for Lode storage. Lode's
// HiveLayout requires records as map[string]any.
func toRecordMap(r *Record) map[string]any {
	m := map[string]any{
		"record_kind": r.RecordKind,
		"task_name":   r.TaskName,
		"memo_key":    r.MemoKey,
		"ts":          r.Ts,
		"day":         r.Day,
	}
	if r.ParentMemoKey != "" {
		m["parent_memo_key"] = r.ParentMemoKey
	}
	if r.MissingCount != 0 {
		m["missing_count"] = r.MissingCount
	}
	return m
}
