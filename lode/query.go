package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/justapithecus/lode/lode"
)

// ErrNoRecordFound is returned when no record of the requested kind exists
// in the dataset for the given task.
var ErrNoRecordFound = errors.New("no audit record found")

// QueryLatest finds and reads the most recent record of the given kind for
// a task from Lode. taskName and kind may be empty to skip that filter.
// Returns the raw record map or ErrNoRecordFound if none exist.
func QueryLatest(ctx context.Context, ds lode.Dataset, taskName, kind string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "brrr-audit/snapshots")
	}

	// Iterate in reverse (latest first) — snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]

		if !snapshotMatchesFilter(snap, "task_name", taskName) {
			continue
		}
		if !snapshotMatchesFilter(snap, "record_kind", kind) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("brrr-audit/snapshot/%s", snap.ID))
		}

		// Manifest path filtering is a coarse pre-filter; record fields are
		// authoritative (handles cumulative/multi-record snapshots).
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if taskName != "" && toString(record["task_name"]) != taskName {
				continue
			}
			if kind != "" && toString(record["record_kind"]) != kind {
				continue
			}
			return record, nil
		}
	}

	return nil, ErrNoRecordFound
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
