package lode

import (
	"context"
	"sync"

	"github.com/justapithecus/lode/lode"
)

// LodeClient is a real Lode-backed implementation of Client.
// Uses Lode's HiveLayout with partition keys: task_name/day/record_kind.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	mu sync.Mutex
}

// NewLodeClient creates a new Lode client with filesystem storage.
// The root parameter is the base directory for Hive-partitioned storage.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a new Lode client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newHiveDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg), nil
}

func newClient(ds lode.Dataset, cfg Config) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg}
}

func newHiveDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout("task_name", "day", "record_kind"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteRecords writes a batch of audit records to Lode, partitioned by
// task_name/day/record_kind (each included in the record itself).
func (c *LodeClient) WriteRecords(ctx context.Context, dataset string, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	maps := make([]any, 0, len(records))
	for _, r := range records {
		maps = append(maps, toRecordMap(r))
	}

	_, err := c.dataset.Write(ctx, maps, lode.Metadata{})
	if err != nil {
		return WrapWriteError(err, dataset)
	}
	return nil
}

// Close releases client resources.
func (c *LodeClient) Close() error {
	// Dataset doesn't require explicit close in the current Lode API.
	return nil
}

// Verify LodeClient implements Client.
var _ Client = (*LodeClient)(nil)
