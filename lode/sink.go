// Package lode provides Hive-partitioned JSONL persistence for brrr's
// audit trail, backed by github.com/justapithecus/lode.
//
// This package defines the interface and stub for Lode persistence. Real
// implementations connect to the actual Lode storage system on disk or S3.
package lode

import "context"

// DefaultDataset is the default Lode dataset name.
const DefaultDataset = "brrr-audit"

// Config holds Lode sink configuration.
type Config struct {
	// Dataset is the Lode dataset ID (default: "brrr-audit").
	Dataset string
}

// Sink is a Lode-backed writer of audit records.
// Writes audit records to Lode storage, partitioned by task_name/day/record_kind.
type Sink struct {
	config Config
	client Client
}

// Client abstracts the Lode storage client. Real implementations connect
// to Lode; stubs are used for testing.
type Client interface {
	// WriteRecords writes a batch of audit records to Lode.
	// Must preserve ordering within the batch.
	WriteRecords(ctx context.Context, dataset string, records []*Record) error

	// Close releases client resources.
	Close() error
}

// NewSink creates a new Lode sink.
func NewSink(config Config, client Client) *Sink {
	return &Sink{config: config, client: client}
}

// WriteRecords writes records to the sink's configured dataset.
func (s *Sink) WriteRecords(ctx context.Context, records []*Record) error {
	return s.client.WriteRecords(ctx, s.config.Dataset, records)
}

// Close closes the underlying Lode client.
func (s *Sink) Close() error {
	return s.client.Close()
}

// StubClient is a test client that accepts writes without persisting.
// Use for integration testing before real Lode storage is wired up.
type StubClient struct {
	Records []StubRecordBatch
	Closed  bool
}

// StubRecordBatch is a recorded WriteRecords call, for testing.
type StubRecordBatch struct {
	Dataset string
	Records []*Record
}

// NewStubClient creates a new stub client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// WriteRecords implements Client.
func (c *StubClient) WriteRecords(_ context.Context, dataset string, records []*Record) error {
	c.Records = append(c.Records, StubRecordBatch{Dataset: dataset, Records: records})
	return nil
}

// Close implements Client.
func (c *StubClient) Close() error {
	c.Closed = true
	return nil
}

// Verify StubClient implements Client.
var _ Client = (*StubClient)(nil)
