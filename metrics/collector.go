// Package metrics provides per-worker metrics collection.
//
// The Collector accumulates counters over a worker's lifetime. It is a leaf
// package with no internal dependencies: counters are labeled by plain
// strings (task name, store/queue backend) rather than by types from other
// packages, so this package never needs to import call, store, or queue.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of a worker's counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Message handling
	MessagesReceived int64
	MessagesPoison   int64 // GetCallBytes failed to decode the call payload

	// Invocation outcomes
	CallsResolved int64 // invoke() returned a value, no Defer
	CallsDeferred int64 // invoke() raised Defer for one or more missing children
	CallsFailed   int64 // invoke() returned a genuine task error

	// Fan-out
	ParentsReenqueued int64
	SpawnLimitHits     int64

	// Store / queue backend errors surfaced to the worker loop
	StoreErrors int64
	QueueErrors int64

	// Per-task call counts, keyed by task name
	CallsByTask map[string]int64

	// Dimensions (informational, set at construction)
	StoreBackend string
	QueueBackend string
	WorkerID     string
}

// Collector accumulates metrics during a worker's run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe,
// so a worker constructed without a Collector can call them unconditionally.
type Collector struct {
	mu sync.Mutex

	messagesReceived int64
	messagesPoison   int64

	callsResolved int64
	callsDeferred int64
	callsFailed   int64

	parentsReenqueued int64
	spawnLimitHits    int64

	storeErrors int64
	queueErrors int64

	callsByTask map[string]int64

	storeBackend string
	queueBackend string
	workerID     string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(storeBackend, queueBackend, workerID string) *Collector {
	return &Collector{
		callsByTask:  make(map[string]int64),
		storeBackend: storeBackend,
		queueBackend: queueBackend,
		workerID:     workerID,
	}
}

// IncMessageReceived records a message pulled off the queue.
func (c *Collector) IncMessageReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesReceived++
	c.mu.Unlock()
}

// IncMessagePoison records a message whose call payload failed to decode.
func (c *Collector) IncMessagePoison() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.messagesPoison++
	c.mu.Unlock()
}

// IncCallResolved records an invocation that produced a value.
func (c *Collector) IncCallResolved(taskName string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsResolved++
	c.callsByTask[taskName]++
	c.mu.Unlock()
}

// IncCallDeferred records an invocation suspended on missing children.
func (c *Collector) IncCallDeferred(taskName string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsDeferred++
	c.callsByTask[taskName]++
	c.mu.Unlock()
}

// IncCallFailed records an invocation that returned a genuine task error.
func (c *Collector) IncCallFailed(taskName string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsFailed++
	c.callsByTask[taskName]++
	c.mu.Unlock()
}

// IncParentReenqueued records a parent call re-enqueued after a child resolved.
func (c *Collector) IncParentReenqueued() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.parentsReenqueued++
	c.mu.Unlock()
}

// IncSpawnLimitHit records a call that hit the worker's spawn ceiling.
func (c *Collector) IncSpawnLimitHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.spawnLimitHits++
	c.mu.Unlock()
}

// IncStoreError records an error surfaced by the backing store.
func (c *Collector) IncStoreError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.storeErrors++
	c.mu.Unlock()
}

// IncQueueError records an error surfaced by the backing queue.
func (c *Collector) IncQueueError() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.queueErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byTask := make(map[string]int64, len(c.callsByTask))
	for k, v := range c.callsByTask {
		byTask[k] = v
	}

	return Snapshot{
		MessagesReceived: c.messagesReceived,
		MessagesPoison:   c.messagesPoison,

		CallsResolved: c.callsResolved,
		CallsDeferred: c.callsDeferred,
		CallsFailed:   c.callsFailed,

		ParentsReenqueued: c.parentsReenqueued,
		SpawnLimitHits:    c.spawnLimitHits,

		StoreErrors: c.storeErrors,
		QueueErrors: c.queueErrors,

		CallsByTask: byTask,

		StoreBackend: c.storeBackend,
		QueueBackend: c.queueBackend,
		WorkerID:     c.workerID,
	}
}
