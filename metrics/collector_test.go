package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("s3", "redis", "worker-1")

	c.IncMessageReceived()
	c.IncMessageReceived()
	c.IncMessagePoison()
	c.IncCallResolved("fib")
	c.IncCallDeferred("fib")
	c.IncCallFailed("fib")
	c.IncParentReenqueued()
	c.IncParentReenqueued()
	c.IncSpawnLimitHit()
	c.IncStoreError()
	c.IncQueueError()
	c.IncQueueError()
	c.IncQueueError()

	s := c.Snapshot()

	if s.MessagesReceived != 2 {
		t.Errorf("MessagesReceived = %d, want 2", s.MessagesReceived)
	}
	if s.MessagesPoison != 1 {
		t.Errorf("MessagesPoison = %d, want 1", s.MessagesPoison)
	}
	if s.CallsResolved != 1 {
		t.Errorf("CallsResolved = %d, want 1", s.CallsResolved)
	}
	if s.CallsDeferred != 1 {
		t.Errorf("CallsDeferred = %d, want 1", s.CallsDeferred)
	}
	if s.CallsFailed != 1 {
		t.Errorf("CallsFailed = %d, want 1", s.CallsFailed)
	}
	if s.ParentsReenqueued != 2 {
		t.Errorf("ParentsReenqueued = %d, want 2", s.ParentsReenqueued)
	}
	if s.SpawnLimitHits != 1 {
		t.Errorf("SpawnLimitHits = %d, want 1", s.SpawnLimitHits)
	}
	if s.StoreErrors != 1 {
		t.Errorf("StoreErrors = %d, want 1", s.StoreErrors)
	}
	if s.QueueErrors != 3 {
		t.Errorf("QueueErrors = %d, want 3", s.QueueErrors)
	}
	if s.CallsByTask["fib"] != 3 {
		t.Errorf("CallsByTask[fib] = %d, want 3", s.CallsByTask["fib"])
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("s3", "redis", "worker-42")
	s := c.Snapshot()

	if s.StoreBackend != "s3" {
		t.Errorf("StoreBackend = %q, want %q", s.StoreBackend, "s3")
	}
	if s.QueueBackend != "redis" {
		t.Errorf("QueueBackend = %q, want %q", s.QueueBackend, "redis")
	}
	if s.WorkerID != "worker-42" {
		t.Errorf("WorkerID = %q, want %q", s.WorkerID, "worker-42")
	}
}

func TestCollector_CallsByTaskIsolation(t *testing.T) {
	c := NewCollector("memory", "memory", "worker-1")
	c.IncCallResolved("fib")
	c.IncCallResolved("sum")

	s := c.Snapshot()
	s.CallsByTask["fib"] = 999
	s.CallsByTask["injected"] = 1

	s2 := c.Snapshot()
	if s2.CallsByTask["fib"] != 1 {
		t.Errorf("CallsByTask[fib] = %d, want 1 (collector should be isolated from snapshot mutation)", s2.CallsByTask["fib"])
	}
	if _, exists := s2.CallsByTask["injected"]; exists {
		t.Error("CallsByTask should not contain injected key from snapshot mutation")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("memory", "memory", "worker-1")
	c.IncMessageReceived()
	c.IncCallResolved("fib")

	s1 := c.Snapshot()

	c.IncMessageReceived()
	c.IncCallResolved("fib")
	c.IncCallResolved("fib")

	if s1.MessagesReceived != 1 {
		t.Errorf("s1.MessagesReceived = %d, want 1 (snapshot should be frozen)", s1.MessagesReceived)
	}
	if s1.CallsResolved != 1 {
		t.Errorf("s1.CallsResolved = %d, want 1 (snapshot should be frozen)", s1.CallsResolved)
	}

	s2 := c.Snapshot()
	if s2.MessagesReceived != 2 {
		t.Errorf("s2.MessagesReceived = %d, want 2", s2.MessagesReceived)
	}
	if s2.CallsResolved != 3 {
		t.Errorf("s2.CallsResolved = %d, want 3", s2.CallsResolved)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	c.IncMessageReceived()
	c.IncMessagePoison()
	c.IncCallResolved("fib")
	c.IncCallDeferred("fib")
	c.IncCallFailed("fib")
	c.IncParentReenqueued()
	c.IncSpawnLimitHit()
	c.IncStoreError()
	c.IncQueueError()

	s := c.Snapshot()
	if s.MessagesReceived != 0 {
		t.Errorf("nil collector snapshot MessagesReceived = %d, want 0", s.MessagesReceived)
	}
	if s.CallsByTask != nil {
		t.Errorf("nil collector snapshot CallsByTask should be nil, got %v", s.CallsByTask)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("s3", "redis", "worker-1")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncMessageReceived()
				c.IncCallResolved("fib")
				c.IncQueueError()
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)
	if s.MessagesReceived != want {
		t.Errorf("MessagesReceived = %d, want %d", s.MessagesReceived, want)
	}
	if s.CallsResolved != want {
		t.Errorf("CallsResolved = %d, want %d", s.CallsResolved, want)
	}
	if s.QueueErrors != want {
		t.Errorf("QueueErrors = %d, want %d", s.QueueErrors, want)
	}
	if s.CallsByTask["fib"] != want {
		t.Errorf("CallsByTask[fib] = %d, want %d", s.CallsByTask["fib"], want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("s3", "redis", "worker-1")
	s := c.Snapshot()

	if s.MessagesReceived != 0 || s.MessagesPoison != 0 {
		t.Error("fresh collector should have zero message counters")
	}
	if s.CallsResolved != 0 || s.CallsDeferred != 0 || s.CallsFailed != 0 {
		t.Error("fresh collector should have zero invocation counters")
	}
	if s.ParentsReenqueued != 0 || s.SpawnLimitHits != 0 {
		t.Error("fresh collector should have zero fan-out counters")
	}
	if s.StoreErrors != 0 || s.QueueErrors != 0 {
		t.Error("fresh collector should have zero backend error counters")
	}
	if len(s.CallsByTask) != 0 {
		t.Errorf("fresh collector CallsByTask should be empty, got %v", s.CallsByTask)
	}
}
