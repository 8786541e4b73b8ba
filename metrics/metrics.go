package metrics

import (
	"sync"
	"time"
)

// Operation names recorded by the protocol and the ledger.
const (
	OpRequestKey   = "request_key"
	OpVerifyKey    = "verify_key"
	OpSubmitVote   = "submit_vote"
	OpLedgerAppend = "ledger_append"
	OpCounting     = "counting"
)

const maxLatencySamples = 100

// Collector tracks per-operation counts, outcomes and recent latencies.
type Collector struct {
	mu         sync.RWMutex
	operations map[string]*operation
	counters   map[string]map[string]int64
}

type operation struct {
	startTime time.Time
	endTime   time.Time
	count     int
	totalTime time.Duration
	latencies []time.Duration
}

// OperationMetrics contains timing information for an operation.
type OperationMetrics struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	Count          int       `json:"count"`
	ProcessingTime int64     `json:"processing_time_ms"`
	AvgLatencyMs   float64   `json:"avg_latency_ms"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Operations map[string]OperationMetrics `json:"operations"`
	Counters   map[string]map[string]int64 `json:"counters"`
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{
		operations: make(map[string]*operation),
		counters:   make(map[string]map[string]int64),
	}
}

// Observe records one completed operation.
func (c *Collector) Observe(name string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	op, ok := c.operations[name]
	if !ok {
		op = &operation{}
		c.operations[name] = op
	}

	now := time.Now()
	if op.count == 0 {
		op.startTime = now.Add(-duration)
	}
	op.count++
	op.endTime = now
	op.totalTime += duration

	op.latencies = append(op.latencies, duration)
	if len(op.latencies) > maxLatencySamples {
		op.latencies = op.latencies[len(op.latencies)-maxLatencySamples:]
	}
}

// Track returns a func that records the elapsed time when called.
func (c *Collector) Track(name string) func() {
	start := time.Now()
	return func() {
		c.Observe(name, time.Since(start))
	}
}

// Increment bumps the counter name under the given label ("default" when empty).
func (c *Collector) Increment(name, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if label == "" {
		label = "default"
	}
	if _, ok := c.counters[name]; !ok {
		c.counters[name] = make(map[string]int64)
	}
	c.counters[name][label]++
}

// Counter returns the current value of one labelled counter.
func (c *Collector) Counter(name, label string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if label == "" {
		label = "default"
	}
	return c.counters[name][label]
}

// Snapshot copies the counters under the lock.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Operations: make(map[string]OperationMetrics, len(c.operations)),
		Counters:   make(map[string]map[string]int64, len(c.counters)),
	}

	for name, op := range c.operations {
		m := OperationMetrics{
			StartTime:      op.startTime,
			EndTime:        op.endTime,
			Count:          op.count,
			ProcessingTime: op.totalTime.Milliseconds(),
		}
		if len(op.latencies) > 0 {
			var sum time.Duration
			for _, d := range op.latencies {
				sum += d
			}
			m.AvgLatencyMs = float64(sum) / float64(len(op.latencies)) / float64(time.Millisecond)
		}
		snap.Operations[name] = m
	}

	for name, labels := range c.counters {
		copied := make(map[string]int64, len(labels))
		for label, v := range labels {
			copied[label] = v
		}
		snap.Counters[name] = copied
	}

	return snap
}

// Reset clears all metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.operations = make(map[string]*operation)
	c.counters = make(map[string]map[string]int64)
}
