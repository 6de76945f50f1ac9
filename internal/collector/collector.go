// Package collector aggregates step events from a suite run and computes
// latency and success metrics.
package collector

import (
	"sync"
	"sync/atomic"
	"time"

	"hrunner/internal/core"
)

const defaultBufferSize = 1000

// Collector receives events from running tasks and keeps them for a summary.
type Collector struct {
	events    []core.Event
	ch        chan core.Event
	done      chan struct{}
	mu        sync.Mutex
	dropped   atomic.Int64
	startTime time.Time
	endTime   time.Time
	closeOnce sync.Once
}

// NewCollector creates a new Collector and starts its collection goroutine.
func NewCollector() *Collector {
	c := &Collector{
		events:    make([]core.Event, 0),
		ch:        make(chan core.Event, defaultBufferSize),
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for event := range c.ch {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report sends an event to the collector. Thread-safe. Events arriving while
// the buffer is full are counted as dropped.
func (c *Collector) Report(event core.Event) {
	select {
	case c.ch <- event:
	default:
		c.dropped.Add(1)
	}
}

// Close stops accepting events and waits for buffered ones to be stored.
// Safe to call more than once.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.endTime = time.Now()
		close(c.ch)
		<-c.done
	})
}

// Events returns a copy of collected events.
func (c *Collector) Events() []core.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]core.Event, len(c.events))
	copy(result, c.events)
	return result
}

// DroppedEvents reports how many events were discarded on a full buffer.
func (c *Collector) DroppedEvents() int64 {
	return c.dropped.Load()
}

// Duration returns the run duration.
// If the collector is closed, returns the duration from start to end.
// If still running, returns the duration from start to now.
func (c *Collector) Duration() time.Duration {
	if !c.endTime.IsZero() {
		return c.endTime.Sub(c.startTime)
	}
	return time.Since(c.startTime)
}

// Snapshot computes metrics over the events stored so far without closing.
func (c *Collector) Snapshot() *Metrics {
	return ComputeMetrics(c.Events(), c.Duration())
}

// Compute closes the collector and returns metrics over everything it saw.
func (c *Collector) Compute() *Metrics {
	c.Close()
	return ComputeMetrics(c.Events(), c.Duration())
}
