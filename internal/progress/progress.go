// Package progress prints a live status line while a suite runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"hrunner/internal/collector"
)

const tickInterval = time.Second

// Progress reports finished tasks and request counts once per second.
// A nil *Progress is valid and prints nothing.
type Progress struct {
	startTime time.Time
	collector *collector.Collector
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	started   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex

	total  atomic.Int32
	done   atomic.Int32
	failed atomic.Int32
}

// NewProgress reads request counts from c, which may be nil.
func NewProgress(c *collector.Collector, quiet bool) *Progress {
	return &Progress{
		collector: c,
		quiet:     quiet,
		output:    os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// Start begins ticking for a suite of total tasks.
func (p *Progress) Start(total int) {
	if p == nil || p.quiet || p.started.Swap(true) {
		return
	}
	p.total.Store(int32(total))
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(tickInterval)
	go p.run()
}

// TaskDone records one finished task.
func (p *Progress) TaskDone(success bool) {
	if p == nil {
		return
	}
	p.done.Add(1)
	if !success {
		p.failed.Add(1)
	}
}

func (p *Progress) run() {
	for {
		select {
		case <-p.stopCh:
			return
		case <-p.ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	requests, errors := 0, 0
	if p.collector != nil {
		m := p.collector.Snapshot()
		requests, errors = m.TotalRequests, m.FailureCount
	}

	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] Tasks: %d/%d (%d failed) | Requests: %d | Errors: %d\r",
		mins, secs, p.done.Load(), p.total.Load(), p.failed.Load(), requests, errors)
	p.mu.Unlock()
}

// Stop halts the ticker and clears the status line. Safe to call twice.
func (p *Progress) Stop() {
	if p == nil || p.quiet || !p.started.Load() || p.stopped.Swap(true) {
		return
	}
	p.ticker.Stop()
	close(p.stopCh)
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
