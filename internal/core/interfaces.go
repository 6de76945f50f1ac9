// Package core defines the fundamental interfaces and types shared by the
// functional suite executor and the load-test launcher.
package core

import (
	"context"
	"time"
)

// Event represents a single measurement from one step of a task.
type Event struct {
	TaskID     int
	Task       string
	Timestamp  time.Time
	Step       string
	Protocol   string // "http"
	Duration   time.Duration
	Success    bool
	Error      string
	StatusCode int
	BytesSent  int64
	BytesRecv  int64
}

// Workflow is an ordered sequence of steps executed once per task.
// Variables carry extracted values between steps and back to the caller.
type Workflow interface {
	Run(ctx context.Context, taskID int, vars Variables, rep Reporter) error
}

// Reporter is the result sink tasks send step events to.
type Reporter interface {
	Report(Event)
}

// NullReporter discards all events.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Event) {}
