// Package http executes testcase steps as HTTP requests.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"hrunner/internal/config"
	"hrunner/internal/core"
	"hrunner/internal/ratelimit"
)

// ErrStepFailed is returned when a step's response fails extraction or validation.
var ErrStepFailed = errors.New("step failed")

var _ core.Workflow = (*Workflow)(nil)

// Workflow runs the steps of one testcase in order, stopping at the first
// failing step.
type Workflow struct {
	Name        string
	BaseURL     string
	Steps       []config.StepConfig
	Client      *http.Client
	RateLimiter *ratelimit.RateLimiter
	Debug       *DebugLogger
	Params      map[string]any // parameter row, shown in debug output

	steps     []core.Step
	stepsOnce sync.Once
}

// NewWorkflow builds a workflow for a loaded testcase.
func NewWorkflow(tc *config.Testcase, client *http.Client, limiter *ratelimit.RateLimiter, debug *DebugLogger) *Workflow {
	return &Workflow{
		Name:        tc.DisplayName(),
		BaseURL:     tc.Config.BaseURL,
		Steps:       tc.Steps,
		Client:      client,
		RateLimiter: limiter,
		Debug:       debug,
	}
}

// Run executes the steps once for taskID. Extracted values are written to
// vars so the caller can read the testcase's output variables afterwards.
func (w *Workflow) Run(ctx context.Context, taskID int, vars core.Variables, rep core.Reporter) error {
	w.stepsOnce.Do(func() {
		w.steps = make([]core.Step, len(w.Steps))
		for i, cfg := range w.Steps {
			w.steps[i] = NewStep(cfg, w.BaseURL, w.Client, w.Debug)
		}
	})

	ctx = core.ContextWithTask(ctx, core.TaskInfo{ID: taskID, Name: w.Name, Params: w.Params})

	for _, step := range w.steps {
		if err := w.RateLimiter.Wait(ctx); err != nil {
			return err
		}

		result, err := step.Execute(ctx, vars)

		rep.Report(core.Event{
			TaskID:     taskID,
			Task:       w.Name,
			Timestamp:  time.Now(),
			Step:       step.Name(),
			Protocol:   "http",
			Duration:   result.Duration,
			Success:    result.Success,
			Error:      result.Error,
			StatusCode: result.StatusCode,
			BytesSent:  result.BytesSent,
			BytesRecv:  result.BytesRecv,
		})

		for k, v := range result.Extract {
			vars.Set(k, v)
		}

		if err != nil {
			return fmt.Errorf("step %q: %w", step.Name(), err)
		}
		if !result.Success {
			return fmt.Errorf("%w: %q: %s", ErrStepFailed, step.Name(), result.Error)
		}
	}

	return nil
}
