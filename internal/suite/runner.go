package suite

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"hrunner/internal/core"
	httpworkflow "hrunner/internal/http"
	"hrunner/internal/progress"
	"hrunner/internal/ratelimit"
)

const defaultTimeout = 30 * time.Second

// TaskResult is the outcome of a single task.
type TaskResult struct {
	ID      int
	Name    string
	Success bool
	Skipped bool
	Err     error
	Output  map[string]any
}

// Result is the outcome of a suite run. Output merges every task's exported
// variables in task order, so later tasks win on key collisions.
type Result struct {
	Success bool
	Output  map[string]any
	Tasks   []TaskResult
}

// Runner executes a TaskSuite. The zero value runs with a default HTTP
// client and discards events.
type Runner struct {
	Client   *http.Client
	FailFast bool
	Reporter core.Reporter
	Logger   *zap.Logger
	Debug    *httpworkflow.DebugLogger
	Progress *progress.Progress
}

func (r *Runner) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: defaultTimeout}
}

func (r *Runner) reporter() core.Reporter {
	if r.Reporter != nil {
		return r.Reporter
	}
	return core.NullReporter
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return zap.NewNop()
}

// Run executes tasks in order. A failing task marks the result unsuccessful;
// with FailFast, or once ctx is done, the remaining tasks are skipped.
func (r *Runner) Run(ctx context.Context, s *TaskSuite) *Result {
	log := r.logger()
	client := r.client()
	rep := r.reporter()
	limiter := ratelimit.NewRateLimiter(0)

	r.Progress.Start(s.Len())
	defer r.Progress.Stop()

	res := &Result{Success: true, Output: make(map[string]any)}
	stop := false
	for _, task := range s.Tasks {
		if stop || ctx.Err() != nil {
			res.Success = false
			res.Tasks = append(res.Tasks, TaskResult{ID: task.ID, Name: task.Name, Skipped: true})
			continue
		}

		tr := r.runTask(ctx, task, client, limiter, rep)
		r.Progress.TaskDone(tr.Success)
		res.Tasks = append(res.Tasks, tr)
		for k, v := range tr.Output {
			res.Output[k] = v
		}

		if tr.Success {
			log.Info("task passed", zap.Int("task", task.ID), zap.String("name", task.Name))
			continue
		}
		res.Success = false
		log.Error("task failed", zap.Int("task", task.ID), zap.String("name", task.Name), zap.Error(tr.Err))
		if r.FailFast {
			log.Warn("failfast set, skipping remaining tasks")
			stop = true
		}
	}
	return res
}

func (r *Runner) runTask(ctx context.Context, task *Task, client *http.Client, limiter *ratelimit.RateLimiter, rep core.Reporter) TaskResult {
	tc := task.Testcase
	limiter.SetRate(tc.Config.RPS)

	workflow := httpworkflow.NewWorkflow(tc, client, limiter, r.Debug)
	workflow.Name = task.Name
	workflow.Params = task.Params

	vars := core.NewVariablesFrom(task.Variables)
	err := workflow.Run(ctx, task.ID, vars, rep)

	output := make(map[string]any, len(tc.Config.Output))
	for _, name := range tc.Config.Output {
		if v, ok := vars.Get(name); ok {
			output[name] = v
		}
	}

	return TaskResult{
		ID:      task.ID,
		Name:    task.Name,
		Success: err == nil,
		Err:     err,
		Output:  output,
	}
}

// RunSuitePath loads the testcases under paths and runs them. A nil runner
// uses the zero Runner. ErrTestcaseNotFound is returned before anything runs.
func RunSuitePath(ctx context.Context, paths []string, mapping map[string]any, runner *Runner) (*Result, error) {
	s, err := NewTaskSuite(paths, mapping)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = &Runner{}
	}
	return runner.Run(ctx, s), nil
}
