package core

import (
	"context"
	"time"
)

// Step represents a single executable action in a workflow.
type Step interface {
	Execute(ctx context.Context, vars Variables) (Result, error)
	Name() string
}

// Result represents the outcome of a step execution.
type Result struct {
	Duration   time.Duration
	Success    bool
	Error      string
	StatusCode int
	BytesSent  int64
	BytesRecv  int64
	Extract    map[string]any
}

// Variables provides shared state between steps in a task run.
type Variables interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapVariables is a simple map-based Variables implementation.
type MapVariables struct {
	data map[string]any
}

func NewVariables() *MapVariables {
	return &MapVariables{data: make(map[string]any)}
}

// NewVariablesFrom copies each mapping into a fresh set, later mappings
// overriding earlier ones.
func NewVariablesFrom(mappings ...map[string]any) *MapVariables {
	v := NewVariables()
	for _, m := range mappings {
		for k, val := range m {
			v.data[k] = val
		}
	}
	return v
}

func (v *MapVariables) Get(key string) (any, bool) {
	val, ok := v.data[key]
	return val, ok
}

func (v *MapVariables) Set(key string, value any) {
	v.data[key] = value
}

// TaskInfo identifies the suite task a step runs for. Params is the task's
// parameter row keyed data.<name>.<field>, empty for unparameterized tasks.
type TaskInfo struct {
	ID     int
	Name   string
	Params map[string]any
}

type taskKey struct{}

// ContextWithTask attaches task to ctx for the steps it runs.
func ContextWithTask(ctx context.Context, task TaskInfo) context.Context {
	return context.WithValue(ctx, taskKey{}, task)
}

// TaskFromContext returns the task attached to ctx, or the zero TaskInfo.
func TaskFromContext(ctx context.Context) TaskInfo {
	task, _ := ctx.Value(taskKey{}).(TaskInfo)
	return task
}
