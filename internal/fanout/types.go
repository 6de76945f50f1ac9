// Package fanout starts one load-engine master and N pinned workers as
// separate OS processes and tracks them as a single run.
package fanout

import (
	"fmt"
	"time"
)

// RoleKind is the part a process plays in a run.
type RoleKind string

const (
	RoleMaster     RoleKind = "master"
	RoleWorker     RoleKind = "worker"
	RoleStandalone RoleKind = "standalone"
)

// Role identifies one process of a run. Core is meaningful for workers only.
type Role struct {
	Kind RoleKind
	Core int
}

func Master() Role         { return Role{Kind: RoleMaster} }
func Worker(core int) Role { return Role{Kind: RoleWorker, Core: core} }
func Standalone() Role     { return Role{Kind: RoleStandalone} }

func (r Role) String() string {
	if r.Kind == RoleWorker {
		return fmt.Sprintf("worker-%d", r.Core)
	}
	return string(r.Kind)
}

// Status is the lifecycle of a single process.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
	StatusFailed  Status = "failed" // never started
)

// LaunchResult is the outcome of starting one process. ExitCode is set once
// Status is StatusExited; Err holds the start failure for StatusFailed.
type LaunchResult struct {
	Role      Role
	PID       int
	Status    Status
	ExitCode  int
	Err       error
	StartedAt time.Time
	Args      []string
}

// State is the lifecycle of a whole run.
type State string

const (
	StateNotStarted      State = "not_started"
	StateMasterStarting  State = "master_starting"
	StateMasterFailed    State = "master_failed"
	StateMasterRunning   State = "master_running"
	StateWorkersStarting State = "workers_starting"
	StateRunning         State = "running"
	StateCompleted       State = "completed"
	StateAborted         State = "aborted"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateMasterFailed || s == StateCompleted || s == StateAborted
}
