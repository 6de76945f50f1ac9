package fanout

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// Run is one launched topology: a master (or standalone process) and its
// workers. Exits are observed in the background; all accessors are safe for
// concurrent use.
type Run struct {
	ID string

	mu      sync.Mutex
	state   State
	master  LaunchResult
	workers []LaunchResult
	procs   map[Role]Process
	metrics *Metrics

	masterDone chan struct{}
	masterErr  error
	finishOnce sync.Once
}

func newRun(id string, m *Metrics) *Run {
	return &Run{
		ID:         id,
		state:      StateNotStarted,
		procs:      make(map[Role]Process),
		metrics:    m,
		masterDone: make(chan struct{}),
	}
}

func (r *Run) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if s.Terminal() {
		r.metrics.finished(s)
	}
}

// State returns the current run state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Master returns the result of the master or standalone process.
func (r *Run) Master() LaunchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.master
}

// Workers returns worker results in core order, including failed starts.
func (r *Run) Workers() []LaunchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.workers)
}

// RunningWorkers counts workers that started and have not exited.
func (r *Run) RunningWorkers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, w := range r.workers {
		if w.Status == StatusRunning {
			n++
		}
	}
	return n
}

// record appends a launch result and, for started processes, begins
// watching for their exit.
func (r *Run) record(res LaunchResult, proc Process) {
	r.mu.Lock()
	idx := -1
	if res.Role.Kind == RoleWorker {
		idx = len(r.workers)
		r.workers = append(r.workers, res)
	} else {
		r.master = res
	}
	if proc != nil {
		r.procs[res.Role] = proc
	}
	r.mu.Unlock()

	if proc == nil {
		return
	}
	go r.watch(res.Role, idx, proc)
}

func (r *Run) watch(role Role, idx int, proc Process) {
	err := proc.Wait()

	r.mu.Lock()
	res := &r.master
	if idx >= 0 {
		res = &r.workers[idx]
	}
	res.Status = StatusExited
	res.ExitCode = exitCode(err)
	delete(r.procs, role)
	r.mu.Unlock()

	r.metrics.exited(role)
	if idx < 0 {
		r.masterErr = err
		close(r.masterDone)
	}
}

// Wait blocks until the master (or standalone process) exits. The run ends
// Completed on a clean exit and Aborted otherwise. If the master never
// started, its start error is returned immediately.
func (r *Run) Wait() error {
	if m := r.Master(); m.Status == StatusFailed {
		return m.Err
	}

	<-r.masterDone
	r.finishOnce.Do(func() {
		if r.masterErr != nil {
			r.setState(StateAborted)
			return
		}
		r.setState(StateCompleted)
	})
	if r.masterErr != nil {
		return fmt.Errorf("%s exited: %w", r.Master().Role, r.masterErr)
	}
	return nil
}

// Signal forwards sig to every process still running.
func (r *Run) Signal(sig os.Signal) error {
	r.mu.Lock()
	procs := make(map[Role]Process, len(r.procs))
	for role, p := range r.procs {
		procs[role] = p
	}
	r.mu.Unlock()

	var errs []error
	for role, p := range procs {
		if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
			errs = append(errs, fmt.Errorf("%s: %w", role, err))
		}
	}
	return errors.Join(errs...)
}
