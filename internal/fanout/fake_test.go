package fanout

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// fakeProcess blocks in Wait until exit is called.
type fakeProcess struct {
	pid     int
	done    chan struct{}
	once    sync.Once
	err     error
	mu      sync.Mutex
	signals []os.Signal
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{})}
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	return nil
}

func (p *fakeProcess) received() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]os.Signal(nil), p.signals...)
}

func (p *fakeProcess) exit(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

type startCall struct {
	Role Role
	Args []string
}

// fakeStarter records start attempts in order and fails the roles listed
// in fail.
type fakeStarter struct {
	mu    sync.Mutex
	calls []startCall
	procs map[Role]*fakeProcess
	fail  map[Role]error
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{procs: make(map[Role]*fakeProcess), fail: make(map[Role]error)}
}

func (s *fakeStarter) Start(ctx context.Context, role Role, args []string) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, startCall{Role: role, Args: append([]string(nil), args...)})
	if err := s.fail[role]; err != nil {
		return nil, err
	}
	p := newFakeProcess(1000 + len(s.calls))
	s.procs[role] = p
	return p, nil
}

func (s *fakeStarter) Calls() []startCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]startCall(nil), s.calls...)
}

func (s *fakeStarter) proc(role Role) *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[role]
}

// exitAll releases every started process.
func (s *fakeStarter) exitAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.procs {
		p.exit(nil)
	}
}

type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitError) ExitCode() int { return e.code }

var errNoBinary = errors.New("executable file not found")
