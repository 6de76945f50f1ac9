package cli

import (
	"context"
	"os"
	"sync"

	"hrunner/internal/fanout"
)

type started struct {
	Role fanout.Role
	Args []string
}

// fakeStarter records every start. Processes exit at once with the code
// set for their role, unless block is set; blocking processes exit when
// signaled.
type fakeStarter struct {
	mu      sync.Mutex
	calls   []started
	fail    map[fanout.Role]error
	exitErr map[fanout.Role]error
	block   bool
	signals []os.Signal
}

func newFakeStarter() *fakeStarter {
	return &fakeStarter{fail: make(map[fanout.Role]error), exitErr: make(map[fanout.Role]error)}
}

func (s *fakeStarter) Start(_ context.Context, role fanout.Role, args []string) (fanout.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, started{Role: role, Args: append([]string(nil), args...)})
	if err := s.fail[role]; err != nil {
		return nil, err
	}

	p := &fakeProcess{pid: 4000 + len(s.calls), err: s.exitErr[role], done: make(chan struct{}), owner: s}
	if !s.block {
		close(p.done)
	}
	return p, nil
}

func (s *fakeStarter) Calls() []started {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]started(nil), s.calls...)
}

func (s *fakeStarter) Roles() []fanout.Role {
	var roles []fanout.Role
	for _, c := range s.Calls() {
		roles = append(roles, c.Role)
	}
	return roles
}

func (s *fakeStarter) Signals() []os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]os.Signal(nil), s.signals...)
}

type fakeProcess struct {
	pid   int
	err   error
	done  chan struct{}
	once  sync.Once
	owner *fakeStarter
}

func (p *fakeProcess) Pid() int { return p.pid }

func (p *fakeProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *fakeProcess) Signal(sig os.Signal) error {
	p.owner.mu.Lock()
	p.owner.signals = append(p.owner.signals, sig)
	p.owner.mu.Unlock()
	p.once.Do(func() {
		select {
		case <-p.done:
		default:
			close(p.done)
		}
	})
	return nil
}

type exitStatus int

func (e exitStatus) Error() string { return "exit status" }
func (e exitStatus) ExitCode() int { return int(e) }
