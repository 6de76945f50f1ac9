package fanout

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// Process is a started engine process.
type Process interface {
	Pid() int
	// Wait blocks until the process exits. A non-zero exit is an error
	// that may implement ExitCode() int.
	Wait() error
	Signal(sig os.Signal) error
}

// Starter starts one engine process with the given arguments.
type Starter interface {
	Start(ctx context.Context, role Role, args []string) (Process, error)
}

// ExecStarter runs Binary as a child process sharing the launcher's
// standard streams unless overridden.
type ExecStarter struct {
	Binary string
	Stdout io.Writer
	Stderr io.Writer
	Env    []string
}

func (s *ExecStarter) Start(ctx context.Context, role Role, args []string) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(s.Binary, args...)
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if s.Env != nil {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &execProcess{cmd: cmd}, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Wait() error                { return p.cmd.Wait() }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

// exitCode maps a Wait error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder interface{ ExitCode() int }
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}
