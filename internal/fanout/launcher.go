package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrunner/internal/config"
	"hrunner/internal/core"
	"hrunner/internal/loadtest"
)

// ErrMasterStart is returned when the master cannot be started. No worker is
// started in that case.
var ErrMasterStart = errors.New("master failed to start")

// Launcher starts engine processes. Launch attempts are strictly sequential:
// the master first, then workers in core order.
type Launcher struct {
	Engine  config.EngineConfig
	Starter Starter
	NumCPU  func() int
	// CPUs lists the CPU ids workers are pinned to, worker i getting the
	// i-th modulo their count. Nil or empty means 0..NumCPU-1.
	CPUs    func() []int
	// Pin applies advisory CPU affinity to a started worker.
	Pin     func(pid, cpu int) error
	Clock   core.Clock
	Logger  *zap.Logger
	Metrics *Metrics
}

// NewLauncher returns a launcher that execs engine.Binary.
func NewLauncher(engine config.EngineConfig, log *zap.Logger, m *Metrics) *Launcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Launcher{
		Engine:  engine,
		Starter: &ExecStarter{Binary: engine.Binary},
		NumCPU:  runtime.NumCPU,
		CPUs:    allowedCPUs,
		Pin:     pinToCore,
		Clock:   core.RealClock{},
		Logger:  log,
		Metrics: m,
	}
}

// Launch starts one master and n workers for spec. A master start failure
// returns ErrMasterStart together with the MasterFailed run. Worker start
// failures are recorded on their LaunchResult and never stop the run.
func (l *Launcher) Launch(ctx context.Context, spec loadtest.InvocationSpec, n int) (*Run, error) {
	if spec.Help || spec.Locustfile() == "" {
		return nil, fmt.Errorf("%w: invocation has no testcase file", loadtest.ErrConfig)
	}
	if n < 1 {
		return nil, fmt.Errorf("%w: got %d", loadtest.ErrInvalidCoreCount, n)
	}

	run := newRun(uuid.NewString(), l.Metrics)
	log := l.logger().With(zap.String("run", run.ID))

	run.setState(StateMasterStarting)
	masterArgs := append(spec.Tokens(), l.Engine.MasterArgs()...)
	if err := l.start(ctx, run, Master(), masterArgs, -1, log); err != nil {
		run.setState(StateMasterFailed)
		return run, fmt.Errorf("%w: %w", ErrMasterStart, err)
	}
	run.setState(StateMasterRunning)

	run.setState(StateWorkersStarting)
	cpus := l.cpus()
	log.Debug("worker cpus", zap.Ints("cpus", cpus))
	started := 0
	for i := 0; i < n; i++ {
		workerArgs := append(spec.Tokens(), l.Engine.WorkerArgs()...)
		if err := l.start(ctx, run, Worker(i), workerArgs, cpus[i%len(cpus)], log); err != nil {
			continue
		}
		started++
	}
	if started == 0 {
		log.Warn("no worker started, master is running without load generators", zap.Int("requested", n))
	}

	run.setState(StateRunning)
	log.Info("load test running", zap.Int("workers", started), zap.Int("requested", n))
	return run, nil
}

// LaunchStandalone runs the engine once with spec's tokens and no role
// flags. It is used for plain runs and for help or version requests.
func (l *Launcher) LaunchStandalone(ctx context.Context, spec loadtest.InvocationSpec) (*Run, error) {
	run := newRun(uuid.NewString(), l.Metrics)
	log := l.logger().With(zap.String("run", run.ID))

	run.setState(StateMasterStarting)
	if err := l.start(ctx, run, Standalone(), spec.Tokens(), -1, log); err != nil {
		run.setState(StateMasterFailed)
		return run, fmt.Errorf("%w: %w", ErrMasterStart, err)
	}
	run.setState(StateMasterRunning)
	run.setState(StateRunning)
	return run, nil
}

// start launches one process. A non-negative cpu pins it there.
func (l *Launcher) start(ctx context.Context, run *Run, role Role, args []string, cpu int, log *zap.Logger) error {
	res := LaunchResult{Role: role, Status: StatusPending, Args: args}
	log = log.With(zap.Stringer("role", role))

	proc, err := l.Starter.Start(ctx, role, args)
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		run.record(res, nil)
		l.Metrics.failed(role)
		log.Error("failed to start process", zap.Strings("args", args), zap.Error(err))
		return err
	}

	res.Status = StatusRunning
	res.PID = proc.Pid()
	res.StartedAt = l.clock().Now()

	if cpu >= 0 {
		if err := l.pin(res.PID, cpu); err != nil {
			log.Warn("cpu affinity not applied", zap.Int("cpu", cpu), zap.Error(err))
		}
	}

	run.record(res, proc)
	l.Metrics.started(role)
	log.Info("process started", zap.Int("pid", res.PID))
	return nil
}

func (l *Launcher) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}

func (l *Launcher) clock() core.Clock {
	if l.Clock == nil {
		return core.RealClock{}
	}
	return l.Clock
}

func (l *Launcher) numCPU() int {
	n := 1
	if l.NumCPU != nil {
		n = l.NumCPU()
	}
	return max(n, 1)
}

func (l *Launcher) cpus() []int {
	if l.CPUs != nil {
		if ids := l.CPUs(); len(ids) > 0 {
			return ids
		}
	}
	ids := make([]int, l.numCPU())
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func (l *Launcher) pin(pid, cpu int) error {
	if l.Pin == nil {
		return nil
	}
	return l.Pin(pid, cpu)
}
