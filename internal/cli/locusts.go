package cli

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hrunner/internal/config"
	"hrunner/internal/fanout"
	"hrunner/internal/loadtest"
	"hrunner/internal/locustfile"
)

func (a *App) newLocustsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locusts -f <testcase> [--cpu-cores [N]] [locust args...]",
		Short: "Run a locust load test, optionally fanned out across CPU cores",
		Long: `Run a locust load test. The testcase may be a locustfile or a YAML/JSON
testcase, which is wrapped in a generated locustfile.

With --cpu-cores N one master and N workers are started, each worker
pinned to its own core. Without N the host's logical CPU count is used.
All other arguments are passed to locust unchanged.`,
		Example: `  locusts -f tests/testcases/login.yaml --cpu-cores 4 -P 8888
  locusts -f locustfile.py --no-web -c 10 -r 2`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLocusts(cmd.Context(), args)
		},
	}
}

func (a *App) runLocusts(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := a.logger("INFO", "")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	engine, err := a.engineConfig()
	if err != nil {
		log.Error("invalid engine config", zap.Error(err))
		return exit(ExitFailure)
	}

	outDir := engine.LocustfileDir
	if outDir == "" {
		if outDir, err = a.workdir(); err != nil {
			return err
		}
	}
	spec, err := loadtest.Normalize(args, &locustfile.Resolver{OutputDir: outDir, Logger: log})
	if err != nil {
		reportConfigError(log, err)
		return exit(ExitFailure)
	}

	reg := a.registry()
	stopMetrics := serveMetrics(a.getenv(EnvMetricsAddr), reg, log)
	defer stopMetrics()

	launcher := a.newLauncher(engine, log, fanout.NewMetrics(reg))

	var run *fanout.Run
	if spec.FanoutRequested {
		cores := &loadtest.CoreResolver{NumCPU: launcher.NumCPU, Logger: log}
		var n int
		if n, err = cores.Resolve(spec); err != nil {
			reportConfigError(log, err)
			return exit(ExitFailure)
		}
		run, err = launcher.Launch(ctx, spec, n)
	} else {
		run, err = launcher.LaunchStandalone(ctx, spec)
	}
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			log.Warn("Locust is not installed, install first and try again.", zap.String("binary", engine.Binary))
		}
		log.Error("load test not started", zap.Error(err))
		return exit(ExitFailure)
	}

	if spec.FanoutRequested {
		log.Info("workers running", zap.String("run", run.ID),
			zap.Int("running", run.RunningWorkers()), zap.Int("requested", len(run.Workers())))
	}

	stopSignals := a.forwardSignals(run, log)
	defer stopSignals()

	err = run.Wait()
	if spec.Help {
		return nil
	}
	if err != nil {
		log.Error("load test ended with error", zap.String("run", run.ID), zap.Error(err))
		if code := run.Master().ExitCode; code > 0 {
			return exit(code)
		}
		return exit(ExitFailure)
	}
	return nil
}

func reportConfigError(log *zap.Logger, err error) {
	switch {
	case errors.Is(err, loadtest.ErrMissingTestcase):
		log.Error("Testcase file is not specified, exit.")
	case errors.Is(err, loadtest.ErrConflictingFlags):
		log.Error("conflict parameter args: --cpu-cores & --no-web. exit.")
	default:
		log.Error("invalid load test arguments", zap.Error(err))
	}
}

func (a *App) engineConfig() (config.EngineConfig, error) {
	cfg, err := config.LoadEngineConfig(a.getenv(EnvEngineConfig))
	if err != nil {
		return cfg, err
	}
	return cfg, cfg.ApplyEnv(a.getenv)
}

func (a *App) newLauncher(engine config.EngineConfig, log *zap.Logger, m *fanout.Metrics) *fanout.Launcher {
	l := fanout.NewLauncher(engine, log, m)
	if a.Starter != nil {
		l.Starter = a.Starter
	}
	if a.NumCPU != nil {
		l.NumCPU = a.NumCPU
	}
	if a.CPUs != nil {
		l.CPUs = a.CPUs
	}
	if a.Pin != nil {
		l.Pin = a.Pin
	}
	return l
}

func (a *App) registry() *prometheus.Registry {
	if a.Registry != nil {
		return a.Registry
	}
	return prometheus.NewRegistry()
}

// forwardSignals relays host signals to every running process of run
// until the returned stop function is called.
func (a *App) forwardSignals(run *fanout.Run, log *zap.Logger) (stop func()) {
	sigs := a.Signals
	release := func() {}
	if sigs == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigs = ch
		release = func() { signal.Stop(ch) }
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-sigs:
				log.Info("forwarding signal", zap.Stringer("signal", sig), zap.String("run", run.ID))
				if err := run.Signal(sig); err != nil {
					log.Warn("signal not delivered", zap.Error(err))
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		release()
	}
}
