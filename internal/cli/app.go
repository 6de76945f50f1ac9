// Package cli implements the hrunner command line: the hrun functional
// suite runner and the locusts load-test launcher.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hrunner/internal/fanout"
	"hrunner/internal/logger"
	"hrunner/internal/version"
)

const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Environment variables read by the commands.
const (
	EnvEngineConfig = "HRUNNER_ENGINE_CONFIG"
	EnvMetricsAddr  = "HRUNNER_METRICS_ADDR"
	// EnvLogFormat selects console or json logs when no flag does.
	EnvLogFormat = "HRUNNER_LOG_FORMAT"
)

const (
	hrunName    = "hrun"
	locustsName = "locusts"
)

// App carries the host collaborators the commands use. Nil fields fall
// back to the real host.
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Logger replaces the logger built from --log-level and --log-format.
	Logger *zap.Logger

	// Workdir receives scaffolds and generated locustfiles.
	// Defaults to the current directory.
	Workdir string

	// Load-test host. Starter replaces process creation, Signals replaces
	// the host signal channel.
	Starter  fanout.Starter
	NumCPU   func() int
	CPUs     func() []int
	Pin      func(pid, cpu int) error
	Signals  <-chan os.Signal
	Registry *prometheus.Registry
}

// Execute runs the command line in argv, argv[0] included, on the real
// host and returns the process exit code.
func Execute(argv []string) int {
	return (&App{}).Run(argv)
}

// Run dispatches argv and returns the exit code. When argv[0] is named
// hrun or locusts, that subcommand is selected without naming it.
func (a *App) Run(argv []string) int {
	var args []string
	if len(argv) > 0 {
		args = argv[1:]
		switch name := commandName(argv[0]); name {
		case hrunName, locustsName:
			args = append([]string{name}, args...)
		}
	}

	root := a.newRootCmd()
	root.SetArgs(args)
	err := root.Execute()

	var exit *exitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exit):
		return exit.code
	default:
		fmt.Fprintf(a.stderr(), "Error: %v\n", err)
		return ExitFailure
	}
}

func (a *App) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hrunner",
		Short:         "HTTP test runner, not just about api test and load test",
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(a.stdout())
	root.SetErr(a.stderr())

	root.AddCommand(a.newHrunCmd(), a.newLocustsCmd())
	return root
}

// exitError carries an exit code whose cause has already been reported.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exit(code int) error { return &exitError{code: code} }

func commandName(argv0 string) string {
	return strings.TrimSuffix(filepath.Base(argv0), ".exe")
}

func (a *App) stdout() io.Writer {
	if a.Stdout != nil {
		return a.Stdout
	}
	return os.Stdout
}

func (a *App) stderr() io.Writer {
	if a.Stderr != nil {
		return a.Stderr
	}
	return os.Stderr
}

func (a *App) getenv(key string) string {
	if a.Getenv != nil {
		return a.Getenv(key)
	}
	return os.Getenv(key)
}

func (a *App) logger(level, format string) (*zap.Logger, error) {
	if a.Logger != nil {
		return a.Logger, nil
	}
	if format == "" {
		format = a.getenv(EnvLogFormat)
	}
	return logger.New(logger.Config{Level: level, Format: format, Output: a.stderr()})
}

func (a *App) workdir() (string, error) {
	if a.Workdir != "" {
		return a.Workdir, nil
	}
	return os.Getwd()
}
