package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hrunner/internal/collector"
	httpworkflow "hrunner/internal/http"
	"hrunner/internal/progress"
	"hrunner/internal/scaffold"
	"hrunner/internal/suite"
	"hrunner/internal/version"
)

type hrunOptions struct {
	version      bool
	logLevel     string
	logFormat    string
	failfast     bool
	startProject string
	output       string
	verbose      bool
	quiet        bool
}

func (a *App) newHrunCmd() *cobra.Command {
	opts := &hrunOptions{}
	cmd := &cobra.Command{
		Use:     "hrun [testcase paths...]",
		Aliases: []string{"run"},
		Short:   "Run functional HTTP testcases",
		Example: `  hrun tests/testcases/login.yaml
  hrun tests/ --failfast --output json
  hrun --startproject demo`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHrun(cmd.Context(), opts, args)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.version, "version", "V", false, "show version")
	f.StringVar(&opts.logLevel, "log-level", "INFO", "logging level: DEBUG, INFO, WARNING, ERROR")
	f.StringVar(&opts.logFormat, "log-format", "", "log encoding: console, json (default $"+EnvLogFormat+" or console)")
	f.BoolVar(&opts.failfast, "failfast", false, "stop the test run on the first error or failure")
	f.StringVar(&opts.startProject, "startproject", "", "create a new project with this name")
	f.StringVar(&opts.output, "output", "text", "summary format: text, json")
	f.BoolVar(&opts.verbose, "verbose", false, "log every request and response")
	f.BoolVar(&opts.quiet, "quiet", false, "suppress the progress line")
	return cmd
}

func (a *App) runHrun(ctx context.Context, opts *hrunOptions, paths []string) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("--output must be 'text' or 'json', got %q", opts.output)
	}
	log, err := a.logger(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	stdout := a.stdout()
	if opts.version {
		fmt.Fprintf(stdout, "hrunner version: %s\n", version.Version)
		fmt.Fprintf(stdout, "go version: %s\n", runtime.Version())
		return nil
	}

	if opts.startProject != "" {
		return a.startProject(opts.startProject, log)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	coll := collector.NewCollector()
	prog := progress.NewProgress(coll, opts.quiet)
	prog.SetOutput(a.stderr())

	var debug *httpworkflow.DebugLogger
	if opts.verbose {
		debug = httpworkflow.NewDebugLogger(a.stderr())
	}

	prog.Printf("hrunner %s: running %s", version.Version, strings.Join(paths, ", "))

	runner := &suite.Runner{
		FailFast: opts.failfast,
		Reporter: coll,
		Logger:   log,
		Debug:    debug,
		Progress: prog,
	}
	result, err := suite.RunSuitePath(ctx, paths, map[string]any{}, runner)
	if err != nil {
		coll.Close()
		if errors.Is(err, suite.ErrTestcaseNotFound) {
			log.Error("testcases not found", zap.Strings("paths", paths), zap.Error(err))
		} else {
			log.Error("failed to load testcases", zap.Error(err))
		}
		return exit(ExitFailure)
	}

	metrics := coll.Compute()
	if dropped := coll.DroppedEvents(); dropped > 0 {
		log.Warn("step events dropped from the summary", zap.Int64("dropped", dropped))
	}

	// JSON summaries keep stdout machine readable.
	var outputTo io.Writer = stdout
	if opts.output == "json" {
		outputTo = a.stderr()
	}
	collector.FormatOutput(outputTo, result.Output)
	if opts.output == "json" {
		collector.FormatJSON(stdout, metrics)
	} else {
		collector.FormatText(stdout, metrics)
	}

	if !result.Success {
		return exit(ExitFailure)
	}
	return nil
}

// startProject creates a scaffold. An existing folder is reported by
// scaffold and is not an error.
func (a *App) startProject(name string, log *zap.Logger) error {
	dir, err := a.workdir()
	if err != nil {
		return err
	}
	err = scaffold.Create(filepath.Join(dir, name), log)
	if err != nil && !errors.Is(err, scaffold.ErrProjectExists) {
		log.Error("failed to create project", zap.String("name", name), zap.Error(err))
		return exit(ExitFailure)
	}
	return nil
}
