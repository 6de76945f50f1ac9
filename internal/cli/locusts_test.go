package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrunner/internal/fanout"
	"hrunner/internal/locustfile"
)

var (
	masterFlags = []string{"--master", "--master-bind-host", "127.0.0.1", "--master-bind-port", "5557"}
	workerFlags = []string{"--worker", "--master-host", "127.0.0.1", "--master-port", "5557"}
)

func loadPy(t *testing.T) string {
	t.Helper()
	return writeFile(t, filepath.Join(t.TempDir(), "load.py"), "from locust import HttpUser\n")
}

func join(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func TestLocusts_FanoutWithExplicitCores(t *testing.T) {
	ta := newTestApp(t)
	py := loadPy(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", py, "--cpu-cores", "4", "-P", "8888"})

	require.Equal(t, ExitSuccess, code)
	calls := ta.starter.Calls()
	require.Len(t, calls, 5)

	forwarded := []string{"-f", py, "-P", "8888"}
	assert.Equal(t, fanout.Master(), calls[0].Role)
	assert.Equal(t, join(forwarded, masterFlags), calls[0].Args)
	for i, c := range calls[1:] {
		assert.Equal(t, fanout.Worker(i), c.Role)
		assert.Equal(t, join(forwarded, workerFlags), c.Args)
	}
	assert.Equal(t, []int{0, 1, 0, 1}, ta.pins, "workers wrap around the two host cores")
	assert.NotContains(t, ta.messages(), "cpu cores number not specified, use 2 by default.")
}

func TestLocusts_ConflictingFlags(t *testing.T) {
	for _, args := range [][]string{
		{"-f", "load.py", "--cpu-cores", "--no-web"},
		{"--no-web", "-f", "load.py", "--cpu-cores", "3"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			ta := newTestApp(t)

			code := ta.Run(append([]string{"hrunner", "locusts"}, args...))

			assert.Equal(t, ExitFailure, code)
			assert.Empty(t, ta.starter.Calls())
			assert.Contains(t, ta.messages(), "conflict parameter args: --cpu-cores & --no-web. exit.")
		})
	}
}

func TestLocusts_DefaultCoresFromHost(t *testing.T) {
	ta := newTestApp(t)
	ta.NumCPU = func() int { return 3 }
	py := loadPy(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", py, "--cpu-cores"})

	require.Equal(t, ExitSuccess, code)
	assert.Equal(t,
		[]fanout.Role{fanout.Master(), fanout.Worker(0), fanout.Worker(1), fanout.Worker(2)},
		ta.starter.Roles())
	assert.Equal(t, 1, ta.logs.FilterMessage("cpu cores number not specified, use 3 by default.").Len())
}

func TestLocusts_PinsWithinAffinityMask(t *testing.T) {
	ta := newTestApp(t)
	ta.CPUs = func() []int { return []int{2, 5} }
	py := loadPy(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", py, "--cpu-cores", "3"})

	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, []int{2, 5, 2}, ta.pins)
}

func TestLocusts_MissingTestcase(t *testing.T) {
	for _, args := range [][]string{
		{"--cpu-cores", "4"},
		{"-P", "8888", "-f"},
	} {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			ta := newTestApp(t)

			code := ta.Run(append([]string{"hrunner", "locusts"}, args...))

			assert.Equal(t, ExitFailure, code)
			assert.Empty(t, ta.starter.Calls())
			assert.Contains(t, ta.messages(), "Testcase file is not specified, exit.")
		})
	}
}

func TestLocusts_InvalidCoreCount(t *testing.T) {
	ta := newTestApp(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "0"})

	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, ta.starter.Calls())
}

func TestLocusts_HelpShortCircuits(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"no args", nil, []string{"-h"}},
		{"help", []string{"--help"}, []string{"--help"}},
		{"version", []string{"-V"}, []string{"-V"}},
		{"help with extras", []string{"-h", "--cpu-cores", "--no-web"}, []string{"-h", "--cpu-cores", "--no-web"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			ta.starter.exitErr[fanout.Standalone()] = exitStatus(2)

			code := ta.Run(append([]string{"locusts"}, tt.args...))

			assert.Equal(t, ExitSuccess, code)
			calls := ta.starter.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, fanout.Standalone(), calls[0].Role)
			assert.Equal(t, tt.want, calls[0].Args)
		})
	}
}

func TestLocusts_WithoutFanoutRunsStandalone(t *testing.T) {
	ta := newTestApp(t)
	py := loadPy(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", py, "--no-web", "-c", "10"})

	require.Equal(t, ExitSuccess, code)
	calls := ta.starter.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, fanout.Standalone(), calls[0].Role)
	assert.Equal(t, []string{"-f", py, "--no-web", "-c", "10"}, calls[0].Args)
	assert.Empty(t, ta.pins)
}

func TestLocusts_TestcaseGeneratesLocustfile(t *testing.T) {
	ta := newTestApp(t)
	tc := writeFile(t, filepath.Join(t.TempDir(), "smoke.yaml"),
		"steps:\n  - {name: health, url: 'http://localhost:8080/health'}\n")

	code := ta.Run([]string{"hrunner", "locusts", "-f", tc, "--cpu-cores", "1"})

	require.Equal(t, ExitSuccess, code)
	generated := filepath.Join(ta.Workdir, locustfile.GeneratedName)
	for _, c := range ta.starter.Calls() {
		assert.Equal(t, []string{"-f", generated}, c.Args[:2])
	}
	content, err := os.ReadFile(generated)
	require.NoError(t, err)
	assert.Contains(t, string(content), tc)
}

func TestLocusts_UnreadableTestcase(t *testing.T) {
	ta := newTestApp(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", filepath.Join(t.TempDir(), "absent.yaml"), "--cpu-cores", "2"})

	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, ta.starter.Calls())
	assert.NoFileExists(t, filepath.Join(ta.Workdir, locustfile.GeneratedName))
}

func TestLocusts_MasterStartFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.starter.fail[fanout.Master()] = exec.ErrNotFound

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "4"})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, []fanout.Role{fanout.Master()}, ta.starter.Roles())
	assert.Contains(t, ta.messages(), "Locust is not installed, install first and try again.")
}

func TestLocusts_WorkerStartFailureStillRuns(t *testing.T) {
	ta := newTestApp(t)
	ta.starter.fail[fanout.Worker(1)] = errors.New("fork failed")

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "3"})

	assert.Equal(t, ExitSuccess, code)
	assert.Len(t, ta.starter.Calls(), 4)

	expected := `
# HELP hrunner_fanout_start_failures_total Engine processes that failed to start
# TYPE hrunner_fanout_start_failures_total counter
hrunner_fanout_start_failures_total{role="worker"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(ta.Registry, strings.NewReader(expected),
		"hrunner_fanout_start_failures_total"))
}

func TestLocusts_MasterExitCodePropagates(t *testing.T) {
	ta := newTestApp(t)
	ta.starter.exitErr[fanout.Master()] = exitStatus(3)

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "1"})

	assert.Equal(t, 3, code)
}

func TestLocusts_ForwardsSignals(t *testing.T) {
	ta := newTestApp(t)
	ta.starter.block = true
	ta.signals <- syscall.SIGINT

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "2"})

	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, ta.starter.Signals(), os.Signal(syscall.SIGINT))
}

func TestLocusts_EngineConfigFromEnv(t *testing.T) {
	ta := newTestApp(t)
	ta.env[EnvEngineConfig] = writeFile(t, filepath.Join(t.TempDir(), "engine.yaml"),
		"worker_flag: --slave\nmaster_port: 6000\n")
	ta.env["HRUNNER_MASTER_HOST"] = "10.1.1.1"

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "1"})

	require.Equal(t, ExitSuccess, code)
	calls := ta.starter.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"--master", "--master-bind-host", "10.1.1.1", "--master-bind-port", "6000"}, calls[0].Args[2:])
	assert.Equal(t, []string{"--slave", "--master-host", "10.1.1.1", "--master-port", "6000"}, calls[1].Args[2:])
}

func TestLocusts_BadEngineConfig(t *testing.T) {
	ta := newTestApp(t)
	ta.env["HRUNNER_MASTER_PORT"] = "not-a-port"

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "1"})

	assert.Equal(t, ExitFailure, code)
	assert.Empty(t, ta.starter.Calls())
}

func TestLocusts_Metrics(t *testing.T) {
	ta := newTestApp(t)

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "2"})
	require.Equal(t, ExitSuccess, code)

	expected := `
# HELP hrunner_fanout_processes_started_total Engine processes started
# TYPE hrunner_fanout_processes_started_total counter
hrunner_fanout_processes_started_total{role="master"} 1
hrunner_fanout_processes_started_total{role="worker"} 2
# HELP hrunner_fanout_runs_total Finished load-test runs by terminal state
# TYPE hrunner_fanout_runs_total counter
hrunner_fanout_runs_total{state="completed"} 1
`
	require.NoError(t, testutil.GatherAndCompare(ta.Registry, strings.NewReader(expected),
		"hrunner_fanout_processes_started_total", "hrunner_fanout_runs_total"))
}

func TestLocusts_LogsRunningWorkers(t *testing.T) {
	ta := newTestApp(t)
	ta.starter.block = true
	ta.starter.fail[fanout.Worker(1)] = errors.New("fork failed")
	ta.signals <- syscall.SIGTERM

	code := ta.Run([]string{"hrunner", "locusts", "-f", loadPy(t), "--cpu-cores", "3"})

	require.Equal(t, ExitSuccess, code)
	entries := ta.logs.FilterMessage("workers running").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 2, fields["running"])
	assert.EqualValues(t, 3, fields["requested"])
}

func TestLocusts_LogFormatFromEnv(t *testing.T) {
	ta := newTestApp(t)
	ta.App.Logger = nil
	ta.env[EnvLogFormat] = "json"

	code := ta.Run([]string{"hrunner", "locusts", "--cpu-cores", "2"})

	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, ta.stderr.String(), `"msg":"Testcase file is not specified, exit."`)
}
