package fanout

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts process starts across runs.
type Metrics struct {
	// ProcessesStarted counts successful starts, labeled by role
	// ("master", "worker" or "standalone").
	ProcessesStarted *prometheus.CounterVec

	// StartFailures counts processes that could not be started, by role.
	StartFailures *prometheus.CounterVec

	// RunningWorkers tracks workers of the current run that have not exited.
	RunningWorkers prometheus.Gauge

	// Runs counts finished runs by terminal state.
	Runs *prometheus.CounterVec
}

// NewMetrics creates the launcher metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProcessesStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrunner_fanout_processes_started_total",
			Help: "Engine processes started",
		}, []string{"role"}),
		StartFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrunner_fanout_start_failures_total",
			Help: "Engine processes that failed to start",
		}, []string{"role"}),
		RunningWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hrunner_fanout_running_workers",
			Help: "Worker processes currently running",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hrunner_fanout_runs_total",
			Help: "Finished load-test runs by terminal state",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.ProcessesStarted, m.StartFailures, m.RunningWorkers, m.Runs)
	}
	return m
}

func (m *Metrics) started(role Role) {
	if m == nil {
		return
	}
	m.ProcessesStarted.WithLabelValues(string(role.Kind)).Inc()
	if role.Kind == RoleWorker {
		m.RunningWorkers.Inc()
	}
}

func (m *Metrics) failed(role Role) {
	if m == nil {
		return
	}
	m.StartFailures.WithLabelValues(string(role.Kind)).Inc()
}

func (m *Metrics) exited(role Role) {
	if m == nil || role.Kind != RoleWorker {
		return
	}
	m.RunningWorkers.Dec()
}

func (m *Metrics) finished(state State) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(string(state)).Inc()
}
