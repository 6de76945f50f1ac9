package fanout

import (
	"context"
	"testing"

	"pgregory.net/rapid"

	"hrunner/internal/config"
)

func TestLaunch_TopologyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 16).Draw(t, "workers")
		cpus := rapid.IntRange(1, 8).Draw(t, "cpus")
		failed := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "failed")

		starter := newFakeStarter()
		nFailed := 0
		for i, f := range failed {
			if f {
				starter.fail[Worker(i)] = errNoBinary
				nFailed++
			}
		}
		var pinned []int
		l := &Launcher{
			Engine:  config.DefaultEngineConfig(),
			Starter: starter,
			NumCPU:  func() int { return cpus },
			Pin:     func(_, cpu int) error { pinned = append(pinned, cpu); return nil },
		}
		defer starter.exitAll()

		run, err := l.Launch(context.Background(), testSpec(), n)
		if err != nil {
			t.Fatalf("launch: %v", err)
		}

		calls := starter.Calls()
		if len(calls) != n+1 || calls[0].Role != Master() {
			t.Fatalf("expected master then %d workers, got %v", n, calls)
		}
		if got, want := run.RunningWorkers(), n-nFailed; got != want {
			t.Fatalf("running workers = %d, want %d", got, want)
		}

		var wantPins []int
		for i, w := range run.Workers() {
			if w.Role != Worker(i) {
				t.Fatalf("worker %d recorded as %v", i, w.Role)
			}
			if failed[i] != (w.Status == StatusFailed) {
				t.Fatalf("worker %d status %s", i, w.Status)
			}
			if !failed[i] {
				wantPins = append(wantPins, i%cpus)
			}
		}
		if len(pinned) != len(wantPins) {
			t.Fatalf("pinned %v, want %v", pinned, wantPins)
		}
		for i := range wantPins {
			if pinned[i] != wantPins[i] {
				t.Fatalf("pinned %v, want %v", pinned, wantPins)
			}
		}
		if run.Master().Status != StatusRunning || run.State() != StateRunning {
			t.Fatalf("master %s, run %s", run.Master().Status, run.State())
		}
	})
}
