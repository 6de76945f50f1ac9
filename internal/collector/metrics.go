package collector

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds between 1µs and one hour.
const (
	histogramMin     = 1
	histogramMax     = int64(time.Hour / time.Microsecond)
	histogramSigFigs = 3
)

// Metrics contains aggregated suite results.
type Metrics struct {
	TotalRequests  int                     `json:"totalRequests"`
	SuccessCount   int                     `json:"successCount"`
	FailureCount   int                     `json:"failureCount"`
	SuccessRate    float64                 `json:"successRate"`
	RequestsPerSec float64                 `json:"requestsPerSec"`
	TestDuration   time.Duration           `json:"testDuration"`
	Duration       DurationMetrics         `json:"durations"`
	Steps          map[string]*StepMetrics `json:"steps"`
}

// DurationMetrics contains latency statistics.
type DurationMetrics struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// StepMetrics contains per-step statistics.
type StepMetrics struct {
	Count    int             `json:"count"`
	Success  int             `json:"success"`
	Failed   int             `json:"failed"`
	Duration DurationMetrics `json:"durations"`
}

// ComputeDurationMetrics calculates duration statistics. Min, max and
// average are exact; percentiles come from an HDR histogram and are accurate
// to three significant digits.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}

	h := hdrhistogram.New(histogramMin, histogramMax, histogramSigFigs)
	lo, hi := durations[0], durations[0]
	var total time.Duration
	for _, d := range durations {
		total += d
		lo = min(lo, d)
		hi = max(hi, d)
		us := int64(d / time.Microsecond)
		if us < histogramMin {
			us = histogramMin
		}
		// clamped into range, so recording cannot fail
		_ = h.RecordValue(min(us, histogramMax))
	}

	pct := func(q float64) time.Duration {
		d := time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
		return min(max(d, lo), hi)
	}

	return DurationMetrics{
		Min: lo,
		Max: hi,
		Avg: total / time.Duration(len(durations)),
		P50: pct(50),
		P90: pct(90),
		P95: pct(95),
		P99: pct(99),
	}
}
