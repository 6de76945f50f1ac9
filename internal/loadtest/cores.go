package loadtest

import (
	"runtime"

	"go.uber.org/zap"
)

// CoreResolver decides how many workers a fanout run starts.
type CoreResolver struct {
	NumCPU func() int
	Logger *zap.Logger
}

// NewCoreResolver falls back to the host's logical CPU count.
func NewCoreResolver(log *zap.Logger) *CoreResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &CoreResolver{NumCPU: runtime.NumCPU, Logger: log}
}

// Resolve returns the explicit core count, or the host CPU count with a
// single warning when none was given.
func (r *CoreResolver) Resolve(spec InvocationSpec) (int, error) {
	if spec.CoreCount > 0 {
		return spec.CoreCount, nil
	}

	n := r.NumCPU()
	if n < 1 {
		return 0, ErrInvalidCoreCount
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Sugar().Warnf("cpu cores number not specified, use %d by default.", n)
	return n, nil
}
