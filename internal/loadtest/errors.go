package loadtest

import (
	"errors"
	"fmt"
)

// ErrConfig marks invocations rejected before any process starts.
var ErrConfig = errors.New("configuration error")

var (
	ErrMissingTestcase  = fmt.Errorf("%w: testcase file is not specified", ErrConfig)
	ErrConflictingFlags = fmt.Errorf("%w: conflict parameter args: %s & %s", ErrConfig, FlagCPUCores, FlagNoWeb)
	ErrInvalidCoreCount = fmt.Errorf("%w: cpu cores number must be a positive integer", ErrConfig)
	ErrLoadPath         = fmt.Errorf("%w: cannot resolve testcase file", ErrConfig)
)
