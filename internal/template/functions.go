package template

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"hrunner/internal/core"
)

// builtin is a function testcases call as ${name(args)}. Generated
// locustfiles implement the same set, so both engines render a step alike.
type builtin struct {
	usage string
	call  func(args string) (string, error)
}

var builtins = map[string]builtin{
	"uuid":          {"uuid()", noArgs(uuid.NewString)},
	"timestamp":     {"timestamp()", noArgs(func() string { return strconv.FormatInt(clock.Now().Unix(), 10) })},
	"timestamp_ms":  {"timestamp_ms()", noArgs(func() string { return strconv.FormatInt(clock.Now().UnixMilli(), 10) })},
	"random":        {"random(min,max)", randomInt},
	"random_string": {"random_string(n)", randomString},
	"date":          {"date(layout)", date},
}

// clock feeds the time built-ins.
var clock core.Clock = core.RealClock{}

const maxRandomString = 1000

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// evalFunction runs expr when it is a call to a built-in. isFunc is false
// for anything else, which Substitute then reports as a missing variable.
func evalFunction(expr string) (result string, isFunc bool, err error) {
	open := strings.IndexByte(expr, '(')
	if open < 0 || !strings.HasSuffix(expr, ")") {
		return "", false, nil
	}
	fn, ok := builtins[expr[:open]]
	if !ok {
		return "", false, nil
	}
	result, err = fn.call(expr[open+1 : len(expr)-1])
	if err != nil {
		return "", true, fmt.Errorf("%s: %w", fn.usage, err)
	}
	return result, true, nil
}

func noArgs(fn func() string) func(string) (string, error) {
	return func(args string) (string, error) {
		if args != "" {
			return "", errors.New("takes no arguments")
		}
		return fn(), nil
	}
}

func intArg(s, what string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, strings.TrimSpace(s))
	}
	return n, nil
}

// randomInt returns an integer in [min, max].
func randomInt(args string) (string, error) {
	lo, hi, ok := strings.Cut(args, ",")
	if !ok || strings.Contains(hi, ",") {
		return "", errors.New("needs exactly 2 arguments")
	}
	minV, err := intArg(lo, "min")
	if err != nil {
		return "", err
	}
	maxV, err := intArg(hi, "max")
	if err != nil {
		return "", err
	}
	if minV > maxV {
		return "", fmt.Errorf("min %d is greater than max %d", minV, maxV)
	}
	span := maxV - minV + 1
	if span <= 0 {
		return "", errors.New("range too large")
	}
	return strconv.FormatInt(minV+rand.Int64N(span), 10), nil
}

// randomString returns n alphanumeric characters.
func randomString(args string) (string, error) {
	n, err := intArg(args, "length")
	if err != nil {
		return "", err
	}
	switch {
	case n <= 0:
		return "", errors.New("length must be positive")
	case n > maxRandomString:
		return "", fmt.Errorf("length must be <= %d", maxRandomString)
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphanumeric[rand.IntN(len(alphanumeric))]
	}
	return string(b), nil
}

// date formats the current local time with a Go reference layout such as
// 2006-01-02 or 15:04:05. An empty layout means RFC 3339.
func date(args string) (string, error) {
	layout := strings.TrimSpace(args)
	if layout == "" {
		layout = time.RFC3339
	}
	return clock.Now().Format(layout), nil
}
