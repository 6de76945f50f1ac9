// Package loadtest turns a raw load-test command line into a validated
// invocation and decides how many worker processes it fans out to.
package loadtest

import (
	"fmt"
	"slices"
	"strconv"
)

// Flags understood by the normalizer. Everything else is forwarded to the
// engine untouched.
const (
	FlagLocustfile = "-f"
	FlagCPUCores   = "--cpu-cores"
	FlagNoWeb      = "--no-web"
)

var helpTokens = []string{"-h", "--help", "-V", "--version"}

// LoadPathResolver rewrites a testcase path into a file the engine can load.
type LoadPathResolver interface {
	ResolveLoadPath(path string) (string, error)
}

// ResolverFunc adapts a function to LoadPathResolver.
type ResolverFunc func(path string) (string, error)

func (f ResolverFunc) ResolveLoadPath(path string) (string, error) {
	return f(path)
}

// InvocationSpec is a parsed engine command line. Args never contains the
// fanout flag or a consumed core count, since the engine does not know them.
type InvocationSpec struct {
	Args            []string
	LocustfileIndex int
	Headless        bool
	Help            bool
	FanoutRequested bool
	// CoreCount is the explicit positive --cpu-cores value, 0 when absent.
	CoreCount int
}

// Tokens returns a copy of the forwarded arguments for one process start.
func (s InvocationSpec) Tokens() []string {
	return slices.Clone(s.Args)
}

// Locustfile returns the resolved testcase path, or "" for help invocations.
func (s InvocationSpec) Locustfile() string {
	if s.Help || s.LocustfileIndex < 0 || s.LocustfileIndex >= len(s.Args) {
		return ""
	}
	return s.Args[s.LocustfileIndex]
}

// IsHelp reports whether args only ask for the engine's help or version.
func IsHelp(args []string) bool {
	return len(args) == 0 || slices.Contains(helpTokens, args[0])
}

// Normalize parses args once into an InvocationSpec. Every check runs before
// the resolver is consulted, so a rejected command line has no side effects.
func Normalize(args []string, resolver LoadPathResolver) (InvocationSpec, error) {
	if IsHelp(args) {
		tokens := slices.Clone(args)
		if len(tokens) == 0 {
			tokens = []string{"-h"}
		}
		return InvocationSpec{Args: tokens, LocustfileIndex: -1, Help: true}, nil
	}

	spec := InvocationSpec{LocustfileIndex: -1}
	out := make([]string, 0, len(args))
	badCount := ""

	for i := 0; i < len(args); i++ {
		tok := args[i]
		switch {
		case tok == FlagLocustfile && spec.LocustfileIndex < 0:
			out = append(out, tok)
			if i+1 < len(args) {
				i++
				out = append(out, args[i])
				spec.LocustfileIndex = len(out) - 1
			}
		case tok == FlagCPUCores:
			spec.FanoutRequested = true
			if i+1 < len(args) {
				if n, err := strconv.Atoi(args[i+1]); err == nil {
					i++
					if n <= 0 {
						badCount = args[i]
						continue
					}
					spec.CoreCount = n
				}
			}
		case tok == FlagNoWeb:
			spec.Headless = true
			out = append(out, tok)
		default:
			out = append(out, tok)
		}
	}

	switch {
	case spec.LocustfileIndex < 0:
		return InvocationSpec{}, ErrMissingTestcase
	case spec.FanoutRequested && spec.Headless:
		return InvocationSpec{}, ErrConflictingFlags
	case badCount != "":
		return InvocationSpec{}, fmt.Errorf("%w: got %s", ErrInvalidCoreCount, badCount)
	}

	raw := out[spec.LocustfileIndex]
	resolved, err := resolver.ResolveLoadPath(raw)
	if err != nil {
		return InvocationSpec{}, fmt.Errorf("%w %q: %w", ErrLoadPath, raw, err)
	}
	if resolved == "" {
		return InvocationSpec{}, fmt.Errorf("%w %q: resolver returned an empty path", ErrLoadPath, raw)
	}
	out[spec.LocustfileIndex] = resolved

	spec.Args = out
	return spec, nil
}
