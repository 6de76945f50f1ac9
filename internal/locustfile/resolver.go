// Package locustfile turns testcase paths into files the load engine loads.
package locustfile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"hrunner/internal/config"
	"hrunner/internal/core"
	"hrunner/internal/template"
	"hrunner/internal/version"
)

// GeneratedName is the file written next to the working directory for
// YAML and JSON testcases.
const GeneratedName = "locustfile.py"

// ErrUnsupported is returned for paths that are neither Python nor testcases.
var ErrUnsupported = errors.New("testcase file must be .py, .yaml, .yml or .json")

//go:embed locustfile.py.tmpl
var locustTemplate string

// Resolver resolves -f paths. Python files are used as given; testcases are
// validated and wrapped in a generated locustfile written to OutputDir.
type Resolver struct {
	// OutputDir defaults to the current working directory.
	OutputDir string
	Logger    *zap.Logger
}

func (r *Resolver) ResolveLoadPath(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", config.ErrTestcaseNotFound, path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return path, nil
	case ".yaml", ".yml", ".json":
		return r.generate(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

func (r *Resolver) generate(path string) (string, error) {
	tc, err := config.LoadTestcase(path)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	content, err := Render(abs, tc)
	if err != nil {
		return "", err
	}

	dir := r.OutputDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return "", err
		}
	}
	out := filepath.Join(dir, GeneratedName)
	if err := os.WriteFile(out, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}

	if r.Logger != nil {
		r.Logger.Info("generated locustfile", zap.String("testcase", abs), zap.String("locustfile", out))
	}
	return out, nil
}

// loadPlan is the testcase as the generated locustfile runs it. Step names,
// methods and validator forms are resolved here so both engines agree on them.
type loadPlan struct {
	Name      string         `json:"name"`
	BaseURL   string         `json:"base_url,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Steps     []loadStep     `json:"steps"`
}

type loadStep struct {
	Name     string             `json:"name"`
	Method   string             `json:"method"`
	URL      string             `json:"url"`
	Headers  map[string]string  `json:"headers,omitempty"`
	Body     string             `json:"body,omitempty"`
	Extract  map[string]string  `json:"extract,omitempty"`
	Validate []config.Validator `json:"validate,omitempty"`
}

func newLoadPlan(tc *config.Testcase) loadPlan {
	plan := loadPlan{
		Name:      tc.DisplayName(),
		BaseURL:   tc.Config.BaseURL,
		Variables: tc.Config.Variables,
		Steps:     make([]loadStep, len(tc.Steps)),
	}
	for i, s := range tc.Steps {
		method := s.Method
		if method == "" {
			method = http.MethodGet
		}
		name := s.Name
		if name == "" {
			name = s.Method + " " + s.URL
		}
		plan.Steps[i] = loadStep{
			Name:     name,
			Method:   method,
			URL:      s.URL,
			Headers:  s.Headers,
			Body:     s.Body,
			Extract:  s.Extract,
			Validate: s.Validate,
		}
	}
	return plan
}

// Render fills the locustfile template for the testcase tc loaded from abs.
func Render(abs string, tc *config.Testcase) (string, error) {
	plan, err := json.Marshal(newLoadPlan(tc))
	if err != nil {
		return "", fmt.Errorf("encoding testcase %s: %w", abs, err)
	}
	vars := core.NewVariablesFrom(map[string]any{
		"testcase_file":   strconv.Quote(abs),
		"testcase_json":   strconv.Quote(string(plan)),
		"hrunner_version": version.Version,
	})
	return template.Substitute(locustTemplate, vars)
}
