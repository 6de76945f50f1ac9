// Package config handles testcase and engine configuration parsing.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// ErrTestcaseNotFound is returned when a requested testcase path does not exist
// or names no testcase files.
var ErrTestcaseNotFound = errors.New("testcase not found")

// Testcase is the root structure of a testcase file.
type Testcase struct {
	Path   string         `yaml:"-"`
	Config TestcaseConfig `yaml:"config"`
	Steps  []StepConfig   `yaml:"steps"`
}

// TestcaseConfig holds testcase-wide settings.
type TestcaseConfig struct {
	Name       string            `yaml:"name"`
	BaseURL    string            `yaml:"base_url"`
	Variables  map[string]any    `yaml:"variables"`
	Parameters []ParameterConfig `yaml:"parameters,omitempty"`
	Output     []string          `yaml:"output,omitempty"`
	RPS        int               `yaml:"rps,omitempty"`
}

// ParameterConfig binds a data file to the testcase. Each row combination
// across all parameters becomes one task; fields are exposed as
// ${data.<name>.<field>}.
type ParameterConfig struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// StepConfig defines a single HTTP request step.
type StepConfig struct {
	Name     string            `yaml:"name"`
	Method   string            `yaml:"method"`
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	Body     string            `yaml:"body"`
	Extract  map[string]string `yaml:"extract,omitempty"` // JSONPath extraction rules
	Validate []Validator       `yaml:"validate,omitempty"`
}

// Validator is a single assertion on a step response.
//
// Two YAML forms are accepted:
//
//	- eq: [status_code, 200]
//	- {check: $.data.id, comparator: eq, expect: 1}
type Validator struct {
	Check      string `yaml:"check" json:"check"`
	Comparator string `yaml:"comparator" json:"comparator"`
	Expect     any    `yaml:"expect" json:"expect"`
}

// UnmarshalYAML implements yaml.Unmarshaler for both validator forms.
func (v *Validator) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}

	if check, ok := raw["check"]; ok {
		v.Check = fmt.Sprint(check)
		v.Comparator = "eq"
		if c, ok := raw["comparator"]; ok {
			v.Comparator = fmt.Sprint(c)
		}
		v.Expect = raw["expect"]
		return nil
	}

	if len(raw) != 1 {
		return fmt.Errorf("line %d: validator must have exactly one comparator, got %d keys", node.Line, len(raw))
	}
	for comparator, args := range raw {
		list, ok := args.([]any)
		if !ok || len(list) != 2 {
			return fmt.Errorf("line %d: validator %q expects [check, expect]", node.Line, comparator)
		}
		v.Comparator = comparator
		v.Check = fmt.Sprint(list[0])
		v.Expect = list[1]
	}
	return nil
}

// DisplayName returns the configured name, or the file name without extension.
func (tc *Testcase) DisplayName() string {
	if tc.Config.Name != "" {
		return tc.Config.Name
	}
	base := filepath.Base(tc.Path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Dir returns the directory containing the testcase file, used to resolve
// relative parameter files.
func (tc *Testcase) Dir() string {
	return filepath.Dir(tc.Path)
}

// LoadTestcase reads and parses a YAML or JSON testcase file.
// JSON files may contain comments and trailing commas.
func LoadTestcase(path string) (*Testcase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTestcaseNotFound, path)
		}
		return nil, fmt.Errorf("reading testcase file: %w", err)
	}

	if isJSON(path) {
		data, err = jsonToYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parsing testcase file %s: %w", path, err)
		}
	}

	var tc Testcase
	if err := yaml.Unmarshal(data, &tc); err != nil {
		return nil, fmt.Errorf("parsing testcase file %s: %w", path, err)
	}
	if len(tc.Steps) == 0 {
		return nil, fmt.Errorf("testcase file %s: no steps defined", path)
	}
	tc.Path = path
	return &tc, nil
}

// FindTestcases expands files and directories into an ordered list of
// testcase files. Directories are walked recursively in lexical order.
func FindTestcases(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no testcase path given", ErrTestcaseNotFound)
	}

	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrTestcaseNotFound, p)
			}
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && IsTestcaseFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: no testcase files in %s", ErrTestcaseNotFound, p)
		}
		files = append(files, found...)
	}
	return files, nil
}

// IsTestcaseFile reports whether path has a YAML or JSON extension.
func IsTestcaseFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func isJSON(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

// jsonToYAML strips comments, then re-encodes as YAML so custom
// yaml.Unmarshaler implementations apply to JSON testcases too.
func jsonToYAML(data []byte) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, err
	}
	return yaml.Marshal(doc)
}
