// Package scaffold creates the directory layout of a new test project.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrProjectExists is returned when the project folder is already present.
var ErrProjectExists = errors.New("project folder exists")

// Dirs are created under the project root.
var Dirs = []string{
	filepath.Join("tests", "api"),
	filepath.Join("tests", "suite"),
	filepath.Join("tests", "testcases"),
}

const sampleTestcase = `config:
  name: health check
  base_url: http://localhost:8080
  variables:
    expected_status: ok
steps:
  - name: health
    method: GET
    url: /health
    validate:
      - eq: [status_code, 200]
      - eq: [$.status, "${expected_status}"]
`

// Create builds the project skeleton at path. An existing folder is left
// untouched and reported with ErrProjectExists.
func Create(path string, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	if _, err := os.Stat(path); err == nil {
		log.Warn("folder exists, please specify a new folder name", zap.String("path", path))
		return fmt.Errorf("%w: %s", ErrProjectExists, path)
	}

	log.Info("start to create new project", zap.String("path", path))
	for _, dir := range Dirs {
		full := filepath.Join(path, dir)
		if err := os.MkdirAll(full, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", full, err)
		}
		log.Info("created folder", zap.String("path", full))
	}

	sample := filepath.Join(path, "tests", "testcases", "health.yaml")
	if err := os.WriteFile(sample, []byte(sampleTestcase), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", sample, err)
	}
	log.Info("created file", zap.String("path", sample))
	return nil
}
