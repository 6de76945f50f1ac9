// Package suite loads testcases into tasks and runs them as a functional
// HTTP test suite.
package suite

import (
	"fmt"

	"hrunner/internal/config"
	"hrunner/internal/data"
)

// ErrTestcaseNotFound is returned when the given paths hold no testcase.
// It is distinct from a task failing.
var ErrTestcaseNotFound = config.ErrTestcaseNotFound

// Task is one execution of a testcase with a fixed set of starting variables.
// Testcases with parameters expand into one task per row combination.
type Task struct {
	ID        int
	Name      string
	Testcase  *config.Testcase
	Variables map[string]any
	Params    map[string]any // row combination the task was expanded from
}

// TaskSuite is the ordered list of tasks built from testcase paths.
type TaskSuite struct {
	Tasks []*Task
}

// NewTaskSuite loads every testcase under paths. The mapping overrides the
// variables declared in each testcase's config block.
func NewTaskSuite(paths []string, mapping map[string]any) (*TaskSuite, error) {
	files, err := config.FindTestcases(paths)
	if err != nil {
		return nil, err
	}

	s := &TaskSuite{}
	for _, file := range files {
		tc, err := config.LoadTestcase(file)
		if err != nil {
			return nil, err
		}

		rows, err := parameterRows(tc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for i, row := range rows {
			name := tc.DisplayName()
			if len(rows) > 1 {
				name = fmt.Sprintf("%s[%d]", name, i)
			}
			s.Tasks = append(s.Tasks, &Task{
				ID:        len(s.Tasks) + 1,
				Name:      name,
				Testcase:  tc,
				Variables: mergeVariables(tc.Config.Variables, row, mapping),
				Params:    row,
			})
		}
	}
	return s, nil
}

// Len returns the number of tasks.
func (s *TaskSuite) Len() int {
	return len(s.Tasks)
}

func parameterRows(tc *config.Testcase) ([]map[string]any, error) {
	sources := make([]*data.Source, 0, len(tc.Config.Parameters))
	for _, p := range tc.Config.Parameters {
		src, err := data.LoadFile(p.Name, p.File, tc.Dir())
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return data.Combinations(sources), nil
}

func mergeVariables(mappings ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, m := range mappings {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
