// Package data provides data file loading for parameterized testcases.
package data

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Source represents a loaded data file.
type Source struct {
	name string
	rows []map[string]any
}

// NewSource creates a data source from loaded rows.
func NewSource(name string, rows []map[string]any) *Source {
	return &Source{
		name: name,
		rows: rows,
	}
}

// Name returns the source name.
func (s *Source) Name() string {
	return s.name
}

// Len returns the number of rows.
func (s *Source) Len() int {
	return len(s.rows)
}

// Row returns a copy of row i.
func (s *Source) Row(i int) map[string]any {
	row := make(map[string]any, len(s.rows[i]))
	for k, v := range s.rows[i] {
		row[k] = v
	}
	return row
}

// LoadFile loads a data file (CSV or JSON) and returns a Source.
func LoadFile(name, path string, configDir string) (*Source, error) {
	// Relative paths resolve against the testcase file directory
	if !filepath.IsAbs(path) {
		path = filepath.Join(configDir, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var rows []map[string]any
	var err error

	switch ext {
	case ".csv":
		rows, err = loadCSV(path)
	case ".json":
		rows, err = loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file format %q (use .csv or .json)", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("data file %s is empty", path)
	}

	return NewSource(name, rows), nil
}

// loadCSV loads a CSV file. First row is headers, subsequent rows are data.
func loadCSV(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("CSV must have header row and at least one data row")
	}

	headers := records[0]
	rows := make([]map[string]any, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(map[string]any, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// loadJSON loads a JSON file. Must be an array of objects.
func loadJSON(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("JSON must be an array of objects: %w", err)
	}

	return rows, nil
}

// Combinations returns one variable set per element of the cartesian product
// of all sources' rows, with fields keyed as "data.<source>.<field>".
// The first source varies slowest. No sources yields a single empty set.
func Combinations(sources []*Source) []map[string]any {
	combos := []map[string]any{{}}
	for _, src := range sources {
		next := make([]map[string]any, 0, len(combos)*src.Len())
		for _, base := range combos {
			for i := 0; i < src.Len(); i++ {
				row := src.Row(i)
				combo := make(map[string]any, len(base)+len(row))
				for k, v := range base {
					combo[k] = v
				}
				for field, value := range row {
					combo[fmt.Sprintf("data.%s.%s", src.name, field)] = value
				}
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}
