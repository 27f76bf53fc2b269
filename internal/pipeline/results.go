package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// Result holds one experiment row's measured responses. A failed row
// carries Err and no values; downstream model fitting excludes it.
type Result struct {
	Index  int
	Values map[string]float64
	Err    error
}

// Missing reports whether the row produced no usable observations.
func (r *Result) Missing() bool {
	return r.Err != nil || len(r.Values) == 0
}

// Table is the results of one collection, aligned 1:1 with the design
// matrix rows by stable index regardless of completion order.
type Table struct {
	Responses []string
	Rows      []Result
}

// NewTable allocates a table with n pending rows.
func NewTable(responses []string, n int) *Table {
	t := &Table{Responses: responses, Rows: make([]Result, n)}
	for i := range t.Rows {
		t.Rows[i].Index = i
	}
	return t
}

// JobError reports a job that exited non-zero or produced no results
// file. Recorded per row; sibling rows keep running.
type JobError struct {
	Job string
	Row int
	Err error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s failed for row %d: %v", e.Job, e.Row, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// ParseResultsFile reads a row's declared results file: a CSV whose
// header names the responses with a single data record below it.
func ParseResultsFile(path string, responses []string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("results file absent: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed results file %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("results file %s has no data record", path)
	}

	header := records[0]
	data := records[1]
	byName := make(map[string]float64)
	for i, col := range header {
		if i >= len(data) {
			break
		}
		v, err := strconv.ParseFloat(data[i], 64)
		if err != nil {
			return nil, fmt.Errorf("results file %s: column %s is not numeric: %w", path, col, err)
		}
		byName[col] = v
	}

	out := make(map[string]float64, len(responses))
	for _, name := range responses {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("results file %s missing response column %s", path, name)
		}
		out[name] = v
	}
	return out, nil
}
