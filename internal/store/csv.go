package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/pipeline"
)

const (
	fileWindows = "factor_settings.csv"
	fileDesign  = "design.csv"
	fileResults = "results.csv"
	fileSheet   = "complete_experimental_sheet.csv"
)

// writeCSV writes records atomically via temp file + rename.
func writeCSV(path string, records [][]string) error {
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SaveWindows persists the current factor windows for an iteration.
func (fs *FSStore) SaveWindows(n int, ws doe.Windows) error {
	records := [][]string{{"factor", "low", "high"}}
	for _, name := range windowOrder(ws) {
		w := ws[name]
		records = append(records, []string{name, formatFloat(w.Low), formatFloat(w.High)})
	}
	return writeCSV(filepath.Join(fs.IterDir(n), fileWindows), records)
}

// LoadWindows reads an iteration's persisted factor windows back.
func (fs *FSStore) LoadWindows(n int) (doe.Windows, error) {
	path := filepath.Join(fs.IterDir(n), fileWindows)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("malformed %s: %w", path, err)
	}
	ws := make(doe.Windows)
	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		if len(rec) != 3 {
			return nil, fmt.Errorf("malformed %s: row %d has %d columns", path, i, len(rec))
		}
		low, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed %s: %w", path, err)
		}
		high, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("malformed %s: %w", path, err)
		}
		ws[rec[0]] = doe.Window{Low: low, High: high}
	}
	return ws, nil
}

// designRecords renders the design as CSV records, one column per factor.
func designRecords(d *doe.Design) [][]string {
	header := make([]string, 0, len(d.Factors))
	for _, f := range d.Factors {
		header = append(header, f.Name)
	}
	records := [][]string{header}
	for i := range d.Rows {
		rendered := d.RenderRow(i)
		row := make([]string, len(header))
		for j, name := range header {
			row[j] = rendered[name]
		}
		records = append(records, row)
	}
	return records
}

// resultRecords renders the results table as CSV records; missing
// cells stay empty.
func resultRecords(t *pipeline.Table) [][]string {
	records := [][]string{t.Responses}
	for i := range t.Rows {
		row := make([]string, len(t.Responses))
		if !t.Rows[i].Missing() {
			for j, name := range t.Responses {
				row[j] = formatFloat(t.Rows[i].Values[name])
			}
		}
		records = append(records, row)
	}
	return records
}

// SaveDesign persists an iteration's design matrix.
func (fs *FSStore) SaveDesign(n int, d *doe.Design) error {
	return writeCSV(filepath.Join(fs.IterDir(n), fileDesign), designRecords(d))
}

// SaveResults persists an iteration's results table.
func (fs *FSStore) SaveResults(n int, t *pipeline.Table) error {
	return writeCSV(filepath.Join(fs.IterDir(n), fileResults), resultRecords(t))
}

// SaveSheet persists the concatenated design + results sheet.
func (fs *FSStore) SaveSheet(n int, d *doe.Design, t *pipeline.Table) error {
	design := designRecords(d)
	results := resultRecords(t)
	if len(design) != len(results) {
		return fmt.Errorf("design has %d rows but results has %d", len(design)-1, len(results)-1)
	}
	records := make([][]string, len(design))
	for i := range design {
		records[i] = append(append([]string{}, design[i]...), results[i]...)
	}
	return writeCSV(filepath.Join(fs.IterDir(n), fileSheet), records)
}

// WriteOptimum writes the predicted optimum to the output path: one
// column per factor plus the converged and reached_limits flags.
func WriteOptimum(path string, names []string, values map[string]float64,
	categorical map[string]string, converged, reachedLimits bool) error {

	header := append([]string{}, names...)
	row := make([]string, 0, len(names)+2)
	for _, name := range names {
		if v, ok := values[name]; ok {
			row = append(row, formatFloat(v))
		} else if c, ok := categorical[name]; ok {
			row = append(row, c)
		} else {
			row = append(row, "")
		}
	}
	header = append(header, "converged", "reached_limits")
	row = append(row, strconv.FormatBool(converged), strconv.FormatBool(reachedLimits))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return writeCSV(path, [][]string{header, row})
}
