package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// RowRun is one design row's fully rendered job chain.
type RowRun struct {
	Index       int
	Dir         string   // per-row working directory
	JobNames    []string // pipeline order
	Scripts     []string // rendered commands, aligned with JobNames
	ResultsPath string   // where the row's results file appears
}

// Batch is the collection of experiments for one iteration.
type Batch struct {
	Rows      []RowRun
	Responses []string // expected results file columns
}

// Executor runs one collection of parameterized experiments and
// returns the results table aligned by stable row index.
type Executor interface {
	Run(ctx context.Context, batch Batch) (*Table, error)
}

// EnsureDir creates a directory (and parents) if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// BuildBatch renders the pipeline for every design row, laying out one
// working directory per row under the iteration directory.
func BuildBatch(spec *Spec, iterDir string, rows []map[string]string, responses []string) (Batch, error) {
	batch := Batch{Responses: responses}
	for i, factors := range rows {
		rowDir := filepath.Join(iterDir, fmt.Sprintf("row_%03d", i))
		ctx := RenderContext{
			Factors:     factors,
			Constants:   spec.Constants,
			IterDir:     iterDir,
			WorkDir:     rowDir,
			ResultsFile: spec.ResultsFile,
		}
		run := RowRun{
			Index:       i,
			Dir:         rowDir,
			ResultsPath: filepath.Join(rowDir, spec.ResultsFile),
		}
		for _, job := range spec.Jobs {
			script, err := RenderJob(job, ctx)
			if err != nil {
				return Batch{}, err
			}
			run.JobNames = append(run.JobNames, job.Name)
			run.Scripts = append(run.Scripts, script)
		}
		batch.Rows = append(batch.Rows, run)
	}
	return batch, nil
}
