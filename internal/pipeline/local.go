package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// SerialExecutor runs every row's job chain sequentially in-process.
// A non-zero exit from any job marks that row missing and moves on to
// the next row; sibling rows are never aborted.
type SerialExecutor struct{}

// NewSerialExecutor creates a serial local executor.
func NewSerialExecutor() *SerialExecutor { return &SerialExecutor{} }

// Run executes the batch row by row in design order.
func (e *SerialExecutor) Run(ctx context.Context, batch Batch) (*Table, error) {
	table := NewTable(batch.Responses, len(batch.Rows))
	for _, row := range batch.Rows {
		table.Rows[row.Index] = runRow(ctx, row, batch.Responses)
	}
	return table, nil
}

// ParallelExecutor runs rows concurrently through a bounded worker
// pool. Jobs within one row stay strictly sequential: later jobs may
// depend on earlier jobs' outputs in the shared row directory.
type ParallelExecutor struct {
	workers int
}

// NewParallelExecutor creates a concurrent local executor with the
// given worker pool bound. The bound must be positive.
func NewParallelExecutor(workers int) (*ParallelExecutor, error) {
	if workers < 1 {
		return nil, fmt.Errorf("worker pool bound must be positive, got %d", workers)
	}
	return &ParallelExecutor{workers: workers}, nil
}

// Run executes the batch with at most `workers` rows in flight. Rows
// complete in any order but the table is assembled by stable index.
func (e *ParallelExecutor) Run(ctx context.Context, batch Batch) (*Table, error) {
	table := NewTable(batch.Responses, len(batch.Rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, row := range batch.Rows {
		row := row
		g.Go(func() error {
			// Row failures are data, not errors; only context
			// cancellation aborts the group.
			table.Rows[row.Index] = runRow(gctx, row, batch.Responses)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("execution cancelled: %w", err)
	}
	return table, nil
}

// runRow executes one row's job chain and parses its results file.
func runRow(ctx context.Context, row RowRun, responses []string) Result {
	result := Result{Index: row.Index}

	if err := EnsureDir(row.Dir); err != nil {
		result.Err = &JobError{Job: row.JobNames[0], Row: row.Index, Err: err}
		return result
	}

	for i, script := range row.Scripts {
		cmd := exec.CommandContext(ctx, "sh", "-c", script)
		cmd.Dir = row.Dir
		if out, err := cmd.CombinedOutput(); err != nil {
			result.Err = &JobError{Job: row.JobNames[i], Row: row.Index,
				Err: fmt.Errorf("%w: %s", err, string(out))}
			slog.Warn("Experiment row failed", "row", row.Index, "job", row.JobNames[i], "error", err)
			return result
		}
	}

	values, err := ParseResultsFile(row.ResultsPath, responses)
	if err != nil {
		result.Err = &JobError{Job: row.JobNames[len(row.JobNames)-1], Row: row.Index, Err: err}
		slog.Warn("Experiment row produced no results", "row", row.Index, "error", err)
		return result
	}
	result.Values = values
	return result
}
