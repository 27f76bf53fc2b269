package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// JobState is a submitted cluster job's lifecycle state.
type JobState int

const (
	StatePending JobState = iota
	StateRunning
	StateDone
	StateFailed
)

// Runner abstracts cluster command invocation so the executor's
// submit/poll logic is testable without a scheduler.
type Runner interface {
	// Submit queues a script in dir, optionally depending on a prior
	// job, and returns the scheduler's job ID.
	Submit(ctx context.Context, dir, script, afterID string) (string, error)
	// State reports the job's current lifecycle state.
	State(ctx context.Context, id string) (JobState, error)
}

// ClusterExecutor submits every row's job chain as dependent cluster
// jobs and polls until all chains reach a terminal state. In recovery
// mode, rows whose results file already parses are skipped instead of
// resubmitted.
type ClusterExecutor struct {
	runner  Runner
	poll    time.Duration
	recover bool
}

// NewClusterExecutor creates a cluster executor. A zero poll interval
// defaults to five seconds.
func NewClusterExecutor(runner Runner, poll time.Duration, recoverRows bool) *ClusterExecutor {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &ClusterExecutor{runner: runner, poll: poll, recover: recoverRows}
}

// Run submits the batch and waits for completion.
func (e *ClusterExecutor) Run(ctx context.Context, batch Batch) (*Table, error) {
	table := NewTable(batch.Responses, len(batch.Rows))

	// lastID tracks each pending row's tail job; the chain is terminal
	// when its tail is.
	lastID := make(map[int]string)

	for _, row := range batch.Rows {
		if e.recover {
			if values, err := ParseResultsFile(row.ResultsPath, batch.Responses); err == nil {
				slog.Info("Row already complete, skipping submission", "row", row.Index)
				table.Rows[row.Index].Values = values
				continue
			}
		}
		if err := EnsureDir(row.Dir); err != nil {
			table.Rows[row.Index].Err = &JobError{Job: row.JobNames[0], Row: row.Index, Err: err}
			continue
		}

		afterID := ""
		failed := false
		for i, script := range row.Scripts {
			id, err := e.runner.Submit(ctx, row.Dir, script, afterID)
			if err != nil {
				table.Rows[row.Index].Err = &JobError{Job: row.JobNames[i], Row: row.Index, Err: err}
				failed = true
				break
			}
			afterID = id
		}
		if !failed {
			lastID[row.Index] = afterID
		}
	}

	if err := e.await(ctx, batch, table, lastID); err != nil {
		return nil, err
	}
	return table, nil
}

// await polls pending chains until every one is terminal.
func (e *ClusterExecutor) await(ctx context.Context, batch Batch, table *Table, lastID map[int]string) error {
	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for len(lastID) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("execution cancelled: %w", ctx.Err())
		case <-ticker.C:
		}

		for idx, id := range lastID {
			state, err := e.runner.State(ctx, id)
			if err != nil {
				table.Rows[idx].Err = &JobError{Job: "poll", Row: idx, Err: err}
				delete(lastID, idx)
				continue
			}
			switch state {
			case StateDone:
				row := batch.Rows[idx]
				values, err := ParseResultsFile(row.ResultsPath, batch.Responses)
				if err != nil {
					table.Rows[idx].Err = &JobError{Job: row.JobNames[len(row.JobNames)-1], Row: idx, Err: err}
				} else {
					table.Rows[idx].Values = values
				}
				delete(lastID, idx)
			case StateFailed:
				table.Rows[idx].Err = &JobError{Job: "cluster", Row: idx,
					Err: fmt.Errorf("cluster job %s failed", id)}
				delete(lastID, idx)
			default:
				// still pending or running
			}
		}
	}
	return nil
}

// SlurmRunner drives a Slurm scheduler through sbatch and squeue/sacct.
type SlurmRunner struct{}

// Submit queues the script with sbatch, chaining on afterok when a
// dependency is given.
func (s *SlurmRunner) Submit(ctx context.Context, dir, script, afterID string) (string, error) {
	args := []string{"--parsable", "--chdir", dir, "--wrap", script}
	if afterID != "" {
		args = append([]string{"--dependency", "afterok:" + afterID}, args...)
	}
	out, err := exec.CommandContext(ctx, "sbatch", args...).Output()
	if err != nil {
		return "", fmt.Errorf("sbatch failed: %w", err)
	}
	id := strings.TrimSpace(strings.SplitN(string(out), ";", 2)[0])
	if id == "" {
		return "", fmt.Errorf("sbatch returned no job id")
	}
	return id, nil
}

// State queries the job state, preferring the queue and falling back
// to accounting for jobs that already left it.
func (s *SlurmRunner) State(ctx context.Context, id string) (JobState, error) {
	out, err := exec.CommandContext(ctx, "squeue", "-h", "-j", id, "-o", "%T").Output()
	if err == nil {
		switch strings.TrimSpace(string(out)) {
		case "PENDING", "CONFIGURING":
			return StatePending, nil
		case "RUNNING", "COMPLETING":
			return StateRunning, nil
		case "":
			// Job left the queue; ask accounting below.
		default:
			return StateFailed, nil
		}
	}

	out, err = exec.CommandContext(ctx, "sacct", "-n", "-X", "-j", id, "-o", "State").Output()
	if err != nil {
		return StateFailed, fmt.Errorf("sacct failed for job %s: %w", id, err)
	}
	state := strings.TrimSpace(string(out))
	switch {
	case strings.HasPrefix(state, "COMPLETED"):
		return StateDone, nil
	case strings.HasPrefix(state, "PENDING"):
		return StatePending, nil
	case strings.HasPrefix(state, "RUNNING"):
		return StateRunning, nil
	default:
		return StateFailed, nil
	}
}
