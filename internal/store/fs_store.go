package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cwbudde/doepilot/internal/doe"
)

// FSStore persists run state and per-iteration artifacts under one
// working directory:
//
//	<baseDir>/state.json
//	<baseDir>/iter_001/{factor_settings,design,results,complete_experimental_sheet}.csv
//	<baseDir>/iter_001/.complete
//
// An iteration counts as completed only when its .complete marker
// exists; directory existence alone proves nothing, since a crash can
// interrupt artifact writes mid-iteration.
//
// Precondition: exactly one engine process operates on a given base
// directory at a time. No locking is performed.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-backed store, creating baseDir if
// needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the store's root directory.
func (fs *FSStore) BaseDir() string { return fs.baseDir }

// IterDir returns the directory path for an iteration number.
func (fs *FSStore) IterDir(n int) string {
	return filepath.Join(fs.baseDir, fmt.Sprintf("iter_%03d", n))
}

// EnsureIterDir creates the iteration directory.
func (fs *FSStore) EnsureIterDir(n int) error {
	if err := os.MkdirAll(fs.IterDir(n), 0755); err != nil {
		return fmt.Errorf("failed to create iteration directory: %w", err)
	}
	return nil
}

func (fs *FSStore) statePath() string {
	return filepath.Join(fs.baseDir, "state.json")
}

func (fs *FSStore) markerPath(n int) string {
	return filepath.Join(fs.IterDir(n), ".complete")
}

// SaveState atomically persists the run state using the temp file +
// rename pattern.
func (fs *FSStore) SaveState(state *RunState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	tempPath := fs.statePath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := os.Rename(tempPath, fs.statePath()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename state file: %w", err)
	}

	slog.Debug("Run state saved", "iteration", state.Iteration, "phase", state.Phase)
	return nil
}

// LoadState retrieves the persisted run state.
func (fs *FSStore) LoadState() (*RunState, error) {
	path := fs.statePath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{Path: path}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat state file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	var state RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize state: %w", err)
	}

	slog.Debug("Run state loaded", "iteration", state.Iteration, "phase", state.Phase)
	return &state, nil
}

// MarkComplete writes the iteration's completion marker. It must be
// the last write of an iteration.
func (fs *FSStore) MarkComplete(n int) error {
	if err := os.WriteFile(fs.markerPath(n), []byte(time.Now().Format(time.RFC3339)+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write completion marker: %w", err)
	}
	return nil
}

// IsComplete reports whether an iteration's completion marker exists.
func (fs *FSStore) IsComplete(n int) bool {
	_, err := os.Stat(fs.markerPath(n))
	return err == nil
}

// LoadForResume loads and validates the persisted state for recovery.
// The last recorded iteration must carry its completion marker and
// its factor settings artifact; anything less means the run cannot be
// resumed and must restart without recovery.
func (fs *FSStore) LoadForResume() (*RunState, error) {
	state, err := fs.LoadState()
	if err != nil {
		if _, missing := err.(*NotFoundError); missing {
			return nil, &RecoveryError{Reason: "no persisted run state"}
		}
		return nil, &RecoveryError{Reason: err.Error()}
	}
	if err := state.Validate(); err != nil {
		return nil, &RecoveryError{Reason: err.Error()}
	}
	if state.Iteration > 0 {
		if !fs.IsComplete(state.Iteration) {
			return nil, &RecoveryError{
				Reason: fmt.Sprintf("iteration %d has no completion marker", state.Iteration)}
		}
		if _, err := fs.LoadWindows(state.Iteration); err != nil {
			return nil, &RecoveryError{
				Reason: fmt.Sprintf("iteration %d artifacts unreadable: %v", state.Iteration, err)}
		}
	}

	slog.Info("Run state recovered", "iteration", state.Iteration, "phase", state.Phase)
	return state, nil
}

// IterationInfo summarizes one persisted iteration for listings.
type IterationInfo struct {
	Iteration int
	Complete  bool
}

// ListIterations returns every iteration directory found, in order.
func (fs *FSStore) ListIterations() ([]IterationInfo, error) {
	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read base directory: %w", err)
	}
	var infos []IterationInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(entry.Name(), "iter_%03d", &n); err != nil {
			continue
		}
		infos = append(infos, IterationInfo{Iteration: n, Complete: fs.IsComplete(n)})
	}
	return infos, nil
}

// windowOrder gives a stable row order for the factor settings file.
func windowOrder(ws doe.Windows) []string {
	names := make([]string, 0, len(ws))
	for name := range ws {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
