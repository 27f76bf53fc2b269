package store

import "fmt"

// NotFoundError indicates no persisted run state exists yet.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no run state found at %s", e.Path)
}

// RecoveryError indicates a resume attempt found the working directory
// in a state that cannot be continued; the run must restart without
// recovery.
type RecoveryError struct {
	Reason string
}

func (e *RecoveryError) Error() string {
	return "recovery error: " + e.Reason
}
