package store

import (
	"time"

	"github.com/cwbudde/doepilot/internal/doe"
)

// BestExperiment is the best-known experiment so far: the design row
// that produced it and its measured responses.
type BestExperiment struct {
	Iteration   int                `json:"iteration"`
	RowIndex    int                `json:"rowIndex"`
	Factors     map[string]float64 `json:"factors"`
	Categorical map[string]string  `json:"categorical,omitempty"`
	Responses   map[string]float64 `json:"responses"`
	Score       float64            `json:"score"`
}

// ScreeningCandidate is one screening row ranked by score, kept so the
// run can restart from the next-best candidate when response limits
// stay unmet. Windows is the optimization window recentered around the
// candidate, precomputed so restarts need no screening grid.
type ScreeningCandidate struct {
	Factors     map[string]float64 `json:"factors"`
	Categorical map[string]string  `json:"categorical,omitempty"`
	Responses   map[string]float64 `json:"responses"`
	Score       float64            `json:"score"`
	LevelIdx    map[string]int     `json:"levelIdx"`
	Windows     doe.Windows        `json:"windows"`
}

// RunState is the persisted cross-iteration optimization state. It is
// written at the end of every iteration and is, together with the
// per-iteration completion markers, the recovery contract.
type RunState struct {
	// Iteration is the last completed iteration number (1-based).
	Iteration int `json:"iteration"`

	// Phase is the controller phase after the last completed iteration.
	Phase string `json:"phase"`

	// Windows holds the current low/high exploration window per
	// numeric factor.
	Windows doe.Windows `json:"windows"`

	// Best is the best-known experiment, nil until one exists.
	Best *BestExperiment `json:"best,omitempty"`

	// PrevOptimum is the previous iteration's predicted optimum,
	// kept for the rollback decision.
	PrevOptimum map[string]float64 `json:"prevOptimum,omitempty"`

	// Screening holds the ranked screening candidates when a screening
	// phase ran, best first.
	Screening []ScreeningCandidate `json:"screening,omitempty"`

	// ScreeningRank is the index of the screening candidate the
	// current optimization descent started from.
	ScreeningRank int `json:"screeningRank"`

	// UpdatedAt records when this state was persisted.
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks that a loaded state is usable for resumption.
func (s *RunState) Validate() error {
	if s.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if s.Phase == "" {
		return &ValidationError{Field: "Phase", Reason: "cannot be empty"}
	}
	if len(s.Windows) == 0 {
		return &ValidationError{Field: "Windows", Reason: "cannot be empty"}
	}
	for name, w := range s.Windows {
		if w.Low > w.High {
			return &ValidationError{Field: "Windows", Reason: "low exceeds high for factor " + name}
		}
	}
	if s.UpdatedAt.IsZero() {
		return &ValidationError{Field: "UpdatedAt", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a persisted-state validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
