// Package engine drives the iterative optimization: design generation,
// pipeline execution, response-surface fitting, optimum search, and the
// phase state machine with its window recenter and rollback policy.
package engine

import (
	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/store"
)

// Phase is the controller's state-machine phase.
type Phase string

const (
	PhaseScreening  Phase = "screening"
	PhaseOptimizing Phase = "optimizing"
	PhaseConverged  Phase = "converged"
	PhaseStopped    Phase = "stopped"
)

// Terminal reports whether the phase ends the run.
func (p Phase) Terminal() bool {
	return p == PhaseConverged || p == PhaseStopped
}

// State is the explicit cross-iteration optimization state. Every
// controller transition takes a State and returns an updated one; the
// iteration driver persists it after each completed iteration.
type State struct {
	Iteration     int // last completed iteration, 1-based
	Phase         Phase
	Windows       doe.Windows
	Best          *store.BestExperiment
	PrevOptimum   map[string]float64
	Screening     []store.ScreeningCandidate
	ScreeningRank int
}

// NewState builds the run-start state from factor definitions.
func NewState(factors []doe.Factor, skipScreening bool) *State {
	phase := PhaseScreening
	if skipScreening {
		phase = PhaseOptimizing
	}
	return &State{
		Phase:   phase,
		Windows: doe.InitialWindows(factors),
	}
}

// ToRunState converts to the persisted representation.
func (s *State) ToRunState() *store.RunState {
	return &store.RunState{
		Iteration:     s.Iteration,
		Phase:         string(s.Phase),
		Windows:       s.Windows.Clone(),
		Best:          s.Best,
		PrevOptimum:   s.PrevOptimum,
		Screening:     s.Screening,
		ScreeningRank: s.ScreeningRank,
	}
}

// FromRunState rebuilds controller state from a recovered run state.
func FromRunState(rs *store.RunState) *State {
	return &State{
		Iteration:     rs.Iteration,
		Phase:         Phase(rs.Phase),
		Windows:       rs.Windows.Clone(),
		Best:          rs.Best,
		PrevOptimum:   rs.PrevOptimum,
		Screening:     rs.Screening,
		ScreeningRank: rs.ScreeningRank,
	}
}
