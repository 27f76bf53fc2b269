// Package opt searches the fitted response surface for the scalarized
// optimum over the coded factor hull.
package opt

// Optimizer minimizes an objective over a box-bounded search space.
// Implementations must be deterministic for a fixed seed; the engine
// relies on that for crash-resume reproducibility.
type Optimizer interface {
	// Run minimizes eval over [lower, upper]^dim and returns the best
	// point found together with its objective value.
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}
