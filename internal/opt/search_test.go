package opt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/rsm"
)

// gridOptimizer is a deterministic stand-in: it scans a fixed coded
// grid and returns the best point found.
type gridOptimizer struct{ steps int }

func (g *gridOptimizer) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	best := make([]float64, dim)
	bestCost := math.Inf(1)

	var walk func(pos int, point []float64)
	walk = func(pos int, point []float64) {
		if pos == dim {
			if cost := eval(point); cost < bestCost {
				bestCost = cost
				copy(best, point)
			}
			return
		}
		for i := 0; i <= g.steps; i++ {
			point[pos] = lower[pos] + (upper[pos]-lower[pos])*float64(i)/float64(g.steps)
			walk(pos+1, point)
		}
	}
	walk(0, make([]float64, dim))
	return best, bestCost
}

func fitQuadratic(t *testing.T, peak float64, response doe.Response) *rsm.Model {
	t.Helper()
	var xs [][]float64
	var ys []float64
	for _, v := range []float64{-1, -0.5, 0, 0.5, 1} {
		xs = append(xs, []float64{v})
		ys = append(ys, 8-(v-peak)*(v-peak))
	}
	model, err := rsm.Fit(xs, ys, response, rsm.FitConfig{Degree: 2, Method: rsm.MethodBrute, Q2Limit: 0.5})
	require.NoError(t, err)
	require.True(t, model.OK)
	return model
}

func TestSearchSurfaceFindsInteriorOptimum(t *testing.T) {
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}
	model := fitQuadratic(t, 0.2, response)

	factors := []doe.Factor{{Name: "X", Type: doe.Quantitative, Min: 0, Max: 100, LowInit: 40, HighInit: 60}}
	windows := doe.Windows{"X": {Low: 40, High: 60}}

	optimum, ok := SearchSurface(map[string]*rsm.Model{"yield": model},
		[]doe.Response{response}, factors, []string{"X"}, windows,
		&gridOptimizer{steps: 40}, 1, 0.25)
	require.True(t, ok)

	// Coded peak 0.2 decodes to 52 over the [40, 60] window.
	assert.InDelta(t, 52.0, optimum.Predicted["X"], 0.5)
	assert.True(t, optimum.Converged, "interior optimum within tolerance")
	assert.True(t, optimum.ReachedLimits)
	assert.False(t, optimum.Empirical)
	assert.InDelta(t, 8.0, optimum.Responses["yield"], 0.05)
}

func TestSearchSurfaceEdgeOptimumNotConverged(t *testing.T) {
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}
	model := fitQuadratic(t, 1.0, response) // peak on the window edge

	factors := []doe.Factor{{Name: "X", Type: doe.Quantitative, Min: 0, Max: 100, LowInit: 40, HighInit: 60}}
	windows := doe.Windows{"X": {Low: 40, High: 60}}

	optimum, ok := SearchSurface(map[string]*rsm.Model{"yield": model},
		[]doe.Response{response}, factors, []string{"X"}, windows,
		&gridOptimizer{steps: 40}, 1, 0.25)
	require.True(t, ok)
	assert.False(t, optimum.Converged)
}

func TestSearchSurfaceRejectedModelFallsBack(t *testing.T) {
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}
	rejected := &rsm.Model{Response: "yield", OK: false}

	factors := []doe.Factor{{Name: "X", Type: doe.Quantitative, Min: 0, Max: 100, LowInit: 40, HighInit: 60}}
	windows := doe.Windows{"X": {Low: 40, High: 60}}

	_, ok := SearchSurface(map[string]*rsm.Model{"yield": rejected},
		[]doe.Response{response}, factors, []string{"X"}, windows,
		&gridOptimizer{steps: 10}, 1, 0.25)
	assert.False(t, ok, "rejected model must force the empirical fallback")
}

func TestWithinWindow(t *testing.T) {
	windows := doe.Windows{"X": {Low: 0, High: 10}}
	numeric := []string{"X"}

	assert.True(t, WithinWindow(map[string]float64{"X": 5}, windows, numeric, 0.25))
	assert.True(t, WithinWindow(map[string]float64{"X": 3}, windows, numeric, 0.25))
	assert.False(t, WithinWindow(map[string]float64{"X": 2}, windows, numeric, 0.25), "on the tolerance edge")
	assert.False(t, WithinWindow(map[string]float64{"X": 0.5}, windows, numeric, 0.25))
	assert.False(t, WithinWindow(map[string]float64{"X": 9.9}, windows, numeric, 0.25))
}
