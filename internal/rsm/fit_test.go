package rsm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/doepilot/internal/doe"
)

// quadratic surface with a known interior maximum.
func quadratic1D(x float64) float64 { return 5 - (x-0.2)*(x-0.2) }

func grid1D() ([][]float64, []float64) {
	var xs [][]float64
	var ys []float64
	for _, v := range []float64{-1, -0.5, 0, 0.5, 1} {
		xs = append(xs, []float64{v})
		ys = append(ys, quadratic1D(v))
	}
	return xs, ys
}

func TestFitRecoversNoiselessQuadratic(t *testing.T) {
	xs, ys := grid1D()
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}

	model, err := Fit(xs, ys, response, FitConfig{Degree: 2, Method: MethodBrute, Q2Limit: 0.9})
	require.NoError(t, err)

	assert.True(t, model.OK, "noiseless quadratic must clear the Q2 limit")
	assert.Greater(t, model.Q2, 0.9)

	// Predictions reproduce the surface, including the analytic maximum.
	for _, v := range []float64{-0.8, 0.2, 0.7} {
		assert.InDelta(t, quadratic1D(v), model.Predict([]float64{v}), 1e-6)
	}
}

func TestFitTwoFactorsBruteFindsTrueTerms(t *testing.T) {
	var xs [][]float64
	var ys []float64
	for _, a := range []float64{-1, 0, 1} {
		for _, b := range []float64{-1, 0, 1} {
			xs = append(xs, []float64{a, b})
			ys = append(ys, 10-(a-0.3)*(a-0.3)-(b+0.2)*(b+0.2))
		}
	}
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}

	model, err := Fit(xs, ys, response, FitConfig{Degree: 2, Method: MethodBrute, Q2Limit: 0.5})
	require.NoError(t, err)
	require.True(t, model.OK)

	assert.InDelta(t, 10.0-0.09-0.04, model.Predict([]float64{0, 0}), 1e-6)
	assert.InDelta(t, 10.0, model.Predict([]float64{0.3, -0.2}), 1e-6)
}

func TestFitGreedyMatchesBruteOnSimpleSurface(t *testing.T) {
	xs, ys := grid1D()
	response := doe.Response{Name: "yield", Criterion: doe.Maximize}

	brute, err := Fit(xs, ys, response, FitConfig{Degree: 2, Method: MethodBrute, Q2Limit: 0.5})
	require.NoError(t, err)
	greedy, err := Fit(xs, ys, response, FitConfig{Degree: 2, Method: MethodGreedy, Q2Limit: 0.5})
	require.NoError(t, err)

	assert.InDelta(t, brute.Predict([]float64{0.2}), greedy.Predict([]float64{0.2}), 1e-6)
}

func TestFitRejectsLowPredictivePower(t *testing.T) {
	// Alternating noise carries no polynomial signal at degree 1.
	xs := [][]float64{{-1}, {-0.5}, {0}, {0.5}, {1}, {0.75}, {-0.75}}
	ys := []float64{3, -3, 3, -3, 3, -3, 3}
	response := doe.Response{Name: "noise", Criterion: doe.Maximize}

	model, err := Fit(xs, ys, response, FitConfig{Degree: 1, Method: MethodBrute, Q2Limit: 0.5})
	require.NoError(t, err)
	assert.False(t, model.OK)
	assert.Less(t, model.Q2, 0.5)
}

func TestFitLogTransformRoundTrips(t *testing.T) {
	// y = exp(2 + x) is linear after the log transform.
	var xs [][]float64
	var ys []float64
	for _, v := range []float64{-1, -0.5, 0, 0.5, 1} {
		xs = append(xs, []float64{v})
		ys = append(ys, math.Exp(2+v))
	}
	response := doe.Response{Name: "abundance", Criterion: doe.Maximize, Transform: doe.TransformLog}

	model, err := Fit(xs, ys, response, FitConfig{Degree: 1, Method: MethodBrute, Q2Limit: 0.9})
	require.NoError(t, err)
	require.True(t, model.OK)

	// Predictions come back on the original scale.
	assert.InDelta(t, math.Exp(2.25), model.Predict([]float64{0.25}), 1e-6*math.Exp(2.25))
}

func TestFitRejectsMismatchedRows(t *testing.T) {
	_, err := Fit([][]float64{{1}}, []float64{1, 2},
		doe.Response{Name: "r", Criterion: doe.Maximize}, FitConfig{Degree: 2})
	assert.Error(t, err)
}

func TestAllTermsCounts(t *testing.T) {
	// k=2, degree 2: x0, x1, x0^2, x0*x1, x1^2.
	assert.Len(t, AllTerms(2, 2), 5)
	// k=3, degree 1: the three linear terms.
	assert.Len(t, AllTerms(3, 1), 3)
	// k=2, degree 3 adds the four cubic multisets.
	assert.Len(t, AllTerms(2, 3), 9)
}

func TestQ2PerfectAndFoldAssignment(t *testing.T) {
	xs, ys := grid1D()
	terms := []Term{{0}, {0, 0}}

	assert.InDelta(t, 1.0, q2(xs, ys, terms, 0), 1e-9, "LOO on a noiseless fit")

	// k-fold with training splits that stay overdetermined.
	var xs9 [][]float64
	var ys9 []float64
	for i := 0; i <= 8; i++ {
		v := -1 + float64(i)*0.25
		xs9 = append(xs9, []float64{v})
		ys9 = append(ys9, quadratic1D(v))
	}
	assert.InDelta(t, 1.0, q2(xs9, ys9, terms, 3), 1e-9, "3-fold on a noiseless fit")
}
