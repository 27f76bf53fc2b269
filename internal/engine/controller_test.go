package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/pipeline"
	"github.com/cwbudde/doepilot/internal/store"
)

func fptr(v float64) *float64 { return &v }

func screeningDesign1D(t *testing.T) *doe.Design {
	t.Helper()
	factors := []doe.Factor{
		{Name: "X", Type: doe.Quantitative, Min: 0, Max: 10, LowInit: 2, HighInit: 8, ScreeningLevels: 5},
	}
	d, err := doe.Generate(factors, doe.InitialWindows(factors), doe.PhaseScreening,
		doe.Options{Reduction: 1})
	require.NoError(t, err)
	return d
}

func TestScreeningWindowsRecenterAroundNeighborLevels(t *testing.T) {
	d := screeningDesign1D(t)
	// Grid is 0, 2.5, 5, 7.5, 10.

	ws := screeningWindows(d, map[string]int{"X": 2}, 0.5)
	assert.InDelta(t, 3.75, ws["X"].Low, 1e-9)
	assert.InDelta(t, 6.25, ws["X"].High, 1e-9)

	// At the grid edge the window only reaches inward.
	ws = screeningWindows(d, map[string]int{"X": 0}, 0.5)
	assert.InDelta(t, 0.0, ws["X"].Low, 1e-9)
	assert.InDelta(t, 1.25, ws["X"].High, 1e-9)
}

func TestScreeningWindowsOrdinalRoundsOutward(t *testing.T) {
	factors := []doe.Factor{
		{Name: "N", Type: doe.Ordinal, Min: 1, Max: 9, LowInit: 1, HighInit: 9, ScreeningLevels: 5},
	}
	d, err := doe.Generate(factors, doe.InitialWindows(factors), doe.PhaseScreening,
		doe.Options{Reduction: 1})
	require.NoError(t, err)
	// Grid is 1, 3, 5, 7, 9.

	ws := screeningWindows(d, map[string]int{"N": 2}, 0.5)
	assert.Equal(t, 4.0, ws["N"].Low)
	assert.Equal(t, 6.0, ws["N"].High)
}

func TestRankScreeningOrdersByScore(t *testing.T) {
	d := screeningDesign1D(t)
	responses := []doe.Response{{Name: "yield", Criterion: doe.Maximize}}

	table := pipeline.NewTable([]string{"yield"}, d.NRows())
	for i, row := range d.Rows {
		x := row.Num["X"]
		table.Rows[i].Values = map[string]float64{"yield": 10 - (x-5)*(x-5)}
	}
	// One failed row must be skipped, not ranked.
	table.Rows[0].Values = nil

	candidates, err := rankScreening(d, table, responses, 0.5)
	require.NoError(t, err)
	require.Len(t, candidates, d.NRows()-1)

	assert.Equal(t, 5.0, candidates[0].Factors["X"], "grid midpoint wins")
	for i := 1; i < len(candidates); i++ {
		assert.GreaterOrEqual(t, candidates[i-1].Score, candidates[i].Score)
	}
	assert.InDelta(t, 3.75, candidates[0].Windows["X"].Low, 1e-9)
}

func TestRankScreeningAllRowsMissing(t *testing.T) {
	d := screeningDesign1D(t)
	table := pipeline.NewTable([]string{"yield"}, d.NRows())

	_, err := rankScreening(d, table, []doe.Response{{Name: "yield", Criterion: doe.Maximize}}, 0.5)
	assert.Error(t, err)
}

func TestRecenterMovesTowardOptimumAndShrinks(t *testing.T) {
	factors := []doe.Factor{
		{Name: "X", Type: doe.Quantitative, Min: 0, Max: 20, LowInit: 0, HighInit: 10},
	}
	windows := doe.Windows{"X": {Low: 0, High: 10}}

	// Far target: the move is capped at span*step.
	out := recenter(windows, map[string]float64{"X": 9}, factors, 0.25, 0.8)
	assert.InDelta(t, 7.5, out["X"].Center(), 1e-9)
	assert.InDelta(t, 8.0, out["X"].Span(), 1e-9)

	// Near target: the center lands on it exactly.
	out = recenter(windows, map[string]float64{"X": 5.5}, factors, 0.25, 0.8)
	assert.InDelta(t, 5.5, out["X"].Center(), 1e-9)
}

func TestRecenterShiftsInsideBounds(t *testing.T) {
	factors := []doe.Factor{
		{Name: "X", Type: doe.Quantitative, Min: 0, Max: 10, LowInit: 0, HighInit: 10},
	}
	windows := doe.Windows{"X": {Low: 2, High: 10}}

	out := recenter(windows, map[string]float64{"X": 9.9}, factors, 0.25, 1.0)
	assert.LessOrEqual(t, out["X"].High, 10.0)
	assert.GreaterOrEqual(t, out["X"].Low, 0.0)
	assert.InDelta(t, 8.0, out["X"].Span(), 1e-9, "span survives the boundary shift")
}

func multiLimitResponses() []doe.Response {
	return []doe.Response{
		{Name: "yield", Criterion: doe.Maximize, LowLimit: fptr(0), Target: fptr(10)},
		{Name: "purity", Criterion: doe.Target, LowLimit: fptr(90), HighLimit: fptr(110), Target: fptr(100)},
	}
}

func resultsDesign(n int) *doe.Design {
	d := &doe.Design{
		Factors: []doe.Factor{{Name: "X", Type: doe.Quantitative, Min: 0, Max: 10}},
		Numeric: []string{"X"},
	}
	for i := 0; i < n; i++ {
		d.Rows = append(d.Rows, doe.Row{Index: i, Num: map[string]float64{"X": float64(i)}})
	}
	return d
}

func TestBestObservedNeverSelectsLimitViolatingRow(t *testing.T) {
	responses := multiLimitResponses()
	d := resultsDesign(2)

	table := pipeline.NewTable([]string{"yield", "purity"}, 2)
	table.Rows[0].Values = map[string]float64{"yield": 5, "purity": 100}
	// Better raw yield, but purity violates its hard low limit.
	table.Rows[1].Values = map[string]float64{"yield": 9.9, "purity": 80}

	best := bestObserved(d, table, nil, responses, 1, nil)
	require.NotNil(t, best)
	assert.Equal(t, 0, best.RowIndex)
}

func TestBestObservedValidationRowCanWin(t *testing.T) {
	responses := []doe.Response{{Name: "yield", Criterion: doe.Maximize}}
	d := resultsDesign(1)

	table := pipeline.NewTable([]string{"yield"}, 1)
	table.Rows[0].Values = map[string]float64{"yield": 7}

	validation := &store.BestExperiment{
		Iteration: 2, RowIndex: -1,
		Factors:   map[string]float64{"X": 4.5},
		Responses: map[string]float64{"yield": 9},
		Score:     9,
	}
	best := bestObserved(d, table, validation, responses, 2, nil)
	require.NotNil(t, best)
	assert.Equal(t, -1, best.RowIndex)
}

func TestBestObservedNilWithoutImprovement(t *testing.T) {
	responses := []doe.Response{{Name: "yield", Criterion: doe.Maximize}}
	d := resultsDesign(1)

	table := pipeline.NewTable([]string{"yield"}, 1)
	table.Rows[0].Values = map[string]float64{"yield": 7}

	prev := &store.BestExperiment{Score: 8, Responses: map[string]float64{"yield": 8}}
	assert.Nil(t, bestObserved(d, table, nil, responses, 2, prev))
}

func TestEmpiricalOptimumPrefersLimitSatisfyingRows(t *testing.T) {
	responses := multiLimitResponses()
	d := resultsDesign(2)

	table := pipeline.NewTable([]string{"yield", "purity"}, 2)
	table.Rows[0].Values = map[string]float64{"yield": 9.9, "purity": 80} // violates limits
	table.Rows[1].Values = map[string]float64{"yield": 5, "purity": 100}

	windows := doe.Windows{"X": {Low: 0, High: 10}}
	optimum, err := empiricalOptimum(d, table, responses, windows, 0.25)
	require.NoError(t, err)

	assert.True(t, optimum.Empirical)
	assert.True(t, optimum.ReachedLimits)
	assert.Equal(t, 1.0, optimum.Predicted["X"])
}

func TestRestartNextCandidate(t *testing.T) {
	state := &State{
		Phase:         PhaseOptimizing,
		ScreeningRank: 0,
		Best:          &store.BestExperiment{Score: 5},
		PrevOptimum:   map[string]float64{"X": 3},
		Screening: []store.ScreeningCandidate{
			{Windows: doe.Windows{"X": {Low: 3, High: 5}}},
			{Windows: doe.Windows{"X": {Low: 6, High: 8}}},
		},
	}

	require.True(t, restartNextCandidate(state))
	assert.Equal(t, 1, state.ScreeningRank)
	assert.Equal(t, doe.Window{Low: 6, High: 8}, state.Windows["X"])
	assert.Nil(t, state.Best, "a restarted descent has no anchor")
	assert.Nil(t, state.PrevOptimum)

	assert.False(t, restartNextCandidate(state), "candidates exhaust")
}

func TestStateRoundTripsThroughRunState(t *testing.T) {
	state := &State{
		Iteration:     3,
		Phase:         PhaseOptimizing,
		Windows:       doe.Windows{"X": {Low: 1, High: 2}},
		Best:          &store.BestExperiment{Iteration: 3, Score: 4.5},
		PrevOptimum:   map[string]float64{"X": 1.5},
		ScreeningRank: 1,
	}

	back := FromRunState(state.ToRunState())
	assert.Equal(t, state.Iteration, back.Iteration)
	assert.Equal(t, state.Phase, back.Phase)
	assert.Equal(t, state.Windows, back.Windows)
	assert.Equal(t, state.Best, back.Best)
	assert.Equal(t, state.PrevOptimum, back.PrevOptimum)
	assert.Equal(t, state.ScreeningRank, back.ScreeningRank)
}

func TestUnconvergedPathSuffix(t *testing.T) {
	assert.Equal(t, "out/optimum.unconverged.csv", unconvergedPath("out/optimum.csv"))
	assert.Equal(t, "optimum.unconverged", unconvergedPath("optimum"))
}

func TestPhaseTerminal(t *testing.T) {
	assert.False(t, PhaseScreening.Terminal())
	assert.False(t, PhaseOptimizing.Terminal())
	assert.True(t, PhaseConverged.Terminal())
	assert.True(t, PhaseStopped.Terminal())
}
