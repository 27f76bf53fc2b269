package doe

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoFactors() []Factor {
	return []Factor{
		{Name: "TEMPERATURE", Type: Quantitative, Min: 0, Max: 100, LowInit: 30, HighInit: 70},
		{Name: "PH", Type: Quantitative, Min: 2, Max: 12, LowInit: 5, HighInit: 9},
	}
}

func TestScreeningDesignSpansFullRange(t *testing.T) {
	factors := []Factor{
		{Name: "TEMPERATURE", Type: Quantitative, Min: 0, Max: 100, LowInit: 30, HighInit: 70, ScreeningLevels: 5},
		{Name: "THREADS", Type: Ordinal, Min: 1, Max: 16, LowInit: 2, HighInit: 8, ScreeningLevels: 4},
		{Name: "ENZYME", Type: Categorical, Levels: []string{"trypsin", "pepsin"}},
	}

	d, err := Generate(factors, InitialWindows(factors), PhaseScreening, Options{})
	require.NoError(t, err)
	require.NotZero(t, d.NRows())

	for i, row := range d.Rows {
		assert.GreaterOrEqual(t, row.Num["TEMPERATURE"], 0.0, "row %d", i)
		assert.LessOrEqual(t, row.Num["TEMPERATURE"], 100.0, "row %d", i)
		assert.GreaterOrEqual(t, row.Num["THREADS"], 1.0, "row %d", i)
		assert.LessOrEqual(t, row.Num["THREADS"], 16.0, "row %d", i)
		assert.Equal(t, row.Num["THREADS"], math.Round(row.Num["THREADS"]), "ordinal must be integral")
		assert.Contains(t, []string{"trypsin", "pepsin"}, row.Cat["ENZYME"])
	}

	// Screening bookkeeping must cover every numeric factor.
	require.Len(t, d.LevelIdx, d.NRows())
	assert.Contains(t, d.Grid, "TEMPERATURE")
	assert.Contains(t, d.Grid, "THREADS")
}

func TestScreeningReductionShrinksDesign(t *testing.T) {
	factors := twoFactors()
	factors[0].ScreeningLevels = 5
	factors[1].ScreeningLevels = 5

	full, err := Generate(factors, InitialWindows(factors), PhaseScreening, Options{Reduction: 1})
	require.NoError(t, err)
	reduced, err := Generate(factors, InitialWindows(factors), PhaseScreening, Options{Reduction: 2})
	require.NoError(t, err)

	assert.Equal(t, 25, full.NRows())
	assert.Equal(t, 13, reduced.NRows()) // level-index sums divisible by 2
}

func TestScreeningRejectsUnboundedFactor(t *testing.T) {
	factors := []Factor{
		{Name: "X", Type: Quantitative, Min: 0, Max: math.Inf(1), LowInit: 1, HighInit: 2},
		{Name: "Y", Type: Quantitative, Min: 0, Max: 10, LowInit: 1, HighInit: 2},
	}
	_, err := Generate(factors, InitialWindows(factors), PhaseScreening, Options{})
	assert.Error(t, err)
}

func TestOptimizationDesignRowCounts(t *testing.T) {
	factors := twoFactors()
	windows := InitialWindows(factors)

	cases := []struct {
		designType DesignType
		rows       int
	}{
		{FullFactorial2, 4},
		{FullFactorial3, 9},
		{BoxBehnken, 5}, // degenerates to 2^2 plus center
		{CCF, 9},
		{CCC, 9},
		{CCI, 9},
		{PlackettBurman, 4},
	}
	for _, tc := range cases {
		d, err := Generate(factors, windows, PhaseOptimization, Options{Type: tc.designType})
		require.NoError(t, err, "%s", tc.designType)
		assert.Equal(t, tc.rows, d.NRows(), "%s", tc.designType)
		assert.Len(t, d.Coded, d.NRows(), "%s", tc.designType)
	}
}

func TestOptimizationDesignDecodesWindow(t *testing.T) {
	factors := twoFactors()
	windows := Windows{
		"TEMPERATURE": {Low: 40, High: 60},
		"PH":          {Low: 6, High: 8},
	}

	d, err := Generate(factors, windows, PhaseOptimization, Options{Type: FullFactorial2})
	require.NoError(t, err)

	for _, row := range d.Rows {
		assert.GreaterOrEqual(t, row.Num["TEMPERATURE"], 40.0)
		assert.LessOrEqual(t, row.Num["TEMPERATURE"], 60.0)
		assert.GreaterOrEqual(t, row.Num["PH"], 6.0)
		assert.LessOrEqual(t, row.Num["PH"], 8.0)
	}
	// Corners of the coded cube land on the window edges.
	assert.Equal(t, 40.0, d.Rows[0].Num["TEMPERATURE"])
	assert.Equal(t, 60.0, d.Rows[3].Num["TEMPERATURE"])
}

func TestCircumscribedStarPointsClipToBounds(t *testing.T) {
	factors := []Factor{
		{Name: "A", Type: Quantitative, Min: 0, Max: 10, LowInit: 0, HighInit: 10},
		{Name: "B", Type: Quantitative, Min: 0, Max: 10, LowInit: 0, HighInit: 10},
	}
	windows := InitialWindows(factors)

	// CCC star points sit at alpha = sqrt(2) > 1 and would leave the
	// window; they must be capped to the factor bounds.
	d, err := Generate(factors, windows, PhaseOptimization, Options{Type: CCC})
	require.NoError(t, err)
	for _, row := range d.Rows {
		assert.GreaterOrEqual(t, row.Num["A"], 0.0)
		assert.LessOrEqual(t, row.Num["A"], 10.0)
	}
}

func TestWindowOutsideBoundsFailsFast(t *testing.T) {
	factors := twoFactors()
	windows := Windows{
		"TEMPERATURE": {Low: -10, High: 50}, // below min
		"PH":          {Low: 6, High: 8},
	}

	_, err := Generate(factors, windows, PhaseOptimization, Options{Type: FullFactorial2})
	var rangeErr *FactorRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "TEMPERATURE", rangeErr.Factor)
}

func TestCategoricalCrossingMultipliesRows(t *testing.T) {
	factors := append(twoFactors(),
		Factor{Name: "ENZYME", Type: Categorical, Levels: []string{"a", "b", "c"}})
	windows := InitialWindows(factors)

	d, err := Generate(factors, windows, PhaseOptimization, Options{Type: FullFactorial2})
	require.NoError(t, err)
	assert.Equal(t, 12, d.NRows()) // 4 numeric rows x 3 levels

	seen := map[string]int{}
	for i, row := range d.Rows {
		assert.Equal(t, i, row.Index)
		seen[row.Cat["ENZYME"]]++
	}
	assert.Equal(t, map[string]int{"a": 4, "b": 4, "c": 4}, seen)
}

func TestCategoricalCrossingRespectsRowLimit(t *testing.T) {
	factors := append(twoFactors(),
		Factor{Name: "ENZYME", Type: Categorical, Levels: []string{"a", "b", "c"}})
	windows := InitialWindows(factors)

	_, err := Generate(factors, windows, PhaseOptimization,
		Options{Type: FullFactorial2, MaxRows: 10})
	assert.Error(t, err)
}

func TestPlackettBurmanGeometry(t *testing.T) {
	rows, err := pbDesign(7)
	require.NoError(t, err)
	require.Len(t, rows, 8)

	// Last run is all-low; every column is balanced.
	for _, v := range rows[7] {
		assert.Equal(t, -1.0, v)
	}
	for j := 0; j < 7; j++ {
		sum := 0.0
		for i := range rows {
			sum += rows[i][j]
		}
		assert.Zero(t, sum, "column %d must balance", j)
	}
}

func TestUnsupportedDesignType(t *testing.T) {
	factors := twoFactors()
	_, err := Generate(factors, InitialWindows(factors), PhaseOptimization,
		Options{Type: DesignType("latin-hypercube")})
	var unsupported *UnsupportedDesignError
	assert.True(t, errors.As(err, &unsupported))
}

func TestDecodeRoundsAndClips(t *testing.T) {
	factors := []Factor{
		{Name: "THREADS", Type: Ordinal, Min: 1, Max: 8, LowInit: 2, HighInit: 6},
	}
	windows := Windows{"THREADS": {Low: 2, High: 7}}

	point := Decode([]float64{0.5}, []string{"THREADS"}, factors, windows)
	assert.Equal(t, 6.0, point["THREADS"]) // 5.75 rounded

	point = Decode([]float64{2}, []string{"THREADS"}, factors, windows)
	assert.Equal(t, 8.0, point["THREADS"]) // clipped to max
}
