package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/opt"
	"github.com/cwbudde/doepilot/internal/pipeline"
	"github.com/cwbudde/doepilot/internal/rsm"
	"github.com/cwbudde/doepilot/internal/store"
)

// rankScreening scores every observed screening row and returns the
// candidates best-first, each carrying the optimization window
// recentered around it.
func rankScreening(d *doe.Design, t *pipeline.Table, responses []doe.Response,
	spanRatio float64) ([]store.ScreeningCandidate, error) {

	var candidates []store.ScreeningCandidate
	for i := range t.Rows {
		if t.Rows[i].Missing() {
			continue
		}
		score, _ := rsm.Score(t.Rows[i].Values, responses)
		row := d.Rows[i]
		candidates = append(candidates, store.ScreeningCandidate{
			Factors:     cloneFloats(row.Num),
			Categorical: cloneStrings(row.Cat),
			Responses:   cloneFloats(t.Rows[i].Values),
			Score:       score,
			LevelIdx:    d.LevelIdx[i],
			Windows:     screeningWindows(d, d.LevelIdx[i], spanRatio),
		})
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("screening produced no usable results")
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

// screeningWindows recenters each numeric factor's window around a
// screening point. The window reaches toward the neighboring screening
// levels, scaled by spanRatio, and stays inside the factor's bounds.
func screeningWindows(d *doe.Design, levelIdx map[string]int, spanRatio float64) doe.Windows {
	if spanRatio <= 0 {
		spanRatio = 0.5
	}
	ws := make(doe.Windows)
	for _, name := range d.Numeric {
		grid := d.Grid[name]
		idx := levelIdx[name]
		center := grid[idx]

		lowNb, highNb := center, center
		if idx > 0 {
			lowNb = grid[idx-1]
		}
		if idx < len(grid)-1 {
			highNb = grid[idx+1]
		}

		f, _ := d.Factor(name)
		low := f.Clip(center - spanRatio*(center-lowNb))
		high := f.Clip(center + spanRatio*(highNb-center))
		if f.Type == doe.Ordinal {
			low = math.Floor(low)
			high = math.Ceil(high)
		}
		if high <= low {
			low = f.Clip(center - 1)
			high = f.Clip(center + 1)
		}
		ws[name] = doe.Window{Low: low, High: high}
	}
	return ws
}

// bestObserved scans one iteration's results (plus an optional
// validation row) for a row that beats the previous best. Rows that
// violate a configured hard limit are never selectable regardless of
// score. Returns nil when nothing improves.
func bestObserved(d *doe.Design, t *pipeline.Table, validation *store.BestExperiment,
	responses []doe.Response, iteration int, prev *store.BestExperiment) *store.BestExperiment {

	best := prev
	improved := false

	consider := func(cand *store.BestExperiment) {
		if !rsm.LimitsMet(cand.Responses, responses) {
			return
		}
		if best == nil || cand.Score > best.Score {
			best = cand
			improved = true
		}
	}

	for i := range t.Rows {
		if t.Rows[i].Missing() {
			continue
		}
		score, _ := rsm.Score(t.Rows[i].Values, responses)
		row := d.Rows[i]
		consider(&store.BestExperiment{
			Iteration:   iteration,
			RowIndex:    row.Index,
			Factors:     cloneFloats(row.Num),
			Categorical: cloneStrings(row.Cat),
			Responses:   cloneFloats(t.Rows[i].Values),
			Score:       score,
		})
	}
	if validation != nil {
		consider(validation)
	}

	if !improved {
		return nil
	}
	return best
}

// recenter moves each numeric factor's window toward the predicted
// optimum by at most span*step per iteration, shrinks the span by the
// shrinkage factor, and keeps the window inside the factor's bounds.
func recenter(windows doe.Windows, predicted map[string]float64,
	factors []doe.Factor, step, shrink float64) doe.Windows {

	if step <= 0 {
		step = 0.25
	}
	if shrink <= 0 || shrink > 1 {
		shrink = 1
	}

	out := make(doe.Windows, len(windows))
	for i := range factors {
		f := &factors[i]
		if !f.IsNumeric() {
			continue
		}
		w := windows[f.Name]
		span := w.Span()
		center := w.Center()

		if target, ok := predicted[f.Name]; ok {
			diff := target - center
			move := span * step
			if math.Abs(diff) < move {
				center = target
			} else {
				center += math.Copysign(move, diff)
			}
		}

		span *= shrink
		low, high := center-span/2, center+span/2
		if f.Type == doe.Ordinal {
			low = math.Floor(low)
			high = math.Ceil(high)
		}
		// Shift rather than squeeze when the window crosses a bound.
		if low < f.Min {
			high = math.Min(high+(f.Min-low), f.Max)
			low = f.Min
		}
		if high > f.Max {
			low = math.Max(low-(high-f.Max), f.Min)
			high = f.Max
		}
		out[f.Name] = doe.Window{Low: low, High: high}
	}
	return out
}

// empiricalOptimum falls back to the best observed row of the current
// iteration when no trustworthy model exists. Limit-satisfying rows win
// over violating ones; score breaks ties.
func empiricalOptimum(d *doe.Design, t *pipeline.Table, responses []doe.Response,
	windows doe.Windows, tol float64) (*opt.Optimum, error) {

	bestIdx := -1
	bestScore := math.Inf(-1)
	bestOK := false
	for i := range t.Rows {
		if t.Rows[i].Missing() {
			continue
		}
		score, ok := rsm.Score(t.Rows[i].Values, responses)
		if (ok && !bestOK) || (ok == bestOK && score > bestScore) {
			bestIdx, bestScore, bestOK = i, score, ok
		}
	}
	if bestIdx < 0 {
		return nil, fmt.Errorf("no usable results in iteration")
	}

	row := d.Rows[bestIdx]
	o := &opt.Optimum{
		Predicted:     cloneFloats(row.Num),
		Score:         bestScore,
		Responses:     cloneFloats(t.Rows[bestIdx].Values),
		Empirical:     true,
		Converged:     opt.WithinWindow(row.Num, windows, d.Numeric, tol),
		ReachedLimits: bestOK,
	}
	if len(d.Coded) > bestIdx {
		o.Coded = d.Coded[bestIdx]
	}
	return o, nil
}

func cloneFloats(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
