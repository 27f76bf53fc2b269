package rsm

import "math"

// selectBrute enumerates every non-empty subset of the candidate terms
// and keeps the one with the highest cross-validated Q2.
func selectBrute(x [][]float64, y []float64, candidates []Term, folds int) ([]Term, float64) {
	bestQ2 := math.Inf(-1)
	var best []Term

	total := 1 << len(candidates)
	for mask := 1; mask < total; mask++ {
		var subset []Term
		for i, t := range candidates {
			if mask>>i&1 == 1 {
				subset = append(subset, t)
			}
		}
		// Each training split must stay overdetermined.
		if len(subset)+1 > len(x)-1 {
			continue
		}
		score := q2(x, y, subset, folds)
		if score > bestQ2 {
			bestQ2 = score
			best = subset
		}
	}
	if best == nil {
		// Nothing fittable; fall back to the first candidate alone.
		best = candidates[:1]
		bestQ2 = q2(x, y, best, folds)
	}
	return best, bestQ2
}

// selectGreedy grows the term subset stepwise: repeatedly add the
// unused term with the best marginal Q2 improvement, then try dropping
// terms that no longer pay for themselves, until neither move helps.
func selectGreedy(x [][]float64, y []float64, candidates []Term, folds int) ([]Term, float64) {
	used := make([]bool, len(candidates))
	var selected []Term
	bestQ2 := math.Inf(-1)

	for {
		improved := false

		// Forward step.
		addIdx := -1
		addQ2 := bestQ2
		for i, t := range candidates {
			if used[i] {
				continue
			}
			trial := append(append([]Term{}, selected...), t)
			if len(trial)+1 > len(x)-1 {
				continue
			}
			if score := q2(x, y, trial, folds); score > addQ2 {
				addQ2 = score
				addIdx = i
			}
		}
		if addIdx >= 0 {
			used[addIdx] = true
			selected = append(selected, candidates[addIdx])
			bestQ2 = addQ2
			improved = true
		}

		// Backward step.
		if len(selected) > 1 {
			dropIdx := -1
			dropQ2 := bestQ2
			for i := range selected {
				trial := append(append([]Term{}, selected[:i]...), selected[i+1:]...)
				if score := q2(x, y, trial, folds); score > dropQ2 {
					dropQ2 = score
					dropIdx = i
				}
			}
			if dropIdx >= 0 {
				t := selected[dropIdx]
				for i, c := range candidates {
					if used[i] && sameTerm(c, t) {
						used[i] = false
						break
					}
				}
				selected = append(selected[:dropIdx], selected[dropIdx+1:]...)
				bestQ2 = dropQ2
				improved = true
			}
		}

		if !improved {
			break
		}
	}

	if len(selected) == 0 {
		selected = candidates[:1]
		bestQ2 = q2(x, y, selected, folds)
	}
	return selected, bestQ2
}

func sameTerm(a, b Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
