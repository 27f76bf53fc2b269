package rsm

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// q2 computes cross-validated predictive power for a term subset:
// 1 - PRESS/TSS over held-out predictions. folds <= 0 or folds >= n
// means leave-one-out. Returns -Inf when the subset cannot be fitted
// on the training splits.
func q2(x [][]float64, y []float64, terms []Term, folds int) float64 {
	n := len(x)
	if folds <= 0 || folds > n {
		folds = n
	}

	mean := floats.Sum(y) / float64(n)
	tss := 0.0
	for _, v := range y {
		tss += (v - mean) * (v - mean)
	}
	if tss == 0 {
		return 0
	}

	press := 0.0
	for fold := 0; fold < folds; fold++ {
		var trainX [][]float64
		var trainY []float64
		var testX [][]float64
		var testY []float64
		for i := range x {
			if i%folds == fold {
				testX = append(testX, x[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(testX) == 0 {
			continue
		}

		coeffs, err := leastSquares(expand(trainX, terms), trainY)
		if err != nil {
			return math.Inf(-1)
		}
		for i, xi := range testX {
			pred := coeffs[0]
			for j, t := range terms {
				pred += coeffs[j+1] * t.Eval(xi)
			}
			press += (testY[i] - pred) * (testY[i] - pred)
		}
	}
	return 1 - press/tss
}
