package rsm

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"github.com/cwbudde/doepilot/internal/doe"
)

// applyTransform maps observed response values onto the fitting scale.
// For Box-Cox with no fixed lambda the maximum-likelihood lambda is
// estimated over a coarse grid. Returns the transformed values and the
// lambda actually used (meaningful for Box-Cox only).
func applyTransform(y []float64, kind doe.TransformKind, lambda *float64) ([]float64, float64, error) {
	switch kind {
	case doe.TransformNone:
		out := make([]float64, len(y))
		copy(out, y)
		return out, 0, nil
	case doe.TransformLog:
		out := make([]float64, len(y))
		for i, v := range y {
			if v <= 0 {
				return nil, 0, fmt.Errorf("log transform requires positive values, got %v", v)
			}
			out[i] = math.Log(v)
		}
		return out, 0, nil
	case doe.TransformBoxCox:
		for _, v := range y {
			if v <= 0 {
				return nil, 0, fmt.Errorf("box-cox transform requires positive values, got %v", v)
			}
		}
		l := 0.0
		if lambda != nil {
			l = *lambda
		} else {
			l = estimateLambda(y)
		}
		out := make([]float64, len(y))
		for i, v := range y {
			out[i] = boxCox(v, l)
		}
		return out, l, nil
	default:
		return nil, 0, fmt.Errorf("unsupported transform %q", kind)
	}
}

func boxCox(v, lambda float64) float64 {
	if lambda == 0 {
		return math.Log(v)
	}
	return (math.Pow(v, lambda) - 1) / lambda
}

// inverseTransform maps a prediction back to the original scale.
func inverseTransform(v float64, kind doe.TransformKind, lambda float64) float64 {
	switch kind {
	case doe.TransformLog:
		return math.Exp(v)
	case doe.TransformBoxCox:
		if lambda == 0 {
			return math.Exp(v)
		}
		base := lambda*v + 1
		if base <= 0 {
			// Outside the transform's image; saturate near zero.
			return 0
		}
		return math.Pow(base, 1/lambda)
	default:
		return v
	}
}

// estimateLambda picks the Box-Cox lambda maximizing the profile
// log-likelihood over a [-2, 2] grid.
func estimateLambda(y []float64) float64 {
	logSum := 0.0
	for _, v := range y {
		logSum += math.Log(v)
	}
	n := float64(len(y))

	best, bestLL := 0.0, math.Inf(-1)
	for l := -2.0; l <= 2.0+1e-9; l += 0.1 {
		z := make([]float64, len(y))
		for i, v := range y {
			z[i] = boxCox(v, l)
		}
		variance, err := stats.PopulationVariance(z)
		if err != nil || variance <= 0 {
			continue
		}
		ll := -n/2*math.Log(variance) + (l-1)*logSum
		if ll > bestLL {
			bestLL = ll
			best = l
		}
	}
	return best
}
