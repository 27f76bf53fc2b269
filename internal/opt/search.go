package opt

import (
	"log/slog"

	"github.com/cwbudde/doepilot/internal/doe"
	"github.com/cwbudde/doepilot/internal/rsm"
)

// Optimum is the outcome of searching the fitted response surface.
type Optimum struct {
	// Predicted maps numeric factor names to real values. Decoded from
	// the coded search point, or copied from the best observed row when
	// the search fell back to empirical data.
	Predicted     map[string]float64
	Coded         []float64
	Score         float64
	Responses     map[string]float64 // predicted response values at the optimum
	Empirical     bool
	Converged     bool
	ReachedLimits bool
}

// SearchSurface maximizes the scalarized predicted response over the
// coded factor hull [-radius, radius]^k and decodes the winner back to
// real factor values. Returns ok=false when any response model was
// rejected, in which case the caller falls back to the empirically
// best observed row.
func SearchSurface(
	models map[string]*rsm.Model,
	responses []doe.Response,
	factors []doe.Factor,
	numeric []string,
	windows doe.Windows,
	optimizer Optimizer,
	radius float64,
	tol float64,
) (*Optimum, bool) {
	for _, r := range responses {
		m, exists := models[r.Name]
		if !exists || !m.OK {
			slog.Info("Surface search skipped, falling back to best observed row",
				"response", r.Name)
			return nil, false
		}
	}

	k := len(numeric)
	if radius <= 0 {
		radius = 1
	}
	lower := make([]float64, k)
	upper := make([]float64, k)
	for i := range lower {
		lower[i] = -radius
		upper[i] = radius
	}

	predictAll := func(x []float64) map[string]float64 {
		values := make(map[string]float64, len(responses))
		for _, r := range responses {
			values[r.Name] = models[r.Name].Predict(x)
		}
		return values
	}

	// The optimizer minimizes, the scalar score maximizes.
	eval := func(x []float64) float64 {
		score, _ := rsm.Score(predictAll(x), responses)
		return -score
	}

	coded, negScore := optimizer.Run(eval, lower, upper, k)
	coded = clip(coded, -radius, radius)

	point := doe.Decode(coded, numeric, factors, windows)
	predicted := predictAll(coded)
	_, limitsOK := rsm.Score(predicted, responses)

	opt := &Optimum{
		Predicted:     point,
		Coded:         coded,
		Score:         -negScore,
		Responses:     predicted,
		Converged:     WithinWindow(point, windows, numeric, tol),
		ReachedLimits: limitsOK,
	}
	slog.Info("Surface optimum found", "score", opt.Score, "converged", opt.Converged)
	return opt, true
}

// WithinWindow is the convergence test: the optimum's relative distance
// to each window edge, (high - x) / span, must stay strictly inside
// (tol, 1-tol) for every factor.
func WithinWindow(point map[string]float64, windows doe.Windows, numeric []string, tol float64) bool {
	for _, name := range numeric {
		w := windows[name]
		span := w.Span()
		if span <= 0 {
			continue
		}
		ratio := (w.High - point[name]) / span
		if ratio <= tol || ratio >= 1-tol {
			return false
		}
	}
	return true
}

func clip(x []float64, lo, hi float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}
