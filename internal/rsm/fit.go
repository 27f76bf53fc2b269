package rsm

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/doepilot/internal/doe"
)

// Method selects the term-subset search strategy.
type Method string

const (
	// MethodBrute enumerates every candidate term subset. Exact but
	// exponential in the number of terms.
	MethodBrute Method = "brute"
	// MethodGreedy adds and removes terms stepwise by marginal Q2
	// improvement. Near-linear, may miss the global best subset.
	MethodGreedy Method = "greedy"
)

// bruteTermLimit is the term count above which brute-force subset
// search is abandoned for the greedy method.
const bruteTermLimit = 16

// Model is a fitted polynomial surface for one response. Predictions
// are reported on the response's original scale.
type Model struct {
	Response  string
	Terms     []Term
	Coeffs    []float64 // intercept first, aligned with Terms after it
	Q2        float64
	Transform doe.TransformKind
	Lambda    float64
	OK        bool // Q2 met the configured limit
}

// Predict evaluates the model at a coded factor vector and maps the
// result back to the original response scale.
func (m *Model) Predict(x []float64) float64 {
	v := m.Coeffs[0]
	for i, t := range m.Terms {
		v += m.Coeffs[i+1] * t.Eval(x)
	}
	return inverseTransform(v, m.Transform, m.Lambda)
}

// LowPredictivePowerError reports a response model that failed the
// cross-validation threshold. Non-fatal: optimum search falls back to
// the empirically best observed row.
type LowPredictivePowerError struct {
	Response string
	Q2       float64
	Limit    float64
}

func (e *LowPredictivePowerError) Error() string {
	return fmt.Sprintf("model for %s rejected: Q2 %.3f below limit %.3f", e.Response, e.Q2, e.Limit)
}

// FitConfig tunes model fitting and selection.
type FitConfig struct {
	Degree  int
	Method  Method
	Q2Limit float64
	Folds   int // cross-validation folds; 0 = leave-one-out
}

// Fit builds a response-surface model for one response from coded
// design rows. Rows with missing observations must already be
// excluded. The returned model has OK=false (and a
// LowPredictivePowerError is logged) when Q2 falls below the limit.
func Fit(x [][]float64, y []float64, response doe.Response, cfg FitConfig) (*Model, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("fit %s: need matching design and response rows, got %d and %d",
			response.Name, len(x), len(y))
	}
	degree := cfg.Degree
	if degree < 1 || degree > 3 {
		return nil, fmt.Errorf("fit %s: polynomial degree must be 1-3, got %d", response.Name, degree)
	}

	z, lambda, err := applyTransform(y, response.Transform, response.Lambda)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", response.Name, err)
	}

	k := len(x[0])
	candidates := AllTerms(k, degree)

	method := cfg.Method
	if method == "" {
		method = MethodBrute
	}
	if method == MethodBrute && len(candidates) > bruteTermLimit {
		slog.Warn("Too many terms for brute-force selection, using greedy",
			"response", response.Name, "terms", len(candidates))
		method = MethodGreedy
	}

	var terms []Term
	var q2 float64
	switch method {
	case MethodBrute:
		terms, q2 = selectBrute(x, z, candidates, cfg.Folds)
	case MethodGreedy:
		terms, q2 = selectGreedy(x, z, candidates, cfg.Folds)
	default:
		return nil, fmt.Errorf("fit %s: unsupported selection method %q", response.Name, cfg.Method)
	}

	coeffs, err := leastSquares(expand(x, terms), z)
	if err != nil {
		return nil, fmt.Errorf("fit %s: %w", response.Name, err)
	}

	model := &Model{
		Response:  response.Name,
		Terms:     terms,
		Coeffs:    coeffs,
		Q2:        q2,
		Transform: response.Transform,
		Lambda:    lambda,
		OK:        q2 >= cfg.Q2Limit,
	}
	if !model.OK {
		slog.Warn("Response model rejected",
			"error", &LowPredictivePowerError{Response: response.Name, Q2: q2, Limit: cfg.Q2Limit})
	} else {
		slog.Info("Response model fitted",
			"response", response.Name, "terms", len(terms), "q2", q2)
	}
	return model, nil
}

// leastSquares solves min ||A*beta - y|| by QR factorization.
func leastSquares(rows [][]float64, y []float64) ([]float64, error) {
	m, n := len(rows), len(rows[0])
	if m < n {
		return nil, fmt.Errorf("underdetermined system: %d rows for %d coefficients", m, n)
	}
	a := mat.NewDense(m, n, nil)
	for i, row := range rows {
		a.SetRow(i, row)
	}
	b := mat.NewVecDense(m, y)

	var qr mat.QR
	qr.Factorize(a)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, b); err != nil {
		return nil, fmt.Errorf("least squares solve failed: %w", err)
	}

	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = beta.At(i, 0)
	}
	return coeffs, nil
}
