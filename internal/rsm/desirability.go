package rsm

import (
	"math"

	"github.com/cwbudde/doepilot/internal/doe"
)

// Desirability builds a Derringer-Suich desirability function for a
// response: observed values map into [0, 1], with 0 outside the hard
// limits. See Derringer & Suich, Journal of Quality Technology 12
// (1980) 214-219.
func Desirability(r *doe.Response) func(float64) float64 {
	s := r.Priority
	if s <= 0 {
		s = 1
	}

	switch r.Criterion {
	case doe.Target:
		l, u := *r.LowLimit, *r.HighLimit
		t := (u + l) / 2
		if r.Target != nil {
			t = *r.Target
		}
		return func(y float64) float64 {
			switch {
			case y < l || y > u:
				return 0
			case y <= t:
				return math.Pow((y-l)/(t-l), s)
			default:
				return math.Pow((y-u)/(t-u), s)
			}
		}
	case doe.Maximize:
		l, t := *r.LowLimit, *r.Target
		return func(y float64) float64 {
			switch {
			case y < l:
				return 0
			case y > t:
				return 1
			default:
				return math.Pow((y-l)/(t-l), s)
			}
		}
	default: // doe.Minimize
		u, t := *r.HighLimit, *r.Target
		return func(y float64) float64 {
			switch {
			case y < t:
				return 1
			case y > u:
				return 0
			default:
				return math.Pow((y-u)/(t-u), s)
			}
		}
	}
}

// Score scalarizes one experiment's response values. A single response
// is scored raw against its criterion; several responses combine via
// the geometric mean of their desirabilities. The second return value
// reports whether every configured hard limit is satisfied; callers
// must never accept a limit-violating row as a new best regardless of
// its score.
func Score(values map[string]float64, responses []doe.Response) (float64, bool) {
	ok := LimitsMet(values, responses)

	if len(responses) == 1 {
		r := responses[0]
		y := values[r.Name]
		switch r.Criterion {
		case doe.Minimize:
			return -y, ok
		case doe.Target:
			t := 0.0
			if r.Target != nil {
				t = *r.Target
			} else if r.LowLimit != nil && r.HighLimit != nil {
				t = (*r.LowLimit + *r.HighLimit) / 2
			}
			return -math.Abs(y - t), ok
		default:
			return y, ok
		}
	}

	product := 1.0
	for i := range responses {
		d := Desirability(&responses[i])(values[responses[i].Name])
		product *= d
	}
	if product <= 0 {
		return 0, ok
	}
	return math.Pow(product, 1/float64(len(responses))), ok
}

// LimitsMet checks every configured low/high limit.
func LimitsMet(values map[string]float64, responses []doe.Response) bool {
	for i := range responses {
		r := &responses[i]
		y, present := values[r.Name]
		if !present {
			if r.HasLimits() {
				return false
			}
			continue
		}
		if r.LowLimit != nil && y < *r.LowLimit {
			return false
		}
		if r.HighLimit != nil && y > *r.HighLimit {
			return false
		}
	}
	return true
}
