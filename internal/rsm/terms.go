// Package rsm fits polynomial response-surface models to observed
// experiment results and scores their predictive power by
// cross-validation.
package rsm

import "strings"

// Term is a polynomial term: a multiset of factor indices whose
// product forms the regressor, e.g. {0, 0} = x0^2, {0, 1} = x0*x1.
type Term []int

// Eval computes the term's product for a coded factor vector.
func (t Term) Eval(x []float64) float64 {
	v := 1.0
	for _, i := range t {
		v *= x[i]
	}
	return v
}

// Label names the term for logging, e.g. "x0*x1".
func (t Term) Label(names []string) string {
	parts := make([]string, len(t))
	for i, idx := range t {
		parts[i] = names[idx]
	}
	return strings.Join(parts, "*")
}

// AllTerms enumerates every term over k factors up to the given degree:
// all combinations of factor indices with replacement, per degree.
func AllTerms(k, degree int) []Term {
	var terms []Term
	for d := 1; d <= degree; d++ {
		terms = append(terms, combinationsWithReplacement(k, d)...)
	}
	return terms
}

func combinationsWithReplacement(k, d int) []Term {
	var out []Term
	comb := make([]int, d)
	var walk func(pos, start int)
	walk = func(pos, start int) {
		if pos == d {
			t := make(Term, d)
			copy(t, comb)
			out = append(out, t)
			return
		}
		for i := start; i < k; i++ {
			comb[pos] = i
			walk(pos+1, i)
		}
	}
	walk(0, 0)
	return out
}

// expand builds the regression matrix rows for the given term subset:
// an intercept column followed by one column per term.
func expand(x [][]float64, terms []Term) [][]float64 {
	rows := make([][]float64, len(x))
	for i, xi := range x {
		row := make([]float64, 1+len(terms))
		row[0] = 1
		for j, t := range terms {
			row[j+1] = t.Eval(xi)
		}
		rows[i] = row
	}
	return rows
}
