package doe

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// FactorType identifies how a factor's values behave.
type FactorType string

const (
	Quantitative FactorType = "quantitative"
	Ordinal      FactorType = "ordinal"
	Categorical  FactorType = "categorical"
)

// Spacing controls how screening levels are spread across a factor's range.
type Spacing string

const (
	SpacingLinear Spacing = "linear"
	SpacingLog    Spacing = "log"
)

// Factor describes one tunable pipeline input.
// Numeric factors (quantitative, ordinal) carry bounds and an initial
// low/high window; categorical factors carry a value set instead.
type Factor struct {
	Name            string
	Type            FactorType
	Min             float64
	Max             float64
	LowInit         float64
	HighInit        float64
	Levels          []string // categorical value set
	ScreeningLevels int      // discrete screening points, default 5
	Spacing         Spacing  // screening level spacing, default linear
}

// IsNumeric reports whether the factor participates in the coded
// response-surface geometry.
func (f *Factor) IsNumeric() bool {
	return f.Type == Quantitative || f.Type == Ordinal
}

// Round snaps a value to the factor's domain: integers for ordinal
// factors, identity otherwise.
func (f *Factor) Round(v float64) float64 {
	if f.Type == Ordinal {
		return math.Round(v)
	}
	return v
}

// Clip caps a value to the factor's absolute [min, max] bounds.
func (f *Factor) Clip(v float64) float64 {
	return math.Min(math.Max(v, f.Min), f.Max)
}

// Format renders a concrete value the way job scripts should see it.
func (f *Factor) Format(v float64) string {
	if f.Type == Ordinal {
		return strconv.FormatInt(int64(math.Round(v)), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Validate checks the factor definition itself.
func (f *Factor) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("factor name cannot be empty")
	}
	switch f.Type {
	case Quantitative, Ordinal:
		if f.Min > f.Max {
			return fmt.Errorf("factor %s: min %v exceeds max %v", f.Name, f.Min, f.Max)
		}
		if f.LowInit > f.HighInit {
			return fmt.Errorf("factor %s: low_init %v exceeds high_init %v", f.Name, f.LowInit, f.HighInit)
		}
		if f.LowInit < f.Min || f.HighInit > f.Max {
			return &FactorRangeError{
				Factor: f.Name,
				Low:    f.LowInit,
				High:   f.HighInit,
				Min:    f.Min,
				Max:    f.Max,
			}
		}
	case Categorical:
		if len(f.Levels) == 0 {
			return fmt.Errorf("factor %s: categorical factor requires a non-empty value set", f.Name)
		}
	default:
		return fmt.Errorf("factor %s: unsupported type %q", f.Name, f.Type)
	}
	return nil
}

// InitialWindow returns the declared starting low/high window.
func (f *Factor) InitialWindow() Window {
	return Window{Low: f.LowInit, High: f.HighInit}
}

// screeningGrid returns the discrete screening levels for a numeric factor.
func (f *Factor) screeningGrid() ([]float64, error) {
	if math.IsInf(f.Min, 0) || math.IsInf(f.Max, 0) {
		return nil, fmt.Errorf("factor %s: cannot screen unbounded factor", f.Name)
	}
	n := f.ScreeningLevels
	if n <= 0 {
		n = 5
	}
	if n < 2 {
		return nil, fmt.Errorf("factor %s: screening requires at least 2 levels", f.Name)
	}

	values := make([]float64, n)
	switch f.Spacing {
	case SpacingLog:
		if f.Min <= 0 {
			return nil, fmt.Errorf("factor %s: log spacing requires positive min", f.Name)
		}
		lo, hi := math.Log(f.Min), math.Log(f.Max)
		for i := range values {
			values[i] = math.Exp(lo + (hi-lo)*float64(i)/float64(n-1))
		}
	default:
		for i := range values {
			values[i] = f.Min + (f.Max-f.Min)*float64(i)/float64(n-1)
		}
	}

	if f.Type == Ordinal {
		seen := map[float64]bool{}
		rounded := values[:0]
		for _, v := range values {
			r := math.Round(v)
			if !seen[r] {
				seen[r] = true
				rounded = append(rounded, r)
			}
		}
		values = rounded
		sort.Float64s(values)
		if len(values) < 2 {
			return nil, fmt.Errorf("factor %s: screening grid collapsed to fewer than 2 distinct levels", f.Name)
		}
	}
	return values, nil
}

// Window is the current low/high exploration window of a numeric factor.
// Windows mutate between iterations; Factor definitions never do.
type Window struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Span is the distance between the window's high and low.
func (w Window) Span() float64 { return w.High - w.Low }

// Center is the midpoint of the window.
func (w Window) Center() float64 { return (w.High + w.Low) / 2.0 }

// Windows maps factor name to its current exploration window.
type Windows map[string]Window

// Clone returns an independent copy.
func (ws Windows) Clone() Windows {
	out := make(Windows, len(ws))
	for k, v := range ws {
		out[k] = v
	}
	return out
}

// Validate checks every window against its factor's absolute bounds.
// A window outside [min, max] fails fast before any execution.
func (ws Windows) Validate(factors []Factor) error {
	for _, f := range factors {
		if !f.IsNumeric() {
			continue
		}
		w, ok := ws[f.Name]
		if !ok {
			return fmt.Errorf("no window for factor %s", f.Name)
		}
		if w.Low > w.High || w.Low < f.Min || w.High > f.Max {
			return &FactorRangeError{
				Factor: f.Name,
				Low:    w.Low,
				High:   w.High,
				Min:    f.Min,
				Max:    f.Max,
			}
		}
	}
	return nil
}

// InitialWindows builds the starting window map from factor definitions.
func InitialWindows(factors []Factor) Windows {
	ws := make(Windows)
	for _, f := range factors {
		if f.IsNumeric() {
			ws[f.Name] = f.InitialWindow()
		}
	}
	return ws
}
