package doe

import (
	"fmt"
	"log/slog"
)

// DesignType selects the experiment geometry for the optimization phase.
type DesignType string

const (
	FullFactorial2 DesignType = "fullfactorial2levels"
	FullFactorial3 DesignType = "fullfactorial3levels"
	PlackettBurman DesignType = "plackettburman"
	BoxBehnken     DesignType = "boxbehnken"
	CCC            DesignType = "ccc"
	CCF            DesignType = "ccf"
	CCI            DesignType = "cci"
)

// Phase is the optimization phase a design is generated for.
type Phase string

const (
	PhaseScreening    Phase = "screening"
	PhaseOptimization Phase = "optimization"
)

// Options tunes design generation.
type Options struct {
	Type      DesignType
	Reduction int // GSD reduction factor; 0 = auto (one per factor)
	MaxRows   int // cap on rows after categorical crossing; 0 = 4096
}

// DefaultMaxRows bounds the categorical crossing blow-up.
const DefaultMaxRows = 4096

// Row is one experiment: concrete values for every factor.
// Index is stable and used to re-align results after execution.
type Row struct {
	Index int
	Num   map[string]float64
	Cat   map[string]string
}

// Design is an ordered experiment matrix. Row order is execution order.
type Design struct {
	Factors []Factor
	Numeric []string    // numeric factor names, in Factors order
	Coded   [][]float64 // coded levels per row for Numeric columns (optimization phase)
	Rows    []Row

	// Screening-phase bookkeeping: the discrete level grid per numeric
	// factor and each row's level indices, used to recenter windows
	// around the best screening point.
	Grid     map[string][]float64
	LevelIdx []map[string]int
}

// NRows returns the number of experiment rows.
func (d *Design) NRows() int { return len(d.Rows) }

// Factor looks up a factor definition by name.
func (d *Design) Factor(name string) (*Factor, bool) {
	for i := range d.Factors {
		if d.Factors[i].Name == name {
			return &d.Factors[i], true
		}
	}
	return nil, false
}

// RenderRow formats every factor value of row i as job scripts see it.
func (d *Design) RenderRow(i int) map[string]string {
	out := make(map[string]string)
	row := d.Rows[i]
	for idx := range d.Factors {
		f := &d.Factors[idx]
		if f.IsNumeric() {
			out[f.Name] = f.Format(row.Num[f.Name])
		} else {
			out[f.Name] = row.Cat[f.Name]
		}
	}
	return out
}

// Generate builds the experiment matrix for the given phase.
// Screening spans each factor's full range; optimization spans the
// current windows, coded to the standard [-1, 1] (or [-alpha, alpha])
// scale and decoded back to real values.
func Generate(factors []Factor, windows Windows, phase Phase, opts Options) (*Design, error) {
	for i := range factors {
		if err := factors[i].Validate(); err != nil {
			return nil, err
		}
	}
	if phase == PhaseScreening {
		return screeningDesign(factors, opts)
	}
	return optimizationDesign(factors, windows, opts)
}

// Decode maps a coded point back to real factor values over the given
// windows, with ordinal rounding and capping to absolute bounds.
func Decode(coded []float64, numeric []string, factors []Factor, windows Windows) map[string]float64 {
	out := make(map[string]float64, len(numeric))
	for i, name := range numeric {
		for j := range factors {
			if factors[j].Name != name {
				continue
			}
			w := windows[name]
			v := coded[i]*w.Span()/2.0 + w.Center()
			v = factors[j].Round(v)
			out[name] = factors[j].Clip(v)
			break
		}
	}
	return out
}

func numericNames(factors []Factor) []string {
	var names []string
	for _, f := range factors {
		if f.IsNumeric() {
			names = append(names, f.Name)
		}
	}
	return names
}

// screeningDesign builds a generalized subset design over each
// factor's full range (or declared value set).
func screeningDesign(factors []Factor, opts Options) (*Design, error) {
	type axis struct {
		factor *Factor
		grid   []float64 // numeric levels; nil for categorical
	}

	axes := make([]axis, 0, len(factors))
	counts := make([]int, 0, len(factors))
	for i := range factors {
		f := &factors[i]
		if f.IsNumeric() {
			grid, err := f.screeningGrid()
			if err != nil {
				return nil, err
			}
			axes = append(axes, axis{factor: f, grid: grid})
			counts = append(counts, len(grid))
		} else {
			axes = append(axes, axis{factor: f})
			counts = append(counts, len(f.Levels))
		}
	}

	reduction := opts.Reduction
	if reduction <= 0 {
		reduction = len(factors)
	}
	idxRows := gsd(counts, reduction)
	if len(idxRows) == 0 {
		return nil, fmt.Errorf("screening design is empty (reduction %d too aggressive)", reduction)
	}

	d := &Design{
		Factors: factors,
		Numeric: numericNames(factors),
		Grid:    make(map[string][]float64),
	}
	for _, ax := range axes {
		if ax.grid != nil {
			d.Grid[ax.factor.Name] = ax.grid
		}
	}

	for rowIdx, levels := range idxRows {
		row := Row{Index: rowIdx, Num: map[string]float64{}, Cat: map[string]string{}}
		idx := map[string]int{}
		for col, ax := range axes {
			if ax.grid != nil {
				row.Num[ax.factor.Name] = ax.grid[levels[col]]
			} else {
				row.Cat[ax.factor.Name] = ax.factor.Levels[levels[col]]
			}
			idx[ax.factor.Name] = levels[col]
		}
		d.Rows = append(d.Rows, row)
		d.LevelIdx = append(d.LevelIdx, idx)
	}

	slog.Info("Screening design generated", "rows", len(d.Rows), "reduction", reduction)
	return d, nil
}

// optimizationDesign builds a classical response-surface design over
// the current factor windows.
func optimizationDesign(factors []Factor, windows Windows, opts Options) (*Design, error) {
	if err := windows.Validate(factors); err != nil {
		return nil, err
	}

	numeric := numericNames(factors)
	k := len(numeric)
	coded, err := codedMatrix(opts.Type, k)
	if err != nil {
		return nil, err
	}

	d := &Design{
		Factors: factors,
		Numeric: numeric,
		Coded:   coded,
	}

	clipped := false
	for rowIdx, codedRow := range coded {
		row := Row{Index: rowIdx, Num: map[string]float64{}, Cat: map[string]string{}}
		for col, name := range numeric {
			f, _ := d.Factor(name)
			w := windows[name]
			v := codedRow[col]*w.Span()/2.0 + w.Center()
			v = f.Round(v)
			if v < f.Min || v > f.Max {
				clipped = true
				v = f.Clip(v)
			}
			row.Num[name] = v
		}
		d.Rows = append(d.Rows, row)
	}
	if clipped {
		slog.Warn("Design points outside factor bounds, capped to [min, max]")
	}

	if err := crossCategorical(d, opts); err != nil {
		return nil, err
	}

	slog.Info("Optimization design generated", "type", string(opts.Type), "rows", len(d.Rows))
	return d, nil
}
