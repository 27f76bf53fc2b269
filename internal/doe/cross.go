package doe

import "fmt"

// crossCategorical expands an optimization design by crossing every
// combination of categorical levels with the coded numeric geometry.
// Categorical factors are excluded from the coded response-surface
// space; the design size multiplies by the product of level counts,
// so the result is bounded by Options.MaxRows.
func crossCategorical(d *Design, opts Options) error {
	var cats []*Factor
	for i := range d.Factors {
		if !d.Factors[i].IsNumeric() {
			cats = append(cats, &d.Factors[i])
		}
	}
	if len(cats) == 0 {
		return nil
	}

	combos := [][]string{{}}
	for _, f := range cats {
		var next [][]string
		for _, combo := range combos {
			for _, level := range f.Levels {
				extended := append(append([]string{}, combo...), level)
				next = append(next, extended)
			}
		}
		combos = next
	}

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if len(d.Rows)*len(combos) > maxRows {
		return fmt.Errorf("categorical crossing yields %d rows, exceeding limit %d",
			len(d.Rows)*len(combos), maxRows)
	}

	var rows []Row
	var coded [][]float64
	for _, combo := range combos {
		for i, base := range d.Rows {
			row := Row{
				Index: len(rows),
				Num:   make(map[string]float64, len(base.Num)),
				Cat:   make(map[string]string, len(cats)),
			}
			for k, v := range base.Num {
				row.Num[k] = v
			}
			for ci, f := range cats {
				row.Cat[f.Name] = combo[ci]
			}
			rows = append(rows, row)
			coded = append(coded, d.Coded[i])
		}
	}
	d.Rows = rows
	d.Coded = coded
	return nil
}
