package dataset

import (
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Frame is the complete-case extract of a Table over a chosen set of
// columns: only rows where every chosen column is present survive.
type Frame struct {
	Numeric     map[string][]float64
	Categorical map[string][]string
	Rows        int
	// Dropped counts rows removed because a chosen cell was missing.
	Dropped int
}

// Complete extracts the named numeric and categorical columns, dropping any
// row with a missing cell in one of them. It fails with an input error on an
// empty selection, an unknown column, or a column of the wrong type.
func (t *Table) Complete(numeric, categorical []string) (*Frame, error) {
	const op = "dataset.Complete"
	if len(numeric)+len(categorical) == 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "no columns selected")
	}
	type pick struct {
		col  *Column
		want Kind
	}
	picks := make([]pick, 0, len(numeric)+len(categorical))
	add := func(names []string, want Kind) error {
		for _, name := range names {
			if strings.TrimSpace(name) == "" {
				return staterr.Input(staterr.CodeEmptySelection, op, "empty column name in selection")
			}
			c, err := t.Column(name)
			if err != nil {
				return err
			}
			if c.Kind != want {
				return staterr.Input(staterr.CodeWrongColumnType, op, "column %q is %s, %s required", c.Name, c.Kind, want)
			}
			picks = append(picks, pick{col: c, want: want})
		}
		return nil
	}
	if err := add(numeric, Numeric); err != nil {
		return nil, err
	}
	if err := add(categorical, Categorical); err != nil {
		return nil, err
	}

	keep := make([]int, 0, t.rows)
	for r := 0; r < t.rows; r++ {
		ok := true
		for _, p := range picks {
			if p.col.Missing[r] {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, r)
		}
	}

	f := &Frame{
		Numeric:     make(map[string][]float64, len(numeric)),
		Categorical: make(map[string][]string, len(categorical)),
		Rows:        len(keep),
		Dropped:     t.rows - len(keep),
	}
	for _, p := range picks {
		if p.want == Numeric {
			if _, seen := f.Numeric[p.col.Name]; seen {
				continue
			}
			v := make([]float64, len(keep))
			for i, r := range keep {
				v[i] = p.col.Numbers[r]
			}
			f.Numeric[p.col.Name] = v
			continue
		}
		if _, seen := f.Categorical[p.col.Name]; seen {
			continue
		}
		v := make([]string, len(keep))
		for i, r := range keep {
			v[i] = p.col.Labels[r]
		}
		f.Categorical[p.col.Name] = v
	}
	return f, nil
}

// Present returns the non-missing values of a single numeric column,
// independent of any other column.
func (t *Table) Present(name string) ([]float64, error) {
	f, err := t.Complete([]string{name}, nil)
	if err != nil {
		return nil, err
	}
	c, _ := t.Column(name)
	return f.Numeric[c.Name], nil
}
