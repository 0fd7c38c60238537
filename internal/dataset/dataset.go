// Package dataset holds the immutable tabular input consumed by every analysis.
package dataset

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Kind is the type tag of a column.
type Kind int

const (
	Numeric Kind = iota + 1
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Column is a named, homogeneous vector. Missing cells are flagged in Missing;
// their slot in Numbers is NaN and their slot in Labels is "".
type Column struct {
	Name    string
	Kind    Kind
	Numbers []float64
	Labels  []string
	Missing []bool
}

// NewNumericColumn builds a numeric column; NaN entries are treated as missing.
func NewNumericColumn(name string, values []float64) Column {
	nums := make([]float64, len(values))
	miss := make([]bool, len(values))
	for i, v := range values {
		nums[i] = v
		if math.IsNaN(v) {
			miss[i] = true
		}
	}
	return Column{Name: name, Kind: Numeric, Numbers: nums, Missing: miss}
}

// NewCategoricalColumn builds a categorical column; empty labels are missing.
func NewCategoricalColumn(name string, values []string) Column {
	labels := make([]string, len(values))
	miss := make([]bool, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		labels[i] = v
		if v == "" {
			miss[i] = true
		}
	}
	return Column{Name: name, Kind: Categorical, Labels: labels, Missing: miss}
}

// Len returns the row count of the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Numbers)
	}
	return len(c.Labels)
}

// Present returns the number of non-missing cells.
func (c *Column) Present() int {
	n := 0
	for _, m := range c.Missing {
		if !m {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns. It is never mutated after
// NewTable returns, so it may be shared by concurrent analyses.
type Table struct {
	Name  string
	cols  []Column
	index map[string]int
	rows  int
}

// NewTable validates column names and lengths.
func NewTable(name string, cols ...Column) (*Table, error) {
	t := &Table{Name: name, index: make(map[string]int, len(cols))}
	for i, c := range cols {
		key := strings.TrimSpace(c.Name)
		if key == "" {
			return nil, staterr.Input(staterr.CodeEmptySelection, "dataset.NewTable", "column %d has no name", i+1)
		}
		if _, dup := t.index[key]; dup {
			return nil, staterr.Input(staterr.CodeInvalidOption, "dataset.NewTable", "duplicate column name %q", key)
		}
		if i == 0 {
			t.rows = c.Len()
		} else if c.Len() != t.rows {
			return nil, staterr.Input(staterr.CodeLengthMismatch, "dataset.NewTable",
				"column %q has %d rows, expected %d", key, c.Len(), t.rows)
		}
		if len(c.Missing) != c.Len() {
			return nil, staterr.Input(staterr.CodeLengthMismatch, "dataset.NewTable",
				"column %q missing mask has %d entries, expected %d", key, len(c.Missing), c.Len())
		}
		c.Name = key
		t.index[key] = i
		t.cols = append(t.cols, c)
	}
	return t, nil
}

// Rows returns the number of rows.
func (t *Table) Rows() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Names returns column names in order.
func (t *Table) Names() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Columns returns the columns in order. Callers must not modify them.
func (t *Table) Columns() []Column { return t.cols }

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, error) {
	i, ok := t.index[strings.TrimSpace(name)]
	if !ok {
		return nil, staterr.Input(staterr.CodeUnknownColumn, "dataset.Column", "no column named %q", name)
	}
	return &t.cols[i], nil
}

// KindOf returns the type tag of a named column.
func (t *Table) KindOf(name string) (Kind, error) {
	c, err := t.Column(name)
	if err != nil {
		return 0, err
	}
	return c.Kind, nil
}

// NumericNames lists numeric columns in order.
func (t *Table) NumericNames() []string {
	var out []string
	for _, c := range t.cols {
		if c.Kind == Numeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Value returns the cell at (column, row) as float64 or string.
// Missing cells return nil.
func (t *Table) Value(name string, row int) (any, error) {
	c, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= t.rows {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, "dataset.Value", "row %d out of range [0,%d)", row, t.rows)
	}
	if c.Missing[row] {
		return nil, nil
	}
	if c.Kind == Numeric {
		return c.Numbers[row], nil
	}
	return c.Labels[row], nil
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%d rows × %d columns)", t.Name, t.rows, len(t.cols))
}
