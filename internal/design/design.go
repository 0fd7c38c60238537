// Package design turns numeric and categorical columns into linear-model
// design matrices with reference-level dummy coding.
package design

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// InterceptName labels the all-ones column.
const InterceptName = "(Intercept)"

// Block is a named group of equally long columns contributed to a design.
type Block struct {
	Name    string
	Columns [][]float64
	Labels  []string
	// Levels lists every observed level of a factor, reference first.
	// Empty for numeric blocks.
	Levels []string
}

// Width returns the number of columns in the block.
func (b *Block) Width() int { return len(b.Columns) }

// Matrix is an n×p design with one name per column.
type Matrix struct {
	X     *mat.Dense
	Names []string
}

// Dims returns (rows, columns).
func (m *Matrix) Dims() (int, int) { return m.X.Dims() }

// Levels returns the distinct values sorted ascending.
func Levels(values []string) []string {
	seen := make(map[string]struct{}, 8)
	out := make([]string, 0, 8)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// BuildDummyColumns dummy-codes a categorical vector. The lexicographically
// first level is the reference and gets no column; each remaining level gets
// an indicator. Fewer than two levels yields empty output.
func BuildDummyColumns(values []string) ([][]float64, []string) {
	levels := Levels(values)
	if len(levels) < 2 {
		return nil, nil
	}
	pos := make(map[string]int, len(levels)-1)
	for i, l := range levels[1:] {
		pos[l] = i
	}
	cols := make([][]float64, len(levels)-1)
	for j := range cols {
		cols[j] = make([]float64, len(values))
	}
	for i, v := range values {
		if j, ok := pos[v]; ok {
			cols[j][i] = 1
		}
	}
	return cols, levels[1:]
}

// NewFactor builds the dummy block of a categorical column. A factor with
// fewer than two observed levels is degenerate.
func NewFactor(name string, values []string) (*Block, error) {
	cols, names := BuildDummyColumns(values)
	if len(cols) == 0 {
		return nil, staterr.New(staterr.KindDegenerateFactor, staterr.CodeTooFewLevels, "design.NewFactor",
			"factor %q has %d distinct level(s), at least 2 required", name, len(Levels(values)))
	}
	labels := make([]string, len(names))
	for i, l := range names {
		labels[i] = fmt.Sprintf("%s[%s]", name, l)
	}
	return &Block{Name: name, Columns: cols, Labels: labels, Levels: Levels(values)}, nil
}

// NumericBlock wraps a raw covariate column.
func NumericBlock(name string, values []float64) *Block {
	col := make([]float64, len(values))
	copy(col, values)
	return &Block{Name: name, Columns: [][]float64{col}, Labels: []string{name}}
}

// Interaction returns the elementwise products of every column of a with
// every column of b, named "a:b".
func Interaction(a, b *Block) *Block {
	out := &Block{
		Name:    a.Name + ":" + b.Name,
		Columns: make([][]float64, 0, a.Width()*b.Width()),
		Labels:  make([]string, 0, a.Width()*b.Width()),
	}
	for i, ca := range a.Columns {
		for j, cb := range b.Columns {
			n := len(ca)
			if len(cb) < n {
				n = len(cb)
			}
			col := make([]float64, n)
			for r := 0; r < n; r++ {
				col[r] = ca[r] * cb[r]
			}
			out.Columns = append(out.Columns, col)
			out.Labels = append(out.Labels, a.Labels[i]+":"+b.Labels[j])
		}
	}
	return out
}

// Assemble concatenates an optional intercept with the blocks in order.
func Assemble(rows int, blocks []*Block, includeIntercept bool) (*Matrix, error) {
	const op = "design.Assemble"
	if rows <= 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "design has no rows")
	}
	p := 0
	if includeIntercept {
		p++
	}
	for _, b := range blocks {
		for k, c := range b.Columns {
			if len(c) != rows {
				return nil, staterr.Input(staterr.CodeLengthMismatch, op,
					"column %q has %d rows, expected %d", b.Labels[k], len(c), rows)
			}
		}
		p += b.Width()
	}
	if p == 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "design has no columns")
	}

	x := mat.NewDense(rows, p, nil)
	names := make([]string, 0, p)
	j := 0
	if includeIntercept {
		for r := 0; r < rows; r++ {
			x.Set(r, 0, 1)
		}
		names = append(names, InterceptName)
		j++
	}
	for _, b := range blocks {
		for k, c := range b.Columns {
			x.SetCol(j, c)
			names = append(names, b.Labels[k])
			j++
		}
	}
	return &Matrix{X: x, Names: names}, nil
}
