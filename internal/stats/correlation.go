package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// CorrelationResult is a Pearson correlation matrix with two-tailed p-values
// (t = r·√((n-2)/(1-r²)), df = n-2).
type CorrelationResult struct {
	Names []string    `json:"names" yaml:"names"`
	R     [][]float64 `json:"r" yaml:"r"`
	P     [][]float64 `json:"p" yaml:"p"`
	N     int         `json:"n" yaml:"n"`
}

// Pair is one off-diagonal entry of a correlation matrix.
type Pair struct {
	A, B string
	R, P float64
}

// Correlation computes pairwise Pearson correlations over complete cases.
func Correlation(names []string, cols [][]float64) (*CorrelationResult, error) {
	const op = "stats.Correlation"
	if len(cols) < 2 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "%d variable(s) selected, at least 2 required", len(cols))
	}
	if len(names) != len(cols) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d columns but %d names", len(cols), len(names))
	}
	n := len(cols[0])
	for j, c := range cols {
		if len(c) != n {
			return nil, staterr.Input(staterr.CodeLengthMismatch, op, "column %q has %d values, expected %d", names[j], len(c), n)
		}
		if sumSquaredDeviations(c) == 0 {
			return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op, "column %q is constant", names[j])
		}
	}
	if n < 3 {
		return nil, staterr.New(staterr.KindSampleSize, staterr.CodeInsufficientSampleSize, op,
			"%d complete row(s), at least 3 required", n)
	}

	k := len(cols)
	res := &CorrelationResult{Names: append([]string(nil), names...), N: n, R: make([][]float64, k), P: make([][]float64, k)}
	for i := range res.R {
		res.R[i] = make([]float64, k)
		res.P[i] = make([]float64, k)
		res.R[i][i] = 1
	}
	df := float64(n - 2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r := math.Max(-1, math.Min(1, stat.Correlation(cols[i], cols[j], nil)))
			p := 0.0
			if den := 1 - r*r; den > 0 {
				p = studentTwoTailed(r*math.Sqrt(df/den), df)
			}
			res.R[i][j], res.R[j][i] = r, r
			res.P[i][j], res.P[j][i] = p, p
		}
	}
	return res, nil
}

// Pairs lists the upper triangle in row order.
func (c *CorrelationResult) Pairs() []Pair {
	var out []Pair
	for i := range c.Names {
		for j := i + 1; j < len(c.Names); j++ {
			out = append(out, Pair{A: c.Names[i], B: c.Names[j], R: c.R[i][j], P: c.P[i][j]})
		}
	}
	return out
}
