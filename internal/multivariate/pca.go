// Package multivariate implements principal component analysis and
// principal-component factor analysis with Varimax rotation, both on the
// correlation matrix of the selected variables.
package multivariate

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/linalg"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Standardize returns the n×p matrix of z-scores of the columns, using the
// n-1 divisor.
func Standardize(names []string, cols [][]float64) (*mat.Dense, error) {
	const op = "multivariate.Standardize"
	if len(cols) == 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "no variables selected")
	}
	n := len(cols[0])
	if n < 2 {
		return nil, staterr.New(staterr.KindSampleSize, staterr.CodeInsufficientSampleSize, op,
			"%d observation(s), at least 2 required", n)
	}
	z := mat.NewDense(n, len(cols), nil)
	for j, c := range cols {
		if len(c) != n {
			return nil, staterr.Input(staterr.CodeLengthMismatch, op, "column %q has %d values, expected %d", names[j], len(c), n)
		}
		mean, sd := stat.MeanStdDev(c, nil)
		if !(sd > 0) {
			return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op,
				"column %q has zero standard deviation", names[j])
		}
		for i, v := range c {
			z.Set(i, j, (v-mean)/sd)
		}
	}
	return z, nil
}

// CorrelationMatrix returns ZᵗZ/(n-1) for standardized Z.
func CorrelationMatrix(z *mat.Dense) *mat.SymDense {
	n, _ := z.Dims()
	r := linalg.Gram(z)
	r.ScaleSym(1/float64(n-1), r)
	return r
}

// eigenpairs decomposes the correlation matrix of the columns and returns
// eigenvalues in descending order with matching eigenvector columns. Ties
// keep kernel order. Each eigenvector is signed so that its largest
// magnitude entry is positive.
func eigenpairs(names []string, cols [][]float64) ([]float64, *mat.Dense, error) {
	z, err := Standardize(names, cols)
	if err != nil {
		return nil, nil, err
	}
	vals, vecs, err := linalg.SymmetricEigen(CorrelationMatrix(z))
	if err != nil {
		return nil, nil, err
	}
	p := len(vals)
	order := make([]int, p)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return vals[order[a]] > vals[order[b]] })

	sorted := make([]float64, p)
	v := mat.NewDense(p, p, nil)
	for dst, src := range order {
		sorted[dst] = vals[src]
		col := mat.Col(nil, src, vecs)
		big := 0
		for i := range col {
			if math.Abs(col[i]) > math.Abs(col[big]) {
				big = i
			}
		}
		if col[big] < 0 {
			for i := range col {
				col[i] = -col[i]
			}
		}
		v.SetCol(dst, col)
	}
	return sorted, v, nil
}

// Component is one principal component.
type Component struct {
	Index      int       `json:"index" yaml:"index"`
	Eigenvalue float64   `json:"eigenvalue" yaml:"eigenvalue"`
	Explained  float64   `json:"explained" yaml:"explained"`
	Cumulative float64   `json:"cumulative" yaml:"cumulative"`
	Loadings   []float64 `json:"loadings" yaml:"loadings"`
}

// PCAResult lists components in descending eigenvalue order. Loadings are
// eigenvector·√eigenvalue, one entry per variable.
type PCAResult struct {
	Variables  []string    `json:"variables" yaml:"variables"`
	N          int         `json:"n" yaml:"n"`
	Components []Component `json:"components" yaml:"components"`
}

// PCA runs principal component analysis on the correlation matrix.
func PCA(names []string, cols [][]float64) (*PCAResult, error) {
	const op = "multivariate.PCA"
	if len(cols) < 2 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "%d variable(s) selected, at least 2 required", len(cols))
	}
	if len(names) != len(cols) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d columns but %d names", len(cols), len(names))
	}
	vals, vecs, err := eigenpairs(names, cols)
	if err != nil {
		return nil, err
	}
	p := float64(len(vals))
	res := &PCAResult{Variables: append([]string(nil), names...), N: len(cols[0])}
	cum := 0.0
	for j, lambda := range vals {
		// Tiny negative eigenvalues are rounding noise on a PSD matrix.
		lambda = math.Max(0, lambda)
		ratio := lambda / p
		cum += ratio
		load := mat.Col(nil, j, vecs)
		s := math.Sqrt(lambda)
		for i := range load {
			load[i] *= s
		}
		res.Components = append(res.Components, Component{
			Index: j + 1, Eigenvalue: lambda, Explained: ratio, Cumulative: cum, Loadings: load,
		})
	}
	return res, nil
}

// KaiserCount is the number of components with eigenvalue above 1, and at
// least 1.
func (r *PCAResult) KaiserCount() int {
	n := 0
	for _, c := range r.Components {
		if c.Eigenvalue > 1 {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// Scree returns (component, eigenvalue) points.
func (r *PCAResult) Scree() (x, y []float64) {
	for _, c := range r.Components {
		x = append(x, float64(c.Index))
		y = append(y, c.Eigenvalue)
	}
	return x, y
}

// CumulativeCurve returns (component, cumulative explained ratio) points.
func (r *PCAResult) CumulativeCurve() (x, y []float64) {
	for _, c := range r.Components {
		x = append(x, float64(c.Index))
		y = append(y, c.Cumulative)
	}
	return x, y
}
