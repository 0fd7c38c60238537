package multivariate

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/statloom-cli/internal/linalg"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Varimax stopping defaults.
const (
	DefaultVarimaxMaxIter   = 50
	DefaultVarimaxTolerance = 1e-6
)

// FactorOptions configures FactorAnalysis. Zero MaxIter and Tolerance take
// the defaults.
type FactorOptions struct {
	Factors   int
	Rotate    bool
	MaxIter   int
	Tolerance float64
}

// Rotation is the outcome of an orthogonal rotation: Loadings = L·R.
type Rotation struct {
	Loadings   *mat.Dense
	R          *mat.Dense
	Iterations int
	Converged  bool
}

// FactorResult holds principal-component factor loadings, optionally
// rotated, and the per-variable and per-factor summaries derived from them.
type FactorResult struct {
	Variables   []string    `json:"variables" yaml:"variables"`
	N           int         `json:"n" yaml:"n"`
	Factors     int         `json:"factors" yaml:"factors"`
	Eigenvalues []float64   `json:"eigenvalues" yaml:"eigenvalues"`
	Unrotated   [][]float64 `json:"unrotated" yaml:"unrotated"`
	// Loadings equals Unrotated when no rotation was requested.
	Loadings      [][]float64 `json:"loadings" yaml:"loadings"`
	Rotated       bool        `json:"rotated" yaml:"rotated"`
	Iterations    int         `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Converged     bool        `json:"converged,omitempty" yaml:"converged,omitempty"`
	Communalities []float64   `json:"communalities" yaml:"communalities"`
	Uniquenesses  []float64   `json:"uniquenesses" yaml:"uniquenesses"`
	SSLoadings    []float64   `json:"ss_loadings" yaml:"ss_loadings"`
	Proportion    []float64   `json:"proportion" yaml:"proportion"`
}

// FactorAnalysis extracts opts.Factors factors by the principal-component
// method, L = V·√Λ, from the leading eigenpairs of the correlation matrix.
func FactorAnalysis(names []string, cols [][]float64, opts FactorOptions) (*FactorResult, error) {
	const op = "multivariate.FactorAnalysis"
	p := len(cols)
	if p < 2 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "%d variable(s) selected, at least 2 required", p)
	}
	if len(names) != p {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d columns but %d names", p, len(names))
	}
	k := opts.Factors
	if k < 1 || k > p {
		return nil, staterr.Input(staterr.CodeInvalidOption, op, "factor count must be between 1 and %d, got %d", p, k)
	}
	vals, vecs, err := eigenpairs(names, cols)
	if err != nil {
		return nil, err
	}

	l := mat.NewDense(p, k, nil)
	eig := make([]float64, 0, k)
	for j := 0; j < len(vals) && len(eig) < k; j++ {
		if !(vals[j] > 0) {
			break
		}
		s := math.Sqrt(vals[j])
		for i := 0; i < p; i++ {
			l.Set(i, len(eig), vecs.At(i, j)*s)
		}
		eig = append(eig, vals[j])
	}
	if len(eig) < k {
		return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op,
			"only %d positive eigenvalue(s), cannot extract %d factors", len(eig), k)
	}

	res := &FactorResult{
		Variables:   append([]string(nil), names...),
		N:           len(cols[0]),
		Factors:     k,
		Eigenvalues: eig,
		Unrotated:   rows(l),
	}
	final := l
	if opts.Rotate {
		rot := Varimax(l, opts.MaxIter, opts.Tolerance)
		final = rot.Loadings
		res.Rotated = true
		res.Iterations = rot.Iterations
		res.Converged = rot.Converged
	}
	res.Loadings = rows(final)

	res.Communalities = make([]float64, p)
	res.Uniquenesses = make([]float64, p)
	res.SSLoadings = make([]float64, k)
	res.Proportion = make([]float64, k)
	for i := 0; i < p; i++ {
		for j := 0; j < k; j++ {
			v := final.At(i, j)
			res.Communalities[i] += v * v
			res.SSLoadings[j] += v * v
		}
		res.Uniquenesses[i] = 1 - res.Communalities[i]
	}
	for j := range res.SSLoadings {
		res.Proportion[j] = res.SSLoadings[j] / float64(p)
	}
	return res, nil
}

// Varimax rotates loadings L (p×k) to maximize the variance of squared
// loadings within each factor. Each step forms Λ = L·R,
// B = Λ³ - Λ·diag(colSum(Λ²)/p), M = Lᵗ·B = UΣVᵗ and sets R = U·Vᵗ. It stops
// when the change in Σσ drops below tol or after maxIter steps. An SVD
// failure, including one on non-finite loadings, keeps the last rotation and
// leaves Converged false.
func Varimax(l *mat.Dense, maxIter int, tol float64) *Rotation {
	if maxIter <= 0 {
		maxIter = DefaultVarimaxMaxIter
	}
	if tol <= 0 {
		tol = DefaultVarimaxTolerance
	}
	p, k := l.Dims()
	r := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		r.Set(i, i, 1)
	}
	out := &Rotation{R: r}
	if k < 2 {
		out.Loadings = mat.DenseCopyOf(l)
		out.Converged = true
		return out
	}

	var lam, m mat.Dense
	prev := 0.0
	for iter := 1; iter <= maxIter; iter++ {
		lam.Mul(l, r)
		colSS := make([]float64, k)
		for i := 0; i < p; i++ {
			for j := 0; j < k; j++ {
				v := lam.At(i, j)
				colSS[j] += v * v
			}
		}
		b := mat.NewDense(p, k, nil)
		for i := 0; i < p; i++ {
			for j := 0; j < k; j++ {
				v := lam.At(i, j)
				b.Set(i, j, v*v*v-v*colSS[j]/float64(p))
			}
		}
		m.Mul(l.T(), b)
		u, sigma, vt, err := linalg.SVD(&m)
		if err != nil {
			break
		}
		next := mat.NewDense(k, k, nil)
		next.Mul(u, vt)
		r = next
		out.R = r
		out.Iterations = iter

		s := 0.0
		for _, v := range sigma {
			s += v
		}
		if iter > 1 && math.Abs(s-prev) < tol {
			out.Converged = true
			break
		}
		prev = s
	}
	out.Loadings = new(mat.Dense)
	out.Loadings.Mul(l, out.R)
	return out
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
