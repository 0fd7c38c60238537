// Package ols fits linear models by the normal equations.
package ols

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/linalg"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Fit is the result of one least-squares solve.
type Fit struct {
	Names     []string
	Beta      []float64
	Fitted    []float64
	Residuals []float64
	SSE       float64
	N, P      int

	chol *mat.Cholesky // factor of ZᵗZ for the rescaled design Z
	back *mat.Dense    // maps coefficients on Z back to X
	yss  float64
}

// relResidTol is the residual norm, relative to ‖y‖, below which a fit is
// treated as exact.
const relResidTol = 1e-12

// DFResid returns n - p.
func (f *Fit) DFResid() int { return f.N - f.P }

// MSE returns SSE / (n - p).
func (f *Fit) MSE() float64 { return f.SSE / float64(f.DFResid()) }

// Solve fits y on the design matrix.
func Solve(y []float64, m *design.Matrix) (*Fit, error) {
	f, err := FitDense(y, m.X)
	if err != nil {
		return nil, err
	}
	f.Names = append([]string(nil), m.Names...)
	return f, nil
}

// FitDense computes β = (XᵗX)⁻¹Xᵗy through a Cholesky solve. It requires
// n > p and a full-rank X.
//
// The normal equations are formed on a rescaled design Z with X = Z·T: every
// column other than the intercept is scaled to unit norm and, when X has an
// all-ones column, centred. The estimates are then invariant to the location
// and scale of each predictor.
func FitDense(y []float64, x *mat.Dense) (*Fit, error) {
	const op = "ols.Fit"
	n, p := x.Dims()
	if len(y) != n {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "response has %d values, design has %d rows", len(y), n)
	}
	if n <= p {
		return nil, staterr.New(staterr.KindSampleSize, staterr.CodeInsufficientObs, op,
			"%d observations for %d parameters, need n > p", n, p)
	}

	z, sc, err := rescale(x)
	if err != nil {
		return nil, err
	}
	chol, err := linalg.Cholesky(linalg.Gram(z))
	if err != nil {
		return nil, staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op, err)
	}

	// With an intercept the response is centred too; its mean goes back
	// into the intercept.
	ybar := 0.0
	if sc.intercept >= 0 {
		ybar = floats.Sum(y) / float64(n)
	}
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - ybar
	}
	var zty mat.VecDense
	zty.MulVec(z.T(), mat.NewVecDense(n, yc))
	var gamma mat.VecDense
	if err := chol.SolveVecTo(&gamma, &zty); err != nil && !linalg.IllConditioned(err) {
		return nil, staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op, err)
	}

	var zg mat.VecDense
	zg.MulVec(z, &gamma)
	fitted := make([]float64, n)
	res := make([]float64, n)
	sse, yss := 0.0, 0.0
	for i := 0; i < n; i++ {
		fitted[i] = zg.AtVec(i) + ybar
		res[i] = yc[i] - zg.AtVec(i)
		sse += res[i] * res[i]
		yss += y[i] * y[i]
	}
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeNonFinite, op, "residual sum of squares is not finite")
	}

	back := sc.inverse()
	var beta mat.VecDense
	beta.MulVec(back, &gamma)
	if sc.intercept >= 0 {
		beta.SetVec(sc.intercept, beta.AtVec(sc.intercept)+ybar)
	}
	return &Fit{
		Beta:      mat.Col(nil, 0, &beta),
		Fitted:    fitted,
		Residuals: res,
		SSE:       sse,
		N:         n,
		P:         p,
		chol:      chol,
		back:      back,
		yss:       yss,
	}, nil
}

// scaling records X = Z·T for a design whose non-intercept column j was
// replaced by (x_j - shift[j]) / scale[j].
type scaling struct {
	intercept    int // index of the all-ones column, -1 if none
	shift, scale []float64
}

func rescale(x *mat.Dense) (*mat.Dense, scaling, error) {
	const op = "ols.Fit"
	n, p := x.Dims()
	sc := scaling{intercept: -1, shift: make([]float64, p), scale: make([]float64, p)}
	cols := make([][]float64, p)
	for j := 0; j < p; j++ {
		cols[j] = mat.Col(nil, j, x)
		if sc.intercept < 0 && allOnes(cols[j]) {
			sc.intercept = j
		}
	}

	z := mat.NewDense(n, p, nil)
	for j, col := range cols {
		if j == sc.intercept {
			sc.scale[j] = 1
			z.SetCol(j, col)
			continue
		}
		if sc.intercept >= 0 {
			sc.shift[j] = floats.Sum(col) / float64(n)
			floats.AddConst(-sc.shift[j], col)
		}
		norm := floats.Norm(col, 2)
		if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, sc, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op,
				"column %d is constant or not finite and cannot be estimated", j)
		}
		sc.scale[j] = norm
		floats.Scale(1/norm, col)
		z.SetCol(j, col)
	}
	return z, sc, nil
}

// inverse returns T⁻¹, so that β = T⁻¹·γ for coefficients γ fitted on Z.
func (sc scaling) inverse() *mat.Dense {
	p := len(sc.scale)
	t := mat.NewDense(p, p, nil)
	for j := 0; j < p; j++ {
		if j == sc.intercept {
			t.Set(j, j, 1)
			continue
		}
		t.Set(j, j, 1/sc.scale[j])
		if sc.intercept >= 0 {
			t.Set(sc.intercept, j, -sc.shift[j]/sc.scale[j])
		}
	}
	return t
}

func allOnes(col []float64) bool {
	for _, v := range col {
		if v != 1 {
			return false
		}
	}
	return len(col) > 0
}

// Covariance returns MSE·(XᵗX)⁻¹, computed as MSE·T⁻¹(ZᵗZ)⁻¹T⁻ᵗ.
func (f *Fit) Covariance() (*mat.SymDense, error) {
	var inv mat.SymDense
	if err := f.chol.InverseTo(&inv); err != nil && !linalg.IllConditioned(err) {
		return nil, staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeSingularDesign, "ols.Covariance", err)
	}
	var left, full mat.Dense
	left.Mul(f.back, &inv)
	full.Mul(&left, f.back.T())
	full.Scale(f.MSE(), &full)
	return linalg.Symmetrize(&full)
}

// StdErrors returns the coefficient standard errors. A zero or non-finite
// error is a zero-variance failure: the t statistics would be undefined.
func (f *Fit) StdErrors() ([]float64, error) {
	if f.Exact() {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeNonFinite, "ols.StdErrors",
			"residual variance is zero, the model fits the data exactly")
	}
	cov, err := f.Covariance()
	if err != nil {
		return nil, err
	}
	se := make([]float64, f.P)
	for j := range se {
		v := cov.At(j, j)
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeNonFinite, "ols.StdErrors",
				"standard error of coefficient %d is undefined (variance %g)", j, v)
		}
		se[j] = math.Sqrt(v)
	}
	return se, nil
}

// Exact reports whether the residuals vanish to working precision.
func (f *Fit) Exact() bool {
	return f.SSE <= relResidTol*relResidTol*f.yss
}
