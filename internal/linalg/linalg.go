// Package linalg is the dense linear-algebra kernel behind every model fit:
// products, SPD solves, inverses, symmetric eigendecomposition and thin SVD.
//
// All functions are pure: inputs are never modified and results are freshly
// allocated. Failures are returned as *staterr.Error values, never panics.
package linalg

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// RankTolerance is the smallest admissible ratio between a squared Cholesky
// pivot and the matching diagonal entry of the input. Below it the column is
// treated as a linear combination of the preceding ones.
const RankTolerance = 1e-10

// conditionLimit bounds the LU condition number accepted by Invert (1/ε).
const conditionLimit = 1 / 0x1p-52

// Multiply returns a·b.
func Multiply(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, "linalg.Multiply",
			"cannot multiply %d×%d by %d×%d", ar, ac, br, bc)
	}
	var c mat.Dense
	c.Mul(a, b)
	return &c, nil
}

// Gram returns the symmetric product XᵗX.
func Gram(x mat.Matrix) *mat.SymDense {
	_, p := x.Dims()
	g := mat.NewSymDense(p, nil)
	g.SymOuterK(1, x.T())
	return g
}

// Symmetrize converts a square matrix into a SymDense using its upper
// triangle, failing on non-square input.
func Symmetrize(a mat.Matrix) (*mat.SymDense, error) {
	if s, ok := a.(*mat.SymDense); ok {
		return s, nil
	}
	r, c := a.Dims()
	if r != c {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, "linalg.Symmetrize", "matrix is %d×%d, not square", r, c)
	}
	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, a.At(i, j))
		}
	}
	return s, nil
}

// Cholesky factors a symmetric positive-definite matrix. It fails when the
// factorization does not exist or when a pivot is numerically zero relative
// to its diagonal entry, which is how exact collinearity surfaces in floating
// point.
func Cholesky(a mat.Symmetric) (*mat.Cholesky, error) {
	const op = "linalg.Cholesky"
	n := a.SymmetricDim()
	if n == 0 {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, op, "empty matrix")
	}
	var ch mat.Cholesky
	if ok := ch.Factorize(a); !ok {
		return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op, "matrix is not positive definite")
	}
	var l mat.TriDense
	ch.LTo(&l)
	for j := 0; j < n; j++ {
		d := a.At(j, j)
		pivot := l.At(j, j)
		if d <= 0 || pivot*pivot <= RankTolerance*d || math.IsNaN(pivot) {
			return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op,
				"column %d is linearly dependent on the preceding columns", j)
		}
	}
	return &ch, nil
}

// SolveSPD solves a·x = b for symmetric positive-definite a.
func SolveSPD(a mat.Symmetric, b mat.Vector) (*mat.VecDense, error) {
	n := a.SymmetricDim()
	if b.Len() != n {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, "linalg.SolveSPD",
			"right-hand side has %d entries, matrix is %d×%d", b.Len(), n, n)
	}
	ch, err := Cholesky(a)
	if err != nil {
		return nil, err
	}
	var x mat.VecDense
	if err := ch.SolveVecTo(&x, b); err != nil && !IllConditioned(err) {
		return nil, staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeSingularDesign, "linalg.SolveSPD", err)
	}
	return &x, nil
}

// IllConditioned reports whether err is gonum's mat.Condition warning. The
// accompanying result has still been computed; rank deficiency is screened
// separately by the pivot test in Cholesky.
func IllConditioned(err error) bool {
	var c mat.Condition
	return errors.As(err, &c)
}

// Invert returns a⁻¹ using an LU factorization with partial pivoting.
func Invert(a mat.Matrix) (*mat.Dense, error) {
	const op = "linalg.Invert"
	r, c := a.Dims()
	if r != c {
		return nil, staterr.Input(staterr.CodeDimensionMismatch, op, "matrix is %d×%d, not square", r, c)
	}
	var lu mat.LU
	lu.Factorize(a)
	if det := lu.Det(); det == 0 || math.IsNaN(det) {
		return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op, "determinant is zero")
	}
	if cond := lu.Cond(); math.IsInf(cond, 1) || cond > conditionLimit {
		return nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op,
			"matrix is numerically singular (condition number %.3g)", cond)
	}
	var inv mat.Dense
	if err := lu.SolveTo(&inv, false, eye(r)); err != nil {
		return nil, staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeSingularDesign, op, err)
	}
	return &inv, nil
}

// SymmetricEigen decomposes a real symmetric matrix. Eigenvalues come back
// in the kernel's order (ascending for gonum); eigenvectors are the columns
// of the returned matrix, matching the eigenvalue order.
func SymmetricEigen(a mat.Symmetric) ([]float64, *mat.Dense, error) {
	const op = "linalg.SymmetricEigen"
	if a.SymmetricDim() == 0 {
		return nil, nil, staterr.Input(staterr.CodeDimensionMismatch, op, "empty matrix")
	}
	var es mat.EigenSym
	if ok := es.Factorize(a, true); !ok {
		return nil, nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeNotConverged, op, "eigendecomposition did not converge")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	return vals, &vecs, nil
}

// SVD computes the thin singular value decomposition a = U·diag(sigma)·Vᵗ.
func SVD(a mat.Matrix) (u *mat.Dense, sigma []float64, vt *mat.Dense, err error) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := a.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, nil, nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeNonFinite, "linalg.SVD",
					"entry (%d, %d) is not finite", i, j)
			}
		}
	}
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, nil, nil, staterr.New(staterr.KindSingularMatrix, staterr.CodeNotConverged, "linalg.SVD", "SVD did not converge")
	}
	u = new(mat.Dense)
	svd.UTo(u)
	var v mat.Dense
	svd.VTo(&v)
	vt = mat.DenseCopyOf(v.T())
	return u, svd.Values(nil), vt, nil
}

func eye(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}
