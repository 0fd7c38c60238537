package multivariate_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/KaramelBytes/statloom-cli/internal/multivariate"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

func twoFactorData() ([]string, [][]float64) {
	f1 := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	f2 := []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8}
	noise := []float64{0.3, -0.1, 0.2, -0.4, 0.1, 0.0, -0.2, 0.3, -0.3, 0.2, 0.1, -0.2}
	cols := make([][]float64, 5)
	for j := range cols {
		cols[j] = make([]float64, len(f1))
	}
	for i := range f1 {
		cols[0][i] = f1[i] + noise[i]
		cols[1][i] = 2*f1[i] - noise[(i+3)%12]
		cols[2][i] = f2[i] + noise[(i+5)%12]
		cols[3][i] = 3*f2[i] - noise[(i+7)%12]
		cols[4][i] = f1[i] + f2[i] + noise[(i+1)%12]
	}
	return []string{"a", "b", "c", "d", "e"}, cols
}

func TestStandardize(t *testing.T) {
	z, err := multivariate.Standardize([]string{"x"}, [][]float64{{1, 2, 3, 4}})
	require.NoError(t, err)
	col := mat.Col(nil, 0, z)
	sum, ss := 0.0, 0.0
	for _, v := range col {
		sum += v
		ss += v * v
	}
	assert.InDelta(t, 0, sum, 1e-12)
	assert.InDelta(t, 3, ss, 1e-12)

	_, err = multivariate.Standardize([]string{"c"}, [][]float64{{2, 2, 2}})
	assert.ErrorIs(t, err, staterr.ErrZeroVariance)
	_, err = multivariate.Standardize([]string{"x"}, [][]float64{{1}})
	assert.ErrorIs(t, err, staterr.ErrSampleSize)
}

func TestPCAEigenvaluesSumToVariableCount(t *testing.T) {
	names, cols := twoFactorData()
	res, err := multivariate.PCA(names, cols)
	require.NoError(t, err)
	require.Len(t, res.Components, 5)

	sum := 0.0
	for i, c := range res.Components {
		sum += c.Eigenvalue
		if i > 0 {
			assert.LessOrEqual(t, c.Eigenvalue, res.Components[i-1].Eigenvalue)
		}
		big := 0
		for j := range c.Loadings {
			if math.Abs(c.Loadings[j]) > math.Abs(c.Loadings[big]) {
				big = j
			}
		}
		if c.Eigenvalue > 1e-9 {
			assert.Greater(t, c.Loadings[big], 0.0)
		}
	}
	assert.InDelta(t, 5, sum, 5*1e-9)
	assert.InDelta(t, 1, res.Components[4].Cumulative, 1e-9)

	// Full-rank loadings reproduce unit variances.
	for v := range names {
		h := 0.0
		for _, c := range res.Components {
			h += c.Loadings[v] * c.Loadings[v]
		}
		assert.InDelta(t, 1, h, 1e-9)
	}

	above := 0
	for _, c := range res.Components {
		if c.Eigenvalue > 1 {
			above++
		}
	}
	assert.GreaterOrEqual(t, res.KaiserCount(), 1)
	if above > 0 {
		assert.Equal(t, above, res.KaiserCount())
	}

	x, y := res.Scree()
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, x)
	assert.Equal(t, res.Components[0].Eigenvalue, y[0])
}

func TestPCARejectsSingleVariable(t *testing.T) {
	_, err := multivariate.PCA([]string{"a"}, [][]float64{{1, 2, 3}})
	assert.ErrorIs(t, err, staterr.ErrInput)
}

func TestVarimaxPreservesTotalSquaredLoadings(t *testing.T) {
	names, cols := twoFactorData()
	plain, err := multivariate.FactorAnalysis(names, cols, multivariate.FactorOptions{Factors: 2})
	require.NoError(t, err)
	rot, err := multivariate.FactorAnalysis(names, cols, multivariate.FactorOptions{Factors: 2, Rotate: true})
	require.NoError(t, err)

	total := func(l [][]float64) float64 {
		s := 0.0
		for _, row := range l {
			for _, v := range row {
				s += v * v
			}
		}
		return s
	}
	assert.InDelta(t, total(plain.Loadings), total(rot.Loadings), 1e-9)
	assert.True(t, rot.Rotated)
	assert.Greater(t, rot.Iterations, 0)
	assert.LessOrEqual(t, rot.Iterations, multivariate.DefaultVarimaxMaxIter)

	// Communalities are rotation invariant.
	for i := range names {
		assert.InDelta(t, plain.Communalities[i], rot.Communalities[i], 1e-9)
		assert.InDelta(t, 1-rot.Communalities[i], rot.Uniquenesses[i], 1e-12)
	}
	assert.InDelta(t, plain.Eigenvalues[0], plain.SSLoadings[0], 1e-9)
}

func TestVarimaxRotationIsOrthonormal(t *testing.T) {
	l := mat.NewDense(4, 2, []float64{
		0.8, 0.3,
		0.7, 0.4,
		0.3, 0.8,
		0.2, 0.7,
	})
	rot := multivariate.Varimax(l, 0, 0)
	var rtr mat.Dense
	rtr.Mul(rot.R.T(), rot.R)
	assert.True(t, mat.EqualApprox(&rtr, mat.NewDiagDense(2, []float64{1, 1}), 1e-10))

	var want mat.Dense
	want.Mul(l, rot.R)
	assert.True(t, mat.EqualApprox(&want, rot.Loadings, 1e-12))
}

func TestFactorAnalysisOptions(t *testing.T) {
	names, cols := twoFactorData()
	_, err := multivariate.FactorAnalysis(names, cols, multivariate.FactorOptions{Factors: 6})
	assert.ErrorIs(t, err, &staterr.Error{Kind: staterr.KindInput, Code: staterr.CodeInvalidOption})
	_, err = multivariate.FactorAnalysis(names, cols, multivariate.FactorOptions{Factors: 0})
	assert.ErrorIs(t, err, staterr.ErrInput)
}

func TestFactorAnalysisRejectsSingleVariable(t *testing.T) {
	_, err := multivariate.FactorAnalysis([]string{"a"}, [][]float64{{1, 2, 3, 5}}, multivariate.FactorOptions{Factors: 1})
	assert.ErrorIs(t, err, &staterr.Error{Kind: staterr.KindInput, Code: staterr.CodeEmptySelection})
}

func TestVarimaxKeepsLastRotationWhenSVDFails(t *testing.T) {
	l := mat.NewDense(3, 2, []float64{
		0.8, 0.3,
		math.NaN(), 0.4,
		0.3, 0.8,
	})
	rot := multivariate.Varimax(l, 0, 0)
	assert.False(t, rot.Converged)
	assert.Equal(t, 0, rot.Iterations)
	assert.True(t, mat.Equal(rot.R, mat.NewDiagDense(2, []float64{1, 1})))
	for _, i := range []int{0, 2} {
		assert.Equal(t, mat.Row(nil, i, l), mat.Row(nil, i, rot.Loadings))
	}
}
