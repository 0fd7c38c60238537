package stats

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/linalg"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Coefficient is one row of a regression coefficient table. Standardized
// and VIF are zero for the intercept; VIF is zero with a single predictor.
type Coefficient struct {
	Name         string  `json:"name" yaml:"name"`
	Estimate     float64 `json:"estimate" yaml:"estimate"`
	StdErr       float64 `json:"std_err" yaml:"std_err"`
	T            float64 `json:"t" yaml:"t"`
	P            float64 `json:"p" yaml:"p"`
	Standardized float64 `json:"standardized,omitempty" yaml:"standardized,omitempty"`
	VIF          float64 `json:"vif,omitempty" yaml:"vif,omitempty"`
}

// RegressionResult is a multiple linear regression with full inference.
type RegressionResult struct {
	Coefficients []Coefficient `json:"coefficients" yaml:"coefficients"`
	N            int           `json:"n" yaml:"n"`
	K            int           `json:"k" yaml:"k"`
	R2           float64       `json:"r2" yaml:"r2"`
	AdjR2        float64       `json:"adj_r2" yaml:"adj_r2"`
	F            float64       `json:"f" yaml:"f"`
	DF1          int           `json:"df1" yaml:"df1"`
	DF2          int           `json:"df2" yaml:"df2"`
	P            float64       `json:"p" yaml:"p"`
	SSE          float64       `json:"sse" yaml:"sse"`
	SST          float64       `json:"sst" yaml:"sst"`
	ResidualSE   float64       `json:"residual_se" yaml:"residual_se"`
	Fitted       []float64     `json:"-" yaml:"-"`
	Residuals    []float64     `json:"-" yaml:"-"`
}

// Regression fits y on an intercept plus the named numeric predictors.
func Regression(y []float64, predictors [][]float64, names []string) (*RegressionResult, error) {
	const op = "stats.Regression"
	if len(predictors) == 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "no predictors selected")
	}
	if len(names) != len(predictors) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d predictors but %d names", len(predictors), len(names))
	}
	n, k := len(y), len(predictors)
	blocks := make([]*design.Block, k)
	for j, col := range predictors {
		if len(col) != n {
			return nil, staterr.Input(staterr.CodeLengthMismatch, op,
				"predictor %q has %d values, response has %d", names[j], len(col), n)
		}
		blocks[j] = design.NumericBlock(names[j], col)
	}
	m, err := design.Assemble(n, blocks, true)
	if err != nil {
		return nil, err
	}
	fit, err := ols.Solve(y, m)
	if err != nil {
		return nil, err
	}

	sst := sumSquaredDeviations(y)
	if sst == 0 {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op, "response is constant, R² is undefined")
	}
	se, err := fit.StdErrors()
	if err != nil {
		return nil, err
	}

	p := fit.P
	dfResid := fit.DFResid()
	r2 := 1 - fit.SSE/sst
	res := &RegressionResult{
		N:          n,
		K:          k,
		R2:         r2,
		AdjR2:      1 - (1-r2)*float64(n-1)/float64(dfResid),
		DF1:        k,
		DF2:        dfResid,
		SSE:        fit.SSE,
		SST:        sst,
		ResidualSE: math.Sqrt(fit.MSE()),
		Fitted:     fit.Fitted,
		Residuals:  fit.Residuals,
	}
	res.F = ((sst - fit.SSE) / float64(k)) / fit.MSE()
	res.P = fSurvival(res.F, float64(k), float64(dfResid))

	sdY := stat.StdDev(y, nil)
	res.Coefficients = make([]Coefficient, p)
	for j := 0; j < p; j++ {
		t := fit.Beta[j] / se[j]
		c := Coefficient{
			Name:     fit.Names[j],
			Estimate: fit.Beta[j],
			StdErr:   se[j],
			T:        t,
			P:        studentTwoTailed(t, float64(dfResid)),
		}
		if j > 0 {
			c.Standardized = fit.Beta[j] * stat.StdDev(predictors[j-1], nil) / sdY
		}
		res.Coefficients[j] = c
	}
	if k >= 2 {
		vif, err := varianceInflation(predictors)
		if err != nil {
			return nil, err
		}
		for j, v := range vif {
			res.Coefficients[j+1].VIF = v
		}
	}
	if err := finite(op, staterr.KindZeroVariance, []string{"F", "p", "adjusted R²"}, res.F, res.P, res.AdjR2); err != nil {
		return nil, err
	}
	return res, nil
}

// varianceInflation returns the diagonal of the inverse predictor
// correlation matrix.
func varianceInflation(predictors [][]float64) ([]float64, error) {
	k := len(predictors)
	r := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		r.Set(i, i, 1)
		for j := i + 1; j < k; j++ {
			c := stat.Correlation(predictors[i], predictors[j], nil)
			r.Set(i, j, c)
			r.Set(j, i, c)
		}
	}
	inv, err := linalg.Invert(r)
	if err != nil {
		return nil, err
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = inv.At(i, i)
	}
	return out, nil
}

// Formula renders the fitted equation, e.g. "y = 1.2000 + 0.5000·x".
func (r *RegressionResult) Formula(response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %.4f", response, r.Coefficients[0].Estimate)
	for _, c := range r.Coefficients[1:] {
		sign := "+"
		v := c.Estimate
		if v < 0 {
			sign = "-"
			v = -v
		}
		fmt.Fprintf(&b, " %s %.4f·%s", sign, v, c.Name)
	}
	return b.String()
}
