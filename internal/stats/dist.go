// Package stats implements the classical hypothesis tests: t-tests, one- and
// two-way ANOVA, multiple regression, correlation and chi-square tests of
// independence, plus a descriptive column profile.
//
// Every function is pure. Undefined numeric results are reported as typed
// errors from internal/staterr, never as NaN or Inf.
package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// studentTwoTailed returns P(|T| ≥ |t|) for T ~ t(df).
func studentTwoTailed(t, df float64) float64 {
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * d.Survival(math.Abs(t))
}

// studentQuantile returns the p-quantile of t(df).
func studentQuantile(p, df float64) float64 {
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return d.Quantile(p)
}

// fSurvival returns P(F ≥ f) for F ~ F(d1, d2).
func fSurvival(f, d1, d2 float64) float64 {
	d := distuv.F{D1: d1, D2: d2}
	return d.Survival(f)
}

// chiSquareSurvival returns P(X ≥ x) for X ~ χ²(k).
func chiSquareSurvival(x, k float64) float64 {
	d := distuv.ChiSquared{K: k}
	return d.Survival(x)
}

// Stars returns the significance marker for a p-value: "**" below 0.01,
// "*" below 0.05, "" otherwise.
func Stars(p float64) string {
	switch {
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	default:
		return ""
	}
}

func checkAlpha(op string, alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return staterr.Input(staterr.CodeInvalidOption, op, "alpha must be in (0, 1), got %g", alpha)
	}
	return nil
}

// finite fails with a typed error when any value is NaN or Inf. names and
// vals are parallel.
func finite(op string, kind staterr.Kind, names []string, vals ...float64) error {
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return staterr.New(kind, staterr.CodeNonFinite, op, "%s is not finite", names[i])
		}
	}
	return nil
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

// sumSquaredDeviations returns Σ(x - mean)².
func sumSquaredDeviations(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := sum(xs) / float64(len(xs))
	ss := 0.0
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return ss
}
