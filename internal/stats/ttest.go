package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// TTestResult is the outcome of Welch's two-sample t-test. Group1 is the
// lexicographically smaller level.
type TTestResult struct {
	Group1   string  `json:"group1" yaml:"group1"`
	Group2   string  `json:"group2" yaml:"group2"`
	N1       int     `json:"n1" yaml:"n1"`
	N2       int     `json:"n2" yaml:"n2"`
	Mean1    float64 `json:"mean1" yaml:"mean1"`
	Mean2    float64 `json:"mean2" yaml:"mean2"`
	Var1     float64 `json:"var1" yaml:"var1"`
	Var2     float64 `json:"var2" yaml:"var2"`
	MeanDiff float64 `json:"mean_diff" yaml:"mean_diff"`
	T        float64 `json:"t" yaml:"t"`
	DF       float64 `json:"df" yaml:"df"`
	P        float64 `json:"p" yaml:"p"`
	CohenD   float64 `json:"cohen_d" yaml:"cohen_d"`
	Alpha    float64 `json:"alpha" yaml:"alpha"`
	CILow    float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh   float64 `json:"ci_high" yaml:"ci_high"`
}

// IndependentTTest runs Welch's unequal-variance t-test of values split by a
// two-level grouping vector.
func IndependentTTest(values []float64, groups []string, alpha float64) (*TTestResult, error) {
	const op = "stats.IndependentTTest"
	if len(values) != len(groups) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d values but %d group labels", len(values), len(groups))
	}
	if err := checkAlpha(op, alpha); err != nil {
		return nil, err
	}
	levels := design.Levels(groups)
	if len(levels) != 2 {
		return nil, staterr.New(staterr.KindDegenerateFactor, staterr.CodeGroupCount, op,
			"grouping column has %d distinct levels, exactly 2 required", len(levels))
	}
	var g1, g2 []float64
	for i, v := range values {
		if groups[i] == levels[0] {
			g1 = append(g1, v)
		} else {
			g2 = append(g2, v)
		}
	}
	if len(g1) < 2 || len(g2) < 2 {
		return nil, staterr.New(staterr.KindSampleSize, staterr.CodeInsufficientSampleSize, op,
			"each group needs at least 2 observations (%s: %d, %s: %d)", levels[0], len(g1), levels[1], len(g2))
	}

	m1, v1 := stat.MeanVariance(g1, nil)
	m2, v2 := stat.MeanVariance(g2, nil)
	n1, n2 := float64(len(g1)), float64(len(g2))
	a, b := v1/n1, v2/n2
	se := math.Sqrt(a + b)
	if se == 0 {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op,
			"both groups have zero variance, t is undefined")
	}
	t := (m1 - m2) / se
	df := (a + b) * (a + b) / (a*a/(n1-1) + b*b/(n2-1))
	pooled := math.Sqrt(((n1-1)*v1 + (n2-1)*v2) / (n1 + n2 - 2))
	p := studentTwoTailed(t, df)
	half := studentQuantile(1-alpha/2, df) * se

	res := &TTestResult{
		Group1: levels[0], Group2: levels[1],
		N1: len(g1), N2: len(g2),
		Mean1: m1, Mean2: m2, Var1: v1, Var2: v2,
		MeanDiff: m1 - m2,
		T:        t, DF: df, P: p,
		CohenD: (m1 - m2) / pooled,
		Alpha:  alpha,
		CILow:  m1 - m2 - half,
		CIHigh: m1 - m2 + half,
	}
	if err := finite(op, staterr.KindSampleSize, []string{"t", "df", "p", "cohen_d", "ci"},
		res.T, res.DF, res.P, res.CohenD, half); err != nil {
		return nil, err
	}
	return res, nil
}

// PairedTTestResult is the outcome of a paired-samples t-test on x - y.
type PairedTTestResult struct {
	N        int     `json:"n" yaml:"n"`
	MeanX    float64 `json:"mean_x" yaml:"mean_x"`
	MeanY    float64 `json:"mean_y" yaml:"mean_y"`
	MeanDiff float64 `json:"mean_diff" yaml:"mean_diff"`
	SDDiff   float64 `json:"sd_diff" yaml:"sd_diff"`
	T        float64 `json:"t" yaml:"t"`
	DF       float64 `json:"df" yaml:"df"`
	P        float64 `json:"p" yaml:"p"`
	DZ       float64 `json:"d_z" yaml:"d_z"`
	Alpha    float64 `json:"alpha" yaml:"alpha"`
	CILow    float64 `json:"ci_low" yaml:"ci_low"`
	CIHigh   float64 `json:"ci_high" yaml:"ci_high"`
}

// PairedTTest tests whether the mean of the pairwise differences x[i]-y[i]
// is zero.
func PairedTTest(x, y []float64, alpha float64) (*PairedTTestResult, error) {
	const op = "stats.PairedTTest"
	if len(x) != len(y) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "paired vectors have %d and %d values", len(x), len(y))
	}
	if err := checkAlpha(op, alpha); err != nil {
		return nil, err
	}
	if len(x) < 2 {
		return nil, staterr.New(staterr.KindSampleSize, staterr.CodeInsufficientSampleSize, op,
			"%d pair(s), at least 2 required", len(x))
	}
	d := make([]float64, len(x))
	for i := range x {
		d[i] = x[i] - y[i]
	}
	md, vd := stat.MeanVariance(d, nil)
	n := float64(len(d))
	sd := math.Sqrt(vd)
	se := sd / math.Sqrt(n)
	if se == 0 {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op,
			"differences are constant, t is undefined")
	}
	t := md / se
	df := n - 1
	half := studentQuantile(1-alpha/2, df) * se
	res := &PairedTTestResult{
		N:     len(d),
		MeanX: stat.Mean(x, nil), MeanY: stat.Mean(y, nil),
		MeanDiff: md, SDDiff: sd,
		T: t, DF: df, P: studentTwoTailed(t, df),
		DZ:    math.Abs(t) / math.Sqrt(n),
		Alpha: alpha,
		CILow: md - half, CIHigh: md + half,
	}
	if err := finite(op, staterr.KindSampleSize, []string{"t", "p", "ci"}, res.T, res.P, half); err != nil {
		return nil, err
	}
	return res, nil
}
