package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// GroupSummary describes one level of a factor.
type GroupSummary struct {
	Level string  `json:"level" yaml:"level"`
	N     int     `json:"n" yaml:"n"`
	Mean  float64 `json:"mean" yaml:"mean"`
	SD    float64 `json:"sd" yaml:"sd"`
}

// OneWayResult is a one-way ANOVA table.
type OneWayResult struct {
	Groups     []GroupSummary `json:"groups" yaml:"groups"`
	SSBetween  float64        `json:"ss_between" yaml:"ss_between"`
	SSWithin   float64        `json:"ss_within" yaml:"ss_within"`
	SSTotal    float64        `json:"ss_total" yaml:"ss_total"`
	DFBetween  int            `json:"df_between" yaml:"df_between"`
	DFWithin   int            `json:"df_within" yaml:"df_within"`
	MSBetween  float64        `json:"ms_between" yaml:"ms_between"`
	MSWithin   float64        `json:"ms_within" yaml:"ms_within"`
	F          float64        `json:"f" yaml:"f"`
	P          float64        `json:"p" yaml:"p"`
	EtaSquared float64        `json:"eta_squared" yaml:"eta_squared"`
}

// OneWayANOVA compares the intercept-only model with the intercept plus
// factor dummies model.
func OneWayANOVA(y []float64, factor []string) (*OneWayResult, error) {
	const op = "stats.OneWayANOVA"
	if len(y) != len(factor) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "%d values but %d factor labels", len(y), len(factor))
	}
	n := len(y)
	f, err := design.NewFactor("group", factor)
	if err != nil {
		return nil, err
	}
	k := len(f.Levels)

	m0, err := design.Assemble(n, nil, true)
	if err != nil {
		return nil, err
	}
	m1, err := design.Assemble(n, []*design.Block{f}, true)
	if err != nil {
		return nil, err
	}
	fit0, err := ols.Solve(y, m0)
	if err != nil {
		return nil, err
	}
	fit1, err := ols.Solve(y, m1)
	if err != nil {
		return nil, err
	}

	res := &OneWayResult{
		Groups:    summarizeGroups(y, factor, f.Levels),
		SSBetween: math.Max(0, fit0.SSE-fit1.SSE),
		SSWithin:  fit1.SSE,
		SSTotal:   fit0.SSE,
		DFBetween: k - 1,
		DFWithin:  n - k,
	}
	if fit1.Exact() {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op,
			"within-group variance is zero, F is undefined")
	}
	res.MSBetween = res.SSBetween / float64(res.DFBetween)
	res.MSWithin = res.SSWithin / float64(res.DFWithin)
	res.F = res.MSBetween / res.MSWithin
	res.P = fSurvival(res.F, float64(res.DFBetween), float64(res.DFWithin))
	res.EtaSquared = res.SSBetween / res.SSTotal
	if err := finite(op, staterr.KindZeroVariance, []string{"F", "p", "eta²"}, res.F, res.P, res.EtaSquared); err != nil {
		return nil, err
	}
	return res, nil
}

func summarizeGroups(y []float64, factor, levels []string) []GroupSummary {
	byLevel := make(map[string][]float64, len(levels))
	for i, l := range factor {
		byLevel[l] = append(byLevel[l], y[i])
	}
	out := make([]GroupSummary, len(levels))
	for i, l := range levels {
		vals := byLevel[l]
		g := GroupSummary{Level: l, N: len(vals), Mean: stat.Mean(vals, nil)}
		if len(vals) > 1 {
			g.SD = stat.StdDev(vals, nil)
		}
		out[i] = g
	}
	return out
}

// Effect is one row of an ANOVA table. F and P are zero on the error row.
type Effect struct {
	Source string  `json:"source" yaml:"source"`
	SS     float64 `json:"ss" yaml:"ss"`
	DF     int     `json:"df" yaml:"df"`
	MS     float64 `json:"ms" yaml:"ms"`
	F      float64 `json:"f,omitempty" yaml:"f,omitempty"`
	P      float64 `json:"p,omitempty" yaml:"p,omitempty"`
}

// TwoWayResult is a Type II two-way ANOVA table.
type TwoWayResult struct {
	FactorA string   `json:"factor_a" yaml:"factor_a"`
	FactorB string   `json:"factor_b" yaml:"factor_b"`
	LevelsA []string `json:"levels_a" yaml:"levels_a"`
	LevelsB []string `json:"levels_b" yaml:"levels_b"`
	// Effects holds A, B, A:B and Error in that order.
	Effects []Effect `json:"effects" yaml:"effects"`
	SSTotal float64  `json:"ss_total" yaml:"ss_total"`
	N       int      `json:"n" yaml:"n"`
}

// Effect returns the named row, or nil.
func (r *TwoWayResult) Effect(source string) *Effect {
	for i := range r.Effects {
		if r.Effects[i].Source == source {
			return &r.Effects[i]
		}
	}
	return nil
}

// TwoWayANOVA computes Type II sums of squares by differencing four nested
// fits: A, B, A+B and A+B+A:B. Under unbalanced data the effect SS need not
// add up to SSTotal.
func TwoWayANOVA(y []float64, nameA string, a []string, nameB string, b []string) (*TwoWayResult, error) {
	const op = "stats.TwoWayANOVA"
	n := len(y)
	if len(a) != n || len(b) != n {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op,
			"%d values but factors have %d and %d labels", n, len(a), len(b))
	}
	fa, err := design.NewFactor(nameA, a)
	if err != nil {
		return nil, err
	}
	fb, err := design.NewFactor(nameB, b)
	if err != nil {
		return nil, err
	}
	fab := design.Interaction(fa, fb)

	sse := func(blocks ...*design.Block) (*ols.Fit, error) {
		m, err := design.Assemble(n, blocks, true)
		if err != nil {
			return nil, err
		}
		return ols.Solve(y, m)
	}
	fitA, err := sse(fa)
	if err != nil {
		return nil, err
	}
	fitB, err := sse(fb)
	if err != nil {
		return nil, err
	}
	fitAB, err := sse(fa, fb)
	if err != nil {
		return nil, err
	}
	full, err := sse(fa, fb, fab)
	if err != nil {
		return nil, err
	}
	if full.Exact() {
		return nil, staterr.New(staterr.KindZeroVariance, staterr.CodeConstantColumn, op,
			"residual variance of the full model is zero, F is undefined")
	}

	dfA, dfB := fa.Width(), fb.Width()
	dfErr := full.DFResid()
	msErr := full.SSE / float64(dfErr)
	row := func(source string, ss float64, df int) Effect {
		ss = math.Max(0, ss)
		ms := ss / float64(df)
		f := ms / msErr
		return Effect{Source: source, SS: ss, DF: df, MS: ms, F: f, P: fSurvival(f, float64(df), float64(dfErr))}
	}
	res := &TwoWayResult{
		FactorA: nameA, FactorB: nameB,
		LevelsA: fa.Levels, LevelsB: fb.Levels,
		SSTotal: sumSquaredDeviations(y),
		N:       n,
		Effects: []Effect{
			row(nameA, fitB.SSE-fitAB.SSE, dfA),
			row(nameB, fitA.SSE-fitAB.SSE, dfB),
			row(nameA+":"+nameB, fitAB.SSE-full.SSE, dfA*dfB),
			{Source: "Error", SS: full.SSE, DF: dfErr, MS: msErr},
		},
	}
	for _, e := range res.Effects[:3] {
		if err := finite(op, staterr.KindZeroVariance, []string{"F(" + e.Source + ")", "p(" + e.Source + ")"}, e.F, e.P); err != nil {
			return nil, err
		}
	}
	return res, nil
}
