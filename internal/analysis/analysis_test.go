package analysis

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
	"github.com/KaramelBytes/statloom-cli/internal/stats"
)

func trialTable(t *testing.T) *dataset.Table {
	t.Helper()
	nan := math.NaN()
	tbl, err := dataset.NewTable("trial.csv",
		dataset.NewCategoricalColumn("arm", []string{"A", "A", "A", "B", "B", "B", "A", "B"}),
		dataset.NewCategoricalColumn("site", []string{"x", "y", "x", "y", "x", "y", "y", "x"}),
		dataset.NewNumericColumn("score", []float64{1, 2, 3, 4, 5, 6, nan, 5}),
		dataset.NewNumericColumn("before", []float64{10, 12, 9, 14, 11, 13, 12, 10}),
		dataset.NewNumericColumn("after", []float64{11, 14, 9, 17, 12, 15, 13, 12}),
		dataset.NewNumericColumn("dose", []float64{1, 2, 3, 4, 5, 6, 7, 8}),
	)
	require.NoError(t, err)
	return tbl
}

func TestParseKindAliases(t *testing.T) {
	for in, want := range map[string]Kind{
		"TTest": KindTTest, "welch": KindTTest, "regression": KindRegression,
		"chi2": KindChiSquare, "fa": KindFactor, "twoway": KindTwoWay,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("kmeans")
	assert.ErrorIs(t, err, staterr.ErrInput)
	assert.Len(t, Kinds(), 9)
}

func TestRunTTestDropsMissingRows(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := NewRunner(zap.New(core), Settings{})
	res, err := r.Run(trialTable(t), Request{Kind: "ttest", Y: "score", Group: "arm"})
	require.NoError(t, err)

	assert.Equal(t, KindTTest, res.Kind)
	assert.Equal(t, "trial.csv", res.Dataset)
	assert.Equal(t, 7, res.Rows)
	assert.Equal(t, 1, res.Dropped)
	detail, ok := res.Detail.(*stats.TTestResult)
	require.True(t, ok)
	assert.Equal(t, 3, detail.N1)
	assert.Equal(t, 4, detail.N2)
	p, ok := res.Stat("p")
	require.True(t, ok)
	assert.Equal(t, detail.P, p)

	assert.Equal(t, 1, logs.FilterMessage("analysis finished").Len())
	assert.Equal(t, 1, logs.FilterMessage("rows dropped for missing values").Len())
}

func TestRunMatchesDirectCalls(t *testing.T) {
	tbl := trialTable(t)
	r := NewRunner(nil, DefaultSettings())

	paired, err := r.Run(tbl, Request{Kind: KindPaired, Pair: []string{"after,before"}})
	require.NoError(t, err)
	direct, err := stats.PairedTTest(
		[]float64{11, 14, 9, 17, 12, 15, 13, 12},
		[]float64{10, 12, 9, 14, 11, 13, 12, 10}, 0.05)
	require.NoError(t, err)
	got, _ := paired.Stat("t")
	assert.InDelta(t, direct.T, got, 1e-12)

	reg, err := r.Run(tbl, Request{Kind: KindRegression, Y: "after", X: []string{"before", "dose"}})
	require.NoError(t, err)
	assert.Equal(t, 8, reg.Rows)
	require.Len(t, reg.Series, 1)
	assert.Len(t, reg.Series[0].X, 8)
	assert.True(t, strings.HasPrefix(reg.Lines[0], "after = "))
	require.Len(t, reg.Tables, 1)
	assert.Len(t, reg.Tables[0].Rows, 3)
}

func TestRunAnovaAndChiSquare(t *testing.T) {
	tbl := trialTable(t)
	r := NewRunner(nil, DefaultSettings())

	one, err := r.Run(tbl, Request{Kind: KindANOVA, Y: "before", Factors: []string{"arm"}})
	require.NoError(t, err)
	f, ok := one.Stat("F")
	require.True(t, ok)
	tt, err := r.Run(tbl, Request{Kind: KindTTest, Y: "before", Group: "arm"})
	require.NoError(t, err)
	tv, _ := tt.Stat("t")
	// Balanced two-group design: F equals t² of the Welch test.
	assert.InDelta(t, tv*tv, f, 1e-9)

	two, err := r.Run(tbl, Request{Kind: KindTwoWay, Y: "before", Factors: []string{"arm", "site"}})
	require.NoError(t, err)
	_, ok = two.Stat("F_AB")
	assert.True(t, ok)
	assert.Contains(t, two.Markdown(), "[ANOVA TABLE]")

	chi, err := r.Run(tbl, Request{Kind: KindChiSquare, Factors: []string{"arm", "site"}})
	require.NoError(t, err)
	df, _ := chi.Stat("df")
	assert.Equal(t, 1.0, df)
}

func TestRunMultivariate(t *testing.T) {
	tbl := trialTable(t)
	r := NewRunner(nil, Settings{LoadingComponents: 2})

	pca, err := r.Run(tbl, Request{Kind: KindPCA, Vars: []string{"before", "after", "dose"}})
	require.NoError(t, err)
	require.Len(t, pca.Series, 2)
	assert.Equal(t, "scree", pca.Series[0].Name)
	sum := 0.0
	for _, v := range pca.Series[0].Y {
		sum += v
	}
	assert.InDelta(t, 3, sum, 1e-9)
	assert.Equal(t, []string{"variable", "PC1", "PC2"}, pca.Tables[0].Columns)

	fa, err := r.Run(tbl, Request{Kind: KindFactor, Vars: []string{"before", "after", "dose"}, NumFactors: 2, Rotate: true})
	require.NoError(t, err)
	assert.Contains(t, fa.Title, "varimax")

	auto, err := r.Run(tbl, Request{Kind: KindFactor, Vars: []string{"before", "after", "dose"}})
	require.NoError(t, err)
	assert.Contains(t, strings.Join(auto.Lines, "\n"), "Kaiser criterion")

	corr, err := r.Run(tbl, Request{Kind: KindCorr})
	require.NoError(t, err)
	n, _ := corr.Stat("pairs")
	assert.Equal(t, 6.0, n, "every numeric column is used when vars are empty")
	assert.Equal(t, 7, corr.Rows)
}

func TestRunReportsTypedErrors(t *testing.T) {
	tbl := trialTable(t)
	r := NewRunner(nil, DefaultSettings())

	_, err := r.Run(tbl, Request{Kind: KindTTest, Y: "score"})
	assert.ErrorIs(t, err, staterr.ErrInput)
	assert.Equal(t, staterr.CodeEmptySelection, staterr.CodeOf(err))

	_, err = r.Run(tbl, Request{Kind: KindTTest, Y: "arm", Group: "site"})
	assert.ErrorIs(t, err, staterr.ErrInput)
	assert.Equal(t, staterr.CodeWrongColumnType, staterr.CodeOf(err))

	_, err = r.Run(tbl, Request{Kind: KindRegression, Y: "after", X: []string{"dose", "dose"}})
	assert.ErrorIs(t, err, staterr.ErrSingularMatrix)

	_, err = r.Run(tbl, Request{Kind: KindFactor, Vars: []string{"before", "after"}, NumFactors: 3})
	assert.ErrorIs(t, err, staterr.ErrInput)
	assert.Equal(t, staterr.CodeInvalidOption, staterr.CodeOf(err))

	_, err = r.Run(tbl, Request{Kind: "kmeans"})
	assert.ErrorIs(t, err, staterr.ErrInput)
}

func TestResultEncodings(t *testing.T) {
	r := NewRunner(nil, DefaultSettings())
	res, err := r.Run(trialTable(t), Request{Kind: KindTTest, Y: "score", Group: "arm", Alpha: 0.1})
	require.NoError(t, err)

	md, err := Encode(res, FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(md), "[ANALYSIS]\nWelch t-test: score by arm\n")
	assert.Contains(t, string(md), "Rows used: 7 (dropped 1 with missing values)")
	assert.Contains(t, string(md), "90% CI of mean difference")

	js, err := Encode(res, FormatJSON)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js, &decoded))
	assert.Equal(t, "ttest", decoded["kind"])
	detail := decoded["detail"].(map[string]any)
	assert.Equal(t, "A", detail["group1"])
	assert.NotContains(t, decoded, "Tables")

	y, err := Encode(res, FormatYAML)
	require.NoError(t, err)
	assert.Contains(t, string(y), "kind: ttest\n")
	assert.Contains(t, string(y), "group2: B\n")

	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, ".yaml", f.Ext())
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestParsePlanNamesRequests(t *testing.T) {
	plan, err := ParsePlan([]byte(`
dataset: data/trial.csv
alpha: 0.01
categorical: [dose]
requests:
  - kind: TTest
    y: score
    group: arm
  - kind: ttest
    y: before
    group: arm
    alpha: 0.1
  - name: fit
    kind: regress
    y: after
    x: [before, dose]
  - kind: anova2
    y: before
    factors: [arm, site]
`))
	require.NoError(t, err)
	require.Len(t, plan.Requests, 4)
	assert.Equal(t, "ttest", plan.Requests[0].Name)
	assert.Equal(t, "ttest_2", plan.Requests[1].Name)
	assert.Equal(t, 0.01, plan.Requests[0].Alpha)
	assert.Equal(t, 0.1, plan.Requests[1].Alpha)
	assert.Equal(t, "fit", plan.Requests[2].Name)
	assert.Equal(t, []string{"dose", "arm", "site"}, plan.CategoricalColumns())
	assert.Equal(t, "/plans/data/trial.csv", plan.DatasetPath("/plans/batch.yaml"))

	_, err = ParsePlan([]byte("dataset: x.csv\n"))
	assert.Error(t, err)
}

func TestRunBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	tbl := trialTable(t)
	r := NewRunner(nil, DefaultSettings())
	reqs := []Request{
		{Name: "t", Kind: KindTTest, Y: "score", Group: "arm"},
		{Name: "bad", Kind: KindRegression, Y: "after", X: []string{"dose", "dose"}},
		{Name: "pca", Kind: KindPCA, Vars: []string{"before", "after", "dose"}},
		{Name: "corr", Kind: KindCorr, Vars: []string{"before", "after"}},
	}
	var started atomic.Int32
	out := r.RunBatch(context.Background(), tbl, reqs, 3, func(int, Request) { started.Add(1) })
	require.Len(t, out, 4)
	assert.Equal(t, int32(4), started.Load())
	for i, o := range out {
		assert.Equal(t, reqs[i].Name, o.Request.Name)
	}
	assert.NoError(t, out[0].Err)
	assert.ErrorIs(t, out[1].Err, staterr.ErrSingularMatrix)
	assert.Nil(t, out[1].Result)
	assert.Equal(t, KindPCA, out[2].Result.Kind)
	assert.NoError(t, out[3].Err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out = r.RunBatch(ctx, tbl, reqs[:1], 1, nil)
	assert.ErrorIs(t, out[0].Err, context.Canceled)
}
