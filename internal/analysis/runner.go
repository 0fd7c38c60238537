package analysis

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/multivariate"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
	"github.com/KaramelBytes/statloom-cli/internal/stats"
)

// Settings are the runner-wide defaults a Request may override.
type Settings struct {
	Alpha            float64
	VarimaxMaxIter   int
	VarimaxTolerance float64
	// LoadingComponents caps the PCA components shown in the loadings table.
	LoadingComponents int
}

// DefaultSettings returns alpha 0.05, the Varimax defaults and three
// loading columns.
func DefaultSettings() Settings {
	return Settings{
		Alpha:             0.05,
		VarimaxMaxIter:    multivariate.DefaultVarimaxMaxIter,
		VarimaxTolerance:  multivariate.DefaultVarimaxTolerance,
		LoadingComponents: 3,
	}
}

// Runner executes requests. It holds no per-request state, so one Runner may
// serve concurrent calls on a shared table.
type Runner struct {
	log      *zap.Logger
	settings Settings
}

// NewRunner builds a runner; a nil logger discards diagnostics.
func NewRunner(log *zap.Logger, s Settings) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	d := DefaultSettings()
	if !(s.Alpha > 0 && s.Alpha < 1) {
		s.Alpha = d.Alpha
	}
	if s.VarimaxMaxIter <= 0 {
		s.VarimaxMaxIter = d.VarimaxMaxIter
	}
	if s.VarimaxTolerance <= 0 {
		s.VarimaxTolerance = d.VarimaxTolerance
	}
	if s.LoadingComponents <= 0 {
		s.LoadingComponents = d.LoadingComponents
	}
	return &Runner{log: log, settings: s}
}

// Settings returns the effective settings.
func (r *Runner) Settings() Settings { return r.settings }

// Run performs one request against tbl. Rows with a missing value in any
// column the request reads are dropped before the analysis.
func (r *Runner) Run(tbl *dataset.Table, req Request) (*Result, error) {
	kind, err := ParseKind(string(req.Kind))
	if err != nil {
		return nil, err
	}
	req.Kind = kind
	req = req.normalized()
	start := time.Now()

	var res *Result
	switch kind {
	case KindTTest:
		res, err = r.ttest(tbl, req)
	case KindPaired:
		res, err = r.paired(tbl, req)
	case KindANOVA:
		res, err = r.oneWay(tbl, req)
	case KindTwoWay:
		res, err = r.twoWay(tbl, req)
	case KindRegression:
		res, err = r.regression(tbl, req)
	case KindPCA:
		res, err = r.pca(tbl, req)
	case KindFactor:
		res, err = r.factor(tbl, req)
	case KindCorr:
		res, err = r.correlation(tbl, req)
	case KindChiSquare:
		res, err = r.chiSquare(tbl, req)
	}
	if err != nil {
		r.log.Debug("analysis failed",
			zap.String("kind", string(kind)),
			zap.String("request", req.Label()),
			zap.String("code", staterr.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}
	res.Kind = kind
	res.Dataset = tbl.Name
	r.log.Debug("analysis finished",
		zap.String("kind", string(kind)),
		zap.String("request", req.Label()),
		zap.Int("rows", res.Rows),
		zap.Int("dropped", res.Dropped),
		zap.Duration("elapsed", time.Since(start)))
	if res.Dropped > 0 {
		r.log.Info("rows dropped for missing values",
			zap.String("request", req.Label()),
			zap.Int("dropped", res.Dropped))
	}
	return res, nil
}

func (r *Runner) alpha(req Request) float64 {
	if req.Alpha > 0 {
		return req.Alpha
	}
	return r.settings.Alpha
}

func needColumn(op, field, value string) error {
	if value == "" {
		return staterr.Input(staterr.CodeEmptySelection, op, "%s column is required", field)
	}
	return nil
}

func needColumns(op, field string, values []string, n int) error {
	if len(values) != n {
		return staterr.Input(staterr.CodeEmptySelection, op, "%s needs exactly %d columns, got %d", field, n, len(values))
	}
	return nil
}

// numericVars resolves an empty selection to every numeric column.
func numericVars(tbl *dataset.Table, vars []string) []string {
	if len(vars) > 0 {
		return vars
	}
	return tbl.NumericNames()
}

func columns(f *dataset.Frame, names []string) [][]float64 {
	out := make([][]float64, len(names))
	for i, n := range names {
		out[i] = f.Numeric[n]
	}
	return out
}

func newResult(title string, f *dataset.Frame, detail any) *Result {
	return &Result{Title: title, Rows: f.Rows, Dropped: f.Dropped, Detail: detail}
}

func (r *Runner) ttest(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.ttest"
	if err := needColumn(op, "y", req.Y); err != nil {
		return nil, err
	}
	if err := needColumn(op, "group", req.Group); err != nil {
		return nil, err
	}
	f, err := tbl.Complete([]string{req.Y}, []string{req.Group})
	if err != nil {
		return nil, err
	}
	alpha := r.alpha(req)
	t, err := stats.IndependentTTest(f.Numeric[req.Y], f.Categorical[req.Group], alpha)
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Welch t-test: %s by %s", req.Y, req.Group), f, t)
	res.add("t", t.T)
	res.add("df", t.DF)
	res.add("p", t.P)
	res.add("mean_diff", t.MeanDiff)
	res.add("cohen_d", t.CohenD)
	res.add("ci_low", t.CILow)
	res.add("ci_high", t.CIHigh)
	res.linef("%s: n=%d, mean %s, var %s", t.Group1, t.N1, num(t.Mean1), num(t.Var1))
	res.linef("%s: n=%d, mean %s, var %s", t.Group2, t.N2, num(t.Mean2), num(t.Var2))
	res.linef("t(%.2f) = %.3f, p = %s", t.DF, t.T, pval(t.P))
	res.linef("%s%% CI of mean difference (%s - %s): [%s, %s]",
		confidence(alpha), t.Group1, t.Group2, num(t.CILow), num(t.CIHigh))
	res.linef("Cohen's d = %.3f (%s)", t.CohenD, effectSize(math.Abs(t.CohenD)))
	return res, nil
}

func (r *Runner) paired(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.paired"
	if err := needColumns(op, "pair", req.Pair, 2); err != nil {
		return nil, err
	}
	f, err := tbl.Complete(req.Pair, nil)
	if err != nil {
		return nil, err
	}
	alpha := r.alpha(req)
	t, err := stats.PairedTTest(f.Numeric[req.Pair[0]], f.Numeric[req.Pair[1]], alpha)
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Paired t-test: %s vs %s", req.Pair[0], req.Pair[1]), f, t)
	res.add("t", t.T)
	res.add("df", t.DF)
	res.add("p", t.P)
	res.add("mean_diff", t.MeanDiff)
	res.add("d_z", t.DZ)
	res.add("ci_low", t.CILow)
	res.add("ci_high", t.CIHigh)
	res.linef("%d pairs: mean %s = %s, mean %s = %s", t.N, req.Pair[0], num(t.MeanX), req.Pair[1], num(t.MeanY))
	res.linef("mean difference %s (sd %s)", num(t.MeanDiff), num(t.SDDiff))
	res.linef("t(%.0f) = %.3f, p = %s", t.DF, t.T, pval(t.P))
	res.linef("%s%% CI of mean difference: [%s, %s]", confidence(alpha), num(t.CILow), num(t.CIHigh))
	res.linef("d_z = %.3f (%s)", t.DZ, effectSize(t.DZ))
	return res, nil
}

func (r *Runner) oneWay(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.anova"
	if err := needColumn(op, "y", req.Y); err != nil {
		return nil, err
	}
	group := req.Group
	if group == "" && len(req.Factors) == 1 {
		group = req.Factors[0]
	}
	if err := needColumn(op, "group", group); err != nil {
		return nil, err
	}
	f, err := tbl.Complete([]string{req.Y}, []string{group})
	if err != nil {
		return nil, err
	}
	a, err := stats.OneWayANOVA(f.Numeric[req.Y], f.Categorical[group])
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("One-way ANOVA: %s by %s", req.Y, group), f, a)
	res.add("F", a.F)
	res.add("df_between", float64(a.DFBetween))
	res.add("df_within", float64(a.DFWithin))
	res.add("p", a.P)
	res.add("eta_squared", a.EtaSquared)
	res.linef("F(%d, %d) = %.3f, p = %s", a.DFBetween, a.DFWithin, a.F, pval(a.P))
	res.linef("η² = %.3f", a.EtaSquared)

	groups := Table{Title: "groups", Columns: []string{group, "n", "mean", "sd"}}
	for _, g := range a.Groups {
		groups.Rows = append(groups.Rows, []string{g.Level, strconv.Itoa(g.N), num(g.Mean), num(g.SD)})
	}
	anova := Table{Title: "anova table", Columns: []string{"source", "SS", "df", "MS", "F", "p"}}
	anova.Rows = [][]string{
		{group, num(a.SSBetween), strconv.Itoa(a.DFBetween), num(a.MSBetween), num(a.F), pval(a.P)},
		{"Error", num(a.SSWithin), strconv.Itoa(a.DFWithin), num(a.MSWithin), "", ""},
		{"Total", num(a.SSTotal), strconv.Itoa(a.DFBetween + a.DFWithin), "", "", ""},
	}
	res.Tables = []Table{groups, anova}
	return res, nil
}

func (r *Runner) twoWay(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.anova2"
	if err := needColumn(op, "y", req.Y); err != nil {
		return nil, err
	}
	if err := needColumns(op, "factors", req.Factors, 2); err != nil {
		return nil, err
	}
	fa, fb := req.Factors[0], req.Factors[1]
	f, err := tbl.Complete([]string{req.Y}, req.Factors)
	if err != nil {
		return nil, err
	}
	a, err := stats.TwoWayANOVA(f.Numeric[req.Y], fa, f.Categorical[fa], fb, f.Categorical[fb])
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Two-way ANOVA (Type II): %s by %s × %s", req.Y, fa, fb), f, a)
	table := Table{Title: "anova table", Columns: []string{"source", "SS", "df", "MS", "F", "p"}}
	for i, e := range a.Effects {
		if e.Source == "Error" {
			res.add("df_error", float64(e.DF))
			table.Rows = append(table.Rows, []string{e.Source, num(e.SS), strconv.Itoa(e.DF), num(e.MS), "", ""})
			continue
		}
		key := []string{"A", "B", "AB"}[i]
		res.add("F_"+key, e.F)
		res.add("p_"+key, e.P)
		res.linef("%s: F(%d, %d) = %.3f, p = %s", e.Source, e.DF, a.Effects[len(a.Effects)-1].DF, e.F, pval(e.P))
		table.Rows = append(table.Rows, []string{e.Source, num(e.SS), strconv.Itoa(e.DF), num(e.MS), num(e.F), pval(e.P)})
	}
	res.linef("levels: %s = {%s}, %s = {%s}", fa, strings.Join(a.LevelsA, ", "), fb, strings.Join(a.LevelsB, ", "))
	res.linef("SS total = %s; Type II effect SS need not sum to it when cells are unbalanced", num(a.SSTotal))
	res.Tables = []Table{table}
	return res, nil
}

func (r *Runner) regression(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.regress"
	if err := needColumn(op, "y", req.Y); err != nil {
		return nil, err
	}
	if len(req.X) == 0 {
		return nil, staterr.Input(staterr.CodeEmptySelection, op, "at least one predictor (x) is required")
	}
	f, err := tbl.Complete(append([]string{req.Y}, req.X...), nil)
	if err != nil {
		return nil, err
	}
	reg, err := stats.Regression(f.Numeric[req.Y], columns(f, req.X), req.X)
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Multiple regression: %s on %s", req.Y, strings.Join(req.X, ", ")), f, reg)
	res.add("r2", reg.R2)
	res.add("adj_r2", reg.AdjR2)
	res.add("F", reg.F)
	res.add("df1", float64(reg.DF1))
	res.add("df2", float64(reg.DF2))
	res.add("p", reg.P)
	res.add("residual_se", reg.ResidualSE)
	res.Lines = append(res.Lines, reg.Formula(req.Y))
	res.linef("R² = %.4f, adjusted R² = %.4f", reg.R2, reg.AdjR2)
	res.linef("F(%d, %d) = %.3f, p = %s", reg.DF1, reg.DF2, reg.F, pval(reg.P))

	coef := Table{Title: "coefficients", Columns: []string{"term", "estimate", "std. error", "t", "p", "beta", "VIF"}}
	for i, c := range reg.Coefficients {
		beta, vif := "", ""
		if i > 0 {
			beta = num(c.Standardized)
			if c.VIF > 0 {
				vif = num(c.VIF)
			}
		}
		coef.Rows = append(coef.Rows, []string{c.Name, num(c.Estimate), num(c.StdErr), num(c.T), pval(c.P), beta, vif})
		if c.VIF > 10 {
			res.linef("%s: VIF %.1f indicates strong collinearity", c.Name, c.VIF)
		}
	}
	res.Tables = []Table{coef}
	res.Series = []Series{{Name: "residuals_vs_fitted", X: reg.Fitted, Y: reg.Residuals}}
	return res, nil
}

func (r *Runner) pca(tbl *dataset.Table, req Request) (*Result, error) {
	vars := numericVars(tbl, req.Vars)
	f, err := tbl.Complete(vars, nil)
	if err != nil {
		return nil, err
	}
	p, err := multivariate.PCA(vars, columns(f, vars))
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Principal component analysis (%d variables)", len(vars)), f, p)
	res.add("components", float64(len(p.Components)))
	res.add("kaiser_components", float64(p.KaiserCount()))
	res.add("pc1_explained", p.Components[0].Explained)
	for _, c := range p.Components {
		res.linef("PC%d: eigenvalue %.4f, %.1f%% of variance (cumulative %.1f%%)",
			c.Index, c.Eigenvalue, 100*c.Explained, 100*c.Cumulative)
	}

	shown := r.settings.LoadingComponents
	if shown > len(p.Components) {
		shown = len(p.Components)
	}
	load := Table{Title: "loadings", Columns: []string{"variable"}}
	for j := 0; j < shown; j++ {
		load.Columns = append(load.Columns, fmt.Sprintf("PC%d", j+1))
	}
	for i, v := range p.Variables {
		row := []string{v}
		for j := 0; j < shown; j++ {
			row = append(row, fmt.Sprintf("%.3f", p.Components[j].Loadings[i]))
		}
		load.Rows = append(load.Rows, row)
	}
	res.Tables = []Table{load}
	sx, sy := p.Scree()
	cx, cy := p.CumulativeCurve()
	res.Series = []Series{{Name: "scree", X: sx, Y: sy}, {Name: "cumulative_variance", X: cx, Y: cy}}
	return res, nil
}

func (r *Runner) factor(tbl *dataset.Table, req Request) (*Result, error) {
	vars := numericVars(tbl, req.Vars)
	f, err := tbl.Complete(vars, nil)
	if err != nil {
		return nil, err
	}
	cols := columns(f, vars)
	k, kaiser := req.NumFactors, false
	if k == 0 {
		p, err := multivariate.PCA(vars, cols)
		if err != nil {
			return nil, err
		}
		k, kaiser = p.KaiserCount(), true
	}
	fa, err := multivariate.FactorAnalysis(vars, cols, multivariate.FactorOptions{
		Factors:   k,
		Rotate:    req.Rotate,
		MaxIter:   r.settings.VarimaxMaxIter,
		Tolerance: r.settings.VarimaxTolerance,
	})
	if err != nil {
		return nil, err
	}
	rotation := "unrotated"
	if fa.Rotated {
		rotation = "varimax"
	}
	res := newResult(fmt.Sprintf("Factor analysis: %d factor(s), %s", fa.Factors, rotation), f, fa)
	res.add("factors", float64(fa.Factors))
	total := 0.0
	for _, p := range fa.Proportion {
		total += p
	}
	res.add("variance_explained", total)
	if kaiser {
		res.linef("Factor count %d chosen by the Kaiser criterion (eigenvalues > 1)", k)
	}
	if fa.Rotated {
		res.add("iterations", float64(fa.Iterations))
		if fa.Converged {
			res.linef("Varimax converged after %d iteration(s)", fa.Iterations)
		} else {
			res.linef("Varimax stopped after %d iteration(s) without converging", fa.Iterations)
		}
	}
	for j := 0; j < fa.Factors; j++ {
		res.linef("F%d: SS loadings %.4f, %.1f%% of variance", j+1, fa.SSLoadings[j], 100*fa.Proportion[j])
	}
	res.linef("total variance explained: %.1f%%", 100*total)

	load := Table{Title: "loadings", Columns: []string{"variable"}}
	for j := 0; j < fa.Factors; j++ {
		load.Columns = append(load.Columns, fmt.Sprintf("F%d", j+1))
	}
	load.Columns = append(load.Columns, "h²", "u²")
	for i, v := range fa.Variables {
		row := []string{v}
		for _, l := range fa.Loadings[i] {
			row = append(row, fmt.Sprintf("%.3f", l))
		}
		row = append(row, fmt.Sprintf("%.3f", fa.Communalities[i]), fmt.Sprintf("%.3f", fa.Uniquenesses[i]))
		load.Rows = append(load.Rows, row)
	}
	res.Tables = []Table{load}
	return res, nil
}

func (r *Runner) correlation(tbl *dataset.Table, req Request) (*Result, error) {
	vars := numericVars(tbl, req.Vars)
	f, err := tbl.Complete(vars, nil)
	if err != nil {
		return nil, err
	}
	c, err := stats.Correlation(vars, columns(f, vars))
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Pearson correlations (%d variables)", len(vars)), f, c)
	pairs := c.Pairs()
	strongest := 0.0
	for _, p := range pairs {
		if math.Abs(p.R) > math.Abs(strongest) {
			strongest = p.R
		}
		res.linef("%s ~ %s: r=%.3f, p = %s", p.A, p.B, p.R, pval(p.P))
	}
	res.add("pairs", float64(len(pairs)))
	res.add("strongest_r", strongest)

	m := Table{Title: "correlation matrix", Columns: append([]string{""}, c.Names...)}
	for i, name := range c.Names {
		row := []string{name}
		for j := range c.Names {
			cell := fmt.Sprintf("%.3f", c.R[i][j])
			if i != j {
				cell += stats.Stars(c.P[i][j])
			}
			row = append(row, cell)
		}
		m.Rows = append(m.Rows, row)
	}
	res.Tables = []Table{m}
	return res, nil
}

func (r *Runner) chiSquare(tbl *dataset.Table, req Request) (*Result, error) {
	const op = "analysis.chisq"
	if err := needColumns(op, "factors", req.Factors, 2); err != nil {
		return nil, err
	}
	f, err := tbl.Complete(nil, req.Factors)
	if err != nil {
		return nil, err
	}
	a, b := req.Factors[0], req.Factors[1]
	c, err := stats.ChiSquare(f.Categorical[a], f.Categorical[b])
	if err != nil {
		return nil, err
	}
	res := newResult(fmt.Sprintf("Chi-square test of independence: %s × %s", a, b), f, c)
	res.add("chi_sq", c.ChiSq)
	res.add("df", float64(c.DF))
	res.add("p", c.P)
	res.add("cramers_v", c.CramersV)
	res.linef("χ²(%d) = %.3f, p = %s", c.DF, c.ChiSq, pval(c.P))
	res.linef("Cramér's V = %.3f", c.CramersV)

	ct := Table{Title: "contingency table", Columns: append([]string{a + " \\ " + b}, c.ColLevels...)}
	for i, lvl := range c.RowLevels {
		row := []string{lvl}
		for j := range c.ColLevels {
			row = append(row, fmt.Sprintf("%d (%.1f)", c.Observed[i][j], c.Expected[i][j]))
		}
		ct.Rows = append(ct.Rows, row)
	}
	res.Tables = []Table{ct}
	return res, nil
}

func confidence(alpha float64) string {
	return strconv.FormatFloat(100*(1-alpha), 'g', 4, 64)
}

// effectSize labels |d| with Cohen's conventional thresholds.
func effectSize(d float64) string {
	switch {
	case d < 0.2:
		return "negligible"
	case d < 0.5:
		return "small"
	case d < 0.8:
		return "medium"
	default:
		return "large"
	}
}
