// Package analysis turns a Request against a dataset.Table into a Result
// that the CLI renders as Markdown, JSON or YAML.
package analysis

import (
	"sort"
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// Kind names an analysis.
type Kind string

const (
	KindTTest      Kind = "ttest"
	KindPaired     Kind = "paired"
	KindANOVA      Kind = "anova"
	KindTwoWay     Kind = "anova2"
	KindRegression Kind = "regress"
	KindPCA        Kind = "pca"
	KindFactor     Kind = "factor"
	KindCorr       Kind = "corr"
	KindChiSquare  Kind = "chisq"
)

var kindAliases = map[string]Kind{
	"ttest": KindTTest, "t-test": KindTTest, "welch": KindTTest,
	"paired": KindPaired, "paired-ttest": KindPaired,
	"anova": KindANOVA, "anova1": KindANOVA, "oneway": KindANOVA,
	"anova2": KindTwoWay, "twoway": KindTwoWay,
	"regress": KindRegression, "regression": KindRegression, "ols": KindRegression,
	"pca": KindPCA,
	"factor": KindFactor, "fa": KindFactor,
	"corr": KindCorr, "correlation": KindCorr,
	"chisq": KindChiSquare, "chi2": KindChiSquare, "chisquare": KindChiSquare,
}

// ParseKind resolves a kind name or alias, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", staterr.Input(staterr.CodeInvalidOption, "analysis.ParseKind",
			"unknown analysis kind %q (want one of %s)", s, strings.Join(kindNames(), ", "))
	}
	return k, nil
}

// Kinds lists the canonical analysis kinds.
func Kinds() []Kind {
	return []Kind{KindTTest, KindPaired, KindANOVA, KindTwoWay, KindRegression, KindPCA, KindFactor, KindCorr, KindChiSquare}
}

func kindNames() []string {
	var out []string
	for _, k := range Kinds() {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}

// Request selects an analysis and the columns it reads. Which fields are
// required depends on Kind:
//
//	ttest, anova   Y (numeric), Group (categorical)
//	paired         Pair (two numeric)
//	anova2         Y, Factors (two categorical)
//	regress        Y, X (one or more numeric)
//	pca, corr      Vars (numeric; empty means every numeric column)
//	factor         Vars, NumFactors, Rotate
//	chisq          Factors (two categorical)
type Request struct {
	Name       string   `json:"name,omitempty" yaml:"name,omitempty"`
	Kind       Kind     `json:"kind" yaml:"kind"`
	Y          string   `json:"y,omitempty" yaml:"y,omitempty"`
	Group      string   `json:"group,omitempty" yaml:"group,omitempty"`
	Factors    []string `json:"factors,omitempty" yaml:"factors,omitempty"`
	X          []string `json:"x,omitempty" yaml:"x,omitempty"`
	Vars       []string `json:"vars,omitempty" yaml:"vars,omitempty"`
	Pair       []string `json:"pair,omitempty" yaml:"pair,omitempty"`
	NumFactors int      `json:"n_factors,omitempty" yaml:"n_factors,omitempty"`
	Rotate     bool     `json:"rotate,omitempty" yaml:"rotate,omitempty"`
	// Alpha overrides the runner's significance level when positive.
	Alpha float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
}

// Label is the request name, or its kind when unnamed.
func (r Request) Label() string {
	if r.Name != "" {
		return r.Name
	}
	return string(r.Kind)
}

// CategoricalColumns lists the columns this request reads as labels. The CLI
// forces them categorical at load time so coded groups (1/2/3) work.
func (r Request) CategoricalColumns() []string {
	var out []string
	if r.Group != "" {
		out = append(out, r.Group)
	}
	return append(out, r.Factors...)
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// normalized trims column names and splits comma-joined lists.
func (r Request) normalized() Request {
	r.Y = strings.TrimSpace(r.Y)
	r.Group = strings.TrimSpace(r.Group)
	r.Factors = trimAll(r.Factors)
	r.X = trimAll(r.X)
	r.Vars = trimAll(r.Vars)
	r.Pair = trimAll(r.Pair)
	return r
}
