package stats

import (
	"math"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// ChiSquareResult is a chi-square test of independence between two factors.
type ChiSquareResult struct {
	RowLevels []string    `json:"row_levels" yaml:"row_levels"`
	ColLevels []string    `json:"col_levels" yaml:"col_levels"`
	Observed  [][]int     `json:"observed" yaml:"observed"`
	Expected  [][]float64 `json:"expected" yaml:"expected"`
	ChiSq     float64     `json:"chi_sq" yaml:"chi_sq"`
	DF        int         `json:"df" yaml:"df"`
	P         float64     `json:"p" yaml:"p"`
	CramersV  float64     `json:"cramers_v" yaml:"cramers_v"`
	N         int         `json:"n" yaml:"n"`
}

// ChiSquare cross-tabulates a against b and tests independence. Levels are
// sorted lexicographically on both axes.
func ChiSquare(a, b []string) (*ChiSquareResult, error) {
	const op = "stats.ChiSquare"
	if len(a) != len(b) {
		return nil, staterr.Input(staterr.CodeLengthMismatch, op, "factors have %d and %d labels", len(a), len(b))
	}
	rows, cols := design.Levels(a), design.Levels(b)
	if len(rows) < 2 || len(cols) < 2 {
		return nil, staterr.New(staterr.KindDegenerateFactor, staterr.CodeTooFewLevels, op,
			"both factors need at least 2 levels (got %d and %d)", len(rows), len(cols))
	}
	ri := indexOf(rows)
	ci := indexOf(cols)
	obs := make([][]int, len(rows))
	for i := range obs {
		obs[i] = make([]int, len(cols))
	}
	for i := range a {
		obs[ri[a[i]]][ci[b[i]]]++
	}

	n := float64(len(a))
	rowSum := make([]float64, len(rows))
	colSum := make([]float64, len(cols))
	for i := range obs {
		for j, o := range obs[i] {
			rowSum[i] += float64(o)
			colSum[j] += float64(o)
		}
	}
	res := &ChiSquareResult{
		RowLevels: rows, ColLevels: cols,
		Observed: obs,
		Expected: make([][]float64, len(rows)),
		DF:       (len(rows) - 1) * (len(cols) - 1),
		N:        len(a),
	}
	for i := range obs {
		res.Expected[i] = make([]float64, len(cols))
		for j, o := range obs[i] {
			e := rowSum[i] * colSum[j] / n
			res.Expected[i][j] = e
			d := float64(o) - e
			res.ChiSq += d * d / e
		}
	}
	res.P = chiSquareSurvival(res.ChiSq, float64(res.DF))
	minDim := math.Min(float64(len(rows)-1), float64(len(cols)-1))
	res.CramersV = math.Sqrt(res.ChiSq / (n * minDim))
	if err := finite(op, staterr.KindSampleSize, []string{"χ²", "p", "Cramér's V"}, res.ChiSq, res.P, res.CramersV); err != nil {
		return nil, err
	}
	return res, nil
}

func indexOf(levels []string) map[string]int {
	m := make(map[string]int, len(levels))
	for i, l := range levels {
		m[l] = i
	}
	return m
}
