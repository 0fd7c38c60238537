package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
)

// DefaultOutlierThreshold is the robust |z| above which a value counts as an
// outlier.
const DefaultOutlierThreshold = 3.5

// minOutlierSample is the smallest column for which outliers are counted.
const minOutlierSample = 8

// Profile is a per-column descriptive summary of a table.
type Profile struct {
	Name    string          `json:"name" yaml:"name"`
	Rows    int             `json:"rows" yaml:"rows"`
	Columns []ColumnSummary `json:"columns" yaml:"columns"`
}

// ColumnSummary describes one column. Numeric fields are zero for
// categorical columns and vice versa.
type ColumnSummary struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	NonNull int    `json:"non_null" yaml:"non_null"`
	Missing int    `json:"missing" yaml:"missing"`

	Mean   float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	SD     float64 `json:"sd,omitempty" yaml:"sd,omitempty"`
	Min    float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Median float64 `json:"median,omitempty" yaml:"median,omitempty"`
	Max    float64 `json:"max,omitempty" yaml:"max,omitempty"`
	// Outliers counts values with robust |z| = 0.6745·|x-median|/MAD above
	// OutlierThreshold. Zero when MAD is zero or the column is short.
	Outliers         int     `json:"outliers,omitempty" yaml:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty" yaml:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty" yaml:"outlier_threshold,omitempty"`

	Unique    int             `json:"unique,omitempty" yaml:"unique,omitempty"`
	TopValues []CategoryCount `json:"top_values,omitempty" yaml:"top_values,omitempty"`
}

// CategoryCount is a label frequency.
type CategoryCount struct {
	Value string `json:"value" yaml:"value"`
	Count int    `json:"count" yaml:"count"`
}

// Describe profiles every column of the table. A non-positive threshold
// selects DefaultOutlierThreshold.
func Describe(tbl *dataset.Table, outlierThreshold float64) *Profile {
	if outlierThreshold <= 0 {
		outlierThreshold = DefaultOutlierThreshold
	}
	p := &Profile{Name: tbl.Name, Rows: tbl.Rows()}
	for _, c := range tbl.Columns() {
		c := c
		s := ColumnSummary{Name: c.Name, Kind: c.Kind.String(), NonNull: c.Present()}
		s.Missing = c.Len() - s.NonNull
		if c.Kind == dataset.Numeric {
			describeNumeric(&s, &c, outlierThreshold)
		} else {
			describeCategorical(&s, &c)
		}
		p.Columns = append(p.Columns, s)
	}
	return p
}

func describeNumeric(s *ColumnSummary, c *dataset.Column, threshold float64) {
	vals := make([]float64, 0, s.NonNull)
	for i, v := range c.Numbers {
		if !c.Missing[i] {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return
	}
	sort.Float64s(vals)
	s.Min, s.Max = vals[0], vals[len(vals)-1]
	s.Mean = stat.Mean(vals, nil)
	if len(vals) > 1 {
		s.SD = stat.StdDev(vals, nil)
	}
	median, mad := medianMAD(vals)
	s.Median = median
	if len(vals) < minOutlierSample {
		return
	}
	s.OutlierThreshold = threshold
	if mad == 0 {
		return
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > threshold {
			s.Outliers++
		}
		if az > s.OutliersMaxAbsZ {
			s.OutliersMaxAbsZ = az
		}
	}
}

func describeCategorical(s *ColumnSummary, c *dataset.Column) {
	counts := make(map[string]int)
	for i, l := range c.Labels {
		if !c.Missing[i] {
			counts[l]++
		}
	}
	tops := make([]CategoryCount, 0, len(counts))
	for k, v := range counts {
		tops = append(tops, CategoryCount{Value: k, Count: v})
	}
	sort.Slice(tops, func(i, j int) bool {
		if tops[i].Count == tops[j].Count {
			return tops[i].Value < tops[j].Value
		}
		return tops[i].Count > tops[j].Count
	})
	if len(tops) > 8 {
		tops = tops[:8]
	}
	s.Unique = len(counts)
	s.TopValues = tops
}

// medianMAD returns the median and median absolute deviation of sorted vals.
func medianMAD(sorted []float64) (median, mad float64) {
	median = quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	return median, quantile(dev, 0.5)
}

// quantile interpolates linearly between order statistics of sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Markdown renders the profile in the same sectioned layout as analysis
// results.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if p.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(p.Columns)))

	b.WriteString("[SCHEMA]\n")
	for _, c := range p.Columns {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case "numeric":
			if c.NonNull == 0 {
				break
			}
			b.WriteString(fmt.Sprintf("; min %.4g, median %.4g, max %.4g, mean %.4g, sd %.4g", c.Min, c.Median, c.Max, c.Mean, c.SD))
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.Outliers, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case "categorical":
			if len(c.TopValues) > 0 {
				b.WriteString("; top: ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", kv.Value, kv.Count))
				}
				if c.Unique > len(c.TopValues) {
					b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
