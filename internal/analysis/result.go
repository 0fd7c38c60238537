package analysis

import (
	"fmt"
	"math"
	"strings"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
	"github.com/KaramelBytes/statloom-cli/internal/stats"
	"github.com/KaramelBytes/statloom-cli/internal/utils"
)

// Stat is a named scalar statistic.
type Stat struct {
	Name  string  `json:"name" yaml:"name"`
	Value float64 `json:"value" yaml:"value"`
}

// Series is an ordered set of (x, y) points, e.g. a scree curve.
type Series struct {
	Name string    `json:"name" yaml:"name"`
	X    []float64 `json:"x" yaml:"x"`
	Y    []float64 `json:"y" yaml:"y"`
}

// Table is a rendered grid shown in Markdown output only; the same numbers
// are available in Detail for JSON and YAML.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Result is the outcome of one analysis request.
type Result struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Title   string `json:"title" yaml:"title"`
	Dataset string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	// Rows is the number of complete cases analysed; Dropped counts rows
	// removed for a missing value in one of the selected columns.
	Rows    int      `json:"rows" yaml:"rows"`
	Dropped int      `json:"dropped" yaml:"dropped"`
	Stats   []Stat   `json:"stats" yaml:"stats"`
	Lines   []string `json:"lines" yaml:"lines"`
	Series  []Series `json:"series,omitempty" yaml:"series,omitempty"`
	Tables  []Table  `json:"-" yaml:"-"`
	Detail  any      `json:"detail" yaml:"detail"`
}

// Stat returns the named statistic.
func (r *Result) Stat(name string) (float64, bool) {
	for _, s := range r.Stats {
		if s.Name == name {
			return s.Value, true
		}
	}
	return 0, false
}

func (r *Result) add(name string, v float64) { r.Stats = append(r.Stats, Stat{Name: name, Value: v}) }

func (r *Result) linef(format string, args ...any) {
	r.Lines = append(r.Lines, fmt.Sprintf(format, args...))
}

// Format is an output encoding.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts md|markdown, json and yaml|yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", staterr.Input(staterr.CodeInvalidOption, "analysis.ParseFormat", "unsupported format %q (use md|json|yaml)", s)
	}
}

// Ext is the file extension for the format.
func (f Format) Ext() string {
	if f == FormatMarkdown {
		return ".md"
	}
	return "." + string(f)
}

// Encode renders v in the given format. Markdown requires v to implement
// Markdown() string.
func Encode(v any, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		b, err := utils.PrettyJSON(v)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	case FormatYAML:
		return utils.PrettyYAML(v)
	default:
		m, ok := v.(interface{ Markdown() string })
		if !ok {
			return nil, fmt.Errorf("%T cannot be rendered as markdown", v)
		}
		return []byte(m.Markdown()), nil
	}
}

// Markdown renders a compact report.
func (r *Result) Markdown() string {
	var b strings.Builder
	b.WriteString("[ANALYSIS]\n")
	b.WriteString(r.Title)
	b.WriteString("\n")
	if r.Dataset != "" {
		b.WriteString(fmt.Sprintf("Dataset: %s\n", r.Dataset))
	}
	if r.Dropped > 0 {
		b.WriteString(fmt.Sprintf("Rows used: %d (dropped %d with missing values)\n", r.Rows, r.Dropped))
	} else {
		b.WriteString(fmt.Sprintf("Rows used: %d\n", r.Rows))
	}

	if len(r.Stats) > 0 {
		b.WriteString("\n[STATISTICS]\n")
		for _, s := range r.Stats {
			b.WriteString(fmt.Sprintf("- %s: %s\n", s.Name, num(s.Value)))
		}
	}
	if len(r.Lines) > 0 {
		b.WriteString("\n[SUMMARY]\n")
		for _, l := range r.Lines {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
	for _, t := range r.Tables {
		b.WriteString("\n[")
		b.WriteString(strings.ToUpper(t.Title))
		b.WriteString("]\n")
		writeTable(&b, t.Columns, t.Rows)
	}
	if len(r.Series) > 0 {
		b.WriteString("\n[SERIES]\n")
		for _, s := range r.Series {
			b.WriteString(fmt.Sprintf("- %s (%d points):", s.Name, len(s.X)))
			lim := len(s.X)
			if lim > 12 {
				lim = 12
			}
			for i := 0; i < lim; i++ {
				b.WriteString(fmt.Sprintf(" (%s, %s)", num(s.X[i]), num(s.Y[i])))
			}
			if lim < len(s.X) {
				b.WriteString(" ...")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func writeTable(b *strings.Builder, cols []string, rows [][]string) {
	b.WriteString("| ")
	b.WriteString(strings.Join(cols, " | "))
	b.WriteString(" |\n|")
	for range cols {
		b.WriteString(" --- |")
	}
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString("| ")
		for i := range cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			if i < len(row) {
				b.WriteString(safeVal(row[i]))
			}
		}
		b.WriteString(" |\n")
	}
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func num(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

// pval formats a p-value with its significance marker.
func pval(p float64) string {
	s := fmt.Sprintf("%.4f", p)
	if p < 1e-4 {
		s = "<0.0001"
	}
	if st := stats.Stars(p); st != "" {
		s += " " + st
	}
	return s
}
