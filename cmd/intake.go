package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/KaramelBytes/statloom-cli/internal/analysis"
	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/parser"
	"github.com/KaramelBytes/statloom-cli/internal/project"
)

// intakeFlags are the file-reading flags shared by every command that loads
// a dataset.
type intakeFlags struct {
	delimiter   string
	decimal     string
	thousands   string
	maxRows     int
	sheetName   string
	sheetIndex  int
	categorical []string
}

func (f *intakeFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab' (inferred if omitted)")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.IntVar(&f.maxRows, "max-rows", -1, "maximum rows to read (0 = unlimited, default from config)")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to read")
	fs.IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.StringSliceVar(&f.categorical, "categorical", nil, "columns to read as categorical even when numeric (repeatable)")
}

// options resolves the flags against the global config. extra lists columns
// the analysis itself needs as categorical.
func (f *intakeFlags) options(extra ...string) (parser.Options, error) {
	opt := parser.Options{
		Fs:          afero.NewOsFs(),
		Log:         logger,
		SheetName:   f.sheetName,
		SheetIndex:  f.sheetIndex,
		Categorical: append(append([]string(nil), f.categorical...), extra...),
	}
	switch f.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
	}

	decimal, thousands := f.decimal, f.thousands
	if cfg != nil {
		if decimal == "" {
			decimal = cfg.DecimalSeparator
		}
		if thousands == "" {
			thousands = cfg.ThousandsSeparator
		}
	}
	switch strings.ToLower(strings.TrimSpace(decimal)) {
	case ",", "comma":
		opt.Number.DecimalSeparator = ','
	case ".", "dot":
		opt.Number.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", decimal)
	}
	switch strings.ToLower(thousands) {
	case ",":
		opt.Number.ThousandsSeparator = ','
	case ".":
		opt.Number.ThousandsSeparator = '.'
	case "space", " ":
		opt.Number.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", thousands)
	}
	if opt.Number.DecimalSeparator != 0 && opt.Number.DecimalSeparator == opt.Number.ThousandsSeparator {
		return opt, fmt.Errorf("decimal and thousands separators must differ")
	}

	switch {
	case f.maxRows >= 0:
		opt.MaxRows = f.maxRows
	case cfg != nil:
		opt.MaxRows = cfg.MaxRows
	}
	return opt, nil
}

// load reads path into a table.
func (f *intakeFlags) load(path string, extra ...string) (*dataset.Table, error) {
	opt, err := f.options(extra...)
	if err != nil {
		return nil, err
	}
	return parser.LoadTable(path, opt)
}

// resolveDataPath lets a project's registered dataset (by ID or name) stand
// in for a file path that does not exist.
func resolveDataPath(p *project.Project, ref string) string {
	if p == nil {
		return ref
	}
	if _, err := os.Stat(ref); err == nil {
		return ref
	}
	if d, ok := p.FindDataset(ref); ok {
		logger.Debug("dataset resolved from project", zap.String("ref", ref), zap.String("path", d.Path))
		return d.Path
	}
	return ref
}

// runnerSettings maps the global config onto analysis settings.
func runnerSettings() analysis.Settings {
	s := analysis.DefaultSettings()
	if cfg == nil {
		return s
	}
	s.Alpha = cfg.Alpha
	s.VarimaxMaxIter = cfg.VarimaxMaxIter
	s.VarimaxTolerance = cfg.VarimaxTolerance
	s.LoadingComponents = cfg.PCALoadingComponents
	return s
}

// newRunner applies a project's alpha override, if any, on top of the
// global settings.
func newRunner(p *project.Project) *analysis.Runner {
	s := runnerSettings()
	if p != nil && p.Config != nil && p.Config.Alpha > 0 {
		s.Alpha = p.Config.Alpha
	}
	return analysis.NewRunner(logger, s)
}

// resolveFormat picks the --format flag, then the output file extension,
// then the configured default.
func resolveFormat(flag, output string) (analysis.Format, error) {
	if flag != "" {
		return analysis.ParseFormat(flag)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".json":
		return analysis.FormatJSON, nil
	case ".yaml", ".yml":
		return analysis.FormatYAML, nil
	case ".md":
		return analysis.FormatMarkdown, nil
	}
	if cfg != nil {
		return analysis.ParseFormat(cfg.OutputFormat)
	}
	return analysis.FormatMarkdown, nil
}

// emit writes body to output when set, otherwise to stdout.
func emit(body []byte, output, what string) error {
	if output == "" {
		fmt.Print(string(body))
		if len(body) > 0 && body[len(body)-1] != '\n' {
			fmt.Println()
		}
		return nil
	}
	if err := os.WriteFile(output, body, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("✓ Wrote %s to %s\n", what, output)
	logger.Debug("output written", zap.String("path", output), zap.Int("bytes", len(body)))
	return nil
}
