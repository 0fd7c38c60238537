package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
)

// Options controls how a file is read into a dataset.Table.
type Options struct {
	// Fs is the filesystem to read from. Defaults to the OS filesystem.
	Fs afero.Fs
	// Delimiter for CSV. If 0, inferred from the extension and header line.
	Delimiter rune
	// Number controls decimal and thousands separators; zero auto-detects.
	Number dataset.NumberFormat
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
	// Categorical forces the named columns to be categorical even when every
	// cell parses as a number (e.g. coded groups 1/2/3).
	Categorical []string
	// XLSX sheet selection: by name, otherwise by 1-based index.
	SheetName  string
	SheetIndex int
	Log        *zap.Logger
}

// Records is the raw grid read by a Loader: a header and string cells.
type Records struct {
	Header []string
	Rows   [][]string
	// Total counts data rows in the source, including any beyond MaxRows.
	Total int
}

// Loader reads one file format into raw records.
type Loader interface {
	CanParse(filename string) bool
	Records(data []byte, filename string, opt Options) (*Records, error)
}

var registry []Loader

// Register adds a loader implementation to the registry.
func Register(l Loader) {
	registry = append(registry, l)
}

func init() {
	Register(csvLoader{})
	Register(xlsxLoader{})
}

// ErrUnsupported indicates no loader accepts the file extension.
var ErrUnsupported = errors.New("unsupported data file format")

// LoadTable reads a CSV/TSV/XLSX file and types every column: numeric when
// all non-missing cells parse as numbers, categorical otherwise.
func LoadTable(path string, opt Options) (*dataset.Table, error) {
	if opt.Fs == nil {
		opt.Fs = afero.NewOsFs()
	}
	if opt.Log == nil {
		opt.Log = zap.NewNop()
	}
	var loader Loader
	for _, l := range registry {
		if l.CanParse(path) {
			loader = l
			break
		}
	}
	if loader == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	data, err := afero.ReadFile(opt.Fs, path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	rec, err := loader.Records(data, path, opt)
	if err != nil {
		return nil, err
	}
	if len(rec.Header) == 0 {
		return nil, fmt.Errorf("%s: no header row", filepath.Base(path))
	}
	if len(rec.Rows) < rec.Total {
		opt.Log.Warn("rows truncated",
			zap.String("file", filepath.Base(path)),
			zap.Int("read", len(rec.Rows)),
			zap.Int("total", rec.Total))
	}

	name := filepath.Base(path)
	if opt.SheetName != "" {
		name = fmt.Sprintf("%s (sheet: %s)", name, opt.SheetName)
	}
	tbl, err := buildTable(name, rec, opt)
	if err != nil {
		return nil, err
	}
	opt.Log.Debug("dataset loaded",
		zap.String("name", tbl.Name),
		zap.Int("rows", tbl.Rows()),
		zap.Int("columns", tbl.Width()),
		zap.Strings("numeric", tbl.NumericNames()))
	return tbl, nil
}

func buildTable(name string, rec *Records, opt Options) (*dataset.Table, error) {
	force := make(map[string]bool, len(opt.Categorical))
	for _, c := range opt.Categorical {
		force[strings.ToLower(strings.TrimSpace(c))] = true
	}
	headers := uniqueHeaders(rec.Header)
	cols := make([]dataset.Column, len(headers))
	for j, h := range headers {
		cells := make([]string, len(rec.Rows))
		for i, row := range rec.Rows {
			if j < len(row) {
				cells[i] = strings.TrimSpace(row[j])
			}
		}
		cols[j] = dataset.InferColumn(h, cells, opt.Number, force[strings.ToLower(h)])
	}
	return dataset.NewTable(name, cols...)
}

// uniqueHeaders names blank headers column_N and suffixes duplicates.
func uniqueHeaders(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		if n := seen[h]; n > 0 {
			seen[h] = n + 1
			h = fmt.Sprintf("%s_%d", h, n+1)
		}
		seen[h]++
		out[i] = h
	}
	return out
}
