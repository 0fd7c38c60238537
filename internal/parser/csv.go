package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type csvLoader struct{}

func (csvLoader) CanParse(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".csv") || strings.HasSuffix(name, ".tsv")
}

func (csvLoader) Records(data []byte, filename string, opt Options) (*Records, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(filename, data)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Records{}, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	out := &Records{Header: append([]string(nil), header...)}
	maxRows := opt.MaxRows
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", out.Total+1, err)
		}
		out.Total++
		if maxRows > 0 && len(out.Rows) >= maxRows {
			continue
		}
		row := make([]string, len(header))
		copy(row, rec)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// sniffDelimiter picks tab for .tsv, otherwise the most frequent of ',', ';'
// and tab in the header line, defaulting to comma.
func sniffDelimiter(filename string, data []byte) rune {
	if strings.HasSuffix(strings.ToLower(filename), ".tsv") {
		return '\t'
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}
