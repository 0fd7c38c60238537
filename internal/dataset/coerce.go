package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

// NumberFormat controls locale-aware numeric parsing. A zero separator means
// auto-detect per value.
type NumberFormat struct {
	DecimalSeparator   rune
	ThousandsSeparator rune
}

var missingTokens = map[string]struct{}{
	"": {}, "na": {}, "n/a": {}, "nan": {}, "null": {}, "none": {}, "-": {},
}

// IsMissingToken reports whether a raw cell denotes a missing value.
func IsMissingToken(s string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Coerce converts a cell value to float64. Accepted sources, in order:
// nil (missing), float64, float32, signed integers, unsigned integers,
// json.Number, and strings parsed with the default NumberFormat.
// Anything else is an unsupported_type input error.
func Coerce(v any) (float64, error) {
	return CoerceWith(v, NumberFormat{})
}

// CoerceWith is Coerce with an explicit string number format.
func CoerceWith(v any, nf NumberFormat) (float64, error) {
	const op = "dataset.Coerce"
	var f float64
	switch x := v.(type) {
	case nil:
		return 0, staterr.Input(staterr.CodeMissingValue, op, "value is missing")
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, staterr.Input(staterr.CodeUnsupportedType, op, "%q is not a number", x.String())
		}
		f = p
	case string:
		if IsMissingToken(x) {
			return 0, staterr.Input(staterr.CodeMissingValue, op, "value is missing")
		}
		p, ok := ParseNumber(x, nf)
		if !ok {
			return 0, staterr.Input(staterr.CodeUnsupportedType, op, "%q is not a number", x)
		}
		f = p
	default:
		return 0, staterr.Input(staterr.CodeUnsupportedType, op, "cannot use %T as a number", v)
	}
	if math.IsNaN(f) {
		return 0, staterr.Input(staterr.CodeMissingValue, op, "value is NaN")
	}
	if math.IsInf(f, 0) {
		return 0, staterr.Input(staterr.CodeUnsupportedType, op, "value is infinite")
	}
	return f, nil
}

// CoerceLabel converts a cell value to a categorical label. Strings, numbers
// and booleans are accepted; nil and blank strings are missing.
func CoerceLabel(v any) (string, error) {
	const op = "dataset.CoerceLabel"
	switch v.(type) {
	case nil:
		return "", staterr.Input(staterr.CodeMissingValue, op, "value is missing")
	case time.Time, time.Duration, []byte:
		return "", staterr.Input(staterr.CodeUnsupportedType, op, "cannot use %T as a label", v)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", staterr.Wrap(staterr.KindInput, staterr.CodeUnsupportedType, op, err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", staterr.Input(staterr.CodeMissingValue, op, "value is missing")
	}
	return s, nil
}

// ParseNumber parses a numeric string, tolerating percent signs, thousands
// separators and either '.' or ',' as decimal mark.
func ParseNumber(s string, nf NumberFormat) (float64, bool) {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	dec := nf.DecimalSeparator
	thou := nf.ThousandsSeparator
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0 && strings.Count(raw, ",") == 1 && len(raw)-cpos-1 != 3:
			// "0,5" is a decimal comma; "1,000" reads as a grouped integer.
			dec = ','
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// InferColumn types a column of raw cells: numeric when every non-missing
// cell parses as a number (and forceCategorical is false), categorical
// otherwise. A column with no present cells is categorical.
func InferColumn(name string, cells []string, nf NumberFormat, forceCategorical bool) Column {
	if !forceCategorical {
		nums := make([]float64, len(cells))
		miss := make([]bool, len(cells))
		present := 0
		numeric := true
		for i, cell := range cells {
			if IsMissingToken(cell) {
				nums[i] = math.NaN()
				miss[i] = true
				continue
			}
			f, err := CoerceWith(cell, nf)
			if err != nil {
				numeric = false
				break
			}
			nums[i] = f
			present++
		}
		if numeric && present > 0 {
			return Column{Name: name, Kind: Numeric, Numbers: nums, Missing: miss}
		}
	}
	labels := make([]string, len(cells))
	for i, cell := range cells {
		if !IsMissingToken(cell) {
			labels[i] = cell
		}
	}
	return NewCategoricalColumn(name, labels)
}
