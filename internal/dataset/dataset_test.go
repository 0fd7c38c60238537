package dataset_test

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/KaramelBytes/statloom-cli/internal/dataset"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

func sampleTable(t *testing.T) *dataset.Table {
	t.Helper()
	tbl, err := dataset.NewTable("sample",
		dataset.NewNumericColumn("score", []float64{1, 2, math.NaN(), 4, 5}),
		dataset.NewNumericColumn("age", []float64{30, math.NaN(), 40, 50, 60}),
		dataset.NewCategoricalColumn("group", []string{"a", "b", "a", "", "b"}),
	)
	if err != nil {
		t.Fatalf("new table: %v", err)
	}
	return tbl
}

func inputErr(code string) error {
	return &staterr.Error{Kind: staterr.KindInput, Code: code}
}

func TestCompleteDropsRowsWithMissingCells(t *testing.T) {
	tbl := sampleTable(t)

	f, err := tbl.Complete([]string{"score"}, []string{"group"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if f.Rows != 3 || f.Dropped != 2 {
		t.Fatalf("rows %d dropped %d, want 3 and 2", f.Rows, f.Dropped)
	}
	if !reflect.DeepEqual(f.Numeric["score"], []float64{1, 2, 5}) {
		t.Fatalf("score = %v", f.Numeric["score"])
	}
	if !reflect.DeepEqual(f.Categorical["group"], []string{"a", "b", "b"}) {
		t.Fatalf("group = %v", f.Categorical["group"])
	}

	f, err = tbl.Complete([]string{"score", "age"}, nil)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !reflect.DeepEqual(f.Numeric["score"], []float64{1, 4, 5}) || !reflect.DeepEqual(f.Numeric["age"], []float64{30, 50, 60}) {
		t.Fatalf("unexpected complete cases %v", f.Numeric)
	}
}

func TestCompleteRejectsBadSelections(t *testing.T) {
	tbl := sampleTable(t)
	cases := []struct {
		name        string
		numeric     []string
		categorical []string
		want        error
	}{
		{"empty", nil, nil, inputErr(staterr.CodeEmptySelection)},
		{"unknown", []string{"nope"}, nil, inputErr(staterr.CodeUnknownColumn)},
		{"categorical as numeric", []string{"group"}, nil, inputErr(staterr.CodeWrongColumnType)},
		{"numeric as categorical", nil, []string{"score"}, staterr.ErrInput},
	}
	for _, tc := range cases {
		if _, err := tbl.Complete(tc.numeric, tc.categorical); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestNewTableRejectsRaggedColumns(t *testing.T) {
	_, err := dataset.NewTable("bad",
		dataset.NewNumericColumn("x", []float64{1, 2}),
		dataset.NewNumericColumn("y", []float64{1, 2, 3}),
	)
	if !errors.Is(err, inputErr(staterr.CodeLengthMismatch)) {
		t.Fatalf("expected length mismatch, got %v", err)
	}
}

func TestCoerceAcceptanceOrder(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{float64(1.5), 1.5},
		{float32(2.5), 2.5},
		{int(-3), -3},
		{int64(7), 7},
		{uint8(9), 9},
		{json.Number("1e3"), 1000},
		{"12.5%", 12.5},
		{"1.000,5", 1000.5},
		{"0,5", 0.5},
		{"1,000", 1000},
	}
	for _, tc := range cases {
		got, err := dataset.Coerce(tc.in)
		if err != nil {
			t.Errorf("Coerce(%#v): %v", tc.in, err)
			continue
		}
		if math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("Coerce(%#v) = %g, want %g", tc.in, got, tc.want)
		}
	}

	rejects := []struct {
		in   any
		want error
	}{
		{nil, inputErr(staterr.CodeMissingValue)},
		{true, inputErr(staterr.CodeUnsupportedType)},
		{"abc", inputErr(staterr.CodeUnsupportedType)},
		{math.Inf(1), staterr.ErrInput},
	}
	for _, tc := range rejects {
		if _, err := dataset.Coerce(tc.in); !errors.Is(err, tc.want) {
			t.Errorf("Coerce(%#v): got %v, want %v", tc.in, err, tc.want)
		}
	}
}

func TestCoerceLabel(t *testing.T) {
	if s, err := dataset.CoerceLabel(3); err != nil || s != "3" {
		t.Fatalf("CoerceLabel(3) = %q, %v", s, err)
	}
	if s, err := dataset.CoerceLabel(" ctrl "); err != nil || s != "ctrl" {
		t.Fatalf("CoerceLabel(\" ctrl \") = %q, %v", s, err)
	}
	if _, err := dataset.CoerceLabel(time.Now()); !errors.Is(err, staterr.ErrInput) {
		t.Fatalf("expected input error for a time value, got %v", err)
	}
	if _, err := dataset.CoerceLabel("  "); !errors.Is(err, inputErr(staterr.CodeMissingValue)) {
		t.Fatalf("expected missing value for a blank label, got %v", err)
	}
}

func TestInferColumn(t *testing.T) {
	c := dataset.InferColumn("x", []string{"1", "NA", "3.5"}, dataset.NumberFormat{}, false)
	if c.Kind != dataset.Numeric || c.Present() != 2 {
		t.Fatalf("kind %v with %d present, want numeric with 2", c.Kind, c.Present())
	}
	if !reflect.DeepEqual(c.Missing, []bool{false, true, false}) {
		t.Fatalf("missing = %v", c.Missing)
	}

	if c = dataset.InferColumn("g", []string{"1", "2", "x"}, dataset.NumberFormat{}, false); c.Kind != dataset.Categorical {
		t.Fatalf("a non-numeric cell should make the column categorical")
	}

	c = dataset.InferColumn("code", []string{"1", "2", "1"}, dataset.NumberFormat{}, true)
	if c.Kind != dataset.Categorical || !reflect.DeepEqual(c.Labels, []string{"1", "2", "1"}) {
		t.Fatalf("forced categorical column: kind %v labels %v", c.Kind, c.Labels)
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	a := sampleTable(t)
	b := sampleTable(t)
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("identical tables have different fingerprints")
	}
	if len(a.Fingerprint()) != 16 {
		t.Fatalf("fingerprint %q is not 16 hex digits", a.Fingerprint())
	}

	c, err := dataset.NewTable("sample",
		dataset.NewNumericColumn("score", []float64{1, 2, math.NaN(), 4, 6}),
		dataset.NewNumericColumn("age", []float64{30, math.NaN(), 40, 50, 60}),
		dataset.NewCategoricalColumn("group", []string{"a", "b", "a", "", "b"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Fatalf("changing a value should change the fingerprint")
	}
}
