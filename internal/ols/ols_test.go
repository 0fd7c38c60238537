package ols_test

import (
	"errors"
	"math"
	"testing"

	"github.com/KaramelBytes/statloom-cli/internal/design"
	"github.com/KaramelBytes/statloom-cli/internal/ols"
	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func solveLine(t *testing.T, x, y []float64) *ols.Fit {
	t.Helper()
	m, err := design.Assemble(len(x), []*design.Block{design.NumericBlock("x", x)}, true)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	fit, err := ols.Solve(y, m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	return fit
}

func TestSolveSimpleLine(t *testing.T) {
	fit := solveLine(t, []float64{1, 2, 3, 4, 5}, []float64{2.1, 3.9, 6.2, 7.8, 10.1})
	if len(fit.Names) != 2 || fit.Names[0] != "(Intercept)" || fit.Names[1] != "x" {
		t.Fatalf("unexpected names %v", fit.Names)
	}
	if !near(fit.Beta[1], 1.99, 1e-9) || !near(fit.Beta[0], 0.05, 1e-9) {
		t.Fatalf("unexpected coefficients %v", fit.Beta)
	}
	if fit.DFResid() != 3 {
		t.Fatalf("df = %d, want 3", fit.DFResid())
	}

	sum := 0.0
	for _, r := range fit.Residuals {
		sum += r
	}
	if !near(sum, 0, 1e-9) {
		t.Fatalf("residuals sum to %g", sum)
	}
	if !near(fit.MSE(), fit.SSE/3, 1e-15) {
		t.Fatalf("MSE %g != SSE/3", fit.MSE())
	}
	for i, f := range fit.Fitted {
		if want := fit.Beta[0] + fit.Beta[1]*float64(i+1); !near(f, want, 1e-9) {
			t.Fatalf("fitted[%d] = %g, want %g", i, f, want)
		}
	}

	se, err := fit.StdErrors()
	if err != nil {
		t.Fatalf("std errors: %v", err)
	}
	if len(se) != 2 || !(se[1] > 0) {
		t.Fatalf("unexpected std errors %v", se)
	}
}

func TestSolveLargePredictorOffset(t *testing.T) {
	noise := []float64{0.3, -0.2, 0.1, -0.4, 0.25, -0.05, 0.15, -0.3, 0.2, -0.1, 0.05, 0.0}
	n := len(noise)
	base := make([]float64, n)
	y := make([]float64, n)
	for i := range base {
		base[i] = float64(i)
		y[i] = 3 + 2*float64(i) + noise[i]
	}
	ref := solveLine(t, base, y)
	refSE, err := ref.StdErrors()
	if err != nil {
		t.Fatalf("std errors: %v", err)
	}

	for _, offset := range []float64{1e4, 1e5, 1e6, 1e7} {
		x := make([]float64, n)
		for i := range x {
			x[i] = offset + float64(i)
		}
		fit := solveLine(t, x, y)
		if !near(fit.Beta[1], ref.Beta[1], 1e-9) {
			t.Fatalf("offset %g: slope %g, want %g", offset, fit.Beta[1], ref.Beta[1])
		}
		if want := ref.Beta[0] - offset*ref.Beta[1]; !near(fit.Beta[0], want, 1e-9*offset) {
			t.Fatalf("offset %g: intercept %g, want %g", offset, fit.Beta[0], want)
		}
		if !near(fit.SSE, ref.SSE, 1e-9) {
			t.Fatalf("offset %g: SSE %g, want %g", offset, fit.SSE, ref.SSE)
		}
		se, err := fit.StdErrors()
		if err != nil {
			t.Fatalf("offset %g: std errors: %v", offset, err)
		}
		if !near(se[1], refSE[1], 1e-9) {
			t.Fatalf("offset %g: slope SE %g, want %g", offset, se[1], refSE[1])
		}
	}
}

func TestSolveRejectsTooFewRows(t *testing.T) {
	m, err := design.Assemble(2, []*design.Block{design.NumericBlock("x", []float64{1, 2})}, true)
	if err != nil {
		t.Fatal(err)
	}
	_, err = ols.Solve([]float64{1, 2}, m)
	if !errors.Is(err, &staterr.Error{Kind: staterr.KindSampleSize, Code: staterr.CodeInsufficientObs}) {
		t.Fatalf("expected insufficient observations, got %v", err)
	}
}

func TestSolveRejectsCollinearDesign(t *testing.T) {
	x := []float64{1, 3, 2, 5, 4, 7}
	shifted := make([]float64, len(x))
	for i, v := range x {
		shifted[i] = 1e6 + v
	}
	cases := map[string][]*design.Block{
		"duplicate": {design.NumericBlock("x", x), design.NumericBlock("x_copy", x)},
		"offset":    {design.NumericBlock("x", x), design.NumericBlock("x_shifted", shifted)},
		"constant":  {design.NumericBlock("x", x), design.NumericBlock("c", []float64{4, 4, 4, 4, 4, 4})},
	}
	for name, blocks := range cases {
		m, err := design.Assemble(6, blocks, true)
		if err != nil {
			t.Fatalf("%s: assemble: %v", name, err)
		}
		_, err = ols.Solve([]float64{1, 2, 3, 4, 5, 6}, m)
		if !errors.Is(err, staterr.ErrSingularMatrix) || staterr.CodeOf(err) != staterr.CodeSingularDesign {
			t.Fatalf("%s: expected singular design, got %v", name, err)
		}
	}
}

func TestPerfectFitHasZeroVarianceErrors(t *testing.T) {
	fit := solveLine(t, []float64{1, 2, 3, 4}, []float64{3, 5, 7, 9})
	if !near(fit.SSE, 0, 1e-20) {
		t.Fatalf("SSE = %g, want 0", fit.SSE)
	}
	if _, err := fit.StdErrors(); !errors.Is(err, staterr.ErrZeroVariance) {
		t.Fatalf("expected zero variance, got %v", err)
	}
}
