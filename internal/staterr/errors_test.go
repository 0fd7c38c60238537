package staterr_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/KaramelBytes/statloom-cli/internal/staterr"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := staterr.New(staterr.KindSingularMatrix, staterr.CodeSingularDesign, "ols.Fit", "X'X is not positive definite")
	wrapped := fmt.Errorf("regression: %w", err)

	if !errors.Is(wrapped, staterr.ErrSingularMatrix) {
		t.Fatalf("wrapped error should match ErrSingularMatrix")
	}
	if errors.Is(wrapped, staterr.ErrInput) || errors.Is(wrapped, staterr.ErrZeroVariance) {
		t.Fatalf("wrapped error matches a foreign kind")
	}

	kind, ok := staterr.KindOf(wrapped)
	if !ok || kind != staterr.KindSingularMatrix {
		t.Fatalf("KindOf = %v, %v", kind, ok)
	}
	if got := staterr.CodeOf(wrapped); got != staterr.CodeSingularDesign {
		t.Fatalf("CodeOf = %q", got)
	}
	if got := err.Error(); got != "ols.Fit: X'X is not positive definite" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestErrorMatchesKindAndCode(t *testing.T) {
	err := staterr.Input(staterr.CodeLengthMismatch, "stats.PairedTTest", "x has 3 values, y has 4")
	if !errors.Is(err, &staterr.Error{Kind: staterr.KindInput, Code: staterr.CodeLengthMismatch}) {
		t.Fatalf("expected a kind and code match")
	}
	if errors.Is(err, &staterr.Error{Kind: staterr.KindInput, Code: staterr.CodeUnknownColumn}) {
		t.Fatalf("matched the wrong code")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("svd did not converge")
	err := staterr.Wrap(staterr.KindSingularMatrix, staterr.CodeNotConverged, "linalg.SVD", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if !strings.Contains(err.Error(), "linalg.SVD: singular matrix: svd did not converge") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestKindOfUntagged(t *testing.T) {
	if _, ok := staterr.KindOf(errors.New("plain")); ok {
		t.Fatalf("untagged error reported a kind")
	}
	if code := staterr.CodeOf(errors.New("plain")); code != "" {
		t.Fatalf("untagged error reported code %q", code)
	}
}
