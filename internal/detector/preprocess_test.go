package detector

import (
	"errors"
	"math"
	"testing"
)

func TestPreprocessValuePassesThrough(t *testing.T) {
	out, err := Preprocess([]float64{1, 2, 3}, OnValue, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 3 || out[2] != 3 {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestPreprocessDelta(t *testing.T) {
	out, err := Preprocess([]float64{1, 3, 6}, OnDelta, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0] != 2 || out[1] != 3 {
		t.Fatalf("unexpected deltas %v", out)
	}
}

func TestPreprocessPctDelta(t *testing.T) {
	out, err := Preprocess([]float64{100, 150}, OnPctDelta, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(out[0]-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 got %v", out[0])
	}
}

func TestPreprocessPctDeltaZeroPrevious(t *testing.T) {
	out, err := Preprocess([]float64{0, 5}, OnPctDelta, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Denominator is floored at epsilon instead of dividing by zero.
	if out[0] < 1e6 {
		t.Fatalf("expected very large pct delta got %v", out[0])
	}
}

func TestPreprocessPctDeltaNegativePrevious(t *testing.T) {
	out, err := Preprocess([]float64{-100, -50}, OnPctDelta, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(out[0]-0.5) > 1e-12 {
		t.Fatalf("expected 0.5 got %v", out[0])
	}
}

func TestPreprocessInsufficientData(t *testing.T) {
	if _, err := Preprocess([]float64{1, 2}, OnDelta, 2); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestPreprocessEmptySeries(t *testing.T) {
	for _, on := range []string{OnValue, OnDelta, OnPctDelta} {
		if _, err := Preprocess(nil, on, 2); !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("%s: expected insufficient data for empty series, got %v", on, err)
		}
		if _, err := Preprocess([]float64{}, on, 0); !errors.Is(err, ErrInsufficientData) {
			t.Fatalf("%s: expected insufficient data for empty series, got %v", on, err)
		}
	}
}
