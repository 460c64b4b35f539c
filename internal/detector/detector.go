// Package detector scores a windowed numeric series and decides whether its
// most recent point breaches the configured policy. Detectors are pure: they
// see only the preprocessed series and their own config payload.
package detector

import (
	"errors"
	"fmt"
)

const defaultEpsilon = 1e-9

// ErrInsufficientData is returned when too few usable points remain after
// preprocessing and windowing. It is recoverable: the caller retries on the
// next scheduled cycle.
var ErrInsufficientData = errors.New("insufficient data")

// Result is the outcome of scoring one evaluation cycle. Value is the
// decision statistic (the raw point for threshold, the score for zscore/mad).
// RawValue is filled by Evaluate with the last untransformed point.
type Result struct {
	Value    float64
	RawValue float64
	Breaches []string
	Metadata map[string]any
}

// Detector evaluates a preprocessed series whose last element is the point
// under evaluation; the elements before it form the baseline.
type Detector interface {
	Evaluate(series []float64, cfg Config) (Result, error)
}

var registry = map[string]Detector{
	TypeThreshold: thresholdDetector{},
	TypeZScore:    zscoreDetector{},
	TypeMAD:       madDetector{},
}

// ForType resolves a detector by its config discriminator.
func ForType(detectorType string) (Detector, bool) {
	det, ok := registry[detectorType]
	return det, ok
}

// Evaluate runs the preprocessor and the configured detector over a raw
// ascending series and fills RawValue from the last untransformed point.
func Evaluate(cfg Config, raw []float64) (Result, error) {
	det, ok := ForType(cfg.Type)
	if !ok {
		return Result{}, fmt.Errorf("unknown detector type %q", cfg.Type)
	}
	series, err := Preprocess(raw, cfg.On(), cfg.MinPoints())
	if err != nil {
		return Result{}, err
	}
	result, err := det.Evaluate(series, cfg)
	if err != nil {
		return Result{}, err
	}
	result.RawValue = raw[len(raw)-1]
	return result, nil
}

// window trims the preprocessed series to at most windowSize baseline points
// plus the current point, and splits it.
func window(series []float64, windowSize int) (baseline []float64, current float64, err error) {
	if len(series) < 2 {
		return nil, 0, ErrInsufficientData
	}
	tail := series
	if windowSize > 0 && len(tail) > windowSize+1 {
		tail = tail[len(tail)-windowSize-1:]
	}
	return tail[:len(tail)-1], tail[len(tail)-1], nil
}
