package detector

import "fmt"

// thresholdDetector is the legacy bounds check. It has no baseline: the last
// preprocessed point is compared directly against the configured bounds.
type thresholdDetector struct{}

func (thresholdDetector) Evaluate(series []float64, cfg Config) (Result, error) {
	if cfg.Threshold == nil {
		return Result{}, fmt.Errorf("threshold detector missing config")
	}
	if len(series) == 0 {
		return Result{}, ErrInsufficientData
	}
	current := series[len(series)-1]
	bounds := cfg.Threshold.Bounds
	var breaches []string
	if bounds.Lower != nil && current < *bounds.Lower {
		breaches = append(breaches, fmt.Sprintf("value %g < lower %g", current, *bounds.Lower))
	}
	if bounds.Upper != nil && current > *bounds.Upper {
		breaches = append(breaches, fmt.Sprintf("value %g > upper %g", current, *bounds.Upper))
	}
	return Result{
		Value:    current,
		Breaches: breaches,
		Metadata: map[string]any{"bound_type": cfg.Threshold.BoundType},
	}, nil
}
