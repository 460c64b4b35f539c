package detector

import (
	"fmt"
	"math"
)

// zscoreDetector scores the current point against the baseline mean in units
// of population standard deviation.
type zscoreDetector struct{}

func (zscoreDetector) Evaluate(series []float64, cfg Config) (Result, error) {
	zc := cfg.ZScore
	if zc == nil {
		return Result{}, fmt.Errorf("zscore detector missing config")
	}
	baseline, current, err := window(series, zc.Window)
	if err != nil {
		return Result{}, err
	}
	if len(baseline) < zc.MinPoints {
		return Result{}, ErrInsufficientData
	}
	mu := Mean(baseline)
	sigma := PStdDev(baseline)
	meta := map[string]any{
		"baseline_mean": mu,
		"baseline_std":  sigma,
		"window":        len(baseline),
	}
	if sigma == 0 && current == mu {
		// Zero-variance baseline and no deviation: no signal to score.
		meta["degenerate_baseline"] = true
		return Result{Value: 0, Metadata: meta}, nil
	}
	z := (current - mu) / (sigma + defaultEpsilon)
	threshold := math.Abs(zc.ZThreshold)
	var breaches []string
	switch resolveDirection(zc.Direction) {
	case DirectionUp:
		if z >= threshold {
			breaches = append(breaches, fmt.Sprintf("z=%.2f >= %g", z, threshold))
		}
	case DirectionDown:
		if z <= -threshold {
			breaches = append(breaches, fmt.Sprintf("z=%.2f <= -%g", z, threshold))
		}
	default:
		if math.Abs(z) >= threshold {
			breaches = append(breaches, fmt.Sprintf("|z|=%.2f >= %g", math.Abs(z), threshold))
		}
	}
	return Result{Value: z, Breaches: breaches, Metadata: meta}, nil
}
