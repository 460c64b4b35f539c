package detector

import (
	"fmt"
	"math"
)

// madScale makes the MAD score comparable to a z-score for normal data.
const madScale = 0.6745

// madDetector scores the current point against the baseline median in units
// of median absolute deviation. Robust to outliers in the baseline itself.
type madDetector struct{}

func (madDetector) Evaluate(series []float64, cfg Config) (Result, error) {
	mc := cfg.MAD
	if mc == nil {
		return Result{}, fmt.Errorf("mad detector missing config")
	}
	baseline, current, err := window(series, mc.Window)
	if err != nil {
		return Result{}, err
	}
	if len(baseline) < mc.MinPoints {
		return Result{}, ErrInsufficientData
	}
	median := Median(baseline)
	mad := MAD(baseline, median)
	meta := map[string]any{
		"baseline_median": median,
		"baseline_mad":    mad,
		"window":          len(baseline),
	}
	if mad == 0 && current == median {
		meta["degenerate_baseline"] = true
		return Result{Value: 0, Metadata: meta}, nil
	}
	score := madScale * (current - median) / (mad + defaultEpsilon)
	threshold := math.Abs(mc.K)
	var breaches []string
	switch resolveDirection(mc.Direction) {
	case DirectionUp:
		if score >= threshold {
			breaches = append(breaches, fmt.Sprintf("mad_score=%.2f >= %g", score, threshold))
		}
	case DirectionDown:
		if score <= -threshold {
			breaches = append(breaches, fmt.Sprintf("mad_score=%.2f <= -%g", score, threshold))
		}
	default:
		if math.Abs(score) >= threshold {
			breaches = append(breaches, fmt.Sprintf("|mad_score|=%.2f >= %g", math.Abs(score), threshold))
		}
	}
	return Result{Value: score, Breaches: breaches, Metadata: meta}, nil
}
