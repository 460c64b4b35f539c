package detector

import "math"

// Preprocess transforms a raw ascending series into the quantity a detector
// scores. Differencing modes consume one leading point; the result must keep
// at least minPoints usable points or the cycle fails as insufficient data.
func Preprocess(series []float64, on string, minPoints int) ([]float64, error) {
	if len(series) == 0 {
		return nil, ErrInsufficientData
	}
	var out []float64
	switch on {
	case OnDelta:
		out = make([]float64, 0, len(series)-1)
		for i := 1; i < len(series); i++ {
			out = append(out, series[i]-series[i-1])
		}
	case OnPctDelta:
		out = make([]float64, 0, len(series)-1)
		for i := 1; i < len(series); i++ {
			denom := math.Max(defaultEpsilon, math.Abs(series[i-1]))
			out = append(out, (series[i]-series[i-1])/denom)
		}
	default:
		out = append([]float64(nil), series...)
	}
	if len(out) < minPoints {
		return nil, ErrInsufficientData
	}
	return out, nil
}
