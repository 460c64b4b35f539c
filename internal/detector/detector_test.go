package detector

import (
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func TestZScoreSpikeBreaches(t *testing.T) {
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	result, err := Evaluate(cfg, []float64{10, 10, 10, 10, 10, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("expected one breach got %v", result.Breaches)
	}
	if result.Value < 3 {
		t.Fatalf("expected large z got %v", result.Value)
	}
	if result.RawValue != 40 {
		t.Fatalf("expected raw value 40 got %v", result.RawValue)
	}
}

func TestZScoreQuietSeriesDoesNotBreach(t *testing.T) {
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	result, err := Evaluate(cfg, []float64{10, 11, 9, 10, 11, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 0 {
		t.Fatalf("expected no breach got %v", result.Breaches)
	}
}

func TestZScoreDegenerateBaseline(t *testing.T) {
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	result, err := Evaluate(cfg, []float64{10, 10, 10, 10, 10, 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 0 {
		t.Fatalf("expected no breach got %v", result.Breaches)
	}
	if result.Value != 0 {
		t.Fatalf("expected zero score got %v", result.Value)
	}
	if degenerate, _ := result.Metadata["degenerate_baseline"].(bool); !degenerate {
		t.Fatalf("expected degenerate_baseline metadata, got %v", result.Metadata)
	}
}

func TestZScoreConstantBaselineWithSpike(t *testing.T) {
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	result, err := Evaluate(cfg, []float64{10, 10, 10, 10, 10, 1010})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("expected breach on zero-variance spike got %v", result.Breaches)
	}
	if result.Value < 1e9 {
		t.Fatalf("expected epsilon-floored score got %v", result.Value)
	}
}

func TestZScoreDirection(t *testing.T) {
	up := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3, Direction: DirectionUp}}
	down := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3, Direction: DirectionDown}}
	spike := []float64{10, 10, 10, 10, 10, 40}
	drop := []float64{10, 10, 10, 10, 10, -20}

	if result, _ := Evaluate(up, spike); len(result.Breaches) != 1 {
		t.Fatalf("expected up breach on spike")
	}
	if result, _ := Evaluate(down, spike); len(result.Breaches) != 0 {
		t.Fatalf("expected no down breach on spike")
	}
	if result, _ := Evaluate(down, drop); len(result.Breaches) != 1 {
		t.Fatalf("expected down breach on drop")
	}
	if result, _ := Evaluate(up, drop); len(result.Breaches) != 0 {
		t.Fatalf("expected no up breach on drop")
	}
}

// Absent direction scores both tails no matter how two_tailed is set; the
// legacy field asks for a default that already holds.
func TestTwoTailedAliasMatchesDefaultDirection(t *testing.T) {
	drop := []float64{10, 10, 10, 10, 10, -20}
	for _, twoTailed := range []bool{false, true} {
		cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3, TwoTailed: twoTailed}}
		result, err := Evaluate(cfg, drop)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Breaches) != 1 {
			t.Fatalf("two_tailed=%v: expected down-side breach with absent direction, got %v", twoTailed, result.Breaches)
		}
	}
}

func TestZScoreWindowTrimsBaseline(t *testing.T) {
	raw := make([]float64, 20)
	for i := range raw {
		raw[i] = 10
	}
	raw[len(raw)-1] = 40
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	result, err := Evaluate(cfg, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if window, _ := result.Metadata["window"].(int); window != 5 {
		t.Fatalf("expected baseline of 5 got %v", result.Metadata["window"])
	}
}

func TestMADOutlierBreaches(t *testing.T) {
	cfg := Config{Type: TypeMAD, MAD: &MADConfig{Window: 4, K: 3}}
	result, err := Evaluate(cfg, []float64{10, 11, 9, 10, 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("expected one breach got %v", result.Breaches)
	}
	// baseline median 10, mad 0.5: score = 0.6745 * 40 / 0.5
	if math.Abs(result.Value-53.96) > 0.01 {
		t.Fatalf("unexpected mad score %v", result.Value)
	}
}

func TestMADRobustToBaselineOutlier(t *testing.T) {
	// One wild baseline point should not blow up the scale estimate the way
	// it would for a standard deviation.
	cfg := Config{Type: TypeMAD, MAD: &MADConfig{Window: 5, K: 3}}
	result, err := Evaluate(cfg, []float64{10, 11, 9, 200, 10, 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("expected breach despite baseline outlier got %v", result.Breaches)
	}
}

func TestMADDegenerateBaseline(t *testing.T) {
	cfg := Config{Type: TypeMAD, MAD: &MADConfig{Window: 4, K: 3}}
	result, err := Evaluate(cfg, []float64{7, 7, 7, 7, 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 0 || result.Value != 0 {
		t.Fatalf("expected quiet degenerate result got %+v", result)
	}
	if degenerate, _ := result.Metadata["degenerate_baseline"].(bool); !degenerate {
		t.Fatalf("expected degenerate_baseline metadata")
	}
}

func TestZScoreAndMADAgreeOnSign(t *testing.T) {
	raw := []float64{10, 11, 9, 10, 11, -30}
	z, err := Evaluate(Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}, raw)
	if err != nil {
		t.Fatalf("zscore error: %v", err)
	}
	m, err := Evaluate(Config{Type: TypeMAD, MAD: &MADConfig{Window: 5, K: 3}}, raw)
	if err != nil {
		t.Fatalf("mad error: %v", err)
	}
	if z.Value >= 0 || m.Value >= 0 {
		t.Fatalf("expected negative scores for a drop, got z=%v mad=%v", z.Value, m.Value)
	}
}

func TestThresholdBounds(t *testing.T) {
	cfg := Config{Type: TypeThreshold, Threshold: &ThresholdConfig{
		Bounds:    Bounds{Lower: floatPtr(5), Upper: floatPtr(20)},
		BoundType: BoundAbsolute,
	}}
	above, err := Evaluate(cfg, []float64{40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(above.Breaches) != 1 {
		t.Fatalf("expected upper breach got %v", above.Breaches)
	}
	below, _ := Evaluate(cfg, []float64{3})
	if len(below.Breaches) != 1 {
		t.Fatalf("expected lower breach got %v", below.Breaches)
	}
	inside, _ := Evaluate(cfg, []float64{10})
	if len(inside.Breaches) != 0 {
		t.Fatalf("expected no breach got %v", inside.Breaches)
	}
	// Bounds are exclusive: equal values do not breach.
	edge, _ := Evaluate(cfg, []float64{20})
	if len(edge.Breaches) != 0 {
		t.Fatalf("expected no breach at the bound got %v", edge.Breaches)
	}
}

func TestThresholdPercentageBounds(t *testing.T) {
	cfg := Config{Type: TypeThreshold, Threshold: &ThresholdConfig{
		Bounds:    Bounds{Upper: floatPtr(0.2)},
		BoundType: BoundPercentage,
	}}
	result, err := Evaluate(cfg, []float64{100, 150})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Breaches) != 1 {
		t.Fatalf("expected pct breach got %v", result.Breaches)
	}
	if math.Abs(result.Value-0.5) > 1e-12 {
		t.Fatalf("expected pct delta 0.5 got %v", result.Value)
	}
	if result.RawValue != 150 {
		t.Fatalf("expected raw value 150 got %v", result.RawValue)
	}
}

func TestEvaluateUnknownType(t *testing.T) {
	if _, err := Evaluate(Config{Type: "nope"}, []float64{1, 2, 3}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestEvaluateInsufficientSeries(t *testing.T) {
	cfg := Config{Type: TypeZScore, ZScore: &ZScoreConfig{Window: 5, ZThreshold: 3}}
	if _, err := Evaluate(cfg, []float64{10}); err == nil {
		t.Fatalf("expected insufficient data error")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := Config{Type: TypeMAD, MAD: &MADConfig{Window: 4, K: 3}}
	raw := []float64{10, 11, 9, 10, 50}
	first, err := Evaluate(cfg, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Evaluate(cfg, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Value != second.Value || len(first.Breaches) != len(second.Breaches) {
		t.Fatalf("expected identical results, got %+v vs %+v", first, second)
	}
}
