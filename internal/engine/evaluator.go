// Package engine runs one alert-check cycle: fetch the needed window from the
// series source, score it with the configured detector, advance the state
// machine, persist the check and hand notify-worthy transitions to the
// dispatcher.
package engine

import (
	"context"
	"errors"
	"time"

	"alertpulse/internal/alerts"
	"alertpulse/internal/detector"
	"alertpulse/internal/metrics"
	"alertpulse/internal/source"
)

// Error tags carried on an Evaluation instead of raised past the evaluator
// boundary. The state machine is the single authority deciding disposition.
const (
	TagInsufficientData  = "insufficient_data"
	TagSourceUnavailable = "source_unavailable"
	TagDetectorError     = "detector_error"
)

// SeriesSource is the external analytics query this engine consumes.
type SeriesSource interface {
	Fetch(ctx context.Context, q source.Query) ([]source.Point, error)
}

// Evaluation is an immutable per-cycle result. ErrorTag is empty on a clean
// evaluation; when set, Value is synthetic and breach-free.
type Evaluation struct {
	detector.Result
	ErrorTag string
}

type Evaluator struct {
	Source       SeriesSource
	FetchTimeout time.Duration
}

// Evaluate never returns an error: detector and source failures are folded
// into the Evaluation's error tag.
func (e *Evaluator) Evaluate(ctx context.Context, a alerts.Alert) Evaluation {
	cfg := a.EffectiveDetector()
	need := cfg.Window() + 1
	if cfg.On() != detector.OnValue {
		need++
	}

	fetchCtx := ctx
	if e.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, e.FetchTimeout)
		defer cancel()
	}
	start := time.Now()
	points, err := e.Source.Fetch(fetchCtx, source.Query{
		InsightRef:     a.InsightRef,
		Source:         a.Source,
		Interval:       a.Interval,
		NumPoints:      need,
		IncludeOngoing: a.CheckOngoingInterval,
	})
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return tagged(TagSourceUnavailable, err)
	}
	if len(points) < need {
		return tagged(TagInsufficientData, nil)
	}

	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.Value
	}
	result, err := detector.Evaluate(cfg, series)
	if err != nil {
		if errors.Is(err, detector.ErrInsufficientData) {
			return tagged(TagInsufficientData, err)
		}
		return tagged(TagDetectorError, err)
	}
	return Evaluation{Result: result}
}

func tagged(tag string, err error) Evaluation {
	meta := map[string]any{}
	if err != nil {
		meta["error"] = err.Error()
	}
	return Evaluation{
		Result:   detector.Result{Metadata: meta},
		ErrorTag: tag,
	}
}
