// Package alerts holds the alert configuration model, runtime states and the
// acceptance-boundary validation.
package alerts

import (
	"time"

	"alertpulse/internal/detector"
)

// State is the derived runtime state of an alert, mutated only by the
// evaluation cycle.
type State string

const (
	StateNotFiring State = "NOT_FIRING"
	StateFiring    State = "FIRING"
	StateSnoozed   State = "SNOOZED"
	StateErrored   State = "ERRORED"
)

// Status is a coarse operator-facing health flag, distinct from State.
const (
	StatusActive   = "ACTIVE"
	StatusDegraded = "DEGRADED"
)

type Interval string

const (
	IntervalHourly  Interval = "hourly"
	IntervalDaily   Interval = "daily"
	IntervalWeekly  Interval = "weekly"
	IntervalMonthly Interval = "monthly"
)

// Duration is the minimum spacing between two checks of the same alert.
// Monthly uses a fixed 30 days; due-scan granularity makes calendar
// arithmetic immaterial here.
func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalHourly:
		return time.Hour
	case IntervalDaily:
		return 24 * time.Hour
	case IntervalWeekly:
		return 7 * 24 * time.Hour
	case IntervalMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// SkipsWeekend reports whether the weekend-skip policy applies to this
// interval. Weekly and monthly checks run regardless.
func (i Interval) SkipsWeekend() bool {
	return i == IntervalHourly || i == IntervalDaily
}

func (i Interval) Known() bool {
	return i.Duration() > 0
}

// Condition is the legacy comparison mode kept for back-compat.
type Condition string

const (
	ConditionAbsolute Condition = "absolute"
	ConditionRelative Condition = "relative"
)

// SourceSpec selects the series an alert evaluates: a bucketed aggregate of
// one numeric column on one connection.
type SourceSpec struct {
	ConnectionRef   string `json:"connectionRef"`
	Table           string `json:"table"`
	ValueColumn     string `json:"valueColumn"`
	TimestampColumn string `json:"timestampColumn"`
	Aggregation     string `json:"aggregation"` // sum | avg | count | min | max
}

// Destination is a non-user notification target.
type Destination struct {
	Kind   string `json:"kind"` // webhook | bus
	Target string `json:"target"`
}

// Alert is the full configuration plus runtime fields. Exactly one of
// Threshold (legacy) or Detector is authoritative at evaluation time;
// Detector wins when present.
type Alert struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	InsightRef string     `json:"insightRef"`
	Source     SourceSpec `json:"source"`

	Condition Condition        `json:"condition,omitempty"`
	Threshold *detector.Bounds `json:"threshold,omitempty"`
	Detector  *detector.Config `json:"detector,omitempty"`

	Interval             Interval `json:"interval"`
	CheckOngoingInterval bool     `json:"checkOngoingInterval"`
	SkipWeekend          bool     `json:"skipWeekend"`
	Enabled              bool     `json:"enabled"`

	SubscribedUsers  []string      `json:"subscribedUsers,omitempty"`
	Destinations     []Destination `json:"destinations,omitempty"`
	NotifyOnRecovery bool          `json:"notifyOnRecovery"`

	SnoozedUntil *time.Time `json:"snoozedUntil,omitempty"`

	// Runtime fields, owned by the evaluation cycle.
	State             State      `json:"state,omitempty"`
	LastCheckedAt     *time.Time `json:"lastCheckedAt,omitempty"`
	ConsecutiveErrors int        `json:"consecutiveErrors,omitempty"`
	Status            string     `json:"status,omitempty"`
}

// EffectiveDetector resolves the back-compat rule: an explicit detector
// config wins; otherwise the legacy condition/threshold pair is expressed as
// one more detector variant so evaluation has a single path.
func (a Alert) EffectiveDetector() detector.Config {
	if a.Detector != nil {
		return *a.Detector
	}
	boundType := detector.BoundAbsolute
	if a.Condition == ConditionRelative {
		boundType = detector.BoundPercentage
	}
	var bounds detector.Bounds
	if a.Threshold != nil {
		bounds = *a.Threshold
	}
	return detector.Config{
		Type:      detector.TypeThreshold,
		Threshold: &detector.ThresholdConfig{Bounds: bounds, BoundType: boundType},
	}
}

// Check is one append-only evaluation record. Never mutated after creation.
type Check struct {
	ID              string         `json:"id"`
	AlertID         string         `json:"alertId"`
	CreatedAt       time.Time      `json:"createdAt"`
	State           State          `json:"state"`
	CalculatedValue float64        `json:"calculatedValue"`
	RawValue        float64        `json:"rawValue"`
	Breaches        []string       `json:"breaches,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ErrorTag        string         `json:"errorTag,omitempty"`
	TargetsNotified bool           `json:"targetsNotified"`
}
