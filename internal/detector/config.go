package detector

import (
	"encoding/json"
	"fmt"
)

const (
	TypeThreshold = "threshold"
	TypeZScore    = "zscore"
	TypeMAD       = "mad"
)

const (
	OnValue    = "value"
	OnDelta    = "delta"
	OnPctDelta = "pct_delta"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionBoth = "both"
)

const (
	BoundAbsolute   = "absolute"
	BoundPercentage = "percentage"
)

// Config is a closed tagged union: Type selects which payload is
// authoritative. Exactly one payload must be present.
type Config struct {
	Type      string           `json:"type"`
	Threshold *ThresholdConfig `json:"threshold,omitempty"`
	ZScore    *ZScoreConfig    `json:"zscore,omitempty"`
	MAD       *MADConfig       `json:"mad,omitempty"`
}

type Bounds struct {
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

type ThresholdConfig struct {
	Bounds    Bounds `json:"bounds"`
	BoundType string `json:"bound_type"` // absolute | percentage
}

type ZScoreConfig struct {
	Window     int     `json:"window"`
	On         string  `json:"on"` // value | delta | pct_delta
	ZThreshold float64 `json:"z_threshold"`
	MinPoints  int     `json:"min_points"`
	// TwoTailed is the legacy spelling of direction=both. It is accepted for
	// wire compatibility only: an absent Direction already defaults to both,
	// which is exactly what the alias asked for, so the field carries no
	// independent effect.
	TwoTailed bool   `json:"two_tailed"`
	Direction string `json:"direction"` // up | down | both
}

type MADConfig struct {
	Window    int     `json:"window"`
	On        string  `json:"on"`
	K         float64 `json:"k"`
	MinPoints int     `json:"min_points"`
	// TwoTailed is accepted for wire compatibility only; see ZScoreConfig.
	TwoTailed bool    `json:"two_tailed"`
	Direction string  `json:"direction"`
}

// FieldIssue describes one validation problem in a detector config.
type FieldIssue struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint"`
}

// ParseConfig decodes and validates a detector config at the acceptance
// boundary. Unknown discriminators and malformed payloads are rejected here
// and never reach evaluation.
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode detector config: %w", err)
	}
	if issues := cfg.Validate(); len(issues) > 0 {
		return Config{}, fmt.Errorf("detector config: %s (%s)", issues[0].Problem, issues[0].Field)
	}
	return cfg, nil
}

// Validate checks tagged-union well-formedness and payload invariants.
func (c Config) Validate() []FieldIssue {
	var issues []FieldIssue
	switch c.Type {
	case TypeThreshold:
		if c.Threshold == nil {
			return append(issues, FieldIssue{Field: "threshold", Problem: "missing", Hint: "Provide a threshold payload"})
		}
		t := c.Threshold
		if t.Bounds.Lower == nil && t.Bounds.Upper == nil {
			issues = append(issues, FieldIssue{Field: "threshold.bounds", Problem: "empty", Hint: "Provide lower and/or upper"})
		}
		if t.BoundType != "" && t.BoundType != BoundAbsolute && t.BoundType != BoundPercentage {
			issues = append(issues, FieldIssue{Field: "threshold.bound_type", Problem: "invalid", Hint: "Use absolute or percentage"})
		}
	case TypeZScore:
		if c.ZScore == nil {
			return append(issues, FieldIssue{Field: "zscore", Problem: "missing", Hint: "Provide a zscore payload"})
		}
		z := c.ZScore
		if z.Window < 2 {
			issues = append(issues, FieldIssue{Field: "zscore.window", Problem: "too small", Hint: "Must be >= 2"})
		}
		if z.ZThreshold <= 0 {
			issues = append(issues, FieldIssue{Field: "zscore.z_threshold", Problem: "not positive", Hint: "Must be > 0"})
		}
		if z.MinPoints < 0 {
			issues = append(issues, FieldIssue{Field: "zscore.min_points", Problem: "negative", Hint: "Must be >= 0"})
		}
		if z.MinPoints > z.Window {
			issues = append(issues, FieldIssue{Field: "zscore.min_points", Problem: "exceeds window", Hint: "Must be <= window or the baseline can never satisfy it"})
		}
		issues = append(issues, validateOn("zscore.on", z.On)...)
		issues = append(issues, validateDirection("zscore.direction", z.Direction)...)
	case TypeMAD:
		if c.MAD == nil {
			return append(issues, FieldIssue{Field: "mad", Problem: "missing", Hint: "Provide a mad payload"})
		}
		m := c.MAD
		if m.Window < 2 {
			issues = append(issues, FieldIssue{Field: "mad.window", Problem: "too small", Hint: "Must be >= 2"})
		}
		if m.K <= 0 {
			issues = append(issues, FieldIssue{Field: "mad.k", Problem: "not positive", Hint: "Must be > 0"})
		}
		if m.MinPoints < 0 {
			issues = append(issues, FieldIssue{Field: "mad.min_points", Problem: "negative", Hint: "Must be >= 0"})
		}
		if m.MinPoints > m.Window {
			issues = append(issues, FieldIssue{Field: "mad.min_points", Problem: "exceeds window", Hint: "Must be <= window or the baseline can never satisfy it"})
		}
		issues = append(issues, validateOn("mad.on", m.On)...)
		issues = append(issues, validateDirection("mad.direction", m.Direction)...)
	default:
		issues = append(issues, FieldIssue{Field: "type", Problem: "unknown", Hint: "Use threshold, zscore or mad"})
	}
	return issues
}

func validateOn(field, on string) []FieldIssue {
	switch on {
	case "", OnValue, OnDelta, OnPctDelta:
		return nil
	}
	return []FieldIssue{{Field: field, Problem: "invalid", Hint: "Use value, delta or pct_delta"}}
}

func validateDirection(field, direction string) []FieldIssue {
	switch direction {
	case "", DirectionUp, DirectionDown, DirectionBoth:
		return nil
	}
	return []FieldIssue{{Field: field, Problem: "invalid", Hint: "Use up, down or both"}}
}

// Window is the baseline size the detector needs, 0 for threshold.
func (c Config) Window() int {
	switch c.Type {
	case TypeZScore:
		if c.ZScore != nil {
			return c.ZScore.Window
		}
	case TypeMAD:
		if c.MAD != nil {
			return c.MAD.Window
		}
	}
	return 0
}

// On is the preprocessing mode. Percentage threshold bounds are evaluated
// against the one-step percentage delta.
func (c Config) On() string {
	switch c.Type {
	case TypeThreshold:
		if c.Threshold != nil && c.Threshold.BoundType == BoundPercentage {
			return OnPctDelta
		}
		return OnValue
	case TypeZScore:
		if c.ZScore != nil && c.ZScore.On != "" {
			return c.ZScore.On
		}
	case TypeMAD:
		if c.MAD != nil && c.MAD.On != "" {
			return c.MAD.On
		}
	}
	return OnValue
}

// MinPoints is the minimum usable series length after preprocessing.
func (c Config) MinPoints() int {
	switch c.Type {
	case TypeThreshold:
		return 1
	case TypeZScore:
		if c.ZScore != nil {
			return max(2, c.ZScore.MinPoints)
		}
	case TypeMAD:
		if c.MAD != nil {
			return max(2, c.MAD.MinPoints)
		}
	}
	return 2
}

// resolveDirection applies the two_tailed legacy alias: an absent direction
// means both.
func resolveDirection(direction string) string {
	if direction == "" {
		return DirectionBoth
	}
	return direction
}
