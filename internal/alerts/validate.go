package alerts

import (
	"fmt"
	"regexp"
)

var identRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var aggregations = map[string]bool{
	"sum": true, "avg": true, "count": true, "min": true, "max": true,
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint"`
}

type ValidationError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate is the configuration acceptance boundary. Alerts that fail here
// are rejected and never reach the evaluator.
func Validate(a Alert) *ValidationError {
	var details []ErrorDetail
	if a.Name == "" {
		details = append(details, ErrorDetail{Field: "name", Problem: "missing", Hint: "Provide an alert name"})
	}
	if a.Source.ConnectionRef == "" {
		details = append(details, ErrorDetail{Field: "source.connectionRef", Problem: "missing", Hint: "Reference a configured connection"})
	}
	if a.Source.Table == "" || !identRegex.MatchString(a.Source.Table) {
		details = append(details, ErrorDetail{Field: "source.table", Problem: "invalid", Hint: "Use alphanumeric identifiers"})
	}
	if a.Source.ValueColumn == "" || !identRegex.MatchString(a.Source.ValueColumn) {
		details = append(details, ErrorDetail{Field: "source.valueColumn", Problem: "invalid", Hint: "Use alphanumeric identifiers"})
	}
	if a.Source.TimestampColumn == "" || !identRegex.MatchString(a.Source.TimestampColumn) {
		details = append(details, ErrorDetail{Field: "source.timestampColumn", Problem: "invalid", Hint: "Use alphanumeric identifiers"})
	}
	if a.Source.Aggregation != "" && !aggregations[a.Source.Aggregation] {
		details = append(details, ErrorDetail{Field: "source.aggregation", Problem: "invalid", Hint: "Use sum, avg, count, min or max"})
	}
	if !a.Interval.Known() {
		details = append(details, ErrorDetail{Field: "interval", Problem: "invalid", Hint: "Use hourly, daily, weekly or monthly"})
	}
	if a.Detector == nil && a.Threshold == nil {
		details = append(details, ErrorDetail{Field: "detector", Problem: "missing", Hint: "Provide a detector config or legacy threshold bounds"})
	}
	if a.Condition != "" && a.Condition != ConditionAbsolute && a.Condition != ConditionRelative {
		details = append(details, ErrorDetail{Field: "condition", Problem: "invalid", Hint: "Use absolute or relative"})
	}
	for _, issue := range a.EffectiveDetector().Validate() {
		details = append(details, ErrorDetail{Field: "detector." + issue.Field, Problem: issue.Problem, Hint: issue.Hint})
	}
	for i, dest := range a.Destinations {
		if dest.Kind != "webhook" && dest.Kind != "bus" {
			details = append(details, ErrorDetail{Field: fmt.Sprintf("destinations[%d].kind", i), Problem: "invalid", Hint: "Use webhook or bus"})
		}
		if dest.Target == "" {
			details = append(details, ErrorDetail{Field: fmt.Sprintf("destinations[%d].target", i), Problem: "missing", Hint: "Provide a target address"})
		}
	}
	if len(details) > 0 {
		return &ValidationError{Code: "ALERT_SPEC_INVALID", Message: "alert spec failed validation", Details: details}
	}
	return nil
}
