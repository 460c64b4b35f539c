// Package source fetches the ordered numeric series an alert evaluates:
// time-bucketed aggregates of one column, newest point last, computed by the
// backing database.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"alertpulse/internal/alerts"
)

// ErrUnavailable marks fetch failures: connection refused, query error,
// timeout. The evaluator treats it like insufficient data.
var ErrUnavailable = errors.New("series source unavailable")

type Point struct {
	TS    time.Time
	Value float64
}

// Query asks for the NumPoints most recent interval buckets. When
// IncludeOngoing is false the still-accumulating current bucket is excluded
// and the last fully-closed bucket is the newest point returned.
type Query struct {
	InsightRef     string
	Source         alerts.SourceSpec
	Interval       alerts.Interval
	NumPoints      int
	IncludeOngoing bool
}

// Connector fetches series from one database connection.
type Connector interface {
	TestConnection(ctx context.Context) error
	FetchSeries(ctx context.Context, q Query) ([]Point, error)
	Close() error
}

type ConnectionConfig struct {
	Type     string `yaml:"type"` // mysql | postgres | mssql
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslMode"`
}

// Registry routes fetches to the connector named by the query's
// connectionRef. It is the engine's SeriesSource.
type Registry struct {
	connectors map[string]Connector
}

func NewRegistry(connectors map[string]Connector) *Registry {
	return &Registry{connectors: connectors}
}

// BuildRegistry opens one connector per configured connection.
func BuildRegistry(configs map[string]ConnectionConfig) (*Registry, error) {
	connectors := map[string]Connector{}
	for name, cfg := range configs {
		conn, err := NewConnector(cfg)
		if err != nil {
			for _, c := range connectors {
				_ = c.Close()
			}
			return nil, fmt.Errorf("connection %q: %w", name, err)
		}
		connectors[name] = conn
	}
	return &Registry{connectors: connectors}, nil
}

func (r *Registry) Fetch(ctx context.Context, q Query) ([]Point, error) {
	conn, ok := r.connectors[q.Source.ConnectionRef]
	if !ok {
		return nil, fmt.Errorf("%w: unknown connection %q", ErrUnavailable, q.Source.ConnectionRef)
	}
	points, err := conn.FetchSeries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return points, nil
}

func (r *Registry) Close() {
	for _, c := range r.connectors {
		_ = c.Close()
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

func splitIdentifier(ident string) ([]string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return nil, errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	for _, part := range parts {
		if part == "" {
			return nil, errors.New("identifier contains empty segment")
		}
		if !identPattern.MatchString(part) {
			return nil, fmt.Errorf("identifier segment %q is invalid", part)
		}
	}
	return parts, nil
}

func quoteQualified(ident string, maxSegments int, quote func(string) string) (string, error) {
	parts, err := splitIdentifier(ident)
	if err != nil {
		return "", err
	}
	if len(parts) > maxSegments {
		return "", fmt.Errorf("identifier %q has too many segments", ident)
	}
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = quote(part)
	}
	return strings.Join(quoted, "."), nil
}

var aggregateFuncs = map[string]string{
	"":      "SUM",
	"sum":   "SUM",
	"avg":   "AVG",
	"count": "COUNT",
	"min":   "MIN",
	"max":   "MAX",
}

func aggregateFunc(name string) (string, error) {
	fn, ok := aggregateFuncs[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("unsupported aggregation %q", name)
	}
	return fn, nil
}

// bucketStart truncates now to the start of the current interval bucket in
// UTC. Rows at or after this instant belong to the ongoing period.
func bucketStart(now time.Time, interval alerts.Interval) time.Time {
	now = now.UTC()
	switch interval {
	case alerts.IntervalHourly:
		return now.Truncate(time.Hour)
	case alerts.IntervalDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case alerts.IntervalWeekly:
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday start
		return day.AddDate(0, 0, -offset)
	case alerts.IntervalMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return now
}

// reversePoints flips a newest-first result set into ascending order.
func reversePoints(points []Point) {
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
}
