package source

import (
	"context"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"alertpulse/internal/alerts"
)

type postgresConnector struct {
	baseConnector
}

func newPostgresConnector(cfg ConnectionConfig) (*postgresConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 5432
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, sslMode)
	db, err := openDatabase("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	return &postgresConnector{baseConnector{cfg: cfg, db: db}}, nil
}

func pgQuote(s string) string { return `"` + s + `"` }

func pgTruncUnit(interval alerts.Interval) string {
	switch interval {
	case alerts.IntervalHourly:
		return "hour"
	case alerts.IntervalDaily:
		return "day"
	case alerts.IntervalWeekly:
		return "week"
	default:
		return "month"
	}
}

func (c *postgresConnector) FetchSeries(ctx context.Context, q Query) ([]Point, error) {
	parts, err := buildSeriesParts(q, pgQuote)
	if err != nil {
		return nil, err
	}
	bucket := fmt.Sprintf("date_trunc('%s', %s)", pgTruncUnit(q.Interval), parts.tsCol)
	stmt := fmt.Sprintf(
		"SELECT %s AS bucket, %s(%s) AS value FROM %s WHERE %s < $1 GROUP BY bucket ORDER BY bucket DESC LIMIT $2",
		bucket, parts.agg, parts.valueCol, parts.table, parts.tsCol)
	cutoff := seriesCutoff(q)
	rows, err := c.db.QueryContext(ctx, stmt, cutoff, q.NumPoints)
	if err != nil {
		return nil, fmt.Errorf("query postgres series: %w", err)
	}
	return scanSeries(rows)
}

// seriesCutoff is the exclusive upper bound on row timestamps: now when the
// ongoing period counts, otherwise the start of the current bucket so the
// last fully-closed period becomes the newest point.
func seriesCutoff(q Query) time.Time {
	now := time.Now().UTC()
	if q.IncludeOngoing {
		return now
	}
	return bucketStart(now, q.Interval)
}
