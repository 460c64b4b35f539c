package source

import (
	"context"
	"fmt"
	"net/url"

	_ "github.com/microsoft/go-mssqldb"

	"alertpulse/internal/alerts"
)

type mssqlConnector struct {
	baseConnector
}

func newMSSQLConnector(cfg ConnectionConfig) (*mssqlConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 1433
	}
	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.SSLMode == "disable" {
		query.Set("encrypt", "disable")
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	db, err := openDatabase("sqlserver", u.String())
	if err != nil {
		return nil, fmt.Errorf("open mssql connection: %w", err)
	}
	return &mssqlConnector{baseConnector{cfg: cfg, db: db}}, nil
}

func msQuote(s string) string { return "[" + s + "]" }

// msBucketExpr truncates via the classic DATEADD/DATEDIFF idiom, which works
// on SQL Server versions without DATETRUNC.
func msBucketExpr(tsCol string, interval alerts.Interval) string {
	unit := "MONTH"
	switch interval {
	case alerts.IntervalHourly:
		unit = "HOUR"
	case alerts.IntervalDaily:
		unit = "DAY"
	case alerts.IntervalWeekly:
		unit = "WEEK"
	}
	return fmt.Sprintf("DATEADD(%s, DATEDIFF(%s, 0, %s), 0)", unit, unit, tsCol)
}

func (c *mssqlConnector) FetchSeries(ctx context.Context, q Query) ([]Point, error) {
	parts, err := buildSeriesParts(q, msQuote)
	if err != nil {
		return nil, err
	}
	bucket := msBucketExpr(parts.tsCol, q.Interval)
	stmt := fmt.Sprintf(
		"SELECT TOP (@p1) %s AS bucket, %s(%s) AS value FROM %s WHERE %s < @p2 GROUP BY %s ORDER BY bucket DESC",
		bucket, parts.agg, parts.valueCol, parts.table, parts.tsCol, bucket)
	rows, err := c.db.QueryContext(ctx, stmt, q.NumPoints, seriesCutoff(q))
	if err != nil {
		return nil, fmt.Errorf("query mssql series: %w", err)
	}
	return scanSeries(rows)
}
