package source

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"alertpulse/internal/alerts"
)

type mysqlConnector struct {
	baseConnector
}

func newMySQLConnector(cfg ConnectionConfig) (*mysqlConnector, error) {
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
	sslMode := strings.ToLower(strings.TrimSpace(cfg.SSLMode))
	if sslMode == "disable" {
		dsn += "&tls=false"
	} else if sslMode != "" {
		dsn += "&tls=true"
	}
	db, err := openDatabase("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	return &mysqlConnector{baseConnector{cfg: cfg, db: db}}, nil
}

func myQuote(s string) string { return "`" + s + "`" }

// myBucketExpr truncates the timestamp column to its interval bucket. MySQL
// has no date_trunc, so each interval gets its own expression.
func myBucketExpr(tsCol string, interval alerts.Interval) string {
	switch interval {
	case alerts.IntervalHourly:
		return fmt.Sprintf("TIMESTAMP(DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00'))", tsCol)
	case alerts.IntervalDaily:
		return fmt.Sprintf("DATE(%s)", tsCol)
	case alerts.IntervalWeekly:
		return fmt.Sprintf("DATE_SUB(DATE(%s), INTERVAL WEEKDAY(%s) DAY)", tsCol, tsCol)
	default:
		return fmt.Sprintf("TIMESTAMP(DATE_FORMAT(%s, '%%Y-%%m-01'))", tsCol)
	}
}

func (c *mysqlConnector) FetchSeries(ctx context.Context, q Query) ([]Point, error) {
	parts, err := buildSeriesParts(q, myQuote)
	if err != nil {
		return nil, err
	}
	bucket := myBucketExpr(parts.tsCol, q.Interval)
	stmt := fmt.Sprintf(
		"SELECT %s AS bucket, %s(%s) AS value FROM %s WHERE %s < ? GROUP BY bucket ORDER BY bucket DESC LIMIT ?",
		bucket, parts.agg, parts.valueCol, parts.table, parts.tsCol)
	rows, err := c.db.QueryContext(ctx, stmt, seriesCutoff(q), q.NumPoints)
	if err != nil {
		return nil, fmt.Errorf("query mysql series: %w", err)
	}
	return scanSeries(rows)
}
