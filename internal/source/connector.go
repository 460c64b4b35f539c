package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

type baseConnector struct {
	cfg ConnectionConfig
	db  *sql.DB
}

func (b *baseConnector) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *baseConnector) TestConnection(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// NewConnector builds a connector for the configured database type.
func NewConnector(cfg ConnectionConfig) (Connector, error) {
	if strings.TrimSpace(cfg.Type) == "" {
		return nil, errors.New("connection type is required")
	}
	switch strings.ToLower(cfg.Type) {
	case "mysql":
		return newMySQLConnector(cfg)
	case "postgres", "postgresql":
		return newPostgresConnector(cfg)
	case "mssql", "sqlserver":
		return newMSSQLConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
	}
}

func openDatabase(driverName, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// seriesParts resolves and quotes the identifiers a series query needs.
type seriesParts struct {
	table    string
	valueCol string
	tsCol    string
	agg      string
}

func buildSeriesParts(q Query, quote func(string) string) (seriesParts, error) {
	table, err := quoteQualified(q.Source.Table, 2, quote)
	if err != nil {
		return seriesParts{}, fmt.Errorf("invalid table: %w", err)
	}
	valueCol, err := quoteQualified(q.Source.ValueColumn, 1, quote)
	if err != nil {
		return seriesParts{}, fmt.Errorf("invalid value column: %w", err)
	}
	tsCol, err := quoteQualified(q.Source.TimestampColumn, 1, quote)
	if err != nil {
		return seriesParts{}, fmt.Errorf("invalid timestamp column: %w", err)
	}
	agg, err := aggregateFunc(q.Source.Aggregation)
	if err != nil {
		return seriesParts{}, err
	}
	if q.NumPoints <= 0 {
		return seriesParts{}, errors.New("num points must be positive")
	}
	return seriesParts{table: table, valueCol: valueCol, tsCol: tsCol, agg: agg}, nil
}

// scanSeries reads (bucket, value) rows returned newest-first and yields the
// series in ascending order.
func scanSeries(rows *sql.Rows) ([]Point, error) {
	defer rows.Close()
	points := []Point{}
	for rows.Next() {
		var ts time.Time
		var value sql.NullFloat64
		if err := rows.Scan(&ts, &value); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		if !value.Valid {
			continue
		}
		points = append(points, Point{TS: ts.UTC(), Value: value.Float64})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series rows: %w", err)
	}
	reversePoints(points)
	return points, nil
}
