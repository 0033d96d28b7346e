package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marlowe/vantage/internal/models"
)

// aggExpr maps an aggregate onto its SQL expression over the value column.
func aggExpr(agg models.Aggregate) (string, error) {
	switch agg {
	case models.AggSum:
		return "SUM(value)", nil
	case models.AggMean:
		return "AVG(value)", nil
	case models.AggCount:
		return "COUNT(*)", nil
	case models.AggMax:
		return "MAX(value)", nil
	default:
		return "", fmt.Errorf("unsupported aggregate %q", agg)
	}
}

// SeriesQuery selects a time-bucketed aggregate for one metric.
type SeriesQuery struct {
	DatasetID string
	Metric    string
	Agg       models.Aggregate
	Since     time.Time
	Until     time.Time
	Buckets   int
}

// QuerySeries returns at most Buckets aggregated points between Since and
// Until, bucket-aligned on the epoch.
func (db *DB) QuerySeries(ctx context.Context, q SeriesQuery) ([]models.SeriesPoint, error) {
	expr, err := aggExpr(q.Agg)
	if err != nil {
		return nil, err
	}
	if q.Buckets <= 0 {
		q.Buckets = 60
	}
	if q.Until.IsZero() {
		q.Until = time.Now()
	}
	window := q.Until.Sub(q.Since)
	if window <= 0 {
		return nil, fmt.Errorf("empty query window")
	}
	bucketSec := int64(window.Seconds()) / int64(q.Buckets)
	if bucketSec < 1 {
		bucketSec = 1
	}

	query := fmt.Sprintf(`
		SELECT (CAST(strftime('%%s', ts) AS INTEGER) / ?) * ? AS bucket, %s
		FROM points
		WHERE dataset_id = ? AND metric = ? AND ts >= ? AND ts < ?
		GROUP BY bucket
		ORDER BY bucket`, expr)

	rows, err := db.conn.QueryContext(ctx, query,
		bucketSec, bucketSec, q.DatasetID, q.Metric, formatTime(q.Since), formatTime(q.Until))
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	var points []models.SeriesPoint
	for rows.Next() {
		var (
			epoch int64
			value sql.NullFloat64
		)
		if err := rows.Scan(&epoch, &value); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		points = append(points, models.SeriesPoint{
			Bucket: time.Unix(epoch, 0).UTC(),
			Value:  value.Float64,
		})
	}
	return points, rows.Err()
}

// BreakdownQuery selects a top-N group-by aggregate for one metric.
type BreakdownQuery struct {
	DatasetID string
	Metric    string
	Agg       models.Aggregate
	Since     time.Time
	Limit     int
}

// QueryBreakdown returns the top groups by aggregate value.
func (db *DB) QueryBreakdown(ctx context.Context, q BreakdownQuery) ([]models.BreakdownRow, error) {
	expr, err := aggExpr(q.Agg)
	if err != nil {
		return nil, err
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}

	query := fmt.Sprintf(`
		SELECT grp, %s AS agg_value, COUNT(*)
		FROM points
		WHERE dataset_id = ? AND metric = ? AND ts >= ?
		GROUP BY grp
		ORDER BY agg_value DESC
		LIMIT ?`, expr)

	rows, err := db.conn.QueryContext(ctx, query,
		q.DatasetID, q.Metric, formatTime(q.Since), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query breakdown: %w", err)
	}
	defer rows.Close()

	var out []models.BreakdownRow
	for rows.Next() {
		var r models.BreakdownRow
		if err := rows.Scan(&r.Group, &r.Value, &r.Count); err != nil {
			return nil, fmt.Errorf("scan breakdown row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// QuerySummary returns the headline stats for one metric since a cutoff.
func (db *DB) QuerySummary(ctx context.Context, datasetID, metric string, since time.Time) (models.SummaryStats, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(value), 0), COALESCE(AVG(value), 0),
		       COALESCE(MIN(value), 0), COALESCE(MAX(value), 0),
		       COALESCE(MIN(ts), ''), COALESCE(MAX(ts), '')
		FROM points
		WHERE dataset_id = ? AND metric = ? AND ts >= ?`,
		datasetID, metric, formatTime(since))

	var (
		stats         models.SummaryStats
		firstS, lastS string
	)
	if err := row.Scan(&stats.Rows, &stats.Sum, &stats.Mean, &stats.Min, &stats.Max, &firstS, &lastS); err != nil {
		return models.SummaryStats{}, fmt.Errorf("scan summary: %w", err)
	}
	if firstS != "" {
		if t, err := parseTime(firstS); err == nil {
			stats.First = t
		}
	}
	if lastS != "" {
		if t, err := parseTime(lastS); err == nil {
			stats.Last = t
		}
	}
	return stats, nil
}
