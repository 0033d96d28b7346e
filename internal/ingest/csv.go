// Package ingest loads CSV files into the local dataset store. Numeric
// columns are melted into (metric, value) points keyed by the file's
// timestamp column, with the first text column as the grouping dimension.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/models"
)

const batchSize = 500

// Options tune an ingest run.
type Options struct {
	// Name overrides the dataset name derived from the file name.
	Name string
	// TimeColumn names the timestamp column. Empty means the first
	// column that parses as a timestamp.
	TimeColumn string
	// GroupColumn names the grouping column. Empty means the first text
	// column.
	GroupColumn string
}

// Report summarizes one ingest run.
type Report struct {
	Dataset models.Dataset
	Rows    int
	Points  int
	Skipped int
	Elapsed time.Duration
}

// File ingests one CSV file into the store.
func File(ctx context.Context, database *db.DB, path string, opts Options) (Report, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return Report{}, fmt.Errorf("read header: %w", err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.TrimSpace(h)
	}

	// Sniff column kinds from the first data row.
	first, err := r.Read()
	if err == io.EOF {
		return Report{}, fmt.Errorf("%s has no data rows", path)
	}
	if err != nil {
		return Report{}, fmt.Errorf("read first row: %w", err)
	}
	firstCopy := append([]string(nil), first...)

	columns := sniffColumns(names, firstCopy)
	timeIdx, groupIdx, metricIdx, err := pickRoles(columns, opts)
	if err != nil {
		return Report{}, fmt.Errorf("%s: %w", path, err)
	}

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	dataset, err := database.CreateDataset(ctx, name, path, columns)
	if err != nil {
		return Report{}, err
	}

	report := Report{Dataset: dataset}
	var batch []db.Point

	flush := func() error {
		if err := database.InsertPoints(ctx, dataset.ID, batch); err != nil {
			return err
		}
		report.Points += len(batch)
		batch = batch[:0]
		return nil
	}

	row := firstCopy
	for {
		pts, ok := meltRow(row, columns, timeIdx, groupIdx, metricIdx)
		if ok {
			report.Rows++
			batch = append(batch, pts...)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return report, err
				}
			}
		} else {
			report.Skipped++
			slog.Debug("skipping malformed row", "file", path, "row", report.Rows+report.Skipped+1)
		}

		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read row: %w", err)
		}
		row = rec
	}
	if err := flush(); err != nil {
		return report, err
	}

	report.Elapsed = time.Since(start)
	return report, nil
}

// sniffColumns classifies each column from its first data value.
func sniffColumns(names, firstRow []string) []models.Column {
	columns := make([]models.Column, len(names))
	for i, name := range names {
		kind := models.ColumnText
		if i < len(firstRow) {
			v := strings.TrimSpace(firstRow[i])
			if _, err := parseTimestamp(v); err == nil {
				kind = models.ColumnTimestamp
			} else if _, err := strconv.ParseFloat(v, 64); err == nil {
				kind = models.ColumnNumber
			}
		}
		columns[i] = models.Column{Name: name, Kind: kind}
	}
	return columns
}

// pickRoles resolves the timestamp, group, and metric column indexes.
func pickRoles(columns []models.Column, opts Options) (timeIdx, groupIdx int, metricIdx []int, err error) {
	timeIdx, groupIdx = -1, -1
	for i, c := range columns {
		switch {
		case opts.TimeColumn != "" && c.Name == opts.TimeColumn:
			timeIdx = i
		case opts.TimeColumn == "" && timeIdx < 0 && c.Kind == models.ColumnTimestamp:
			timeIdx = i
		}
		switch {
		case opts.GroupColumn != "" && c.Name == opts.GroupColumn:
			groupIdx = i
		case opts.GroupColumn == "" && groupIdx < 0 && i != timeIdx && c.Kind == models.ColumnText:
			groupIdx = i
		}
		if c.Kind == models.ColumnNumber {
			metricIdx = append(metricIdx, i)
		}
	}
	if timeIdx < 0 {
		return 0, 0, nil, fmt.Errorf("no timestamp column found")
	}
	if len(metricIdx) == 0 {
		return 0, 0, nil, fmt.Errorf("no numeric columns found")
	}
	return timeIdx, groupIdx, metricIdx, nil
}

// meltRow turns one CSV row into points, one per numeric column.
func meltRow(row []string, columns []models.Column, timeIdx, groupIdx int, metricIdx []int) ([]db.Point, bool) {
	if timeIdx >= len(row) {
		return nil, false
	}
	ts, err := parseTimestamp(strings.TrimSpace(row[timeIdx]))
	if err != nil {
		return nil, false
	}
	group := ""
	if groupIdx >= 0 && groupIdx < len(row) {
		group = strings.TrimSpace(row[groupIdx])
	}

	var pts []db.Point
	for _, i := range metricIdx {
		if i >= len(row) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		if err != nil {
			continue
		}
		pts = append(pts, db.Point{
			TS:     ts,
			Metric: columns[i].Name,
			Group:  group,
			Value:  v,
		})
	}
	if len(pts) == 0 {
		return nil, false
	}
	return pts, true
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
}

// parseTimestamp accepts the common CSV timestamp shapes plus raw unix
// seconds.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	// Unix seconds, but only in a plausible range so plain metric values
	// are not mistaken for dates.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 1_000_000_000 && n < 10_000_000_000 {
		return time.Unix(n, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
