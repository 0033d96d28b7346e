package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marlowe/vantage/internal/models"
)

// Point is one melted data point queued for insertion.
type Point struct {
	TS     time.Time
	Metric string
	Group  string
	Value  float64
}

// CreateDataset registers a dataset, replacing any existing dataset with
// the same name (re-ingest semantics: old points are dropped).
func (db *DB) CreateDataset(ctx context.Context, name, sourcePath string, columns []models.Column) (models.Dataset, error) {
	colJSON, err := json.Marshal(columns)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("marshal columns: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var oldID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM datasets WHERE name = ?", name).Scan(&oldID)
	if err != nil && err != sql.ErrNoRows {
		return models.Dataset{}, fmt.Errorf("lookup dataset %q: %w", name, err)
	}
	if oldID != "" {
		if _, err := tx.ExecContext(ctx, "DELETE FROM points WHERE dataset_id = ?", oldID); err != nil {
			return models.Dataset{}, fmt.Errorf("drop old points: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM datasets WHERE id = ?", oldID); err != nil {
			return models.Dataset{}, fmt.Errorf("drop old dataset: %w", err)
		}
	}

	id, err := newID()
	if err != nil {
		return models.Dataset{}, err
	}
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO datasets (id, name, source_path, columns, row_count, ingested_at)
		 VALUES (?, ?, ?, ?, 0, ?)`,
		id, name, sourcePath, string(colJSON), formatTime(now),
	)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Dataset{}, fmt.Errorf("commit: %w", err)
	}

	return models.Dataset{
		ID:         id,
		Name:       name,
		SourcePath: sourcePath,
		Columns:    columns,
		IngestedAt: now,
	}, nil
}

// InsertPoints appends points to a dataset in one transaction and bumps its
// row count.
func (db *DB) InsertPoints(ctx context.Context, datasetID string, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO points (dataset_id, ts, metric, grp, value) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, datasetID, formatTime(p.TS), p.Metric, p.Group, p.Value); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE datasets SET row_count = row_count + ? WHERE id = ?", len(points), datasetID)
	if err != nil {
		return fmt.Errorf("update row count: %w", err)
	}
	return tx.Commit()
}

// ListDatasets returns all datasets, newest first.
func (db *DB) ListDatasets(ctx context.Context) ([]models.Dataset, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, source_path, columns, row_count, ingested_at
		 FROM datasets ORDER BY ingested_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []models.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// GetDataset fetches one dataset by ID.
func (db *DB) GetDataset(ctx context.Context, id string) (models.Dataset, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, name, source_path, columns, row_count, ingested_at
		 FROM datasets WHERE id = ?`, id)
	ds, err := scanDataset(row)
	if err == sql.ErrNoRows {
		return models.Dataset{}, fmt.Errorf("dataset %q not found", id)
	}
	return ds, err
}

// Metrics returns the distinct metric names recorded for a dataset.
func (db *DB) Metrics(ctx context.Context, datasetID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT metric FROM points WHERE dataset_id = ? ORDER BY metric", datasetID)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var metrics []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDataset(s scanner) (models.Dataset, error) {
	var (
		ds      models.Dataset
		colJSON string
		tsStr   string
	)
	if err := s.Scan(&ds.ID, &ds.Name, &ds.SourcePath, &colJSON, &ds.RowCount, &tsStr); err != nil {
		return models.Dataset{}, err
	}
	if err := json.Unmarshal([]byte(colJSON), &ds.Columns); err != nil {
		return models.Dataset{}, fmt.Errorf("parse columns for %s: %w", ds.ID, err)
	}
	ts, err := parseTime(tsStr)
	if err != nil {
		return models.Dataset{}, err
	}
	ds.IngestedAt = ts
	return ds, nil
}
