package db

import (
	"context"
	"testing"
	"time"

	"github.com/marlowe/vantage/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	database, err := Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func seedDataset(t *testing.T, database *DB) models.Dataset {
	t.Helper()
	ctx := context.Background()
	ds, err := database.CreateDataset(ctx, "sales", "sales.csv", []models.Column{
		{Name: "ts", Kind: models.ColumnTimestamp},
		{Name: "region", Kind: models.ColumnText},
		{Name: "revenue", Kind: models.ColumnNumber},
	})
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	var points []Point
	for i := 0; i < 10; i++ {
		points = append(points, Point{
			TS:     base.Add(time.Duration(i) * time.Hour),
			Metric: "revenue",
			Group:  []string{"east", "west"}[i%2],
			Value:  float64(10 * (i + 1)),
		})
	}
	if err := database.InsertPoints(ctx, ds.ID, points); err != nil {
		t.Fatalf("InsertPoints: %v", err)
	}
	return ds
}

func TestDatasetRoundTrip(t *testing.T) {
	database := testDB(t)
	ds := seedDataset(t, database)
	ctx := context.Background()

	got, err := database.GetDataset(ctx, ds.ID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.Name != "sales" || len(got.Columns) != 3 {
		t.Errorf("dataset = %+v", got)
	}
	if got.RowCount != 10 {
		t.Errorf("row count = %d, want 10", got.RowCount)
	}

	list, err := database.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListDatasets returned %d datasets, want 1", len(list))
	}

	metrics, err := database.Metrics(ctx, ds.ID)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if len(metrics) != 1 || metrics[0] != "revenue" {
		t.Errorf("metrics = %v, want [revenue]", metrics)
	}
}

func TestCreateDatasetReplacesByName(t *testing.T) {
	database := testDB(t)
	first := seedDataset(t, database)
	ctx := context.Background()

	second, err := database.CreateDataset(ctx, "sales", "sales-v2.csv", nil)
	if err != nil {
		t.Fatalf("CreateDataset: %v", err)
	}
	if second.ID == first.ID {
		t.Error("re-ingest reused the old dataset ID")
	}

	if _, err := database.GetDataset(ctx, first.ID); err == nil {
		t.Error("old dataset survived re-ingest")
	}
	got, err := database.GetDataset(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got.RowCount != 0 {
		t.Errorf("new dataset inherited %d rows", got.RowCount)
	}
}

func TestQuerySummary(t *testing.T) {
	database := testDB(t)
	ds := seedDataset(t, database)

	stats, err := database.QuerySummary(context.Background(), ds.ID, "revenue", time.Time{})
	if err != nil {
		t.Fatalf("QuerySummary: %v", err)
	}
	if stats.Rows != 10 {
		t.Errorf("rows = %d, want 10", stats.Rows)
	}
	if stats.Sum != 550 { // 10+20+...+100
		t.Errorf("sum = %v, want 550", stats.Sum)
	}
	if stats.Min != 10 || stats.Max != 100 {
		t.Errorf("min/max = %v/%v, want 10/100", stats.Min, stats.Max)
	}
}

func TestQuerySeriesBuckets(t *testing.T) {
	database := testDB(t)
	ds := seedDataset(t, database)

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(10 * time.Hour)
	points, err := database.QuerySeries(context.Background(), SeriesQuery{
		DatasetID: ds.ID,
		Metric:    "revenue",
		Agg:       models.AggSum,
		Since:     since,
		Until:     until,
		Buckets:   5, // 2h buckets over a 10h window
	})
	if err != nil {
		t.Fatalf("QuerySeries: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("got %d buckets, want 5: %+v", len(points), points)
	}
	// First bucket holds hours 0 and 1: 10 + 20.
	if points[0].Value != 30 {
		t.Errorf("first bucket = %v, want 30", points[0].Value)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Bucket.After(points[i-1].Bucket) {
			t.Fatalf("buckets not ascending: %+v", points)
		}
	}
}

func TestQueryBreakdown(t *testing.T) {
	database := testDB(t)
	ds := seedDataset(t, database)

	rows, err := database.QueryBreakdown(context.Background(), BreakdownQuery{
		DatasetID: ds.ID,
		Metric:    "revenue",
		Agg:       models.AggSum,
		Limit:     10,
	})
	if err != nil {
		t.Fatalf("QueryBreakdown: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d groups, want 2: %+v", len(rows), rows)
	}
	// west holds the even-indexed values 20+40+60+80+100 = 300.
	if rows[0].Group != "west" || rows[0].Value != 300 {
		t.Errorf("top group = %+v, want west/300", rows[0])
	}
	if rows[1].Group != "east" || rows[1].Value != 250 {
		t.Errorf("second group = %+v, want east/250", rows[1])
	}
}

func TestQueryCancelledContext(t *testing.T) {
	database := testDB(t)
	ds := seedDataset(t, database)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := database.QuerySummary(ctx, ds.ID, "revenue", time.Time{})
	if err == nil {
		t.Error("query with cancelled context should fail")
	}
}
