package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/models"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.csv")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestIngestFile(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer database.Close()

	path := writeCSV(t, `ts,region,revenue,units
2026-08-01 00:00:00,east,100.5,3
2026-08-01 01:00:00,west,200,5
2026-08-01 02:00:00,east,50,1
not-a-date,east,1,1
`)

	report, err := File(context.Background(), database, path, Options{})
	if err != nil {
		t.Fatalf("File: %v", err)
	}

	if report.Rows != 3 {
		t.Errorf("rows = %d, want 3", report.Rows)
	}
	if report.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", report.Skipped)
	}
	// Two numeric columns per row.
	if report.Points != 6 {
		t.Errorf("points = %d, want 6", report.Points)
	}
	if report.Dataset.Name != "sales" {
		t.Errorf("dataset name = %q, want sales", report.Dataset.Name)
	}

	wantKinds := map[string]models.ColumnKind{
		"ts":      models.ColumnTimestamp,
		"region":  models.ColumnText,
		"revenue": models.ColumnNumber,
		"units":   models.ColumnNumber,
	}
	for _, c := range report.Dataset.Columns {
		if wantKinds[c.Name] != c.Kind {
			t.Errorf("column %s sniffed as %s, want %s", c.Name, c.Kind, wantKinds[c.Name])
		}
	}

	metrics, err := database.Metrics(context.Background(), report.Dataset.ID)
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if len(metrics) != 2 {
		t.Errorf("metrics = %v, want [revenue units]", metrics)
	}

	stats, err := database.QuerySummary(context.Background(), report.Dataset.ID, "revenue", time.Time{})
	if err != nil {
		t.Fatalf("QuerySummary: %v", err)
	}
	if stats.Rows != 3 || stats.Sum != 350.5 {
		t.Errorf("summary = %+v, want 3 rows summing 350.5", stats)
	}
}

func TestIngestExplicitColumns(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer database.Close()

	path := writeCSV(t, `when,who,what,amount
2026-08-01,alice,deploy,10
2026-08-02,bob,rollback,20
`)

	report, err := File(context.Background(), database, path, Options{
		Name:        "events",
		TimeColumn:  "when",
		GroupColumn: "what",
	})
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if report.Dataset.Name != "events" {
		t.Errorf("name = %q, want events", report.Dataset.Name)
	}

	rows, err := database.QueryBreakdown(context.Background(), db.BreakdownQuery{
		DatasetID: report.Dataset.ID,
		Metric:    "amount",
		Agg:       models.AggSum,
	})
	if err != nil {
		t.Fatalf("QueryBreakdown: %v", err)
	}
	if len(rows) != 2 || rows[0].Group != "rollback" {
		t.Errorf("breakdown = %+v, want rollback first", rows)
	}
}

func TestIngestNoTimestampColumn(t *testing.T) {
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer database.Close()

	path := writeCSV(t, "a,b\n1,2\n")
	if _, err := File(context.Background(), database, path, Options{}); err == nil {
		t.Error("ingest without a timestamp column should fail")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"2026-08-01T12:00:00Z", true},
		{"2026-08-01 12:00:00", true},
		{"2026-08-01", true},
		{"1754006400", true}, // unix seconds
		{"12.5", false},      // plain number must not look like a date
		{"east", false},
		{"", false},
	}
	for _, tt := range tests {
		_, err := parseTimestamp(tt.in)
		if (err == nil) != tt.valid {
			t.Errorf("parseTimestamp(%q) valid=%v, want %v", tt.in, err == nil, tt.valid)
		}
	}
}
