package output

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/marlowe/vantage/internal/models"
)

func TestMarkdownEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		got, err := Markdown(text, 80)
		if err != nil {
			t.Fatalf("Markdown(%q) error: %v", text, err)
		}
		if got != "" {
			t.Errorf("Markdown(%q) = %q, want empty", text, got)
		}
	}
}

func TestMarkdownWrapsToWidth(t *testing.T) {
	text := "start " + strings.Repeat("word ", 30) + "end"
	got, err := Markdown(text, 40)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}

	plain := ansi.Strip(got)
	if !strings.Contains(plain, "start") || !strings.Contains(plain, "end") {
		t.Errorf("rendered output lost content: %q", plain)
	}
	if len(strings.Split(plain, "\n")) < 2 {
		t.Errorf("long paragraph not wrapped at width 40:\n%s", plain)
	}
}

func TestMarkdownClampsTinyWidth(t *testing.T) {
	got, err := Markdown("## Keys", 3)
	if err != nil {
		t.Fatalf("Markdown error: %v", err)
	}
	if !strings.Contains(ansi.Strip(got), "Keys") {
		t.Errorf("heading text missing from output: %q", got)
	}
}

func TestDatasetLine(t *testing.T) {
	line := DatasetLine(models.Dataset{
		ID:         "ds_1",
		Name:       "sales",
		RowCount:   42,
		IngestedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Columns: []models.Column{
			{Name: "ts", Kind: models.ColumnTimestamp},
			{Name: "revenue", Kind: models.ColumnNumber},
		},
	})

	plain := ansi.Strip(line)
	for _, want := range []string{"sales", "ds_1", "42 rows", "revenue:number"} {
		if !strings.Contains(plain, want) {
			t.Errorf("dataset line missing %q:\n%s", want, plain)
		}
	}
}

func TestIngestSummarySkippedRows(t *testing.T) {
	plain := ansi.Strip(IngestSummary("sales", 100, 300, 0, 120*time.Millisecond))
	if strings.Contains(plain, "skipped") {
		t.Errorf("clean ingest mentions skipped rows: %q", plain)
	}

	plain = ansi.Strip(IngestSummary("sales", 100, 300, 4, 120*time.Millisecond))
	if !strings.Contains(plain, "4 rows skipped") {
		t.Errorf("skipped count missing: %q", plain)
	}
}
