package dashboard

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/marlowe/vantage/internal/models"
)

func makePoints(values ...float64) []models.SeriesPoint {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.SeriesPoint, len(values))
	for i, v := range values {
		points[i] = models.SeriesPoint{Bucket: base.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return points
}

func TestSparklineScales(t *testing.T) {
	line := Sparkline(makePoints(0, 50, 100), 3)
	runes := []rune(line)
	if len(runes) != 3 {
		t.Fatalf("sparkline = %q, want 3 runes", line)
	}
	if runes[0] != ' ' {
		t.Errorf("zero value rendered %q, want space", runes[0])
	}
	if runes[2] != '█' {
		t.Errorf("max value rendered %q, want full block", runes[2])
	}
	if runes[1] == ' ' || runes[1] == '█' {
		t.Errorf("mid value rendered %q, want partial block", runes[1])
	}
}

func TestSparklineResamples(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i)
	}
	line := Sparkline(makePoints(values...), 10)
	if got := utf8.RuneCountInString(line); got != 10 {
		t.Errorf("resampled width = %d, want 10", got)
	}
}

func TestSparklineEmpty(t *testing.T) {
	if got := Sparkline(nil, 20); got != "" {
		t.Errorf("empty series = %q, want empty string", got)
	}
}

func TestBarChartDimensions(t *testing.T) {
	chart := BarChart(makePoints(1, 2, 3, 4), 4, 5)
	lines := strings.Split(chart, "\n")
	if len(lines) != 5 {
		t.Fatalf("chart has %d rows, want 5", len(lines))
	}
	for i, line := range lines {
		if got := utf8.RuneCountInString(line); got != 4 {
			t.Errorf("row %d width = %d, want 4", i, got)
		}
	}
}

func TestBarChartMaxFillsColumn(t *testing.T) {
	chart := BarChart(makePoints(100), 1, 3)
	lines := strings.Split(chart, "\n")
	for i, line := range lines {
		if line != "█" {
			t.Errorf("row %d = %q, want full block", i, line)
		}
	}
}

func TestBarChartDegradesToSparkline(t *testing.T) {
	points := makePoints(1, 2, 3)
	if BarChart(points, 3, 1) != Sparkline(points, 3) {
		t.Error("height 1 chart should match the sparkline")
	}
}

func TestResampleAverages(t *testing.T) {
	got := resample(makePoints(1, 3, 10, 20), 2)
	if len(got) != 2 || got[0] != 2 || got[1] != 15 {
		t.Errorf("resample = %v, want [2 15]", got)
	}
}

func TestResamplePassthrough(t *testing.T) {
	got := resample(makePoints(5, 7), 10)
	if len(got) != 2 || got[0] != 5 || got[1] != 7 {
		t.Errorf("resample = %v, want [5 7]", got)
	}
}
