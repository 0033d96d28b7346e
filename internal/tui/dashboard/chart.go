package dashboard

import (
	"strings"

	"github.com/marlowe/vantage/internal/models"
)

// Eighth-block runes, from empty to full.
var blockRunes = []rune(" ▁▂▃▄▅▆▇█")

// Sparkline renders values as a single line of block runes, resampled to
// width columns. Values are scaled against the series maximum; an all-zero
// series renders as a flat baseline.
func Sparkline(points []models.SeriesPoint, width int) string {
	cols := resample(points, width)
	if len(cols) == 0 {
		return ""
	}
	max := maxValue(cols)

	var b strings.Builder
	for _, v := range cols {
		idx := 0
		if max > 0 && v > 0 {
			idx = int(v/max*8 + 0.5)
			if idx < 1 {
				idx = 1
			}
			if idx > 8 {
				idx = 8
			}
		}
		b.WriteRune(blockRunes[idx])
	}
	return b.String()
}

// BarChart renders values as a column chart of the given height, top row
// first. Height 1 degrades to a sparkline.
func BarChart(points []models.SeriesPoint, width, height int) string {
	if height <= 1 {
		return Sparkline(points, width)
	}
	cols := resample(points, width)
	if len(cols) == 0 {
		return ""
	}
	max := maxValue(cols)

	lines := make([]string, height)
	for row := 0; row < height; row++ {
		var b strings.Builder
		for _, v := range cols {
			// Column height in eighths, measured from the bottom.
			eighths := 0.0
			if max > 0 && v > 0 {
				eighths = v / max * float64(height) * 8
			}
			filled := eighths - float64((height-1-row)*8)
			switch {
			case filled >= 8:
				b.WriteRune(blockRunes[8])
			case filled <= 0:
				b.WriteRune(blockRunes[0])
			default:
				b.WriteRune(blockRunes[int(filled)])
			}
		}
		lines[row] = b.String()
	}
	return strings.Join(lines, "\n")
}

// resample squeezes the series into at most width columns by averaging each
// column's bucket values. Fewer points than columns pass through unchanged.
func resample(points []models.SeriesPoint, width int) []float64 {
	if len(points) == 0 || width <= 0 {
		return nil
	}
	if len(points) <= width {
		out := make([]float64, len(points))
		for i, p := range points {
			out[i] = p.Value
		}
		return out
	}

	out := make([]float64, width)
	counts := make([]int, width)
	for i, p := range points {
		col := i * width / len(points)
		out[col] += p.Value
		counts[col]++
	}
	for i := range out {
		if counts[i] > 0 {
			out[i] /= float64(counts[i])
		}
	}
	return out
}

func maxValue(vals []float64) float64 {
	max := 0.0
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	return max
}
