// Package output provides styled terminal output helpers for the CLI
// commands using lipgloss.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/marlowe/vantage/internal/models"
)

// minMarkdownWidth keeps glamour from wrapping into unreadable slivers on
// tiny terminals.
const minMarkdownWidth = 20

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Success prints a success message.
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message.
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message.
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// DatasetLine formats one dataset for list output.
func DatasetLine(ds models.Dataset) string {
	cols := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		cols = append(cols, fmt.Sprintf("%s:%s", c.Name, c.Kind))
	}
	return fmt.Sprintf("%s  %s  %s\n    %s",
		titleStyle.Render(ds.Name),
		subtleStyle.Render(ds.ID),
		subtleStyle.Render(fmt.Sprintf("%d rows, ingested %s", ds.RowCount, ds.IngestedAt.Format(time.DateOnly))),
		strings.Join(cols, "  "))
}

// Markdown renders text as glamour-styled markdown wrapped to width. The
// caller supplies the width; the dashboard passes its panel width so the
// help overlay fits inside the alternate screen.
func Markdown(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if width < minMarkdownWidth {
		width = minMarkdownWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := renderer.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

// IngestSummary formats an ingest report.
func IngestSummary(name string, rows, points, skipped int, elapsed time.Duration) string {
	line := fmt.Sprintf("Ingested %s: %d rows (%d points) in %s",
		titleStyle.Render(name), rows, points, elapsed.Round(time.Millisecond))
	if skipped > 0 {
		line += warningStyle.Render(fmt.Sprintf("  %d rows skipped", skipped))
	}
	return line
}
