package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/marlowe/vantage/internal/boot"
	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
	"github.com/marlowe/vantage/internal/output"
)

const (
	summaryPanelHeight   = 7
	breakdownPanelHeight = 11
	minChartHeight       = 6
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	// Handle small terminal sizes gracefully
	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Err != nil {
		return m.renderError()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// The whole dashboard waits behind the readiness gate. Panels never
	// render user-scoped data before the gate opens.
	if !m.Gate.IsReady() {
		return m.renderBoot()
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	availableHeight := m.Height - 2 // header + footer
	chartHeight := availableHeight - summaryPanelHeight - breakdownPanelHeight
	breakdownHeight := breakdownPanelHeight
	if chartHeight < minChartHeight {
		breakdownHeight += chartHeight - minChartHeight
		chartHeight = minChartHeight
	}

	panels := lipgloss.JoinVertical(lipgloss.Left,
		m.renderSummaryPanel(summaryPanelHeight),
		m.renderChartPanel(chartHeight),
		m.renderBreakdownPanel(breakdownHeight),
	)

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, footer)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("vantage (resize for full view)\n\n")
	s.WriteString(fmt.Sprintf("Phase: %s\n", m.Gate.Phase()))
	if m.Filter.DatasetID != "" {
		s.WriteString(fmt.Sprintf("%s · %s %s · %s\n",
			m.datasetName(), m.Filter.Agg, m.Filter.Metric, formatWindow(m.Filter.Window)))
	}
	if m.Summary.HasData {
		s.WriteString(fmt.Sprintf("Rows: %d  Sum: %.2f\n", m.Summary.Data.Rows, m.Summary.Data.Sum))
	}
	s.WriteString("\nq:quit r:refresh ?:help")

	return s.String()
}

// renderError renders a fatal error message
func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress q to quit", m.Err)
}

// renderBoot renders the startup screen shown until the gate opens
func (m Model) renderBoot() string {
	phase := m.Gate.Phase()
	elapsed := m.Gate.Elapsed().Round(100 * time.Millisecond)

	var lines []string
	lines = append(lines, titleStyle.Render("vantage")+"  "+formatPhase(phase))
	lines = append(lines, "")
	lines = append(lines, m.Spinner.View()+subtleStyle.Render(fmt.Sprintf("starting for %s", elapsed)))

	if unresolved := m.Gate.Unresolved(); len(unresolved) > 0 {
		lines = append(lines, "")
		lines = append(lines, subtleStyle.Render("waiting on:"))
		for _, name := range unresolved {
			lines = append(lines, "  • "+name)
		}
	}
	if failed := m.Gate.Failed(); len(failed) > 0 {
		lines = append(lines, "")
		lines = append(lines, warningStyle.Render("using defaults for: "+strings.Join(failed, ", ")))
	}

	lines = append(lines, "")
	switch phase {
	case boot.PhaseSlow:
		lines = append(lines, warningStyle.Render("This is taking longer than usual."))
	case boot.PhaseStuck:
		lines = append(lines, errorStyle.Render("Startup appears stuck."))
		lines = append(lines, helpStyle.Render("f:continue with defaults  R:keep waiting  q:quit"))
	default:
		lines = append(lines, helpStyle.Render("q:quit"))
	}

	box := activePanelStyle.Width(50).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, box)
}

// renderHeader renders the selection bar at the top
func (m Model) renderHeader() string {
	name := m.datasetName()
	if name == "" {
		name = "no dataset"
	}
	metric := m.Filter.Metric
	if metric == "" {
		metric = "no metric"
	}

	parts := []string{
		titleStyle.Render("vantage"),
		name,
		fmt.Sprintf("%s(%s)", m.Filter.Agg, metric),
		formatWindow(m.Filter.Window),
	}
	line := " " + strings.Join(parts, subtleStyle.Render("  │  "))

	if m.Searching {
		line += "  " + m.MetricInput.View()
	}
	return ansi.Truncate(line, m.Width, "…")
}

// renderSummaryPanel renders the headline stats panel (Panel 1)
func (m Model) renderSummaryPanel(height int) string {
	body := m.panelBody(m.Summary.Status, m.Summary.Err, m.Summary.HasData, func() string {
		s := m.Summary.Data
		var content strings.Builder
		content.WriteString(fmt.Sprintf("%s %d    %s %.2f    %s %.2f\n",
			subtleStyle.Render("rows"), s.Rows,
			subtleStyle.Render("sum"), s.Sum,
			subtleStyle.Render("mean"), s.Mean))
		content.WriteString(fmt.Sprintf("%s %.2f    %s %.2f\n",
			subtleStyle.Render("min"), s.Min,
			subtleStyle.Render("max"), s.Max))
		if !s.First.IsZero() {
			content.WriteString(timestampStyle.Render(fmt.Sprintf("%s → %s",
				s.First.Format("2006-01-02 15:04"), s.Last.Format("2006-01-02 15:04"))))
		}
		return content.String()
	})
	return m.wrapPanel(m.panelTitle("SUMMARY", m.Summary.Status), body, height, PanelSummary)
}

// renderChartPanel renders the time-series chart panel (Panel 2)
func (m Model) renderChartPanel(height int) string {
	contentWidth := m.Width - 6
	remoteRows := 0
	if m.remoteEnabled() {
		remoteRows = 1
	}

	body := m.panelBody(m.Series.Status, m.Series.Err, m.Series.HasData, func() string {
		points := m.Series.Data
		if len(points) == 0 {
			return subtleStyle.Render("No points in window")
		}
		chartHeight := height - 4 - remoteRows // title, border, axis line
		if chartHeight < 1 {
			chartHeight = 1
		}
		var chart string
		if m.ChartStyle == "spark" {
			chart = Sparkline(points, contentWidth)
		} else {
			chart = BarChart(points, contentWidth, chartHeight)
		}

		var content strings.Builder
		content.WriteString(barStyle.Render(chart))
		content.WriteString("\n")
		content.WriteString(m.renderAxis(points, contentWidth))
		return content.String()
	})

	if remoteRows > 0 {
		body += "\n" + m.renderRemoteLine(m.Width-8)
	}
	return m.wrapPanel(m.panelTitle("CHART", m.Series.Status), body, height, PanelChart)
}

// renderAxis renders the chart's time axis and peak value
func (m Model) renderAxis(points []models.SeriesPoint, width int) string {
	first := points[0].Bucket.Format("15:04")
	last := points[len(points)-1].Bucket.Format("15:04")
	if m.Filter.Window >= 24*time.Hour {
		first = points[0].Bucket.Format("01-02 15:04")
		last = points[len(points)-1].Bucket.Format("01-02 15:04")
	}
	peak := 0.0
	for _, p := range points {
		if p.Value > peak {
			peak = p.Value
		}
	}
	mid := fmt.Sprintf("peak %.2f", peak)

	pad := width - len(first) - len(last) - len(mid)
	if pad < 2 {
		return timestampStyle.Render(first + " … " + last)
	}
	left := pad / 2
	return timestampStyle.Render(first + strings.Repeat(" ", left) + mid + strings.Repeat(" ", pad-left) + last)
}

// renderRemoteLine renders the remote activity sparkline under the chart
func (m Model) renderRemoteLine(width int) string {
	label := subtleStyle.Render("remote ")
	switch m.Remote.Status {
	case fetch.StatusPending:
		return label + subtleStyle.Render("loading…")
	case fetch.StatusError:
		if errors.Is(m.Remote.Err, fetch.ErrUnauthorized) {
			return label + warningStyle.Render("session expired, run: vantage auth login")
		}
		return label + errorStyle.Render("unavailable")
	}
	if !m.Remote.HasData || len(m.Remote.Data) == 0 {
		return label + subtleStyle.Render("no data")
	}
	return label + remoteBarStyle.Render(Sparkline(m.Remote.Data, width-8))
}

// renderBreakdownPanel renders the top-groups panel (Panel 3)
func (m Model) renderBreakdownPanel(height int) string {
	body := m.panelBody(m.Breakdown.Status, m.Breakdown.Err, m.Breakdown.HasData, func() string {
		rows := m.Breakdown.Data
		if len(rows) == 0 {
			return subtleStyle.Render("No groups in window")
		}
		max := 0.0
		for _, r := range rows {
			if r.Value > max {
				max = r.Value
			}
		}

		var content strings.Builder
		for _, r := range rows {
			group := r.Group
			if group == "" {
				group = "(none)"
			}
			group = ansi.Truncate(group, 14, "…")
			barWidth := 0
			if max > 0 {
				barWidth = int(r.Value / max * 20)
			}
			content.WriteString(fmt.Sprintf("%-14s %s %.2f %s\n",
				group,
				barStyle.Render(strings.Repeat("█", barWidth)),
				r.Value,
				subtleStyle.Render(fmt.Sprintf("(%d)", r.Count))))
		}
		return content.String()
	})
	return m.wrapPanel(m.panelTitle("TOP GROUPS", m.Breakdown.Status), body, height, PanelBreakdown)
}

// panelTitle appends a refresh marker while a panel refetches behind its
// previous data.
func (m Model) panelTitle(title string, status fetch.Status) string {
	if status == fetch.StatusRefreshing {
		return title + " ⟳"
	}
	return title
}

// panelBody folds a stream's status into panel content: settled data renders,
// everything else shows its state.
func (m Model) panelBody(status fetch.Status, err error, hasData bool, render func() string) string {
	switch status {
	case fetch.StatusIdle:
		return subtleStyle.Render("Waiting…")
	case fetch.StatusPending:
		return subtleStyle.Render("Loading…")
	case fetch.StatusCanceled:
		return subtleStyle.Render("Interrupted · press r to retry")
	case fetch.StatusError:
		if errors.Is(err, fetch.ErrUnauthorized) {
			return warningStyle.Render("Session expired. Run: vantage auth login")
		}
		return errorStyle.Render(fmt.Sprintf("Error: %v", err))
	}
	// Success, or refreshing with previous data still visible.
	if !hasData {
		return subtleStyle.Render("No data")
	}
	return render()
}

// renderFooter renders the footer with key bindings and refresh time
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:panel  d:dataset  m:metric  a:agg  +/-:window  /:search  r:refresh  ?:help")

	tierBadge := ""
	if tier := m.Boot.Tier(); tier != models.TierFree {
		tierBadge = tierBadgeStyle.Render(fmt.Sprintf(" %s ", strings.ToUpper(string(tier))))
	}

	refresh := ""
	if !m.LastRefresh.IsZero() {
		refresh = timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))
	}

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(tierBadge) - lipgloss.Width(refresh) - 2
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s%s", keys, strings.Repeat(" ", padding), tierBadge, refresh)
}

const helpMarkdown = `# vantage dashboard

## Selection

| Key | Action |
|-----|--------|
| d / D | Next / previous dataset |
| m / M | Next / previous metric |
| / | Search metric by name |
| a | Cycle aggregate (sum, mean, count, max) |
| + / - | Widen / narrow the time window |

## Panels

| Key | Action |
|-----|--------|
| Tab / Shift+Tab | Switch panel |
| 1 / 2 / 3 | Jump to panel |

## Actions

| Key | Action |
|-----|--------|
| r | Force refresh |
| f | Continue with defaults when startup is stuck |
| R | Restart the startup watchdog |
| q / Ctrl+C | Quit |

Press ? to close help.`

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	rendered, err := output.Markdown(helpMarkdown, m.Width-4)
	if err != nil {
		return helpStyle.Render(helpMarkdown)
	}
	return rendered
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)
	contentWidth := m.Width - 4

	lines := strings.Split(content, "\n")
	contentHeight := height - 3 // Title + border
	if contentHeight < 1 {
		contentHeight = 1
	}

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = ansi.Truncate(line, contentWidth, "…")
		}
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, strings.Join(lines, "\n"))
	return style.Width(m.Width - 2).Render(inner)
}

// formatWindow renders a window duration compactly (24h, 7d).
func formatWindow(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}
	return fmt.Sprintf("%dm", d/time.Minute)
}
