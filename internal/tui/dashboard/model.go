// Package dashboard is the interactive data dashboard TUI. Every data-bound
// panel is backed by an abortable fetch stream: keystrokes reconcile the
// panels' dependency keys, superseded queries are cancelled, and nothing
// user-scoped is fetched until the boot readiness gate opens.
package dashboard

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/marlowe/vantage/internal/backend"
	"github.com/marlowe/vantage/internal/boot"
	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
)

// Panel represents which panel is active
type Panel int

const (
	PanelSummary Panel = iota
	PanelChart
	PanelBreakdown
)

const numPanels = 3

// MinWidth is the minimum terminal width for proper display
const MinWidth = 40

// MinHeight is the minimum terminal height for proper display
const MinHeight = 15

// queryTimeout races each panel fetch against a deadline. A fired deadline
// classifies as transient, so a wedged query gets one automatic retry.
const queryTimeout = 10 * time.Second

const breakdownLimit = 8

// windows are the selectable time windows, cycled with + and -.
var windows = []time.Duration{
	15 * time.Minute,
	time.Hour,
	6 * time.Hour,
	24 * time.Hour,
	7 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// aggregates are the selectable aggregate functions, cycled with a.
var aggregates = []models.Aggregate{
	models.AggSum,
	models.AggMean,
	models.AggCount,
	models.AggMax,
}

// GateEvent is one readiness diagnostic, forwarded into the tea loop.
type GateEvent struct {
	Phase      boot.Phase
	Unresolved []string
	Stuck      bool
}

// ChannelSink is the gate's DiagnosticsSink for the TUI: events go to the
// message loop and to slog. Sends never block; the phase itself is re-read
// from the gate, so a dropped event only delays a repaint.
type ChannelSink struct {
	Events chan<- GateEvent
	Log    boot.SlogSink
}

func (s ChannelSink) PhaseChanged(from, to boot.Phase) {
	s.Log.PhaseChanged(from, to)
	s.send(GateEvent{Phase: to})
}

func (s ChannelSink) Slow(unresolved []string, elapsed time.Duration) {
	s.Log.Slow(unresolved, elapsed)
	s.send(GateEvent{Phase: boot.PhaseSlow, Unresolved: unresolved})
}

func (s ChannelSink) Stuck(unresolved []string, elapsed time.Duration) {
	s.Log.Stuck(unresolved, elapsed)
	s.send(GateEvent{Phase: boot.PhaseStuck, Unresolved: unresolved, Stuck: true})
}

func (s ChannelSink) send(ev GateEvent) {
	select {
	case s.Events <- ev:
	default:
	}
}

// TickMsg triggers a periodic refetch
type TickMsg time.Time

type gateEventMsg GateEvent

type bootDoneMsg struct{}

type datasetsMsg struct {
	datasets []models.Dataset
	err      error
}

type metricsMsg struct {
	metrics []string
	err     error
}

type summarySnapMsg fetch.Snapshot[models.SummaryStats]

type seriesSnapMsg fetch.Snapshot[[]models.SeriesPoint]

type breakdownSnapMsg fetch.Snapshot[[]models.BreakdownRow]

type remoteSnapMsg fetch.Snapshot[[]models.SeriesPoint]

// Model is the main Bubble Tea model for the dashboard TUI
type Model struct {
	DB      *db.DB
	Backend *backend.Client
	Gate    *boot.Gate
	Boot    *boot.Bootstrapper
	Events  <-chan GateEvent

	// Window dimensions
	Width  int
	Height int

	// Selection state
	Datasets  []models.Dataset
	Metrics   []string
	dsIdx     int
	metricIdx int
	Filter    models.FilterState

	// Fetch streams, one per data-bound panel
	guard     *fetch.Guard
	summary   *fetch.Runner[models.SummaryStats]
	series    *fetch.Runner[[]models.SeriesPoint]
	breakdown *fetch.Runner[[]models.BreakdownRow]
	remote    *fetch.Runner[[]models.SeriesPoint]

	// Latest snapshots, mirrored from the runners for the view
	Summary   fetch.Snapshot[models.SummaryStats]
	Series    fetch.Snapshot[[]models.SeriesPoint]
	Breakdown fetch.Snapshot[[]models.BreakdownRow]
	Remote    fetch.Snapshot[[]models.SeriesPoint]

	// UI state
	ActivePanel Panel
	ShowHelp    bool
	Searching   bool
	MetricInput textinput.Model
	Spinner     spinner.Model
	LastRefresh time.Time
	Err         error

	// Configuration
	RefreshInterval time.Duration
	ChartStyle      string
}

// NewModel creates a new dashboard model. The client may be nil when the
// user is logged out; the remote stream then stays disabled.
func NewModel(database *db.DB, client *backend.Client, gate *boot.Gate, strap *boot.Bootstrapper, events <-chan GateEvent, interval time.Duration) Model {
	guard := fetch.NewGuard()

	input := textinput.New()
	input.Placeholder = "metric name"
	input.CharLimit = 64
	input.Width = 24

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		DB:              database,
		Backend:         client,
		Gate:            gate,
		Boot:            strap,
		Events:          events,
		guard:           guard,
		summary:         fetch.NewRunner[models.SummaryStats](guard, "summary"),
		series:          fetch.NewRunner[[]models.SeriesPoint](guard, "series"),
		breakdown:       fetch.NewRunner[[]models.BreakdownRow](guard, "breakdown"),
		remote:          fetch.NewRunner[[]models.SeriesPoint](guard, "remote"),
		MetricInput:     input,
		Spinner:         sp,
		RefreshInterval: interval,
		ChartStyle:      models.DefaultPreferences().ChartStyle,
		Filter: models.FilterState{
			Agg:     models.AggSum,
			Window:  24 * time.Hour,
			Buckets: 60,
		},
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.startBoot(),
		m.loadDatasets(),
		m.waitGate(),
		m.waitSummary(),
		m.waitSeries(),
		m.waitBreakdown(),
		m.waitRemote(),
		m.scheduleTick(),
		m.Spinner.Tick,
	)
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		return m, nil

	case TickMsg:
		m.refetchAll()
		return m, m.scheduleTick()

	case spinner.TickMsg:
		// The spinner only animates the boot screen; stop once ready.
		if m.Gate.IsReady() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case gateEventMsg:
		// Enablement may have flipped: reconcile every stream. The view
		// reads phase and unresolved names straight from the gate.
		m.applyFilters()
		return m, m.waitGate()

	case bootDoneMsg:
		prefs := m.Boot.Prefs()
		if prefs.RefreshInterval > 0 {
			m.RefreshInterval = prefs.RefreshInterval
		}
		if prefs.ChartStyle != "" {
			m.ChartStyle = prefs.ChartStyle
		}
		if prefs.DefaultDataset != "" {
			for i, ds := range m.Datasets {
				if ds.Name == prefs.DefaultDataset {
					m.dsIdx = i
					break
				}
			}
		}
		m.syncSelection()
		return m, m.loadMetrics()

	case datasetsMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Datasets = msg.datasets
		if prefs := m.Boot.Prefs(); prefs.DefaultDataset != "" {
			for i, ds := range m.Datasets {
				if ds.Name == prefs.DefaultDataset {
					m.dsIdx = i
					break
				}
			}
		}
		m.syncSelection()
		return m, m.loadMetrics()

	case metricsMsg:
		if msg.err != nil {
			m.Err = msg.err
			return m, nil
		}
		m.Metrics = msg.metrics
		m.metricIdx = 0
		for i, name := range m.Metrics {
			if name == m.Filter.Metric {
				m.metricIdx = i
				break
			}
		}
		m.syncSelection()
		m.applyFilters()
		return m, nil

	case summarySnapMsg:
		m.Summary = fetch.Snapshot[models.SummaryStats](msg)
		m.LastRefresh = time.Now()
		return m, m.waitSummary()

	case seriesSnapMsg:
		m.Series = fetch.Snapshot[[]models.SeriesPoint](msg)
		return m, m.waitSeries()

	case breakdownSnapMsg:
		m.Breakdown = fetch.Snapshot[[]models.BreakdownRow](msg)
		return m, m.waitBreakdown()

	case remoteSnapMsg:
		m.Remote = fetch.Snapshot[[]models.SeriesPoint](msg)
		return m, m.waitRemote()
	}

	return m, nil
}

// handleKey processes key input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.Searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.closeRunners()
		return m, tea.Quit

	case "tab":
		m.ActivePanel = (m.ActivePanel + 1) % numPanels
		return m, nil

	case "shift+tab":
		m.ActivePanel = (m.ActivePanel + numPanels - 1) % numPanels
		return m, nil

	case "1":
		m.ActivePanel = PanelSummary
		return m, nil

	case "2":
		m.ActivePanel = PanelChart
		return m, nil

	case "3":
		m.ActivePanel = PanelBreakdown
		return m, nil

	case "d":
		return m.cycleDataset(1)

	case "D":
		return m.cycleDataset(-1)

	case "m":
		m.cycleMetric(1)
		return m, nil

	case "M":
		m.cycleMetric(-1)
		return m, nil

	case "a":
		m.cycleAggregate()
		return m, nil

	case "+", "=":
		m.cycleWindow(1)
		return m, nil

	case "-":
		m.cycleWindow(-1)
		return m, nil

	case "/":
		m.Searching = true
		m.MetricInput.SetValue("")
		return m, m.MetricInput.Focus()

	case "r":
		m.refetchAll()
		return m, nil

	case "R":
		m.Gate.RestartWatchdog()
		return m, nil

	case "f":
		if forced := m.Gate.ForceDefaults(); len(forced) > 0 {
			m.applyFilters()
		}
		return m, nil

	case "?":
		m.ShowHelp = !m.ShowHelp
		return m, nil
	}

	return m, nil
}

// handleSearchKey processes input while the metric search box is open
func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Searching = false
		m.MetricInput.Blur()
		return m, nil

	case "enter":
		m.Searching = false
		m.MetricInput.Blur()
		name := m.MetricInput.Value()
		for i, metric := range m.Metrics {
			if metric == name {
				m.metricIdx = i
				m.syncSelection()
				m.applyFilters()
				return m, nil
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.MetricInput, cmd = m.MetricInput.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m Model) View() string {
	return m.renderView()
}

// cycleDataset selects the next or previous dataset and reloads its metrics
func (m Model) cycleDataset(delta int) (tea.Model, tea.Cmd) {
	if len(m.Datasets) == 0 {
		return m, nil
	}
	m.dsIdx = (m.dsIdx + delta + len(m.Datasets)) % len(m.Datasets)
	m.Filter.Metric = ""
	m.syncSelection()
	return m, m.loadMetrics()
}

func (m *Model) cycleMetric(delta int) {
	if len(m.Metrics) == 0 {
		return
	}
	m.metricIdx = (m.metricIdx + delta + len(m.Metrics)) % len(m.Metrics)
	m.syncSelection()
	m.applyFilters()
}

func (m *Model) cycleAggregate() {
	for i, agg := range aggregates {
		if agg == m.Filter.Agg {
			m.Filter.Agg = aggregates[(i+1)%len(aggregates)]
			m.applyFilters()
			return
		}
	}
	m.Filter.Agg = aggregates[0]
	m.applyFilters()
}

func (m *Model) cycleWindow(delta int) {
	idx := 0
	for i, w := range windows {
		if w == m.Filter.Window {
			idx = i
			break
		}
	}
	idx += delta
	if idx < 0 || idx >= len(windows) {
		return
	}
	m.Filter.Window = windows[idx]
	m.applyFilters()
}

// syncSelection folds the current dataset and metric picks into the filter
func (m *Model) syncSelection() {
	if m.dsIdx < len(m.Datasets) {
		m.Filter.DatasetID = m.Datasets[m.dsIdx].ID
	}
	if m.metricIdx < len(m.Metrics) {
		m.Filter.Metric = m.Metrics[m.metricIdx]
	}
}

// datasetName returns the selected dataset's name, for display and for the
// remote series request.
func (m Model) datasetName() string {
	if m.dsIdx < len(m.Datasets) {
		return m.Datasets[m.dsIdx].Name
	}
	return ""
}

// remoteEnabled reports whether the remote stream should fetch: logged in
// and on a paid tier.
func (m Model) remoteEnabled() bool {
	return m.Backend != nil && m.Boot.Tier() != models.TierFree
}

// applyFilters reconciles every stream against the current filter state.
// Idempotent per key: pressing the same key twice launches nothing new,
// while any structural change cancels the superseded fetch.
func (m Model) applyFilters() {
	f := m.Filter
	enabled := m.Gate.IsReady() && f.DatasetID != "" && f.Metric != ""
	opts := fetch.Options{Enabled: enabled, KeepPrevious: true, Timeout: queryTimeout}

	m.summary.Apply(fetch.Input[models.SummaryStats]{
		Key:     fetch.KeyOf("summary", f),
		Fetch:   summaryFetch(m.DB, f),
		Options: opts,
	})
	m.series.Apply(fetch.Input[[]models.SeriesPoint]{
		Key:     fetch.KeyOf("series", f),
		Fetch:   seriesFetch(m.DB, f),
		Options: opts,
	})
	m.breakdown.Apply(fetch.Input[[]models.BreakdownRow]{
		Key:     fetch.KeyOf("breakdown", f),
		Fetch:   breakdownFetch(m.DB, f),
		Options: opts,
	})

	remoteOpts := opts
	remoteOpts.Enabled = enabled && m.remoteEnabled()
	m.remote.Apply(fetch.Input[[]models.SeriesPoint]{
		Key:     fetch.KeyOf("remote", m.datasetName(), f),
		Fetch:   remoteFetch(m.Backend, m.datasetName(), f),
		Options: remoteOpts,
	})
}

// refetchAll forces a new generation on every enabled stream
func (m Model) refetchAll() {
	m.summary.Refetch()
	m.series.Refetch()
	m.breakdown.Refetch()
	m.remote.Refetch()
}

func (m Model) closeRunners() {
	m.summary.Close()
	m.series.Close()
	m.breakdown.Close()
	m.remote.Close()
}

// startBoot drives the boot preconditions on their own goroutine
func (m Model) startBoot() tea.Cmd {
	return func() tea.Msg {
		m.Boot.Run(context.Background())
		return bootDoneMsg{}
	}
}

// scheduleTick returns a command that sends a TickMsg after the refresh interval
func (m Model) scheduleTick() tea.Cmd {
	return tea.Tick(m.RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// waitGate forwards the next readiness diagnostic into the tea loop
func (m Model) waitGate() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.Events
		if !ok {
			return nil
		}
		return gateEventMsg(ev)
	}
}

func (m Model) waitSummary() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.summary.Updates()
		if !ok {
			return nil
		}
		return summarySnapMsg(snap)
	}
}

func (m Model) waitSeries() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.series.Updates()
		if !ok {
			return nil
		}
		return seriesSnapMsg(snap)
	}
}

func (m Model) waitBreakdown() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.breakdown.Updates()
		if !ok {
			return nil
		}
		return breakdownSnapMsg(snap)
	}
}

func (m Model) waitRemote() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-m.remote.Updates()
		if !ok {
			return nil
		}
		return remoteSnapMsg(snap)
	}
}
