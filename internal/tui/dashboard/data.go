package dashboard

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/marlowe/vantage/internal/backend"
	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
)

// loadDatasets returns a command that lists the ingested datasets
func (m Model) loadDatasets() tea.Cmd {
	database := m.DB
	return func() tea.Msg {
		datasets, err := database.ListDatasets(context.Background())
		return datasetsMsg{datasets: datasets, err: err}
	}
}

// loadMetrics returns a command that lists the selected dataset's metrics
func (m Model) loadMetrics() tea.Cmd {
	database := m.DB
	datasetID := m.Filter.DatasetID
	if datasetID == "" {
		return nil
	}
	return func() tea.Msg {
		metrics, err := database.Metrics(context.Background(), datasetID)
		return metricsMsg{metrics: metrics, err: err}
	}
}

// The fetch factories close over the filter value, never the model, so a
// superseded generation keeps querying the filter it was launched with.

func summaryFetch(database *db.DB, f models.FilterState) fetch.FetchFunc[models.SummaryStats] {
	return func(ctx context.Context) (models.SummaryStats, error) {
		since := time.Now().Add(-f.Window)
		return database.QuerySummary(ctx, f.DatasetID, f.Metric, since)
	}
}

func seriesFetch(database *db.DB, f models.FilterState) fetch.FetchFunc[[]models.SeriesPoint] {
	return func(ctx context.Context) ([]models.SeriesPoint, error) {
		return database.QuerySeries(ctx, db.SeriesQuery{
			DatasetID: f.DatasetID,
			Metric:    f.Metric,
			Agg:       f.Agg,
			Since:     time.Now().Add(-f.Window),
			Buckets:   f.Buckets,
		})
	}
}

func breakdownFetch(database *db.DB, f models.FilterState) fetch.FetchFunc[[]models.BreakdownRow] {
	return func(ctx context.Context) ([]models.BreakdownRow, error) {
		return database.QueryBreakdown(ctx, db.BreakdownQuery{
			DatasetID: f.DatasetID,
			Metric:    f.Metric,
			Agg:       f.Agg,
			Since:     time.Now().Add(-f.Window),
			Limit:     breakdownLimit,
		})
	}
}

func remoteFetch(client *backend.Client, dataset string, f models.FilterState) fetch.FetchFunc[[]models.SeriesPoint] {
	return func(ctx context.Context) ([]models.SeriesPoint, error) {
		if client == nil {
			return nil, fmt.Errorf("not logged in")
		}
		return client.RemoteSeries(ctx, backend.RemoteSeriesRequest{
			Dataset: dataset,
			Metric:  f.Metric,
			Since:   time.Now().Add(-f.Window),
			Buckets: f.Buckets,
		})
	}
}
