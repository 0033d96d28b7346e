package models

import "time"

// Tier is the entitlement tier granted to the current user.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ValidTier reports whether s names a known entitlement tier.
func ValidTier(s string) bool {
	switch Tier(s) {
	case TierFree, TierPro, TierEnterprise:
		return true
	}
	return false
}

// ColumnKind classifies a dataset column for aggregation purposes.
type ColumnKind string

const (
	ColumnTimestamp ColumnKind = "timestamp"
	ColumnNumber    ColumnKind = "number"
	ColumnText      ColumnKind = "text"
)

// Column describes one column of an ingested dataset.
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Dataset is one ingested CSV file, stored as rows in the local database.
type Dataset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	Columns    []Column  `json:"columns"`
	RowCount   int64     `json:"row_count"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SeriesPoint is one time-bucketed aggregate value.
type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

// BreakdownRow is one group in a top-N group-by aggregate.
type BreakdownRow struct {
	Group string  `json:"group"`
	Value float64 `json:"value"`
	Count int64   `json:"count"`
}

// SummaryStats are the headline numbers for the current filter selection.
type SummaryStats struct {
	Rows  int64     `json:"rows"`
	Sum   float64   `json:"sum"`
	Mean  float64   `json:"mean"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Aggregate names a supported aggregation function.
type Aggregate string

const (
	AggSum   Aggregate = "sum"
	AggMean  Aggregate = "mean"
	AggCount Aggregate = "count"
	AggMax   Aggregate = "max"
)

// FilterState is everything a data-bound panel's fetch depends on.
// It feeds dependency keys, so it must stay a plain value type with no
// pointer or function fields.
type FilterState struct {
	DatasetID string        `json:"dataset_id"`
	Metric    string        `json:"metric"`
	GroupBy   string        `json:"group_by"`
	Agg       Aggregate     `json:"agg"`
	Window    time.Duration `json:"window"`
	Buckets   int           `json:"buckets"`
}

// Preferences are the persisted dashboard settings hydrated at boot.
type Preferences struct {
	DefaultDataset  string        `json:"default_dataset,omitempty"`
	RefreshInterval time.Duration `json:"refresh_interval,omitempty"`
	ChartStyle      string        `json:"chart_style,omitempty"`
	SavedFilters    []FilterState `json:"saved_filters,omitempty"`
}

// DefaultPreferences are the settings used when no preference file exists
// or hydration fails.
func DefaultPreferences() Preferences {
	return Preferences{
		RefreshInterval: 5 * time.Second,
		ChartStyle:      "bars",
	}
}

// Credentials hold the stored identity for the remote backend.
type Credentials struct {
	ServerURL string `json:"server_url"`
	APIKey    string `json:"api_key,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	DeviceID  string `json:"device_id"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// LoggedIn reports whether the credentials carry a usable API key.
func (c *Credentials) LoggedIn() bool {
	return c != nil && c.APIKey != ""
}
