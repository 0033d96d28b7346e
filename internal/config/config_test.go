package config

import (
	"testing"
	"time"

	"github.com/marlowe/vantage/internal/models"
)

func setTestDir(t *testing.T) {
	t.Helper()
	t.Setenv("VANTAGE_CONFIG_DIR", t.TempDir())
}

func TestLoadPreferencesMissingFileYieldsDefaults(t *testing.T) {
	setTestDir(t)

	prefs, err := LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	want := models.DefaultPreferences()
	if prefs.RefreshInterval != want.RefreshInterval || prefs.ChartStyle != want.ChartStyle {
		t.Errorf("prefs = %+v, want defaults %+v", prefs, want)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	setTestDir(t)

	in := models.Preferences{
		DefaultDataset:  "sales",
		RefreshInterval: 10 * time.Second,
		ChartStyle:      "braille",
		SavedFilters: []models.FilterState{
			{DatasetID: "sales", Metric: "revenue", Agg: models.AggSum},
		},
	}
	if err := SavePreferences(in); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	out, err := LoadPreferences()
	if err != nil {
		t.Fatalf("LoadPreferences: %v", err)
	}
	if out.DefaultDataset != in.DefaultDataset || out.RefreshInterval != in.RefreshInterval {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if len(out.SavedFilters) != 1 || out.SavedFilters[0].Metric != "revenue" {
		t.Errorf("saved filters lost: %+v", out.SavedFilters)
	}
}

func TestCredentialsDeviceIDStable(t *testing.T) {
	setTestDir(t)

	first, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if first.DeviceID == "" {
		t.Fatal("no device ID assigned")
	}

	second, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if second.DeviceID != first.DeviceID {
		t.Errorf("device ID changed across loads: %s != %s", second.DeviceID, first.DeviceID)
	}
}

func TestClearCredentialsKeepsDeviceID(t *testing.T) {
	setTestDir(t)

	creds, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	creds.APIKey = "key-123"
	creds.Email = "a@b.c"
	if err := SaveCredentials(creds); err != nil {
		t.Fatalf("SaveCredentials: %v", err)
	}

	if err := ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	after, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if after.LoggedIn() {
		t.Error("still logged in after clear")
	}
	if after.DeviceID != creds.DeviceID {
		t.Error("device ID lost on logout")
	}
}
