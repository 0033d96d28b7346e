// Package config persists dashboard preferences and backend credentials
// under ~/.config/vantage as JSON, with atomic writes and flock
// serialization so concurrent invocations never corrupt a file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/marlowe/vantage/internal/models"
)

const (
	prefsFile = "preferences.json"
	credsFile = "credentials.json"
	lockFile  = ".lock"
)

const defaultServerURL = "http://localhost:8080"

// Dir returns the config directory, creating it if necessary. The
// VANTAGE_CONFIG_DIR environment variable overrides the default, which
// tests rely on to stay hermetic.
func Dir() (string, error) {
	if dir := os.Getenv("VANTAGE_CONFIG_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("create config dir: %w", err)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "vantage")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LoadPreferences reads preferences from disk. A missing file yields the
// defaults, not an error; any other failure (including a corrupt file) is
// surfaced so boot can report degraded hydration instead of silently
// proceeding on partial data.
func LoadPreferences() (models.Preferences, error) {
	dir, err := Dir()
	if err != nil {
		return models.Preferences{}, err
	}
	data, err := os.ReadFile(filepath.Join(dir, prefsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return models.DefaultPreferences(), nil
		}
		return models.Preferences{}, fmt.Errorf("read preferences: %w", err)
	}

	prefs := models.DefaultPreferences()
	if err := json.Unmarshal(data, &prefs); err != nil {
		return models.Preferences{}, fmt.Errorf("parse preferences: %w", err)
	}
	return prefs, nil
}

// SavePreferences writes preferences atomically.
func SavePreferences(prefs models.Preferences) error {
	return withLock(func(dir string) error {
		return writeJSON(filepath.Join(dir, prefsFile), prefs)
	})
}

// LoadCredentials reads stored credentials. A missing file yields empty
// credentials with a freshly persisted device ID.
func LoadCredentials() (*models.Credentials, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, credsFile))
	if err != nil {
		if os.IsNotExist(err) {
			creds := &models.Credentials{ServerURL: ServerURL()}
			if err := ensureDeviceID(creds); err != nil {
				return nil, err
			}
			return creds, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds models.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if err := ensureDeviceID(&creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveCredentials writes credentials atomically.
func SaveCredentials(creds *models.Credentials) error {
	return withLock(func(dir string) error {
		return writeJSON(filepath.Join(dir, credsFile), creds)
	})
}

// ClearCredentials removes the stored API key but keeps the device ID, so
// logout does not change the device's sync identity.
func ClearCredentials() error {
	creds, err := LoadCredentials()
	if err != nil {
		return err
	}
	creds.APIKey = ""
	creds.UserID = ""
	creds.Email = ""
	creds.ExpiresAt = ""
	return SaveCredentials(creds)
}

// ServerURL returns the backend URL: VANTAGE_SERVER overrides stored
// credentials, which override the default.
func ServerURL() string {
	if url := os.Getenv("VANTAGE_SERVER"); url != "" {
		return url
	}
	dir, err := Dir()
	if err == nil {
		if data, err := os.ReadFile(filepath.Join(dir, credsFile)); err == nil {
			var creds models.Credentials
			if json.Unmarshal(data, &creds) == nil && creds.ServerURL != "" {
				return creds.ServerURL
			}
		}
	}
	return defaultServerURL
}

// ensureDeviceID assigns and persists a device ID if the credentials lack
// one. The ID is stable across logins.
func ensureDeviceID(creds *models.Credentials) error {
	if creds.DeviceID != "" {
		return nil
	}
	creds.DeviceID = uuid.NewString()
	return SaveCredentials(creds)
}

// writeJSON writes v atomically: temp file in the same dir, then rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// withLock serializes config writes across processes using flock.
func withLock(fn func(dir string) error) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn(dir)
}
