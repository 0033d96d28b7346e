package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/marlowe/vantage/internal/backend"
	"github.com/marlowe/vantage/internal/boot"
	"github.com/marlowe/vantage/internal/config"
	"github.com/marlowe/vantage/internal/db"
	"github.com/marlowe/vantage/internal/models"
	"github.com/marlowe/vantage/internal/tui/dashboard"
)

var (
	dashRefresh time.Duration
	dashDebug   bool
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"dash"},
	Short:   "Open the interactive dashboard",
	GroupID: "core",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("dashboard requires a terminal")
		}

		dir, err := storeDir()
		if err != nil {
			return err
		}
		database, err := db.Open(dir)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := setupLogging(dir, dashDebug); err != nil {
			return err
		}

		creds, err := config.LoadCredentials()
		if err != nil {
			return err
		}
		var client *backend.Client
		if creds.LoggedIn() {
			client = backend.New(config.ServerURL(), creds.APIKey, creds.DeviceID)
		}

		events := make(chan dashboard.GateEvent, 8)
		gate := boot.NewGate(boot.Config{
			Sink: dashboard.ChannelSink{Events: events},
		})
		strap := &boot.Bootstrapper{
			Gate:        gate,
			Identity:    identityResolver(client),
			Entitlement: entitlementResolver(client),
			Preferences: prefLoader{},
		}
		strap.Register()

		m := dashboard.NewModel(database, client, gate, strap, events, dashRefresh)
		_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
		return err
	},
}

// setupLogging sends slog to a file so log lines never tear the TUI.
func setupLogging(dir string, debug bool) error {
	f, err := os.OpenFile(filepath.Join(dir, "vantage.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})))
	return nil
}

// identityResolver confirms who the user is. Logged out means purely local
// use: identity resolves trivially and nothing user-scoped is fetched.
func identityResolver(client *backend.Client) boot.IdentityResolver {
	if client != nil {
		return client
	}
	return localIdentity{}
}

// entitlementResolver looks up the tier, or pins the free tier offline.
func entitlementResolver(client *backend.Client) boot.EntitlementResolver {
	if client != nil {
		return client
	}
	return localEntitlement{}
}

type localIdentity struct{}

func (localIdentity) ResolveIdentity(ctx context.Context) error { return nil }

type localEntitlement struct{}

func (localEntitlement) ResolveEntitlement(ctx context.Context) (models.Tier, error) {
	return models.TierFree, nil
}

// prefLoader adapts the config package to the boot.PreferenceLoader
// interface.
type prefLoader struct{}

func (prefLoader) LoadPreferences(ctx context.Context) (models.Preferences, error) {
	return config.LoadPreferences()
}

func init() {
	dashboardCmd.Flags().DurationVar(&dashRefresh, "refresh", 5*time.Second, "auto-refresh interval")
	dashboardCmd.Flags().BoolVar(&dashDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(dashboardCmd)
}
