package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marlowe/vantage/internal/boot"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")
	accentColor  = lipgloss.Color("45")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(primaryColor).
				Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle     = lipgloss.NewStyle().Foreground(errorColor)
	warningStyle   = lipgloss.NewStyle().Foreground(warningColor)

	// Chart styles
	barStyle       = lipgloss.NewStyle().Foreground(accentColor)
	remoteBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))

	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)

	// Boot phase styles
	phaseStyles = map[boot.Phase]lipgloss.Style{
		boot.PhaseBooting:  lipgloss.NewStyle().Foreground(accentColor),
		boot.PhaseSlow:     lipgloss.NewStyle().Foreground(warningColor),
		boot.PhaseStuck:    lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		boot.PhaseDegraded: lipgloss.NewStyle().Foreground(warningColor),
		boot.PhaseReady:    lipgloss.NewStyle().Foreground(successColor),
	}

	// Tier badge in the footer
	tierBadgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("141"))
)

// formatPhase renders a boot phase with color
func formatPhase(p boot.Phase) string {
	style, ok := phaseStyles[p]
	if !ok {
		return string(p)
	}
	return style.Render(string(p))
}
