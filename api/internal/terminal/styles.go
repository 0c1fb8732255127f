package terminal

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#B38F00", Dark: "#FFDE00"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	nameStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(colorSuccess)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(1, 2).
			Width(64)
)
