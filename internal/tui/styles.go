package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	colorSearch = lipgloss.Color("#7C3AED")
	colorOlea   = lipgloss.Color("#10B981")
	colorAccent = lipgloss.Color("#F59E0B")
	colorError  = lipgloss.Color("#EF4444")
	colorMuted  = lipgloss.Color("#6B7280")
	colorFg     = lipgloss.Color("#F9FAFB")
)

// modeColor tells the two input languages apart
func modeColor(m Mode) lipgloss.Color {
	if m == ModeOlea {
		return colorOlea
	}
	return colorSearch
}

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSearch)

	// transcript
	QueryStyle        = lipgloss.NewStyle().Bold(true)
	ResultStyle       = lipgloss.NewStyle().Foreground(colorFg)
	LinkStyle         = lipgloss.NewStyle().Foreground(colorMuted)
	InfoStyle         = lipgloss.NewStyle().Foreground(colorAccent)
	ErrorMessageStyle = lipgloss.NewStyle().Foreground(colorError)

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(colorFg).
			Padding(0, 1)

	TabStyle = lipgloss.NewStyle().Padding(0, 2).Foreground(colorMuted)
)

// activeTabStyle underlines the tab of the current mode in its color
func activeTabStyle(m Mode) lipgloss.Style {
	return TabStyle.Foreground(modeColor(m)).Bold(true).Underline(true)
}

// inputStyle frames the input line in the color of the mode
func inputStyle(m Mode) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(modeColor(m)).
		Padding(0, 1)
}
