package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/wgsim/controller/internal/hub"
)

var (
	greenColor  = lipgloss.Color("#10B981")
	redColor    = lipgloss.Color("#EF4444")
	mutedColor  = lipgloss.Color("#6B7280")
	textColor   = lipgloss.Color("#F9FAFB")
	accentColor = lipgloss.Color("#7C3AED")
	warnColor   = lipgloss.Color("#F59E0B")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	sidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Background(accentColor)

	helpStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	statusStyle = lipgloss.NewStyle().Foreground(warnColor)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(greenColor).
			Padding(1, 2)
)

var tagStyles = map[hub.Tag]lipgloss.Style{
	hub.TagNeutral:  lipgloss.NewStyle().Foreground(textColor),
	hub.TagPositive: lipgloss.NewStyle().Foreground(greenColor),
	hub.TagNegative: lipgloss.NewStyle().Foreground(redColor),
	hub.TagMuted:    lipgloss.NewStyle().Foreground(mutedColor),
}

// tagStyle returns the colour a log entry is rendered with.
func tagStyle(t hub.Tag) lipgloss.Style {
	if s, ok := tagStyles[t]; ok {
		return s
	}
	return tagStyles[hub.TagNeutral]
}
