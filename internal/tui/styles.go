package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Centralized styles for the console
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")). // White
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8"))

	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // Bright Green
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // Yellow
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")). // Red
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // Gray

	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14")) // Cyan

	// Notification cards, keyed by severity class
	cardStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, false, true)

	warningCardStyle = cardStyle.BorderForeground(lipgloss.Color("11"))
	dangerCardStyle  = cardStyle.BorderForeground(lipgloss.Color("9"))

	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	inactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
