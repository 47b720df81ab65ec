package tui

import (
	"fmt"

	"hyperwatch/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the console and blocks until the user quits
func Run(client *Client, logger *logging.Logger) error {
	p := tea.NewProgram(NewModel(client, logger), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("console exited: %w", err)
	}
	return nil
}
