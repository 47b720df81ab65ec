package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor/agent"
	"hyperwatch/internal/monitor/alerts"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	reconnectDelay = 5 * time.Second
	logPaneLines   = 10
)

type keyMap struct {
	Toggle  key.Binding
	Refresh key.Binding
	Clear   key.Binding
	Logs    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Clear, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Refresh, k.Logs},
		{k.Clear, k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Toggle:  key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle alerts")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh settings")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	Logs:    key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "show log")),
	Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Console message types
type connectedMsg struct{ conn *websocket.Conn }

type streamMsg struct{ msg agent.StreamMessage }

type streamClosedMsg struct{ err error }

type reconnectMsg struct{}

type settingsMsg struct {
	settings Settings
	err      error
}

type tickMsg time.Time

type logLinesMsg struct {
	lines []string
	err   error
}

// Model is the console: it mirrors the notifications the agent shows for one
// container and expires them locally on the same schedule.
type Model struct {
	client *Client
	logger *logging.Logger

	conn      *websocket.Conn
	connected bool
	lastErr   error

	notifications []alerts.Notification
	settings      Settings
	haveSettings  bool
	bells         int

	showLogs bool
	logLines []string

	keys    keyMap
	help    help.Model
	spinner spinner.Model
	width   int

	now  func() time.Time
	bell io.Writer
}

// NewModel creates the console model for client
func NewModel(client *Client, logger *logging.Logger) *Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = infoStyle

	return &Model{
		client:  client,
		logger:  logger,
		keys:    defaultKeys,
		help:    help.New(),
		spinner: s,
		now:     time.Now,
		bell:    os.Stderr,
	}
}

// Init connects to the stream and loads the settings
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.connect(), m.fetchSettings(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) connect() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		conn, err := client.Connect(context.Background())
		if err != nil {
			return streamClosedMsg{err: err}
		}
		return connectedMsg{conn: conn}
	}
}

// listen reads one frame from conn
func listen(conn *websocket.Conn) tea.Cmd {
	return func() tea.Msg {
		var msg agent.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return streamClosedMsg{err: err}
		}
		return streamMsg{msg: msg}
	}
}

func (m *Model) fetchSettings() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		settings, err := client.Settings(context.Background())
		return settingsMsg{settings: settings, err: err}
	}
}

func (m *Model) toggleAlerts() tea.Cmd {
	client := m.client
	enabled := !m.settings.AlertsEnabled
	current := m.settings
	return func() tea.Msg {
		ctx := context.Background()
		if _, err := client.SetAlertsEnabled(ctx, enabled); err != nil {
			return settingsMsg{settings: current, err: err}
		}
		settings, err := client.Settings(ctx)
		return settingsMsg{settings: settings, err: err}
	}
}

// loadLogLines reads the tail of the console log
func (m *Model) loadLogLines() tea.Cmd {
	logger := m.logger
	return func() tea.Msg {
		lines, err := logger.ReadLogLines()
		if len(lines) > logPaneLines {
			lines = lines[len(lines)-logPaneLines:]
		}
		return logLinesMsg{lines: lines, err: err}
	}
}

// Update handles console updates
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			if m.haveSettings {
				return m, m.toggleAlerts()
			}
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetchSettings()
		case key.Matches(msg, m.keys.Clear):
			m.notifications = nil
		case key.Matches(msg, m.keys.Logs):
			m.showLogs = !m.showLogs
			if m.showLogs {
				return m, m.loadLogLines()
			}
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}

	case connectedMsg:
		m.conn = msg.conn
		m.connected = true
		m.lastErr = nil
		m.logger.Info("Connected to notification stream", "agent", m.client.BaseURL(), "container", m.client.Container())
		return m, listen(msg.conn)

	case streamClosedMsg:
		m.connected = false
		m.conn = nil
		m.lastErr = msg.err
		m.logger.Warn("Notification stream closed", "error", msg.err)
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, m.connect()

	case streamMsg:
		m.apply(msg.msg)
		if m.conn != nil {
			return m, listen(m.conn)
		}

	case settingsMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.logger.Warn("Failed to load settings", "error", msg.err)
			return m, nil
		}
		m.settings = msg.settings
		m.haveSettings = true

	case logLinesMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.logLines = msg.lines

	case tickMsg:
		m.expire()
		if m.showLogs {
			return m, tea.Batch(tick(), m.loadLogLines())
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// apply folds one stream frame into the local state
func (m *Model) apply(msg agent.StreamMessage) {
	switch msg.Type {
	case agent.MessageNotification:
		if msg.Notification == nil {
			return
		}
		for _, n := range m.notifications {
			if n.ID == msg.Notification.ID {
				return
			}
		}
		m.notifications = append(m.notifications, *msg.Notification)
	case agent.MessageDismiss:
		m.remove(msg.ID)
	case agent.MessageSound:
		m.bells++
		if m.bell != nil {
			fmt.Fprint(m.bell, "\a")
		}
	}
}

func (m *Model) remove(id string) {
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
}

// expire drops notifications whose dismiss time has passed, in case the
// agent's dismiss frame was missed while disconnected
func (m *Model) expire() {
	now := m.now()
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if n.ExpiresAt.IsZero() || now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
}

// View renders the console
func (m *Model) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Hyperwatch Resource Alerts"))
	s.WriteString("\n\n")
	s.WriteString(m.statusLine())
	s.WriteString("\n")
	if m.haveSettings {
		s.WriteString(m.thresholdLine())
		s.WriteString("\n")
	}
	if m.lastErr != nil {
		s.WriteString(errorStyle.Render("Error: " + m.lastErr.Error()))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if len(m.notifications) == 0 {
		s.WriteString(mutedStyle.Render("No active notifications"))
		s.WriteString("\n")
	}
	now := m.now()
	for _, n := range m.notifications {
		s.WriteString(renderCard(n, now))
		s.WriteString("\n")
	}

	if m.showLogs {
		s.WriteString("\n")
		s.WriteString(fieldLabelStyle.Render("Log:"))
		s.WriteString("\n")
		if len(m.logLines) == 0 {
			s.WriteString(mutedStyle.Render("(empty)"))
			s.WriteString("\n")
		}
		for _, line := range m.logLines {
			s.WriteString(mutedStyle.Render(line))
			s.WriteString("\n")
		}
	}

	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))
	return s.String()
}

func (m *Model) statusLine() string {
	var conn string
	if m.connected {
		conn = activeStyle.Render("connected")
	} else {
		conn = m.spinner.View() + " " + warnStyle.Render("connecting")
	}

	alertsState := mutedStyle.Render("unknown")
	if m.haveSettings {
		if m.settings.AlertsEnabled {
			alertsState = activeStyle.Render("on")
		} else {
			alertsState = inactiveStyle.Render("off")
		}
	}

	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		fieldLabelStyle.Render("Agent:"), m.client.BaseURL(),
		fieldLabelStyle.Render("Container:"), m.client.Container(),
		fieldLabelStyle.Render("Stream:"), conn,
		fieldLabelStyle.Render("Alerts:"), alertsState)
}

func (m *Model) thresholdLine() string {
	parts := make([]string, 0, len(alerts.Resources))
	for _, resource := range alerts.Resources {
		t := m.settings.Thresholds.Get(resource)
		if !t.Enabled {
			parts = append(parts, fmt.Sprintf("%s off", resource))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %g/%g%%", resource, t.Warning, t.Critical))
	}
	return fieldLabelStyle.Render("Thresholds:") + " " + mutedStyle.Render(strings.Join(parts, "  "))
}

func renderCard(n alerts.Notification, now time.Time) string {
	style := dangerCardStyle
	label := errorStyle.Render("CRITICAL")
	if n.Class == alerts.SeverityClass(alerts.SeverityWarning) {
		style = warningCardStyle
		label = warnStyle.Render("WARNING")
	}

	remaining := n.ExpiresAt.Sub(now).Round(time.Second)
	if remaining < 0 {
		remaining = 0
	}
	line := fmt.Sprintf("%s %s %s", iconGlyph(n.Icon), label, n.Message)
	return style.Render(line + "  " + mutedStyle.Render(remaining.String()))
}

func iconGlyph(icon string) string {
	switch icon {
	case "microchip":
		return "[cpu]"
	case "memory":
		return "[mem]"
	case "hdd":
		return "[disk]"
	default:
		return "[!]"
	}
}
