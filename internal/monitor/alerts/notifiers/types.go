package notifiers

import "time"

// EmailConfig represents email notification configuration
type EmailConfig struct {
	Enabled      bool
	ResendAPIKey string
	FromEmail    string
	FromName     string

	// Default recipients
	DefaultTo []string

	// Notifications below this severity are skipped
	MinSeverity Severity

	// Templates
	SubjectTemplate string
	BodyTemplate    string
}

// Severity represents the severity level of a message
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities so MinSeverity can be compared
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Message is a resource notification as seen by delivery channels
type Message struct {
	ID        string
	Severity  Severity
	Resource  string
	Subject   string
	SubjectID string
	Text      string
	Value     float64
	Threshold float64
	Container string
	CreatedAt time.Time
}
