package alerts

import (
	"time"
)

// Severity represents the severity level of a notification
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Resource is a monitored resource kind
type Resource string

const (
	ResourceCPU     Resource = "cpu"
	ResourceMemory  Resource = "memory"
	ResourceStorage Resource = "storage"
)

// Resources lists every resource kind in evaluation order
var Resources = []Resource{ResourceCPU, ResourceMemory, ResourceStorage}

// Default container identifiers
const (
	// DefaultContainer receives events that name no container of their own
	DefaultContainer = "resource-alerts-container"
	// NodeContainer is where node, VM and container checks report by default
	NodeContainer = "node-resource-alerts-container"
)

// Settings keys shared with the dashboard
const (
	ThresholdsKey    = "resource_thresholds"
	AlertsEnabledKey = "resource_alerts_enabled"
)

// DefaultSoundAsset is played once per critical notification
const DefaultSoundAsset = "/static/sounds/resource-alert.mp3"

// DefaultDismissAfter is how long a notification stays visible
const DefaultDismissAfter = 30 * time.Second

// Threshold holds the warning and critical percentages for one resource
type Threshold struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
	Enabled  bool    `json:"enabled" yaml:"enabled"`
}

// ThresholdSet is the complete threshold configuration
type ThresholdSet struct {
	CPU     Threshold `json:"cpu" yaml:"cpu"`
	Memory  Threshold `json:"memory" yaml:"memory"`
	Storage Threshold `json:"storage" yaml:"storage"`
}

// ThresholdPatch changes only the fields that are set
type ThresholdPatch struct {
	Warning  *float64 `json:"warning,omitempty" binding:"omitempty,gte=0,lte=100"`
	Critical *float64 `json:"critical,omitempty" binding:"omitempty,gte=0,lte=100"`
	Enabled  *bool    `json:"enabled,omitempty"`
}

// ThresholdSetPatch is a partial update keyed by resource kind
type ThresholdSetPatch struct {
	CPU     *ThresholdPatch `json:"cpu,omitempty"`
	Memory  *ThresholdPatch `json:"memory,omitempty"`
	Storage *ThresholdPatch `json:"storage,omitempty"`
}

// NotificationEvent is the outcome of one threshold crossing
type NotificationEvent struct {
	Severity  Severity `json:"severity"`
	Resource  Resource `json:"resource"`
	Value     float64  `json:"value"`
	Threshold float64  `json:"threshold"`
	Subject   string   `json:"subject"`
	SubjectID string   `json:"subject_id,omitempty"`
	Container string   `json:"container,omitempty"`
}

// Notification is an event rendered for display
type Notification struct {
	ID        string    `json:"id"`
	Container string    `json:"container"`
	Severity  Severity  `json:"severity"`
	Resource  Resource  `json:"resource"`
	Message   string    `json:"message"`
	Icon      string    `json:"icon"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Event NotificationEvent `json:"event"`
}

// Notifier interface for additional notification channels
type Notifier interface {
	Name() string
	Send(notification *Notification) error
	IsEnabled() bool
}

// Sink displays notifications for one container
type Sink interface {
	Show(notification *Notification) error
	Dismiss(id string)
}

// Player plays an audio asset wherever container is displayed
type Player interface {
	Play(container, asset string) error
}
