package alerts

import (
	"fmt"
	"strconv"
	"strings"
)

// Icon returns the icon name shown next to a notification
func Icon(resource Resource) string {
	switch resource {
	case ResourceCPU:
		return "microchip"
	case ResourceMemory:
		return "memory"
	case ResourceStorage:
		return "hdd"
	default:
		return "exclamation-triangle"
	}
}

// SeverityClass maps a severity to the dashboard alert style
func SeverityClass(severity Severity) string {
	if severity == SeverityWarning {
		return "warning"
	}
	return "danger"
}

// RenderMessage builds the notification text, e.g.
// "CPU usage at 95.0% for VM web01 (101) - Critical threshold: 90%"
func RenderMessage(event NotificationEvent) string {
	var b strings.Builder

	switch event.Resource {
	case ResourceCPU:
		fmt.Fprintf(&b, "CPU usage at %.1f%%", event.Value)
	case ResourceMemory:
		fmt.Fprintf(&b, "Memory usage at %.1f%%", event.Value)
	case ResourceStorage:
		fmt.Fprintf(&b, "Storage usage at %.1f%%", event.Value)
	default:
		b.WriteString("Resource usage high")
	}

	if event.Subject != "" {
		b.WriteString(" for ")
		b.WriteString(event.Subject)
		if event.SubjectID != "" {
			fmt.Fprintf(&b, " (%s)", event.SubjectID)
		}
	}

	label := "Critical"
	if event.Severity == SeverityWarning {
		label = "Warning"
	}
	fmt.Fprintf(&b, " - %s threshold: %s%%", label, strconv.FormatFloat(event.Threshold, 'f', -1, 64))

	return b.String()
}
