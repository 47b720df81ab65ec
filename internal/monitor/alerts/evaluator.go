package alerts

import (
	"sort"
	"strconv"

	"hyperwatch/internal/monitor"
)

// ThresholdSource provides the configuration read on every evaluation
type ThresholdSource interface {
	Thresholds() ThresholdSet
	AlertsEnabled() bool
}

// Evaluator turns snapshots into notification events. It keeps no state
// between calls besides the injected configuration.
type Evaluator struct {
	source    ThresholdSource
	container string
}

// NewEvaluator creates an evaluator whose events target container. An empty
// container selects NodeContainer.
func NewEvaluator(source ThresholdSource, container string) *Evaluator {
	if container == "" {
		container = NodeContainer
	}
	return &Evaluator{source: source, container: container}
}

// Evaluate checks one snapshot against the current thresholds. Each resource
// kind and each disk is checked on its own; at most one event is produced
// per reading and critical wins over warning.
func (e *Evaluator) Evaluate(snapshot *monitor.Snapshot) []NotificationEvent {
	if snapshot == nil || !e.source.AlertsEnabled() {
		return nil
	}

	thresholds := e.source.Thresholds()
	subject := snapshot.Label()
	subjectID := ""
	if snapshot.VMID > 0 {
		subjectID = strconv.Itoa(snapshot.VMID)
	}

	var events []NotificationEvent
	emit := func(resource Resource, value float64, subject string) {
		if event, ok := e.check(resource, thresholds.Get(resource), value); ok {
			event.Subject = subject
			event.SubjectID = subjectID
			events = append(events, event)
		}
	}

	if thresholds.CPU.Enabled {
		if cpu, ok := cpuPercent(snapshot); ok {
			emit(ResourceCPU, cpu, subject)
		}
	}

	if thresholds.Memory.Enabled && snapshot.MaxMem > 0 {
		emit(ResourceMemory, percent(snapshot.Mem, snapshot.MaxMem), subject)
	}

	if thresholds.Storage.Enabled {
		for _, id := range sortedDiskIDs(snapshot.Disks) {
			disk := snapshot.Disks[id]
			if disk.Total == 0 {
				continue
			}
			emit(ResourceStorage, percent(disk.Usage, disk.Total), diskSubject(snapshot, id))
		}
	}

	return events
}

func (e *Evaluator) check(resource Resource, threshold Threshold, value float64) (NotificationEvent, bool) {
	event := NotificationEvent{
		Resource:  resource,
		Value:     value,
		Container: e.container,
	}

	switch {
	case value >= threshold.Critical:
		event.Severity = SeverityCritical
		event.Threshold = threshold.Critical
	case value >= threshold.Warning:
		event.Severity = SeverityWarning
		event.Threshold = threshold.Warning
	default:
		return NotificationEvent{}, false
	}
	return event, true
}

// cpuPercent normalizes the CPU reading. Nodes report a percentage, guests
// report a fraction where 0 means the guest had no sample.
func cpuPercent(snapshot *monitor.Snapshot) (float64, bool) {
	if snapshot.Kind == monitor.EntityNode {
		return snapshot.CPU, true
	}
	if snapshot.CPU == 0 {
		return 0, false
	}
	return snapshot.CPU * 100, true
}

func percent(used, total uint64) float64 {
	return float64(used) / float64(total) * 100
}

func diskSubject(snapshot *monitor.Snapshot, id string) string {
	switch {
	case snapshot.Kind == monitor.EntityContainer && id == monitor.RootFSDisk:
		return snapshot.Label() + " Root FS"
	case snapshot.Kind == monitor.EntityNode && len(snapshot.Disks) == 1:
		return snapshot.Label()
	case snapshot.Kind == monitor.EntityNode:
		return snapshot.Label() + " Storage " + id
	default:
		return snapshot.Label() + " Disk " + id
	}
}

func sortedDiskIDs(disks map[string]monitor.DiskUsage) []string {
	ids := make([]string, 0, len(disks))
	for id := range disks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
