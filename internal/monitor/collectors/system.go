package collectors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostCollector samples the machine the agent runs on and reports it as a node
type HostCollector struct {
	name     string
	interval time.Duration
	mounts   []string
	logger   *logging.Logger

	mu       sync.Mutex
	lastBusy float64
	lastAll  float64

	cpuTimes      func(ctx context.Context) ([]cpu.TimesStat, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
}

// NewHostCollector creates a collector for the local host
func NewHostCollector(config monitor.HostCollectorConfig, interval time.Duration, logger *logging.Logger) *HostCollector {
	return &HostCollector{
		name:     config.Name,
		interval: interval,
		mounts:   config.Mounts,
		logger:   logger,
		cpuTimes: func(ctx context.Context) ([]cpu.TimesStat, error) {
			return cpu.TimesWithContext(ctx, false)
		},
		virtualMemory: mem.VirtualMemoryWithContext,
		diskUsage:     disk.UsageWithContext,
	}
}

func (h *HostCollector) Name() string { return "host:" + h.name }

func (h *HostCollector) Interval() time.Duration { return h.interval }

// Collect returns one node snapshot. CPU is the busy share since the
// previous call; the first call reports usage since boot.
func (h *HostCollector) Collect(ctx context.Context) ([]monitor.Snapshot, error) {
	snapshot := monitor.Snapshot{
		Kind:      monitor.EntityNode,
		Name:      h.name,
		Timestamp: time.Now(),
	}

	cpuPercent, err := h.collectCPU(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect CPU metrics: %w", err)
	}
	snapshot.CPU = cpuPercent

	vm, err := h.virtualMemory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect memory metrics: %w", err)
	}
	snapshot.Mem = vm.Used
	snapshot.MaxMem = vm.Total

	snapshot.Disks = make(map[string]monitor.DiskUsage, len(h.mounts))
	for _, mount := range h.mounts {
		usage, err := h.diskUsage(ctx, mount)
		if err != nil {
			// One unreadable mount must not hide the others
			h.logger.Warn("Skipping unreadable mount, no storage alerts for it", "host", h.name, "mount", mount, "error", err)
			continue
		}
		snapshot.Disks[mount] = monitor.DiskUsage{Usage: usage.Used, Total: usage.Total}
	}

	return []monitor.Snapshot{snapshot}, nil
}

func (h *HostCollector) collectCPU(ctx context.Context) (float64, error) {
	times, err := h.cpuTimes(ctx)
	if err != nil {
		return 0, err
	}
	if len(times) == 0 {
		return 0, fmt.Errorf("no CPU times reported")
	}

	t := times[0]
	idle := t.Idle + t.Iowait
	all := t.User + t.System + t.Nice + t.Irq + t.Softirq + t.Steal + idle
	busy := all - idle

	h.mu.Lock()
	defer h.mu.Unlock()

	deltaAll := all - h.lastAll
	deltaBusy := busy - h.lastBusy
	h.lastAll, h.lastBusy = all, busy

	if deltaAll <= 0 {
		return 0, nil
	}
	return clampPercent(deltaBusy / deltaAll * 100), nil
}

func clampPercent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
