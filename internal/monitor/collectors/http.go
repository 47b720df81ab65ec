package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"hyperwatch/internal/monitor"
)

// maxResponseSize bounds how much of a listing response is read
const maxResponseSize = 8 << 20

// ResourceListing is the JSON document served by a dashboard resources endpoint
type ResourceListing struct {
	Nodes      []NodeResource  `json:"nodes"`
	VMs        []GuestResource `json:"vms"`
	Containers []GuestResource `json:"containers"`
}

// NodeResource is one hypervisor node. CPU is already a percentage.
type NodeResource struct {
	Name    string                       `json:"name"`
	CPU     float64                      `json:"cpu"`
	Mem     uint64                       `json:"mem"`
	MaxMem  uint64                       `json:"maxmem"`
	Disk    uint64                       `json:"disk"`
	MaxDisk uint64                       `json:"maxdisk"`
	Disks   map[string]monitor.DiskUsage `json:"disks,omitempty"`
}

// GuestResource is a VM or container. CPU is a 0-1 fraction.
type GuestResource struct {
	Name   string                       `json:"name"`
	VMID   int                          `json:"vmid"`
	CPU    float64                      `json:"cpu"`
	Mem    uint64                       `json:"mem"`
	MaxMem uint64                       `json:"maxmem"`
	Disks  map[string]monitor.DiskUsage `json:"disks,omitempty"`
	RootFS *monitor.DiskUsage           `json:"rootfs,omitempty"`
}

// RemoteCollector polls a dashboard endpoint for node, VM and container usage
type RemoteCollector struct {
	source monitor.RemoteSource
	client *http.Client
}

// NewRemoteCollector creates a collector for one remote source
func NewRemoteCollector(source monitor.RemoteSource) *RemoteCollector {
	return &RemoteCollector{
		source: source,
		client: &http.Client{Timeout: source.GetTimeout()},
	}
}

func (r *RemoteCollector) Name() string { return "remote:" + r.source.Name }

func (r *RemoteCollector) Interval() time.Duration { return r.source.GetInterval() }

// Collect fetches the listing and converts every entry to a snapshot
func (r *RemoteCollector) Collect(ctx context.Context) ([]monitor.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Hyperwatch-Agent/1.0")
	req.Header.Set("Accept", "application/json")
	for key, value := range r.source.Headers {
		req.Header.Set(key, value)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: got %d, expected %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var listing ResourceListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode resource listing: %w", err)
	}

	return listing.Snapshots(time.Now()), nil
}

// Snapshots flattens the listing, nodes first
func (l *ResourceListing) Snapshots(now time.Time) []monitor.Snapshot {
	snapshots := make([]monitor.Snapshot, 0, len(l.Nodes)+len(l.VMs)+len(l.Containers))

	for _, node := range l.Nodes {
		disks := make(map[string]monitor.DiskUsage, len(node.Disks)+1)
		for id, usage := range node.Disks {
			disks[id] = usage
		}
		if node.MaxDisk > 0 && len(node.Disks) == 0 {
			disks["root"] = monitor.DiskUsage{Usage: node.Disk, Total: node.MaxDisk}
		}
		snapshots = append(snapshots, monitor.Snapshot{
			Kind: monitor.EntityNode, Name: node.Name,
			CPU: node.CPU, Mem: node.Mem, MaxMem: node.MaxMem,
			Disks: disks, Timestamp: now,
		})
	}

	for _, vm := range l.VMs {
		snapshots = append(snapshots, guestSnapshot(monitor.EntityVM, vm, now))
	}
	for _, ct := range l.Containers {
		snapshots = append(snapshots, guestSnapshot(monitor.EntityContainer, ct, now))
	}

	return snapshots
}

func guestSnapshot(kind monitor.EntityKind, guest GuestResource, now time.Time) monitor.Snapshot {
	disks := make(map[string]monitor.DiskUsage, len(guest.Disks)+1)
	for id, usage := range guest.Disks {
		disks[id] = usage
	}
	if guest.RootFS != nil {
		disks[monitor.RootFSDisk] = *guest.RootFS
	}

	return monitor.Snapshot{
		Kind: kind, Name: guest.Name, VMID: guest.VMID,
		CPU: guest.CPU, Mem: guest.Mem, MaxMem: guest.MaxMem,
		Disks: disks, Timestamp: now,
	}
}
