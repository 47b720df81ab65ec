package collectors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

const listingJSON = `{
  "nodes": [{"name": "pve1", "cpu": 42.5, "mem": 8, "maxmem": 16, "disk": 90, "maxdisk": 100}],
  "vms": [{"name": "web01", "vmid": 101, "cpu": 0.95, "mem": 1, "maxmem": 2,
           "disks": {"scsi0": {"usage": 96, "total": 100}, "scsi1": {"usage": 50, "total": 100}}}],
  "containers": [{"name": "cache", "vmid": 200, "cpu": 0.1, "mem": 1, "maxmem": 4,
                  "rootfs": {"usage": 3, "total": 10}}]
}`

func newTestSource(url string) monitor.RemoteSource {
	return monitor.RemoteSource{
		Name:     "pve",
		URL:      url,
		Interval: "15s",
		Timeout:  "2s",
		Headers:  map[string]string{"Authorization": "PVEAPIToken=test"},
	}
}

func TestRemoteCollectorCollect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "PVEAPIToken=test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	collector := NewRemoteCollector(newTestSource(server.URL))
	if collector.Name() != "remote:pve" || collector.Interval() != 15*time.Second {
		t.Errorf("Name/Interval = %s/%v", collector.Name(), collector.Interval())
	}

	snapshots, err := collector.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snapshots))
	}

	node := snapshots[0]
	if node.Kind != monitor.EntityNode || node.CPU != 42.5 {
		t.Errorf("node = %+v", node)
	}
	if node.Disks["root"].Total != 100 {
		t.Errorf("node disks = %+v", node.Disks)
	}

	vm := snapshots[1]
	if vm.Kind != monitor.EntityVM || vm.VMID != 101 || len(vm.Disks) != 2 {
		t.Errorf("vm = %+v", vm)
	}

	ct := snapshots[2]
	if ct.Kind != monitor.EntityContainer || ct.Disks[monitor.RootFSDisk].Usage != 3 {
		t.Errorf("container = %+v", ct)
	}
}

func TestRemoteCollectorErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"bad status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("<html>")) }},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := NewRemoteCollector(newTestSource(server.URL)).Collect(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNodeListingPrefersExplicitDisks(t *testing.T) {
	listing := ResourceListing{Nodes: []NodeResource{{
		Name: "pve1", Disk: 1, MaxDisk: 2,
		Disks: map[string]monitor.DiskUsage{"local-lvm": {Usage: 5, Total: 10}},
	}}}

	snapshots := listing.Snapshots(time.Now())
	if len(snapshots[0].Disks) != 1 {
		t.Errorf("disks = %+v", snapshots[0].Disks)
	}
	if _, ok := snapshots[0].Disks["local-lvm"]; !ok {
		t.Error("explicit disk missing")
	}
}

func newFakeHost(times [][]cpu.TimesStat) *HostCollector {
	return newFakeHostWithLogger(times, logging.NewDiscardLogger())
}

func newFakeHostWithLogger(times [][]cpu.TimesStat, logger *logging.Logger) *HostCollector {
	h := NewHostCollector(monitor.HostCollectorConfig{Name: "local", Mounts: []string{"/", "/missing"}}, time.Second, logger)
	call := 0
	h.cpuTimes = func(ctx context.Context) ([]cpu.TimesStat, error) {
		t := times[call]
		if call < len(times)-1 {
			call++
		}
		return t, nil
	}
	h.virtualMemory = func(ctx context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 100, Used: 81}, nil
	}
	h.diskUsage = func(ctx context.Context, path string) (*disk.UsageStat, error) {
		if path != "/" {
			return nil, errors.New("no such mount")
		}
		return &disk.UsageStat{Path: path, Total: 200, Used: 190}, nil
	}
	return h
}

func TestHostCollectorCollect(t *testing.T) {
	h := newFakeHost([][]cpu.TimesStat{
		{{User: 10, System: 10, Idle: 80}},
		{{User: 55, System: 25, Idle: 120}},
	})

	if h.Name() != "host:local" {
		t.Errorf("Name = %q", h.Name())
	}

	first, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if got := first[0].CPU; got != 20 {
		t.Errorf("first CPU = %v, want 20 (since boot)", got)
	}

	second, err := h.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	// busy delta 60, total delta 100
	if got := second[0].CPU; got != 60 {
		t.Errorf("second CPU = %v, want 60", got)
	}

	s := second[0]
	if s.Kind != monitor.EntityNode || s.Mem != 81 || s.MaxMem != 100 {
		t.Errorf("snapshot = %+v", s)
	}
	if len(s.Disks) != 1 || s.Disks["/"].Usage != 190 {
		t.Errorf("disks = %+v, unreadable mount should be skipped", s.Disks)
	}
}

func TestHostCollectorCPUError(t *testing.T) {
	h := newFakeHost([][]cpu.TimesStat{{}})
	if _, err := h.Collect(context.Background()); err == nil {
		t.Error("expected error when no CPU times are reported")
	}
}

func TestHostCollectorLogsUnreadableMount(t *testing.T) {
	logger, err := logging.NewFileLogger(filepath.Join(t.TempDir(), "agent.log"))
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer logger.Close()

	h := newFakeHostWithLogger([][]cpu.TimesStat{{{User: 10, Idle: 90}}}, logger)
	if _, err := h.Collect(context.Background()); err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}

	lines, err := logger.ReadLogLines()
	if err != nil {
		t.Fatalf("ReadLogLines: %v", err)
	}
	found := false
	for _, line := range lines {
		if strings.Contains(line, "/missing") && strings.Contains(line, "no such mount") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a log line for the unreadable mount, got %q", lines)
	}
}
