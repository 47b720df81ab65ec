package monitor

import (
	"time"
)

// EntityKind identifies what a snapshot was taken of
type EntityKind string

const (
	EntityNode      EntityKind = "node"
	EntityVM        EntityKind = "vm"
	EntityContainer EntityKind = "container"
)

// RootFSDisk is the disk identifier used for a container's root filesystem
const RootFSDisk = "rootfs"

// DiskUsage is one volume reading in bytes
type DiskUsage struct {
	Usage uint64 `json:"usage" yaml:"usage"`
	Total uint64 `json:"total" yaml:"total"`
}

// Snapshot is one point-in-time telemetry reading for a single entity.
//
// CPU is a percentage for nodes and a 0-1 fraction for VMs and containers,
// matching what the hypervisor API reports for each.
type Snapshot struct {
	Kind   EntityKind           `json:"kind" binding:"required,oneof=node vm container"`
	Name   string               `json:"name" binding:"required"`
	VMID   int                  `json:"vmid,omitempty" binding:"gte=0"`
	CPU    float64              `json:"cpu" binding:"gte=0"`
	Mem    uint64               `json:"mem"`
	MaxMem uint64               `json:"maxmem"`
	Disks  map[string]DiskUsage `json:"disks,omitempty"`

	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Label returns the human readable entity prefix, e.g. "VM web01"
func (s *Snapshot) Label() string {
	switch s.Kind {
	case EntityNode:
		return "Node " + s.Name
	case EntityVM:
		return "VM " + s.Name
	case EntityContainer:
		return "Container " + s.Name
	default:
		return s.Name
	}
}

// SourceStatus tracks the health of one telemetry source
type SourceStatus struct {
	Name        string     `json:"name"`
	LastPoll    *time.Time `json:"last_poll,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Snapshots   int        `json:"snapshots"`
	Evaluations int64      `json:"evaluations"`
}

// Config represents the agent configuration
type Config struct {
	Agent      AgentConfig      `yaml:"agent"`
	Storage    StorageConfig    `yaml:"storage"`
	Collectors CollectorsConfig `yaml:"collectors"`
	AlertsFile string           `yaml:"alerts_file"`
}

// AgentConfig represents agent-specific configuration
type AgentConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	LogFile    string `yaml:"log_file"`
	Debug      bool   `yaml:"debug"`

	// Write endpoints are limited per client address
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
	// AuthSecret signs bearer tokens for the write endpoints. Empty leaves
	// them open.
	AuthSecret string `yaml:"auth_secret,omitempty"`
}

// StorageConfig selects where UI preferences are persisted
type StorageConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

// SQLiteConfig represents SQLite storage configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig represents MySQL storage configuration
type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

// CollectorsConfig represents collector configuration
type CollectorsConfig struct {
	Host   HostCollectorConfig `yaml:"host"`
	Remote []RemoteSource      `yaml:"remote"`
}

// HostCollectorConfig configures sampling of the machine the agent runs on
type HostCollectorConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Name     string   `yaml:"name"`
	Interval string   `yaml:"interval"`
	Mounts   []string `yaml:"mounts"`
}

// RemoteSource is a dashboard endpoint returning node/vm/container listings
type RemoteSource struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"`
	Interval string            `yaml:"interval"`
	Timeout  string            `yaml:"timeout"`
	Headers  map[string]string `yaml:"headers"`
}
