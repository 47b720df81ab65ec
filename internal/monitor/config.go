package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPaths defines the default locations to search for configuration files
var DefaultConfigPaths = []string{
	"/etc/hyperwatch/monitor.yaml",
	"/usr/local/etc/hyperwatch/monitor.yaml",
	"./configs/monitor.yaml",
	"./monitor.yaml",
}

// Storage backends understood by the storage package
const (
	StorageMemory     = "memory"
	StorageSQLite     = "sqlite"
	StorageSQLitePure = "sqlite-pure"
	StorageMySQL      = "mysql"
)

// LoadConfig loads the agent configuration from the specified path or default locations
func LoadConfig(configPath string) (*Config, error) {
	var config Config
	var configFile string
	var err error

	// If specific path is provided, use it
	if configPath != "" {
		configFile = configPath
	} else {
		configFile, err = findConfigFile()
		if err != nil {
			return nil, fmt.Errorf("config file not found in default locations: %w", err)
		}
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	if err := validateAndSetDefaults(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Relative alerts file is resolved next to the monitor config
	if config.AlertsFile != "" && !filepath.IsAbs(config.AlertsFile) {
		config.AlertsFile = filepath.Join(filepath.Dir(configFile), config.AlertsFile)
	}

	return &config, nil
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() *Config {
	config := &Config{}
	// Defaults alone always validate
	_ = validateAndSetDefaults(config)
	return config
}

// findConfigFile searches for a config file in default locations
func findConfigFile() (string, error) {
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found in default paths: %v", DefaultConfigPaths)
}

// validateAndSetDefaults validates the configuration and sets default values
func validateAndSetDefaults(config *Config) error {
	// Agent defaults
	if config.Agent.ListenAddr == "" {
		config.Agent.ListenAddr = "127.0.0.1:9190"
	}
	if config.Agent.RateLimit == 0 {
		config.Agent.RateLimit = 10
	}
	if config.Agent.RateBurst == 0 {
		config.Agent.RateBurst = 20
	}
	if config.Agent.RateLimit < 0 || config.Agent.RateBurst < 0 {
		return fmt.Errorf("agent rate_limit and rate_burst must not be negative")
	}
	if secret := os.Getenv("HYPERWATCH_AUTH_SECRET"); secret != "" {
		config.Agent.AuthSecret = secret
	}

	// Storage defaults
	if config.Storage.Type == "" {
		config.Storage.Type = StorageSQLitePure
	}
	switch config.Storage.Type {
	case StorageMemory:
	case StorageSQLite, StorageSQLitePure:
		if config.Storage.SQLite.Path == "" {
			config.Storage.SQLite.Path = "/var/lib/hyperwatch/settings.db"
		}
	case StorageMySQL:
		if config.Storage.MySQL.DSN == "" {
			return fmt.Errorf("storage.mysql.dsn is required for mysql storage")
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}

	// Host collector defaults
	if config.Collectors.Host.Interval == "" {
		config.Collectors.Host.Interval = "30s"
	}
	if config.Collectors.Host.Name == "" {
		if hostname, err := os.Hostname(); err == nil {
			config.Collectors.Host.Name = hostname
		} else {
			config.Collectors.Host.Name = "localhost"
		}
	}
	if len(config.Collectors.Host.Mounts) == 0 {
		config.Collectors.Host.Mounts = []string{"/"}
	}
	if config.Collectors.Host.Enabled {
		if err := positiveDuration(config.Collectors.Host.Interval); err != nil {
			return fmt.Errorf("invalid host collector interval: %w", err)
		}
	}

	// Validate remote sources
	for i, source := range config.Collectors.Remote {
		if source.Name == "" {
			return fmt.Errorf("remote source %d: name is required", i)
		}
		if source.URL == "" {
			return fmt.Errorf("remote source %s: URL is required", source.Name)
		}
		if source.Interval == "" {
			config.Collectors.Remote[i].Interval = "30s"
		}
		if source.Timeout == "" {
			config.Collectors.Remote[i].Timeout = "10s"
		}

		if err := positiveDuration(config.Collectors.Remote[i].Interval); err != nil {
			return fmt.Errorf("remote source %s: invalid interval: %w", source.Name, err)
		}
		if err := positiveDuration(config.Collectors.Remote[i].Timeout); err != nil {
			return fmt.Errorf("remote source %s: invalid timeout: %w", source.Name, err)
		}
	}

	if config.AlertsFile == "" {
		config.AlertsFile = "alerts.yaml"
	}

	return nil
}

// positiveDuration parses value and rejects zero or negative durations,
// which would panic the collector tickers
func positiveDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("%s must be greater than zero", value)
	}
	return nil
}

// SaveConfig saves the configuration to the specified file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configPath, err)
	}

	return nil
}

// GetHostCollectorInterval parses and returns the host collector interval
func (c *Config) GetHostCollectorInterval() time.Duration {
	duration, _ := time.ParseDuration(c.Collectors.Host.Interval)
	return duration
}

// GetInterval parses and returns the polling interval of a remote source
func (s *RemoteSource) GetInterval() time.Duration {
	duration, _ := time.ParseDuration(s.Interval)
	return duration
}

// GetTimeout parses and returns the request timeout of a remote source
func (s *RemoteSource) GetTimeout() time.Duration {
	duration, _ := time.ParseDuration(s.Timeout)
	return duration
}
