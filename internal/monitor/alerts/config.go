package alerts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the notification configuration
type Config struct {
	// Containers that accept notifications. Events for any other container
	// are dropped.
	Containers []string
	// TargetContainer receives the events produced by the evaluator
	TargetContainer string
	DismissAfter    time.Duration
	SoundAsset      string

	Email EmailConfig
}

// EmailConfig represents email notification configuration
type EmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ResendAPIKey string `yaml:"resend_api_key,omitempty"`
	FromEmail    string `yaml:"from_email"`
	FromName     string `yaml:"from_name"`

	// Default recipients
	DefaultTo []string `yaml:"default_to"`

	// Notifications below this severity are not mailed
	MinSeverity Severity `yaml:"min_severity"`

	// Templates
	SubjectTemplate string `yaml:"subject_template,omitempty"`
	BodyTemplate    string `yaml:"body_template,omitempty"`
}

// ConfigFile represents the YAML configuration file structure
type ConfigFile struct {
	Containers      []string    `yaml:"containers"`
	TargetContainer string      `yaml:"target_container"`
	DismissAfter    string      `yaml:"dismiss_after"`
	SoundAsset      string      `yaml:"sound_asset"`
	Email           EmailConfig `yaml:"email"`
}

// LoadConfig loads alert configuration from a YAML file
func LoadConfig(configPath string) (*Config, error) {
	configFile, err := ReadConfigFile(configPath)
	if err != nil {
		return nil, err
	}

	config, err := convertConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to convert config: %w", err)
	}

	loadEnvironmentOverrides(config)
	return config, nil
}

// ReadConfigFile parses the YAML file without applying defaults
func ReadConfigFile(configPath string) (*ConfigFile, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var configFile ConfigFile
	if err := yaml.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &configFile, nil
}

// WriteConfigFile stores configFile as YAML at configPath
func WriteConfigFile(configFile *ConfigFile, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(configFile)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}

// convertConfig converts the YAML configuration to internal config structure
func convertConfig(configFile *ConfigFile) (*Config, error) {
	config := CreateDefaultConfig()

	if len(configFile.Containers) > 0 {
		config.Containers = configFile.Containers
	}
	if configFile.TargetContainer != "" {
		config.TargetContainer = configFile.TargetContainer
	}
	if configFile.SoundAsset != "" {
		config.SoundAsset = configFile.SoundAsset
	}

	if configFile.DismissAfter != "" {
		after, err := time.ParseDuration(configFile.DismissAfter)
		if err != nil {
			return nil, fmt.Errorf("invalid dismiss_after: %w", err)
		}
		if after <= 0 {
			return nil, fmt.Errorf("dismiss_after must be positive")
		}
		config.DismissAfter = after
	}

	email := configFile.Email
	if email.FromName == "" {
		email.FromName = config.Email.FromName
	}
	if email.FromEmail == "" {
		email.FromEmail = config.Email.FromEmail
	}
	switch email.MinSeverity {
	case "":
		email.MinSeverity = SeverityCritical
	case SeverityWarning, SeverityCritical:
	default:
		return nil, fmt.Errorf("invalid email.min_severity: %s", email.MinSeverity)
	}
	config.Email = email

	return config, nil
}

// loadEnvironmentOverrides loads sensitive configuration from environment variables
func loadEnvironmentOverrides(config *Config) {
	if resendKey := os.Getenv("RESEND_API_KEY"); resendKey != "" {
		config.Email.ResendAPIKey = resendKey
	}

	if fromEmail := os.Getenv("ALERT_FROM_EMAIL"); fromEmail != "" {
		config.Email.FromEmail = fromEmail
	}

	if fromName := os.Getenv("ALERT_FROM_NAME"); fromName != "" {
		config.Email.FromName = fromName
	}
}

// CreateDefaultConfig creates a default configuration
func CreateDefaultConfig() *Config {
	return &Config{
		Containers:      []string{DefaultContainer, NodeContainer},
		TargetContainer: NodeContainer,
		DismissAfter:    DefaultDismissAfter,
		SoundAsset:      DefaultSoundAsset,
		Email: EmailConfig{
			Enabled:     false, // Disabled by default until configured
			FromEmail:   "alerts@localhost",
			FromName:    "Hyperwatch",
			DefaultTo:   []string{},
			MinSeverity: SeverityCritical,
		},
	}
}

// LoadConfigOrDefault loads configPath, falling back to the defaults plus
// environment overrides when the file does not exist
func LoadConfigOrDefault(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config := CreateDefaultConfig()
		loadEnvironmentOverrides(config)
		return config, nil
	}
	return LoadConfig(configPath)
}
