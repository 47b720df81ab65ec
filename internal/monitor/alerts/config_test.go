package alerts

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAlertsConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alerts.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEmailEnv(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "")
	t.Setenv("ALERT_FROM_EMAIL", "")
	t.Setenv("ALERT_FROM_NAME", "")
}

func TestLoadConfig(t *testing.T) {
	clearEmailEnv(t)
	path := writeAlertsConfig(t, `
containers:
  - resource-alerts-container
  - dashboard
target_container: dashboard
dismiss_after: 10s
email:
  enabled: true
  from_email: ops@example.com
  default_to:
    - admin@example.com
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if config.TargetContainer != "dashboard" {
		t.Errorf("TargetContainer = %q", config.TargetContainer)
	}
	if len(config.Containers) != 2 {
		t.Errorf("Containers = %v", config.Containers)
	}
	if config.DismissAfter != 10*time.Second {
		t.Errorf("DismissAfter = %v", config.DismissAfter)
	}
	if config.SoundAsset != DefaultSoundAsset {
		t.Errorf("SoundAsset = %q", config.SoundAsset)
	}
	if config.Email.MinSeverity != SeverityCritical {
		t.Errorf("MinSeverity = %q", config.Email.MinSeverity)
	}
	if config.Email.FromName != "Hyperwatch" {
		t.Errorf("FromName = %q", config.Email.FromName)
	}
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	clearEmailEnv(t)
	t.Setenv("RESEND_API_KEY", "re_test")
	t.Setenv("ALERT_FROM_EMAIL", "env@example.com")

	config, err := LoadConfig(writeAlertsConfig(t, "email:\n  from_email: file@example.com\n"))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if config.Email.ResendAPIKey != "re_test" {
		t.Errorf("ResendAPIKey = %q", config.Email.ResendAPIKey)
	}
	if config.Email.FromEmail != "env@example.com" {
		t.Errorf("FromEmail = %q", config.Email.FromEmail)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad duration", "dismiss_after: later\n"},
		{"negative duration", "dismiss_after: -5s\n"},
		{"bad severity", "email:\n  min_severity: info\n"},
		{"bad yaml", "containers: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeAlertsConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfigOrDefaultMissingFile(t *testing.T) {
	clearEmailEnv(t)

	config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigOrDefault returned error: %v", err)
	}
	if config.DismissAfter != DefaultDismissAfter || config.TargetContainer != NodeContainer {
		t.Errorf("unexpected defaults: %+v", config)
	}
	if config.Email.Enabled {
		t.Error("email should be disabled by default")
	}
}

func TestShippedAlertsConfigLoads(t *testing.T) {
	clearEmailEnv(t)

	config, err := LoadConfig(filepath.Join("..", "..", "..", "configs", "alerts.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	defaults := CreateDefaultConfig()
	if config.TargetContainer != defaults.TargetContainer || config.DismissAfter != defaults.DismissAfter {
		t.Errorf("shipped config drifted from defaults: %+v", config)
	}
	if config.Email.Enabled {
		t.Error("e-mail should ship disabled")
	}
}
