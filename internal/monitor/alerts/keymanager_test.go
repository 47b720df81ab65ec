package alerts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupResendAPIKeyWritesEnvFile(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "")
	dir := t.TempDir()

	var out bytes.Buffer
	km := newKeyManager(dir, strings.NewReader("re_abcdef123456\n"), &out)
	if err := km.SetupResendAPIKey(); err != nil {
		t.Fatalf("SetupResendAPIKey returned error: %v", err)
	}

	if got := km.GetResendAPIKey(); got != "re_abcdef123456" {
		t.Errorf("GetResendAPIKey = %q", got)
	}

	info, err := os.Stat(filepath.Join(dir, ".env"))
	if err != nil {
		t.Fatalf(".env not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf(".env mode = %v", info.Mode().Perm())
	}
	if err := km.TestResendAPIKey(); err != nil {
		t.Errorf("TestResendAPIKey returned error: %v", err)
	}
}

func TestSetupResendAPIKeyRejectsEmptyAndCancelled(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "")

	km := newKeyManager(t.TempDir(), strings.NewReader("\n"), &bytes.Buffer{})
	if err := km.SetupResendAPIKey(); err == nil {
		t.Error("expected error for empty key")
	}

	km = newKeyManager(t.TempDir(), strings.NewReader("sk_wrongprefix\nn\n"), &bytes.Buffer{})
	if err := km.SetupResendAPIKey(); err == nil {
		t.Error("expected cancellation for unconfirmed key prefix")
	}
}

func TestSetupResendAPIKeyKeepsExisting(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_fromenvironment")

	dir := t.TempDir()
	km := newKeyManager(dir, strings.NewReader("n\n"), &bytes.Buffer{})
	if err := km.SetupResendAPIKey(); err != nil {
		t.Fatalf("SetupResendAPIKey returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".env")); !os.IsNotExist(err) {
		t.Error(".env should not be written when keeping the existing key")
	}
}

func TestSetEmailConfigurationMergesAlertsFile(t *testing.T) {
	clearEmailEnv(t)
	dir := t.TempDir()
	alertsPath := filepath.Join(dir, "alerts.yaml")
	if err := os.WriteFile(alertsPath, []byte("containers:\n  - dashboard\ndismiss_after: 15s\n"), 0644); err != nil {
		t.Fatal(err)
	}

	input := "ops@example.com\nOps\nadmin@example.com\nnot-an-email\noncall@example.com\n\n"
	km := newKeyManager(dir, strings.NewReader(input), &bytes.Buffer{})
	if err := km.SetEmailConfiguration(alertsPath); err != nil {
		t.Fatalf("SetEmailConfiguration returned error: %v", err)
	}

	config, err := LoadConfig(alertsPath)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !config.Email.Enabled || config.Email.FromEmail != "ops@example.com" || config.Email.FromName != "Ops" {
		t.Errorf("email = %+v", config.Email)
	}
	if len(config.Email.DefaultTo) != 2 {
		t.Errorf("DefaultTo = %v", config.Email.DefaultTo)
	}
	if len(config.Containers) != 1 || config.Containers[0] != "dashboard" {
		t.Errorf("existing containers lost: %v", config.Containers)
	}
	if config.DismissAfter.String() != "15s" {
		t.Errorf("existing dismiss_after lost: %v", config.DismissAfter)
	}
}

func TestSetEmailConfigurationRequiresRecipient(t *testing.T) {
	dir := t.TempDir()
	km := newKeyManager(dir, strings.NewReader("ops@example.com\n\n\n"), &bytes.Buffer{})
	if err := km.SetEmailConfiguration(filepath.Join(dir, "alerts.yaml")); err == nil {
		t.Error("expected error without recipients")
	}
}
