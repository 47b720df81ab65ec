package alerts

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/term"
)

// KeyManager handles the Resend API key and the email section of alerts.yaml
type KeyManager struct {
	configDir string
	envFile   string

	in  *bufio.Reader
	out io.Writer
	// readSecret reads a line without echo
	readSecret func() (string, error)
}

// NewKeyManager creates a key manager bound to the terminal
func NewKeyManager() *KeyManager {
	configDir := "/etc/hyperwatch"
	if os.Getuid() != 0 {
		if homeDir, err := os.UserHomeDir(); err == nil {
			configDir = filepath.Join(homeDir, ".config", "hyperwatch")
		}
	}

	km := newKeyManager(configDir, os.Stdin, os.Stdout)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		km.readSecret = func() (string, error) {
			secret, err := term.ReadPassword(fd)
			fmt.Fprintln(km.out)
			return string(secret), err
		}
	}
	return km
}

func newKeyManager(configDir string, in io.Reader, out io.Writer) *KeyManager {
	km := &KeyManager{
		configDir: configDir,
		envFile:   filepath.Join(configDir, ".env"),
		in:        bufio.NewReader(in),
		out:       out,
	}
	km.readSecret = km.readLine
	return km
}

// ConfigDir returns the directory holding .env and alerts.yaml
func (km *KeyManager) ConfigDir() string {
	return km.configDir
}

func (km *KeyManager) readLine() (string, error) {
	line, err := km.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (km *KeyManager) confirm(prompt string) bool {
	fmt.Fprint(km.out, prompt)
	response, _ := km.readLine()
	response = strings.ToLower(response)
	return response == "y" || response == "yes"
}

// SetupResendAPIKey interactively sets up the Resend API key
func (km *KeyManager) SetupResendAPIKey() error {
	fmt.Fprintln(km.out, "Resend API Key Setup")
	fmt.Fprintln(km.out, "====================")
	fmt.Fprintln(km.out)
	fmt.Fprintln(km.out, "Critical resource alerts can be mailed through Resend.")
	fmt.Fprintln(km.out, "You can get your API key from: https://resend.com/api-keys")
	fmt.Fprintln(km.out)

	if existingKey := km.GetResendAPIKey(); existingKey != "" {
		fmt.Fprintf(km.out, "Resend API key is already configured (ending with: ...%s)\n", keySuffix(existingKey))
		if !km.confirm("Do you want to update it? (y/N): ") {
			fmt.Fprintln(km.out, "Keeping existing API key.")
			return nil
		}
	}

	fmt.Fprint(km.out, "Enter your Resend API key (will be hidden): ")
	apiKey, err := km.readSecret()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	if !strings.HasPrefix(apiKey, "re_") {
		fmt.Fprintln(km.out, "Warning: Resend API keys typically start with 're_'")
		if !km.confirm("Continue anyway? (y/N): ") {
			return fmt.Errorf("setup cancelled")
		}
	}

	if err := km.saveResendAPIKey(apiKey); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	fmt.Fprintln(km.out, "Resend API key saved successfully!")
	return nil
}

func keySuffix(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[len(key)-4:]
}

// GetResendAPIKey retrieves the Resend API key from environment or file
func (km *KeyManager) GetResendAPIKey() string {
	if key := os.Getenv("RESEND_API_KEY"); key != "" {
		return key
	}
	return km.readFromEnvFile("RESEND_API_KEY")
}

// SetEmailConfiguration interactively configures email settings and writes
// them into the email section of alertsPath
func (km *KeyManager) SetEmailConfiguration(alertsPath string) error {
	fmt.Fprintln(km.out, "Email Configuration Setup")
	fmt.Fprintln(km.out, "=========================")
	fmt.Fprintln(km.out)

	fmt.Fprint(km.out, "Enter sender email address: ")
	fromEmail, _ := km.readLine()
	if fromEmail == "" {
		return fmt.Errorf("sender email cannot be empty")
	}

	fmt.Fprint(km.out, "Enter sender name (optional): ")
	fromName, _ := km.readLine()
	if fromName == "" {
		fromName = "Hyperwatch"
	}

	fmt.Fprintln(km.out)
	fmt.Fprintln(km.out, "Enter recipient email addresses (one per line, empty line to finish):")
	var recipients []string
	for {
		fmt.Fprint(km.out, "Recipient: ")
		email, err := km.readLine()
		if err != nil || email == "" {
			break
		}
		if strings.Contains(email, "@") {
			recipients = append(recipients, email)
		} else {
			fmt.Fprintln(km.out, "Invalid email format, skipping...")
		}
	}

	if len(recipients) == 0 {
		return fmt.Errorf("at least one recipient email is required")
	}

	if err := km.saveEmailConfig(alertsPath, fromEmail, fromName, recipients); err != nil {
		return fmt.Errorf("failed to save email configuration: %w", err)
	}

	fmt.Fprintln(km.out)
	fmt.Fprintln(km.out, "Email configuration saved!")
	fmt.Fprintf(km.out, "From: %s <%s>\n", fromName, fromEmail)
	fmt.Fprintf(km.out, "Recipients: %s\n", strings.Join(recipients, ", "))
	return nil
}

func (km *KeyManager) saveResendAPIKey(apiKey string) error {
	if err := os.MkdirAll(km.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	envVars := km.readAllEnvVars()
	envVars["RESEND_API_KEY"] = apiKey
	return km.writeEnvFile(envVars)
}

// saveEmailConfig merges the email settings into an existing alerts.yaml,
// keeping every other section as it was
func (km *KeyManager) saveEmailConfig(alertsPath, fromEmail, fromName string, recipients []string) error {
	configFile := &ConfigFile{}
	if _, err := os.Stat(alertsPath); err == nil {
		existing, err := ReadConfigFile(alertsPath)
		if err != nil {
			return err
		}
		configFile = existing
	}

	configFile.Email.Enabled = true
	configFile.Email.FromEmail = fromEmail
	configFile.Email.FromName = fromName
	configFile.Email.DefaultTo = recipients
	if configFile.Email.MinSeverity == "" {
		configFile.Email.MinSeverity = SeverityCritical
	}
	// The key lives in .env, never in the YAML file
	configFile.Email.ResendAPIKey = ""

	return WriteConfigFile(configFile, alertsPath)
}

func (km *KeyManager) readFromEnvFile(key string) string {
	return km.readAllEnvVars()[key]
}

func (km *KeyManager) readAllEnvVars() map[string]string {
	envVars := make(map[string]string)

	file, err := os.Open(km.envFile)
	if err != nil {
		return envVars
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if parts := strings.SplitN(line, "=", 2); len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
				value = value[1 : len(value)-1]
			}
			envVars[key] = value
		}
	}

	return envVars
}

func (km *KeyManager) writeEnvFile(envVars map[string]string) error {
	file, err := os.OpenFile(km.envFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	fmt.Fprintln(writer, "# Hyperwatch alert configuration")
	fmt.Fprintln(writer, "# This file contains sensitive API keys - keep secure!")
	fmt.Fprintln(writer)

	keys := make([]string, 0, len(envVars))
	for key := range envVars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(writer, "%s=%q\n", key, envVars[key])
	}

	return writer.Flush()
}

// TestResendAPIKey checks that an API key is configured
func (km *KeyManager) TestResendAPIKey() error {
	if km.GetResendAPIKey() == "" {
		return fmt.Errorf("no Resend API key configured")
	}
	fmt.Fprintln(km.out, "Resend API key found")
	return nil
}
