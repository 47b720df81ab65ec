package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"
	"hyperwatch/internal/monitor/agent"
	"hyperwatch/internal/monitor/alerts"
	"hyperwatch/internal/monitor/storage"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	logFile     = flag.String("log-file", "", "Override the configured log file")
	debug       = flag.Bool("debug", false, "Enable debug logging")
	setupEmail  = flag.Bool("setup-email", false, "Interactively configure Resend e-mail alerts and exit")
	issueToken  = flag.String("issue-token", "", "Print an API token for the given subject and exit")
	writeConfig = flag.String("write-config", "", "Write the effective configuration, defaults filled in, to a file and exit")

	migrateStatus   = flag.Bool("migrate-status", false, "Print settings database migration status and exit")
	migrateRollback = flag.Bool("migrate-rollback", false, "Roll back the last settings database migration and exit")
	listSettings    = flag.Bool("list-settings", false, "Print stored settings and exit")
	versionFlag = flag.Bool("version", false, "Show version information")
)

// Build information - can be set via ldflags
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const (
	AppName = "hyperwatch-agent"
)

func main() {
	flag.Parse()

	// Show version and exit if requested
	if *versionFlag {
		fmt.Printf("%s version %s\n", AppName, version)
		fmt.Printf("Build time: %s\n", buildTime)
		fmt.Printf("Git commit: %s\n", gitCommit)
		os.Exit(0)
	}

	// Initialize temporary logger (fallback to temp file initially)
	tempLogPath := fmt.Sprintf("/tmp/%s.log", AppName)
	logger, err := logging.NewLogger(tempLogPath)
	if err != nil {
		fmt.Printf("Failed to initialize temporary logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Info("Starting Hyperwatch agent", "version", version, "build_time", buildTime, "git_commit", gitCommit)

	// Load configuration
	config, err := monitor.LoadConfig(*configPath)
	if err != nil {
		if *writeConfig == "" {
			logger.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		logger.Warn("No usable configuration, writing defaults", "error", err)
		config = monitor.DefaultConfig()
	}

	if *writeConfig != "" {
		if err := monitor.SaveConfig(config, *writeConfig); err != nil {
			logger.Error("Failed to write configuration", "path", *writeConfig, "error", err)
			os.Exit(1)
		}
		logger.Info("Configuration written", "path", *writeConfig)
		return
	}

	if command := storageCommand(); command != "" {
		if err := runStorageCommand(context.Background(), config, logger, os.Stdout, command); err != nil {
			logger.Error("Storage command failed", "command", command, "error", err)
			os.Exit(1)
		}
		return
	}

	if *setupEmail {
		if err := runEmailSetup(config.AlertsFile); err != nil {
			logger.Error("E-mail setup failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if *issueToken != "" {
		token, err := agent.NewTokenAuth(config.Agent.AuthSecret).GenerateToken(*issueToken, agent.TokenExpiry)
		if err != nil {
			logger.Error("Failed to issue token", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if *logFile != "" {
		config.Agent.LogFile = *logFile
	}

	// Reinitialize logger with configured path if different from temp
	if config.Agent.LogFile != "" && config.Agent.LogFile != tempLogPath {
		logger.Info("Reinitializing logger with configured path", "old_path", tempLogPath, "new_path", config.Agent.LogFile)
		if err := logger.ReinitializeWithPath(config.Agent.LogFile); err != nil {
			logger.Warn("Failed to reinitialize logger with configured path, continuing with temporary path",
				"error", err, "temp_path", tempLogPath, "config_path", config.Agent.LogFile)
		}
	}

	// Override debug setting from command line
	if *debug {
		config.Agent.Debug = true
	}
	logger.SetDebug(config.Agent.Debug)

	alertsConfig, err := alerts.LoadConfigOrDefault(config.AlertsFile)
	if err != nil {
		logger.Error("Failed to load alert configuration", "path", config.AlertsFile, "error", err)
		os.Exit(1)
	}
	if alertsConfig.Email.Enabled && alertsConfig.Email.ResendAPIKey == "" {
		alertsConfig.Email.ResendAPIKey = alerts.NewKeyManager().GetResendAPIKey()
	}

	logger.Info("Configuration loaded successfully",
		"listen_addr", config.Agent.ListenAddr,
		"storage", config.Storage.Type,
		"remote_sources", len(config.Collectors.Remote),
		"host_collector", config.Collectors.Host.Enabled,
		"alerts_file", config.AlertsFile,
	)

	agent.Version = version

	// Create monitoring agent
	monitorAgent, err := agent.NewAgent(config, alertsConfig, logger)
	if err != nil {
		logger.Error("Failed to create monitoring agent", "error", err)
		os.Exit(1)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start the agent in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := monitorAgent.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Monitoring agent started successfully")

	// Wait for shutdown signal or error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		logger.Error("Agent startup failed", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown
	logger.Info("Shutting down monitoring agent...")
	if err := monitorAgent.Stop(); err != nil {
		logger.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("Monitoring agent stopped successfully")
}

// Storage maintenance commands
const (
	cmdMigrateStatus   = "migrate-status"
	cmdMigrateRollback = "migrate-rollback"
	cmdListSettings    = "list-settings"
)

func storageCommand() string {
	switch {
	case *migrateStatus:
		return cmdMigrateStatus
	case *migrateRollback:
		return cmdMigrateRollback
	case *listSettings:
		return cmdListSettings
	}
	return ""
}

// runStorageCommand opens the configured settings database, which applies
// pending migrations, and runs one maintenance command against it
func runStorageCommand(ctx context.Context, config *monitor.Config, logger *logging.Logger, out io.Writer, command string) error {
	store, err := storage.NewStore(ctx, config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	db, ok := store.(*storage.SQLStore)
	if !ok {
		return fmt.Errorf("storage type %s has no database", config.Storage.Type)
	}

	switch command {
	case cmdMigrateStatus:
		statuses, err := db.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		for _, status := range statuses {
			applied := "pending"
			if status.Applied && status.AppliedAt != nil {
				applied = "applied " + status.AppliedAt.Format(time.RFC3339)
			} else if status.Applied {
				applied = "applied"
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", status.Version, applied, status.Description)
		}
	case cmdMigrateRollback:
		return db.RollbackLast(ctx)
	case cmdListSettings:
		settings, err := db.List(ctx)
		if err != nil {
			return err
		}
		for _, setting := range settings {
			fmt.Fprintf(out, "%s=%s\n", setting.Key, setting.Value)
		}
	default:
		return fmt.Errorf("unknown storage command: %s", command)
	}
	return nil
}

// runEmailSetup walks through the Resend key and the e-mail section of alerts.yaml
func runEmailSetup(alertsPath string) error {
	km := alerts.NewKeyManager()
	if err := km.SetupResendAPIKey(); err != nil {
		return err
	}
	if err := km.SetEmailConfiguration(alertsPath); err != nil {
		return err
	}
	fmt.Printf("Resend key stored in %s\n", filepath.Join(km.ConfigDir(), ".env"))
	return km.TestResendAPIKey()
}
