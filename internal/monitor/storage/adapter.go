package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"
)

// NewStore builds the settings store selected by the agent configuration
func NewStore(ctx context.Context, config *monitor.Config, logger *logging.Logger) (Store, error) {
	switch config.Storage.Type {
	case monitor.StorageMemory:
		logger.Warn("Using in-memory settings store, thresholds will not survive a restart")
		return NewMemoryStore(), nil

	case monitor.StorageSQLite, monitor.StorageSQLitePure:
		path := config.Storage.SQLite.Path
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}

		driver := DriverSQLitePure
		if config.Storage.Type == monitor.StorageSQLite {
			driver = DriverSQLite
		}

		store, err := NewSQLStore(ctx, driver, path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		logger.Info("Settings store ready", "driver", driver, "path", path)
		return store, nil

	case monitor.StorageMySQL:
		store, err := NewSQLStore(ctx, DriverMySQL, config.Storage.MySQL.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create MySQL storage: %w", err)
		}
		logger.Info("Settings store ready", "driver", DriverMySQL)
		return store, nil

	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}
}

// ensureDir creates a directory if it doesn't exist
func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
