package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hyperwatch/internal/logging"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLStore persists settings in a SQL database. The same code serves the cgo
// SQLite driver, the pure Go SQLite driver and MySQL; only the upsert differs.
type SQLStore struct {
	db     *sql.DB
	driver string
	logger *logging.Logger
}

// NewSQLStore opens dsn with the named driver and applies pending migrations
func NewSQLStore(ctx context.Context, driver, dsn string, logger *logging.Logger) (*SQLStore, error) {
	switch driver {
	case DriverSQLite, DriverSQLitePure, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLStore{
		db:     db,
		driver: driver,
		logger: logger,
	}

	if err := store.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLStore) initialize(ctx context.Context) error {
	if s.isSQLite() {
		// A single writer avoids SQLITE_BUSY between the API and the loader
		s.db.SetMaxOpenConns(1)
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
		}
		for _, pragma := range pragmas {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
			}
		}
	} else {
		s.db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := s.Health(ctx); err != nil {
		return err
	}

	return NewMigrationManager(s.db, s.logger).ApplyMigrations(ctx)
}

func (s *SQLStore) isSQLite() bool {
	return s.driver == DriverSQLite || s.driver == DriverSQLitePure
}

// Get returns the value stored under key or ErrNotFound
func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT setting_value FROM settings WHERE setting_key = ?`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, nil
}

// Set inserts or replaces the value stored under key
func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(setting_key) DO UPDATE SET
			setting_value = excluded.setting_value,
			updated_at = excluded.updated_at
	`
	if s.driver == DriverMySQL {
		query = `
			INSERT INTO settings (setting_key, setting_value, updated_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				setting_value = VALUES(setting_value),
				updated_at = VALUES(updated_at)
		`
	}

	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Delete removes key; deleting a missing key is not an error
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE setting_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// List returns every stored setting ordered by key
func (s *SQLStore) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT setting_key, setting_value, updated_at FROM settings ORDER BY setting_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var (
			setting   Setting
			updatedAt int64
		)
		if err := rows.Scan(&setting.Key, &setting.Value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		setting.UpdatedAt = time.Unix(updatedAt, 0)
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// MigrationStatus reports every known migration and whether it is applied
func (s *SQLStore) MigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	return NewMigrationManager(s.db, s.logger).GetMigrationStatus(ctx)
}

// RollbackLast reverts the most recently applied migration
func (s *SQLStore) RollbackLast(ctx context.Context) error {
	return NewMigrationManager(s.db, s.logger).RollbackMigration(ctx)
}

// Health checks the database connection
func (s *SQLStore) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
