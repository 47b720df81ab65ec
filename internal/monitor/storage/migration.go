package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"hyperwatch/internal/logging"
)

// Migration represents a database schema migration.
//
// Statements are executed one at a time because the MySQL driver rejects
// multi-statement Exec calls unless the DSN opts in.
type Migration struct {
	Version     string
	Description string
	Up          []string
	Down        []string
}

// MigrationStatus reports whether a migration has been applied
type MigrationStatus struct {
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Applied     bool       `json:"applied"`
	AppliedAt   *time.Time `json:"applied_at,omitempty"`
}

// AppliedMigration is a row in schema_migrations
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
	Checksum  string
}

// MigrationManager handles database schema migrations
type MigrationManager struct {
	db         *sql.DB
	logger     *logging.Logger
	migrations []Migration
}

// NewMigrationManager creates a new migration manager
func NewMigrationManager(db *sql.DB, logger *logging.Logger) *MigrationManager {
	return &MigrationManager{
		db:         db,
		logger:     logger,
		migrations: GetAllMigrations(),
	}
}

// GetAllMigrations returns all available migrations in order.
// The DDL sticks to the subset shared by SQLite and MySQL.
func GetAllMigrations() []Migration {
	return []Migration{
		{
			Version:     "1.0.0",
			Description: "Settings key/value table",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS settings (
					setting_key VARCHAR(191) NOT NULL PRIMARY KEY,
					setting_value TEXT NOT NULL,
					updated_at BIGINT NOT NULL
				)`,
			},
			Down: []string{
				`DROP TABLE IF EXISTS settings`,
			},
		},
	}
}

// ApplyMigrations applies all pending migrations
func (mm *MigrationManager) ApplyMigrations(ctx context.Context) error {
	mm.logger.Debug("Checking for pending migrations")

	if err := mm.ensureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	applied, err := mm.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	sort.Slice(mm.migrations, func(i, j int) bool {
		return mm.migrations[i].Version < mm.migrations[j].Version
	})

	pending := mm.getPendingMigrations(applied)
	if len(pending) == 0 {
		mm.logger.Debug("No pending migrations")
		return nil
	}

	mm.logger.Info("Applying migrations", "count", len(pending))

	for _, migration := range pending {
		if err := mm.applyMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}
	}

	mm.logger.Info("All migrations applied successfully")
	return nil
}

// RollbackMigration rolls back the last applied migration
func (mm *MigrationManager) RollbackMigration(ctx context.Context) error {
	var version, description string
	err := mm.db.QueryRowContext(ctx, `
		SELECT version, description
		FROM schema_migrations
		ORDER BY applied_at DESC, version DESC
		LIMIT 1
	`).Scan(&version, &description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("no migrations to rollback")
		}
		return fmt.Errorf("failed to get last migration: %w", err)
	}

	var migration *Migration
	for i := range mm.migrations {
		if mm.migrations[i].Version == version {
			migration = &mm.migrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", version)
	}

	mm.logger.Info("Rolling back migration", "version", version, "description", description)

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range migration.Down {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute rollback SQL: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollback: %w", err)
	}

	mm.logger.Info("Migration rolled back successfully", "version", version)
	return nil
}

// GetMigrationStatus returns the status of all migrations
func (mm *MigrationManager) GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := mm.getAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	var status []MigrationStatus
	for _, migration := range mm.migrations {
		ms := MigrationStatus{
			Version:     migration.Version,
			Description: migration.Description,
		}
		if info, exists := applied[migration.Version]; exists {
			appliedAt := info.AppliedAt
			ms.Applied = true
			ms.AppliedAt = &appliedAt
		}
		status = append(status, ms)
	}

	return status, nil
}

func (mm *MigrationManager) ensureMigrationTable(ctx context.Context) error {
	_, err := mm.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(64) NOT NULL PRIMARY KEY,
			description TEXT,
			applied_at BIGINT NOT NULL,
			checksum VARCHAR(64)
		)
	`)
	return err
}

func (mm *MigrationManager) getAppliedMigrations(ctx context.Context) (map[string]AppliedMigration, error) {
	rows, err := mm.db.QueryContext(ctx, `SELECT version, applied_at, checksum FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]AppliedMigration)
	for rows.Next() {
		var (
			m         AppliedMigration
			appliedAt int64
			checksum  sql.NullString
		)
		if err := rows.Scan(&m.Version, &appliedAt, &checksum); err != nil {
			return nil, err
		}
		m.AppliedAt = time.Unix(appliedAt, 0)
		m.Checksum = checksum.String
		applied[m.Version] = m
	}

	return applied, rows.Err()
}

func (mm *MigrationManager) getPendingMigrations(applied map[string]AppliedMigration) []Migration {
	var pending []Migration
	for _, migration := range mm.migrations {
		if _, ok := applied[migration.Version]; !ok {
			pending = append(pending, migration)
		}
	}
	return pending
}

func (mm *MigrationManager) applyMigration(ctx context.Context, migration Migration) error {
	mm.logger.Info("Applying migration", "version", migration.Version, "description", migration.Description)

	tx, err := mm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range migration.Up {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, description, applied_at, checksum)
		VALUES (?, ?, ?, ?)
	`, migration.Version, migration.Description, time.Now().Unix(), migrationChecksum(migration)); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

func migrationChecksum(migration Migration) string {
	sum := sha256.Sum256([]byte(strings.Join(migration.Up, ";")))
	return fmt.Sprintf("%x", sum)
}
