package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no value is stored under a key
var ErrNotFound = errors.New("setting not found")

// Store is a string key/value store for UI preferences.
//
// Values are opaque strings; callers serialize JSON or booleans themselves so
// that the persisted layout matches what the dashboard keeps in browser
// local storage.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) error
	Close() error
}

// Setting is one persisted key/value row
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Driver names registered with database/sql
const (
	DriverSQLite     = "sqlite3" // github.com/mattn/go-sqlite3, cgo
	DriverSQLitePure = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMySQL      = "mysql"
)
