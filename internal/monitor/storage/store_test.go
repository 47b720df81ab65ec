package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"hyperwatch/internal/logging"
	"hyperwatch/internal/monitor"
)

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.db")
	store, err := NewSQLStore(context.Background(), DriverSQLitePure, path, logging.NewDiscardLogger())
	if err != nil {
		t.Fatalf("NewSQLStore returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	if _, err := store.Get(ctx, "resource_thresholds"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	if err := store.Set(ctx, "resource_alerts_enabled", "true"); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if err := store.Set(ctx, "resource_alerts_enabled", "false"); err != nil {
		t.Fatalf("second Set returned error: %v", err)
	}

	got, err := store.Get(ctx, "resource_alerts_enabled")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != "false" {
		t.Errorf("Get = %q, want %q", got, "false")
	}

	if err := store.Delete(ctx, "resource_alerts_enabled"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := store.Get(ctx, "resource_alerts_enabled"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete: err = %v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}

	if err := store.Health(ctx); err != nil {
		t.Errorf("Health returned error: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	testStoreContract(t, newTestSQLStore(t))
}

func TestSQLStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.db")
	logger := logging.NewDiscardLogger()

	first, err := NewSQLStore(ctx, DriverSQLitePure, path, logger)
	if err != nil {
		t.Fatalf("NewSQLStore returned error: %v", err)
	}
	value := `{"cpu":{"warning":60,"critical":80,"enabled":true}}`
	if err := first.Set(ctx, "resource_thresholds", value); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	first.Close()

	second, err := NewSQLStore(ctx, DriverSQLitePure, path, logger)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "resource_thresholds")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != value {
		t.Errorf("Get = %q, want %q", got, value)
	}

	settings, err := second.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(settings) != 1 || settings[0].Key != "resource_thresholds" {
		t.Errorf("List = %+v", settings)
	}
}

func TestMigrationStatusAndRollback(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLStore(t)
	mm := NewMigrationManager(store.db, logging.NewDiscardLogger())

	status, err := mm.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus returned error: %v", err)
	}
	for _, s := range status {
		if !s.Applied {
			t.Errorf("migration %s not applied", s.Version)
		}
	}

	// Re-applying is a no-op
	if err := mm.ApplyMigrations(ctx); err != nil {
		t.Fatalf("ApplyMigrations returned error: %v", err)
	}

	if err := mm.RollbackMigration(ctx); err != nil {
		t.Fatalf("RollbackMigration returned error: %v", err)
	}
	if _, err := store.Get(ctx, "anything"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected query error after dropping settings table, got %v", err)
	}
}

func TestNewSQLStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := NewSQLStore(context.Background(), "postgres", "", logging.NewDiscardLogger()); err == nil {
		t.Error("expected error for unknown driver")
	}
}

func TestNewStoreFromConfig(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewDiscardLogger()

	config := monitor.DefaultConfig()
	config.Storage.Type = monitor.StorageMemory
	store, err := NewStore(ctx, config, logger)
	if err != nil {
		t.Fatalf("NewStore(memory) returned error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("NewStore(memory) = %T", store)
	}

	config.Storage.Type = monitor.StorageSQLitePure
	config.Storage.SQLite.Path = filepath.Join(t.TempDir(), "nested", "settings.db")
	store, err = NewStore(ctx, config, logger)
	if err != nil {
		t.Fatalf("NewStore(sqlite-pure) returned error: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*SQLStore); !ok {
		t.Errorf("NewStore(sqlite-pure) = %T", store)
	}
}
