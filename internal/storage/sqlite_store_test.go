package storage

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func setupTestDB(t *testing.T) (*SQLiteStore, func()) {
	logger := testLogger()
	// Use in-memory SQLite database for testing
	store, err := NewSQLiteStore(logger, ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	cleanup := func() {
		store.Close()
	}

	return store, cleanup
}

func TestNewSQLiteStore(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NotNil(t, store)
	assert.NotNil(t, store.db)
}

func TestInit(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	err := store.Init()
	assert.NoError(t, err)

	tables := []string{"deliveries", "users"}

	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "Table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestInit_Idempotent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, store.Init())
	assert.NoError(t, store.Init(), "second Init must not fail on existing tables or migrated columns")

	var count int
	err := store.db.QueryRow("SELECT count(*) FROM pragma_table_info('deliveries') WHERE name='decision'").Scan(&count)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}
