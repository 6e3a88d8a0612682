package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/testutil"
)

// newTestTestBot creates a testBot backed by a file database in a temp dir.
func newTestTestBot(t *testing.T, mode string) *testBot {
	t.Helper()
	dir := t.TempDir()

	cfg := testutil.TestConfig(mode, filepath.Join(dir, "downloads"))
	cfg.Database.Path = filepath.Join(dir, "test.db")

	store, err := storage.NewSQLiteStore(testutil.TestLogger(), cfg.Database.Path)
	require.NoError(t, err)
	require.NoError(t, store.Init())

	tb := &testBot{
		logger:    testutil.TestLogger(),
		store:     store,
		cfg:       cfg,
		storePath: cfg.Database.Path,
	}
	t.Cleanup(func() { _ = tb.close() })
	return tb
}

// captureStdout returns what fn printed to stdout.
func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	runErr := fn()

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err)
	return buf.String(), runErr
}
