package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runixer/mediarelay/internal/testutil"
)

func TestMustGetHelpers(t *testing.T) {
	t.Run("panics on unknown flag", func(t *testing.T) {
		cmd := &cobra.Command{}
		assert.Panics(t, func() { mustGetString(cmd, "nonexistent_flag") })
		assert.Panics(t, func() { mustGetInt(cmd, "nonexistent_flag") })
		assert.Panics(t, func() { mustGetInt64(cmd, "nonexistent_flag") })
		assert.Panics(t, func() { mustGetBool(cmd, "nonexistent_flag") })
	})

	t.Run("reads set values", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.Flags().String("s", "", "")
		cmd.Flags().Int("i", 0, "")
		cmd.Flags().Int64("i64", 0, "")
		cmd.Flags().Bool("b", false, "")
		require.NoError(t, cmd.Flags().Set("s", "value"))
		require.NoError(t, cmd.Flags().Set("i", "42"))
		require.NoError(t, cmd.Flags().Set("i64", "-100123"))
		require.NoError(t, cmd.Flags().Set("b", "true"))

		assert.Equal(t, "value", mustGetString(cmd, "s"))
		assert.Equal(t, 42, mustGetInt(cmd, "i"))
		assert.Equal(t, int64(-100123), mustGetInt64(cmd, "i64"))
		assert.True(t, mustGetBool(cmd, "b"))
	})
}

func TestFindConfigPath(t *testing.T) {
	t.Run("provided path exists", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("bot:\n  mode: video\n"), 0o600))

		got, err := findConfigPath(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("provided path missing", func(t *testing.T) {
		_, err := findConfigPath(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("no path and no default falls back to embedded defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())
		got, err := findConfigPath("")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("default path in CWD", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigSubPath), []byte("{}\n"), 0o600))
		t.Chdir(dir)

		got, err := findConfigPath("")
		require.NoError(t, err)
		assert.Equal(t, defaultConfigSubPath, got)
	})
}

func TestSetupTestBot_TempDB(t *testing.T) {
	cfg := testutil.TestConfig("audio", t.TempDir())

	tb, err := setupTestBot(cfg, testutil.TestLogger(), "", true, "")
	require.NoError(t, err)
	require.NotEmpty(t, tb.tempDir)
	assert.Equal(t, tb.storePath, cfg.Database.Path)
	assert.FileExists(t, tb.storePath)

	tempDir := tb.tempDir
	require.NoError(t, tb.close())
	assert.NoDirExists(t, tempDir)
	// Second close is a no-op
	assert.NoError(t, tb.close())
}

func TestSetupTestBot_ProvidedDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "given.db")
	cfg := testutil.TestConfig("video", t.TempDir())

	tb, err := setupTestBot(cfg, testutil.TestLogger(), path, true, "configs/config.yaml")
	require.NoError(t, err)
	defer tb.close()

	assert.Equal(t, path, tb.storePath)
	assert.Empty(t, tb.tempDir)
}

func TestGetTempFileSuffix(t *testing.T) {
	a, b := getTempFileSuffix(), getTempFileSuffix()
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}

func TestGetChatID_Default(t *testing.T) {
	assert.Equal(t, int64(defaultChatID), getChatID(&cobra.Command{}))
}
