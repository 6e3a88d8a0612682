package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/testutil"
)

func TestNewLogger(t *testing.T) {
	t.Run("json with level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, "warn", "json")
		logger.Info("hidden")
		logger.Warn("shown", "key", "value")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf, "chatty", "json")
		logger.Debug("hidden")
		logger.Info("visible")

		out := buf.String()
		assert.Contains(t, out, "unknown log level")
		assert.Contains(t, out, "visible")
		assert.NotContains(t, out, "hidden")
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		NewLogger(&buf, "info", "text").Info("hello", "request_id", "abc")
		out := buf.String()
		assert.Contains(t, out, "hello")
		assert.Contains(t, out, "abc")
		assert.False(t, json.Valid(buf.Bytes()))
	})
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MEDIARELAY_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Setenv("MEDIARELAY_TEST_ENV_VALUE", "")
	os.Unsetenv("MEDIARELAY_TEST_ENV_VALUE")

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("MEDIARELAY_TEST_ENV_VALUE"))

	broken := filepath.Join(dir, "broken.env")
	require.NoError(t, os.WriteFile(broken, []byte("KEY=\"unterminated\n"), 0o600))
	assert.Error(t, LoadEnv(broken))
}

type fetchFunc func(ctx context.Context, url string, pattern media.NamingPattern) error

func (f fetchFunc) Fetch(ctx context.Context, url string, pattern media.NamingPattern) error {
	return f(ctx, url, pattern)
}

func TestSetupServices(t *testing.T) {
	t.Run("requires dependencies", func(t *testing.T) {
		cfg := testutil.TestConfig("audio", t.TempDir())
		_, err := SetupServices(nil, cfg, new(testutil.MockBotAPI), nil, nil)
		assert.Error(t, err)
		_, err = SetupServices(testutil.TestLogger(), nil, new(testutil.MockBotAPI), nil, nil)
		assert.Error(t, err)
		_, err = SetupServices(testutil.TestLogger(), cfg, nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("wires pipeline", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "downloads")
		cfg := testutil.TestConfig("video", dir)

		api := new(testutil.MockBotAPI)
		api.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil)
		api.On("SendChatAction", mock.Anything, mock.Anything).Return(nil).Maybe()
		api.On("SendVideo", mock.Anything, mock.Anything).Return(testutil.TestMessage(2), nil).Once()

		fetcher := fetchFunc(func(_ context.Context, _ string, pattern media.NamingPattern) error {
			return os.WriteFile(filepath.Join(pattern.Dir, pattern.Prefix+".mp4"), []byte("video"), 0o600)
		})

		services, err := SetupServices(testutil.TestLogger(), cfg, api, nil, fetcher)
		require.NoError(t, err)
		assert.DirExists(t, dir)
		assert.Equal(t, media.ModeVideo, services.Bot.Mode())

		services.Bot.ProcessUpdate(context.Background(), testutil.TestUpdate(1, "https://example.com/v"), "test")
		services.Bot.Stop()
		services.Dispatcher.Wait()

		api.AssertExpectations(t)
		testutil.AssertNoFilesWithPrefix(t, dir, "dl_")
	})
}
