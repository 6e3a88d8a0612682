package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/i18n"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a config with sensible test defaults.
// Downloads go to downloadDir; an empty value leaves it unset.
func TestConfig(mode, downloadDir string) *config.Config {
	cfg := &config.Config{
		Bot: config.BotConfig{
			Language: "en",
			Mode:     mode,
		},
		Fetch: config.FetchConfig{
			DownloadDir: downloadDir,
			Workers:     2,
			Timeout:     "1m",
			Audio: config.AudioConfig{
				Codec:     "mp3",
				Quality:   "192K",
				MaxSizeMB: 100,
			},
			Video: config.VideoConfig{
				MergeFormat: "mp4",
				MaxSizeMB:   70,
			},
		},
	}
	cfg.Telegram.Token = "test-token"
	return cfg
}

// TestTranslator creates a translator with the reply keys used by the bot.
// Use t.TempDir() automatically cleaned up after test.
func TestTranslator(t *testing.T) *i18n.Translator {
	t.Helper()
	tmpDir := t.TempDir()
	en := `
bot:
  start:
    audio: "start audio"
    video: "start video"
  commands:
    start: "Start the bot"
  error:
    extraction:
      audio: "extraction audio"
      video: "extraction video"
    unknown: "unknown error"
    no_file: "no file"
    unsupported_format: "unsupported format"
    ambiguous:
      audio: "ambiguous audio"
      video: "ambiguous video"
    too_large: "too large %s > %s"
`
	ru := `
bot:
  error:
    unknown: "неизвестная ошибка"
`
	if err := os.WriteFile(filepath.Join(tmpDir, "en.yaml"), []byte(en), 0600); err != nil {
		t.Fatalf("failed to write test translations: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "ru.yaml"), []byte(ru), 0600); err != nil {
		t.Fatalf("failed to write test translations: %v", err)
	}

	tr, err := i18n.NewTranslatorFromFS(os.DirFS(tmpDir), "en")
	if err != nil {
		t.Fatalf("failed to create test translator: %v", err)
	}
	return tr
}

// Ptr returns a pointer to the given value. Useful for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
