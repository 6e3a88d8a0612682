package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runixer/mediarelay/internal/app"
	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/storage"
)

const (
	defaultChatID        = 123
	defaultListLimit     = 20
	defaultConfigSubPath = "configs/config.yaml"
	defaultTestDBPath    = "data/mediarelay_test.db"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

const (
	testbotKey contextKey = iota
	optionsKey
)

// testbotOptions holds all CLI flag values, passed via context.
type testbotOptions struct {
	cfgFile   string
	chatID    int64
	mode      string
	dbPath    string
	dbChanged bool
	verbose   bool
}

// testBot holds what every command needs: config, logger and the journal.
// The pipeline itself is built on demand by send.
type testBot struct {
	logger    *slog.Logger
	store     *storage.SQLiteStore
	cfg       *config.Config
	storePath string
	tempDir   string
}

var rootCmd = &cobra.Command{
	Use:   "testbot",
	Short: "CLI tool for testing the mediarelay pipeline",
	Long: `Testbot drives the mediarelay pipeline from the command line without a Telegram
connection. Replies and uploads are printed instead of sent. It can also inspect and
clear the delivery journal and run a janitor sweep.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := &testbotOptions{
			cfgFile:   mustGetString(cmd, "config"),
			chatID:    mustGetInt64(cmd, "chat"),
			mode:      mustGetString(cmd, "mode"),
			dbPath:    mustGetString(cmd, "db"),
			dbChanged: cmd.Flags().Changed("db"),
			verbose:   mustGetBool(cmd, "verbose"),
		}

		// Load .env from CWD - fail only if config was explicitly provided
		if err := app.LoadEnv(); err != nil {
			if opts.cfgFile != "" {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
		}

		if opts.chatID == 0 {
			return fmt.Errorf("invalid chat ID: %d", opts.chatID)
		}

		resolvedCfgPath, err := findConfigPath(opts.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to find config: %w", err)
		}

		cfg, err := config.Load(resolvedCfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if opts.mode != "" {
			cfg.Bot.Mode = opts.mode
		}
		// Nothing is sent to Telegram, a token is not required.
		if cfg.Telegram.Token == "" {
			cfg.Telegram.Token = "testbot_token"
		}

		// Quiet by default, verbose shows all logs
		var w io.Writer = io.Discard
		if opts.verbose {
			w = os.Stderr
		}
		logger := app.NewLogger(w, "debug", config.LogFormatText)

		tb, err := setupTestBot(cfg, logger, opts.dbPath, opts.dbChanged, resolvedCfgPath)
		if err != nil {
			return fmt.Errorf("failed to setup testbot: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			_ = tb.close()
			return fmt.Errorf("invalid configuration: %w", err)
		}

		ctx := withTestBot(cmd.Context(), tb, opts)
		cmd.SetContext(ctx)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if tb := getTestBot(cmd); tb != nil {
			if err := tb.close(); err != nil {
				return fmt.Errorf("failed to close testbot: %w", err)
			}
		}
		return nil
	},
}

func withTestBot(ctx context.Context, tb *testBot, opts *testbotOptions) context.Context {
	ctx = context.WithValue(ctx, testbotKey, tb)
	return context.WithValue(ctx, optionsKey, opts)
}

// getTestBot retrieves the testBot instance from context.
func getTestBot(cmd *cobra.Command) *testBot {
	if cmd.Context() == nil {
		return nil
	}
	if tb := cmd.Context().Value(testbotKey); tb != nil {
		return tb.(*testBot)
	}
	return nil
}

// getOptions retrieves the testbotOptions from context.
func getOptions(cmd *cobra.Command) *testbotOptions {
	if cmd.Context() == nil {
		return nil
	}
	if opts := cmd.Context().Value(optionsKey); opts != nil {
		return opts.(*testbotOptions)
	}
	return nil
}

func getChatID(cmd *cobra.Command) int64 {
	if opts := getOptions(cmd); opts != nil {
		return opts.chatID
	}
	return defaultChatID
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: auto-detect)")
	rootCmd.PersistentFlags().Int64P("chat", "c", defaultChatID, "Chat ID the test message comes from")
	rootCmd.PersistentFlags().StringP("mode", "m", "", "Override bot mode: audio, video")
	rootCmd.PersistentFlags().String("db", "", "Database path (default: data/mediarelay_test.db, '--db \"\"' for temp DB)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose debug output (shows all logs)")
}

// setupTestBot opens the journal database.
func setupTestBot(cfg *config.Config, logger *slog.Logger, dbPath string, dbChanged bool, resolvedCfgPath string) (*testBot, error) {
	tb := &testBot{
		logger: logger,
		cfg:    cfg,
	}

	var success bool
	defer func() {
		if !success {
			_ = tb.close()
		}
	}()

	switch {
	case dbChanged && dbPath == "":
		dir, err := os.MkdirTemp("", "mediarelay_testbot_")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp dir: %w", err)
		}
		tb.tempDir = dir
		tb.storePath = filepath.Join(dir, fmt.Sprintf("mediarelay_test_%s.db", getTempFileSuffix()))
	case dbChanged:
		tb.storePath = dbPath
	default:
		tb.storePath = defaultTestDBPath
		if err := os.MkdirAll(filepath.Dir(tb.storePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	tb.cfg.Database.Path = tb.storePath

	source := "defaults"
	if resolvedCfgPath != "" {
		source = "file"
	}
	logger.Info("Using config", "path", resolvedCfgPath, "source", source)
	logger.Info("Using database", "path", tb.storePath)

	var err error
	tb.store, err = storage.NewSQLiteStore(tb.logger, tb.storePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := tb.store.Init(); err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	success = true
	return tb, nil
}

// close cleans up resources, collecting any errors.
func (tb *testBot) close() error {
	var errs []error

	if tb.store != nil {
		if err := tb.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store.Close: %w", err))
		}
		tb.store = nil
	}
	if tb.tempDir != "" {
		if err := os.RemoveAll(tb.tempDir); err != nil {
			errs = append(errs, fmt.Errorf("remove temp dir: %w", err))
		}
		tb.tempDir = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// getTempFileSuffix returns a random suffix for temp file naming.
// Panics if crypto/rand fails, as this indicates a critical system failure.
func getTempFileSuffix() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// findConfigPath resolves the config file path.
// Searches in order: provided path, CWD/configs/config.yaml, then defaults.
func findConfigPath(providedPath string) (string, error) {
	if providedPath != "" {
		if _, err := os.Stat(providedPath); err == nil {
			return providedPath, nil
		}
		return "", fmt.Errorf("config file not found: %s", providedPath)
	}

	if _, err := os.Stat(defaultConfigSubPath); err == nil {
		return defaultConfigSubPath, nil
	}

	// Config not found - empty path means embedded defaults
	return "", nil
}

// outputIndentedJSON writes data to stdout as indented JSON.
func outputIndentedJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// Flag retrieval helpers that panic on error (error indicates bug in flag name).

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetInt64(cmd *cobra.Command, name string) int64 {
	val, err := cmd.Flags().GetInt64(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("bug: failed to get flag %q: %v", name, err))
	}
	return val
}
