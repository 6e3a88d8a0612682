package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runixer/mediarelay/internal/media"
)

var clearJournalCmd = &cobra.Command{
	Use:   "clear-journal",
	Short: "Delete all delivery journal rows",
	Long: `Delete every row of the delivery journal, for all chats. Useful for checking
outcome counts from scratch.

Example:
  testbot clear-journal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tb := getTestBot(cmd)
		if tb == nil {
			return fmt.Errorf("testbot not initialized")
		}

		// Rows are stored with millisecond timestamps; one second ahead covers "now".
		deleted, err := tb.store.CleanupDeliveries(context.Background(), time.Now().Add(time.Second))
		if err != nil {
			return fmt.Errorf("failed to clear journal: %w", err)
		}

		fmt.Printf("Cleared %d journal rows\n", deleted)
		return nil
	},
}

var clearDownloadsCmd = &cobra.Command{
	Use:   "clear-downloads",
	Short: "Delete leftover downloads regardless of age",
	Long: `Delete every download file in the configured download directory, including
fresh ones. Do not run it while a relay process shares the directory.

Example:
  testbot clear-downloads`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tb := getTestBot(cmd)
		if tb == nil {
			return fmt.Errorf("testbot not initialized")
		}

		removed, err := clearDownloads(tb.cfg.Fetch.DownloadDir)
		if err != nil {
			return fmt.Errorf("failed to clear downloads: %w", err)
		}

		fmt.Printf("Cleared %d files from %s\n", removed, tb.cfg.Fetch.DownloadDir)
		return nil
	},
}

// clearDownloads removes files carrying the download prefix from dir.
func clearDownloads(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), media.FilePrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func init() {
	rootCmd.AddCommand(clearJournalCmd)
	rootCmd.AddCommand(clearDownloadsCmd)
}
