package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runixer/mediarelay/internal/janitor"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one janitor sweep now",
	Long: `Run the janitor once, exactly as the scheduled job in the relay does: remove
downloads older than janitor.max_file_age and prune journal rows older than
janitor.journal_retention.

Example:
  testbot sweep --max-file-age 0s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tb := getTestBot(cmd)
		if tb == nil {
			return fmt.Errorf("testbot not initialized")
		}

		if cmd.Flags().Changed("max-file-age") {
			tb.cfg.Janitor.MaxFileAge = mustGetString(cmd, "max-file-age")
		}
		if cmd.Flags().Changed("journal-retention") {
			tb.cfg.Janitor.JournalRetention = mustGetString(cmd, "journal-retention")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		report := janitor.New(tb.logger, tb.cfg, tb.store).RunOnce(ctx)

		fmt.Printf("Files removed: %d (%s)\n", report.FilesRemoved, humanize.IBytes(uint64(report.BytesFreed)))
		fmt.Printf("Journal rows pruned: %d\n", report.JournalPruned)
		return nil
	},
}

func init() {
	sweepCmd.Flags().String("max-file-age", "", "Override janitor.max_file_age for this run")
	sweepCmd.Flags().String("journal-retention", "", "Override janitor.journal_retention for this run")

	rootCmd.AddCommand(sweepCmd)
}
