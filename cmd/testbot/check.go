package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runixer/mediarelay/internal/storage"
)

// outputCheckError wraps an error in JSON if JSON output is requested.
func outputCheckError(message string, isJSON bool) error {
	if isJSON {
		return outputIndentedJSON(map[string]interface{}{
			"status": "error",
			"error":  message,
		})
	}
	return fmt.Errorf("%s", message)
}

var checkDeliveriesCmd = &cobra.Command{
	Use:   "check-deliveries",
	Short: "Show recent delivery journal rows for the chat",
	Long: `Display the most recent journal rows for the chat, newest first. Every message
that carried a link leaves exactly one row with the outcome the user saw.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		isJSON := mustGetString(cmd, "format") == "json"

		tb := getTestBot(cmd)
		if tb == nil {
			return outputCheckError("testbot not initialized", isJSON)
		}

		chatID := getChatID(cmd)
		filter := storage.DeliveryFilter{
			ChatID:  chatID,
			Outcome: mustGetString(cmd, "outcome"),
		}
		deliveries, err := tb.store.GetDeliveries(context.Background(), filter, mustGetInt(cmd, "limit"))
		if err != nil {
			return outputCheckError(fmt.Sprintf("failed to get deliveries: %v", err), isJSON)
		}

		if isJSON {
			return outputIndentedJSON(map[string]interface{}{
				"type":  "deliveries",
				"count": len(deliveries),
				"data":  deliveries,
			})
		}

		fmt.Printf("Deliveries for chat %d: %d\n", chatID, len(deliveries))
		for i, d := range deliveries {
			fmt.Printf("%2d. [%s] %s %s (%d files, %s, %dms)\n",
				i+1, d.Outcome, d.CreatedAt.Format("2006-01-02 15:04:05"), d.URL,
				d.FileCount, humanize.IBytes(uint64(d.Bytes)), d.DurationMs)
			if d.Error != "" {
				fmt.Printf("      error: %s\n", d.Error)
			}
		}
		return nil
	},
}

var checkStatsCmd = &cobra.Command{
	Use:   "check-stats",
	Short: "Show journal totals per outcome",
	Long:  `Display journal row counts per outcome, the number of known users and the database size.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		isJSON := mustGetString(cmd, "format") == "json"

		tb := getTestBot(cmd)
		if tb == nil {
			return outputCheckError("testbot not initialized", isJSON)
		}

		counts, err := tb.store.GetOutcomeCounts(context.Background())
		if err != nil {
			return outputCheckError(fmt.Sprintf("failed to get outcome counts: %v", err), isJSON)
		}
		users, err := tb.store.CountUsers()
		if err != nil {
			return outputCheckError(fmt.Sprintf("failed to count users: %v", err), isJSON)
		}
		size, err := tb.store.GetDBSize()
		if err != nil {
			return outputCheckError(fmt.Sprintf("failed to get database size: %v", err), isJSON)
		}

		if isJSON {
			return outputIndentedJSON(map[string]interface{}{
				"type":     "stats",
				"users":    users,
				"outcomes": counts,
				"db_bytes": size,
			})
		}

		outcomes := make([]string, 0, len(counts))
		total := 0
		for outcome, n := range counts {
			outcomes = append(outcomes, outcome)
			total += n
		}
		sort.Strings(outcomes)

		fmt.Printf("Users: %d\n", users)
		fmt.Printf("Requests: %d\n", total)
		for _, outcome := range outcomes {
			fmt.Printf("  %-20s %d\n", outcome, counts[outcome])
		}
		fmt.Printf("Database: %s\n", humanize.IBytes(uint64(size)))
		return nil
	},
}

func init() {
	checkDeliveriesCmd.Flags().StringP("format", "f", "text", "Output format: text, json")
	checkDeliveriesCmd.Flags().String("outcome", "", "Only rows with this outcome")
	checkDeliveriesCmd.Flags().Int("limit", defaultListLimit, "Maximum rows to show (0 = all)")
	checkStatsCmd.Flags().StringP("format", "f", "text", "Output format: text, json")

	rootCmd.AddCommand(checkDeliveriesCmd)
	rootCmd.AddCommand(checkStatsCmd)
}
