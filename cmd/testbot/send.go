package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runixer/mediarelay/internal/app"
	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
)

// sendResult is what one test message produced.
type sendResult struct {
	Outcome  string        `json:"outcome,omitempty"`
	Decision string        `json:"decision,omitempty"`
	Sent     []sentItem    `json:"sent"`
	Duration time.Duration `json:"-"`
}

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a test message through the relay pipeline",
	Long: `Send a test message through the full pipeline: URL extraction, yt-dlp fetch,
classification, size guard and delivery. Telegram calls are printed instead of sent.

Use --stub to skip yt-dlp and pretend it produced the given files.

Example:
  testbot send "https://youtu.be/dQw4w9WgXcQ"
  testbot send "look https://example.com/p/1" --mode video --stub jpg:2048,jpg:4096
  testbot send "https://example.com/v" --stub mp4:104857600 --check-outcome too_large --output json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tb := getTestBot(cmd)
		if tb == nil {
			return fmt.Errorf("testbot not initialized")
		}

		checkOutcome := mustGetString(cmd, "check-outcome")
		checkReply := mustGetString(cmd, "check-reply")
		stub := mustGetString(cmd, "stub")
		lang := mustGetString(cmd, "lang")
		outputFormat := mustGetString(cmd, "output")

		var fetcher media.Fetcher
		if stub != "" {
			outputs, err := parseStubOutputs(stub)
			if err != nil {
				return fmt.Errorf("invalid --stub: %w", err)
			}
			fetcher = &stubFetcher{outputs: outputs}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		result, err := tb.send(ctx, getChatID(cmd), lang, strings.Join(args, " "), fetcher)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}

		var failures []string
		if checkOutcome != "" && result.Outcome != checkOutcome {
			failures = append(failures, fmt.Sprintf("expected outcome %q, got %q", checkOutcome, result.Outcome))
		}
		if checkReply != "" && !result.hasText(checkReply) {
			failures = append(failures, fmt.Sprintf("no reply contains %q (case-insensitive)", checkReply))
		}

		if outputFormat == "json" {
			err = outputSendJSON(result, failures)
		} else {
			err = outputSendText(result, failures)
		}
		if err != nil {
			return err
		}
		if len(failures) > 0 {
			// Non-zero exit for scripted checks
			cmd.SilenceUsage = true
			return fmt.Errorf("%d check(s) failed", len(failures))
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().String("check-outcome", "", "Check the journal outcome (delivered, too_large, ...)")
	sendCmd.Flags().String("check-reply", "", "Check some reply or caption contains substring")
	sendCmd.Flags().String("stub", "", "Fake yt-dlp output as ext:size list, e.g. mp4:1048576,jpg:2048")
	sendCmd.Flags().String("lang", "en", "Language code of the test user")
	sendCmd.Flags().String("output", "text", "Output format: text, json")

	rootCmd.AddCommand(sendCmd)
}

// send runs one message through a freshly built pipeline and waits for it to finish.
func (tb *testBot) send(ctx context.Context, chatID int64, lang, text string, fetcher media.Fetcher) (*sendResult, error) {
	api := &recordingBotAPI{}
	services, err := app.SetupServices(tb.logger, tb.cfg, api, tb.store, fetcher)
	if err != nil {
		return nil, err
	}
	defer services.Dispatcher.Wait()
	defer services.Bot.Stop()

	// Unique per run so leftovers of an earlier run never match the prefix.
	messageID := int(time.Now().UnixMilli() % 1_000_000_000)
	update := &telegram.Update{
		UpdateID: 1,
		Message: &telegram.Message{
			MessageID: messageID,
			From:      &telegram.User{ID: chatID, FirstName: "testbot", LanguageCode: lang},
			Chat:      &telegram.Chat{ID: chatID, Type: "private"},
			Date:      int(time.Now().Unix()),
			Text:      text,
		},
	}

	start := time.Now()
	services.Bot.ProcessUpdate(ctx, update, "testbot")
	result := &sendResult{Sent: api.Sent(), Duration: time.Since(start)}

	deliveries, err := tb.store.GetDeliveries(ctx, storage.DeliveryFilter{ChatID: chatID}, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	// Commands and messages without a link leave no journal row.
	if len(deliveries) == 1 && deliveries[0].MessageID == messageID {
		result.Outcome = deliveries[0].Outcome
		result.Decision = deliveries[0].Decision
	}
	return result, nil
}

func (r *sendResult) hasText(substr string) bool {
	needle := strings.ToLower(substr)
	for _, item := range r.Sent {
		if strings.Contains(strings.ToLower(item.Text), needle) {
			return true
		}
	}
	return false
}

func outputSendJSON(result *sendResult, failures []string) error {
	output := map[string]interface{}{
		"status":      "PASS",
		"outcome":     result.Outcome,
		"decision":    result.Decision,
		"sent":        result.Sent,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if len(failures) > 0 {
		output["status"] = "FAIL"
		output["failures"] = failures
	}
	return outputIndentedJSON(output)
}

func outputSendText(result *sendResult, failures []string) error {
	status := "PASS"
	if len(failures) > 0 {
		status = "FAIL"
	}

	outcome := result.Outcome
	if outcome == "" {
		outcome = "none"
	}

	fmt.Printf("Status: %s\n", status)
	fmt.Printf("Outcome: %s\n", outcome)
	if result.Decision != "" {
		fmt.Printf("Decision: %s\n", result.Decision)
	}
	fmt.Printf("Duration: %v\n", result.Duration.Round(time.Millisecond))

	fmt.Printf("Sent (%d):\n", len(result.Sent))
	for i, item := range result.Sent {
		fmt.Printf("%2d. %s", i+1, item.Method)
		if item.Text != "" {
			fmt.Printf(" %q", item.Text)
		}
		fmt.Println()
		for _, f := range item.Files {
			fmt.Printf("      %s (%s)\n", f.Name, humanize.IBytes(uint64(f.Size)))
		}
	}

	if len(failures) > 0 {
		fmt.Fprintf(os.Stdout, "\nFailures:\n")
		for _, f := range failures {
			fmt.Printf("  - %s\n", f)
		}
	}
	return nil
}
