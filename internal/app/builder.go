package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/runixer/mediarelay/internal/bot"
	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/i18n"
	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
)

// Services holds the pipeline built for one process.
// Returned by SetupServices so the relay and testbot share the wiring.
type Services struct {
	Translator *i18n.Translator
	Dispatcher *media.Dispatcher
	Bot        *bot.Bot
}

// SetupServices builds translator, fetch dispatcher and bot.
//
// fetcher may be nil, in which case yt-dlp is used. store may be nil to run
// without the delivery journal.
//
// The caller is responsible for:
// - Stopping the bot before the dispatcher (bot.Stop(), then Dispatcher.Wait())
// - Closing the store
func SetupServices(logger *slog.Logger, cfg *config.Config, api telegram.BotAPI, store storage.Storage, fetcher media.Fetcher) (*Services, error) {
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if api == nil {
		return nil, errors.New("telegram client is required")
	}

	if err := os.MkdirAll(cfg.Fetch.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	translator, err := i18n.NewTranslator(cfg.Bot.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize translator: %w", err)
	}

	mode := media.Mode(cfg.Bot.Mode)
	if fetcher == nil {
		fetcher = media.NewYTDLPFetcher(cfg.Fetch, mode, logger)
	}
	dispatcher := media.NewDispatcher(fetcher, cfg.Fetch.Workers, cfg.Fetch.GetTimeout(), logger)

	var deliveries storage.DeliveryRepository
	var users storage.UserRepository
	if store != nil {
		deliveries, users = store, store
	}

	b, err := bot.NewBot(logger, api, cfg, dispatcher, deliveries, users, translator)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Pipeline initialized",
		"mode", mode,
		"workers", cfg.Fetch.Workers,
		"fetch_timeout", cfg.Fetch.GetTimeout(),
		"download_dir", cfg.Fetch.DownloadDir,
	)

	return &Services{
		Translator: translator,
		Dispatcher: dispatcher,
		Bot:        b,
	}, nil
}
