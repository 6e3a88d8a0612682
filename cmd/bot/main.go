package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/runixer/mediarelay/internal/app"
	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/janitor"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
	"github.com/runixer/mediarelay/internal/web"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "mediarelay",
		Name:      "build_info",
		Help:      "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	// Config errors are ignored here: the process may be running on env vars only.
	cfg, err := config.Load(configPath)
	port := "9081"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else if envPort := os.Getenv("MEDIARELAY_SERVER_PORT"); envPort != "" {
		port = envPort
	}

	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

// webhookCredentials derives the webhook path and secret from the bot token.
// Первая половина sha256 идёт в secret header, вторая в путь URL.
func webhookCredentials(token string) (path, secret string) {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[16:]), hex.EncodeToString(hash[:16])
}

func main() {
	// JSON logging until the config tells us the real level and format.
	slog.SetDefault(app.NewLogger(os.Stdout, "info", config.LogFormatJSON))

	if err := app.LoadEnv(); err != nil {
		slog.Warn("failed to load .env file", "error", err)
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("mediarelay", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := app.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	logger.Info("Config loaded successfully", "mode", cfg.Bot.Mode, "language", cfg.Bot.Language)

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Database initialized successfully.")

	api, err := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, cfg.Telegram.ProxyURL)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}
	logger.Info("Telegram client created successfully.")

	services, err := app.SetupServices(logger, cfg, api, store, nil)
	if err != nil {
		logger.Error("failed to set up services", "error", err)
		os.Exit(1)
	}
	b := services.Bot

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	j := janitor.New(logger, cfg, store)
	if err := j.Start(ctx); err != nil {
		logger.Error("failed to start janitor", "error", err)
		os.Exit(1)
	}
	// Defers run in reverse: requests drain first, then fetches, then the janitor.
	defer j.Stop()
	defer services.Dispatcher.Wait()
	defer b.Stop()

	if cfg.Telegram.WebhookURL != "" {
		// Path and secret must be known before the web server builds its routes.
		cfg.Telegram.WebhookPath, cfg.Telegram.WebhookSecret = webhookCredentials(cfg.Telegram.Token)
	}

	webServer := web.NewServer(ctx, logger, cfg, store, b)
	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		if err := webServer.Start(ctx); err != nil {
			logger.Error("web server failed", "error", err)
			cancel()
		}
	}()

	logger.Info("Starting mediarelay", "version", Version, "mode", b.Mode())

	pollingDone := make(chan struct{})

	if cfg.Telegram.WebhookURL != "" {
		webhookURL := cfg.Telegram.WebhookURL + "/telegram/" + cfg.Telegram.WebhookPath
		if err := b.SetWebhook(webhookURL, cfg.Telegram.WebhookSecret); err != nil {
			logger.Error("failed to set webhook", "error", err)
			cancel()
			<-srvDone
			os.Exit(1)
		}
		logger.Info("Webhook set", "url", cfg.Telegram.WebhookURL)
		close(pollingDone)
	} else {
		logger.Info("Webhook not set, using long polling.")

		// Telegram refuses getUpdates while a webhook is registered
		if err := b.SetWebhook("", ""); err != nil {
			logger.Warn("failed to clear webhook", "error", err)
		}

		go func() {
			defer close(pollingDone)
			offset := 0
			for {
				select {
				case <-ctx.Done():
					logger.Info("Polling goroutine received shutdown signal")
					return
				default:
					updates, err := b.API().GetUpdates(ctx, telegram.GetUpdatesRequest{
						Offset:         offset,
						Timeout:        25, // Use 25s to avoid http client timeout (30s)
						AllowedUpdates: []string{"message"},
					})
					if err != nil {
						if ctx.Err() == nil {
							logger.Error("failed to get updates", "error", err)
							time.Sleep(5 * time.Second)
						}
						continue
					}

					for i := range updates {
						update := &updates[i]
						if update.UpdateID >= offset {
							offset = update.UpdateID + 1
						}
						b.ProcessUpdateAsync(ctx, update, "long_polling")
					}
				}
			}
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	<-pollingDone
	logger.Info("Polling stopped")

	<-srvDone
	logger.Info("Web server stopped")
}
