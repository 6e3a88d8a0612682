package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/i18n"
	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
	"github.com/runixer/mediarelay/internal/telegram"
)

// Fetcher runs one download job to completion. *media.Dispatcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, job media.Job) error
}

type Bot struct {
	api          telegram.BotAPI
	cfg          *config.Config
	fetcher      Fetcher
	deliveryRepo storage.DeliveryRepository
	userRepo     storage.UserRepository
	translator   *i18n.Translator
	mode         media.Mode
	guard        media.SizeGuard
	logger       *slog.Logger
	wg           sync.WaitGroup
}

// NewBot builds the message handler. deliveryRepo and userRepo may be nil,
// in which case journaling and user tracking are skipped.
func NewBot(logger *slog.Logger, api telegram.BotAPI, cfg *config.Config, fetcher Fetcher, deliveryRepo storage.DeliveryRepository, userRepo storage.UserRepository, translator *i18n.Translator) (*Bot, error) {
	mode := media.Mode(cfg.Bot.Mode)
	if mode != media.ModeAudio && mode != media.ModeVideo {
		return nil, fmt.Errorf("unsupported bot mode %q", cfg.Bot.Mode)
	}

	b := &Bot{
		api:          api,
		cfg:          cfg,
		fetcher:      fetcher,
		deliveryRepo: deliveryRepo,
		userRepo:     userRepo,
		translator:   translator,
		mode:         mode,
		guard: media.SizeGuard{
			AudioLimit: cfg.Fetch.AudioLimitBytes(),
			VideoLimit: cfg.Fetch.VideoLimitBytes(),
		},
		logger: logger.With("component", "bot", "mode", string(mode)),
	}

	if err := b.setCommands(); err != nil {
		return nil, fmt.Errorf("failed to set bot commands: %w", err)
	}

	return b, nil
}

func (b *Bot) setCommands() error {
	req := telegram.SetMyCommandsRequest{
		Commands: []telegram.BotCommand{
			{Command: "start", Description: b.translator.Get(b.translator.DefaultLanguage(), "bot.commands.start")},
		},
	}
	return b.api.SetMyCommands(context.Background(), req)
}

func (b *Bot) API() telegram.BotAPI {
	return b.api
}

// Mode returns the delivery mode this bot serves.
func (b *Bot) Mode() media.Mode {
	return b.mode
}

func (b *Bot) SetWebhook(webhookURL, secretToken string) error {
	req := telegram.SetWebhookRequest{
		URL:         webhookURL,
		SecretToken: secretToken,
	}
	return b.api.SetWebhook(context.Background(), req)
}

func (b *Bot) Stop() {
	b.logger.Info("Waiting for active requests to finish...")
	b.wg.Wait()
	b.logger.Info("Bot stopped.")
}

func (b *Bot) HandleUpdate(ctx context.Context, rawUpdate json.RawMessage, remoteAddr string) {
	var update telegram.Update
	if err := json.Unmarshal(rawUpdate, &update); err != nil {
		b.logger.Error("failed to unmarshal update", "error", err, "remote_addr", remoteAddr)
		return
	}
	b.ProcessUpdate(ctx, &update, remoteAddr)
}

// HandleUpdateAsync starts processing a raw update in a goroutine.
// It properly handles WaitGroup to ensure graceful shutdown.
// Used by webhook handler.
func (b *Bot) HandleUpdateAsync(ctx context.Context, rawUpdate json.RawMessage, remoteAddr string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.HandleUpdate(ctx, rawUpdate, remoteAddr)
	}()
}

// ProcessUpdateAsync starts processing an update in a goroutine.
// Requests overlap freely; Stop waits for all of them.
func (b *Bot) ProcessUpdateAsync(ctx context.Context, update *telegram.Update, source string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.ProcessUpdate(ctx, update, source)
	}()
}

// ProcessUpdate handles one update synchronously: commands, then the first
// URL of the text. Messages without text or URL are ignored.
func (b *Bot) ProcessUpdate(ctx context.Context, update *telegram.Update, source string) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		RecordIgnoredUpdate(ignoreNoMessage)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		RecordIgnoredUpdate(ignoreNoText)
		return
	}

	logAttrs := []any{
		"update_id", update.UpdateID,
		"chat_id", msg.Chat.ID,
		"message_id", msg.MessageID,
		"source", source,
	}
	lang := b.translator.DefaultLanguage()
	var userID int64
	if user := msg.From; user != nil {
		userID = user.ID
		lang = b.translator.Match(user.LanguageCode)
		logAttrs = append(logAttrs, "user_id", user.ID, "username", user.Username)
	}
	ctxLogger := b.logger.With(logAttrs...)

	if msg.From != nil && b.userRepo != nil {
		if err := b.userRepo.UpsertUser(storage.User{
			ID:           msg.From.ID,
			Username:     msg.From.Username,
			FirstName:    msg.From.FirstName,
			LastName:     msg.From.LastName,
			LanguageCode: msg.From.LanguageCode,
			LastSeen:     time.Now(),
		}); err != nil {
			ctxLogger.Error("failed to upsert user", "error", err)
		}
	}

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text, lang, ctxLogger)
		return
	}

	url, ok := media.ExtractURL(text)
	if !ok {
		ctxLogger.Debug("no url in message")
		RecordIgnoredUpdate(ignoreNoURL)
		return
	}
	if n := media.CountURLs(text); n > 1 {
		ctxLogger.Debug("extra urls ignored", "count", n-1)
	}

	req := Request{
		ID:        uuid.NewString(),
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		ThreadID:  msg.MessageThreadID,
		UserID:    userID,
		Lang:      lang,
		URL:       url,
	}
	reqLogger := ctxLogger.With("request_id", req.ID, "url", url)
	reqLogger.Info("Received link")

	// Shutdown must not abort a request halfway: files would stay on disk
	// and the user would get no answer.
	b.handleRequest(context.WithoutCancel(ctx), req, reqLogger)
}

func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, text, lang string, logger *slog.Logger) {
	command := strings.Fields(text)[0]
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}

	switch command {
	case "/start":
		recordCommand("start")
		b.sendText(ctx, msg.Chat.ID, msg.MessageThreadID, 0, b.translator.Get(lang, "bot.start."+string(b.mode)), logger)
	default:
		logger.Debug("ignoring unknown command", "command", command)
		RecordIgnoredUpdate(ignoreCommand)
	}
}

// intPtrOrNil возвращает указатель на int, если значение != 0, иначе nil.
// Telegram интерпретирует message_thread_id: 0 как топик с ID=0,
// которого не существует, что вызывает ошибку "invalid topic identifier".
func intPtrOrNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func (b *Bot) sendText(ctx context.Context, chatID int64, threadID, replyTo int, text string, logger *slog.Logger) {
	req := telegram.SendMessageRequest{
		ChatID:           chatID,
		MessageThreadID:  intPtrOrNil(threadID),
		Text:             text,
		ReplyToMessageID: replyTo,
	}
	if _, err := b.api.SendMessage(ctx, req); err != nil {
		logger.Error("failed to send message", "error", err)
	}
}

func (b *Bot) sendAction(ctx context.Context, chatID int64, messageThreadID int, action string) {
	actionReq := telegram.SendChatActionRequest{
		ChatID:          chatID,
		MessageThreadID: intPtrOrNil(messageThreadID),
		Action:          action,
	}
	if err := b.api.SendChatAction(ctx, actionReq); err != nil {
		b.logger.Warn("failed to send action", "action", action, "error", err)
	}
}

// sendActionLoop keeps the upload indicator visible until ctx is done.
// Telegram clears an action after ~5 seconds, so it is refreshed every 4.
func (b *Bot) sendActionLoop(ctx context.Context, chatID int64, messageThreadID int, action string) {
	// Detached context: a canceled parent must not produce "context canceled"
	// noise for an action request already on the wire.
	const actionTimeout = 5 * time.Second

	send := func() {
		actionCtx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		b.sendAction(actionCtx, chatID, messageThreadID, action)
	}

	send()

	ticker := time.NewTicker(4 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}

func (b *Bot) chatAction() string {
	if b.mode == media.ModeAudio {
		return telegram.ChatActionUploadVoice
	}
	return telegram.ChatActionUploadVideo
}
