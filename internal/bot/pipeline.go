package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
)

// Request is one link to relay. It lives for a single handleRequest call.
type Request struct {
	ID        string
	ChatID    int64
	MessageID int
	ThreadID  int
	UserID    int64
	Lang      string
	URL       string
}

// result is what the journal and metrics learn about a finished request.
type result struct {
	outcome  string
	decision string
	files    int
	bytes    int64
	err      error
}

// handleRequest runs fetch, resolve, classify, deliver for one request.
// Whatever happens, including a panic, every file discovered for the
// request is removed before it returns and exactly one outcome is recorded.
func (b *Bot) handleRequest(ctx context.Context, req Request, logger *slog.Logger) {
	start := time.Now()
	IncActiveRequests()
	defer DecActiveRequests()

	cleanup := media.NewCleanup(logger)
	res := result{outcome: storage.OutcomeUnknownError}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling request", "panic", r, "stack", string(debug.Stack()))
			res.outcome, res.err = storage.OutcomeUnknownError, fmt.Errorf("panic: %v", r)
			b.reply(ctx, req, "bot.error.unknown", logger)
		}
		if removed := cleanup.Run(); removed > 0 {
			logger.Debug("removed downloaded files", "count", removed)
		}
		b.finish(ctx, req, res, time.Since(start), logger)
	}()

	b.runPipeline(ctx, req, cleanup, &res, logger)
}

// runPipeline fills res as it goes, so a panic still leaves what was learned so far.
func (b *Bot) runPipeline(ctx context.Context, req Request, cleanup *media.Cleanup, res *result, logger *slog.Logger) {
	actionCtx, stopAction := context.WithCancel(ctx)
	defer stopAction()
	go b.sendActionLoop(actionCtx, req.ChatID, req.ThreadID, b.chatAction())

	pattern := media.NewNamingPattern(b.cfg.Fetch.DownloadDir, req.ChatID, req.MessageID)
	if err := b.fetcher.Fetch(ctx, media.Job{URL: req.URL, Pattern: pattern}); err != nil {
		if errors.Is(err, media.ErrExtraction) {
			logger.Warn("extraction failed", "error", err)
			b.reply(ctx, req, "bot.error.extraction."+string(b.mode), logger)
			res.outcome, res.err = storage.OutcomeExtractionError, err
			return
		}
		logger.Error("fetch failed", "error", err)
		b.reply(ctx, req, "bot.error.unknown", logger)
		res.outcome, res.err = storage.OutcomeUnknownError, err
		return
	}
	// From here on the request owns everything under its prefix.
	cleanup.TrackPattern(pattern)

	files, err := media.Resolve(pattern)
	if err != nil {
		if errors.Is(err, media.ErrNoFileFound) {
			logger.Warn("fetch produced no files", "prefix", pattern.Prefix)
			b.reply(ctx, req, "bot.error.no_file", logger)
			res.outcome, res.decision, res.err = storage.OutcomeNoFileFound, media.NoFileFound.String(), err
			return
		}
		logger.Error("failed to resolve downloaded files", "error", err)
		b.reply(ctx, req, "bot.error.unknown", logger)
		res.outcome, res.err = storage.OutcomeUnknownError, err
		return
	}
	cleanup.Track(files...)

	decision := b.guard.Apply(media.Classify(files, b.mode))
	res.decision = decision.Kind.String()
	res.files = len(decision.Files)
	res.bytes = totalSize(decision.Files)
	logger.Debug("classified download", "decision", res.decision, "discovered", len(files), "deliver", res.files)

	switch decision.Kind {
	case media.TooLarge:
		size := humanize.IBytes(uint64(decision.Files[0].Size))
		limit := humanize.IBytes(uint64(decision.Limit))
		logger.Warn("file too large", "size", size, "limit", limit)
		b.reply(ctx, req, "bot.error.too_large", logger, size, limit)
		res.outcome = storage.OutcomeTooLarge
	case media.AmbiguousFiles:
		logger.Warn("ambiguous download", "files", len(files))
		b.reply(ctx, req, "bot.error.ambiguous."+string(b.mode), logger)
		res.outcome = storage.OutcomeAmbiguousFiles
	case media.UnsupportedFormat:
		logger.Warn("unsupported format", "ext", files[0].Ext)
		b.reply(ctx, req, "bot.error.unsupported_format", logger)
		res.outcome = storage.OutcomeUnsupportedFormat
	default:
		if err := b.deliver(ctx, req, decision); err != nil {
			logger.Error("delivery failed", "error", err)
			b.reply(ctx, req, "bot.error.unknown", logger)
			res.outcome = storage.OutcomeDeliveryError
			res.err = err
			break
		}
		res.outcome = storage.OutcomeDelivered
	}
}

// reply answers the originating message with a translated text.
func (b *Bot) reply(ctx context.Context, req Request, key string, logger *slog.Logger, args ...interface{}) {
	b.sendText(ctx, req.ChatID, req.ThreadID, req.MessageID, b.translator.Get(req.Lang, key, args...), logger)
}

func (b *Bot) finish(ctx context.Context, req Request, res result, elapsed time.Duration, logger *slog.Logger) {
	RecordRequest(string(b.mode), res.outcome, elapsed.Seconds())
	logger.Info("Request handled",
		"outcome", res.outcome,
		"decision", res.decision,
		"files", res.files,
		"bytes", humanize.IBytes(uint64(res.bytes)),
		"duration_ms", elapsed.Milliseconds(),
	)

	if b.deliveryRepo == nil {
		return
	}
	d := storage.Delivery{
		RequestID:  req.ID,
		ChatID:     req.ChatID,
		MessageID:  req.MessageID,
		UserID:     req.UserID,
		URL:        req.URL,
		Mode:       string(b.mode),
		Outcome:    res.outcome,
		Decision:   res.decision,
		FileCount:  res.files,
		Bytes:      res.bytes,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  time.Now(),
	}
	if res.err != nil {
		d.Error = res.err.Error()
	}
	if _, err := b.deliveryRepo.AddDelivery(ctx, d); err != nil {
		logger.Error("failed to record delivery", "error", err)
	}
}

func totalSize(files []media.DiscoveredFile) int64 {
	var n int64
	for _, f := range files {
		n += f.Size
	}
	return n
}
