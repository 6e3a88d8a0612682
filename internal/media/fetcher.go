package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lrstanley/go-ytdlp"

	"github.com/runixer/mediarelay/internal/config"
)

// Fetcher downloads the media behind url into files matching pattern.
// Errors are *FetchError carrying ErrExtraction or ErrUnknown.
type Fetcher interface {
	Fetch(ctx context.Context, url string, pattern NamingPattern) error
}

// YTDLPFetcher runs yt-dlp with a fixed per-mode configuration.
type YTDLPFetcher struct {
	mode   Mode
	cfg    config.FetchConfig
	logger *slog.Logger
}

// NewYTDLPFetcher creates a fetcher for the given mode.
func NewYTDLPFetcher(cfg config.FetchConfig, mode Mode, logger *slog.Logger) *YTDLPFetcher {
	return &YTDLPFetcher{
		mode:   mode,
		cfg:    cfg,
		logger: logger.With("component", "fetcher", "mode", string(mode)),
	}
}

// command builds a fresh yt-dlp invocation. Commands are not shared between requests.
// NoMtime keeps the write time on disk: the janitor ages files by mtime, and
// yt-dlp would otherwise stamp them with the server's Last-Modified.
func (f *YTDLPFetcher) command(pattern NamingPattern) *ytdlp.Command {
	cmd := ytdlp.New().
		Output(pattern.Template()).
		NoPlaylist().
		NoMtime().
		Quiet().
		NoWarnings()

	if f.cfg.Executable != "" {
		cmd = cmd.SetExecutable(f.cfg.Executable)
	}

	switch f.mode {
	case ModeAudio:
		cmd = cmd.
			Format("bestaudio/best").
			ExtractAudio().
			AudioFormat(f.cfg.Audio.Codec).
			AudioQuality(f.cfg.Audio.Quality)
	default:
		cmd = cmd.
			Format("bestvideo+bestaudio/best").
			MergeOutputFormat(f.cfg.Video.MergeFormat)
	}
	return cmd
}

// Fetch runs yt-dlp once. There is no retry.
func (f *YTDLPFetcher) Fetch(ctx context.Context, url string, pattern NamingPattern) error {
	f.logger.Debug("running yt-dlp", "url", url, "template", pattern.Template())

	result, err := f.command(pattern).Run(ctx, url)
	if err == nil {
		return nil
	}
	return classifyRunError(ctx, url, result, err)
}

// classifyRunError maps a failed run to a FetchError.
//
// yt-dlp exits with status 1 when it cannot resolve a URL or finds no media.
// Everything else (binary missing, killed by the deadline, other exit codes)
// is ErrUnknown. The last "ERROR:" line is only carried as detail.
func classifyRunError(ctx context.Context, url string, result *ytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &FetchError{URL: url, Cause: ErrUnknown, Err: errors.Join(ctxErr, err)}
	}

	if _, ok := ytdlp.IsMisconfigError(err); ok {
		return &FetchError{URL: url, Cause: ErrUnknown, Err: err}
	}

	cause := ErrUnknown
	if _, ok := ytdlp.IsExitCodeError(err); ok && result != nil && result.ExitCode == 1 {
		cause = ErrExtraction
	}
	if result != nil {
		if msg := lastErrorLine(result.Stderr); msg != "" {
			err = fmt.Errorf("yt-dlp exit code %d: %s: %w", result.ExitCode, msg, err)
		}
	}
	return &FetchError{URL: url, Cause: cause, Err: err}
}

// lastErrorLine returns the last "ERROR:" line yt-dlp printed, if any.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return line
		}
	}
	return ""
}
