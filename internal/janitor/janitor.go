// Package janitor sweeps what request-scoped cleanup cannot reach: downloads
// left behind by fetches that failed after writing partial data, and old
// delivery journal rows.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/runixer/mediarelay/internal/config"
	"github.com/runixer/mediarelay/internal/media"
	"github.com/runixer/mediarelay/internal/storage"
)

// Repository is the slice of storage the janitor maintains.
type Repository interface {
	CleanupDeliveries(ctx context.Context, olderThan time.Time) (int64, error)
	GetDBSize() (int64, error)
	GetTableSizes() ([]storage.TableSize, error)
}

// Report summarizes one sweep.
type Report struct {
	FilesRemoved  int
	BytesFreed    int64
	JournalPruned int64
}

type Janitor struct {
	cfg    config.JanitorConfig
	dir    string
	repo   Repository
	logger *slog.Logger
	cron   *cron.Cron
	now    func() time.Time
}

// New creates a janitor for the download dir of cfg. repo may be nil.
func New(logger *slog.Logger, cfg *config.Config, repo Repository) *Janitor {
	return &Janitor{
		cfg:    cfg.Janitor,
		dir:    cfg.Fetch.DownloadDir,
		repo:   repo,
		logger: logger.With("component", "janitor"),
		now:    time.Now,
	}
}

// Start schedules sweeps. Overlapping runs are skipped.
func (j *Janitor) Start(ctx context.Context) error {
	if !j.cfg.Enabled {
		j.logger.Info("Janitor is disabled")
		return nil
	}

	cronLogger := cronLogger{j.logger}
	c := cron.New(cron.WithLogger(cronLogger), cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := c.AddFunc(j.cfg.Schedule, func() { j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.cfg.Schedule, err)
	}
	j.cron = c
	c.Start()

	j.logger.Info("Janitor started",
		"schedule", j.cfg.Schedule,
		"max_file_age", j.cfg.GetMaxFileAge(),
		"journal_retention", j.cfg.GetJournalRetention(),
	)
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
	j.logger.Info("Janitor stopped")
}

// RunOnce performs one sweep. Failures are logged and leave the rest of the sweep running.
func (j *Janitor) RunOnce(ctx context.Context) Report {
	start := j.now()
	var report Report
	status := statusSuccess

	files, freed, err := j.sweepFiles(start)
	report.FilesRemoved, report.BytesFreed = files, freed
	if err != nil {
		status = statusError
		j.logger.Error("failed to sweep downloads", "dir", j.dir, "error", err)
	}

	if j.repo != nil {
		pruned, err := j.pruneJournal(ctx, start)
		report.JournalPruned = pruned
		if err != nil {
			status = statusError
			j.logger.Error("failed to prune delivery journal", "error", err)
		}
		j.refreshStorageMetrics()
	}

	recordRun(status, time.Since(start).Seconds())
	if report.FilesRemoved > 0 || report.JournalPruned > 0 {
		j.logger.Info("Janitor sweep finished",
			"files_removed", report.FilesRemoved,
			"bytes_freed", report.BytesFreed,
			"journal_pruned", report.JournalPruned,
		)
	}
	return report
}

// sweepFiles removes download files older than the max age.
// Only names carrying the request prefix are touched.
func (j *Janitor) sweepFiles(now time.Time) (int, int64, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, err
	}

	cutoff := now.Add(-j.cfg.GetMaxFileAge())
	var removed int
	var freed int64
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), media.FilePrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed concurrently by its request.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, e.Name())
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		removed++
		freed += info.Size()
		j.logger.Debug("removed stale download", "path", path, "age", now.Sub(info.ModTime()).Round(time.Second))
	}

	recordSweep(removed, freed)
	return removed, freed, errors.Join(errs...)
}

func (j *Janitor) pruneJournal(ctx context.Context, now time.Time) (int64, error) {
	retention := j.cfg.GetJournalRetention()
	if retention <= 0 {
		return 0, nil
	}
	return j.repo.CleanupDeliveries(ctx, now.Add(-retention))
}

func (j *Janitor) refreshStorageMetrics() {
	size, err := j.repo.GetDBSize()
	if err != nil {
		j.logger.Warn("failed to get database size", "error", err)
		return
	}
	storage.SetStorageSize(size)

	tables, err := j.repo.GetTableSizes()
	if err != nil {
		j.logger.Warn("failed to get table sizes", "error", err)
		return
	}
	for _, t := range tables {
		storage.SetTableSize(t.Name, t.Bytes)
	}
}

// cronLogger routes cron's own messages into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
