package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Job is one unit of fetch work.
type Job struct {
	URL     string
	Pattern NamingPattern
}

// Dispatcher runs fetches on a bounded pool of goroutines so the update loop
// never blocks on yt-dlp. Each job runs under its own timeout.
type Dispatcher struct {
	fetcher Fetcher
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher with the given pool size and per-job timeout.
func NewDispatcher(fetcher Fetcher, workers int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		fetcher: fetcher,
		sem:     semaphore.NewWeighted(int64(workers)),
		timeout: timeout,
		logger:  logger.With("component", "dispatcher"),
	}
}

// Submit schedules job and returns a channel that receives exactly one result.
// Waiting for a free worker honours ctx.
func (d *Dispatcher) Submit(ctx context.Context, job Job) <-chan error {
	result := make(chan error, 1)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		result <- d.run(ctx, job)
	}()

	return result
}

// Fetch submits job and waits for its result.
func (d *Dispatcher) Fetch(ctx context.Context, job Job) error {
	return <-d.Submit(ctx, job)
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, job Job) error {
	queuedAt := time.Now()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		recordFetch(fetchStatusCanceled, 0)
		return &FetchError{URL: job.URL, Cause: ErrUnknown, Err: fmt.Errorf("waiting for a fetch worker: %w", err)}
	}
	defer d.sem.Release(1)
	recordQueueWait(time.Since(queuedAt).Seconds())

	fetchInflight.Inc()
	defer fetchInflight.Dec()

	jobCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	startTime := time.Now()
	err := d.safeFetch(jobCtx, job)
	duration := time.Since(startTime)

	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = &FetchError{URL: job.URL, Cause: ErrUnknown, Err: fmt.Errorf("fetch timed out after %s: %w", d.timeout, err)}
	}
	if err != nil && !errors.Is(err, ErrExtraction) && !errors.Is(err, ErrUnknown) {
		err = &FetchError{URL: job.URL, Cause: ErrUnknown, Err: err}
	}

	recordFetch(fetchStatus(err), duration.Seconds())
	d.logger.Debug("fetch finished",
		"url", job.URL,
		"prefix", job.Pattern.Prefix,
		"duration_ms", duration.Milliseconds(),
		"error", err,
	)
	return err
}

// safeFetch turns a panicking fetcher into an ErrUnknown result.
func (d *Dispatcher) safeFetch(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic in fetcher", "url", job.URL, "panic", r)
			err = &FetchError{URL: job.URL, Cause: ErrUnknown, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return d.fetcher.Fetch(ctx, job.URL, job.Pattern)
}

func fetchStatus(err error) string {
	switch {
	case err == nil:
		return fetchStatusSuccess
	case errors.Is(err, ErrExtraction):
		return fetchStatusExtraction
	default:
		return fetchStatusUnknown
	}
}
